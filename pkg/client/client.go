// Package client talks to a remote quorumlock store node over gRPC.
// A Client is a store.Backend and a store.Counter, so a coordinator can mix
// remote nodes with redis or local stores.
package client

import (
	"context"
	"fmt"
	"time"

	pb "github.com/pixperk/quorumlock/api/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Client struct {
	addr   string
	conn   *grpc.ClientConn
	client pb.LockStoreClient
}

// connects lazily, extra options are applied after insecure transport credentials
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return &Client{
		addr:   addr,
		conn:   conn,
		client: pb.NewLockStoreClient(conn),
	}, nil
}

func (c *Client) Addr() string {
	return c.addr
}

func (c *Client) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	req, err := pb.NewSetRequest(key, value, ttl)
	if err != nil {
		return false, err
	}

	resp, err := c.client.SetIfAbsent(ctx, req)
	if err != nil {
		return false, fmt.Errorf("set if absent: %w", err)
	}
	return resp.GetValue(), nil
}

func (c *Client) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	req, err := pb.NewDeleteRequest(key, expected)
	if err != nil {
		return false, err
	}

	resp, err := c.client.CompareAndDelete(ctx, req)
	if err != nil {
		return false, fmt.Errorf("compare and delete: %w", err)
	}
	return resp.GetValue(), nil
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	resp, err := c.client.Get(ctx, wrapperspb.String(key))
	if err != nil {
		return "", false, fmt.Errorf("get: %w", err)
	}
	value, found := pb.ParseGetResponse(resp)
	return value, found, nil
}

func (c *Client) Increment(ctx context.Context, key string) (uint64, error) {
	resp, err := c.client.Increment(ctx, wrapperspb.String(key))
	if err != nil {
		return 0, fmt.Errorf("increment: %w", err)
	}
	return resp.GetValue(), nil
}

func (c *Client) Status(ctx context.Context) (pb.Status, error) {
	resp, err := c.client.GetStatus(ctx, &emptypb.Empty{})
	if err != nil {
		return pb.Status{}, fmt.Errorf("status: %w", err)
	}
	return pb.StatusFromStruct(resp), nil
}

// true when the node refused because it is not the raft leader
// an unreachable node is not a refusal and reports false
func IsNotLeader(err error) bool {
	_, ok := pb.LeaderFromError(err)
	return ok
}

// leader address named by a follower's refusal, empty when unknown
func LeaderAddr(err error) string {
	addr, _ := pb.LeaderFromError(err)
	return addr
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
