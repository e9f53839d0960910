package client_test

import (
	"context"
	"net"
	"testing"

	pb "github.com/pixperk/quorumlock/api/v1"
	"github.com/pixperk/quorumlock/pkg/client"
	"github.com/pixperk/quorumlock/pkg/server"
	"github.com/pixperk/quorumlock/pkg/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

// starts an in-process store node and returns a client connected to it
func startNode(tb testing.TB, name string, backend server.Backend) *client.Client {
	tb.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	pb.RegisterLockStoreServer(srv, server.NewServer(name, "memory", backend, nil))
	go srv.Serve(lis)
	tb.Cleanup(srv.Stop)

	c, err := client.NewClient("passthrough:///"+name,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		tb.Fatalf("Failed to connect: %v", err)
	}
	tb.Cleanup(func() { c.Close() })
	return c
}

func startMemoryNode(tb testing.TB, name string) (*client.Client, *store.MemoryBackend) {
	backend := store.NewMemoryBackend()
	return startNode(tb, name, backend), backend
}
