package server

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	hraft "github.com/hashicorp/raft"
	pb "github.com/pixperk/quorumlock/api/v1"
	"github.com/pixperk/quorumlock/pkg/raft"
	"github.com/pixperk/quorumlock/pkg/store"
	"github.com/pixperk/quorumlock/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// memory backend that claims to be a raft follower
type followerBackend struct {
	*store.MemoryBackend
}

func (followerBackend) IsLeader() bool    { return false }
func (followerBackend) GetLeader() string { return "10.0.0.1:7000" }

func setRequest(t *testing.T, key, value string, ttl time.Duration) *structpb.Struct {
	t.Helper()
	req, err := pb.NewSetRequest(key, value, ttl)
	require.NoError(t, err)
	return req
}

func TestSetIfAbsentAndGet(t *testing.T) {
	s := NewServer("node-1", "memory", store.NewMemoryBackend(), nil)
	ctx := context.Background()

	created, err := s.SetIfAbsent(ctx, setRequest(t, "orders", "token-1", time.Minute))
	require.NoError(t, err)
	assert.True(t, created.GetValue())

	created, err = s.SetIfAbsent(ctx, setRequest(t, "orders", "token-2", time.Minute))
	require.NoError(t, err)
	assert.False(t, created.GetValue())

	resp, err := s.Get(ctx, wrapperspb.String("orders"))
	require.NoError(t, err)
	value, found := pb.ParseGetResponse(resp)
	assert.True(t, found)
	assert.Equal(t, "token-1", value)

	resp, err = s.Get(ctx, wrapperspb.String("missing"))
	require.NoError(t, err)
	_, found = pb.ParseGetResponse(resp)
	assert.False(t, found)
}

func TestCompareAndDelete(t *testing.T) {
	s := NewServer("node-1", "memory", store.NewMemoryBackend(), nil)
	ctx := context.Background()

	_, err := s.SetIfAbsent(ctx, setRequest(t, "orders", "token-1", time.Minute))
	require.NoError(t, err)

	req, err := pb.NewDeleteRequest("orders", "token-2")
	require.NoError(t, err)
	deleted, err := s.CompareAndDelete(ctx, req)
	require.NoError(t, err)
	assert.False(t, deleted.GetValue())

	req, err = pb.NewDeleteRequest("orders", "token-1")
	require.NoError(t, err)
	deleted, err = s.CompareAndDelete(ctx, req)
	require.NoError(t, err)
	assert.True(t, deleted.GetValue())

	//already gone
	deleted, err = s.CompareAndDelete(ctx, req)
	require.NoError(t, err)
	assert.False(t, deleted.GetValue())
}

func TestIncrement(t *testing.T) {
	s := NewServer("node-1", "memory", store.NewMemoryBackend(), nil)

	for i := uint64(1); i <= 3; i++ {
		next, err := s.Increment(context.Background(), wrapperspb.String("fencing:orders"))
		require.NoError(t, err)
		assert.Equal(t, i, next.GetValue())
	}
}

func TestInvalidRequests(t *testing.T) {
	s := NewServer("node-1", "memory", store.NewMemoryBackend(), nil)
	ctx := context.Background()

	_, err := s.SetIfAbsent(ctx, setRequest(t, "", "token", time.Minute))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.SetIfAbsent(ctx, setRequest(t, "orders", "token", 0))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Get(ctx, wrapperspb.String(""))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Increment(ctx, wrapperspb.String(""))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestFollowerRefusesWrites(t *testing.T) {
	s := NewServer("node-2", "raft", followerBackend{store.NewMemoryBackend()}, nil)
	ctx := context.Background()

	_, err := s.SetIfAbsent(ctx, setRequest(t, "orders", "token-1", time.Minute))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	leader, ok := pb.LeaderFromError(err)
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.1:7000", leader)

	_, err = s.Increment(ctx, wrapperspb.String("fencing:orders"))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	st, err := s.GetStatus(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	got := pb.StatusFromStruct(st)
	assert.False(t, got.IsLeader)
	assert.Equal(t, "10.0.0.1:7000", got.Leader)
}

func TestGetStatus(t *testing.T) {
	backend := store.NewMemoryBackend()
	s := NewServer("node-1", "memory", backend, nil)
	ctx := context.Background()

	_, err := s.SetIfAbsent(ctx, setRequest(t, "orders", "token-1", time.Minute))
	require.NoError(t, err)

	resp, err := s.GetStatus(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, pb.Status{
		NodeID:   "node-1",
		Backend:  "memory",
		IsLeader: true,
		Keys:     1,
	}, pb.StatusFromStruct(resp))
}

func TestToGRPCError(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{types.ErrInvalidTTL, codes.InvalidArgument},
		{fmt.Errorf("apply: %w", types.ErrInvalidTTL), codes.InvalidArgument},
		{types.ErrKeyNotFound, codes.NotFound},
		{raft.ErrNotLeader, codes.FailedPrecondition},
		{hraft.ErrLeadershipLost, codes.FailedPrecondition},
		{hraft.ErrRaftShutdown, codes.Unavailable},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{errors.New("disk on fire"), codes.Internal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, status.Code(toGRPCError(tt.err)), tt.err.Error())
	}

	_, ok := pb.LeaderFromError(toGRPCError(hraft.ErrNotLeader))
	assert.True(t, ok, "raft not-leader errors carry the refusal detail")
	_, ok = pb.LeaderFromError(toGRPCError(hraft.ErrRaftShutdown))
	assert.False(t, ok)
	assert.NoError(t, toGRPCError(nil))
}
