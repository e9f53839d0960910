package server

import (
	"context"

	"github.com/hashicorp/go-hclog"
	pb "github.com/pixperk/quorumlock/api/v1"
	"github.com/pixperk/quorumlock/pkg/fsm"
	"github.com/pixperk/quorumlock/pkg/store"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// what a store node serves: the lock store contract plus the fencing counter
type Backend interface {
	store.Backend
	store.Counter
}

// implemented by replicated backends, writes are refused off the leader
type leaderAware interface {
	IsLeader() bool
	GetLeader() string
}

type statser interface {
	Stats() fsm.Stats
}

type Server struct {
	pb.UnimplementedLockStoreServer
	nodeID  string
	kind    string
	backend Backend
	logger  hclog.Logger
}

// wraps a backend into a gRPC lock store
func NewServer(nodeID, kind string, backend Backend, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Server{
		nodeID:  nodeID,
		kind:    kind,
		backend: backend,
		logger:  logger.Named("server"),
	}
}

func (s *Server) SetIfAbsent(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	if err := s.checkLeader(); err != nil {
		return nil, err
	}

	key, value, ttl := pb.ParseRequest(req)
	if key == "" || value == "" {
		return nil, status.Error(codes.InvalidArgument, "key and value required")
	}
	if ttl <= 0 {
		return nil, status.Error(codes.InvalidArgument, "ttl_ms must be greater than 0")
	}

	created, err := s.backend.SetIfAbsent(ctx, key, value, ttl)
	if err != nil {
		return nil, s.fail("set", key, err)
	}
	return wrapperspb.Bool(created), nil
}

func (s *Server) CompareAndDelete(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	if err := s.checkLeader(); err != nil {
		return nil, err
	}

	key, expected, _ := pb.ParseRequest(req)
	if key == "" {
		return nil, status.Error(codes.InvalidArgument, "key required")
	}

	deleted, err := s.backend.CompareAndDelete(ctx, key, expected)
	if err != nil {
		return nil, s.fail("delete", key, err)
	}
	return wrapperspb.Bool(deleted), nil
}

func (s *Server) Get(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if err := s.checkLeader(); err != nil {
		return nil, err
	}
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "key required")
	}

	value, found, err := s.backend.Get(ctx, req.GetValue())
	if err != nil {
		return nil, s.fail("get", req.GetValue(), err)
	}

	resp, err := pb.NewGetResponse(value, found)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

func (s *Server) Increment(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	if err := s.checkLeader(); err != nil {
		return nil, err
	}
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "key required")
	}

	next, err := s.backend.Increment(ctx, req.GetValue())
	if err != nil {
		return nil, s.fail("increment", req.GetValue(), err)
	}
	return wrapperspb.UInt64(next), nil
}

func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	resp, err := s.Status().ToStruct()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

// node status, also served over http
func (s *Server) Status() pb.Status {
	st := pb.Status{
		NodeID:   s.nodeID,
		Backend:  s.kind,
		IsLeader: true,
	}
	if l, ok := s.backend.(leaderAware); ok {
		st.IsLeader = l.IsLeader()
		st.Leader = l.GetLeader()
	}
	if b, ok := s.backend.(statser); ok {
		st.Keys = b.Stats().Keys
	}
	return st
}

func (s *Server) fail(op, key string, err error) error {
	s.logger.Debug("backend call failed", "op", op, "key", key, "error", err)
	return toGRPCError(err)
}

func (s *Server) checkLeader() error {
	l, ok := s.backend.(leaderAware)
	if !ok || l.IsLeader() {
		return nil
	}
	return notLeaderError(l.GetLeader())
}
