package server

import (
	"context"
	"errors"

	hraft "github.com/hashicorp/raft"
	pb "github.com/pixperk/quorumlock/api/v1"
	"github.com/pixperk/quorumlock/pkg/raft"
	"github.com/pixperk/quorumlock/pkg/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// converts domain errors to gRPC status errors
func toGRPCError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, types.ErrInvalidTTL):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, types.ErrKeyNotFound):
		return status.Error(codes.NotFound, err.Error())

	//leadership moved between the check and the apply
	case errors.Is(err, raft.ErrNotLeader), errors.Is(err, hraft.ErrNotLeader),
		errors.Is(err, hraft.ErrLeadershipLost):
		return notLeaderError("")

	case errors.Is(err, hraft.ErrRaftShutdown):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, hraft.ErrEnqueueTimeout):
		return status.Error(codes.DeadlineExceeded, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// FailedPrecondition with a NOT_LEADER detail, so callers can tell a follower
// from an unreachable node (Unavailable)
func notLeaderError(leaderAddr string) error {
	return pb.NotLeaderError(leaderAddr)
}
