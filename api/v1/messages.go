package v1

import (
	"time"

	"github.com/pixperk/quorumlock/pkg/types"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// field names shared by both ends
const (
	FieldKey   = "key"
	FieldValue = "value"
	FieldTTLMs = "ttl_ms"
	FieldFound = "found"
)

// ttl travels as whole milliseconds, rounded up
func NewSetRequest(key, value string, ttl time.Duration) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		FieldKey:   key,
		FieldValue: value,
		FieldTTLMs: float64(types.CeilMillis(ttl)),
	})
}

func NewDeleteRequest(key, expected string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		FieldKey:   key,
		FieldValue: expected,
	})
}

func NewGetResponse(value string, found bool) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		FieldValue: value,
		FieldFound: found,
	})
}

// key, value and ttl of a set or delete request
func ParseRequest(s *structpb.Struct) (key, value string, ttl time.Duration) {
	fields := s.GetFields()
	key = fields[FieldKey].GetStringValue()
	value = fields[FieldValue].GetStringValue()
	ttl = time.Duration(fields[FieldTTLMs].GetNumberValue()) * time.Millisecond
	return key, value, ttl
}

func ParseGetResponse(s *structpb.Struct) (string, bool) {
	fields := s.GetFields()
	return fields[FieldValue].GetStringValue(), fields[FieldFound].GetBoolValue()
}

// node status reported by GetStatus
type Status struct {
	NodeID   string
	Backend  string
	IsLeader bool
	Leader   string
	Keys     int
}

func (s Status) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"node_id":   s.NodeID,
		"backend":   s.Backend,
		"is_leader": s.IsLeader,
		"leader":    s.Leader,
		"keys":      float64(s.Keys),
	})
}

func StatusFromStruct(s *structpb.Struct) Status {
	fields := s.GetFields()
	return Status{
		NodeID:   fields["node_id"].GetStringValue(),
		Backend:  fields["backend"].GetStringValue(),
		IsLeader: fields["is_leader"].GetBoolValue(),
		Leader:   fields["leader"].GetStringValue(),
		Keys:     int(fields["keys"].GetNumberValue()),
	}
}

// error detail marking a refusal by a raft follower
const (
	ErrorDomain     = "quorumlock.v1"
	ReasonNotLeader = "NOT_LEADER"
)

// status error sent by a follower, carries the leader address when known
func NotLeaderError(leaderAddr string) error {
	st := status.Newf(codes.FailedPrecondition, "not leader, leader is at: %s", leaderAddr)
	withInfo, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   ReasonNotLeader,
		Domain:   ErrorDomain,
		Metadata: map[string]string{"leader": leaderAddr},
	})
	if err != nil {
		return st.Err()
	}
	return withInfo.Err()
}

// reports whether err is a follower's refusal, and the leader it named
// transport failures such as a refused connection are not
func LeaderFromError(err error) (string, bool) {
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.FailedPrecondition {
		return "", false
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain && info.GetReason() == ReasonNotLeader {
			return info.GetMetadata()["leader"], true
		}
	}
	return "", false
}
