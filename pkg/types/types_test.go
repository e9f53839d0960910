package types

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestAcquireErrorRetryable(t *testing.T) {
	quorum := &AcquireError{Resource: "orders", Reason: ReasonQuorumNotMet, Acknowledged: 2, Quorum: 3, Err: ErrQuorumNotMet}
	assert.True(t, quorum.Retryable())
	assert.ErrorIs(t, quorum, ErrQuorumNotMet)
	assert.Contains(t, quorum.Error(), "acknowledged 2/3")

	validity := &AcquireError{Reason: ReasonValidityExpired, Err: ErrValidityExpired}
	assert.True(t, validity.Retryable())

	fencing := &AcquireError{
		Reason: ReasonFencingTokenFail,
		Err:    fmt.Errorf("%w: %w", ErrFencingTokenUnavailable, errors.New("dial tcp: refused")),
	}
	assert.False(t, fencing.Retryable())
	assert.ErrorIs(t, fencing, ErrFencingTokenUnavailable)

	var target *AcquireError
	wrapped := fmt.Errorf("lock orders: %w", quorum)
	require.ErrorAs(t, wrapped, &target)
	assert.Equal(t, 3, target.Quorum)
}

func TestReleaseError(t *testing.T) {
	err := &ReleaseError{Resource: "orders", Failed: []string{"store-3", "store-4"}}
	assert.ErrorIs(t, err, ErrReleaseIncomplete)
	assert.Contains(t, err.Error(), "store-3, store-4")
}

func TestGrantRemaining(t *testing.T) {
	now := time.Now()
	grant := &LeaseGrant{Validity: time.Second, CreatedAt: now}

	assert.Equal(t, time.Second, grant.Remaining(now))
	assert.Equal(t, 300*time.Millisecond, grant.Remaining(now.Add(700*time.Millisecond)))
	assert.False(t, grant.Expired(now.Add(700*time.Millisecond)))

	//never negative
	assert.Zero(t, grant.Remaining(now.Add(5*time.Second)))
	assert.True(t, grant.Expired(now.Add(time.Second)))
}

func TestState(t *testing.T) {
	assert.Equal(t, "GRANTED", StateGranted.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
	assert.False(t, StatePending.Terminal())
	assert.True(t, StateFailed.Terminal())
}

// ttl travels as milliseconds through the raft log
func TestSetIfAbsentTTLOnWire(t *testing.T) {
	s, err := SetIfAbsentCmd{Key: "quorumlock:orders", Value: "token-1", TTL: 1500 * time.Millisecond}.ToProto()
	require.NoError(t, err)
	assert.Equal(t, float64(1500), s.GetFields()["ttl_ms"].GetNumberValue())

	back, err := FromProtoCommand(s)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, back.(SetIfAbsentCmd).TTL)
}

// a sub-millisecond remainder rounds up, never down to a shorter or zero ttl
func TestSetIfAbsentTTLRoundsUp(t *testing.T) {
	s, err := SetIfAbsentCmd{Key: "quorumlock:orders", Value: "token-1", TTL: 1500 * time.Microsecond}.ToProto()
	require.NoError(t, err)
	assert.Equal(t, float64(2), s.GetFields()["ttl_ms"].GetNumberValue())
}

func TestCeilMillis(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want int64
	}{
		{0, 0},
		{-time.Millisecond, -1},
		{-time.Nanosecond, 0},
		{time.Nanosecond, 1},
		{time.Millisecond, 1},
		{1500 * time.Microsecond, 2},
		{2 * time.Second, 2000},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CeilMillis(tt.ttl), tt.ttl.String())
	}
}

func TestUnknownCommand(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"type": float64(99)})
	require.NoError(t, err)

	_, err = FromProtoCommand(s)
	assert.Error(t, err)
}
