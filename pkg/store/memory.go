package store

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/pixperk/quorumlock/pkg/fsm"
	qtime "github.com/pixperk/quorumlock/pkg/time"
	"github.com/pixperk/quorumlock/pkg/types"
)

// MemoryBackend keeps keys in process, on the same state machine a raft node replicates.
// Used for tests and for single-process store nodes.
type MemoryBackend struct {
	fsm *fsm.FSM
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{fsm: fsm.NewFSM()}
}

// expiry follows clk instead of the wall clock
func NewMemoryBackendWithClock(clk clock.Clock) *MemoryBackend {
	return &MemoryBackend{fsm: fsm.NewFSMWithClock(qtime.NewClockFrom(clk))}
}

func (m *MemoryBackend) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	result, err := m.fsm.Apply(types.SetIfAbsentCmd{Key: key, Value: value, TTL: ttl})
	if err != nil {
		return false, err
	}
	resp, ok := result.(fsm.SetIfAbsentResponse)
	if !ok {
		return false, fmt.Errorf("unexpected response %T", result)
	}
	return resp.Created, nil
}

func (m *MemoryBackend) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	result, err := m.fsm.Apply(types.CompareAndDeleteCmd{Key: key, Expected: expected})
	if err != nil {
		return false, err
	}
	resp, ok := result.(fsm.CompareAndDeleteResponse)
	if !ok {
		return false, fmt.Errorf("unexpected response %T", result)
	}
	return resp.Deleted, nil
}

func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	value, ok := m.fsm.Get(key)
	return value, ok, nil
}

func (m *MemoryBackend) Increment(_ context.Context, key string) (uint64, error) {
	result, err := m.fsm.Apply(types.IncrementCmd{Key: key})
	if err != nil {
		return 0, err
	}
	resp, ok := result.(fsm.IncrementResponse)
	if !ok {
		return 0, fmt.Errorf("unexpected response %T", result)
	}
	return resp.Value, nil
}

// removes expired keys, returns how many were removed
func (m *MemoryBackend) Sweep(context.Context) (int, error) {
	removed := 0
	for _, cmd := range m.fsm.GetExpiredKeys(m.fsm.CurrentTime()) {
		result, err := m.fsm.Apply(cmd)
		if err != nil {
			return removed, err
		}
		if resp, ok := result.(fsm.ExpireKeyResponse); ok && resp.Expired {
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryBackend) Stats() fsm.Stats {
	return m.fsm.Stats()
}
