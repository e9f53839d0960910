package fsm

import (
	"fmt"
	"sync"

	tm "time"

	"github.com/pixperk/quorumlock/pkg/time"
	"github.com/pixperk/quorumlock/pkg/types"
)

// a stored key, value is the lease token of whoever created it
type Entry struct {
	Value     string
	ExpiresAt tm.Duration //monotonic time from clock start
}

func (e *Entry) IsExpired(elapsed tm.Duration) bool {
	return elapsed >= e.ExpiresAt
}

// manages the key/value state of one lock store
// critical :
// - a key is only created when absent or expired
// - a key is only deleted by a caller presenting its exact value
// - counters are strictly monotonic and never reset
type FSM struct {
	mu sync.RWMutex

	keys     map[string]*Entry // key -> entry
	counters map[string]uint64 // counter key -> last issued value

	clock *time.Clock // monotonic clock
}

func NewFSM() *FSM {
	return NewFSMWithClock(time.NewClock())
}

func NewFSMWithClock(clk *time.Clock) *FSM {
	return &FSM{
		keys:     make(map[string]*Entry),
		counters: make(map[string]uint64),
		clock:    clk,
	}
}

// applies a command to the FSM and returns the result or error
func (f *FSM) Apply(cmd types.Command) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch c := cmd.(type) {
	case types.SetIfAbsentCmd:
		return f.applySetIfAbsent(c)
	case types.CompareAndDeleteCmd:
		return f.applyCompareAndDelete(c)
	case types.IncrementCmd:
		return f.applyIncrement(c)
	case types.ExpireKeyCmd:
		return f.applyExpireKey(c)
	default:
		return nil, fmt.Errorf("unknown command type: %T", cmd)
	}
}

// returned when a conditional set is applied
type SetIfAbsentResponse struct {
	Created bool
}

func (f *FSM) applySetIfAbsent(cmd types.SetIfAbsentCmd) (any, error) {
	if cmd.TTL <= 0 {
		return nil, types.ErrInvalidTTL
	}

	if existing, held := f.keys[cmd.Key]; held && !existing.IsExpired(f.clock.Elapsed()) {
		return SetIfAbsentResponse{Created: false}, nil
	}

	f.keys[cmd.Key] = &Entry{
		Value:     cmd.Value,
		ExpiresAt: f.clock.ExpiresAt(cmd.TTL),
	}

	return SetIfAbsentResponse{Created: true}, nil
}

// returned when a compare-and-delete is applied
type CompareAndDeleteResponse struct {
	Deleted bool
}

func (f *FSM) applyCompareAndDelete(cmd types.CompareAndDeleteCmd) (any, error) {
	entry, held := f.keys[cmd.Key]
	if !held {
		return CompareAndDeleteResponse{Deleted: false}, nil
	}

	//an expired key is gone as far as callers can tell
	if entry.IsExpired(f.clock.Elapsed()) {
		delete(f.keys, cmd.Key)
		return CompareAndDeleteResponse{Deleted: false}, nil
	}

	if entry.Value != cmd.Expected {
		return CompareAndDeleteResponse{Deleted: false}, nil
	}

	delete(f.keys, cmd.Key)

	return CompareAndDeleteResponse{Deleted: true}, nil
}

// returned when a counter is incremented
type IncrementResponse struct {
	Value uint64
}

func (f *FSM) applyIncrement(cmd types.IncrementCmd) (any, error) {
	f.counters[cmd.Key]++

	return IncrementResponse{
		Value: f.counters[cmd.Key],
	}, nil
}

// returned when the sweep removes a key
type ExpireKeyResponse struct {
	Expired bool
}

func (f *FSM) applyExpireKey(cmd types.ExpireKeyCmd) (any, error) {
	entry, held := f.keys[cmd.Key]
	if !held {
		return ExpireKeyResponse{Expired: false}, nil
	}

	//re-created since the sweep looked at it
	if entry.Value != cmd.Value || !entry.IsExpired(f.clock.Elapsed()) {
		return ExpireKeyResponse{Expired: false}, nil
	}

	delete(f.keys, cmd.Key)

	return ExpireKeyResponse{Expired: true}, nil
}

// returns the live value of a key
func (f *FSM) Get(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entry, exists := f.keys[key]
	if !exists || entry.IsExpired(f.clock.Elapsed()) {
		return "", false
	}

	return entry.Value, true
}

// returns the last value handed out for a counter
func (f *FSM) Counter(key string) uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.counters[key]
}

// current fsm stats
type Stats struct {
	Keys     int
	Counters int
}

func (f *FSM) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return Stats{
		Keys:     len(f.keys),
		Counters: len(f.counters),
	}
}

// returns expire commands for every key past its ttl
func (f *FSM) GetExpiredKeys(now tm.Duration) []types.ExpireKeyCmd {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var expired []types.ExpireKeyCmd
	for key, entry := range f.keys {
		if entry.IsExpired(now) {
			expired = append(expired, types.ExpireKeyCmd{Key: key, Value: entry.Value})
		}
	}

	return expired
}

func (f *FSM) CurrentTime() tm.Duration {
	return f.clock.Elapsed()
}
