package redlock

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/pixperk/quorumlock/pkg/store"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("store down")

// unreachable store
type downBackend struct{}

func (downBackend) SetIfAbsent(context.Context, string, string, time.Duration) (bool, error) {
	return false, errDown
}

func (downBackend) CompareAndDelete(context.Context, string, string) (bool, error) {
	return false, errDown
}

func (downBackend) Get(context.Context, string) (string, bool, error) {
	return "", false, errDown
}

// store that answers only after sleeping, ignoring its context
type hangingBackend struct {
	store.Backend
	delay time.Duration
}

func (h hangingBackend) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	time.Sleep(h.delay)
	return h.Backend.SetIfAbsent(ctx, key, value, ttl)
}

// store whose sets make the test clock jump, as if the network were slow
type slowBackend struct {
	store.Backend
	clk  *testclock.Clock
	cost time.Duration
}

func (s slowBackend) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.clk.Advance(s.cost)
	return s.Backend.SetIfAbsent(ctx, key, value, ttl)
}

// counter that can be switched off and counts calls
type switchCounter struct {
	store.Counter
	down  atomic.Bool
	calls atomic.Int32
}

func (s *switchCounter) Increment(ctx context.Context, key string) (uint64, error) {
	s.calls.Add(1)
	if s.down.Load() {
		return 0, errDown
	}
	return s.Counter.Increment(ctx, key)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.StoreTimeout = 50 * time.Millisecond
	cfg.DefaultTTL = 2 * time.Second
	return cfg
}

// n in-memory stores, the first `reachable` of them up and the rest down
func memoryStores(n, reachable int) ([]*store.Client, []*store.MemoryBackend) {
	clients := make([]*store.Client, n)
	backends := make([]*store.MemoryBackend, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("store-%d", i)
		if i < reachable {
			backends[i] = store.NewMemoryBackend()
			clients[i] = store.NewClient(name, backends[i], nil)
		} else {
			clients[i] = store.NewClient(name, downBackend{}, nil)
		}
	}
	return clients, backends
}

func newTestIssuer(t *testing.T, cfg Config) (*Issuer, *switchCounter) {
	t.Helper()

	counter := &switchCounter{Counter: store.NewMemoryBackend()}
	issuer, err := NewIssuer(store.NewCounterClient("counter", counter, nil), cfg.FencingScope, cfg.StoreTimeout, nil)
	require.NoError(t, err)
	return issuer, counter
}

func newTestCoordinator(t *testing.T, cfg Config, stores []*store.Client, opts ...Option) (*Coordinator, *switchCounter) {
	t.Helper()

	issuer, counter := newTestIssuer(t, cfg)
	c, err := New(cfg, stores, issuer, opts...)
	require.NoError(t, err)
	return c, counter
}

// number of backends currently holding key
func holders(backends []*store.MemoryBackend, key string) int {
	n := 0
	for _, b := range backends {
		if b == nil {
			continue
		}
		if _, ok, _ := b.Get(context.Background(), key); ok {
			n++
		}
	}
	return n
}
