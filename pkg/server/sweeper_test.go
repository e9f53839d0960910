package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/pixperk/quorumlock/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSweeperRemovesExpiredKeys(t *testing.T) {
	backend := store.NewMemoryBackend()
	clk := testclock.NewClock(time.Now())
	ctx, cancel := context.WithCancel(context.Background())

	created, err := backend.SetIfAbsent(ctx, "orders", "token-1", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, created)
	_, err = backend.SetIfAbsent(ctx, "payments", "token-2", time.Minute)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		RunSweeper(ctx, backend, time.Second, clk, nil)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, clk.WaitAdvance(time.Second, time.Second, 1))

	assert.Eventually(t, func() bool {
		return backend.Stats().Keys == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

type stubSweeper struct {
	calls atomic.Int32
}

func (s *stubSweeper) Sweep(context.Context) (int, error) {
	s.calls.Add(1)
	return 0, nil
}

func TestRunSweeperTicks(t *testing.T) {
	sw := &stubSweeper{}
	clk := testclock.NewClock(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go RunSweeper(ctx, sw, 0, clk, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, clk.WaitAdvance(DefaultSweepInterval, time.Second, 1))
	}
	assert.Eventually(t, func() bool {
		return sw.calls.Load() == 3
	}, time.Second, 5*time.Millisecond)
}
