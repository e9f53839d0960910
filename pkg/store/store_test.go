package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pixperk/quorumlock/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend that never answers until its context is gone
type hangingBackend struct {
	ignoreContext bool
}

func (h hangingBackend) wait(ctx context.Context) error {
	if h.ignoreContext {
		time.Sleep(time.Second)
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (h hangingBackend) SetIfAbsent(ctx context.Context, _, _ string, _ time.Duration) (bool, error) {
	return true, h.wait(ctx)
}

func (h hangingBackend) CompareAndDelete(ctx context.Context, _, _ string) (bool, error) {
	return true, h.wait(ctx)
}

func (h hangingBackend) Get(ctx context.Context, _ string) (string, bool, error) {
	return "late", true, h.wait(ctx)
}

type failingBackend struct{}

var errConnRefused = errors.New("connection refused")

func (failingBackend) SetIfAbsent(context.Context, string, string, time.Duration) (bool, error) {
	return false, errConnRefused
}

func (failingBackend) CompareAndDelete(context.Context, string, string) (bool, error) {
	return false, errConnRefused
}

func (failingBackend) Get(context.Context, string) (string, bool, error) {
	return "", false, errConnRefused
}

func TestClientTrySet(t *testing.T) {
	c := NewClient("mem-1", NewMemoryBackend(), nil)
	ctx := context.Background()

	assert.True(t, c.TrySet(ctx, "orders", "token-1", time.Minute, time.Second))
	assert.False(t, c.TrySet(ctx, "orders", "token-2", time.Minute, time.Second), "key already held")

	value, ok := c.ReadValue(ctx, "orders", time.Second)
	require.True(t, ok)
	assert.Equal(t, "token-1", value)

	assert.False(t, c.TryDelete(ctx, "orders", "token-2", time.Second), "foreign token must not delete")
	assert.True(t, c.TryDelete(ctx, "orders", "token-1", time.Second))
	assert.False(t, c.TryDelete(ctx, "orders", "token-1", time.Second), "second delete is a no-op")

	_, ok = c.ReadValue(ctx, "orders", time.Second)
	assert.False(t, ok)
}

func TestClientOutcome(t *testing.T) {
	c := NewClient("mem-1", NewMemoryBackend(), nil)

	outcome := c.Set(context.Background(), "orders", "token-1", time.Minute, time.Second)
	assert.Equal(t, "mem-1", outcome.Store)
	assert.True(t, outcome.Success)
	assert.NoError(t, outcome.Err)
	assert.GreaterOrEqual(t, outcome.Elapsed, time.Duration(0))
}

func TestClientSwallowsErrors(t *testing.T) {
	c := NewClient("down", failingBackend{}, nil)
	ctx := context.Background()

	assert.False(t, c.TrySet(ctx, "orders", "token-1", time.Minute, time.Second))
	assert.False(t, c.TryDelete(ctx, "orders", "token-1", time.Second))
	_, ok := c.ReadValue(ctx, "orders", time.Second)
	assert.False(t, ok)

	outcome := c.Set(ctx, "orders", "token-1", time.Minute, time.Second)
	assert.False(t, outcome.Success)
	assert.ErrorIs(t, outcome.Err, types.ErrStoreUnreachable)
	assert.ErrorIs(t, outcome.Err, errConnRefused)
}

func TestClientTimeout(t *testing.T) {
	for name, backend := range map[string]Backend{
		"honours context": hangingBackend{},
		"ignores context": hangingBackend{ignoreContext: true},
	} {
		t.Run(name, func(t *testing.T) {
			c := NewClient("slow", backend, nil)

			start := time.Now()
			outcome := c.Set(context.Background(), "orders", "token-1", time.Minute, 50*time.Millisecond)
			elapsed := time.Since(start)

			assert.False(t, outcome.Success, "late answers must not count")
			assert.ErrorIs(t, outcome.Err, context.DeadlineExceeded)
			assert.Less(t, elapsed, 500*time.Millisecond)
		})
	}
}

func TestMemoryBackendSweep(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()

	_, err := m.SetIfAbsent(ctx, "short", "token", 10*time.Millisecond)
	require.NoError(t, err)
	_, err = m.SetIfAbsent(ctx, "long", "token", time.Minute)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	removed, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, m.Stats().Keys)
}

func TestMemoryBackendIncrement(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()

	for want := uint64(1); want <= 3; want++ {
		got, err := m.Increment(ctx, "fencing:orders")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
