package redlock

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/pixperk/quorumlock/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseLifecycle(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	stores, backends := memoryStores(3, 3)
	c, _ := newTestCoordinator(t, testConfig(), stores, WithClock(clk))
	ctx := context.Background()

	lease, err := c.Lock(ctx, "orders", time.Second)
	require.NoError(t, err)

	assert.Equal(t, "orders", lease.Resource())
	assert.Equal(t, uint64(1), lease.Token())
	assert.Equal(t, types.StateGranted, lease.State())
	assert.Equal(t, lease.Grant().Validity, lease.Remaining())

	clk.Advance(400 * time.Millisecond)
	assert.Equal(t, lease.Grant().Validity-400*time.Millisecond, lease.Remaining())

	require.NoError(t, lease.Release(ctx))
	assert.Equal(t, types.StateReleased, lease.State())
	assert.Zero(t, lease.Remaining())
	assert.Equal(t, 0, holders(backends, "quorumlock:orders"))

	//second release is a no-op
	require.NoError(t, lease.Release(ctx))
}

func TestLeaseExpires(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	stores, _ := memoryStores(3, 3)
	c, _ := newTestCoordinator(t, testConfig(), stores, WithClock(clk))

	lease, err := c.Lock(context.Background(), "orders", time.Second)
	require.NoError(t, err)

	clk.Advance(time.Second)
	assert.Equal(t, types.StateExpired, lease.State())
	assert.Zero(t, lease.Remaining())
}

func TestLockHeld(t *testing.T) {
	stores, _ := memoryStores(3, 3)
	cfg := testConfig()
	cfg.Retry.Tries = 2
	cfg.Retry.BaseDelay = 10 * time.Millisecond
	c, _ := newTestCoordinator(t, cfg, stores)
	ctx := context.Background()

	held, err := c.Lock(ctx, "orders", 5*time.Second)
	require.NoError(t, err)
	defer held.Release(ctx)

	_, err = c.Lock(ctx, "orders", time.Second)
	assert.ErrorIs(t, err, types.ErrQuorumNotMet)
}
