package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pixperk/quorumlock/pkg/types"
)

// CounterClient wraps one counter store with the same timeout rules as Client.
// Unlike Client it reports errors, a missing fencing token has to fail the acquisition.
type CounterClient struct {
	name    string
	counter Counter
	logger  hclog.Logger
}

func NewCounterClient(name string, counter Counter, logger hclog.Logger) *CounterClient {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &CounterClient{
		name:    name,
		counter: counter,
		logger:  logger.Named("counter").With("store", name),
	}
}

func (c *CounterClient) Name() string {
	return c.name
}

type incrementResult struct {
	value uint64
	err   error
}

func (c *CounterClient) Increment(ctx context.Context, key string, timeout time.Duration) (uint64, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan incrementResult, 1)
	go func() {
		value, err := c.counter.Increment(ctx, key)
		done <- incrementResult{value: value, err: err}
	}()

	var res incrementResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = incrementResult{err: ctx.Err()}
	}

	if res.err != nil {
		c.logger.Debug("increment failed", "key", key, "error", res.err)
		return 0, fmt.Errorf("%w: %s: %w", types.ErrStoreUnreachable, c.name, res.err)
	}
	return res.value, nil
}
