package redlock

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pixperk/quorumlock/pkg/types"
)

// AcquireWithRetry calls Acquire until it succeeds, the retry budget is spent or
// ctx is done. Only quorum and validity failures are retried, with exponential
// backoff and jitter so competing callers do not retry in lockstep.
func (c *Coordinator) AcquireWithRetry(ctx context.Context, resource string, ttl time.Duration) (*types.LeaseGrant, error) {
	tries := c.cfg.Retry.Tries
	if tries <= 0 {
		return c.Acquire(ctx, resource, ttl)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.Retry.BaseDelay
	bo.MaxInterval = c.cfg.Retry.MaxDelay
	bo.RandomizationFactor = 0.5

	attempt := 0
	return backoff.Retry(ctx, func() (*types.LeaseGrant, error) {
		attempt++
		grant, err := c.Acquire(ctx, resource, ttl)
		if err == nil {
			return grant, nil
		}

		var acqErr *types.AcquireError
		if errors.As(err, &acqErr) && acqErr.Retryable() {
			c.logger.Debug("retrying acquire", "resource", resource, "attempt", attempt, "reason", acqErr.Reason)
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(tries)))
}
