// Package store holds the lock store contract and the client the coordinator uses
// to talk to one store.
//
// A Backend reports errors. A Client never does: every failure collapses into
// "did not succeed" so that one bad store can only cost a vote, never block or
// fail the caller.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pixperk/quorumlock/pkg/metrics"
	"github.com/pixperk/quorumlock/pkg/types"
)

// Backend is the key/value contract a lock store has to provide.
type Backend interface {
	// SET key value IF NOT EXISTS, EXPIRE ttl
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// DELETE key IF value == expected
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	// GET key
	Get(ctx context.Context, key string) (string, bool, error)
}

// Counter is an atomic increment, used for fencing tokens.
type Counter interface {
	Increment(ctx context.Context, key string) (uint64, error)
}

// Client wraps one backend. It is safe for concurrent use if the backend is.
type Client struct {
	name    string
	backend Backend
	logger  hclog.Logger
}

func NewClient(name string, backend Backend, logger hclog.Logger) *Client {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Client{
		name:    name,
		backend: backend,
		logger:  logger.Named("store").With("store", name),
	}
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) Backend() Backend {
	return c.backend
}

// Set runs a conditional set and reports the full outcome.
func (c *Client) Set(ctx context.Context, key, value string, ttl, timeout time.Duration) types.AcquisitionOutcome {
	return c.run(ctx, "set", timeout, func(ctx context.Context) (bool, error) {
		return c.backend.SetIfAbsent(ctx, key, value, ttl)
	})
}

// Delete runs a compare-and-delete and reports the full outcome.
func (c *Client) Delete(ctx context.Context, key, expected string, timeout time.Duration) types.AcquisitionOutcome {
	return c.run(ctx, "delete", timeout, func(ctx context.Context) (bool, error) {
		return c.backend.CompareAndDelete(ctx, key, expected)
	})
}

// TrySet is true only if this call created the key.
// "already locked" and "unreachable" look the same to the caller.
func (c *Client) TrySet(ctx context.Context, key, value string, ttl, timeout time.Duration) bool {
	return c.Set(ctx, key, value, ttl, timeout).Success
}

// TryDelete is true only on an actual deletion.
func (c *Client) TryDelete(ctx context.Context, key, expected string, timeout time.Duration) bool {
	return c.Delete(ctx, key, expected, timeout).Success
}

// ReadValue returns the current value, absent on error.
func (c *Client) ReadValue(ctx context.Context, key string, timeout time.Duration) (string, bool) {
	var value string
	outcome := c.run(ctx, "get", timeout, func(ctx context.Context) (bool, error) {
		v, ok, err := c.backend.Get(ctx, key)
		value = v
		return ok, err
	})
	if !outcome.Success {
		return "", false
	}
	return value, true
}

type result struct {
	ok  bool
	err error
}

// runs op under the timeout; a backend that ignores its context is abandoned
// when the timeout fires and its late answer is dropped
func (c *Client) run(ctx context.Context, op string, timeout time.Duration, fn func(context.Context) (bool, error)) types.AcquisitionOutcome {
	start := time.Now()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var res result
	if err := ctx.Err(); err != nil {
		//never start a call nobody will wait for
		res = result{err: err}
	} else {
		done := make(chan result, 1)
		go func() {
			ok, err := fn(ctx)
			done <- result{ok: ok, err: err}
		}()

		select {
		case res = <-done:
		case <-ctx.Done():
			res = result{err: ctx.Err()}
		}
	}

	elapsed := time.Since(start)
	outcome := types.AcquisitionOutcome{
		Store:   c.name,
		Success: res.ok && res.err == nil,
		Elapsed: elapsed,
	}
	if res.err != nil {
		outcome.Err = fmt.Errorf("%w: %s: %w", types.ErrStoreUnreachable, c.name, res.err)
		c.logger.Debug("store call failed", "op", op, "elapsed", elapsed, "error", res.err)
	}

	metrics.StoreCallDuration.WithLabelValues(c.name, op).Observe(elapsed.Seconds())
	metrics.StoreCallTotal.WithLabelValues(c.name, op, statusLabel(outcome)).Inc()

	return outcome
}

func statusLabel(o types.AcquisitionOutcome) string {
	switch {
	case o.Err != nil && errors.Is(o.Err, context.DeadlineExceeded):
		return "timeout"
	case o.Err != nil:
		return "error"
	case o.Success:
		return "ok"
	default:
		return "rejected"
	}
}
