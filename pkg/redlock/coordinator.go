// Package redlock grants leases over named resources by reaching a majority of
// independent lock stores, then binds each grant to a fencing token.
//
// The coordinator holds no lock state of its own. Every lease lives in the
// stores as key=token with a ttl, so a crashed caller is healed by expiry.
package redlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/juju/clock"
	"github.com/pixperk/quorumlock/pkg/metrics"
	"github.com/pixperk/quorumlock/pkg/store"
	"github.com/pixperk/quorumlock/pkg/types"
)

type Coordinator struct {
	cfg    Config
	stores []*store.Client
	issuer *Issuer
	quorum int
	clock  clock.Clock
	logger hclog.Logger
}

type Option func(*Coordinator)

// clock used for elapsed time and validity, the wall clock by default
func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) { c.clock = clk }
}

func WithLogger(logger hclog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// New checks the configuration; a bad one is a programming error and nothing is started.
func New(cfg Config, stores []*store.Client, issuer *Issuer, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.validateQuorum(len(stores)); err != nil {
		return nil, err
	}
	if issuer == nil {
		return nil, errors.New("a fencing token issuer is required")
	}

	seen := make(map[string]bool, len(stores))
	for _, s := range stores {
		if seen[s.Name()] {
			return nil, fmt.Errorf("duplicate lock store %q", s.Name())
		}
		seen[s.Name()] = true
	}

	c := &Coordinator{
		cfg:    cfg,
		stores: stores,
		issuer: issuer,
		quorum: cfg.QuorumFor(len(stores)),
		clock:  clock.WallClock,
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("redlock")

	return c, nil
}

func (c *Coordinator) Quorum() int {
	return c.quorum
}

func (c *Coordinator) Stores() []string {
	names := make([]string, len(c.stores))
	for i, s := range c.stores {
		names[i] = s.Name()
	}
	return names
}

func (c *Coordinator) Config() Config {
	return c.cfg
}

func (c *Coordinator) key(resource string) string {
	return c.cfg.KeyPrefix + resource
}

// Acquire tries to take a lease on resource for ttl, the default ttl when ttl <= 0.
// It returns by ttl at the latest whatever the stores do. Failures are
// *types.AcquireError and wrap ErrQuorumNotMet, ErrValidityExpired or
// ErrFencingTokenUnavailable.
func (c *Coordinator) Acquire(ctx context.Context, resource string, ttl time.Duration) (*types.LeaseGrant, error) {
	if resource == "" {
		return nil, errors.New("resource name required")
	}
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	token, err := NewToken()
	if err != nil {
		return nil, err
	}
	req := types.LeaseRequest{Resource: resource, TTL: ttl, Token: token}

	start := c.clock.Now()
	grant, err := c.acquire(ctx, req, start)

	status := "granted"
	var acqErr *types.AcquireError
	if errors.As(err, &acqErr) {
		status = acqErr.Reason
	} else if err != nil {
		status = "error"
	}
	metrics.AcquireTotal.WithLabelValues(status).Inc()
	metrics.AcquireDuration.WithLabelValues(status).Observe(c.clock.Now().Sub(start).Seconds())

	return grant, err
}

func (c *Coordinator) acquire(ctx context.Context, req types.LeaseRequest, start time.Time) (*types.LeaseGrant, error) {
	key := c.key(req.Resource)

	//the whole attempt must fit in the ttl, or validity could never be positive
	deadlineCtx, cancel := context.WithTimeout(ctx, req.TTL)
	defer cancel()

	outcomes := fanOut(deadlineCtx, c.stores, func(ctx context.Context, s *store.Client) types.AcquisitionOutcome {
		return s.Set(ctx, key, req.Token, req.TTL, c.cfg.StoreTimeout)
	})

	var acknowledged []string
	for _, o := range outcomes {
		if o.Success {
			acknowledged = append(acknowledged, o.Store)
		}
	}
	metrics.AcquireAcknowledged.Observe(float64(len(acknowledged)))

	now := c.clock.Now()
	elapsed := now.Sub(start)
	validity := Validity(req.TTL, elapsed, c.cfg.DriftFactor, c.cfg.DriftMargin)

	fail := func(reason string, cause error) error {
		c.cleanup(ctx, req)
		err := &types.AcquireError{
			Resource:     req.Resource,
			Reason:       reason,
			Acknowledged: len(acknowledged),
			Quorum:       c.quorum,
			Elapsed:      elapsed,
			TTL:          req.TTL,
			Validity:     validity,
			Err:          cause,
		}
		c.logger.Debug("acquire failed", "resource", req.Resource, "reason", reason,
			"acknowledged", len(acknowledged), "quorum", c.quorum, "elapsed", elapsed)
		return err
	}

	//caller gave up, nothing to hand back
	if err := ctx.Err(); err != nil {
		c.cleanup(ctx, req)
		return nil, fmt.Errorf("acquire %q: %w", req.Resource, err)
	}

	if len(acknowledged) < c.quorum {
		return nil, fail(types.ReasonQuorumNotMet, types.ErrQuorumNotMet)
	}
	//a full house that took too long is still a failure
	if validity <= 0 {
		return nil, fail(types.ReasonValidityExpired, types.ErrValidityExpired)
	}

	tokenCtx, cancelToken := context.WithTimeout(ctx, validity)
	fencingToken, err := c.issuer.NextToken(tokenCtx, req.Resource)
	cancelToken()
	if err != nil {
		return nil, fail(types.ReasonFencingTokenFail, err)
	}

	//token issuance spent some of the budget, recheck before handing out
	now = c.clock.Now()
	elapsed = now.Sub(start)
	validity = Validity(req.TTL, elapsed, c.cfg.DriftFactor, c.cfg.DriftMargin)
	if validity <= 0 {
		return nil, fail(types.ReasonValidityExpired, types.ErrValidityExpired)
	}

	c.logger.Debug("lease granted", "resource", req.Resource, "fencing_token", fencingToken,
		"acknowledged", len(acknowledged), "validity", validity)

	return &types.LeaseGrant{
		Resource:     req.Resource,
		Token:        req.Token,
		Acknowledged: acknowledged,
		Validity:     validity,
		FencingToken: fencingToken,
		CreatedAt:    now,
	}, nil
}

// Release deletes the lease on every store, not only those that acknowledged it.
// It is safe to call more than once and after expiry. A *types.ReleaseError lists
// stores that could not confirm; their copies expire with the ttl.
func (c *Coordinator) Release(ctx context.Context, grant *types.LeaseGrant) error {
	if grant == nil {
		return nil
	}
	return c.release(ctx, grant.Resource, grant.Token)
}

// releases partial locks of a failed attempt, even if the caller's context is done
func (c *Coordinator) cleanup(ctx context.Context, req types.LeaseRequest) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.StoreTimeout)
	defer cancel()

	if err := c.release(cleanupCtx, req.Resource, req.Token); err != nil {
		c.logger.Debug("cleanup after failed acquire incomplete", "resource", req.Resource, "error", err)
	}
}

func (c *Coordinator) release(ctx context.Context, resource, token string) error {
	key := c.key(resource)

	outcomes := fanOut(ctx, c.stores, func(ctx context.Context, s *store.Client) types.AcquisitionOutcome {
		return s.Delete(ctx, key, token, c.cfg.StoreTimeout)
	})

	reported := make(map[string]bool, len(outcomes))
	var failed []string
	for _, o := range outcomes {
		reported[o.Store] = true
		if o.Err != nil {
			failed = append(failed, o.Store)
			c.logger.Warn("release not confirmed", "resource", resource, "store", o.Store, "error", o.Err)
		}
	}
	for _, s := range c.stores {
		if !reported[s.Name()] {
			failed = append(failed, s.Name())
			c.logger.Warn("release abandoned", "resource", resource, "store", s.Name())
		}
	}

	if len(failed) > 0 {
		metrics.ReleaseTotal.WithLabelValues("incomplete").Inc()
		return &types.ReleaseError{Resource: resource, Failed: failed}
	}

	metrics.ReleaseTotal.WithLabelValues("complete").Inc()
	return nil
}

// CheckRemaining estimates how long the grant can still be trusted.
// Advisory only: it bounds the safety margin, it cannot prove the lease is held.
func (c *Coordinator) CheckRemaining(grant *types.LeaseGrant) time.Duration {
	return grant.Remaining(c.clock.Now())
}

// Holder returns the token stored for resource when a quorum of stores agree on it.
func (c *Coordinator) Holder(ctx context.Context, resource string) (string, bool) {
	key := c.key(resource)

	type read struct {
		value string
		ok    bool
	}
	reads := fanOut(ctx, c.stores, func(ctx context.Context, s *store.Client) read {
		value, ok := s.ReadValue(ctx, key, c.cfg.StoreTimeout)
		return read{value: value, ok: ok}
	})

	votes := make(map[string]int)
	for _, r := range reads {
		if r.ok {
			votes[r.value]++
		}
	}
	for value, n := range votes {
		if n >= c.quorum {
			return value, true
		}
	}
	return "", false
}

// runs op against every store concurrently and joins until all answered or ctx is done
// stragglers write into the buffered channel after we stop reading and are dropped
func fanOut[T any](ctx context.Context, stores []*store.Client, op func(context.Context, *store.Client) T) []T {
	results := make(chan T, len(stores))
	for _, s := range stores {
		go func(s *store.Client) {
			results <- op(ctx, s)
		}(s)
	}

	collected := make([]T, 0, len(stores))
	for len(collected) < len(stores) {
		select {
		case r := <-results:
			collected = append(collected, r)
		case <-ctx.Done():
			return collected
		}
	}
	return collected
}
