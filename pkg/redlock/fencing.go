package redlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pixperk/quorumlock/pkg/metrics"
	"github.com/pixperk/quorumlock/pkg/store"
	"github.com/pixperk/quorumlock/pkg/types"
)

const globalFencingKey = "fencing:global"

// Issuer hands out fencing tokens from one counter store.
// The counter is a single logical store. Run it on a raft group to keep it
// available through node loss: several independent counters cannot give a
// strictly increasing sequence without a read-modify-write across them.
type Issuer struct {
	counter *store.CounterClient
	scope   string
	timeout time.Duration
	logger  hclog.Logger

	mu   sync.Mutex
	last map[string]uint64 //highest token handed out per counter key
}

func NewIssuer(counter *store.CounterClient, scope string, timeout time.Duration, logger hclog.Logger) (*Issuer, error) {
	if counter == nil {
		return nil, errors.New("fencing issuer needs a counter store")
	}
	if scope != ScopeResource && scope != ScopeGlobal {
		return nil, fmt.Errorf("unknown fencing scope %q", scope)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Issuer{
		counter: counter,
		scope:   scope,
		timeout: timeout,
		logger:  logger.Named("fencing"),
		last:    make(map[string]uint64),
	}, nil
}

func (i *Issuer) key(resource string) string {
	if i.scope == ScopeGlobal {
		return globalFencingKey
	}
	return "fencing:" + resource
}

// NextToken atomically increments the counter for resource.
// A value at or below a token issued here before the increment started means the
// counter store lost state, and is refused rather than handed out.
func (i *Issuer) NextToken(ctx context.Context, resource string) (uint64, error) {
	key := i.key(resource)

	i.mu.Lock()
	floor := i.last[key]
	i.mu.Unlock()

	token, err := i.counter.Increment(ctx, key, i.timeout)
	if err != nil {
		metrics.FencingTokenTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("%w: %w", types.ErrFencingTokenUnavailable, err)
	}

	if token <= floor {
		metrics.FencingTokenTotal.WithLabelValues("regressed").Inc()
		i.logger.Error("fencing counter went backwards", "key", key, "token", token, "floor", floor)
		return 0, fmt.Errorf("%w: counter %s returned %d after %d", types.ErrFencingTokenUnavailable, key, token, floor)
	}

	i.mu.Lock()
	if token > i.last[key] {
		i.last[key] = token
	}
	i.mu.Unlock()

	metrics.FencingTokenTotal.WithLabelValues("ok").Inc()
	return token, nil
}
