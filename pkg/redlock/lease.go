package redlock

import (
	"context"
	"sync"
	"time"

	"github.com/pixperk/quorumlock/pkg/types"
)

// Lease is a granted lease bound to the coordinator that granted it.
type Lease struct {
	c     *Coordinator
	grant *types.LeaseGrant

	mu       sync.Mutex
	released bool
}

// Lock acquires resource with retries and returns a handle to the lease.
func (c *Coordinator) Lock(ctx context.Context, resource string, ttl time.Duration) (*Lease, error) {
	grant, err := c.AcquireWithRetry(ctx, resource, ttl)
	if err != nil {
		return nil, err
	}
	return &Lease{c: c, grant: grant}, nil
}

func (l *Lease) Resource() string {
	return l.grant.Resource
}

// fencing token to pass along with every write to a protected resource
func (l *Lease) Token() uint64 {
	return l.grant.FencingToken
}

func (l *Lease) Grant() types.LeaseGrant {
	return *l.grant
}

func (l *Lease) Remaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return 0
	}
	return l.c.CheckRemaining(l.grant)
}

func (l *Lease) State() types.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case l.released:
		return types.StateReleased
	case l.c.CheckRemaining(l.grant) == 0:
		return types.StateExpired
	default:
		return types.StateGranted
	}
}

// Release frees the lease on every store, a second call is a no-op.
// After a ReleaseError the lease counts as released anyway, leftover keys expire with their ttl.
func (l *Lease) Release(ctx context.Context) error {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return nil
	}
	l.released = true
	l.mu.Unlock()

	return l.c.Release(ctx, l.grant)
}
