// Package fence is the resource side of fencing: a Guard remembers the highest
// token it has accepted per resource and turns away writes carrying older ones.
package fence

import (
	"fmt"
	"sync"

	"github.com/pixperk/quorumlock/pkg/types"
)

type Guard struct {
	mu      sync.Mutex
	highest map[string]uint64
}

func NewGuard() *Guard {
	return &Guard{highest: make(map[string]uint64)}
}

// Check accepts token if it is at least the highest seen for resource.
// Equal tokens pass, a holder may write more than once.
func (g *Guard) Check(resource string, token uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if highest := g.highest[resource]; token < highest {
		return fmt.Errorf("%w: resource %s token %d, already saw %d", types.ErrStaleToken, resource, token, highest)
	}
	g.highest[resource] = token
	return nil
}

// Do runs fn only if token passes Check, under the guard's lock so that
// a newer holder cannot slip in between the check and the write.
func (g *Guard) Do(resource string, token uint64, fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if highest := g.highest[resource]; token < highest {
		return fmt.Errorf("%w: resource %s token %d, already saw %d", types.ErrStaleToken, resource, token, highest)
	}
	if err := fn(); err != nil {
		return err
	}
	g.highest[resource] = token
	return nil
}

func (g *Guard) Highest(resource string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.highest[resource]
}
