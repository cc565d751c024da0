package gateway

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// reentrancyGuard is one lock shared by every settlement entry point. It
// is held for the whole outer call, so a token or swap mechanism calling
// back into any of them is rejected.
type reentrancyGuard struct {
	mu     sync.Mutex
	holder string
}

func (g *reentrancyGuard) lock(op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder != "" {
		return errors.Wrapf(ErrReentrantCall, "%s while %s is executing", op, g.holder)
	}
	g.holder = op
	return nil
}

func (g *reentrancyGuard) unlock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holder = ""
}

// withGuard runs fn holding the guard. The guard is released on every exit
// path, panics included.
func (g *reentrancyGuard) withGuard(op string, fn func() error) error {
	if err := g.lock(op); err != nil {
		return err
	}
	defer g.unlock()
	return fn()
}
