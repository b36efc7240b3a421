// Package barrier provides a reusable counting barrier for goroutines that
// advance through phases in lockstep.
package barrier

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrBroken is returned by Wait once the barrier has been aborted.
var ErrBroken = errors.New("barrier broken")

// Barrier blocks each of a fixed number of parties in Wait until all of them
// have arrived, then releases them together and resets for the next phase.
//
// A generation counter tells waiters of the current phase apart from parties
// that already raced ahead into the next one, so a wakeup is never missed or
// consumed by the wrong phase.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	waiting    int
	generation uint64
	broken     error
}

// New creates a barrier for the given number of parties. parties < 1 is
// treated as 1.
func New(parties int) *Barrier {
	if parties < 1 {
		parties = 1
	}
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Parties returns the number of goroutines the barrier waits for.
func (b *Barrier) Parties() int {
	return b.parties
}

// Wait blocks until every party has called Wait for the current phase. It
// returns an error wrapping ErrBroken if the barrier is aborted before or
// while waiting.
func (b *Barrier) Wait() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.broken != nil {
		return b.broken
	}

	gen := b.generation
	b.waiting++
	if b.waiting == b.parties {
		// Last arrival opens the barrier and starts the next generation
		b.waiting = 0
		b.generation++
		b.cond.Broadcast()
		return nil
	}

	for gen == b.generation && b.broken == nil {
		b.cond.Wait()
	}
	if gen == b.generation {
		return b.broken
	}
	return nil
}

// Abort breaks the barrier: all current and future waiters return an error
// that wraps ErrBroken and carries cause. Only the first cause is kept.
func (b *Barrier) Abort(cause error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.broken != nil {
		return
	}
	if cause == nil {
		b.broken = ErrBroken
	} else {
		b.broken = errors.Wrap(ErrBroken, cause.Error())
	}
	b.cond.Broadcast()
}

// Err returns the abort error, or nil while the barrier is intact.
func (b *Barrier) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.broken
}
