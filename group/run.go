package group

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/pkg/errors"
)

// Run drives fn once per member, each on its own goroutine, and waits for
// all of them. A failing member (error or panic) aborts the group so the
// others unblock. The returned error is the root cause: the first error that
// is not itself a consequence of the abort.
func Run(ctx context.Context, comms []*Comm, fn func(ctx context.Context, c *Comm) error) error {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		first error
	)
	fail := func(c *Comm, err error) {
		mu.Lock()
		if first == nil || (errors.Is(first, ErrAborted) && !errors.Is(err, ErrAborted)) {
			first = err
		}
		mu.Unlock()
		c.Abort(errors.Errorf("rank %d: %v", c.Rank(), err))
	}

	for _, c := range comms {
		wg.Add(1)
		go func(c *Comm) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fail(c, fmt.Errorf("rank %d panicked: %v\n%s", c.Rank(), r, debug.Stack()))
				}
			}()
			if err := fn(ctx, c); err != nil {
				fail(c, err)
			}
		}(c)
	}
	wg.Wait()
	return first
}
