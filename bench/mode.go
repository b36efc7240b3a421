package bench

import (
	"context"
	"runtime"
	"slices"
	"time"

	psort "github.com/exascience/pargo/sort"
	"github.com/pkg/errors"

	"github.com/ChristianF88/pradix/dist"
	"github.com/ChristianF88/pradix/group"
	"github.com/ChristianF88/pradix/radix"
	"github.com/ChristianF88/pradix/shm"
	"github.com/ChristianF88/pradix/verify"
)

// Mode names a sorting strategy.
type Mode string

const (
	Sequential   Mode = "sequential"
	SharedMemory Mode = "shm"
	Distributed  Mode = "dist"
	Pargo        Mode = "pargo"
	Stdlib       Mode = "stdlib"
)

// Modes lists every mode in report order.
var Modes = []Mode{Sequential, SharedMemory, Distributed, Pargo, Stdlib}

var ErrUnknownMode = errors.New("unknown sort mode")

// ParseMode accepts the name of any mode in Modes.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !slices.Contains(Modes, m) {
		return "", errors.Wrapf(ErrUnknownMode, "%q (want one of %v)", s, Modes)
	}
	return m, nil
}

// ParseModes parses a list of mode names, dropping duplicates.
func ParseModes(names []string) ([]Mode, error) {
	var out []Mode
	for _, s := range names {
		m, err := ParseMode(s)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Radix reports whether the mode is one of the radix sorts.
func (m Mode) Radix() bool {
	return m == Sequential || m == SharedMemory || m == Distributed
}

// Workers returns how many threads or ranks a mode uses.
func (m Mode) Workers(threads, ranks int) int {
	switch m {
	case SharedMemory:
		return threads
	case Pargo:
		return runtime.GOMAXPROCS(0)
	case Distributed:
		return ranks
	default:
		return 1
	}
}

// Outcome is one timed sort.
type Outcome struct {
	Elapsed time.Duration
	// Merge is the root's merge time of a distributed sort, not part of
	// Elapsed.
	Merge  time.Duration
	Passes int
}

// SortWith sorts data in place with mode. threads sizes the shared-memory
// and pargo runs; ranks sizes the in-process group of a distributed run.
func SortWith(ctx context.Context, mode Mode, data []uint32, threads, ranks int) (Outcome, error) {
	switch mode {
	case Sequential:
		start := time.Now()
		max := radix.Max(data)
		radix.Sort(data, max)
		return Outcome{Elapsed: time.Since(start), Passes: radix.Passes(max, 10)}, nil

	case SharedMemory:
		start := time.Now()
		stats, err := shm.Sorter{Threads: threads}.Sort(data)
		return Outcome{Elapsed: time.Since(start), Passes: stats.Passes}, err

	case Distributed:
		return sortDistributed(ctx, data, ranks)

	case Pargo:
		start := time.Now()
		psort.Sort(verify.Uint32s(data))
		return Outcome{Elapsed: time.Since(start)}, nil

	case Stdlib:
		start := time.Now()
		slices.Sort(data)
		return Outcome{Elapsed: time.Since(start)}, nil
	}
	return Outcome{}, errors.Wrapf(ErrUnknownMode, "%q", mode)
}

func sortDistributed(ctx context.Context, data []uint32, ranks int) (Outcome, error) {
	comms, err := group.NewLocal(ranks)
	if err != nil {
		return Outcome{}, err
	}
	var root *dist.Result
	err = group.Run(ctx, comms, func(ctx context.Context, c *group.Comm) error {
		var input []uint32
		if c.Rank() == 0 {
			input = data
		}
		res, err := dist.Sort(ctx, c, input, len(data), dist.Options{})
		if err == nil && c.Rank() == 0 {
			root = res
		}
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	copy(data, root.Sorted)
	return Outcome{Elapsed: root.Elapsed, Merge: root.Merge, Passes: root.Passes}, nil
}
