// Package dist sorts an array held by one root rank across a process group:
// the root scatters contiguous shares, every rank radix-sorts its share using
// the group-wide maximum, and the root gathers the shares and k-way merges
// them.
package dist

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"github.com/pkg/errors"
	"github.com/toolkits/pkg/logger"
	"golang.org/x/exp/rand"

	"github.com/ChristianF88/pradix/gen"
	"github.com/ChristianF88/pradix/group"
	"github.com/ChristianF88/pradix/merge"
	"github.com/ChristianF88/pradix/partition"
	"github.com/ChristianF88/pradix/radix"
	"github.com/ChristianF88/pradix/verify"
)

// Base is the digit base of the per-rank sort.
const Base = 10

var (
	// ErrLengthMismatch is returned on root when an input is supplied whose
	// length differs from n.
	ErrLengthMismatch = errors.New("input length does not match n")
	// ErrLocalFailure is returned when a rank's local work panics.
	ErrLocalFailure = errors.New("local sort failed")
)

// Options configure one distributed sort.
type Options struct {
	Root int
	// Verify scans the merged output on root.
	Verify bool
	// Seed generates the input on root when none is supplied and, offset by
	// rank, seeds every rank's Stream.
	Seed uint64
}

// Result of a distributed sort. Sorted, Elapsed, Merge, Verified and
// Inversion are only meaningful on root.
type Result struct {
	Sorted []uint32
	// Elapsed covers scatter, local sort and gather.
	Elapsed time.Duration
	// Merge is the time root spent merging the gathered shares.
	Merge time.Duration
	// Verified is false only when verification ran and found an inversion.
	Verified  bool
	Inversion verify.Report
	GlobalMax uint32
	Passes    int
	Share     partition.Share
	// Stream is this rank's generator seeded with the broadcast seed plus
	// its rank.
	Stream *rand.Rand
}

// Sort runs one distributed sort. Every rank of comm must call it with the
// same n and opts; input is only read on root and may be nil there, in which
// case root generates n values from opts.Seed.
//
// Invalid arguments are rejected before any communication. Any later failure
// on any rank aborts the whole group, so every rank returns an error.
func Sort(ctx context.Context, comm *group.Comm, input []uint32, n int, opts Options) (res *Result, err error) {
	table, err := partition.New(n, comm.Size())
	if err != nil {
		return nil, err
	}
	if opts.Root < 0 || opts.Root >= comm.Size() {
		return nil, errors.Wrapf(group.ErrInvalidRank, "root %d of %d", opts.Root, comm.Size())
	}
	rank := comm.Rank()
	isRoot := rank == opts.Root

	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrLocalFailure, "rank %d: %v\n%s", rank, r, debug.Stack())
		}
		if err != nil {
			res = nil
			if !errors.Is(err, group.ErrAborted) {
				comm.Abort(fmt.Errorf("rank %d: %v", rank, err))
			}
		}
	}()

	if isRoot && input != nil && len(input) != n {
		return nil, errors.Wrapf(ErrLengthMismatch, "got %d values, n=%d", len(input), n)
	}

	seed, err := comm.Bcast(ctx, opts.Root, opts.Seed)
	if err != nil {
		return nil, err
	}
	res = &Result{
		Verified: true,
		Share:    table.Share(rank),
		Stream:   gen.Stream(seed, rank),
	}

	var data []uint32
	if isRoot {
		if input != nil {
			data = slices.Clone(input)
		} else {
			data = gen.Values(n, seed)
		}
	}

	if err := comm.Barrier(ctx); err != nil {
		return nil, err
	}
	start := time.Now()

	counts := table.Counts()
	share, err := comm.Scatterv(ctx, opts.Root, data, counts)
	if err != nil {
		return nil, err
	}

	res.GlobalMax, err = comm.AllReduceMax(ctx, radix.Max(share))
	if err != nil {
		return nil, err
	}
	res.Passes = radix.Passes(res.GlobalMax, Base)
	radix.Sort(share, res.GlobalMax)

	gathered, err := comm.Gatherv(ctx, opts.Root, share, counts)
	if err != nil {
		return nil, err
	}
	if !isRoot {
		return res, nil
	}
	res.Elapsed = time.Since(start)

	mergeStart := time.Now()
	res.Sorted = merge.KWay(gathered, table)
	res.Merge = time.Since(mergeStart)

	if opts.Verify {
		res.Inversion = verify.Check(res.Sorted)
		res.Verified = res.Inversion.OK
		if !res.Verified {
			logger.Errorf("distributed sort of %d values over %d ranks: %v", n, comm.Size(), res.Inversion)
		}
	}
	return res, nil
}
