// Package shm sorts one in-memory array with a fixed pool of worker
// goroutines. Each digit pass runs four barrier-separated phases: local
// histogram, prefix sum, scatter, and copy-back. Workers never lock per
// element; every write target comes from an offset range owned by exactly
// one worker.
package shm

import (
	"runtime/debug"
	"sync"

	"github.com/exascience/pargo/parallel"
	"github.com/pkg/errors"
	"github.com/toolkits/pkg/logger"

	"github.com/ChristianF88/pradix/barrier"
	"github.com/ChristianF88/pradix/partition"
	"github.com/ChristianF88/pradix/pools"
	"github.com/ChristianF88/pradix/radix"
)

const (
	radixBits = 8
	buckets   = 1 << radixBits
	mask      = buckets - 1
)

var (
	// ErrInvalidThreads is returned for a thread count below one.
	ErrInvalidThreads = errors.New("thread count must be at least 1")
	// ErrWorkerFailed is returned when a worker dies mid-sort. The data is
	// left in an unspecified order.
	ErrWorkerFailed = errors.New("sort worker failed")
)

// PassFunc observes the array after a completed digit pass. It runs on
// worker 0 while the other workers only read the array, and must not modify
// it.
type PassFunc func(pass int, shift uint, data []uint32)

// Stats describes a finished sort.
type Stats struct {
	Threads int
	Passes  int
	Max     uint32
}

// Sorter sorts arrays with a fixed number of worker goroutines. The zero
// value is not usable; Threads must be at least 1.
type Sorter struct {
	Threads int
	OnPass  PassFunc
}

// Sort sorts data ascending in place using threads workers.
func Sort(data []uint32, threads int) error {
	_, err := Sorter{Threads: threads}.Sort(data)
	return err
}

// GlobalMax returns the largest element, reduced in parallel over threads
// batches.
func GlobalMax(data []uint32, threads int) uint32 {
	if len(data) == 0 {
		return 0
	}
	if threads < 1 {
		threads = 1
	}
	m := parallel.RangeReduceInt(0, len(data), threads,
		func(low, high int) int {
			return int(radix.Max(data[low:high]))
		},
		func(x, y int) int {
			return max(x, y)
		},
	)
	return uint32(m)
}

// Sort sorts data ascending in place. The worker pool lives for the duration
// of the call and is joined before Sort returns.
func (s Sorter) Sort(data []uint32) (Stats, error) {
	threads := s.Threads
	if threads < 1 {
		return Stats{}, errors.Wrapf(ErrInvalidThreads, "threads=%d", threads)
	}

	stats := Stats{Threads: threads}
	n := len(data)
	if n <= 1 {
		return stats, nil
	}

	stats.Max = GlobalMax(data, threads)
	stats.Passes = radix.Passes(stats.Max, buckets)
	if stats.Passes == 0 {
		return stats, nil
	}

	// Threads are not clamped to n: workers with an empty share still take
	// part in every barrier.
	table := partition.MustNew(n, threads)
	tmp := pools.Pools.GetScratch(n)
	defer pools.Pools.ReturnScratch(tmp)
	counts := make([]int, threads*buckets)
	bar := barrier.New(threads)

	var (
		wg       sync.WaitGroup
		failOnce sync.Once
		failure  error
	)
	fail := func(err error) {
		failOnce.Do(func() {
			failure = err
			bar.Abort(err)
		})
	}

	for tid := 0; tid < threads; tid++ {
		w := &worker{
			tid:     tid,
			threads: threads,
			share:   table.Share(tid),
			passes:  stats.Passes,
			data:    data,
			tmp:     tmp,
			counts:  counts,
			bar:     bar,
			onPass:  s.OnPass,
		}
		wg.Add(1)
		go func() {
			defer func() {
				if p := recover(); p != nil {
					fail(errors.Wrapf(ErrWorkerFailed, "worker %d: %v\n%s", w.tid, p, debug.Stack()))
				}
				wg.Done()
			}()
			if err := w.run(); err != nil {
				fail(err)
			}
		}()
	}
	wg.Wait()

	if failure != nil {
		logger.Errorf("shared-memory sort of %d elements with %d threads aborted: %v", n, threads, failure)
		return stats, failure
	}
	return stats, nil
}

// worker holds one goroutine's view of the shared sort state.
type worker struct {
	tid     int
	threads int
	share   partition.Share
	passes  int

	data   []uint32
	tmp    []uint32
	counts []int // worker-major: counts[tid*buckets+digit]
	bar    *barrier.Barrier
	onPass PassFunc
}

func (w *worker) run() error {
	local := w.counts[w.tid*buckets : (w.tid+1)*buckets]
	own := w.data[w.share.Offset:w.share.End()]

	for pass := 0; pass < w.passes; pass++ {
		shift := uint(pass * radixBits)

		// Histogram phase: private counts over the worker's own share
		clear(local)
		for _, v := range own {
			local[(v>>shift)&mask]++
		}
		if err := w.bar.Wait(); err != nil {
			return err
		}

		// Prefix-sum phase, elected worker only
		if w.tid == 0 {
			prefixSum(w.counts, w.threads)
		}
		if err := w.bar.Wait(); err != nil {
			return err
		}

		// Scatter phase: same walk order as the histogram, private offsets
		for _, v := range own {
			d := (v >> shift) & mask
			w.tmp[local[d]] = v
			local[d]++
		}
		if err := w.bar.Wait(); err != nil {
			return err
		}

		// Copy-back phase: the worker's own contiguous range of tmp
		copy(own, w.tmp[w.share.Offset:w.share.End()])
		if err := w.bar.Wait(); err != nil {
			return err
		}

		if w.tid == 0 && w.onPass != nil {
			w.onPass(pass, shift, w.data)
		}
	}
	return nil
}

// prefixSum turns per-worker histograms into absolute scatter offsets,
// bucket-major then worker-major, so worker t's elements of a bucket land
// right after worker t-1's elements of the same bucket.
func prefixSum(counts []int, threads int) {
	total := 0
	for digit := 0; digit < buckets; digit++ {
		for t := 0; t < threads; t++ {
			idx := t*buckets + digit
			c := counts[idx]
			counts[idx] = total
			total += c
		}
	}
}
