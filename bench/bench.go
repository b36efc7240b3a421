// Package bench times the sort modes against each other and checks them on
// a fixed set of inputs.
package bench

import (
	"context"
	"runtime"
	"slices"
	"time"

	"github.com/pkg/errors"
	"github.com/toolkits/pkg/logger"

	"github.com/ChristianF88/pradix/gen"
	"github.com/ChristianF88/pradix/metrics"
	"github.com/ChristianF88/pradix/radix"
	"github.com/ChristianF88/pradix/verify"
)

// DefaultSizes are the input sizes of a benchmark run.
var DefaultSizes = []int{10_000, 100_000, 1_000_000, 10_000_000}

var ErrInvalidOptions = errors.New("invalid benchmark options")

// Options configure a benchmark run.
type Options struct {
	Sizes   []int
	Modes   []Mode
	Threads int
	Ranks   int
	// Repeat runs every (size, mode) pair this many times and keeps the
	// fastest.
	Repeat int
	Seed   uint64
	Verify bool
}

// Defaults fills unset fields.
func (o *Options) Defaults() {
	if len(o.Sizes) == 0 {
		o.Sizes = DefaultSizes
	}
	if len(o.Modes) == 0 {
		o.Modes = Modes
	}
	if o.Threads == 0 {
		o.Threads = runtime.GOMAXPROCS(0)
	}
	if o.Ranks == 0 {
		o.Ranks = 4
	}
	if o.Repeat == 0 {
		o.Repeat = 1
	}
}

func (o *Options) Validate() error {
	for _, n := range o.Sizes {
		if n < 0 {
			return errors.Wrapf(ErrInvalidOptions, "negative size %d", n)
		}
	}
	if o.Threads < 1 {
		return errors.Wrapf(ErrInvalidOptions, "threads=%d", o.Threads)
	}
	if o.Ranks < 1 {
		return errors.Wrapf(ErrInvalidOptions, "ranks=%d", o.Ranks)
	}
	if o.Repeat < 1 {
		return errors.Wrapf(ErrInvalidOptions, "repeat=%d", o.Repeat)
	}
	for _, m := range o.Modes {
		if _, err := ParseMode(string(m)); err != nil {
			return err
		}
	}
	return nil
}

// Measurement is the best run of one mode on one input size.
type Measurement struct {
	Mode     Mode          `json:"mode"`
	Size     int           `json:"size"`
	Workers  int           `json:"workers"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Merge    time.Duration `json:"merge_ns,omitempty"`
	Passes   int           `json:"passes"`
	Verified bool          `json:"verified"`
}

// Throughput returns sorted elements per second.
func (m Measurement) Throughput() float64 {
	if m.Elapsed <= 0 {
		return 0
	}
	return float64(m.Size) / m.Elapsed.Seconds()
}

// Observer is told about every finished measurement; done counts from 1 to
// total.
type Observer func(done, total int, m Measurement)

// Run benchmarks every mode on every size. Each size uses one generated
// input; every mode sorts its own copy.
func Run(ctx context.Context, opts Options, observe Observer) ([]Measurement, error) {
	opts.Defaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	total := len(opts.Sizes) * len(opts.Modes)
	out := make([]Measurement, 0, total)
	for _, n := range opts.Sizes {
		input := gen.Values(n, opts.Seed)
		work := make([]uint32, n)
		for _, mode := range opts.Modes {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			m := Measurement{Mode: mode, Size: n, Workers: mode.Workers(opts.Threads, opts.Ranks), Verified: true}
			for rep := 0; rep < opts.Repeat; rep++ {
				copy(work, input)
				o, err := SortWith(ctx, mode, work, opts.Threads, opts.Ranks)
				if err != nil {
					return out, errors.WithMessagef(err, "%s sort of %d values", mode, n)
				}
				if rep == 0 || o.Elapsed < m.Elapsed {
					m.Elapsed, m.Merge, m.Passes = o.Elapsed, o.Merge, o.Passes
				}
				if opts.Verify {
					if r := verify.Check(work); !r.OK {
						m.Verified = false
						metrics.VerificationFailed(string(mode))
						logger.Errorf("%s sort of %d values: %v", mode, n, r)
					}
				}
			}
			metrics.ObserveSort(string(mode), n, m.Elapsed, m.Passes)
			logger.Debugf("%s n=%d workers=%d elapsed=%s", mode, n, m.Workers, m.Elapsed)

			out = append(out, m)
			if observe != nil {
				observe(len(out), total, m)
			}
		}
	}
	return out, nil
}

// Case is a named correctness input.
type Case struct {
	Name  string
	Input []uint32
}

// Cases are the fixed correctness inputs.
var Cases = []Case{
	{"empty", []uint32{}},
	{"single", []uint32{5}},
	{"three", []uint32{3, 1, 2}},
	{"sorted", []uint32{1, 2, 3, 4}},
	{"reversed", []uint32{4, 3, 2, 1}},
	{"duplicates", []uint32{5, 5, 5, 5}},
	{"mixed", []uint32{10, 0, 100, 7, 7, 3, 999}},
	{"classic", []uint32{170, 45, 75, 90, 802, 24, 2, 66}},
}

// CaseResult is the outcome of one case under one mode.
type CaseResult struct {
	Case string   `json:"case"`
	Mode Mode     `json:"mode"`
	Got  []uint32 `json:"got"`
	Want []uint32 `json:"want"`
	OK   bool     `json:"ok"`
}

// Correctness sorts every case with every radix mode and compares the
// output against slices.Sort. A mismatch is reported in the results, not as
// an error.
func Correctness(ctx context.Context, modes []Mode, threads, ranks int) ([]CaseResult, error) {
	var out []CaseResult
	for _, c := range Cases {
		want := slices.Clone(c.Input)
		slices.Sort(want)
		for _, mode := range modes {
			got := slices.Clone(c.Input)
			if _, err := SortWith(ctx, mode, got, threads, ranks); err != nil {
				return out, errors.WithMessagef(err, "case %s", c.Name)
			}
			out = append(out, CaseResult{
				Case: c.Name,
				Mode: mode,
				Got:  got,
				Want: want,
				OK:   slices.Equal(got, want),
			})
		}
	}
	return out, nil
}

// Pass is the state of the data after one digit pass.
type Pass struct {
	Place uint64   `json:"place"`
	Data  []uint32 `json:"data"`
}

// Trace records a small sequential sort pass by pass.
type Trace struct {
	Input  []uint32 `json:"input"`
	Passes []Pass   `json:"passes"`
	Output []uint32 `json:"output"`
}

// Sample sorts n values in [0, 1000) drawn from seed and records every pass.
func Sample(n int, seed uint64) Trace {
	data := gen.Fill(make([]uint32, n), gen.Stream(seed, 0), 1000)
	tr := Trace{Input: slices.Clone(data)}
	radix.SortTrace(data, radix.Max(data), func(_ int, d radix.Digit, snapshot []uint32) {
		tr.Passes = append(tr.Passes, Pass{Place: d.(radix.Decimal).Place, Data: slices.Clone(snapshot)})
	})
	tr.Output = data
	return tr
}
