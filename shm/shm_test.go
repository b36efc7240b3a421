package shm

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"testing"
	"time"
)

func TestSortLiteralScenarios(t *testing.T) {
	tests := []struct {
		input []uint32
		want  []uint32
	}{
		{[]uint32{}, []uint32{}},
		{[]uint32{5}, []uint32{5}},
		{[]uint32{3, 1, 2}, []uint32{1, 2, 3}},
		{[]uint32{5, 5, 5, 5}, []uint32{5, 5, 5, 5}},
		{[]uint32{10, 0, 100, 7, 7, 3, 999}, []uint32{0, 3, 7, 7, 10, 100, 999}},
		{[]uint32{170, 45, 75, 90, 802, 24, 2, 66}, []uint32{2, 24, 45, 66, 75, 90, 170, 802}},
	}

	for _, tt := range tests {
		// Every thread count from 1 up to the element count, and beyond
		for threads := 1; threads <= len(tt.input)+2; threads++ {
			data := slices.Clone(tt.input)
			if err := Sort(data, threads); err != nil {
				t.Fatalf("Sort(%v, %d) returned error: %v", tt.input, threads, err)
			}
			if !slices.Equal(data, tt.want) {
				t.Errorf("Sort(%v, %d) = %v, want %v", tt.input, threads, data, tt.want)
			}
		}
	}
}

func TestSortRandomMatchesStdSort(t *testing.T) {
	for _, size := range []int{2, 100, 1000, 65537, 200000} {
		for _, threads := range []int{1, 2, 3, 4, 7, 16} {
			t.Run(fmt.Sprintf("n%d_t%d", size, threads), func(t *testing.T) {
				rng := rand.New(rand.NewSource(int64(size*31 + threads)))
				data := make([]uint32, size)
				for i := range data {
					data[i] = uint32(rng.Int31n(1_000_000_000))
				}
				want := slices.Clone(data)
				slices.Sort(want)

				if err := Sort(data, threads); err != nil {
					t.Fatalf("Sort returned error: %v", err)
				}
				if !slices.Equal(data, want) {
					t.Fatal("shared-memory sort disagrees with slices.Sort")
				}
			})
		}
	}
}

func TestSortFullRange(t *testing.T) {
	data := []uint32{0xFFFFFFFF, 0, 0x80000000, 1, 0x7FFFFFFF, 0x00FF00FF}
	if err := Sort(data, 4); err != nil {
		t.Fatal(err)
	}
	want := []uint32{0, 1, 0x00FF00FF, 0x7FFFFFFF, 0x80000000, 0xFFFFFFFF}
	if !slices.Equal(data, want) {
		t.Errorf("got %v, want %v", data, want)
	}
}

func TestSortAllZeroRunsNoPasses(t *testing.T) {
	data := make([]uint32, 100)
	passes := 0
	stats, err := Sorter{Threads: 4, OnPass: func(int, uint, []uint32) { passes++ }}.Sort(data)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Passes != 0 || passes != 0 {
		t.Errorf("expected no passes, stats=%+v hook calls=%d", stats, passes)
	}
}

func TestSortPassCountFollowsMax(t *testing.T) {
	data := []uint32{300, 5, 65535, 12}
	var shifts []uint
	stats, err := Sorter{Threads: 2, OnPass: func(pass int, shift uint, _ []uint32) {
		shifts = append(shifts, shift)
	}}.Sort(data)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Passes != 2 || !slices.Equal(shifts, []uint{0, 8}) {
		t.Errorf("expected 2 passes at shifts [0 8], got %d passes at %v", stats.Passes, shifts)
	}
	if stats.Max != 65535 {
		t.Errorf("expected max 65535, got %d", stats.Max)
	}
}

func TestSortIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	data := make([]uint32, 10000)
	for i := range data {
		data[i] = rng.Uint32()
	}
	if err := Sort(data, 4); err != nil {
		t.Fatal(err)
	}
	once := slices.Clone(data)
	if err := Sort(data, 3); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(once, data) {
		t.Error("re-sorting changed a sorted array")
	}
}

func TestSortInvalidThreads(t *testing.T) {
	for _, threads := range []int{0, -3} {
		err := Sort([]uint32{2, 1}, threads)
		if !errors.Is(err, ErrInvalidThreads) {
			t.Errorf("threads=%d: expected ErrInvalidThreads, got %v", threads, err)
		}
	}
}

func TestSortWorkerFailureAbortsAll(t *testing.T) {
	data := make([]uint32, 1000)
	for i := range data {
		data[i] = uint32(1000 - i)
	}

	done := make(chan error, 1)
	go func() {
		_, err := Sorter{Threads: 4, OnPass: func(int, uint, []uint32) {
			panic("scratch exhausted")
		}}.Sort(data)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrWorkerFailed) {
			t.Errorf("expected ErrWorkerFailed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sort deadlocked after a worker failure")
	}
}

func TestGlobalMax(t *testing.T) {
	if GlobalMax(nil, 4) != 0 {
		t.Error("max of empty input must be 0")
	}
	data := make([]uint32, 10001)
	data[7777] = 123456789
	for _, threads := range []int{0, 1, 3, 64} {
		if got := GlobalMax(data, threads); got != 123456789 {
			t.Errorf("threads=%d: GlobalMax = %d", threads, got)
		}
	}
}

func TestSortMoreThreadsThanElements(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cases := []struct {
		n, threads int
	}{
		{2, 1000},
		{3, 64},
		{7, 7},
		{50000, 8},
	}

	for _, c := range cases {
		data := make([]uint32, c.n)
		for i := range data {
			data[i] = uint32(rng.Int31n(1_000_000_000))
		}
		want := slices.Clone(data)
		slices.Sort(want)

		if got := GlobalMax(data, c.threads); got != want[len(want)-1] {
			t.Errorf("n=%d threads=%d: GlobalMax = %d, want %d", c.n, c.threads, got, want[len(want)-1])
		}
		stats, err := Sorter{Threads: c.threads}.Sort(data)
		if err != nil {
			t.Fatalf("n=%d threads=%d: %v", c.n, c.threads, err)
		}
		if !slices.Equal(data, want) {
			t.Errorf("n=%d threads=%d: output not sorted", c.n, c.threads)
		}
		if stats.Max != want[len(want)-1] {
			t.Errorf("n=%d threads=%d: stats.Max = %d", c.n, c.threads, stats.Max)
		}
	}
}

func TestPrefixSumBucketMajor(t *testing.T) {
	counts := make([]int, 2*buckets)
	// worker 0: two 1s, one 0; worker 1: one 0, one 1
	counts[0*buckets+0] = 1
	counts[0*buckets+1] = 2
	counts[1*buckets+0] = 1
	counts[1*buckets+1] = 1
	prefixSum(counts, 2)

	checks := map[int]int{
		0*buckets + 0: 0, // worker 0, digit 0
		1*buckets + 0: 1, // worker 1, digit 0
		0*buckets + 1: 2, // worker 0, digit 1
		1*buckets + 1: 4, // worker 1, digit 1
	}
	for idx, want := range checks {
		if counts[idx] != want {
			t.Errorf("offset[%d] = %d, want %d", idx, counts[idx], want)
		}
	}
}

func BenchmarkSort(b *testing.B) {
	rng := rand.New(rand.NewSource(42))
	original := make([]uint32, 1_000_000)
	for i := range original {
		original[i] = uint32(rng.Int31n(1_000_000_000))
	}
	data := make([]uint32, len(original))

	for _, threads := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("threads_%d", threads), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				copy(data, original)
				if err := Sort(data, threads); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
