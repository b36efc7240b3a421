package radix

import (
	"github.com/ChristianF88/pradix/pools"
)

// PassHook is called after every digit pass with the pass number (from 0),
// the digit that was sorted on and the partially sorted data.
type PassHook func(pass int, d Digit, data []uint32)

// Sort sorts data ascending with base-10 digit passes. max must be the
// largest value that can occur in data; it alone decides how many passes run,
// so a group of workers sorting different shares passes the global maximum.
// If max is 0 or len(data) <= 1 the data is left untouched.
func Sort(data []uint32, max uint32) {
	SortTrace(data, max, nil)
}

// SortTrace is Sort with a hook invoked after every pass.
func SortTrace(data []uint32, max uint32, hook PassHook) {
	if max == 0 || len(data) <= 1 {
		return
	}

	// Allocate scratch buffer once for all passes
	scratch := pools.Pools.GetScratch(len(data))
	defer pools.Pools.ReturnScratch(scratch)

	pass := 0
	for place := uint64(1); uint64(max)/place > 0; place *= 10 {
		d := Decimal{Place: place}
		CountSort(data, scratch, d)
		if hook != nil {
			hook(pass, d, data)
		}
		pass++
	}
}

// SortBytes sorts data ascending with 8-bit digit passes, stopping once max
// has no higher non-zero byte.
func SortBytes(data []uint32, max uint32) {
	if max == 0 || len(data) <= 1 {
		return
	}

	scratch := pools.Pools.GetScratch(len(data))
	defer pools.Pools.ReturnScratch(scratch)

	for shift := uint(0); shift < 32 && max>>shift > 0; shift += 8 {
		CountSort(data, scratch, Byte{Shift: shift})
	}
}

// Max returns the largest element of data, or 0 for an empty slice.
func Max(data []uint32) uint32 {
	var m uint32
	for _, v := range data {
		if v > m {
			m = v
		}
	}
	return m
}

// Passes returns how many digit passes a radix sort in the given base runs
// for a maximum value of max.
func Passes(max uint32, base uint64) int {
	if base < 2 {
		return 0
	}
	passes := 0
	for place := uint64(1); uint64(max)/place > 0; place *= base {
		passes++
	}
	return passes
}
