// Package verify checks that a sequence is non-decreasing and locates the
// first inversion when it is not.
package verify

import (
	"fmt"
	"slices"

	psort "github.com/exascience/pargo/sort"
)

// Report is the outcome of a check. Index is the position of the first
// element smaller than its predecessor; it is only meaningful when OK is
// false.
type Report struct {
	OK    bool
	Index int
	Prev  uint32
	Next  uint32
}

func (r Report) String() string {
	if r.OK {
		return "sorted"
	}
	return fmt.Sprintf("not sorted at index %d: %d > %d", r.Index, r.Prev, r.Next)
}

// Check reports whether data is non-decreasing. The common sorted case is
// answered by a parallel scan; an unsorted input is rescanned sequentially
// so the reported inversion is always the first one.
func Check(data []uint32) Report {
	if psort.IsSorted(Uint32s(data)) {
		return Report{OK: true}
	}
	return First(data)
}

// First scans data sequentially for the first inversion.
func First(data []uint32) Report {
	for i := 1; i < len(data); i++ {
		if data[i-1] > data[i] {
			return Report{Index: i, Prev: data[i-1], Next: data[i]}
		}
	}
	return Report{OK: true}
}

// Uint32s adapts a []uint32 to the parallel sorting interfaces.
type Uint32s []uint32

func (s Uint32s) SequentialSort(i, j int) { slices.Sort(s[i:j]) }
func (s Uint32s) Len() int                { return len(s) }
func (s Uint32s) Less(i, j int) bool      { return s[i] < s[j] }
func (s Uint32s) Swap(i, j int)           { s[i], s[j] = s[j], s[i] }

func (s Uint32s) NewTemp() psort.StableSorter { return make(Uint32s, len(s)) }

func (s Uint32s) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(Uint32s)
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}
