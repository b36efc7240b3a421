// Package partition splits a global index space into contiguous shares, one
// per execution unit.
package partition

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidLength is returned for a negative element count.
	ErrInvalidLength = errors.New("length must be non-negative")
	// ErrInvalidSize is returned when there are no shares to fill.
	ErrInvalidSize = errors.New("share count must be at least 1")
)

// Share is the contiguous range [Offset, Offset+Count) of the global array
// owned by one execution unit.
type Share struct {
	Offset int
	Count  int
}

// End returns the exclusive upper bound of the share.
func (s Share) End() int {
	return s.Offset + s.Count
}

// Table assigns every global index to exactly one share. Share sizes differ
// by at most one and the first n mod size shares hold the extra element.
type Table struct {
	shares []Share
	total  int
}

// New computes the share table for n elements split across size units.
func New(n, size int) (Table, error) {
	if n < 0 {
		return Table{}, errors.Wrapf(ErrInvalidLength, "n=%d", n)
	}
	if size < 1 {
		return Table{}, errors.Wrapf(ErrInvalidSize, "size=%d", size)
	}

	base := n / size
	rem := n % size
	shares := make([]Share, size)
	offset := 0
	for r := 0; r < size; r++ {
		count := base
		if r < rem {
			count++
		}
		shares[r] = Share{Offset: offset, Count: count}
		offset += count
	}
	return Table{shares: shares, total: n}, nil
}

// MustNew is New for arguments already known to be valid.
func MustNew(n, size int) Table {
	t, err := New(n, size)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of shares.
func (t Table) Len() int {
	return len(t.shares)
}

// Total returns the number of elements covered by the table.
func (t Table) Total() int {
	return t.total
}

// Share returns share i.
func (t Table) Share(i int) Share {
	return t.shares[i]
}

// Counts returns the element count of every share.
func (t Table) Counts() []int {
	counts := make([]int, len(t.shares))
	for i, s := range t.shares {
		counts[i] = s.Count
	}
	return counts
}

// Offsets returns the starting index of every share.
func (t Table) Offsets() []int {
	offsets := make([]int, len(t.shares))
	for i, s := range t.shares {
		offsets[i] = s.Offset
	}
	return offsets
}

// Slice returns share i of data. data must be Total() long.
func (t Table) Slice(data []uint32, i int) []uint32 {
	s := t.shares[i]
	return data[s.Offset:s.End():s.End()]
}

// Owner returns the share that holds global index idx, or -1 if idx is out
// of range.
func (t Table) Owner(idx int) int {
	if idx < 0 || idx >= t.total {
		return -1
	}
	lo, hi := 0, len(t.shares)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if t.shares[mid].Offset <= idx {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	// Zero-size shares share an offset with their successor; skip forward
	for t.shares[lo].Count == 0 {
		lo++
	}
	return lo
}
