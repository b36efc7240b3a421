// Package merge combines sorted shares that sit back to back in one buffer.
package merge

import (
	"container/heap"

	"github.com/ChristianF88/pradix/partition"
)

// linearLimit is the share count up to which a linear scan of the heads
// beats heap maintenance.
const linearLimit = 8

// KWay merges the sorted shares of gathered described by t into a new sorted
// slice. When heads compare equal the share with the lowest index wins.
// gathered is not modified.
func KWay(gathered []uint32, t partition.Table) []uint32 {
	if t.Total() != len(gathered) {
		panic("merge: share table does not cover the buffer")
	}
	out := make([]uint32, 0, len(gathered))
	switch {
	case t.Len() == 0:
		return out
	case t.Len() == 1:
		return append(out, gathered...)
	case t.Len() <= linearLimit:
		return scan(out, gathered, t)
	default:
		return heapMerge(out, gathered, t)
	}
}

// cursor walks one share.
type cursor struct {
	share int
	pos   int
	end   int
}

func cursors(t partition.Table) []cursor {
	cs := make([]cursor, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		s := t.Share(i)
		if s.Count > 0 {
			cs = append(cs, cursor{share: i, pos: s.Offset, end: s.End()})
		}
	}
	return cs
}

func scan(out, data []uint32, t partition.Table) []uint32 {
	cs := cursors(t)
	for len(cs) > 0 {
		best := 0
		for i := 1; i < len(cs); i++ {
			// strict comparison keeps the lowest share on ties
			if data[cs[i].pos] < data[cs[best].pos] {
				best = i
			}
		}
		out = append(out, data[cs[best].pos])
		cs[best].pos++
		if cs[best].pos == cs[best].end {
			cs = append(cs[:best], cs[best+1:]...)
		}
	}
	return out
}

type cursorHeap struct {
	data []uint32
	cs   []cursor
}

func (h *cursorHeap) Len() int { return len(h.cs) }

func (h *cursorHeap) Less(i, j int) bool {
	a, b := h.data[h.cs[i].pos], h.data[h.cs[j].pos]
	if a != b {
		return a < b
	}
	return h.cs[i].share < h.cs[j].share
}

func (h *cursorHeap) Swap(i, j int) { h.cs[i], h.cs[j] = h.cs[j], h.cs[i] }

func (h *cursorHeap) Push(x any) { h.cs = append(h.cs, x.(cursor)) }

func (h *cursorHeap) Pop() any {
	n := len(h.cs) - 1
	c := h.cs[n]
	h.cs = h.cs[:n]
	return c
}

func heapMerge(out, data []uint32, t partition.Table) []uint32 {
	h := &cursorHeap{data: data, cs: cursors(t)}
	heap.Init(h)
	for h.Len() > 0 {
		top := &h.cs[0]
		out = append(out, data[top.pos])
		top.pos++
		if top.pos == top.end {
			heap.Pop(h)
		} else {
			heap.Fix(h, 0)
		}
	}
	return out
}
