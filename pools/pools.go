package pools

import (
	"sync"
)

// maxPooledScratch caps the buffers kept for reuse (64 MiB of uint32).
// Larger scratch buffers are left to the garbage collector.
const maxPooledScratch = 1 << 24

// GlobalPools provides centralized buffer pooling for sort passes
type GlobalPools struct {
	Scratch    sync.Pool
	Histograms sync.Pool
}

// Pools is the global instance of buffer pools
var Pools = &GlobalPools{
	Scratch: sync.Pool{
		New: func() interface{} {
			buf := make([]uint32, 0, 1024)
			return &buf
		},
	},
	Histograms: sync.Pool{
		New: func() interface{} {
			h := make([]int, 0, 256)
			return &h
		},
	},
}

// GetScratch returns a scratch buffer of length n. The contents are not zeroed;
// counting-sort passes overwrite every slot they read.
func (gp *GlobalPools) GetScratch(n int) []uint32 {
	bufPtr := gp.Scratch.Get().(*[]uint32)
	if cap(*bufPtr) < n {
		// Pooled buffer too small, drop it and allocate the exact size
		return make([]uint32, n)
	}
	return (*bufPtr)[:n]
}

// ReturnScratch returns a scratch buffer to the pool
func (gp *GlobalPools) ReturnScratch(buf []uint32) {
	if cap(buf) == 0 || cap(buf) > maxPooledScratch { // Prevent memory bloat
		return
	}
	empty := buf[:0]
	gp.Scratch.Put(&empty)
}

// GetHistogram returns a zeroed histogram with the given number of buckets
func (gp *GlobalPools) GetHistogram(buckets int) []int {
	hPtr := gp.Histograms.Get().(*[]int)
	if cap(*hPtr) < buckets {
		return make([]int, buckets)
	}
	h := (*hPtr)[:buckets]
	clear(h)
	return h
}

// ReturnHistogram returns a histogram to the pool
func (gp *GlobalPools) ReturnHistogram(h []int) {
	if cap(h) == 0 || cap(h) > maxPooledScratch {
		return
	}
	empty := h[:0]
	gp.Histograms.Put(&empty)
}
