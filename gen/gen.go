// Package gen produces reproducible pseudo-random sort inputs.
package gen

import (
	"golang.org/x/exp/rand"
)

// Limit is the exclusive upper bound of generated values.
const Limit = 1_000_000_000

// Stream returns the generator a rank derives from a broadcast seed.
// Rank 0 with the same seed yields the sequence Values draws from.
func Stream(seed uint64, rank int) *rand.Rand {
	src := &rand.PCGSource{}
	src.Seed(seed + uint64(rank))
	return rand.New(src)
}

// Values returns n values in [0, Limit) drawn from seed.
func Values(n int, seed uint64) []uint32 {
	return Fill(make([]uint32, n), Stream(seed, 0), Limit)
}

// Fill overwrites data with values in [0, limit) from r and returns it.
func Fill(data []uint32, r *rand.Rand, limit uint32) []uint32 {
	for i := range data {
		data[i] = uint32(r.Uint64n(uint64(limit)))
	}
	return data
}
