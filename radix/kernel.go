// Package radix implements the least-significant-digit radix sort used by
// every execution unit: a stable counting-sort kernel over one digit and a
// driver that runs it over increasing digit positions.
package radix

import "fmt"

// MaxBuckets is the largest bucket count a Digit may report.
const MaxBuckets = 256

// Digit selects one digit of an element. Index must return a bucket in
// [0, Buckets()).
type Digit interface {
	Buckets() int
	Index(v uint32) int
}

// Decimal selects the base-10 digit at the given place value (1, 10, 100, ...).
type Decimal struct {
	Place uint64
}

func (d Decimal) Buckets() int { return 10 }

func (d Decimal) Index(v uint32) int {
	return int((uint64(v) / d.Place) % 10)
}

// Byte selects the 8-bit digit starting at bit Shift (0, 8, 16 or 24).
type Byte struct {
	Shift uint
}

func (b Byte) Buckets() int { return 256 }

func (b Byte) Index(v uint32) int {
	return int((v >> b.Shift) & 0xFF)
}

// CountSort stably reorders data by the digit d selects, using scratch as the
// placement buffer. Elements are grouped by ascending bucket and keep their
// relative order inside a bucket.
//
// scratch must be at least len(data) long; it is overwritten.
func CountSort[D Digit](data, scratch []uint32, d D) {
	n := len(data)
	if n <= 1 {
		return
	}
	if len(scratch) < n {
		panic(fmt.Sprintf("radix: scratch length %d is shorter than data length %d", len(scratch), n))
	}
	buckets := d.Buckets()
	if buckets > MaxBuckets {
		panic(fmt.Sprintf("radix: digit reports %d buckets, max is %d", buckets, MaxBuckets))
	}

	// Count occurrences of each digit value
	var counts [MaxBuckets]int
	for _, v := range data {
		counts[d.Index(v)]++
	}

	// Convert counts to prefix sums (starting positions)
	total := 0
	for i := 0; i < buckets; i++ {
		count := counts[i]
		counts[i] = total
		total += count
	}

	// Place elements in input order so equal digits stay stable
	for _, v := range data {
		b := d.Index(v)
		scratch[counts[b]] = v
		counts[b]++
	}

	copy(data, scratch[:n])
}
