package gen

import (
	"slices"
	"testing"
)

func TestValuesDeterministic(t *testing.T) {
	a := Values(1000, 42)
	b := Values(1000, 42)
	if !slices.Equal(a, b) {
		t.Fatal("same seed produced different values")
	}
	if c := Values(1000, 43); slices.Equal(a, c) {
		t.Fatal("different seeds produced identical values")
	}
}

func TestValuesRange(t *testing.T) {
	for i, v := range Values(100000, 7) {
		if v >= Limit {
			t.Fatalf("value %d at index %d out of range", v, i)
		}
	}
}

func TestValuesEmpty(t *testing.T) {
	if got := Values(0, 1); len(got) != 0 {
		t.Fatalf("expected empty slice, got %v", got)
	}
}

func TestStreamOffsetsByRank(t *testing.T) {
	r0 := Stream(100, 1)
	r1 := Stream(101, 0)
	for i := 0; i < 10; i++ {
		if a, b := r0.Uint64(), r1.Uint64(); a != b {
			t.Fatalf("stream(seed, rank) must equal stream(seed+rank, 0): %d != %d", a, b)
		}
	}
}

func TestFillLimit(t *testing.T) {
	data := Fill(make([]uint32, 500), Stream(9, 0), 1000)
	for _, v := range data {
		if v >= 1000 {
			t.Fatalf("value %d not below 1000", v)
		}
	}
}
