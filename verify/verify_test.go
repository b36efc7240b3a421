package verify

import (
	"math/rand"
	"slices"
	"testing"

	psort "github.com/exascience/pargo/sort"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name string
		data []uint32
		want Report
	}{
		{"empty", nil, Report{OK: true}},
		{"single", []uint32{4}, Report{OK: true}},
		{"sorted with duplicates", []uint32{1, 1, 2, 2, 9}, Report{OK: true}},
		{"first pair", []uint32{5, 4, 6}, Report{Index: 1, Prev: 5, Next: 4}},
		{"reports first of several", []uint32{1, 3, 2, 9, 0}, Report{Index: 2, Prev: 3, Next: 2}},
		{"last pair", []uint32{1, 2, 3, 0}, Report{Index: 3, Prev: 3, Next: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.data)
			if got != tt.want {
				t.Fatalf("Check(%v) = %+v, want %+v", tt.data, got, tt.want)
			}
		})
	}
}

func TestCheckLargeInput(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	data := make([]uint32, 1<<18)
	for i := range data {
		data[i] = rng.Uint32()
	}
	slices.Sort(data)
	if r := Check(data); !r.OK {
		t.Fatalf("sorted input reported as %v", r)
	}

	data[1000], data[200000] = data[200000], data[1000]
	r := Check(data)
	if r.OK || r.Index != 1001 {
		t.Fatalf("expected first inversion at 1001, got %v", r)
	}
}

func TestReportString(t *testing.T) {
	if s := (Report{OK: true}).String(); s != "sorted" {
		t.Fatalf("got %q", s)
	}
	if s := (Report{Index: 2, Prev: 3, Next: 2}).String(); s != "not sorted at index 2: 3 > 2" {
		t.Fatalf("got %q", s)
	}
}

func TestUint32sSorters(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a := make([]uint32, 50000)
	for i := range a {
		a[i] = rng.Uint32() % 1000
	}
	b := slices.Clone(a)
	want := slices.Clone(a)
	slices.Sort(want)

	psort.Sort(Uint32s(a))
	psort.StableSort(Uint32s(b))
	if !slices.Equal(a, want) || !slices.Equal(b, want) {
		t.Fatal("parallel sorts disagree with slices.Sort")
	}
}
