package partition

import (
	"errors"
	"testing"
)

func TestNewShareSizes(t *testing.T) {
	for n := 0; n <= 50; n++ {
		for size := 1; size <= 12; size++ {
			table, err := New(n, size)
			if err != nil {
				t.Fatalf("New(%d, %d) returned error: %v", n, size, err)
			}
			if table.Len() != size {
				t.Fatalf("New(%d, %d): expected %d shares, got %d", n, size, size, table.Len())
			}

			sum := 0
			rem := n % size
			for i, c := range table.Counts() {
				sum += c
				want := n / size
				if i < rem {
					want++
				}
				if c != want {
					t.Errorf("New(%d, %d): share %d has %d elements, want %d", n, size, i, c, want)
				}
			}
			if sum != n {
				t.Errorf("New(%d, %d): shares sum to %d", n, size, sum)
			}
		}
	}
}

func TestNewContiguous(t *testing.T) {
	table := MustNew(10, 3)
	offsets := table.Offsets()
	want := []int{0, 4, 7}
	for i := range want {
		if offsets[i] != want[i] {
			t.Errorf("offset %d = %d, want %d", i, offsets[i], want[i])
		}
	}
	if table.Share(2).End() != 10 {
		t.Errorf("last share must end at n, got %d", table.Share(2).End())
	}
}

func TestNewMoreSharesThanElements(t *testing.T) {
	table := MustNew(2, 5)
	counts := table.Counts()
	want := []int{1, 1, 0, 0, 0}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("count %d = %d, want %d", i, counts[i], want[i])
		}
	}
	data := []uint32{7, 8}
	if got := table.Slice(data, 4); len(got) != 0 {
		t.Errorf("empty share should slice to nothing, got %v", got)
	}
}

func TestNewInvalid(t *testing.T) {
	if _, err := New(-1, 4); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("expected ErrInvalidLength, got %v", err)
	}
	if _, err := New(10, 0); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("expected ErrInvalidSize, got %v", err)
	}
}

func TestSliceCapacityIsolated(t *testing.T) {
	data := []uint32{1, 2, 3, 4}
	table := MustNew(4, 2)
	first := table.Slice(data, 0)
	first = append(first, 99)
	if data[2] != 3 {
		t.Error("appending to a share must not overwrite the next share")
	}
	_ = first
}

func TestOwner(t *testing.T) {
	table := MustNew(3, 5) // counts 1,1,1,0,0
	for idx, want := range []int{0, 1, 2} {
		if got := table.Owner(idx); got != want {
			t.Errorf("Owner(%d) = %d, want %d", idx, got, want)
		}
	}
	if table.Owner(3) != -1 || table.Owner(-1) != -1 {
		t.Error("out-of-range index must have no owner")
	}

	table = MustNew(17, 4) // counts 5,4,4,4
	for idx := 0; idx < 17; idx++ {
		owner := table.Owner(idx)
		s := table.Share(owner)
		if idx < s.Offset || idx >= s.End() {
			t.Errorf("Owner(%d) = %d whose range is [%d,%d)", idx, owner, s.Offset, s.End())
		}
	}
}
