package group

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGroup(t *testing.T, size int) []*Comm {
	t.Helper()
	comms, err := NewLocal(size)
	require.NoError(t, err)
	return comms
}

func TestNewLocalInvalidSize(t *testing.T) {
	_, err := NewLocal(0)
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestBcast(t *testing.T) {
	for _, size := range []int{1, 2, 5} {
		comms := newGroup(t, size)
		got := make([]uint64, size)
		err := Run(context.Background(), comms, func(ctx context.Context, c *Comm) error {
			var v uint64
			if c.Rank() == size-1 {
				v = 0xdeadbeefcafe
			}
			out, err := c.Bcast(ctx, size-1, v)
			got[c.Rank()] = out
			return err
		})
		require.NoError(t, err)
		for r, v := range got {
			assert.Equal(t, uint64(0xdeadbeefcafe), v, "size %d rank %d", size, r)
		}
	}
}

func TestAllReduceMax(t *testing.T) {
	comms := newGroup(t, 4)
	inputs := []uint32{7, 4_000_000_000, 0, 12}
	got := make([]uint32, 4)
	err := Run(context.Background(), comms, func(ctx context.Context, c *Comm) error {
		m, err := c.AllReduceMax(ctx, inputs[c.Rank()])
		got[c.Rank()] = m
		return err
	})
	require.NoError(t, err)
	for r := range got {
		assert.Equal(t, uint32(4_000_000_000), got[r], "rank %d", r)
	}
}

func TestScatterGatherRoundTrip(t *testing.T) {
	data := []uint32{9, 8, 7, 6, 5, 4, 3}
	counts := []int{3, 2, 2, 0}
	comms := newGroup(t, len(counts))

	shares := make([][]uint32, len(counts))
	var gathered []uint32
	err := Run(context.Background(), comms, func(ctx context.Context, c *Comm) error {
		var in []uint32
		if c.Rank() == 0 {
			in = data
		}
		share, err := c.Scatterv(ctx, 0, in, counts)
		if err != nil {
			return err
		}
		shares[c.Rank()] = share
		out, err := c.Gatherv(ctx, 0, share, counts)
		if c.Rank() == 0 {
			gathered = out
		} else if out != nil {
			return errors.New("non-root received gather output")
		}
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, []uint32{9, 8, 7}, shares[0])
	assert.Equal(t, []uint32{6, 5}, shares[1])
	assert.Equal(t, []uint32{4, 3}, shares[2])
	assert.Empty(t, shares[3])
	assert.Equal(t, data, gathered)
}

func TestScatterCopiesValues(t *testing.T) {
	data := []uint32{1, 2, 3, 4}
	counts := []int{2, 2}
	comms := newGroup(t, 2)
	shares := make([][]uint32, 2)
	err := Run(context.Background(), comms, func(ctx context.Context, c *Comm) error {
		share, err := c.Scatterv(ctx, 0, data, counts)
		shares[c.Rank()] = share
		return err
	})
	require.NoError(t, err)

	shares[0][0] = 100
	shares[1][0] = 100
	assert.Equal(t, []uint32{1, 2, 3, 4}, data)
}

func TestScatterCountMismatch(t *testing.T) {
	comms := newGroup(t, 1)
	_, err := comms[0].Scatterv(context.Background(), 0, []uint32{1, 2, 3}, []int{2})
	require.ErrorIs(t, err, ErrCountMismatch)

	_, err = comms[0].Scatterv(context.Background(), 0, nil, []int{0, 0})
	require.ErrorIs(t, err, ErrCountMismatch)
}

func TestGatherWrongLocalLength(t *testing.T) {
	comms := newGroup(t, 1)
	_, err := comms[0].Gatherv(context.Background(), 0, []uint32{1}, []int{2})
	require.ErrorIs(t, err, ErrCountMismatch)
}

func TestInvalidRoot(t *testing.T) {
	comms := newGroup(t, 2)
	_, err := comms[0].Bcast(context.Background(), 2, 1)
	require.ErrorIs(t, err, ErrInvalidRank)
}

func TestBarrierHoldsUntilAllArrive(t *testing.T) {
	const size = 4
	comms := newGroup(t, size)

	var mu sync.Mutex
	arrived := 0
	seen := make([]int, size)
	err := Run(context.Background(), comms, func(ctx context.Context, c *Comm) error {
		if c.Rank() == size-1 {
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		arrived++
		mu.Unlock()
		if err := c.Barrier(ctx); err != nil {
			return err
		}
		mu.Lock()
		seen[c.Rank()] = arrived
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	for r, n := range seen {
		assert.Equal(t, size, n, "rank %d left the barrier early", r)
	}
}

func TestConsecutiveCollectivesDoNotMix(t *testing.T) {
	comms := newGroup(t, 3)
	got := make([][2]uint64, 3)
	err := Run(context.Background(), comms, func(ctx context.Context, c *Comm) error {
		a, err := c.Bcast(ctx, 0, 11)
		if err != nil {
			return err
		}
		b, err := c.Bcast(ctx, 0, 22)
		got[c.Rank()] = [2]uint64{a, b}
		return err
	})
	require.NoError(t, err)
	for r := range got {
		assert.Equal(t, [2]uint64{11, 22}, got[r])
	}
}

func TestAbortReleasesBlockedMembers(t *testing.T) {
	comms := newGroup(t, 3)
	boom := errors.New("boom")
	err := Run(context.Background(), comms, func(ctx context.Context, c *Comm) error {
		if c.Rank() == 2 {
			return boom
		}
		return c.Barrier(ctx)
	})
	require.ErrorIs(t, err, boom)

	_, err = comms[0].Bcast(context.Background(), 0, 1)
	require.ErrorIs(t, err, ErrAborted)
	assert.Contains(t, err.Error(), "rank 2: boom")
}

func TestRunRecoversPanic(t *testing.T) {
	comms := newGroup(t, 2)
	err := Run(context.Background(), comms, func(ctx context.Context, c *Comm) error {
		if c.Rank() == 1 {
			panic("kaput")
		}
		_, err := c.AllReduceMax(ctx, 1)
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rank 1 panicked: kaput")
}

func TestRecvHonorsContext(t *testing.T) {
	comms := newGroup(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := comms[1].Bcast(ctx, 0, 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
