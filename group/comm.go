package group

import (
	"context"

	"github.com/pkg/errors"
)

// Comm runs collective operations for one member of a group. Every member
// must call the same collectives in the same order; each call consumes one
// sequence tag so messages of consecutive collectives never mix. A Comm is
// not safe for concurrent use.
type Comm struct {
	t   Transport
	seq uint64
}

// NewComm wraps a transport.
func NewComm(t Transport) *Comm {
	return &Comm{t: t}
}

// Rank returns this member's rank.
func (c *Comm) Rank() int { return c.t.Rank() }

// Size returns the number of members.
func (c *Comm) Size() int { return c.t.Size() }

// Transport returns the underlying transport.
func (c *Comm) Transport() Transport { return c.t }

// Abort terminates the whole group.
func (c *Comm) Abort(cause error) { c.t.Abort(cause) }

// Close releases the transport.
func (c *Comm) Close() error { return c.t.Close() }

func (c *Comm) nextTag() uint64 {
	c.seq++
	return c.seq
}

// Bcast distributes root's value v to every member and returns it.
func (c *Comm) Bcast(ctx context.Context, root int, v uint64) (uint64, error) {
	if err := validRank(root, c.Size()); err != nil {
		return 0, err
	}
	tag := c.nextTag()
	if c.Rank() != root {
		m, err := c.t.Recv(ctx, root, tag)
		if err != nil {
			return 0, errors.WithMessage(err, "bcast")
		}
		return m.Scalar, nil
	}
	for r := 0; r < c.Size(); r++ {
		if r == root {
			continue
		}
		if err := c.t.Send(ctx, r, Message{Tag: tag, Kind: KindScalar, Scalar: v}); err != nil {
			return 0, errors.WithMessagef(err, "bcast to rank %d", r)
		}
	}
	return v, nil
}

// Barrier returns once every member has entered it.
func (c *Comm) Barrier(ctx context.Context) error {
	_, err := c.reduce(ctx, 0, func(a, b uint64) uint64 { return 0 })
	return errors.WithMessage(err, "barrier")
}

// AllReduceMax returns the maximum of v over all members, on every member.
func (c *Comm) AllReduceMax(ctx context.Context, v uint32) (uint32, error) {
	m, err := c.reduce(ctx, uint64(v), func(a, b uint64) uint64 {
		if a > b {
			return a
		}
		return b
	})
	if err != nil {
		return 0, errors.WithMessage(err, "allreduce")
	}
	return uint32(m), nil
}

// reduce folds one scalar per member at rank 0 and hands the result back to
// everyone. Both directions share one tag; the (sender, tag) keys differ.
func (c *Comm) reduce(ctx context.Context, v uint64, fold func(a, b uint64) uint64) (uint64, error) {
	tag := c.nextTag()
	if c.Rank() != 0 {
		if err := c.t.Send(ctx, 0, Message{Tag: tag, Kind: KindScalar, Scalar: v}); err != nil {
			return 0, err
		}
		m, err := c.t.Recv(ctx, 0, tag)
		if err != nil {
			return 0, err
		}
		return m.Scalar, nil
	}

	acc := v
	for r := 1; r < c.Size(); r++ {
		m, err := c.t.Recv(ctx, r, tag)
		if err != nil {
			return 0, err
		}
		acc = fold(acc, m.Scalar)
	}
	for r := 1; r < c.Size(); r++ {
		if err := c.t.Send(ctx, r, Message{Tag: tag, Kind: KindScalar, Scalar: acc}); err != nil {
			return 0, err
		}
	}
	return acc, nil
}

// Scatterv splits root's data into len(counts) contiguous shares and hands
// share r to rank r. counts must be identical on every member; data is only
// read on root.
func (c *Comm) Scatterv(ctx context.Context, root int, data []uint32, counts []int) ([]uint32, error) {
	if err := c.checkCounts(root, counts); err != nil {
		return nil, err
	}
	tag := c.nextTag()
	rank := c.Rank()

	if rank != root {
		m, err := c.t.Recv(ctx, root, tag)
		if err != nil {
			return nil, errors.WithMessage(err, "scatter")
		}
		if len(m.Values) != counts[rank] {
			return nil, errors.Wrapf(ErrCountMismatch, "scatter: rank %d expected %d values, got %d", rank, counts[rank], len(m.Values))
		}
		return m.Values, nil
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	if total != len(data) {
		return nil, errors.Wrapf(ErrCountMismatch, "scatter: counts sum to %d, data has %d", total, len(data))
	}

	var own []uint32
	offset := 0
	for r, n := range counts {
		share := data[offset : offset+n]
		offset += n
		if r == root {
			own = make([]uint32, n)
			copy(own, share)
			continue
		}
		if err := c.t.Send(ctx, r, Message{Tag: tag, Kind: KindValues, Values: share}); err != nil {
			return nil, errors.WithMessagef(err, "scatter to rank %d", r)
		}
	}
	return own, nil
}

// Gatherv collects every member's local share at root, laid out contiguously
// in rank order. Non-root members get a nil slice.
func (c *Comm) Gatherv(ctx context.Context, root int, local []uint32, counts []int) ([]uint32, error) {
	if err := c.checkCounts(root, counts); err != nil {
		return nil, err
	}
	tag := c.nextTag()
	rank := c.Rank()

	if len(local) != counts[rank] {
		return nil, errors.Wrapf(ErrCountMismatch, "gather: rank %d holds %d values, expected %d", rank, len(local), counts[rank])
	}
	if rank != root {
		if err := c.t.Send(ctx, root, Message{Tag: tag, Kind: KindValues, Values: local}); err != nil {
			return nil, errors.WithMessage(err, "gather")
		}
		return nil, nil
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	out := make([]uint32, total)
	offset := 0
	for r, n := range counts {
		if r == root {
			copy(out[offset:], local)
		} else {
			m, err := c.t.Recv(ctx, r, tag)
			if err != nil {
				return nil, errors.WithMessagef(err, "gather from rank %d", r)
			}
			if len(m.Values) != n {
				return nil, errors.Wrapf(ErrCountMismatch, "gather: rank %d sent %d values, expected %d", r, len(m.Values), n)
			}
			copy(out[offset:], m.Values)
		}
		offset += n
	}
	return out, nil
}

func (c *Comm) checkCounts(root int, counts []int) error {
	if err := validRank(root, c.Size()); err != nil {
		return err
	}
	if len(counts) != c.Size() {
		return errors.Wrapf(ErrCountMismatch, "%d counts for a group of %d", len(counts), c.Size())
	}
	for r, n := range counts {
		if n < 0 {
			return errors.Wrapf(ErrCountMismatch, "negative count %d for rank %d", n, r)
		}
	}
	return nil
}
