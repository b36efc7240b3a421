package group

import (
	"context"

	"github.com/pkg/errors"
)

// ErrInvalidSize is returned for a group with fewer than one member.
var ErrInvalidSize = errors.New("group size must be at least 1")

// local is a group whose members are goroutines of one process.
type local struct {
	boxes []*Mailbox
}

type localTransport struct {
	g    *local
	rank int
}

// NewLocal creates an in-process group of size members and returns one Comm
// per rank. Each Comm must be driven by its own goroutine.
func NewLocal(size int) ([]*Comm, error) {
	if size < 1 {
		return nil, errors.Wrapf(ErrInvalidSize, "got %d", size)
	}
	g := &local{boxes: make([]*Mailbox, size)}
	for i := range g.boxes {
		g.boxes[i] = NewMailbox()
	}
	comms := make([]*Comm, size)
	for r := range comms {
		comms[r] = NewComm(&localTransport{g: g, rank: r})
	}
	return comms, nil
}

func (t *localTransport) Rank() int { return t.rank }
func (t *localTransport) Size() int { return len(t.g.boxes) }

func (t *localTransport) Send(ctx context.Context, to int, m Message) error {
	if err := validRank(to, t.Size()); err != nil {
		return err
	}
	if err := t.g.boxes[t.rank].Err(); err != nil {
		return err
	}
	m.From = t.rank
	return t.g.boxes[to].Deliver(ctx, m)
}

func (t *localTransport) Recv(ctx context.Context, from int, tag uint64) (Message, error) {
	if err := validRank(from, t.Size()); err != nil {
		return Message{}, err
	}
	return t.g.boxes[t.rank].Recv(ctx, from, tag)
}

func (t *localTransport) Abort(cause error) {
	for _, b := range t.g.boxes {
		b.Abort(cause)
	}
}

func (t *localTransport) Close() error { return nil }
