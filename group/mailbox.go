package group

import (
	"context"
	"slices"
	"sync"

	"github.com/alphadose/haxmap"
)

// Mailbox buffers messages for one receiving rank, keyed by (sender, tag).
// Slots are created by whichever side arrives first and dropped once read.
// Transports embed it to implement Recv.
type Mailbox struct {
	slots *haxmap.Map[uint64, chan Message]

	abortOnce sync.Once
	aborted   chan struct{}
	cause     error
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		slots:   haxmap.New[uint64, chan Message](64),
		aborted: make(chan struct{}),
	}
}

// tags occupy the high 48 bits, senders the low 16.
func slotKey(from int, tag uint64) uint64 {
	return tag<<16 | uint64(from)&0xffff
}

func (b *Mailbox) slot(from int, tag uint64) chan Message {
	ch, _ := b.slots.GetOrCompute(slotKey(from, tag), func() chan Message {
		return make(chan Message, 1)
	})
	return ch
}

// Deliver stores m for a later Recv. Values are copied.
func (b *Mailbox) Deliver(ctx context.Context, m Message) error {
	m.Values = slices.Clone(m.Values)
	select {
	case b.slot(m.From, m.Tag) <- m:
		return nil
	case <-b.aborted:
		return AbortError(b.cause)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv blocks until the message from sender with the given tag arrives.
func (b *Mailbox) Recv(ctx context.Context, from int, tag uint64) (Message, error) {
	select {
	case <-b.aborted:
		return Message{}, AbortError(b.cause)
	default:
	}
	select {
	case m := <-b.slot(from, tag):
		b.slots.Del(slotKey(from, tag))
		return m, nil
	case <-b.aborted:
		return Message{}, AbortError(b.cause)
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Abort fails pending and future receives. Only the first cause is kept.
func (b *Mailbox) Abort(cause error) bool {
	first := false
	b.abortOnce.Do(func() {
		b.cause = cause
		close(b.aborted)
		first = true
	})
	return first
}

// Aborted is closed once the mailbox is aborted.
func (b *Mailbox) Aborted() <-chan struct{} { return b.aborted }

// Err returns the abort error, or nil while the mailbox is live.
func (b *Mailbox) Err() error {
	select {
	case <-b.aborted:
		return AbortError(b.cause)
	default:
		return nil
	}
}
