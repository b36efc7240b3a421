// Package group models a fixed process group that communicates only through
// collective operations. Comm implements the collectives (broadcast,
// scatter, all-reduce, gather, barrier) on top of a tagged point-to-point
// Transport, so coordinator code runs unchanged over the in-process group
// used in tests and over the TCP transport in package netgroup.
package group

import (
	"context"

	"github.com/pkg/errors"
)

// Kind tells what a Message carries.
type Kind uint8

const (
	KindValues Kind = iota
	KindScalar
	KindAbort
)

// Message is the unit of point-to-point traffic. Values are always copied
// between ranks; a receiver never aliases the sender's memory.
type Message struct {
	Tag    uint64
	From   int
	Kind   Kind
	Values []uint32
	Scalar uint64
	Reason string
}

var (
	// ErrAborted is returned by every pending and future operation of a group
	// after any member aborted it.
	ErrAborted = errors.New("process group aborted")
	// ErrInvalidRank is returned for a rank outside [0, size).
	ErrInvalidRank = errors.New("invalid rank")
	// ErrCountMismatch is returned when share counts disagree with the data.
	ErrCountMismatch = errors.New("share counts do not match data")
)

// Transport delivers tagged messages between the members of a fixed group.
// Each (sender, tag) pair carries at most one message per receiver.
type Transport interface {
	Rank() int
	Size() int
	Send(ctx context.Context, to int, m Message) error
	Recv(ctx context.Context, from int, tag uint64) (Message, error)
	// Abort fails every blocked and future Recv on all members.
	Abort(cause error)
	Close() error
}

// AbortError wraps ErrAborted with the cause reported by the aborting rank.
func AbortError(cause error) error {
	if cause == nil {
		return ErrAborted
	}
	return errors.Wrap(ErrAborted, cause.Error())
}

func validRank(rank, size int) error {
	if rank < 0 || rank >= size {
		return errors.Wrapf(ErrInvalidRank, "rank %d of %d", rank, size)
	}
	return nil
}
