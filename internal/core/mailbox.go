package core

import (
	"context"
	"errors"
)

// ErrMailboxClosed is returned when the receiving actor has exited.
var ErrMailboxClosed = errors.New("mailbox closed")

// Mailbox is the sending side of an actor's bounded queue. Messages from one
// sender arrive in the order they were sent.
type Mailbox[T any] struct {
	ch   chan<- T
	done <-chan struct{}
}

func newMailbox[T any](size int) (Mailbox[T], <-chan T, chan struct{}) {
	ch := make(chan T, size)
	done := make(chan struct{})
	return Mailbox[T]{ch: ch, done: done}, ch, done
}

// Send blocks until msg is queued, the owner exits, or ctx ends.
func (m Mailbox[T]) Send(ctx context.Context, msg T) error {
	if m.ch == nil {
		return ErrMailboxClosed
	}
	select {
	case <-m.done:
		return ErrMailboxClosed
	default:
	}

	select {
	case m.ch <- msg:
		return nil
	case <-m.done:
		return ErrMailboxClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the owning actor has exited.
func (m Mailbox[T]) Done() <-chan struct{} {
	return m.done
}
