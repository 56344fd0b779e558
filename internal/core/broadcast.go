package core

import (
	"errors"
	"sync/atomic"
)

// ErrNoReceivers is returned when a broadcast has nobody to deliver to.
var ErrNoReceivers = errors.New("broadcast has no receivers")

type subscription[T any] struct {
	ch     chan T
	missed atomic.Uint64
}

// broadcaster fans values out to every subscriber. It belongs to one
// goroutine; only subscription channels and counters are shared.
type broadcaster[T any] struct {
	buffer int
	subs   map[*subscription[T]]struct{}
	closed bool
}

func newBroadcaster[T any](buffer int) *broadcaster[T] {
	if buffer <= 0 {
		buffer = 1
	}
	return &broadcaster[T]{
		buffer: buffer,
		subs:   make(map[*subscription[T]]struct{}),
	}
}

func (b *broadcaster[T]) subscribe() *subscription[T] {
	s := &subscription[T]{ch: make(chan T, b.buffer)}
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

func (b *broadcaster[T]) unsubscribe(s *subscription[T]) {
	if _, ok := b.subs[s]; !ok {
		return
	}
	delete(b.subs, s)
	close(s.ch)
}

// publish never blocks: a subscriber whose buffer is full misses v.
func (b *broadcaster[T]) publish(v T) (int, error) {
	if b.closed || len(b.subs) == 0 {
		return 0, ErrNoReceivers
	}
	for s := range b.subs {
		select {
		case s.ch <- v:
		default:
			s.missed.Add(1)
		}
	}
	return len(b.subs), nil
}

func (b *broadcaster[T]) close() {
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
	}
	clear(b.subs)
}
