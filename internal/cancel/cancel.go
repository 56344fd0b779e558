// Package cancel provides the guard used to stop background tasks.
//
// A Guard is held by whoever owns a task; the task itself only sees the
// context returned alongside it. Releasing the guard cancels that context
// exactly once, so owners can release on every exit path without checking
// whether someone else already did.
package cancel

import (
	"context"
	"sync/atomic"
)

// Guard owns the cancellation signal of one background task.
type Guard struct {
	cancel   context.CancelFunc
	released atomic.Bool
}

// New returns a guard and the context the guarded task should watch.
func New(parent context.Context) (*Guard, context.Context) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancelFn := context.WithCancel(parent)
	return &Guard{cancel: cancelFn}, ctx
}

// Release fires the signal. Calling it more than once, or on a nil guard, is a no-op.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	if g.released.CompareAndSwap(false, true) {
		g.cancel()
	}
}

// Released reports whether Release has been called.
func (g *Guard) Released() bool {
	if g == nil {
		return true
	}
	return g.released.Load()
}
