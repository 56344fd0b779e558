package cancel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseCancelsContext(t *testing.T) {
	g, ctx := New(context.Background())
	require.NoError(t, ctx.Err())
	assert.False(t, g.Released())

	g.Release()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after release")
	}
	assert.True(t, g.Released())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestReleaseIsIdempotent(t *testing.T) {
	g, ctx := New(context.Background())
	g.Release()
	g.Release()
	<-ctx.Done()
	assert.True(t, g.Released())
}

func TestNilGuard(t *testing.T) {
	var g *Guard
	assert.NotPanics(t, g.Release)
	assert.True(t, g.Released())
}

func TestParentCancellationPropagates(t *testing.T) {
	parent, stop := context.WithCancel(context.Background())
	g, ctx := New(parent)
	defer g.Release()

	stop()
	<-ctx.Done()
	// The guard itself was never released.
	assert.False(t, g.Released())
}

func TestTaskObservesRelease(t *testing.T) {
	g, ctx := New(context.Background())
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		<-ctx.Done()
	}()

	g.Release()
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("task did not exit")
	}
}
