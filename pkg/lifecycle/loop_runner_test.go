package lifecycle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunnerStartStop(t *testing.T) {
	r := NewLoopRunner()
	var exited atomic.Bool

	started := make(chan struct{})
	require.True(t, r.Start(context.Background(), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		exited.Store(true)
	}))
	<-started

	assert.True(t, r.Running())
	assert.False(t, r.Start(context.Background(), func(context.Context) {}), "second start must be rejected")

	assert.True(t, r.Stop())
	assert.True(t, exited.Load(), "Stop must wait for the loop to return")
	assert.False(t, r.Running())
	assert.False(t, r.Stop())
}

func TestLoopRunnerParentCancel(t *testing.T) {
	r := NewLoopRunner()
	parent, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	require.True(t, r.Start(parent, func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	}))
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not observe parent cancellation")
	}
	r.Wait()
}

func TestLoopRunnerRejectsNilLoop(t *testing.T) {
	assert.False(t, NewLoopRunner().Start(context.Background(), nil))
}
