package lifecycle

import (
	"context"
	"sync"
)

// LoopRunner starts one background loop at a time and stops it on request.
// Start and Stop are idempotent; Stop returns after the loop has exited.
type LoopRunner struct {
	mu      sync.RWMutex
	wg      sync.WaitGroup
	running bool
	cancel  context.CancelFunc
}

func NewLoopRunner() *LoopRunner {
	return &LoopRunner{}
}

// Start runs loop in a new goroutine. The loop's context is cancelled by
// Stop or when parent is done. It returns false when a loop is already
// running.
func (r *LoopRunner) Start(parent context.Context, loop func(ctx context.Context)) bool {
	if loop == nil {
		return false
	}
	if parent == nil {
		parent = context.Background()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.running = true
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		loop(ctx)
	}()
	return true
}

func (r *LoopRunner) Stop() bool {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return false
	}
	cancel := r.cancel
	r.cancel = nil
	r.running = false
	cancel()
	r.mu.Unlock()

	r.wg.Wait()
	return true
}

// Wait blocks until the current loop, if any, has returned.
func (r *LoopRunner) Wait() {
	r.wg.Wait()
}

func (r *LoopRunner) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}
