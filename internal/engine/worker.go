package engine

import (
	"context"
	"sync"
)

// Pool bounds concurrent step execution across a run. A channel semaphore
// of size max_parallel_steps gates dispatch; submissions beyond the bound
// block until a slot frees.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewPool creates a pool with the given max concurrency.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		sem: make(chan struct{}, size),
	}
}

// Go acquires a slot and runs fn in its own goroutine, releasing the slot
// when fn returns. It blocks while the pool is at capacity and returns the
// context error if cancellation fires before a slot is acquired; fn is not
// run in that case.
func (p *Pool) Go(ctx context.Context, fn func()) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()
		fn()
	}()
	return nil
}

// Wait blocks until all submitted work completes.
func (p *Pool) Wait() {
	p.wg.Wait()
}
