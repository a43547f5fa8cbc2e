package fetch

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultPoolSize is the default number of concurrent page fetches.
const DefaultPoolSize = 10

// Pool is a bounded worker pool shared by every fetch in the process.
// It is sized once at startup and injected into Fetchers; both refs of a
// comparison draw from the same pool.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool creates a pool that runs at most size tasks at once.
func NewPool(size int) *Pool {
	if size < 1 {
		size = DefaultPoolSize
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Size returns the pool width.
func (p *Pool) Size() int {
	return p.size
}

// Submit blocks until a slot is free, then runs fn on its own goroutine.
// It returns an error without running fn if ctx ends first.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer p.sem.Release(1)
		fn()
	}()
	return nil
}
