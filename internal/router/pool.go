package router

import "sync"

// Pool is a bounded-concurrency worker pool. Batch AI work (medium tier,
// backfill) runs through it to respect upstream rate limits.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewPool creates a pool allowing at most n concurrent tasks.
func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{sem: make(chan struct{}, n)}
}

// Submit runs fn on a goroutine, blocking while the pool is full.
func (p *Pool) Submit(fn func()) {
	p.wg.Add(1)
	p.sem <- struct{}{}
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()
		fn()
	}()
}

// Wait blocks until all submitted tasks finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
