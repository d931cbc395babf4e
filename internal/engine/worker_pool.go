package engine

import (
	"context"
	"sync"
	"sync/atomic"
)

// workerPool is a fixed-size goroutine pool with a bounded input queue.
type workerPool[T any] struct {
	queue  chan T
	handle func(ctx context.Context, t T)
	busy   atomic.Int64
	wg     sync.WaitGroup

	mu     sync.RWMutex // guards closed against Submit racing Drain
	closed bool
}

// newWorkerPool starts n workers reading from a queue of capacity depth.
func newWorkerPool[T any](ctx context.Context, n, depth int, fn func(context.Context, T)) *workerPool[T] {
	if n < 1 {
		n = 1
	}
	p := &workerPool[T]{
		queue:  make(chan T, depth),
		handle: fn,
	}
	for range n {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	}
	return p
}

func (p *workerPool[T]) run(ctx context.Context) {
	for {
		select {
		case t, ok := <-p.queue:
			if !ok {
				return
			}
			p.busy.Add(1)
			p.handle(ctx, t)
			p.busy.Add(-1)
		case <-ctx.Done():
			return
		}
	}
}

// Submit enqueues without blocking and reports false when the queue is full.
func (p *workerPool[T]) Submit(t T) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.queue <- t:
		return true
	default:
		return false
	}
}

// Drain closes the queue and waits for the workers to finish what is queued.
func (p *workerPool[T]) Drain() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *workerPool[T]) QueueLen() int { return len(p.queue) }

func (p *workerPool[T]) QueueCap() int { return cap(p.queue) }

// Busy returns how many workers are handling an item right now.
func (p *workerPool[T]) Busy() int { return int(p.busy.Load()) }
