package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_DrainRunsQueuedWork(t *testing.T) {
	var n atomic.Int32
	p := newWorkerPool(context.Background(), 2, 16, func(_ context.Context, v int32) {
		n.Add(v)
	})
	for i := int32(1); i <= 10; i++ {
		assert.True(t, p.Submit(i))
	}
	p.Drain()

	assert.Equal(t, int32(55), n.Load())
	assert.False(t, p.Submit(1))
	p.Drain()
}

func TestWorkerPool_FullQueue(t *testing.T) {
	block := make(chan struct{})
	p := newWorkerPool(context.Background(), 1, 1, func(_ context.Context, _ int) { <-block })
	defer func() {
		close(block)
		p.Drain()
	}()

	assert.True(t, p.Submit(1))
	assert.Eventually(t, func() bool { return p.Busy() == 1 }, time.Second, time.Millisecond)
	assert.True(t, p.Submit(2))
	assert.False(t, p.Submit(3))
	assert.Equal(t, 1, p.QueueLen())
	assert.Equal(t, 1, p.QueueCap())
}
