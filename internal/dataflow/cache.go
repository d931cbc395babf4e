package dataflow

import (
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
)

// Entry is one queued value (or flow signal) waiting on an input port.
type Entry struct {
	Value        any
	SourceNodeID string
	SourcePortID string
	ContextID    string
	SentAt       time.Time
}

// PortCache is a set of FIFO queues keyed by downstream (node, port).
type PortCache struct {
	mu     sync.Mutex
	queues map[string]map[string][]Entry // node id → port id → queue
}

// NewPortCache allocates an empty cache.
func NewPortCache() *PortCache {
	return &PortCache{queues: make(map[string]map[string][]Entry)}
}

// Push appends e to the queue of ref.
func (c *PortCache) Push(ref graph.PortRef, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ports, ok := c.queues[ref.NodeID]
	if !ok {
		ports = make(map[string][]Entry)
		c.queues[ref.NodeID] = ports
	}
	ports[ref.PortID] = append(ports[ref.PortID], e)
}

// Peek returns the oldest entry of ref without removing it.
func (c *PortCache) Peek(ref graph.PortRef) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.queues[ref.NodeID][ref.PortID]
	if len(q) == 0 {
		return Entry{}, false
	}
	return q[0], true
}

// Pop removes and returns the oldest entry of ref.
func (c *PortCache) Pop(ref graph.PortRef) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ports := c.queues[ref.NodeID]
	q := ports[ref.PortID]
	if len(q) == 0 {
		return Entry{}, false
	}
	e := q[0]
	q[0] = Entry{}
	if len(q) == 1 {
		delete(ports, ref.PortID)
		if len(ports) == 0 {
			delete(c.queues, ref.NodeID)
		}
	} else {
		ports[ref.PortID] = q[1:]
	}
	return e, true
}

// Len returns the queue length of ref.
func (c *PortCache) Len(ref graph.PortRef) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queues[ref.NodeID][ref.PortID])
}

// Pending returns the number of entries queued on any port of nodeID.
func (c *PortCache) Pending(nodeID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, q := range c.queues[nodeID] {
		n += len(q)
	}
	return n
}
