package dataflow

import (
	"slices"
	"time"

	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
	"github.com/gyaneshwarpardhi/nodeflow/internal/metrics"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

// propagate writes the outputs of a finished node into the downstream caches
// and returns invocations for the receivers that became runnable. Receivers
// that are mid-execution are left for their own lane to pick up; the rest get
// a paused or waiting status naming the missing ports.
func (s *Scheduler) propagate(from *Invocation, n graph.Node, def *nodetype.Definition, outputs map[string]any) []*Invocation {
	if len(outputs) == 0 {
		return nil
	}
	cid := from.ContextID
	now := time.Now()
	var (
		targets []string
		seen    = make(map[string]bool)
		pushed  []graph.Connection
	)
	for _, portID := range outputOrder(def, n, outputs) {
		v := outputs[portID]
		for _, c := range s.graph.Outgoing(n.ID, portID) {
			flow, err := s.isFlowInput(c.Target)
			if err == nil && flow && !nodetype.IsSignal(v) {
				continue
			}
			e := Entry{
				Value:        v,
				SourceNodeID: n.ID,
				SourcePortID: portID,
				ContextID:    cid,
				SentAt:       now,
			}
			if flow {
				s.flow.Push(c.Target, e)
			} else {
				s.data.Push(c.Target, e)
			}
			pushed = append(pushed, c)
			if !seen[c.Target.NodeID] {
				seen[c.Target.NodeID] = true
				targets = append(targets, c.Target.NodeID)
			}
		}
	}
	if s.links != nil {
		for _, c := range pushed {
			s.links.LinkStateChanged(c, LinkQueued)
		}
	}

	type blocked struct {
		nodeID string
		res    Resolution
		err    error
	}
	var (
		ready   []*Invocation
		pending []blocked
	)
	s.mu.Lock()
	for _, id := range targets {
		if s.executing[id] {
			continue
		}
		tn, tdef, err := s.lookup(id)
		if err != nil {
			pending = append(pending, blocked{nodeID: id, err: err})
			continue
		}
		inv, res := s.claimLocked(tn, tdef, cid)
		if inv == nil {
			pending = append(pending, blocked{nodeID: id, res: res})
			continue
		}
		inv.pass = from.pass
		s.executing[id] = true
		ready = append(ready, inv)
	}
	s.mu.Unlock()

	for _, inv := range ready {
		s.notifyConsumed(inv)
	}
	for _, b := range pending {
		if b.err != nil {
			s.fail(from.pass, b.nodeID, "", &NodeError{NodeID: b.nodeID, Phase: "resolve", Err: b.err}, nil)
			continue
		}
		s.setStatus(b.nodeID, pendingStatus(b.res))
	}
	return ready
}

// selfTrigger queues one more invocation of the node behind done when inputs
// it did not consume can satisfy it again. The node is still executing, so
// the invocation goes to its backlog and runs next on the same lane.
func (s *Scheduler) selfTrigger(done *Invocation) {
	nodeID := done.NodeID
	s.mu.Lock()
	inv := s.claimQueuedLocked(done)
	if inv != nil {
		s.backlog[nodeID] = append(s.backlog[nodeID], inv)
	}
	s.mu.Unlock()
	if inv == nil {
		return
	}
	s.notifyConsumed(inv)
	metrics.SelfTriggers.Inc()
	s.logger.Debug("node self-triggered", "node", nodeID, "context", inv.ContextID)
}

// outputOrder lists the produced output ports: declared ones first, in
// declaration order, then any undeclared ones sorted.
func outputOrder(def *nodetype.Definition, n graph.Node, outputs map[string]any) []string {
	order := make([]string, 0, len(outputs))
	declared := make(map[string]bool)
	for _, p := range nodetype.OutputPorts(def, n) {
		declared[p.ID] = true
		if _, ok := outputs[p.ID]; ok {
			order = append(order, p.ID)
		}
	}
	var extra []string
	for id := range outputs {
		if !declared[id] {
			extra = append(extra, id)
		}
	}
	slices.Sort(extra)
	return append(order, extra...)
}
