package dataflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
	"github.com/gyaneshwarpardhi/nodeflow/internal/metrics"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

// Invocation is a fully resolved, ready-to-run unit of work for one node.
// Its queued inputs have already been removed from the caches.
type Invocation struct {
	NodeID    string
	Inputs    map[string]any
	Consumed  map[string]Consumed
	ContextID string

	pass *pass
}

// pass collects the nodes settled by one root trigger and everything it
// caused. The finalizer only leaves those nodes alone.
type pass struct {
	mu      sync.Mutex
	settled map[string]bool
}

func newPass() *pass { return &pass{settled: make(map[string]bool)} }

func (p *pass) settle(nodeID string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.settled[nodeID] = true
	p.mu.Unlock()
}

func (p *pass) has(nodeID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled[nodeID]
}

// Options configures a Scheduler.
type Options struct {
	Types    TypeLookup
	Services *nodetype.Services
	Observer Observer
	Logger   *slog.Logger
	// IDs is shared with the owning engine so context ids stay unique
	// across nested runs.
	IDs *ContextAllocator
}

// Report summarises a settled run.
type Report struct {
	ContextID string
	Statuses  map[string]NodeStatus
	// Err is the first node error in graph order; FailedNodeID names its node.
	Err          error
	FailedNodeID string
	Diagnostics  *nodetype.Diagnostics
	Stopped      bool
}

// Scheduler owns the port caches of one graph run and enforces that a node
// executes at most one invocation at a time. Invocations arriving for a busy
// node wait in that node's FIFO backlog.
type Scheduler struct {
	graph    *graph.Graph
	types    TypeLookup
	services *nodetype.Services
	observer Observer
	links    LinkObserver
	logger   *slog.Logger
	ids      *ContextAllocator

	mu        sync.Mutex // serialises resolve+consume, executing and backlog
	data      *PortCache
	flow      *PortCache
	resolver  *Resolver
	executing map[string]bool
	backlog   map[string][]*Invocation

	statusMu sync.Mutex
	statuses map[string]NodeStatus
	errs     map[string]*NodeError
	diag     nodetype.Diagnostics
}

// NewScheduler creates an isolated scheduler with empty caches for g.
func NewScheduler(g *graph.Graph, opts Options) *Scheduler {
	s := &Scheduler{
		graph:     g,
		types:     opts.Types,
		services:  opts.Services,
		observer:  opts.Observer,
		logger:    opts.Logger,
		ids:       opts.IDs,
		data:      NewPortCache(),
		flow:      NewPortCache(),
		executing: make(map[string]bool),
		backlog:   make(map[string][]*Invocation),
		statuses:  make(map[string]NodeStatus),
		errs:      make(map[string]*NodeError),
	}
	if s.services == nil {
		s.services = &nodetype.Services{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.ids == nil {
		s.ids = &ContextAllocator{}
	}
	if lo, ok := opts.Observer.(LinkObserver); ok {
		s.links = lo
	}
	s.resolver = NewResolver(g, s.types, s.data, s.flow)
	return s
}

// Graph returns the graph this scheduler runs.
func (s *Scheduler) Graph() *graph.Graph { return s.graph }

// Run seeds every trigger and boundary-input node under one fresh context
// id, waits until everything they transitively trigger has settled, then
// finalizes the status of the nodes that were never reached.
func (s *Scheduler) Run(ctx context.Context) *Report {
	return s.runFrom(ctx, s.ids.Next())
}

func (s *Scheduler) runFrom(ctx context.Context, cid string) *Report {
	start := time.Now()
	s.logger.Debug("run started", "graph", s.graph.ID(), "context", cid)

	p := newPass()
	s.runBatch(ctx, s.seed(cid, p))
	s.finalize(p)

	rep := s.report(cid, ctx.Err() != nil)
	s.logger.Debug("run settled", "graph", s.graph.ID(), "context", cid,
		"duration", time.Since(start), "failed_node", rep.FailedNodeID, "stopped", rep.Stopped)
	return rep
}

// seed claims every node whose type starts a run on its own.
func (s *Scheduler) seed(cid string, p *pass) []*Invocation {
	var ready []*Invocation
	for _, n := range s.graph.Nodes() {
		def, err := s.types.Lookup(n.Type)
		if err != nil || !def.Seeds() {
			continue
		}
		s.mu.Lock()
		inv, res := s.claimLocked(n, def, cid)
		if inv != nil {
			inv.ContextID = cid
			inv.pass = p
			s.executing[n.ID] = true
		}
		s.mu.Unlock()
		if inv == nil {
			s.setStatus(n.ID, pendingStatus(res))
			continue
		}
		s.notifyConsumed(inv)
		ready = append(ready, inv)
	}
	return ready
}

// TriggerNode runs a single node as a user-initiated root trigger under a
// fresh context id. When the node is busy the invocation joins its backlog
// and TriggerNode returns without waiting.
func (s *Scheduler) TriggerNode(ctx context.Context, nodeID string) (string, error) {
	n, def, err := s.lookup(nodeID)
	if err != nil {
		return "", err
	}
	cid := s.ids.Next()

	s.mu.Lock()
	inv, res := s.claimLocked(n, def, cid)
	s.mu.Unlock()
	if inv == nil {
		s.setStatus(nodeID, pendingStatus(res))
		return cid, fmt.Errorf("trigger %s: %w", nodeID, ErrNotRunnable)
	}
	inv.ContextID = cid
	inv.pass = newPass()
	s.notifyConsumed(inv)

	if s.Schedule(ctx, inv) {
		s.finalize(inv.pass)
	}
	return cid, nil
}

// Schedule runs inv, or appends it to the node's backlog when the node is
// already executing. It returns true once the invocation and everything it
// triggered have settled, and false right away when the invocation was
// deferred or ctx is already done.
func (s *Scheduler) Schedule(ctx context.Context, inv *Invocation) bool {
	if inv.pass == nil {
		inv.pass = newPass()
	}
	s.mu.Lock()
	busy := s.executing[inv.NodeID]
	if ctx.Err() != nil {
		s.mu.Unlock()
		if !busy {
			s.settle(inv.pass, inv.NodeID, NodeStatus{State: StateStopped})
		}
		return false
	}
	if busy {
		s.backlog[inv.NodeID] = append(s.backlog[inv.NodeID], inv)
		s.mu.Unlock()
		metrics.BacklogDeferrals.Inc()
		s.logger.Debug("node busy, invocation deferred", "node", inv.NodeID, "context", inv.ContextID)
		return false
	}
	s.executing[inv.NodeID] = true
	s.mu.Unlock()
	s.lane(ctx, inv)
	return true
}

// Push queues a value on an input port as if an upstream node had sent it.
// Flow ports only accept signals.
func (s *Scheduler) Push(target graph.PortRef, value any, contextID string) error {
	flow, err := s.isFlowInput(target)
	if err != nil {
		return err
	}
	if flow && !nodetype.IsSignal(value) {
		return fmt.Errorf("push %s: flow port expects a signal, got %T", target, value)
	}
	e := Entry{Value: value, ContextID: contextID, SentAt: time.Now()}
	if flow {
		s.flow.Push(target, e)
	} else {
		s.data.Push(target, e)
	}
	return nil
}

// lane runs inv and then keeps draining the node's backlog on the same
// goroutine, so a node's invocations are chained rather than raced.
func (s *Scheduler) lane(ctx context.Context, inv *Invocation) {
	for inv != nil {
		s.invoke(ctx, inv)
		inv = s.release(ctx, inv)
	}
}

// release is called when an invocation of nodeID is done. It hands the lane
// to the oldest backlog entry, or to a fresh claim of inputs that queued up
// while the node was busy. Otherwise the node is no longer executing.
func (s *Scheduler) release(ctx context.Context, done *Invocation) *Invocation {
	nodeID := done.NodeID
	s.mu.Lock()
	if ctx.Err() == nil {
		if q := s.backlog[nodeID]; len(q) > 0 {
			next := q[0]
			if len(q) == 1 {
				delete(s.backlog, nodeID)
			} else {
				s.backlog[nodeID] = q[1:]
			}
			s.mu.Unlock()
			return next
		}
		if next := s.claimQueuedLocked(done); next != nil {
			s.mu.Unlock()
			s.notifyConsumed(next)
			return next
		}
	}
	delete(s.backlog, nodeID)
	delete(s.executing, nodeID)
	s.mu.Unlock()
	return nil
}

// runBatch runs simultaneously ready invocations concurrently and joins them.
// Every invocation must already be marked executing.
func (s *Scheduler) runBatch(ctx context.Context, invs []*Invocation) {
	switch {
	case len(invs) == 0:
		return
	case ctx.Err() != nil:
		for _, inv := range invs {
			s.abandon(inv)
		}
		return
	case len(invs) == 1:
		s.lane(ctx, invs[0])
		return
	}
	var wg sync.WaitGroup
	for _, inv := range invs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.lane(ctx, inv)
		}()
	}
	wg.Wait()
}

// abandon drops a claimed invocation after cancellation.
func (s *Scheduler) abandon(inv *Invocation) {
	s.mu.Lock()
	delete(s.backlog, inv.NodeID)
	delete(s.executing, inv.NodeID)
	s.mu.Unlock()
	s.settle(inv.pass, inv.NodeID, NodeStatus{State: StateStopped})
}

// invoke executes one invocation end to end: execute, propagate outputs,
// check for a self-trigger, then run whatever became ready.
func (s *Scheduler) invoke(ctx context.Context, inv *Invocation) {
	n, def, err := s.lookup(inv.NodeID)
	if err != nil {
		s.fail(inv.pass, inv.NodeID, "", &NodeError{NodeID: inv.NodeID, Phase: "resolve", Err: err}, nil)
		return
	}
	if ctx.Err() != nil {
		s.settle(inv.pass, n.ID, NodeStatus{State: StateStopped})
		return
	}

	s.setStatus(n.ID, NodeStatus{
		State:            StateRunning,
		ContextID:        inv.ContextID,
		SatisfiedPortIDs: sortedKeys(inv.Inputs),
	})
	start := time.Now()
	res, err := s.execute(ctx, n, def, inv)
	metrics.NodeInvocationDuration.WithLabelValues(n.Type).Observe(float64(time.Since(start).Microseconds()) / 1000)

	if ctx.Err() != nil {
		metrics.NodeInvocations.WithLabelValues(n.Type, "stopped").Inc()
		s.settle(inv.pass, n.ID, NodeStatus{State: StateStopped})
		return
	}

	var next []*Invocation
	if err != nil {
		var diag *nodetype.Diagnostics
		if res != nil {
			diag = res.Diagnostics
		}
		s.fail(inv.pass, n.ID, n.Type, err, diag)
		s.logger.Error("node failed", "node", n.ID, "type", n.Type, "context", inv.ContextID, "err", err)
	} else {
		if len(res.DataUpdates) > 0 {
			if err := s.graph.UpdateData(n.ID, res.DataUpdates); err != nil {
				s.logger.Warn("data update dropped", "node", n.ID, "err", err)
			}
		}
		s.addDiagnostics(res.Diagnostics)
		metrics.NodeInvocations.WithLabelValues(n.Type, "completed").Inc()
		s.settle(inv.pass, n.ID, NodeStatus{State: StateCompleted, Diagnostics: res.Diagnostics})
		next = s.propagate(inv, n, def, res.Outputs)
	}

	s.selfTrigger(inv)
	s.runBatch(ctx, next)
}

// execute type-checks the inputs and calls the executor, converting every
// failure (including panics) into a *NodeError.
func (s *Scheduler) execute(ctx context.Context, n graph.Node, def *nodetype.Definition, inv *Invocation) (res *nodetype.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &NodeError{NodeID: n.ID, Phase: "execute", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	for _, p := range nodetype.InputPorts(def, n) {
		v, ok := inv.Inputs[p.ID]
		if !ok {
			continue
		}
		if err := nodetype.CheckValue(p.Type, v); err != nil {
			return nil, &NodeError{NodeID: n.ID, Phase: "validate", Err: fmt.Errorf("input %s: %w", p.ID, err)}
		}
	}

	res, err = def.Executor.Execute(ctx, &nodetype.Invocation{
		Node:      n,
		Inputs:    inv.Inputs,
		ContextID: inv.ContextID,
		Services:  s.services,
	})
	if err != nil {
		return res, &NodeError{NodeID: n.ID, Phase: "execute", Err: err}
	}
	if res == nil {
		res = &nodetype.Result{}
	}
	if res.Error != "" {
		return res, &NodeError{NodeID: n.ID, Phase: "execute", Err: errors.New(res.Error)}
	}
	return res, nil
}

// claimLocked resolves n and, when it can run, removes the queued entries it
// used from the caches. Caller holds s.mu.
func (s *Scheduler) claimLocked(n graph.Node, def *nodetype.Definition, fallbackCID string) (*Invocation, Resolution) {
	res := s.resolver.ResolveNode(n, def)
	if !res.CanExecute {
		return nil, res
	}
	inv := &Invocation{
		NodeID:    n.ID,
		Inputs:    res.Inputs,
		Consumed:  res.Consumed,
		ContextID: res.ContextID,
	}
	if inv.ContextID == "" {
		inv.ContextID = fallbackCID
	}
	for portID, c := range res.Consumed {
		if c.Kind != SourceQueued {
			continue
		}
		ref := graph.PortRef{NodeID: n.ID, PortID: portID}
		if c.Flow {
			s.flow.Pop(ref)
		} else {
			s.data.Pop(ref)
		}
	}
	return inv, res
}

// claimQueuedLocked claims the node of prev again only when doing so
// consumes at least one queued entry. Nodes satisfied purely by always-active
// or pulled inputs would otherwise re-trigger forever. The claim belongs to
// prev's pass; entries without a context id run under prev's. Caller holds
// s.mu.
func (s *Scheduler) claimQueuedLocked(prev *Invocation) *Invocation {
	nodeID := prev.NodeID
	if s.data.Pending(nodeID)+s.flow.Pending(nodeID) == 0 {
		return nil
	}
	n, def, err := s.lookup(nodeID)
	if err != nil {
		return nil
	}
	res := s.resolver.ResolveNode(n, def)
	if !res.CanExecute || !consumesQueue(res.Consumed) {
		return nil
	}
	inv, _ := s.claimLocked(n, def, prev.ContextID)
	inv.pass = prev.pass
	return inv
}

func consumesQueue(consumed map[string]Consumed) bool {
	for _, c := range consumed {
		if c.Kind == SourceQueued {
			return true
		}
	}
	return false
}

func (s *Scheduler) lookup(nodeID string) (graph.Node, *nodetype.Definition, error) {
	n, ok := s.graph.Node(nodeID)
	if !ok {
		return graph.Node{}, nil, fmt.Errorf("node %s: %w", nodeID, graph.ErrNodeNotFound)
	}
	def, err := s.types.Lookup(n.Type)
	if err != nil {
		return n, nil, fmt.Errorf("node %s: %w", nodeID, err)
	}
	return n, def, nil
}

func (s *Scheduler) isFlowInput(ref graph.PortRef) (bool, error) {
	n, def, err := s.lookup(ref.NodeID)
	if err != nil {
		return false, err
	}
	p, ok := graph.FindPort(nodetype.InputPorts(def, n), ref.PortID)
	if !ok {
		return false, fmt.Errorf("node %s input %q: %w", ref.NodeID, ref.PortID, graph.ErrPortNotFound)
	}
	return p.Type.IsFlow(), nil
}

// Executing reports whether nodeID currently has an invocation in flight.
func (s *Scheduler) Executing(nodeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executing[nodeID]
}

// BacklogLen returns how many invocations wait for nodeID.
func (s *Scheduler) BacklogLen(nodeID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.backlog[nodeID])
}

// Status returns the current status of a node; idle when never touched.
func (s *Scheduler) Status(nodeID string) NodeStatus {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	st, ok := s.statuses[nodeID]
	if !ok {
		return NodeStatus{State: StateIdle}
	}
	return st
}

// setStatus records a status and notifies the observer when it changed.
func (s *Scheduler) setStatus(nodeID string, st NodeStatus) {
	s.statusMu.Lock()
	prev, had := s.statuses[nodeID]
	s.statuses[nodeID] = st
	s.statusMu.Unlock()
	if had && sameStatus(prev, st) {
		return
	}
	if s.observer != nil {
		s.observer.NodeStatusChanged(nodeID, st)
	}
}

// settle records a terminal status within pass p: that pass's finalizer
// leaves the node alone afterwards.
func (s *Scheduler) settle(p *pass, nodeID string, st NodeStatus) {
	p.settle(nodeID)
	s.setStatus(nodeID, st)
}

func (s *Scheduler) fail(p *pass, nodeID, nodeType string, err error, diag *nodetype.Diagnostics) {
	var ne *NodeError
	if !errors.As(err, &ne) {
		ne = &NodeError{NodeID: nodeID, Phase: "execute", Err: err}
	}
	s.statusMu.Lock()
	if _, ok := s.errs[nodeID]; !ok {
		s.errs[nodeID] = ne
	}
	s.statusMu.Unlock()
	if nodeType != "" {
		metrics.NodeInvocations.WithLabelValues(nodeType, "error").Inc()
	}
	s.addDiagnostics(diag)
	s.settle(p, nodeID, NodeStatus{State: StateError, Error: ne.Err.Error(), Diagnostics: diag})
}

func (s *Scheduler) addDiagnostics(d *nodetype.Diagnostics) {
	if d == nil {
		return
	}
	// Nested node states stay on the instance node's own status; ids of
	// different sub-graph instances would collide in one flat map.
	s.statusMu.Lock()
	s.diag.Merge(&nodetype.Diagnostics{Usage: d.Usage, Thoughts: d.Thoughts})
	s.statusMu.Unlock()
}

func (s *Scheduler) report(cid string, stopped bool) *Report {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	rep := &Report{
		ContextID:   cid,
		Statuses:    make(map[string]NodeStatus, len(s.statuses)),
		Diagnostics: &nodetype.Diagnostics{},
		Stopped:     stopped,
	}
	for id, st := range s.statuses {
		rep.Statuses[id] = st
	}
	rep.Diagnostics.Merge(&s.diag)
	for _, id := range s.graph.NodeIDs() {
		if ne, ok := s.errs[id]; ok {
			rep.Err = ne
			rep.FailedNodeID = id
			break
		}
	}
	return rep
}

func (s *Scheduler) notifyConsumed(inv *Invocation) {
	if s.links == nil {
		return
	}
	for portID, c := range inv.Consumed {
		if c.Kind != SourceQueued {
			continue
		}
		src := graph.PortRef{NodeID: c.Entry.SourceNodeID, PortID: c.Entry.SourcePortID}
		for _, conn := range s.graph.Incoming(inv.NodeID, portID) {
			if conn.Source == src {
				s.links.LinkStateChanged(conn, LinkConsumed)
			}
		}
	}
}

func sameStatus(a, b NodeStatus) bool {
	return a.State == b.State && a.Error == b.Error && a.ContextID == b.ContextID &&
		slices.Equal(a.MissingDataPortIDs, b.MissingDataPortIDs) &&
		slices.Equal(a.MissingFlowPortIDs, b.MissingFlowPortIDs) &&
		a.Diagnostics == b.Diagnostics
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
