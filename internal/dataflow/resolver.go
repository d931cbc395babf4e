package dataflow

import (
	"fmt"

	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

// TypeLookup resolves node type definitions. *nodetype.Registry satisfies it.
type TypeLookup interface {
	Lookup(nodeType string) (*nodetype.Definition, error)
}

// SourceKind tells where a satisfied input came from.
type SourceKind string

const (
	SourceQueued SourceKind = "queued" // head of a data or signal queue
	SourcePulled SourceKind = "pulled" // current value of a stateful source
)

// Consumed records the specific source an invocation used for one port.
type Consumed struct {
	Kind  SourceKind
	Flow  bool
	Entry Entry
}

// Resolution is the outcome of checking one node's inputs.
type Resolution struct {
	CanExecute bool
	Inputs     map[string]any
	Consumed   map[string]Consumed
	// SatisfiedPortIDs lists every currently satisfied input port.
	SatisfiedPortIDs   []string
	MissingDataPortIDs []string
	// MissingFlowPortIDs lists flow ports that gate the node but have no
	// signal queued.
	MissingFlowPortIDs []string
	// ContextID is inherited from the first consumed source carrying one,
	// in port declaration order.
	ContextID string
}

// FlowPending reports whether a connected flow port is still unsignaled.
func (r Resolution) FlowPending() bool { return len(r.MissingFlowPortIDs) > 0 }

// Resolver decides whether a node can run against the current caches.
// It never mutates the caches.
type Resolver struct {
	graph *graph.Graph
	types TypeLookup
	data  *PortCache
	flow  *PortCache
}

// NewResolver binds a resolver to a graph and its caches.
func NewResolver(g *graph.Graph, types TypeLookup, data, flow *PortCache) *Resolver {
	return &Resolver{graph: g, types: types, data: data, flow: flow}
}

// Resolve looks up a node and its type, then resolves its inputs.
func (r *Resolver) Resolve(nodeID string) (Resolution, error) {
	n, ok := r.graph.Node(nodeID)
	if !ok {
		return Resolution{}, fmt.Errorf("resolve %s: %w", nodeID, graph.ErrNodeNotFound)
	}
	def, err := r.types.Lookup(n.Type)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve %s: %w", nodeID, err)
	}
	return r.ResolveNode(n, def), nil
}

// ResolveNode resolves every input port of n, in declaration order.
func (r *Resolver) ResolveNode(n graph.Node, def *nodetype.Definition) Resolution {
	res := Resolution{
		CanExecute: true,
		Inputs:     make(map[string]any),
		Consumed:   make(map[string]Consumed),
	}
	ports := nodetype.InputPorts(def, n)
	for _, p := range ports {
		if r.resolvePort(n.ID, p, &res) {
			res.SatisfiedPortIDs = append(res.SatisfiedPortIDs, p.ID)
		} else {
			res.CanExecute = false
		}
	}
	for _, p := range ports {
		if c, ok := res.Consumed[p.ID]; ok && c.Entry.ContextID != "" {
			res.ContextID = c.Entry.ContextID
			break
		}
	}
	return res
}

func (r *Resolver) resolvePort(nodeID string, p graph.Port, res *Resolution) bool {
	ref := graph.PortRef{NodeID: nodeID, PortID: p.ID}
	conns := r.graph.Incoming(nodeID, p.ID)

	if !p.Type.IsFlow() {
		if v, src, ok := r.pull(conns, p); ok {
			res.Inputs[p.ID] = v
			res.Consumed[p.ID] = Consumed{Kind: SourcePulled, Entry: Entry{
				Value:        v,
				SourceNodeID: src.NodeID,
				SourcePortID: src.PortID,
			}}
			return true
		}
	}

	if p.Type.IsFlow() {
		if p.AlwaysActive {
			res.Inputs[p.ID] = nodetype.Signal{}
			return true
		}
		if e, ok := r.flow.Peek(ref); ok {
			res.Inputs[p.ID] = e.Value
			res.Consumed[p.ID] = Consumed{Kind: SourceQueued, Flow: true, Entry: e}
			return true
		}
		// An unwired flow port does not gate the node unless required.
		if len(conns) == 0 && !p.Required {
			return true
		}
		res.MissingFlowPortIDs = append(res.MissingFlowPortIDs, p.ID)
		return false
	}

	if e, ok := r.data.Peek(ref); ok {
		res.Inputs[p.ID] = e.Value
		res.Consumed[p.ID] = Consumed{Kind: SourceQueued, Entry: e}
		return true
	}
	if len(conns) > 0 {
		if !p.DataRequiredIfConnected {
			res.Inputs[p.ID] = nil
			return true
		}
	} else if !p.Required {
		return true
	}
	res.MissingDataPortIDs = append(res.MissingDataPortIDs, p.ID)
	return false
}

// pull reads the current value of the first stateful source wired to p that
// can satisfy it.
func (r *Resolver) pull(conns []graph.Connection, p graph.Port) (any, graph.PortRef, bool) {
	for _, c := range conns {
		src, ok := r.graph.Node(c.Source.NodeID)
		if !ok {
			continue
		}
		def, err := r.types.Lookup(src.Type)
		if err != nil {
			continue
		}
		puller, ok := def.Pullable()
		if !ok {
			continue
		}
		v, has := puller.PullState(src)
		if has {
			return v, c.Source, true
		}
		if !p.DataRequiredIfConnected {
			return nil, c.Source, true
		}
	}
	return nil, graph.PortRef{}, false
}
