package dataflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/nodeflow/internal/dataflow"
	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

type call struct {
	seq    int
	nodeID string
	inputs map[string]any
	cid    string
}

// recorder captures every executor call in start order.
type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) record(inv *nodetype.Invocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{seq: len(r.calls) + 1, nodeID: inv.Node.ID, inputs: inv.Inputs, cid: inv.ContextID})
}

func (r *recorder) of(nodeID string) []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []call
	for _, c := range r.calls {
		if c.nodeID == nodeID {
			out = append(out, c)
		}
	}
	return out
}

func (r *recorder) values(nodeID, portID string) []any {
	var out []any
	for _, c := range r.of(nodeID) {
		out = append(out, c.inputs[portID])
	}
	return out
}

// relay emits a signal on every flow output and, on data outputs, the input
// of the same id or else the data bag entry of the same id.
func relay(rec *recorder) nodetype.ExecutorFunc {
	return func(_ context.Context, inv *nodetype.Invocation) (*nodetype.Result, error) {
		rec.record(inv)
		out := make(map[string]any)
		for _, p := range inv.Node.Outputs {
			switch {
			case p.Type.IsFlow():
				out[p.ID] = nodetype.Signal{}
			case inv.Inputs[p.ID] != nil:
				out[p.ID] = inv.Inputs[p.ID]
			default:
				out[p.ID] = inv.Node.Data[p.ID]
			}
		}
		return &nodetype.Result{Outputs: out}, nil
	}
}

type stateExecutor struct{}

func (stateExecutor) Execute(context.Context, *nodetype.Invocation) (*nodetype.Result, error) {
	return &nodetype.Result{}, nil
}

func (stateExecutor) PullState(n graph.Node) (any, bool) {
	v, ok := n.Data["value"]
	return v, ok
}

// newRegistry registers the node types used across the scheduler tests.
func newRegistry(rec *recorder) *nodetype.Registry {
	reg := nodetype.NewRegistry()
	reg.Register(&nodetype.Definition{
		Type:    "start",
		Role:    nodetype.RoleTrigger,
		Outputs: []graph.Port{{ID: "out", Type: graph.PortTypeFlow}},
		Executor: nodetype.ExecutorFunc(func(_ context.Context, inv *nodetype.Invocation) (*nodetype.Result, error) {
			rec.record(inv)
			return &nodetype.Result{Outputs: map[string]any{"out": nodetype.Signal{}}}, nil
		}),
	})
	reg.Register(&nodetype.Definition{
		Type:    "emit",
		Role:    nodetype.RoleTrigger,
		Outputs: []graph.Port{{ID: "value", Type: graph.PortTypeAny}},
		Executor: nodetype.ExecutorFunc(func(_ context.Context, inv *nodetype.Invocation) (*nodetype.Result, error) {
			rec.record(inv)
			return &nodetype.Result{Outputs: map[string]any{"value": inv.Node.Data["value"]}}, nil
		}),
	})
	reg.Register(&nodetype.Definition{Type: "relay", Executor: relay(rec)})
	reg.Register(&nodetype.Definition{
		Type:    "double",
		Inputs:  []graph.Port{{ID: "in", Type: graph.PortTypeNumber, Required: true, DataRequiredIfConnected: true}},
		Outputs: []graph.Port{{ID: "out", Type: graph.PortTypeNumber}},
		Executor: nodetype.ExecutorFunc(func(_ context.Context, inv *nodetype.Invocation) (*nodetype.Result, error) {
			rec.record(inv)
			f, _ := nodetype.AsFloat(inv.Inputs["in"])
			return &nodetype.Result{Outputs: map[string]any{"out": f * 2}}, nil
		}),
	})
	reg.Register(&nodetype.Definition{
		Type:     "state",
		Outputs:  []graph.Port{{ID: "value", Type: graph.PortTypeAny}},
		Executor: stateExecutor{},
	})
	reg.Register(&nodetype.Definition{
		Type:    "bin",
		Role:    nodetype.RoleBoundaryInput,
		Outputs: []graph.Port{{ID: "value", Type: graph.PortTypeAny}},
		Executor: nodetype.ExecutorFunc(func(_ context.Context, inv *nodetype.Invocation) (*nodetype.Result, error) {
			if inv.Services.Boundary == nil {
				return nil, errors.New("not inside a sub-graph")
			}
			v, _ := inv.Services.Boundary.Input(inv.Node.ID)
			return &nodetype.Result{Outputs: map[string]any{"value": v}}, nil
		}),
	})
	reg.Register(&nodetype.Definition{
		Type:   "bout",
		Role:   nodetype.RoleBoundaryOutput,
		Inputs: []graph.Port{{ID: "value", Type: graph.PortTypeAny, DataRequiredIfConnected: true}},
		Executor: nodetype.ExecutorFunc(func(_ context.Context, inv *nodetype.Invocation) (*nodetype.Result, error) {
			inv.Services.Boundary.SetOutput(inv.Node.ID, inv.Inputs["value"])
			return &nodetype.Result{}, nil
		}),
	})
	reg.Register(&nodetype.Definition{
		Type:    "sub",
		Inputs:  []graph.Port{{ID: "x", Type: graph.PortTypeAny, DataRequiredIfConnected: true}},
		Outputs: []graph.Port{{ID: "y", Type: graph.PortTypeAny}},
		Executor: nodetype.ExecutorFunc(func(ctx context.Context, inv *nodetype.Invocation) (*nodetype.Result, error) {
			rec.record(inv)
			id, _ := inv.Node.Data["graph"].(string)
			res, err := inv.Services.SubGraphs.RunSubGraph(ctx, id, map[string]any{"in": inv.Inputs["x"]}, inv.ContextID)
			if err != nil {
				return nil, err
			}
			if res.Err != nil {
				return &nodetype.Result{Diagnostics: res.Diagnostics}, res.Err
			}
			return &nodetype.Result{Outputs: map[string]any{"y": res.Outputs["out"]}, Diagnostics: res.Diagnostics}, nil
		}),
	})
	return reg
}

func flowPort(id string) graph.Port { return graph.Port{ID: id, Type: graph.PortTypeFlow} }

func dataPort(id string, requiredIfConnected bool) graph.Port {
	return graph.Port{ID: id, Type: graph.PortTypeAny, DataRequiredIfConnected: requiredIfConnected}
}

func addNode(t *testing.T, g *graph.Graph, n graph.Node) {
	t.Helper()
	require.NoError(t, g.AddNode(n))
}

func connect(t *testing.T, g *graph.Graph, from, to string) {
	t.Helper()
	src, dst := splitRef(t, from), splitRef(t, to)
	_, err := g.Connect(graph.Out(src.NodeID, src.PortID), graph.In(dst.NodeID, dst.PortID))
	require.NoError(t, err)
}

func splitRef(t *testing.T, s string) graph.PortRef {
	t.Helper()
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return graph.PortRef{NodeID: s[:i], PortID: s[i+1:]}
		}
	}
	t.Fatalf("bad port ref %q", s)
	return graph.PortRef{}
}

// statusLog keeps every status an observer was told about.
type statusLog struct {
	mu    sync.Mutex
	seen  map[string][]dataflow.State
	links []string
}

func newStatusLog() *statusLog { return &statusLog{seen: make(map[string][]dataflow.State)} }

func (l *statusLog) NodeStatusChanged(nodeID string, st dataflow.NodeStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[nodeID] = append(l.seen[nodeID], st.State)
}

func (l *statusLog) LinkStateChanged(c graph.Connection, st dataflow.LinkState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.links = append(l.links, fmt.Sprintf("%s %s", c.ID, st))
}

func (l *statusLog) states(nodeID string) []dataflow.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]dataflow.State(nil), l.seen[nodeID]...)
}

func (l *statusLog) linkEvents() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.links...)
}
