package dataflow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/nodeflow/internal/dataflow"
	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

type resolverFixture struct {
	g        *graph.Graph
	data     *dataflow.PortCache
	flow     *dataflow.PortCache
	resolver *dataflow.Resolver
}

func newResolverFixture(t *testing.T, build func(g *graph.Graph)) *resolverFixture {
	t.Helper()
	reg := newRegistry(&recorder{})
	g := graph.New("resolve", reg)
	build(g)
	f := &resolverFixture{g: g, data: dataflow.NewPortCache(), flow: dataflow.NewPortCache()}
	f.resolver = dataflow.NewResolver(g, reg, f.data, f.flow)
	return f
}

func TestResolve_AlwaysActiveOnly(t *testing.T) {
	f := newResolverFixture(t, func(g *graph.Graph) {
		addNode(t, g, graph.Node{ID: "tick", Type: "relay", Inputs: []graph.Port{
			{ID: "go", Type: graph.PortTypeFlow, AlwaysActive: true},
		}})
	})

	res, err := f.resolver.Resolve("tick")
	require.NoError(t, err)
	assert.True(t, res.CanExecute)
	assert.Empty(t, res.Consumed)
	assert.Equal(t, nodetype.Signal{}, res.Inputs["go"])
	assert.Equal(t, []string{"go"}, res.SatisfiedPortIDs)
}

func TestResolve_OptionalConnectedData(t *testing.T) {
	f := newResolverFixture(t, func(g *graph.Graph) {
		addNode(t, g, graph.Node{ID: "src", Type: "relay", Outputs: []graph.Port{dataPort("v", false)}})
		addNode(t, g, graph.Node{ID: "opt", Type: "relay", Inputs: []graph.Port{dataPort("v", false)}})
		addNode(t, g, graph.Node{ID: "req", Type: "relay", Inputs: []graph.Port{dataPort("v", true)}})
		connect(t, g, "src.v", "opt.v")
		connect(t, g, "src.v", "req.v")
	})

	res, err := f.resolver.Resolve("opt")
	require.NoError(t, err)
	assert.True(t, res.CanExecute)
	v, present := res.Inputs["v"]
	assert.True(t, present)
	assert.Nil(t, v)
	assert.Empty(t, res.MissingDataPortIDs)
	assert.Empty(t, res.Consumed)

	res, err = f.resolver.Resolve("req")
	require.NoError(t, err)
	assert.False(t, res.CanExecute)
	assert.Equal(t, []string{"v"}, res.MissingDataPortIDs)
}

func TestResolve_UnwiredPorts(t *testing.T) {
	f := newResolverFixture(t, func(g *graph.Graph) {
		addNode(t, g, graph.Node{ID: "n", Type: "relay", Inputs: []graph.Port{
			flowPort("in"),
			dataPort("loose", false),
			{ID: "must", Type: graph.PortTypeString, Required: true},
		}})
	})

	res, err := f.resolver.Resolve("n")
	require.NoError(t, err)
	assert.False(t, res.CanExecute)
	assert.Equal(t, []string{"in", "loose"}, res.SatisfiedPortIDs)
	assert.Equal(t, []string{"must"}, res.MissingDataPortIDs)
	assert.Empty(t, res.MissingFlowPortIDs)
}

func TestResolve_WiredFlowWaitsForSignal(t *testing.T) {
	f := newResolverFixture(t, func(g *graph.Graph) {
		addNode(t, g, graph.Node{ID: "s", Type: "start"})
		addNode(t, g, graph.Node{ID: "b", Type: "relay", Inputs: []graph.Port{flowPort("in")}})
		connect(t, g, "s.out", "b.in")
	})
	ref := graph.PortRef{NodeID: "b", PortID: "in"}

	res, err := f.resolver.Resolve("b")
	require.NoError(t, err)
	assert.False(t, res.CanExecute)
	assert.True(t, res.FlowPending())

	f.flow.Push(ref, dataflow.Entry{Value: nodetype.Signal{}, SourceNodeID: "s", SourcePortID: "out", ContextID: "aa0007"})
	res, err = f.resolver.Resolve("b")
	require.NoError(t, err)
	assert.True(t, res.CanExecute)
	assert.Equal(t, "aa0007", res.ContextID)
	assert.True(t, res.Consumed["in"].Flow)
	// Resolving never consumes.
	assert.Equal(t, 1, f.flow.Len(ref))
}

func TestResolve_FIFOFanIn(t *testing.T) {
	f := newResolverFixture(t, func(g *graph.Graph) {
		addNode(t, g, graph.Node{ID: "a", Type: "relay", Outputs: []graph.Port{dataPort("v", false)}})
		addNode(t, g, graph.Node{ID: "b", Type: "relay", Outputs: []graph.Port{dataPort("v", false)}})
		addNode(t, g, graph.Node{ID: "sum", Type: "relay", Inputs: []graph.Port{dataPort("in", true)}})
		connect(t, g, "a.v", "sum.in")
		connect(t, g, "b.v", "sum.in")
	})
	ref := graph.PortRef{NodeID: "sum", PortID: "in"}
	now := time.Now()
	f.data.Push(ref, dataflow.Entry{Value: 1, SourceNodeID: "a", SentAt: now})
	f.data.Push(ref, dataflow.Entry{Value: 2, SourceNodeID: "b", SentAt: now})
	f.data.Push(ref, dataflow.Entry{Value: 3, SourceNodeID: "a", SentAt: now})

	var got []any
	for range 3 {
		res, err := f.resolver.Resolve("sum")
		require.NoError(t, err)
		require.True(t, res.CanExecute)
		got = append(got, res.Inputs["in"])
		f.data.Pop(ref)
	}
	assert.Equal(t, []any{1, 2, 3}, got)

	res, err := f.resolver.Resolve("sum")
	require.NoError(t, err)
	assert.False(t, res.CanExecute)
}

func TestResolve_PullsStatefulSource(t *testing.T) {
	f := newResolverFixture(t, func(g *graph.Graph) {
		addNode(t, g, graph.Node{ID: "mem", Type: "state", Data: map[string]any{"value": "remembered"}})
		addNode(t, g, graph.Node{ID: "use", Type: "relay", Inputs: []graph.Port{dataPort("in", true)}})
		connect(t, g, "mem.value", "use.in")
	})

	for range 2 {
		res, err := f.resolver.Resolve("use")
		require.NoError(t, err)
		require.True(t, res.CanExecute)
		assert.Equal(t, "remembered", res.Inputs["in"])
		assert.Equal(t, dataflow.SourcePulled, res.Consumed["in"].Kind)
	}
}

func TestResolve_UnknownType(t *testing.T) {
	f := newResolverFixture(t, func(g *graph.Graph) {
		addNode(t, g, graph.Node{ID: "ghost", Type: "nope"})
	})
	_, err := f.resolver.Resolve("ghost")
	assert.ErrorIs(t, err, nodetype.ErrUnknownType)

	_, err = f.resolver.Resolve("missing")
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
}
