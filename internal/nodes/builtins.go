// Package nodes holds the built-in node types shipped with the service.
package nodes

import (
	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

// Built-in type tags.
const (
	TypeStart       = "start"
	TypeGraphInput  = "graph_input"
	TypeGraphOutput = "graph_output"
	TypeSubGraph    = "subgraph"
	TypeState       = "state"
	TypeCondition   = "condition"
	TypeTemplate    = "template"
	TypeLLM         = "llm"
)

// Port ids shared by several built-ins.
const (
	PortFlow  = "flow"
	PortValue = "value"
	PortText  = "text"
)

var flowOut = graph.Port{ID: PortFlow, Type: graph.PortTypeFlow}

// flowIn gates a node on an upstream signal when wired.
var flowIn = graph.Port{ID: PortFlow, Type: graph.PortTypeFlow}

// RegisterBuiltins adds every built-in node type to reg.
func RegisterBuiltins(reg *nodetype.Registry) {
	reg.Register(&nodetype.Definition{
		Type:     TypeStart,
		Role:     nodetype.RoleTrigger,
		Outputs:  []graph.Port{flowOut},
		Executor: nodetype.ExecutorFunc(start),
	})
	reg.Register(&nodetype.Definition{
		Type:     TypeGraphInput,
		Role:     nodetype.RoleBoundaryInput,
		Outputs:  []graph.Port{{ID: PortValue, Type: graph.PortTypeAny}, flowOut},
		Executor: nodetype.ExecutorFunc(graphInput),
	})
	reg.Register(&nodetype.Definition{
		Type: TypeGraphOutput,
		Role: nodetype.RoleBoundaryOutput,
		Inputs: []graph.Port{
			flowIn,
			{ID: PortValue, Type: graph.PortTypeAny, Required: true, DataRequiredIfConnected: true},
		},
		Executor: nodetype.ExecutorFunc(graphOutput),
	})
	reg.Register(&nodetype.Definition{
		Type:     TypeSubGraph,
		Executor: nodetype.ExecutorFunc(subGraph),
	})
	reg.Register(&nodetype.Definition{
		Type:     TypeState,
		Inputs:   []graph.Port{flowIn, {ID: "set", Type: graph.PortTypeAny}},
		Outputs:  []graph.Port{{ID: PortValue, Type: graph.PortTypeAny}},
		Executor: stateNode{},
	})
	reg.Register(&nodetype.Definition{
		Type:   TypeCondition,
		Inputs: []graph.Port{flowIn, {ID: PortValue, Type: graph.PortTypeAny}},
		Outputs: []graph.Port{
			{ID: "true", Type: graph.PortTypeFlow},
			{ID: "false", Type: graph.PortTypeFlow},
			{ID: "result", Type: graph.PortTypeBoolean},
		},
		Executor: newCondition(),
	})
	reg.Register(&nodetype.Definition{
		Type:     TypeTemplate,
		Inputs:   []graph.Port{flowIn, {ID: PortValue, Type: graph.PortTypeAny}},
		Outputs:  []graph.Port{{ID: PortText, Type: graph.PortTypeString}, flowOut},
		Executor: nodetype.ExecutorFunc(renderTemplate),
	})
	reg.Register(&nodetype.Definition{
		Type: TypeLLM,
		Inputs: []graph.Port{
			flowIn,
			{ID: "prompt", Type: graph.PortTypeString, Required: true, DataRequiredIfConnected: true},
			{ID: "system", Type: graph.PortTypeString},
		},
		Outputs:  []graph.Port{{ID: PortText, Type: graph.PortTypeString}, flowOut},
		Executor: nodetype.ExecutorFunc(generate),
	})
}

// emits builds a result carrying a signal on every declared flow output
// plus the given data outputs.
func emits(inv *nodetype.Invocation, def []graph.Port, data map[string]any) *nodetype.Result {
	out := make(map[string]any, len(data)+1)
	ports := def
	if len(inv.Node.Outputs) > 0 {
		ports = inv.Node.Outputs
	}
	for _, p := range ports {
		if p.Type.IsFlow() && p.ID == PortFlow {
			out[p.ID] = nodetype.Signal{}
		}
	}
	for k, v := range data {
		out[k] = v
	}
	return &nodetype.Result{Outputs: out}
}
