package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

// subGraph runs the graph named by data.graph as one unit. Instance input
// ports feed the internal graph_input nodes named in data.input_map and
// instance output ports read the graph_output nodes named in
// data.output_map. Unmapped ports use the port id as the node id.
func subGraph(ctx context.Context, inv *nodetype.Invocation) (*nodetype.Result, error) {
	id, _ := inv.Node.Data["graph"].(string)
	if id == "" {
		return nil, errors.New("subgraph: data.graph is required")
	}
	if inv.Services.SubGraphs == nil {
		return nil, errors.New("subgraph: no runner available")
	}
	inMap, err := stringMap(inv.Node.Data["input_map"])
	if err != nil {
		return nil, fmt.Errorf("subgraph: input_map: %w", err)
	}
	outMap, err := stringMap(inv.Node.Data["output_map"])
	if err != nil {
		return nil, fmt.Errorf("subgraph: output_map: %w", err)
	}

	inputs := make(map[string]any)
	for _, p := range inv.Node.Inputs {
		v, ok := inv.Inputs[p.ID]
		if !ok || p.Type.IsFlow() {
			continue
		}
		inputs[mapped(inMap, p.ID)] = v
	}

	res, err := inv.Services.SubGraphs.RunSubGraph(ctx, id, inputs, inv.ContextID)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return &nodetype.Result{Diagnostics: res.Diagnostics}, res.Err
	}

	out := make(map[string]any)
	for _, p := range inv.Node.Outputs {
		if p.Type.IsFlow() {
			out[p.ID] = nodetype.Signal{}
			continue
		}
		if v, ok := res.Outputs[mapped(outMap, p.ID)]; ok {
			out[p.ID] = v
		}
	}
	return &nodetype.Result{Outputs: out, Diagnostics: res.Diagnostics}, nil
}

func mapped(m map[string]string, portID string) string {
	if id, ok := m[portID]; ok {
		return id
	}
	return portID
}

// stringMap accepts the shapes a port map takes after YAML or JSON decoding.
func stringMap(v any) (map[string]string, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return m, nil
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, raw := range m {
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%s: expected node id string, got %T", k, raw)
			}
			out[k] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a map, got %T", v)
}
