package nodes

import (
	"context"

	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

func start(_ context.Context, inv *nodetype.Invocation) (*nodetype.Result, error) {
	return emits(inv, []graph.Port{flowOut}, nil), nil
}

// graphInput emits the value supplied for this node when the graph runs
// nested (or with explicit inputs), falling back to data.default.
func graphInput(_ context.Context, inv *nodetype.Invocation) (*nodetype.Result, error) {
	ports := []graph.Port{{ID: PortValue, Type: graph.PortTypeAny}, flowOut}
	if b := inv.Services.Boundary; b != nil {
		if v, ok := b.Input(inv.Node.ID); ok {
			return emits(inv, ports, map[string]any{PortValue: v}), nil
		}
	}
	if v, ok := inv.Node.Data["default"]; ok {
		return emits(inv, ports, map[string]any{PortValue: v}), nil
	}
	return emits(inv, ports, nil), nil
}

func graphOutput(_ context.Context, inv *nodetype.Invocation) (*nodetype.Result, error) {
	if b := inv.Services.Boundary; b != nil {
		b.SetOutput(inv.Node.ID, inv.Inputs[PortValue])
	}
	return &nodetype.Result{}, nil
}
