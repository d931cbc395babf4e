package nodes

import (
	"context"

	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

// stateNode holds a value in data.value. Downstream ports read it on demand
// and a value arriving on set replaces it.
type stateNode struct{}

func (stateNode) Execute(_ context.Context, inv *nodetype.Invocation) (*nodetype.Result, error) {
	v, ok := inv.Inputs["set"]
	if !ok || v == nil {
		return &nodetype.Result{}, nil
	}
	return &nodetype.Result{DataUpdates: map[string]any{PortValue: v}}, nil
}

func (stateNode) PullState(n graph.Node) (any, bool) {
	v, ok := n.Data[PortValue]
	return v, ok
}
