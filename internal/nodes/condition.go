package nodes

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/gyaneshwarpardhi/nodeflow/internal/expr"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

// condition routes flow to its true or false output depending on
// data.expression, evaluated over inputs.* and data.*.
type condition struct {
	mu       sync.Mutex
	programs map[string]*expr.Program
}

func newCondition() *condition {
	return &condition{programs: make(map[string]*expr.Program)}
}

func (c *condition) program(src string) (*expr.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.programs[src]; ok {
		return p, nil
	}
	p, err := expr.Compile(src)
	if err != nil {
		return nil, err
	}
	c.programs[src] = p
	return p, nil
}

func (c *condition) Execute(_ context.Context, inv *nodetype.Invocation) (*nodetype.Result, error) {
	src, _ := inv.Node.Data["expression"].(string)
	if src == "" {
		return nil, errors.New("condition: data.expression is required")
	}
	p, err := c.program(src)
	if err != nil {
		return nil, err
	}
	inputs := make(map[string]any, len(inv.Inputs))
	for k, v := range inv.Inputs {
		if !nodetype.IsSignal(v) {
			inputs[k] = v
		}
	}
	ok, err := p.Eval(expr.MapScope{"inputs": inputs, "data": maps.Clone(inv.Node.Data)})
	if err != nil {
		return nil, err
	}
	branch := "false"
	if ok {
		branch = "true"
	}
	return &nodetype.Result{Outputs: map[string]any{
		branch:   nodetype.Signal{},
		"result": ok,
	}}, nil
}
