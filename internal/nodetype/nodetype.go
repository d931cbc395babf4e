// Package nodetype defines the contract between the dataflow engine and the
// pluggable node types it runs: port declarations, executors, the services
// bag handed to executors and the capabilities a type may opt into.
package nodetype

import (
	"context"

	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
)

// Role marks node types the engine treats specially when seeding a run.
type Role string

const (
	RoleNone           Role = ""
	RoleTrigger        Role = "trigger"
	RoleBoundaryInput  Role = "boundary_input"
	RoleBoundaryOutput Role = "boundary_output"
)

// Definition is what the registry knows about one node type.
type Definition struct {
	Type     string
	Role     Role
	Inputs   []graph.Port
	Outputs  []graph.Port
	Executor Executor
}

// Pullable returns the type's pull capability, if it has one.
func (d *Definition) Pullable() (PullableState, bool) {
	p, ok := d.Executor.(PullableState)
	return p, ok
}

// Seeds reports whether nodes of this type start a run on their own.
func (d *Definition) Seeds() bool {
	return d.Role == RoleTrigger || d.Role == RoleBoundaryInput
}

// Executor runs the business logic of a node type. It is called at most once
// per invocation and must return promptly once ctx is done.
type Executor interface {
	Execute(ctx context.Context, inv *Invocation) (*Result, error)
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, inv *Invocation) (*Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, inv *Invocation) (*Result, error) {
	return f(ctx, inv)
}

// PullableState is implemented by executors of stateful source types.
// Downstream ports read the current value on demand; pulling never consumes.
type PullableState interface {
	PullState(node graph.Node) (value any, ok bool)
}

// Invocation is the fully resolved input of one executor call.
type Invocation struct {
	Node      graph.Node
	Inputs    map[string]any
	ContextID string
	Services  *Services
}

// Result is what an executor produced.
type Result struct {
	// Outputs maps output port ids to values. Ports absent from the map
	// emit nothing.
	Outputs map[string]any
	// DataUpdates are merged into the node's data bag.
	DataUpdates map[string]any
	Diagnostics *Diagnostics
	// Error reports a failure without a Go error, e.g. a remote service
	// answering with an error payload.
	Error string
}

// Signal is the token carried on flow ports.
type Signal struct{}

// IsSignal reports whether v is a flow token.
func IsSignal(v any) bool {
	switch v.(type) {
	case Signal, *Signal:
		return true
	}
	return false
}
