package dataflow

import (
	"errors"
	"fmt"
)

var (
	// ErrDepthExceeded is returned when sub-graphs nest deeper than allowed.
	ErrDepthExceeded = errors.New("sub-graph nesting too deep")
	// ErrNoGraphProvider is returned when a sub-graph is requested but no
	// provider was configured.
	ErrNoGraphProvider = errors.New("no graph provider configured")
	// ErrNotRunnable is returned by TriggerNode for a node whose inputs are
	// not satisfied.
	ErrNotRunnable = errors.New("node inputs not satisfied")
)

// NodeError is a failure confined to one node.
type NodeError struct {
	NodeID string
	// Phase is where the failure happened: resolve, validate or execute.
	Phase string
	Err   error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Phase, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// SubGraphError surfaces the first failing internal node of a nested run.
type SubGraphError struct {
	SubGraphID string
	NodeID     string
	Err        error
}

func (e *SubGraphError) Error() string {
	return fmt.Sprintf("sub-graph %s: node %s: %v", e.SubGraphID, e.NodeID, e.Err)
}

func (e *SubGraphError) Unwrap() error { return e.Err }
