package nodetype

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
)

// Services is the bag of external capabilities handed to executors.
type Services struct {
	// TextGenerator backs AI text generation nodes. May be nil.
	TextGenerator llms.Model
	// SubGraphs runs nested graphs for sub-graph instance nodes.
	SubGraphs SubGraphRunner
	// Boundary carries the values crossing a nested graph's boundary. Nil
	// outside nested runs.
	Boundary *BoundaryIO
	Logger   *slog.Logger
}

// WithBoundary returns a copy of s bound to one nested invocation.
func (s *Services) WithBoundary(b *BoundaryIO) *Services {
	cp := *s
	cp.Boundary = b
	return &cp
}

// Log returns the configured logger or the default one.
func (s *Services) Log() *slog.Logger {
	if s == nil || s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// GraphProvider loads graph definitions by id.
type GraphProvider interface {
	Graph(id string) (*graph.Graph, error)
}

// GraphProviderFunc adapts a function to GraphProvider.
type GraphProviderFunc func(id string) (*graph.Graph, error)

func (f GraphProviderFunc) Graph(id string) (*graph.Graph, error) { return f(id) }

// SubGraphRunner executes a nested graph as one opaque unit.
type SubGraphRunner interface {
	// RunSubGraph feeds inputs (keyed by internal boundary-input node id)
	// into the nested graph and returns the boundary outputs keyed by
	// internal boundary-output node id. The returned error is structural
	// (definition missing, nesting too deep); node failures inside the
	// nested run are reported through SubGraphResult.Err.
	RunSubGraph(ctx context.Context, subGraphID string, inputs map[string]any, callerContextID string) (*SubGraphResult, error)
}

// SubGraphResult is the outcome of one nested run.
type SubGraphResult struct {
	Outputs     map[string]any
	Err         error
	Diagnostics *Diagnostics
}

// BoundaryIO holds the boundary values of one nested invocation.
type BoundaryIO struct {
	mu      sync.Mutex
	inputs  map[string]any
	outputs map[string]any
}

// NewBoundaryIO seeds the boundary with input values keyed by node id.
func NewBoundaryIO(inputs map[string]any) *BoundaryIO {
	return &BoundaryIO{inputs: maps.Clone(inputs), outputs: make(map[string]any)}
}

// Input returns the value supplied for a boundary-input node.
func (b *BoundaryIO) Input(nodeID string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.inputs[nodeID]
	return v, ok
}

// SetOutput records the value written by a boundary-output node. Later
// writes win.
func (b *BoundaryIO) SetOutput(nodeID string, v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputs[nodeID] = v
}

// Outputs returns a copy of all recorded outputs.
func (b *BoundaryIO) Outputs() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.outputs)
}
