package nodetype

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
)

// ErrUnknownType is returned by Lookup for unregistered node types.
var ErrUnknownType = errors.New("unknown node type")

// Registry maps node type tags to their definitions.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition. Panics on duplicate type or a missing executor
// to surface misconfiguration early.
func (r *Registry) Register(d *Definition) {
	if d.Executor == nil {
		panic(fmt.Sprintf("node registry: type %q has no executor", d.Type))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[d.Type]; exists {
		panic(fmt.Sprintf("node registry: duplicate type %q", d.Type))
	}
	r.defs[d.Type] = d
}

// Lookup returns the definition for the given type.
func (r *Registry) Lookup(nodeType string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, nodeType)
	}
	return d, nil
}

// Ports implements graph.PortLookup.
func (r *Registry) Ports(nodeType string) (inputs, outputs []graph.Port, ok bool) {
	d, err := r.Lookup(nodeType)
	if err != nil {
		return nil, nil, false
	}
	return d.Inputs, d.Outputs, true
}

// Types returns all registered type tags, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.defs))
	for k := range r.defs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// InputPorts returns the effective input ports of a node: its own when it
// declares any, otherwise the type's.
func InputPorts(d *Definition, n graph.Node) []graph.Port {
	if len(n.Inputs) > 0 {
		return n.Inputs
	}
	return d.Inputs
}

// OutputPorts is the output-side counterpart of InputPorts.
func OutputPorts(d *Definition, n graph.Node) []graph.Port {
	if len(n.Outputs) > 0 {
		return n.Outputs
	}
	return d.Outputs
}
