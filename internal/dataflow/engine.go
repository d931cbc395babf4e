// Package dataflow is the execution engine of the workflow editor: it
// decides which node runs next, with which inputs, how outputs reach their
// dependents, how a node drains its own queued backlog, and how nested
// sub-graphs run as opaque units.
//
// All mutable run state (port caches, executing set, backlogs, statuses)
// lives in a Scheduler value. Nested runs get their own Scheduler, so
// parent and child never share queues.
package dataflow

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

const defaultMaxSubGraphDepth = 8

// Engine creates schedulers that share one node type registry, one context
// id sequence and one services bag.
type Engine struct {
	types    TypeLookup
	provider nodetype.GraphProvider
	services nodetype.Services
	ids      ContextAllocator
	logger   *slog.Logger
	maxDepth int
}

// Option configures an Engine.
type Option func(*Engine)

// WithGraphProvider sets where sub-graph definitions are loaded from.
func WithGraphProvider(p nodetype.GraphProvider) Option {
	return func(e *Engine) { e.provider = p }
}

// WithTextGenerator exposes a language model to node executors.
func WithTextGenerator(m llms.Model) Option {
	return func(e *Engine) { e.services.TextGenerator = m }
}

// WithLogger sets the logger used by the engine and handed to executors.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMaxSubGraphDepth bounds sub-graph nesting.
func WithMaxSubGraphDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// New creates an Engine over the given node types.
func New(types TypeLookup, opts ...Option) *Engine {
	e := &Engine{
		types:    types,
		logger:   slog.Default(),
		maxDepth: defaultMaxSubGraphDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.services.Logger = e.logger
	return e
}

// NewScheduler creates a top-level scheduler for g. obs may be nil and may
// also implement LinkObserver.
func (e *Engine) NewScheduler(g *graph.Graph, obs Observer) *Scheduler {
	svc := e.services
	svc.SubGraphs = &SubGraphExecutor{engine: e}
	return NewScheduler(g, Options{
		Types:    e.types,
		Services: &svc,
		Observer: obs,
		Logger:   e.logger.With("graph", g.ID()),
		IDs:      &e.ids,
	})
}

// Run executes g once from its trigger nodes and returns the settled report.
func (e *Engine) Run(ctx context.Context, g *graph.Graph, obs Observer) *Report {
	return e.NewScheduler(g, obs).Run(ctx)
}

// RunWithInputs runs g like a nested graph invoked from outside: boundary
// input nodes read from inputs and the values written by boundary output
// nodes are returned alongside the report.
func (e *Engine) RunWithInputs(ctx context.Context, g *graph.Graph, inputs map[string]any, obs Observer) (*Report, map[string]any) {
	boundary := nodetype.NewBoundaryIO(inputs)
	svc := e.services.WithBoundary(boundary)
	svc.SubGraphs = &SubGraphExecutor{engine: e}
	s := NewScheduler(g, Options{
		Types:    e.types,
		Services: svc,
		Observer: obs,
		Logger:   e.logger.With("graph", g.ID()),
		IDs:      &e.ids,
	})
	rep := s.Run(ctx)
	return rep, boundary.Outputs()
}

// NextContextID allocates a context id from the engine's sequence.
func (e *Engine) NextContextID() string { return e.ids.Next() }
