package dataflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/nodeflow/internal/metrics"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

// SubGraphExecutor runs nested graphs on behalf of sub-graph instance nodes.
// depth is the nesting level of the scheduler that owns it.
type SubGraphExecutor struct {
	engine *Engine
	depth  int
}

// RunSubGraph implements nodetype.SubGraphRunner. The nested graph runs on a
// brand-new Scheduler with its own caches, seeded from its boundary-input
// and trigger nodes, under the caller's context id.
func (x *SubGraphExecutor) RunSubGraph(ctx context.Context, subGraphID string, inputs map[string]any, callerContextID string) (*nodetype.SubGraphResult, error) {
	e := x.engine
	if x.depth >= e.maxDepth {
		metrics.SubGraphRuns.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("sub-graph %s: %w (limit %d)", subGraphID, ErrDepthExceeded, e.maxDepth)
	}
	if e.provider == nil {
		metrics.SubGraphRuns.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("sub-graph %s: %w", subGraphID, ErrNoGraphProvider)
	}
	g, err := e.provider.Graph(subGraphID)
	if err != nil {
		metrics.SubGraphRuns.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("load sub-graph %s: %w", subGraphID, err)
	}

	logger := e.logger.With("subgraph", subGraphID, "depth", x.depth+1)
	boundary := nodetype.NewBoundaryIO(inputs)
	svc := e.services.WithBoundary(boundary)
	svc.SubGraphs = &SubGraphExecutor{engine: e, depth: x.depth + 1}
	svc.Logger = logger

	s := NewScheduler(g, Options{
		Types:    e.types,
		Services: svc,
		Logger:   logger,
		IDs:      &e.ids,
	})
	cid := callerContextID
	if cid == "" {
		cid = e.ids.Next()
	}
	rep := s.runFrom(ctx, cid)

	diag := &nodetype.Diagnostics{}
	diag.Merge(rep.Diagnostics)
	diag.Nodes = make(map[string]string, len(rep.Statuses))
	for id, st := range rep.Statuses {
		diag.Nodes[id] = string(st.State)
	}

	out := &nodetype.SubGraphResult{Outputs: boundary.Outputs(), Diagnostics: diag}
	switch {
	case rep.Err != nil:
		cause := rep.Err
		var ne *NodeError
		if errors.As(cause, &ne) {
			cause = ne.Err
		}
		out.Err = &SubGraphError{SubGraphID: subGraphID, NodeID: rep.FailedNodeID, Err: cause}
		metrics.SubGraphRuns.WithLabelValues("error").Inc()
	case rep.Stopped:
		metrics.SubGraphRuns.WithLabelValues("stopped").Inc()
	default:
		metrics.SubGraphRuns.WithLabelValues("completed").Inc()
	}
	return out, nil
}
