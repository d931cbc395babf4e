package engine

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/nodeflow/internal/dataflow"
	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunStopped   RunStatus = "stopped"
	RunTimedOut  RunStatus = "timed_out"
)

// Terminal reports whether no further transitions happen.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunStopped, RunTimedOut:
		return true
	}
	return false
}

// Run is a snapshot of one workflow run.
type Run struct {
	ID           string                         `json:"run_id"`
	WorkflowID   string                         `json:"workflow_id"`
	ContextID    string                         `json:"context_id,omitempty"`
	Status       RunStatus                      `json:"status"`
	Inputs       map[string]any                 `json:"inputs,omitempty"`
	Outputs      map[string]any                 `json:"outputs,omitempty"`
	Nodes        map[string]dataflow.NodeStatus `json:"nodes"`
	Error        string                         `json:"error,omitempty"`
	FailedNodeID string                         `json:"failed_node_id,omitempty"`
	Diagnostics  *nodetype.Diagnostics          `json:"diagnostics,omitempty"`
	EnqueuedAt   time.Time                      `json:"enqueued_at"`
	StartedAt    *time.Time                     `json:"started_at,omitempty"`
	FinishedAt   *time.Time                     `json:"finished_at,omitempty"`
	DurationMs   int64                          `json:"duration_ms"`
}

// record is the mutable side of a run. It doubles as the run's observer.
type record struct {
	mu     sync.Mutex
	run    Run
	graph  *graph.Graph
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *record) NodeStatusChanged(nodeID string, st dataflow.NodeStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Nodes[nodeID] = st
}

func (r *record) snapshot() Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := r.run
	cp.Nodes = maps.Clone(r.run.Nodes)
	cp.Outputs = maps.Clone(r.run.Outputs)
	return cp
}

func (r *record) started() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.run.Status = RunRunning
	r.run.StartedAt = &now
}

// finish stores the report and returns the final status.
func (r *record) finish(rep *dataflow.Report, outputs map[string]any, runErr error) RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.run.FinishedAt = &now
	if r.run.StartedAt != nil {
		r.run.DurationMs = now.Sub(*r.run.StartedAt).Milliseconds()
	}
	r.run.ContextID = rep.ContextID
	r.run.Outputs = outputs
	r.run.Diagnostics = rep.Diagnostics
	for id, st := range rep.Statuses {
		r.run.Nodes[id] = st
	}
	switch {
	case errors.Is(runErr, context.DeadlineExceeded):
		r.run.Status = RunTimedOut
	case rep.Stopped:
		r.run.Status = RunStopped
	case rep.Err != nil:
		r.run.Status = RunFailed
	default:
		r.run.Status = RunCompleted
	}
	if rep.Err != nil {
		r.run.Error = rep.Err.Error()
		r.run.FailedNodeID = rep.FailedNodeID
	}
	return r.run.Status
}
