// Package engine runs workflows from the library on a bounded worker pool
// and keeps the outcome of recent runs for inspection.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/nodeflow/internal/config"
	"github.com/gyaneshwarpardhi/nodeflow/internal/dataflow"
	"github.com/gyaneshwarpardhi/nodeflow/internal/metrics"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

var (
	ErrQueueFull   = errors.New("run queue full")
	ErrRunNotFound = errors.New("run not found")
)

// maxRetainedRuns bounds how many finished runs Get can still report.
const maxRetainedRuns = 1000

// Service accepts run requests and executes them on a worker pool.
type Service struct {
	flow   *dataflow.Engine
	graphs nodetype.GraphProvider
	pool   *workerPool[*record]
	conf   config.EngineConf
	base   context.Context
	logger *slog.Logger

	mu       sync.Mutex
	runs     map[string]*record
	finished []string // oldest first
}

// New starts the worker pool. ctx bounds the lifetime of every run.
func New(ctx context.Context, flow *dataflow.Engine, graphs nodetype.GraphProvider, conf config.EngineConf, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		flow:   flow,
		graphs: graphs,
		conf:   conf,
		base:   ctx,
		logger: logger,
		runs:   make(map[string]*record),
	}
	s.pool = newWorkerPool(ctx, conf.RunWorkers, conf.QueueDepth, s.execute)
	return s
}

// RunSync runs a workflow and waits for it to settle. When ctx ends first
// the run is cancelled and ctx's error returned.
func (s *Service) RunSync(ctx context.Context, workflowID string, inputs map[string]any) (*Run, error) {
	rec, err := s.enqueue(workflowID, inputs)
	if err != nil {
		return nil, err
	}
	select {
	case <-rec.done:
		run := rec.snapshot()
		return &run, nil
	case <-ctx.Done():
		rec.cancel()
		return nil, ctx.Err()
	}
}

// RunAsync enqueues a workflow run and returns its id without waiting.
func (s *Service) RunAsync(workflowID string, inputs map[string]any) (string, error) {
	rec, err := s.enqueue(workflowID, inputs)
	if err != nil {
		return "", err
	}
	return rec.run.ID, nil
}

// Get returns a snapshot of a run.
func (s *Service) Get(runID string) (Run, error) {
	s.mu.Lock()
	rec, ok := s.runs[runID]
	s.mu.Unlock()
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return rec.snapshot(), nil
}

// Cancel stops a queued or running run. Nodes in flight settle as stopped.
func (s *Service) Cancel(runID string) error {
	s.mu.Lock()
	rec, ok := s.runs[runID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	rec.cancel()
	s.logger.Info("run cancel requested", "run", runID)
	return nil
}

// QueueUtilization returns queue used / capacity (0-1).
func (s *Service) QueueUtilization() float64 {
	if s.pool.QueueCap() == 0 {
		return 0
	}
	u := float64(s.pool.QueueLen()) / float64(s.pool.QueueCap())
	metrics.QueueUtilization.Set(u)
	return u
}

// Shutdown stops accepting work and waits for queued runs to finish.
func (s *Service) Shutdown() {
	s.pool.Drain()
}

func (s *Service) enqueue(workflowID string, inputs map[string]any) (*record, error) {
	g, err := s.graphs.Graph(workflowID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(s.base)
	rec := &record{
		graph:  g,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		run: Run{
			ID:         uuid.NewString(),
			WorkflowID: workflowID,
			Status:     RunQueued,
			Inputs:     maps.Clone(inputs),
			Nodes:      make(map[string]dataflow.NodeStatus),
			EnqueuedAt: time.Now(),
		},
	}
	s.mu.Lock()
	s.runs[rec.run.ID] = rec
	s.mu.Unlock()

	if !s.pool.Submit(rec) {
		cancel()
		s.mu.Lock()
		delete(s.runs, rec.run.ID)
		s.mu.Unlock()
		metrics.RunsDropped.Inc()
		return nil, fmt.Errorf("%w (capacity %d)", ErrQueueFull, s.pool.QueueCap())
	}
	metrics.RunsEnqueued.Inc()
	s.QueueUtilization()
	return rec, nil
}

func (s *Service) execute(_ context.Context, rec *record) {
	defer close(rec.done)
	defer rec.cancel()

	ctx := rec.ctx
	if s.conf.RunTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.conf.RunTimeoutMs)*time.Millisecond)
		defer cancel()
	}

	rec.started()
	metrics.ActiveRuns.Inc()
	s.logger.Info("run started", "run", rec.run.ID, "workflow", rec.run.WorkflowID)

	rep, outputs := s.flow.RunWithInputs(ctx, rec.graph, rec.run.Inputs, rec)
	status := rec.finish(rep, outputs, ctx.Err())

	metrics.ActiveRuns.Dec()
	metrics.RunsFinished.WithLabelValues(string(status)).Inc()
	run := rec.snapshot()
	metrics.RunDuration.Observe(float64(run.DurationMs))
	s.QueueUtilization()

	attrs := []any{"run", run.ID, "workflow", run.WorkflowID, "status", status, "duration_ms", run.DurationMs}
	if run.Error != "" {
		attrs = append(attrs, "failed_node", run.FailedNodeID, "err", run.Error)
		s.logger.Warn("run finished", attrs...)
	} else {
		s.logger.Info("run finished", attrs...)
	}
	s.retire(run.ID)
}

// retire forgets the oldest finished runs beyond maxRetainedRuns.
func (s *Service) retire(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, runID)
	for len(s.finished) > maxRetainedRuns {
		delete(s.runs, s.finished[0])
		s.finished = s.finished[1:]
	}
}

// InFlight returns how many runs are executing right now.
func (s *Service) InFlight() int { return s.pool.Busy() }
