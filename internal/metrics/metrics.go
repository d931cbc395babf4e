package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodeflow_runs_enqueued_total",
		Help: "Total number of workflow runs placed on the run queue.",
	})

	RunsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodeflow_runs_dropped_total",
		Help: "Total number of workflow runs rejected due to a full queue.",
	})

	RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodeflow_runs_finished_total",
		Help: "Total number of workflow runs finished, labelled by outcome.",
	}, []string{"outcome"})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nodeflow_active_runs",
		Help: "Number of workflow runs currently executing.",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nodeflow_run_duration_ms",
		Help:    "End-to-end workflow run latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 10000, 60000},
	})

	NodeInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodeflow_node_invocations_total",
		Help: "Total number of node invocations, labelled by node type and outcome.",
	}, []string{"node_type", "outcome"})

	NodeInvocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nodeflow_node_invocation_duration_ms",
		Help:    "Executor latency per node invocation in milliseconds.",
		Buckets: []float64{0.1, 1, 5, 25, 100, 500, 2500, 10000},
	}, []string{"node_type"})

	BacklogDeferrals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodeflow_backlog_deferrals_total",
		Help: "Invocations deferred because their node was already executing.",
	})

	SelfTriggers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodeflow_self_triggers_total",
		Help: "Invocations a node produced for itself from its queued backlog.",
	})

	SubGraphRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodeflow_subgraph_runs_total",
		Help: "Nested sub-graph runs, labelled by outcome.",
	}, []string{"outcome"})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nodeflow_queue_utilization_ratio",
		Help: "Current run queue utilization (0-1).",
	})
)
