package dataflow

import (
	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

// State is the displayable status of a node.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateError     State = "error"
	StatePaused    State = "paused"  // missing data
	StateWaiting   State = "waiting" // missing flow signal
	StateStopped   State = "paused_by_user"
)

// NodeStatus is what observers see for one node.
type NodeStatus struct {
	State State `json:"state"`
	// ContextID is set while the node runs and cleared once it settles.
	ContextID          string                `json:"context_id,omitempty"`
	Error              string                `json:"error,omitempty"`
	MissingDataPortIDs []string              `json:"missing_data_port_ids,omitempty"`
	MissingFlowPortIDs []string              `json:"missing_flow_port_ids,omitempty"`
	SatisfiedPortIDs   []string              `json:"satisfied_port_ids,omitempty"`
	Diagnostics        *nodetype.Diagnostics `json:"diagnostics,omitempty"`
}

// Observer is notified whenever a node's displayable status changes.
// Calls may arrive from several goroutines.
type Observer interface {
	NodeStatusChanged(nodeID string, status NodeStatus)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(nodeID string, status NodeStatus)

func (f ObserverFunc) NodeStatusChanged(nodeID string, status NodeStatus) { f(nodeID, status) }

// LinkState is the visual state of a connection.
type LinkState string

const (
	LinkQueued   LinkState = "queued"
	LinkConsumed LinkState = "consumed"
)

// LinkObserver is an optional extension of Observer notified on every cache
// push and consume.
type LinkObserver interface {
	LinkStateChanged(conn graph.Connection, state LinkState)
}

// pendingStatus derives paused/waiting from an unsatisfied resolution.
// Missing data takes precedence over a missing flow signal.
func pendingStatus(res Resolution) NodeStatus {
	st := NodeStatus{
		State:              StateWaiting,
		MissingDataPortIDs: res.MissingDataPortIDs,
		MissingFlowPortIDs: res.MissingFlowPortIDs,
		SatisfiedPortIDs:   res.SatisfiedPortIDs,
	}
	if len(res.MissingDataPortIDs) > 0 {
		st.State = StatePaused
	}
	return st
}
