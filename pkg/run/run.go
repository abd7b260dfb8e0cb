// Package run implements the run state machine (C6): the per-run
// NodeStatus vector, readiness computation, the main execution loop,
// resume and cancellation semantics.
package run

import (
	"time"

	"github.com/google/uuid"
)

// Status is a run's overall lifecycle state.
type Status string

const (
	StatusWait   Status = "WAIT"
	StatusRun    Status = "RUN"
	StatusDone   Status = "DONE"
	StatusFail   Status = "FAIL"
	StatusCancel Status = "CANCEL"
)

// NodeState is one node's lifecycle state within a run.
type NodeState string

const (
	NodeWaiting NodeState = "WAITING"
	NodeRunning NodeState = "RUNNING"
	NodeDone    NodeState = "DONE"
	NodeFailed  NodeState = "FAILED"
)

// NodeStatus tracks one node's execution state within a run.
type NodeStatus struct {
	NodeID       string
	Status       NodeState
	UUID         *uuid.UUID
	IsOutputNode bool
	Error        string
}

// Run is the persisted per-execution record.
type Run struct {
	ID         uuid.UUID
	WorkflowID uuid.UUID
	Status     Status
	TSCreated  time.Time
	TSLast     time.Time
	NodesTotal int
	NodesDone  int
	Details    []NodeStatus
}

// statusByID indexes Details by node id for O(1) lookup during readiness
// computation and resume.
func (r *Run) statusByID() map[string]*NodeStatus {
	m := make(map[string]*NodeStatus, len(r.Details))
	for i := range r.Details {
		m[r.Details[i].NodeID] = &r.Details[i]
	}
	return m
}

// NewRun builds a fresh WAIT-status Run for workflowID with an empty status
// vector; loadStatus fills in the all-WAITING vector on first execution.
func NewRun(id, workflowID uuid.UUID, created time.Time) *Run {
	return &Run{
		ID:         id,
		WorkflowID: workflowID,
		Status:     StatusWait,
		TSCreated:  created,
		TSLast:     created,
	}
}
