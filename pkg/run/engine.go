package run

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/smilemakc/toolflow/pkg/artifact"
	"github.com/smilemakc/toolflow/pkg/toolflowerr"
	"github.com/smilemakc/toolflow/pkg/workflow"
)

// NodeExecutor runs a single node against its resolved input artifacts.
// *dispatch.Dispatcher satisfies this without importing pkg/run, keeping
// the dependency pointed from run -> dispatch's signature shape only.
type NodeExecutor interface {
	Dispatch(ctx context.Context, node workflow.Node, inputs []uuid.UUID) (artifact.Details, error)
}

// MaxParallelism caps concurrent node dispatch within one wave. Zero or
// negative means unbounded (one goroutine per ready node), mirroring the
// teacher engine's executeWave fallback.
type Engine struct {
	Gateway        Gateway
	Executor       NodeExecutor
	Log            zerolog.Logger
	MaxParallelism int
}

const intermediateTTL = time.Hour

// Execute runs the main loop for runID to completion: load/resume status,
// then repeatedly compute and run the ready wave until no nodes remain
// ready, persisting status after every wave. Returns toolflowerr.ErrCancelled
// if the run row is marked CANCEL between waves.
func (e *Engine) Execute(ctx context.Context, runID uuid.UUID) error {
	r, err := e.Gateway.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	wf, err := e.Gateway.LoadWorkflow(ctx, r.WorkflowID)
	if err != nil {
		return err
	}

	if err := loadStatus(ctx, e.Gateway, e.Log, wf, r); err != nil {
		return err
	}

	for {
		ready := readyNodes(wf, r)
		if len(ready) == 0 {
			break
		}

		if err := e.runWave(ctx, wf, r, ready); err != nil {
			r.Status = StatusFail
			r.TSLast = now()
			_ = e.Gateway.UpdateRunStatus(ctx, r)
			return err
		}

		cur, err := e.Gateway.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		if cur.Status == StatusCancel {
			return toolflowerr.ErrCancelled
		}

		r.Status = StatusRun
		r.TSLast = now()
		if err := e.Gateway.UpdateRunStatus(ctx, r); err != nil {
			return err
		}
	}

	r.Status = StatusDone
	r.TSLast = now()
	return e.Gateway.UpdateRunStatus(ctx, r)
}

// waveResult carries one node's outcome back to the wave collector.
type waveResult struct {
	nodeID  string
	details artifact.Details
	err     error
}

func (e *Engine) runWave(ctx context.Context, wf *workflow.Workflow, r *Run, ready []workflow.Node) error {
	byID := r.statusByID()
	for _, n := range ready {
		byID[n.ID].Status = NodeRunning
	}

	limit := e.MaxParallelism
	if limit <= 0 {
		limit = len(ready)
	}
	sem := make(chan struct{}, limit)
	results := make(chan waveResult, len(ready))

	var wg sync.WaitGroup
	for _, n := range ready {
		n := n
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			inputs := e.resolveInputs(wf, r, n.ID)
			details, err := e.Executor.Dispatch(ctx, n, inputs)
			results <- waveResult{nodeID: n.ID, details: details, err: err}
		}()
	}
	wg.Wait()
	close(results)

	var firstErr error
	for res := range results {
		st := byID[res.nodeID]
		if res.err != nil {
			st.Status = NodeFailed
			st.Error = res.err.Error()
			if firstErr == nil {
				firstErr = fmt.Errorf("node %q: %w", res.nodeID, res.err)
			}
			continue
		}

		st.Status = NodeDone
		if !res.details.Valid {
			continue
		}
		id := res.details.UUID
		st.UUID = &id

		var expires *time.Time
		if !st.IsOutputNode {
			t := now().Add(intermediateTTL)
			expires = &t
		}
		if err := e.Gateway.InsertFile(ctx, FileRow{RunID: r.ID, NodeID: res.nodeID, UUID: id, RowsWritten: res.details.RowsWritten, ExpiresAt: expires}); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	r.Details = make([]NodeStatus, 0, len(wf.Nodes))
	r.NodesDone = 0
	for _, n := range wf.Nodes {
		st := *byID[n.ID]
		r.Details = append(r.Details, st)
		if st.Status == NodeDone {
			r.NodesDone++
		}
	}

	return firstErr
}

// resolveInputs collects the artifact uuids feeding node, in TargetSlot
// order, from its predecessors' current status.
func (e *Engine) resolveInputs(wf *workflow.Workflow, r *Run, nodeID string) []uuid.UUID {
	byID := r.statusByID()
	edges := wf.InEdges(nodeID)
	inputs := make([]uuid.UUID, 0, len(edges))
	for _, edge := range edges {
		st, ok := byID[edge.SourceNode]
		if !ok || st.UUID == nil {
			continue
		}
		inputs = append(inputs, *st.UUID)
	}
	return inputs
}

// now is the engine's single time source, overridable in tests.
var now = time.Now
