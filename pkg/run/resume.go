package run

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/smilemakc/toolflow/pkg/workflow"
)

// initStatuses builds the all-WAITING status vector for a freshly created
// run, marking output nodes (those with no outgoing edges).
func initStatuses(wf *workflow.Workflow) []NodeStatus {
	hasOutEdge := make(map[string]bool, len(wf.Nodes))
	for _, e := range wf.Edges {
		hasOutEdge[e.SourceNode] = true
	}
	out := make([]NodeStatus, len(wf.Nodes))
	for i, n := range wf.Nodes {
		out[i] = NodeStatus{NodeID: n.ID, Status: NodeWaiting, IsOutputNode: !hasOutEdge[n.ID]}
	}
	return out
}

// ancestors returns, for each node id, the set of node ids that must be
// DONE before it may run.
func ancestors(wf *workflow.Workflow) map[string][]string {
	preds := make(map[string][]string, len(wf.Nodes))
	for _, e := range wf.Edges {
		preds[e.TargetNode] = append(preds[e.TargetNode], e.SourceNode)
	}
	return preds
}

// loadStatus reconciles r's in-memory status vector with persisted file
// rows, then resets to WAITING (deleting the stale artifact) any DONE node
// whose ancestors are not all DONE, iterating to a fixpoint. Must run
// before any wave of a resumed run. Removing a stale artifact from disk
// during this reset is best-effort: an I/O error there is logged, not
// returned, per the File Record invariant (spec §3). An error deleting the
// node's file row is returned.
func loadStatus(ctx context.Context, gw Gateway, log zerolog.Logger, wf *workflow.Workflow, r *Run) error {
	if len(r.Details) == 0 {
		r.Details = initStatuses(wf)
	}
	byID := r.statusByID()

	files, err := gw.ListFiles(ctx, r.ID)
	if err != nil {
		return err
	}
	for _, f := range files {
		st, ok := byID[f.NodeID]
		if !ok {
			continue
		}
		id := f.UUID
		st.Status = NodeDone
		st.UUID = &id
	}

	preds := ancestors(wf)
	for {
		changed := false
		for _, n := range wf.Nodes {
			st := byID[n.ID]
			if st.Status != NodeDone {
				continue
			}
			for _, p := range preds[n.ID] {
				if byID[p].Status != NodeDone {
					st.Status = NodeWaiting
					st.Error = ""
					if st.UUID != nil {
						if err := gw.RemoveArtifact(*st.UUID); err != nil {
							log.Warn().Err(err).Str("uuid", st.UUID.String()).Msg("remove stale artifact failed")
						}
						if err := gw.DeleteFile(ctx, r.ID, n.ID); err != nil {
							return err
						}
						st.UUID = nil
					}
					changed = true
					break
				}
			}
		}
		if !changed {
			break
		}
	}

	r.Details = make([]NodeStatus, 0, len(wf.Nodes))
	for _, n := range wf.Nodes {
		r.Details = append(r.Details, *byID[n.ID])
	}
	r.NodesTotal = len(wf.Nodes)
	r.NodesDone = 0
	for _, st := range r.Details {
		if st.Status == NodeDone {
			r.NodesDone++
		}
	}
	return nil
}

// readyNodes returns nodes whose status is WAITING and all of whose
// predecessors are DONE.
func readyNodes(wf *workflow.Workflow, r *Run) []workflow.Node {
	preds := ancestors(wf)
	byID := r.statusByID()

	var ready []workflow.Node
	for _, n := range wf.Nodes {
		st := byID[n.ID]
		if st.Status != NodeWaiting {
			continue
		}
		allDone := true
		for _, p := range preds[n.ID] {
			if byID[p].Status != NodeDone {
				allDone = false
				break
			}
		}
		if allDone {
			ready = append(ready, n)
		}
	}
	return ready
}
