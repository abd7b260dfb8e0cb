// Package workflow holds the DAG data model stored as workflow JSON:
// Workflow, Node, Edge, and the NodeKind enumeration dispatched by pkg/dispatch.
package workflow

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/smilemakc/toolflow/pkg/cell"
)

// State is a workflow's publication state.
type State string

const (
	StateDraft     State = "DRAFT"
	StatePublished State = "PUBLISHED"
)

// NodeKind enumerates every adapter, transform and sink kind a node can be.
type NodeKind string

const (
	KindQuarryLatest       NodeKind = "QuarryLatest"
	KindSparql             NodeKind = "Sparql"
	KindPetScan            NodeKind = "PetScan"
	KindPagePile           NodeKind = "PagePile"
	KindAListBuildingTool  NodeKind = "AListBuildingTool"
	KindUserEdits          NodeKind = "UserEdits"
	KindWdFist             NodeKind = "WdFist"
	KindJoin               NodeKind = "Join"
	KindFilter             NodeKind = "Filter"
	KindFilterPetScan      NodeKind = "FilterPetScan"
	KindFilterSort         NodeKind = "FilterSort"
	KindGenerator          NodeKind = "Generator"
)

// IsAdapterKind reports whether kind names an external-source adapter.
func (k NodeKind) IsAdapterKind() bool {
	switch k {
	case KindQuarryLatest, KindSparql, KindPetScan, KindPagePile, KindAListBuildingTool, KindUserEdits, KindWdFist:
		return true
	default:
		return false
	}
}

// IsTransformKind reports whether kind names a pkg/operator transform.
func (k NodeKind) IsTransformKind() bool {
	switch k {
	case KindJoin, KindFilter, KindFilterPetScan, KindFilterSort:
		return true
	default:
		return false
	}
}

// Node is one operation in a workflow graph: an adapter, a transform, or
// the terminal Generator sink.
type Node struct {
	ID            string             `json:"id"`
	Kind          NodeKind           `json:"kind"`
	Parameters    map[string]any     `json:"parameters"`
	HeaderMapping cell.HeaderMapping `json:"header_mapping"`
}

// Edge connects one node's output to another node's numbered input slot.
type Edge struct {
	SourceNode string `json:"source_node"`
	TargetNode string `json:"target_node"`
	TargetSlot int    `json:"target_slot"`
}

// Workflow is the stored DAG definition.
type Workflow struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	State  State     `json:"state"`
	Nodes  []Node    `json:"nodes"`
	Edges  []Edge    `json:"edges"`
}

// NodeByID returns the node with the given id, or false.
func (w *Workflow) NodeByID(id string) (Node, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// InEdges returns every edge targeting the given node, ordered by
// TargetSlot (the order in which a multi-input operator receives them).
func (w *Workflow) InEdges(nodeID string) []Edge {
	var edges []Edge
	for _, e := range w.Edges {
		if e.TargetNode == nodeID {
			edges = append(edges, e)
		}
	}
	for i := 1; i < len(edges); i++ {
		for j := i; j > 0 && edges[j].TargetSlot < edges[j-1].TargetSlot; j-- {
			edges[j], edges[j-1] = edges[j-1], edges[j]
		}
	}
	return edges
}

// Validate checks the structural invariants spec.md requires: acyclic,
// unique target slots, each slot consumed by at most one edge.
func (w *Workflow) Validate() error {
	ids := make(map[string]bool, len(w.Nodes))
	for _, n := range w.Nodes {
		if ids[n.ID] {
			return fmt.Errorf("workflow: duplicate node id %q", n.ID)
		}
		ids[n.ID] = true
	}

	slotSeen := make(map[string]map[int]bool)
	for _, e := range w.Edges {
		if !ids[e.SourceNode] {
			return fmt.Errorf("workflow: edge references unknown source node %q", e.SourceNode)
		}
		if !ids[e.TargetNode] {
			return fmt.Errorf("workflow: edge references unknown target node %q", e.TargetNode)
		}
		if slotSeen[e.TargetNode] == nil {
			slotSeen[e.TargetNode] = make(map[int]bool)
		}
		if slotSeen[e.TargetNode][e.TargetSlot] {
			return fmt.Errorf("workflow: target slot %d of node %q consumed by more than one edge", e.TargetSlot, e.TargetNode)
		}
		slotSeen[e.TargetNode][e.TargetSlot] = true
	}

	return w.checkAcyclic()
}

func (w *Workflow) checkAcyclic() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(w.Nodes))
	adj := make(map[string][]string, len(w.Nodes))
	for _, e := range w.Edges {
		adj[e.SourceNode] = append(adj[e.SourceNode], e.TargetNode)
	}

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				return fmt.Errorf("workflow: cycle detected at node %q", next)
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	for _, n := range w.Nodes {
		if color[n.ID] == white {
			if err := visit(n.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
