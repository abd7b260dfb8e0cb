package workflow

import "testing"

import "github.com/stretchr/testify/require"

func TestValidate_AcyclicDAG(t *testing.T) {
	w := &Workflow{Nodes: []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}}, Edges: []Edge{
		{SourceNode: "a", TargetNode: "b", TargetSlot: 0},
		{SourceNode: "b", TargetNode: "c", TargetSlot: 0},
	}}
	require.NoError(t, w.Validate())

	cyclic := &Workflow{Nodes: []Node{{ID: "a"}, {ID: "b"}}, Edges: []Edge{
		{SourceNode: "a", TargetNode: "b", TargetSlot: 0},
		{SourceNode: "b", TargetNode: "a", TargetSlot: 0},
	}}
	require.Error(t, cyclic.Validate())
}

func TestValidate_DuplicateSlotRejected(t *testing.T) {
	w := &Workflow{Nodes: []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}}, Edges: []Edge{
		{SourceNode: "a", TargetNode: "c", TargetSlot: 0},
		{SourceNode: "b", TargetNode: "c", TargetSlot: 0},
	}}
	require.Error(t, w.Validate())
}

func TestInEdges_OrderedBySlot(t *testing.T) {
	w := &Workflow{Edges: []Edge{
		{SourceNode: "y", TargetNode: "z", TargetSlot: 1},
		{SourceNode: "x", TargetNode: "z", TargetSlot: 0},
	}}
	edges := w.InEdges("z")
	require.Len(t, edges, 2)
	require.Equal(t, "x", edges[0].SourceNode)
	require.Equal(t, "y", edges[1].SourceNode)
}

func TestNodeKindClassification(t *testing.T) {
	require.True(t, KindSparql.IsAdapterKind())
	require.False(t, KindSparql.IsTransformKind())
	require.True(t, KindJoin.IsTransformKind())
	require.False(t, KindGenerator.IsAdapterKind())
	require.False(t, KindGenerator.IsTransformKind())
}
