package dispatch

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/smilemakc/toolflow/pkg/adapter"
	"github.com/smilemakc/toolflow/pkg/artifact"
	"github.com/smilemakc/toolflow/pkg/cell"
	"github.com/smilemakc/toolflow/pkg/render"
	"github.com/smilemakc/toolflow/pkg/toolflowerr"
	"github.com/smilemakc/toolflow/pkg/workflow"
	"github.com/stretchr/testify/require"
)

func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	return &Dispatcher{
		Store:     store,
		Adapters:  map[workflow.NodeKind]adapter.Adapter{},
		Renderer:  render.WikiTable{},
		Publisher: render.LogPublisher{Log: zerolog.Nop()},
	}
}

func TestDispatch_FilterTransform(t *testing.T) {
	d := newDispatcher(t)
	w, err := d.Store.CreateOutput()
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(cell.DataHeader{{Name: "n", Kind: cell.Int()}}))
	require.NoError(t, w.WriteRow([]cell.Cell{cell.IntCell(1)}))
	require.NoError(t, w.WriteRow([]cell.Cell{cell.IntCell(5)}))
	require.NoError(t, w.Close())

	node := workflow.Node{Kind: workflow.KindFilter, Parameters: map[string]any{
		"key": "n", "operator": "LargerThan", "value": "3", "remove_matching": false,
	}}
	details, err := d.Dispatch(context.Background(), node, []uuid.UUID{w.UUID()})
	require.NoError(t, err)
	require.Equal(t, 1, details.RowsWritten)
}

func TestDispatch_GeneratorSentinel(t *testing.T) {
	d := newDispatcher(t)
	w, err := d.Store.CreateOutput()
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(cell.DataHeader{{Name: "n", Kind: cell.Int()}}))
	require.NoError(t, w.WriteRow([]cell.Cell{cell.IntCell(1)}))
	require.NoError(t, w.Close())

	node := workflow.Node{Kind: workflow.KindGenerator}
	details, err := d.Dispatch(context.Background(), node, []uuid.UUID{w.UUID()})
	require.NoError(t, err)
	require.False(t, details.Valid)
}

func TestDispatch_UnknownKind(t *testing.T) {
	d := newDispatcher(t)
	_, err := d.Dispatch(context.Background(), workflow.Node{Kind: "Bogus"}, nil)
	require.Error(t, err)
}

func TestParamU64_AcceptsStringAndNumber(t *testing.T) {
	params := map[string]any{"a": "42", "b": float64(7)}
	v, err := paramU64(params, "a")
	require.NoError(t, err)
	require.Equal(t, uint64(42), v)

	v, err = paramU64(params, "b")
	require.NoError(t, err)
	require.Equal(t, uint64(7), v)

	_, err = paramU64(params, "missing")
	require.ErrorIs(t, err, toolflowerr.ErrBadParameter)
}

func TestParamBool_AcceptsBoolAndNonzeroInt(t *testing.T) {
	v, err := paramBool(map[string]any{"a": true}, "a")
	require.NoError(t, err)
	require.True(t, v)

	v, err = paramBool(map[string]any{"a": float64(3)}, "a")
	require.NoError(t, err)
	require.True(t, v)

	_, err = paramBool(map[string]any{}, "missing")
	require.ErrorIs(t, err, toolflowerr.ErrBadParameter)
}
