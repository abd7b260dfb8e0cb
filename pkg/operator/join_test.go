package operator

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/smilemakc/toolflow/pkg/artifact"
	"github.com/smilemakc/toolflow/pkg/cell"
	"github.com/smilemakc/toolflow/pkg/toolflowerr"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *artifact.Store {
	t.Helper()
	s, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func writeArtifact(t *testing.T, s *artifact.Store, header cell.DataHeader, rows [][]cell.Cell) uuid.UUID {
	t.Helper()
	w, err := s.CreateOutput()
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(header))
	for _, r := range rows {
		require.NoError(t, w.WriteRow(r))
	}
	require.NoError(t, w.Close())
	return w.UUID()
}

// scenario 4: {a,b,c,d} joined with {b,c,e} on "key" -> {b,c}, 2 rows. The
// three-row input is smaller on disk, so it is the base.
func TestJoin_InnerJoinKeySet(t *testing.T) {
	s := newTestStore(t)
	header := cell.DataHeader{{Name: "key", Kind: cell.PlainText()}, {Name: "f1", Kind: cell.PlainText()}}
	f1 := writeArtifact(t, s, header, [][]cell.Cell{
		{cell.Text("a"), cell.Text("A")},
		{cell.Text("b"), cell.Text("B")},
		{cell.Text("c"), cell.Text("C")},
		{cell.Text("d"), cell.Text("D")},
	})
	header2 := cell.DataHeader{{Name: "key", Kind: cell.PlainText()}, {Name: "f2", Kind: cell.PlainText()}}
	f2 := writeArtifact(t, s, header2, [][]cell.Cell{
		{cell.Text("b"), cell.Text("B2")},
		{cell.Text("c"), cell.Text("C2")},
		{cell.Text("e"), cell.Text("E2")},
	})

	details, err := Join(context.Background(), s, []uuid.UUID{f1, f2}, "key")
	require.NoError(t, err)
	require.Equal(t, 2, details.RowsWritten)

	r, err := s.OpenInput(details.UUID)
	require.NoError(t, err)
	defer r.Close()
	gotHeader, rows, err := artifact.ReadAll(r)
	require.NoError(t, err)
	require.Len(t, gotHeader, 3) // key, f2, f1 (f1's key column deduped)
	keys := map[string]bool{}
	for _, row := range rows {
		keys[row[0].Text] = true
	}
	require.Equal(t, map[string]bool{"b": true, "c": true}, keys)
}

// scenario 5: duplicate key in base fails.
func TestJoin_DuplicateKeyFails(t *testing.T) {
	s := newTestStore(t)
	header := cell.DataHeader{{Name: "key", Kind: cell.PlainText()}}
	f1 := writeArtifact(t, s, header, [][]cell.Cell{{cell.Text("x")}, {cell.Text("x")}})
	// f2 has more rows, so the duplicated f1 is the smaller input and the base.
	f2 := writeArtifact(t, s, header, [][]cell.Cell{{cell.Text("x")}, {cell.Text("y")}, {cell.Text("z")}})

	_, err := Join(context.Background(), s, []uuid.UUID{f1, f2}, "key")
	require.ErrorIs(t, err, toolflowerr.ErrDuplicateKey)
}

func TestJoin_NoInputsAndSingleInput(t *testing.T) {
	s := newTestStore(t)
	_, err := Join(context.Background(), s, nil, "key")
	require.ErrorIs(t, err, toolflowerr.ErrNoInputs)

	header := cell.DataHeader{{Name: "key", Kind: cell.PlainText()}}
	f1 := writeArtifact(t, s, header, [][]cell.Cell{{cell.Text("a")}})
	_, err = Join(context.Background(), s, []uuid.UUID{f1}, "key")
	require.ErrorIs(t, err, toolflowerr.ErrSingleInput)
}

func TestMergeUnique_SetUnionNoDup(t *testing.T) {
	s := newTestStore(t)
	header := cell.DataHeader{{Name: "key", Kind: cell.PlainText()}}
	f1 := writeArtifact(t, s, header, [][]cell.Cell{{cell.Text("a")}, {cell.Text("b")}})
	f2 := writeArtifact(t, s, header, [][]cell.Cell{{cell.Text("b")}, {cell.Text("c")}})

	details, err := MergeUnique(context.Background(), s, []uuid.UUID{f1, f2}, "key")
	require.NoError(t, err)
	require.Equal(t, 3, details.RowsWritten)

	r, err := s.OpenInput(details.UUID)
	require.NoError(t, err)
	defer r.Close()
	_, rows, err := artifact.ReadAll(r)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, row := range rows {
		seen[row[0].Text] = true
	}
	require.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, seen)
}
