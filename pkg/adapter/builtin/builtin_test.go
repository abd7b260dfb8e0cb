package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/smilemakc/toolflow/pkg/adapter"
	"github.com/smilemakc/toolflow/pkg/artifact"
	"github.com/smilemakc/toolflow/pkg/cell"
	"github.com/smilemakc/toolflow/pkg/sitematrix"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *artifact.Store {
	t.Helper()
	s, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestPagePile_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"wiki":"enwiki","pages":["Cat","Dog"]}`))
	}))
	defer srv.Close()

	ns := sitematrix.NewCacheWithFetcher(func(_ context.Context, _ string) (map[int64]sitematrix.NamespaceEntry, error) {
		return map[int64]sitematrix.NamespaceEntry{0: {ID: 0}}, nil
	})
	c := New(0, ns, zerolog.Nop())
	pp := NewPagePile(c)
	pp.BaseURL = srv.URL

	mapping := cell.HeaderMapping{Columns: []cell.ColumnMapping{
		{Header: cell.Header{Name: "page", Kind: cell.WikiPageColumn(cell.WikiPage{Wiki: "enwiki"})}, Fields: []cell.FieldMapping{
			{SourceLabel: "prefixed_title", TargetField: "prefixed_title"},
		}},
	}}

	store := newStore(t)
	out, err := store.CreateOutput()
	require.NoError(t, err)

	err = pp.Fetch(context.Background(), adapter.SourceSpec{Kind: adapter.SourceNumericID, ID: 1}, mapping, out)
	require.NoError(t, err)
	require.NoError(t, out.Close())
	require.Equal(t, 2, out.Details().RowsWritten)
}

func TestSparql_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":{"bindings":[{"item":{"value":"Q1"}}]}}`))
	}))
	defer srv.Close()

	ns := sitematrix.NewCacheWithFetcher(func(_ context.Context, _ string) (map[int64]sitematrix.NamespaceEntry, error) {
		return map[int64]sitematrix.NamespaceEntry{0: {ID: 0}}, nil
	})
	c := New(0, ns, zerolog.Nop())
	sp := NewSparql(c)
	sp.BaseURL = srv.URL

	mapping := cell.HeaderMapping{Columns: []cell.ColumnMapping{
		{Header: cell.Header{Name: "item", Kind: cell.PlainText()}, Fields: []cell.FieldMapping{
			{SourceLabel: "item", TargetField: ""},
		}},
	}}

	store := newStore(t)
	out, err := store.CreateOutput()
	require.NoError(t, err)

	err = sp.Fetch(context.Background(), adapter.SourceSpec{Kind: adapter.SourceSparqlText, Text: "SELECT ?item WHERE {}"}, mapping, out)
	require.NoError(t, err)
	require.NoError(t, out.Close())
	require.Equal(t, 1, out.Details().RowsWritten)
}

func TestAdapter_UnsuitableSourceKind(t *testing.T) {
	ns := sitematrix.NewCacheWithFetcher(func(_ context.Context, _ string) (map[int64]sitematrix.NamespaceEntry, error) {
		return map[int64]sitematrix.NamespaceEntry{}, nil
	})
	c := New(0, ns, zerolog.Nop())
	pp := NewPagePile(c)

	store := newStore(t)
	out, err := store.CreateOutput()
	require.NoError(t, err)

	err = pp.Fetch(context.Background(), adapter.SourceSpec{Kind: adapter.SourceSparqlText, Text: "x"}, cell.HeaderMapping{}, out)
	require.Error(t, err)
}
