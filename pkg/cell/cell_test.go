package cell

import (
	"context"
	"testing"

	"github.com/smilemakc/toolflow/pkg/sitematrix"
	"github.com/stretchr/testify/require"
)

func dewikiFetcher(_ context.Context, hostname string) (map[int64]sitematrix.NamespaceEntry, error) {
	return map[int64]sitematrix.NamespaceEntry{
		0:  {ID: 0},
		14: {ID: 14, Canonical: "Category", Local: "Kategorie"},
	}, nil
}

func TestFillMissing_NamespaceResolution(t *testing.T) {
	ns := sitematrix.NewCacheWithFetcher(dewikiFetcher)

	w := FillMissing(ns, WikiPage{Wiki: "dewiki", PrefixedTitle: "Kategorie:AGEB"})
	require.NotNil(t, w.NSID)
	require.Equal(t, int64(14), *w.NSID)
	require.Equal(t, "Kategorie", w.NSPrefix)
	require.Equal(t, "AGEB", w.Title)

	w2 := FillMissing(ns, WikiPage{Wiki: "dewiki", PrefixedTitle: "AGEB"})
	require.NotNil(t, w2.NSID)
	require.Equal(t, int64(0), *w2.NSID)
	require.Equal(t, "AGEB", w2.Title)
}

func TestParseEntityURL(t *testing.T) {
	w, ok := ParseEntityURL("https://www.wikidata.org/entity/Q42")
	require.True(t, ok)
	require.Equal(t, int64(0), *w.NSID)
	require.Equal(t, "Q42", w.Title)
	require.Equal(t, "Q42", w.PrefixedTitle)

	w, ok = ParseEntityURL("https://www.wikidata.org/entity/P31")
	require.True(t, ok)
	require.Equal(t, int64(120), *w.NSID)
	require.Equal(t, "P31", w.Title)

	_, ok = ParseEntityURL("https://example.org/Q42")
	require.False(t, ok)
}

func TestWikiPageFillRoundTrip(t *testing.T) {
	ns := sitematrix.NewCacheWithFetcher(dewikiFetcher)
	w := FillMissing(ns, WikiPage{Wiki: "dewiki", PrefixedTitle: "Kategorie:AGEB"})
	want := w.Title
	if w.NSPrefix != "" {
		want = w.NSPrefix + ":" + w.Title
	}
	require.Equal(t, want, w.PrefixedTitle)
}

func TestCellKey(t *testing.T) {
	nsid := int64(14)
	wp := Cell{Kind: KCellWikiPage, WikiPage: &WikiPage{Wiki: "dewiki", PrefixedTitle: "Kategorie:AGEB", NSID: &nsid, NSPrefix: "Category", Title: "AGEB"}}
	require.Equal(t, "dewiki::Kategorie:AGEB", wp.Key())

	require.Equal(t, "", Blank().Key())
	require.Equal(t, "hello", Text("hello").Key())
	require.Equal(t, "42", IntCell(42).Key())
}

func TestCompareOrdering(t *testing.T) {
	cmp, ok := Compare(Blank(), Text("a"))
	require.True(t, ok)
	require.Equal(t, -1, cmp)

	cmp, ok = Compare(Blank(), Blank())
	require.True(t, ok)
	require.Equal(t, 0, cmp)

	cmp, ok = Compare(IntCell(1), FloatCell(1.5))
	require.True(t, ok)
	require.Equal(t, -1, cmp)

	_, ok = Compare(Text("a"), IntCell(1))
	require.False(t, ok, "plaintext vs int is incomparable")
}

func TestFromValue(t *testing.T) {
	ns := sitematrix.NewCacheWithFetcher(dewikiFetcher)

	c, ok := FromValue(ns, "hello", Header{Name: "a", Kind: PlainText()}, "")
	require.True(t, ok)
	require.Equal(t, Text("hello"), c)

	c, ok = FromValue(ns, "42", Header{Name: "b", Kind: Int()}, "")
	require.True(t, ok)
	require.Equal(t, IntCell(42), c)

	_, ok = FromValue(ns, "notanumber", Header{Name: "b", Kind: Int()}, "")
	require.False(t, ok)

	c, ok = FromValue(ns, "https://www.wikidata.org/entity/Q1", Header{Name: "w", Kind: WikiPageColumn(WikiPage{})}, "entity_url")
	require.True(t, ok)
	require.Equal(t, "Q1", c.WikiPage.Title)
}
