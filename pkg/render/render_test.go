package render

import (
	"strings"
	"testing"

	"github.com/smilemakc/toolflow/pkg/cell"
	"github.com/stretchr/testify/require"
)

func TestWikiTable_Render(t *testing.T) {
	header := cell.DataHeader{{Name: "title", Kind: cell.WikiPageColumn(cell.WikiPage{})}, {Name: "n", Kind: cell.Int()}}
	rows := [][]cell.Cell{
		{cell.PageCell(cell.WikiPage{Wiki: "enwiki", PrefixedTitle: "Cat"}), cell.IntCell(1)},
	}

	var b strings.Builder
	require.NoError(t, WikiTable{}.Render(header, rows, &b))

	out := b.String()
	require.Contains(t, out, "{| class=\"wikitable sortable\"")
	require.Contains(t, out, "! title")
	require.Contains(t, out, "[[Cat]]")
	require.Contains(t, out, "|}")
}
