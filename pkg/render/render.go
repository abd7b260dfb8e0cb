// Package render implements the terminal-sink contract for the Generator
// node kind: rendering a finished artifact as a MediaWiki table and handing
// it to a Publisher. Concrete wiki-publishing internals are out of scope
// (spec.md Non-goals) — Publisher's production implementation is a thin,
// authenticated HTTP client a deployment supplies; LogPublisher below
// satisfies the contract for local/test use.
package render

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/smilemakc/toolflow/pkg/cell"
)

// Renderer turns a finished artifact into wiki markup.
type Renderer interface {
	Render(header cell.DataHeader, rows [][]cell.Cell, w io.Writer) error
}

// Publisher hands rendered wiki markup off to an external sink (a wiki
// page edit, typically). Only the contract is specified; see package doc.
type Publisher interface {
	Publish(ctx context.Context, title string, wikitext string) error
}

// WikiTable renders rows as a MediaWiki "{| class=wikitable" table.
type WikiTable struct{}

// Render writes one wikitable: a header row followed by one row per input
// row, each cell rendered via its derived key (WikiPage cells render as an
// internal link using prefixed_title).
func (WikiTable) Render(header cell.DataHeader, rows [][]cell.Cell, w io.Writer) error {
	var b strings.Builder
	b.WriteString("{| class=\"wikitable sortable\"\n|-\n")
	for _, col := range header {
		b.WriteString("! ")
		b.WriteString(col.Name)
		b.WriteString("\n")
	}
	for _, row := range rows {
		b.WriteString("|-\n")
		for _, c := range row {
			b.WriteString("| ")
			b.WriteString(renderCell(c))
			b.WriteString("\n")
		}
	}
	b.WriteString("|}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func renderCell(c cell.Cell) string {
	if c.Kind == cell.KCellWikiPage {
		return fmt.Sprintf("[[%s]]", c.WikiPage.PrefixedTitle)
	}
	return c.Key()
}

// LogPublisher discharges the Publisher contract by logging the publish
// intent rather than performing a real wiki edit — the default for
// deployments that have not wired a production publisher.
type LogPublisher struct {
	Log zerolog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, title string, wikitext string) error {
	p.Log.Info().Str("title", title).Int("bytes", len(wikitext)).Msg("publish (no-op sink)")
	return nil
}
