// Package adapter defines the contract (C3) turning an external source spec
// plus a header mapping into a fresh artifact. Concrete adapters live under
// pkg/adapter/builtin; each satisfies Adapter for exactly one SourceKind.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smilemakc/toolflow/pkg/artifact"
	"github.com/smilemakc/toolflow/pkg/cell"
)

// SourceKind tags the shape of SourceSpec's payload.
type SourceKind string

const (
	SourceSparqlText SourceKind = "SparqlText"
	SourceNumericID  SourceKind = "NumericID"
	SourceURL        SourceKind = "URL"
	SourceWikiQID    SourceKind = "WikiQID"
)

// SourceSpec is the tagged variant identifying what an adapter should fetch:
// SPARQL query text, a numeric id (Quarry query id, PagePile id, ...), a
// bare URL, or a (wiki, qid) pair (WdFist).
type SourceSpec struct {
	Kind SourceKind

	Text string // SparqlText, URL
	ID   int64  // NumericID

	Wiki string // WikiQID
	QID  string // WikiQID
}

// MarshalJSON encodes SourceSpec per spec.md §6's tagged-variant convention.
func (s SourceSpec) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SourceSparqlText, SourceURL:
		return json.Marshal(map[string]string{string(s.Kind): s.Text})
	case SourceNumericID:
		return json.Marshal(map[string]int64{string(s.Kind): s.ID})
	case SourceWikiQID:
		return json.Marshal(map[string]any{string(s.Kind): map[string]string{"wiki": s.Wiki, "qid": s.QID}})
	default:
		return nil, fmt.Errorf("source spec: unknown kind %q", s.Kind)
	}
}

// UnmarshalJSON decodes SourceSpec's tagged-variant encoding.
func (s *SourceSpec) UnmarshalJSON(data []byte) error {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return fmt.Errorf("source spec: %w", err)
	}
	for tag, raw := range wrapper {
		switch SourceKind(tag) {
		case SourceSparqlText:
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return err
			}
			*s = SourceSpec{Kind: SourceSparqlText, Text: text}
		case SourceURL:
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return err
			}
			*s = SourceSpec{Kind: SourceURL, Text: text}
		case SourceNumericID:
			var id int64
			if err := json.Unmarshal(raw, &id); err != nil {
				return err
			}
			*s = SourceSpec{Kind: SourceNumericID, ID: id}
		case SourceWikiQID:
			var pair struct {
				Wiki string `json:"wiki"`
				QID  string `json:"qid"`
			}
			if err := json.Unmarshal(raw, &pair); err != nil {
				return err
			}
			*s = SourceSpec{Kind: SourceWikiQID, Wiki: pair.Wiki, QID: pair.QID}
		default:
			return fmt.Errorf("source spec: unknown tag %q", tag)
		}
		return nil
	}
	return fmt.Errorf("source spec: empty object")
}

// Adapter turns a SourceSpec into a fresh artifact. Implementations must
// return toolflowerr.ErrUnsuitableSource if spec.Kind is not one they
// handle, toolflowerr.ErrExternalFetch on network failure, and
// toolflowerr.ErrSourceDecode on a malformed response body. Row-level
// decode failures are not reported as errors — the adapter silently skips
// the offending source row and continues (spec.md §7).
type Adapter interface {
	Fetch(ctx context.Context, spec SourceSpec, mapping cell.HeaderMapping, out *artifact.Writer) error
}
