// Package cell implements the typed column schema and cell-value model
// shared by every artifact, adapter and transform operator.
package cell

import (
	"encoding/json"
	"fmt"
)

// ColumnKind tags the type of values a column holds.
type ColumnKind struct {
	Tag      string   // "PlainText", "Int", "Float", "WikiPage"
	WikiPage *WikiPage // column-level defaults, set only when Tag == "WikiPage"
}

// Column kind tag constants.
const (
	KindPlainText = "PlainText"
	KindInt       = "Int"
	KindFloat     = "Float"
	KindWikiPage  = "WikiPage"
)

func PlainText() ColumnKind { return ColumnKind{Tag: KindPlainText} }
func Int() ColumnKind       { return ColumnKind{Tag: KindInt} }
func Float() ColumnKind     { return ColumnKind{Tag: KindFloat} }
func WikiPageColumn(defaults WikiPage) ColumnKind {
	return ColumnKind{Tag: KindWikiPage, WikiPage: &defaults}
}

// MarshalJSON encodes the kind using the tagged-variant convention described
// in the on-disk artifact format: bare string for unit variants, a
// single-key object for the WikiPage variant.
func (k ColumnKind) MarshalJSON() ([]byte, error) {
	if k.Tag != KindWikiPage {
		return json.Marshal(k.Tag)
	}
	return json.Marshal(map[string]*WikiPage{KindWikiPage: k.WikiPage})
}

// UnmarshalJSON accepts either a bare tag string or a {"WikiPage": {...}} object.
func (k *ColumnKind) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		*k = ColumnKind{Tag: tag}
		return nil
	}

	var wrapper map[string]WikiPage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return fmt.Errorf("decode column kind: %w", err)
	}
	spec, ok := wrapper[KindWikiPage]
	if !ok {
		return fmt.Errorf("decode column kind: unknown variant in %s", data)
	}
	*k = ColumnKind{Tag: KindWikiPage, WikiPage: &spec}
	return nil
}

// Header describes one column: its name and its kind.
type Header struct {
	Name string     `json:"name"`
	Kind ColumnKind `json:"kind"`
}

// DataHeader is the ordered list of columns an artifact carries.
type DataHeader []Header

// IndexOf returns the position of the named column, or -1.
func (h DataHeader) IndexOf(name string) int {
	for i, col := range h {
		if col.Name == name {
			return i
		}
	}
	return -1
}
