package cell

import (
	"fmt"
	"strconv"

	"github.com/smilemakc/toolflow/pkg/sitematrix"
)

// FromValue coerces a raw decoded value (string/float64/bool from JSON, or a
// Go-native int/float) into a Cell of the given column's kind. targetField
// selects which WikiPage component a WikiPage-column value populates.
// Returns ok=false if v cannot be coerced to the column's kind.
func FromValue(ns *sitematrix.Cache, v any, col Header, targetField string) (Cell, bool) {
	if v == nil {
		return Blank(), true
	}

	switch col.Kind.Tag {
	case KindPlainText:
		s, ok := v.(string)
		if !ok {
			return Cell{}, false
		}
		return Text(s), true

	case KindInt:
		i, ok := toInt64(v)
		if !ok {
			return Cell{}, false
		}
		return IntCell(i), true

	case KindFloat:
		f, ok := toFloat64(v)
		if !ok {
			return Cell{}, false
		}
		return FloatCell(f), true

	case KindWikiPage:
		s, ok := v.(string)
		if !ok {
			return Cell{}, false
		}
		wp, ok := wikiPageFromField(s, targetField)
		if !ok {
			return Cell{}, false
		}
		wp = wp.merge(col.Kind.WikiPage)
		wp = FillMissing(ns, wp)
		return Cell{Kind: KCellWikiPage, WikiPage: &wp}, true

	default:
		return Cell{}, false
	}
}

func wikiPageFromField(s, targetField string) (WikiPage, bool) {
	if targetField == "entity_url" {
		return ParseEntityURL(s)
	}

	var wp WikiPage
	switch targetField {
	case "title":
		wp.Title = s
	case "prefixed_title":
		wp.PrefixedTitle = s
	case "ns_prefix":
		wp.NSPrefix = s
	case "wiki":
		wp.Wiki = s
	case "ns_id":
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return WikiPage{}, false
		}
		wp.NSID = &id
	case "page_id":
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return WikiPage{}, false
		}
		wp.PageID = &id
	default:
		return WikiPage{}, false
	}
	return wp, true
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	case string:
		i, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// FieldMapping describes how one target field of a column cell is populated:
// pull the value keyed by SourceLabel out of the adapter's raw source row.
type FieldMapping struct {
	SourceLabel string `json:"source_label"`
	TargetField string `json:"target_field"`
}

// ColumnMapping is one column of a HeaderMapping: the header to emit, plus
// the ordered field mappings used to build each cell from a source row.
type ColumnMapping struct {
	Header Header         `json:"header"`
	Fields []FieldMapping `json:"fields"`
}

// HeaderMapping describes how an adapter turns raw source rows into
// artifact rows: one ColumnMapping per output column.
type HeaderMapping struct {
	Columns []ColumnMapping `json:"columns"`
}

// AsDataHeader returns the ordered column headers this mapping produces.
func (m HeaderMapping) AsDataHeader() DataHeader {
	h := make(DataHeader, len(m.Columns))
	for i, c := range m.Columns {
		h[i] = c.Header
	}
	return h
}

// BuildRow projects one raw source row (a map keyed by source label) into an
// artifact row using this mapping. A column with no field able to produce a
// value yields Blank for that column, not an error — per-row resilience is
// the adapter's job (it decides whether the whole row should be skipped).
func (m HeaderMapping) BuildRow(ns *sitematrix.Cache, raw map[string]any) []Cell {
	row := make([]Cell, len(m.Columns))
	for i, col := range m.Columns {
		row[i] = Blank()
		for _, f := range col.Fields {
			v, present := raw[f.SourceLabel]
			if !present {
				continue
			}
			c, ok := FromValue(ns, v, col.Header, f.TargetField)
			if !ok {
				continue
			}
			row[i] = c
			break
		}
	}
	return row
}

// IsEmpty reports whether a row encodes to nothing but Blank cells — such
// rows are suppressed by the artifact writer (spec.md §4.1).
func IsEmpty(row []Cell) bool {
	for _, c := range row {
		if c.Kind != KCellBlank {
			return false
		}
	}
	return true
}

// Validate checks HeaderMapping invariants that aren't encoded in the type
// system: every column must have a non-empty name.
func (m HeaderMapping) Validate() error {
	for i, col := range m.Columns {
		if col.Header.Name == "" {
			return fmt.Errorf("header mapping column %d: empty name", i)
		}
	}
	return nil
}
