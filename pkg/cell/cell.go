package cell

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/smilemakc/toolflow/pkg/sitematrix"
)

// WikiPage is a partially-specified reference to a wiki page. Fields left
// unset are filled in from the column-level defaults (merge) and then by
// FillMissing using the site metadata cache (C9).
type WikiPage struct {
	Wiki          string `json:"wiki,omitempty"`
	NSID          *int64 `json:"ns_id,omitempty"`
	NSPrefix      string `json:"ns_prefix,omitempty"`
	Title         string `json:"title,omitempty"`
	PrefixedTitle string `json:"prefixed_title,omitempty"`
	PageID        *int64 `json:"page_id,omitempty"`
}

// Equal compares two WikiPages by (wiki, prefixed_title) only, per spec.
func (w WikiPage) Equal(o WikiPage) bool {
	return w.Wiki == o.Wiki && w.PrefixedTitle == o.PrefixedTitle
}

func (w WikiPage) merge(defaults *WikiPage) WikiPage {
	if defaults == nil {
		return w
	}
	if w.Wiki == "" {
		w.Wiki = defaults.Wiki
	}
	if w.NSID == nil {
		w.NSID = defaults.NSID
	}
	if w.NSPrefix == "" {
		w.NSPrefix = defaults.NSPrefix
	}
	if w.Title == "" {
		w.Title = defaults.Title
	}
	if w.PrefixedTitle == "" {
		w.PrefixedTitle = defaults.PrefixedTitle
	}
	if w.PageID == nil {
		w.PageID = defaults.PageID
	}
	return w
}

// FillMissing normalises and completes a WikiPage per spec.md §4.2.
func FillMissing(ns *sitematrix.Cache, w WikiPage) WikiPage {
	w.Title = strings.ReplaceAll(w.Title, " ", "_")
	w.PrefixedTitle = strings.ReplaceAll(w.PrefixedTitle, " ", "_")

	if w.Wiki != "" && w.NSID == nil {
		idx := strings.IndexByte(w.PrefixedTitle, ':')
		if idx < 0 {
			zero := int64(0)
			w.NSID = &zero
			w.Title = w.PrefixedTitle
		} else {
			prefix, title := w.PrefixedTitle[:idx], w.PrefixedTitle[idx+1:]
			if id, ok := ns.NSNameToID(w.Wiki, prefix); ok {
				nsid := id
				w.NSID = &nsid
				w.Title = title
			} else {
				zero := int64(0)
				w.NSID = &zero
			}
		}
	}

	if w.NSPrefix == "" && w.NSID != nil && *w.NSID != 0 {
		if name, ok := ns.NSIDToName(w.Wiki, *w.NSID); ok {
			w.NSPrefix = name
		}
	}

	if w.PrefixedTitle == "" && w.Title != "" {
		if w.NSPrefix == "" {
			w.PrefixedTitle = w.Title
		} else {
			w.PrefixedTitle = w.NSPrefix + ":" + w.Title
		}
	}

	return w
}

var entityURLPattern = regexp.MustCompile(`^https?://www\.wikidata\.org/entity/(Q|P)(\d+)$`)

// ParseEntityURL decodes a wikidata entity URL into title/prefixed_title/ns_id
// per spec.md scenario 2 (Q-items live in ns 0, properties in ns 120).
func ParseEntityURL(raw string) (WikiPage, bool) {
	m := entityURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return WikiPage{}, false
	}
	title := m[1] + m[2]
	nsid := int64(0)
	if m[1] == "P" {
		nsid = 120
	}
	return WikiPage{Title: title, PrefixedTitle: title, NSID: &nsid}, true
}

// Cell kind tags.
const (
	KCellPlainText = "PlainText"
	KCellInt       = "Int"
	KCellFloat     = "Float"
	KCellWikiPage  = "WikiPage"
	KCellBlank     = "Blank"
)

// Cell is the tagged union of data values a row can hold in one column.
type Cell struct {
	Kind     string
	Text     string
	Int      int64
	Float    float64
	WikiPage *WikiPage
}

func Blank() Cell             { return Cell{Kind: KCellBlank} }
func Text(s string) Cell      { return Cell{Kind: KCellPlainText, Text: s} }
func IntCell(i int64) Cell    { return Cell{Kind: KCellInt, Int: i} }
func FloatCell(f float64) Cell { return Cell{Kind: KCellFloat, Float: f} }
func PageCell(w WikiPage) Cell { return Cell{Kind: KCellWikiPage, WikiPage: &w} }

// jsonCell is the wire shape: {"Tag": payload} except Blank, which encodes as
// the bare string "Blank" (there is no payload to carry).
type jsonCell map[string]json.RawMessage

// MarshalJSON implements the tagged-variant convention from spec.md §6.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case KCellBlank:
		return json.Marshal(KCellBlank)
	case KCellPlainText:
		return marshalTagged(KCellPlainText, c.Text)
	case KCellInt:
		return marshalTagged(KCellInt, c.Int)
	case KCellFloat:
		return marshalTagged(KCellFloat, c.Float)
	case KCellWikiPage:
		return marshalTagged(KCellWikiPage, c.WikiPage)
	default:
		return nil, fmt.Errorf("marshal cell: unknown kind %q", c.Kind)
	}
}

func marshalTagged(tag string, payload any) ([]byte, error) {
	return json.Marshal(map[string]any{tag: payload})
}

// UnmarshalJSON accepts the bare "Blank" string or a single-key tagged object.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		if bare != KCellBlank {
			return fmt.Errorf("decode cell: unexpected bare value %q", bare)
		}
		*c = Blank()
		return nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return fmt.Errorf("decode cell: %w", err)
	}
	for tag, raw := range wrapper {
		switch tag {
		case KCellPlainText:
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return err
			}
			*c = Text(s)
		case KCellInt:
			var i int64
			if err := json.Unmarshal(raw, &i); err != nil {
				return err
			}
			*c = IntCell(i)
		case KCellFloat:
			var f float64
			if err := json.Unmarshal(raw, &f); err != nil {
				return err
			}
			*c = FloatCell(f)
		case KCellWikiPage:
			var w WikiPage
			if err := json.Unmarshal(raw, &w); err != nil {
				return err
			}
			*c = Cell{Kind: KCellWikiPage, WikiPage: &w}
		default:
			return fmt.Errorf("decode cell: unknown tag %q", tag)
		}
		return nil
	}
	return fmt.Errorf("decode cell: empty object")
}

// Key derives the canonical string used for joins, dedup and equality.
func (c Cell) Key() string {
	switch c.Kind {
	case KCellBlank:
		return ""
	case KCellPlainText:
		return c.Text
	case KCellInt:
		return strconv.FormatInt(c.Int, 10)
	case KCellFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case KCellWikiPage:
		wp := c.WikiPage
		if wp.PrefixedTitle != "" {
			return wp.Wiki + "::" + wp.PrefixedTitle
		}
		return wp.NSPrefix + ":" + wp.Title
	default:
		return ""
	}
}

// Field extracts a single named component of a WikiPage cell as a plain
// string, used by Filter's subkey reduction.
func (c Cell) Field(name string) (string, bool) {
	if c.Kind != KCellWikiPage {
		return "", false
	}
	wp := c.WikiPage
	switch name {
	case "title":
		return wp.Title, true
	case "prefixed_title":
		return wp.PrefixedTitle, true
	case "ns_prefix":
		return wp.NSPrefix, true
	case "ns_id":
		if wp.NSID == nil {
			return "", false
		}
		return strconv.FormatInt(*wp.NSID, 10), true
	case "page_id":
		if wp.PageID == nil {
			return "", false
		}
		return strconv.FormatInt(*wp.PageID, 10), true
	case "wiki":
		return wp.Wiki, true
	default:
		return "", false
	}
}

// Compare orders two cells. Blank is minimal (and equal to Blank); like
// kinds compare naturally; Int/Float cross-compare via float promotion;
// other cross-kind pairs are incomparable (ok=false).
//
// Blank-vs-non-Blank is an Open Question in spec.md §9 that this
// implementation resolves explicitly: Blank sorts below every other kind,
// matching the "Blank is minimal" rule already stated for sort ordering.
func Compare(a, b Cell) (cmp int, ok bool) {
	if a.Kind == KCellBlank && b.Kind == KCellBlank {
		return 0, true
	}
	if a.Kind == KCellBlank {
		return -1, true
	}
	if b.Kind == KCellBlank {
		return 1, true
	}

	switch {
	case a.Kind == KCellPlainText && b.Kind == KCellPlainText:
		return strings.Compare(a.Text, b.Text), true
	case a.Kind == KCellInt && b.Kind == KCellInt:
		return compareInt(a.Int, b.Int), true
	case a.Kind == KCellFloat && b.Kind == KCellFloat:
		return compareFloat(a.Float, b.Float), true
	case a.Kind == KCellInt && b.Kind == KCellFloat:
		return compareFloat(float64(a.Int), b.Float), true
	case a.Kind == KCellFloat && b.Kind == KCellInt:
		return compareFloat(a.Float, float64(b.Int)), true
	case a.Kind == KCellWikiPage && b.Kind == KCellWikiPage:
		return strings.Compare(a.Key(), b.Key()), true
	default:
		return 0, false
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
