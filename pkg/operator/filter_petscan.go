package operator

import (
	"context"

	"github.com/google/uuid"
	"github.com/smilemakc/toolflow/pkg/adapter/builtin"
	"github.com/smilemakc/toolflow/pkg/artifact"
	"github.com/smilemakc/toolflow/pkg/cell"
	"github.com/smilemakc/toolflow/pkg/toolflowerr"
)

// FilterPetScanParams configures FilterPetScan: a WikiPage column plus the
// foreign PetScan query id acting as the classifier.
type FilterPetScanParams struct {
	Key  string
	PSID int64
}

// FilterPetScan is the two-pass Filter variant: it first collects every
// row's prefixed_title for the named WikiPage column, POSTs the whole set
// to PetScan's batch classifier in one round-trip (sharing the PetScan
// adapter's HTTP client), then keeps only the rows whose title came back.
func FilterPetScan(ctx context.Context, store Store, classifier *builtin.PetScan, id uuid.UUID, p FilterPetScanParams) (artifact.Details, error) {
	r, err := store.OpenInput(id)
	if err != nil {
		return artifact.Details{}, err
	}
	header, rows, err := artifact.ReadAll(r)
	r.Close()
	if err != nil {
		return artifact.Details{}, err
	}

	keyIdx := header.IndexOf(p.Key)
	if keyIdx < 0 {
		return artifact.Details{}, toolflowerr.ErrMissingKeyColumn
	}

	var wiki string
	titles := make([]string, 0, len(rows))
	for _, row := range rows {
		c := row[keyIdx]
		if c.Kind != cell.KCellWikiPage {
			continue
		}
		if wiki == "" {
			wiki = c.WikiPage.Wiki
		}
		titles = append(titles, c.WikiPage.PrefixedTitle)
	}

	matched, err := classifier.ClassifyTitles(ctx, wiki, p.PSID, titles)
	if err != nil {
		return artifact.Details{}, err
	}

	out, err := store.CreateOutput()
	if err != nil {
		return artifact.Details{}, err
	}
	defer out.Close()
	if err := out.WriteHeader(header); err != nil {
		return artifact.Details{}, err
	}
	for _, row := range rows {
		c := row[keyIdx]
		if c.Kind != cell.KCellWikiPage || !matched[c.WikiPage.PrefixedTitle] {
			continue
		}
		if err := out.WriteRow(row); err != nil {
			return artifact.Details{}, err
		}
	}
	return out.Details(), nil
}
