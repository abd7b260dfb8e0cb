// Package builtin implements the concrete external-source adapters named by
// spec.md's NodeKind enumeration: QuarryLatest, Sparql, PetScan, PagePile,
// AListBuildingTool, UserEdits, WdFist. Each is a thin net/http client that
// decodes one external response shape and projects it through a
// cell.HeaderMapping, row by row, skipping rows it cannot decode.
package builtin

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/smilemakc/toolflow/pkg/adapter"
	"github.com/smilemakc/toolflow/pkg/artifact"
	"github.com/smilemakc/toolflow/pkg/cell"
	"github.com/smilemakc/toolflow/pkg/sitematrix"
	"github.com/smilemakc/toolflow/pkg/toolflowerr"
)

// client bundles the collaborators every builtin adapter needs: an HTTP
// client with the configured fetch timeout, the namespace cache used to
// fill WikiPage cells, and a logger for row-skip diagnostics.
type client struct {
	http *http.Client
	ns   *sitematrix.Cache
	log  zerolog.Logger
}

// New constructs the http.Client shared by every builtin adapter, per
// spec.md §5's default 300s external-fetch timeout.
func New(timeout time.Duration, ns *sitematrix.Cache, log zerolog.Logger) *client {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &client{http: &http.Client{Timeout: timeout}, ns: ns, log: log}
}

func (c *client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", toolflowerr.ErrExternalFetch, rawURL, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", toolflowerr.ErrExternalFetch, rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s: status %d", toolflowerr.ErrExternalFetch, rawURL, resp.StatusCode)
	}
	return resp, nil
}

func (c *client) post(ctx context.Context, rawURL string, contentType string, body strings.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", toolflowerr.ErrExternalFetch, rawURL, err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", toolflowerr.ErrExternalFetch, rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s: status %d", toolflowerr.ErrExternalFetch, rawURL, resp.StatusCode)
	}
	return resp, nil
}

// writeProjected projects every raw source row through mapping, writing the
// header once up front. Rows that fail field extraction are counted but not
// treated as a fatal error.
func (c *client) writeProjected(out *artifact.Writer, mapping cell.HeaderMapping, rows []map[string]any) error {
	if err := out.WriteHeader(mapping.AsDataHeader()); err != nil {
		return err
	}
	skipped := 0
	for _, raw := range rows {
		row := mapping.BuildRow(c.ns, raw)
		if cell.IsEmpty(row) {
			skipped++
			continue
		}
		if err := out.WriteRow(row); err != nil {
			return fmt.Errorf("%w: %v", toolflowerr.ErrSourceDecode, err)
		}
	}
	if skipped > 0 {
		c.log.Debug().Int("skipped_rows", skipped).Msg("adapter skipped undecodable rows")
	}
	return nil
}

// QuarryLatest fetches the latest successful result set of a Quarry query
// by numeric query id, decoding Quarry's JSON result-table shape.
type QuarryLatest struct{ *client }

func NewQuarryLatest(c *client) *QuarryLatest { return &QuarryLatest{c} }

func (a *QuarryLatest) Fetch(ctx context.Context, spec adapter.SourceSpec, mapping cell.HeaderMapping, out *artifact.Writer) error {
	if spec.Kind != adapter.SourceNumericID {
		return fmt.Errorf("%w: QuarryLatest requires NumericID, got %s", toolflowerr.ErrUnsuitableSource, spec.Kind)
	}
	u := fmt.Sprintf("https://quarry.wmcloud.org/run/%d/output/0/json", spec.ID)
	resp, err := a.get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Headers []string        `json:"headers"`
		Rows    [][]json.Number `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", toolflowerr.ErrSourceDecode, err)
	}

	rows := make([]map[string]any, 0, len(body.Rows))
	for _, r := range body.Rows {
		raw := make(map[string]any, len(body.Headers))
		for i, h := range body.Headers {
			if i >= len(r) {
				continue
			}
			raw[h] = r[i].String()
		}
		rows = append(rows, raw)
	}
	return a.writeProjected(out, mapping, rows)
}

// Sparql runs a SPARQL query text against the Wikidata Query Service,
// decoding the SPARQL JSON results format. BaseURL is overridable for tests.
type Sparql struct {
	*client
	BaseURL string
}

func NewSparql(c *client) *Sparql {
	return &Sparql{client: c, BaseURL: "https://query.wikidata.org/sparql"}
}

func (a *Sparql) Fetch(ctx context.Context, spec adapter.SourceSpec, mapping cell.HeaderMapping, out *artifact.Writer) error {
	if spec.Kind != adapter.SourceSparqlText {
		return fmt.Errorf("%w: Sparql requires SparqlText, got %s", toolflowerr.ErrUnsuitableSource, spec.Kind)
	}
	u := a.BaseURL + "?format=json&query=" + url.QueryEscape(spec.Text)
	resp, err := a.get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Results struct {
			Bindings []map[string]struct {
				Value string `json:"value"`
			} `json:"bindings"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", toolflowerr.ErrSourceDecode, err)
	}

	rows := make([]map[string]any, 0, len(body.Results.Bindings))
	for _, binding := range body.Results.Bindings {
		raw := make(map[string]any, len(binding))
		for k, v := range binding {
			raw[k] = v.Value
		}
		rows = append(rows, raw)
	}
	return a.writeProjected(out, mapping, rows)
}

// PetScan fetches a PetScan page-set result by numeric PSID, decoding
// PetScan's JSON "pages" array.
type PetScan struct{ *client }

func NewPetScan(c *client) *PetScan { return &PetScan{c} }

func (a *PetScan) petscanURL(psid int64) string {
	return fmt.Sprintf("https://petscan.wmflabs.org/?psid=%d&format=json&doit=1", psid)
}

func (a *PetScan) Fetch(ctx context.Context, spec adapter.SourceSpec, mapping cell.HeaderMapping, out *artifact.Writer) error {
	if spec.Kind != adapter.SourceNumericID {
		return fmt.Errorf("%w: PetScan requires NumericID, got %s", toolflowerr.ErrUnsuitableSource, spec.Kind)
	}
	resp, err := a.get(ctx, a.petscanURL(spec.ID))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var raw struct {
		Query []struct {
			Pages []struct {
				Title string `json:"title"`
				NSID  int64  `json:"namespace"`
			} `json:"*"`
		} `json:"*"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", toolflowerr.ErrSourceDecode, err)
	}

	var rows []map[string]any
	for _, q := range raw.Query {
		for _, p := range q.Pages {
			rows = append(rows, map[string]any{
				"title": p.Title,
				"ns_id": fmt.Sprintf("%d", p.NSID),
			})
		}
	}
	return a.writeProjected(out, mapping, rows)
}

// PagePile fetches a PagePile page list by numeric pile id. BaseURL
// defaults to the production endpoint but is overridable (tests point it
// at an httptest server).
type PagePile struct {
	*client
	BaseURL string
}

func NewPagePile(c *client) *PagePile {
	return &PagePile{client: c, BaseURL: "https://pagepile.toolforge.org"}
}

func (a *PagePile) Fetch(ctx context.Context, spec adapter.SourceSpec, mapping cell.HeaderMapping, out *artifact.Writer) error {
	if spec.Kind != adapter.SourceNumericID {
		return fmt.Errorf("%w: PagePile requires NumericID, got %s", toolflowerr.ErrUnsuitableSource, spec.Kind)
	}
	u := fmt.Sprintf("%s/api.php?id=%d&action=get_data&format=json&doit=1", a.BaseURL, spec.ID)
	resp, err := a.get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Wiki  string   `json:"wiki"`
		Pages []string `json:"pages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", toolflowerr.ErrSourceDecode, err)
	}

	rows := make([]map[string]any, 0, len(body.Pages))
	for _, title := range body.Pages {
		rows = append(rows, map[string]any{"wiki": body.Wiki, "prefixed_title": title})
	}
	return a.writeProjected(out, mapping, rows)
}

// AListBuildingTool fetches a named list from the AListBuildingTool
// service, addressed by numeric list id.
type AListBuildingTool struct{ *client }

func NewAListBuildingTool(c *client) *AListBuildingTool { return &AListBuildingTool{c} }

func (a *AListBuildingTool) Fetch(ctx context.Context, spec adapter.SourceSpec, mapping cell.HeaderMapping, out *artifact.Writer) error {
	if spec.Kind != adapter.SourceNumericID {
		return fmt.Errorf("%w: AListBuildingTool requires NumericID, got %s", toolflowerr.ErrUnsuitableSource, spec.Kind)
	}
	u := fmt.Sprintf("https://alistbuildingtool.toolforge.org/api/lists/%d/items?format=json", spec.ID)
	resp, err := a.get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Items []struct {
			Wiki  string `json:"wiki"`
			Title string `json:"title"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", toolflowerr.ErrSourceDecode, err)
	}

	rows := make([]map[string]any, 0, len(body.Items))
	for _, it := range body.Items {
		rows = append(rows, map[string]any{"wiki": it.Wiki, "prefixed_title": it.Title})
	}
	return a.writeProjected(out, mapping, rows)
}

// UserEdits fetches a user's recent-contributions list from a wiki's API,
// addressed by URL (the caller pre-builds the wiki + username into the
// query string, per spec.md's URL source-spec variant).
type UserEdits struct{ *client }

func NewUserEdits(c *client) *UserEdits { return &UserEdits{c} }

func (a *UserEdits) Fetch(ctx context.Context, spec adapter.SourceSpec, mapping cell.HeaderMapping, out *artifact.Writer) error {
	if spec.Kind != adapter.SourceURL {
		return fmt.Errorf("%w: UserEdits requires URL, got %s", toolflowerr.ErrUnsuitableSource, spec.Kind)
	}
	resp, err := a.get(ctx, spec.Text)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Query struct {
			UserContribs []struct {
				Title string `json:"title"`
				Ns    int64  `json:"ns"`
			} `json:"usercontribs"`
		} `json:"query"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", toolflowerr.ErrSourceDecode, err)
	}

	rows := make([]map[string]any, 0, len(body.Query.UserContribs))
	for _, c := range body.Query.UserContribs {
		rows = append(rows, map[string]any{
			"title": c.Title,
			"ns_id": fmt.Sprintf("%d", c.Ns),
		})
	}
	return a.writeProjected(out, mapping, rows)
}

// WdFist fetches the WdFist file-candidate list for a (wiki, qid) pair —
// the only adapter handling the WikiQID source-spec variant.
type WdFist struct{ *client }

func NewWdFist(c *client) *WdFist { return &WdFist{c} }

func (a *WdFist) Fetch(ctx context.Context, spec adapter.SourceSpec, mapping cell.HeaderMapping, out *artifact.Writer) error {
	if spec.Kind != adapter.SourceWikiQID {
		return fmt.Errorf("%w: WdFist requires WikiQID, got %s", toolflowerr.ErrUnsuitableSource, spec.Kind)
	}
	u := fmt.Sprintf("https://wdfist.toolforge.org/api.php?wiki=%s&q=%s&format=json",
		url.QueryEscape(spec.Wiki), url.QueryEscape(spec.QID))
	resp, err := a.get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Files []string `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", toolflowerr.ErrSourceDecode, err)
	}

	rows := make([]map[string]any, 0, len(body.Files))
	for _, f := range body.Files {
		rows = append(rows, map[string]any{"wiki": spec.Wiki, "prefixed_title": "File:" + f})
	}
	return a.writeProjected(out, mapping, rows)
}

// ClassifyTitles backs FilterPetScan (pkg/operator): it POSTs the set of
// prefixed titles for one wiki, plus the PetScan query id acting as the
// classifier, and returns the subset PetScan reports back as matching.
// This is the HTTP client FilterPetScan shares with the PetScan adapter
// rather than opening a second one.
func (a *PetScan) ClassifyTitles(ctx context.Context, wiki string, psid int64, titles []string) (map[string]bool, error) {
	form := url.Values{}
	form.Set("wiki", wiki)
	form.Set("psid", fmt.Sprintf("%d", psid))
	form.Set("titles", strings.Join(titles, "\n"))

	resp, err := a.post(ctx, "https://petscan.wmflabs.org/batch_classify.php", "application/x-www-form-urlencoded", *strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	matched := readLines(sc)

	out := make(map[string]bool, len(matched))
	for _, t := range matched {
		out[t] = true
	}
	return out, nil
}

// readLines collects non-blank, trimmed lines from a newline-delimited
// plain-text response body.
func readLines(body *bufio.Scanner) []string {
	var lines []string
	for body.Scan() {
		line := strings.TrimSpace(body.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
