// Package sitematrix resolves wiki namespace names/ids for a wiki id (e.g.
// "enwiki", "commonswiki") by fetching and memoising each wiki's namespace
// table (C9 in the design).
package sitematrix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

// NamespaceEntry is one namespace: its numeric id plus canonical/local names.
type NamespaceEntry struct {
	ID        int64
	Canonical string
	Local     string
}

// Fetcher retrieves the namespace table for a resolved hostname. The
// production fetcher hits the wiki's MediaWiki API; tests supply a stub.
type Fetcher func(ctx context.Context, hostname string) (map[int64]NamespaceEntry, error)

// Cache memoises namespace tables per wiki id behind an async-friendly
// reader/writer lock: many concurrent readers, an exclusive writer only
// while a wiki's table is being fetched for the first time.
type Cache struct {
	mu     sync.RWMutex
	byWiki map[string]map[int64]NamespaceEntry
	fetch  Fetcher
	client *http.Client
}

// NewCache builds a Cache that fetches namespace tables over HTTP.
func NewCache(client *http.Client) *Cache {
	if client == nil {
		client = &http.Client{Timeout: 300 * time.Second}
	}
	c := &Cache{byWiki: make(map[string]map[int64]NamespaceEntry), client: client}
	c.fetch = c.httpFetch
	return c
}

// NewCacheWithFetcher builds a Cache using a caller-supplied fetcher,
// primarily for tests that must not hit the network.
func NewCacheWithFetcher(fetch Fetcher) *Cache {
	return &Cache{byWiki: make(map[string]map[int64]NamespaceEntry), fetch: fetch}
}

// NSNameToID resolves a namespace name to its id, case-insensitively and
// underscore/space normalised, searching both local and canonical names.
func (c *Cache) NSNameToID(wiki, name string) (int64, bool) {
	table, err := c.ensureLoaded(context.Background(), wiki)
	if err != nil {
		return 0, false
	}
	norm := normalizeNSName(name)
	if norm == "" {
		return 0, true // main namespace
	}
	for id, e := range table {
		if normalizeNSName(e.Local) == norm || normalizeNSName(e.Canonical) == norm {
			return id, true
		}
	}
	return 0, false
}

// NSIDToName resolves a namespace id to the wiki's local (language-specific)
// name, falling back to the canonical name. Local is preferred because it is
// what that wiki's own page titles actually use as a prefix (e.g. dewiki's
// ns 14 is "Kategorie", not "Category").
func (c *Cache) NSIDToName(wiki string, id int64) (string, bool) {
	table, err := c.ensureLoaded(context.Background(), wiki)
	if err != nil {
		return "", false
	}
	e, ok := table[id]
	if !ok {
		return "", false
	}
	if e.Local != "" {
		return e.Local, true
	}
	return e.Canonical, true
}

func normalizeNSName(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
}

func (c *Cache) ensureLoaded(ctx context.Context, wiki string) (map[int64]NamespaceEntry, error) {
	c.mu.RLock()
	table, ok := c.byWiki[wiki]
	c.mu.RUnlock()
	if ok {
		return table, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if table, ok := c.byWiki[wiki]; ok {
		return table, nil
	}

	hostname, ok := ResolveHostname(wiki)
	if !ok {
		return nil, fmt.Errorf("sitematrix: cannot resolve hostname for wiki %q", wiki)
	}
	table, err := c.fetch(ctx, hostname)
	if err != nil {
		return nil, fmt.Errorf("sitematrix: fetch namespaces for %s: %w", hostname, err)
	}
	c.byWiki[wiki] = table
	return table, nil
}

var (
	wikipediaPattern = regexp.MustCompile(`^(.+)wiki$`)
	otherWikiPattern = regexp.MustCompile(`^(.+)(wik.+)$`)

	explicitHosts = map[string]string{
		"commonswiki":  "commons.wikimedia.org",
		"wikidatawiki": "www.wikidata.org",
		"specieswiki":  "species.wikimedia.org",
		"metawiki":     "meta.wikimedia.org",
	}
)

// ResolveHostname applies the hostname resolution rules in exact order:
// explicit map, underscore→dash, "*wiki" → "*.wikipedia.org", the more
// general "*wik*" → "*.wik*.org" pattern. Returns ok=false if none match.
func ResolveHostname(wiki string) (string, bool) {
	if host, ok := explicitHosts[wiki]; ok {
		return host, true
	}

	dashed := strings.ReplaceAll(wiki, "_", "-")

	if m := wikipediaPattern.FindStringSubmatch(dashed); m != nil {
		return m[1] + ".wikipedia.org", true
	}
	if m := otherWikiPattern.FindStringSubmatch(dashed); m != nil {
		return m[1] + "." + m[2] + ".org", true
	}
	return "", false
}

type siteinfoResponse struct {
	Query struct {
		Namespaces map[string]struct {
			ID        int64  `json:"id"`
			Canonical string `json:"canonical"`
			Name      string `json:"*"`
		} `json:"namespaces"`
	} `json:"query"`
}

func (c *Cache) httpFetch(ctx context.Context, hostname string) (map[int64]NamespaceEntry, error) {
	url := fmt.Sprintf("https://%s/w/api.php?action=query&meta=siteinfo&siprop=namespaces&format=json", hostname)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("siteinfo request: status %d", resp.StatusCode)
	}

	var body siteinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	table := make(map[int64]NamespaceEntry, len(body.Query.Namespaces))
	for _, ns := range body.Query.Namespaces {
		table[ns.ID] = NamespaceEntry{ID: ns.ID, Canonical: ns.Canonical, Local: ns.Name}
	}
	return table, nil
}
