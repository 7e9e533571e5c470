// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/pdiddy/arxiv-digest/internal/httputil"
	"github.com/pdiddy/arxiv-digest/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// arXiv expects range bounds as YYYYMMDDHHMM in GMT.
const arxivTimeLayout = "200601021504"

// ArxivSource queries the arXiv Atom API.
type ArxivSource struct {
	Client *http.Client
	HTTP   types.HTTPConfig
	Retry  types.RetryPolicy
}

// Name returns the source identifier.
func (s *ArxivSource) Name() string { return "arxiv" }

// Search queries arXiv for papers in the requested categories whose
// last update falls inside [req.Start, req.End), sorted newest first
// and deduplicated by base identifier.
func (s *ArxivSource) Search(ctx context.Context, req Request) ([]types.Candidate, error) {
	q := buildArxivQuery(req)

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = 120
	}

	params := url.Values{
		"search_query": {q},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(maxResults)},
		"sortBy":       {"lastUpdatedDate"},
		"sortOrder":    {"descending"},
	}
	reqURL := arxivAPIBase + "?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", s.HTTP.UserAgent)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, httpReq, s.Retry)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing arXiv feed: %w", err)
	}

	var candidates []types.Candidate
	for _, item := range feed.Items {
		c, ok := toCandidate(item)
		if !ok {
			continue
		}
		// The range filter in the query is authoritative upstream, but
		// the feed may include boundary entries; enforce the window.
		if !req.Start.IsZero() && c.Published.Before(req.Start) {
			continue
		}
		if !req.End.IsZero() && !c.Published.Before(req.End) {
			continue
		}
		candidates = append(candidates, c)
	}

	candidates = Dedup(candidates)
	SortByPublished(candidates)
	return candidates, nil
}

// buildArxivQuery constructs the search_query parameter: an OR over
// categories AND a lastUpdatedDate range.
func buildArxivQuery(req Request) string {
	var parts []string

	if len(req.Categories) > 0 {
		cats := make([]string, len(req.Categories))
		for i, c := range req.Categories {
			cats[i] = "cat:" + c
		}
		parts = append(parts, "("+strings.Join(cats, " OR ")+")")
	} else {
		parts = append(parts, "all")
	}

	if !req.Start.IsZero() && !req.End.IsZero() {
		parts = append(parts, fmt.Sprintf("lastUpdatedDate:[%s TO %s]",
			req.Start.UTC().Format(arxivTimeLayout),
			req.End.UTC().Format(arxivTimeLayout)))
	}

	return strings.Join(parts, " AND ")
}

// toCandidate converts one Atom entry to a Candidate. Entries without a
// recognizable arXiv identifier are dropped.
func toCandidate(item *gofeed.Item) (types.Candidate, bool) {
	id := extractArxivID(item.GUID)
	if id == "" {
		return types.Candidate{}, false
	}
	base, version := splitVersion(id)

	c := types.Candidate{
		ID:         id,
		BaseID:     base,
		Version:    version,
		Title:      collapseSpace(item.Title),
		Abstract:   collapseSpace(item.Description),
		Categories: item.Categories,
		URL:        item.Link,
	}
	if c.URL == "" {
		c.URL = item.GUID
	}

	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			c.Authors = append(c.Authors, strings.TrimSpace(a.Name))
		}
	}

	switch {
	case item.UpdatedParsed != nil:
		c.Published = item.UpdatedParsed.UTC()
	case item.PublishedParsed != nil:
		c.Published = item.PublishedParsed.UTC()
	}

	c.PrimaryCategory = primaryCategory(item)
	if c.PrimaryCategory == "" && len(c.Categories) > 0 {
		c.PrimaryCategory = c.Categories[0]
	}

	return c, true
}

// primaryCategory reads the arxiv:primary_category extension element.
func primaryCategory(item *gofeed.Item) string {
	exts, ok := item.Extensions["arxiv"]
	if !ok {
		return ""
	}
	for _, e := range exts["primary_category"] {
		if term := e.Attrs["term"]; term != "" {
			return term
		}
	}
	return ""
}

// extractArxivID pulls the versioned arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v2" → "2301.07041v2").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	return idURL[idx+len(prefix):]
}

// splitVersion splits "2301.07041v2" into ("2301.07041", 2). IDs
// without a version suffix report version 1.
func splitVersion(id string) (string, int) {
	vIdx := strings.LastIndex(id, "v")
	if vIdx <= 0 {
		return id, 1
	}
	n, err := strconv.Atoi(id[vIdx+1:])
	if err != nil || n < 1 {
		return id, 1
	}
	return id[:vIdx], n
}

// collapseSpace trims the string and folds internal whitespace runs,
// including the newlines arXiv inserts into titles and abstracts.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
