// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package spotlight

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/arxiv-digest/internal/httputil"
	"github.com/pdiddy/arxiv-digest/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper lookup endpoint.
// Declared as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper"

const semanticFields = "citationCount,influentialCitationCount"

// SemanticScholar fetches citation counts for arXiv papers.
type SemanticScholar struct {
	Client *http.Client
	APIKey string
	Retry  types.RetryPolicy
}

// Name returns the source identifier used in weight keys and caching.
func (s *SemanticScholar) Name() string { return "semantic_scholar" }

// Fetch looks up the paper by its arXiv identifier and returns its
// citation signals. An unknown paper is no data, not an error; any
// other non-OK status wraps ErrSourceUnavailable.
func (s *SemanticScholar) Fetch(ctx context.Context, paperID string) ([]types.AttentionSignal, error) {
	reqURL := fmt.Sprintf("%s/arXiv:%s?fields=%s", semanticAPIBase, baseArxivID(paperID), semanticFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if s.APIKey != "" {
		req.Header.Set("x-api-key", s.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, s.Retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: Semantic Scholar returned HTTP %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var sp semanticPaper
	if err := json.NewDecoder(resp.Body).Decode(&sp); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	now := time.Now().UTC()
	return []types.AttentionSignal{
		{Source: s.Name(), Metric: "citations", Value: float64(sp.CitationCount), FetchedAt: now},
		{Source: s.Name(), Metric: "influential_citations", Value: float64(sp.InfluentialCitationCount), FetchedAt: now},
	}, nil
}

// baseArxivID strips a version suffix; the lookup API wants bare IDs.
func baseArxivID(id string) string {
	if i := strings.LastIndex(id, "v"); i > 0 {
		if _, err := fmt.Sscanf(id[i:], "v%d", new(int)); err == nil {
			return id[:i]
		}
	}
	return id
}

type semanticPaper struct {
	PaperID                  string `json:"paperId"`
	CitationCount            int    `json:"citationCount"`
	InfluentialCitationCount int    `json:"influentialCitationCount"`
}
