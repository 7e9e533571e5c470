// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source queries the upstream paper catalog and returns
// deduplicated candidates for a bounded time window.
package source

import (
	"context"
	"sort"
	"time"

	"github.com/pdiddy/arxiv-digest/pkg/types"
)

// Request is a category/time-scoped catalog query. Start and End bound
// the window as [Start, End).
type Request struct {
	Categories []string
	Start      time.Time
	End        time.Time
	MaxResults int
}

// Source searches one upstream paper catalog.
type Source interface {
	Name() string
	Search(ctx context.Context, req Request) ([]types.Candidate, error)
}

// Dedup keeps one candidate per base identifier, retaining the highest
// version and discarding earlier ones. Relative order of the retained
// candidates follows first appearance of each base identifier.
func Dedup(candidates []types.Candidate) []types.Candidate {
	index := make(map[string]int)
	var out []types.Candidate
	for _, c := range candidates {
		if i, ok := index[c.BaseID]; ok {
			if c.Version > out[i].Version {
				out[i] = c
			}
			continue
		}
		index[c.BaseID] = len(out)
		out = append(out, c)
	}
	return out
}

// SortByPublished orders candidates newest first, with the identifier
// as a stable tie-break.
func SortByPublished(candidates []types.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].Published.Equal(candidates[j].Published) {
			return candidates[i].Published.After(candidates[j].Published)
		}
		return candidates[i].ID < candidates[j].ID
	})
}
