// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package trend rolls archived records up into period summaries and
// ranked keyword weights.
package trend

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/arxiv-digest/internal/inference"
	"github.com/pdiddy/arxiv-digest/pkg/types"
)

// NoDataSummary is the explicit marker for a window with no archived
// records; the trend is still returned rather than omitted.
const NoDataSummary = "no archived selections in this period"

const summarizeSystem = "You are an editor-in-chief. Summarize the macro trend across the given papers in one concise paragraph (150-250 words)."

// wordPattern matches candidate keyword tokens: letters followed by
// alphanumerics and a few joining characters.
var wordPattern = regexp.MustCompile(`[A-Za-z][A-Za-z0-9\-\+_/]{2,}`)

// stopwords are common tokens excluded from keyword aggregation.
var stopwords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true, "via": true,
	"from": true, "using": true, "based": true, "our": true, "this": true,
	"that": true, "are": true, "can": true, "new": true, "novel": true,
	"approach": true, "method": true, "paper": true, "propose": true,
	"proposed": true, "results": true, "show": true, "model": true,
	"models": true,
}

// Aggregator builds PeriodTrends from archived records.
type Aggregator struct {
	Service *inference.Service
	LLM     types.LLMConfig
	Config  types.TrendConfig
}

// Keywords aggregates normalized terms from the records'
// method/paradigm fields and matched relevance terms, weights them by
// frequency scaled to the maximum, and returns the top K. Ties keep
// first-seen order, so identical inputs always rank identically.
func Keywords(records []types.PaperRecord, topK int) []types.KeywordWeight {
	if topK <= 0 {
		topK = 20
	}

	counts := make(map[string]int)
	var order []string

	for _, r := range records {
		text := r.Method + "\n" + r.ParadigmRelation + "\n" + strings.Join(r.Relevance.MatchedTerms, " ")
		for _, w := range wordPattern.FindAllString(text, -1) {
			key := strings.ToLower(strings.TrimSpace(w))
			if len(key) < 3 || stopwords[key] {
				continue
			}
			if _, seen := counts[key]; !seen {
				order = append(order, key)
			}
			counts[key]++
		}
	}

	if len(order) == 0 {
		return nil
	}

	// Stable selection sort over first-seen order: higher count wins,
	// equal counts keep earlier first appearance.
	ranked := make([]string, len(order))
	copy(ranked, order)
	for i := 0; i < len(ranked); i++ {
		best := i
		for j := i + 1; j < len(ranked); j++ {
			if counts[ranked[j]] > counts[ranked[best]] {
				best = j
			}
		}
		ranked[i], ranked[best] = ranked[best], ranked[i]
	}

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	max := float64(counts[ranked[0]])
	out := make([]types.KeywordWeight, len(ranked))
	for i, k := range ranked {
		out[i] = types.KeywordWeight{Keyword: k, Weight: float64(counts[k]) / max}
	}
	return out
}

// Aggregate builds the PeriodTrend for one window over the given
// archived records. An empty window yields the explicit no-data trend
// with an empty keyword list; it never fails and is never omitted. The
// narrative comes from a single inference call and is deterministic
// under deterministic inference settings and an identical record set.
func (a *Aggregator) Aggregate(ctx context.Context, period types.Period, records []types.PaperRecord, end time.Time) (*types.PeriodTrend, error) {
	days := a.windowDays(period)
	start := end.AddDate(0, 0, -(days - 1))

	t := &types.PeriodTrend{
		Period: period,
		Start:  start,
		End:    end,
	}

	if len(records) == 0 {
		t.Summary = NoDataSummary
		return t, nil
	}

	t.Keywords = Keywords(records, a.Config.TopKKeywords)

	var bullets []string
	for _, r := range records {
		bullets = append(bullets, fmt.Sprintf("- %s: %s / %s", r.Title, r.Method, r.ParadigmRelation))
		if len(bullets) >= 120 {
			break
		}
	}

	user := fmt.Sprintf("Period: %s\nRange: %s to %s\n\nPapers (method / paradigm notes):\n%s",
		period, start.Format("2006-01-02"), end.Format("2006-01-02"), strings.Join(bullets, "\n"))

	summary, err := a.Service.Narrative(ctx, a.LLM.ModelSmart, summarizeSystem, user, "summary")
	if err != nil {
		// Keywords are already computed; only the narrative degrades
		// when the call budget or the run's wall clock gives out.
		if errors.Is(err, inference.ErrBudgetExhausted) {
			t.Summary = "summary unavailable: call budget exhausted"
			return t, nil
		}
		if ctx.Err() != nil {
			t.Summary = "summary unavailable: run cancelled"
			return t, nil
		}
		return nil, fmt.Errorf("summarizing %s trend: %w", period, err)
	}
	t.Summary = summary
	return t, nil
}

// windowDays maps a period tag to its configured window length.
func (a *Aggregator) windowDays(period types.Period) int {
	switch period {
	case types.PeriodWeek:
		if a.Config.WeeklyDays > 0 {
			return a.Config.WeeklyDays
		}
		return 7
	case types.PeriodMonth:
		if a.Config.MonthlyDays > 0 {
			return a.Config.MonthlyDays
		}
		return 30
	default:
		return 1
	}
}
