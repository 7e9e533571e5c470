// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter classifies every candidate against the user interest
// and selects the daily subset.
package filter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/pdiddy/arxiv-digest/internal/inference"
	"github.com/pdiddy/arxiv-digest/pkg/types"
)

// verdictSchema is the target schema for relevance classification.
const verdictSchema = `{
  "type": "object",
  "properties": {
    "relevant": {"type": "boolean"},
    "score": {"type": "integer", "minimum": 0, "maximum": 100},
    "matched_terms": {"type": "array", "items": {"type": "string"}},
    "rationale": {"type": "string"}
  },
  "required": ["relevant", "score", "matched_terms", "rationale"],
  "additionalProperties": false
}`

const classifySystem = "You are a senior researcher. Judge whether a paper is relevant to the user's interests based ONLY on the title and abstract. Be strict and concise."

const reviewSystem = "You are a senior researcher reviewing a borderline relevance call. Re-judge the paper carefully against the user's interests based ONLY on the title and abstract."

// Output holds the full judgment list and the selected subset.
type Output struct {
	// Verdicts has exactly one entry per input candidate, in input
	// order, selected or not.
	Verdicts []types.RelevanceVerdict

	// Selected is the chosen subset: relevant, score at or above the
	// threshold, sorted by score descending with newer publication
	// breaking ties, truncated to the configured maximum.
	Selected []types.Candidate

	// Reviewed counts stage-2 re-scores that ran.
	Reviewed int
}

// Filter runs two-stage relevance classification.
type Filter struct {
	Service *inference.Service
	LLM     types.LLMConfig
	Config  types.FilterConfig
}

// Run produces one verdict per candidate and the selected subset.
// Verdict classification calls run with bounded concurrency; the
// output order is deterministic regardless of completion order. When
// the include-keyword list is empty every candidate is relevant by
// default and ranking falls back to recency. Candidates matching an
// exclusion term are forced irrelevant without a model call.
func (f *Filter) Run(ctx context.Context, candidates []types.Candidate, w io.Writer) (Output, error) {
	include := cleanTerms(f.Config.KeywordsInclude)
	exclude := cleanTerms(f.Config.KeywordsExclude)

	verdicts := make([]types.RelevanceVerdict, len(candidates))

	if len(include) == 0 {
		for i, c := range candidates {
			if term, hit := matchesAny(c, exclude); hit {
				verdicts[i] = excludedVerdict(term)
				continue
			}
			verdicts[i] = types.RelevanceVerdict{
				Relevant:  true,
				Score:     50,
				Rationale: "no interest keywords configured; included by category and recency",
			}
		}
		return f.selectSubset(candidates, verdicts, true), nil
	}

	// Stage 1: fast classification, bounded fan-out. Results land in
	// index-addressed slots so completion order never matters.
	concurrency := f.Config.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	p := pool.New().WithMaxGoroutines(concurrency)
	for i, c := range candidates {
		if term, hit := matchesAny(c, exclude); hit {
			verdicts[i] = excludedVerdict(term)
			continue
		}
		p.Go(func() {
			verdicts[i] = f.classify(ctx, f.LLM.ModelFast, classifySystem, c, include, w)
		})
	}
	p.Wait()

	out := f.selectSubset(candidates, verdicts, false)

	// Stage 2: borderline review. Only a verdict the reviewer actually
	// produced replaces the fast one; out-of-band candidates and failed
	// review calls keep the fast verdict unchanged.
	if f.Config.Mode == types.ReviewFastThenReview {
		reviewed := f.review(ctx, candidates, verdicts, exclude, w)
		if reviewed > 0 {
			out = f.selectSubset(candidates, verdicts, false)
			out.Reviewed = reviewed
		}
	}

	return out, nil
}

// Preview judges every candidate with the keyword heuristic alone,
// issuing no model calls. Dry runs use it to show what a full run
// would consider without spending any inference budget. Ranking is by
// recency since heuristic scores carry no ordering signal.
func (f *Filter) Preview(candidates []types.Candidate) Output {
	include := cleanTerms(f.Config.KeywordsInclude)
	exclude := cleanTerms(f.Config.KeywordsExclude)

	verdicts := make([]types.RelevanceVerdict, len(candidates))
	for i, c := range candidates {
		if term, hit := matchesAny(c, exclude); hit {
			verdicts[i] = excludedVerdict(term)
			continue
		}
		if len(include) == 0 {
			verdicts[i] = types.RelevanceVerdict{
				Relevant:  true,
				Score:     50,
				Rationale: "no interest keywords configured; included by category and recency",
			}
			continue
		}
		verdicts[i] = heuristicVerdict(c, include, "keyword heuristic")
	}
	return f.selectSubset(candidates, verdicts, true)
}

// review re-scores verdicts whose score lies within the configured
// band around the threshold. Returns the number of re-scores that
// succeeded; budget exhaustion stops review without failing the run.
func (f *Filter) review(ctx context.Context, candidates []types.Candidate, verdicts []types.RelevanceVerdict, exclude []string, w io.Writer) int {
	band := f.Config.ReviewBand
	if band <= 0 {
		band = 10
	}
	threshold := f.threshold()
	include := cleanTerms(f.Config.KeywordsInclude)

	concurrency := f.Config.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var indices []int
	for i := range verdicts {
		if _, hit := matchesAny(candidates[i], exclude); hit {
			continue
		}
		d := verdicts[i].Score - threshold
		if d < 0 {
			d = -d
		}
		if d <= band {
			indices = append(indices, i)
		}
	}

	p := pool.New().WithMaxGoroutines(concurrency)
	for _, i := range indices {
		if f.Service.Budget().Exhausted() {
			fmt.Fprintf(w, "warning: call budget exhausted, skipping remaining review\n")
			break
		}
		p.Go(func() {
			v, err := f.classifyVerdict(ctx, f.LLM.ModelSmart, reviewSystem, candidates[i], include)
			if err != nil {
				// A failed review never demotes: the fast verdict stands.
				if !errors.Is(err, inference.ErrBudgetExhausted) {
					fmt.Fprintf(w, "warning: review %s: %v\n", candidates[i].ID, err)
				}
				return
			}
			v.Reviewed = true
			verdicts[i] = v
		})
	}
	p.Wait()

	reviewed := 0
	for _, i := range indices {
		if verdicts[i].Reviewed {
			reviewed++
		}
	}
	return reviewed
}

// classifyVerdict issues one classification call and returns the
// validated verdict.
func (f *Filter) classifyVerdict(ctx context.Context, model, system string, c types.Candidate, include []string) (types.RelevanceVerdict, error) {
	user := fmt.Sprintf(
		"User interest keywords: %s\n\nPaper title: %s\nPaper abstract: %s\n\nDecide relevance to the user keywords. Return relevant, score (0-100), matched_terms, and a short rationale (<=120 chars).",
		strings.Join(include, ", "), c.Title, c.Abstract)

	var v types.RelevanceVerdict
	if _, err := f.Service.Structured(ctx, model, system, user, []byte(verdictSchema), &v); err != nil {
		return types.RelevanceVerdict{}, err
	}
	v.Score = clamp(v.Score, 0, 100)
	return v, nil
}

// classify wraps classifyVerdict with the deterministic keyword
// fallback so the candidate still receives exactly one verdict and the
// batch continues.
func (f *Filter) classify(ctx context.Context, model, system string, c types.Candidate, include []string, w io.Writer) types.RelevanceVerdict {
	v, err := f.classifyVerdict(ctx, model, system, c, include)
	if err == nil {
		return v
	}

	if !errors.Is(err, inference.ErrBudgetExhausted) {
		fmt.Fprintf(w, "warning: classify %s: %v\n", c.ID, err)
	}
	return heuristicVerdict(c, include, "classifier unavailable")
}

// selectSubset applies the threshold, ordering, and truncation rules.
func (f *Filter) selectSubset(candidates []types.Candidate, verdicts []types.RelevanceVerdict, byRecency bool) Output {
	threshold := f.threshold()
	maxSelected := f.Config.MaxSelected
	if maxSelected <= 0 {
		maxSelected = 20
	}

	type ranked struct {
		c types.Candidate
		v types.RelevanceVerdict
	}
	var kept []ranked
	for i, c := range candidates {
		if byRecency {
			if verdicts[i].Relevant {
				kept = append(kept, ranked{c, verdicts[i]})
			}
			continue
		}
		if verdicts[i].Relevant && verdicts[i].Score >= threshold {
			kept = append(kept, ranked{c, verdicts[i]})
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if !byRecency && kept[i].v.Score != kept[j].v.Score {
			return kept[i].v.Score > kept[j].v.Score
		}
		return kept[i].c.Published.After(kept[j].c.Published)
	})

	if len(kept) > maxSelected {
		kept = kept[:maxSelected]
	}

	selected := make([]types.Candidate, len(kept))
	for i, r := range kept {
		selected[i] = r.c
	}
	return Output{Verdicts: verdicts, Selected: selected}
}

func (f *Filter) threshold() int {
	if f.Config.Threshold > 0 {
		return f.Config.Threshold
	}
	return 60
}

// excludedVerdict is the forced verdict for exclusion-term matches.
func excludedVerdict(term string) types.RelevanceVerdict {
	return types.RelevanceVerdict{
		Relevant:  false,
		Score:     0,
		Rationale: fmt.Sprintf("excluded: title or abstract contains %q", term),
	}
}

// heuristicVerdict is the deterministic keyword judgment: relevant iff
// any include term appears in the text. The reason prefixes the
// rationale so verdicts record how they were produced.
func heuristicVerdict(c types.Candidate, include []string, reason string) types.RelevanceVerdict {
	text := strings.ToLower(c.Title + "\n" + c.Abstract)
	var matched []string
	for _, term := range include {
		if strings.Contains(text, term) {
			matched = append(matched, term)
		}
	}
	if len(matched) == 0 {
		return types.RelevanceVerdict{
			Relevant:  false,
			Rationale: reason + "; no interest keyword matched",
		}
	}
	return types.RelevanceVerdict{
		Relevant:     true,
		Score:        50,
		MatchedTerms: matched,
		Rationale:    reason + "; matched interest keywords directly",
	}
}

// matchesAny reports whether the candidate's title or abstract contains
// any of the terms, returning the first matching term.
func matchesAny(c types.Candidate, terms []string) (string, bool) {
	if len(terms) == 0 {
		return "", false
	}
	text := strings.ToLower(c.Title + "\n" + c.Abstract)
	for _, t := range terms {
		if strings.Contains(text, t) {
			return t, true
		}
	}
	return "", false
}

// cleanTerms lowercases and drops blank terms.
func cleanTerms(terms []string) []string {
	var out []string
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
