// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdiddy/arxiv-digest/internal/inference"
	"github.com/pdiddy/arxiv-digest/pkg/types"
)

// verdictProvider returns a scripted verdict per (model, paper title).
type verdictProvider struct {
	mu        sync.Mutex
	scores    map[string]map[string]int // model → title → score
	calls     map[string]int            // model → call count
	err       error
	errModels map[string]error // model → forced error
}

func (p *verdictProvider) Name() string { return "verdict" }

func (p *verdictProvider) Complete(_ context.Context, model, _, user string, _ float64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[model]++
	if p.err != nil {
		return "", p.err
	}
	if err := p.errModels[model]; err != nil {
		return "", err
	}

	title := promptTitle(user)
	score, ok := p.scores[model][title]
	if !ok {
		return "", fmt.Errorf("no scripted score for model %s title %q", model, title)
	}
	return fmt.Sprintf(
		`{"relevant": %t, "score": %d, "matched_terms": ["transformers"], "rationale": "scripted"}`,
		score >= 50, score), nil
}

func promptTitle(user string) string {
	const marker = "Paper title: "
	idx := strings.Index(user, marker)
	if idx < 0 {
		return ""
	}
	rest := user[idx+len(marker):]
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		return rest[:nl]
	}
	return rest
}

func newFilter(p inference.Provider, cfg types.FilterConfig) *Filter {
	return newFilterWithBudget(p, cfg, 0)
}

func newFilterWithBudget(p inference.Provider, cfg types.FilterConfig, maxCalls int) *Filter {
	svc := inference.NewService(p, types.LLMConfig{
		ModelFast:         "fast",
		ModelSmart:        "smart",
		RequestsPerSecond: 1000,
		Deterministic:     true,
		Retry:             types.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond},
	}, types.BudgetConfig{MaxCalls: maxCalls})
	return &Filter{
		Service: svc,
		LLM:     types.LLMConfig{ModelFast: "fast", ModelSmart: "smart"},
		Config:  cfg,
	}
}

func papers(titles ...string) []types.Candidate {
	base := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	out := make([]types.Candidate, len(titles))
	for i, title := range titles {
		out[i] = types.Candidate{
			ID:        fmt.Sprintf("2608.%05dv1", i+1),
			BaseID:    fmt.Sprintf("2608.%05d", i+1),
			Version:   1,
			Title:     title,
			Abstract:  "about " + title,
			Published: base.Add(-time.Duration(i) * time.Hour),
		}
	}
	return out
}

func TestRunSelectsAboveThreshold(t *testing.T) {
	scores := map[string]int{
		"p1": 85, "p2": 72, "p3": 65, "p4": 61, "p5": 60,
		"p6": 59, "p7": 55, "p8": 40, "p9": 30, "p10": 20, "p11": 10, "p12": 5,
	}
	titles := make([]string, 0, len(scores))
	for i := 1; i <= 12; i++ {
		titles = append(titles, fmt.Sprintf("p%d", i))
	}

	p := &verdictProvider{scores: map[string]map[string]int{"fast": scores}}
	f := newFilter(p, types.FilterConfig{
		KeywordsInclude: []string{"transformers"},
		Threshold:       60,
	})

	out, err := f.Run(context.Background(), papers(titles...), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(out.Verdicts) != 12 {
		t.Fatalf("verdicts = %d, want one per candidate", len(out.Verdicts))
	}
	if len(out.Selected) != 5 {
		t.Fatalf("selected = %d, want 5", len(out.Selected))
	}
	wantOrder := []string{"p1", "p2", "p3", "p4", "p5"}
	for i, want := range wantOrder {
		if out.Selected[i].Title != want {
			t.Errorf("selected[%d] = %s, want %s", i, out.Selected[i].Title, want)
		}
	}
}

func TestRunCapsSelection(t *testing.T) {
	scores := map[string]int{"p1": 90, "p2": 85, "p3": 80, "p4": 75}
	p := &verdictProvider{scores: map[string]map[string]int{"fast": scores}}
	f := newFilter(p, types.FilterConfig{
		KeywordsInclude: []string{"transformers"},
		Threshold:       60,
		MaxSelected:     2,
	})

	out, err := f.Run(context.Background(), papers("p1", "p2", "p3", "p4"), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Selected) != 2 {
		t.Fatalf("selected = %d, want 2", len(out.Selected))
	}
	if out.Selected[0].Title != "p1" || out.Selected[1].Title != "p2" {
		t.Errorf("selected = %v", out.Selected)
	}
}

func TestRunEmptyIncludeSelectsByRecency(t *testing.T) {
	p := &verdictProvider{}
	f := newFilter(p, types.FilterConfig{MaxSelected: 2})

	// papers() makes earlier titles newer.
	out, err := f.Run(context.Background(), papers("newest", "middle", "oldest"), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i, v := range out.Verdicts {
		if !v.Relevant || v.Score != 50 {
			t.Errorf("verdict[%d] = %+v, want default relevant score 50", i, v)
		}
	}
	if len(out.Selected) != 2 || out.Selected[0].Title != "newest" || out.Selected[1].Title != "middle" {
		t.Errorf("selected = %v, want two newest", out.Selected)
	}
	if len(p.calls) != 0 {
		t.Errorf("no model calls expected, got %v", p.calls)
	}
}

func TestRunExclusionSkipsModel(t *testing.T) {
	scores := map[string]int{"good paper": 80}
	p := &verdictProvider{scores: map[string]map[string]int{"fast": scores}}
	f := newFilter(p, types.FilterConfig{
		KeywordsInclude: []string{"transformers"},
		KeywordsExclude: []string{"blockchain"},
		Threshold:       60,
	})

	out, err := f.Run(context.Background(), papers("good paper", "blockchain for cats"), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if out.Verdicts[1].Relevant || out.Verdicts[1].Score != 0 {
		t.Errorf("excluded verdict = %+v", out.Verdicts[1])
	}
	if p.calls["fast"] != 1 {
		t.Errorf("fast calls = %d, want 1 (excluded candidate skips the model)", p.calls["fast"])
	}
	if len(out.Selected) != 1 || out.Selected[0].Title != "good paper" {
		t.Errorf("selected = %v", out.Selected)
	}
}

func TestRunReviewReplacesBorderlineVerdict(t *testing.T) {
	p := &verdictProvider{scores: map[string]map[string]int{
		"fast":  {"borderline": 65, "clear": 90},
		"smart": {"borderline": 40},
	}}
	f := newFilter(p, types.FilterConfig{
		KeywordsInclude: []string{"transformers"},
		Mode:            types.ReviewFastThenReview,
		Threshold:       60,
		ReviewBand:      10,
	})

	out, err := f.Run(context.Background(), papers("borderline", "clear"), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if out.Reviewed != 1 {
		t.Errorf("Reviewed = %d, want 1", out.Reviewed)
	}
	if !out.Verdicts[0].Reviewed || out.Verdicts[0].Score != 40 {
		t.Errorf("borderline verdict = %+v, want reviewed score 40", out.Verdicts[0])
	}
	if out.Verdicts[1].Reviewed {
		t.Errorf("clear verdict should not be reviewed: %+v", out.Verdicts[1])
	}
	// Demoted below threshold by review.
	if len(out.Selected) != 1 || out.Selected[0].Title != "clear" {
		t.Errorf("selected = %v, want only clear", out.Selected)
	}
	if p.calls["smart"] != 1 {
		t.Errorf("smart calls = %d, want 1", p.calls["smart"])
	}
}

func TestRunReviewFailureKeepsFastVerdict(t *testing.T) {
	p := &verdictProvider{
		scores:    map[string]map[string]int{"fast": {"borderline": 65}},
		errModels: map[string]error{"smart": errors.New("model down")},
	}
	f := newFilter(p, types.FilterConfig{
		KeywordsInclude: []string{"transformers"},
		Mode:            types.ReviewFastThenReview,
		Threshold:       60,
		ReviewBand:      10,
	})

	out, err := f.Run(context.Background(), papers("borderline"), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	v := out.Verdicts[0]
	if v.Reviewed {
		t.Errorf("verdict marked reviewed after a failed review: %+v", v)
	}
	if !v.Relevant || v.Score != 65 {
		t.Errorf("verdict = %+v, want the fast verdict unchanged", v)
	}
	if out.Reviewed != 0 {
		t.Errorf("Reviewed = %d, want 0", out.Reviewed)
	}
	if len(out.Selected) != 1 || out.Selected[0].Title != "borderline" {
		t.Errorf("selected = %v, want the candidate kept", out.Selected)
	}
}

func TestRunBudgetExhaustionSkipsReview(t *testing.T) {
	p := &verdictProvider{scores: map[string]map[string]int{
		"fast":  {"borderline": 65},
		"smart": {"borderline": 40},
	}}
	f := newFilterWithBudget(p, types.FilterConfig{
		KeywordsInclude: []string{"transformers"},
		Mode:            types.ReviewFastThenReview,
		Threshold:       60,
		ReviewBand:      10,
	}, 1)

	var buf bytes.Buffer
	out, err := f.Run(context.Background(), papers("borderline"), &buf)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if p.calls["smart"] != 0 {
		t.Errorf("smart calls = %d, want 0 once the budget is spent", p.calls["smart"])
	}
	if out.Verdicts[0].Reviewed || out.Verdicts[0].Score != 65 {
		t.Errorf("verdict = %+v, want the fast verdict to stand", out.Verdicts[0])
	}
	if len(out.Selected) != 1 {
		t.Errorf("selected = %v", out.Selected)
	}
	if !strings.Contains(buf.String(), "budget exhausted") {
		t.Errorf("output = %q, want a budget warning", buf.String())
	}
}

func TestPreviewUsesHeuristicOnly(t *testing.T) {
	p := &verdictProvider{}
	f := newFilter(p, types.FilterConfig{
		KeywordsInclude: []string{"transformers"},
		KeywordsExclude: []string{"blockchain"},
		MaxSelected:     5,
	})

	out := f.Preview(papers("transformers at scale", "unrelated work", "blockchain for cats"))

	if len(p.calls) != 0 {
		t.Fatalf("model calls = %v, want none on preview", p.calls)
	}
	if !out.Verdicts[0].Relevant {
		t.Errorf("keyword match verdict = %+v", out.Verdicts[0])
	}
	if out.Verdicts[1].Relevant {
		t.Errorf("no-match verdict = %+v", out.Verdicts[1])
	}
	if out.Verdicts[2].Relevant || !strings.Contains(out.Verdicts[2].Rationale, "excluded") {
		t.Errorf("exclusion verdict = %+v", out.Verdicts[2])
	}
	if len(out.Selected) != 1 || out.Selected[0].Title != "transformers at scale" {
		t.Errorf("selected = %v", out.Selected)
	}
}

func TestRunFallsBackToHeuristicOnFailure(t *testing.T) {
	p := &verdictProvider{err: errors.New("model down")}
	f := newFilter(p, types.FilterConfig{
		KeywordsInclude: []string{"transformers"},
		Threshold:       40,
	})

	out, err := f.Run(context.Background(), papers("transformers at scale", "unrelated work"), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(out.Verdicts) != 2 {
		t.Fatalf("verdicts = %d, want 2 even when the classifier fails", len(out.Verdicts))
	}
	if !out.Verdicts[0].Relevant || out.Verdicts[0].Score != 50 {
		t.Errorf("keyword match verdict = %+v, want heuristic relevant 50", out.Verdicts[0])
	}
	if out.Verdicts[1].Relevant {
		t.Errorf("no-match verdict = %+v, want irrelevant", out.Verdicts[1])
	}
	if len(out.Selected) != 1 {
		t.Errorf("selected = %v", out.Selected)
	}
}
