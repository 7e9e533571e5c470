// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package trend

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/pdiddy/arxiv-digest/internal/inference"
	"github.com/pdiddy/arxiv-digest/pkg/types"
)

// summaryProvider returns a fixed narrative summary.
type summaryProvider struct {
	summary string
	calls   int
}

func (p *summaryProvider) Name() string { return "summary" }

func (p *summaryProvider) Complete(_ context.Context, _, _, _ string, _ float64) (string, error) {
	p.calls++
	return `{"summary": "` + p.summary + `"}`, nil
}

func newAggregator(p inference.Provider, cfg types.TrendConfig) *Aggregator {
	return newAggregatorWithBudget(p, cfg, 0)
}

func newAggregatorWithBudget(p inference.Provider, cfg types.TrendConfig, maxCalls int) *Aggregator {
	svc := inference.NewService(p, types.LLMConfig{
		ModelSmart:        "smart",
		RequestsPerSecond: 1000,
		Deterministic:     true,
		Retry:             types.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond},
	}, types.BudgetConfig{MaxCalls: maxCalls})
	return &Aggregator{Service: svc, LLM: types.LLMConfig{ModelSmart: "smart"}, Config: cfg}
}

func record(method, paradigm string, terms ...string) types.PaperRecord {
	return types.PaperRecord{
		Method:           method,
		ParadigmRelation: paradigm,
		Relevance:        types.RelevanceVerdict{MatchedTerms: terms},
	}
}

func TestKeywordsWeightsScaledToMax(t *testing.T) {
	records := []types.PaperRecord{
		record("sparse attention kernels", "attention variants"),
		record("attention routing", "mixture experts"),
	}

	got := Keywords(records, 10)
	if len(got) == 0 {
		t.Fatal("no keywords")
	}
	if got[0].Keyword != "attention" {
		t.Errorf("top keyword = %s, want attention", got[0].Keyword)
	}
	if got[0].Weight != 1.0 {
		t.Errorf("top weight = %f, want 1.0", got[0].Weight)
	}
	for _, k := range got[1:] {
		if k.Weight > 1.0 || k.Weight <= 0 {
			t.Errorf("weight out of range: %+v", k)
		}
	}
}

func TestKeywordsDeterministicTies(t *testing.T) {
	records := []types.PaperRecord{
		record("alpha beta gamma", ""),
	}

	first := Keywords(records, 3)
	for i := 0; i < 5; i++ {
		again := Keywords(records, 3)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("keyword ranking not deterministic: %v vs %v", first, again)
		}
	}
	// Equal counts keep first-seen order.
	want := []string{"alpha", "beta", "gamma"}
	for i, k := range first {
		if k.Keyword != want[i] {
			t.Errorf("keyword[%d] = %s, want %s", i, k.Keyword, want[i])
		}
	}
}

func TestKeywordsFiltersStopwordsAndShortTokens(t *testing.T) {
	records := []types.PaperRecord{
		record("the new method using ml", "we propose gradient descent"),
	}

	got := Keywords(records, 10)
	for _, k := range got {
		if stopwords[k.Keyword] {
			t.Errorf("stopword leaked: %s", k.Keyword)
		}
		if len(k.Keyword) < 3 {
			t.Errorf("short token leaked: %s", k.Keyword)
		}
	}
}

func TestKeywordsIncludesMatchedTerms(t *testing.T) {
	records := []types.PaperRecord{
		record("", "", "retrieval", "retrieval", "distillation"),
	}

	got := Keywords(records, 10)
	if len(got) < 2 || got[0].Keyword != "retrieval" {
		t.Fatalf("got %v, want retrieval ranked first", got)
	}
}

func TestAggregateEmptyWindow(t *testing.T) {
	p := &summaryProvider{summary: "unused"}
	a := newAggregator(p, types.TrendConfig{})
	end := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	got, err := a.Aggregate(context.Background(), types.PeriodWeek, nil, end)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got.Summary != NoDataSummary {
		t.Errorf("Summary = %q, want the no-data marker", got.Summary)
	}
	if len(got.Keywords) != 0 {
		t.Errorf("Keywords = %v, want empty", got.Keywords)
	}
	if p.calls != 0 {
		t.Errorf("calls = %d, want 0 for an empty window", p.calls)
	}
	if !got.Start.Equal(end.AddDate(0, 0, -6)) {
		t.Errorf("Start = %v, want end-6d", got.Start)
	}
}

func TestAggregateDegradesSummaryWhenBudgetExhausted(t *testing.T) {
	p := &summaryProvider{summary: "first summary"}
	a := newAggregatorWithBudget(p, types.TrendConfig{}, 1)
	end := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	records := []types.PaperRecord{
		record("sparse attention", "extends transformers"),
	}

	first, err := a.Aggregate(context.Background(), types.PeriodDay, records, end)
	if err != nil {
		t.Fatalf("first Aggregate: %v", err)
	}
	if first.Summary != "first summary" {
		t.Fatalf("Summary = %q", first.Summary)
	}

	second, err := a.Aggregate(context.Background(), types.PeriodWeek, records, end)
	if err != nil {
		t.Fatalf("Aggregate after budget spent: %v, want degraded trend", err)
	}
	if second.Summary != "summary unavailable: call budget exhausted" {
		t.Errorf("Summary = %q, want the degraded marker", second.Summary)
	}
	if len(second.Keywords) == 0 {
		t.Error("keywords should survive a degraded narrative")
	}
}

func TestAggregateDegradesSummaryWhenRunCancelled(t *testing.T) {
	p := &summaryProvider{summary: "unused"}
	a := newAggregator(p, types.TrendConfig{})
	end := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	records := []types.PaperRecord{
		record("sparse attention", "extends transformers"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := a.Aggregate(ctx, types.PeriodDay, records, end)
	if err != nil {
		t.Fatalf("Aggregate: %v, want degraded trend on a dead context", err)
	}
	if got.Summary != "summary unavailable: run cancelled" {
		t.Errorf("Summary = %q, want the cancellation marker", got.Summary)
	}
	if len(got.Keywords) == 0 {
		t.Error("keywords should survive a degraded narrative")
	}
	if p.calls != 0 {
		t.Errorf("calls = %d, want 0 on a dead context", p.calls)
	}
}

func TestAggregateWithRecords(t *testing.T) {
	p := &summaryProvider{summary: "agents are eating the benchmark suites"}
	a := newAggregator(p, types.TrendConfig{MonthlyDays: 28})
	end := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	records := []types.PaperRecord{
		record("agent scaffolding", "agentic evaluation"),
	}
	got, err := a.Aggregate(context.Background(), types.PeriodMonth, records, end)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got.Summary != "agents are eating the benchmark suites" {
		t.Errorf("Summary = %q", got.Summary)
	}
	if len(got.Keywords) == 0 {
		t.Error("expected keywords")
	}
	if !got.Start.Equal(end.AddDate(0, 0, -27)) {
		t.Errorf("Start = %v, want end-27d for a 28 day window", got.Start)
	}
}
