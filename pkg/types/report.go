// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// KeywordWeight pairs a normalized term with its aggregation weight.
// Weights are non-negative and comparable for ranking; they do not sum
// to 1.
type KeywordWeight struct {
	Keyword string  `json:"keyword" yaml:"keyword"`
	Weight  float64 `json:"weight" yaml:"weight"`
}

// Period tags a trend rollup window.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// PeriodTrend is a trend rollup for one window, computed fresh per run
// from archived history and never mutated afterwards.
type PeriodTrend struct {
	// Period tags the window length.
	Period Period `json:"period" yaml:"period"`

	// Start and End bound the window (inclusive calendar dates).
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`

	// Summary is the narrative trend summary. When the window holds no
	// records it carries the explicit no-data marker instead.
	Summary string `json:"summary" yaml:"summary"`

	// Keywords is the ordered top-K keyword list.
	Keywords []KeywordWeight `json:"keywords" yaml:"keywords"`
}

// AttentionSignal is one metric value fetched from an external
// attention provider. Immutable once fetched.
type AttentionSignal struct {
	// Source identifies the provider (e.g. "semantic_scholar").
	Source string `json:"source" yaml:"source"`

	// Metric identifies the measurement (e.g. "citations").
	Metric string `json:"metric" yaml:"metric"`

	// Value is the raw metric value.
	Value float64 `json:"value" yaml:"value"`

	// FetchedAt is the fetch timestamp.
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// SpotlightItem flags a paper for special presentation based on
// externally sourced attention signals. The attention score is a pure
// function of the signal list and the configured weights; the intro
// narrative never influences it.
type SpotlightItem struct {
	// PaperID is the spotlighted paper's identifier.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	// AttentionScore is the computed score in [0,100].
	AttentionScore int `json:"attention_score" yaml:"attention_score"`

	// Signals lists the signals the score was computed from.
	Signals []AttentionSignal `json:"signals" yaml:"signals"`

	// Intro is the narrative introduction, generated only after the
	// item is confirmed spotlighted. Empty when narrative generation
	// was skipped under budget degradation.
	Intro string `json:"intro,omitempty" yaml:"intro,omitempty"`
}

// DailyReport is the unit of persistence and of reproducibility: given
// identical inputs and deterministic inference, re-running yields a
// structurally identical report.
type DailyReport struct {
	// Date is the resolved reporting date (YYYY-MM-DD), which is not
	// necessarily the invocation date.
	Date string `json:"date" yaml:"date"`

	// GeneratedAt is the run timestamp.
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`

	// WindowStart and WindowEnd bound the fetch window.
	WindowStart time.Time `json:"window_start" yaml:"window_start"`
	WindowEnd   time.Time `json:"window_end" yaml:"window_end"`

	// Categories and Keywords echo the selection configuration.
	Categories []string `json:"categories" yaml:"categories"`
	Keywords   []string `json:"keywords" yaml:"keywords"`

	// DayTrend is the narrative summary of the day's selection.
	DayTrend string `json:"day_trend" yaml:"day_trend"`

	// Papers is the ordered record list, in selection-rank order.
	Papers []PaperRecord `json:"papers" yaml:"papers"`

	// Failures lists selected candidates whose extraction failed.
	Failures []ExtractionFailure `json:"failures,omitempty" yaml:"failures,omitempty"`

	// WeeklyTrend and MonthlyTrend are optional rollups.
	WeeklyTrend  *PeriodTrend `json:"weekly_trend,omitempty" yaml:"weekly_trend,omitempty"`
	MonthlyTrend *PeriodTrend `json:"monthly_trend,omitempty" yaml:"monthly_trend,omitempty"`

	// Spotlight lists unusually attention-getting papers.
	Spotlight []SpotlightItem `json:"spotlight,omitempty" yaml:"spotlight,omitempty"`
}
