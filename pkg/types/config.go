// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"math/rand"
	"time"
)

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "arxiv-digest/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetryPolicy is an explicit retry value object threaded through every
// retrying call instead of ambient state. Backoff grows exponentially
// from BaseDelay with up to JitterFraction of random spread.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts (initial + retries).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// JitterFraction bounds the random spread added to each delay,
	// as a fraction of the exponential delay (0 disables jitter).
	JitterFraction float64 `json:"jitter_fraction" yaml:"jitter_fraction"`
}

// DefaultRetryPolicy is used wherever the configuration leaves the
// policy unset.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:    3,
	BaseDelay:      time.Second,
	JitterFraction: 0.25,
}

// Backoff returns the delay before retry attempt n (1-based). The
// exponential component doubles per attempt; the jitter component is
// uniform in [0, JitterFraction*delay).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay << (attempt - 1)
	if p.JitterFraction > 0 {
		d += time.Duration(rand.Int63n(int64(float64(d)*p.JitterFraction) + 1))
	}
	return d
}

// ResolutionMode selects how the reporting period is chosen.
type ResolutionMode string

const (
	// ModeLatestUpdate walks back day by day until a day with results
	// is found, bounded by LookbackDays.
	ModeLatestUpdate ResolutionMode = "latest-update"

	// ModeFixedWindow reports on [now - Window, now).
	ModeFixedWindow ResolutionMode = "fixed-window"
)

// SearchConfig holds settings for candidate harvesting and period
// resolution.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Categories is the category set queried upstream (e.g. "cs.CL").
	Categories []string `json:"categories" yaml:"categories"`

	// Mode selects the period resolution strategy.
	Mode ResolutionMode `json:"mode" yaml:"mode"`

	// Window is the fixed-window length (default 24h).
	Window time.Duration `json:"window" yaml:"window"`

	// LookbackDays bounds the latest-update day walk (default 7).
	LookbackDays int `json:"lookback_days" yaml:"lookback_days"`

	// MaxProbeAttempts caps total probe queries across the walk,
	// including failed ones, to avoid unbounded retries (default 2x
	// LookbackDays).
	MaxProbeAttempts int `json:"max_probe_attempts" yaml:"max_probe_attempts"`

	// Timezone resolves calendar day bounds (default "UTC").
	Timezone string `json:"timezone" yaml:"timezone"`

	// MaxResults caps candidates fetched per day query (default 120).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// ReviewMode selects the relevance filter staging.
type ReviewMode string

const (
	ReviewFastOnly       ReviewMode = "fast-only"
	ReviewFastThenReview ReviewMode = "fast-then-review"
)

// FilterConfig holds settings for the relevance filter.
type FilterConfig struct {
	// KeywordsInclude is the interest term list. Empty means every
	// candidate is relevant by default and ranking falls back to
	// recency.
	KeywordsInclude []string `json:"keywords_include" yaml:"keywords_include"`

	// KeywordsExclude forces candidates containing any listed term in
	// title or abstract to irrelevant, regardless of model output.
	KeywordsExclude []string `json:"keywords_exclude" yaml:"keywords_exclude"`

	// Mode selects fast-only or fast-then-review staging.
	Mode ReviewMode `json:"mode" yaml:"mode"`

	// Threshold is the minimum selection score (default 60).
	Threshold int `json:"threshold" yaml:"threshold"`

	// ReviewBand is the half-width of the score band around Threshold
	// whose verdicts are re-scored by the strong model in
	// fast-then-review mode (default 10).
	ReviewBand int `json:"review_band" yaml:"review_band"`

	// MaxSelected caps the selected subset (default 20).
	MaxSelected int `json:"max_selected" yaml:"max_selected"`

	// Concurrency bounds parallel classification calls (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// ExtractConfig holds settings for the extraction orchestrator.
type ExtractConfig struct {
	// Workers bounds the extraction worker pool (default 4).
	Workers int `json:"workers" yaml:"workers"`

	// Retry governs per-item retry behavior.
	Retry RetryPolicy `json:"retry" yaml:"retry"`
}

// TrendConfig holds settings for trend aggregation.
type TrendConfig struct {
	EnableWeekly  bool `json:"enable_weekly" yaml:"enable_weekly"`
	EnableMonthly bool `json:"enable_monthly" yaml:"enable_monthly"`

	// WeeklyDays and MonthlyDays size the rollup windows (7 / 30).
	WeeklyDays  int `json:"weekly_days" yaml:"weekly_days"`
	MonthlyDays int `json:"monthly_days" yaml:"monthly_days"`

	// TopKKeywords caps the ranked keyword list (default 20).
	TopKKeywords int `json:"top_k_keywords" yaml:"top_k_keywords"`
}

// SpotlightConfig holds settings for attention scoring.
type SpotlightConfig struct {
	Enable bool `json:"enable" yaml:"enable"`

	// RecentDays bounds eligibility by days since publication.
	RecentDays int `json:"recent_days" yaml:"recent_days"`

	// Threshold is the minimum attention score for spotlighting.
	Threshold int `json:"threshold" yaml:"threshold"`

	// MaxItems caps the spotlight list.
	MaxItems int `json:"max_items" yaml:"max_items"`

	// Weights maps "source/metric" keys to their scoring weight.
	// Weights of unavailable sources are redistributed proportionally
	// over the sources that returned data.
	Weights map[string]float64 `json:"weights" yaml:"weights"`

	// FetchTimeout bounds each signal fetch (default 10s).
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout"`

	// Concurrency bounds parallel signal fetches (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// LLMConfig holds shared settings for components that call the
// inference service.
type LLMConfig struct {
	// Provider selects the API dialect: "claude" or "openai".
	Provider string `json:"provider" yaml:"provider"`

	// ModelFast is the lightweight classification model.
	ModelFast string `json:"model_fast" yaml:"model_fast"`

	// ModelSmart is the strong model for review, extraction, and
	// narrative generation.
	ModelSmart string `json:"model_smart" yaml:"model_smart"`

	// APIKey is the authentication key; normally loaded from .secrets/.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint (gateways, tests).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Deterministic pins temperature to 0 for reproducible runs.
	Deterministic bool `json:"deterministic" yaml:"deterministic"`

	// RequestsPerSecond paces calls to the service (default 2).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// Retry governs schema-invalid re-prompting.
	Retry RetryPolicy `json:"retry" yaml:"retry"`
}

// BudgetConfig bounds process-wide external usage for one run.
type BudgetConfig struct {
	// MaxCalls caps inference requests for the run; 0 means unlimited.
	// Exceeding the cap triggers graceful degradation, not failure.
	MaxCalls int `json:"max_calls" yaml:"max_calls"`

	// WallClock caps the whole run; 0 means unlimited.
	WallClock time.Duration `json:"wall_clock" yaml:"wall_clock"`
}

// ArchiveConfig locates the embedded archive database.
type ArchiveConfig struct {
	// Path is the SQLite database path. Empty selects the default
	// location under the user data directory.
	Path string `json:"path" yaml:"path"`
}

// Config groups all component configurations. It is built once at
// startup and passed by value; components never mutate it.
type Config struct {
	Search    SearchConfig    `json:"search" yaml:"search"`
	Filter    FilterConfig    `json:"filter" yaml:"filter"`
	Extract   ExtractConfig   `json:"extract" yaml:"extract"`
	Trend     TrendConfig     `json:"trend" yaml:"trend"`
	Spotlight SpotlightConfig `json:"spotlight" yaml:"spotlight"`
	LLM       LLMConfig       `json:"llm" yaml:"llm"`
	Budget    BudgetConfig    `json:"budget" yaml:"budget"`
	Archive   ArchiveConfig   `json:"archive" yaml:"archive"`
}
