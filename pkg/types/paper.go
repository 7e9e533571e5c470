// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the digest pipeline.
package types

import "time"

// Candidate is a paper returned by the upstream search before any
// relevance judgment. One Candidate is retained per base identifier;
// when multiple versions of the same identifier appear, the highest
// version wins and earlier versions are discarded.
type Candidate struct {
	// ID is the versioned upstream identifier (e.g. "2301.07041v2").
	ID string `json:"id" yaml:"id"`

	// BaseID is the identifier with the version suffix stripped.
	BaseID string `json:"base_id" yaml:"base_id"`

	// Version is the upstream revision number (1 when unversioned).
	Version int `json:"version" yaml:"version"`

	// Title is the paper title with internal newlines collapsed.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Published is the publish or last-update timestamp, whichever the
	// upstream reported as most recent.
	Published time.Time `json:"published" yaml:"published"`

	// Categories is the full category set.
	Categories []string `json:"categories" yaml:"categories"`

	// PrimaryCategory is the upstream primary category.
	PrimaryCategory string `json:"primary_category" yaml:"primary_category"`

	// Abstract is the abstract text.
	Abstract string `json:"abstract" yaml:"abstract"`

	// URL is the canonical source URL.
	URL string `json:"url" yaml:"url"`
}

// RelevanceVerdict is the relevance classification for one candidate.
// Every candidate receives exactly one verdict, selected or not.
type RelevanceVerdict struct {
	// Relevant reports whether the candidate matches the user interest.
	Relevant bool `json:"relevant" yaml:"relevant"`

	// Score is the relevance score in [0,100].
	Score int `json:"score" yaml:"score"`

	// MatchedTerms lists the interest terms the classifier matched.
	MatchedTerms []string `json:"matched_terms" yaml:"matched_terms"`

	// Rationale is a short explanation of the verdict.
	Rationale string `json:"rationale" yaml:"rationale"`

	// Reviewed reports whether a stage-2 review replaced the fast verdict.
	Reviewed bool `json:"reviewed,omitempty" yaml:"reviewed,omitempty"`
}

// PaperRecord is a selected candidate plus the structured analysis
// extracted for it. Records exist only for candidates the filter
// selected; a failed extraction produces an ExtractionFailure instead,
// never a partial record.
type PaperRecord struct {
	Candidate `yaml:",inline"`

	// Problem is a short statement of the problem the paper addresses.
	Problem string `json:"problem" yaml:"problem"`

	// Method is a short statement of the paper's method.
	Method string `json:"method" yaml:"method"`

	// ParadigmRelation describes how the work relates to the current
	// state of the art.
	ParadigmRelation string `json:"paradigm_relation" yaml:"paradigm_relation"`

	// Quality is an integer quality score in [1,5].
	Quality int `json:"quality" yaml:"quality"`

	// Relevance is the filter's verdict, embedded verbatim. The
	// extraction model never overrides it.
	Relevance RelevanceVerdict `json:"relevance" yaml:"relevance"`
}

// ExtractionFailure marks a selected candidate whose extraction failed
// after all retries.
type ExtractionFailure struct {
	// PaperID is the candidate identifier.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	// Reason describes the terminal failure.
	Reason string `json:"reason" yaml:"reason"`
}

// AuditStatus classifies the outcome of one per-item operation.
type AuditStatus string

const (
	AuditOK      AuditStatus = "ok"
	AuditRetried AuditStatus = "retried"
	AuditFailed  AuditStatus = "failed"
	AuditSkipped AuditStatus = "skipped"
)

// AuditEntry records the outcome of one per-item operation for later
// inspection alongside the report.
type AuditEntry struct {
	// Stage names the pipeline stage (e.g. "extract", "spotlight").
	Stage string `json:"stage" yaml:"stage"`

	// ItemID identifies the item the entry refers to.
	ItemID string `json:"item_id" yaml:"item_id"`

	// Status is the terminal outcome.
	Status AuditStatus `json:"status" yaml:"status"`

	// Retries is the number of retries before the terminal outcome.
	Retries int `json:"retries,omitempty" yaml:"retries,omitempty"`

	// Detail carries the failure reason or other context.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}
