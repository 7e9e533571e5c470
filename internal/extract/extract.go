// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract fans structured single-paper analysis out over the
// selected subset, isolating per-item failure from the batch.
package extract

import (
	"context"
	"fmt"
	"io"

	"github.com/sourcegraph/conc/pool"

	"github.com/pdiddy/arxiv-digest/internal/inference"
	"github.com/pdiddy/arxiv-digest/pkg/types"
)

// recordSchema is the target schema for single-paper analysis.
const recordSchema = `{
  "type": "object",
  "properties": {
    "problem": {"type": "string"},
    "method": {"type": "string"},
    "paradigm_relation": {"type": "string"},
    "quality": {"type": "integer", "minimum": 1, "maximum": 5}
  },
  "required": ["problem", "method", "paradigm_relation", "quality"],
  "additionalProperties": false
}`

const analyzeSystem = "You are a senior researcher and editor. Read the abstract and produce a structured analysis. Be specific, avoid fluff, and keep each field short as requested."

// analysis is the model's contribution to a PaperRecord.
type analysis struct {
	Problem          string `json:"problem"`
	Method           string `json:"method"`
	ParadigmRelation string `json:"paradigm_relation"`
	Quality          int    `json:"quality"`
}

// Output holds the batch result. Records keeps the filter's
// selection-rank order regardless of worker completion order; a
// candidate appears either in Records or in Failures, never both and
// never partially.
type Output struct {
	Records  []types.PaperRecord
	Failures []types.ExtractionFailure
	Audit    []types.AuditEntry
}

// Orchestrator runs extraction over the selected subset with a
// bounded worker pool.
type Orchestrator struct {
	Service *inference.Service
	LLM     types.LLMConfig
	Config  types.ExtractConfig
}

// Run extracts one PaperRecord per selected candidate. Each item is
// processed independently: retries, backoff, and terminal failure for
// one paper never abort the batch. One audit entry is emitted per item.
func (o *Orchestrator) Run(ctx context.Context, selected []types.Candidate, verdicts map[string]types.RelevanceVerdict, w io.Writer) Output {
	workers := o.Config.Workers
	if workers <= 0 {
		workers = 4
	}

	type result struct {
		record  *types.PaperRecord
		failure *types.ExtractionFailure
		audit   types.AuditEntry
	}
	results := make([]result, len(selected))

	p := pool.New().WithMaxGoroutines(workers)
	for i, c := range selected {
		p.Go(func() {
			record, attempts, err := o.extractOne(ctx, c, verdicts[c.ID])
			// attempts can be zero when the budget runs out before the
			// first call; retries never go negative.
			retries := attempts - 1
			if retries < 0 {
				retries = 0
			}
			if err != nil {
				results[i] = result{
					failure: &types.ExtractionFailure{PaperID: c.ID, Reason: err.Error()},
					audit: types.AuditEntry{
						Stage:   "extract",
						ItemID:  c.ID,
						Status:  types.AuditFailed,
						Retries: retries,
						Detail:  err.Error(),
					},
				}
				fmt.Fprintf(w, "failed  %s: %v\n", c.ID, err)
				return
			}

			status := types.AuditOK
			if attempts > 1 {
				status = types.AuditRetried
			}
			results[i] = result{
				record: record,
				audit: types.AuditEntry{
					Stage:   "extract",
					ItemID:  c.ID,
					Status:  status,
					Retries: retries,
				},
			}
			fmt.Fprintf(w, "extracted %s\n", c.ID)
		})
	}
	p.Wait()

	// Reassemble in selection order.
	var out Output
	for _, r := range results {
		if r.record != nil {
			out.Records = append(out.Records, *r.record)
		}
		if r.failure != nil {
			out.Failures = append(out.Failures, *r.failure)
		}
		out.Audit = append(out.Audit, r.audit)
	}
	return out
}

// extractOne issues the structured-extraction request for one paper.
// The filter's verdict is embedded verbatim; the model never sets or
// overrides relevance.
func (o *Orchestrator) extractOne(ctx context.Context, c types.Candidate, verdict types.RelevanceVerdict) (*types.PaperRecord, int, error) {
	user := fmt.Sprintf(
		"Analyze this paper from its metadata and abstract. Constraints:\n"+
			"- problem: the problem addressed, <=160 chars\n"+
			"- method: the core method, <=160 chars\n"+
			"- paradigm_relation: relation to the current state of the art, <=200 chars\n"+
			"- quality: 1-5 integer based on novelty and rigor signals in the abstract\n\n"+
			"id=%s\ntitle=%s\nprimary_category=%s\npublished=%s\n\nAbstract:\n%s",
		c.ID, c.Title, c.PrimaryCategory, c.Published.Format("2006-01-02"), c.Abstract)

	var a analysis
	attempts, err := o.Service.WithRetry(o.Config.Retry).Structured(ctx, o.LLM.ModelSmart, analyzeSystem, user, []byte(recordSchema), &a)
	if err != nil {
		return nil, attempts, err
	}

	return &types.PaperRecord{
		Candidate:        c,
		Problem:          a.Problem,
		Method:           a.Method,
		ParadigmRelation: a.ParadigmRelation,
		Quality:          a.Quality,
		Relevance:        verdict,
	}, attempts, nil
}
