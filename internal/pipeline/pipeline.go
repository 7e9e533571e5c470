// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline coordinates a full digest run: resolve the period,
// filter and extract the day's papers, roll up trends, compute the
// spotlight, and persist exactly one report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/arxiv-digest/internal/archive"
	"github.com/pdiddy/arxiv-digest/internal/extract"
	"github.com/pdiddy/arxiv-digest/internal/filter"
	"github.com/pdiddy/arxiv-digest/internal/inference"
	"github.com/pdiddy/arxiv-digest/internal/resolve"
	"github.com/pdiddy/arxiv-digest/internal/spotlight"
	"github.com/pdiddy/arxiv-digest/internal/trend"
	"github.com/pdiddy/arxiv-digest/pkg/types"
)

// Options are per-invocation switches layered over the configuration.
type Options struct {
	// Date pins the reporting date (YYYY-MM-DD) instead of resolving
	// the latest update. An empty day is then a valid empty report.
	Date string

	// DryRun stops after resolution and harvest: candidates are judged
	// by the keyword heuristic only, no inference call is made, and
	// nothing is archived.
	DryRun bool
}

// Pipeline wires the stages together. All stages share one inference
// service, so pacing and the call budget apply to the whole run.
type Pipeline struct {
	Resolver     *resolve.Resolver
	Filter       *filter.Filter
	Orchestrator *extract.Orchestrator
	Trends       *trend.Aggregator
	Spotlight    *spotlight.Scorer
	Store        *archive.Store
	Service      *inference.Service
	Config       types.Config
}

// Run executes one digest run and returns the report it produced.
// The pipeline owns all writes: stages only return values, and the
// archive write happens exactly once, after assembly. ErrNoUpdate
// passes through untouched; no report is synthesized or written for it.
func (p *Pipeline) Run(ctx context.Context, opts Options, now time.Time, w io.Writer) (*types.DailyReport, error) {
	// The wall clock bounds stage work only. Archive access stays on
	// the caller's context so a run that overshoots still lands a
	// best-effort report instead of losing its completed records.
	runCtx := ctx
	if p.Config.Budget.WallClock > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.Config.Budget.WallClock)
		defer cancel()
	}

	res, err := p.resolvePeriod(runCtx, opts, now, w)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "resolved %s: %d candidates\n", res.Date, len(res.Candidates))

	report := &types.DailyReport{
		Date:        res.Date,
		GeneratedAt: now.UTC(),
		WindowStart: res.Start,
		WindowEnd:   res.End,
		Categories:  p.Config.Search.Categories,
		Keywords:    p.Config.Filter.KeywordsInclude,
	}

	if opts.DryRun {
		pout := p.Filter.Preview(res.Candidates)
		fmt.Fprintf(w, "dry run: %d of %d candidates pass the keyword heuristic; no inference, nothing archived\n",
			len(pout.Selected), len(res.Candidates))
		return report, nil
	}

	fout, err := p.Filter.Run(runCtx, res.Candidates, w)
	if err != nil {
		return nil, fmt.Errorf("filtering candidates: %w", err)
	}
	fmt.Fprintf(w, "selected %d of %d (reviewed %d)\n", len(fout.Selected), len(res.Candidates), fout.Reviewed)

	verdicts := make(map[string]types.RelevanceVerdict, len(res.Candidates))
	for i, c := range res.Candidates {
		verdicts[c.ID] = fout.Verdicts[i]
	}

	eout := p.Orchestrator.Run(runCtx, fout.Selected, verdicts, w)
	fmt.Fprintf(w, "extracted %d records, %d failures\n", len(eout.Records), len(eout.Failures))

	day, err := time.Parse("2006-01-02", res.Date)
	if err != nil {
		return nil, fmt.Errorf("parsing resolved date: %w", err)
	}

	report.Papers = eout.Records
	report.Failures = eout.Failures

	dayTrend, err := p.Trends.Aggregate(runCtx, types.PeriodDay, eout.Records, day)
	if err != nil {
		return nil, fmt.Errorf("aggregating day trend: %w", err)
	}
	report.DayTrend = dayTrend.Summary

	if p.Config.Trend.EnableWeekly {
		report.WeeklyTrend, err = p.rollup(ctx, runCtx, types.PeriodWeek, eout.Records, day)
		if err != nil {
			return nil, err
		}
	}
	if p.Config.Trend.EnableMonthly {
		report.MonthlyTrend, err = p.rollup(ctx, runCtx, types.PeriodMonth, eout.Records, day)
		if err != nil {
			return nil, err
		}
	}

	audit := eout.Audit
	if p.Config.Spotlight.Enable {
		items, spotAudit := p.Spotlight.Run(runCtx, eout.Records, now, w)
		report.Spotlight = items
		audit = append(audit, spotAudit...)
	}

	if runCtx.Err() != nil {
		fmt.Fprintf(w, "warning: wall clock exceeded; archiving the best-effort report\n")
	}

	// The single write of the run. Failure here is fatal: a digest that
	// cannot be archived did not happen.
	if err := p.Store.WriteReport(ctx, report); err != nil {
		return nil, fmt.Errorf("writing report: %w", err)
	}
	if err := p.Store.AppendAudit(ctx, day, audit); err != nil {
		return nil, fmt.Errorf("writing audit trail: %w", err)
	}
	fmt.Fprintf(w, "archived report for %s (%d inference calls)\n", res.Date, p.Service.Budget().Used())

	return report, nil
}

// resolvePeriod picks the reporting window, honoring an explicit date
// override.
func (p *Pipeline) resolvePeriod(ctx context.Context, opts Options, now time.Time, w io.Writer) (*resolve.Resolution, error) {
	if opts.Date != "" {
		res, err := p.Resolver.ResolveDate(ctx, opts.Date)
		if err != nil {
			return nil, fmt.Errorf("resolving date %s: %w", opts.Date, err)
		}
		return res, nil
	}

	res, err := p.Resolver.Resolve(ctx, now, w)
	if err != nil {
		if errors.Is(err, resolve.ErrNoUpdate) {
			return nil, err
		}
		return nil, fmt.Errorf("resolving period: %w", err)
	}
	return res, nil
}

// rollup aggregates one period trend over archived history plus the
// current run's records, which are not yet archived at this point.
// The history read runs on the caller's context; only the narrative
// call is bounded by the wall clock.
func (p *Pipeline) rollup(ctx, runCtx context.Context, period types.Period, today []types.PaperRecord, day time.Time) (*types.PeriodTrend, error) {
	days := 7
	if period == types.PeriodMonth {
		days = 30
		if p.Config.Trend.MonthlyDays > 0 {
			days = p.Config.Trend.MonthlyDays
		}
	} else if p.Config.Trend.WeeklyDays > 0 {
		days = p.Config.Trend.WeeklyDays
	}

	history, err := p.Store.RecordsSince(ctx, day.AddDate(0, 0, -1), days-1)
	if err != nil {
		return nil, fmt.Errorf("loading %s history: %w", period, err)
	}

	records := append(history, today...)
	t, err := p.Trends.Aggregate(runCtx, period, records, day)
	if err != nil {
		return nil, fmt.Errorf("aggregating %s trend: %w", period, err)
	}
	return t, nil
}
