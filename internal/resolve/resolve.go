// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve decides which calendar period counts as "today's
// update" and which fetch window feeds the rest of the pipeline.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/arxiv-digest/internal/source"
	"github.com/pdiddy/arxiv-digest/pkg/types"
)

// ErrNoUpdate is the terminal outcome when no probed day within the
// lookback bound yielded results. It is distinct from an empty report:
// callers must not synthesize one for this case.
var ErrNoUpdate = errors.New("no upstream update within lookback window")

// Resolution is the resolved reporting period with the candidates
// found inside it. Start/End bound the fetch window as [Start, End).
type Resolution struct {
	// Date is the reporting date label (YYYY-MM-DD in the configured
	// timezone).
	Date string

	Start time.Time
	End   time.Time

	// Candidates are the papers found in the resolved window, already
	// deduplicated and sorted newest first.
	Candidates []types.Candidate
}

// Resolver picks the reporting period. The day-by-day lookback is
// sequential: each probe depends on the previous one being empty.
// Resolve performs no inference calls; its output is stable for a
// fixed upstream state.
type Resolver struct {
	Source source.Source
	Config types.SearchConfig
}

// Resolve returns the reporting period per the configured mode. In
// fixed-window mode the period is [now - window, now). In
// latest-update mode it probes calendar days backwards from today,
// returning the first day with results, or ErrNoUpdate after
// LookbackDays empty days. A transient probe failure does not abort
// the walk; it is logged to w and the walk continues to the next older
// day, bounded overall by MaxProbeAttempts.
func (r *Resolver) Resolve(ctx context.Context, now time.Time, w io.Writer) (*Resolution, error) {
	loc, err := r.location()
	if err != nil {
		return nil, err
	}
	now = now.In(loc)

	if r.Config.Mode == types.ModeFixedWindow {
		return r.resolveFixed(ctx, now)
	}
	return r.resolveLatest(ctx, now, w)
}

// ResolveDate resolves an explicitly requested calendar day without
// walking backwards. An empty day is a valid (empty) resolution here,
// not ErrNoUpdate: the caller asked for that specific date.
func (r *Resolver) ResolveDate(ctx context.Context, date string) (*Resolution, error) {
	loc, err := r.location()
	if err != nil {
		return nil, err
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", date, err)
	}
	res, err := r.probeDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", date, err)
	}
	return res, nil
}

func (r *Resolver) resolveFixed(ctx context.Context, now time.Time) (*Resolution, error) {
	window := r.Config.Window
	if window <= 0 {
		window = 24 * time.Hour
	}
	start := now.Add(-window)

	candidates, err := r.Source.Search(ctx, source.Request{
		Categories: r.Config.Categories,
		Start:      start,
		End:        now,
		MaxResults: r.Config.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("fixed-window query: %w", err)
	}

	return &Resolution{
		Date:       now.Format("2006-01-02"),
		Start:      start,
		End:        now,
		Candidates: candidates,
	}, nil
}

func (r *Resolver) resolveLatest(ctx context.Context, now time.Time, w io.Writer) (*Resolution, error) {
	lookback := r.Config.LookbackDays
	if lookback <= 0 {
		lookback = 7
	}
	maxAttempts := r.Config.MaxProbeAttempts
	if maxAttempts <= 0 {
		maxAttempts = 2 * lookback
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	attempts := 0
	for offset := 0; offset < lookback; offset++ {
		if attempts >= maxAttempts {
			break
		}
		day := today.AddDate(0, 0, -offset)

		res, err := r.probeDay(ctx, day)
		attempts++
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Transient failure: log and keep walking to older days.
			fmt.Fprintf(w, "warning: probe %s failed: %v\n", day.Format("2006-01-02"), err)
			continue
		}
		if len(res.Candidates) > 0 {
			return res, nil
		}
	}

	return nil, ErrNoUpdate
}

// probeDay queries one calendar day's bounds [00:00, 24:00).
func (r *Resolver) probeDay(ctx context.Context, day time.Time) (*Resolution, error) {
	start := day
	end := day.AddDate(0, 0, 1)

	candidates, err := r.Source.Search(ctx, source.Request{
		Categories: r.Config.Categories,
		Start:      start,
		End:        end,
		MaxResults: r.Config.MaxResults,
	})
	if err != nil {
		return nil, err
	}

	return &Resolution{
		Date:       day.Format("2006-01-02"),
		Start:      start,
		End:        end,
		Candidates: candidates,
	}, nil
}

func (r *Resolver) location() (*time.Location, error) {
	tz := r.Config.Timezone
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", tz, err)
	}
	return loc, nil
}
