// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package spotlight computes deterministic cross-source attention
// scores and flags unusually attention-getting papers.
package spotlight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/pdiddy/arxiv-digest/internal/inference"
	"github.com/pdiddy/arxiv-digest/pkg/types"
)

// ErrSourceUnavailable reports source-level unavailability, distinct
// from "no data for this paper" (which is an empty signal list).
var ErrSourceUnavailable = errors.New("signal source unavailable")

const introSystem = "You are an editor. Write a short, factual introduction (2-3 sentences) explaining why this paper is drawing unusual attention. No hype."

// SignalSource fetches attention signals for one paper from one
// external provider.
type SignalSource interface {
	Name() string
	Fetch(ctx context.Context, paperID string) ([]types.AttentionSignal, error)
}

// Cache stores fetched signals keyed by (paper, source, day) so reruns
// on the same day reuse earlier fetches. Entries are append-only.
type Cache interface {
	GetSignals(paperID, source, day string) ([]types.AttentionSignal, bool, error)
	PutSignals(paperID, source, day string, signals []types.AttentionSignal) error
}

// Scorer produces 0..N SpotlightItems for the day's records.
type Scorer struct {
	Sources []SignalSource
	Cache   Cache
	Service *inference.Service
	LLM     types.LLMConfig
	Config  types.SpotlightConfig
}

// Run fetches signals for eligible papers, scores them, and returns
// the spotlighted subset ordered by score descending. Signal fetches
// run with bounded concurrency, each under its own timeout; an
// unreachable source degrades that source's contribution, never the
// run. With every source down the result is simply empty.
func (s *Scorer) Run(ctx context.Context, records []types.PaperRecord, now time.Time, w io.Writer) ([]types.SpotlightItem, []types.AuditEntry) {
	if !s.Config.Enable || len(s.Sources) == 0 {
		return nil, nil
	}

	recentDays := s.Config.RecentDays
	if recentDays <= 0 {
		recentDays = 7
	}
	cutoff := now.AddDate(0, 0, -recentDays)

	var eligible []types.PaperRecord
	for _, r := range records {
		if !r.Published.Before(cutoff) {
			eligible = append(eligible, r)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	signals, audit := s.fetchAll(ctx, eligible, now, w)

	var items []types.SpotlightItem
	for _, r := range eligible {
		sigs := signals[r.ID]
		if len(sigs) == 0 {
			continue
		}
		score := Score(sigs, s.Config.Weights)
		if score < s.threshold() {
			continue
		}
		items = append(items, types.SpotlightItem{
			PaperID:        r.ID,
			AttentionScore: score,
			Signals:        sigs,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].AttentionScore != items[j].AttentionScore {
			return items[i].AttentionScore > items[j].AttentionScore
		}
		return items[i].PaperID < items[j].PaperID
	})

	maxItems := s.Config.MaxItems
	if maxItems <= 0 {
		maxItems = 2
	}
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	// Narrative only for confirmed spotlights; the score is already
	// fixed and never revisited. Budget exhaustion skips the intro.
	byID := make(map[string]types.PaperRecord, len(eligible))
	for _, r := range eligible {
		byID[r.ID] = r
	}
	for i := range items {
		r := byID[items[i].PaperID]
		user := fmt.Sprintf("Title: %s\nAbstract: %s\nAttention score: %d/100 from external metrics.",
			r.Title, r.Abstract, items[i].AttentionScore)
		intro, err := s.Service.Narrative(ctx, s.LLM.ModelSmart, introSystem, user, "intro")
		if err != nil {
			if errors.Is(err, inference.ErrBudgetExhausted) {
				fmt.Fprintf(w, "warning: call budget exhausted, skipping spotlight narrative\n")
				break
			}
			fmt.Fprintf(w, "warning: spotlight intro %s: %v\n", items[i].PaperID, err)
			continue
		}
		items[i].Intro = intro
	}

	return items, audit
}

// fetchAll runs the per-paper, per-source fetches through the cache
// with bounded concurrency. The cache is read-shared and
// write-appended only; each task writes a distinct key.
func (s *Scorer) fetchAll(ctx context.Context, eligible []types.PaperRecord, now time.Time, w io.Writer) (map[string][]types.AttentionSignal, []types.AuditEntry) {
	concurrency := s.Config.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	fetchTimeout := s.Config.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	day := now.Format("2006-01-02")

	type task struct {
		paperID string
		src     SignalSource
	}
	var tasks []task
	for _, r := range eligible {
		for _, src := range s.Sources {
			tasks = append(tasks, task{paperID: r.ID, src: src})
		}
	}

	results := make([][]types.AttentionSignal, len(tasks))
	audits := make([]types.AuditEntry, len(tasks))

	p := pool.New().WithMaxGoroutines(concurrency)
	for i, t := range tasks {
		p.Go(func() {
			if s.Cache != nil {
				if cached, ok, err := s.Cache.GetSignals(t.paperID, t.src.Name(), day); err == nil && ok {
					results[i] = cached
					audits[i] = types.AuditEntry{Stage: "spotlight", ItemID: t.paperID + "/" + t.src.Name(), Status: types.AuditSkipped, Detail: "cache hit"}
					return
				}
			}

			fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
			defer cancel()

			sigs, err := t.src.Fetch(fctx, t.paperID)
			if err != nil {
				fmt.Fprintf(w, "warning: signal fetch %s from %s: %v\n", t.paperID, t.src.Name(), err)
				audits[i] = types.AuditEntry{Stage: "spotlight", ItemID: t.paperID + "/" + t.src.Name(), Status: types.AuditFailed, Detail: err.Error()}
				return
			}

			results[i] = sigs
			audits[i] = types.AuditEntry{Stage: "spotlight", ItemID: t.paperID + "/" + t.src.Name(), Status: types.AuditOK}
			if s.Cache != nil {
				if err := s.Cache.PutSignals(t.paperID, t.src.Name(), day, sigs); err != nil {
					fmt.Fprintf(w, "warning: signal cache write %s/%s: %v\n", t.paperID, t.src.Name(), err)
				}
			}
		})
	}
	p.Wait()

	merged := make(map[string][]types.AttentionSignal)
	for i, t := range tasks {
		merged[t.paperID] = append(merged[t.paperID], results[i]...)
	}
	return merged, audits
}

func (s *Scorer) threshold() int {
	if s.Config.Threshold > 0 {
		return s.Config.Threshold
	}
	return 70
}

// Score computes the attention score in [0,100] as a pure function of
// the signal list and the configured weights. Each metric is
// normalized to [0,1] by a source-specific rule; the weighted sum is
// re-normalized over only the metrics that returned data, so missing
// sources redistribute their weight proportionally instead of zeroing
// the score.
func Score(signals []types.AttentionSignal, weights map[string]float64) int {
	var weighted, available float64
	for _, sig := range signals {
		w, ok := weights[sig.Source+"/"+sig.Metric]
		if !ok {
			w, ok = weights[sig.Source]
		}
		if !ok || w <= 0 {
			continue
		}
		weighted += w * Normalize(sig)
		available += w
	}
	if available == 0 {
		return 0
	}
	return int(math.Round(weighted / available * 100))
}

// saturation is the raw value at which a metric's normalized score
// reaches 1.0 under log scaling.
var saturation = map[string]float64{
	"citations":             1000,
	"influential_citations": 100,
}

// Normalize maps a raw metric value onto [0,1]. Count-like metrics use
// log scaling so early citations matter most; unknown metrics fall
// back to the citation curve.
func Normalize(sig types.AttentionSignal) float64 {
	sat, ok := saturation[sig.Metric]
	if !ok {
		sat = saturation["citations"]
	}
	if sig.Value <= 0 {
		return 0
	}
	n := math.Log1p(sig.Value) / math.Log1p(sat)
	return math.Min(1, n)
}
