// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/arxiv-digest/internal/archive"
	"github.com/pdiddy/arxiv-digest/pkg/types"
)

var reportCmd = &cobra.Command{
	Use:   "report [date]",
	Short: "Show an archived daily report",
	Long: `Report prints the archived report for the given date (YYYY-MM-DD),
or for today when no date is given. Use --format for the raw stored form.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := archive.NewStore(cfg.Archive.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	day := time.Now()
	if len(args) == 1 {
		day, err = time.Parse("2006-01-02", args[0])
		if err != nil {
			return fmt.Errorf("parsing date %q: %w", args[0], err)
		}
	}

	report, err := store.ReadReport(context.Background(), day)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no report archived for %s", day.Format("2006-01-02"))
	}
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(report)
	case "text", "":
		return formatReport(report)
	default:
		return fmt.Errorf("unsupported format %q: use text, json, or yaml", format)
	}
}

func formatReport(r *types.DailyReport) error {
	fmt.Printf("Report for %s  (window %s to %s)\n", r.Date,
		r.WindowStart.Format("2006-01-02 15:04"), r.WindowEnd.Format("2006-01-02 15:04"))
	fmt.Printf("Categories: %s\n", strings.Join(r.Categories, ", "))
	if len(r.Keywords) > 0 {
		fmt.Printf("Keywords:   %s\n", strings.Join(r.Keywords, ", "))
	}
	fmt.Printf("\n%s\n", r.DayTrend)

	fmt.Printf("\nPapers (%d):\n", len(r.Papers))
	for i, p := range r.Papers {
		reviewed := ""
		if p.Relevance.Reviewed {
			reviewed = " (reviewed)"
		}
		fmt.Printf("\n%d. %s  [%s, score %d%s]\n", i+1, p.Title, p.ID, p.Relevance.Score, reviewed)
		fmt.Printf("   problem:  %s\n", p.Problem)
		fmt.Printf("   method:   %s\n", p.Method)
		fmt.Printf("   paradigm: %s\n", p.ParadigmRelation)
		fmt.Printf("   quality:  %d/5\n", p.Quality)
	}

	if len(r.Failures) > 0 {
		fmt.Printf("\nFailures (%d):\n", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Printf("  %s: %s\n", f.PaperID, f.Reason)
		}
	}

	for _, t := range []*types.PeriodTrend{r.WeeklyTrend, r.MonthlyTrend} {
		if t == nil {
			continue
		}
		fmt.Printf("\n%s trend (%s to %s):\n%s\n", t.Period,
			t.Start.Format("2006-01-02"), t.End.Format("2006-01-02"), t.Summary)
		if len(t.Keywords) > 0 {
			var terms []string
			for _, k := range t.Keywords {
				terms = append(terms, fmt.Sprintf("%s (%.2f)", k.Keyword, k.Weight))
			}
			fmt.Printf("keywords: %s\n", strings.Join(terms, ", "))
		}
	}

	if len(r.Spotlight) > 0 {
		fmt.Printf("\nSpotlight:\n")
		for _, s := range r.Spotlight {
			fmt.Printf("  %s  attention %d/100\n", s.PaperID, s.AttentionScore)
			if s.Intro != "" {
				fmt.Printf("    %s\n", s.Intro)
			}
		}
	}
	return nil
}

func init() {
	reportCmd.Flags().String("format", "text", "output format: text, json, or yaml")

	rootCmd.AddCommand(reportCmd)
}
