// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-digest/internal/pipeline"
	"github.com/pdiddy/arxiv-digest/internal/resolve"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Produce and archive today's digest",
	Long: `Run resolves the latest arXiv update in the configured categories,
filters candidates against your interest keywords, extracts a structured
analysis of each selected paper, rolls up trends, computes the spotlight,
and archives exactly one report for the resolved date.

With --date the report covers that calendar day instead of walking back
to the latest update; an empty day then yields a valid empty report.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetInt("max-results"); v > 0 {
		cfg.Search.MaxResults = v
	}
	if v, _ := cmd.Flags().GetInt("max-selected"); v > 0 {
		cfg.Filter.MaxSelected = v
	}

	p, store, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := pipeline.Options{}
	opts.Date, _ = cmd.Flags().GetString("date")
	opts.DryRun, _ = cmd.Flags().GetBool("dry-run")

	report, err := p.Run(context.Background(), opts, time.Now(), os.Stdout)
	if err != nil {
		if errors.Is(err, resolve.ErrNoUpdate) {
			fmt.Fprintln(os.Stdout, "no new arXiv update within the lookback window; nothing archived")
			return nil
		}
		return err
	}

	fmt.Fprintf(os.Stdout, "report %s: %d papers, %d failures, %d spotlighted\n",
		report.Date, len(report.Papers), len(report.Failures), len(report.Spotlight))
	return nil
}

func init() {
	runCmd.Flags().String("date", "", "report on a specific day (YYYY-MM-DD) instead of the latest update")
	runCmd.Flags().Int("max-results", 0, "override the per-query candidate cap")
	runCmd.Flags().Int("max-selected", 0, "override the selected-subset cap")
	runCmd.Flags().Bool("dry-run", false, "harvest only: keyword heuristics, no inference, no archive write")

	rootCmd.AddCommand(runCmd)
}
