// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-digest/internal/archive"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recently archived reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := archive.NewStore(cfg.Archive.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		days, _ := cmd.Flags().GetInt("days")
		if days <= 0 {
			days = 7
		}
		end := time.Now()
		start := end.AddDate(0, 0, -(days - 1))

		reports, err := store.ReadRange(context.Background(), start, end)
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			fmt.Printf("no reports archived in the last %d days\n", days)
			return nil
		}

		for _, r := range reports {
			line := fmt.Sprintf("%s  %d papers", r.Date, len(r.Papers))
			if len(r.Failures) > 0 {
				line += fmt.Sprintf(", %d failures", len(r.Failures))
			}
			if len(r.Spotlight) > 0 {
				line += fmt.Sprintf(", %d spotlighted", len(r.Spotlight))
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Int("days", 7, "how many days back to list")

	rootCmd.AddCommand(listCmd)
}
