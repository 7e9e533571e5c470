// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-digest/internal/archive"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive statistics",
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

		st, err := store.ReadStats(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("archive:        %s\n", cfg.Archive.Path)
		fmt.Printf("reports:        %d\n", st.Reports)
		if st.Reports > 0 {
			fmt.Printf("date range:     %s to %s\n", st.FirstDate, st.LastDate)
		}
		fmt.Printf("records:        %d\n", st.Records)
		fmt.Printf("cached signals: %d\n", st.CachedSignals)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
