package main

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AtlasMeridia/living-archive/internal/catalog"
	"github.com/AtlasMeridia/living-archive/internal/manifest"
)

var statusRunID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a run's manifest count and catalog statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := slog.Default()
		store := manifest.NewStore(cfg.Archive.AILayerDir, logger)

		runID := statusRunID
		if runID == "" {
			runID = store.LatestRunID()
		}
		if runID == "" {
			fmt.Println("no runs found")
			return nil
		}

		manifests := store.ListManifests(runID)
		fmt.Printf("run %s: %d manifests\n", runID, len(manifests))

		cat, err := catalog.Open(cfg.Archive.CatalogPath, logger)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer cat.Close()

		stats, err := cat.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if stats.TotalAssets == 0 {
			return nil
		}

		fmt.Printf("\ncatalog: %d assets, %d flagged sensitive\n", stats.TotalAssets, stats.Sensitive)
		cats := make([]string, 0, len(stats.ByCategory))
		for c := range stats.ByCategory {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			fmt.Printf("  %-16s %d\n", c, stats.ByCategory[c])
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusRunID, "run-id", "", "run to inspect (default: latest)")
}
