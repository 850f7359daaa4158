package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AtlasMeridia/living-archive/internal/export"
	"github.com/AtlasMeridia/living-archive/internal/manifest"
)

var (
	exportRunID string
	exportOut   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a run's manifests as an XLSX document index",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := slog.Default()
		store := manifest.NewStore(cfg.Archive.AILayerDir, logger)

		runID := exportRunID
		if runID == "" {
			runID = store.LatestRunID()
		}
		if runID == "" {
			return fmt.Errorf("no runs found under %s", cfg.Archive.AILayerDir)
		}

		out := exportOut
		if out == "" {
			out = filepath.Join(cfg.Archive.AILayerDir, "runs", runID, "index.xlsx")
		}

		data, err := export.NewService(store, logger).ExportIndexXLSX(runID)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRunID, "run-id", "", "run to export (default: latest)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default: <run dir>/index.xlsx)")
}
