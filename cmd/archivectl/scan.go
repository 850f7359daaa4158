package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AtlasMeridia/living-archive/internal/scan"
)

var scanSlice string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the documents a run would process, without analyzing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if scanSlice != "" {
			cfg.Archive.SlicePath = scanSlice
		}

		docs, err := scan.New(cfg.Archive.DocumentsRoot, slog.Default()).Scan(cfg.Archive.SlicePath)
		if err != nil {
			return err
		}

		var totalBytes int64
		var totalPages int
		for _, d := range docs {
			fmt.Printf("%-12s %8.1f KB %5d pp  %s\n", d.SHA256[:12], float64(d.SizeBytes)/1024, d.PageCount, d.RelPath)
			totalBytes += d.SizeBytes
			totalPages += d.PageCount
		}
		fmt.Printf("\n%d documents, %d pages, %.1f MB\n", len(docs), totalPages, float64(totalBytes)/(1024*1024))
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanSlice, "slice", "", "subdirectory of the archive to scan (default: DOC_SLICE_PATH)")
}
