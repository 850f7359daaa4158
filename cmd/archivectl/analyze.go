package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AtlasMeridia/living-archive/internal/catalog"
	"github.com/AtlasMeridia/living-archive/internal/extract"
	"github.com/AtlasMeridia/living-archive/internal/manifest"
	"github.com/AtlasMeridia/living-archive/internal/pipeline"
	"github.com/AtlasMeridia/living-archive/internal/policy"
	"github.com/AtlasMeridia/living-archive/internal/provider"
	"github.com/AtlasMeridia/living-archive/internal/scan"
)

var (
	analyzeSlice string
	analyzeRunID string
	analyzeHints string
	analyzeLimit int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the analysis pipeline over a slice of the archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if analyzeSlice != "" {
			cfg.Archive.SlicePath = analyzeSlice
		}
		logger := slog.Default()

		runID := analyzeRunID
		if runID == "" {
			runID = time.Now().UTC().Format("20060102-150405")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := manifest.NewStore(cfg.Archive.AILayerDir, logger)

		hintsRun := analyzeHints
		if hintsRun == "" {
			hintsRun = store.LatestRunID()
		}
		hints := store.PriorSensitivity(hintsRun)
		if len(hints) > 0 {
			logger.Info("analyze.hints_loaded", "run_id", hintsRun, "documents", len(hints))
		}

		cat, err := catalog.Open(cfg.Archive.CatalogPath, logger)
		if err != nil {
			// The catalog is derived state; a broken one degrades, not aborts.
			logger.Warn("analyze.catalog_unavailable", "error", err)
			cat = nil
		}
		defer cat.Close()

		prov, err := provider.New(cfg.Provider, logger)
		if err != nil {
			return err
		}
		logger.Info("analyze.provider", "name", prov.Name(), "trust", string(prov.Trust()))

		extCfg := extract.Config{
			Pdftotext:     os.Getenv("PDFTOTEXT_BIN"),
			Pdftoppm:      os.Getenv("PDFTOPPM_BIN"),
			Tesseract:     os.Getenv("TESSERACT_BIN"),
			TesseractLang: os.Getenv("TESSERACT_LANG"),
		}
		proc := pipeline.NewProcessor(
			cfg,
			extract.NewExtractor(extCfg, logger),
			extract.NewOCRExtractor(extCfg, logger),
			policy.NewGate(cfg.Policy, logger),
			prov,
			store,
			cat,
			hints,
			logger,
		)

		docs, err := scan.New(cfg.Archive.DocumentsRoot, logger).Scan(cfg.Archive.SlicePath)
		if err != nil {
			return err
		}
		if analyzeLimit > 0 && len(docs) > analyzeLimit {
			docs = docs[:analyzeLimit]
		}
		if len(docs) == 0 {
			fmt.Println("no documents to analyze")
			return nil
		}

		batch := pipeline.NewBatch(proc, store, cfg.Pipeline.Workers, logger)
		summary, err := batch.Run(ctx, runID, docs, cfg.Provider.Name, cfg.Provider.PromptVersion, cfg.Archive.SlicePath)

		fmt.Printf("run %s: %d total, %d succeeded (%d partial), %d failed, %d skipped in %s\n",
			summary.RunID, summary.Total, summary.Succeeded, summary.Partial,
			summary.Failed, summary.Skipped, summary.Elapsed.Round(time.Second))
		if err != nil {
			return err
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d documents failed", summary.Failed)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSlice, "slice", "", "subdirectory of the archive to process (default: DOC_SLICE_PATH)")
	analyzeCmd.Flags().StringVar(&analyzeRunID, "run-id", "", "resume an existing run instead of starting a new one")
	analyzeCmd.Flags().StringVar(&analyzeHints, "hints-run", "", "prior run to load sensitivity hints from (default: latest)")
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 0, "process at most N documents (0 = all)")
}
