package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AtlasMeridia/living-archive/constants"
	"github.com/AtlasMeridia/living-archive/internal/common"
	"github.com/AtlasMeridia/living-archive/internal/manifest"
	"github.com/AtlasMeridia/living-archive/internal/scan"
)

// BatchSummary is the outcome of one run over a document slice.
type BatchSummary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Partial   int
	Elapsed   time.Duration
	Results   []DocumentResult
}

// Batch schedules documents across a bounded worker pool. Document failures
// are fail-soft: each worker records its terminal result and the batch keeps
// going; only context cancellation stops the run early.
type Batch struct {
	proc    *Processor
	store   *manifest.Store
	workers int
	logger  *slog.Logger
}

func NewBatch(proc *Processor, store *manifest.Store, workers int, logger *slog.Logger) *Batch {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{proc: proc, store: store, workers: workers, logger: logger}
}

// Run processes docs under runID, skipping hashes already completed in this
// run, then persists run metadata.
func (b *Batch) Run(ctx context.Context, runID string, docs []scan.Document, provider, promptVersion, slicePath string) (BatchSummary, error) {
	start := time.Now()
	done := b.store.ProcessedHashes(runID)

	summary := BatchSummary{RunID: runID, Total: len(docs)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for _, doc := range docs {
		doc := doc
		if _, ok := done[doc.SHA256]; ok {
			summary.Skipped++
			b.logger.Debug("batch.skip_processed", "source", doc.RelPath)
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := b.proc.Process(gctx, runID, doc)
			mu.Lock()
			summary.Results = append(summary.Results, res)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	for _, r := range summary.Results {
		switch {
		case r.State == constants.StateEmitted && r.Partial:
			summary.Succeeded++
			summary.Partial++
		case r.State == constants.StateEmitted:
			summary.Succeeded++
		default:
			summary.Failed++
		}
	}
	summary.Elapsed = time.Since(start)

	meta := manifest.RunMeta{
		RunID:          runID,
		Pipeline:       "document-analysis",
		SlicePath:      slicePath,
		Completed:      time.Now().UTC().Format(time.RFC3339),
		ElapsedSeconds: summary.Elapsed.Seconds(),
		Total:          summary.Total,
		Succeeded:      summary.Succeeded,
		Failed:         summary.Failed,
		Skipped:        summary.Skipped,
		Failures:       collectFailures(summary.Results),
		Provider:       provider,
		PromptVersion:  promptVersion,
	}
	if _, metaErr := b.store.WriteRunMeta(meta); metaErr != nil {
		b.logger.Error("batch.run_meta_failed", "error", metaErr)
	}

	b.logger.Info("batch.complete",
		"run_id", runID,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"partial", summary.Partial,
		"elapsed", summary.Elapsed.Round(time.Second).String(),
	)

	if err != nil {
		return summary, fmt.Errorf("batch interrupted: %w", err)
	}
	return summary, nil
}

func collectFailures(results []DocumentResult) []manifest.RunFailure {
	var out []manifest.RunFailure
	for _, r := range results {
		if r.State == constants.StateEmitted {
			continue
		}
		f := manifest.RunFailure{File: r.Doc.RelPath, State: string(r.State), Code: common.ErrorCode(r.Err)}
		if r.Err != nil {
			f.Error = r.Err.Error()
		}
		out = append(out, f)
	}
	return out
}
