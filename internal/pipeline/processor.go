// Package pipeline drives documents through extraction, chunking, the policy
// gate, provider dispatch, aggregation, and manifest emission.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AtlasMeridia/living-archive/constants"
	"github.com/AtlasMeridia/living-archive/internal/analysis"
	"github.com/AtlasMeridia/living-archive/internal/catalog"
	"github.com/AtlasMeridia/living-archive/internal/chunk"
	"github.com/AtlasMeridia/living-archive/internal/common"
	"github.com/AtlasMeridia/living-archive/internal/extract"
	"github.com/AtlasMeridia/living-archive/internal/manifest"
	"github.com/AtlasMeridia/living-archive/internal/policy"
	"github.com/AtlasMeridia/living-archive/internal/provider"
	"github.com/AtlasMeridia/living-archive/internal/scan"
)

// Processor runs the per-document state machine. Safe for concurrent use:
// all mutable state lives in the call frame.
type Processor struct {
	cfg      *common.Config
	extract  extract.TextExtractor
	ocr      extract.OCRFallback
	gate     *policy.Gate
	provider provider.AnalysisProvider
	store    *manifest.Store
	catalog  *catalog.Catalog
	hints    map[string]analysis.Sensitivity
	logger   *slog.Logger
}

func NewProcessor(
	cfg *common.Config,
	ext extract.TextExtractor,
	ocr extract.OCRFallback,
	gate *policy.Gate,
	prov provider.AnalysisProvider,
	store *manifest.Store,
	cat *catalog.Catalog,
	hints map[string]analysis.Sensitivity,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if hints == nil {
		hints = map[string]analysis.Sensitivity{}
	}
	return &Processor{
		cfg:      cfg,
		extract:  ext,
		ocr:      ocr,
		gate:     gate,
		provider: prov,
		store:    store,
		catalog:  cat,
		hints:    hints,
		logger:   logger,
	}
}

// DocumentResult is the terminal outcome for one document in a run.
type DocumentResult struct {
	Doc          scan.Document
	State        constants.DocState
	ManifestPath string
	Partial      bool
	Err          error
}

// Process drives one document to a terminal state. Every return path yields
// a terminal DocState; errors never propagate as panics or partial writes.
func (p *Processor) Process(ctx context.Context, runID string, doc scan.Document) DocumentResult {
	start := time.Now()
	log := p.logger.With("source", doc.RelPath, "sha", doc.SHA256[:12])

	if p.cfg.Pipeline.DocDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Pipeline.DocDeadline)
		defer cancel()
	}

	res, err := p.extractText(ctx, doc, log)
	if err != nil {
		state := constants.StateErrored
		if errors.Is(err, common.ErrOcrUnavailable) || errors.Is(err, common.ErrOcrFailed) {
			state = constants.StateOCRFailed
		}
		log.Error("pipeline.extract_failed", "state", string(state), "error", err)
		return DocumentResult{Doc: doc, State: state, Err: err}
	}

	chunks := chunk.Split(doc.SHA256, res, chunk.Options{
		ChunkPages:        p.cfg.Chunking.ChunkPages,
		SmallDocThreshold: p.cfg.Chunking.SmallDocThreshold,
	})
	if len(chunks) == 0 {
		err := common.NewAppError("EXTRACT", "document produced no chunks", common.ErrOcrFailed)
		log.Error("pipeline.no_chunks", "error", err)
		return DocumentResult{Doc: doc, State: constants.StateOCRFailed, Err: err}
	}
	log.Info("pipeline.chunked", "chunks", len(chunks), "pages", res.TotalPages, "chars", res.CharsExtracted)

	agg, meta, audit, err := p.analyzeChunks(ctx, doc, chunks, log)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, common.ErrDeadlineExceeded) {
			err = fmt.Errorf("%w: %v", common.ErrDeadlineExceeded, err)
		}
		log.Error("pipeline.analyze_failed", "error", err)
		return DocumentResult{Doc: doc, State: constants.StateErrored, Err: err}
	}

	if _, err := p.store.WriteExtractedText(runID, doc.SHA256, res.FullText()); err != nil {
		log.Error("pipeline.text_write_failed", "error", err)
		return DocumentResult{Doc: doc, State: constants.StateErrored, Err: err}
	}

	m := manifest.DocumentManifest{
		SourceFile:    doc.RelPath,
		SourceSHA256:  doc.SHA256,
		FileSizeBytes: doc.SizeBytes,
		PageCount:     res.TotalPages,
		Analysis:      agg,
		Inference:     meta,
		Policy:        audit,
	}
	m.Extraction.Method = res.Method

	path, err := p.store.WriteManifest(runID, m)
	if err != nil {
		log.Error("pipeline.manifest_write_failed", "error", err)
		return DocumentResult{Doc: doc, State: constants.StateErrored, Err: err}
	}

	// Catalog updates are derived state; a failure is logged inside and
	// never changes the document's outcome.
	p.catalog.UpsertAsset(ctx, runID, path, m)

	log.Info("pipeline.document_done",
		"state", string(constants.StateEmitted),
		"chunks", agg.ChunkCount,
		"partial", agg.Partial,
		"category", agg.DocumentType.Category,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return DocumentResult{
		Doc:          doc,
		State:        constants.StateEmitted,
		ManifestPath: path,
		Partial:      agg.Partial,
	}
}

// extractText runs the text stage and the OCR fallback for image-only files.
func (p *Processor) extractText(ctx context.Context, doc scan.Document, log *slog.Logger) (extract.ExtractionResult, error) {
	res, err := p.extract.Extract(ctx, doc.Path)
	if err != nil {
		return extract.ExtractionResult{}, err
	}
	if res.Extractable() {
		return res, nil
	}

	log.Info("pipeline.ocr_fallback", "pages", res.TotalPages)
	if p.ocr == nil {
		return extract.ExtractionResult{}, common.NewAppError("OCR", "no OCR fallback configured", common.ErrOcrUnavailable)
	}
	return p.ocr.Recover(ctx, doc.Path)
}
