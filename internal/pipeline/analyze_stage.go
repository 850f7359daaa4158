package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AtlasMeridia/living-archive/internal/analysis"
	"github.com/AtlasMeridia/living-archive/internal/chunk"
	"github.com/AtlasMeridia/living-archive/internal/manifest"
	"github.com/AtlasMeridia/living-archive/internal/policy"
	"github.com/AtlasMeridia/living-archive/internal/provider"
	"github.com/AtlasMeridia/living-archive/internal/scan"
)

// chunkOutcome pairs one chunk's result with its policy decision so the
// aggregation barrier can build the document-level audit.
type chunkOutcome struct {
	result   analysis.ChunkResult
	decision policy.Decision
	err      error
}

// analyzeChunks gates and dispatches every chunk, waits for all of them,
// and aggregates. The barrier is strict: no manifest is written until each
// chunk has either a validated result or a terminal error.
//
// Failure handling follows StrictChunks. Strict mode fails the document on
// the first chunk error. Default mode aggregates over the successes and
// marks the result Partial, failing only when no chunk succeeded.
func (p *Processor) analyzeChunks(ctx context.Context, doc scan.Document, chunks []chunk.TextChunk, log *slog.Logger) (analysis.DocumentAnalysis, analysis.InferenceMetadata, manifest.PolicyAudit, error) {
	hints := p.hints[doc.SHA256]
	trust := p.provider.Trust()
	totalPages := chunks[len(chunks)-1].PageEnd

	outcomes := make([]chunkOutcome, len(chunks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, p.cfg.Pipeline.ChunkConcurrency))

	for i, ch := range chunks {
		i, ch := i, ch
		g.Go(func() error {
			out := p.analyzeOne(gctx, doc, ch, totalPages, hints, trust, log)
			mu.Lock()
			outcomes[i] = out
			mu.Unlock()
			if out.err != nil && p.cfg.Pipeline.StrictChunks {
				// Cancels the group so in-flight siblings stop early.
				return out.err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return analysis.DocumentAnalysis{}, analysis.InferenceMetadata{}, manifest.PolicyAudit{}, err
	}

	var (
		succeeded []analysis.ChunkResult
		failed    int
		firstErr  error
		audit     manifest.PolicyAudit
	)
	audit.RiskLevel = string(policy.RiskNone)
	for _, out := range outcomes {
		if out.err != nil {
			failed++
			if firstErr == nil {
				firstErr = out.err
			}
			continue
		}
		succeeded = append(succeeded, out.result)
		audit = mergeAudit(audit, out.decision)
	}

	if len(succeeded) == 0 {
		return analysis.DocumentAnalysis{}, analysis.InferenceMetadata{}, manifest.PolicyAudit{},
			fmt.Errorf("all %d chunks failed: %w", len(chunks), firstErr)
	}
	if failed > 0 {
		log.Warn("pipeline.partial_document", "succeeded", len(succeeded), "failed", failed, "error", firstErr)
	}

	agg, meta, err := analysis.MergeChunks(succeeded)
	if err != nil {
		return analysis.DocumentAnalysis{}, analysis.InferenceMetadata{}, manifest.PolicyAudit{}, fmt.Errorf("merge chunks: %w", err)
	}
	if failed > 0 {
		agg.Partial = true
	}
	meta.ChunkCount = len(succeeded)
	return agg, meta, audit, nil
}

// analyzeOne runs the gate and one provider call for a single chunk.
func (p *Processor) analyzeOne(ctx context.Context, doc scan.Document, ch chunk.TextChunk, totalPages int, hints analysis.Sensitivity, trust policy.Trust, log *slog.Logger) chunkOutcome {
	decision := p.gate.Decide(ch.Text, hints, trust)
	if err := policy.Enforce(decision, trust); err != nil {
		return chunkOutcome{decision: decision, err: err}
	}
	if decision.Risk != policy.RiskNone {
		log.Debug("pipeline.chunk_gated",
			"chunk", ch.Index,
			"risk", string(decision.Risk),
			"redacted", decision.Redacted,
			"override", decision.OverrideApplied,
		)
	}

	partial, meta, err := p.provider.Analyze(ctx, decision.Payload, provider.DocumentContext{
		SourceFile: doc.RelPath,
		PageStart:  ch.PageStart,
		PageEnd:    ch.PageEnd,
		PageCount:  totalPages,
	})
	if err != nil {
		return chunkOutcome{decision: decision, err: fmt.Errorf("chunk %d (pages %d-%d): %w", ch.Index, ch.PageStart, ch.PageEnd, err)}
	}
	return chunkOutcome{
		result: analysis.ChunkResult{
			PageStart: ch.PageStart,
			PageEnd:   ch.PageEnd,
			Analysis:  partial,
			Meta:      meta,
		},
		decision: decision,
	}
}

// mergeAudit folds one chunk's policy decision into the document audit.
// Risk takes the maximum; redaction and override are sticky.
func mergeAudit(a manifest.PolicyAudit, d policy.Decision) manifest.PolicyAudit {
	if riskRank(policy.RiskLevel(a.RiskLevel)) < riskRank(d.Risk) {
		a.RiskLevel = string(d.Risk)
	}
	a.Redacted = a.Redacted || d.Redacted
	a.OverrideApplied = a.OverrideApplied || d.OverrideApplied
	return a
}

func riskRank(r policy.RiskLevel) int {
	switch r {
	case policy.RiskHigh:
		return 2
	case policy.RiskLow:
		return 1
	default:
		return 0
	}
}
