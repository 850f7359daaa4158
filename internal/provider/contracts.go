// Package provider implements the closed set of inference backends that
// turn chunk text into a schema-validated partial analysis. Providers are
// pure with respect to pipeline state: no cross-call memory, safe to call
// concurrently.
package provider

import (
	"context"

	"github.com/AtlasMeridia/living-archive/internal/analysis"
	"github.com/AtlasMeridia/living-archive/internal/policy"
)

// DocumentContext carries the non-text context for one analyze call.
type DocumentContext struct {
	SourceFile string
	PageStart  int
	PageEnd    int
	PageCount  int // total pages in the source document
}

// AnalysisProvider is the uniform contract every backend implements.
// The returned PartialAnalysis has already been validated against the
// strict document schema.
type AnalysisProvider interface {
	Name() string
	Trust() policy.Trust
	Analyze(ctx context.Context, text string, docCtx DocumentContext) (analysis.PartialAnalysis, analysis.InferenceMetadata, error)
}

// estimateTokens is the rough chars/4 heuristic used for capacity planning
// when a backend does not report usage.
func estimateTokens(text string) int {
	return len(text) / 4
}
