package extract

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ExtractionResult holds page-indexed text for one document.
// Immutable once produced; page indexes are 0-based internally,
// 1-based in rendered output.
type ExtractionResult struct {
	PageTexts      []string // one entry per page, empty string allowed
	TotalPages     int
	CharsExtracted int
	Method         string // "pdf-text" | "pdf-ocr"
	Duration       time.Duration
	Warnings       []string
}

// Extractable reports whether any page yielded text. False means the
// document is image-only and needs the OCR fallback.
func (r ExtractionResult) Extractable() bool {
	return r.CharsExtracted > 0
}

// PageRangeText renders pages [start, end] (1-indexed, inclusive) with
// per-page headers. The header format is part of the prompt contract.
func (r ExtractionResult) PageRangeText(start, end int) string {
	var b strings.Builder
	for p := start; p <= end && p <= r.TotalPages; p++ {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", p, r.PageTexts[p-1])
	}
	return b.String()
}

// FullText renders every page with headers.
func (r ExtractionResult) FullText() string {
	return r.PageRangeText(1, r.TotalPages)
}

// TextExtractor is stage 1: document path -> page-indexed text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (ExtractionResult, error)
}

// OCRFallback produces an ExtractionResult for image-only documents.
// Failures are terminal for the document: ErrOcrUnavailable when the
// OCR toolchain is missing, ErrOcrFailed when it ran and produced nothing.
type OCRFallback interface {
	Recover(ctx context.Context, path string) (ExtractionResult, error)
}
