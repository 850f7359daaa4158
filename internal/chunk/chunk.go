// Package chunk splits extracted document text into page-range chunks
// sized for a single inference call. Sizing is page-based, not token-based:
// a simpler, model-agnostic proxy that avoids coupling chunk size to any
// one provider's tokenizer.
package chunk

import (
	"github.com/AtlasMeridia/living-archive/internal/extract"
)

// Defaults match the archive's production thresholds.
const (
	DefaultChunkPages        = 50
	DefaultSmallDocThreshold = 100_000
)

// TextChunk is a contiguous page range drawn from one document.
// Ranges for a document partition [1, TotalPages] in ascending order;
// the aggregator's first-chunk-wins rules depend on that ordering.
type TextChunk struct {
	DocumentID string
	PageStart  int // 1-indexed
	PageEnd    int // inclusive
	Index      int
	Total      int
	Text       string
}

// Options for Split.
type Options struct {
	ChunkPages        int // pages per chunk, default 50
	SmallDocThreshold int // docs under this many rendered chars stay whole
}

// Split produces the ordered chunk sequence for an extraction result.
// Small documents are never split: aggregation overhead and loss of
// document-level context are not worth it under the threshold.
func Split(docID string, res extract.ExtractionResult, opts Options) []TextChunk {
	if opts.ChunkPages <= 0 {
		opts.ChunkPages = DefaultChunkPages
	}
	if opts.SmallDocThreshold <= 0 {
		opts.SmallDocThreshold = DefaultSmallDocThreshold
	}
	if res.TotalPages == 0 {
		return nil
	}

	full := res.FullText()
	if len(full) < opts.SmallDocThreshold {
		return []TextChunk{{
			DocumentID: docID,
			PageStart:  1,
			PageEnd:    res.TotalPages,
			Index:      0,
			Total:      1,
			Text:       full,
		}}
	}

	total := (res.TotalPages + opts.ChunkPages - 1) / opts.ChunkPages
	chunks := make([]TextChunk, 0, total)
	for i := 0; i < total; i++ {
		start := i*opts.ChunkPages + 1
		end := start + opts.ChunkPages - 1
		if end > res.TotalPages {
			end = res.TotalPages
		}
		chunks = append(chunks, TextChunk{
			DocumentID: docID,
			PageStart:  start,
			PageEnd:    end,
			Index:      i,
			Total:      total,
			Text:       res.PageRangeText(start, end),
		})
	}
	return chunks
}
