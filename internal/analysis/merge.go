package analysis

import (
	"fmt"
	"strings"
)

// ChunkResult pairs one chunk's partial analysis with its inference
// metadata and page range. Merge input must be ordered by page range
// ascending; the first-chunk-wins and tie-break rules depend on it.
type ChunkResult struct {
	PageStart int
	PageEnd   int
	Analysis  PartialAnalysis
	Meta      InferenceMetadata
}

// MergeChunks combines ordered per-chunk results into one document-level
// analysis. N=1 flows through the same path as N>1.
//
// Field rules:
//   - document_type, title, language, quality: first chunk (the opening
//     pages are the most reliable signal for overall classification)
//   - date: highest confidence wins, ties broken by earliest page range
//   - summaries: concatenated in page order, no re-synthesis
//   - key_people, key_dates, tags: order-preserving set union
//   - sensitivity: OR across chunks: true in any chunk means true for the
//     document; never weaken this to majority or last-wins
//   - tokens: summed; chunk_count = number of contributing results
func MergeChunks(results []ChunkResult) (DocumentAnalysis, InferenceMetadata, error) {
	if len(results) == 0 {
		return DocumentAnalysis{}, InferenceMetadata{}, fmt.Errorf("merge: no chunk results")
	}

	first := results[0].Analysis

	bestDate := first.Date
	bestConf := first.DateConfidence
	for _, r := range results[1:] {
		if r.Analysis.DateConfidence > bestConf {
			bestDate = r.Analysis.Date
			bestConf = r.Analysis.DateConfidence
		}
	}

	var people, dates, tags []string
	var enParts, zhParts []string
	var sens Sensitivity
	for _, r := range results {
		people = unionInto(people, r.Analysis.KeyPeople)
		dates = unionInto(dates, r.Analysis.KeyDates)
		tags = unionInto(tags, r.Analysis.Tags)
		sens.HasIdentifier = sens.HasIdentifier || r.Analysis.Sensitivity.HasIdentifier
		sens.HasFinancial = sens.HasFinancial || r.Analysis.Sensitivity.HasFinancial
		sens.HasMedical = sens.HasMedical || r.Analysis.Sensitivity.HasMedical
		if s := r.Analysis.SummaryEN; s != "" {
			enParts = append(enParts, s)
		}
		if s := r.Analysis.SummaryZH; s != "" {
			zhParts = append(zhParts, s)
		}
	}

	merged := DocumentAnalysis{
		PartialAnalysis: PartialAnalysis{
			DocumentType:   first.DocumentType,
			Title:          first.Title,
			Date:           bestDate,
			DateConfidence: bestConf,
			SummaryEN:      strings.Join(enParts, " "),
			SummaryZH:      strings.Join(zhParts, ""),
			KeyPeople:      people,
			KeyDates:       dates,
			Sensitivity:    sens,
			Tags:           tags,
			Language:       first.Language,
			Quality:        first.Quality,
		},
		ChunkCount: len(results),
	}

	meta := InferenceMetadata{
		Provider:      results[0].Meta.Provider,
		Model:         results[0].Meta.Model,
		PromptVersion: results[0].Meta.PromptVersion,
		Timestamp:     results[0].Meta.Timestamp,
		ChunkCount:    len(results),
	}
	for _, r := range results {
		meta.InputTokens += r.Meta.InputTokens
		meta.OutputTokens += r.Meta.OutputTokens
		meta.EstimatedInputTokens += r.Meta.EstimatedInputTokens
		meta.LatencyMS += r.Meta.LatencyMS
		meta.Attempts += r.Meta.Attempts
		// Latest call timestamp represents the document.
		if r.Meta.Timestamp > meta.Timestamp {
			meta.Timestamp = r.Meta.Timestamp
		}
	}

	return merged, meta, nil
}

// unionInto appends items not already present, preserving first-seen order.
func unionInto(dst, src []string) []string {
	for _, item := range src {
		found := false
		for _, have := range dst {
			if have == item {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, item)
		}
	}
	return dst
}
