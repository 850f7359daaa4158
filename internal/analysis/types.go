// Package analysis owns the logical document-analysis schema: the Go types,
// the single authored JSON-Schema artifact every provider dialect is derived
// from, and the chunk aggregation rules.
package analysis

// DocumentType is a category/subcategory pair from the closed taxonomy
// in the constants package.
type DocumentType struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

// Sensitivity holds safety-relevant boolean flags. Flags default to false
// and are only set true on positive evidence in the text, never inferred
// from absence of information.
type Sensitivity struct {
	HasIdentifier bool `json:"has_identifier"`
	HasFinancial  bool `json:"has_financial"`
	HasMedical    bool `json:"has_medical"`
}

// Any reports whether any flag is set.
func (s Sensitivity) Any() bool {
	return s.HasIdentifier || s.HasFinancial || s.HasMedical
}

// PartialAnalysis is the schema-constrained output of one provider call
// for one chunk.
type PartialAnalysis struct {
	DocumentType   DocumentType `json:"document_type"`
	Title          string       `json:"title"`
	Date           string       `json:"date"` // YYYY, YYYY-MM, or YYYY-MM-DD; "" if unknown
	DateConfidence float64      `json:"date_confidence"`
	SummaryEN      string       `json:"summary_en"`
	SummaryZH      string       `json:"summary_zh"`
	KeyPeople      []string     `json:"key_people"`
	KeyDates       []string     `json:"key_dates"`
	Sensitivity    Sensitivity  `json:"sensitivity"`
	Tags           []string     `json:"tags"`
	Language       string       `json:"language"`
	Quality        string       `json:"quality"`
}

// InferenceMetadata describes one provider call (or, after aggregation,
// the sum over a document's calls).
type InferenceMetadata struct {
	Provider             string `json:"provider"`
	Model                string `json:"model"`
	PromptVersion        string `json:"prompt_version"`
	Timestamp            string `json:"timestamp"`
	InputTokens          int    `json:"input_tokens"`
	OutputTokens         int    `json:"output_tokens"`
	EstimatedInputTokens int    `json:"estimated_input_tokens"`
	LatencyMS            int64  `json:"latency_ms"`
	Attempts             int    `json:"attempts"`
	ChunkCount           int    `json:"chunk_count,omitempty"`
}

// DocumentAnalysis is the canonical document-level result produced by the
// aggregator. Immutable once validated.
type DocumentAnalysis struct {
	PartialAnalysis
	ChunkCount int  `json:"chunk_count"`
	Partial    bool `json:"partial,omitempty"` // true when some chunks failed and were skipped
}
