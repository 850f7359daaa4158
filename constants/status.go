package constants

// DocState is the canonical per-document pipeline state.
type DocState string

// Stable values (persisted in run metadata and the catalog).
const (
	StateDiscovered    DocState = "DISCOVERED"
	StateExtracting    DocState = "EXTRACTING"
	StateTextExtracted DocState = "TEXT_EXTRACTED"
	StateOCRRequired   DocState = "OCR_REQUIRED"
	StateOCRDone       DocState = "OCR_DONE"
	StateOCRFailed     DocState = "OCR_FAILED" // terminal
	StateChunked       DocState = "CHUNKED"
	StatePolicyRouted  DocState = "POLICY_ROUTED"
	StateAnalyzing     DocState = "ANALYZING"
	StateAggregated    DocState = "AGGREGATED"
	StateValidated     DocState = "VALIDATED"
	StateEmitted       DocState = "EMITTED" // terminal success
	StateErrored       DocState = "ERRORED" // terminal failure
)

// Terminal reports whether a state ends a document's run.
func (s DocState) Terminal() bool {
	switch s {
	case StateEmitted, StateErrored, StateOCRFailed:
		return true
	}
	return false
}
