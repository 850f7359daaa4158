// Package manifest persists per-document analysis results to the archive's
// AI layer: one JSON manifest plus one extracted-text file per document,
// grouped under runs/<run-id>/. Manifests are the source of truth; the
// catalog is a derived index rebuilt from them.
package manifest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/AtlasMeridia/living-archive/internal/analysis"
)

// PolicyAudit records the policy gate outcome that produced a manifest.
// OverrideApplied must be persisted with any output produced under an
// override so the escape hatch leaves a trail.
type PolicyAudit struct {
	RiskLevel       string `json:"risk_level"`
	OverrideApplied bool   `json:"override_applied"`
	Redacted        bool   `json:"redacted"`
}

// DocumentManifest is the durable record for one analyzed document.
type DocumentManifest struct {
	SourceFile    string `json:"source_file"`
	SourceSHA256  string `json:"source_sha256"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	PageCount     int    `json:"page_count"`
	Extraction    struct {
		TextFile string `json:"text_file"`
		Method   string `json:"method"`
	} `json:"extraction"`
	Analysis  analysis.DocumentAnalysis  `json:"analysis"`
	Inference analysis.InferenceMetadata `json:"inference"`
	Policy    PolicyAudit                `json:"policy"`
}

// RunMeta summarizes one batch run.
type RunMeta struct {
	RunID          string       `json:"run_id"`
	Pipeline       string       `json:"pipeline"`
	SlicePath      string       `json:"slice_path"`
	Completed      string       `json:"completed"`
	ElapsedSeconds float64      `json:"elapsed_seconds"`
	Total          int          `json:"total"`
	Succeeded      int          `json:"succeeded"`
	Failed         int          `json:"failed"`
	Skipped        int          `json:"skipped"`
	Failures       []RunFailure `json:"failures"`
	Provider       string       `json:"provider"`
	PromptVersion  string       `json:"prompt_version"`
}

type RunFailure struct {
	File  string `json:"file"`
	State string `json:"state"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Store reads and writes manifests under one AI-layer directory.
type Store struct {
	aiLayerDir string
	logger     *slog.Logger
}

func NewStore(aiLayerDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{aiLayerDir: aiLayerDir, logger: logger}
}

// RunDir returns the manifests directory for a run.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.aiLayerDir, "runs", runID, "manifests")
}

// TextDir returns the extracted-text directory for a run.
func (s *Store) TextDir(runID string) string {
	return filepath.Join(s.aiLayerDir, "runs", runID, "extracted-text")
}

// WriteManifest atomically persists one document manifest. The filename is
// derived from the content hash so re-runs overwrite rather than duplicate.
// Called exactly once per successfully completed document; a failure here
// is the document's terminal error and is never retried by the caller.
func (s *Store) WriteManifest(runID string, m DocumentManifest) (string, error) {
	if m.SourceSHA256 == "" {
		return "", fmt.Errorf("manifest missing source_sha256")
	}
	m.Extraction.TextFile = "extracted-text/" + m.SourceSHA256[:12] + ".txt"

	dir := s.RunDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create manifest dir: %w", err)
	}

	out := filepath.Join(dir, m.SourceSHA256[:12]+".json")
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	if err := atomicWrite(dir, out, data); err != nil {
		return "", err
	}

	s.logger.Info("manifest.written",
		"run_id", runID,
		"sha", m.SourceSHA256[:12],
		"source", m.SourceFile,
		"type", m.Analysis.DocumentType.Category,
	)
	return out, nil
}

// WriteExtractedText atomically persists the extracted text for a document.
func (s *Store) WriteExtractedText(runID, sha256 string, text string) (string, error) {
	dir := s.TextDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create text dir: %w", err)
	}
	out := filepath.Join(dir, sha256[:12]+".txt")
	if err := atomicWrite(dir, out, []byte(text)); err != nil {
		return "", err
	}
	return out, nil
}

// WriteRunMeta persists run-level metadata (not atomic-critical).
func (s *Store) WriteRunMeta(meta RunMeta) (string, error) {
	dir := filepath.Join(s.aiLayerDir, "runs", meta.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal run meta: %w", err)
	}
	out := filepath.Join(dir, "run_meta.json")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", fmt.Errorf("write run meta: %w", err)
	}
	return out, nil
}

// ListManifests returns manifest paths for a run, sorted by name.
func (s *Store) ListManifests(runID string) []string {
	matches, _ := filepath.Glob(filepath.Join(s.RunDir(runID), "*.json"))
	sort.Strings(matches)
	return matches
}

// LoadManifest reads one manifest file.
func (s *Store) LoadManifest(path string) (DocumentManifest, error) {
	var m DocumentManifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return m, nil
}

// ProcessedHashes returns the content hashes already completed in a run,
// for resume support.
func (s *Store) ProcessedHashes(runID string) map[string]struct{} {
	hashes := make(map[string]struct{})
	for _, p := range s.ListManifests(runID) {
		m, err := s.LoadManifest(p)
		if err != nil {
			s.logger.Warn("manifest.unreadable", "path", p, "error", err)
			continue
		}
		hashes[m.SourceSHA256] = struct{}{}
	}
	return hashes
}

// PriorSensitivity collects sensitivity flags from a previous run's
// manifests, keyed by content hash. The policy gate uses these as
// classification hints; they only ever raise a chunk's risk level.
func (s *Store) PriorSensitivity(runID string) map[string]analysis.Sensitivity {
	out := make(map[string]analysis.Sensitivity)
	if runID == "" {
		return out
	}
	for _, p := range s.ListManifests(runID) {
		m, err := s.LoadManifest(p)
		if err != nil {
			continue
		}
		out[m.SourceSHA256] = m.Analysis.Sensitivity
	}
	return out
}

// LatestRunID returns the most recent run directory name, or "".
func (s *Store) LatestRunID() string {
	entries, err := os.ReadDir(filepath.Join(s.aiLayerDir, "runs"))
	if err != nil {
		return ""
	}
	var runs []string
	for _, e := range entries {
		if e.IsDir() {
			runs = append(runs, e.Name())
		}
	}
	if len(runs) == 0 {
		return ""
	}
	sort.Strings(runs)
	return runs[len(runs)-1]
}

// atomicWrite writes data to a temp file in dir and renames it over path.
func atomicWrite(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
