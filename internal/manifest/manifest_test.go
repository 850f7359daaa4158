package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AtlasMeridia/living-archive/internal/analysis"
)

const testSHA = "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a1b2"

func sampleManifest() DocumentManifest {
	m := DocumentManifest{
		SourceFile:    "legal/trust-1994.pdf",
		SourceSHA256:  testSHA,
		FileSizeBytes: 123456,
		PageCount:     12,
		Analysis: analysis.DocumentAnalysis{
			PartialAnalysis: analysis.PartialAnalysis{
				DocumentType: analysis.DocumentType{Category: "Legal", Subcategory: "Trust"},
				Title:        "Family Trust Agreement",
				Date:         "1994-03-12",
				Sensitivity:  analysis.Sensitivity{HasFinancial: true},
			},
			ChunkCount: 1,
		},
		Inference: analysis.InferenceMetadata{Provider: "ollama", Attempts: 1},
		Policy:    PolicyAudit{RiskLevel: "low"},
	}
	m.Extraction.Method = "pdf-text"
	return m
}

func TestWriteManifest_Roundtrip(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	path, err := store.WriteManifest("run1", sampleManifest())
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != testSHA[:12]+".json" {
		t.Errorf("manifest filename = %s, want hash-derived", filepath.Base(path))
	}

	got, err := store.LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.SourceSHA256 != testSHA || got.Analysis.Title != "Family Trust Agreement" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if got.Extraction.TextFile != "extracted-text/"+testSHA[:12]+".txt" {
		t.Errorf("text_file link = %q", got.Extraction.TextFile)
	}
}

func TestWriteManifest_LeavesNoTempFiles(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	if _, err := store.WriteManifest("run1", sampleManifest()); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := os.ReadDir(store.RunDir("run1"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("run dir has %d entries, want 1", len(entries))
	}
}

func TestWriteManifest_RewriteOverwrites(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	if _, err := store.WriteManifest("run1", sampleManifest()); err != nil {
		t.Fatal(err)
	}
	m := sampleManifest()
	m.Analysis.Title = "Amended Trust"
	path, err := store.WriteManifest("run1", m)
	if err != nil {
		t.Fatal(err)
	}
	if got := store.ListManifests("run1"); len(got) != 1 {
		t.Fatalf("re-run duplicated manifests: %v", got)
	}
	reloaded, _ := store.LoadManifest(path)
	if reloaded.Analysis.Title != "Amended Trust" {
		t.Errorf("overwrite lost: %q", reloaded.Analysis.Title)
	}
}

func TestWriteManifest_RequiresHash(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	m := sampleManifest()
	m.SourceSHA256 = ""
	if _, err := store.WriteManifest("run1", m); err == nil {
		t.Fatal("expected error for missing hash")
	}
}

func TestProcessedHashes(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	if _, err := store.WriteManifest("run1", sampleManifest()); err != nil {
		t.Fatal(err)
	}

	hashes := store.ProcessedHashes("run1")
	if _, ok := hashes[testSHA]; !ok {
		t.Error("completed hash missing from resume set")
	}
	if len(store.ProcessedHashes("run-does-not-exist")) != 0 {
		t.Error("unknown run should yield an empty set")
	}
}

func TestPriorSensitivityAndLatestRun(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	if _, err := store.WriteManifest("20240101-000000", sampleManifest()); err != nil {
		t.Fatal(err)
	}
	if _, err := store.WriteManifest("20240201-000000", sampleManifest()); err != nil {
		t.Fatal(err)
	}

	if got := store.LatestRunID(); got != "20240201-000000" {
		t.Errorf("latest run = %q", got)
	}

	hints := store.PriorSensitivity("20240101-000000")
	if !hints[testSHA].HasFinancial {
		t.Errorf("prior sensitivity not loaded: %+v", hints[testSHA])
	}
	if len(store.PriorSensitivity("")) != 0 {
		t.Error("empty run id should yield no hints")
	}
}

func TestWriteExtractedTextAndRunMeta(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	p, err := store.WriteExtractedText("run1", testSHA, "--- Page 1 ---\nhello")
	if err != nil {
		t.Fatalf("write text: %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil || !strings.Contains(string(data), "hello") {
		t.Errorf("text file wrong: %q, %v", data, err)
	}

	if _, err := store.WriteRunMeta(RunMeta{RunID: "run1", Total: 3, Succeeded: 2, Failed: 1}); err != nil {
		t.Fatalf("run meta: %v", err)
	}
}
