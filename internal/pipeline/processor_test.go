package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/AtlasMeridia/living-archive/constants"
	"github.com/AtlasMeridia/living-archive/internal/analysis"
	"github.com/AtlasMeridia/living-archive/internal/common"
	"github.com/AtlasMeridia/living-archive/internal/extract"
	"github.com/AtlasMeridia/living-archive/internal/manifest"
	"github.com/AtlasMeridia/living-archive/internal/policy"
	"github.com/AtlasMeridia/living-archive/internal/provider"
	"github.com/AtlasMeridia/living-archive/internal/scan"
)

const docSHA = "f0e1d2c3b4a5f0e1d2c3b4a5f0e1d2c3b4a5f0e1d2c3b4a5f0e1d2c3b4a5f0e1"

type fakeExtractor struct {
	res extract.ExtractionResult
	err error
}

func (f fakeExtractor) Extract(ctx context.Context, path string) (extract.ExtractionResult, error) {
	return f.res, f.err
}

type fakeOCR struct {
	res   extract.ExtractionResult
	err   error
	calls int
}

func (f *fakeOCR) Recover(ctx context.Context, path string) (extract.ExtractionResult, error) {
	f.calls++
	return f.res, f.err
}

// fakeProvider returns a canned analysis per chunk and records payloads.
type fakeProvider struct {
	trust     policy.Trust
	failPages map[int]error // keyed by chunk PageStart

	mu       sync.Mutex
	payloads []string
}

func (f *fakeProvider) Name() string        { return "fake" }
func (f *fakeProvider) Trust() policy.Trust { return f.trust }

func (f *fakeProvider) Analyze(ctx context.Context, text string, docCtx provider.DocumentContext) (analysis.PartialAnalysis, analysis.InferenceMetadata, error) {
	f.mu.Lock()
	f.payloads = append(f.payloads, text)
	f.mu.Unlock()
	if err, ok := f.failPages[docCtx.PageStart]; ok {
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, err
	}
	return analysis.PartialAnalysis{
			DocumentType:   analysis.DocumentType{Category: "Legal", Subcategory: "Trust"},
			Title:          fmt.Sprintf("pages %d-%d", docCtx.PageStart, docCtx.PageEnd),
			Date:           "1994",
			DateConfidence: 0.5,
			SummaryEN:      fmt.Sprintf("summary %d.", docCtx.PageStart),
		}, analysis.InferenceMetadata{Provider: "fake", InputTokens: 10, Attempts: 1}, nil
}

func textResult(pages ...string) extract.ExtractionResult {
	res := extract.ExtractionResult{PageTexts: pages, TotalPages: len(pages), Method: "pdf-text"}
	for _, p := range pages {
		res.CharsExtracted += len(p)
	}
	return res
}

func testConfig(dir string) *common.Config {
	return &common.Config{
		Archive:  common.ArchiveConfig{DocumentsRoot: "/archive", AILayerDir: dir},
		Chunking: common.ChunkingConfig{ChunkPages: 1, SmallDocThreshold: 1},
		Pipeline: common.PipelineConfig{Workers: 1, ChunkConcurrency: 2},
	}
}

func testDoc() scan.Document {
	return scan.Document{Path: "/archive/a.pdf", RelPath: "a.pdf", SHA256: docSHA, SizeBytes: 100, PageCount: 3}
}

func newTestProcessor(cfg *common.Config, ext extract.TextExtractor, ocr extract.OCRFallback, prov provider.AnalysisProvider, store *manifest.Store) *Processor {
	return NewProcessor(cfg, ext, ocr, policy.NewGate(cfg.Policy, nil), prov, store, nil, nil, nil)
}

func TestProcess_EmitsManifest(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	store := manifest.NewStore(dir, nil)
	prov := &fakeProvider{trust: policy.TrustLocal}

	p := newTestProcessor(cfg, fakeExtractor{res: textResult("one", "two", "three")}, &fakeOCR{}, prov, store)
	res := p.Process(context.Background(), "run1", testDoc())

	if res.State != constants.StateEmitted {
		t.Fatalf("state = %v (%v)", res.State, res.Err)
	}
	m, err := store.LoadManifest(res.ManifestPath)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if m.Analysis.ChunkCount != 3 || m.Analysis.Partial {
		t.Errorf("aggregation wrong: chunks=%d partial=%v", m.Analysis.ChunkCount, m.Analysis.Partial)
	}
	if m.Analysis.Title != "pages 1-1" {
		t.Errorf("first-chunk title lost: %q", m.Analysis.Title)
	}
	if m.Extraction.Method != "pdf-text" {
		t.Errorf("method = %q", m.Extraction.Method)
	}
}

func TestProcess_PartialAggregationByDefault(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	store := manifest.NewStore(dir, nil)
	prov := &fakeProvider{
		trust:     policy.TrustLocal,
		failPages: map[int]error{2: fmt.Errorf("%w: exhausted", common.ErrProviderTransient)},
	}

	p := newTestProcessor(cfg, fakeExtractor{res: textResult("one", "two", "three")}, &fakeOCR{}, prov, store)
	res := p.Process(context.Background(), "run1", testDoc())

	if res.State != constants.StateEmitted || !res.Partial {
		t.Fatalf("state = %v partial = %v (%v)", res.State, res.Partial, res.Err)
	}
	m, _ := store.LoadManifest(res.ManifestPath)
	if !m.Analysis.Partial || m.Analysis.ChunkCount != 2 {
		t.Errorf("manifest partial flags wrong: partial=%v chunks=%d", m.Analysis.Partial, m.Analysis.ChunkCount)
	}
}

func TestProcess_StrictChunksFailsDocument(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Pipeline.StrictChunks = true
	store := manifest.NewStore(dir, nil)
	prov := &fakeProvider{
		trust:     policy.TrustLocal,
		failPages: map[int]error{2: fmt.Errorf("%w: exhausted", common.ErrProviderTransient)},
	}

	p := newTestProcessor(cfg, fakeExtractor{res: textResult("one", "two", "three")}, &fakeOCR{}, prov, store)
	res := p.Process(context.Background(), "run1", testDoc())

	if res.State != constants.StateErrored {
		t.Fatalf("state = %v, want errored in strict mode", res.State)
	}
	if got := store.ListManifests("run1"); len(got) != 0 {
		t.Errorf("failed document must not write a manifest: %v", got)
	}
}

func TestProcess_AllChunksFailing(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	store := manifest.NewStore(dir, nil)
	prov := &fakeProvider{
		trust: policy.TrustLocal,
		failPages: map[int]error{
			1: fmt.Errorf("%w: down", common.ErrProviderTransient),
			2: fmt.Errorf("%w: down", common.ErrProviderTransient),
			3: fmt.Errorf("%w: down", common.ErrProviderTransient),
		},
	}

	p := newTestProcessor(cfg, fakeExtractor{res: textResult("one", "two", "three")}, &fakeOCR{}, prov, store)
	if res := p.Process(context.Background(), "run1", testDoc()); res.State != constants.StateErrored {
		t.Fatalf("state = %v, want errored when no chunk succeeded", res.State)
	}
}

func TestProcess_OCRFallback(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	store := manifest.NewStore(dir, nil)
	ocr := &fakeOCR{res: extract.ExtractionResult{PageTexts: []string{"recovered"}, TotalPages: 1, CharsExtracted: 9, Method: "pdf-ocr"}}

	p := newTestProcessor(cfg, fakeExtractor{res: extract.ExtractionResult{PageTexts: []string{""}, TotalPages: 1}}, ocr, &fakeProvider{trust: policy.TrustLocal}, store)
	res := p.Process(context.Background(), "run1", testDoc())

	if res.State != constants.StateEmitted {
		t.Fatalf("state = %v (%v)", res.State, res.Err)
	}
	if ocr.calls != 1 {
		t.Errorf("OCR invoked %d times, want once", ocr.calls)
	}
	m, _ := store.LoadManifest(res.ManifestPath)
	if m.Extraction.Method != "pdf-ocr" {
		t.Errorf("method = %q", m.Extraction.Method)
	}
}

func TestProcess_OCRFailureIsTerminal(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	store := manifest.NewStore(dir, nil)
	ocr := &fakeOCR{err: fmt.Errorf("%w: no text", common.ErrOcrFailed)}

	p := newTestProcessor(cfg, fakeExtractor{res: extract.ExtractionResult{PageTexts: []string{""}, TotalPages: 1}}, ocr, &fakeProvider{}, store)
	res := p.Process(context.Background(), "run1", testDoc())

	if res.State != constants.StateOCRFailed {
		t.Fatalf("state = %v, want OCR_FAILED", res.State)
	}
	if !errors.Is(res.Err, common.ErrOcrFailed) {
		t.Errorf("err = %v", res.Err)
	}
}

func TestProcess_RemoteProviderGetsRedactedPayload(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Chunking.SmallDocThreshold = 1_000_000 // single chunk
	store := manifest.NewStore(dir, nil)
	prov := &fakeProvider{trust: policy.TrustRemote}

	sensitive := "Taxpayer SSN: 123-45-6789 attached."
	p := newTestProcessor(cfg, fakeExtractor{res: textResult(sensitive)}, &fakeOCR{}, prov, store)
	res := p.Process(context.Background(), "run1", testDoc())

	if res.State != constants.StateEmitted {
		t.Fatalf("state = %v (%v)", res.State, res.Err)
	}
	if len(prov.payloads) != 1 || strings.Contains(prov.payloads[0], "123-45-6789") {
		t.Errorf("raw SSN reached the remote provider: %q", prov.payloads)
	}
	m, _ := store.LoadManifest(res.ManifestPath)
	if m.Policy.RiskLevel != "high" || !m.Policy.Redacted || m.Policy.OverrideApplied {
		t.Errorf("policy audit wrong: %+v", m.Policy)
	}
}

func TestBatch_FailSoftAndResume(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	store := manifest.NewStore(dir, nil)

	// The extractor fails exactly one document by path.
	ext := pathExtractor{
		good: textResult("one page"),
		bad:  "bad.pdf",
	}
	p := newTestProcessor(cfg, ext, &fakeOCR{err: fmt.Errorf("%w: nope", common.ErrOcrUnavailable)}, &fakeProvider{trust: policy.TrustLocal}, store)
	b := NewBatch(p, store, 2, nil)

	docs := []scan.Document{
		{Path: "/archive/good.pdf", RelPath: "good.pdf", SHA256: strings.Repeat("a", 64), SizeBytes: 10},
		{Path: "/archive/bad.pdf", RelPath: "bad.pdf", SHA256: strings.Repeat("b", 64), SizeBytes: 20},
	}
	summary, err := b.Run(context.Background(), "run1", docs, "fake", "v1", "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 1 || summary.Skipped != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	// Second pass over the same slice: completed doc skipped, failure retried.
	summary, err = b.Run(context.Background(), "run1", docs, "fake", "v1", "")
	if err != nil {
		t.Fatalf("resume run: %v", err)
	}
	if summary.Skipped != 1 || summary.Failed != 1 {
		t.Errorf("resume summary = %+v", summary)
	}
}

type pathExtractor struct {
	good extract.ExtractionResult
	bad  string
}

func (e pathExtractor) Extract(ctx context.Context, path string) (extract.ExtractionResult, error) {
	if strings.HasSuffix(path, e.bad) {
		return extract.ExtractionResult{}, fmt.Errorf("damaged file")
	}
	return e.good, nil
}
