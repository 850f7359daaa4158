package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Config for the PDF text extractor and OCR fallback.
type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
}

// Extractor extracts embedded text from PDFs via pdftotext.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger

	// pageCount is swappable in tests; defaults to pdfcpu.
	pageCount func(path string) (int, error)
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger, pageCount: api.PageCountFile}
}

// Extract runs pdftotext over the whole document and splits the output on
// form-feed page separators. A page that yields no text contributes an
// empty string; only a failed subprocess fails the document.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("pdftotext %s: %w (%s)", path, err, truncate(string(errb), 512))
	}

	pages := strings.Split(string(out), "\f")
	// pdftotext emits a trailing form feed after the last page
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}

	res := ExtractionResult{Method: "pdf-text"}
	for _, p := range pages {
		t := strings.TrimSpace(p)
		res.PageTexts = append(res.PageTexts, t)
		res.CharsExtracted += len(t)
	}
	res.TotalPages = len(res.PageTexts)

	// Cross-check the page count against the PDF structure; pdftotext can
	// drop pages it cannot decode. Missing pages become empty strings so
	// downstream chunk ranges still cover the document.
	if n, cerr := e.pageCount(path); cerr == nil && n > res.TotalPages {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("pdftotext returned %d pages, document has %d", res.TotalPages, n))
		for len(res.PageTexts) < n {
			res.PageTexts = append(res.PageTexts, "")
		}
		res.TotalPages = n
	}

	res.Duration = time.Since(start)
	e.logger.Debug("extract.pdftotext.ok",
		"path", path,
		"pages", res.TotalPages,
		"chars", res.CharsExtracted,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
