package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/AtlasMeridia/living-archive/internal/common"
)

// OCRExtractor recovers text from image-only PDFs by rasterizing with
// pdftoppm and running tesseract per page. It is the fallback collaborator
// invoked when the embedded-text extractor finds nothing.
type OCRExtractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewOCRExtractor(cfg Config, logger *slog.Logger) *OCRExtractor {
	if logger == nil {
		logger = slog.Default()
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
	return &OCRExtractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Recover rasterizes the PDF and OCRs each page. A page whose OCR fails
// contributes an empty string; if no page yields text the whole fallback
// fails with ErrOcrFailed. A missing toolchain maps to ErrOcrUnavailable.
func (e *OCRExtractor) Recover(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()

	tmpDir, err := os.MkdirTemp("", "la-ocr-*")
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("%w: temp dir: %v", common.ErrOcrFailed, err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.tmpdir.cleanup_failed", "path", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		if isMissingBinary(err) {
			return ExtractionResult{}, fmt.Errorf("%w: %s not installed", common.ErrOcrUnavailable, e.cfg.Pdftoppm)
		}
		return ExtractionResult{}, fmt.Errorf("%w: pdftoppm: %v (%s)", common.ErrOcrFailed, err, truncate(string(errb), 512))
	}

	// collected pngs are prefix-1.png, prefix-2.png, ...
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return ExtractionResult{}, fmt.Errorf("%w: pdftoppm produced no images", common.ErrOcrFailed)
	}

	res := ExtractionResult{Method: "pdf-ocr", TotalPages: len(matches)}
	for _, img := range matches {
		txt, err := e.tesseractPage(ctx, img)
		if err != nil {
			if isMissingBinary(err) {
				return ExtractionResult{}, fmt.Errorf("%w: %s not installed", common.ErrOcrUnavailable, e.cfg.Tesseract)
			}
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", filepath.Base(img), err))
			res.PageTexts = append(res.PageTexts, "")
			continue
		}
		t := strings.TrimSpace(txt)
		res.PageTexts = append(res.PageTexts, t)
		res.CharsExtracted += len(t)
	}

	if res.CharsExtracted == 0 {
		return ExtractionResult{}, fmt.Errorf("%w: no text recovered from %d pages", common.ErrOcrFailed, res.TotalPages)
	}

	res.Duration = time.Since(start)
	e.logger.Info("extract.ocr.ok",
		"path", path,
		"pages", res.TotalPages,
		"chars", res.CharsExtracted,
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *OCRExtractor) tesseractPage(ctx context.Context, img string) (string, error) {
	// tesseract <img> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, img, "stdout", "-l", e.cfg.TesseractLang)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, truncate(string(errb), 256))
	}
	return string(out), nil
}

func isMissingBinary(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}
