// Package export renders a run's manifests into a reviewable XLSX index.
package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/AtlasMeridia/living-archive/internal/manifest"
)

// Service produces XLSX bytes from manifests on disk.
type Service struct {
	store  *manifest.Store
	logger *slog.Logger
}

func NewService(store *manifest.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// ExportIndexXLSX returns an XLSX workbook (as bytes) indexing every
// manifest in the run: one row per document, sensitivity flags spelled out
// so a reviewer can sort on them.
func (s *Service) ExportIndexXLSX(runID string) ([]byte, error) {
	start := time.Now()

	paths := s.store.ListManifests(runID)
	if len(paths) == 0 {
		return nil, fmt.Errorf("run %s has no manifests", runID)
	}

	f := excelize.NewFile()
	const sheet = "Documents"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Source File",
		"Category",
		"Subcategory",
		"Title",
		"Date",
		"Date Confidence",
		"Language",
		"Pages",
		"Summary (EN)",
		"Sensitivity",
		"Risk Level",
		"Redacted",
		"Partial",
		"Provider",
		"SHA256",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, p := range paths {
		m, err := s.store.LoadManifest(p)
		if err != nil {
			s.logger.Warn("export.skip_manifest", "path", p, "error", err)
			continue
		}

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, m.SourceFile)
		write(2, m.Analysis.DocumentType.Category)
		write(3, m.Analysis.DocumentType.Subcategory)
		write(4, m.Analysis.Title)
		write(5, m.Analysis.Date)
		write(6, m.Analysis.DateConfidence)
		write(7, m.Analysis.Language)
		write(8, m.PageCount)
		write(9, truncate(m.Analysis.SummaryEN, 140))
		write(10, sensitivityLabel(m))
		write(11, m.Policy.RiskLevel)
		write(12, m.Policy.Redacted)
		write(13, m.Analysis.Partial)
		write(14, m.Inference.Provider)
		write(15, m.SourceSHA256[:12])

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 48) // path
	_ = f.SetColWidth(sheet, "B", "C", 18)
	_ = f.SetColWidth(sheet, "D", "D", 32) // title
	_ = f.SetColWidth(sheet, "E", "F", 12)
	_ = f.SetColWidth(sheet, "I", "I", 60) // summary
	_ = f.SetColWidth(sheet, "J", "K", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"run_id", runID,
		"rows", row-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func sensitivityLabel(m manifest.DocumentManifest) string {
	var flags []string
	if m.Analysis.Sensitivity.HasIdentifier {
		flags = append(flags, "identifier")
	}
	if m.Analysis.Sensitivity.HasFinancial {
		flags = append(flags, "financial")
	}
	if m.Analysis.Sensitivity.HasMedical {
		flags = append(flags, "medical")
	}
	if len(flags) == 0 {
		return "none"
	}
	return strings.Join(flags, ", ")
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
