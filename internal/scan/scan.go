// Package scan discovers PDF documents under the archive root and fingerprints
// them by content hash so runs can be resumed and results deduplicated.
package scan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/AtlasMeridia/living-archive/constants"
)

// Document is one discovered source file.
type Document struct {
	Path      string // absolute path
	RelPath   string // path relative to the documents root
	SHA256    string
	SizeBytes int64
	PageCount int // 0 when the page count could not be read
}

// Scanner walks a documents root for analyzable files.
type Scanner struct {
	root      string
	logger    *slog.Logger
	pageCount func(path string) (int, error)
}

func New(root string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{root: root, logger: logger, pageCount: api.PageCountFile}
}

// Scan discovers documents under slicePath (relative to the root; "" means
// the whole root). Results are sorted smallest-first so a batch surfaces
// failures on cheap documents before committing hours to large ones.
func (s *Scanner) Scan(slicePath string) ([]Document, error) {
	start := filepath.Join(s.root, slicePath)
	info, err := os.Stat(start)
	if err != nil {
		return nil, fmt.Errorf("scan root %s: %w", start, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", start)
	}

	var docs []Document
	walkErr := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("scan.walk_error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			// Dot-directories hold sync metadata and prior AI output.
			if name := d.Name(); strings.HasPrefix(name, ".") && path != start {
				return filepath.SkipDir
			}
			return nil
		}
		ext := constants.NormalizeExt(filepath.Ext(d.Name()))
		if _, ok := constants.AllowedExtensions[ext]; !ok {
			return nil
		}

		doc, err := s.fingerprint(path)
		if err != nil {
			s.logger.Warn("scan.fingerprint_failed", "path", path, "error", err)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", start, walkErr)
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].SizeBytes != docs[j].SizeBytes {
			return docs[i].SizeBytes < docs[j].SizeBytes
		}
		return docs[i].RelPath < docs[j].RelPath
	})

	s.logger.Info("scan.complete", "root", start, "documents", len(docs))
	return docs, nil
}

func (s *Scanner) fingerprint(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Document{}, fmt.Errorf("stat: %w", err)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Document{}, fmt.Errorf("hash: %w", err)
	}

	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		rel = path
	}

	pages, err := s.pageCount(path)
	if err != nil {
		// Encrypted or damaged files still get queued; extraction decides.
		s.logger.Debug("scan.page_count_failed", "path", path, "error", err)
		pages = 0
	}

	return Document{
		Path:      path,
		RelPath:   rel,
		SHA256:    hex.EncodeToString(h.Sum(nil)),
		SizeBytes: st.Size(),
		PageCount: pages,
	}, nil
}
