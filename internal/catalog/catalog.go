// Package catalog maintains a sqlite index over document manifests. The
// catalog is derived state: it can always be rebuilt from the manifests on
// disk, so updates are best-effort and never fail a document.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AtlasMeridia/living-archive/internal/manifest"
)

const schema = `
CREATE TABLE IF NOT EXISTS assets (
    sha256          TEXT PRIMARY KEY,
    source_file     TEXT NOT NULL,
    file_size_bytes INTEGER NOT NULL,
    page_count      INTEGER NOT NULL,
    category        TEXT NOT NULL DEFAULT '',
    subcategory     TEXT NOT NULL DEFAULT '',
    title           TEXT NOT NULL DEFAULT '',
    doc_date        TEXT NOT NULL DEFAULT '',
    language        TEXT NOT NULL DEFAULT '',
    has_identifier  INTEGER NOT NULL DEFAULT 0,
    has_financial   INTEGER NOT NULL DEFAULT 0,
    has_medical     INTEGER NOT NULL DEFAULT 0,
    tags            TEXT NOT NULL DEFAULT '',
    run_id          TEXT NOT NULL DEFAULT '',
    manifest_path   TEXT NOT NULL DEFAULT '',
    updated_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assets_category ON assets (category);
CREATE INDEX IF NOT EXISTS idx_assets_doc_date ON assets (doc_date);
`

// Catalog wraps the sqlite handle. A nil *Catalog is a valid no-op sink,
// so callers can skip the "is catalog enabled" branch.
type Catalog struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the catalog at path. An empty path
// returns a nil catalog, which ignores all updates.
func Open(path string, logger *slog.Logger) (*Catalog, error) {
	if path == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init catalog schema: %w", err)
	}
	return &Catalog{db: db, logger: logger}, nil
}

func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// UpsertAsset records a completed document. Failures are logged and
// swallowed; the manifest on disk remains authoritative.
func (c *Catalog) UpsertAsset(ctx context.Context, runID, manifestPath string, m manifest.DocumentManifest) {
	if c == nil || c.db == nil {
		return
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO assets (
			sha256, source_file, file_size_bytes, page_count,
			category, subcategory, title, doc_date, language,
			has_identifier, has_financial, has_medical, tags,
			run_id, manifest_path, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sha256) DO UPDATE SET
			source_file     = excluded.source_file,
			file_size_bytes = excluded.file_size_bytes,
			page_count      = excluded.page_count,
			category        = excluded.category,
			subcategory     = excluded.subcategory,
			title           = excluded.title,
			doc_date        = excluded.doc_date,
			language        = excluded.language,
			has_identifier  = excluded.has_identifier,
			has_financial   = excluded.has_financial,
			has_medical     = excluded.has_medical,
			tags            = excluded.tags,
			run_id          = excluded.run_id,
			manifest_path   = excluded.manifest_path,
			updated_at      = excluded.updated_at`,
		m.SourceSHA256, m.SourceFile, m.FileSizeBytes, m.PageCount,
		m.Analysis.DocumentType.Category, m.Analysis.DocumentType.Subcategory,
		m.Analysis.Title, m.Analysis.Date, m.Analysis.Language,
		boolToInt(m.Analysis.Sensitivity.HasIdentifier),
		boolToInt(m.Analysis.Sensitivity.HasFinancial),
		boolToInt(m.Analysis.Sensitivity.HasMedical),
		strings.Join(m.Analysis.Tags, ","),
		runID, manifestPath, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		c.logger.Warn("catalog.upsert_failed", "sha", m.SourceSHA256[:12], "error", err)
	}
}

// Stats summarizes the catalog for the status command.
type Stats struct {
	TotalAssets int
	ByCategory  map[string]int
	Sensitive   int
}

func (c *Catalog) Stats(ctx context.Context) (Stats, error) {
	s := Stats{ByCategory: make(map[string]int)}
	if c == nil || c.db == nil {
		return s, nil
	}

	row := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`)
	if err := row.Scan(&s.TotalAssets); err != nil {
		return s, fmt.Errorf("count assets: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM assets GROUP BY category`)
	if err != nil {
		return s, fmt.Errorf("group by category: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return s, fmt.Errorf("scan category row: %w", err)
		}
		s.ByCategory[cat] = n
	}
	if err := rows.Err(); err != nil {
		return s, fmt.Errorf("iterate categories: %w", err)
	}

	row = c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets WHERE has_identifier = 1 OR has_financial = 1 OR has_medical = 1`)
	if err := row.Scan(&s.Sensitive); err != nil {
		return s, fmt.Errorf("count sensitive: %w", err)
	}
	return s, nil
}

// Rebuild replaces catalog rows for a run from its manifests on disk.
func (c *Catalog) Rebuild(ctx context.Context, store *manifest.Store, runID string) (int, error) {
	if c == nil || c.db == nil {
		return 0, nil
	}
	n := 0
	for _, p := range store.ListManifests(runID) {
		m, err := store.LoadManifest(p)
		if err != nil {
			c.logger.Warn("catalog.rebuild.skip", "path", p, "error", err)
			continue
		}
		c.UpsertAsset(ctx, runID, p, m)
		n++
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
