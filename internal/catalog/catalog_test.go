package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/AtlasMeridia/living-archive/internal/analysis"
	"github.com/AtlasMeridia/living-archive/internal/manifest"
)

func testManifest(sha, category string, sensitive bool) manifest.DocumentManifest {
	m := manifest.DocumentManifest{
		SourceFile:    "docs/" + sha[:8] + ".pdf",
		SourceSHA256:  sha,
		FileSizeBytes: 1000,
		PageCount:     4,
		Analysis: analysis.DocumentAnalysis{
			PartialAnalysis: analysis.PartialAnalysis{
				DocumentType: analysis.DocumentType{Category: category, Subcategory: "General"},
				Title:        "t",
				Sensitivity:  analysis.Sensitivity{HasIdentifier: sensitive},
				Tags:         []string{"a", "b"},
			},
		},
	}
	return m
}

const (
	shaA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	shaB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func TestCatalog_UpsertAndStats(t *testing.T) {
	ctx := context.Background()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	c.UpsertAsset(ctx, "run1", "m1.json", testManifest(shaA, "Legal", false))
	c.UpsertAsset(ctx, "run1", "m2.json", testManifest(shaB, "Medical", true))
	// Re-run of the same document updates in place.
	c.UpsertAsset(ctx, "run2", "m1b.json", testManifest(shaA, "Financial", false))

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAssets != 2 {
		t.Errorf("total = %d, want 2 (upsert deduplicates by hash)", stats.TotalAssets)
	}
	if stats.ByCategory["Financial"] != 1 || stats.ByCategory["Legal"] != 0 {
		t.Errorf("category counts = %v, want re-run to replace Legal with Financial", stats.ByCategory)
	}
	if stats.Sensitive != 1 {
		t.Errorf("sensitive = %d, want 1", stats.Sensitive)
	}
}

func TestCatalog_NilIsNoop(t *testing.T) {
	var c *Catalog
	c.UpsertAsset(context.Background(), "run1", "m.json", testManifest(shaA, "Legal", false))
	stats, err := c.Stats(context.Background())
	if err != nil || stats.TotalAssets != 0 {
		t.Errorf("nil catalog should be inert: %+v, %v", stats, err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("nil close: %v", err)
	}
}

func TestCatalog_EmptyPathDisables(t *testing.T) {
	c, err := Open("", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if c != nil {
		t.Error("empty path should return a nil catalog")
	}
}

func TestCatalog_Rebuild(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := manifest.NewStore(dir, nil)
	if _, err := store.WriteManifest("run1", testManifest(shaA, "Legal", false)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.WriteManifest("run1", testManifest(shaB, "Medical", true)); err != nil {
		t.Fatal(err)
	}

	c, err := Open(filepath.Join(dir, "catalog.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	n, err := c.Rebuild(ctx, store, "run1")
	if err != nil || n != 2 {
		t.Fatalf("rebuild = %d, %v", n, err)
	}
	stats, _ := c.Stats(ctx)
	if stats.TotalAssets != 2 {
		t.Errorf("total after rebuild = %d", stats.TotalAssets)
	}
}
