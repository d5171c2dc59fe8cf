package keyword

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kamoku/internal/models"
)

var bleveDocs = []string{
	"Software Engineering\nDesign of large programs.\nComputer Science",
	"Machine Learning\nNeural networks and statistical learning.\nComputer Science",
	"Metaphysics\nThe nature of being.\nPhilosophy",
}

func TestBleveIndex_Search(t *testing.T) {
	idx, _ := NewBleveIndex()
	defer idx.Close()
	ctx := context.Background()
	if _, err := idx.Search(ctx, "x", 1); !errors.Is(err, models.ErrNotReady) {
		t.Errorf("search before build: %v", err)
	}
	if err := idx.Build(ctx, bleveDocs); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(ctx, "NEURAL", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Index != 1 || results[0].Score <= 0 {
		t.Errorf("results = %+v", results)
	}

	results, _ = idx.Search(ctx, "computer science", 10)
	if len(results) != 2 {
		t.Errorf("results = %+v", results)
	}
	if empty, _ := idx.Search(ctx, "...", 10); len(empty) != 0 {
		t.Errorf("punctuation-only query should match nothing: %+v", empty)
	}
	if idx.Size() != 3 {
		t.Errorf("Size = %d", idx.Size())
	}
}

func TestBleveIndex_SaveLoad(t *testing.T) {
	ctx := context.Background()
	idx, _ := NewBleveIndex()
	defer idx.Close()
	_ = idx.Build(ctx, bleveDocs)
	path := filepath.Join(t.TempDir(), "bleve")
	if err := idx.Save(path, "fp-1"); err != nil {
		t.Fatal(err)
	}
	// A second save replaces the first without leaving temp dirs behind.
	if err := idx.Save(path, "fp-1"); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the index dir, got %d entries", len(entries))
	}

	stale, _ := NewBleveIndex()
	if err := stale.Load(path, "fp-2", 3); !errors.Is(err, models.ErrStaleArtifact) {
		t.Errorf("fingerprint mismatch err = %v", err)
	}
	_ = stale.Close()

	loaded, _ := NewBleveIndex()
	defer loaded.Close()
	if err := loaded.Load(path, "fp-1", 3); err != nil {
		t.Fatal(err)
	}
	want, _ := idx.Search(ctx, "metaphysics being", 3)
	got, err := loaded.Search(ctx, "metaphysics being", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) || got[0].Index != 2 {
		t.Errorf("loaded results = %+v, want %+v", got, want)
	}
	if err := loaded.Save(filepath.Join(t.TempDir(), "again"), "fp-1"); err == nil {
		t.Error("save after load without SetDocs should fail")
	}
	loaded.SetDocs(bleveDocs)
	if err := loaded.Save(filepath.Join(t.TempDir(), "again"), "fp-1"); err != nil {
		t.Errorf("save after SetDocs: %v", err)
	}
}

func TestBleveIndex_SaveOverLoadedDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "bleve")
	first, _ := NewBleveIndex()
	defer first.Close()
	_ = first.Build(ctx, bleveDocs)
	if err := first.Save(path, "fp-1"); err != nil {
		t.Fatal(err)
	}

	serving, _ := NewBleveIndex()
	if err := serving.Load(path, "fp-1", 3); err != nil {
		t.Fatal(err)
	}

	// Rebuild over the directory the serving index has open.
	next, _ := NewBleveIndex()
	defer next.Close()
	docs := append(append([]string(nil), bleveDocs...), "Epistemology\nKnowledge and belief.\nPhilosophy")
	_ = next.Build(ctx, docs)
	if err := next.Save(path, "fp-2"); err != nil {
		t.Fatal(err)
	}

	got, err := serving.Search(ctx, "metaphysics being", 3)
	if err != nil {
		t.Fatalf("search on displaced index: %v", err)
	}
	if len(got) != 1 || got[0].Index != 2 {
		t.Errorf("displaced index results = %+v", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("expected the new index and the retired one, got %d entries", len(entries))
	}

	if err := serving.Close(); err != nil {
		t.Fatal(err)
	}
	entries, _ = os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "bleve" {
		t.Errorf("retired directory not removed after close: %v", entries)
	}

	reloaded, _ := NewBleveIndex()
	defer reloaded.Close()
	if err := reloaded.Load(path, "fp-2", 4); err != nil {
		t.Fatalf("load new index: %v", err)
	}
}

func TestBleveIndex_Vocabulary(t *testing.T) {
	idx, _ := NewBleveIndex()
	defer idx.Close()
	_ = idx.Build(context.Background(), bleveDocs)
	terms, err := idx.GetAllTerms()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, term := range terms {
		if term == "metaphysics" {
			found = true
		}
	}
	if !found {
		t.Errorf("vocabulary missing metaphysics: %v", terms)
	}
	if df, _ := idx.GetTermFrequency("science"); df != 2 {
		t.Errorf("df(science) = %d, want 2", df)
	}
}
