package keyword

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/hyperjump/kamoku/internal/models"
)

func buildBM25(t *testing.T, docs []string) *BM25Index {
	t.Helper()
	idx := NewBM25Index(0, -1)
	if err := idx.Build(context.Background(), docs); err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestBM25_ScoresMatchFormula(t *testing.T) {
	docs := []string{
		"neural networks and deep learning",
		"metaphysics of mind",
		"networks of networks",
	}
	idx := buildBM25(t, docs)
	results, err := idx.Search(context.Background(), "networks", 3)
	if err != nil {
		t.Fatal(err)
	}

	// N=3, df=2, doc lengths 5, 3, 3, avgdl = 11/3.
	w := math.Log(1 + (3-2+0.5)/(2+0.5))
	score := func(tf, dl float64) float64 {
		return w * tf * (DefaultK1 + 1) / (tf + DefaultK1*(1-DefaultB+DefaultB*dl/(11.0/3)))
	}
	want := map[int]float64{0: score(1, 5), 1: 0, 2: score(2, 3)}
	if len(results) != 3 {
		t.Fatalf("len = %d", len(results))
	}
	for _, r := range results {
		if math.Abs(r.Score-want[r.Index]) > 1e-12 {
			t.Errorf("doc %d score = %v, want %v", r.Index, r.Score, want[r.Index])
		}
	}
	if results[0].Index != 2 || results[1].Index != 0 || results[2].Index != 1 {
		t.Errorf("order = %+v", results)
	}
}

func TestBM25_TokenizationAndCase(t *testing.T) {
	idx := buildBM25(t, []string{"Intro to C++/Systems", "systems-level programming"})
	results, _ := idx.Search(context.Background(), "SYSTEMS", 2)
	for _, r := range results {
		if r.Score <= 0 {
			t.Errorf("doc %d should match case-insensitively across punctuation", r.Index)
		}
	}
}

func TestBM25_RepeatedQueryTermsCountEachTime(t *testing.T) {
	idx := buildBM25(t, []string{"graph theory", "number theory", "graph drawing"})
	once, _ := idx.Search(context.Background(), "graph", 1)
	twice, _ := idx.Search(context.Background(), "graph graph", 1)
	if math.Abs(twice[0].Score-2*once[0].Score) > 1e-12 {
		t.Errorf("repeated term score = %v, want %v", twice[0].Score, 2*once[0].Score)
	}
}

func TestBM25_IDFIsPositiveForCommonTerms(t *testing.T) {
	idx := buildBM25(t, []string{"course", "course", "course"})
	results, _ := idx.Search(context.Background(), "course", 3)
	for _, r := range results {
		if r.Score <= 0 {
			t.Errorf("term in every doc must still score positive, got %v", r.Score)
		}
	}
}

func TestBM25_EmptyQueryAndPadding(t *testing.T) {
	idx := buildBM25(t, []string{"a b", "c d", "e f"})
	results, err := idx.Search(context.Background(), "  ?!  ", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Index != 0 || results[1].Index != 1 {
		t.Errorf("zero-score results should pad in record order: %+v", results)
	}
	for _, r := range results {
		if r.Score != 0 {
			t.Errorf("score = %v, want 0", r.Score)
		}
	}
}

func TestBM25_SortedUniqueAndBounded(t *testing.T) {
	docs := []string{"alpha beta", "beta gamma", "gamma delta alpha", "alpha alpha", "epsilon"}
	idx := buildBM25(t, docs)
	results, _ := idx.Search(context.Background(), "alpha gamma", 10)
	if len(results) != len(docs) {
		t.Fatalf("len = %d, want min(n, size)", len(results))
	}
	if !sort.SliceIsSorted(results, func(i, j int) bool { return results[i].Score > results[j].Score }) {
		t.Error("not sorted")
	}
	seen := map[int]bool{}
	for _, r := range results {
		if seen[r.Index] {
			t.Errorf("duplicate %d", r.Index)
		}
		seen[r.Index] = true
	}
}

func TestBM25_NotReady(t *testing.T) {
	idx := NewBM25Index(DefaultK1, DefaultB)
	if _, err := idx.Search(context.Background(), "x", 1); !errors.Is(err, models.ErrNotReady) {
		t.Errorf("err = %v, want ErrNotReady", err)
	}
	if idx.Size() != 0 {
		t.Errorf("Size = %d", idx.Size())
	}
}

func TestBM25_LoadStatsRoundTrip(t *testing.T) {
	docs := []string{"software engineering", "machine learning", "engineering ethics"}
	src := buildBM25(t, docs)
	dst := NewBM25Index(DefaultK1, DefaultB)
	if err := dst.LoadStats(src.Stats(), 3); err != nil {
		t.Fatal(err)
	}
	a, _ := src.Search(context.Background(), "engineering", 3)
	b, _ := dst.Search(context.Background(), "engineering", 3)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("result %d: %+v vs %+v", i, a[i], b[i])
		}
	}
	if err := dst.LoadStats(src.Stats(), 4); !errors.Is(err, models.ErrStaleArtifact) {
		t.Errorf("size mismatch err = %v", err)
	}
	bad := &Stats{DocLengths: []int{1}, Postings: map[string][]Posting{"x": {{Doc: 5, TF: 1}}}}
	if err := dst.LoadStats(bad, 1); !errors.Is(err, models.ErrStaleArtifact) {
		t.Errorf("bad posting err = %v", err)
	}
}

func TestBM25_Vocabulary(t *testing.T) {
	idx := buildBM25(t, []string{"calculus one", "calculus two"})
	terms, err := idx.GetAllTerms()
	if err != nil {
		t.Fatal(err)
	}
	if len(terms) != 3 || terms[0] != "calculus" {
		t.Errorf("terms = %v", terms)
	}
	if df, _ := idx.GetTermFrequency("calculus"); df != 2 {
		t.Errorf("df = %d", df)
	}
}

func TestNewIndex(t *testing.T) {
	for typ, want := range map[string]string{"": "bm25", "bm25": "bm25", "bleve": "bleve"} {
		idx, err := NewIndex(typ, Options{})
		if err != nil {
			t.Fatalf("NewIndex(%q): %v", typ, err)
		}
		if idx.Type() != want {
			t.Errorf("NewIndex(%q).Type() = %s", typ, idx.Type())
		}
	}
	if _, err := NewIndex("tfidf", Options{}); err == nil {
		t.Error("expected error for unknown type")
	}
}
