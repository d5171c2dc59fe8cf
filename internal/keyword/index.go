// Package keyword provides the lexical index: BM25 scoring over tokenized
// course text, with an optional Bleve-backed implementation.
package keyword

import (
	"context"
	"sort"
)

// Index scores records against a text query. Implementations are immutable
// after Build or Load and safe for concurrent Search.
type Index interface {
	// Build replaces the contents with docs; docs[i] is record index i.
	Build(ctx context.Context, docs []string) error
	// Search returns up to min(n, Size()) records, score descending, ties by
	// ascending record index. Zero-score records may be included.
	Search(ctx context.Context, text string, n int) ([]Result, error)
	Size() int
	Type() string
	Close() error
}

// Persister is implemented by indexes that manage their own on-disk artifact.
type Persister interface {
	Save(path, fingerprint string) error
	Load(path, fingerprint string, size int) error
}

// Result is a single lexical hit.
type Result struct {
	Index int
	Score float64
}

// TermDictionary provides access to the index vocabulary for spell checking.
type TermDictionary interface {
	// GetAllTerms returns all unique terms in the index.
	GetAllTerms() ([]string, error)
	// GetTermFrequency returns the document frequency for a term.
	GetTermFrequency(term string) (int, error)
}

func rankResults(results []Result, n int) []Result {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Index < results[j].Index
	})
	if n < len(results) {
		results = results[:n]
	}
	return results
}
