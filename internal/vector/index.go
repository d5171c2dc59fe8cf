// Package vector provides the semantic index: exact cosine similarity search
// over one unit vector per corpus record.
package vector

import (
	"context"
	"sort"
)

// Index stores one vector per record index and answers nearest-neighbour queries.
// Implementations are immutable after Build or Load and safe for concurrent Search.
type Index interface {
	// Build replaces the contents with vectors; row i is record index i.
	// Vectors are L2-normalized on the way in.
	Build(ctx context.Context, vectors [][]float32) error
	// Search returns the min(n, Size()) most similar records by cosine,
	// descending, ties broken by ascending record index.
	Search(ctx context.Context, query []float32, n int) ([]Result, error)
	// Save persists the index tagged with the corpus fingerprint.
	Save(path, fingerprint string) error
	// Load restores an index saved by Save, rejecting it when the fingerprint
	// or record count differs from the expected corpus.
	Load(path, fingerprint string, size int) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// Result is a single semantic hit.
type Result struct {
	Index int
	Score float64 // cosine similarity in [-1, 1]
}

// rankResults sorts by score descending then record index ascending and keeps n.
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
