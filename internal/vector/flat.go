package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/kamoku/internal/models"
	"github.com/hyperjump/kamoku/pkg/utils"
)

// FlatIndex is an exhaustive in-memory index. Every query scores every row,
// O(N·d) per query, which is exact and fast enough for catalogs of tens of
// thousands of records.
type FlatIndex struct {
	dimensions int
	matrix     []float32 // row-major, len = count*dimensions
	count      int
	ready      bool
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Build copies and normalizes vectors into the index.
func (f *FlatIndex) Build(ctx context.Context, vectors [][]float32) error {
	matrix := make([]float32, len(vectors)*f.dimensions)
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("record %d: %w", i, &models.DimensionMismatchError{Got: len(vec), Want: f.dimensions})
		}
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		row := matrix[i*f.dimensions : (i+1)*f.dimensions]
		copy(row, vec)
		utils.NormalizeL2(row)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matrix = matrix
	f.count = len(vectors)
	f.ready = true
	return nil
}

// Search scores every row against the normalized query.
func (f *FlatIndex) Search(ctx context.Context, query []float32, n int) ([]Result, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.ready {
		return nil, models.ErrNotReady
	}
	if len(query) != f.dimensions {
		return nil, &models.DimensionMismatchError{Got: len(query), Want: f.dimensions}
	}
	if n <= 0 || f.count == 0 {
		return []Result{}, nil
	}
	q := make([]float32, f.dimensions)
	copy(q, query)
	utils.NormalizeL2(q)

	results := make([]Result, f.count)
	for i := 0; i < f.count; i++ {
		results[i] = Result{Index: i, Score: utils.Dot(q, f.matrix[i*f.dimensions:(i+1)*f.dimensions])}
	}
	return rankResults(results, n), nil
}

// Save writes the header and matrix to path atomically.
func (f *FlatIndex) Save(path, fingerprint string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.ready {
		return models.ErrNotReady
	}
	h := header{Dimensions: f.dimensions, Count: f.count, Fingerprint: fingerprint}
	return writeVectorFile(path, h, f.matrix)
}

// Load reads an index written by Save and checks it against the expected corpus.
func (f *FlatIndex) Load(path, fingerprint string, size int) error {
	h, matrix, err := readVectorFile(path, f.dimensions, fingerprint, size, true)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matrix = matrix
	f.count = h.Count
	f.ready = true
	return nil
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}
