//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"github.com/hyperjump/kamoku/internal/models"
	"github.com/hyperjump/kamoku/pkg/utils"
)

// FAISSIndex wraps a FAISS IndexFlatIP. FAISS labels are sequential from 0,
// so a label is the record index directly. Inner product over normalized
// vectors is cosine similarity, and the flat index is exact.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	count      int
	ready      bool
	mu         sync.RWMutex
}

// NewFAISSIndex creates an empty FAISS flat inner-product index.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	idx, err := newFlatIP(dimensions)
	if err != nil {
		return nil, err
	}
	return &FAISSIndex{index: idx, dimensions: dimensions}, nil
}

func newFlatIP(dimensions int) (*C.FaissIndex, error) {
	var index *C.FaissIndexFlatIP
	if ret := C.faiss_IndexFlatIP_new_with(&index, C.idx_t(dimensions)); ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	return (*C.FaissIndex)(unsafe.Pointer(index)), nil
}

func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}

// Build replaces the FAISS index with the normalized vectors.
func (f *FAISSIndex) Build(ctx context.Context, vectors [][]float32) error {
	flat := make([]float32, len(vectors)*f.dimensions)
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("record %d: %w", i, &models.DimensionMismatchError{Got: len(vec), Want: f.dimensions})
		}
		row := flat[i*f.dimensions : (i+1)*f.dimensions]
		copy(row, vec)
		utils.NormalizeL2(row)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	idx, err := newFlatIP(f.dimensions)
	if err != nil {
		return err
	}
	if len(vectors) > 0 {
		if ret := C.faiss_Index_add(idx, C.idx_t(len(vectors)), (*C.float)(unsafe.Pointer(&flat[0]))); ret != 0 {
			C.faiss_Index_free(idx)
			return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
	}
	f.index = idx
	f.count = len(vectors)
	f.ready = true
	return nil
}

// Search asks FAISS for the top n and re-sorts so equal scores order by record index.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, n int) ([]Result, error) {
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
	n = min(n, f.count)
	q := make([]float32, f.dimensions)
	copy(q, query)
	utils.NormalizeL2(q)

	distances := make([]float32, n)
	labels := make([]int64, n)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&q[0])),
		C.idx_t(n),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}
	results := make([]Result, 0, n)
	for i, label := range labels {
		if label < 0 {
			continue
		}
		results = append(results, Result{Index: int(label), Score: float64(distances[i])})
	}
	return rankResults(results, n), nil
}

// Save writes the header to path and the FAISS index to path + ".faiss".
func (f *FAISSIndex) Save(path, fingerprint string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.ready {
		return models.ErrNotReady
	}
	tmp := path + ".faiss.tmp"
	cPath := C.CString(tmp)
	defer C.free(unsafe.Pointer(cPath))
	if ret := C.faiss_write_index_fname(f.index, cPath); ret != 0 {
		return fmt.Errorf("failed to save FAISS index: %s", faissLastError())
	}
	if err := renameFile(tmp, path+".faiss"); err != nil {
		return err
	}
	return writeVectorFile(path, header{Dimensions: f.dimensions, Count: f.count, Fingerprint: fingerprint}, nil)
}

// Load verifies the header at path and reads path + ".faiss".
func (f *FAISSIndex) Load(path, fingerprint string, size int) error {
	h, _, err := readVectorFile(path, f.dimensions, fingerprint, size, false)
	if err != nil {
		return err
	}
	cPath := C.CString(path + ".faiss")
	defer C.free(unsafe.Pointer(cPath))
	var idx *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &idx); ret != 0 {
		return fmt.Errorf("failed to load FAISS index: %s", faissLastError())
	}
	if got := int(C.faiss_Index_ntotal(idx)); got != h.Count {
		C.faiss_Index_free(idx)
		return &models.StaleArtifactError{Artifact: path + ".faiss", Reason: fmt.Sprintf("index holds %d vectors, header says %d", got, h.Count)}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
	}
	f.index = idx
	f.count = h.Count
	f.ready = true
	return nil
}

// Size returns the number of vectors in the index.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// Dimensions returns the vector dimension.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	f.ready = false
	return nil
}
