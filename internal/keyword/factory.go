package keyword

import "fmt"

// IndexType represents the lexical backend.
type IndexType string

const (
	// IndexTypeBM25 is the built-in Okapi BM25 index.
	IndexTypeBM25 IndexType = "bm25"
	// IndexTypeBleve uses Bleve with the same tokenization; scoring is Bleve's TF-IDF.
	IndexTypeBleve IndexType = "bleve"
)

// Options configures NewIndex.
type Options struct {
	K1 float64
	B  float64
}

// NewIndex creates a lexical index of the given type.
func NewIndex(indexType string, opts Options) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeBM25, "":
		return NewBM25Index(opts.K1, opts.B), nil
	case IndexTypeBleve:
		return NewBleveIndex()
	default:
		return nil, fmt.Errorf("unknown lexical index type: %s (supported: bm25, bleve)", indexType)
	}
}
