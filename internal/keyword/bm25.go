package keyword

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/hyperjump/kamoku/internal/models"
	"github.com/hyperjump/kamoku/pkg/utils"
)

// Default BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Posting records that a term occurs TF times in record Doc.
type Posting struct {
	Doc int
	TF  int
}

// Stats is everything BM25 needs to score without re-tokenizing the corpus.
// Postings lists are sorted by Doc.
type Stats struct {
	DocLengths []int
	Postings   map[string][]Posting
}

// BM25Index is an in-memory Okapi BM25 index.
type BM25Index struct {
	k1, b    float64
	stats    *Stats
	avgDocLn float64
	ready    bool
	mu       sync.RWMutex
}

// NewBM25Index creates an empty index. Non-positive k1 and negative b fall back to defaults.
func NewBM25Index(k1, b float64) *BM25Index {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b < 0 || b > 1 {
		b = DefaultB
	}
	return &BM25Index{k1: k1, b: b}
}

// Type returns the index type identifier.
func (x *BM25Index) Type() string {
	return string(IndexTypeBM25)
}

// Build tokenizes docs and computes postings and document lengths.
func (x *BM25Index) Build(ctx context.Context, docs []string) error {
	stats := &Stats{
		DocLengths: make([]int, len(docs)),
		Postings:   make(map[string][]Posting),
	}
	for i, doc := range docs {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		tokens := utils.Tokenize(doc)
		stats.DocLengths[i] = len(tokens)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		for t, n := range tf {
			stats.Postings[t] = append(stats.Postings[t], Posting{Doc: i, TF: n})
		}
	}
	return x.install(stats)
}

// LoadStats installs previously exported statistics, validating them against size.
func (x *BM25Index) LoadStats(stats *Stats, size int) error {
	if stats == nil {
		return fmt.Errorf("nil lexical stats")
	}
	if len(stats.DocLengths) != size {
		return &models.StaleArtifactError{Artifact: "lexical index", Reason: fmt.Sprintf("has %d documents, corpus has %d", len(stats.DocLengths), size)}
	}
	for term, list := range stats.Postings {
		sort.Slice(list, func(i, j int) bool { return list[i].Doc < list[j].Doc })
		for _, p := range list {
			if p.Doc < 0 || p.Doc >= size || p.TF <= 0 {
				return &models.StaleArtifactError{Artifact: "lexical index", Reason: fmt.Sprintf("bad posting for %q: %+v", term, p)}
			}
		}
	}
	return x.install(stats)
}

func (x *BM25Index) install(stats *Stats) error {
	total := 0
	for _, l := range stats.DocLengths {
		total += l
	}
	avg := 0.0
	if len(stats.DocLengths) > 0 {
		avg = float64(total) / float64(len(stats.DocLengths))
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.stats = stats
	x.avgDocLn = avg
	x.ready = true
	return nil
}

// Stats returns the index statistics for persistence. The result must not be modified.
func (x *BM25Index) Stats() *Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.stats
}

// idf is the BM25 inverse document frequency, ln(1 + (N-df+0.5)/(df+0.5)), always positive.
func idf(n, df int) float64 {
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}

// Search scores every record. Each query token contributes once per occurrence.
func (x *BM25Index) Search(ctx context.Context, text string, n int) ([]Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if !x.ready {
		return nil, models.ErrNotReady
	}
	size := len(x.stats.DocLengths)
	if n <= 0 || size == 0 {
		return []Result{}, nil
	}
	scores := make([]float64, size)
	for _, term := range utils.Tokenize(text) {
		list := x.stats.Postings[term]
		if len(list) == 0 {
			continue
		}
		w := idf(size, len(list))
		for _, p := range list {
			tf := float64(p.TF)
			norm := x.k1 * (1 - x.b + x.b*float64(x.stats.DocLengths[p.Doc])/x.avgDocLn)
			scores[p.Doc] += w * tf * (x.k1 + 1) / (tf + norm)
		}
	}
	results := make([]Result, size)
	for i, s := range scores {
		results[i] = Result{Index: i, Score: s}
	}
	return rankResults(results, n), nil
}

// Size returns the number of documents.
func (x *BM25Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.stats == nil {
		return 0
	}
	return len(x.stats.DocLengths)
}

// Close is a no-op for BM25Index.
func (x *BM25Index) Close() error {
	return nil
}

// GetAllTerms returns the vocabulary.
func (x *BM25Index) GetAllTerms() ([]string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if !x.ready {
		return nil, models.ErrNotReady
	}
	terms := make([]string, 0, len(x.stats.Postings))
	for t := range x.stats.Postings {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms, nil
}

// GetTermFrequency returns the number of documents containing term.
func (x *BM25Index) GetTermFrequency(term string) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if !x.ready {
		return 0, models.ErrNotReady
	}
	return len(x.stats.Postings[term]), nil
}
