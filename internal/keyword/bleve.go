package keyword

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	regexptokenizer "github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	"github.com/hyperjump/kamoku/internal/models"
	"github.com/hyperjump/kamoku/pkg/utils"
)

const (
	bleveAnalyzer    = "course_text"
	bleveTokenizer   = "alnum"
	bleveField       = "text"
	fingerprintKey   = "kamoku.fingerprint"
	bleveBatchSize   = 500
	bleveBackupExt   = ".old"
	bleveBuildingExt = ".building"
	bleveRetiredExt  = ".retired-"
)

// BleveIndex implements Index on top of Bleve. Documents are tokenized the
// same way as BM25Index (lowercase runs of letters and digits); scores are
// Bleve's TF-IDF and are not numerically equal to BM25.
type BleveIndex struct {
	index bleve.Index
	docs  []string // kept so Save can write an on-disk copy; nil after Load
	count int
	lease *dirLease // set while the index is opened from disk
	mu    sync.RWMutex
}

// dirLease tracks the open readers of one on-disk index directory. A Save
// over a leased directory moves it aside instead of removing it; the last
// reader to close removes the moved directory.
type dirLease struct {
	dir     string
	refs    int
	retired bool
}

var leases = struct {
	sync.Mutex
	byPath map[string]*dirLease
}{byPath: map[string]*dirLease{}}

func acquireLease(path string) *dirLease {
	path = filepath.Clean(path)
	leases.Lock()
	defer leases.Unlock()
	l := leases.byPath[path]
	if l == nil {
		l = &dirLease{dir: path}
		leases.byPath[path] = l
	}
	l.refs++
	return l
}

func releaseLease(l *dirLease) {
	leases.Lock()
	defer leases.Unlock()
	l.refs--
	if l.refs > 0 {
		return
	}
	if l.retired {
		_ = os.RemoveAll(l.dir)
		return
	}
	if leases.byPath[l.dir] == l {
		delete(leases.byPath, l.dir)
	}
}

// install moves the finished build at building into path. A directory still
// open by a loaded index is renamed to a unique retired name and left for
// its last reader.
func install(building, path string) error {
	path = filepath.Clean(path)
	leases.Lock()
	defer leases.Unlock()
	backup := ""
	if l := leases.byPath[path]; l != nil {
		retired := path + bleveRetiredExt + uuid.NewString()
		if err := os.Rename(path, retired); err != nil {
			return fmt.Errorf("move old Bleve index: %w", err)
		}
		l.dir, l.retired = retired, true
		delete(leases.byPath, path)
	} else {
		backup = path + bleveBackupExt
		_ = os.RemoveAll(backup)
		if err := os.Rename(path, backup); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("move old Bleve index: %w", err)
		}
	}
	if err := os.Rename(building, path); err != nil {
		return fmt.Errorf("install Bleve index: %w", err)
	}
	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	return nil
}

// NewBleveIndex returns an empty, unbuilt index.
func NewBleveIndex() (*BleveIndex, error) {
	return &BleveIndex{}, nil
}

func newMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomTokenizer(bleveTokenizer, map[string]interface{}{
		"type":   regexptokenizer.Name,
		"regexp": `[\p{L}\p{N}]+`,
	}); err != nil {
		return nil, fmt.Errorf("register tokenizer: %w", err)
	}
	if err := im.AddCustomAnalyzer(bleveAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     bleveTokenizer,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = bleveAnalyzer
	textFieldMapping.Store = false
	textFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt(bleveField, textFieldMapping)
	im.DefaultMapping = docMapping
	im.DefaultAnalyzer = bleveAnalyzer
	return im, nil
}

// Type returns the index type identifier.
func (b *BleveIndex) Type() string {
	return string(IndexTypeBleve)
}

// Build indexes docs into a fresh in-memory Bleve index.
func (b *BleveIndex) Build(ctx context.Context, docs []string) error {
	im, err := newMapping()
	if err != nil {
		return err
	}
	idx, err := bleve.NewMemOnly(im)
	if err != nil {
		return fmt.Errorf("failed to create Bleve index: %w", err)
	}
	if err := indexDocs(ctx, idx, docs); err != nil {
		_ = idx.Close()
		return err
	}
	b.swap(idx, append([]string(nil), docs...), len(docs), nil)
	return nil
}

func indexDocs(ctx context.Context, idx bleve.Index, docs []string) error {
	batch := idx.NewBatch()
	for i, doc := range docs {
		if err := batch.Index(strconv.Itoa(i), map[string]interface{}{bleveField: doc}); err != nil {
			return fmt.Errorf("index record %d: %w", i, err)
		}
		if batch.Size() >= bleveBatchSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := idx.Batch(batch); err != nil {
				return fmt.Errorf("Bleve batch failed: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			return fmt.Errorf("Bleve batch failed: %w", err)
		}
	}
	return nil
}

func (b *BleveIndex) swap(idx bleve.Index, docs []string, count int, lease *dirLease) {
	b.mu.Lock()
	old, oldLease := b.index, b.lease
	b.index = idx
	b.docs = docs
	b.count = count
	b.lease = lease
	b.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	if oldLease != nil {
		releaseLease(oldLease)
	}
}

// Search runs a match query over the course text. Only matching records are
// returned; ties are ordered by record index.
func (b *BleveIndex) Search(ctx context.Context, text string, n int) ([]Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return nil, models.ErrNotReady
	}
	if n <= 0 || b.count == 0 || len(utils.Tokenize(text)) == 0 {
		return []Result{}, nil
	}
	q := bleve.NewMatchQuery(text)
	q.SetField(bleveField)
	// Ask for every hit so the tie-break is applied before truncation.
	req := bleve.NewSearchRequestOptions(q, b.count, 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil {
			return nil, fmt.Errorf("unexpected document id %q", hit.ID)
		}
		out = append(out, Result{Index: i, Score: hit.Score})
	}
	return rankResults(out, n), nil
}

// Save writes an on-disk copy of the index to path (a directory), tagged with
// the corpus fingerprint. The previous directory is replaced only after the
// new one is complete, and is kept until any index loaded from it closes.
func (b *BleveIndex) Save(path, fingerprint string) error {
	b.mu.RLock()
	docs, count := b.docs, b.count
	ready := b.index != nil
	b.mu.RUnlock()
	if !ready {
		return models.ErrNotReady
	}
	if len(docs) != count {
		return fmt.Errorf("save Bleve index: document texts not available, call SetDocs after Load")
	}

	building := path + bleveBuildingExt
	_ = os.RemoveAll(building)
	im, err := newMapping()
	if err != nil {
		return err
	}
	idx, err := bleve.New(building, im)
	if err != nil {
		return fmt.Errorf("failed to create Bleve index: %w", err)
	}
	if err := indexDocs(context.Background(), idx, docs); err != nil {
		_ = idx.Close()
		return err
	}
	if err := idx.SetInternal([]byte(fingerprintKey), []byte(fingerprint)); err != nil {
		_ = idx.Close()
		return fmt.Errorf("store fingerprint: %w", err)
	}
	if err := idx.Close(); err != nil {
		return fmt.Errorf("close Bleve index: %w", err)
	}

	return install(building, path)
}

// Load opens a directory written by Save and checks it against the corpus.
// Document texts are not stored; call SetDocs before saving a loaded index.
func (b *BleveIndex) Load(path, fingerprint string, size int) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open Bleve index: %w", err)
	}
	idx, err := bleve.OpenUsing(path, map[string]interface{}{"read_only": true})
	if err != nil {
		return fmt.Errorf("failed to open Bleve index: %w", err)
	}
	stored, err := idx.GetInternal([]byte(fingerprintKey))
	if err != nil {
		_ = idx.Close()
		return fmt.Errorf("read fingerprint: %w", err)
	}
	if string(stored) != fingerprint {
		_ = idx.Close()
		return &models.StaleArtifactError{Artifact: path, Reason: fmt.Sprintf("corpus fingerprint %s, want %s", stored, fingerprint)}
	}
	count, err := idx.DocCount()
	if err != nil {
		_ = idx.Close()
		return fmt.Errorf("count documents: %w", err)
	}
	if int(count) != size {
		_ = idx.Close()
		return &models.StaleArtifactError{Artifact: path, Reason: fmt.Sprintf("has %d documents, corpus has %d", count, size)}
	}
	b.swap(idx, nil, size, acquireLease(path))
	return nil
}

// SetDocs supplies document texts after Load so the index can be saved again.
func (b *BleveIndex) SetDocs(docs []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs = append([]string(nil), docs...)
}

// Size returns the number of documents.
func (b *BleveIndex) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	if b.lease != nil {
		releaseLease(b.lease)
		b.lease = nil
	}
	return err
}

// GetAllTerms returns all unique terms from the text field dictionary.
func (b *BleveIndex) GetAllTerms() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return nil, models.ErrNotReady
	}
	dict, err := b.index.FieldDict(bleveField)
	if err != nil {
		return nil, fmt.Errorf("read field dictionary: %w", err)
	}
	defer dict.Close()
	var terms []string
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("read field dictionary: %w", err)
		}
		if entry == nil {
			break
		}
		terms = append(terms, entry.Term)
	}
	return terms, nil
}

// GetTermFrequency returns the number of documents containing term.
func (b *BleveIndex) GetTermFrequency(term string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return 0, models.ErrNotReady
	}
	q := bleve.NewTermQuery(term)
	q.SetField(bleveField)
	res, err := b.index.Search(bleve.NewSearchRequestOptions(q, 0, 0, false))
	if err != nil {
		return 0, fmt.Errorf("term frequency: %w", err)
	}
	return int(res.Total), nil
}
