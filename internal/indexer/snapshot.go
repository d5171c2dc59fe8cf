package indexer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/kamoku/internal/keyword"
	"github.com/hyperjump/kamoku/internal/models"
	"github.com/hyperjump/kamoku/internal/vector"
)

// Snapshot is an immutable, complete index generation: the corpus and both
// indexes built over it. Record index i is row i of Semantic, document i of
// Lexical and Corpus.Courses[i].
type Snapshot struct {
	Corpus   *models.Corpus
	Semantic vector.Index
	Lexical  keyword.Index

	Embedder   string
	Dimensions int
	BuildID    string
	BuiltAt    time.Time

	codes     map[string]int
	spellOnce sync.Once
	speller   *keyword.SpellChecker
}

// NewSnapshot assembles a snapshot from already built parts and checks that
// they cover the same records.
func NewSnapshot(corpus *models.Corpus, semantic vector.Index, lexical keyword.Index) (*Snapshot, error) {
	n := corpus.Len()
	if semantic.Size() != n {
		return nil, &models.StaleArtifactError{Artifact: "semantic index", Reason: sizeReason(semantic.Size(), n)}
	}
	if lexical.Size() != n {
		return nil, &models.StaleArtifactError{Artifact: "lexical index", Reason: sizeReason(lexical.Size(), n)}
	}
	s := &Snapshot{
		Corpus:     corpus,
		Semantic:   semantic,
		Lexical:    lexical,
		Dimensions: semantic.Dimensions(),
		codes:      make(map[string]int, n),
	}
	if corpus != nil {
		for i := range corpus.Courses {
			s.codes[corpus.Courses[i].Code] = i
		}
	}
	return s, nil
}

// Size returns the number of records.
func (s *Snapshot) Size() int {
	return s.Corpus.Len()
}

// Fingerprint returns the corpus fingerprint the snapshot was built from.
func (s *Snapshot) Fingerprint() string {
	if s.Corpus == nil {
		return ""
	}
	return s.Corpus.Fingerprint
}

// Lookup returns the record index for a course code.
func (s *Snapshot) Lookup(code string) (int, bool) {
	i, ok := s.codes[models.NormalizeCode(code)]
	return i, ok
}

// Course returns the record at index i.
func (s *Snapshot) Course(i int) *models.Course {
	return &s.Corpus.Courses[i]
}

// Speller returns a spell checker over the lexical vocabulary, or nil when
// the lexical index does not expose one. It is built on first use.
func (s *Snapshot) Speller() *keyword.SpellChecker {
	s.spellOnce.Do(func() {
		if dict, ok := s.Lexical.(keyword.TermDictionary); ok {
			s.speller = keyword.NewSpellChecker(dict)
		}
	})
	return s.speller
}

// Close releases both indexes.
func (s *Snapshot) Close() error {
	return errors.Join(s.Semantic.Close(), s.Lexical.Close())
}

func sizeReason(got, want int) string {
	return fmt.Sprintf("has %d records, corpus has %d", got, want)
}
