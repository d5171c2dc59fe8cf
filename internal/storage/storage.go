// Package storage persists index snapshots to an artifact directory and
// restores them, refusing artifacts that do not match the corpus.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/kamoku/internal/corpus"
	"github.com/hyperjump/kamoku/internal/indexer"
	"github.com/hyperjump/kamoku/internal/keyword"
	"github.com/hyperjump/kamoku/internal/models"
	"github.com/hyperjump/kamoku/internal/vector"
)

// Artifact file names inside the artifact directory.
const (
	VectorsFile = "vectors.bin"
	CatalogFile = "catalog.db"
	BleveDir    = "bleve"
)

// Store reads and writes snapshots under one directory. The builder supplies
// the embedder and backends a loaded snapshot must match.
type Store struct {
	dir     string
	builder *indexer.Builder
	logger  *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, builder *indexer.Builder, opts ...Option) *Store {
	s := &Store{dir: dir, builder: builder, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Dir returns the artifact directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

// Save writes every artifact of snap. Each artifact is replaced atomically;
// the catalog is written last so a crash mid-save leaves artifacts whose
// fingerprints disagree, which Load reports as stale.
func (s *Store) Save(ctx context.Context, snap *indexer.Snapshot) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	fp := snap.Fingerprint()
	if err := snap.Semantic.Save(s.path(VectorsFile), fp); err != nil {
		return fmt.Errorf("save semantic index: %w", err)
	}

	var stats *keyword.Stats
	switch lex := snap.Lexical.(type) {
	case interface{ Stats() *keyword.Stats }:
		stats = lex.Stats()
	case keyword.Persister:
		if err := lex.Save(s.path(BleveDir), fp); err != nil {
			return fmt.Errorf("save lexical index: %w", err)
		}
	default:
		return fmt.Errorf("lexical index %s cannot be persisted", snap.Lexical.Type())
	}

	m := &Manifest{
		Version:       catalogVersion,
		Fingerprint:   fp,
		Size:          snap.Size(),
		Dimensions:    snap.Dimensions,
		Embedder:      snap.Embedder,
		SemanticIndex: snap.Semantic.Type(),
		LexicalIndex:  snap.Lexical.Type(),
		BuildID:       snap.BuildID,
		BuiltAt:       snap.BuiltAt,
	}
	var courses []models.Course
	if snap.Corpus != nil {
		courses = snap.Corpus.Courses
	}
	if err := s.writeCatalog(ctx, m, courses, stats); err != nil {
		return err
	}
	s.logger.Info("snapshot saved",
		zap.String("dir", s.dir),
		zap.String("build_id", snap.BuildID),
		zap.Int("records", snap.Size()))
	return nil
}

func (s *Store) writeCatalog(ctx context.Context, m *Manifest, courses []models.Course, stats *keyword.Stats) error {
	final := s.path(CatalogFile)
	tmp := final + ".tmp"
	for _, p := range []string{tmp, tmp + "-wal", tmp + "-shm"} {
		_ = os.Remove(p)
	}
	cat, err := createCatalog(tmp)
	if err != nil {
		return err
	}
	if err := cat.write(ctx, m, courses, stats); err != nil {
		_ = cat.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := cat.finish(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	for _, p := range []string{final + "-wal", final + "-shm"} {
		_ = os.Remove(p)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("install catalog: %w", err)
	}
	return nil
}

// Manifest reads the manifest of the stored snapshot.
func (s *Store) Manifest(ctx context.Context) (*Manifest, error) {
	cat, err := OpenCatalog(s.path(CatalogFile))
	if err != nil {
		return nil, err
	}
	defer cat.Close()
	return cat.Manifest(ctx)
}

// Load restores the stored snapshot and checks it against c. When c is nil
// the corpus is read back from the catalog and must hash to the manifest
// fingerprint. Any mismatch yields an error matching models.ErrStaleArtifact;
// a missing catalog yields one matching os.ErrNotExist.
func (s *Store) Load(ctx context.Context, c *models.Corpus) (*indexer.Snapshot, error) {
	cat, err := OpenCatalog(s.path(CatalogFile))
	if err != nil {
		return nil, err
	}
	defer cat.Close()

	m, err := cat.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkManifest(m); err != nil {
		return nil, err
	}
	if c == nil {
		courses, err := cat.Courses(ctx)
		if err != nil {
			return nil, fmt.Errorf("read courses: %w", err)
		}
		if c, err = corpus.New(courses); err != nil {
			return nil, &models.StaleArtifactError{Artifact: CatalogFile, Reason: err.Error()}
		}
	}
	if m.Fingerprint != c.Fingerprint {
		return nil, &models.StaleArtifactError{Artifact: CatalogFile, Reason: fmt.Sprintf("corpus fingerprint %s, want %s", m.Fingerprint, c.Fingerprint)}
	}
	if m.Size != c.Len() {
		return nil, &models.StaleArtifactError{Artifact: CatalogFile, Reason: fmt.Sprintf("has %d records, corpus has %d", m.Size, c.Len())}
	}
	if n, err := cat.CountCourses(ctx); err != nil {
		return nil, err
	} else if n != c.Len() {
		return nil, &models.StaleArtifactError{Artifact: CatalogFile, Reason: fmt.Sprintf("has %d course rows, corpus has %d", n, c.Len())}
	}

	sem, lex, err := s.builder.NewIndexes()
	if err != nil {
		return nil, err
	}
	snap, err := s.loadIndexes(ctx, cat, c, sem, lex)
	if err != nil {
		_ = sem.Close()
		_ = lex.Close()
		return nil, err
	}
	snap.Embedder = m.Embedder
	snap.Dimensions = m.Dimensions
	snap.BuildID = m.BuildID
	snap.BuiltAt = m.BuiltAt
	s.logger.Info("snapshot loaded",
		zap.String("dir", s.dir),
		zap.String("build_id", m.BuildID),
		zap.Int("records", snap.Size()))
	return snap, nil
}

func (s *Store) checkManifest(m *Manifest) error {
	e := s.builder.Embedder()
	checks := []struct {
		what      string
		got, want any
	}{
		{"catalog version", m.Version, catalogVersion},
		{"embedder", m.Embedder, e.Name()},
		{"dimensions", m.Dimensions, e.Dimensions()},
		{"semantic index", m.SemanticIndex, s.builder.VectorType()},
		{"lexical index", m.LexicalIndex, s.builder.LexicalType()},
	}
	for _, c := range checks {
		if c.got != c.want {
			return &models.StaleArtifactError{Artifact: CatalogFile, Reason: fmt.Sprintf("%s is %v, want %v", c.what, c.got, c.want)}
		}
	}
	return nil
}

func (s *Store) loadIndexes(ctx context.Context, cat *Catalog, c *models.Corpus, sem vector.Index, lex keyword.Index) (*indexer.Snapshot, error) {
	if err := sem.Load(s.path(VectorsFile), c.Fingerprint, c.Len()); err != nil {
		return nil, staleIfMissing(VectorsFile, err)
	}
	switch l := lex.(type) {
	case *keyword.BM25Index:
		stats, err := cat.LexicalStats(ctx, c.Len())
		if err != nil {
			return nil, err
		}
		if err := l.LoadStats(stats, c.Len()); err != nil {
			return nil, err
		}
	case *keyword.BleveIndex:
		if err := l.Load(s.path(BleveDir), c.Fingerprint, c.Len()); err != nil {
			return nil, staleIfMissing(BleveDir, err)
		}
		l.SetDocs(c.Texts())
	default:
		return nil, fmt.Errorf("lexical index %s cannot be loaded", lex.Type())
	}
	return indexer.NewSnapshot(c, sem, lex)
}

// staleIfMissing reports a missing artifact next to a present catalog as stale.
func staleIfMissing(name string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return &models.StaleArtifactError{Artifact: name, Reason: "missing"}
	}
	return err
}

// LoadOrBuild returns the stored snapshot when it is fresh for c, otherwise
// builds a new one and saves it. built reports which happened.
func (s *Store) LoadOrBuild(ctx context.Context, c *models.Corpus) (snap *indexer.Snapshot, built bool, err error) {
	snap, err = s.Load(ctx, c)
	if err == nil {
		return snap, false, nil
	}
	if !errors.Is(err, models.ErrStaleArtifact) && !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}
	s.logger.Info("artifacts unusable, rebuilding", zap.String("dir", s.dir), zap.Error(err))
	snap, err = s.builder.Build(ctx, c)
	if err != nil {
		return nil, false, err
	}
	if err := s.Save(ctx, snap); err != nil {
		_ = snap.Close()
		return nil, false, err
	}
	return snap, true, nil
}

// DiskUsage returns the bytes used by the stored artifacts.
func (s *Store) DiskUsage() (int64, error) {
	return DiskUsageBytes(s.path(VectorsFile), s.path(VectorsFile)+".faiss", s.path(CatalogFile), s.path(BleveDir))
}
