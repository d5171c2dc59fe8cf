// Package indexer builds complete index snapshots from a course corpus.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kamoku/internal/embedding"
	"github.com/hyperjump/kamoku/internal/keyword"
	"github.com/hyperjump/kamoku/internal/metrics"
	"github.com/hyperjump/kamoku/internal/models"
	"github.com/hyperjump/kamoku/internal/vector"
	"go.uber.org/zap"
)

// Builder turns a corpus into a Snapshot: embeds every record, then builds the
// semantic and lexical indexes over the same record order.
type Builder struct {
	embedder    embedding.Embedder
	vectorType  string
	lexicalType string
	lexicalOpts keyword.Options
	workers     int
	batchSize   int
	logger      *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for build progress.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// WithVectorIndex selects the semantic backend (flat or faiss).
func WithVectorIndex(indexType string) BuilderOption {
	return func(b *Builder) { b.vectorType = indexType }
}

// WithLexicalIndex selects the lexical backend and its BM25 parameters.
func WithLexicalIndex(indexType string, opts keyword.Options) BuilderOption {
	return func(b *Builder) {
		b.lexicalType = indexType
		b.lexicalOpts = opts
	}
}

// WithConcurrency sets the embedding worker count and batch size.
func WithConcurrency(workers, batchSize int) BuilderOption {
	return func(b *Builder) {
		b.workers = workers
		b.batchSize = batchSize
	}
}

// NewBuilder creates a builder that embeds with e.
func NewBuilder(e embedding.Embedder, opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder:    e,
		vectorType:  string(vector.IndexTypeFlat),
		lexicalType: string(keyword.IndexTypeBM25),
		workers:     4,
		batchSize:   32,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b
}

// Embedder returns the embedder used for records; queries must use the same one.
func (b *Builder) Embedder() embedding.Embedder {
	return b.embedder
}

// NewIndexes returns empty semantic and lexical indexes of the configured types.
func (b *Builder) NewIndexes() (vector.Index, keyword.Index, error) {
	sem, err := vector.NewIndex(b.vectorType, b.embedder.Dimensions())
	if err != nil {
		return nil, nil, err
	}
	lex, err := keyword.NewIndex(b.lexicalType, b.lexicalOpts)
	if err != nil {
		_ = sem.Close()
		return nil, nil, err
	}
	return sem, lex, nil
}

// VectorType returns the configured semantic backend.
func (b *Builder) VectorType() string { return b.vectorType }

// LexicalType returns the configured lexical backend.
func (b *Builder) LexicalType() string { return b.lexicalType }

// Build embeds and indexes every record of corpus. The corpus is not copied
// and must not be modified afterwards.
func (b *Builder) Build(ctx context.Context, corpus *models.Corpus) (snap *Snapshot, err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RebuildsTotal.WithLabelValues(status).Inc()
		metrics.RebuildDuration.Observe(time.Since(start).Seconds())
	}()
	if corpus == nil {
		corpus = &models.Corpus{}
	}
	b.logger.Info("building index snapshot",
		zap.Int("records", corpus.Len()),
		zap.String("fingerprint", corpus.Fingerprint),
		zap.String("embedder", b.embedder.Name()))

	texts := corpus.Texts()
	vectors, err := embedding.BatchEmbed(ctx, b.embedder, texts, b.workers, b.batchSize)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	b.logger.Debug("corpus embedded", zap.Int("vectors", len(vectors)), zap.Duration("elapsed", time.Since(start)))

	sem, lex, err := b.NewIndexes()
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*Snapshot, error) {
		_ = sem.Close()
		_ = lex.Close()
		return nil, err
	}
	if err := sem.Build(ctx, vectors); err != nil {
		return fail(fmt.Errorf("build semantic index: %w", err))
	}
	if err := lex.Build(ctx, texts); err != nil {
		return fail(fmt.Errorf("build lexical index: %w", err))
	}
	snap, err = NewSnapshot(corpus, sem, lex)
	if err != nil {
		return fail(err)
	}
	snap.Embedder = b.embedder.Name()
	snap.Dimensions = b.embedder.Dimensions()
	snap.BuildID = uuid.New().String()
	snap.BuiltAt = time.Now().UTC()

	b.logger.Info("index snapshot built",
		zap.String("build_id", snap.BuildID),
		zap.Int("records", snap.Size()),
		zap.String("semantic", sem.Type()),
		zap.String("lexical", lex.Type()),
		zap.Duration("elapsed", time.Since(start)))
	return snap, nil
}
