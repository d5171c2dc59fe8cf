package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kamoku/internal/config"
	"github.com/hyperjump/kamoku/internal/corpus"
	"github.com/hyperjump/kamoku/internal/embedding"
	"github.com/hyperjump/kamoku/internal/indexer"
	"github.com/hyperjump/kamoku/internal/keyword"
	"github.com/hyperjump/kamoku/internal/models"
	"github.com/hyperjump/kamoku/internal/search"
	"github.com/hyperjump/kamoku/internal/storage"
	"github.com/hyperjump/kamoku/pkg/utils"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	embedder embedding.Embedder
	builder  *indexer.Builder
	store    *storage.Store
	engine   *search.Engine

	rebuildMu sync.Mutex
}

func newLoggerFor(cfg *config.Config, debug bool) (*zap.Logger, error) {
	return utils.NewLogger(cfg.Debug || debug, cfg.LogLevel)
}

// newApp wires embedder, builder, store and engine from cfg. No corpus is
// loaded yet.
func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	emb, err := embedding.New(embedding.Options{
		Provider:   cfg.Embedding.Provider,
		ModelPath:  cfg.Embedding.ModelPath,
		Dimensions: cfg.Embedding.Dimensions,
		MaxTokens:  cfg.Embedding.MaxTokens,
		CacheSize:  cfg.Embedding.CacheSize,
		OpenAI: embedding.OpenAIConfig{
			APIKey:  cfg.Embedding.OpenAI.APIKey,
			BaseURL: cfg.Embedding.OpenAI.BaseURL,
			Model:   cfg.Embedding.OpenAI.Model,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	builder := indexer.NewBuilder(emb,
		indexer.WithLogger(logger),
		indexer.WithVectorIndex(cfg.Search.VectorIndex),
		indexer.WithLexicalIndex(cfg.Search.LexicalIndex, keyword.Options{K1: cfg.Search.BM25K1, B: cfg.Search.BM25B}),
		indexer.WithConcurrency(cfg.Embedding.Workers, cfg.Embedding.BatchSize),
	)
	engine, err := search.NewEngine(emb, cfg.Search, search.WithLogger(logger), search.WithBuilder(builder))
	if err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("create engine: %w", err)
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		embedder: emb,
		builder:  builder,
		store:    storage.NewStore(cfg.Storage.ArtifactDir, builder, storage.WithLogger(logger)),
		engine:   engine,
	}, nil
}

// loadCorpus reads the primary corpus and, when configured, merges the
// secondary catalog into it.
func (a *app) loadCorpus() (*models.Corpus, error) {
	return loadCorpusFiles(a.cfg.Storage.CorpusPath, a.cfg.Storage.SecondaryCorpusPath)
}

func loadCorpusFiles(primaryPath, secondaryPath string) (*models.Corpus, error) {
	if primaryPath == "" {
		return nil, errors.New("storage.corpus_path is not set")
	}
	courses, err := corpus.Load(primaryPath, models.SourcePrimary)
	if err != nil {
		return nil, err
	}
	if secondaryPath != "" {
		secondary, err := corpus.Load(secondaryPath, models.SourceSecondary)
		if err != nil {
			return nil, err
		}
		courses = corpus.Merge(courses, secondary)
	}
	return corpus.New(courses)
}

// open loads fresh artifacts for the current corpus, building them when
// they are missing or stale, and installs the snapshot.
func (a *app) open(ctx context.Context) error {
	c, err := a.loadCorpus()
	if err != nil {
		return err
	}
	snap, built, err := a.store.LoadOrBuild(ctx, c)
	if err != nil {
		return err
	}
	if _, err := a.engine.Swap(snap); err != nil {
		_ = snap.Close()
		return err
	}
	a.logger.Info("Snapshot ready",
		zap.Int("records", snap.Size()),
		zap.String("fingerprint", snap.Fingerprint()),
		zap.Bool("built", built),
	)
	return nil
}

// rebuild reloads the corpus, builds a snapshot, persists it and swaps it in.
// On failure the serving snapshot is left in place.
func (a *app) rebuild(ctx context.Context) (*indexer.Snapshot, error) {
	a.rebuildMu.Lock()
	defer a.rebuildMu.Unlock()

	c, err := a.loadCorpus()
	if err != nil {
		return nil, err
	}
	snap, err := a.builder.Build(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := a.store.Save(ctx, snap); err != nil {
		_ = snap.Close()
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}
	if _, err := a.engine.Swap(snap); err != nil {
		_ = snap.Close()
		return nil, err
	}
	return snap, nil
}

func (a *app) Close() error {
	var errs []error
	if snap := a.engine.Snapshot(); snap != nil {
		errs = append(errs, snap.Close())
	}
	errs = append(errs, a.embedder.Close())
	return errors.Join(errs...)
}
