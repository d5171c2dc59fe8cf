// Package search provides the hybrid (lexical + semantic) course search engine.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kamoku/internal/config"
	"github.com/hyperjump/kamoku/internal/embedding"
	"github.com/hyperjump/kamoku/internal/indexer"
	"github.com/hyperjump/kamoku/internal/keyword"
	"github.com/hyperjump/kamoku/internal/metrics"
	"github.com/hyperjump/kamoku/internal/models"
	"github.com/hyperjump/kamoku/internal/vector"
)

// Positions of the rankings passed to the fuser.
const (
	semanticList = 0
	lexicalList  = 1
)

// Engine answers queries against the current snapshot. The snapshot is
// replaced atomically; a query sees exactly one snapshot from start to end.
type Engine struct {
	snapshot    atomic.Pointer[indexer.Snapshot]
	embedder    embedding.Embedder
	builder     *indexer.Builder
	fuser       Fuser
	config      config.SearchConfig
	retireDelay time.Duration
	logger      *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithBuilder enables Rebuild.
func WithBuilder(b *indexer.Builder) EngineOption {
	return func(e *Engine) { e.builder = b }
}

// WithRetireDelay sets how long a replaced snapshot stays open for in-flight
// queries before it is closed. Zero closes it immediately.
func WithRetireDelay(d time.Duration) EngineOption {
	return func(e *Engine) { e.retireDelay = d }
}

// NewEngine creates an engine that embeds queries with embedder. It serves
// nothing until Swap or Rebuild installs a snapshot.
func NewEngine(embedder embedding.Embedder, cfg config.SearchConfig, opts ...EngineOption) (*Engine, error) {
	fuser, err := NewFuser(cfg.Fusion, cfg.RRFConstant, cfg.SemanticWeight, cfg.LexicalWeight)
	if err != nil {
		return nil, err
	}
	switch cfg.FilterPolicy {
	case "":
		cfg.FilterPolicy = PolicyAfterFusion
	case PolicyAfterFusion, PolicyBeforeFusion:
	default:
		return nil, fmt.Errorf("unknown filter policy: %s", cfg.FilterPolicy)
	}
	e := &Engine{
		embedder:    embedder,
		fuser:       fuser,
		config:      cfg,
		retireDelay: 30 * time.Second,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e, nil
}

// Snapshot returns the serving snapshot, or nil.
func (e *Engine) Snapshot() *indexer.Snapshot {
	return e.snapshot.Load()
}

// Swap installs snap and returns the snapshot it replaced. The snapshot must
// have been embedded with the engine's query embedder.
func (e *Engine) Swap(snap *indexer.Snapshot) (*indexer.Snapshot, error) {
	if snap == nil {
		return nil, errors.New("swap: nil snapshot")
	}
	if snap.Embedder != "" && snap.Embedder != e.embedder.Name() {
		return nil, &models.StaleArtifactError{Artifact: "snapshot", Reason: fmt.Sprintf("embedded with %s, queries use %s", snap.Embedder, e.embedder.Name())}
	}
	if snap.Size() > 0 && snap.Semantic.Dimensions() != e.embedder.Dimensions() {
		return nil, &models.DimensionMismatchError{Got: e.embedder.Dimensions(), Want: snap.Semantic.Dimensions()}
	}
	old := e.snapshot.Swap(snap)
	metrics.SnapshotRecords.Set(float64(snap.Size()))
	e.logger.Info("snapshot installed",
		zap.String("build_id", snap.BuildID),
		zap.Int("records", snap.Size()),
		zap.String("fingerprint", snap.Fingerprint()))
	if old != nil && old != snap {
		e.retire(old)
	}
	return old, nil
}

func (e *Engine) retire(old *indexer.Snapshot) {
	closeOld := func() {
		if err := old.Close(); err != nil {
			e.logger.Warn("close retired snapshot", zap.String("build_id", old.BuildID), zap.Error(err))
		}
	}
	if e.retireDelay <= 0 {
		closeOld()
		return
	}
	time.AfterFunc(e.retireDelay, closeOld)
}

// Rebuild builds a snapshot for c and swaps it in. The previous snapshot
// keeps serving until the new one is complete; on failure it stays.
func (e *Engine) Rebuild(ctx context.Context, c *models.Corpus) (*indexer.Snapshot, error) {
	if e.builder == nil {
		return nil, errors.New("rebuild: engine has no builder")
	}
	snap, err := e.builder.Build(ctx, c)
	if err != nil {
		return nil, err
	}
	if _, err := e.Swap(snap); err != nil {
		_ = snap.Close()
		return nil, err
	}
	return snap, nil
}

// Stats describes the serving snapshot.
type Stats struct {
	Ready         bool      `json:"ready"`
	Records       int       `json:"records"`
	Fingerprint   string    `json:"fingerprint,omitempty"`
	BuildID       string    `json:"build_id,omitempty"`
	BuiltAt       time.Time `json:"built_at,omitempty"`
	Embedder      string    `json:"embedder"`
	Dimensions    int       `json:"dimensions"`
	SemanticIndex string    `json:"semantic_index,omitempty"`
	LexicalIndex  string    `json:"lexical_index,omitempty"`
	Fusion        string    `json:"fusion"`
	FilterPolicy  string    `json:"filter_policy"`
}

// Stats reports the current snapshot and engine settings.
func (e *Engine) Stats() Stats {
	st := Stats{
		Embedder:     e.embedder.Name(),
		Dimensions:   e.embedder.Dimensions(),
		Fusion:       e.fuser.Name(),
		FilterPolicy: e.config.FilterPolicy,
	}
	snap := e.snapshot.Load()
	if snap == nil {
		return st
	}
	st.Ready = true
	st.Records = snap.Size()
	st.Fingerprint = snap.Fingerprint()
	st.BuildID = snap.BuildID
	st.BuiltAt = snap.BuiltAt
	st.SemanticIndex = snap.Semantic.Type()
	st.LexicalIndex = snap.Lexical.Type()
	return st
}

// Course returns the record for code and its record index.
func (e *Engine) Course(code string) (*models.Course, int, error) {
	snap := e.snapshot.Load()
	if snap == nil {
		return nil, 0, models.ErrNotReady
	}
	i, ok := snap.Lookup(code)
	if !ok {
		return nil, 0, fmt.Errorf("course %s: %w", models.NormalizeCode(code), models.ErrNotFound)
	}
	return snap.Course(i), i, nil
}

// Search validates filters and runs SearchFilter.
func (e *Engine) Search(ctx context.Context, query string, filters map[string]any, k int) (*models.SearchResponse, error) {
	f, err := ParseFilters(filters)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	return e.SearchFilter(ctx, query, f, k)
}

// SearchFilter returns at most k courses ranked by fused lexical and semantic
// relevance. k <= 0 means the default limit; k is capped at the max limit.
func (e *Engine) SearchFilter(ctx context.Context, query string, f *Filter, k int) (resp *models.SearchResponse, err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.SearchRequestsTotal.WithLabelValues(status).Inc()
		metrics.SearchDuration.WithLabelValues(e.fuser.Name()).Observe(time.Since(start).Seconds())
	}()

	snap := e.snapshot.Load()
	if snap == nil {
		return nil, models.ErrNotReady
	}
	k = e.limit(k)
	query = strings.TrimSpace(query)
	resp = &models.SearchResponse{
		Query:        query,
		Results:      []*models.SearchResult{},
		Fusion:       e.fuser.Name(),
		FilterPolicy: e.config.FilterPolicy,
	}
	defer func() {
		if resp != nil {
			resp.QueryTime = time.Since(start).Milliseconds()
		}
	}()
	if snap.Size() == 0 {
		return resp, nil
	}

	n := e.poolSize(k, snap.Size())
	if e.config.FilterPolicy == PolicyBeforeFusion && !f.Empty() {
		n = snap.Size()
	}
	sem, lex, err := e.retrieve(ctx, snap, query, n)
	if err != nil {
		return nil, err
	}

	course := func(h Hit) *models.Course { return snap.Course(h.Index) }
	if e.config.FilterPolicy == PolicyBeforeFusion {
		sem = Apply(sem, f, course)
		lex = Apply(lex, f, course)
	}
	fused := e.fuser.Fuse(sem, lex)

	codes := DetectCodes(query)
	resp.DetectedCodes = codes
	if e.config.PinExactCodeOrDefault() && len(codes) > 0 {
		var pinned []int
		for _, code := range codes {
			if i, ok := snap.Lookup(code); ok && (e.config.FilterPolicy == PolicyAfterFusion || f.Match(snap.Course(i))) {
				pinned = append(pinned, i)
			}
		}
		fused = Pin(fused, pinned, e.fuser.Ceiling(sem, lex), 2)
	}

	if e.config.FilterPolicy == PolicyAfterFusion {
		fused = Apply(fused, f, func(c Fused) *models.Course { return snap.Course(c.Index) })
	}
	resp.TotalCandidates = len(fused)
	metrics.SearchCandidates.Observe(float64(len(fused)))

	if len(fused) > k {
		fused = fused[:k]
	}
	for i, c := range fused {
		resp.Results = append(resp.Results, hydrate(snap.Course(c.Index), c, i+1))
	}
	if e.config.SpellSuggestionsOrDefault() && len(lex) == 0 {
		resp.DidYouMean = e.didYouMean(snap, query)
	}
	return resp, nil
}

func (e *Engine) limit(k int) int {
	if k <= 0 {
		k = e.config.DefaultLimit
	}
	if k <= 0 {
		k = 10
	}
	if e.config.MaxLimit > 0 && k > e.config.MaxLimit {
		k = e.config.MaxLimit
	}
	return k
}

// poolSize is the per-index candidate count, widened so filtering after
// fusion still leaves k results in most cases.
func (e *Engine) poolSize(k, size int) int {
	n := max(k*max(e.config.CandidateMultiplier, 1), e.config.MinCandidates, k)
	return min(n, size)
}

// retrieve runs both indexes concurrently and drops non-matching hits.
func (e *Engine) retrieve(ctx context.Context, snap *indexer.Snapshot, query string, n int) (Ranking, Ranking, error) {
	var (
		semHits []vector.Result
		lexHits []keyword.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := e.embedder.Embed(gctx, query)
		if err != nil {
			var embErr *models.EmbeddingError
			if errors.As(err, &embErr) {
				return err
			}
			return &models.EmbeddingError{Provider: e.embedder.Name(), Err: err}
		}
		semHits, err = snap.Semantic.Search(gctx, vec, n)
		if err != nil {
			return fmt.Errorf("semantic search: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		lexHits, err = snap.Lexical.Search(gctx, query, n)
		if err != nil {
			return fmt.Errorf("lexical search: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sem := make(Ranking, 0, len(semHits))
	for _, h := range semHits {
		if h.Score > e.config.MinSemanticScore {
			sem = append(sem, Hit{Index: h.Index, Score: h.Score})
		}
	}
	lex := make(Ranking, 0, len(lexHits))
	for _, h := range lexHits {
		if h.Score > 0 {
			lex = append(lex, Hit{Index: h.Index, Score: h.Score})
		}
	}
	return sem, lex, nil
}

func (e *Engine) didYouMean(snap *indexer.Snapshot, query string) string {
	sp := snap.Speller()
	if sp == nil {
		return ""
	}
	res, err := sp.Check(query)
	if err != nil {
		e.logger.Debug("spell check failed", zap.Error(err))
		return ""
	}
	if !res.HasCorrections() {
		return ""
	}
	return res.CorrectedQuery
}

func hydrate(c *models.Course, f Fused, rank int) *models.SearchResult {
	return &models.SearchResult{
		RecordIndex:    f.Index,
		Code:           c.Code,
		Title:          c.Title,
		Department:     c.Department,
		Instructor:     c.Instructor,
		MeetingTimes:   c.MeetingTimes,
		Source:         c.Source,
		Score:          f.Score,
		Rank:           rank,
		SemanticScore:  f.Scores[semanticList],
		LexicalScore:   f.Scores[lexicalList],
		SemanticRank:   f.Ranks[semanticList],
		LexicalRank:    f.Ranks[lexicalList],
		ExactCodeMatch: f.Pinned,
	}
}
