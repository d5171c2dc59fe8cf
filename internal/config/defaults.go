package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.QueryTimeout == 0 {
		cfg.Server.QueryTimeout = 10 * time.Second
	}
	if cfg.Storage.ArtifactDir == "" {
		cfg.Storage.ArtifactDir = "/usr/local/var/kamoku/artifacts"
	}
	if cfg.Storage.CorpusPath == "" {
		cfg.Storage.CorpusPath = "/usr/local/var/kamoku/courses.json"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" && cfg.Embedding.Provider == "onnx" {
		cfg.Embedding.ModelPath = "/usr/local/var/kamoku/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Workers == 0 {
		cfg.Embedding.Workers = 4
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	applySearchDefaults(&cfg.Search)
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
}

func applySearchDefaults(s *SearchConfig) {
	if s.DefaultLimit == 0 {
		s.DefaultLimit = 10
	}
	if s.MaxLimit == 0 {
		s.MaxLimit = 100
	}
	if s.Fusion == "" {
		s.Fusion = "rrf"
	}
	if s.RRFConstant == 0 {
		s.RRFConstant = 60
	}
	if s.LexicalWeight == 0 && s.SemanticWeight == 0 {
		s.LexicalWeight = 0.5
		s.SemanticWeight = 0.5
	}
	if s.CandidateMultiplier == 0 {
		s.CandidateMultiplier = 5
	}
	if s.MinCandidates == 0 {
		s.MinCandidates = 50
	}
	if s.FilterPolicy == "" {
		s.FilterPolicy = "after_fusion"
	}
	if s.VectorIndex == "" {
		s.VectorIndex = "flat"
	}
	if s.LexicalIndex == "" {
		s.LexicalIndex = "bm25"
	}
	if s.BM25K1 == 0 {
		s.BM25K1 = 1.5
	}
	if s.BM25B == 0 {
		s.BM25B = 0.75
	}
}

// DefaultSearch returns a SearchConfig with every default applied.
func DefaultSearch() SearchConfig {
	var s SearchConfig
	applySearchDefaults(&s)
	return s
}
