// Package config provides configuration loading and structs for kamoku.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/kamoku/internal/vector"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogLevel  string          `yaml:"log_level"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds the corpus inputs and the artifact directory.
type StorageConfig struct {
	ArtifactDir string `yaml:"artifact_dir"`
	CorpusPath  string `yaml:"corpus_path"`
	// SecondaryCorpusPath, when set, is merged into the primary catalog at load.
	SecondaryCorpusPath string `yaml:"secondary_corpus_path"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider   string       `yaml:"provider"`
	ModelPath  string       `yaml:"model_path"`
	Dimensions int          `yaml:"dimensions"`
	MaxTokens  int          `yaml:"max_tokens"`
	CacheSize  int          `yaml:"cache_size"`
	Workers    int          `yaml:"workers"`
	BatchSize  int          `yaml:"batch_size"`
	OpenAI     OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig holds settings for OpenAI-compatible embedding APIs.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// SearchConfig holds retrieval, fusion and filter settings.
type SearchConfig struct {
	DefaultLimit        int     `yaml:"default_limit"`
	MaxLimit            int     `yaml:"max_limit"`
	Fusion              string  `yaml:"fusion"`
	RRFConstant         float64 `yaml:"rrf_constant"`
	LexicalWeight       float64 `yaml:"lexical_weight"`
	SemanticWeight      float64 `yaml:"semantic_weight"`
	CandidateMultiplier int     `yaml:"candidate_multiplier"`
	MinCandidates       int     `yaml:"min_candidates"`
	FilterPolicy        string  `yaml:"filter_policy"`
	MinSemanticScore    float64 `yaml:"min_semantic_score"`
	PinExactCode        *bool   `yaml:"pin_exact_code"`
	SpellSuggestions    *bool   `yaml:"spell_suggestions"`
	VectorIndex         string  `yaml:"vector_index"`
	LexicalIndex        string  `yaml:"lexical_index"`
	BM25K1              float64 `yaml:"bm25_k1"`
	BM25B               float64 `yaml:"bm25_b"`
}

// PinExactCodeOrDefault reports whether detected course codes are pinned; defaults to true.
func (s *SearchConfig) PinExactCodeOrDefault() bool {
	if s.PinExactCode != nil {
		return *s.PinExactCode
	}
	return true
}

// SpellSuggestionsOrDefault reports whether "did you mean" suggestions are computed; defaults to true.
func (s *SearchConfig) SpellSuggestionsOrDefault() bool {
	if s.SpellSuggestions != nil {
		return *s.SpellSuggestions
	}
	return true
}

// WatchConfig holds corpus watch settings.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, applies defaults, expands
// paths and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.ArtifactDir = expandPath(cfg.Storage.ArtifactDir, configDir)
	cfg.Storage.CorpusPath = expandPath(cfg.Storage.CorpusPath, configDir)
	cfg.Storage.SecondaryCorpusPath = expandPath(cfg.Storage.SecondaryCorpusPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects unknown enum values and out-of-range numbers.
func Validate(cfg *Config) error {
	enums := []struct {
		key, val string
		allowed  []string
	}{
		{"embedding.provider", cfg.Embedding.Provider, []string{"mock", "onnx", "openai"}},
		{"search.fusion", cfg.Search.Fusion, []string{"rrf", "weighted"}},
		{"search.filter_policy", cfg.Search.FilterPolicy, []string{"after_fusion", "before_fusion"}},
		{"search.vector_index", cfg.Search.VectorIndex, []string{"flat", "faiss"}},
		{"search.lexical_index", cfg.Search.LexicalIndex, []string{"bm25", "bleve"}},
	}
	for _, e := range enums {
		if !oneOf(e.val, e.allowed) {
			return fmt.Errorf("invalid %s %q (allowed: %s)", e.key, e.val, strings.Join(e.allowed, ", "))
		}
	}
	s := cfg.Search
	switch {
	case s.VectorIndex == string(vector.IndexTypeFAISS) && !vector.IsFAISSAvailable():
		return fmt.Errorf("search.vector_index faiss is not compiled in (build with -tags=faiss)")
	case s.DefaultLimit > s.MaxLimit:
		return fmt.Errorf("search.default_limit %d exceeds search.max_limit %d", s.DefaultLimit, s.MaxLimit)
	case s.LexicalWeight < 0 || s.SemanticWeight < 0:
		return fmt.Errorf("search weights must not be negative")
	case s.Fusion == "weighted" && s.LexicalWeight+s.SemanticWeight == 0:
		return fmt.Errorf("weighted fusion needs a positive lexical_weight or semantic_weight")
	case s.BM25B < 0 || s.BM25B > 1:
		return fmt.Errorf("search.bm25_b must be within [0, 1], got %v", s.BM25B)
	case cfg.Embedding.Dimensions <= 0:
		return fmt.Errorf("embedding.dimensions must be positive")
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
