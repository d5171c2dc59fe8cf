// Package embedding provides the text embedding function used by the semantic index.
package embedding

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Embedder produces vector embeddings for text. Implementations must be
// deterministic for a given model and safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// Name identifies the model; it is recorded with persisted artifacts.
	Name() string
	Close() error
}

// Provider names accepted by New.
const (
	ProviderMock   = "mock"
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
)

// Options selects and configures an embedding provider.
type Options struct {
	Provider   string
	ModelPath  string
	Dimensions int
	MaxTokens  int
	CacheSize  int
	OpenAI     OpenAIConfig
	Logger     *zap.Logger
}

// New builds the configured provider, wrapped in an LRU cache when CacheSize > 0.
func New(opts Options) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch opts.Provider {
	case ProviderMock, "":
		e = NewMockEmbedder(opts.Dimensions)
	case ProviderONNX:
		if _, statErr := os.Stat(opts.ModelPath); statErr != nil {
			return nil, fmt.Errorf("onnx model %s: %w", opts.ModelPath, statErr)
		}
		e, err = NewONNXEmbedder(opts.ModelPath, opts.Dimensions, opts.MaxTokens)
	case ProviderOpenAI:
		cfg := opts.OpenAI
		if cfg.Dimensions == 0 {
			cfg.Dimensions = opts.Dimensions
		}
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		cfg.Logger = opts.Logger
		e, err = NewOpenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mock, onnx, openai)", opts.Provider)
	}
	if err != nil {
		return nil, err
	}
	if opts.CacheSize > 0 {
		return NewCachedEmbedder(e, opts.CacheSize)
	}
	return e, nil
}
