//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/kamoku/internal/models"
)

func TestONNXEmbedder_ClosedSession(t *testing.T) {
	// A closed embedder holds no session or tensors.
	e := &ONNXEmbedder{dimensions: 4, maxTokens: 8, tokenizer: &SimpleTokenizer{}}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	ctx := context.Background()
	if _, err := e.Embed(ctx, "machine learning"); !errors.Is(err, errEmbedderClosed) || !errors.Is(err, models.ErrEmbedding) {
		t.Errorf("Embed after Close = %v, want closed embedding error", err)
	}
	if _, err := e.EmbedBatch(ctx, []string{"a", "b"}); !errors.Is(err, errEmbedderClosed) {
		t.Errorf("EmbedBatch after Close = %v", err)
	}
}
