package embedding

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/hyperjump/kamoku/pkg/utils"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "machine learning")
	b, _ := e.Embed(ctx, "Machine  Learning!")
	if len(a) != 16 {
		t.Fatalf("dims = %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same tokens must give the same embedding")
		}
	}
	if n := math.Sqrt(utils.Dot(a, a)); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm = %f, want 1", n)
	}
}

func TestMockEmbedder_EmptyTextIsZero(t *testing.T) {
	v, err := NewMockEmbedder(8).Embed(context.Background(), "   ")
	if err != nil {
		t.Fatal(err)
	}
	for _, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v", v)
		}
	}
}

func TestMockEmbedder_DefaultsAndCancel(t *testing.T) {
	e := NewMockEmbedder(0)
	if e.Dimensions() != 384 || e.Name() != ProviderMock {
		t.Errorf("defaults = %d %s", e.Dimensions(), e.Name())
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Embed(ctx, "x"); err == nil {
		t.Error("expected context error")
	}
}

// countingEmbedder counts inner calls so cache behaviour is observable.
type countingEmbedder struct {
	*MockEmbedder
	embeds  atomic.Int64
	batched atomic.Int64
	fail    error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embeds.Add(1)
	if c.fail != nil {
		return nil, c.fail
	}
	return c.MockEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batched.Add(int64(len(texts)))
	if c.fail != nil {
		return nil, c.fail
	}
	return c.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	c, err := NewCachedEmbedder(inner, 2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_, _ = c.Embed(ctx, "a")
	_, _ = c.Embed(ctx, "a")
	if got := inner.embeds.Load(); got != 1 {
		t.Errorf("inner Embed calls = %d, want 1", got)
	}

	vecs, err := c.EmbedBatch(ctx, []string{"a", "b", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 || vecs[0][0] != vecs[2][0] {
		t.Errorf("batch results inconsistent: %v", vecs)
	}
	if got := inner.batched.Load(); got != 1 {
		t.Errorf("inner EmbedBatch texts = %d, want 1 (only b misses)", got)
	}
	if c.Len() != 2 {
		t.Errorf("cache len = %d, want 2", c.Len())
	}
	if c.Name() != ProviderMock || c.Dimensions() != 8 {
		t.Error("cached embedder should delegate Name and Dimensions")
	}
}

func TestCachedEmbedder_ErrorNotCached(t *testing.T) {
	boom := errors.New("boom")
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(4), fail: boom}
	c, _ := NewCachedEmbedder(inner, 4)
	if _, err := c.Embed(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if c.Len() != 0 {
		t.Error("failed embeddings must not be cached")
	}
}

func TestBatchEmbed_PreservesOrder(t *testing.T) {
	e := NewMockEmbedder(8)
	texts := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta"}
	got, err := BatchEmbed(context.Background(), e, texts, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(texts) {
		t.Fatalf("len = %d", len(got))
	}
	for i, text := range texts {
		want, _ := e.Embed(context.Background(), text)
		for j := range want {
			if got[i][j] != want[j] {
				t.Fatalf("vector %d does not match text %q", i, text)
			}
		}
	}
}

func TestBatchEmbed_PropagatesError(t *testing.T) {
	boom := errors.New("provider down")
	e := &countingEmbedder{MockEmbedder: NewMockEmbedder(4), fail: boom}
	if _, err := BatchEmbed(context.Background(), e, []string{"a", "b", "c"}, 2, 1); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	out, err := BatchEmbed(context.Background(), e, nil, 2, 1)
	if err != nil || out != nil {
		t.Errorf("empty input = %v, %v", out, err)
	}
}

func TestNew(t *testing.T) {
	e, err := New(Options{Provider: ProviderMock, Dimensions: 12, CacheSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*CachedEmbedder); !ok {
		t.Errorf("expected cached embedder, got %T", e)
	}
	if e.Dimensions() != 12 {
		t.Errorf("dims = %d", e.Dimensions())
	}
	if _, err := New(Options{Provider: "word2vec"}); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := New(Options{Provider: ProviderONNX, ModelPath: "/nonexistent/model.onnx"}); err == nil {
		t.Error("expected error for missing model")
	}
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New(Options{Provider: ProviderOpenAI, Dimensions: 8}); err == nil {
		t.Error("expected error for missing api key")
	}
}

func TestNewOpenAIEmbedder(t *testing.T) {
	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-test", Dimensions: 256})
	if err != nil {
		t.Fatal(err)
	}
	if e.Name() != "openai:text-embedding-3-small" || e.Dimensions() != 256 {
		t.Errorf("name=%s dims=%d", e.Name(), e.Dimensions())
	}
	if _, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-test"}); err == nil {
		t.Error("expected error without dimensions")
	}
}
