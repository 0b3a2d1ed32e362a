package hashing

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/scisearch/internal/ann"
	"github.com/kailas-cloud/scisearch/internal/domain"
)

func newTestEmbedder(t *testing.T, dim int) *Embedder {
	t.Helper()
	e, err := New(dim, 7)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNew_InvalidDimensions(t *testing.T) {
	for _, dim := range []int{0, -1} {
		if _, err := New(dim, 0); err == nil {
			t.Errorf("New(%d) expected error", dim)
		}
	}
}

func TestEmbed_UnitLengthAndDeterministic(t *testing.T) {
	e := newTestEmbedder(t, 64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "covid 19 spreads via respiratory droplets")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, _ := e.Embed(ctx, "covid 19 spreads via respiratory droplets")

	if len(a.Embedding) != 64 {
		t.Fatalf("len = %d, want 64", len(a.Embedding))
	}
	var norm float64
	for i, v := range a.Embedding {
		if v != b.Embedding[i] {
			t.Fatalf("component %d differs between calls", i)
		}
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("norm² = %v, want 1", norm)
	}
	if a.PromptTokens != 6 {
		t.Errorf("PromptTokens = %d, want 6", a.PromptTokens)
	}
}

func TestEmbed_EmptyTextIsZeroVector(t *testing.T) {
	res, err := newTestEmbedder(t, 16).Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for _, v := range res.Embedding {
		if v != 0 {
			t.Fatalf("expected zero vector, got %v", res.Embedding)
		}
	}
}

func TestEmbed_SharedVocabularyIsCloser(t *testing.T) {
	e := newTestEmbedder(t, 256)
	ctx := context.Background()

	q, _ := e.Embed(ctx, "vaccine efficacy against coronavirus")
	near, _ := e.Embed(ctx, "coronavirus vaccine efficacy trial results")
	far, _ := e.Embed(ctx, "protein folding in bacterial membranes")

	dNear := ann.AngularDistance(q.Embedding, near.Embedding)
	dFar := ann.AngularDistance(q.Embedding, far.Embedding)
	if dNear >= dFar {
		t.Errorf("expected near (%v) < far (%v)", dNear, dFar)
	}
}

func TestEmbed_SeedChangesVectors(t *testing.T) {
	a, _ := New(32, 1)
	b, _ := New(32, 2)
	va, _ := a.Embed(context.Background(), "spike protein")
	vb, _ := b.Embed(context.Background(), "spike protein")

	same := true
	for i := range va.Embedding {
		if va.Embedding[i] != vb.Embedding[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical vectors")
	}
}

func TestBatchEmbed_MatchesEmbed(t *testing.T) {
	e := newTestEmbedder(t, 32)
	ctx := context.Background()
	texts := []string{"alpha beta", "gamma", ""}

	res, err := e.BatchEmbed(ctx, texts)
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if len(res.Embeddings) != len(texts) {
		t.Fatalf("got %d embeddings", len(res.Embeddings))
	}
	for i, text := range texts {
		single, _ := e.Embed(ctx, text)
		for j := range single.Embedding {
			if single.Embedding[j] != res.Embeddings[i][j] {
				t.Fatalf("text %d component %d differs", i, j)
			}
		}
	}
	if res.TotalTokens != 3 {
		t.Errorf("TotalTokens = %d, want 3", res.TotalTokens)
	}

	empty, err := e.BatchEmbed(ctx, nil)
	if err != nil || empty.Embeddings != nil {
		t.Errorf("empty batch = %+v, %v", empty, err)
	}
}

func TestEmbed_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEmbedder(t, 8)
	if _, err := e.Embed(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("Embed err = %v", err)
	}
	if _, err := e.BatchEmbed(ctx, []string{"x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("BatchEmbed err = %v", err)
	}
}

var (
	_ domain.Embedder      = (*Embedder)(nil)
	_ domain.BatchEmbedder = (*Embedder)(nil)
)
