package embedding

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scisearch/internal/domain"
	"github.com/kailas-cloud/scisearch/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

type mockEmbedder struct {
	result      domain.EmbeddingResult
	err         error
	batchResult domain.BatchEmbeddingResult
	batchErr    error
	batchCalls  atomic.Int32
	calls       atomic.Int32
	block       chan struct{}
	active      atomic.Int32
	maxActive   atomic.Int32
}

func (m *mockEmbedder) Embed(ctx context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls.Add(1)
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		cur := m.maxActive.Load()
		if n <= cur || m.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return domain.EmbeddingResult{}, ctx.Err()
		}
	}
	return m.result, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls.Add(1)
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	if m.batchResult.Embeddings != nil {
		return m.batchResult, nil
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = m.result.Embedding
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: m.result.PromptTokens * len(texts),
		TotalTokens:  m.result.TotalTokens * len(texts),
	}, nil
}

// singleEmbedder has no native batching.
type singleEmbedder struct {
	vec []float32
}

func (s *singleEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: s.vec, TotalTokens: 1}, nil
}

func TestLimitedEmbedder_Success(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 4,
		TotalTokens:  4,
	}}
	p := NewLimitedEmbedder(inner, "test", "test-model", LimitedOptions{}, zap.NewNop())

	result, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.TotalTokens != 4 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestLimitedEmbedder_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	p := NewLimitedEmbedder(inner, "test", "test-model", LimitedOptions{}, zap.NewNop())

	_, err := p.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestLimitedEmbedder_BoundsConcurrency(t *testing.T) {
	inner := &mockEmbedder{
		result: domain.EmbeddingResult{Embedding: []float32{1}},
		block:  make(chan struct{}),
	}
	p := NewLimitedEmbedder(inner, "test-pool", "m", LimitedOptions{MaxConcurrency: 2}, zap.NewNop())

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Embed(context.Background(), "q")
		}()
	}

	deadline := time.After(2 * time.Second)
	for inner.active.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("pool never reached two concurrent calls")
		case <-time.After(time.Millisecond):
		}
	}
	close(inner.block)
	wg.Wait()

	if got := inner.maxActive.Load(); got != 2 {
		t.Fatalf("max concurrent calls = %d, want 2", got)
	}
	if got := inner.calls.Load(); got != 6 {
		t.Fatalf("calls = %d, want 6", got)
	}
}

func TestLimitedEmbedder_OverloadedWhenDeadlineExpires(t *testing.T) {
	inner := &mockEmbedder{
		result: domain.EmbeddingResult{Embedding: []float32{1}},
		block:  make(chan struct{}),
	}
	defer close(inner.block)
	p := NewLimitedEmbedder(inner, "test-overload", "m", LimitedOptions{MaxConcurrency: 1}, zap.NewNop())

	go func() { _, _ = p.Embed(context.Background(), "holds the slot") }()
	for inner.active.Load() < 1 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Embed(ctx, "waits")
	if !errors.Is(err, domain.ErrEncoderOverloaded) {
		t.Fatalf("expected ErrEncoderOverloaded, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped deadline error, got %v", err)
	}
}

func TestLimitedEmbedder_RateLimited(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	p := NewLimitedEmbedder(inner, "test-rate", "m",
		LimitedOptions{MaxConcurrency: 4, RequestsPerSecond: 0.001, Burst: 1}, zap.NewNop())

	if _, err := p.Embed(context.Background(), "first"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Embed(ctx, "second")
	if !errors.Is(err, domain.ErrEncoderOverloaded) {
		t.Fatalf("expected ErrEncoderOverloaded, got %v", err)
	}
}

func TestLimitedEmbedder_BatchChunks(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{0.5}, PromptTokens: 1, TotalTokens: 1,
	}}
	p := NewLimitedEmbedder(inner, "test-batch", "m", LimitedOptions{}, zap.NewNop())

	texts := make([]string, DefaultMaxAPIBatchSize*2+5)
	res, err := p.BatchEmbed(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != len(texts) {
		t.Fatalf("got %d embeddings, want %d", len(res.Embeddings), len(texts))
	}
	if res.TotalTokens != len(texts) {
		t.Fatalf("total tokens = %d, want %d", res.TotalTokens, len(texts))
	}
	if got := inner.batchCalls.Load(); got != 3 {
		t.Fatalf("batch calls = %d, want 3", got)
	}
}

func TestLimitedEmbedder_BatchEmpty(t *testing.T) {
	inner := &mockEmbedder{}
	p := NewLimitedEmbedder(inner, "test", "m", LimitedOptions{}, zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), nil)
	if err != nil || len(res.Embeddings) != 0 {
		t.Fatalf("expected empty result, got %+v %v", res, err)
	}
	if inner.batchCalls.Load() != 0 {
		t.Fatal("empty batch must not reach the provider")
	}
}

func TestLimitedEmbedder_BatchShortResult(t *testing.T) {
	inner := &mockEmbedder{batchResult: domain.BatchEmbeddingResult{Embeddings: [][]float32{{1}}}}
	p := NewLimitedEmbedder(inner, "test", "m", LimitedOptions{}, zap.NewNop())

	_, err := p.BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestLimitedEmbedder_BatchFallback(t *testing.T) {
	p := NewLimitedEmbedder(&singleEmbedder{vec: []float32{1, 2}}, "test", "m", LimitedOptions{}, zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 || res.TotalTokens != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
