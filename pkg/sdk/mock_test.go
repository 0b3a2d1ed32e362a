package scisearch

import (
	"context"
	"strings"

	"github.com/kailas-cloud/scisearch/internal/domain"
	"github.com/kailas-cloud/scisearch/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/scisearch/internal/usecase/health"
)

type mockSearch struct {
	results []result.Result
	err     error
	lastRaw string
}

func (m *mockSearch) Search(_ context.Context, raw string) ([]result.Result, error) {
	m.lastRaw = raw
	return m.results, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// keywordEmbedder maps a text onto one axis per known keyword.
type keywordEmbedder struct {
	calls int
	err   error
}

var keywords = []string{"virus", "mask", "vaccine"}

func (k *keywordEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	k.calls++
	if k.err != nil {
		return EmbeddingResult{}, k.err
	}
	vec := make([]float32, len(keywords)+1)
	for i, w := range keywords {
		if strings.Contains(text, w) {
			vec[i] = 1
			return EmbeddingResult{Embedding: vec, PromptTokens: 1, TotalTokens: 1}, nil
		}
	}
	vec[len(keywords)] = 1
	return EmbeddingResult{Embedding: vec, PromptTokens: 1, TotalTokens: 1}, nil
}

func newMockClient(s searchUseCase, h healthUseCase) *Client {
	return &Client{searchSvc: s, healthSvc: h}
}

func sampleResults() []result.Result {
	return []result.Result{
		result.New(domain.Document{ID: 4, Title: "Masks", Abstract: "cloth masks", URL: "https://x/4"}, 0.2),
		result.New(domain.Document{ID: 1, Title: "Virus", Abstract: "", URL: "https://x/1"}, 0.9),
	}
}
