package scisearch

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/scisearch/internal/ann"
	healthuc "github.com/kailas-cloud/scisearch/internal/usecase/health"
)

const corpusCSV = `title,abstract,url
Virus on surfaces,the virus persists on steel,https://x/0
Masks,cloth mask filtration,https://x/1
Vaccines,vaccine trial results,https://x/2
Weather,sunny days,https://x/3
`

// writeFixture saves a corpus CSV and an index built with keywordEmbedder.
func writeFixture(t *testing.T) (indexPath, csvPath string) {
	t.Helper()
	dir := t.TempDir()
	csvPath = filepath.Join(dir, "metadata.csv")
	if err := os.WriteFile(csvPath, []byte(corpusCSV), 0o600); err != nil {
		t.Fatal(err)
	}

	abstracts := []string{"the virus persists on steel", "cloth mask filtration", "vaccine trial results", "sunny days"}
	emb := &keywordEmbedder{}
	items := make([]ann.Item, len(abstracts))
	for i, a := range abstracts {
		r, err := emb.Embed(context.Background(), a)
		if err != nil {
			t.Fatal(err)
		}
		items[i] = ann.Item{ID: int64(i), Vector: r.Embedding}
	}
	idx, err := ann.Build(context.Background(), items, ann.BuildConfig{Dimensions: len(keywords) + 1, Trees: 2, Seed: 1})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	indexPath = filepath.Join(dir, "index.ann")
	if err := idx.Save(indexPath); err != nil {
		t.Fatalf("save: %v", err)
	}
	return indexPath, csvPath
}

func TestOpen_Search(t *testing.T) {
	indexPath, csvPath := writeFixture(t)
	reg := prometheus.NewRegistry()

	client, err := Open(context.Background(),
		WithIndex(indexPath),
		WithCSVCorpus(csvPath),
		WithEmbedder(&keywordEmbedder{}),
		WithResults(3, 2),
		WithPrometheus(reg),
	)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer client.Close()

	hits, err := client.Search(context.Background(), "Does the VIRUS survive?")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != 0 || hits[0].URL != "https://x/0" {
		t.Errorf("unexpected top hit: %+v", hits[0])
	}
	if math.Abs(hits[0].Similarity-1) > 1e-6 {
		t.Errorf("identical direction should have similarity 1, got %v", hits[0].Similarity)
	}
	if hits[1].Similarity > hits[0].Similarity {
		t.Errorf("hits not ordered: %+v", hits)
	}

	if got := testutil.ToFloat64(newCounter(t, reg)); got != 1 {
		t.Errorf("operations_total{search,ok} = %v, want 1", got)
	}

	h := client.Health(context.Background())
	if h.Status != "ok" || h.Checks["index"] != "ok" || h.Checks["corpus"] != "ok" {
		t.Errorf("unexpected health: %+v", h)
	}
}

// newCounter returns the search/ok series registered on reg.
func newCounter(t *testing.T, reg prometheus.Registerer) prometheus.Counter {
	t.Helper()
	m, err := newSDKMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}
	return m.operations.WithLabelValues("search", "ok")
}

func TestOpen_WithoutMmap(t *testing.T) {
	indexPath, csvPath := writeFixture(t)
	client, err := Open(context.Background(),
		WithIndex(indexPath), WithoutMmap(), WithCSVCorpus(csvPath), WithEmbedder(&keywordEmbedder{}),
	)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer client.Close()

	hits, err := client.Search(context.Background(), "mask mandates")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 || hits[0].ID != 1 {
		t.Fatalf("expected doc 1 first, got %+v", hits)
	}
}

func TestOpen_MissingOptions(t *testing.T) {
	indexPath, csvPath := writeFixture(t)
	tests := []struct {
		name string
		opts []Option
	}{
		{"no index", []Option{WithCSVCorpus(csvPath), WithEmbedder(&keywordEmbedder{})}},
		{"no corpus", []Option{WithIndex(indexPath), WithEmbedder(&keywordEmbedder{})}},
		{"no embedder", []Option{WithIndex(indexPath), WithCSVCorpus(csvPath)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Open(context.Background(), tc.opts...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestOpen_CorruptIndex(t *testing.T) {
	_, csvPath := writeFixture(t)
	bad := filepath.Join(t.TempDir(), "bad.ann")
	if err := os.WriteFile(bad, []byte("definitely not an index, but long enough to pass the size check........"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Open(context.Background(), WithIndex(bad), WithCSVCorpus(csvPath), WithEmbedder(&keywordEmbedder{}))
	if !errors.Is(err, ErrCorruptIndex) {
		t.Fatalf("expected ErrCorruptIndex, got %v", err)
	}
}

func TestSearch_InvalidQuery(t *testing.T) {
	indexPath, csvPath := writeFixture(t)
	emb := &keywordEmbedder{}
	client, err := Open(context.Background(), WithIndex(indexPath), WithCSVCorpus(csvPath), WithEmbedder(emb))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer client.Close()

	if _, err := client.Search(context.Background(), ""); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
	if emb.calls != 0 {
		t.Errorf("encoder must not run for an empty query, calls=%d", emb.calls)
	}
}

func TestSearch_MapsResults(t *testing.T) {
	ms := &mockSearch{results: sampleResults()}
	client := newMockClient(ms, nil)

	hits, err := client.Search(context.Background(), "masks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.lastRaw != "masks" {
		t.Errorf("raw query not forwarded: %q", ms.lastRaw)
	}
	if len(hits) != 2 || hits[0].ID != 4 || hits[0].Title != "Masks" || hits[1].URL != "https://x/1" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if math.Abs(hits[0].Similarity-(1-0.2*0.2/2)) > 1e-9 {
		t.Errorf("similarity = %v", hits[0].Similarity)
	}
}

func TestSearch_Error(t *testing.T) {
	client := newMockClient(&mockSearch{err: ErrEncoderOverloaded}, nil)
	if _, err := client.Search(context.Background(), "q"); !errors.Is(err, ErrEncoderOverloaded) {
		t.Fatalf("expected ErrEncoderOverloaded, got %v", err)
	}
}

func TestHealth_Maps(t *testing.T) {
	client := newMockClient(nil, &mockHealth{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"index": healthuc.CheckOK, "encoder": healthuc.CheckError},
	}})
	h := client.Health(context.Background())
	if h.Status != "degraded" || h.Checks["encoder"] != "error" || h.Checks["index"] != "ok" {
		t.Fatalf("unexpected status: %+v", h)
	}
}
