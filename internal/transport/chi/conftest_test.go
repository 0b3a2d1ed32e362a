package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kailas-cloud/scisearch/internal/domain"
	"github.com/kailas-cloud/scisearch/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/scisearch/internal/usecase/health"
)

type mockSearcher struct {
	results []result.Result
	err     error
	panic   bool
	lastRaw string
	sawDead bool
}

func (m *mockSearcher) Search(ctx context.Context, raw string) ([]result.Result, error) {
	if m.panic {
		panic("boom")
	}
	m.lastRaw = raw
	_, m.sawDead = ctx.Deadline()
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func sampleResults() []result.Result {
	return []result.Result{
		result.New(domain.Document{ID: 7, Title: "Masks", Abstract: "Masks reduce spread.", URL: "https://a"}, 0),
		result.New(domain.Document{ID: 3, Title: "Vaccines", Abstract: "mRNA vaccines.", URL: "https://b"}, 1),
	}
}

func newTestRouter(t *testing.T, s Searcher, components ...healthuc.Component) http.Handler {
	t.Helper()
	return NewRouter(NewServer(s, healthuc.New(components...), nil), RouterOptions{})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
