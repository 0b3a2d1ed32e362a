package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/scisearch/internal/domain"
	"github.com/kailas-cloud/scisearch/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/scisearch/internal/usecase/health"
)

func TestSimilar_OK(t *testing.T) {
	s := &mockSearcher{results: sampleResults()}
	rec := do(t, newTestRouter(t, s), http.MethodPost, "/similar", `{"query":"do masks work?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if s.lastRaw != "do masks work?" {
		t.Errorf("raw query = %q", s.lastRaw)
	}

	var resp SimilarResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d", len(resp.Results))
	}
	first := resp.Results[0]
	if first.Title != "Masks" || first.Abstract != "Masks reduce spread." || first.URL != "https://a" {
		t.Errorf("unexpected first result: %+v", first)
	}
	if first.Similarity != 1 {
		t.Errorf("similarity at distance 0 = %v, want 1", first.Similarity)
	}
	if math.Abs(resp.Results[1].Similarity-0.5) > 1e-12 {
		t.Errorf("similarity at distance 1 = %v, want 0.5", resp.Results[1].Similarity)
	}
}

func TestSimilar_EmptyResultsIsArray(t *testing.T) {
	rec := do(t, newTestRouter(t, &mockSearcher{}), http.MethodPost, "/similar", `{"query":"the of and"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Errorf("expected empty array, got %s", rec.Body)
	}
}

func TestSimilar_UnencodableResultIs500(t *testing.T) {
	s := &mockSearcher{results: []result.Result{
		result.New(domain.Document{ID: 1, Title: "Broken"}, math.NaN()),
	}}
	rec := do(t, newTestRouter(t, s), http.MethodPost, "/similar", `{"query":"x"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("body must be a JSON error, got %q: %v", rec.Body.String(), err)
	}
	if resp.Code != CodeInternal {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestSimilar_BadBody(t *testing.T) {
	s := &mockSearcher{}
	for _, body := range []string{"", "{", `{"query": 5}`} {
		rec := do(t, newTestRouter(t, s), http.MethodPost, "/similar", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d", body, rec.Code)
		}
		var resp ErrorResponse
		_ = json.NewDecoder(rec.Body).Decode(&resp)
		if resp.Code != CodeBadRequest {
			t.Errorf("body %q: code = %q", body, resp.Code)
		}
	}
}

func TestSimilar_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery},
		{domain.ErrEncoderOverloaded, http.StatusServiceUnavailable, CodeOverloaded},
		{domain.ErrIndexNotLoaded, http.StatusServiceUnavailable, CodeIndexNotLoaded},
		{domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeProviderError},
		{domain.ErrIndexCorpusMismatch, http.StatusInternalServerError, CodeDataIntegrity},
		{domain.ErrCorruptIndex, http.StatusInternalServerError, CodeDataIntegrity},
		{domain.NewDimensionError(768, 3), http.StatusInternalServerError, CodeDataIntegrity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout},
		{context.Canceled, statusClientClosedRequest, CodeCancelled},
		{errors.New("disk on fire"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.code+"/"+tc.err.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("search: %w", tc.err)
			rec := do(t, newTestRouter(t, &mockSearcher{err: wrapped}), http.MethodPost, "/similar", `{"query":"x"}`)

			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tc.code {
				t.Errorf("code = %q, want %q", resp.Code, tc.code)
			}
			if strings.Contains(resp.Message, "search:") || strings.Contains(resp.Message, "disk") {
				t.Errorf("message leaks internals: %q", resp.Message)
			}
		})
	}
}

func TestSimilar_RequestTimeoutSetsDeadline(t *testing.T) {
	s := &mockSearcher{}
	h := NewRouter(NewServer(s, healthuc.New(), nil), RouterOptions{RequestTimeout: time.Second})
	do(t, h, http.MethodPost, "/similar", `{"query":"x"}`)
	if !s.sawDead {
		t.Error("expected a deadline on the request context")
	}

	s = &mockSearcher{}
	do(t, newTestRouter(t, s), http.MethodPost, "/similar", `{"query":"x"}`)
	if s.sawDead {
		t.Error("no timeout configured, expected no deadline")
	}
}

func TestRecoverer_ReturnsJSON(t *testing.T) {
	rec := do(t, newTestRouter(t, &mockSearcher{panic: true}), http.MethodPost, "/similar", `{"query":"x"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != CodeInternal {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestHealth(t *testing.T) {
	ok := healthuc.CheckerFunc(func(context.Context) error { return nil })
	bad := healthuc.CheckerFunc(func(context.Context) error { return errors.New("down") })

	tests := []struct {
		name       string
		components []healthuc.Component
		status     int
		body       string
	}{
		{"healthy", []healthuc.Component{{Name: "index", Checker: ok, Critical: true}}, http.StatusOK, "ok"},
		{"degraded", []healthuc.Component{
			{Name: "index", Checker: ok, Critical: true},
			{Name: "cache", Checker: bad},
		}, http.StatusOK, "degraded"},
		{"unhealthy", []healthuc.Component{{Name: "corpus", Checker: bad, Critical: true}}, http.StatusServiceUnavailable, "error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, newTestRouter(t, &mockSearcher{}, tc.components...), http.MethodGet, "/health", "")
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tc.body {
				t.Errorf("status = %q, want %q", resp.Status, tc.body)
			}
			if len(resp.Checks) != len(tc.components) {
				t.Errorf("checks = %v", resp.Checks)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, &mockSearcher{})
	do(t, h, http.MethodGet, "/health", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "scisearch_http_requests_total") {
		t.Error("expected HTTP metrics in exposition")
	}
}

func TestRouting_JSONFallbacks(t *testing.T) {
	h := newTestRouter(t, &mockSearcher{})

	rec := do(t, h, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/similar", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /similar status = %d", rec.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Code != CodeMethodNotAllow {
		t.Errorf("unexpected body: %+v, %v", resp, err)
	}
}
