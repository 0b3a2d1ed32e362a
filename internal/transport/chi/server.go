// Package chi serves the search pipeline over HTTP.
package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/scisearch/internal/domain"
	"github.com/kailas-cloud/scisearch/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/scisearch/internal/logger"
	healthuc "github.com/kailas-cloud/scisearch/internal/usecase/health"
)

// maxBodyBytes caps the /similar request body.
const maxBodyBytes = 1 << 20

// statusClientClosedRequest is the nginx convention for a client that went away.
const statusClientClosedRequest = 499

// Error codes returned in the JSON error body.
const (
	CodeBadRequest     = "bad_request"
	CodeInvalidQuery   = "invalid_query"
	CodeNotFound       = "not_found"
	CodeMethodNotAllow = "method_not_allowed"
	CodeOverloaded     = "encoder_overloaded"
	CodeProviderError  = "embedding_provider_error"
	CodeIndexNotLoaded = "index_not_loaded"
	CodeDataIntegrity  = "data_integrity_error"
	CodeTimeout        = "timeout"
	CodeCancelled      = "request_cancelled"
	CodeInternal       = "internal_error"
)

// Searcher runs the query pipeline.
type Searcher interface {
	Search(ctx context.Context, raw string) ([]result.Result, error)
}

// HealthReporter aggregates component health.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers.
type Server struct {
	search        Searcher
	health        HealthReporter
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, health HealthReporter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		search: search,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(domain.ErrEncoderOverloaded, http.StatusServiceUnavailable, CodeOverloaded),
		sentinelHandler(domain.ErrIndexNotLoaded, http.StatusServiceUnavailable, CodeIndexNotLoaded),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout),
		sentinelHandler(context.Canceled, statusClientClosedRequest, CodeCancelled),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrIndexCorpusMismatch, http.StatusInternalServerError, CodeDataIntegrity),
		sentinelHandler(domain.ErrCorruptIndex, http.StatusInternalServerError, CodeDataIntegrity),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusInternalServerError, CodeDataIntegrity),
	}
	return s
}

// SimilarRequest is the POST /similar body.
type SimilarRequest struct {
	Query string `json:"query"`
}

// SimilarItem is one ranked abstract.
type SimilarItem struct {
	Title      string  `json:"title"`
	Abstract   string  `json:"abstract"`
	URL        string  `json:"url"`
	Similarity float64 `json:"similarity"`
}

// SimilarResponse is the POST /similar reply.
type SimilarResponse struct {
	Results []SimilarItem `json:"results"`
}

// HealthResponse is the GET /health reply.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Similar handles POST /similar.
func (s *Server) Similar(w http.ResponseWriter, r *http.Request) {
	var req SimilarRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	results, err := s.search.Search(r.Context(), req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]SimilarItem, len(results))
	for i := range results {
		items[i] = similarItem(&results[i])
	}

	writeJSON(w, http.StatusOK, SimilarResponse{Results: items})
}

// HealthCheck handles GET /health. A degraded service still answers 200.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func similarItem(r *result.Result) SimilarItem {
	return SimilarItem{
		Title:      r.Title(),
		Abstract:   r.Abstract(),
		URL:        r.URL(),
		Similarity: r.Similarity(),
	}
}

// internalErrorBody is sent when a response cannot be encoded.
const internalErrorBody = `{"code":"` + CodeInternal + `","message":"internal error"}` + "\n"

// writeJSON encodes v before committing the status, so an unencodable value
// becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(internalErrorBody)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The client sees the sentinel text only, never the wrapped chain.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContextOr(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
