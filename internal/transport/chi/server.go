package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/valdex/internal/domain"
	"github.com/kailas-cloud/valdex/internal/metrics"
	healthuc "github.com/kailas-cloud/valdex/internal/usecase/health"
)

const maxBodyBytes = 1 << 20

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest             = "bad_request"
	CodeValidationFailed       = "validation_failed"
	CodeUnauthorized           = "unauthorized"
	CodeLLMUnavailable         = "llm_unavailable"
	CodeEmbeddingProviderError = "embedding_provider_error"
	CodeIndexUnavailable       = "index_unavailable"
	CodeInternalError          = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidateRequest is the body of POST /validate.
type ValidateRequest struct {
	Query string `json:"query"`
}

// ValidateResponse is the body of a successful POST /validate.
type ValidateResponse struct {
	Query                 string                  `json:"query"`
	QdrantResult          map[string][]string     `json:"qdrant_result"`
	LLMValidatedOutput    domain.ValidatedFilters `json:"llm_validated_output"`
	Suggestions           map[string][]string     `json:"suggestions"`
	ProcessingTimeSeconds float64                 `json:"processing_time_seconds"`
	Mode                  string                  `json:"mode"`
}

// CollectionInfo is one item of GET /collections.
type CollectionInfo struct {
	Name   string `json:"name"`
	Points uint64 `json:"points"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the validation API.
type Server struct {
	query         QueryAnswerer
	collections   CollectionLister
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	query QueryAnswerer,
	collections CollectionLister,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		query:       query,
		collections: collections,
		health:      health,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrLLMUnavailable, http.StatusBadGateway, CodeLLMUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusBadGateway, CodeIndexUnavailable),
	}
	return s
}

// Router builds the chi router with the full middleware stack.
// apiKeys enables bearer authentication when non-empty.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Post("/validate", s.Validate)
	r.Get("/collections", s.ListCollections)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// Validate handles POST /validate.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	ans, err := s.query.Answer(ctx, req.Query)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, answerToResponse(ans))
}

// ListCollections handles GET /collections.
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.collections.ListCollections(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]CollectionInfo, 0, len(names))
	for _, name := range names {
		n, err := s.collections.Count(r.Context(), name)
		if err != nil {
			// коллекцию могли пересоздать между List и Count
			s.logger.Warn("Count collection failed", zap.String("collection", name), zap.Error(err))
			continue
		}
		items = append(items, CollectionInfo{Name: name, Points: n})
	}

	writeJSON(w, http.StatusOK, items)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
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

func answerToResponse(ans domain.Answer) ValidateResponse {
	resp := ValidateResponse{
		Query:                 ans.Query,
		QdrantResult:          ans.Retrieval,
		LLMValidatedOutput:    ans.Validated,
		Suggestions:           ans.Suggestions,
		ProcessingTimeSeconds: ans.ProcessingTimeSeconds,
		Mode:                  ans.Mode,
	}
	if resp.QdrantResult == nil {
		resp.QdrantResult = map[string][]string{}
	}
	if resp.Suggestions == nil {
		resp.Suggestions = map[string][]string{}
	}
	if resp.Mode == "" {
		resp.Mode = domain.ModeLive
	}
	return resp
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Calls() > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrLLMUnavailable,
		domain.ErrEmbeddingProviderError,
		domain.ErrIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
