package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"podsearch/internal/domain"
	"podsearch/internal/textutil"
)

const maxQueryLength = 200

type QueryService interface {
	Search(ctx context.Context, term string) (*domain.SearchResult, error)
	Recent(ctx context.Context) (*domain.SearchResult, error)
	ByTerm(ctx context.Context, term string) (*domain.SearchResult, error)
	Ping(ctx context.Context) error
}

type Server struct {
	query          QueryService
	logger         *slog.Logger
	environment    string
	allowedOrigins []string
	rateLimitRPS   float64
	rateLimitBurst int
	healthTimeout  time.Duration
	metrics        http.Handler
	now            func() time.Time
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithEnvironment(env string) ServerOption {
	return func(s *Server) {
		s.environment = env
	}
}

func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateLimitRPS = rps
		s.rateLimitBurst = burst
	}
}

func WithHealthTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.healthTimeout = d
	}
}

// WithMetricsHandler serves h on /metrics instead of the default registry.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

func NewServer(query QueryService, options ...ServerOption) *Server {
	server := &Server{
		query:          query,
		logger:         slog.Default(),
		environment:    "development",
		allowedOrigins: []string{"http://localhost:3000"},
		rateLimitRPS:   20,
		rateLimitBurst: 40,
		healthTimeout:  5 * time.Second,
		metrics:        promhttp.Handler(),
		now:            time.Now,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(recoveryMiddleware(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(loggingMiddleware(s.logger))
	r.Use(metricsMiddleware)
	r.Use(rateLimitMiddleware(s.rateLimitRPS, s.rateLimitBurst))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics)
	r.Get("/search", s.handleSearch)
	r.Get("/recent", s.handleRecent)
	r.Get("/terms/{term}", s.handleByTerm)

	return otelhttp.NewHandler(r, "podsearch",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
}

type healthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Database    string    `json:"database"`
	Environment string    `json:"environment,omitempty"`
	Error       string    `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.healthTimeout)
	defer cancel()

	if err := s.query.Ping(ctx); err != nil {
		s.logger.Error("health check failed",
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:    "unhealthy",
			Timestamp: s.now().UTC(),
			Database:  "disconnected",
			Error:     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		Timestamp:   s.now().UTC(),
		Database:    "connected",
		Environment: s.environment,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term, ok := s.termParam(w, r.URL.Query().Get("q"))
	if !ok {
		return
	}

	result, err := s.query.Search(r.Context(), term)
	if err != nil {
		s.writeServiceError(w, r, "search", term, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	result, err := s.query.Recent(r.Context())
	if err != nil {
		s.writeServiceError(w, r, "recent", "", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleByTerm(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "term")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid term encoding")
			return
		}
		raw = unescaped
	}

	term, ok := s.termParam(w, raw)
	if !ok {
		return
	}

	result, err := s.query.ByTerm(r.Context(), term)
	if err != nil {
		s.writeServiceError(w, r, "by_term", term, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) termParam(w http.ResponseWriter, raw string) (string, bool) {
	term := textutil.Sanitize(raw)
	if term == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "search query is required")
		return "", false
	}
	if utf8.RuneCountInString(term) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request",
			fmt.Sprintf("query too long (max %d characters)", maxQueryLength))
		return "", false
	}
	return term, true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op, term string, err error) {
	if errors.Is(err, domain.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, "invalid_request", "search query is required")
		return
	}

	s.logger.Error("request failed",
		slog.String("request_id", RequestIDFromContext(r.Context())),
		slog.String("op", op),
		slog.String("term", truncate(term, 80)),
		slog.String("error", err.Error()),
	)

	switch {
	case errors.Is(err, domain.ErrCatalogUnavailable):
		writeError(w, http.StatusInternalServerError, "catalog_unavailable", "failed to fetch results from the catalog")
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusInternalServerError, "store_unavailable", "failed to read or store results")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusInternalServerError, "timeout", "request timed out")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
