package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podsearch/internal/domain"
)

type fakeQueryService struct {
	lastTerm  string
	searchErr error
	pingErr   error
	result    *domain.SearchResult
	calls     int
}

func (f *fakeQueryService) Search(_ context.Context, term string) (*domain.SearchResult, error) {
	f.calls++
	f.lastTerm = term
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.result, nil
}

func (f *fakeQueryService) Recent(context.Context) (*domain.SearchResult, error) {
	f.calls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.result, nil
}

func (f *fakeQueryService) ByTerm(_ context.Context, term string) (*domain.SearchResult, error) {
	f.calls++
	f.lastTerm = term
	return f.result, f.searchErr
}

func (f *fakeQueryService) Ping(context.Context) error {
	return f.pingErr
}

func newTestServer(svc *fakeQueryService, opts ...ServerOption) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]ServerOption{WithLogger(logger), WithEnvironment("test")}, opts...)
	return NewServer(svc, opts...).Handler()
}

func sampleResult() *domain.SearchResult {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.NewSearchResult(
		[]domain.CatalogItem{{ID: 1, TrackID: 11, Metadata: domain.Metadata{TrackName: "Podcast"}, SearchTerm: "Thmanyah", CreatedAt: now, UpdatedAt: now}},
		[]domain.CatalogItem{{ID: 2, TrackID: 22, Metadata: domain.Metadata{TrackName: "Episode"}, SearchTerm: "Thmanyah", CreatedAt: now, UpdatedAt: now}},
	)
}

func decodeError(t *testing.T, body io.Reader) (string, string) {
	t.Helper()
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&payload))
	return payload.Error.Code, payload.Error.Message
}

func TestSearch_ReturnsBothKinds(t *testing.T) {
	svc := &fakeQueryService{result: sampleResult()}
	handler := newTestServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/search?q=Thmanyah", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "Thmanyah", svc.lastTerm)

	var body map[string][]map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body["podcasts"], 1)
	require.Len(t, body["episodes"], 1)
	assert.Equal(t, "1", body["podcasts"][0]["id"])
	assert.Equal(t, "podcast", body["podcasts"][0]["kind"])
	assert.Equal(t, "track", body["podcasts"][0]["wrapperType"])
	assert.Equal(t, "episode", body["episodes"][0]["kind"])
	assert.Equal(t, float64(22), body["episodes"][0]["trackId"])
}

func TestSearch_MissingQuery(t *testing.T) {
	for _, target := range []string{"/search", "/search?q=", "/search?q=%20%20", "/search?q=%E2%80%8B"} {
		svc := &fakeQueryService{result: sampleResult()}
		rec := httptest.NewRecorder()
		newTestServer(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		code, _ := decodeError(t, rec.Body)
		assert.Equal(t, "invalid_request", code)
		assert.Equal(t, 0, svc.calls)
	}
}

func TestSearch_QueryTooLong(t *testing.T) {
	svc := &fakeQueryService{result: sampleResult()}
	rec := httptest.NewRecorder()
	target := "/search?q=" + strings.Repeat("a", maxQueryLength+1)
	newTestServer(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, svc.calls)
}

func TestSearch_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid", err: domain.ErrInvalidInput, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "catalog", err: domain.ErrCatalogUnavailable, status: http.StatusInternalServerError, code: "catalog_unavailable"},
		{name: "store", err: domain.ErrStoreUnavailable, status: http.StatusInternalServerError, code: "store_unavailable"},
		{name: "other", err: errors.New("boom"), status: http.StatusInternalServerError, code: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeQueryService{searchErr: tt.err}
			rec := httptest.NewRecorder()
			newTestServer(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=pod", nil))

			assert.Equal(t, tt.status, rec.Code)
			code, _ := decodeError(t, rec.Body)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestRecent(t *testing.T) {
	svc := &fakeQueryService{result: domain.NewSearchResult(nil, nil)}
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/recent", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"podcasts":[],"episodes":[]}`, rec.Body.String())
}

func TestRecent_Failure(t *testing.T) {
	svc := &fakeQueryService{searchErr: domain.ErrStoreUnavailable}
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/recent", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestByTerm_DecodesPath(t *testing.T) {
	svc := &fakeQueryService{result: sampleResult()}
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/terms/true%20crime", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true crime", svc.lastTerm)
}

func TestHealth(t *testing.T) {
	svc := &fakeQueryService{}
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["database"])
	assert.Equal(t, "test", body["environment"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestHealth_StoreDown(t *testing.T) {
	svc := &fakeQueryService{pingErr: domain.ErrStoreUnavailable}
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "disconnected", body["database"])
	assert.NotEmpty(t, body["error"])
}

func TestRateLimit(t *testing.T) {
	svc := &fakeQueryService{result: sampleResult()}
	handler := newTestServer(svc, WithRateLimit(0.001, 1))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/search?q=pod", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/search?q=pod", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))

	health := httptest.NewRecorder()
	handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestRequestID_Propagated(t *testing.T) {
	svc := &fakeQueryService{result: sampleResult()}
	req := httptest.NewRequest(http.MethodGet, "/recent", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}

func TestCORS_AllowedOrigin(t *testing.T) {
	svc := &fakeQueryService{result: sampleResult()}
	handler := newTestServer(svc, WithAllowedOrigins([]string{"https://podsearch.example.com"}))

	req := httptest.NewRequest(http.MethodGet, "/recent", nil)
	req.Header.Set("Origin", "https://podsearch.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://podsearch.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/recent", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeQueryService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	code, _ := decodeError(t, rec.Body)
	assert.Equal(t, "not_found", code)
}

func TestMetricsEndpoint(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "podsearch_up 1\n")
	})
	rec := httptest.NewRecorder()
	newTestServer(&fakeQueryService{}, WithMetricsHandler(metricsHandler)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "podsearch_up")
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := recoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	code, _ := decodeError(t, rec.Body)
	assert.Equal(t, "internal_error", code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.3")
	assert.Equal(t, "203.0.113.7", clientIP(req))
}
