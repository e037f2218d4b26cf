package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"podsearch/internal/cache"
	"podsearch/internal/domain"
	"podsearch/internal/telemetry"
)

const maxBodySize = 8 << 20

// Catalog is queried directly when the backend cannot answer a search.
type Catalog interface {
	FetchByTerm(ctx context.Context, term string) (domain.CatalogResults, error)
}

type Config struct {
	BackendURL    string
	CacheTTL      time.Duration
	SearchTimeout time.Duration
	RecentTimeout time.Duration
	HealthTimeout time.Duration
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s: %s", e.Status, e.Code, e.Message)
}

// Health is the decoded /health body.
type Health struct {
	Status      string    `json:"status"`
	Database    string    `json:"database"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment,omitempty"`
	Error       string    `json:"error,omitempty"`
}

func (h *Health) Healthy() bool {
	return h != nil && h.Status == "healthy"
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      cache.Cache
	catalog    Catalog
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Client)

// WithCache keeps backend search results in c for Config.CacheTTL.
func WithCache(c cache.Cache) Option {
	return func(cl *Client) {
		cl.cache = c
	}
}

// WithCatalog enables the direct catalog fallback for searches.
func WithCatalog(c Catalog) Option {
	return func(cl *Client) {
		cl.catalog = c
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func New(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: telemetry.HTTPClient(0),
		logger:     logger.With("component", "client"),
		now:        time.Now,
	}
	c.cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search asks the backend for term. When the backend fails for a reason other
// than a rejected request, the catalog is queried directly and its items are
// shaped like backend rows. An error means neither source produced results.
func (c *Client) Search(ctx context.Context, term string) (*domain.SearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, domain.ErrInvalidInput
	}

	key := searchCacheKey(term)
	if c.cache != nil {
		var cached domain.SearchResult
		found, err := cache.GetJSON(ctx, c.cache, key, &cached)
		if err != nil {
			c.logger.Warn("search cache read failed", "term", term, "error", err)
		}
		if found {
			return &cached, nil
		}
	}

	result, err := c.backendSearch(ctx, term)
	if err == nil {
		if c.cache != nil {
			if err := cache.SetJSON(ctx, c.cache, key, result, c.cfg.CacheTTL); err != nil {
				c.logger.Warn("search cache write failed", "term", term, "error", err)
			}
		}
		return result, nil
	}

	if ctx.Err() != nil {
		return nil, context.Cause(ctx)
	}

	var apiErr *APIError
	if c.catalog == nil || (errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError) {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}

	c.logger.Warn("backend search failed, querying catalog directly", "term", term, "error", err)

	fallback, fbErr := c.catalogSearch(ctx, term)
	if fbErr != nil {
		return nil, fmt.Errorf("search %q: %w", term, errors.Join(err, fbErr))
	}

	return fallback, nil
}

// Recent loads the unfiltered view. There is no catalog equivalent, so
// backend failures are returned as is.
func (c *Client) Recent(ctx context.Context) (*domain.SearchResult, error) {
	ctx, cancel := withTimeout(ctx, c.cfg.RecentTimeout)
	defer cancel()

	var result domain.SearchResult
	if err := c.get(ctx, "/recent", nil, &result); err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}
	return &result, nil
}

// Health reports backend status. An unhealthy backend still yields a Health value.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	ctx, cancel := withTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	var h Health
	err := c.get(ctx, "/health", nil, &h)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable && h.Status != "" {
		return &h, nil
	}
	if err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	return &h, nil
}

func (c *Client) backendSearch(ctx context.Context, term string) (*domain.SearchResult, error) {
	ctx, cancel := withTimeout(ctx, c.cfg.SearchTimeout)
	defer cancel()

	var result domain.SearchResult
	if err := c.get(ctx, "/search", url.Values{"q": {term}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) catalogSearch(ctx context.Context, term string) (*domain.SearchResult, error) {
	ctx, cancel := withTimeout(ctx, c.cfg.SearchTimeout)
	defer cancel()

	results, err := c.catalog.FetchByTerm(ctx, term)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	return domain.NewSearchResult(
		tag(domain.KindPodcast, term, results.Podcasts, now),
		tag(domain.KindEpisode, term, results.Episodes, now),
	), nil
}

func tag(kind domain.Kind, term string, items []domain.ExternalItem, now time.Time) []domain.CatalogItem {
	out := make([]domain.CatalogItem, 0, len(items))
	for _, ext := range items {
		if !ext.Valid() {
			continue
		}
		out = append(out, domain.FromExternal(kind, term, ext, now))
	}
	return out
}

// get decodes the JSON body into dst. Error bodies are decoded into dst too
// when they match its shape.
func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	u := c.cfg.BackendURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		_ = json.Unmarshal(body, dst)
		return apiErr
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func searchCacheKey(term string) string {
	return "search:" + strings.ToLower(term)
}
