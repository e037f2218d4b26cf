package itunes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"podsearch/internal/cache"
	"podsearch/internal/domain"
	"podsearch/internal/metrics"
	"podsearch/internal/telemetry"
)

const (
	SourceID  = "itunes"
	mediaType = "podcast"

	maxBodyBytes = 4 << 20
)

// Config holds iTunes catalog configuration.
type Config struct {
	BaseURL  string
	Limit    int
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Source queries the iTunes Search API.
type Source struct {
	httpClient *http.Client
	baseURL    string
	limit      int
	cache      cache.Cache
	cacheTTL   time.Duration
	logger     *slog.Logger
}

type Option func(*Source)

// WithCache keeps raw responses in c for the configured TTL.
func WithCache(c cache.Cache) Option {
	return func(s *Source) {
		s.cache = c
	}
}

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) {
		s.httpClient = c
	}
}

func New(cfg Config, logger *slog.Logger, opts ...Option) *Source {
	s := &Source{
		httpClient: telemetry.HTTPClient(cfg.Timeout),
		baseURL:    cfg.BaseURL,
		limit:      cfg.Limit,
		cacheTTL:   cfg.CacheTTL,
		logger:     logger.With("source", SourceID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) ID() string {
	return SourceID
}

// FetchByTerm runs the podcast and episode queries for term concurrently.
// Any failure is reported as domain.ErrCatalogUnavailable.
func (s *Source) FetchByTerm(ctx context.Context, term string) (domain.CatalogResults, error) {
	var results domain.CatalogResults

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.Fetch(gctx, domain.KindPodcast, term)
		results.Podcasts = items
		return err
	})
	g.Go(func() error {
		items, err := s.Fetch(gctx, domain.KindEpisode, term)
		results.Episodes = items
		return err
	})

	if err := g.Wait(); err != nil {
		return domain.CatalogResults{}, err
	}

	return results, nil
}

// Fetch runs a single entity-filtered query.
func (s *Source) Fetch(ctx context.Context, kind domain.Kind, term string) ([]domain.ExternalItem, error) {
	entity := kind.Entity()
	key := s.cacheKey(entity, term)

	if data, ok := s.cached(ctx, key); ok {
		resp, err := decode(data)
		if err == nil {
			return s.transform(resp.Results), nil
		}
		s.logger.Warn("discarding bad cache entry", "key", key, "error", err)
	}

	start := time.Now()
	data, err := s.doRequest(ctx, s.searchURL(entity, term))
	metrics.CatalogRequestDuration.WithLabelValues(entity).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues(entity, "error").Inc()
		return nil, fmt.Errorf("%w: %s %q: %w", domain.ErrCatalogUnavailable, entity, term, err)
	}

	resp, err := decode(data)
	if err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues(entity, "error").Inc()
		return nil, fmt.Errorf("%w: %s %q: %w", domain.ErrCatalogUnavailable, entity, term, err)
	}
	metrics.CatalogRequestsTotal.WithLabelValues(entity, "ok").Inc()

	s.logger.Debug("fetched",
		"entity", entity,
		"term", term,
		"results", resp.ResultCount,
	)

	s.store(ctx, key, data)

	return s.transform(resp.Results), nil
}

func (s *Source) searchURL(entity, term string) string {
	q := url.Values{}
	q.Set("term", term)
	q.Set("media", mediaType)
	q.Set("entity", entity)
	q.Set("limit", strconv.Itoa(s.limit))
	return s.baseURL + "?" + q.Encode()
}

func (s *Source) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "PodSearch/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return data, nil
}

func decode(data []byte) (*APIResponse, error) {
	var apiResp APIResponse
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &apiResp, nil
}

func (s *Source) cacheKey(entity, term string) string {
	return fmt.Sprintf("itunes:%s:%d:%s", entity, s.limit, strings.ToLower(strings.TrimSpace(term)))
}

func (s *Source) cached(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil, false
	}
	data, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !found {
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.Inc()
	return data, true
}

func (s *Source) store(ctx context.Context, key string, data []byte) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// transform maps results to domain items. Validation is left to the caller.
func (s *Source) transform(results []Result) []domain.ExternalItem {
	items := make([]domain.ExternalItem, 0, len(results))

	for _, r := range results {
		genreIDs := r.GenreIDs
		if len(genreIDs) == 0 {
			genreIDs = r.Genres.IDs
		}

		artwork600 := r.ArtworkURL600
		if artwork600 == nil {
			artwork600 = r.ArtworkURL160
		}

		items = append(items, domain.ExternalItem{
			TrackID: r.TrackID,
			Metadata: domain.Metadata{
				TrackName:              r.TrackName,
				ArtistName:             r.ArtistName,
				CollectionID:           r.CollectionID,
				CollectionName:         r.CollectionName,
				CollectionCensoredName: r.CollectionCensoredName,
				TrackCensoredName:      r.TrackCensoredName,
				ArtworkURL30:           r.ArtworkURL30,
				ArtworkURL60:           r.ArtworkURL60,
				ArtworkURL100:          r.ArtworkURL100,
				ArtworkURL600:          artwork600,
				Description:            r.Description,
				ShortDescription:       r.ShortDescription,
				ReleaseDate:            r.ReleaseDate,
				TrackCount:             r.TrackCount,
				PrimaryGenreName:       r.PrimaryGenreName,
				GenreIDs:               genreIDs,
				Genres:                 r.Genres.Names,
				Country:                r.Country,
				FeedURL:                r.FeedURL,
				TrackViewURL:           r.TrackViewURL,
				CollectionViewURL:      r.CollectionViewURL,
				ArtistViewURL:          r.ArtistViewURL,
				PreviewURL:             r.PreviewURL,
				TrackPrice:             r.TrackPrice,
				CollectionPrice:        r.CollectionPrice,
				CollectionHDPrice:      r.CollectionHDPrice,
				Currency:               r.Currency,
				ContentAdvisoryRating:  r.ContentAdvisoryRating,
				CollectionExplicitness: r.CollectionExplicitness,
				TrackExplicitness:      r.TrackExplicitness,
				IsExplicit:             isExplicit(r),
				EpisodeURL:             r.EpisodeURL,
				EpisodeContentType:     r.EpisodeContentType,
				EpisodeFileExtension:   r.EpisodeFileExtension,
				EpisodeGUID:            r.EpisodeGUID,
				TrackTimeMillis:        r.TrackTimeMillis,
				EpisodeNumber:          r.EpisodeNumber,
				SeasonNumber:           r.SeasonNumber,
			},
		})
	}

	return items
}

func isExplicit(r Result) *bool {
	if r.IsExplicit != nil {
		return r.IsExplicit
	}
	if r.TrackExplicitness == nil && r.CollectionExplicitness == nil {
		return nil
	}
	explicit := deref(r.TrackExplicitness) == "explicit" || deref(r.CollectionExplicitness) == "explicit"
	return &explicit
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
