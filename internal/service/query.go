package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"podsearch/internal/config"
	"podsearch/internal/domain"
)

// QueryService answers search, recent and by-term requests.
type QueryService struct {
	catalog    Catalog
	reconciler ItemReconciler
	items      ItemStore
	retry      config.RetryConfig
	logger     *slog.Logger
}

func NewQueryService(
	catalog Catalog,
	reconciler ItemReconciler,
	items ItemStore,
	retry config.RetryConfig,
	logger *slog.Logger,
) *QueryService {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &QueryService{
		catalog:    catalog,
		reconciler: reconciler,
		items:      items,
		retry:      retry,
		logger:     logger.With("component", "query", "catalog", catalog.ID()),
	}
}

// Search fetches term from the catalog, reconciles both kinds and returns the stored rows.
func (s *QueryService) Search(ctx context.Context, term string) (*domain.SearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: search term is required", domain.ErrInvalidInput)
	}

	results, err := s.fetch(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}

	s.logger.Debug("fetched from catalog",
		"term", term,
		"podcasts", len(results.Podcasts),
		"episodes", len(results.Episodes),
	)

	var podcasts, episodes []domain.CatalogItem

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, _, err := s.reconciler.Reconcile(gctx, domain.KindPodcast, term, results.Podcasts)
		podcasts = items
		return err
	})
	g.Go(func() error {
		items, _, err := s.reconciler.Reconcile(gctx, domain.KindEpisode, term, results.Episodes)
		episodes = items
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}

	return domain.NewSearchResult(podcasts, episodes), nil
}

// Recent returns every stored row for the most recently touched search term.
func (s *QueryService) Recent(ctx context.Context) (*domain.SearchResult, error) {
	term, found, err := s.recentTerm(ctx)
	if err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}
	if !found {
		return domain.NewSearchResult(nil, nil), nil
	}

	return s.ByTerm(ctx, term)
}

// ByTerm returns stored rows of both kinds for term, newest first. No catalog call is made.
func (s *QueryService) ByTerm(ctx context.Context, term string) (*domain.SearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: search term is required", domain.ErrInvalidInput)
	}

	var podcasts, episodes []domain.CatalogItem

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.items.ListBySearchTerm(gctx, domain.KindPodcast, term)
		if err != nil {
			return fmt.Errorf("%w: list podcasts: %w", domain.ErrStoreUnavailable, err)
		}
		podcasts = items
		return nil
	})
	g.Go(func() error {
		items, err := s.items.ListBySearchTerm(gctx, domain.KindEpisode, term)
		if err != nil {
			return fmt.Errorf("%w: list episodes: %w", domain.ErrStoreUnavailable, err)
		}
		episodes = items
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("by term %q: %w", term, err)
	}

	return domain.NewSearchResult(podcasts, episodes), nil
}

// RefreshRecent re-runs the catalog search for the most recent term.
func (s *QueryService) RefreshRecent(ctx context.Context) error {
	term, found, err := s.recentTerm(ctx)
	if err != nil {
		return fmt.Errorf("refresh recent: %w", err)
	}
	if !found {
		s.logger.Debug("nothing to refresh")
		return nil
	}

	result, err := s.Search(ctx, term)
	if err != nil {
		return fmt.Errorf("refresh recent: %w", err)
	}

	s.logger.Info("refreshed recent search",
		"term", term,
		"podcasts", len(result.Podcasts),
		"episodes", len(result.Episodes),
	)

	return nil
}

func (s *QueryService) Ping(ctx context.Context) error {
	if err := s.items.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// recentTerm compares the newest row of each kind. The later one wins and ties go
// to podcasts. The two reads are not a snapshot, so the answer is best effort.
func (s *QueryService) recentTerm(ctx context.Context) (string, bool, error) {
	podcast, err := s.items.Latest(ctx, domain.KindPodcast)
	if err != nil {
		return "", false, fmt.Errorf("%w: latest podcast: %w", domain.ErrStoreUnavailable, err)
	}

	episode, err := s.items.Latest(ctx, domain.KindEpisode)
	if err != nil {
		return "", false, fmt.Errorf("%w: latest episode: %w", domain.ErrStoreUnavailable, err)
	}

	switch {
	case podcast == nil && episode == nil:
		return "", false, nil
	case podcast == nil:
		return episode.SearchTerm, true, nil
	case episode == nil:
		return podcast.SearchTerm, true, nil
	case episode.TouchedAt().After(podcast.TouchedAt()):
		return episode.SearchTerm, true, nil
	default:
		return podcast.SearchTerm, true, nil
	}
}

func (s *QueryService) fetch(ctx context.Context, term string) (domain.CatalogResults, error) {
	var results domain.CatalogResults
	var err error

	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		results, err = s.catalog.FetchByTerm(ctx, term)
		if err == nil {
			return results, nil
		}

		if attempt == s.retry.MaxAttempts || ctx.Err() != nil || errors.Is(err, domain.ErrInvalidInput) {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("catalog request failed, retrying",
			"term", term,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return domain.CatalogResults{}, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, ctx.Err())
		case <-time.After(backoff):
		}
	}

	return domain.CatalogResults{}, fmt.Errorf("after %d attempts: %w", s.retry.MaxAttempts, err)
}

func (s *QueryService) calculateBackoff(attempt int) time.Duration {
	backoff := s.retry.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if s.retry.MaxBackoff > 0 && backoff > s.retry.MaxBackoff {
		backoff = s.retry.MaxBackoff
	}
	return backoff
}
