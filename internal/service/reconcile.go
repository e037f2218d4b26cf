package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"podsearch/internal/domain"
	"podsearch/internal/metrics"
)

// Reconciler merges catalog snapshots into the store keyed by (kind, trackId).
type Reconciler struct {
	items     ItemStore
	txManager TransactionManager
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewReconciler(
	items ItemStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		items:     items,
		txManager: txManager,
		publisher: publisher,
		logger:    logger.With("component", "reconciler"),
		now:       time.Now,
	}
}

// Reconcile upserts every well-formed item and returns the stored rows in input order.
// Malformed items are skipped and single write failures are logged and counted.
// The batch fails only when every well-formed item failed to store.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	kind domain.Kind,
	term string,
	items []domain.ExternalItem,
) ([]domain.CatalogItem, domain.ReconcileStats, error) {
	startTime := time.Now()
	logger := r.logger.With("kind", kind, "term", term)

	stats := domain.ReconcileStats{
		Kind:    kind,
		Term:    term,
		Fetched: len(items),
	}

	stored := make([]domain.CatalogItem, 0, len(items))

	for i := range items {
		ext := items[i]

		if !ext.Valid() {
			stats.Skipped++
			metrics.ReconciledItemsTotal.WithLabelValues(string(kind), "skipped").Inc()
			logger.Debug("skipping malformed item", "track_id", ext.TrackID)
			continue
		}

		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(startTime)
			return stored, stats, fmt.Errorf("reconcile %s: %w", kind, err)
		}

		item, isNew, err := r.upsert(ctx, kind, term, ext)
		if err != nil {
			stats.Errors++
			metrics.ReconciledItemsTotal.WithLabelValues(string(kind), "error").Inc()
			logger.Warn("failed to store item",
				"track_id", ext.TrackID,
				"error", err,
			)
			continue
		}

		if isNew {
			stats.New++
			metrics.ReconciledItemsTotal.WithLabelValues(string(kind), "new").Inc()
		} else {
			stats.Updated++
			metrics.ReconciledItemsTotal.WithLabelValues(string(kind), "updated").Inc()
		}

		r.publish(ctx, logger, &item, isNew, &stats)

		stored = append(stored, item)
	}

	stats.Duration = time.Since(startTime)

	logger.Info("reconcile completed",
		"fetched", stats.Fetched,
		"new", stats.New,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
		"published", stats.Published,
		"duration", stats.Duration,
	)

	if attempted := stats.Fetched - stats.Skipped; attempted > 0 && stats.Errors == attempted {
		return stored, stats, fmt.Errorf("%w: all %d %s writes failed", domain.ErrStoreUnavailable, attempted, kind)
	}

	return stored, stats, nil
}

// upsert looks the item up and inserts or overwrites it inside one transaction.
func (r *Reconciler) upsert(ctx context.Context, kind domain.Kind, term string, ext domain.ExternalItem) (domain.CatalogItem, bool, error) {
	item := domain.FromExternal(kind, term, ext, r.now())
	isNew := false

	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := r.items.FindByTrackID(txCtx, kind, ext.TrackID)
		if err != nil {
			return fmt.Errorf("find %s %d: %w", kind, ext.TrackID, err)
		}

		if existing == nil {
			id, err := r.items.Insert(txCtx, &item)
			if err != nil {
				return fmt.Errorf("insert %s %d: %w", kind, ext.TrackID, err)
			}
			item.ID = id
			isNew = true
			return nil
		}

		item.ID = existing.ID
		item.CreatedAt = existing.CreatedAt
		if item.UpdatedAt.Before(item.CreatedAt) {
			item.UpdatedAt = item.CreatedAt
		}

		if err := r.items.Update(txCtx, &item); err != nil {
			return fmt.Errorf("update %s %d: %w", kind, ext.TrackID, err)
		}
		return nil
	})
	if err != nil {
		return domain.CatalogItem{}, false, err
	}

	return item, isNew, nil
}

func (r *Reconciler) publish(ctx context.Context, logger *slog.Logger, item *domain.CatalogItem, isNew bool, stats *domain.ReconcileStats) {
	if r.publisher == nil {
		return
	}

	if err := r.publisher.Publish(ctx, item, isNew); err != nil {
		stats.PublishErrors++
		logger.Warn("failed to publish item event",
			"track_id", item.TrackID,
			"error", err,
		)
		return
	}
	stats.Published++
}
