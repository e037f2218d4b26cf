package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"podsearch/internal/domain"
)

type Catalog interface {
	ID() string
	FetchByTerm(ctx context.Context, term string) (domain.CatalogResults, error)
}

type ItemStore interface {
	FindByTrackID(ctx context.Context, kind domain.Kind, trackID int64) (*domain.CatalogItem, error)
	Insert(ctx context.Context, item *domain.CatalogItem) (int64, error)
	Update(ctx context.Context, item *domain.CatalogItem) error
	ListBySearchTerm(ctx context.Context, kind domain.Kind, term string) ([]domain.CatalogItem, error)
	Latest(ctx context.Context, kind domain.Kind) (*domain.CatalogItem, error)
	Ping(ctx context.Context) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, item *domain.CatalogItem, isNew bool) error
	Close() error
}

type ItemReconciler interface {
	Reconcile(ctx context.Context, kind domain.Kind, term string, items []domain.ExternalItem) ([]domain.CatalogItem, domain.ReconcileStats, error)
}
