package service

import (
	"context"
	"sort"
	"sync"

	"podsearch/internal/domain"
)

// memStore is an in-memory ItemStore used where the mocks would only
// restate the store semantics.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[domain.Kind][]domain.CatalogItem
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[domain.Kind][]domain.CatalogItem)}
}

func (m *memStore) FindByTrackID(_ context.Context, kind domain.Kind, trackID int64) (*domain.CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows[kind] {
		if row.TrackID == trackID {
			found := row
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memStore) Insert(_ context.Context, item *domain.CatalogItem) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	row := *item
	row.ID = m.nextID
	m.rows[item.Kind] = append(m.rows[item.Kind], row)
	return row.ID, nil
}

func (m *memStore) Update(_ context.Context, item *domain.CatalogItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.rows[item.Kind]
	for i := range rows {
		if rows[i].ID == item.ID {
			createdAt := rows[i].CreatedAt
			rows[i] = *item
			rows[i].CreatedAt = createdAt
			return nil
		}
	}
	return context.Canceled
}

func (m *memStore) ListBySearchTerm(_ context.Context, kind domain.Kind, term string) ([]domain.CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.CatalogItem{}
	for _, row := range m.rows[kind] {
		if row.SearchTerm == term {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memStore) Latest(_ context.Context, kind domain.Kind) (*domain.CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.CatalogItem
	for i := range m.rows[kind] {
		row := m.rows[kind][i]
		if latest == nil || !row.UpdatedAt.Before(latest.UpdatedAt) {
			latest = &row
		}
	}
	return latest, nil
}

func (m *memStore) Ping(context.Context) error {
	return nil
}

func (m *memStore) count(kind domain.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[kind])
}

type noTx struct{}

func (noTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
