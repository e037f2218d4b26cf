package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"podsearch/internal/domain"
)

var commonColumns = []string{
	"track_id",
	"track_name",
	"artist_name",
	"collection_id",
	"collection_name",
	"collection_censored_name",
	"track_censored_name",
	"artwork_url_30",
	"artwork_url_60",
	"artwork_url_100",
	"artwork_url_600",
	"description",
	"short_description",
	"release_date",
	"track_count",
	"primary_genre_name",
	"genre_ids",
	"genres",
	"country",
	"feed_url",
	"track_view_url",
	"collection_view_url",
	"artist_view_url",
	"preview_url",
	"track_price",
	"collection_price",
	"collection_hd_price",
	"currency",
	"content_advisory_rating",
	"collection_explicitness",
	"track_explicitness",
	"is_explicit",
}

var episodeColumns = []string{
	"episode_url",
	"episode_content_type",
	"episode_file_extension",
	"episode_guid",
	"track_time_millis",
	"episode_number",
	"season_number",
}

// table describes the per-kind SQL statements.
type table struct {
	name       string
	selectCols string
	insertSQL  string
	updateSQL  string
}

func newTable(name string, columns []string) table {
	writeCols := append(append([]string{}, columns...), "search_term")

	named := make([]string, len(writeCols))
	sets := make([]string, len(writeCols))
	for i, c := range writeCols {
		named[i] = ":" + c
		sets[i] = c + " = :" + c
	}

	return table{
		name:       name,
		selectCols: "id, " + strings.Join(columns, ", ") + ", search_term, created_at, updated_at",
		insertSQL: fmt.Sprintf(
			"INSERT INTO %s (%s, created_at, updated_at) VALUES (%s, :created_at, :updated_at) RETURNING id",
			name, strings.Join(writeCols, ", "), strings.Join(named, ", "),
		),
		updateSQL: fmt.Sprintf(
			"UPDATE %s SET %s, updated_at = :updated_at WHERE id = :id",
			name, strings.Join(sets, ", "),
		),
	}
}

var tables = map[domain.Kind]table{
	domain.KindPodcast: newTable("podcasts", commonColumns),
	domain.KindEpisode: newTable("episodes", append(append([]string{}, commonColumns...), episodeColumns...)),
}

// ItemStore persists podcasts and episodes, one table per kind.
type ItemStore struct {
	db *sqlx.DB
}

func NewItemStore(db *sqlx.DB) *ItemStore {
	return &ItemStore{db: db}
}

func tableFor(kind domain.Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, fmt.Errorf("unknown kind %q", kind)
	}
	return t, nil
}

// FindByTrackID returns the oldest row for trackID, or nil when none exists.
func (s *ItemStore) FindByTrackID(ctx context.Context, kind domain.Kind, trackID int64) (*domain.CatalogItem, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE track_id = $1 ORDER BY id LIMIT 1", t.selectCols, t.name)

	var item domain.CatalogItem
	if err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &item, query, trackID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	item.Kind = kind

	return &item, nil
}

// Insert stores a new row and returns its id.
func (s *ItemStore) Insert(ctx context.Context, item *domain.CatalogItem) (int64, error) {
	t, err := tableFor(item.Kind)
	if err != nil {
		return 0, err
	}

	query, args, err := sqlx.Named(t.insertSQL, item)
	if err != nil {
		return 0, fmt.Errorf("bind insert: %w", err)
	}

	var id int64
	if err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, s.db.Rebind(query), args...).Scan(&id); err != nil {
		return 0, err
	}

	return id, nil
}

// Update overwrites the descriptive fields, search term and updated_at of item.ID.
// created_at is never written.
func (s *ItemStore) Update(ctx context.Context, item *domain.CatalogItem) error {
	t, err := tableFor(item.Kind)
	if err != nil {
		return err
	}

	query, args, err := sqlx.Named(t.updateSQL, item)
	if err != nil {
		return fmt.Errorf("bind update: %w", err)
	}

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s row %d: %w", t.name, item.ID, sql.ErrNoRows)
	}

	return nil
}

// ListBySearchTerm returns every row last touched by term, newest first.
func (s *ItemStore) ListBySearchTerm(ctx context.Context, kind domain.Kind, term string) ([]domain.CatalogItem, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE search_term = $1 ORDER BY created_at DESC, id DESC",
		t.selectCols, t.name,
	)

	items := []domain.CatalogItem{}
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &items, query, term); err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Kind = kind
	}

	return items, nil
}

// Latest returns the most recently touched row of kind, or nil for an empty table.
func (s *ItemStore) Latest(ctx context.Context, kind domain.Kind) (*domain.CatalogItem, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY updated_at DESC, id DESC LIMIT 1",
		t.selectCols, t.name,
	)

	var item domain.CatalogItem
	if err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &item, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	item.Kind = kind

	return &item, nil
}

func (s *ItemStore) Ping(ctx context.Context) error {
	var one int
	return s.db.GetContext(ctx, &one, "SELECT 1")
}
