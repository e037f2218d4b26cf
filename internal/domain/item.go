package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Kind discriminates the two catalog entity types kept by the store.
type Kind string

const (
	KindPodcast Kind = "podcast"
	KindEpisode Kind = "episode"
)

// WrapperTypeTrack is the catalog wrapper type shared by podcasts and episodes.
const WrapperTypeTrack = "track"

// Kinds lists every kind in the order results are reported.
var Kinds = []Kind{KindPodcast, KindEpisode}

// Entity returns the catalog entity filter for the kind.
func (k Kind) Entity() string {
	if k == KindEpisode {
		return "podcastEpisode"
	}
	return "podcast"
}

func (k Kind) Valid() bool {
	return k == KindPodcast || k == KindEpisode
}

// Metadata holds the descriptive fields copied from the catalog on every refresh.
type Metadata struct {
	TrackName              string         `db:"track_name" json:"trackName"`
	ArtistName             *string        `db:"artist_name" json:"artistName,omitempty"`
	CollectionID           *int64         `db:"collection_id" json:"collectionId,omitempty"`
	CollectionName         *string        `db:"collection_name" json:"collectionName,omitempty"`
	CollectionCensoredName *string        `db:"collection_censored_name" json:"collectionCensoredName,omitempty"`
	TrackCensoredName      *string        `db:"track_censored_name" json:"trackCensoredName,omitempty"`
	ArtworkURL30           *string        `db:"artwork_url_30" json:"artworkUrl30,omitempty"`
	ArtworkURL60           *string        `db:"artwork_url_60" json:"artworkUrl60,omitempty"`
	ArtworkURL100          *string        `db:"artwork_url_100" json:"artworkUrl100,omitempty"`
	ArtworkURL600          *string        `db:"artwork_url_600" json:"artworkUrl600,omitempty"`
	Description            *string        `db:"description" json:"description,omitempty"`
	ShortDescription       *string        `db:"short_description" json:"shortDescription,omitempty"`
	ReleaseDate            *string        `db:"release_date" json:"releaseDate,omitempty"`
	TrackCount             *int           `db:"track_count" json:"trackCount,omitempty"`
	PrimaryGenreName       *string        `db:"primary_genre_name" json:"primaryGenreName,omitempty"`
	GenreIDs               pq.StringArray `db:"genre_ids" json:"genreIds,omitempty"`
	Genres                 pq.StringArray `db:"genres" json:"genres,omitempty"`
	Country                *string        `db:"country" json:"country,omitempty"`
	FeedURL                *string        `db:"feed_url" json:"feedUrl,omitempty"`
	TrackViewURL           *string        `db:"track_view_url" json:"trackViewUrl,omitempty"`
	CollectionViewURL      *string        `db:"collection_view_url" json:"collectionViewUrl,omitempty"`
	ArtistViewURL          *string        `db:"artist_view_url" json:"artistViewUrl,omitempty"`
	PreviewURL             *string        `db:"preview_url" json:"previewUrl,omitempty"`
	TrackPrice             *float64       `db:"track_price" json:"trackPrice,omitempty"`
	CollectionPrice        *float64       `db:"collection_price" json:"collectionPrice,omitempty"`
	CollectionHDPrice      *float64       `db:"collection_hd_price" json:"collectionHdPrice,omitempty"`
	Currency               *string        `db:"currency" json:"currency,omitempty"`
	ContentAdvisoryRating  *string        `db:"content_advisory_rating" json:"contentAdvisoryRating,omitempty"`
	CollectionExplicitness *string        `db:"collection_explicitness" json:"collectionExplicitness,omitempty"`
	TrackExplicitness      *string        `db:"track_explicitness" json:"trackExplicitness,omitempty"`
	IsExplicit             *bool          `db:"is_explicit" json:"isExplicit,omitempty"`

	// Episode only.
	EpisodeURL           *string `db:"episode_url" json:"episodeUrl,omitempty"`
	EpisodeContentType   *string `db:"episode_content_type" json:"episodeContentType,omitempty"`
	EpisodeFileExtension *string `db:"episode_file_extension" json:"episodeFileExtension,omitempty"`
	EpisodeGUID          *string `db:"episode_guid" json:"episodeGuid,omitempty"`
	TrackTimeMillis      *int64  `db:"track_time_millis" json:"trackTimeMillis,omitempty"`
	EpisodeNumber        *int    `db:"episode_number" json:"episodeNumber,omitempty"`
	SeasonNumber         *int    `db:"season_number" json:"seasonNumber,omitempty"`
}

// ExternalItem is a catalog entry as returned by the upstream API.
type ExternalItem struct {
	TrackID int64 `json:"trackId"`
	Metadata
}

// Valid reports whether the item carries both mandatory fields.
func (e ExternalItem) Valid() bool {
	return e.TrackID != 0 && strings.TrimSpace(e.TrackName) != ""
}

// CatalogItem is a persisted podcast or episode row.
type CatalogItem struct {
	ID      int64 `db:"id" json:"-"`
	Kind    Kind  `db:"-" json:"-"`
	TrackID int64 `db:"track_id" json:"trackId"`
	Metadata
	SearchTerm string    `db:"search_term" json:"searchTerm"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// TouchedAt is the latest of the row's timestamps.
func (c CatalogItem) TouchedAt() time.Time {
	if c.UpdatedAt.After(c.CreatedAt) {
		return c.UpdatedAt
	}
	return c.CreatedAt
}

// FromExternal builds an unsaved row for ext as produced by a search for term.
func FromExternal(kind Kind, term string, ext ExternalItem, now time.Time) CatalogItem {
	return CatalogItem{
		Kind:       kind,
		TrackID:    ext.TrackID,
		Metadata:   ext.Metadata,
		SearchTerm: term,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ResultItem is the client-facing view of a row.
type ResultItem struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	WrapperType string `json:"wrapperType"`
	CatalogItem
}

// NewResultItem decorates item for client consumption. Rows that were never
// stored are identified by their catalog id.
func NewResultItem(item CatalogItem) ResultItem {
	id := item.ID
	if id == 0 {
		id = item.TrackID
	}
	return ResultItem{
		ID:          strconv.FormatInt(id, 10),
		Kind:        item.Kind,
		WrapperType: WrapperTypeTrack,
		CatalogItem: item,
	}
}

func Ptr[T any](v T) *T {
	return &v
}
