package itunes

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// APIResponse is the envelope returned by the search endpoint.
type APIResponse struct {
	ResultCount int      `json:"resultCount"`
	Results     []Result `json:"results"`
}

// Result is a single podcast or episode entry.
type Result struct {
	WrapperType            string   `json:"wrapperType"`
	Kind                   string   `json:"kind"`
	TrackID                int64    `json:"trackId"`
	TrackName              string   `json:"trackName"`
	ArtistName             *string  `json:"artistName"`
	CollectionID           *int64   `json:"collectionId"`
	CollectionName         *string  `json:"collectionName"`
	CollectionCensoredName *string  `json:"collectionCensoredName"`
	TrackCensoredName      *string  `json:"trackCensoredName"`
	ArtworkURL30           *string  `json:"artworkUrl30"`
	ArtworkURL60           *string  `json:"artworkUrl60"`
	ArtworkURL100          *string  `json:"artworkUrl100"`
	ArtworkURL160          *string  `json:"artworkUrl160"`
	ArtworkURL600          *string  `json:"artworkUrl600"`
	Description            *string  `json:"description"`
	ShortDescription       *string  `json:"shortDescription"`
	ReleaseDate            *string  `json:"releaseDate"`
	TrackCount             *int     `json:"trackCount"`
	PrimaryGenreName       *string  `json:"primaryGenreName"`
	GenreIDs               []string `json:"genreIds"`
	Genres                 Genres   `json:"genres"`
	Country                *string  `json:"country"`
	FeedURL                *string  `json:"feedUrl"`
	TrackViewURL           *string  `json:"trackViewUrl"`
	CollectionViewURL      *string  `json:"collectionViewUrl"`
	ArtistViewURL          *string  `json:"artistViewUrl"`
	PreviewURL             *string  `json:"previewUrl"`
	TrackPrice             *float64 `json:"trackPrice"`
	CollectionPrice        *float64 `json:"collectionPrice"`
	CollectionHDPrice      *float64 `json:"collectionHdPrice"`
	Currency               *string  `json:"currency"`
	ContentAdvisoryRating  *string  `json:"contentAdvisoryRating"`
	CollectionExplicitness *string  `json:"collectionExplicitness"`
	TrackExplicitness      *string  `json:"trackExplicitness"`
	IsExplicit             *bool    `json:"isExplicit"`
	EpisodeURL             *string  `json:"episodeUrl"`
	EpisodeContentType     *string  `json:"episodeContentType"`
	EpisodeFileExtension   *string  `json:"episodeFileExtension"`
	EpisodeGUID            *string  `json:"episodeGuid"`
	TrackTimeMillis        *int64   `json:"trackTimeMillis"`
	EpisodeNumber          *int     `json:"episodeNumber"`
	SeasonNumber           *int     `json:"seasonNumber"`
}

// Genre is the object form used by episode results.
type Genre struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Genres accepts both ["Comedy"] and [{"name":"Comedy","id":"1303"}].
type Genres struct {
	Names []string
	IDs   []string
}

func (g *Genres) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("genres: %w", err)
	}

	g.Names = make([]string, 0, len(raw))
	for _, elem := range raw {
		elem = bytes.TrimSpace(elem)
		if len(elem) > 0 && elem[0] == '"' {
			var name string
			if err := json.Unmarshal(elem, &name); err != nil {
				return fmt.Errorf("genres: %w", err)
			}
			g.Names = append(g.Names, name)
			continue
		}

		var obj Genre
		if err := json.Unmarshal(elem, &obj); err != nil {
			return fmt.Errorf("genres: %w", err)
		}
		g.Names = append(g.Names, obj.Name)
		if obj.ID != "" {
			g.IDs = append(g.IDs, obj.ID)
		}
	}
	return nil
}

func (g Genres) MarshalJSON() ([]byte, error) {
	if g.Names == nil {
		return []byte("null"), nil
	}
	return json.Marshal(g.Names)
}
