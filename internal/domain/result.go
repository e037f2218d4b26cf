package domain

import "time"

// CatalogResults holds one catalog snapshot for a term, split by kind.
type CatalogResults struct {
	Podcasts []ExternalItem
	Episodes []ExternalItem
}

// SearchResult is the response shape shared by the server and the client fallback.
type SearchResult struct {
	Podcasts []ResultItem `json:"podcasts"`
	Episodes []ResultItem `json:"episodes"`
}

// NewSearchResult decorates stored rows of both kinds.
func NewSearchResult(podcasts, episodes []CatalogItem) *SearchResult {
	result := &SearchResult{
		Podcasts: make([]ResultItem, 0, len(podcasts)),
		Episodes: make([]ResultItem, 0, len(episodes)),
	}
	for _, item := range podcasts {
		item.Kind = KindPodcast
		result.Podcasts = append(result.Podcasts, NewResultItem(item))
	}
	for _, item := range episodes {
		item.Kind = KindEpisode
		result.Episodes = append(result.Episodes, NewResultItem(item))
	}
	return result
}

func (r *SearchResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Podcasts) + len(r.Episodes)
}

// ReconcileStats holds statistics about one reconciliation batch.
type ReconcileStats struct {
	Kind          Kind
	Term          string
	Fetched       int
	New           int
	Updated       int
	Skipped       int
	Errors        int
	Published     int
	PublishErrors int
	Duration      time.Duration
}
