package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podsearch/internal/domain"
)

func TestNewItemMessage(t *testing.T) {
	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.FixedZone("AST", 3*3600))
	item := &domain.CatalogItem{
		ID:         42,
		Kind:       domain.KindEpisode,
		TrackID:    1000650000001,
		Metadata:   domain.Metadata{TrackName: "Episode 1", EpisodeURL: domain.Ptr("https://cdn.example.com/1.mp3")},
		SearchTerm: "Thmanyah",
	}

	created := NewItemMessage(item, true, now)
	assert.Equal(t, ActionCreate, created.Action)
	assert.Equal(t, domain.KindEpisode, created.Kind)
	assert.Equal(t, "42", created.Item.ID)
	assert.Equal(t, time.UTC, created.Timestamp.Location())

	updated := NewItemMessage(item, false, now)
	assert.Equal(t, ActionUpdate, updated.Action)

	body, err := json.Marshal(created)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "create", decoded["action"])

	payload := decoded["item"].(map[string]any)
	assert.Equal(t, "42", payload["id"])
	assert.Equal(t, "episode", payload["kind"])
	assert.Equal(t, "track", payload["wrapperType"])
	assert.Equal(t, "Thmanyah", payload["searchTerm"])
	assert.Equal(t, "https://cdn.example.com/1.mp3", payload["episodeUrl"])
}
