package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, responses map[string]APIResponse) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	for path, response := range responses {
		response := response
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			require.NoError(t, json.NewEncoder(w).Encode(response))
		})
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func episode(showKey string, season int, number int, file string) Metadata {
	return Metadata{
		Type:                 "episode",
		GrandparentRatingKey: showKey,
		ParentIndex:          season,
		Index:                number,
		Media:                []Media{{Part: []Part{{File: file}}}},
	}
}

func TestOnDeckPullsEpisodesAhead(t *testing.T) {
	leaves := make([]Metadata, 0, 6)
	for i := 1; i <= 6; i++ {
		leaves = append(leaves, episode("100", 1, i, fmt.Sprintf("/data/tv/show/e%02d.mkv", i)))
	}

	server := newTestServer(t, map[string]APIResponse{
		"/library/onDeck":                 {MediaContainer: MediaContainer{Metadata: leaves[:1]}},
		"/library/metadata/100/allLeaves": {MediaContainer: MediaContainer{Metadata: leaves}},
	})

	c := NewClient(server.URL, "token")

	tests := []struct {
		name          string
		episodesAhead int
		expected      []string
	}{
		{
			name:          "on-deck episode plus the next three",
			episodesAhead: 3,
			expected: []string{
				"/data/tv/show/e01.mkv",
				"/data/tv/show/e02.mkv",
				"/data/tv/show/e03.mkv",
				"/data/tv/show/e04.mkv",
			},
		},
		{
			name:          "a single episode ahead still follows the on-deck one",
			episodesAhead: 1,
			expected: []string{
				"/data/tv/show/e01.mkv",
				"/data/tv/show/e02.mkv",
			},
		},
		{
			name:          "zero disables the expansion",
			episodesAhead: 0,
			expected:      []string{"/data/tv/show/e01.mkv"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := c.OnDeck(context.Background(), nil, 30, tt.episodesAhead)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, files)
		})
	}
}

func TestOnDeckCrossesSeasonBoundary(t *testing.T) {
	leaves := []Metadata{
		episode("100", 1, 9, "/data/tv/show/s01e09.mkv"),
		episode("100", 1, 10, "/data/tv/show/s01e10.mkv"),
		episode("100", 2, 1, "/data/tv/show/s02e01.mkv"),
	}

	server := newTestServer(t, map[string]APIResponse{
		"/library/onDeck":                 {MediaContainer: MediaContainer{Metadata: leaves[:1]}},
		"/library/metadata/100/allLeaves": {MediaContainer: MediaContainer{Metadata: leaves}},
	})

	c := NewClient(server.URL, "token")

	files, err := c.OnDeck(context.Background(), nil, 30, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/data/tv/show/s01e09.mkv",
		"/data/tv/show/s01e10.mkv",
		"/data/tv/show/s02e01.mkv",
	}, files)
}
