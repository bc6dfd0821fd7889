package pathmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsMismatchedFolders(t *testing.T) {
	_, err := New("/data/media/", "/mnt/user/media/",
		[]string{"Movies", "TV"}, []string{"movies"})
	assert.Error(t, err)
}

func TestTranslate(t *testing.T) {
	translator, err := New("/data/media/", "/mnt/user/media/",
		[]string{"Movies", "TV Shows"}, []string{"movies", "tv"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "prefix and folder rewritten",
			input:    []string{"/data/media/Movies/Heat (1995)/Heat.mkv"},
			expected: []string{"/mnt/user/media/movies/Heat (1995)/Heat.mkv"},
		},
		{
			name:     "second folder rule",
			input:    []string{"/data/media/TV Shows/Show/S01/e01.mkv"},
			expected: []string{"/mnt/user/media/tv/Show/S01/e01.mkv"},
		},
		{
			name:     "untracked prefix dropped",
			input:    []string{"/other/media/Movies/Heat.mkv"},
			expected: []string{},
		},
		{
			name: "order preserved",
			input: []string{
				"/data/media/TV Shows/Show/S01/e01.mkv",
				"/other/library/file.mkv",
				"/data/media/Movies/Heat (1995)/Heat.mkv",
			},
			expected: []string{
				"/mnt/user/media/tv/Show/S01/e01.mkv",
				"/mnt/user/media/movies/Heat (1995)/Heat.mkv",
			},
		},
		{
			name:     "empty input",
			input:    nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, translator.Translate(tt.input))
		})
	}
}

func TestTranslateFirstRuleWins(t *testing.T) {
	// both fragments appear in the path; only the first configured rule
	// is applied
	translator, err := New("/data/", "/mnt/user/",
		[]string{"Movies", "Movies 4K"}, []string{"movies", "movies-4k"})
	require.NoError(t, err)

	got := translator.Translate([]string{"/data/Movies 4K/Film/Film.mkv"})
	assert.Equal(t, []string{"/mnt/user/movies 4K/Film/Film.mkv"}, got)
}

func TestTranslateReplacesPrefixOnce(t *testing.T) {
	translator, err := New("/data/", "/mnt/user/", nil, nil)
	require.NoError(t, err)

	// the prefix fragment reappearing deeper in the path is untouched
	got := translator.Translate([]string{"/data/shows/data/file.mkv"})
	assert.Equal(t, []string{"/mnt/user/shows/data/file.mkv"}, got)
}
