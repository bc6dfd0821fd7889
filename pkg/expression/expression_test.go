package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexcache/plexcache/pkg/config"
)

func TestCompileInvalidExpression(t *testing.T) {
	_, err := Compile([]string{"SizeBytes >"})
	assert.Error(t, err)
}

func TestCompileNonBoolExpression(t *testing.T) {
	_, err := Compile([]string{"SizeBytes + 1"})
	assert.Error(t, err)
}

func TestCheckMediaSingleMatch(t *testing.T) {
	expressions, err := Compile([]string{
		`Ext == ".iso"`,
		`SizeBytes > 50000000000`,
		`RegexMatch("(?i)sample")`,
	})
	require.NoError(t, err)

	tests := []struct {
		name        string
		media       *config.MediaFile
		expectMatch bool
		expectExpr  string
	}{
		{
			name:        "extension match",
			media:       &config.MediaFile{Path: "/mnt/user/media/movie.iso", Name: "movie.iso", Ext: ".iso"},
			expectMatch: true,
			expectExpr:  `Ext == ".iso"`,
		},
		{
			name:        "size match",
			media:       &config.MediaFile{Name: "big.mkv", Ext: ".mkv", SizeBytes: 60000000000},
			expectMatch: true,
			expectExpr:  `SizeBytes > 50000000000`,
		},
		{
			name:        "regex match",
			media:       &config.MediaFile{Name: "Movie.SAMPLE.mkv", Ext: ".mkv"},
			expectMatch: true,
			expectExpr:  `RegexMatch("(?i)sample")`,
		},
		{
			name:        "no match",
			media:       &config.MediaFile{Name: "show.mkv", Ext: ".mkv", SizeBytes: 1000},
			expectMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, expr, err := CheckMediaSingleMatch(tt.media, expressions)
			require.NoError(t, err)
			assert.Equal(t, tt.expectMatch, match)
			assert.Equal(t, tt.expectExpr, expr)
		})
	}
}

func TestCheckMediaSingleMatchNoExpressions(t *testing.T) {
	match, expr, err := CheckMediaSingleMatch(&config.MediaFile{Name: "a.mkv"}, nil)
	require.NoError(t, err)
	assert.False(t, match)
	assert.Empty(t, expr)
}
