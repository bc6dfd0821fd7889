package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `
plex:
  url: http://localhost:32400
  token: abc123
  valid_sections: [1, 2]
paths:
  plex_source: /data/media/
  real_source: /mnt/user/media/
  cache_dir: /mnt/cache/media/
  plex_library_folders: ["Movies", "TV"]
  real_library_folders: ["movies", "tv"]
`

func TestInit(t *testing.T) {
	require.NoError(t, Init(writeConfig(t, validConfig)))

	assert.Equal(t, "http://localhost:32400", Config.Plex.URL)
	assert.Equal(t, []int{1, 2}, Config.Plex.ValidSections)
	assert.Equal(t, "/mnt/cache/media/", Config.Paths.CacheDir)

	// defaults
	assert.Equal(t, 10, Config.Plex.NumberEpisodes)
	assert.Equal(t, 183, Config.Plex.DaysToMonitor)
	assert.True(t, Config.Cache.WatchlistToggle)
	assert.Equal(t, 2, Config.Performance.MaxConcurrentMovesArray)
	assert.Equal(t, 5, Config.Performance.MaxConcurrentMovesCache)

	// script folder defaults next to the cache dir
	assert.Equal(t, "/mnt/cache", Config.Paths.ScriptFolder)
}

func TestInitOverridesDefaults(t *testing.T) {
	path := writeConfig(t, validConfig+`
performance:
  max_concurrent_moves_array: 1
cache:
  watchlist_toggle: false
`)
	require.NoError(t, Init(path))

	assert.Equal(t, 1, Config.Performance.MaxConcurrentMovesArray)
	assert.Equal(t, 5, Config.Performance.MaxConcurrentMovesCache)
	assert.False(t, Config.Cache.WatchlistToggle)
}

func TestInitMissingFile(t *testing.T) {
	assert.Error(t, Init(filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestInitValidation(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{
			name: "missing token",
			config: `
plex:
  url: http://localhost:32400
paths:
  plex_source: /data/
  real_source: /mnt/user/
  cache_dir: /mnt/cache/
`,
		},
		{
			name: "missing cache dir",
			config: `
plex:
  url: http://localhost:32400
  token: abc
paths:
  plex_source: /data/
  real_source: /mnt/user/
`,
		},
		{
			name: "mismatched folder lists",
			config: `
plex:
  url: http://localhost:32400
  token: abc
paths:
  plex_source: /data/
  real_source: /mnt/user/
  cache_dir: /mnt/cache/
  plex_library_folders: ["Movies", "TV"]
  real_library_folders: ["movies"]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Init(writeConfig(t, tt.config)))
		})
	}
}

func TestArtifactPaths(t *testing.T) {
	c := &Configuration{}
	c.Paths.ScriptFolder = "/mnt/cache/scripts"

	assert.Equal(t, "/mnt/cache/scripts/plexcache_watchlist_cache.json", c.WatchlistCachePath())
	assert.Equal(t, "/mnt/cache/scripts/plexcache_watched_cache.json", c.WatchedCachePath())
	assert.Equal(t, "/mnt/cache/scripts/plexcache_mover_files_to_exclude.txt", c.MoverExcludePath())
}

func TestValidatePaths(t *testing.T) {
	root := t.TempDir()
	array := filepath.Join(root, "array")
	cache := filepath.Join(root, "cache")
	require.NoError(t, os.MkdirAll(array, 0o755))
	require.NoError(t, os.MkdirAll(cache, 0o755))

	c := &Configuration{}
	c.Paths.RealSource = array
	c.Paths.CacheDir = cache
	assert.NoError(t, c.ValidatePaths())

	c.Paths.CacheDir = filepath.Join(root, "missing")
	assert.Error(t, c.ValidatePaths())

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	c.Paths.CacheDir = file
	assert.Error(t, c.ValidatePaths())
}

func TestNewMediaFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Movie.MKV")
	require.NoError(t, os.WriteFile(path, make([]byte, 42), 0o644))

	m := NewMediaFile(path)
	assert.Equal(t, path, m.Path)
	assert.Equal(t, "Movie.MKV", m.Name)
	assert.Equal(t, ".mkv", m.Ext)
	assert.Equal(t, int64(42), m.SizeBytes)

	missing := NewMediaFile(filepath.Join(dir, "gone.mkv"))
	assert.Zero(t, missing.SizeBytes)
}

func TestMediaFileRegexMatch(t *testing.T) {
	m := &MediaFile{Name: "Show.S01E01.Sample.mkv"}

	assert.True(t, m.RegexMatch(`sample`))
	assert.False(t, m.RegexMatch(`trailer`))
	assert.True(t, m.RegexMatchAny(`trailer, sample`))
	assert.False(t, m.RegexMatchAny(`trailer, extras`))
}
