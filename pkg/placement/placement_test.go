package placement

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/scylladb/go-set/strset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexcache/plexcache/pkg/mover"
	"github.com/plexcache/plexcache/pkg/tiers"
)

type fixture struct {
	layout  *tiers.Layout
	exclude string
}

func newFixture(t *testing.T, storageManager bool) *fixture {
	t.Helper()

	root := t.TempDir()
	layout := &tiers.Layout{
		RealSource:     filepath.Join(root, "array"),
		CacheDir:       filepath.Join(root, "cache"),
		StorageManager: storageManager,
	}

	require.NoError(t, os.MkdirAll(layout.RealSource, 0o755))
	require.NoError(t, os.MkdirAll(layout.CacheDir, 0o755))

	return &fixture{
		layout:  layout,
		exclude: filepath.Join(root, "exclude.txt"),
	}
}

func (f *fixture) arrayFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(f.layout.RealSource, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func (f *fixture) cacheFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(f.layout.CacheDir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestDecideUnknownTier(t *testing.T) {
	f := newFixture(t, false)
	d := New(f.layout, tiers.Mode{}, f.exclude)

	_, _, err := d.Decide([]string{"/a"}, tiers.Unknown, nil, nil)
	assert.ErrorIs(t, err, tiers.ErrUnknownTier)
}

func TestDecideCacheIncludesMissingCopies(t *testing.T) {
	f := newFixture(t, false)
	d := New(f.layout, tiers.Mode{}, f.exclude)

	a := f.arrayFile(t, "show/s01e01.mkv")
	b := f.arrayFile(t, "show/s01e02.mkv")
	f.cacheFile(t, "show/s01e02.mkv")

	selected, reclaimed, err := d.Decide([]string{a, b}, tiers.Cache, nil, nil)
	require.NoError(t, err)

	// b's cache placement is already satisfied, so only its redundant
	// array copy goes
	assert.Equal(t, []string{a}, selected)
	assert.NoFileExists(t, f.layout.ArrayPath(b))
	assert.Len(t, reclaimed, 1)
}

func TestDecideCacheReclaimsArrayCopy(t *testing.T) {
	f := newFixture(t, false)
	d := New(f.layout, tiers.Mode{}, f.exclude)

	a := f.arrayFile(t, "movie.mkv")
	cachePath := f.cacheFile(t, "movie.mkv")

	selected, reclaimed, err := d.Decide([]string{a}, tiers.Cache, nil, nil)
	require.NoError(t, err)

	assert.Empty(t, selected)
	assert.NoFileExists(t, a)
	assert.FileExists(t, cachePath)

	require.Len(t, reclaimed, 1)
	assert.Equal(t, a, reclaimed[0].Path)
	assert.Equal(t, tiers.Array, reclaimed[0].Tier)
	assert.Equal(t, int64(1), reclaimed[0].Size)
}

func TestDecideArrayReclaimsCacheCopy(t *testing.T) {
	f := newFixture(t, false)
	d := New(f.layout, tiers.Mode{}, f.exclude)

	a := f.arrayFile(t, "movie.mkv")
	cachePath := f.cacheFile(t, "movie.mkv")

	selected, reclaimed, err := d.Decide([]string{a}, tiers.Array, nil, nil)
	require.NoError(t, err)

	assert.Empty(t, selected)
	assert.NoFileExists(t, cachePath)
	assert.FileExists(t, a)

	require.Len(t, reclaimed, 1)
	assert.Equal(t, cachePath, reclaimed[0].Path)
	assert.Equal(t, tiers.Cache, reclaimed[0].Tier)
}

func TestDecideArrayRespectsCacheBound(t *testing.T) {
	f := newFixture(t, false)
	d := New(f.layout, tiers.Mode{}, f.exclude)

	a := f.arrayFile(t, "movie.mkv")
	cachePath := f.cacheFile(t, "movie.mkv")

	selected, reclaimed, err := d.Decide([]string{a}, tiers.Array, strset.New(a), nil)
	require.NoError(t, err)

	// the cache-bound decision wins and nothing is reclaimed
	assert.Empty(t, selected)
	assert.Empty(t, reclaimed)
	assert.FileExists(t, cachePath)
	assert.FileExists(t, a)
}

func TestDecideArraySelectsCacheOnlyFiles(t *testing.T) {
	f := newFixture(t, false)
	d := New(f.layout, tiers.Mode{}, f.exclude)

	logical := filepath.Join(f.layout.RealSource, "show/s01e01.mkv")
	f.cacheFile(t, "show/s01e01.mkv")

	selected, _, err := d.Decide([]string{logical}, tiers.Array, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{logical}, selected)
}

func TestDecideSkipsActiveAndDuplicates(t *testing.T) {
	f := newFixture(t, false)
	d := New(f.layout, tiers.Mode{}, f.exclude)

	a := f.arrayFile(t, "a.mkv")
	b := f.arrayFile(t, "b.mkv")

	selected, _, err := d.Decide([]string{a, a, b}, tiers.Cache, nil, strset.New(b))
	require.NoError(t, err)
	assert.Equal(t, []string{a}, selected)
}

func TestDecideWritesExclusionArtifact(t *testing.T) {
	f := newFixture(t, true)
	d := New(f.layout, tiers.Mode{StorageManager: true}, f.exclude)

	a := f.arrayFile(t, "a.mkv")
	b := f.arrayFile(t, "b.mkv")
	f.cacheFile(t, "b.mkv")

	_, _, err := d.Decide([]string{a, b}, tiers.Cache, nil, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(f.exclude)
	require.NoError(t, err)

	// every input appears as its cache-equivalent path, selected or not
	expected := f.layout.CachePath(a) + "\n" + f.layout.CachePath(b) + "\n"
	assert.Equal(t, expected, string(data))
}

func TestDecideThenMoveIsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	d := New(f.layout, tiers.Mode{}, f.exclude)
	mv := mover.New(f.layout, tiers.Mode{})

	// promotion settles after one pass
	a := f.arrayFile(t, "show/s01e01.mkv")
	b := f.arrayFile(t, "movie.mkv")

	first, _, err := d.Decide([]string{a, b}, tiers.Cache, nil, nil)
	require.NoError(t, err)
	require.Equal(t, []string{a, b}, first)

	failed, err := mv.Move(first, tiers.Cache, 2, 2)
	require.NoError(t, err)
	require.Zero(t, failed)

	second, reclaimed, err := d.Decide([]string{a, b}, tiers.Cache, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Empty(t, reclaimed)
	assert.FileExists(t, f.layout.CachePath(a))
	assert.FileExists(t, f.layout.CachePath(b))

	// and so does demotion
	c := f.cacheFile(t, "old.mkv")
	logical := filepath.Join(f.layout.RealSource, "old.mkv")

	first, _, err = d.Decide([]string{logical}, tiers.Array, nil, nil)
	require.NoError(t, err)
	require.Equal(t, []string{logical}, first)

	failed, err = mv.Move(first, tiers.Array, 2, 2)
	require.NoError(t, err)
	require.Zero(t, failed)

	second, reclaimed, err = d.Decide([]string{logical}, tiers.Array, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Empty(t, reclaimed)
	assert.NoFileExists(t, c)
	assert.FileExists(t, f.layout.ArrayPath(logical))
}
