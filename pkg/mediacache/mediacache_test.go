package mediacache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "cache.json"))

	fetchedAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save([]string{"/mnt/user/media/a.mkv", "/mnt/user/media/b.mkv"}, fetchedAt))

	media, ts, err := store.Load()
	require.NoError(t, err)

	assert.True(t, media.Has("/mnt/user/media/a.mkv"))
	assert.True(t, media.Has("/mnt/user/media/b.mkv"))
	assert.Equal(t, 2, media.Size())
	assert.WithinDuration(t, fetchedAt, ts, time.Millisecond)
}

func TestStoreLoadMissing(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.json"))

	media, ts, err := store.Load()
	require.NoError(t, err)
	assert.Zero(t, media.Size())
	assert.True(t, ts.IsZero())
}

func TestStoreLoadLegacyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`["/mnt/user/media/a.mkv"]`), 0o644))

	media, ts, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.True(t, media.Has("/mnt/user/media/a.mkv"))
	assert.True(t, ts.IsZero())
}

func TestStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o644))

	_, _, err := NewStore(path).Load()
	assert.Error(t, err)
}

func TestStoreExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := NewStore(path)

	assert.True(t, store.Expired(time.Hour))

	require.NoError(t, store.Save(nil, time.Now()))
	assert.False(t, store.Expired(time.Hour))

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	assert.True(t, store.Expired(time.Hour))
}

func TestStoreSaveEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, NewStore(path).Save(nil, time.Now()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"media":[]`)
}
