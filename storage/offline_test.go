package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfflinePutAndOpen(t *testing.T) {
	store, err := NewOfflineStore(t.TempDir())
	require.NoError(t, err)

	meta := OfflineMeta{TrackID: 1, Title: "Song", Artist: "Artist"}
	require.NoError(t, store.Put(meta, strings.NewReader("audio-bytes")))

	assert.True(t, store.Has(1))
	assert.False(t, store.Has(2))

	r, err := store.Open(1)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(data))
}

func TestOfflineListSortedByTrackID(t *testing.T) {
	store, err := NewOfflineStore(t.TempDir())
	require.NoError(t, err)

	for _, id := range []int64{3, 1, 2} {
		require.NoError(t, store.Put(OfflineMeta{TrackID: id, Title: "t"}, strings.NewReader("x")))
	}

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(1), entries[0].Meta.TrackID)
	assert.Equal(t, int64(2), entries[1].Meta.TrackID)
	assert.Equal(t, int64(3), entries[2].Meta.TrackID)
}

func TestOfflinePutOverwrites(t *testing.T) {
	store, err := NewOfflineStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(OfflineMeta{TrackID: 1, Title: "old"}, strings.NewReader("v1")))
	require.NoError(t, store.Put(OfflineMeta{TrackID: 1, Title: "new"}, strings.NewReader("v2-longer")))

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].Meta.Title)
	assert.Equal(t, int64(len("v2-longer")), entries[0].Meta.Size)

	r, err := store.Open(1)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "v2-longer", string(data))
}

func TestOfflineRecordsSizeAndTimestamp(t *testing.T) {
	store, err := NewOfflineStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(OfflineMeta{TrackID: 5, Title: "s"}, strings.NewReader("12345")))

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(5), entries[0].Meta.Size)
	assert.False(t, entries[0].Meta.SavedAt.IsZero())
}

func TestOfflineListEmpty(t *testing.T) {
	store, err := NewOfflineStore(t.TempDir())
	require.NoError(t, err)

	entries, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
