package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*SnapshotStore, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewSnapshotStore(rdb, 0), rdb
}

func TestSnapshotRoundTrip(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	snap := Snapshot{
		TrackID:   42,
		Title:     "Song",
		Artist:    "Artist",
		StreamURL: "https://cdn/song",
	}
	require.NoError(t, store.Save(ctx, 1, snap))

	loaded, err := store.Load(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(42), loaded.TrackID)
	assert.Equal(t, "https://cdn/song", loaded.StreamURL)
	assert.False(t, loaded.SavedAt.IsZero())
}

func TestSnapshotOverwrite(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, 1, Snapshot{TrackID: 1}))
	require.NoError(t, store.Save(ctx, 1, Snapshot{TrackID: 2}))

	loaded, err := store.Load(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(2), loaded.TrackID)
}

func TestSnapshotLoadMissing(t *testing.T) {
	store, _ := setupStore(t)

	loaded, err := store.Load(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSnapshotDelete(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, 1, Snapshot{TrackID: 1}))
	require.NoError(t, store.Delete(ctx, 1))

	loaded, err := store.Load(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestPruneOlderThan(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, 1, Snapshot{TrackID: 1}))
	require.NoError(t, store.Save(ctx, 2, Snapshot{TrackID: 2}))

	// A cutoff in the future prunes everything saved so far.
	pruned, err := store.PruneOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)

	loaded, err := store.Load(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestPruneKeepsFreshSnapshots(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, 1, Snapshot{TrackID: 1}))

	pruned, err := store.PruneOlderThan(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, pruned)

	loaded, err := store.Load(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, loaded)
}
