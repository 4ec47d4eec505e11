package repository

import (
	"path/filepath"
	"testing"

	"coinfm/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupPlaylistDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Playlist{}, &model.PlaylistTrack{}))
	return db
}

func TestAddTrackPreservesInsertionOrder(t *testing.T) {
	repo := NewPlaylistRepository(setupPlaylistDB(t))

	id, err := repo.CreatePlaylist(&model.Playlist{Name: "Mix", OwnerID: 1})
	require.NoError(t, err)

	for _, trackID := range []int64{30, 10, 20} {
		require.NoError(t, repo.AddTrack(id, 1, trackID))
	}

	ids, err := repo.ListTrackIDs(id)
	require.NoError(t, err)
	assert.Equal(t, []int64{30, 10, 20}, ids)
}

func TestAddTrackIdempotent(t *testing.T) {
	repo := NewPlaylistRepository(setupPlaylistDB(t))

	id, err := repo.CreatePlaylist(&model.Playlist{Name: "Mix", OwnerID: 1})
	require.NoError(t, err)

	require.NoError(t, repo.AddTrack(id, 1, 7))
	require.NoError(t, repo.AddTrack(id, 1, 7))

	ids, err := repo.ListTrackIDs(id)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids)
}

func TestAddTrackOwnerOnly(t *testing.T) {
	repo := NewPlaylistRepository(setupPlaylistDB(t))

	id, err := repo.CreatePlaylist(&model.Playlist{Name: "Mix", OwnerID: 1})
	require.NoError(t, err)

	err = repo.AddTrack(id, 2, 7)
	assert.ErrorIs(t, err, ErrNotOwner)

	ids, err := repo.ListTrackIDs(id)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAddTrackMissingPlaylist(t *testing.T) {
	repo := NewPlaylistRepository(setupPlaylistDB(t))

	err := repo.AddTrack(999, 1, 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByOwner(t *testing.T) {
	repo := NewPlaylistRepository(setupPlaylistDB(t))

	_, err := repo.CreatePlaylist(&model.Playlist{Name: "Mine", OwnerID: 1})
	require.NoError(t, err)
	_, err = repo.CreatePlaylist(&model.Playlist{Name: "Theirs", OwnerID: 2})
	require.NoError(t, err)

	playlists, err := repo.ListByOwner(1)
	require.NoError(t, err)
	require.Len(t, playlists, 1)
	assert.Equal(t, "Mine", playlists[0].Name)
}
