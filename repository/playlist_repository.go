package repository

import (
	"errors"
	"fmt"

	"coinfm/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlaylistRepository defines playlist document operations.
type PlaylistRepository interface {
	CreatePlaylist(playlist *model.Playlist) (int64, error)
	GetPlaylistByID(id int64) (*model.Playlist, error)
	ListByOwner(ownerID int64) ([]*model.Playlist, error)
	// AddTrack appends a track id to the playlist's set. Idempotent.
	// Only the owner may write; other callers get ErrNotOwner.
	AddTrack(playlistID, callerID, trackID int64) error
	ListTrackIDs(playlistID int64) ([]int64, error)
}

type gormPlaylistRepository struct {
	db *gorm.DB
}

// NewPlaylistRepository creates a GORM-backed PlaylistRepository.
func NewPlaylistRepository(db *gorm.DB) PlaylistRepository {
	return &gormPlaylistRepository{db: db}
}

// CreatePlaylist appends a new playlist document with an empty track set.
func (r *gormPlaylistRepository) CreatePlaylist(playlist *model.Playlist) (int64, error) {
	if err := r.db.Create(playlist).Error; err != nil {
		return 0, fmt.Errorf("failed to create playlist: %w", err)
	}
	return playlist.ID, nil
}

// GetPlaylistByID retrieves a playlist by id. Returns (nil, nil) when not found.
func (r *gormPlaylistRepository) GetPlaylistByID(id int64) (*model.Playlist, error) {
	var playlist model.Playlist
	err := r.db.First(&playlist, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query playlist %d: %w", id, err)
	}
	return &playlist, nil
}

// ListByOwner returns the playlists owned by a user.
func (r *gormPlaylistRepository) ListByOwner(ownerID int64) ([]*model.Playlist, error) {
	var playlists []*model.Playlist
	err := r.db.
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&playlists).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists for owner %d: %w", ownerID, err)
	}
	return playlists, nil
}

// AddTrack appends trackID to the playlist, preserving insertion order.
// The ownership check and the write happen in one transaction.
func (r *gormPlaylistRepository) AddTrack(playlistID, callerID, trackID int64) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var playlist model.Playlist
		if err := tx.First(&playlist, "id = ?", playlistID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if playlist.OwnerID != callerID {
			return ErrNotOwner
		}

		var maxPos int
		row := tx.Model(&model.PlaylistTrack{}).
			Where("playlist_id = ?", playlistID).
			Select("COALESCE(MAX(position), -1)").
			Row()
		if err := row.Scan(&maxPos); err != nil {
			return err
		}

		entry := model.PlaylistTrack{
			PlaylistID: playlistID,
			TrackID:    trackID,
			Position:   maxPos + 1,
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotOwner) {
			return err
		}
		return fmt.Errorf("failed to add track %d to playlist %d: %w", trackID, playlistID, err)
	}
	return nil
}

// ListTrackIDs returns the playlist's track ids in insertion order.
func (r *gormPlaylistRepository) ListTrackIDs(playlistID int64) ([]int64, error) {
	var rows []model.PlaylistTrack
	err := r.db.
		Where("playlist_id = ?", playlistID).
		Order("position").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks for playlist %d: %w", playlistID, err)
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.TrackID)
	}
	return ids, nil
}
