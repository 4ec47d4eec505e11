package repository

import (
	"errors"
	"fmt"

	"coinfm/model"

	"gorm.io/gorm"
)

// TrackRepository defines catalog read operations plus the create used by
// catalog administration tooling.
type TrackRepository interface {
	CreateTrack(track *model.Track) (int64, error)
	GetTrackByID(id int64) (*model.Track, error)
	GetTracksByIDs(ids []int64) ([]*model.Track, error)
	ListTracks() ([]*model.Track, error)
}

type gormTrackRepository struct {
	db *gorm.DB
}

// NewTrackRepository creates a GORM-backed TrackRepository.
func NewTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

// CreateTrack adds a track to the catalog.
func (r *gormTrackRepository) CreateTrack(track *model.Track) (int64, error) {
	if err := r.db.Create(track).Error; err != nil {
		return 0, fmt.Errorf("failed to create track: %w", err)
	}
	return track.ID, nil
}

// GetTrackByID retrieves a track by id. Returns (nil, nil) when not found.
func (r *gormTrackRepository) GetTrackByID(id int64) (*model.Track, error) {
	var track model.Track
	err := r.db.First(&track, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query track %d: %w", id, err)
	}
	return &track, nil
}

// GetTracksByIDs resolves a set of track ids. Missing ids are skipped.
func (r *gormTrackRepository) GetTracksByIDs(ids []int64) ([]*model.Track, error) {
	if len(ids) == 0 {
		return []*model.Track{}, nil
	}
	var tracks []*model.Track
	if err := r.db.Where("id IN ?", ids).Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to query tracks by ids: %w", err)
	}
	return tracks, nil
}

// ListTracks returns the whole catalog, newest first.
func (r *gormTrackRepository) ListTracks() ([]*model.Track, error) {
	var tracks []*model.Track
	if err := r.db.Order("created_at DESC").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	return tracks, nil
}
