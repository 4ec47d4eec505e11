package model

import "time"

// Playlist is a named, insertion-ordered set of track ids.
type Playlist struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"size:500"`
	Public      bool      `json:"public" gorm:"not null;default:false"`
	OwnerID     int64     `json:"ownerId" gorm:"index;not null"`
	OwnerName   string    `json:"ownerName" gorm:"size:100"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PlaylistTrack is one track's membership in a playlist.
// Position preserves insertion order.
type PlaylistTrack struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	PlaylistID int64     `json:"playlistId" gorm:"uniqueIndex:uq_playlist_track;not null"`
	TrackID    int64     `json:"trackId" gorm:"uniqueIndex:uq_playlist_track;not null"`
	Position   int       `json:"position" gorm:"not null"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PlaylistWithTracks bundles a playlist and its resolved tracks.
type PlaylistWithTracks struct {
	Playlist Playlist `json:"playlist"`
	Tracks   []*Track `json:"tracks"`
}
