package model

import "time"

// Track represents a streamable song in the catalog.
// Tracks are created by catalog administration and are read-only for clients.
type Track struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Title      string    `json:"title" gorm:"size:255;not null"`
	Artist     string    `json:"artist" gorm:"size:255"`
	Album      string    `json:"album" gorm:"size:255"`
	CoverURL   string    `json:"coverUrl" gorm:"size:767"`
	StreamURL  string    `json:"streamUrl" gorm:"size:767;not null"`
	ObjectPath string    `json:"-" gorm:"size:767"` // audio object key in MinIO
	Duration   float32   `json:"duration"`          // seconds
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
