package model

import "time"

// Dedication is a track gift from one user to another, with a message.
// Created when the sender spends coins; read by the recipient; never mutated.
type Dedication struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	FromUID    int64     `json:"fromUid" gorm:"index;not null"`
	FromName   string    `json:"fromName" gorm:"size:100"`
	ToUID      int64     `json:"toUid" gorm:"index;not null"`
	TrackID    int64     `json:"trackId" gorm:"not null"`
	TrackTitle string    `json:"trackTitle" gorm:"size:255"`
	Message    string    `json:"message" gorm:"size:500"`
	CreatedAt  time.Time `json:"createdAt"`
}
