package model

import "time"

// User represents a registered listener.
type User struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Username     string    `json:"username" gorm:"size:100;uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"`
	CoinBalance  int64     `json:"coinBalance" gorm:"not null;default:0"`
	Premium      bool      `json:"premium" gorm:"not null;default:false"`
	Private      bool      `json:"private" gorm:"not null;default:false"`
	Theme        string    `json:"theme" gorm:"size:32;default:system"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Friend is one direction of a friend link. Links are kept symmetric:
// a row (A,B) always has a counterpart (B,A).
type Friend struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    int64     `json:"userId" gorm:"uniqueIndex:uq_user_friend;not null"`
	FriendID  int64     `json:"friendId" gorm:"uniqueIndex:uq_user_friend;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// LikedTrack is a row in a user's liked set.
type LikedTrack struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    int64     `json:"userId" gorm:"uniqueIndex:uq_user_like;not null"`
	TrackID   int64     `json:"trackId" gorm:"uniqueIndex:uq_user_like;not null"`
	CreatedAt time.Time `json:"createdAt"`
}
