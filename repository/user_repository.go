package repository

import (
	"errors"
	"fmt"

	"coinfm/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines the interface for user document operations.
type UserRepository interface {
	CreateUser(user *model.User) (int64, error)
	GetUserByID(id int64) (*model.User, error)
	GetUserByUsername(username string) (*model.User, error)
	GetUserByEmail(email string) (*model.User, error)
	SearchByNamePrefix(prefix string, limit int) ([]*model.User, error)
	UpdateSettings(userID int64, private bool, theme string) error
	SetPremium(userID int64) error

	// Liked-track set. Add and Remove are idempotent.
	AddLike(userID, trackID int64) error
	RemoveLike(userID, trackID int64) error
	IsLiked(userID, trackID int64) (bool, error)
	ListLikes(userID int64) ([]int64, error)

	// Friend set. Links are symmetric; both directions are written in one
	// transaction so a partial link can never be observed.
	LinkFriends(a, b int64) error
	UnlinkFriends(a, b int64) error
	AreFriends(a, b int64) (bool, error)
	ListFriends(userID int64) ([]*model.User, error)
}

type gormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a GORM-backed UserRepository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// CreateUser adds a new user document.
func (r *gormUserRepository) CreateUser(user *model.User) (int64, error) {
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, ErrDuplicateUser
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return user.ID, nil
}

// GetUserByID retrieves a user by id. Returns (nil, nil) when not found.
func (r *gormUserRepository) GetUserByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user %d: %w", id, err)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username. Returns (nil, nil) when not found.
func (r *gormUserRepository) GetUserByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.db.First(&user, "username = ?", username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user %s: %w", username, err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email. Returns (nil, nil) when not found.
func (r *gormUserRepository) GetUserByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.First(&user, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user by email %s: %w", email, err)
	}
	return &user, nil
}

// SearchByNamePrefix runs a prefix-range query on display names.
// Private accounts are excluded. At most limit rows are returned; there is
// no pagination cursor.
func (r *gormUserRepository) SearchByNamePrefix(prefix string, limit int) ([]*model.User, error) {
	if limit <= 0 {
		limit = 20
	}
	var users []*model.User
	err := r.db.
		Where("username LIKE ?", prefix+"%").
		Where("private = ?", false).
		Order("username").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search users by prefix %q: %w", prefix, err)
	}
	return users, nil
}

// UpdateSettings persists the privacy flag and theme choice.
func (r *gormUserRepository) UpdateSettings(userID int64, private bool, theme string) error {
	err := r.db.Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"private": private, "theme": theme}).Error
	if err != nil {
		return fmt.Errorf("failed to update settings for user %d: %w", userID, err)
	}
	return nil
}

// SetPremium flips the premium flag on.
func (r *gormUserRepository) SetPremium(userID int64) error {
	err := r.db.Model(&model.User{}).
		Where("id = ?", userID).
		Update("premium", true).Error
	if err != nil {
		return fmt.Errorf("failed to set premium for user %d: %w", userID, err)
	}
	return nil
}

// AddLike adds trackID to the user's liked set. No-op if already present.
func (r *gormUserRepository) AddLike(userID, trackID int64) error {
	like := model.LikedTrack{UserID: userID, TrackID: trackID}
	err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error
	if err != nil {
		return fmt.Errorf("failed to add like (%d,%d): %w", userID, trackID, err)
	}
	return nil
}

// RemoveLike removes trackID from the user's liked set. No-op if absent.
func (r *gormUserRepository) RemoveLike(userID, trackID int64) error {
	err := r.db.
		Where("user_id = ? AND track_id = ?", userID, trackID).
		Delete(&model.LikedTrack{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove like (%d,%d): %w", userID, trackID, err)
	}
	return nil
}

// IsLiked reports membership of trackID in the user's liked set.
func (r *gormUserRepository) IsLiked(userID, trackID int64) (bool, error) {
	var count int64
	err := r.db.Model(&model.LikedTrack{}).
		Where("user_id = ? AND track_id = ?", userID, trackID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check like (%d,%d): %w", userID, trackID, err)
	}
	return count > 0, nil
}

// ListLikes returns the user's liked track ids, oldest first.
func (r *gormUserRepository) ListLikes(userID int64) ([]int64, error) {
	var rows []model.LikedTrack
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list likes for user %d: %w", userID, err)
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.TrackID)
	}
	return ids, nil
}

// LinkFriends writes both directions of the friend link in one transaction.
func (r *gormUserRepository) LinkFriends(a, b int64) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		forward := model.Friend{UserID: a, FriendID: b}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&forward).Error; err != nil {
			return err
		}
		backward := model.Friend{UserID: b, FriendID: a}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&backward).Error
	})
	if err != nil {
		return fmt.Errorf("failed to link friends %d and %d: %w", a, b, err)
	}
	return nil
}

// UnlinkFriends removes both directions of the friend link in one transaction.
func (r *gormUserRepository) UnlinkFriends(a, b int64) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("user_id = ? AND friend_id = ?", a, b).
			Delete(&model.Friend{}).Error; err != nil {
			return err
		}
		return tx.
			Where("user_id = ? AND friend_id = ?", b, a).
			Delete(&model.Friend{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to unlink friends %d and %d: %w", a, b, err)
	}
	return nil
}

// AreFriends reports whether b is in a's friend set.
func (r *gormUserRepository) AreFriends(a, b int64) (bool, error) {
	var count int64
	err := r.db.Model(&model.Friend{}).
		Where("user_id = ? AND friend_id = ?", a, b).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check friendship (%d,%d): %w", a, b, err)
	}
	return count > 0, nil
}

// ListFriends returns the user's friends as user documents.
func (r *gormUserRepository) ListFriends(userID int64) ([]*model.User, error) {
	var users []*model.User
	err := r.db.
		Joins("JOIN friends ON friends.friend_id = users.id").
		Where("friends.user_id = ?", userID).
		Order("users.username").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list friends for user %d: %w", userID, err)
	}
	return users, nil
}
