package repository

import (
	"fmt"

	"coinfm/model"

	"gorm.io/gorm"
)

// DedicationRepository defines dedication document operations.
// Dedications are append-only; there is no update or delete.
type DedicationRepository interface {
	ListByRecipient(toUID int64, limit int) ([]*model.Dedication, error)
	ListBySender(fromUID int64, limit int) ([]*model.Dedication, error)
}

type gormDedicationRepository struct {
	db *gorm.DB
}

// NewDedicationRepository creates a GORM-backed DedicationRepository.
func NewDedicationRepository(db *gorm.DB) DedicationRepository {
	return &gormDedicationRepository{db: db}
}

// ListByRecipient returns dedications addressed to a user, newest first.
func (r *gormDedicationRepository) ListByRecipient(toUID int64, limit int) ([]*model.Dedication, error) {
	if limit <= 0 {
		limit = 50
	}
	var dedications []*model.Dedication
	err := r.db.
		Where("to_uid = ?", toUID).
		Order("created_at DESC").
		Limit(limit).
		Find(&dedications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list dedications for recipient %d: %w", toUID, err)
	}
	return dedications, nil
}

// ListBySender returns dedications a user has sent, newest first.
func (r *gormDedicationRepository) ListBySender(fromUID int64, limit int) ([]*model.Dedication, error) {
	if limit <= 0 {
		limit = 50
	}
	var dedications []*model.Dedication
	err := r.db.
		Where("from_uid = ?", fromUID).
		Order("created_at DESC").
		Limit(limit).
		Find(&dedications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list dedications for sender %d: %w", fromUID, err)
	}
	return dedications, nil
}
