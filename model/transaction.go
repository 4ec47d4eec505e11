package model

import "time"

// Transaction directions.
const (
	TxEarn  = "earn"
	TxSpend = "spend"
)

// CoinTransaction is an immutable ledger entry. Rows are append-only;
// nothing in the system updates or deletes them.
type CoinTransaction struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	UserID      int64     `json:"userId" gorm:"index;not null"`
	Direction   string    `json:"direction" gorm:"size:8;not null"` // earn or spend
	Amount      int64     `json:"amount" gorm:"not null"`
	Description string    `json:"description" gorm:"size:255"`
	CreatedAt   time.Time `json:"createdAt"`
}
