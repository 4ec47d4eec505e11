package ledger

import (
	"context"
	"errors"
	"fmt"

	"coinfm/cache"
	"coinfm/logger"
	"coinfm/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Errors returned by coin operations.
var (
	// ErrInsufficientFunds indicates a spend larger than the balance. The
	// check and the decrement are one conditional update, so two
	// concurrent spends can never overdraw the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrUnknownUser      = errors.New("unknown user")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidDirection = errors.New("direction must be earn or spend")
)

// Ledger is the shared coin primitive behind every paid action
// (download, premium upgrade, dedication send) and every grant.
type Ledger struct {
	db  *gorm.DB
	pub *cache.Publisher // optional; nil disables balance events
}

// New creates a Ledger. pub may be nil.
func New(db *gorm.DB, pub *cache.Publisher) *Ledger {
	return &Ledger{db: db, pub: pub}
}

// BalancePayload is published on the user channel after every committed
// coin transaction.
type BalancePayload struct {
	UserID  int64 `json:"userId"`
	Balance int64 `json:"balance"`
}

// ApplyTx applies one coin transaction inside an existing SQL transaction:
// the balance delta and the immutable ledger record commit or roll back
// together. Spends are conditional on sufficient balance.
func ApplyTx(tx *gorm.DB, userID, amount int64, description, direction string) (*model.CoinTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var res *gorm.DB
	switch direction {
	case model.TxSpend:
		res = tx.Model(&model.User{}).
			Where("id = ? AND coin_balance >= ?", userID, amount).
			Update("coin_balance", gorm.Expr("coin_balance - ?", amount))
	case model.TxEarn:
		res = tx.Model(&model.User{}).
			Where("id = ?", userID).
			Update("coin_balance", gorm.Expr("coin_balance + ?", amount))
	default:
		return nil, ErrInvalidDirection
	}
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update balance for user %d: %w", userID, res.Error)
	}

	if res.RowsAffected == 0 {
		// Either the user doesn't exist or the spend condition failed.
		var count int64
		if err := tx.Model(&model.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check user %d: %w", userID, err)
		}
		if count == 0 {
			return nil, ErrUnknownUser
		}
		return nil, ErrInsufficientFunds
	}

	record := &model.CoinTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Direction:   direction,
		Amount:      amount,
		Description: description,
	}
	if err := tx.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to append transaction record: %w", err)
	}

	return record, nil
}

// ProcessTransaction applies one coin transaction in its own SQL
// transaction and publishes the new balance on success. Callers must not
// assume the delta happened unless the returned error is nil.
func (l *Ledger) ProcessTransaction(ctx context.Context, userID, amount int64, description, direction string) (*model.CoinTransaction, error) {
	var record *model.CoinTransaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		record, txErr = ApplyTx(tx, userID, amount, description, direction)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	l.publishBalance(ctx, userID)

	logger.Info("coin transaction committed",
		logger.Int64("userId", userID),
		logger.String("direction", direction),
		logger.Int64("amount", amount),
		logger.String("txId", record.ID))

	return record, nil
}

// Balance returns the user's current coin balance.
func (l *Ledger) Balance(ctx context.Context, userID int64) (int64, error) {
	var user model.User
	err := l.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUnknownUser
		}
		return 0, fmt.Errorf("failed to read balance for user %d: %w", userID, err)
	}
	return user.CoinBalance, nil
}

// History returns the user's transaction log, oldest first.
func (l *Ledger) History(ctx context.Context, userID int64, limit int) ([]*model.CoinTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []*model.CoinTransaction
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for user %d: %w", userID, err)
	}
	return records, nil
}

// PublishBalance pushes the current balance to the user's live channel.
// Exposed so composed writes (dedication send) can notify after commit.
func (l *Ledger) PublishBalance(ctx context.Context, userID int64) {
	l.publishBalance(ctx, userID)
}

func (l *Ledger) publishBalance(ctx context.Context, userID int64) {
	if l.pub == nil {
		return
	}
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		logger.Warn("failed to read balance for event", logger.Int64("userId", userID), logger.ErrorField(err))
		return
	}
	l.pub.Publish(ctx, cache.UserChannel(userID), cache.EventBalance, BalancePayload{UserID: userID, Balance: balance})
}

// DB exposes the underlying handle for services composing multi-write
// transactions with ApplyTx.
func (l *Ledger) DB() *gorm.DB {
	return l.db
}
