package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"coinfm/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "failed to open test database")

	require.NoError(t, db.AutoMigrate(&model.User{}, &model.CoinTransaction{}))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, balance int64) *model.User {
	t.Helper()

	user := &model.User{
		Username:     "tester",
		Email:        "tester@example.com",
		PasswordHash: "x",
		CoinBalance:  balance,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestEarnThenSpend(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, 0)
	l := New(db, nil)
	ctx := context.Background()

	record, err := l.ProcessTransaction(ctx, user.ID, 20, "Welcome grant", model.TxEarn)
	require.NoError(t, err)
	assert.Equal(t, model.TxEarn, record.Direction)
	assert.NotEmpty(t, record.ID)

	_, err = l.ProcessTransaction(ctx, user.ID, 5, "Download", model.TxSpend)
	require.NoError(t, err)

	balance, err := l.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), balance)

	history, err := l.History(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Welcome grant", history[0].Description)
	assert.Equal(t, "Download", history[1].Description)
}

func TestSpendInsufficientFunds(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, 3)
	l := New(db, nil)
	ctx := context.Background()

	_, err := l.ProcessTransaction(ctx, user.ID, 5, "Download", model.TxSpend)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// The failed spend must leave no trace: balance intact, no record.
	balance, err := l.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance)

	history, err := l.History(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSpendExactBalance(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, 5)
	l := New(db, nil)
	ctx := context.Background()

	_, err := l.ProcessTransaction(ctx, user.ID, 5, "Download", model.TxSpend)
	require.NoError(t, err)

	balance, err := l.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestSequentialSpendsCannotOverdraw(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, 100)
	l := New(db, nil)
	ctx := context.Background()

	_, err := l.ProcessTransaction(ctx, user.ID, 60, "First", model.TxSpend)
	require.NoError(t, err)

	_, err = l.ProcessTransaction(ctx, user.ID, 60, "Second", model.TxSpend)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	balance, err := l.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)
}

func TestUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	l := New(db, nil)
	ctx := context.Background()

	_, err := l.ProcessTransaction(ctx, 9999, 5, "Download", model.TxSpend)
	assert.ErrorIs(t, err, ErrUnknownUser)

	_, err = l.ProcessTransaction(ctx, 9999, 5, "Grant", model.TxEarn)
	assert.ErrorIs(t, err, ErrUnknownUser)

	_, err = l.Balance(ctx, 9999)
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestInvalidInputs(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, 10)
	l := New(db, nil)
	ctx := context.Background()

	_, err := l.ProcessTransaction(ctx, user.ID, 0, "zero", model.TxEarn)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = l.ProcessTransaction(ctx, user.ID, -5, "negative", model.TxSpend)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = l.ProcessTransaction(ctx, user.ID, 5, "weird", "transfer")
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestApplyTxRollsBackWithTransaction(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, 20)

	// A failure after ApplyTx inside the same transaction must undo the
	// debit and the record.
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := ApplyTx(tx, user.ID, 5, "doomed", model.TxSpend); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	l := New(db, nil)
	balance, err := l.Balance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance)

	var count int64
	require.NoError(t, db.Model(&model.CoinTransaction{}).Count(&count).Error)
	assert.Zero(t, count)
}
