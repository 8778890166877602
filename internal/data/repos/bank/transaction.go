package bank

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

type TransactionRepo interface {
	UpsertBatch(dbc dbctx.Context, transactions []*types.Transaction) (int, error)
	ListByUserSince(dbc dbctx.Context, userID string, since time.Time) ([]*types.Transaction, error)
	ListRecentByUser(dbc dbctx.Context, userID string, since time.Time, limit int) ([]*types.Transaction, error)
	HasFeeActivitySince(dbc dbctx.Context, userID string, since time.Time) (bool, error)
	Count(dbc dbctx.Context) (int64, error)
}

type transactionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTransactionRepo(db *gorm.DB, baseLog *logger.Logger) TransactionRepo {
	return &transactionRepo{db: db, log: baseLog.With("repo", "TransactionRepo")}
}

func (r *transactionRepo) UpsertBatch(dbc dbctx.Context, transactions []*types.Transaction) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(transactions) == 0 {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_id"}},
			DoNothing: true,
		}).
		Create(&transactions)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// ListByUserSince returns transactions dated on or after the cutoff, oldest
// first. Signal computations depend on the ascending order.
func (r *transactionRepo) ListByUserSince(dbc dbctx.Context, userID string, since time.Time) ([]*types.Transaction, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.Transaction
	if userID == "" {
		return rows, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ? AND date >= ?", userID, since).
		Order("date ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListRecentByUser returns the newest transactions on or after the cutoff,
// newest first.
func (r *transactionRepo) ListRecentByUser(dbc dbctx.Context, userID string, since time.Time, limit int) ([]*types.Transaction, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.Transaction
	if userID == "" {
		return rows, nil
	}
	q := t.WithContext(dbc.Ctx).
		Where("user_id = ? AND date >= ?", userID, since).
		Order("date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// HasFeeActivitySince reports whether any negative transaction in the window
// looks like an overdraft or late fee, by category or merchant name.
func (r *transactionRepo) HasFeeActivitySince(dbc dbctx.Context, userID string, since time.Time) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == "" {
		return false, nil
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Transaction{}).
		Where("user_id = ? AND date >= ? AND amount < 0", userID, since).
		Where(
			"LOWER(category_detailed) LIKE ? OR LOWER(category_detailed) LIKE ? OR LOWER(category_detailed) LIKE ? OR LOWER(merchant_name) LIKE ? OR LOWER(merchant_name) LIKE ?",
			"%fee%", "%overdraft%", "%late%", "%overdraft%", "%late fee%",
		).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *transactionRepo) Count(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Transaction{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
