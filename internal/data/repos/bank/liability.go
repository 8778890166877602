package bank

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

type LiabilityRepo interface {
	UpsertBatch(dbc dbctx.Context, liabilities []*types.Liability) (int, error)
	ListByUser(dbc dbctx.Context, userID string) ([]*types.Liability, error)
	ListByAccountIDs(dbc dbctx.Context, accountIDs []string) ([]*types.Liability, error)
}

type liabilityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLiabilityRepo(db *gorm.DB, baseLog *logger.Logger) LiabilityRepo {
	return &liabilityRepo{db: db, log: baseLog.With("repo", "LiabilityRepo")}
}

func (r *liabilityRepo) UpsertBatch(dbc dbctx.Context, liabilities []*types.Liability) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(liabilities) == 0 {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "liability_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"liability_type",
				"apr_purchase",
				"apr_balance_transfer",
				"apr_cash_advance",
				"minimum_payment_amount",
				"last_payment_amount",
				"is_overdue",
				"next_payment_due_date",
				"last_statement_balance",
				"interest_rate",
			}),
		}).
		Create(&liabilities)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *liabilityRepo) ListByUser(dbc dbctx.Context, userID string) ([]*types.Liability, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.Liability
	if userID == "" {
		return rows, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("liability_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *liabilityRepo) ListByAccountIDs(dbc dbctx.Context, accountIDs []string) ([]*types.Liability, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.Liability
	if len(accountIDs) == 0 {
		return rows, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("account_id IN ?", accountIDs).
		Order("liability_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
