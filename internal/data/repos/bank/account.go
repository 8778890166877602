package bank

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

type AccountRepo interface {
	UpsertBatch(dbc dbctx.Context, accounts []*types.Account) (int, error)
	ListByUser(dbc dbctx.Context, userID string) ([]*types.Account, error)
	ListByUserAndTypes(dbc dbctx.Context, userID string, accountTypes []string) ([]*types.Account, error)
	Count(dbc dbctx.Context) (int64, error)
}

type accountRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAccountRepo(db *gorm.DB, baseLog *logger.Logger) AccountRepo {
	return &accountRepo{db: db, log: baseLog.With("repo", "AccountRepo")}
}

func (r *accountRepo) UpsertBatch(dbc dbctx.Context, accounts []*types.Account) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(accounts) == 0 {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"type",
				"subtype",
				"balance_available",
				"balance_current",
				"balance_limit",
				"iso_currency_code",
				"holder_category",
			}),
		}).
		Create(&accounts)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *accountRepo) ListByUser(dbc dbctx.Context, userID string) ([]*types.Account, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.Account
	if userID == "" {
		return rows, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("account_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByUserAndTypes matches account types case-insensitively; ingested data
// mixes casings like "HSA" and "hsa".
func (r *accountRepo) ListByUserAndTypes(dbc dbctx.Context, userID string, accountTypes []string) ([]*types.Account, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.Account
	if userID == "" || len(accountTypes) == 0 {
		return rows, nil
	}
	lowered := make([]string, 0, len(accountTypes))
	for _, at := range accountTypes {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(at)))
	}
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ? AND LOWER(type) IN ?", userID, lowered).
		Order("account_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *accountRepo) Count(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Account{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
