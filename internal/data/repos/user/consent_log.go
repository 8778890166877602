package user

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

type ConsentLogRepo interface {
	Append(dbc dbctx.Context, row *types.ConsentLog) error
	ListByUser(dbc dbctx.Context, userID string) ([]*types.ConsentLog, error)
}

type consentLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConsentLogRepo(db *gorm.DB, baseLog *logger.Logger) ConsentLogRepo {
	return &consentLogRepo{db: db, log: baseLog.With("repo", "ConsentLogRepo")}
}

func (r *consentLogRepo) Append(dbc dbctx.Context, row *types.ConsentLog) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.UserID == "" {
		return nil
	}
	if row.LogID == uuid.Nil {
		row.LogID = uuid.New()
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *consentLogRepo) ListByUser(dbc dbctx.Context, userID string) ([]*types.ConsentLog, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.ConsentLog
	if userID == "" {
		return rows, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
