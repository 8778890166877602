package recs

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

type OperatorActionRepo interface {
	Append(dbc dbctx.Context, row *types.OperatorAction) error
	ListByRecommendation(dbc dbctx.Context, recommendationID string) ([]*types.OperatorAction, error)
	ListRecent(dbc dbctx.Context, limit int) ([]*types.OperatorAction, error)
	CountDistinctRecommendations(dbc dbctx.Context) (int64, error)
}

type operatorActionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOperatorActionRepo(db *gorm.DB, baseLog *logger.Logger) OperatorActionRepo {
	return &operatorActionRepo{db: db, log: baseLog.With("repo", "OperatorActionRepo")}
}

func (r *operatorActionRepo) Append(dbc dbctx.Context, row *types.OperatorAction) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.OperatorID == "" {
		return nil
	}
	if row.ActionID == uuid.Nil {
		row.ActionID = uuid.New()
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *operatorActionRepo) ListByRecommendation(dbc dbctx.Context, recommendationID string) ([]*types.OperatorAction, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.OperatorAction
	if recommendationID == "" {
		return rows, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("recommendation_id = ?", recommendationID).
		Order("timestamp ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *operatorActionRepo) ListRecent(dbc dbctx.Context, limit int) ([]*types.OperatorAction, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.OperatorAction
	q := t.WithContext(dbc.Ctx).Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *operatorActionRepo) CountDistinctRecommendations(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.OperatorAction{}).
		Where("recommendation_id IS NOT NULL").
		Distinct("recommendation_id").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
