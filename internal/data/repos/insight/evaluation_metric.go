package insight

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

type EvaluationMetricRepo interface {
	Create(dbc dbctx.Context, row *types.EvaluationMetric) error
	GetLatest(dbc dbctx.Context) (*types.EvaluationMetric, error)
	ListRuns(dbc dbctx.Context, limit int) ([]*types.EvaluationMetric, error)
	Count(dbc dbctx.Context) (int64, error)
}

type evaluationMetricRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEvaluationMetricRepo(db *gorm.DB, baseLog *logger.Logger) EvaluationMetricRepo {
	return &evaluationMetricRepo{db: db, log: baseLog.With("repo", "EvaluationMetricRepo")}
}

func (r *evaluationMetricRepo) Create(dbc dbctx.Context, row *types.EvaluationMetric) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.RunID == "" {
		return nil
	}
	if row.MetricID == uuid.Nil {
		row.MetricID = uuid.New()
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *evaluationMetricRepo) GetLatest(dbc dbctx.Context) (*types.EvaluationMetric, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.EvaluationMetric
	if err := t.WithContext(dbc.Ctx).
		Order("timestamp DESC").
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.MetricID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *evaluationMetricRepo) ListRuns(dbc dbctx.Context, limit int) ([]*types.EvaluationMetric, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.EvaluationMetric
	q := t.WithContext(dbc.Ctx).Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *evaluationMetricRepo) Count(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.EvaluationMetric{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
