package recs

import (
	"time"

	"gorm.io/gorm"

	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

type RecommendationRepo interface {
	CreateBatch(dbc dbctx.Context, rows []*types.Recommendation) error
	GetByID(dbc dbctx.Context, recommendationID string) (*types.Recommendation, error)
	Update(dbc dbctx.Context, row *types.Recommendation) error
	ListByUser(dbc dbctx.Context, userID string, status string, windowDays int, limit, offset int) ([]*types.Recommendation, error)
	CountByUser(dbc dbctx.Context, userID string, status string, windowDays int) (int64, error)
	ListPendingUnexpired(dbc dbctx.Context, userID string, windowDays int, now time.Time) ([]*types.Recommendation, error)
	ListAll(dbc dbctx.Context) ([]*types.Recommendation, error)
	Count(dbc dbctx.Context) (int64, error)
	CountWithRationale(dbc dbctx.Context) (int64, error)
	CountByStatus(dbc dbctx.Context) (map[string]int64, error)
	ListGenerationTimes(dbc dbctx.Context) ([]int, error)
	ListRecentPending(dbc dbctx.Context, limit int) ([]*types.Recommendation, error)
}

type recommendationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecommendationRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationRepo {
	return &recommendationRepo{db: db, log: baseLog.With("repo", "RecommendationRepo")}
}

func (r *recommendationRepo) CreateBatch(dbc dbctx.Context, rows []*types.Recommendation) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).Create(&rows).Error
}

func (r *recommendationRepo) GetByID(dbc dbctx.Context, recommendationID string) (*types.Recommendation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if recommendationID == "" {
		return nil, nil
	}
	var row types.Recommendation
	if err := t.WithContext(dbc.Ctx).
		Where("recommendation_id = ?", recommendationID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.RecommendationID == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *recommendationRepo) Update(dbc dbctx.Context, row *types.Recommendation) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.RecommendationID == "" {
		return nil
	}
	return t.WithContext(dbc.Ctx).Save(row).Error
}

func (r *recommendationRepo) ListByUser(dbc dbctx.Context, userID string, status string, windowDays int, limit, offset int) ([]*types.Recommendation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.Recommendation
	if userID == "" {
		return rows, nil
	}
	q := t.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("generated_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if windowDays > 0 {
		q = q.Where("window_days = ?", windowDays)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *recommendationRepo) CountByUser(dbc dbctx.Context, userID string, status string, windowDays int) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == "" {
		return 0, nil
	}
	q := t.WithContext(dbc.Ctx).
		Model(&types.Recommendation{}).
		Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if windowDays > 0 {
		q = q.Where("window_days = ?", windowDays)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListPendingUnexpired is the generation cache probe: pending rows for the
// (user, window) whose expiry has not passed. Rows with no expiry never
// expire.
func (r *recommendationRepo) ListPendingUnexpired(dbc dbctx.Context, userID string, windowDays int, now time.Time) ([]*types.Recommendation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.Recommendation
	if userID == "" {
		return rows, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ? AND window_days = ? AND status = ?", userID, windowDays, types.RecStatusPendingApproval).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("generated_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *recommendationRepo) ListAll(dbc dbctx.Context) ([]*types.Recommendation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.Recommendation
	if err := t.WithContext(dbc.Ctx).
		Order("generated_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *recommendationRepo) Count(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Recommendation{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *recommendationRepo) CountWithRationale(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Recommendation{}).
		Where("rationale IS NOT NULL AND rationale <> ''").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListGenerationTimes returns generation_time_ms for freshly generated rows.
// Cache hits store zero and are excluded from latency percentiles.
func (r *recommendationRepo) ListGenerationTimes(dbc dbctx.Context) ([]int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var times []int
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Recommendation{}).
		Where("generation_time_ms > 0").
		Pluck("generation_time_ms", &times).Error; err != nil {
		return nil, err
	}
	return times, nil
}

func (r *recommendationRepo) CountByStatus(dbc dbctx.Context) (map[string]int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []struct {
		Status string
		Total  int64
	}
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Recommendation{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

func (r *recommendationRepo) ListRecentPending(dbc dbctx.Context, limit int) ([]*types.Recommendation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.Recommendation
	q := t.WithContext(dbc.Ctx).
		Where("status = ?", types.RecStatusPendingApproval).
		Order("generated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
