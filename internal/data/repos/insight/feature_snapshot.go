package insight

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

type FeatureSnapshotRepo interface {
	Upsert(dbc dbctx.Context, row *types.FeatureSnapshot) error
	GetByUserWindow(dbc dbctx.Context, userID string, windowDays int) (*types.FeatureSnapshot, error)
	ListByUser(dbc dbctx.Context, userID string) ([]*types.FeatureSnapshot, error)
	ListByWindow(dbc dbctx.Context, windowDays int) ([]*types.FeatureSnapshot, error)
	CountDistinctUsers(dbc dbctx.Context) (int64, error)
	CountUsersWithBehaviors(dbc dbctx.Context, windowDays int) (int64, error)
}

type featureSnapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFeatureSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) FeatureSnapshotRepo {
	return &featureSnapshotRepo{db: db, log: baseLog.With("repo", "FeatureSnapshotRepo")}
}

// Upsert replaces the whole row for (user_id, window_days). Every signal
// column is assigned so a recompute can never leave stale values behind.
func (r *featureSnapshotRepo) Upsert(dbc dbctx.Context, row *types.FeatureSnapshot) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.UserID == "" {
		return nil
	}
	if row.FeatureID == uuid.Nil {
		row.FeatureID = uuid.New()
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "window_days"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"computed_at",
				"recurring_merchants",
				"monthly_recurring_spend",
				"subscription_spend_share",
				"net_savings_inflow",
				"savings_growth_rate",
				"emergency_fund_months",
				"avg_utilization",
				"max_utilization",
				"utilization_30_flag",
				"utilization_50_flag",
				"utilization_80_flag",
				"minimum_payment_only_flag",
				"interest_charges_present",
				"any_overdue",
				"payroll_detected",
				"median_pay_gap_days",
				"income_variability",
				"cash_flow_buffer_months",
				"avg_monthly_income",
				"investment_account_detected",
			}),
		}).
		Create(row).Error
}

func (r *featureSnapshotRepo) GetByUserWindow(dbc dbctx.Context, userID string, windowDays int) (*types.FeatureSnapshot, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == "" {
		return nil, nil
	}
	var row types.FeatureSnapshot
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ? AND window_days = ?", userID, windowDays).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.FeatureID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *featureSnapshotRepo) ListByUser(dbc dbctx.Context, userID string) ([]*types.FeatureSnapshot, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.FeatureSnapshot
	if userID == "" {
		return rows, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("window_days ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *featureSnapshotRepo) ListByWindow(dbc dbctx.Context, windowDays int) ([]*types.FeatureSnapshot, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.FeatureSnapshot
	if err := t.WithContext(dbc.Ctx).
		Where("window_days = ?", windowDays).
		Order("user_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *featureSnapshotRepo) CountDistinctUsers(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.FeatureSnapshot{}).
		Distinct("user_id").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountUsersWithBehaviors counts users whose snapshot shows at least one
// detected behavior group: recurring subscriptions, savings inflow, or
// credit utilization.
func (r *featureSnapshotRepo) CountUsersWithBehaviors(dbc dbctx.Context, windowDays int) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.FeatureSnapshot{}).
		Where("window_days = ?", windowDays).
		Where("recurring_merchants >= ? OR net_savings_inflow > 0 OR avg_utilization > 0", 3).
		Distinct("user_id").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
