package user

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

// UserFilter narrows List/Count; zero value matches all users.
type UserFilter struct {
	UserType      string
	ConsentStatus *bool
}

type UserRepo interface {
	UpsertBatch(dbc dbctx.Context, users []*types.User) (int, error)
	GetByID(dbc dbctx.Context, userID string) (*types.User, error)
	List(dbc dbctx.Context, filter UserFilter, limit, offset int) ([]*types.User, error)
	Count(dbc dbctx.Context, filter UserFilter) (int64, error)
	ListIDs(dbc dbctx.Context) ([]string, error)
	SetConsent(dbc dbctx.Context, userID string, granted bool, at time.Time) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) UpsertBatch(dbc dbctx.Context, users []*types.User) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(users) == 0 {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"full_name",
				"email",
				"user_type",
			}),
		}).
		Create(&users)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *userRepo) GetByID(dbc dbctx.Context, userID string) (*types.User, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == "" {
		return nil, nil
	}
	var row types.User
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.UserID == "" {
		return nil, nil
	}
	return &row, nil
}

func applyUserFilter(q *gorm.DB, filter UserFilter) *gorm.DB {
	if filter.UserType != "" {
		q = q.Where("user_type = ?", filter.UserType)
	}
	if filter.ConsentStatus != nil {
		q = q.Where("consent_status = ?", *filter.ConsentStatus)
	}
	return q
}

func (r *userRepo) List(dbc dbctx.Context, filter UserFilter, limit, offset int) ([]*types.User, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.User
	q := applyUserFilter(t.WithContext(dbc.Ctx), filter).Order("user_id ASC")
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

func (r *userRepo) Count(dbc dbctx.Context, filter UserFilter) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var count int64
	if err := applyUserFilter(t.WithContext(dbc.Ctx).Model(&types.User{}), filter).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *userRepo) ListIDs(dbc dbctx.Context) ([]string, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var ids []string
	if err := t.WithContext(dbc.Ctx).
		Model(&types.User{}).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *userRepo) SetConsent(dbc dbctx.Context, userID string, granted bool, at time.Time) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == "" {
		return nil
	}
	// Granting clears any prior revocation stamp; revoking keeps the grant
	// stamp for the audit trail.
	updates := map[string]any{"consent_status": granted}
	if granted {
		updates["consent_granted_at"] = at
		updates["consent_revoked_at"] = nil
	} else {
		updates["consent_revoked_at"] = at
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.User{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}
