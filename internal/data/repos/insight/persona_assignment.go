package insight

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

type PersonaAssignmentRepo interface {
	Upsert(dbc dbctx.Context, row *types.PersonaAssignment) error
	GetByUserWindow(dbc dbctx.Context, userID string, windowDays int) (*types.PersonaAssignment, error)
	ListByUser(dbc dbctx.Context, userID string) ([]*types.PersonaAssignment, error)
	ListByUsersWindow(dbc dbctx.Context, userIDs []string, windowDays int) ([]*types.PersonaAssignment, error)
	ListByType(dbc dbctx.Context, personaType string) ([]*types.PersonaAssignment, error)
	CountDistinctUsers(dbc dbctx.Context, windowDays int) (int64, error)
	CountByType(dbc dbctx.Context, windowDays int) (map[string]int64, error)
	Update(dbc dbctx.Context, row *types.PersonaAssignment) error
}

type personaAssignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPersonaAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) PersonaAssignmentRepo {
	return &personaAssignmentRepo{db: db, log: baseLog.With("repo", "PersonaAssignmentRepo")}
}

func (r *personaAssignmentRepo) Upsert(dbc dbctx.Context, row *types.PersonaAssignment) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.UserID == "" {
		return nil
	}
	if row.PersonaID == uuid.Nil {
		row.PersonaID = uuid.New()
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "window_days"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"persona_type",
				"confidence_score",
				"assigned_at",
				"reasoning",
			}),
		}).
		Create(row).Error
}

func (r *personaAssignmentRepo) GetByUserWindow(dbc dbctx.Context, userID string, windowDays int) (*types.PersonaAssignment, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == "" {
		return nil, nil
	}
	var row types.PersonaAssignment
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ? AND window_days = ?", userID, windowDays).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.PersonaID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *personaAssignmentRepo) ListByUser(dbc dbctx.Context, userID string) ([]*types.PersonaAssignment, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.PersonaAssignment
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

// ListByUsersWindow fetches assignments for a page of users in one query.
func (r *personaAssignmentRepo) ListByUsersWindow(dbc dbctx.Context, userIDs []string, windowDays int) ([]*types.PersonaAssignment, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.PersonaAssignment
	if len(userIDs) == 0 {
		return rows, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("user_id IN ? AND window_days = ?", userIDs, windowDays).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *personaAssignmentRepo) ListByType(dbc dbctx.Context, personaType string) ([]*types.PersonaAssignment, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.PersonaAssignment
	if personaType == "" {
		return rows, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("persona_type = ?", personaType).
		Order("user_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *personaAssignmentRepo) CountDistinctUsers(dbc dbctx.Context, windowDays int) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx).Model(&types.PersonaAssignment{})
	if windowDays > 0 {
		q = q.Where("window_days = ?", windowDays)
	}
	var count int64
	if err := q.Distinct("user_id").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *personaAssignmentRepo) CountByType(dbc dbctx.Context, windowDays int) (map[string]int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx).Model(&types.PersonaAssignment{})
	if windowDays > 0 {
		q = q.Where("window_days = ?", windowDays)
	}
	var rows []struct {
		PersonaType string
		Total       int64
	}
	if err := q.
		Select("persona_type, COUNT(*) AS total").
		Group("persona_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.PersonaType] = row.Total
	}
	return out, nil
}

func (r *personaAssignmentRepo) Update(dbc dbctx.Context, row *types.PersonaAssignment) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.PersonaID == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).Save(row).Error
}
