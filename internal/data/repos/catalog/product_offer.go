package catalog

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

type ProductOfferRepo interface {
	Create(dbc dbctx.Context, row *types.ProductOffer) error
	UpsertBatch(dbc dbctx.Context, rows []*types.ProductOffer) (int, error)
	Update(dbc dbctx.Context, row *types.ProductOffer) error
	Deactivate(dbc dbctx.Context, productID string) error
	GetByID(dbc dbctx.Context, productID string) (*types.ProductOffer, error)
	List(dbc dbctx.Context, category string, activeOnly bool) ([]*types.ProductOffer, error)
	Count(dbc dbctx.Context) (int64, error)
}

type productOfferRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductOfferRepo(db *gorm.DB, baseLog *logger.Logger) ProductOfferRepo {
	return &productOfferRepo{db: db, log: baseLog.With("repo", "ProductOfferRepo")}
}

func (r *productOfferRepo) Create(dbc dbctx.Context, row *types.ProductOffer) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.ProductID == "" {
		return nil
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *productOfferRepo) UpsertBatch(dbc dbctx.Context, rows []*types.ProductOffer) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"product_name",
				"product_type",
				"category",
				"persona_targets",
				"short_description",
				"benefits",
				"typical_apy_or_fee",
				"partner_link",
				"disclosure",
				"partner_name",
				"min_income",
				"max_credit_utilization",
				"requires_no_existing_savings",
				"requires_no_existing_investment",
				"min_credit_score",
				"commission_rate",
				"priority",
				"active",
			}),
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *productOfferRepo) Update(dbc dbctx.Context, row *types.ProductOffer) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.ProductID == "" {
		return nil
	}
	return t.WithContext(dbc.Ctx).Save(row).Error
}

// Deactivate is a soft delete: the row stays for audit and existing
// recommendation references, it just stops matching.
func (r *productOfferRepo) Deactivate(dbc dbctx.Context, productID string) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if productID == "" {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.ProductOffer{}).
		Where("product_id = ?", productID).
		Update("active", false).Error
}

func (r *productOfferRepo) GetByID(dbc dbctx.Context, productID string) (*types.ProductOffer, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if productID == "" {
		return nil, nil
	}
	var row types.ProductOffer
	if err := t.WithContext(dbc.Ctx).
		Where("product_id = ?", productID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ProductID == "" {
		return nil, nil
	}
	return &row, nil
}

// List filters by category and active flag in SQL; persona targeting lives in
// a JSON column, so callers filter that in Go where the driver differences
// cannot leak.
func (r *productOfferRepo) List(dbc dbctx.Context, category string, activeOnly bool) ([]*types.ProductOffer, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.ProductOffer
	q := t.WithContext(dbc.Ctx).Order("priority DESC, product_id ASC")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *productOfferRepo) Count(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.ProductOffer{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
