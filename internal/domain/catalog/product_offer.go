package catalog

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	CategoryBalanceTransfer     = "balance_transfer"
	CategoryHYSA                = "hysa"
	CategoryBudgetingApp        = "budgeting_app"
	CategorySubscriptionManager = "subscription_manager"
	CategoryRoboAdvisor         = "robo_advisor"
)

// NewProductID follows the ingested id scheme: short prefixed hex token.
func NewProductID() string {
	return "prod_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

// ProductOffer is a partner catalog entry. Eligibility columns are predicates
// evaluated against a user's signals at match time; PersonaTargets and
// Benefits are JSON string arrays decoded at the storage boundary.
type ProductOffer struct {
	ProductID                    string         `gorm:"primaryKey;column:product_id" json:"product_id"`
	ProductName                  string         `gorm:"not null;column:product_name" json:"product_name"`
	ProductType                  string         `gorm:"not null;column:product_type" json:"product_type"`
	Category                     string         `gorm:"not null;index;column:category" json:"category"`
	PersonaTargets               datatypes.JSON `gorm:"column:persona_targets" json:"persona_targets"`
	ShortDescription             string         `gorm:"column:short_description" json:"short_description"`
	Benefits                     datatypes.JSON `gorm:"column:benefits" json:"benefits"`
	TypicalAPYOrFee              string         `gorm:"column:typical_apy_or_fee" json:"typical_apy_or_fee,omitempty"`
	PartnerLink                  string         `gorm:"column:partner_link" json:"partner_link,omitempty"`
	Disclosure                   string         `gorm:"column:disclosure" json:"disclosure"`
	PartnerName                  string         `gorm:"column:partner_name" json:"partner_name,omitempty"`
	MinIncome                    float64        `gorm:"column:min_income;default:0" json:"min_income"`
	MaxCreditUtilization         float64        `gorm:"column:max_credit_utilization;default:1.0" json:"max_credit_utilization"`
	RequiresNoExistingSavings    bool           `gorm:"column:requires_no_existing_savings;default:false" json:"requires_no_existing_savings"`
	RequiresNoExistingInvestment bool           `gorm:"column:requires_no_existing_investment;default:false" json:"requires_no_existing_investment"`
	MinCreditScore               *int           `gorm:"column:min_credit_score" json:"min_credit_score,omitempty"`
	CommissionRate               float64        `gorm:"column:commission_rate;default:0" json:"commission_rate"`
	Priority                     int            `gorm:"column:priority;default:0" json:"priority"`
	Active                       bool           `gorm:"column:active;default:true" json:"active"`
	CreatedAt                    time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt                    time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (ProductOffer) TableName() string { return "product_offers" }

func DecodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return []string{}
	}
	if out == nil {
		return []string{}
	}
	return out
}

func EncodeStringList(vals []string) datatypes.JSON {
	if vals == nil {
		vals = []string{}
	}
	b, _ := json.Marshal(vals)
	return datatypes.JSON(b)
}

// TargetsPersona reports whether the offer lists the given persona. Callers
// are expected to normalize experiment-suffixed personas first.
func (p ProductOffer) TargetsPersona(persona string) bool {
	for _, t := range DecodeStringList(p.PersonaTargets) {
		if t == persona {
			return true
		}
	}
	return false
}
