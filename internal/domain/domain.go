package domain

import (
	"github.com/VictorGoic0/SpendSense/internal/domain/bank"
	"github.com/VictorGoic0/SpendSense/internal/domain/catalog"
	"github.com/VictorGoic0/SpendSense/internal/domain/insight"
	"github.com/VictorGoic0/SpendSense/internal/domain/recs"
	"github.com/VictorGoic0/SpendSense/internal/domain/user"
	"gorm.io/datatypes"
)

const (
	UserTypeCustomer = user.TypeCustomer
	UserTypeOperator = user.TypeOperator

	ConsentActionGranted = user.ConsentActionGranted
	ConsentActionRevoked = user.ConsentActionRevoked

	PersonaHighUtilization   = insight.PersonaHighUtilization
	PersonaVariableIncome    = insight.PersonaVariableIncome
	PersonaSubscriptionHeavy = insight.PersonaSubscriptionHeavy
	PersonaSavingsBuilder    = insight.PersonaSavingsBuilder
	PersonaWealthBuilder     = insight.PersonaWealthBuilder
	PersonaGeneralWellness   = insight.PersonaGeneralWellness

	RecStatusPendingApproval = recs.StatusPendingApproval
	RecStatusApproved        = recs.StatusApproved
	RecStatusOverridden      = recs.StatusOverridden
	RecStatusRejected        = recs.StatusRejected

	ContentTypeEducation    = recs.ContentTypeEducation
	ContentTypePartnerOffer = recs.ContentTypePartnerOffer

	ActionApprove  = recs.ActionApprove
	ActionReject   = recs.ActionReject
	ActionOverride = recs.ActionOverride

	WarningSeverityCritical        = recs.WarningSeverityCritical
	WarningSeverityNotable         = recs.WarningSeverityNotable
	WarningForbiddenPhrase         = recs.WarningForbiddenPhrase
	WarningLacksEmpoweringLanguage = recs.WarningLacksEmpoweringLanguage
)

type User = user.User
type ConsentLog = user.ConsentLog

type Account = bank.Account
type Transaction = bank.Transaction
type Liability = bank.Liability

type FeatureSnapshot = insight.FeatureSnapshot
type PersonaAssignment = insight.PersonaAssignment
type ReasoningTrace = insight.ReasoningTrace
type EvaluationMetric = insight.EvaluationMetric
type EvaluationDetails = insight.EvaluationDetails

type ProductOffer = catalog.ProductOffer

type Recommendation = recs.Recommendation
type RecommendationMetadata = recs.Metadata
type ToneWarning = recs.ToneWarning
type OriginalContent = recs.OriginalContent
type OperatorAction = recs.OperatorAction

func AllPersonaTypes() []string { return insight.AllPersonaTypes() }

func IsValidPersonaType(persona string) bool { return insight.IsValidPersonaType(persona) }

func NormalizePersona(persona string) string { return insight.NormalizePersona(persona) }

func DecodeReasoningTrace(raw datatypes.JSON) insight.ReasoningTrace {
	return insight.DecodeReasoningTrace(raw)
}

func EncodeReasoningTrace(tr insight.ReasoningTrace) datatypes.JSON {
	return insight.EncodeReasoningTrace(tr)
}

func DecodeEvaluationDetails(raw datatypes.JSON) insight.EvaluationDetails {
	return insight.DecodeEvaluationDetails(raw)
}

func EncodeEvaluationDetails(d insight.EvaluationDetails) datatypes.JSON {
	return insight.EncodeEvaluationDetails(d)
}

func DecodeRecommendationMetadata(raw datatypes.JSON) recs.Metadata {
	return recs.DecodeMetadata(raw)
}

func EncodeRecommendationMetadata(m recs.Metadata) datatypes.JSON {
	return recs.EncodeMetadata(m)
}
