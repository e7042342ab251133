// Package screening defines the fraud screening domain model shared by the
// pipeline stages: ledger records fetched from the upstream store, the
// enriched context built from them, the risk assessment produced by the
// scoring stage, and the audit report and alert record derived from it.
//
// Every inter-stage payload is constructed once and treated as immutable.
// A re-run of the same transaction produces a new, independent set of
// entities.
package screening

import (
	"sort"
	"time"

	id "vigil/pkg/domain"
)

// Transaction is a ledger transaction record. Owned by the upstream store,
// read-only to the screening pipeline.
type Transaction struct {
	ID                 id.TransactionID `json:"transaction_id"`
	CustomerID         id.CustomerID    `json:"customer_id"`
	Amount             float64          `json:"amount"`
	Currency           string           `json:"currency"`
	DestinationCountry string           `json:"destination_country"`
	Timestamp          time.Time        `json:"timestamp"`
}

// CustomerProfile is the ledger's view of the transacting customer.
type CustomerProfile struct {
	CustomerID       id.CustomerID `json:"customer_id"`
	Name             string        `json:"name"`
	Country          string        `json:"country"`
	AccountAgeDays   int           `json:"account_age_days"`
	DeviceTrustScore float64       `json:"device_trust_score"` // 0..1
	PastFraud        bool          `json:"past_fraud"`
}

// UnknownCustomer returns the profile used when the ledger has no record
// for the customer. Device trust defaults to full trust so an absent
// profile does not fabricate a low-trust signal; account age zero still
// reads as a new account, which is the conservative reading.
func UnknownCustomer(customerID id.CustomerID) CustomerProfile {
	return CustomerProfile{CustomerID: customerID, DeviceTrustScore: 1.0}
}

// MLPrediction is an advisory fraud probability from the ledger's model
// service. It is surfaced to the reasoner inside the prompt and never
// added to the deterministic rule score.
type MLPrediction struct {
	TransactionID id.TransactionID `json:"transaction_id"`
	Score         float64          `json:"score"` // 0..1
	ModelVersion  string           `json:"model_version"`
}

// DerivedFlags are the comparative features computed by the enrichment
// stage from the transaction and its customer context.
type DerivedFlags struct {
	HighAmount      bool    `json:"high_amount"`
	HighRiskCountry bool    `json:"high_risk_country"`
	NewAccount      bool    `json:"new_account"`
	LowDeviceTrust  bool    `json:"low_device_trust"`
	PastFraud       bool    `json:"past_fraud"`
	CrossBorder     bool    `json:"cross_border"`
	AmountVsAverage float64 `json:"amount_vs_average"` // 0 when no history
}

// EnrichedContext is the enrichment stage's output: the transaction, its
// customer context, and derived flags. Created once per run, never mutated
// afterward, consumed by risk scoring only.
type EnrichedContext struct {
	Transaction        Transaction
	Customer           CustomerProfile
	CustomerKnown      bool
	History            []Transaction
	DestinationHistory []Transaction
	Prediction         *MLPrediction // nil when unavailable
	Flags              DerivedFlags
}

// RiskLevel bands a risk score. Derived from the score via LevelForScore
// only, so a level can never disagree with its score.
type RiskLevel string

const (
	LevelLow    RiskLevel = "LOW"
	LevelMedium RiskLevel = "MEDIUM"
	LevelHigh   RiskLevel = "HIGH"
)

// Recommendation is the screening verdict for a transaction.
type Recommendation string

const (
	RecommendApprove     Recommendation = "APPROVE"
	RecommendInvestigate Recommendation = "INVESTIGATE"
	RecommendBlock       Recommendation = "BLOCK"
)

// RiskAssessment is the risk scoring stage's output. Immutable; both the
// audit and alert branches consume the same value concurrently.
type RiskAssessment struct {
	TransactionID  id.TransactionID `json:"transaction_id"`
	Score          float64          `json:"score"` // 0..100
	Level          RiskLevel        `json:"level"`
	Factors        []RiskFactor     `json:"factors"` // normalized set
	Narrative      string           `json:"narrative"`
	Recommendation Recommendation   `json:"recommendation"`
}

// HasFactor reports whether the assessment carries the given factor.
func (a RiskAssessment) HasFactor(f RiskFactor) bool {
	for _, have := range a.Factors {
		if have == f {
			return true
		}
	}
	return false
}

// Degraded reports whether the assessment was computed without the
// narrative component (reasoner failure or timeout).
func (a RiskAssessment) Degraded() bool {
	return a.HasFactor(FactorDegradedAnalysis)
}

// ComplianceRating grades a transaction's regulatory standing.
type ComplianceRating string

const (
	RatingCompliant             ComplianceRating = "COMPLIANT"
	RatingConditionalCompliance ComplianceRating = "CONDITIONAL_COMPLIANCE"
	RatingNonCompliant          ComplianceRating = "NON_COMPLIANT"
	RatingReviewRequired        ComplianceRating = "REVIEW_REQUIRED"
)

// AuditReport is the compliance branch's terminal output. The rating and
// boolean flags are a deterministic function of the assessment; only the
// report ID and timestamp vary between derivations.
type AuditReport struct {
	ReportID                   id.ReportID      `json:"report_id"`
	TransactionID              id.TransactionID `json:"transaction_id"`
	ComplianceRating           ComplianceRating `json:"compliance_rating"`
	RequiresImmediateAction    bool             `json:"requires_immediate_action"`
	RequiresEnhancedMonitoring bool             `json:"requires_enhanced_monitoring"`
	RequiresRegulatoryFiling   bool             `json:"requires_regulatory_filing"`
	RiskScore                  float64          `json:"risk_score"`
	FactorsIdentified          []RiskFactor     `json:"factors_identified"`
	Recommendations            []string         `json:"recommendations"`
	SupplementaryNotes         string           `json:"supplementary_notes,omitempty"` // advisory prose, never flips the rating
	GeneratedAt                time.Time        `json:"generated_at"`
	NextReviewDate             time.Time        `json:"next_review_date"`
}

// AlertSeverity grades a fraud alert by score band.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "LOW"
	SeverityMedium   AlertSeverity = "MEDIUM"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// AlertStatus tracks an alert through review.
type AlertStatus string

const (
	StatusOpen          AlertStatus = "OPEN"
	StatusInvestigating AlertStatus = "INVESTIGATING"
	StatusResolved      AlertStatus = "RESOLVED"
	StatusFalsePositive AlertStatus = "FALSE_POSITIVE"
)

// ValidStatusTransition reports whether an alert may move between the two
// statuses. OPEN precedes INVESTIGATING, which precedes the two terminal
// states; terminal states never transition.
func ValidStatusTransition(from, to AlertStatus) bool {
	switch from {
	case StatusOpen:
		return to == StatusInvestigating
	case StatusInvestigating:
		return to == StatusResolved || to == StatusFalsePositive
	default:
		return false
	}
}

// DecisionAction is the operational action attached to an alert.
type DecisionAction string

const (
	ActionAllow       DecisionAction = "ALLOW"
	ActionBlock       DecisionAction = "BLOCK"
	ActionMonitor     DecisionAction = "MONITOR"
	ActionInvestigate DecisionAction = "INVESTIGATE"
)

// DefaultAssignee receives newly created alerts.
const DefaultAssignee = "fraud_monitoring_team"

// AlertRecord is the fraud branch's terminal output when the eligibility
// predicate holds. One exists per alerted run; ineligible runs produce no
// record at all.
type AlertRecord struct {
	AlertID        id.AlertID       `json:"alert_id"`
	TransactionID  id.TransactionID `json:"transaction_id"`
	CustomerID     id.CustomerID    `json:"customer_id"`
	Severity       AlertSeverity    `json:"severity"`
	Status         AlertStatus      `json:"status"`
	DecisionAction DecisionAction   `json:"decision_action"`
	RiskScore      float64          `json:"risk_score"`
	Factors        []RiskFactor     `json:"factors"`
	Reasoning      string           `json:"reasoning"`
	AssignedTo     string           `json:"assigned_to"`
	Notes          []string         `json:"notes,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NormalizeFactors returns a sorted, duplicate-free copy of the given
// factors. Assessments carry factors with set semantics; normalizing at
// construction keeps comparisons and storage deterministic.
func NormalizeFactors(factors []RiskFactor) []RiskFactor {
	if len(factors) == 0 {
		return nil
	}
	seen := make(map[RiskFactor]struct{}, len(factors))
	out := make([]RiskFactor, 0, len(factors))
	for _, f := range factors {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
