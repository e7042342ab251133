package screening

// RiskFactor is one tag from the closed fraud/compliance concern
// vocabulary. Assessments carry factors as a set: no duplicates, order
// irrelevant. Rule hits and narrative mentions map onto the same
// vocabulary so the two signals union cleanly.
type RiskFactor string

const (
	// FactorHighRiskJurisdiction marks a destination in the configured
	// high-risk country set, or a narrative naming one as a concern.
	FactorHighRiskJurisdiction RiskFactor = "HIGH_RISK_JURISDICTION"

	// FactorSanctionsConcern marks a destination in the sanctions subset,
	// or a non-negated sanctions mention in the narrative.
	FactorSanctionsConcern RiskFactor = "SANCTIONS_CONCERN"

	// FactorCrossBorder marks a transaction leaving the customer's home
	// country.
	FactorCrossBorder RiskFactor = "CROSS_BORDER_TRANSACTION"

	// FactorUnusualAmount covers both the absolute high-amount threshold
	// and a large multiple of the customer's historical average.
	FactorUnusualAmount RiskFactor = "UNUSUAL_AMOUNT"

	// FactorSuspiciousPattern is narrative-sourced: the reasoner called
	// the transaction suspicious without negating it.
	FactorSuspiciousPattern RiskFactor = "SUSPICIOUS_PATTERN"

	// FactorFrequencyAnomaly is narrative-sourced: unusual transaction
	// frequency flagged by the reasoner.
	FactorFrequencyAnomaly RiskFactor = "FREQUENCY_ANOMALY"

	// FactorPreviousFraud marks a customer with recorded fraud history.
	FactorPreviousFraud RiskFactor = "PREVIOUS_FRAUD_HISTORY"

	// FactorNewAccount marks an account younger than the new-account
	// threshold.
	FactorNewAccount RiskFactor = "NEW_ACCOUNT_RISK"

	// FactorLowDeviceTrust marks a device trust score below threshold.
	FactorLowDeviceTrust RiskFactor = "LOW_DEVICE_TRUST"

	// FactorRegulatoryViolation is narrative-sourced: the reasoner
	// identified a regulatory or compliance violation.
	FactorRegulatoryViolation RiskFactor = "REGULATORY_COMPLIANCE_VIOLATION"

	// FactorDegradedAnalysis marks an assessment computed from rules
	// alone because the reasoner failed or timed out. It prevents a
	// rule-only score from passing as a fully analyzed one.
	FactorDegradedAnalysis RiskFactor = "DEGRADED_ANALYSIS"
)
