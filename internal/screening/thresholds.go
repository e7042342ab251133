package screening

// Score thresholds shared by every derivation in the pipeline. Level,
// recommendation, compliance rating, and alert severity are all banded
// off these constants so no two derivations can disagree about the same
// score. Business-tunable, but tuned here and nowhere else.
const (
	// ScoreHigh is the HIGH/BLOCK boundary. At or above it a transaction
	// is blocked, rated NON_COMPLIANT, and alerted at HIGH severity.
	ScoreHigh = 75.0

	// ScoreMedium is the MEDIUM/INVESTIGATE boundary.
	ScoreMedium = 45.0

	// ScoreCritical upgrades an alert's severity to CRITICAL.
	ScoreCritical = 90.0

	// ScoreEnhancedMonitoring is the audit boundary below ScoreHigh at
	// which enhanced monitoring applies (CONDITIONAL_COMPLIANCE band).
	// It is also the MEDIUM alert severity boundary.
	ScoreEnhancedMonitoring = 50.0
)

// LevelForScore bands a score into a risk level.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= ScoreHigh:
		return LevelHigh
	case score >= ScoreMedium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// RecommendationForScore maps a score to the screening verdict. Uses the
// same boundaries as LevelForScore: HIGH is always BLOCK, MEDIUM always
// INVESTIGATE, LOW always APPROVE.
func RecommendationForScore(score float64) Recommendation {
	switch {
	case score >= ScoreHigh:
		return RecommendBlock
	case score >= ScoreMedium:
		return RecommendInvestigate
	default:
		return RecommendApprove
	}
}

// SeverityForScore bands a score into an alert severity.
func SeverityForScore(score float64) AlertSeverity {
	switch {
	case score >= ScoreCritical:
		return SeverityCritical
	case score >= ScoreHigh:
		return SeverityHigh
	case score >= ScoreEnhancedMonitoring:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ActionForRecommendation maps the screening verdict to the alert's
// operational action. APPROVE still monitors: an approved transaction
// that reached the alert stage carried an eligibility factor worth
// watching.
func ActionForRecommendation(rec Recommendation) DecisionAction {
	switch rec {
	case RecommendBlock:
		return ActionBlock
	case RecommendInvestigate:
		return ActionInvestigate
	default:
		return ActionMonitor
	}
}

// ClampScore bounds a score to the canonical [0,100] range.
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
