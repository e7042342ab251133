package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the screening pipeline. All helper
// methods are nil-safe so stages can run without metrics in tests.
type Metrics struct {
	// Enrichment fetch latencies by source
	SourceLatency *prometheus.HistogramVec

	// Stage durations by stage name
	StageLatency *prometheus.HistogramVec

	// Workflow runs by outcome
	Runs *prometheus.CounterVec

	// Decision mix by level and recommendation
	Decisions *prometheus.CounterVec

	// Compliance rating mix
	ComplianceRatings *prometheus.CounterVec

	// Alert branch outcomes by severity and disposition
	Alerts *prometheus.CounterVec

	// Final risk score distribution
	RiskScores prometheus.Histogram

	// Reasoner failures that degraded an assessment
	DegradedAnalyses prometheus.Counter

	// Customer-profile cache lookups by result
	CacheLookups *prometheus.CounterVec
}

// New creates a Metrics instance with all screening metrics registered.
func New() *Metrics {
	return &Metrics{
		SourceLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vigil_screening_source_duration_seconds",
			Help:    "Duration of enrichment fetches by source",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}), // source: "customer", "history", "destination", "prediction"

		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vigil_screening_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}), // stage: "enrich", "risk", "audit", "alert"

		Runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_screening_runs_total",
			Help: "Total workflow runs by outcome",
		}, []string{"outcome"}), // outcome: "completed", "partial", "upstream_failed"

		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_screening_decisions_total",
			Help: "Total risk decisions by level and recommendation",
		}, []string{"level", "recommendation"}),

		ComplianceRatings: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_screening_compliance_ratings_total",
			Help: "Total audit reports by compliance rating",
		}, []string{"rating"}),

		Alerts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_screening_alerts_total",
			Help: "Alert branch outcomes by severity and disposition",
		}, []string{"severity", "disposition"}), // disposition: "created", "dispatch_failed", "no_action"

		RiskScores: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_screening_risk_score",
			Help:    "Distribution of final risk scores",
			Buckets: []float64{10, 20, 30, 40, 45, 50, 60, 70, 75, 80, 90, 100},
		}),

		DegradedAnalyses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_screening_degraded_analyses_total",
			Help: "Assessments computed without the narrative component",
		}),

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_screening_cache_lookups_total",
			Help: "Customer-profile cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "error"
	}
}

// ObserveSourceLatency records one enrichment fetch duration.
func (m *Metrics) ObserveSourceLatency(source string, d time.Duration) {
	if m != nil {
		m.SourceLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// ObserveStageLatency records one stage duration.
func (m *Metrics) ObserveStageLatency(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// IncrementRun records a workflow run outcome.
func (m *Metrics) IncrementRun(outcome string) {
	if m != nil {
		m.Runs.WithLabelValues(outcome).Inc()
	}
}

// IncrementDecision records the level/recommendation pair of an assessment.
func (m *Metrics) IncrementDecision(level, recommendation string) {
	if m != nil {
		m.Decisions.WithLabelValues(level, recommendation).Inc()
	}
}

// IncrementComplianceRating records an audit report's rating.
func (m *Metrics) IncrementComplianceRating(rating string) {
	if m != nil {
		m.ComplianceRatings.WithLabelValues(rating).Inc()
	}
}

// IncrementAlert records an alert branch disposition.
func (m *Metrics) IncrementAlert(severity, disposition string) {
	if m != nil {
		m.Alerts.WithLabelValues(severity, disposition).Inc()
	}
}

// ObserveRiskScore records a final risk score.
func (m *Metrics) ObserveRiskScore(score float64) {
	if m != nil {
		m.RiskScores.Observe(score)
	}
}

// IncrementDegradedAnalysis records a reasoner failure that forced a
// rule-only assessment.
func (m *Metrics) IncrementDegradedAnalysis() {
	if m != nil {
		m.DegradedAnalyses.Inc()
	}
}

// RecordCacheLookup records a customer-profile cache lookup result.
func (m *Metrics) RecordCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}
