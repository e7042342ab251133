package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies screening events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance.
	// These require guaranteed persistence and long retention.
	// Examples: completed screenings, generated reports, filing obligations.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to fraud monitoring and forensics.
	// These feed into SIEM systems and alerting pipelines.
	// Examples: alert creation, dispatch failures, review actions.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled or aggregated with shorter retention.
	// Examples: screening starts, degraded analysis, cache misses.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category      EventCategory
	Timestamp     time.Time
	TransactionID string
	Subject       string
	Action        string
	Decision      string
	Reason        string
	Score         *float64
	// RequestID carries the correlation ID from the HTTP request context.
	RequestID string
	// ActorID tracks who performed the action when it was not the pipeline
	// itself, such as an analyst updating an alert. This is a string to
	// support various actor identification schemes.
	ActorID string
}

// EventType names a screening event action.
type EventType string

const (
	// Screening lifecycle events
	EventScreeningStarted   EventType = "screening_started"
	EventScreeningCompleted EventType = "screening_completed"
	EventReasonerDegraded   EventType = "reasoner_degraded"
	EventCacheMiss          EventType = "cache_miss"
	EventBatchCompleted     EventType = "batch_completed"

	// Report events
	EventReportGenerated          EventType = "report_generated"
	EventRegulatoryFilingRequired EventType = "regulatory_filing_required"

	// Alert events
	EventAlertCreated        EventType = "alert_created"
	EventAlertDispatchFailed EventType = "alert_dispatch_failed"
	EventAlertStatusChanged  EventType = "alert_status_changed"
	EventAlertAssigned       EventType = "alert_assigned"

	// Access events
	EventAuthFailed EventType = "auth_failed"
)

// eventCategories maps each event type to its category.
// Compliance: regulatory significance, long retention required.
// Security: fraud monitoring, SIEM integration, alerting.
// Operations: debugging, operational visibility, can be sampled.
var eventCategories = map[EventType]EventCategory{
	// Compliance events - require guaranteed persistence
	EventScreeningCompleted:       CategoryCompliance,
	EventReportGenerated:          CategoryCompliance,
	EventRegulatoryFilingRequired: CategoryCompliance,

	// Security events - feed into SIEM and alerting
	EventAlertCreated:        CategorySecurity,
	EventAlertDispatchFailed: CategorySecurity,
	EventAlertStatusChanged:  CategorySecurity,
	EventAlertAssigned:       CategorySecurity,
	EventAuthFailed:          CategorySecurity,

	// Operations events - routine activity, can be sampled
	EventScreeningStarted: CategoryOperations,
	EventReasonerDegraded: CategoryOperations,
	EventCacheMiss:        CategoryOperations,
	EventBatchCompleted:   CategoryOperations,
}

// Category returns the EventCategory for this event type.
// Unknown events default to CategoryOperations.
func (e EventType) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Kafka topics, one per category so consumers can apply per-category
// retention and scaling.
const (
	TopicCompliance = "screening.events.compliance"
	TopicSecurity   = "screening.events.security"
	TopicOps        = "screening.events.ops"
)

// TopicFor returns the Kafka topic for a category.
func TopicFor(category EventCategory) string {
	switch category {
	case CategoryCompliance:
		return TopicCompliance
	case CategorySecurity:
		return TopicSecurity
	default:
		return TopicOps
	}
}

// Store persists canonical events. The postgres implementation writes to
// the transactional outbox; the memory implementation appends directly.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// OutboxEntry is a pending row awaiting publication to Kafka. The entry
// ID doubles as the event ID so consumers can deduplicate.
type OutboxEntry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// -----------------------------------------------------------------------------
// Right-sized event types for the tri-publisher architecture
// -----------------------------------------------------------------------------

// ComplianceEvent captures regulatory-significant screening outcomes
// requiring guaranteed persistence. Use with the compliance publisher
// for fail-closed semantics.
type ComplianceEvent struct {
	Timestamp     time.Time // When the event occurred (set automatically if zero)
	TransactionID string    // The transaction screened (required)
	Subject       string    // Customer or counterparty identifier
	Action        string    // The action taken (e.g., "screening_completed")
	Decision      string    // Outcome (e.g., compliance rating, recommendation)
	Score         float64   // Risk score behind the decision
	RequestID     string    // Correlation ID for request tracing
	ActorID       string    // Analyst who acted (if not the pipeline)
}

// Category returns CategoryCompliance (always).
func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToEvent converts to the store-canonical Event type.
func (e ComplianceEvent) ToEvent() Event {
	score := e.Score
	return Event{
		Category:      CategoryCompliance,
		Timestamp:     e.Timestamp,
		TransactionID: e.TransactionID,
		Subject:       e.Subject,
		Action:        e.Action,
		Decision:      e.Decision,
		Score:         &score,
		RequestID:     e.RequestID,
		ActorID:       e.ActorID,
	}
}

// SecurityEvent captures fraud-monitoring actions for SIEM and alerting.
// Events are published asynchronously with buffering.
type SecurityEvent struct {
	Timestamp time.Time // When the event occurred (set automatically if zero)
	Subject   string    // Entity involved (alert ID, transaction ID, principal)
	Action    string    // Security action (e.g., "alert_created")
	Reason    string    // Why this happened (e.g., "webhook_unreachable")
	IP        string    // Client IP when the action came over HTTP
	RequestID string    // Correlation ID
	ActorID   string    // Actor if different from subject
	Severity  Severity  // "info", "warning", "critical" for SIEM routing
}

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Category returns CategorySecurity (always).
func (e SecurityEvent) Category() EventCategory { return CategorySecurity }

// ToEvent converts to the store-canonical Event type. The IP and
// severity survive only in the dedicated security table.
func (e SecurityEvent) ToEvent() Event {
	return Event{
		Category:  CategorySecurity,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    e.Action,
		Reason:    e.Reason,
		RequestID: e.RequestID,
		ActorID:   e.ActorID,
	}
}

// OpsEvent captures operational events with minimal overhead.
// Events are fire-and-forget with optional sampling.
type OpsEvent struct {
	Timestamp time.Time // When the event occurred (set automatically if zero)
	Subject   string    // Entity involved
	Action    string    // Operational action (e.g., "cache_miss")
	RequestID string    // Correlation ID
}

// Category returns CategoryOperations (always).
func (e OpsEvent) Category() EventCategory { return CategoryOperations }

// ToEvent converts to the store-canonical Event type.
func (e OpsEvent) ToEvent() Event {
	return Event{
		Category:  CategoryOperations,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    e.Action,
		RequestID: e.RequestID,
	}
}

// -----------------------------------------------------------------------------
// Storage shapes for the materialized per-category tables
// -----------------------------------------------------------------------------

// ComplianceRecord is a compliance event as materialized by the consumer.
type ComplianceRecord struct {
	Timestamp     time.Time
	TransactionID string
	Subject       string
	Action        string
	Decision      string
	Score         float64
	RequestID     string
	ActorID       string
}

// SecurityRecord is a security event as materialized by the consumer.
type SecurityRecord struct {
	Timestamp time.Time
	Subject   string
	Action    string
	Reason    string
	IP        string
	RequestID string
	ActorID   string
	Severity  string
}

// OpsRecord is an operational event as materialized by the consumer.
type OpsRecord struct {
	Timestamp time.Time
	Subject   string
	Action    string
	RequestID string
}
