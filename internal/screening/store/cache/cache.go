// Package cache fronts ledger customer-profile lookups with Redis.
// Profiles change rarely and are fetched on every screening run, so a
// short TTL removes most upstream round trips. The cache is strictly
// best-effort: any Redis failure falls through to the wrapped store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"vigil/internal/screening"
	"vigil/internal/screening/metrics"
	"vigil/internal/screening/ports"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/events"
	"vigil/pkg/requestcontext"
)

const (
	customerKeyPrefix = "vigil:customer:"
	defaultProfileTTL = 5 * time.Minute
)

// OpsEvents receives cache telemetry. Tracking is best-effort and
// non-blocking; a nil sink disables it.
type OpsEvents interface {
	Track(ctx context.Context, event events.OpsEvent)
}

// LedgerStore decorates a ports.LedgerStore with a Redis read-through
// cache for GetCustomer. All other lookups pass through unchanged.
type LedgerStore struct {
	inner   ports.LedgerStore
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	ops     OpsEvents
}

// Option configures the caching store.
type Option func(*LedgerStore)

// WithTTL overrides the profile cache TTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *LedgerStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *LedgerStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *LedgerStore) {
		s.metrics = m
	}
}

// WithOpsEvents enables cache-miss telemetry on the events pipeline.
func WithOpsEvents(sink OpsEvents) Option {
	return func(s *LedgerStore) {
		s.ops = sink
	}
}

// New wraps inner with customer-profile caching on the given Redis
// client.
func New(inner ports.LedgerStore, client *redis.Client, opts ...Option) (*LedgerStore, error) {
	if inner == nil {
		return nil, errors.New("ledger store is required")
	}
	if client == nil {
		return nil, errors.New("redis client is required")
	}

	s := &LedgerStore{
		inner:  inner,
		client: client,
		ttl:    defaultProfileTTL,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetCustomer returns the cached profile when present, otherwise reads
// through to the wrapped store and caches the result.
func (s *LedgerStore) GetCustomer(ctx context.Context, customerID id.CustomerID) (*screening.CustomerProfile, error) {
	key := customerKeyPrefix + customerID.String()

	payload, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var profile screening.CustomerProfile
		if jsonErr := json.Unmarshal(payload, &profile); jsonErr == nil {
			s.metrics.RecordCacheLookup("hit")
			return &profile, nil
		}
		// Unreadable entry: treat as a miss and let the refetch overwrite it.
		s.metrics.RecordCacheLookup("error")
	case errors.Is(err, redis.Nil):
		s.metrics.RecordCacheLookup("miss")
		if s.ops != nil {
			s.ops.Track(ctx, events.OpsEvent{
				Subject:   customerID.String(),
				Action:    string(events.EventCacheMiss),
				RequestID: requestcontext.RequestID(ctx),
			})
		}
	default:
		s.metrics.RecordCacheLookup("error")
		s.logger.WarnContext(ctx, "customer cache lookup failed",
			"customer_id", customerID,
			"error", err,
		)
	}

	profile, err := s.inner.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if payload, jsonErr := json.Marshal(profile); jsonErr == nil {
		if setErr := s.client.Set(ctx, key, payload, s.ttl).Err(); setErr != nil {
			s.logger.WarnContext(ctx, "customer cache write failed",
				"customer_id", customerID,
				"error", setErr,
			)
		}
	}
	return profile, nil
}

// Invalidate drops the cached profile for a customer.
func (s *LedgerStore) Invalidate(ctx context.Context, customerID id.CustomerID) error {
	return s.client.Del(ctx, customerKeyPrefix+customerID.String()).Err()
}

func (s *LedgerStore) GetTransaction(ctx context.Context, txID id.TransactionID) (*screening.Transaction, error) {
	return s.inner.GetTransaction(ctx, txID)
}

func (s *LedgerStore) GetTransactionsByCustomer(ctx context.Context, customerID id.CustomerID) ([]screening.Transaction, error) {
	return s.inner.GetTransactionsByCustomer(ctx, customerID)
}

func (s *LedgerStore) GetTransactionsByDestination(ctx context.Context, country string) ([]screening.Transaction, error) {
	return s.inner.GetTransactionsByDestination(ctx, country)
}

func (s *LedgerStore) GetPrediction(ctx context.Context, txID id.TransactionID) (*screening.MLPrediction, error) {
	return s.inner.GetPrediction(ctx, txID)
}
