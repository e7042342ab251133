// Package enrich implements the data enrichment stage: fetch a
// transaction and its customer context from the ledger, derive the
// comparative flags the rule engine scores on, and emit an immutable
// EnrichedContext.
//
// Only the transaction fetch is fatal. Customer, history, destination,
// and prediction lookups are enrichment, not hard dependencies: failures
// degrade to safe defaults with a logged warning.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"vigil/internal/screening"
	"vigil/internal/screening/metrics"
	"vigil/internal/screening/ports"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
	pstrings "vigil/pkg/platform/strings"
)

// Flag thresholds. Fixed by policy; the high-risk country set is the
// configurable part.
const (
	highAmountThreshold     = 10000.0
	newAccountMaxAgeDays    = 30
	lowDeviceTrustThreshold = 0.5
)

const defaultFetchTimeout = 10 * time.Second

// DefaultHighRiskCountries is the default high-risk jurisdiction set.
// The sanctions subset the rule engine scores separately is stricter.
func DefaultHighRiskCountries() []string {
	return []string{"NG", "IR", "RU", "KP", "SY", "AF", "MM"}
}

// Service is the enrichment stage.
type Service struct {
	ledger   ports.LedgerStore
	highRisk map[string]struct{}
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithHighRiskCountries replaces the default high-risk country set.
// Codes are normalized to uppercase; an empty list keeps the default.
func WithHighRiskCountries(codes []string) Option {
	return func(s *Service) {
		codes = pstrings.DedupeAndTrimUpper(codes)
		if len(codes) == 0 {
			return
		}
		s.highRisk = make(map[string]struct{}, len(codes))
		for _, c := range codes {
			s.highRisk[c] = struct{}{}
		}
	}
}

// WithFetchTimeout bounds the concurrent context fetches as a group.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func New(ledger ports.LedgerStore, opts ...Option) (*Service, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger store is required")
	}

	s := &Service{
		ledger:  ledger,
		timeout: defaultFetchTimeout,
	}
	WithHighRiskCountries(DefaultHighRiskCountries())(s)

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Enrich fetches the transaction and its context and derives flags. A
// missing transaction aborts the run; every other lookup degrades.
func (s *Service) Enrich(ctx context.Context, txID id.TransactionID) (*screening.EnrichedContext, error) {
	tx, err := s.ledger.GetTransaction(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("fetch transaction %s: %w", txID, err)
	}

	enriched := &screening.EnrichedContext{Transaction: *tx}

	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	g, fctx := errgroup.WithContext(fctx)
	s.gatherContext(fctx, g, enriched)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	enriched.Flags = s.deriveFlags(enriched)
	return enriched, nil
}

// gatherContext launches the four context fetches in parallel. None of
// them fails the group: each degrades independently.
func (s *Service) gatherContext(ctx context.Context, g *errgroup.Group, enriched *screening.EnrichedContext) {
	tx := enriched.Transaction

	g.Go(func() error {
		start := time.Now()
		profile, err := s.ledger.GetCustomer(ctx, tx.CustomerID)
		s.metrics.ObserveSourceLatency("customer", time.Since(start))

		switch {
		case err == nil:
			enriched.Customer = *profile
			enriched.CustomerKnown = true
		case errors.Is(err, sentinel.ErrNotFound):
			s.logger.InfoContext(ctx, "customer unknown, proceeding with empty profile",
				"transaction_id", tx.ID,
				"customer_id", tx.CustomerID,
			)
			enriched.Customer = screening.UnknownCustomer(tx.CustomerID)
		default:
			s.logger.WarnContext(ctx, "customer lookup degraded to empty profile",
				"transaction_id", tx.ID,
				"customer_id", tx.CustomerID,
				"error", err,
			)
			enriched.Customer = screening.UnknownCustomer(tx.CustomerID)
		}
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		history, err := s.ledger.GetTransactionsByCustomer(ctx, tx.CustomerID)
		s.metrics.ObserveSourceLatency("history", time.Since(start))

		if err != nil {
			s.logger.WarnContext(ctx, "history lookup degraded to empty sequence",
				"transaction_id", tx.ID,
				"customer_id", tx.CustomerID,
				"error", err,
			)
			return nil
		}
		enriched.History = history
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		destHistory, err := s.ledger.GetTransactionsByDestination(ctx, tx.DestinationCountry)
		s.metrics.ObserveSourceLatency("destination", time.Since(start))

		if err != nil {
			s.logger.WarnContext(ctx, "destination history lookup degraded to empty sequence",
				"transaction_id", tx.ID,
				"destination", tx.DestinationCountry,
				"error", err,
			)
			return nil
		}
		enriched.DestinationHistory = destHistory
		return nil
	})

	// Prediction is optional advisory context, like a missing credential:
	// absence is not even warning-worthy.
	g.Go(func() error {
		start := time.Now()
		prediction, err := s.ledger.GetPrediction(ctx, tx.ID)
		s.metrics.ObserveSourceLatency("prediction", time.Since(start))

		if err != nil {
			s.logger.DebugContext(ctx, "prediction unavailable",
				"transaction_id", tx.ID,
				"error", err,
			)
			return nil
		}
		enriched.Prediction = prediction
		return nil
	})
}

func (s *Service) deriveFlags(enriched *screening.EnrichedContext) screening.DerivedFlags {
	tx := enriched.Transaction
	customer := enriched.Customer

	_, highRisk := s.highRisk[tx.DestinationCountry]

	// Cross-border needs a known home country; an empty profile must not
	// fabricate the flag.
	crossBorder := enriched.CustomerKnown && customer.Country != "" && customer.Country != tx.DestinationCountry

	ratio := 0.0
	if avg := averageAmount(enriched.History); avg > 0 {
		ratio = tx.Amount / avg
	}

	return screening.DerivedFlags{
		HighAmount:      tx.Amount > highAmountThreshold,
		HighRiskCountry: highRisk,
		NewAccount:      customer.AccountAgeDays < newAccountMaxAgeDays,
		LowDeviceTrust:  customer.DeviceTrustScore < lowDeviceTrustThreshold,
		PastFraud:       customer.PastFraud,
		CrossBorder:     crossBorder,
		AmountVsAverage: ratio,
	}
}

func averageAmount(history []screening.Transaction) float64 {
	if len(history) == 0 {
		return 0
	}
	total := 0.0
	for _, tx := range history {
		total += tx.Amount
	}
	return total / float64(len(history))
}
