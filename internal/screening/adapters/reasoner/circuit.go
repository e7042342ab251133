// Package reasoner decorates Reasoner implementations with reliability
// policy shared by every backend.
package reasoner

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"vigil/internal/screening/ports"
	"vigil/pkg/platform/circuit"
	"vigil/pkg/platform/sentinel"
)

const defaultProbeInterval = 30 * time.Second

// Circuit guards a Reasoner with a circuit breaker. While the circuit is
// open, calls fail immediately with ErrUnavailable instead of waiting
// out the caller's timeout against a dead upstream; the risk stage then
// takes its rule-only degraded path. One probe per interval is let
// through so consecutive successes can close the circuit again.
type Circuit struct {
	primary ports.Reasoner
	breaker *circuit.Breaker
	logger  *slog.Logger

	probeInterval time.Duration
	lastProbe     atomic.Int64 // unix nanos of the last probe
}

// CircuitOption configures the Circuit.
type CircuitOption func(*Circuit)

// WithBreaker replaces the default breaker, e.g. to tune thresholds.
func WithBreaker(b *circuit.Breaker) CircuitOption {
	return func(c *Circuit) {
		if b != nil {
			c.breaker = b
		}
	}
}

// WithProbeInterval sets how often an open circuit lets a call through
// to the primary.
func WithProbeInterval(d time.Duration) CircuitOption {
	return func(c *Circuit) {
		if d > 0 {
			c.probeInterval = d
		}
	}
}

// WithLogger sets the logger for state transitions.
func WithLogger(logger *slog.Logger) CircuitOption {
	return func(c *Circuit) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCircuit wraps the primary reasoner.
func NewCircuit(primary ports.Reasoner, opts ...CircuitOption) (*Circuit, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary reasoner is required")
	}

	c := &Circuit{
		primary:       primary,
		breaker:       circuit.New("reasoner"),
		logger:        slog.Default(),
		probeInterval: defaultProbeInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run submits the prompt to the primary unless the circuit is open.
func (c *Circuit) Run(ctx context.Context, prompt string) (string, error) {
	if c.breaker.IsOpen() && !c.claimProbe() {
		return "", fmt.Errorf("reasoner circuit open: %w", sentinel.ErrUnavailable)
	}

	text, err := c.primary.Run(ctx, prompt)
	if err != nil {
		// Caller cancellation says nothing about the dependency's health.
		if ctx.Err() != nil {
			return "", err
		}

		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "reasoner circuit opened",
				"dependency", c.breaker.Name(),
				"error", err,
			)
		}
		return "", err
	}

	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "reasoner circuit closed",
			"dependency", c.breaker.Name(),
		)
	}
	return text, nil
}

// State exposes the breaker state for health reporting.
func (c *Circuit) State() circuit.State {
	return c.breaker.State()
}

// claimProbe reports whether this call won the right to probe the
// primary. At most one caller per interval does.
func (c *Circuit) claimProbe() bool {
	now := time.Now().UnixNano()
	last := c.lastProbe.Load()
	if now-last < int64(c.probeInterval) {
		return false
	}
	return c.lastProbe.CompareAndSwap(last, now)
}
