// Package handler exposes transaction screening over HTTP. The single
// endpoint is open to internal payment services; the batch endpoint is
// reserved for scheduled jobs and sits behind the pre-shared service
// key.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"vigil/internal/platform/metrics"
	"vigil/internal/platform/middleware"
	"vigil/internal/screening/workflow"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/events"
	"vigil/pkg/platform/httputil"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/requestcontext"
)

const (
	// screenTimeout covers one full pipeline run: upstream fetches, the
	// reasoner call, and alert dispatch.
	screenTimeout = 60 * time.Second

	// batchTimeout covers a full batch at the bounded concurrency.
	batchTimeout = 10 * time.Minute

	defaultBatchLimit = 4
)

// Service runs the screening workflow for one transaction.
type Service interface {
	Run(ctx context.Context, txID id.TransactionID) (*workflow.Result, error)
}

// OpsEvents receives operational telemetry events. Tracking is
// best-effort and non-blocking; a nil sink disables it.
type OpsEvents interface {
	Track(ctx context.Context, event events.OpsEvent)
}

// Handler handles screening endpoints.
type Handler struct {
	service        Service
	logger         *slog.Logger
	metrics        *metrics.Metrics
	serviceKeyHash string
	security       middleware.SecurityEvents
	ops            OpsEvents
	batchLimit     int
}

// Option configures the Handler.
type Option func(*Handler)

// WithServiceKey sets the bcrypt hash guarding the batch endpoint. An
// empty hash leaves the endpoint disabled.
func WithServiceKey(hash string) Option {
	return func(h *Handler) {
		h.serviceKeyHash = hash
	}
}

// WithSecurityEvents wires authentication failures into the security
// event stream.
func WithSecurityEvents(sink middleware.SecurityEvents) Option {
	return func(h *Handler) {
		h.security = sink
	}
}

// WithOpsEvents enables batch telemetry on the events pipeline.
func WithOpsEvents(sink OpsEvents) Option {
	return func(h *Handler) {
		h.ops = sink
	}
}

// WithBatchLimit overrides how many screenings a batch runs at once.
func WithBatchLimit(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.batchLimit = n
		}
	}
}

// New creates a screening Handler.
func New(service Service, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		service:    service,
		logger:     logger,
		metrics:    m,
		batchLimit: defaultBatchLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the screening routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	screenRouter := chi.NewRouter()
	screenRouter.Use(middleware.Recovery(h.logger))
	screenRouter.Use(middleware.RequestID)
	screenRouter.Use(middleware.ClientMetadata)
	screenRouter.Use(middleware.RequestTime)
	screenRouter.Use(middleware.Logger(h.logger))
	screenRouter.Use(middleware.ContentTypeJSON)
	screenRouter.Use(middleware.LatencyMiddleware(h.metrics))

	screenRouter.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(screenTimeout))
		r.Post("/", h.handleScreen)
	})

	screenRouter.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(batchTimeout))
		r.Use(middleware.RequireServiceKey(h.serviceKeyHash, h.logger, h.security))
		r.Post("/batch", h.handleBatchScreen)
	})

	r.Mount("/v1/screenings", screenRouter)
}

// handleScreen handles POST /v1/screenings.
func (h *Handler) handleScreen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[ScreenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Run(ctx, req.ParsedID())
	if err != nil {
		mapped := mapScreeningError(err)
		if dErrors.CodeOf(mapped) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "screening failed",
				"transaction_id", req.ParsedID(),
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, mapped)
		return
	}

	h.logger.InfoContext(ctx, "screening completed",
		"transaction_id", result.TransactionID,
		"risk_score", result.Assessment.Score,
		"succeeded", result.Succeeded(),
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// handleBatchScreen handles POST /v1/screenings/batch. Transactions run
// at bounded concurrency; one transaction's failure never aborts the
// rest.
func (h *Handler) handleBatchScreen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[BatchScreenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	txIDs := req.ParsedIDs()
	items := make([]BatchItemResponse, len(txIDs))

	var group errgroup.Group
	group.SetLimit(h.batchLimit)
	for i, txID := range txIDs {
		group.Go(func() error {
			result, err := h.service.Run(ctx, txID)
			if err != nil {
				err = mapScreeningError(err)
			}
			items[i] = batchItem(txID, result, err)
			return nil
		})
	}
	// Closures never return errors; per-transaction failures are data in
	// their batch items.
	_ = group.Wait()

	resp := &BatchScreenResponse{
		Items:      items,
		Total:      len(items),
		DurationMS: time.Since(start).Milliseconds(),
	}
	for _, item := range items {
		if item.Error == "" {
			resp.Completed++
		} else {
			resp.Failed++
		}
	}

	h.logger.InfoContext(ctx, "batch screening completed",
		"total", resp.Total,
		"completed", resp.Completed,
		"failed", resp.Failed,
		"request_id", requestID,
		"duration_ms", resp.DurationMS,
	)
	if h.ops != nil {
		h.ops.Track(ctx, events.OpsEvent{
			Subject:   requestID,
			Action:    string(events.EventBatchCompleted),
			RequestID: requestID,
		})
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// mapScreeningError translates workflow failures onto the HTTP error
// taxonomy. Coded errors pass through untouched.
func mapScreeningError(err error) error {
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return coded
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "transaction not found")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.New(dErrors.CodeTimeout, "screening timed out")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.New(dErrors.CodeUnavailable, "upstream dependency unavailable")
	default:
		return dErrors.New(dErrors.CodeInternal, "screening failed")
	}
}
