// Package handler exposes the alert review surface over HTTP. All
// routes require an authenticated analyst; state changes carry the
// analyst's identity into the audit trail.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"vigil/internal/platform/metrics"
	"vigil/internal/platform/middleware"
	"vigil/internal/review"
	"vigil/internal/screening"
	"vigil/internal/screening/ports"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/httputil"
	"vigil/pkg/requestcontext"
)

// requestTimeout bounds every review request.
const requestTimeout = 30 * time.Second

// Service defines the interface for review operations.
type Service interface {
	ListAlerts(ctx context.Context, filter ports.AlertFilter) ([]screening.AlertRecord, error)
	GetAlert(ctx context.Context, alertID id.AlertID) (*screening.AlertRecord, error)
	UpdateStatus(ctx context.Context, alertID id.AlertID, to screening.AlertStatus, note string) (*screening.AlertRecord, error)
	Summarize(ctx context.Context) (*review.Summary, error)
}

// Handler handles alert review endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
	security     middleware.SecurityEvents
}

// New creates a review Handler.
func New(
	service Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	security middleware.SecurityEvents) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		metrics:      metrics,
		jwtValidator: jwtValidator,
		security:     security,
	}
}

// Register registers the review routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	reviewRouter := chi.NewRouter()
	reviewRouter.Use(middleware.Recovery(h.logger))
	reviewRouter.Use(middleware.RequestID)
	reviewRouter.Use(middleware.ClientMetadata)
	reviewRouter.Use(middleware.RequestTime)
	reviewRouter.Use(middleware.Logger(h.logger))
	reviewRouter.Use(middleware.Timeout(requestTimeout))
	reviewRouter.Use(middleware.ContentTypeJSON)
	reviewRouter.Use(middleware.LatencyMiddleware(h.metrics))
	reviewRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger, h.security))
	reviewRouter.Get("/alerts", h.handleListAlerts)
	reviewRouter.Get("/alerts/{alertID}", h.handleGetAlert)
	reviewRouter.Post("/alerts/{alertID}/status", h.handleUpdateStatus)
	reviewRouter.Get("/reports/summary", h.handleSummary)

	r.Mount("/v1", reviewRouter)
}

// handleListAlerts handles GET /v1/alerts.
func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	query := r.URL.Query()
	filter, err := parseListFilter(query.Get("status"), query.Get("severity"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if raw := query.Get("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a non-negative integer"))
			return
		}
		filter.Limit = limit
	}

	alerts, err := h.service.ListAlerts(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list alerts",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ListAlertsResponse{
		Alerts: alerts,
		Count:  len(alerts),
	})
}

// handleGetAlert handles GET /v1/alerts/{alertID}.
func (h *Handler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	alertID, err := id.ParseAlertID(chi.URLParam(r, "alertID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid alert id"))
		return
	}

	alert, err := h.service.GetAlert(ctx, alertID)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to load alert",
				"request_id", requestID,
				"alert_id", alertID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, alert)
}

// handleUpdateStatus handles POST /v1/alerts/{alertID}/status.
func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	analystID := requestcontext.AnalystID(ctx)
	if analystID == "" {
		// RequireAuth populates this on every authorized request.
		h.logger.ErrorContext(ctx, "analyst missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	alertID, err := id.ParseAlertID(chi.URLParam(r, "alertID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid alert id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	updated, err := h.service.UpdateStatus(ctx, alertID, req.ParsedStatus(), req.Note)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to update alert status",
				"request_id", requestID,
				"alert_id", alertID,
				"analyst_id", analystID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "alert status updated",
		"request_id", requestID,
		"alert_id", alertID,
		"analyst_id", analystID,
		"status", updated.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, updated)
}

// handleSummary handles GET /v1/reports/summary.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	summary, err := h.service.Summarize(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build summary",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, summary)
}

// ListAlertsResponse is the HTTP response for GET /v1/alerts.
type ListAlertsResponse struct {
	Alerts []screening.AlertRecord `json:"alerts"`
	Count  int                     `json:"count"`
}
