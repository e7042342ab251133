package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vigil/internal/platform/middleware"
	"vigil/internal/review"
	"vigil/internal/review/handler/mocks"
	"vigil/internal/screening"
	"vigil/internal/screening/audit"
	"vigil/internal/screening/ports"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/requestcontext"
)

const testAlertID = "ALERT_TX1001_20260402144500"

type ReviewHandlerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *ReviewHandlerSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestReviewHandlerSuite(t *testing.T) {
	suite.Run(t, new(ReviewHandlerSuite))
}

// stubValidator authenticates any token equal to "good-token".
type stubValidator struct{}

func (stubValidator) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	if tokenString != "good-token" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return &middleware.JWTClaims{AnalystID: "analyst_jsmith", Role: "analyst"}, nil
}

func newTestHandler(t *testing.T) (*Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := New(mockService, logger, nil, stubValidator{}, nil)
	return handler, mockService
}

// analystContext injects what RequireAuth hangs on the context before a
// handler runs.
func analystContext(r *http.Request) *http.Request {
	ctx := requestcontext.WithAnalystID(r.Context(), "analyst_jsmith")
	ctx = requestcontext.WithRole(ctx, "analyst")
	return r.WithContext(ctx)
}

// urlParams attaches chi route parameters for direct handler calls.
func urlParams(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func alertFixture(status screening.AlertStatus) *screening.AlertRecord {
	created := time.Date(2026, 4, 2, 14, 45, 0, 0, time.UTC)
	return &screening.AlertRecord{
		AlertID:        testAlertID,
		TransactionID:  "TX1001",
		CustomerID:     "CUST1001",
		Severity:       screening.SeverityHigh,
		Status:         status,
		DecisionAction: screening.ActionInvestigate,
		RiskScore:      0.82,
		AssignedTo:     "fraud-ops",
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

// =============================================================================
// List Alerts Tests
// =============================================================================

func (s *ReviewHandlerSuite) TestHandleListAlerts() {
	handler, mockService := newTestHandler(s.T())
	mockService.EXPECT().
		ListAlerts(gomock.Any(), ports.AlertFilter{Status: screening.StatusOpen, Severity: screening.SeverityHigh, Limit: 5}).
		Return([]screening.AlertRecord{*alertFixture(screening.StatusOpen)}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/alerts?status=open&severity=high&limit=5", nil)
	w := httptest.NewRecorder()
	handler.handleListAlerts(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp ListAlertsResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), 1, resp.Count)
	require.Len(s.T(), resp.Alerts, 1)
	assert.Equal(s.T(), id.AlertID(testAlertID), resp.Alerts[0].AlertID)
}

func (s *ReviewHandlerSuite) TestHandleListAlerts_BadQuery() {
	cases := []struct {
		name  string
		query string
	}{
		{"unknown status", "?status=bogus"},
		{"unknown severity", "?severity=extreme"},
		{"negative limit", "?limit=-1"},
		{"non-numeric limit", "?limit=ten"},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			handler, _ := newTestHandler(s.T())
			req := httptest.NewRequest(http.MethodGet, "/v1/alerts"+tc.query, nil)
			w := httptest.NewRecorder()
			handler.handleListAlerts(w, req)

			assert.Equal(s.T(), http.StatusBadRequest, w.Code)
			assert.Contains(s.T(), w.Body.String(), "invalid_input")
		})
	}
}

// =============================================================================
// Get Alert Tests
// =============================================================================

func (s *ReviewHandlerSuite) TestHandleGetAlert() {
	handler, mockService := newTestHandler(s.T())
	mockService.EXPECT().GetAlert(gomock.Any(), id.AlertID(testAlertID)).
		Return(alertFixture(screening.StatusOpen), nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/alerts/"+testAlertID, nil)
	req = urlParams(req, "alertID", testAlertID)
	w := httptest.NewRecorder()
	handler.handleGetAlert(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp screening.AlertRecord
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), id.AlertID(testAlertID), resp.AlertID)
}

func (s *ReviewHandlerSuite) TestHandleGetAlert_Errors() {
	s.Run("malformed id", func() {
		handler, _ := newTestHandler(s.T())
		req := httptest.NewRequest(http.MethodGet, "/v1/alerts/whatever", nil)
		req = urlParams(req, "alertID", "whatever")
		w := httptest.NewRecorder()
		handler.handleGetAlert(w, req)

		assert.Equal(s.T(), http.StatusBadRequest, w.Code)
		assert.Contains(s.T(), w.Body.String(), "invalid alert id")
	})

	s.Run("unknown alert", func() {
		handler, mockService := newTestHandler(s.T())
		mockService.EXPECT().GetAlert(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "alert not found"))

		req := httptest.NewRequest(http.MethodGet, "/v1/alerts/"+testAlertID, nil)
		req = urlParams(req, "alertID", testAlertID)
		w := httptest.NewRecorder()
		handler.handleGetAlert(w, req)

		assert.Equal(s.T(), http.StatusNotFound, w.Code)
	})
}

// =============================================================================
// Update Status Tests
// =============================================================================

func (s *ReviewHandlerSuite) TestHandleUpdateStatus() {
	handler, mockService := newTestHandler(s.T())
	mockService.EXPECT().
		UpdateStatus(gomock.Any(), id.AlertID(testAlertID), screening.StatusInvestigating, "looking into it").
		Return(alertFixture(screening.StatusInvestigating), nil)

	body, err := json.Marshal(map[string]string{"status": "investigating", "note": "looking into it"})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/v1/alerts/"+testAlertID+"/status", bytes.NewReader(body))
	req = analystContext(req)
	req = urlParams(req, "alertID", testAlertID)
	w := httptest.NewRecorder()
	handler.handleUpdateStatus(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp screening.AlertRecord
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), screening.StatusInvestigating, resp.Status)
}

func (s *ReviewHandlerSuite) TestHandleUpdateStatus_Errors() {
	body := func() *bytes.Reader {
		b, _ := json.Marshal(map[string]string{"status": "investigating"})
		return bytes.NewReader(b)
	}

	s.Run("missing analyst context is an internal error", func() {
		handler, _ := newTestHandler(s.T())
		req := httptest.NewRequest(http.MethodPost, "/v1/alerts/"+testAlertID+"/status", body())
		req = urlParams(req, "alertID", testAlertID)
		w := httptest.NewRecorder()
		handler.handleUpdateStatus(w, req)

		assert.Equal(s.T(), http.StatusInternalServerError, w.Code)
	})

	s.Run("unknown target status", func() {
		handler, _ := newTestHandler(s.T())
		b, _ := json.Marshal(map[string]string{"status": "escalated"})
		req := httptest.NewRequest(http.MethodPost, "/v1/alerts/"+testAlertID+"/status", bytes.NewReader(b))
		req = analystContext(req)
		req = urlParams(req, "alertID", testAlertID)
		w := httptest.NewRecorder()
		handler.handleUpdateStatus(w, req)

		assert.Equal(s.T(), http.StatusBadRequest, w.Code)
		assert.Contains(s.T(), w.Body.String(), "unknown alert status")
	})

	s.Run("lifecycle violation maps to 400", func() {
		handler, mockService := newTestHandler(s.T())
		mockService.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInvalidInput, "cannot transition alert from RESOLVED to INVESTIGATING"))

		req := httptest.NewRequest(http.MethodPost, "/v1/alerts/"+testAlertID+"/status", body())
		req = analystContext(req)
		req = urlParams(req, "alertID", testAlertID)
		w := httptest.NewRecorder()
		handler.handleUpdateStatus(w, req)

		assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	})

	s.Run("concurrent change maps to 409", func() {
		handler, mockService := newTestHandler(s.T())
		mockService.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "alert status changed concurrently, reload and retry"))

		req := httptest.NewRequest(http.MethodPost, "/v1/alerts/"+testAlertID+"/status", body())
		req = analystContext(req)
		req = urlParams(req, "alertID", testAlertID)
		w := httptest.NewRecorder()
		handler.handleUpdateStatus(w, req)

		assert.Equal(s.T(), http.StatusConflict, w.Code)
	})

	s.Run("store failure hides detail", func() {
		handler, mockService := newTestHandler(s.T())
		mockService.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("pq: connection refused"))

		req := httptest.NewRequest(http.MethodPost, "/v1/alerts/"+testAlertID+"/status", body())
		req = analystContext(req)
		req = urlParams(req, "alertID", testAlertID)
		w := httptest.NewRecorder()
		handler.handleUpdateStatus(w, req)

		assert.Equal(s.T(), http.StatusInternalServerError, w.Code)
		assert.NotContains(s.T(), w.Body.String(), "connection refused")
	})
}

// =============================================================================
// Summary Tests
// =============================================================================

func (s *ReviewHandlerSuite) TestHandleSummary() {
	handler, mockService := newTestHandler(s.T())
	mockService.EXPECT().Summarize(gomock.Any()).Return(&review.Summary{
		Reports: audit.ExecutiveSummary{
			TotalReports:    12,
			FilingsRequired: 2,
		},
		TotalAlerts: 4,
		OpenAlerts:  3,
		AlertsBySeverity: map[screening.AlertSeverity]int{
			screening.SeverityHigh: 4,
		},
		GeneratedAt: time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC),
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/summary", nil)
	w := httptest.NewRecorder()
	handler.handleSummary(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp review.Summary
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), 12, resp.Reports.TotalReports)
	assert.Equal(s.T(), 3, resp.OpenAlerts)
}

// =============================================================================
// Routing Tests
// =============================================================================

func (s *ReviewHandlerSuite) TestRegister_RequiresBearerToken() {
	handler, mockService := newTestHandler(s.T())
	r := chi.NewRouter()
	handler.Register(r)
	server := httptest.NewServer(r)
	defer server.Close()

	s.Run("no token is rejected", func() {
		resp, err := http.Get(server.URL + "/v1/alerts")
		require.NoError(s.T(), err)
		defer resp.Body.Close()
		assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
	})

	s.Run("bad token is rejected", func() {
		req, err := http.NewRequest(http.MethodGet, server.URL+"/v1/alerts", nil)
		require.NoError(s.T(), err)
		req.Header.Set("Authorization", "Bearer forged")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(s.T(), err)
		defer resp.Body.Close()
		assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
	})

	s.Run("valid token reaches the handler", func() {
		mockService.EXPECT().ListAlerts(gomock.Any(), gomock.Any()).
			Return([]screening.AlertRecord{}, nil)

		req, err := http.NewRequest(http.MethodGet, server.URL+"/v1/alerts", nil)
		require.NoError(s.T(), err)
		req.Header.Set("Authorization", "Bearer good-token")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(s.T(), err)
		defer resp.Body.Close()
		assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	})
}
