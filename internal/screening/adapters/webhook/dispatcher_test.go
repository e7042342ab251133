package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/screening"
	"vigil/internal/screening/adapters/webhook"
	"vigil/pkg/platform/sentinel"
)

func sampleAlert() screening.AlertRecord {
	now := time.Date(2025, time.January, 15, 10, 30, 0, 0, time.UTC)
	return screening.AlertRecord{
		AlertID:        "ALERT_TX1001_20250115103000",
		TransactionID:  "TX1001",
		CustomerID:     "CUST1001",
		Severity:       screening.SeverityHigh,
		Status:         screening.StatusOpen,
		DecisionAction: screening.ActionBlock,
		RiskScore:      85,
		Factors:        []screening.RiskFactor{screening.FactorSanctionsConcern},
		Reasoning:      "sanctions destination with prior fraud history",
		AssignedTo:     screening.DefaultAssignee,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestSendAlertDeliversPayload(t *testing.T) {
	var received screening.AlertRecord
	var gotKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	dispatcher, err := webhook.NewDispatcher(server.URL, webhook.WithAPIKey("secret-key"))
	require.NoError(t, err)

	alert := sampleAlert()
	require.NoError(t, dispatcher.SendAlert(context.Background(), alert))

	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, alert.AlertID, received.AlertID)
	assert.Equal(t, alert.Severity, received.Severity)
	assert.InDelta(t, alert.RiskScore, received.RiskScore, 0.001)
}

func TestTransientFailureRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	dispatcher, err := webhook.NewDispatcher(server.URL)
	require.NoError(t, err)

	require.NoError(t, dispatcher.SendAlert(context.Background(), sampleAlert()))
	assert.EqualValues(t, 2, attempts.Load())
}

func TestClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	t.Cleanup(server.Close)

	dispatcher, err := webhook.NewDispatcher(server.URL)
	require.NoError(t, err)

	err = dispatcher.SendAlert(context.Background(), sampleAlert())
	require.Error(t, err)
	assert.NotErrorIs(t, err, sentinel.ErrUnavailable)
	assert.EqualValues(t, 1, attempts.Load(), "4xx responses must not be retried")
}

func TestExhaustedRetriesSurfaceUnavailable(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	dispatcher, err := webhook.NewDispatcher(server.URL, webhook.WithRetries(2))
	require.NoError(t, err)

	err = dispatcher.SendAlert(context.Background(), sampleAlert())
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.EqualValues(t, 3, attempts.Load())
}

func TestCancellationStopsRetryLoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	dispatcher, err := webhook.NewDispatcher(server.URL, webhook.WithRetries(10))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = dispatcher.SendAlert(ctx, sampleAlert())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "cancellation must cut the retry loop short")
}
