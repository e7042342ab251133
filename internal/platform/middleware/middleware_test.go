package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/platform/secrets"
	"vigil/pkg/platform/events"
	"vigil/pkg/requestcontext"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// capturingSink records security events emitted by auth middlewares.
type capturingSink struct {
	mu     sync.Mutex
	events []events.SecurityEvent
}

func (s *capturingSink) Emit(event events.SecurityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *capturingSink) all() []events.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.SecurityEvent(nil), s.events...)
}

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (v *stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return v.claims, v.err
}

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/alerts", nil))

	require.NotEmpty(t, seen)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get(HeaderRequestID))
}

func TestRequestIDHonorsInboundHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/alerts", nil)
	req.Header.Set(HeaderRequestID, "edge-7f3a")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "edge-7f3a", seen)
	assert.Equal(t, "edge-7f3a", w.Header().Get(HeaderRequestID))
}

func TestRecoveryConvertsPanicTo500(t *testing.T) {
	handler := Recovery(newTestLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/alerts", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal_error","error_description":"An internal error occurred"}`, w.Body.String())
}

func TestTimeoutSetsDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	handler := Timeout(250*time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/alerts", nil))

	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(250*time.Millisecond), deadline, 100*time.Millisecond)
}

func TestContentTypeJSON(t *testing.T) {
	var called bool
	handler := ContentTypeJSON(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	t.Run("rejects non-JSON body", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodPost, "/v1/screenings", nil)
		req.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		assert.False(t, called)
	})

	t.Run("accepts JSON with charset", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodPost, "/v1/screenings", nil)
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.True(t, called)
	})

	t.Run("ignores GET", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/alerts", nil))

		assert.True(t, called)
	})
}

func TestClientMetadataPrefersForwardedFor(t *testing.T) {
	var ip, ua string
	var device requestcontext.Device
	handler := ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip = requestcontext.ClientIP(ctx)
		ua = requestcontext.UserAgent(ctx)
		device = requestcontext.DeviceInfo(ctx)
	}))

	const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	req := httptest.NewRequest(http.MethodGet, "/v1/alerts", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")
	req.Header.Set("User-Agent", chromeUA)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.7", ip)
	assert.Equal(t, chromeUA, ua)
	assert.Equal(t, "Chrome", device.Browser)
	assert.False(t, device.IsMobile)
	assert.False(t, device.IsBot)
	assert.Equal(t, chromeUA, device.RawHeader)
}

func TestClientMetadataFlagsBots(t *testing.T) {
	var device requestcontext.Device
	handler := ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		device = requestcontext.DeviceInfo(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/alerts", nil)
	req.Header.Set("User-Agent", "Googlebot/2.1 (+http://www.google.com/bot.html)")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, device.IsBot)
}

func TestClientIPFromRequestFallbacks(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", ClientIPFromRequest(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.9:54321"
	assert.Equal(t, "192.0.2.9", ClientIPFromRequest(req))
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	sink := &capturingSink{}
	handler := RequireAuth(&stubValidator{}, newTestLogger(), sink)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without credentials")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/alerts", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "unauthorized")

	emitted := sink.all()
	require.Len(t, emitted, 1)
	assert.Equal(t, string(events.EventAuthFailed), emitted[0].Action)
	assert.Equal(t, "missing authorization header", emitted[0].Reason)
}

func TestRequireAuthRejectsInvalidToken(t *testing.T) {
	sink := &capturingSink{}
	validator := &stubValidator{err: context.DeadlineExceeded}
	handler := RequireAuth(validator, newTestLogger(), sink)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run with an invalid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/alerts", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	emitted := sink.all()
	require.Len(t, emitted, 1)
	assert.Equal(t, "invalid or expired token", emitted[0].Reason)
}

func TestRequireAuthPopulatesIdentity(t *testing.T) {
	validator := &stubValidator{claims: &JWTClaims{AnalystID: "analyst_jsmith", Role: "supervisor"}}
	var analystID, role string
	handler := RequireAuth(validator, newTestLogger(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		analystID = GetAnalystID(r.Context())
		role = GetRole(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/alerts", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "analyst_jsmith", analystID)
	assert.Equal(t, "supervisor", role)
}

func TestRequireServiceKey(t *testing.T) {
	key, err := secrets.Generate()
	require.NoError(t, err)
	hash, err := secrets.Hash(key)
	require.NoError(t, err)

	var analystID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		analystID = GetAnalystID(r.Context())
	})

	t.Run("valid key passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/screenings/batch", nil)
		req.Header.Set(HeaderServiceKey, key)
		w := httptest.NewRecorder()
		RequireServiceKey(hash, newTestLogger(), nil)(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "service", analystID)
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		sink := &capturingSink{}
		req := httptest.NewRequest(http.MethodPost, "/v1/screenings/batch", nil)
		req.Header.Set(HeaderServiceKey, "not-the-key")
		w := httptest.NewRecorder()
		RequireServiceKey(hash, newTestLogger(), sink)(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		emitted := sink.all()
		require.Len(t, emitted, 1)
		assert.Equal(t, events.SeverityCritical, emitted[0].Severity)
	})

	t.Run("unconfigured hash disables endpoint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/screenings/batch", nil)
		req.Header.Set(HeaderServiceKey, key)
		w := httptest.NewRecorder()
		RequireServiceKey("", newTestLogger(), nil)(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestRequestTimeFreezesClock(t *testing.T) {
	var first, second time.Time
	handler := RequestTime(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first = requestcontext.Now(r.Context())
		time.Sleep(5 * time.Millisecond)
		second = requestcontext.Now(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/screenings", nil))

	assert.Equal(t, first, second)
	assert.Equal(t, time.UTC, first.Location())
}

func TestLoggerCapturesStatus(t *testing.T) {
	var logged int
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.WriteHeader(http.StatusOK) // second write is ignored
		logged = rec.status
	})

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/alerts/a/status", nil))

	assert.Equal(t, http.StatusConflict, logged)
}
