package middleware

import (
	"log/slog"
	"net/http"

	"vigil/internal/platform/secrets"
	"vigil/pkg/platform/events"
	"vigil/pkg/requestcontext"
)

// HeaderServiceKey authenticates machine callers on automation endpoints.
const HeaderServiceKey = "X-Service-Key"

// RequireServiceKey guards automation endpoints with a pre-shared key.
// Only the bcrypt hash is configured; an empty hash disables the
// endpoint rather than leaving it open.
func RequireServiceKey(keyHash string, logger *slog.Logger, security SecurityEvents) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			if keyHash == "" {
				logger.ErrorContext(ctx, "service key not configured, rejecting automation request",
					"request_id", requestID,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"unavailable","error_description":"Automation access is not configured"}`))
				return
			}

			key := r.Header.Get(HeaderServiceKey)
			if err := secrets.Verify(key, keyHash); err != nil {
				logger.WarnContext(ctx, "service key mismatch",
					"request_id", requestID,
				)
				if security != nil {
					security.Emit(events.SecurityEvent{
						Subject:   "service",
						Action:    string(events.EventAuthFailed),
						Reason:    "service key mismatch",
						IP:        requestcontext.ClientIP(ctx),
						RequestID: requestID,
						Severity:  events.SeverityCritical,
					})
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Valid service key required"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithAnalystID(ctx, "service")))
		})
	}
}
