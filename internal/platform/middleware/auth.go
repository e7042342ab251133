package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"vigil/pkg/platform/events"
	"vigil/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	AnalystID string
	Role      string
}

// SecurityEvents receives auth failures for the security event stream.
// The sink must be non-blocking; a nil sink disables emission.
type SecurityEvents interface {
	Emit(event events.SecurityEvent)
}

// GetAnalystID retrieves the authenticated analyst ID from the context
func GetAnalystID(ctx context.Context) string {
	return requestcontext.AnalystID(ctx)
}

// GetRole retrieves the authenticated analyst's role from the context
func GetRole(ctx context.Context) string {
	return requestcontext.Role(ctx)
}

func RequireAuth(validator JWTValidator, logger *slog.Logger, security SecurityEvents) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if after, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
				token := after
				claims, err := validator.ValidateToken(token)
				if err != nil {
					ctx := r.Context()
					requestID := GetRequestID(ctx)
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", requestID,
					)
					if security != nil {
						security.Emit(events.SecurityEvent{
							Subject:   "anonymous",
							Action:    string(events.EventAuthFailed),
							Reason:    "invalid or expired token",
							IP:        requestcontext.ClientIP(ctx),
							RequestID: requestID,
							Severity:  events.SeverityWarning,
						})
					}
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					_, err = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
					if err != nil {
						logger.ErrorContext(ctx, "failed to write unauthorized response",
							"error", err,
							"request_id", requestID,
						)
					}
					return
				}

				ctx := r.Context()
				ctx = requestcontext.WithAnalystID(ctx, claims.AnalystID)
				ctx = requestcontext.WithRole(ctx, claims.Role)

				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// No Authorization header or invalid format
			ctx := r.Context()
			requestID := GetRequestID(ctx)
			logger.WarnContext(ctx, "unauthorized access - missing token",
				"request_id", requestID,
			)
			if security != nil {
				security.Emit(events.SecurityEvent{
					Subject:   "anonymous",
					Action:    string(events.EventAuthFailed),
					Reason:    "missing authorization header",
					IP:        requestcontext.ClientIP(ctx),
					RequestID: requestID,
					Severity:  events.SeverityWarning,
				})
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, err := w.Write([]byte(`{"error":"unauthorized","error_description":"Missing or invalid Authorization header"}`))
			if err != nil {
				logger.ErrorContext(ctx, "failed to write unauthorized response",
					"error", err,
					"request_id", requestID,
				)
			}
		})
	}
}
