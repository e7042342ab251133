package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"vigil/pkg/requestcontext"
)

// HeaderRequestID carries the request ID to clients and accepts one from
// trusted upstream proxies.
const HeaderRequestID = "X-Request-ID"

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}

// RequestID assigns every request an identifier for log correlation.
// An inbound X-Request-ID is honored so IDs stay stable across the edge
// proxy; otherwise a fresh UUID is generated. The ID is echoed back in
// the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(HeaderRequestID, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
