package middleware

import (
	"net/http"
	"time"

	"vigil/pkg/requestcontext"
)

// RequestTime freezes the wall clock at request arrival. Alert and
// report identifiers derive from this instant, so everything generated
// within one request shares the same timestamp.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
