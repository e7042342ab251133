package middleware

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"vigil/pkg/requestcontext"
)

// ClientMetadata extracts the client IP, User-Agent, and a parsed device
// descriptor and stores them in the request context. Security events and
// review audit entries read them from there.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawUA := r.UserAgent()

		ctx := r.Context()
		ctx = requestcontext.WithClientMetadata(ctx, ClientIPFromRequest(r), rawUA)
		ctx = requestcontext.WithDeviceInfo(ctx, parseDevice(rawUA))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...);
	// the first is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	// X-Real-IP is set by nginx and similar proxies.
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port" for IPv4 and "[::1]:port" for IPv6.
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}

	return "unknown"
}

func parseDevice(rawUA string) requestcontext.Device {
	if rawUA == "" {
		return requestcontext.Device{}
	}

	ua := useragent.New(rawUA)
	browser, version := ua.Browser()
	return requestcontext.Device{
		Browser:   browser,
		Version:   version,
		OS:        ua.OS(),
		IsMobile:  ua.Mobile(),
		IsBot:     ua.Bot(),
		RawHeader: rawUA,
	}
}
