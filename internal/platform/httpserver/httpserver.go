// Package httpserver builds the http.Server with timeouts sized for
// screening traffic.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server for the given handler. WriteTimeout leaves
// headroom for screening runs that wait out the full reasoner timeout;
// per-route middleware enforces the tighter budgets.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
