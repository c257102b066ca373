package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server with deployment-configured timeouts. Zero
// values fall back to defaults sized for a JSON API with small bodies.
func New(addr string, handler http.Handler, readHeaderTimeout, idleTimeout time.Duration) *http.Server {
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = 5 * time.Second
	}
	if idleTimeout <= 0 {
		idleTimeout = time.Minute
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}
