// Package httpserver builds the registry's HTTP server from its config.
package httpserver

import (
	"net/http"

	"sbt-registry/internal/platform/config"
)

// New builds an HTTP server with the configured client timeouts. Handler
// deadlines are enforced per-route by the timeout middleware, so only the
// connection-level timeouts live here.
func New(addr string, handler http.Handler, cfg config.HTTPConfig) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
