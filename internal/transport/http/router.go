// Package httptransport assembles the public HTTP surface of the registry.
// Business logic lives in the context services; this layer only mounts
// handlers and operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	achandler "sbt-registry/internal/accesscontrol/handler"
	credhandler "sbt-registry/internal/credential/handler"
	"sbt-registry/pkg/platform/middleware/metadata"
)

// Registrar is any context handler that mounts its routes onto the router.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires all endpoints: the credential registry, role management,
// health, and Prometheus metrics.
func NewRouter(
	credentials *credhandler.Handler,
	roles *achandler.Handler,
	health *HealthHandler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(metadata.ClientMetadata)

	credentials.Register(r)
	roles.Register(r)

	r.Get("/healthz", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
