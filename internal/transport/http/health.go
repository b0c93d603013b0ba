package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"sbt-registry/pkg/platform/httputil"
)

const healthCheckTimeout = 2 * time.Second

// Prober reports whether a backing dependency is reachable.
type Prober interface {
	Health(ctx context.Context) error
}

// HealthHandler probes the configured backends in parallel. Backends that
// are not configured (nil prober) are skipped, so the in-memory deployment
// is always healthy.
type HealthHandler struct {
	logger *slog.Logger
	probes map[string]Prober
}

func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		probes: make(map[string]Prober),
	}
}

// AddProbe registers a named dependency check. Nil probers are ignored.
func (h *HealthHandler) AddProbe(name string, p Prober) {
	if p == nil {
		return
	}
	h.probes[name] = p
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for name, probe := range h.probes {
		g.Go(func() error {
			if err := probe.Health(ctx); err != nil {
				h.logger.WarnContext(ctx, "health probe failed",
					"dependency", name,
					"error", err.Error(),
				)
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
