package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry.
type Metrics struct {
	CredentialsIssued   prometheus.Counter
	CredentialsRevoked  prometheus.Counter
	SoulBoundViolations prometheus.Counter
	RolesGranted        *prometheus.CounterVec
	RolesRevoked        *prometheus.CounterVec
	EventsPublished     *prometheus.CounterVec
	EndpointLatency     *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sbtreg_credentials_issued_total",
			Help: "Total number of credentials issued",
		}),
		CredentialsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sbtreg_credentials_revoked_total",
			Help: "Total number of credentials revoked",
		}),
		SoulBoundViolations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sbtreg_soulbound_violations_total",
			Help: "Total number of rejected holder-to-holder transfer attempts",
		}),
		RolesGranted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sbtreg_roles_granted_total",
			Help: "Total number of role grants, labeled by role",
		}, []string{"role"}),
		RolesRevoked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sbtreg_roles_revoked_total",
			Help: "Total number of role revocations, labeled by role",
		}, []string{"role"}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sbtreg_lifecycle_events_total",
			Help: "Total number of lifecycle events published, labeled by kind",
		}, []string{"kind"}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sbtreg_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// ObserveEndpointLatency records a request duration for the endpoint.
// Safe on a nil receiver so wiring can leave metrics out entirely.
func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}
