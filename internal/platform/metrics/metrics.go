package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	AnchorsTotal         *prometheus.CounterVec
	VerificationsTotal   *prometheus.CounterVec
	SubmitDuration       prometheus.Histogram
	MirrorScanDepth      prometheus.Histogram
	ResolutionFailures   prometheus.Counter
	RegistryLookupErrors prometheus.Counter
	HTTPRequestDuration  *prometheus.HistogramVec
	IndexInconsistencies prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all metrics on the given registerer. Tests pass a fresh
// registry so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AnchorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docanchor_anchors_total",
			Help: "Anchor workflow outcomes by result (anchored, conflict, rejected, failed).",
		}, []string{"result"}),
		VerificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docanchor_verifications_total",
			Help: "Verify workflow outcomes (verified_on_chain, not_verified).",
		}, []string{"outcome"}),
		SubmitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "docanchor_consensus_submit_seconds",
			Help:    "Latency of consensus log submissions.",
			Buckets: prometheus.DefBuckets,
		}),
		MirrorScanDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "docanchor_mirror_scan_messages",
			Help:    "Messages scanned per mirror reconciliation before a match or exhaustion.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		ResolutionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "docanchor_identity_resolution_failures_total",
			Help: "Identity resolutions that failed or returned no usable verification method.",
		}),
		RegistryLookupErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "docanchor_trust_registry_errors_total",
			Help: "Trust registry lookups that degraded to untrusted due to an error.",
		}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docanchor_http_request_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
		IndexInconsistencies: factory.NewCounter(prometheus.CounterOpts{
			Name: "docanchor_index_mirror_inconsistencies_total",
			Help: "Indexed proofs whose payload could not be recovered from the mirror window.",
		}),
	}
}
