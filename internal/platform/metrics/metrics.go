package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the privilege guard service.
type Metrics struct {
	AccessGranted   *prometheus.CounterVec
	AccessDenied    *prometheus.CounterVec
	LedgerAppends   prometheus.Counter
	LedgerAppendMs  prometheus.Histogram
	SessionsCreated prometheus.Counter
	SessionsRevoked prometheus.Counter
	ConflictScreens *prometheus.CounterVec
	SealOperations  prometheus.Counter
	OpenOperations  prometheus.Counter
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		AccessGranted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lexguard_access_granted_total",
			Help: "Privileged record operations that were granted",
		}, []string{"operation"}),
		AccessDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lexguard_access_denied_total",
			Help: "Privileged record operations that were denied",
		}, []string{"operation"}),
		LedgerAppends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexguard_ledger_appends_total",
			Help: "Audit ledger entries appended",
		}),
		LedgerAppendMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lexguard_ledger_append_duration_ms",
			Help:    "Latency of audit ledger appends in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexguard_sessions_created_total",
			Help: "Privileged sessions created",
		}),
		SessionsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexguard_sessions_revoked_total",
			Help: "Privileged sessions revoked",
		}),
		ConflictScreens: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lexguard_conflict_screens_total",
			Help: "Conflict of interest screenings by result",
		}, []string{"result"}),
		SealOperations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexguard_envelope_seal_total",
			Help: "Payloads sealed by the crypto envelope",
		}),
		OpenOperations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexguard_envelope_open_total",
			Help: "Payloads opened by the crypto envelope",
		}),
	}
}
