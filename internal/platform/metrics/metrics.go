// Package metrics registers the Prometheus instruments for the ledger and
// credential pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	TransactionsSubmitted prometheus.Counter
	BlocksMined           prometheus.Counter
	MiningSeconds         prometheus.Histogram
	PendingTransactions   prometheus.Gauge
	ChainLength           prometheus.Gauge
	ProofsIssued          prometheus.Counter
	ProofsVerified        *prometheus.CounterVec
	ProofsShared          *prometheus.CounterVec
	HTTPDuration          *prometheus.HistogramVec
}

// New creates all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on reg. Tests pass a fresh registry so
// instruments never collide across instances.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TransactionsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "intellikyc_transactions_submitted_total",
			Help: "Total number of transactions accepted into the pending queue",
		}),
		BlocksMined: factory.NewCounter(prometheus.CounterOpts{
			Name: "intellikyc_blocks_mined_total",
			Help: "Total number of blocks mined onto the chain",
		}),
		MiningSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "intellikyc_mining_duration_seconds",
			Help:    "Time spent searching for a valid proof of work",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		PendingTransactions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "intellikyc_pending_transactions",
			Help: "Transactions waiting to be mined into a block",
		}),
		ChainLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "intellikyc_chain_length",
			Help: "Current number of blocks in the chain",
		}),
		ProofsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "intellikyc_proofs_issued_total",
			Help: "Total number of KYC credential proofs issued",
		}),
		ProofsVerified: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "intellikyc_proofs_verified_total",
			Help: "Total number of proof verifications by outcome",
		}, []string{"outcome"}),
		ProofsShared: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "intellikyc_proofs_shared_total",
			Help: "Total number of cross-institution sharing decisions by outcome",
		}, []string{"outcome"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intellikyc_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

// ObserveMining records one completed mining run.
func (m *Metrics) ObserveMining(elapsed time.Duration) {
	m.BlocksMined.Inc()
	m.MiningSeconds.Observe(elapsed.Seconds())
}

// RecordVerification tracks a proof verification outcome.
func (m *Metrics) RecordVerification(valid bool) {
	m.ProofsVerified.WithLabelValues(outcome(valid)).Inc()
}

// RecordSharing tracks a cross-institution sharing decision.
func (m *Metrics) RecordSharing(approved bool) {
	label := "denied"
	if approved {
		label = "approved"
	}
	m.ProofsShared.WithLabelValues(label).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "valid"
	}
	return "invalid"
}
