package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the ledger engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	transactionsTotal   *prometheus.CounterVec
	transactionDuration *prometheus.HistogramVec
	idempotentReplays   *prometheus.CounterVec
	lockTimeouts        prometheus.Counter
	riskScore           prometheus.Histogram
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		transactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transactions_total",
				Help: "Total transactions processed, by type and outcome.",
			},
			[]string{"type", "status"},
		),
		transactionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_transaction_duration_seconds",
				Help:    "Duration of transaction processing by type.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		idempotentReplays: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_idempotent_replays_total",
				Help: "Total requests answered from the idempotency index.",
			},
			[]string{"source"},
		),
		lockTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_lock_timeouts_total",
				Help: "Total transactions aborted on lock acquisition timeout.",
			},
		),
		riskScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ledger_risk_score",
				Help:    "Advisory risk scores assigned to transactions.",
				Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),
	}
}

// RecordTransaction records a processed transaction and its duration.
func (m *Metrics) RecordTransaction(typ, status string, d time.Duration) {
	m.transactionsTotal.WithLabelValues(typ, status).Inc()
	m.transactionDuration.WithLabelValues(typ).Observe(d.Seconds())
}

// IncrIdempotentReplay increments the replay counter; source is "cache"
// (Redis fast path) or "index" (PostgreSQL).
func (m *Metrics) IncrIdempotentReplay(source string) {
	m.idempotentReplays.WithLabelValues(source).Inc()
}

// IncrLockTimeout increments the lock timeout counter.
func (m *Metrics) IncrLockTimeout() {
	m.lockTimeouts.Inc()
}

// ObserveRiskScore records an assigned risk score.
func (m *Metrics) ObserveRiskScore(score int) {
	m.riskScore.Observe(float64(score))
}
