package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the reconciliation collectors.
type Metrics struct {
	operationsIngested *prometheus.CounterVec
	syncRuns           *prometheus.CounterVec
	promotions         *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	cardEvents         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operationsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treasury_operations_ingested_total",
				Help: "Operations inserted into the operation store",
			},
			[]string{"treasury_id", "status"},
		),
		syncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treasury_sync_runs_total",
				Help: "Per-treasury sync runs",
			},
			[]string{"strategy", "result"},
		),
		promotions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treasury_periodic_promotions_total",
				Help: "Periodic groups promoted to pending",
			},
			[]string{"treasury_id"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "treasury_sync_duration_seconds",
				Help:    "Duration of a per-treasury sync",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
		cardEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treasury_card_events_total",
				Help: "Card-processor events consumed",
			},
			[]string{"kind", "result"},
		),
	}

	reg.MustRegister(m.operationsIngested, m.syncRuns, m.promotions, m.runDuration, m.cardEvents)
	return m
}

func (m *Metrics) OperationsIngested(treasuryID int64, status string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.operationsIngested.WithLabelValues(strconv.FormatInt(treasuryID, 10), status).Add(float64(n))
}

func (m *Metrics) SyncRun(strategy string, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.syncRuns.WithLabelValues(strategy, result).Inc()
	m.runDuration.WithLabelValues(strategy).Observe(took.Seconds())
}

func (m *Metrics) Promoted(treasuryID int64) {
	if m == nil {
		return
	}
	m.promotions.WithLabelValues(strconv.FormatInt(treasuryID, 10)).Inc()
}

func (m *Metrics) CardEvent(kind, result string) {
	if m == nil {
		return
	}
	m.cardEvents.WithLabelValues(kind, result).Inc()
}
