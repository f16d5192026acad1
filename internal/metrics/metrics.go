// Package metrics provides the centralized Prometheus metrics registry for
// the cycle bet engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	WagersMaterializedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cyclebet",
		Name:      "wagers_materialized_total",
		Help:      "Total number of wagers materialized into the matching pool",
	})
	WagersMatchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cyclebet",
		Name:      "wagers_matched_total",
		Help:      "Total number of wagers matched by counterparties",
	})
	WagersSettledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cyclebet",
		Name:      "wagers_settled_total",
		Help:      "Total number of wagers settled",
	})
	WagersCancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cyclebet",
		Name:      "wagers_cancelled_total",
		Help:      "Total number of wagers cancelled",
	})
	WagersReopenedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cyclebet",
		Name:      "wagers_reopened_total",
		Help:      "Total number of wagers returned to the pool after a leave or timeout",
	})
	CapacityViolationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cyclebet",
		Name:      "capacity_violations_total",
		Help:      "Total number of join attempts rejected by the cycle capacity check",
	})
	CyclesCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cyclebet",
		Name:      "cycles_completed_total",
		Help:      "Total number of cycles closed into permanent accounting records",
	})
	DuplicateCompletionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cyclebet",
		Name:      "duplicate_completions_total",
		Help:      "Total number of cycle close attempts that lost the idempotency race",
	})
	CommissionFrozenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cyclebet",
		Name:      "commission_frozen_total",
		Help:      "Total monetary amount of commission frozen",
	})
	CommissionCapturedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cyclebet",
		Name:      "commission_captured_total",
		Help:      "Total monetary amount of commission captured as revenue",
	})
	CommissionReleasedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cyclebet",
		Name:      "commission_released_total",
		Help:      "Total monetary amount of commission released back to payers",
	})
)

// Gauge metrics
var (
	ActiveBots = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cyclebet",
		Name:      "active_bots",
		Help:      "Number of bots currently driven by the scheduler",
	})
	InFlightWagers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cyclebet",
		Name:      "in_flight_wagers",
		Help:      "Number of OPEN plus MATCHED wagers across all bots",
	})
)

// Histogram metrics
var (
	SettlementDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cyclebet",
		Name:      "settlement_duration_seconds",
		Help:      "Duration of wager settlement operations in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cyclebet",
		Name:      "tick_duration_seconds",
		Help:      "Duration of one full scheduler tick over all bots",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(WagersMaterializedTotal)
		registry.MustRegister(WagersMatchedTotal)
		registry.MustRegister(WagersSettledTotal)
		registry.MustRegister(WagersCancelledTotal)
		registry.MustRegister(WagersReopenedTotal)
		registry.MustRegister(CapacityViolationsTotal)
		registry.MustRegister(CyclesCompletedTotal)
		registry.MustRegister(DuplicateCompletionsTotal)
		registry.MustRegister(CommissionFrozenTotal)
		registry.MustRegister(CommissionCapturedTotal)
		registry.MustRegister(CommissionReleasedTotal)

		registry.MustRegister(ActiveBots)
		registry.MustRegister(InFlightWagers)

		registry.MustRegister(SettlementDuration)
		registry.MustRegister(TickDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}
