// Package metrics provides Prometheus metrics collection for the settlement
// core: auction activity, execution outcomes, and routing/pricing latency.
package metrics

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors exposed by a solver process.
type Metrics struct {
	// Auction metrics
	AuctionsOpened    *prometheus.CounterVec
	BidsSubmitted     *prometheus.CounterVec
	AuctionsFinalized *prometheus.CounterVec
	AuctionsExpired   prometheus.Counter

	// Execution metrics
	ExecutionsTotal    *prometheus.CounterVec
	ExecutionDuration  *prometheus.HistogramVec
	ExecutionsInFlight prometheus.Gauge
	RollbacksTotal     *prometheus.CounterVec
	MEVDelayApplied    prometheus.Histogram

	// Routing/pricing metrics
	QuotesComputed  *prometheus.CounterVec
	QuoteDuration   *prometheus.HistogramVec
	RouteHopsChosen prometheus.Histogram

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// External collaborator metrics (chain/bridge/oracle calls)
	ExternalCallsTotal   *prometheus.CounterVec
	ExternalCallDuration *prometheus.HistogramVec

	// Process health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a new Metrics instance registered against the default registry.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry,
// useful for test isolation.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuctionsOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auctions_opened_total",
				Help: "Total number of auctions opened for intents",
			},
			[]string{"service", "source_chain", "dest_chain"},
		),
		BidsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bids_submitted_total",
				Help: "Total number of solver bids submitted",
			},
			[]string{"service", "outcome"},
		),
		AuctionsFinalized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auctions_finalized_total",
				Help: "Total number of auctions finalized with a winning bid",
			},
			[]string{"service"},
		),
		AuctionsExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "auctions_expired_total",
				Help: "Total number of open auctions and matched intents pruned by expiry cleanup",
			},
		),

		ExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "executions_total",
				Help: "Total number of intent executions by terminal phase and outcome",
			},
			[]string{"service", "phase", "outcome"},
		),
		ExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "execution_duration_seconds",
				Help:    "Wall-clock duration of intent executions",
				Buckets: []float64{.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"service", "outcome"},
		),
		ExecutionsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "executions_in_flight",
				Help: "Current number of executions holding a concurrency slot",
			},
		),
		RollbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollbacks_total",
				Help: "Total number of rollback operations performed after a failed phase",
			},
			[]string{"service", "phase"},
		),
		MEVDelayApplied: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mev_delay_seconds",
				Help:    "Randomized pre-submission delay applied for MEV protection",
				Buckets: []float64{2, 3, 4, 5, 6, 7, 8},
			},
		),

		QuotesComputed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotes_computed_total",
				Help: "Total number of route quotes computed",
			},
			[]string{"service", "route_kind"},
		),
		QuoteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quote_duration_seconds",
				Help:    "Duration of route/price quote computation",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"service", "route_kind"},
		),
		RouteHopsChosen: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "route_hops",
				Help:    "Number of hops in the route chosen by the optimizer",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errors_total",
				Help: "Total number of errors by code and operation",
			},
			[]string{"service", "code", "operation"},
		),

		ExternalCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_calls_total",
				Help: "Total number of calls to chain, bridge, or oracle collaborators",
			},
			[]string{"service", "collaborator", "operation", "status"},
		),
		ExternalCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "external_call_duration_seconds",
				Help:    "Duration of calls to chain, bridge, or oracle collaborators",
				Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"service", "collaborator", "operation"},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "service_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_info",
				Help: "Service information",
			},
			[]string{"service", "version", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.AuctionsOpened,
			m.BidsSubmitted,
			m.AuctionsFinalized,
			m.AuctionsExpired,
			m.ExecutionsTotal,
			m.ExecutionDuration,
			m.ExecutionsInFlight,
			m.RollbacksTotal,
			m.MEVDelayApplied,
			m.QuotesComputed,
			m.QuoteDuration,
			m.RouteHopsChosen,
			m.ErrorsTotal,
			m.ExternalCallsTotal,
			m.ExternalCallDuration,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", environment()).Set(1)

	return m
}

// RecordAuctionOpened records an auction opening for an intent.
func (m *Metrics) RecordAuctionOpened(service string, sourceChain, destChain uint64) {
	m.AuctionsOpened.WithLabelValues(service, chainLabel(sourceChain), chainLabel(destChain)).Inc()
}

// RecordBidSubmitted records a bid submission outcome ("accepted" or "rejected").
func (m *Metrics) RecordBidSubmitted(service, outcome string) {
	m.BidsSubmitted.WithLabelValues(service, outcome).Inc()
}

// RecordAuctionFinalized records a successful auction finalization.
func (m *Metrics) RecordAuctionFinalized(service string) {
	m.AuctionsFinalized.WithLabelValues(service).Inc()
}

// RecordAuctionExpired records one auction-table entry (an open auction or a
// matched intent) pruned by expiry cleanup.
func (m *Metrics) RecordAuctionExpired() {
	m.AuctionsExpired.Inc()
}

// RecordExecution records a terminal execution outcome and its duration.
func (m *Metrics) RecordExecution(service, phase, outcome string, duration time.Duration) {
	m.ExecutionsTotal.WithLabelValues(service, phase, outcome).Inc()
	m.ExecutionDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

// RecordRollback records a rollback triggered after a phase failure.
func (m *Metrics) RecordRollback(service, phase string) {
	m.RollbacksTotal.WithLabelValues(service, phase).Inc()
}

// RecordMEVDelay records the randomized pre-submission delay actually applied.
func (m *Metrics) RecordMEVDelay(delay time.Duration) {
	m.MEVDelayApplied.Observe(delay.Seconds())
}

// RecordQuote records a route/price quote computation.
func (m *Metrics) RecordQuote(service, routeKind string, duration time.Duration) {
	m.QuotesComputed.WithLabelValues(service, routeKind).Inc()
	m.QuoteDuration.WithLabelValues(service, routeKind).Observe(duration.Seconds())
}

// RecordRouteHops records the number of hops in a chosen route.
func (m *Metrics) RecordRouteHops(hops int) {
	m.RouteHopsChosen.Observe(float64(hops))
}

// RecordError records an error by stable error code and operation name.
func (m *Metrics) RecordError(service, code, operation string) {
	m.ErrorsTotal.WithLabelValues(service, code, operation).Inc()
}

// RecordExternalCall records a call to a chain, bridge, or oracle collaborator.
func (m *Metrics) RecordExternalCall(service, collaborator, operation, status string, duration time.Duration) {
	m.ExternalCallsTotal.WithLabelValues(service, collaborator, operation, status).Inc()
	m.ExternalCallDuration.WithLabelValues(service, collaborator, operation).Observe(duration.Seconds())
}

// SetExecutionsInFlight sets the current number of in-flight executions.
func (m *Metrics) SetExecutionsInFlight(count int) {
	m.ExecutionsInFlight.Set(float64(count))
}

// UpdateUptime updates the service uptime gauge.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

func chainLabel(chainID uint64) string {
	if chainID == 0 {
		return "unknown"
	}
	return strconv.FormatUint(chainID, 10)
}

func environment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if env == "" {
		return "development"
	}
	return env
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
// - production: disabled unless explicitly enabled via METRICS_ENABLED
// - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return environment() != "production"
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Global metrics instance
var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance, initializing a default one
// if Init was never called.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("unknown")
	}
	return globalMetrics
}
