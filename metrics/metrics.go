// Package metrics defines the prometheus collectors for feed lifecycle events and mock-server
// traffic (spec §1a, ambient concern carried regardless of the distilled spec's non-goals).
// Grounded on zerooo111-fermi-api-gateway's internal/metrics.Metrics: a plain struct of
// pre-built collectors, constructed once and registered against a caller-supplied
// *prometheus.Registry rather than the global default registry, so multiple feeds/servers in one
// process (or one test binary) never collide on collector names.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// FeedMetrics holds every collector a CandlesFeed updates over its lifetime.
type FeedMetrics struct {
	CandlesIngested  *prometheus.CounterVec
	GapsDetected     *prometheus.CounterVec
	BackfillAttempts *prometheus.CounterVec
	BackfillFailures *prometheus.CounterVec
	StrategyRestarts *prometheus.CounterVec
	NetworkChecks    *prometheus.CounterVec
	StoreSize        *prometheus.GaugeVec
}

// NewFeedMetrics constructs a fresh, unregistered FeedMetrics.
func NewFeedMetrics() *FeedMetrics {
	return &FeedMetrics{
		CandlesIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "candlesfeed_candles_ingested_total", Help: "Candles merged into a feed's store."},
			[]string{"exchange", "pair", "interval"},
		),
		GapsDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "candlesfeed_gaps_detected_total", Help: "Gaps detected between consecutive stored candles."},
			[]string{"exchange", "pair", "interval"},
		),
		BackfillAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "candlesfeed_backfill_attempts_total", Help: "Targeted REST backfill reads issued to close a detected gap."},
			[]string{"exchange", "pair", "interval"},
		),
		BackfillFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "candlesfeed_backfill_failures_total", Help: "Gap backfills that exhausted their retry budget."},
			[]string{"exchange", "pair", "interval"},
		),
		StrategyRestarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "candlesfeed_strategy_restarts_total", Help: "Collection strategy restarts (e.g. WS reconnects)."},
			[]string{"exchange", "pair", "interval", "mode"},
		),
		NetworkChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "candlesfeed_network_checks_total", Help: "check_network() calls, by resulting status."},
			[]string{"exchange", "pair", "status"},
		),
		StoreSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "candlesfeed_store_size", Help: "Current number of candles held in a feed's store."},
			[]string{"exchange", "pair", "interval"},
		),
	}
}

// Register registers every collector against registry.
func (m *FeedMetrics) Register(registry *prometheus.Registry) error {
	for _, c := range []prometheus.Collector{
		m.CandlesIngested, m.GapsDetected, m.BackfillAttempts, m.BackfillFailures,
		m.StrategyRestarts, m.NetworkChecks, m.StoreSize,
	} {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister registers every collector, panicking on error.
func (m *FeedMetrics) MustRegister(registry *prometheus.Registry) {
	if err := m.Register(registry); err != nil {
		panic(err)
	}
}

// ServerMetrics holds every collector a mockserver.Server updates over its lifetime.
type ServerMetrics struct {
	RequestsTotal  *prometheus.CounterVec
	RateLimitHits  *prometheus.CounterVec
	FaultsInjected *prometheus.CounterVec
	WSConnections  *prometheus.GaugeVec
}

// NewServerMetrics constructs a fresh, unregistered ServerMetrics.
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "mockserver_requests_total", Help: "REST requests served, by exchange and status."},
			[]string{"exchange", "route", "status"},
		),
		RateLimitHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "mockserver_rate_limit_hits_total", Help: "Requests rejected by the per-IP rate limiter."},
			[]string{"exchange", "transport"},
		),
		FaultsInjected: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "mockserver_faults_injected_total", Help: "Simulated faults served instead of a real response."},
			[]string{"exchange", "route", "kind"},
		),
		WSConnections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "mockserver_ws_connections", Help: "Currently-open WebSocket connections."},
			[]string{"exchange"},
		),
	}
}

// Register registers every collector against registry.
func (m *ServerMetrics) Register(registry *prometheus.Registry) error {
	for _, c := range []prometheus.Collector{m.RequestsTotal, m.RateLimitHits, m.FaultsInjected, m.WSConnections} {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister registers every collector, panicking on error.
func (m *ServerMetrics) MustRegister(registry *prometheus.Registry) {
	if err := m.Register(registry); err != nil {
		panic(err)
	}
}
