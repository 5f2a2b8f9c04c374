package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type MarketMetrics struct {
	calls        *prometheus.CounterVec
	listingsOpen prometheus.Gauge
	swapsOpen    prometheus.Gauge
	events       *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_calls_total",
				Help: "Count of marketplace entry point invocations by method and outcome.",
			}, []string{"method", "outcome"}),
			listingsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "market_listings_open",
				Help: "Number of listings currently active.",
			}),
			swapsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "market_swaps_open",
				Help: "Number of swap offers currently active.",
			}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_events_total",
				Help: "Count of marketplace events emitted by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(
			marketRegistry.calls,
			marketRegistry.listingsOpen,
			marketRegistry.swapsOpen,
			marketRegistry.events,
		)
	})
	return marketRegistry
}

func (m *MarketMetrics) ObserveCall(method string, err error) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(method, outcome).Inc()
}

func (m *MarketMetrics) ObserveEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.events.WithLabelValues(eventType).Inc()
}

func (m *MarketMetrics) AddOpenListings(delta float64) {
	if m == nil {
		return
	}
	m.listingsOpen.Add(delta)
}

func (m *MarketMetrics) AddOpenSwaps(delta float64) {
	if m == nil {
		return
	}
	m.swapsOpen.Add(delta)
}
