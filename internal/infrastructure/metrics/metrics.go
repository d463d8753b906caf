// Package metrics holds the Prometheus instruments of the screener.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Poller metrics
	PollFetches  *prometheus.CounterVec
	PollDuration *prometheus.HistogramVec
	Tokens       *prometheus.GaugeVec

	// Upstream metrics
	UpstreamDuration *prometheus.HistogramVec

	// Alert and feed metrics
	AlertsTriggered      prometheus.Counter
	PriceBatchesReceived *prometheus.CounterVec
	FeedTransport        *prometheus.GaugeVec
	PersistWrites        *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_screener"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		PollFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "fetches_total",
			Help:      "Total number of poller fetches by source and outcome",
		}, []string{"source", "outcome"}),
		PollDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of poller fetches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		Tokens: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "tokens",
			Help:      "Number of tokens in the last applied snapshot",
		}, []string{"source"}),

		UpstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Duration of market data requests by endpoint and status",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint", "status"}),

		AlertsTriggered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "triggered_total",
			Help:      "Total number of price alerts triggered",
		}),
		PriceBatchesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "batches_total",
			Help:      "Total number of price batches received by transport",
		}, []string{"transport"}),
		FeedTransport: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "transport_active",
			Help:      "1 for the active price feed transport",
		}, []string{"transport"}),
		PersistWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "writes_total",
			Help:      "Total number of local store writes by key and outcome",
		}, []string{"key", "outcome"}),
	}
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObservePoll records one applied or failed poller fetch.
func (m *Metrics) ObservePoll(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PollFetches.WithLabelValues(source, outcome).Inc()
	m.PollDuration.WithLabelValues(source).Observe(d.Seconds())
}

// SetTokens records the size of the last applied snapshot.
func (m *Metrics) SetTokens(source string, n int) {
	if m == nil {
		return
	}
	m.Tokens.WithLabelValues(source).Set(float64(n))
}

// ObserveUpstream records one market data request.
func (m *Metrics) ObserveUpstream(endpoint, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamDuration.WithLabelValues(endpoint, status).Observe(d.Seconds())
}

// AddAlertsTriggered counts triggered alerts.
func (m *Metrics) AddAlertsTriggered(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.AlertsTriggered.Add(float64(n))
}

// IncPriceBatch counts a received price batch.
func (m *Metrics) IncPriceBatch(transport string) {
	if m == nil {
		return
	}
	m.PriceBatchesReceived.WithLabelValues(transport).Inc()
}

// SetFeedTransport marks transport as the active one.
func (m *Metrics) SetFeedTransport(transport string) {
	if m == nil {
		return
	}
	m.FeedTransport.Reset()
	m.FeedTransport.WithLabelValues(transport).Set(1)
}

// IncPersist counts a local store write.
func (m *Metrics) IncPersist(key, outcome string) {
	if m == nil {
		return
	}
	m.PersistWrites.WithLabelValues(key, outcome).Inc()
}
