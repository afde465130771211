package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics aggregates API-side counters: generic HTTP traffic
// plus QA workflow and hybrid search outcomes.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	qaRequestsTotal     *prometheus.CounterVec
	qaStageDuration     *prometheus.HistogramVec
	qaWebSearchTotal    *prometheus.CounterVec
	qaRetrievedPassages *prometheus.HistogramVec

	searchRequestsTotal    *prometheus.CounterVec
	searchWebFallbackTotal *prometheus.CounterVec

	webProviderTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pqa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pqa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	qaRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pqa",
			Subsystem: "qa",
			Name:      "requests_total",
			Help:      "Total QA workflow runs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	qaStageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pqa",
			Subsystem: "qa",
			Name:      "stage_duration_seconds",
			Help:      "QA workflow stage duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	qaWebSearchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pqa",
			Subsystem: "qa",
			Name:      "web_search_total",
			Help:      "Total QA runs that triggered web search, by trigger.",
		},
		[]string{"service", "trigger"},
	)
	qaRetrievedPassages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pqa",
			Subsystem: "qa",
			Name:      "retrieved_passages",
			Help:      "Distribution of retrieved passages per QA run.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)
	searchRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pqa",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total hybrid search requests by mode.",
		},
		[]string{"service", "mode"},
	)
	searchWebFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pqa",
			Subsystem: "search",
			Name:      "web_fallback_total",
			Help:      "Total hybrid searches that appended web fallback results.",
		},
		[]string{"service"},
	)
	webProviderTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pqa",
			Subsystem: "websearch",
			Name:      "provider_total",
			Help:      "Web search provider attempts by result.",
		},
		[]string{"service", "provider", "result"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		qaRequestsTotal,
		qaStageDuration,
		qaWebSearchTotal,
		qaRetrievedPassages,
		searchRequestsTotal,
		searchWebFallbackTotal,
		webProviderTotal,
	)

	return &HTTPServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		qaRequestsTotal:        qaRequestsTotal,
		qaStageDuration:        qaStageDuration,
		qaWebSearchTotal:       qaWebSearchTotal,
		qaRetrievedPassages:    qaRetrievedPassages,
		searchRequestsTotal:    searchRequestsTotal,
		searchWebFallbackTotal: searchWebFallbackTotal,
		webProviderTotal:       webProviderTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) ObserveRequest(service, method, path string, status int, duration time.Duration) {
	m.requestTotal.WithLabelValues(service, method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) IncInFlight() { m.requestInFlight.Inc() }
func (m *HTTPServerMetrics) DecInFlight() { m.requestInFlight.Dec() }

func (m *HTTPServerMetrics) ObserveQARun(service, outcome string, passages int) {
	m.qaRequestsTotal.WithLabelValues(service, outcome).Inc()
	m.qaRetrievedPassages.WithLabelValues(service).Observe(float64(passages))
}

// ObserveStage implements the workflow stage observer contract.
func (m *HTTPServerMetrics) ObserveStage(service, stage string, duration time.Duration) {
	m.qaStageDuration.WithLabelValues(service, stage).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) IncWebSearchTrigger(service, trigger string) {
	m.qaWebSearchTotal.WithLabelValues(service, trigger).Inc()
}

func (m *HTTPServerMetrics) IncSearchRequest(service, mode string) {
	m.searchRequestsTotal.WithLabelValues(service, mode).Inc()
}

func (m *HTTPServerMetrics) IncSearchWebFallback(service string) {
	m.searchWebFallbackTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) IncWebProvider(service, provider, result string) {
	m.webProviderTotal.WithLabelValues(service, provider, result).Inc()
}
