package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ngo-inquiry-tracker/internal/cache"
)

// Metrics holds every collector the server exposes on /metrics. Each
// instance owns its registry so several servers can coexist in one test
// binary.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	CacheLookups *prometheus.CounterVec
	CacheWrites  *prometheus.CounterVec

	UpstreamRequests *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "The total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "The HTTP request latencies in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_lookups_total",
				Help: "Cache lookups by result (hit or miss)",
			},
			[]string{"result"},
		),
		CacheWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_writes_total",
				Help: "Cache writes by result (ok or failed)",
			},
			[]string{"result"},
		),
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dip_requests_total",
				Help: "Requests to the DIP API by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
	}

	m.Registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.CacheLookups,
		m.CacheWrites,
		m.UpstreamRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// WatchCache exposes the store's Stats as gauges, computed at scrape time.
func (m *Metrics) WatchCache(s cache.Store) {
	m.Registry.MustRegister(NewCacheCollector(s))
}

// Instrument wraps s so lookups and writes are counted.
func (m *Metrics) Instrument(s cache.Store) cache.Store {
	return &InstrumentedStore{
		Store:   s,
		lookups: m.CacheLookups,
		writes:  m.CacheWrites,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
