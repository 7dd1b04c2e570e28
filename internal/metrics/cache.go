package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ngo-inquiry-tracker/internal/cache"
)

// InstrumentedStore counts hits, misses and write outcomes of the wrapped
// store. Everything else is delegated unchanged.
type InstrumentedStore struct {
	cache.Store

	lookups *prometheus.CounterVec
	writes  *prometheus.CounterVec
}

func (s *InstrumentedStore) Get(key string, dst any) bool {
	ok := s.Store.Get(key, dst)
	s.countLookup(ok)
	return ok
}

func (s *InstrumentedStore) Has(key string) bool {
	ok := s.Store.Has(key)
	s.countLookup(ok)
	return ok
}

func (s *InstrumentedStore) Set(key string, value any, ttl time.Duration) bool {
	ok := s.Store.Set(key, value, ttl)
	if ok {
		s.writes.WithLabelValues("ok").Inc()
	} else {
		s.writes.WithLabelValues("failed").Inc()
	}
	return ok
}

func (s *InstrumentedStore) countLookup(hit bool) {
	if hit {
		s.lookups.WithLabelValues("hit").Inc()
	} else {
		s.lookups.WithLabelValues("miss").Inc()
	}
}

// CacheCollector reports a store's Stats on every scrape.
type CacheCollector struct {
	store cache.Store

	files   *prometheus.Desc
	valid   *prometheus.Desc
	expired *prometheus.Desc
	size    *prometheus.Desc
}

func NewCacheCollector(s cache.Store) *CacheCollector {
	return &CacheCollector{
		store:   s,
		files:   prometheus.NewDesc("cache_files", "Entry files in the cache directory", nil, nil),
		valid:   prometheus.NewDesc("cache_valid_items", "Entries that parse and have not expired", nil, nil),
		expired: prometheus.NewDesc("cache_expired_items", "Entries that parse but have expired", nil, nil),
		size:    prometheus.NewDesc("cache_size_bytes", "Total size of all entry files", nil, nil),
	}
}

func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.files
	ch <- c.valid
	ch <- c.expired
	ch <- c.size
}

func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.store.Stats()
	ch <- prometheus.MustNewConstMetric(c.files, prometheus.GaugeValue, float64(stats.TotalFiles))
	ch <- prometheus.MustNewConstMetric(c.valid, prometheus.GaugeValue, float64(stats.ValidItems))
	ch <- prometheus.MustNewConstMetric(c.expired, prometheus.GaugeValue, float64(stats.ExpiredItems))
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(stats.TotalSizeBytes))
}
