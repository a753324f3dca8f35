package binding

import (
	"github.com/dshills/embedbridge/index"
	"github.com/dshills/embedbridge/persistence"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label for successful calls
const outcomeOK = "ok"

// metrics are registered on a registry owned by one handle so handles
// never share series
type metrics struct {
	registry *prometheus.Registry

	// calls counts dispatched calls by operation and outcome
	calls *prometheus.CounterVec

	// duration records the full call time in seconds by operation
	duration *prometheus.HistogramVec

	// lockWait records time spent waiting for exclusive handle access
	lockWait prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedbridge_calls_total",
				Help: "Dispatched calls",
			},
			[]string{"op", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "embedbridge_call_duration_seconds",
				Help:    "Call duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		lockWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "embedbridge_lock_wait_seconds",
				Help:    "Time waiting for the handle lock",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
	}
	m.registry.MustRegister(m.calls, m.duration, m.lockWait)
	return m
}

func (m *metrics) observe(op string, outcome string, seconds float64) {
	m.calls.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(seconds)
}

// cacheReporter is implemented by engines that keep a segment cache
type cacheReporter interface {
	CacheStats() index.CacheStats
}

// watchCache exports the segment cache counters of engine, if it has any
func (m *metrics) watchCache(engine Engine) {
	reporter, ok := engine.(cacheReporter)
	if !ok {
		return
	}
	counter := func(name, help string, value func(index.CacheStats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: name,
			Help: help,
		}, func() float64 {
			return float64(value(reporter.CacheStats()))
		})
	}
	m.registry.MustRegister(
		counter("embedbridge_segment_cache_hits_total", "Segment cache hits",
			func(s index.CacheStats) int64 { return s.Hits }),
		counter("embedbridge_segment_cache_misses_total", "Segment cache misses",
			func(s index.CacheStats) int64 { return s.Misses }),
		counter("embedbridge_segment_cache_evictions_total", "Segment cache evictions",
			func(s index.CacheStats) int64 { return s.Evictions }),
	)
}

// walReporter is implemented by engines whose persistence logs writes ahead
type walReporter interface {
	WALStats() (persistence.WALStats, bool)
}

// watchWAL exports the write-ahead log size and last entry id of engine
func (m *metrics) watchWAL(engine Engine) {
	reporter, ok := engine.(walReporter)
	if !ok {
		return
	}
	if _, ok := reporter.WALStats(); !ok {
		return
	}
	gauge := func(name, help string, value func(persistence.WALStats) int64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: name,
			Help: help,
		}, func() float64 {
			stats, _ := reporter.WALStats()
			return float64(value(stats))
		})
	}
	m.registry.MustRegister(
		gauge("embedbridge_wal_size_bytes", "Write-ahead log size",
			func(s persistence.WALStats) int64 { return s.SizeBytes }),
		gauge("embedbridge_wal_last_entry_id", "Id of the last write-ahead log entry",
			func(s persistence.WALStats) int64 { return s.LastID }),
	)
}
