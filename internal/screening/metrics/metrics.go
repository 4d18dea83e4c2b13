package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the screening pipeline. All methods are
// safe on a nil receiver.
type Metrics struct {
	CacheLookups       *prometheus.CounterVec
	CacheWriteFailures prometheus.Counter
	ProviderLatency    *prometheus.HistogramVec
	ProviderErrors     *prometheus.CounterVec
	PersistFailures    prometheus.Counter
	PublishFailures    prometheus.Counter
	FieldMatches       *prometheus.CounterVec
	PeopleScreened     *prometheus.CounterVec
	ScreenLatency      prometheus.Histogram
}

// New registers the screening metrics with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the screening metrics with reg. Tests pass a
// fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_cache_lookups_total",
			Help: "Verdict cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "error"

		CacheWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "screener_cache_write_failures_total",
			Help: "Fresh verdicts that could not be written to the cache",
		}),

		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "screener_provider_request_duration_seconds",
			Help:    "Duration of batched provider calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),

		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_provider_errors_total",
			Help: "Failed provider calls by provider and kind",
		}, []string{"provider", "kind"}),

		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "screener_persist_failures_total",
			Help: "Person records that could not be persisted",
		}),

		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "screener_publish_failures_total",
			Help: "Screening events that could not be published",
		}),

		FieldMatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_field_matches_total",
			Help: "Fresh verdicts with a positive match, by field",
		}, []string{"field"}), // field: "name", "dob", "country"

		PeopleScreened: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_people_screened_total",
			Help: "People screened by verdict source",
		}, []string{"source"}), // source: "cache", "provider"

		ScreenLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_screen_duration_seconds",
			Help:    "Duration of a full screening request",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// RecordCacheLookup counts a cache lookup outcome.
func (m *Metrics) RecordCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

// IncCacheWriteFailures counts n failed cache writes.
func (m *Metrics) IncCacheWriteFailures(n int) {
	if m != nil {
		m.CacheWriteFailures.Add(float64(n))
	}
}

// ObserveProviderLatency records one provider call.
func (m *Metrics) ObserveProviderLatency(provider string, d time.Duration) {
	if m != nil {
		m.ProviderLatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// IncProviderError counts a failed provider call.
func (m *Metrics) IncProviderError(provider, kind string) {
	if m != nil {
		m.ProviderErrors.WithLabelValues(provider, kind).Inc()
	}
}

// IncPersistFailures counts n records that were not persisted.
func (m *Metrics) IncPersistFailures(n int) {
	if m != nil {
		m.PersistFailures.Add(float64(n))
	}
}

// IncPublishFailures counts n events that were not published.
func (m *Metrics) IncPublishFailures(n int) {
	if m != nil {
		m.PublishFailures.Add(float64(n))
	}
}

// RecordFieldMatch counts a positive field match on a fresh verdict.
func (m *Metrics) RecordFieldMatch(field string) {
	if m != nil {
		m.FieldMatches.WithLabelValues(field).Inc()
	}
}

// AddScreened counts people answered from source.
func (m *Metrics) AddScreened(source string, n int) {
	if m != nil && n > 0 {
		m.PeopleScreened.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveScreenLatency records a full screening request.
func (m *Metrics) ObserveScreenLatency(d time.Duration) {
	if m != nil {
		m.ScreenLatency.Observe(d.Seconds())
	}
}
