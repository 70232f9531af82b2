package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records fetch and aggregation timings. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	fetchDuration     *prometheus.HistogramVec
	fetchErrors       *prometheus.CounterVec
	aggregateDuration prometheus.Histogram
	eventsAggregated  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "calwrapped",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching events from one source.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calwrapped",
			Name:      "fetch_errors_total",
			Help:      "Failed source fetches.",
		}, []string{"source"}),
		aggregateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "calwrapped",
			Name:      "aggregate_duration_seconds",
			Help:      "Time spent aggregating one event list.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		eventsAggregated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "calwrapped",
			Name:      "events_aggregated",
			Help:      "Events in the latest aggregation.",
		}),
	}
	reg.MustRegister(m.fetchDuration, m.fetchErrors, m.aggregateDuration, m.eventsAggregated)
	return m
}

func (m *Metrics) observeFetch(source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(source).Observe(d.Seconds())
	if err != nil {
		m.fetchErrors.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) observeAggregate(d time.Duration, events int) {
	if m == nil {
		return
	}
	m.aggregateDuration.Observe(d.Seconds())
	m.eventsAggregated.Set(float64(events))
}
