package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DropReasonCategory    = "category"
	DropReasonUnknownType = "unknown_type"
	DropReasonOutOfRange  = "out_of_range"
	DropReasonDuplicate   = "duplicate_group"
)

type Manager struct {
	// counters
	CounterAPIRequests    *prometheus.CounterVec
	CounterPages          prometheus.Counter
	CounterSamples        *prometheus.CounterVec
	CounterDropped        *prometheus.CounterVec
	CounterTokenRefreshes prometheus.Counter

	// gauges
	GaugeWeeks    prometheus.Gauge
	GaugeRangeEnd prometheus.Gauge

	// histograms
	HistogramRequestDuration *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("withings2weeks", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("withings2weeks", "test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterAPIRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "api_requests",
		Help:      "The total number of requests sent to the Withings API",
	}, []string{"endpoint", "outcome"})
	counterPages := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "measure_pages",
		Help:      "The total number of getmeas pages fetched",
	})
	counterSamples := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "samples",
		Help:      "The total number of normalized samples, by source",
	}, []string{"source"})
	counterDropped := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "dropped",
		Help:      "Measure groups, measures or samples intentionally left out, by reason",
	}, []string{"reason"})
	counterTokenRefreshes := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "token_refreshes",
		Help:      "The total number of OAuth access token refreshes",
	})

	gaugeWeeks := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "weeks",
		Help:      "Number of weekly rows produced by the last run",
	})
	gaugeRangeEnd := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "range_end_timestamp_seconds",
		Help:      "Exclusive end of the week range of the last run, as unix time",
	})

	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of Withings API response time in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"endpoint"})

	return &Manager{
		CounterAPIRequests:       counterAPIRequests,
		CounterPages:             counterPages,
		CounterSamples:           counterSamples,
		CounterDropped:           counterDropped,
		CounterTokenRefreshes:    counterTokenRefreshes,
		GaugeWeeks:               gaugeWeeks,
		GaugeRangeEnd:            gaugeRangeEnd,
		HistogramRequestDuration: histogramRequestDuration,
	}
}
