package converter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stdf2h5/stdf2h5/pkg/recordio"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds the converter Prometheus metrics. A nil *Metrics records
// nothing.
type Metrics struct {
	conversionsTotal   *prometheus.CounterVec
	conversionDuration *prometheus.HistogramVec
	recordsTotal       *prometheus.CounterVec
	recordsSkipped     *prometheus.CounterVec
}

// NewMetrics creates the converter metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		conversionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stdf2h5_conversions_total",
				Help: "Total number of conversions by outcome",
			},
			[]string{"status", "class"},
		),

		conversionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stdf2h5_conversion_duration_seconds",
				Help:    "Conversion duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),

		recordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stdf2h5_records_total",
				Help: "Total number of decoded records by record kind",
			},
			[]string{"kind"},
		),

		recordsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stdf2h5_records_skipped_total",
				Help: "Total number of skipped records by reason",
			},
			[]string{"reason"},
		),
	}
}

// RecordConversion records the outcome of one conversion
func (m *Metrics) RecordConversion(err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := statusSuccess
	if err != nil {
		status = statusError
	}
	m.conversionsTotal.WithLabelValues(status, Classify(err)).Inc()
	m.conversionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordStats adds the per-kind record counts of one conversion
func (m *Metrics) RecordStats(stats recordio.Stats) {
	if m == nil {
		return
	}
	for kind, n := range stats.Kinds {
		m.recordsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordSkip counts one skipped record
func (m *Metrics) RecordSkip(reason string) {
	if m == nil {
		return
	}
	m.recordsSkipped.WithLabelValues(reason).Inc()
}
