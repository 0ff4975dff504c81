package ccd

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors a Session updates.
// A nil *Metrics records nothing.
type Metrics struct {
	exposures       *prometheus.CounterVec
	exposureSeconds *prometheus.HistogramVec
	temperature     prometheus.Gauge
	tempStatus      prometheus.Gauge
	failures        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		exposures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "autoguider",
				Subsystem: "ccd",
				Name:      "exposures_total",
				Help:      "Exposures attempted, by type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		exposureSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "autoguider",
				Subsystem: "ccd",
				Name:      "exposure_duration_seconds",
				Help:      "Wall clock duration of exposures including readout.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
			},
			[]string{"type"},
		),
		temperature: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "autoguider",
				Subsystem: "ccd",
				Name:      "temperature_celsius",
				Help:      "Last sensor temperature read.",
			},
		),
		tempStatus: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "autoguider",
				Subsystem: "ccd",
				Name:      "temperature_status",
				Help:      "Last cooling status: 0 unknown, 1 off, 2 ramping, 3 ok.",
			},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "autoguider",
				Subsystem: "ccd",
				Name:      "failures_total",
				Help:      "Failed operations, by operation and error kind.",
			},
			[]string{"op", "kind"},
		),
	}
	reg.MustRegister(m.exposures, m.exposureSeconds, m.temperature, m.tempStatus, m.failures)
	return m
}

func (m *Metrics) observeExposure(typ string, began time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	m.exposures.WithLabelValues(typ, outcome).Inc()
	m.exposureSeconds.WithLabelValues(typ).Observe(time.Since(began).Seconds())
}

func (m *Metrics) observeTemperature(t float64, s TemperatureStatus) {
	if m == nil {
		return
	}
	m.temperature.Set(t)
	m.tempStatus.Set(float64(s))
}

func (m *Metrics) observeFailure(op string, err error) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(op, KindOf(err).String()).Inc()
}
