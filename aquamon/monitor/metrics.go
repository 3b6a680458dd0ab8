package monitor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alepar/aquamon/aquamon"
)

// Metrics exposed to Prometheus.
type Metrics struct {
	Concentration *prometheus.GaugeVec
	Forecast      *prometheus.GaugeVec
	Ticks         *prometheus.CounterVec
	Errors        *prometheus.CounterVec
	WindowSamples prometheus.Gauge
	StageDuration *prometheus.HistogramVec
}

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"analyte"},
	)
}

// NewMetrics registers the monitor metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Concentration: newGauge("aquamon_concentration", "Latest measured concentration (units: pH, mg/L ammonia, ppm nitrate)"),
		Forecast:      newGauge("aquamon_forecast", "Forecast concentration one sampling interval ahead"),
		Ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aquamon_ticks_total",
				Help: "Monitor ticks by outcome",
			},
			[]string{"outcome"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aquamon_errors_total",
				Help: "Errors by kind (malformed, transport, inference, generation, sink, unknown)",
			},
			[]string{"kind"},
		),
		WindowSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aquamon_window_samples",
			Help: "Samples currently held in the history window",
		}),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aquamon_stage_duration_seconds",
				Help:    "Time spent per tick stage",
				Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
			},
			[]string{"stage"},
		),
	}
	reg.MustRegister(m.Concentration, m.Forecast, m.Ticks, m.Errors, m.WindowSamples, m.StageDuration)
	return m
}

func (m *Metrics) observeReading(s aquamon.ConcentrationSample) {
	m.Concentration.WithLabelValues("ph").Set(s.PH)
	m.Concentration.WithLabelValues("ammonia").Set(s.Ammonia)
	m.Concentration.WithLabelValues("nitrate").Set(s.Nitrate)
}

func (m *Metrics) observeForecast(e aquamon.TrendEstimate) {
	m.Forecast.WithLabelValues("ph").Set(e.PH)
	m.Forecast.WithLabelValues("ammonia").Set(e.Ammonia)
	m.Forecast.WithLabelValues("nitrate").Set(e.Nitrate)
}
