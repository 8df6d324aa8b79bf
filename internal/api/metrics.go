package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nishad/runsheet/internal/convert"
	"github.com/nishad/runsheet/internal/errors"
)

// Metrics records conversion outcomes in a Prometheus registry.
type Metrics struct {
	registry    *prometheus.Registry
	conversions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	runsheets   *prometheus.CounterVec
	warnings    *prometheus.CounterVec
}

// NewMetrics registers the conversion collectors with reg, or with a fresh
// registry when reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runsheet",
			Name:      "conversions_total",
			Help:      "Conversions by profile and outcome.",
		}, []string{"profile", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "runsheet",
			Name:      "conversion_duration_seconds",
			Help:      "Wall time of conversions, including URL lookups.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"profile"}),
		runsheets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runsheet",
			Name:      "runsheets_written_total",
			Help:      "Runsheets produced by successful conversions.",
		}, []string{"profile"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runsheet",
			Name:      "warnings_total",
			Help:      "Tolerated conditions recorded during conversions.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.conversions, m.duration, m.runsheets, m.warnings)
	return m
}

// Observe records one conversion. res is nil when err is set.
func (m *Metrics) Observe(profile string, res *convert.Result, err error, d time.Duration) {
	if profile == "" {
		profile = "custom"
	}
	status := "success"
	if err != nil {
		status = errors.GetKind(err).String()
	}
	m.conversions.WithLabelValues(profile, status).Inc()
	m.duration.WithLabelValues(profile).Observe(d.Seconds())
	if res == nil {
		return
	}
	m.runsheets.WithLabelValues(profile).Add(float64(len(res.Runsheets)))
	for _, w := range res.Warnings {
		m.warnings.WithLabelValues(string(w.Kind)).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
