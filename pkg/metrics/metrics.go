// Package metrics exposes engine activity as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/opscart/capacity-compliance/pkg/models"
)

// Report outcomes
const (
	ReportOK          = "ok"
	ReportEmpty       = "empty"
	ReportFetchFailed = "fetch_failed"
	ReportRejected    = "rejected"
)

// Forecast outcomes
const (
	ForecastHighRisk = "high_risk"
	ForecastDated    = "dated"
	ForecastNone     = "no_forecast"
)

// Recorder owns a dedicated registry. A nil *Recorder records nothing.
type Recorder struct {
	Registry *prometheus.Registry

	reports   *prometheus.CounterVec
	skipped   prometheus.Counter
	duration  prometheus.Histogram
	forecasts *prometheus.CounterVec
}

// New creates a recorder with its own registry
func New() *Recorder {
	r := &Recorder{
		Registry: prometheus.NewRegistry(),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capacity_reports_total",
			Help: "Resource reports computed, by outcome.",
		}, []string{"status"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capacity_snapshots_skipped_total",
			Help: "Malformed snapshots skipped during aggregation.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "capacity_report_duration_seconds",
			Help:    "Time to compute a resource report.",
			Buckets: prometheus.DefBuckets,
		}),
		forecasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capacity_forecasts_total",
			Help: "Disk forecasts computed, by result.",
		}, []string{"result"}),
	}

	r.Registry.MustRegister(
		r.reports,
		r.skipped,
		r.duration,
		r.forecasts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveReport records one report computation
func (r *Recorder) ObserveReport(status string, elapsed time.Duration, skipped int) {
	if r == nil {
		return
	}
	r.reports.WithLabelValues(status).Inc()
	r.duration.Observe(elapsed.Seconds())
	if skipped > 0 {
		r.skipped.Add(float64(skipped))
	}
}

// ObserveForecast records the result class of a forecast
func (r *Recorder) ObserveForecast(fc *models.DiskForecast) {
	if r == nil {
		return
	}
	r.forecasts.WithLabelValues(ForecastResult(fc)).Inc()
}

// ForecastResult classifies a forecast for the result label
func ForecastResult(fc *models.DiskForecast) string {
	switch {
	case fc.IsHighRisk:
		return ForecastHighRisk
	case fc.HasForecast():
		return ForecastDated
	default:
		return ForecastNone
	}
}
