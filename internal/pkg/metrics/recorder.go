// Package metrics records conversation and commit metrics with Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is what the conversation service reports into.
type Recorder interface {
	ObserveEvent(kind, stage string)
	IncCommitted()
	IncCommitFailure(reason string)
	ObserveAppend(duration time.Duration)
}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	eventsTotal     *prometheus.CounterVec
	committedTotal  prometheus.Counter
	failuresTotal   *prometheus.CounterVec
	appendDurations prometheus.Histogram
}

// NewPrometheusRecorder registers the collectors on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nearmiss_events_total",
				Help: "Inbound chat events by kind and the stage they were handled in",
			},
			[]string{"kind", "stage"},
		),
		committedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nearmiss_reports_committed_total",
				Help: "Reports appended to the sheet",
			},
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nearmiss_commit_failures_total",
				Help: "Failed report commits by reason",
			},
			[]string{"reason"},
		),
		appendDurations: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nearmiss_append_duration_seconds",
				Help:    "Duration of sheet append calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (p *PrometheusRecorder) ObserveEvent(kind, stage string) {
	p.eventsTotal.WithLabelValues(kind, stage).Inc()
}

func (p *PrometheusRecorder) IncCommitted() {
	p.committedTotal.Inc()
}

func (p *PrometheusRecorder) IncCommitFailure(reason string) {
	p.failuresTotal.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) ObserveAppend(duration time.Duration) {
	p.appendDurations.Observe(duration.Seconds())
}

// NopRecorder drops every observation.
type NopRecorder struct{}

func (NopRecorder) ObserveEvent(string, string) {}
func (NopRecorder) IncCommitted() {}
func (NopRecorder) IncCommitFailure(string) {}
func (NopRecorder) ObserveAppend(time.Duration) {}
