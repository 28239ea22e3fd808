// Package telemetry counts engine activity in a private Prometheus registry.
// A CLI run is short-lived, so metrics leave the process either as a
// node-exporter textfile or through a Pushgateway rather than a scrape
// endpoint.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/blackwell-systems/bidctl/internal/bidding"
)

const namespace = "bidctl"

// JobName is the Pushgateway job label.
const JobName = "bidctl_analyze"

// Recorder implements bidding.Observer on top of Prometheus collectors.
type Recorder struct {
	registry *prometheus.Registry

	rowsEvaluated   prometheus.Counter
	ruleMatches     *prometheus.CounterVec
	conditionErrors *prometheus.CounterVec
	recommendations *prometheus.CounterVec
	batchDuration   prometheus.Histogram
	lastRun         prometheus.Gauge
}

var _ bidding.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rowsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_evaluated_total",
			Help:      "Total number of rows run through the rule engine",
		}),
		ruleMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_matches_total",
			Help:      "Total number of rows decided by each rule",
		}, []string{"rule"}),
		conditionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "condition_errors_total",
			Help:      "Total number of rule conditions that failed to evaluate",
		}, []string{"rule"}),
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Total number of recommendations by action",
		}, []string{"action"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of analysis batches in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed analysis",
		}),
	}
	r.registry.MustRegister(
		r.rowsEvaluated,
		r.ruleMatches,
		r.conditionErrors,
		r.recommendations,
		r.batchDuration,
		r.lastRun,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RowEvaluated records one engine outcome.
func (r *Recorder) RowEvaluated(rec bidding.Recommendation) {
	r.rowsEvaluated.Inc()
	r.recommendations.WithLabelValues(string(rec.Action)).Inc()
	if rec.Rule != "" {
		r.ruleMatches.WithLabelValues(rec.Rule).Inc()
	}
}

// ConditionFailed records a condition that could not be evaluated.
func (r *Recorder) ConditionFailed(rule string, _ error) {
	r.conditionErrors.WithLabelValues(rule).Inc()
}

// ObserveBatch records the duration of one analysis pass.
func (r *Recorder) ObserveBatch(d time.Duration, finished time.Time) {
	r.batchDuration.Observe(d.Seconds())
	r.lastRun.Set(float64(finished.Unix()))
}

// WriteTextfile writes the current metrics in the node-exporter textfile
// format. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Push sends the current metrics to a Pushgateway, replacing the previous
// push for JobName.
func (r *Recorder) Push(ctx context.Context, url string) error {
	if err := push.New(url, JobName).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
