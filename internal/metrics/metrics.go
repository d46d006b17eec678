// Package metrics holds the collectors recorded by one invocation and pushes them to a
// Prometheus Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "ibcsend"

const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Recorder owns a private registry so that only this invocation's series are pushed.
type Recorder struct {
	registry *prometheus.Registry

	PathVerifications *prometheus.CounterVec
	Transfers         *prometheus.CounterVec
	DispatchDuration  prometheus.Histogram
}

// NewRecorder creates and registers the collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		PathVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "path_verifications_total",
			Help:      "Path verifications by result.",
		}, []string{"result"}),
		Transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Transfer dispatches by result.",
		}, []string{"result"}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching a transfer, including waiting for inclusion.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
	}
	r.registry.MustRegister(r.PathVerifications, r.Transfers, r.DispatchDuration)
	return r
}

// Registry exposes the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveVerification counts one path verification under the given result label.
func (r *Recorder) ObserveVerification(result string) {
	r.PathVerifications.WithLabelValues(result).Inc()
}

// ObserveDispatch records the outcome and duration of a dispatch.
func (r *Recorder) ObserveDispatch(elapsed time.Duration, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	r.Transfers.WithLabelValues(result).Inc()
	r.DispatchDuration.Observe(elapsed.Seconds())
}

// Push sends every collected series to the Pushgateway at url under job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
