// Package metrics exports run progress as Prometheus metrics. The collectors
// live on a private registry which the app serves at /metrics next to the
// health check.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/specialistvlad/runbookgo/internal/executor"
	"github.com/specialistvlad/runbookgo/internal/registry"
	"github.com/specialistvlad/runbookgo/internal/report"
	"github.com/specialistvlad/runbookgo/internal/tools"
)

// Observer implements executor.Observer with Prometheus collectors.
type Observer struct {
	reg *prometheus.Registry

	stepsTotal     *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	decisionsTotal *prometheus.CounterVec
	nodesTotal     *prometheus.CounterVec
	nodeDuration   prometheus.Histogram
}

// NewObserver creates an Observer with its own registry. namespace prefixes
// every metric name.
func NewObserver(namespace string) *Observer {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Observer{
		reg: reg,
		stepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total number of executed tool steps",
			},
			[]string{"agent", "status"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of tool steps in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"agent"},
		),
		decisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total number of oracle decisions by returned token",
			},
			[]string{"agent", "token"},
		),
		nodesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_total",
				Help:      "Total number of processed target nodes by outcome",
			},
			[]string{"status"},
		),
		nodeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_duration_seconds",
				Help:      "Duration of the per-node walk in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

func (o *Observer) StepFinished(agent string, status tools.Status, elapsed time.Duration) {
	o.stepsTotal.WithLabelValues(agent, string(status)).Inc()
	o.stepDuration.WithLabelValues(agent).Observe(elapsed.Seconds())
}

func (o *Observer) DecisionMade(agent, token string) {
	o.decisionsTotal.WithLabelValues(agent, token).Inc()
}

func (o *Observer) NodeFinished(_ string, status report.Status, elapsed time.Duration) {
	o.nodesTotal.WithLabelValues(string(status)).Inc()
	o.nodeDuration.Observe(elapsed.Seconds())
}

// Handler serves the observer's registry in the Prometheus text format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.reg, promhttp.HandlerOpts{Registry: o.reg})
}

// Gatherer exposes the registry, mostly for tests.
func (o *Observer) Gatherer() prometheus.Gatherer { return o.reg }

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the prometheus observer.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterObserver("prometheus", func(_ context.Context, s registry.Settings) (executor.Observer, error) {
		return NewObserver(s.String("namespace", "runbook")), nil
	})
}
