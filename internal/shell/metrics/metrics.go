// Package metrics exposes Prometheus collectors for workflow runs.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
)

// Metrics holds the engine's Prometheus collectors. It implements
// workflow.Observer.
type Metrics struct {
	Runs            *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	CleanupFailures *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deployer_runs_total",
				Help: "Total number of workflow runs",
			},
			[]string{"tool", "action", "outcome"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deployer_run_duration_seconds",
				Help:    "Workflow run duration in seconds",
				Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 180, 600},
			},
			[]string{"tool", "action"},
		),
		CleanupFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deployer_cleanup_incomplete_total",
				Help: "Resources that could not be cleaned up after a run",
			},
			[]string{"tool", "resource"},
		),
	}
}

// NewRegistry creates a registry with the engine metrics and the Go and
// process collectors.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, NewMetrics(reg)
}

// HandlerFor returns an HTTP handler exposing reg.
func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// RunFinished records a finished run.
func (m *Metrics) RunFinished(tool domain.Tool, action domain.Action, success bool, elapsed time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.Runs.WithLabelValues(string(tool), string(action), outcome).Inc()
	m.RunDuration.WithLabelValues(string(tool), string(action)).Observe(elapsed.Seconds())
}

// CleanupIncomplete records a leaked resource. Only the resource kind (the
// first word, e.g. "image") is used as a label.
func (m *Metrics) CleanupIncomplete(tool domain.Tool, resource string) {
	m.CleanupFailures.WithLabelValues(string(tool), resourceKind(resource)).Inc()
}

func resourceKind(resource string) string {
	fields := strings.Fields(resource)
	if len(fields) == 0 {
		return "unknown"
	}
	return fields[0]
}
