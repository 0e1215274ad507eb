package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the workflow collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	workflows   *prometheus.CounterVec
	attempts    prometheus.Counter
	corrections prometheus.Counter
	commands    *prometheus.CounterVec
	generation  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		workflows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gdforge",
			Name:      "workflows_total",
			Help:      "Workflow invocations by terminal outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gdforge",
			Name:      "execution_attempts_total",
			Help:      "Plan executions started.",
		}),
		corrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gdforge",
			Name:      "corrections_total",
			Help:      "Corrected plans requested.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gdforge",
			Name:      "commands_total",
			Help:      "Commands dispatched by name and result.",
		}, []string{"command", "result"}),
		generation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gdforge",
			Name:      "generation_duration_seconds",
			Help:      "Generation call latency by pipeline stage.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
	}
	m.registry.MustRegister(m.workflows, m.attempts, m.corrections, m.commands, m.generation)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Workflow(outcome string) {
	if m == nil {
		return
	}
	m.workflows.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Attempt() {
	if m == nil {
		return
	}
	m.attempts.Inc()
}

func (m *Metrics) Correction() {
	if m == nil {
		return
	}
	m.corrections.Inc()
}

func (m *Metrics) Command(name, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name, result).Inc()
}

func (m *Metrics) Generation(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.generation.WithLabelValues(stage).Observe(d.Seconds())
}
