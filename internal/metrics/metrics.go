// Package metrics counts task outcomes in a Prometheus registry and writes
// them in the textfile format, for node_exporter's textfile collector or a
// CI artifact.
package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ShayCichocki/codeharness/pkg/models"
)

// Metrics holds the collectors for one process. It implements the eval
// runner's Recorder hook.
type Metrics struct {
	registry     *prometheus.Registry
	tasks        *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	tokens       *prometheus.CounterVec
	lastRun      prometheus.Gauge
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codeharness_tasks_total",
			Help: "Evaluated tasks by outcome and language",
		}, []string{"status", "language"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codeharness_task_duration_seconds",
			Help:    "Time to generate and check one task",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"status"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codeharness_api_tokens_total",
			Help: "Tokens consumed by code generation",
		}, []string{"direction"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codeharness_last_run_timestamp_seconds",
			Help: "Unix time at which the last task finished",
		}),
	}
	m.registry.MustRegister(m.tasks, m.taskDuration, m.tokens, m.lastRun)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordTaskResult counts one task result.
func (m *Metrics) RecordTaskResult(_ context.Context, res models.TaskResult) error {
	status := string(res.Status)
	m.tasks.WithLabelValues(status, string(res.Task.Language.OrDefault())).Inc()
	m.taskDuration.WithLabelValues(status).Observe(res.Duration.Seconds())
	if res.InputTokens > 0 {
		m.tokens.WithLabelValues("input").Add(float64(res.InputTokens))
	}
	if res.OutputTokens > 0 {
		m.tokens.WithLabelValues("output").Add(float64(res.OutputTokens))
	}
	finished := res.StartedAt.Add(res.Duration)
	if res.StartedAt.IsZero() {
		finished = time.Now()
	}
	m.lastRun.Set(float64(finished.Unix()))
	return nil
}

// WriteFile writes the registry to path in the Prometheus text format. The
// file is replaced atomically.
func (m *Metrics) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
