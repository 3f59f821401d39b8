// Package metrics turns pipeline events into Prometheus metrics.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aristath/scaffold/internal/events"
)

// Collector owns a registry and the metrics fed from the event bus.
type Collector struct {
	registry *prometheus.Registry

	tiers       *prometheus.CounterVec
	tierSeconds *prometheus.HistogramVec
	generations *prometheus.CounterVec
	genSeconds  *prometheus.HistogramVec
	warnings    *prometheus.CounterVec
	outputBytes *prometheus.CounterVec
	files       *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runSeconds  prometheus.Histogram
	activeTiers prometheus.Gauge
}

// New creates a Collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		tiers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scaffold_tiers_total",
				Help: "Tiers finished, by outcome",
			},
			[]string{"tier", "outcome"},
		),
		tierSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scaffold_tier_duration_seconds",
				Help:    "Tier duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"tier"},
		),
		generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scaffold_generations_total",
				Help: "Generator calls, by backend, pass and result",
			},
			[]string{"backend", "pass", "result"},
		),
		genSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scaffold_generation_duration_seconds",
				Help:    "Generator call latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"backend"},
		),
		warnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scaffold_tier_warnings_total",
				Help: "Warnings raised by successful tiers",
			},
			[]string{"tier"},
		),
		outputBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scaffold_output_bytes_total",
				Help: "Bytes of tier output produced",
			},
			[]string{"tier"},
		),
		files: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scaffold_generated_files_total",
				Help: "Files produced by fan-out tiers",
			},
			[]string{"tier"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scaffold_runs_total",
				Help: "Runs finished, by status",
			},
			[]string{"status"},
		),
		runSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scaffold_run_duration_seconds",
				Help:    "Run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		activeTiers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scaffold_active_tiers",
				Help: "Tiers currently executing",
			},
		),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe updates the metrics for one event.
func (c *Collector) Observe(e events.Event) {
	switch ev := e.(type) {
	case events.TierStartedEvent:
		c.activeTiers.Inc()
	case events.TierCompletedEvent:
		c.activeTiers.Dec()
		c.tiers.WithLabelValues(ev.Tier, "completed").Inc()
		c.tierSeconds.WithLabelValues(ev.Tier).Observe(ev.Duration.Seconds())
		c.outputBytes.WithLabelValues(ev.Tier).Add(float64(ev.OutputBytes))
		if ev.Files > 0 {
			c.files.WithLabelValues(ev.Tier).Add(float64(ev.Files))
		}
	case events.TierFailedEvent:
		c.activeTiers.Dec()
		c.tiers.WithLabelValues(ev.Tier, "failed").Inc()
		c.tierSeconds.WithLabelValues(ev.Tier).Observe(ev.Duration.Seconds())
	case events.TierSkippedEvent:
		c.tiers.WithLabelValues(ev.Tier, "skipped").Inc()
	case events.TierWarningEvent:
		c.warnings.WithLabelValues(ev.Tier).Inc()
	case events.GenerationEvent:
		result := "ok"
		if ev.Err != nil {
			result = "error"
		}
		c.generations.WithLabelValues(ev.Backend, ev.Pass, result).Inc()
		c.genSeconds.WithLabelValues(ev.Backend).Observe(ev.Duration.Seconds())
	case events.RunFinishedEvent:
		c.runs.WithLabelValues(ev.Status).Inc()
		c.runSeconds.Observe(ev.Duration.Seconds())
	}
}

// Consume observes events from ch until it is closed or ctx is done.
func (c *Collector) Consume(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			c.Observe(e)
		}
	}
}

// WriteFile writes the current metrics in the text exposition format.
func (c *Collector) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
