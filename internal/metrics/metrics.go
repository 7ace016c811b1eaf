package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/dmorgan81/promptgrid/internal/image"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
)

const namespace = "promptgrid"

type Metrics struct {
	registry *prometheus.Registry

	batches       *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	providerTime  prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Generation batches by outcome.",
		}, []string{"outcome"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Provider generation calls by outcome.",
		}, []string{"outcome"}),
		providerTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Wall time of a provider generation call.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
	}
	m.registry.MustRegister(
		m.batches,
		m.providerCalls,
		m.providerTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func outcome(err error) string {
	return lo.Ternary(err == nil, "success", "error")
}

func (m *Metrics) ObserveBatch(err error) {
	m.batches.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Instrument wraps gen so every call is counted and timed.
func (m *Metrics) Instrument(gen image.Generator) image.Generator {
	return &instrumented{next: gen, m: m}
}

type instrumented struct {
	next image.Generator
	m    *Metrics
}

func (g *instrumented) Generate(ctx context.Context, task image.Task) (image.Image, error) {
	start := time.Now()
	img, err := g.next.Generate(ctx, task)
	g.m.providerTime.Observe(time.Since(start).Seconds())
	g.m.providerCalls.WithLabelValues(outcome(err)).Inc()
	return img, err
}
