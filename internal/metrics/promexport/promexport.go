// Package promexport is the Prometheus backend for the metrics package. It
// keeps its own registry and serves it for scraping.
package promexport

import (
	"fmt"
	"net/http"

	"github.com/ay01sec/labor-admin-sub000/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Backend records metrics events into Prometheus collectors.
type Backend struct {
	reg *prometheus.Registry

	imports    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	rows       *prometheus.CounterVec
	chunks     *prometheus.CounterVec
	validation *prometheus.CounterVec
}

// NewBackend builds the collectors and registers them with a new registry,
// along with the Go runtime and process collectors.
func NewBackend() (*Backend, error) {
	b := &Backend{
		reg: prometheus.NewRegistry(),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ImportTotal,
			Help: "Write phases finished, by entity and status.",
		}, []string{"entity", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.ImportDuration,
			Help:    "Duration of write phases in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"entity", "status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows written, by entity and kind (created, updated, failed).",
		}, []string{"entity", "kind"}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ChunksTotal,
			Help: "Chunk commits, by entity and status.",
		}, []string{"entity", "status"}),
		validation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ValidationTotal,
			Help: "Validated rows, by entity and kind (new, update, error).",
		}, []string{"entity", "kind"}),
	}

	for _, c := range []prometheus.Collector{
		b.imports, b.duration, b.rows, b.chunks, b.validation,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("promexport: register: %w", err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.ImportTotal:
		b.imports.WithLabelValues(labels["entity"], labels["status"]).Add(delta)
	case metrics.RowsTotal:
		b.rows.WithLabelValues(labels["entity"], labels["kind"]).Add(delta)
	case metrics.ChunksTotal:
		b.chunks.WithLabelValues(labels["entity"], labels["status"]).Add(delta)
	case metrics.ValidationTotal:
		b.validation.WithLabelValues(labels["entity"], labels["kind"]).Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.ImportDuration {
		return
	}
	b.duration.WithLabelValues(labels["entity"], labels["status"]).Observe(value)
}

// Handler serves the registry in the Prometheus exposition format.
func (b *Backend) Handler() http.Handler {
	return promhttp.HandlerFor(b.reg, promhttp.HandlerOpts{Registry: b.reg})
}

// Registry exposes the underlying registry.
func (b *Backend) Registry() *prometheus.Registry {
	return b.reg
}
