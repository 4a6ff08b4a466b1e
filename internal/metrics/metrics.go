// Package metrics records import pipeline metrics through a pluggable
// backend. The default backend discards everything, so instrumented code is
// always safe to call; the service installs the Prometheus backend from
// promexport at startup.
package metrics

import (
	"sync"
	"time"
)

// Metric names.
const (
	ImportTotal     = "labor_import_total"
	ImportDuration  = "labor_import_duration_seconds"
	RowsTotal       = "labor_import_rows_total"
	ChunksTotal     = "labor_import_chunks_total"
	ValidationTotal = "labor_import_validation_rows_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend receives metric events.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. Passing nil restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// RecordImport counts a finished write phase and its duration.
// status is one of completed, cancelled, failed.
func RecordImport(entity, status string, d time.Duration) {
	lbls := Labels{"entity": entity, "status": status}
	b := current()
	b.IncCounter(ImportTotal, 1, lbls)
	b.ObserveHistogram(ImportDuration, d.Seconds(), lbls)
}

// RecordRows adds n rows of a kind (created, updated, failed).
func RecordRows(entity, kind string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(n), Labels{"entity": entity, "kind": kind})
}

// RecordValidation counts validated rows by outcome (new, update, error).
func RecordValidation(entity string, newRows, updates, errs int) {
	b := current()
	for kind, n := range map[string]int{"new": newRows, "update": updates, "error": errs} {
		if n > 0 {
			b.IncCounter(ValidationTotal, float64(n), Labels{"entity": entity, "kind": kind})
		}
	}
}

// RecordChunk counts one chunk commit.
func RecordChunk(entity string, err error) {
	status := "committed"
	if err != nil {
		status = "failed"
	}
	current().IncCounter(ChunksTotal, 1, Labels{"entity": entity, "status": status})
}
