/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/suparena/userstore/errors"
)

// Status labels recorded for each operation.
const (
	StatusOK          = "ok"
	StatusNotFound    = "not_found"
	StatusConflict    = "conflict"
	StatusInvalid     = "invalid"
	StatusUnavailable = "unavailable"
	StatusError       = "error"
)

// Collector holds the Prometheus metrics of the data layer. Each collector
// owns its registry so several instances can coexist in one process.
type Collector struct {
	registry *prometheus.Registry

	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Fallbacks  *prometheus.CounterVec
	Migrated   *prometheus.CounterVec
}

// NewCollector creates a collector whose metric names carry namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	operations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of repository operations",
		},
		[]string{"operation", "status"},
	)

	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Repository operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	fallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_seed_fallbacks_total",
			Help:      "Reads answered from the seed dataset because the backend was unavailable",
		},
		[]string{"operation"},
	)

	migrated := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migration_records_total",
			Help:      "Records written by the migration job",
		},
		[]string{"phase"},
	)

	registry.MustRegister(operations, duration, fallbacks, migrated)

	return &Collector{
		registry:   registry,
		Operations: operations,
		Duration:   duration,
		Fallbacks:  fallbacks,
		Migrated:   migrated,
	}
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Snapshot flattens the collector's counters into name{label=value,...}
// entries. Short-lived runs log it on exit since nothing scrapes them.
func (c *Collector) Snapshot() (map[string]float64, error) {
	if c == nil {
		return nil, nil
	}
	families, err := c.registry.Gather()
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			out[mf.GetName()+"{"+strings.Join(labels, ",")+"}"] = m.GetCounter().GetValue()
		}
	}
	return out, nil
}

// Observe records one finished operation. A nil collector is a no-op.
func (c *Collector) Observe(operation string, start time.Time, err error) {
	if c == nil {
		return
	}
	c.Operations.WithLabelValues(operation, StatusOf(err)).Inc()
	c.Duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Fallback records a read served from the seed dataset.
func (c *Collector) Fallback(operation string) {
	if c == nil {
		return
	}
	c.Fallbacks.WithLabelValues(operation).Inc()
}

// Migrate records n records written during phase.
func (c *Collector) Migrate(phase string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.Migrated.WithLabelValues(phase).Add(float64(n))
}

// StatusOf maps err onto a status label.
func StatusOf(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.IsNotFound(err):
		return StatusNotFound
	case errors.IsConflict(err):
		return StatusConflict
	case errors.IsValidationError(err):
		return StatusInvalid
	case errors.IsUnavailable(err):
		return StatusUnavailable
	default:
		return StatusError
	}
}
