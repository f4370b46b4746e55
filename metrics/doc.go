// Package metrics exposes Prometheus counters and histograms for repository
// operations, seed fallbacks and migration progress.
package metrics
