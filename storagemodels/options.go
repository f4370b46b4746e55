/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import "time"

// StoreOptions configures deadlines, retries and the circuit breaker of a
// remote store.
type StoreOptions struct {
	IndexName        string        // GSI used for email lookups (default: GSI1)
	OpTimeout        time.Duration // Deadline per backend call (default: 5s)
	MaxRetries       uint          // Attempts for transient errors (default: 3)
	RetryBackoff     time.Duration // Initial backoff (default: 100ms)
	MaxRetryBackoff  time.Duration // Backoff cap (default: 2s)
	BreakerName      string        // Circuit breaker name (default: dynamodb)
	BreakerMinCalls  uint32        // Calls before the failure ratio is evaluated (default: 10)
	BreakerRatio     float64       // Failure ratio that opens the breaker (default: 0.6)
	BreakerOpenDelay time.Duration // Time spent open before probing (default: 30s)
}

// StoreOption is a functional option for configuring a store
type StoreOption func(*StoreOptions)

// DefaultStoreOptions returns default store options
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		IndexName:        "GSI1",
		OpTimeout:        5 * time.Second,
		MaxRetries:       3,
		RetryBackoff:     100 * time.Millisecond,
		MaxRetryBackoff:  2 * time.Second,
		BreakerName:      "dynamodb",
		BreakerMinCalls:  10,
		BreakerRatio:     0.6,
		BreakerOpenDelay: 30 * time.Second,
	}
}

// WithIndexName sets the email lookup index name
func WithIndexName(name string) StoreOption {
	return func(opts *StoreOptions) {
		opts.IndexName = name
	}
}

// WithOpTimeout sets the per-call deadline
func WithOpTimeout(d time.Duration) StoreOption {
	return func(opts *StoreOptions) {
		opts.OpTimeout = d
	}
}

// WithMaxRetries sets the maximum attempts for transient errors
func WithMaxRetries(retries uint) StoreOption {
	return func(opts *StoreOptions) {
		opts.MaxRetries = retries
	}
}

// WithRetryBackoff sets the initial and maximum retry backoff
func WithRetryBackoff(initial, max time.Duration) StoreOption {
	return func(opts *StoreOptions) {
		opts.RetryBackoff = initial
		opts.MaxRetryBackoff = max
	}
}

// WithBreaker configures the circuit breaker
func WithBreaker(name string, minCalls uint32, ratio float64, openDelay time.Duration) StoreOption {
	return func(opts *StoreOptions) {
		opts.BreakerName = name
		opts.BreakerMinCalls = minCalls
		opts.BreakerRatio = ratio
		opts.BreakerOpenDelay = openDelay
	}
}
