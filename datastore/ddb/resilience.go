/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"github.com/suparena/userstore/guard"
	"github.com/suparena/userstore/storagemodels"
	"go.uber.org/zap"
)

// executor runs backend calls under a per-call deadline, the shared circuit
// breaker and, for idempotent calls, bounded exponential retry.
type executor struct {
	opts    storagemodels.StoreOptions
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func newExecutor(opts storagemodels.StoreOptions, logger *zap.Logger) *executor {
	minCalls := opts.BreakerMinCalls
	ratio := opts.BreakerRatio

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.BreakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.BreakerOpenDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minCalls {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Rejected predicates and bad requests say nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || !guard.IsTransient(err)
		},
	})

	return &executor{opts: opts, breaker: breaker, logger: logger}
}

// run executes fn and classifies its failure under op. Non-idempotent calls
// get exactly one attempt.
func run[T any](ctx context.Context, e *executor, op string, idempotent bool, fn func(context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		res, err := e.breaker.Execute(func() (interface{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, e.opts.OpTimeout)
			defer cancel()
			return fn(callCtx)
		})
		if err != nil {
			var zero T
			if !idempotent || !retryable(err) {
				return zero, backoff.Permanent(err)
			}
			return zero, err
		}
		return res.(T), nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.opts.RetryBackoff
	policy.MaxInterval = e.opts.MaxRetryBackoff

	tries := e.opts.MaxRetries
	if tries == 0 {
		tries = 1
	}

	res, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, next time.Duration) {
			e.logger.Debug("retrying DynamoDB call",
				zap.String("operation", op),
				zap.Error(err),
				zap.Duration("backoff", next))
		}),
	)
	if err != nil {
		// the final attempt comes back still marked permanent
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		var zero T
		return zero, guard.Classify(op, err)
	}
	return res, nil
}

// An open breaker fails fast instead of burning the retry budget.
func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	return guard.IsTransient(err)
}
