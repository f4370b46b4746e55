/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package repository

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/suparena/userstore/datastore"
	"github.com/suparena/userstore/datastore/seed"
	usererrors "github.com/suparena/userstore/errors"
	"github.com/suparena/userstore/logging"
	"github.com/suparena/userstore/metrics"
	"go.uber.org/zap"
)

// Repository exposes user profiles and dashboard statistics stored in the
// single table behind a datastore.Store.
type Repository struct {
	store    datastore.Store
	logger   *zap.Logger
	metrics  *metrics.Collector
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
	fallback *seed.Dataset
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) {
		r.logger = logging.OrNop(logger)
	}
}

// WithMetrics records every operation on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Repository) {
		r.metrics = c
	}
}

// WithClock replaces the wall clock used to stamp rows.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator replaces the generator of new user ids.
func WithIDGenerator(gen func() string) Option {
	return func(r *Repository) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// WithSeedFallback serves reads from ds when the backend is unavailable.
// Writes never fall back.
func WithSeedFallback(ds *seed.Dataset) Option {
	return func(r *Repository) {
		r.fallback = ds
	}
}

// New creates a Repository on top of store.
func New(store datastore.Store, opts ...Option) *Repository {
	r := &Repository{
		store:    store,
		logger:   zap.NewNop(),
		validate: validator.New(),
		now:      systemClock,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// systemClock truncates to the millisecond precision rows are stored with.
func systemClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// observe records the outcome of op started at start.
func (r *Repository) observe(op string, start time.Time, err error) {
	r.metrics.Observe(op, start, err)
	if err != nil && !usererrors.IsNotFound(err) && !usererrors.IsConflict(err) && !usererrors.IsValidationError(err) {
		r.logger.Warn("repository operation failed", zap.String("operation", op), zap.Error(err))
	}
}

// degraded reports whether a failed read of op may be served from the seed
// dataset.
func (r *Repository) degraded(op string, err error) bool {
	if r.fallback == nil || !usererrors.IsUnavailable(err) {
		return false
	}
	r.logger.Warn("backend unavailable, serving seed data",
		zap.String("operation", op),
		zap.Error(err))
	r.metrics.Fallback(op)
	return true
}

// validationError flattens validator output into the first failing field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return usererrors.NewValidationError(fe.Field(), "failed on the '"+fe.Tag()+"' rule")
	}
	return usererrors.NewValidationError("request", err.Error())
}
