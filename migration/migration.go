/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/suparena/userstore/keys"
	"github.com/suparena/userstore/logging"
	"github.com/suparena/userstore/metrics"
	"github.com/suparena/userstore/records"
	"github.com/suparena/userstore/storagemodels"
	"go.uber.org/zap"
)

// Phase names reported in logs and metrics.
const (
	PhaseUsers       = "users"
	PhaseGlobalStats = "global_stats"
	PhaseUserStats   = "user_stats"
)

// LegacyStatsID is the id of the global stats row in the legacy dashboard
// table. Every other row there holds the stats of the user with that id.
const LegacyStatsID = "stats"

// Source reads the legacy tables.
type Source interface {
	// ScanPage returns one page of table starting after cursor.
	ScanPage(ctx context.Context, table string, cursor storagemodels.Item) (storagemodels.Page, error)
	// GetByID returns the row of table with the given id, or nil.
	GetByID(ctx context.Context, table, id string) (storagemodels.Item, error)
}

// Writer receives the rewritten rows. Writes are unconditional so that a
// re-run overwrites what an earlier run left behind. Get lets a re-run keep
// the timestamps an earlier run stamped on rows whose legacy data has none.
type Writer interface {
	Get(ctx context.Context, key keys.Key) (storagemodels.Item, error)
	Put(ctx context.Context, item storagemodels.Item) error
}

// TableEnsurer makes sure the destination table exists and is ready,
// reporting whether it had to be created.
type TableEnsurer func(ctx context.Context) (bool, error)

// Config names the legacy tables.
type Config struct {
	UsersTable     string
	DashboardTable string
	// DryRun scans and counts without creating the table or writing rows.
	DryRun bool
}

// Report summarizes a finished run.
type Report struct {
	TableCreated bool
	Users        int
	// GlobalStatsCopied is false when no legacy stats row existed and a
	// zeroed one was written instead.
	GlobalStatsCopied bool
	UserStats         int
	DryRun            bool
	Duration          time.Duration
}

// Job rewrites the legacy users and dashboard tables into the single table.
// It never modifies the legacy tables and stops at the first error.
type Job struct {
	source  Source
	dest    Writer
	ensure  TableEnsurer
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// Option configures a Job.
type Option func(*Job)

// WithLogger sets the logger used for progress output.
func WithLogger(logger *zap.Logger) Option {
	return func(j *Job) {
		j.logger = logging.OrNop(logger)
	}
}

// WithMetrics counts migrated records per phase on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(j *Job) {
		j.metrics = c
	}
}

// WithClock replaces the clock that supplies timestamps missing from both the
// legacy row and the destination.
func WithClock(now func() time.Time) Option {
	return func(j *Job) {
		if now != nil {
			j.now = now
		}
	}
}

// WithTableEnsurer runs ensure before any row is written.
func WithTableEnsurer(ensure TableEnsurer) Option {
	return func(j *Job) {
		j.ensure = ensure
	}
}

// NewJob creates a migration from source into dest.
func NewJob(source Source, dest Writer, cfg Config, opts ...Option) *Job {
	j := &Job{
		source: source,
		dest:   dest,
		cfg:    cfg,
		logger: zap.NewNop(),
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run executes every phase in order.
func (j *Job) Run(ctx context.Context) (Report, error) {
	report := Report{DryRun: j.cfg.DryRun}
	if j.cfg.UsersTable == "" || j.cfg.DashboardTable == "" {
		return report, fmt.Errorf("migration: legacy table names are required")
	}

	start := time.Now()
	runAt := j.now()
	j.logger.Info("starting migration",
		zap.String("usersTable", j.cfg.UsersTable),
		zap.String("dashboardTable", j.cfg.DashboardTable),
		zap.Bool("dryRun", j.cfg.DryRun))

	if j.ensure != nil && !j.cfg.DryRun {
		created, err := j.ensure(ctx)
		if err != nil {
			return report, fmt.Errorf("migration: ensure table: %w", err)
		}
		report.TableCreated = created
	}

	var err error
	if report.Users, err = j.migrateUsers(ctx, runAt); err != nil {
		return report, fmt.Errorf("migration: %s: %w", PhaseUsers, err)
	}
	if report.GlobalStatsCopied, err = j.migrateGlobalStats(ctx, runAt); err != nil {
		return report, fmt.Errorf("migration: %s: %w", PhaseGlobalStats, err)
	}
	if report.UserStats, err = j.migrateUserStats(ctx, runAt); err != nil {
		return report, fmt.Errorf("migration: %s: %w", PhaseUserStats, err)
	}

	report.Duration = time.Since(start)
	j.logger.Info("migration completed",
		zap.Int("users", report.Users),
		zap.Bool("globalStatsCopied", report.GlobalStatsCopied),
		zap.Int("userStats", report.UserStats),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// scan visits every row of table page by page.
func (j *Job) scan(ctx context.Context, table, phase string, visit func(storagemodels.Item) (bool, error)) (int, error) {
	var cursor storagemodels.Item
	total, pages := 0, 0
	for {
		page, err := j.source.ScanPage(ctx, table, cursor)
		if err != nil {
			return total, fmt.Errorf("scan %s: %w", table, err)
		}

		n := 0
		for _, item := range page.Items {
			counted, err := visit(item)
			if err != nil {
				return total + n, err
			}
			if counted {
				n++
			}
		}
		total += n
		pages++
		if !j.cfg.DryRun {
			j.metrics.Migrate(phase, n)
		}
		j.logger.Info("page migrated",
			zap.String("phase", phase),
			zap.Int("page", pages),
			zap.Int("records", n),
			zap.Int("total", total))

		if page.Cursor == nil {
			return total, nil
		}
		cursor = page.Cursor
	}
}

// priorTime returns attr of the destination row at key, or runAt when the row
// or the attribute is absent.
func (j *Job) priorTime(ctx context.Context, key keys.Key, attr string, runAt time.Time) (time.Time, error) {
	item, err := j.dest.Get(ctx, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("read %s: %w", key, err)
	}
	av, ok := item[attr]
	if !ok {
		return runAt, nil
	}
	var s string
	if err := attributevalue.Unmarshal(av, &s); err != nil {
		return runAt, nil
	}
	return records.ParseTimeOr(s, runAt), nil
}

func (j *Job) put(ctx context.Context, rows ...storagemodels.Item) error {
	if j.cfg.DryRun {
		return nil
	}
	for _, row := range rows {
		if err := j.dest.Put(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
