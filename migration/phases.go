/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package migration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	usererrors "github.com/suparena/userstore/errors"
	"github.com/suparena/userstore/keys"
	"github.com/suparena/userstore/records"
	"github.com/suparena/userstore/storagemodels"
	"go.uber.org/zap"
)

// legacyUser is a row of the legacy users table.
type legacyUser struct {
	ID        string `dynamodbav:"id"`
	Name      string `dynamodbav:"name"`
	Email     string `dynamodbav:"email"`
	Status    string `dynamodbav:"status"`
	CreatedAt string `dynamodbav:"createdAt"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

// legacyStats is a row of the legacy dashboard table.
type legacyStats struct {
	ID          string  `dynamodbav:"id"`
	TotalUsers  int64   `dynamodbav:"totalUsers"`
	ActiveUsers int64   `dynamodbav:"activeUsers"`
	TotalOrders int64   `dynamodbav:"totalOrders"`
	Revenue     float64 `dynamodbav:"revenue"`
	LastUpdated string  `dynamodbav:"lastUpdated"`
}

func (j *Job) migrateUsers(ctx context.Context, runAt time.Time) (int, error) {
	return j.scan(ctx, j.cfg.UsersTable, PhaseUsers, func(item storagemodels.Item) (bool, error) {
		var u legacyUser
		if err := attributevalue.UnmarshalMap(item, &u); err != nil {
			return false, fmt.Errorf("decode legacy user: %w", err)
		}

		p := j.normalizeUser(u)
		if p.CreatedAt.IsZero() && p.ID != "" {
			key, err := keys.Profile(p.ID)
			if err != nil {
				return false, fmt.Errorf("user %q: %w", u.ID, err)
			}
			stamp, err := j.priorTime(ctx, key, records.AttrCreatedAt, runAt)
			if err != nil {
				return false, fmt.Errorf("user %q: %w", u.ID, err)
			}
			p.CreatedAt, p.UpdatedAt = stamp, stamp
		}
		profile, err := records.Profile(p)
		if err != nil {
			return false, fmt.Errorf("user %q: %w", u.ID, err)
		}
		emailGuard, err := records.EmailGuard(p.Email, p.ID)
		if err != nil {
			return false, fmt.Errorf("user %q: %w", u.ID, err)
		}
		if err := j.put(ctx, profile, emailGuard); err != nil {
			return false, fmt.Errorf("write user %q: %w", u.ID, err)
		}
		return true, nil
	})
}

// normalizeUser fills in what legacy rows may lack. A missing status becomes
// ACTIVE and a missing timestamp borrows the other one. Both stay zero when
// the row has neither.
func (j *Job) normalizeUser(u legacyUser) storagemodels.UserProfile {
	status := storagemodels.UserStatus(strings.ToUpper(strings.TrimSpace(u.Status)))
	if status == "" {
		status = storagemodels.StatusActive
	}
	if !status.Valid() {
		j.logger.Warn("keeping unknown legacy status",
			zap.String("userId", u.ID),
			zap.String("status", u.Status))
	}

	created := records.ParseTimeOr(u.CreatedAt, time.Time{})
	updated := records.ParseTimeOr(u.UpdatedAt, time.Time{})
	switch {
	case created.IsZero():
		created = updated
	case updated.IsZero():
		updated = created
	}

	return storagemodels.UserProfile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Status:    status,
		CreatedAt: created,
		UpdatedAt: updated,
	}
}

func (j *Job) migrateGlobalStats(ctx context.Context, runAt time.Time) (bool, error) {
	item, err := j.source.GetByID(ctx, j.cfg.DashboardTable, LegacyStatsID)
	if err != nil {
		return false, fmt.Errorf("read %s/%s: %w", j.cfg.DashboardTable, LegacyStatsID, err)
	}

	var stats storagemodels.DashboardStats
	copied := item != nil
	if copied {
		if stats, err = decodeLegacyStats(item); err != nil {
			return false, err
		}
	} else {
		j.logger.Warn("no legacy global stats, writing zeroed row",
			zap.String("table", j.cfg.DashboardTable))
	}
	if stats.LastUpdated.IsZero() {
		if stats.LastUpdated, err = j.priorTime(ctx, keys.GlobalDashboard(), records.AttrLastUpdated, runAt); err != nil {
			return false, err
		}
	}

	row, err := records.Stats(keys.GlobalDashboard(), stats)
	if err != nil {
		return false, err
	}
	if err := j.put(ctx, row); err != nil {
		return false, fmt.Errorf("write global stats: %w", err)
	}
	if !j.cfg.DryRun {
		j.metrics.Migrate(PhaseGlobalStats, 1)
	}
	return copied, nil
}

func (j *Job) migrateUserStats(ctx context.Context, runAt time.Time) (int, error) {
	return j.scan(ctx, j.cfg.DashboardTable, PhaseUserStats, func(item storagemodels.Item) (bool, error) {
		var s legacyStats
		if err := attributevalue.UnmarshalMap(item, &s); err != nil {
			return false, fmt.Errorf("decode legacy stats: %w", err)
		}
		if s.ID == LegacyStatsID {
			return false, nil
		}

		key, err := keys.UserDashboard(s.ID)
		if err != nil {
			return false, err
		}
		stats, err := decodeLegacyStats(item)
		if err != nil {
			return false, err
		}
		if stats.LastUpdated.IsZero() {
			if stats.LastUpdated, err = j.priorTime(ctx, key, records.AttrLastUpdated, runAt); err != nil {
				return false, err
			}
		}
		row, err := records.Stats(key, stats)
		if err != nil {
			return false, err
		}
		if err := j.put(ctx, row); err != nil {
			return false, fmt.Errorf("write stats of user %q: %w", s.ID, err)
		}
		return true, nil
	})
}

// decodeLegacyStats keeps the legacy lastUpdated when it parses and leaves it
// zero otherwise.
func decodeLegacyStats(item storagemodels.Item) (storagemodels.DashboardStats, error) {
	var s legacyStats
	if err := attributevalue.UnmarshalMap(item, &s); err != nil {
		return storagemodels.DashboardStats{}, fmt.Errorf("decode legacy stats: %w", err)
	}
	if s.TotalUsers < 0 || s.ActiveUsers < 0 || s.TotalOrders < 0 {
		return storagemodels.DashboardStats{}, usererrors.NewValidationError("stats "+s.ID, "negative counter")
	}
	return storagemodels.DashboardStats{
		TotalUsers:  s.TotalUsers,
		ActiveUsers: s.ActiveUsers,
		TotalOrders: s.TotalOrders,
		Revenue:     s.Revenue,
		LastUpdated: records.ParseTimeOr(s.LastUpdated, time.Time{}),
	}, nil
}
