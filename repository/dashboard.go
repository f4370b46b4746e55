/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package repository

import (
	"context"
	"time"

	usererrors "github.com/suparena/userstore/errors"
	"github.com/suparena/userstore/keys"
	"github.com/suparena/userstore/records"
	"github.com/suparena/userstore/storagemodels"
	"go.uber.org/zap"
)

// userCounters are the attributes moved by user count adjustments.
var userCounters = []string{records.AttrTotalUsers, records.AttrActiveUsers}

// GetGlobalStats returns the global dashboard statistics, initializing a
// zeroed row on first access.
func (r *Repository) GetGlobalStats(ctx context.Context) (stats *storagemodels.DashboardStats, err error) {
	start := time.Now()
	defer func() { r.observe(opGetGlobalStats, start, err) }()

	stats, err = r.globalStats(ctx)
	if err != nil {
		if r.degraded(opGetGlobalStats, err) {
			d := r.fallback.Dashboard()
			return &d, nil
		}
		return nil, err
	}
	return stats, nil
}

func (r *Repository) globalStats(ctx context.Context) (*storagemodels.DashboardStats, error) {
	key := keys.GlobalDashboard()
	item, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if item != nil {
		return decodeStats(item)
	}

	zero := storagemodels.DashboardStats{LastUpdated: r.now()}
	row, err := records.Stats(key, zero)
	if err != nil {
		return nil, err
	}
	if err := r.store.Create(ctx, row); err != nil {
		if !usererrors.IsConditionFailed(err) {
			return nil, err
		}
		// Initialized concurrently; read the winner.
		item, err = r.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if item != nil {
			return decodeStats(item)
		}
	}

	r.logger.Info("initialized global dashboard stats")
	return &zero, nil
}

// GetUserStats returns the statistics scoped to userID. Users without their
// own row see the global statistics.
func (r *Repository) GetUserStats(ctx context.Context, userID string) (stats *storagemodels.DashboardStats, err error) {
	start := time.Now()
	defer func() { r.observe(opGetUserStats, start, err) }()

	key, err := keys.UserDashboard(userID)
	if err != nil {
		return nil, err
	}

	stats, err = r.userStats(ctx, key)
	if err != nil {
		if r.degraded(opGetUserStats, err) {
			d := r.fallback.Dashboard()
			return &d, nil
		}
		return nil, err
	}
	return stats, nil
}

func (r *Repository) userStats(ctx context.Context, key keys.Key) (*storagemodels.DashboardStats, error) {
	item, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return r.globalStats(ctx)
	}
	return decodeStats(item)
}

// PutStats overwrites the stats row at key, stamping lastUpdated with the
// current time. It returns the values written.
func (r *Repository) PutStats(ctx context.Context, key keys.Key, stats storagemodels.DashboardStats) (written *storagemodels.DashboardStats, err error) {
	start := time.Now()
	defer func() { r.observe(opPutStats, start, err) }()

	if key.SK != keys.SortStats && key.SK != keys.SortUserStats {
		return nil, usererrors.NewValidationError("key", key.String()+" is not a dashboard stats key")
	}
	if stats.TotalUsers < 0 || stats.ActiveUsers < 0 || stats.TotalOrders < 0 {
		return nil, usererrors.NewValidationError("stats", "counters must not be negative")
	}

	stats.LastUpdated = r.now()
	row, err := records.Stats(key, stats)
	if err != nil {
		return nil, err
	}
	if perr := r.store.Put(ctx, row); perr != nil {
		return nil, usererrors.NewWriteError(opPutStats, perr)
	}
	return &stats, nil
}

// PutGlobalStats overwrites the global stats row.
func (r *Repository) PutGlobalStats(ctx context.Context, stats storagemodels.DashboardStats) (*storagemodels.DashboardStats, error) {
	return r.PutStats(ctx, keys.GlobalDashboard(), stats)
}

// PutUserStats overwrites the stats row of userID.
func (r *Repository) PutUserStats(ctx context.Context, userID string, stats storagemodels.DashboardStats) (*storagemodels.DashboardStats, error) {
	key, err := keys.UserDashboard(userID)
	if err != nil {
		return nil, err
	}
	return r.PutStats(ctx, key, stats)
}

// IncrementUserCount adds one to totalUsers and activeUsers of the global
// stats row in a single atomic update.
func (r *Repository) IncrementUserCount(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { r.observe(opIncrementUserCount, start, err) }()

	deltas := make(map[string]int64, len(userCounters))
	for _, field := range userCounters {
		deltas[field] = 1
	}
	if aerr := r.store.Adjust(ctx, keys.GlobalDashboard(), storagemodels.Adjustment{
		Deltas: deltas,
		Set:    r.statsStamp(),
	}); aerr != nil {
		return usererrors.NewWriteError(opIncrementUserCount, aerr)
	}
	return nil
}

// DecrementUserCount subtracts one from totalUsers and activeUsers of the
// global stats row. Each counter is adjusted on its own and a counter
// already at zero stays there.
func (r *Repository) DecrementUserCount(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { r.observe(opDecrementUserCount, start, err) }()

	key := keys.GlobalDashboard()
	for _, field := range userCounters {
		aerr := r.store.Adjust(ctx, key, storagemodels.Adjustment{
			Deltas:      map[string]int64{field: -1},
			Set:         r.statsStamp(),
			FloorAtZero: true,
		})
		if aerr == nil {
			continue
		}
		if usererrors.IsConditionFailed(aerr) {
			r.logger.Debug("counter already at zero", zap.String("field", field))
			continue
		}
		return usererrors.NewWriteError(opDecrementUserCount, aerr)
	}
	return nil
}

// UsersWithDashboard fetches every user together with the global stats.
func (r *Repository) UsersWithDashboard(ctx context.Context) (result *storagemodels.UsersWithDashboard, err error) {
	start := time.Now()
	defer func() { r.observe(opUsersWithDashboard, start, err) }()

	users, err := r.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := r.GetGlobalStats(ctx)
	if err != nil {
		return nil, err
	}
	return &storagemodels.UsersWithDashboard{Users: users, Dashboard: *stats}, nil
}

// statsStamp is set alongside counter adjustments so that a row created by
// the adjustment is still a well-formed stats row.
func (r *Repository) statsStamp() map[string]any {
	return map[string]any{
		keys.AttrEntityType:     keys.EntityDashboardStats,
		records.AttrLastUpdated: records.FormatTime(r.now()),
	}
}

func decodeStats(item storagemodels.Item) (*storagemodels.DashboardStats, error) {
	s, err := records.DecodeStats(item)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
