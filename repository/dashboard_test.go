/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/userstore/datastore/mock"
	usererrors "github.com/suparena/userstore/errors"
	"github.com/suparena/userstore/keys"
	"github.com/suparena/userstore/repository"
	"github.com/suparena/userstore/storagemodels"
)

func TestGetGlobalStatsInitializes(t *testing.T) {
	repo, store := newRepo(t)
	ctx := context.Background()

	stats, err := repo.GetGlobalStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalUsers)
	assert.Zero(t, stats.ActiveUsers)
	assert.Zero(t, stats.TotalOrders)
	assert.Zero(t, stats.Revenue)
	assert.False(t, stats.LastUpdated.IsZero())

	assert.Contains(t, store.GetData(), keys.GlobalDashboard(), "zeroed row is persisted")

	again, err := repo.GetGlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, *stats, *again, "second read returns the stored row")
}

func TestGetGlobalStatsFallback(t *testing.T) {
	ds := mustSeed(t)
	repo, store := newRepo(t, repository.WithSeedFallback(ds))
	store.WithReadError(unavailable())

	stats, err := repo.GetGlobalStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(2), stats.ActiveUsers)
	assert.Equal(t, int64(45), stats.TotalOrders)
	assert.Equal(t, 12500.50, stats.Revenue)
}

func TestGetUserStats(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.PutGlobalStats(ctx, storagemodels.DashboardStats{TotalUsers: 10, TotalOrders: 7})
	require.NoError(t, err)

	stats, err := repo.GetUserStats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.TotalUsers, "no per-user row falls back to global stats")

	_, err = repo.PutUserStats(ctx, "user-1", storagemodels.DashboardStats{TotalOrders: 2, Revenue: 19.99})
	require.NoError(t, err)

	stats, err = repo.GetUserStats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalOrders)
	assert.Equal(t, 19.99, stats.Revenue)
	assert.Zero(t, stats.TotalUsers)

	_, err = repo.GetUserStats(ctx, "")
	assert.True(t, usererrors.IsValidationError(err))
}

func TestPutStats(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	written, err := repo.PutGlobalStats(ctx, storagemodels.DashboardStats{TotalUsers: 5, ActiveUsers: 4, Revenue: 100})
	require.NoError(t, err)
	assert.True(t, written.LastUpdated.After(testNow), "lastUpdated is stamped on write")

	stats, err := repo.GetGlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, *written, *stats)

	tests := []struct {
		name  string
		key   keys.Key
		stats storagemodels.DashboardStats
	}{
		{"profile key", keys.Key{PK: "USER#1", SK: keys.SortProfile}, storagemodels.DashboardStats{}},
		{"negative counter", keys.GlobalDashboard(), storagemodels.DashboardStats{TotalUsers: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.PutStats(ctx, tt.key, tt.stats)
			assert.True(t, usererrors.IsValidationError(err))
		})
	}
}

func TestPutStatsFailure(t *testing.T) {
	repo, store := newRepo(t, repository.WithSeedFallback(mustSeed(t)))
	store.WithPutError(unavailable())

	_, err := repo.PutGlobalStats(context.Background(), storagemodels.DashboardStats{})
	assert.True(t, usererrors.IsWriteFailed(err), "writes never fall back")
}

func TestUserCountAdjustments(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.GetGlobalStats(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.IncrementUserCount(ctx))
	stats, err := repo.GetGlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.ActiveUsers)

	require.NoError(t, repo.DecrementUserCount(ctx))
	require.NoError(t, repo.DecrementUserCount(ctx))
	stats, err = repo.GetGlobalStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalUsers)
	assert.Zero(t, stats.ActiveUsers)
}

func TestDecrementFloorsEachCounter(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.PutGlobalStats(ctx, storagemodels.DashboardStats{TotalUsers: 2, ActiveUsers: 0, TotalOrders: 9})
	require.NoError(t, err)

	require.NoError(t, repo.DecrementUserCount(ctx))
	stats, err := repo.GetGlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalUsers)
	assert.Zero(t, stats.ActiveUsers)
	assert.Equal(t, int64(9), stats.TotalOrders, "other counters are untouched")
}

func TestIncrementWithoutStatsRow(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.IncrementUserCount(ctx))
	stats, err := repo.GetGlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalUsers)
	assert.Zero(t, stats.Revenue)
}

func TestConcurrentIncrements(t *testing.T) {
	repo := repository.New(mock.New())
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.IncrementUserCount(ctx))
		}()
	}
	wg.Wait()

	stats, err := repo.GetGlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), stats.TotalUsers, "no lost updates")
}

func TestUserCountFailure(t *testing.T) {
	repo, store := newRepo(t)
	store.WithUpdateError(errors.New("throttled"))

	assert.True(t, usererrors.IsWriteFailed(repo.IncrementUserCount(context.Background())))
	assert.True(t, usererrors.IsWriteFailed(repo.DecrementUserCount(context.Background())))
}

func TestAdaScenario(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	ada, err := repo.CreateUser(ctx, storagemodels.CreateUserRequest{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, ada.ID)
	assert.Equal(t, storagemodels.StatusActive, ada.Status)

	_, err = repo.CreateUser(ctx, storagemodels.CreateUserRequest{Name: "Ada", Email: "ada@example.com"})
	assert.True(t, usererrors.IsConflict(err))

	result, err := repo.UsersWithDashboard(ctx)
	require.NoError(t, err)
	require.Len(t, result.Users, 1)
	assert.Equal(t, "Ada", result.Users[0].Name)
	assert.Zero(t, result.Dashboard.TotalUsers)
	assert.Zero(t, result.Dashboard.ActiveUsers)
	assert.Zero(t, result.Dashboard.TotalOrders)
	assert.Zero(t, result.Dashboard.Revenue)
}
