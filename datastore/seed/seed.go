/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package seed

import (
	_ "embed"
	"fmt"

	"github.com/suparena/userstore/datastore/mock"
	"github.com/suparena/userstore/errors"
	"github.com/suparena/userstore/keys"
	"github.com/suparena/userstore/records"
	"github.com/suparena/userstore/storagemodels"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultData []byte

type seedUser struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Email     string `yaml:"email"`
	Status    string `yaml:"status"`
	CreatedAt string `yaml:"createdAt"`
	UpdatedAt string `yaml:"updatedAt"`
}

type seedStats struct {
	TotalUsers  int64   `yaml:"totalUsers"`
	ActiveUsers int64   `yaml:"activeUsers"`
	TotalOrders int64   `yaml:"totalOrders"`
	Revenue     float64 `yaml:"revenue"`
	LastUpdated string  `yaml:"lastUpdated"`
}

type seedFile struct {
	Users     []seedUser `yaml:"users"`
	Dashboard seedStats  `yaml:"dashboard"`
}

// Dataset is a fixed, read-only set of users and global statistics.
type Dataset struct {
	users     []storagemodels.UserProfile
	dashboard storagemodels.DashboardStats
}

// Default returns the embedded development dataset.
func Default() (*Dataset, error) {
	return Parse(defaultData)
}

// Parse decodes a dataset from YAML.
func Parse(data []byte) (*Dataset, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}

	ds := &Dataset{
		users: make([]storagemodels.UserProfile, 0, len(f.Users)),
		dashboard: storagemodels.DashboardStats{
			TotalUsers:  f.Dashboard.TotalUsers,
			ActiveUsers: f.Dashboard.ActiveUsers,
			TotalOrders: f.Dashboard.TotalOrders,
			Revenue:     f.Dashboard.Revenue,
		},
	}
	ds.dashboard.LastUpdated = records.ParseTimeOr(f.Dashboard.LastUpdated, ds.dashboard.LastUpdated)

	seen := make(map[string]bool, len(f.Users))
	for i, u := range f.Users {
		if u.ID == "" || u.Email == "" {
			return nil, errors.NewValidationError(fmt.Sprintf("users[%d]", i), "id and email are required")
		}
		if seen[u.ID] {
			return nil, errors.NewAlreadyExistsError(keys.EntityUserProfile, u.ID)
		}
		seen[u.ID] = true

		status := storagemodels.UserStatus(u.Status)
		if status == "" {
			status = storagemodels.StatusActive
		}
		if !status.Valid() {
			return nil, errors.NewValidationError(fmt.Sprintf("users[%d].status", i), "unknown status "+u.Status)
		}

		created := records.ParseTimeOr(u.CreatedAt, ds.dashboard.LastUpdated)
		ds.users = append(ds.users, storagemodels.UserProfile{
			ID:        u.ID,
			Name:      u.Name,
			Email:     u.Email,
			Status:    status,
			CreatedAt: created,
			UpdatedAt: records.ParseTimeOr(u.UpdatedAt, created),
		})
	}
	return ds, nil
}

// Users returns a copy of the seeded users.
func (d *Dataset) Users() []storagemodels.UserProfile {
	out := make([]storagemodels.UserProfile, len(d.users))
	copy(out, d.users)
	return out
}

// User returns the seeded user with id.
func (d *Dataset) User(id string) (storagemodels.UserProfile, bool) {
	for _, u := range d.users {
		if u.ID == id {
			return u, true
		}
	}
	return storagemodels.UserProfile{}, false
}

// UserByEmail returns the seeded user with email.
func (d *Dataset) UserByEmail(email string) (storagemodels.UserProfile, bool) {
	for _, u := range d.users {
		if u.Email == email {
			return u, true
		}
	}
	return storagemodels.UserProfile{}, false
}

// Dashboard returns the seeded global statistics.
func (d *Dataset) Dashboard() storagemodels.DashboardStats {
	return d.dashboard
}

// Items encodes the dataset as table rows: a profile and an email guard per
// user, plus the global dashboard row.
func (d *Dataset) Items() ([]storagemodels.Item, error) {
	items := make([]storagemodels.Item, 0, 2*len(d.users)+1)
	for _, u := range d.users {
		profile, err := records.Profile(u)
		if err != nil {
			return nil, err
		}
		emailGuard, err := records.EmailGuard(u.Email, u.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, profile, emailGuard)
	}

	stats, err := records.Stats(keys.GlobalDashboard(), d.dashboard)
	if err != nil {
		return nil, err
	}
	return append(items, stats), nil
}

// NewStore returns an in-memory store preloaded with the default dataset.
func NewStore() (*mock.Store, error) {
	ds, err := Default()
	if err != nil {
		return nil, err
	}
	items, err := ds.Items()
	if err != nil {
		return nil, err
	}

	store := mock.New()
	if err := store.SetData(items); err != nil {
		return nil, fmt.Errorf("failed to load seed data: %w", err)
	}
	return store, nil
}
