/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"time"
)

// UserStatus is the lifecycle state of a user profile.
type UserStatus string

const (
	StatusActive   UserStatus = "ACTIVE"
	StatusInactive UserStatus = "INACTIVE"
	StatusPending  UserStatus = "PENDING"
)

// Valid reports whether s is one of the known statuses.
func (s UserStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPending:
		return true
	}
	return false
}

// UserProfile is the logical user entity.
type UserProfile struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// DashboardStats holds the counters shown on a dashboard, either global or
// scoped to one user.
type DashboardStats struct {
	TotalUsers  int64     `json:"totalUsers"`
	ActiveUsers int64     `json:"activeUsers"`
	TotalOrders int64     `json:"totalOrders"`
	Revenue     float64   `json:"revenue"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// UsersWithDashboard is the combined users + global stats fetch.
type UsersWithDashboard struct {
	Users     []UserProfile  `json:"users"`
	Dashboard DashboardStats `json:"dashboard"`
}

// CreateUserRequest is the input of CreateUser.
type CreateUserRequest struct {
	Name  string `json:"name" validate:"required,max=256"`
	Email string `json:"email" validate:"required,email,max=320"`
}

// UpdateUserRequest is the input of UpdateUser. Nil fields are left untouched.
type UpdateUserRequest struct {
	Name   *string     `json:"name,omitempty" validate:"omitempty,min=1,max=256"`
	Email  *string     `json:"email,omitempty" validate:"omitempty,email,max=320"`
	Status *UserStatus `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE PENDING"`
}

// Empty reports whether the request carries no field changes.
func (r UpdateUserRequest) Empty() bool {
	return r.Name == nil && r.Email == nil && r.Status == nil
}
