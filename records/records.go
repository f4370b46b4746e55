/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package records

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/go-openapi/strfmt"
	"github.com/suparena/userstore/keys"
	"github.com/suparena/userstore/storagemodels"
)

// Attribute names of entity rows.
const (
	AttrUserID      = keys.AttrOwner
	AttrName        = "name"
	AttrEmail       = "email"
	AttrStatus      = "status"
	AttrCreatedAt   = "createdAt"
	AttrUpdatedAt   = "updatedAt"
	AttrTotalUsers  = "totalUsers"
	AttrActiveUsers = "activeUsers"
	AttrTotalOrders = "totalOrders"
	AttrRevenue     = "revenue"
	AttrLastUpdated = "lastUpdated"
)

type profileRow struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK"`
	GSI1SK     string `dynamodbav:"GSI1SK"`
	EntityType string `dynamodbav:"EntityType"`
	UserID     string `dynamodbav:"userId"`
	Name       string `dynamodbav:"name"`
	Email      string `dynamodbav:"email"`
	Status     string `dynamodbav:"status,omitempty"`
	CreatedAt  string `dynamodbav:"createdAt,omitempty"`
	UpdatedAt  string `dynamodbav:"updatedAt,omitempty"`
}

type guardRow struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	UserID     string `dynamodbav:"userId"`
}

type statsRow struct {
	PK          string  `dynamodbav:"PK"`
	SK          string  `dynamodbav:"SK"`
	EntityType  string  `dynamodbav:"EntityType"`
	TotalUsers  int64   `dynamodbav:"totalUsers"`
	ActiveUsers int64   `dynamodbav:"activeUsers"`
	TotalOrders int64   `dynamodbav:"totalOrders"`
	Revenue     float64 `dynamodbav:"revenue"`
	LastUpdated string  `dynamodbav:"lastUpdated,omitempty"`
}

// Profile encodes p as a profile row carrying the GSI1 email attributes.
func Profile(p storagemodels.UserProfile) (storagemodels.Item, error) {
	pk, err := keys.Profile(p.ID)
	if err != nil {
		return nil, err
	}
	idx, err := keys.EmailIndex(p.Email, p.ID)
	if err != nil {
		return nil, err
	}

	item, err := attributevalue.MarshalMap(profileRow{
		PK:         pk.PK,
		SK:         pk.SK,
		GSI1PK:     idx.PK,
		GSI1SK:     idx.SK,
		EntityType: keys.EntityUserProfile,
		UserID:     p.ID,
		Name:       p.Name,
		Email:      p.Email,
		Status:     string(p.Status),
		CreatedAt:  FormatTime(p.CreatedAt),
		UpdatedAt:  FormatTime(p.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile: %w", err)
	}
	return item, nil
}

// EmailGuard encodes the uniqueness slot that reserves email for userID.
func EmailGuard(email, userID string) (storagemodels.Item, error) {
	k, err := keys.EmailGuard(email)
	if err != nil {
		return nil, err
	}
	item, err := attributevalue.MarshalMap(guardRow{
		PK:         k.PK,
		SK:         k.SK,
		EntityType: keys.EntityEmailGuard,
		UserID:     userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email guard: %w", err)
	}
	return item, nil
}

// Stats encodes s as a dashboard row at key.
func Stats(key keys.Key, s storagemodels.DashboardStats) (storagemodels.Item, error) {
	item, err := attributevalue.MarshalMap(statsRow{
		PK:          key.PK,
		SK:          key.SK,
		EntityType:  keys.EntityDashboardStats,
		TotalUsers:  s.TotalUsers,
		ActiveUsers: s.ActiveUsers,
		TotalOrders: s.TotalOrders,
		Revenue:     s.Revenue,
		LastUpdated: FormatTime(s.LastUpdated),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dashboard stats: %w", err)
	}
	return item, nil
}

// DecodeProfile decodes a profile row. Absent status becomes ACTIVE and
// absent or unparsable timestamps become now. The id comes from userId, or
// from the partition key for rows written without it.
func DecodeProfile(item storagemodels.Item, now time.Time) (storagemodels.UserProfile, error) {
	var row profileRow
	if err := attributevalue.UnmarshalMap(item, &row); err != nil {
		return storagemodels.UserProfile{}, fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	id := row.UserID
	if id == "" {
		parsed, err := keys.ProfileID(row.PK)
		if err != nil {
			return storagemodels.UserProfile{}, err
		}
		id = parsed
	}

	p := storagemodels.UserProfile{
		ID:     id,
		Name:   row.Name,
		Email:  row.Email,
		Status: storagemodels.UserStatus(row.Status),
	}
	if p.Status == "" {
		p.Status = storagemodels.StatusActive
	}
	p.CreatedAt = ParseTimeOr(row.CreatedAt, now)
	p.UpdatedAt = ParseTimeOr(row.UpdatedAt, now)
	return p, nil
}

// GuardOwner returns the user id a guard row is reserved for.
func GuardOwner(item storagemodels.Item) (string, error) {
	var row guardRow
	if err := attributevalue.UnmarshalMap(item, &row); err != nil {
		return "", fmt.Errorf("failed to unmarshal email guard: %w", err)
	}
	return row.UserID, nil
}

// DecodeStats decodes a dashboard row; absent counters read as zero.
func DecodeStats(item storagemodels.Item) (storagemodels.DashboardStats, error) {
	var row statsRow
	if err := attributevalue.UnmarshalMap(item, &row); err != nil {
		return storagemodels.DashboardStats{}, fmt.Errorf("failed to unmarshal dashboard stats: %w", err)
	}
	return storagemodels.DashboardStats{
		TotalUsers:  row.TotalUsers,
		ActiveUsers: row.ActiveUsers,
		TotalOrders: row.TotalOrders,
		Revenue:     row.Revenue,
		LastUpdated: ParseTimeOr(row.LastUpdated, time.Time{}),
	}, nil
}

// FormatTime renders t as an RFC 3339 UTC timestamp with milliseconds, the
// format written by every service sharing the table. Zero renders empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strfmt.DateTime(t.UTC()).String()
}

// ParseTimeOr parses s leniently (RFC 3339 with or without fraction or zone
// offset) and returns fallback when s is empty or malformed.
func ParseTimeOr(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	dt, err := strfmt.ParseDateTime(s)
	if err != nil {
		return fallback
	}
	return time.Time(dt).UTC()
}
