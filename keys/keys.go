/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package keys

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/userstore/errors"
)

// Attribute names of the single-table layout.
const (
	AttrPK         = "PK"
	AttrSK         = "SK"
	AttrGSI1PK     = "GSI1PK"
	AttrGSI1SK     = "GSI1SK"
	AttrEntityType = "EntityType"
	// AttrOwner holds the user id on profile and guard rows.
	AttrOwner = "userId"

	// IndexGSI1 is the email lookup index over (GSI1PK, GSI1SK).
	IndexGSI1 = "GSI1"
)

// Key prefixes and fixed sort keys.
const (
	PrefixUser      = "USER#"
	PrefixEmail     = "EMAIL#"
	PrefixDashboard = "DASHBOARD#"

	SortProfile    = "PROFILE"
	SortStats      = "STATS"
	SortUserStats  = "DASHBOARD#STATS"
	SortEmailGuard = "UNIQUE"

	GlobalDashboardPK = "DASHBOARD#GLOBAL"
)

// EntityType discriminators stamped on every row.
const (
	EntityUserProfile    = "UserProfile"
	EntityDashboardStats = "DashboardStats"
	EntityEmailGuard     = "EmailGuard"
)

// ErrEmptyIdentifier is returned for an empty id or email.
var ErrEmptyIdentifier = errors.NewValidationError("", "identifier must not be empty")

// Key is a primary key tuple.
type Key struct {
	PK string
	SK string
}

// IndexKey is a GSI1 key tuple.
type IndexKey struct {
	PK string
	SK string
}

func (k Key) String() string {
	return k.PK + "|" + k.SK
}

// AttributeValues returns the key as a DynamoDB key map.
func (k Key) AttributeValues() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: &types.AttributeValueMemberS{Value: k.PK},
		AttrSK: &types.AttributeValueMemberS{Value: k.SK},
	}
}

// FromAttributeValues reads PK and SK back out of an item or key map.
func FromAttributeValues(item map[string]types.AttributeValue) (Key, bool) {
	pk, okPK := item[AttrPK].(*types.AttributeValueMemberS)
	sk, okSK := item[AttrSK].(*types.AttributeValueMemberS)
	if !okPK || !okSK {
		return Key{}, false
	}
	return Key{PK: pk.Value, SK: sk.Value}, true
}

// Profile returns the primary key of a user profile row.
func Profile(id string) (Key, error) {
	if id == "" {
		return Key{}, fmt.Errorf("profile key: %w", ErrEmptyIdentifier)
	}
	return Key{PK: PrefixUser + id, SK: SortProfile}, nil
}

// ProfileID is the inverse of Profile: it strips the USER# prefix.
func ProfileID(pk string) (string, error) {
	id, ok := strings.CutPrefix(pk, PrefixUser)
	if !ok || id == "" {
		return "", errors.NewValidationError("PK", fmt.Sprintf("%q is not a user partition key", pk))
	}
	return id, nil
}

// EmailIndex returns the GSI1 key that maps an email to its user.
func EmailIndex(email, id string) (IndexKey, error) {
	if email == "" || id == "" {
		return IndexKey{}, fmt.Errorf("email index key: %w", ErrEmptyIdentifier)
	}
	return IndexKey{PK: EmailIndexPK(email), SK: PrefixUser + id}, nil
}

// EmailIndexPK returns only the GSI1 partition value for an email.
func EmailIndexPK(email string) string {
	return PrefixEmail + email
}

// EmailGuard returns the key of the row that reserves an email address.
// The index alone cannot reject duplicates, so uniqueness is enforced on
// this primary-key slot.
func EmailGuard(email string) (Key, error) {
	if email == "" {
		return Key{}, fmt.Errorf("email guard key: %w", ErrEmptyIdentifier)
	}
	return Key{PK: PrefixEmail + email, SK: SortEmailGuard}, nil
}

// UserDashboard returns the key of a per-user stats row.
func UserDashboard(id string) (Key, error) {
	if id == "" {
		return Key{}, fmt.Errorf("user dashboard key: %w", ErrEmptyIdentifier)
	}
	return Key{PK: PrefixUser + id, SK: SortUserStats}, nil
}

// GlobalDashboard returns the key of the singleton global stats row.
func GlobalDashboard() Key {
	return Key{PK: GlobalDashboardPK, SK: SortStats}
}
