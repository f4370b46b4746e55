/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/userstore/keys"
)

// Item is a raw row of the single table.
type Item = map[string]types.AttributeValue

// ScanParams defines one page of a full-table scan.
type ScanParams struct {
	// SortKey, when set, keeps only rows whose SK equals it.
	SortKey string
	// Cursor is the opaque continuation returned by the previous page.
	Cursor Item
	// Limit caps the rows examined per page. Zero means backend default.
	Limit int32
}

// Page is one page of scan results.
type Page struct {
	Items []Item
	// Cursor is nil on the last page.
	Cursor Item
}

// IndexQuery defines an equality lookup on the GSI1 partition key.
type IndexQuery struct {
	PartitionValue string
	Limit          int32
}

// Changes describes a partial update of an existing row.
type Changes struct {
	// Set maps attribute names to their new values.
	Set map[string]any
	// ClaimGuard, when non-nil, is a guard row written in the same atomic
	// operation under a key-absent condition.
	ClaimGuard Item
	// ReleaseGuard, when non-nil, is deleted in the same atomic operation.
	ReleaseGuard *GuardRelease
}

// GuardRelease names a guard row to delete. With Owner set the delete only
// applies while the row is absent or its owner attribute equals Owner;
// otherwise the whole operation fails with a condition failure.
type GuardRelease struct {
	Key   keys.Key
	Owner string
}

// Adjustment describes an atomic counter change.
type Adjustment struct {
	// Deltas are added to numeric attributes; missing attributes count as 0.
	Deltas map[string]int64
	// Set is applied alongside the deltas.
	Set map[string]any
	// FloorAtZero rejects the adjustment with a condition failure when any
	// negative delta would take its attribute below zero.
	FloorAtZero bool
}
