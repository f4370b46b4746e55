/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"

	"github.com/suparena/userstore/keys"
	"github.com/suparena/userstore/storagemodels"
)

// Store is the single-table backend the repository talks to.
//
// Implementations classify failures with the userstore errors package:
// condition failures as ConditionFailedError, missing rows on Update as
// NotFoundError, and connectivity problems as UnavailableError.
type Store interface {
	// Get returns the row at key, or nil when absent.
	Get(ctx context.Context, key keys.Key) (storagemodels.Item, error)

	// Put writes item unconditionally (last write wins).
	Put(ctx context.Context, item storagemodels.Item) error

	// Create writes item and all guards atomically, failing unless none of
	// their keys exist.
	Create(ctx context.Context, item storagemodels.Item, guards ...storagemodels.Item) error

	// Update applies changes to an existing row and returns the row after
	// the update.
	Update(ctx context.Context, key keys.Key, changes storagemodels.Changes) (storagemodels.Item, error)

	// Adjust applies an atomic counter adjustment, creating the row if needed.
	Adjust(ctx context.Context, key keys.Key, adj storagemodels.Adjustment) error

	// Delete removes the row at key and releases the guards atomically.
	// Missing rows are not an error; a guard held by another owner fails the
	// whole delete with a condition failure.
	Delete(ctx context.Context, key keys.Key, releases ...storagemodels.GuardRelease) error

	// Scan returns one page of a full-table scan.
	Scan(ctx context.Context, params storagemodels.ScanParams) (storagemodels.Page, error)

	// QueryIndex looks rows up by GSI1 partition value.
	QueryIndex(ctx context.Context, query storagemodels.IndexQuery) ([]storagemodels.Item, error)
}
