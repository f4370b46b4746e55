/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides an in-memory implementation of datastore.Store for
// tests and local development
package mock

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/userstore/errors"
	"github.com/suparena/userstore/keys"
	"github.com/suparena/userstore/storagemodels"
)

// Store is an in-memory datastore.Store. It honours the same conditional
// semantics as the DynamoDB store so repository behaviour can be tested
// without a backend.
type Store struct {
	mu          sync.RWMutex
	data        map[keys.Key]storagemodels.Item
	readError   error
	putError    error
	deleteError error
	updateError error
}

// New creates a new empty Store
func New() *Store {
	return &Store{
		data: make(map[keys.Key]storagemodels.Item),
	}
}

// WithReadError makes Get, Scan and QueryIndex return an error
func (m *Store) WithReadError(err error) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readError = err
	return m
}

// WithPutError makes Put and Create operations return an error
func (m *Store) WithPutError(err error) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putError = err
	return m
}

// WithDeleteError makes Delete operations return an error
func (m *Store) WithDeleteError(err error) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteError = err
	return m
}

// WithUpdateError makes Update and Adjust operations return an error
func (m *Store) WithUpdateError(err error) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateError = err
	return m
}

// Get retrieves a row by key, or nil when absent
func (m *Store) Get(ctx context.Context, key keys.Key) (storagemodels.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.readError != nil {
		return nil, m.readError
	}
	item, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return copyItem(item), nil
}

// Put stores a row unconditionally
func (m *Store) Put(ctx context.Context, item storagemodels.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.putError != nil {
		return m.putError
	}
	key, ok := keys.FromAttributeValues(item)
	if !ok {
		return errors.NewValidationError("key", "item has no PK/SK")
	}
	m.data[key] = copyItem(item)
	return nil
}

// Create stores item and guards only if none of their keys exist
func (m *Store) Create(ctx context.Context, item storagemodels.Item, guards ...storagemodels.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.putError != nil {
		return m.putError
	}

	rows := append([]storagemodels.Item{item}, guards...)
	pending := make(map[keys.Key]storagemodels.Item, len(rows))
	for _, row := range rows {
		key, ok := keys.FromAttributeValues(row)
		if !ok {
			return errors.NewValidationError("key", "item has no PK/SK")
		}
		if _, exists := m.data[key]; exists {
			return errors.NewConditionFailedError("create", "attribute_not_exists(PK) on "+key.String())
		}
		if _, dup := pending[key]; dup {
			return errors.NewConditionFailedError("create", "duplicate key "+key.String())
		}
		pending[key] = row
	}

	for key, row := range pending {
		m.data[key] = copyItem(row)
	}
	return nil
}

// Update applies changes to an existing row
func (m *Store) Update(ctx context.Context, key keys.Key, changes storagemodels.Changes) (storagemodels.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateError != nil {
		return nil, m.updateError
	}
	if len(changes.Set) == 0 {
		return nil, errors.NewValidationError("changes", "no updates provided")
	}

	current, ok := m.data[key]
	if !ok {
		return nil, errors.NewNotFoundError("row", key.String())
	}

	var claimKey keys.Key
	if changes.ClaimGuard != nil {
		claimKey, ok = keys.FromAttributeValues(changes.ClaimGuard)
		if !ok {
			return nil, errors.NewValidationError("guard", "guard item has no PK/SK")
		}
		if _, exists := m.data[claimKey]; exists {
			return nil, errors.NewConditionFailedError("update", "attribute_not_exists(PK) on "+claimKey.String())
		}
	}
	if changes.ReleaseGuard != nil {
		if err := m.checkOwner("update", *changes.ReleaseGuard); err != nil {
			return nil, err
		}
	}

	updated := copyItem(current)
	for name, value := range changes.Set {
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", name, err)
		}
		updated[name] = av
	}

	m.data[key] = updated
	if changes.ReleaseGuard != nil {
		delete(m.data, changes.ReleaseGuard.Key)
	}
	if changes.ClaimGuard != nil {
		m.data[claimKey] = copyItem(changes.ClaimGuard)
	}
	return copyItem(updated), nil
}

// Adjust applies counter deltas atomically
func (m *Store) Adjust(ctx context.Context, key keys.Key, adj storagemodels.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateError != nil {
		return m.updateError
	}

	item, ok := m.data[key]
	if !ok {
		item = key.AttributeValues()
	} else {
		item = copyItem(item)
	}

	next := make(map[string]int64, len(adj.Deltas))
	for name, delta := range adj.Deltas {
		cur, err := numberOf(item[name])
		if err != nil {
			return fmt.Errorf("attribute %s: %w", name, err)
		}
		if adj.FloorAtZero && delta < 0 && cur+delta < 0 {
			return errors.NewConditionFailedError("adjust", fmt.Sprintf("%s >= %d", name, -delta))
		}
		next[name] = cur + delta
	}

	for name, v := range next {
		item[name] = &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
	}
	for name, value := range adj.Set {
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", name, err)
		}
		item[name] = av
	}
	m.data[key] = item
	return nil
}

// Delete removes the row and releases the guards; missing rows are ignored
func (m *Store) Delete(ctx context.Context, key keys.Key, releases ...storagemodels.GuardRelease) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteError != nil {
		return m.deleteError
	}
	for _, rel := range releases {
		if err := m.checkOwner("delete", rel); err != nil {
			return err
		}
	}
	delete(m.data, key)
	for _, rel := range releases {
		delete(m.data, rel.Key)
	}
	return nil
}

// checkOwner mirrors the owner condition of a guard release.
func (m *Store) checkOwner(op string, rel storagemodels.GuardRelease) error {
	if rel.Owner == "" {
		return nil
	}
	row, exists := m.data[rel.Key]
	if !exists {
		return nil
	}
	if owner, ok := row[keys.AttrOwner].(*types.AttributeValueMemberS); ok && owner.Value == rel.Owner {
		return nil
	}
	return errors.NewConditionFailedError(op, fmt.Sprintf("%s = %s on %s", keys.AttrOwner, rel.Owner, rel.Key))
}

// Scan returns one page of rows ordered by key
func (m *Store) Scan(ctx context.Context, params storagemodels.ScanParams) (storagemodels.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.readError != nil {
		return storagemodels.Page{}, m.readError
	}

	ordered := m.sortedKeys()
	start := 0
	if params.Cursor != nil {
		after, ok := keys.FromAttributeValues(params.Cursor)
		if !ok {
			return storagemodels.Page{}, errors.NewValidationError("cursor", "cursor has no PK/SK")
		}
		start = sort.Search(len(ordered), func(i int) bool {
			return keyLess(after, ordered[i])
		})
	}

	var page storagemodels.Page
	examined := 0
	for i := start; i < len(ordered); i++ {
		if params.Limit > 0 && examined == int(params.Limit) {
			page.Cursor = ordered[i-1].AttributeValues()
			break
		}
		examined++
		k := ordered[i]
		if params.SortKey != "" && k.SK != params.SortKey {
			continue
		}
		page.Items = append(page.Items, copyItem(m.data[k]))
	}
	return page, nil
}

// QueryIndex returns rows whose GSI1PK equals the partition value
func (m *Store) QueryIndex(ctx context.Context, query storagemodels.IndexQuery) ([]storagemodels.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.readError != nil {
		return nil, m.readError
	}

	var out []storagemodels.Item
	for _, k := range m.sortedKeys() {
		item := m.data[k]
		pk, ok := item[keys.AttrGSI1PK].(*types.AttributeValueMemberS)
		if !ok || pk.Value != query.PartitionValue {
			continue
		}
		out = append(out, copyItem(item))
		if query.Limit > 0 && len(out) == int(query.Limit) {
			break
		}
	}
	return out, nil
}

// Helper methods for testing

// SetData replaces the stored rows (for testing)
func (m *Store) SetData(items []storagemodels.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := make(map[keys.Key]storagemodels.Item, len(items))
	for _, item := range items {
		key, ok := keys.FromAttributeValues(item)
		if !ok {
			return errors.NewValidationError("key", "item has no PK/SK")
		}
		data[key] = copyItem(item)
	}
	m.data = data
	return nil
}

// GetData returns a copy of the stored rows (for testing)
func (m *Store) GetData() map[keys.Key]storagemodels.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[keys.Key]storagemodels.Item, len(m.data))
	for k, v := range m.data {
		result[k] = copyItem(v)
	}
	return result
}

// Count returns the number of stored rows
func (m *Store) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Clear removes all data
func (m *Store) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[keys.Key]storagemodels.Item)
}

func (m *Store) sortedKeys() []keys.Key {
	out := make([]keys.Key, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return keyLess(out[i], out[j]) })
	return out
}

func keyLess(a, b keys.Key) bool {
	if a.PK != b.PK {
		return a.PK < b.PK
	}
	return a.SK < b.SK
}

func numberOf(av types.AttributeValue) (int64, error) {
	if av == nil {
		return 0, nil
	}
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("not a number")
	}
	return strconv.ParseInt(n.Value, 10, 64)
}

func copyItem(item storagemodels.Item) storagemodels.Item {
	out := make(storagemodels.Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
