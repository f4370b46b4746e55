/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/userstore/datastore"
	usererrors "github.com/suparena/userstore/errors"
	"github.com/suparena/userstore/guard"
	"github.com/suparena/userstore/keys"
	"github.com/suparena/userstore/storagemodels"
	"go.uber.org/zap"
)

// Store implements datastore.Store on a single DynamoDB table.
type Store struct {
	client    Client
	tableName string
	opts      storagemodels.StoreOptions
	exec      *executor
	logger    *zap.Logger
}

var _ datastore.Store = (*Store)(nil)

// NewStore constructs a Store for tableName. The client is shared and owned
// by the caller.
func NewStore(client Client, tableName string, logger *zap.Logger, opts ...storagemodels.StoreOption) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	options := storagemodels.DefaultStoreOptions()
	for _, opt := range opts {
		opt(&options)
	}
	logger = logger.With(zap.String("table", tableName))

	return &Store{
		client:    client,
		tableName: tableName,
		opts:      options,
		exec:      newExecutor(options, logger),
		logger:    logger,
	}
}

// TableName returns the backing table name.
func (d *Store) TableName() string {
	return d.tableName
}

// Get retrieves the row at key, or nil when it does not exist.
func (d *Store) Get(ctx context.Context, key keys.Key) (storagemodels.Item, error) {
	return run(ctx, d.exec, "GetItem", true, func(ctx context.Context) (storagemodels.Item, error) {
		out, err := d.client.GetItem(ctx, &sdk.GetItemInput{
			TableName: &d.tableName,
			Key:       key.AttributeValues(),
		})
		if err != nil {
			return nil, err
		}
		if len(out.Item) == 0 {
			return nil, nil
		}
		return out.Item, nil
	})
}

// Put writes item unconditionally.
func (d *Store) Put(ctx context.Context, item storagemodels.Item) error {
	if _, ok := keys.FromAttributeValues(item); !ok {
		return usererrors.NewValidationError("key", "item has no PK/SK")
	}
	_, err := run(ctx, d.exec, "PutItem", true, func(ctx context.Context) (*sdk.PutItemOutput, error) {
		return d.client.PutItem(ctx, &sdk.PutItemInput{
			TableName: &d.tableName,
			Item:      item,
		})
	})
	return err
}

// Create writes item and guards in one transaction, each conditioned on its
// key being absent. A create is never retried: a lost acknowledgement would
// otherwise turn into a spurious conflict.
func (d *Store) Create(ctx context.Context, item storagemodels.Item, guards ...storagemodels.Item) error {
	cond, err := guard.Condition(guard.KeyAbsent())
	if err != nil {
		return err
	}

	rows := append([]storagemodels.Item{item}, guards...)
	for _, row := range rows {
		if _, ok := keys.FromAttributeValues(row); !ok {
			return usererrors.NewValidationError("key", "item has no PK/SK")
		}
	}

	if len(rows) == 1 {
		_, err = run(ctx, d.exec, "PutItem", false, func(ctx context.Context) (*sdk.PutItemOutput, error) {
			return d.client.PutItem(ctx, &sdk.PutItemInput{
				TableName:                 &d.tableName,
				Item:                      item,
				ConditionExpression:       cond.Condition(),
				ExpressionAttributeNames:  cond.Names(),
				ExpressionAttributeValues: cond.Values(),
			})
		})
		return err
	}

	writes := make([]types.TransactWriteItem, 0, len(rows))
	for _, row := range rows {
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{
				TableName:                 &d.tableName,
				Item:                      row,
				ConditionExpression:       cond.Condition(),
				ExpressionAttributeNames:  cond.Names(),
				ExpressionAttributeValues: cond.Values(),
			},
		})
	}

	_, err = run(ctx, d.exec, "TransactWriteItems", false, func(ctx context.Context) (*sdk.TransactWriteItemsOutput, error) {
		return d.client.TransactWriteItems(ctx, &sdk.TransactWriteItemsInput{TransactItems: writes})
	})
	return err
}

// Update applies changes to the existing row at key and returns the row as
// stored afterwards. A missing row yields a NotFoundError. When changes move
// a guard the row update, the guard claim and the guard release commit
// together; a claimed guard that already exists yields a ConditionFailedError.
func (d *Store) Update(ctx context.Context, key keys.Key, changes storagemodels.Changes) (storagemodels.Item, error) {
	if len(changes.Set) == 0 {
		return nil, usererrors.NewValidationError("changes", "no updates provided")
	}

	expr, err := expression.NewBuilder().
		WithUpdate(setClauses(expression.UpdateBuilder{}, changes.Set)).
		WithCondition(guard.KeyPresent()).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build update expression: %w", err)
	}

	if changes.ClaimGuard == nil && changes.ReleaseGuard == nil {
		return run(ctx, d.exec, "UpdateItem", true, func(ctx context.Context) (storagemodels.Item, error) {
			out, err := d.client.UpdateItem(ctx, &sdk.UpdateItemInput{
				TableName:                 &d.tableName,
				Key:                       key.AttributeValues(),
				UpdateExpression:          expr.Update(),
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
				ReturnValues:              types.ReturnValueAllNew,
			})
			if err != nil {
				if guard.IsConditionFailure(err) {
					return nil, usererrors.NewNotFoundError("row", key.String())
				}
				return nil, err
			}
			return out.Attributes, nil
		})
	}

	writes := []types.TransactWriteItem{{
		Update: &types.Update{
			TableName:                 &d.tableName,
			Key:                       key.AttributeValues(),
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		},
	}}
	if changes.ClaimGuard != nil {
		claim, err := guard.Condition(guard.KeyAbsent())
		if err != nil {
			return nil, err
		}
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{
				TableName:                 &d.tableName,
				Item:                      changes.ClaimGuard,
				ConditionExpression:       claim.Condition(),
				ExpressionAttributeNames:  claim.Names(),
				ExpressionAttributeValues: claim.Values(),
			},
		})
	}
	if changes.ReleaseGuard != nil {
		release, err := d.releaseItem(*changes.ReleaseGuard)
		if err != nil {
			return nil, err
		}
		writes = append(writes, release)
	}

	_, err = run(ctx, d.exec, "TransactWriteItems", false, func(ctx context.Context) (*sdk.TransactWriteItemsOutput, error) {
		out, err := d.client.TransactWriteItems(ctx, &sdk.TransactWriteItemsInput{TransactItems: writes})
		if err != nil && failedItem(err) == 0 {
			return nil, usererrors.NewNotFoundError("row", key.String())
		}
		return out, err
	})
	if err != nil {
		return nil, err
	}

	item, err := d.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, usererrors.NewNotFoundError("row", key.String())
	}
	return item, nil
}

// Adjust adds the deltas with a single UpdateItem ADD, creating the row when
// missing. With FloorAtZero every negative delta carries a >= predicate so
// the counter never drops below zero.
func (d *Store) Adjust(ctx context.Context, key keys.Key, adj storagemodels.Adjustment) error {
	if len(adj.Deltas) == 0 && len(adj.Set) == 0 {
		return usererrors.NewValidationError("adjustment", "no deltas provided")
	}

	var update expression.UpdateBuilder
	var floors []expression.ConditionBuilder
	for _, name := range sortedNames(adj.Deltas) {
		delta := adj.Deltas[name]
		update = update.Add(expression.Name(name), expression.Value(delta))
		if adj.FloorAtZero && delta < 0 {
			floors = append(floors, guard.AtLeast(name, -delta))
		}
	}
	update = setClauses(update, adj.Set)

	builder := expression.NewBuilder().WithUpdate(update)
	switch len(floors) {
	case 0:
	case 1:
		builder = builder.WithCondition(floors[0])
	default:
		builder = builder.WithCondition(expression.And(floors[0], floors[1], floors[2:]...))
	}
	expr, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build adjust expression: %w", err)
	}

	// ADD is not idempotent, so a lost response must not be replayed.
	_, err = run(ctx, d.exec, "UpdateItem", false, func(ctx context.Context) (*sdk.UpdateItemOutput, error) {
		return d.client.UpdateItem(ctx, &sdk.UpdateItemInput{
			TableName:                 &d.tableName,
			Key:                       key.AttributeValues(),
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
	})
	return err
}

// Delete removes the row at key. Guard releases join it in one transaction,
// each conditioned on its owner when one is named.
func (d *Store) Delete(ctx context.Context, key keys.Key, releases ...storagemodels.GuardRelease) error {
	if len(releases) == 0 {
		_, err := run(ctx, d.exec, "DeleteItem", true, func(ctx context.Context) (*sdk.DeleteItemOutput, error) {
			return d.client.DeleteItem(ctx, &sdk.DeleteItemInput{
				TableName: &d.tableName,
				Key:       key.AttributeValues(),
			})
		})
		return err
	}

	writes := make([]types.TransactWriteItem, 0, len(releases)+1)
	writes = append(writes, types.TransactWriteItem{
		Delete: &types.Delete{TableName: &d.tableName, Key: key.AttributeValues()},
	})
	for _, rel := range releases {
		item, err := d.releaseItem(rel)
		if err != nil {
			return err
		}
		writes = append(writes, item)
	}
	_, err := run(ctx, d.exec, "TransactWriteItems", true, func(ctx context.Context) (*sdk.TransactWriteItemsOutput, error) {
		return d.client.TransactWriteItems(ctx, &sdk.TransactWriteItemsInput{TransactItems: writes})
	})
	return err
}

func (d *Store) releaseItem(rel storagemodels.GuardRelease) (types.TransactWriteItem, error) {
	del := &types.Delete{TableName: &d.tableName, Key: rel.Key.AttributeValues()}
	if rel.Owner != "" {
		cond, err := guard.Condition(guard.OwnedBy(rel.Owner))
		if err != nil {
			return types.TransactWriteItem{}, err
		}
		del.ConditionExpression = cond.Condition()
		del.ExpressionAttributeNames = cond.Names()
		del.ExpressionAttributeValues = cond.Values()
	}
	return types.TransactWriteItem{Delete: del}, nil
}

// Scan returns one page of the table, optionally filtered on the sort key.
func (d *Store) Scan(ctx context.Context, params storagemodels.ScanParams) (storagemodels.Page, error) {
	input := &sdk.ScanInput{
		TableName:         &d.tableName,
		ExclusiveStartKey: params.Cursor,
	}
	if params.Limit > 0 {
		input.Limit = aws.Int32(params.Limit)
	}
	if params.SortKey != "" {
		expr, err := expression.NewBuilder().
			WithFilter(expression.Name(keys.AttrSK).Equal(expression.Value(params.SortKey))).
			Build()
		if err != nil {
			return storagemodels.Page{}, fmt.Errorf("failed to build scan filter: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	return run(ctx, d.exec, "Scan", true, func(ctx context.Context) (storagemodels.Page, error) {
		out, err := d.client.Scan(ctx, input)
		if err != nil {
			return storagemodels.Page{}, err
		}
		return pageOf(out.Items, out.LastEvaluatedKey), nil
	})
}

// QueryIndex looks rows up by their GSI1 partition key.
func (d *Store) QueryIndex(ctx context.Context, query storagemodels.IndexQuery) ([]storagemodels.Item, error) {
	if query.PartitionValue == "" {
		return nil, keys.ErrEmptyIdentifier
	}
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(keys.AttrGSI1PK).Equal(expression.Value(query.PartitionValue))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build key condition: %w", err)
	}

	input := &sdk.QueryInput{
		TableName:                 &d.tableName,
		IndexName:                 aws.String(d.opts.IndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if query.Limit > 0 {
		input.Limit = aws.Int32(query.Limit)
	}

	return run(ctx, d.exec, "Query", true, func(ctx context.Context) ([]storagemodels.Item, error) {
		out, err := d.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		return out.Items, nil
	})
}

func setClauses(update expression.UpdateBuilder, set map[string]any) expression.UpdateBuilder {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		update = update.Set(expression.Name(name), expression.Value(set[name]))
	}
	return update
}

func sortedNames(deltas map[string]int64) []string {
	names := make([]string, 0, len(deltas))
	for name := range deltas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func pageOf(items []storagemodels.Item, lastKey storagemodels.Item) storagemodels.Page {
	page := storagemodels.Page{Items: items}
	if len(lastKey) > 0 {
		page.Cursor = lastKey
	}
	return page
}

// failedItem returns the index of the first transaction item rejected by its
// condition, or -1.
func failedItem(err error) int {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return -1
	}
	for i, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return i
		}
	}
	return -1
}
