/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/userstore/storagemodels"
	"go.uber.org/zap"
)

// DefaultLegacyPageSize is the scan page size used against legacy tables.
const DefaultLegacyPageSize int32 = 100

// LegacyReader reads the pre-migration tables, which are keyed by a plain
// "id" string attribute. It only ever issues reads.
type LegacyReader struct {
	client   Client
	exec     *executor
	pageSize int32
}

// NewLegacyReader returns a reader sharing the deadline, retry and breaker
// settings of a Store.
func NewLegacyReader(client Client, pageSize int32, logger *zap.Logger, opts ...storagemodels.StoreOption) *LegacyReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = DefaultLegacyPageSize
	}
	options := storagemodels.DefaultStoreOptions()
	options.BreakerName = "dynamodb-legacy"
	for _, opt := range opts {
		opt(&options)
	}
	return &LegacyReader{
		client:   client,
		exec:     newExecutor(options, logger),
		pageSize: pageSize,
	}
}

// ScanPage returns one page of table starting after cursor.
func (l *LegacyReader) ScanPage(ctx context.Context, table string, cursor storagemodels.Item) (storagemodels.Page, error) {
	return run(ctx, l.exec, "Scan "+table, true, func(ctx context.Context) (storagemodels.Page, error) {
		out, err := l.client.Scan(ctx, &sdk.ScanInput{
			TableName:         aws.String(table),
			ExclusiveStartKey: cursor,
			Limit:             aws.Int32(l.pageSize),
		})
		if err != nil {
			return storagemodels.Page{}, err
		}
		return pageOf(out.Items, out.LastEvaluatedKey), nil
	})
}

// GetByID returns the row of table whose id is id, or nil.
func (l *LegacyReader) GetByID(ctx context.Context, table, id string) (storagemodels.Item, error) {
	return run(ctx, l.exec, "GetItem "+table, true, func(ctx context.Context) (storagemodels.Item, error) {
		out, err := l.client.GetItem(ctx, &sdk.GetItemInput{
			TableName: aws.String(table),
			Key: map[string]types.AttributeValue{
				"id": &types.AttributeValueMemberS{Value: id},
			},
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
