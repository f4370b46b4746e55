/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/userstore/keys"
	"go.uber.org/zap"
)

// DefaultTableWait bounds how long EnsureTable waits for a new table to
// become ACTIVE.
const DefaultTableWait = 2 * time.Minute

// EnsureTable makes sure the single table exists and is ACTIVE, creating it
// with the PK/SK primary key and the GSI1 index when it is missing. It
// reports whether the table was created by this call. A concurrent creator
// (ResourceInUseException) counts as success.
func EnsureTable(ctx context.Context, client Client, tableName string, maxWait time.Duration, logger *zap.Logger) (bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxWait <= 0 {
		maxWait = DefaultTableWait
	}

	out, err := client.DescribeTable(ctx, &sdk.DescribeTableInput{TableName: &tableName})
	if err == nil {
		if out.Table != nil && out.Table.TableStatus == types.TableStatusActive {
			logger.Info("table already exists", zap.String("table", tableName))
			return false, nil
		}
		return false, waitActive(ctx, client, tableName, maxWait)
	}

	var rnf *types.ResourceNotFoundException
	if !errors.As(err, &rnf) {
		return false, fmt.Errorf("failed to describe table %s: %w", tableName, err)
	}

	logger.Info("creating table", zap.String("table", tableName))
	created := true
	if _, err := client.CreateTable(ctx, tableDefinition(tableName)); err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return false, fmt.Errorf("failed to create table %s: %w", tableName, err)
		}
		logger.Info("table is being created elsewhere", zap.String("table", tableName))
		created = false
	}

	if err := waitActive(ctx, client, tableName, maxWait); err != nil {
		return created, err
	}
	logger.Info("table is active", zap.String("table", tableName))
	return created, nil
}

func waitActive(ctx context.Context, client Client, tableName string, maxWait time.Duration) error {
	waiter := sdk.NewTableExistsWaiter(client, func(o *sdk.TableExistsWaiterOptions) {
		o.MinDelay = time.Second
		o.MaxDelay = 10 * time.Second
	})
	if err := waiter.Wait(ctx, &sdk.DescribeTableInput{TableName: &tableName}, maxWait); err != nil {
		return fmt.Errorf("table %s did not become active: %w", tableName, err)
	}
	return nil
}

func tableDefinition(tableName string) *sdk.CreateTableInput {
	str := types.ScalarAttributeTypeS
	return &sdk.CreateTableInput{
		TableName:   aws.String(tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(keys.AttrPK), AttributeType: str},
			{AttributeName: aws.String(keys.AttrSK), AttributeType: str},
			{AttributeName: aws.String(keys.AttrGSI1PK), AttributeType: str},
			{AttributeName: aws.String(keys.AttrGSI1SK), AttributeType: str},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(keys.AttrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(keys.AttrSK), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{{
			IndexName: aws.String(keys.IndexGSI1),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(keys.AttrGSI1PK), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(keys.AttrGSI1SK), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}},
	}
}
