/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/userstore/keys"
)

func activeTable(name string) *sdk.DescribeTableOutput {
	return &sdk.DescribeTableOutput{Table: &types.TableDescription{
		TableName:   aws.String(name),
		TableStatus: types.TableStatusActive,
	}}
}

func TestEnsureTable(t *testing.T) {
	ctx := context.Background()

	t.Run("AlreadyActive", func(t *testing.T) {
		client := newFakeClient()
		client.describeTable = func(in *sdk.DescribeTableInput) (*sdk.DescribeTableOutput, error) {
			return activeTable(aws.ToString(in.TableName)), nil
		}

		created, err := EnsureTable(ctx, client, "app-main-test", time.Second, nil)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, 0, client.count("CreateTable"))
	})

	t.Run("CreatesMissingTable", func(t *testing.T) {
		client := newFakeClient()
		client.describeTable = func(in *sdk.DescribeTableInput) (*sdk.DescribeTableOutput, error) {
			if len(client.creates) == 0 {
				return nil, &types.ResourceNotFoundException{Message: aws.String("no such table")}
			}
			return activeTable(aws.ToString(in.TableName)), nil
		}

		created, err := EnsureTable(ctx, client, "app-main-test", time.Second, nil)
		require.NoError(t, err)
		assert.True(t, created)
		require.Len(t, client.creates, 1)

		in := client.creates[0]
		assert.Equal(t, types.BillingModePayPerRequest, in.BillingMode)
		require.Len(t, in.KeySchema, 2)
		assert.Equal(t, keys.AttrPK, aws.ToString(in.KeySchema[0].AttributeName))
		assert.Equal(t, types.KeyTypeHash, in.KeySchema[0].KeyType)
		assert.Equal(t, keys.AttrSK, aws.ToString(in.KeySchema[1].AttributeName))
		require.Len(t, in.GlobalSecondaryIndexes, 1)
		gsi := in.GlobalSecondaryIndexes[0]
		assert.Equal(t, keys.IndexGSI1, aws.ToString(gsi.IndexName))
		assert.Equal(t, types.ProjectionTypeAll, gsi.Projection.ProjectionType)
	})

	t.Run("ConcurrentCreatorIsSuccess", func(t *testing.T) {
		client := newFakeClient()
		client.describeTable = func(in *sdk.DescribeTableInput) (*sdk.DescribeTableOutput, error) {
			if len(client.creates) == 0 {
				return nil, &types.ResourceNotFoundException{Message: aws.String("no such table")}
			}
			return activeTable(aws.ToString(in.TableName)), nil
		}
		client.createTable = func(*sdk.CreateTableInput) (*sdk.CreateTableOutput, error) {
			return nil, &types.ResourceInUseException{Message: aws.String("in use")}
		}

		created, err := EnsureTable(ctx, client, "app-main-test", time.Second, nil)
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("DescribeFailure", func(t *testing.T) {
		client := newFakeClient()
		client.describeTable = func(*sdk.DescribeTableInput) (*sdk.DescribeTableOutput, error) {
			return nil, &types.InternalServerError{Message: aws.String("boom")}
		}

		_, err := EnsureTable(ctx, client, "app-main-test", time.Second, nil)
		assert.Error(t, err)
		assert.Equal(t, 0, client.count("CreateTable"))
	})
}
