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
	"github.com/suparena/userstore/errors"
	"github.com/suparena/userstore/keys"
	"github.com/suparena/userstore/storagemodels"
)

func newTestStore(client *fakeClient, opts ...storagemodels.StoreOption) *Store {
	opts = append([]storagemodels.StoreOption{
		storagemodels.WithRetryBackoff(time.Millisecond, 2*time.Millisecond),
	}, opts...)
	return NewStore(client, "app-main-test", nil, opts...)
}

func row(pk, sk string) storagemodels.Item {
	return storagemodels.Item{
		keys.AttrPK: &types.AttributeValueMemberS{Value: pk},
		keys.AttrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

func cancelled(codes ...string) error {
	reasons := make([]types.CancellationReason, 0, len(codes))
	for _, code := range codes {
		reasons = append(reasons, types.CancellationReason{Code: aws.String(code)})
	}
	return &types.TransactionCanceledException{
		Message:             aws.String("Transaction cancelled"),
		CancellationReasons: reasons,
	}
}

func TestStoreGet(t *testing.T) {
	ctx := context.Background()

	t.Run("Absent", func(t *testing.T) {
		client := newFakeClient()
		store := newTestStore(client)

		item, err := store.Get(ctx, keys.GlobalDashboard())
		require.NoError(t, err)
		assert.Nil(t, item)
		assert.Equal(t, "DASHBOARD#GLOBAL", client.gets[0].Key[keys.AttrPK].(*types.AttributeValueMemberS).Value)
		assert.Equal(t, 1, client.deadlines, "every call runs under a deadline")
	})

	t.Run("RetriesTransientErrors", func(t *testing.T) {
		client := newFakeClient()
		failures := 2
		client.getItem = func(*sdk.GetItemInput) (*sdk.GetItemOutput, error) {
			if failures > 0 {
				failures--
				return nil, &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
			}
			return &sdk.GetItemOutput{Item: row("USER#1", "PROFILE")}, nil
		}
		store := newTestStore(client)

		item, err := store.Get(ctx, keys.Key{PK: "USER#1", SK: "PROFILE"})
		require.NoError(t, err)
		assert.NotNil(t, item)
		assert.Equal(t, 3, client.count("GetItem"))
	})

	t.Run("ExhaustedRetriesAreUnavailable", func(t *testing.T) {
		client := newFakeClient()
		client.getItem = func(*sdk.GetItemInput) (*sdk.GetItemOutput, error) {
			return nil, &types.InternalServerError{Message: aws.String("boom")}
		}
		store := newTestStore(client, storagemodels.WithMaxRetries(2))

		_, err := store.Get(ctx, keys.GlobalDashboard())
		assert.True(t, errors.IsUnavailable(err))
		assert.Equal(t, 2, client.count("GetItem"))
	})

	t.Run("BreakerOpensAfterFailures", func(t *testing.T) {
		client := newFakeClient()
		client.getItem = func(*sdk.GetItemInput) (*sdk.GetItemOutput, error) {
			return nil, &types.InternalServerError{Message: aws.String("boom")}
		}
		store := newTestStore(client,
			storagemodels.WithMaxRetries(1),
			storagemodels.WithBreaker("test", 2, 0.5, time.Minute),
		)

		for i := 0; i < 2; i++ {
			_, err := store.Get(ctx, keys.GlobalDashboard())
			require.True(t, errors.IsUnavailable(err))
		}

		_, err := store.Get(ctx, keys.GlobalDashboard())
		assert.True(t, errors.IsUnavailable(err))
		assert.Equal(t, 2, client.count("GetItem"), "open breaker must not reach the backend")
	})
}

func TestStoreCreate(t *testing.T) {
	ctx := context.Background()
	profile := row("USER#1", "PROFILE")
	emailGuard := row("EMAIL#ada@example.com", "UNIQUE")

	t.Run("ProfileAndGuardInOneTransaction", func(t *testing.T) {
		client := newFakeClient()
		store := newTestStore(client)

		require.NoError(t, store.Create(ctx, profile, emailGuard))
		require.Len(t, client.transacts, 1)

		items := client.transacts[0].TransactItems
		require.Len(t, items, 2)
		for _, item := range items {
			require.NotNil(t, item.Put)
			assert.Contains(t, aws.ToString(item.Put.ConditionExpression), "attribute_not_exists")
			assert.Contains(t, item.Put.ExpressionAttributeNames, "#0")
			assert.Equal(t, keys.AttrPK, item.Put.ExpressionAttributeNames["#0"])
		}
	})

	t.Run("SingleRowUsesConditionalPut", func(t *testing.T) {
		client := newFakeClient()
		store := newTestStore(client)

		require.NoError(t, store.Create(ctx, profile))
		require.Len(t, client.puts, 1)
		assert.NotNil(t, client.puts[0].ConditionExpression)
		assert.Equal(t, 0, client.count("TransactWriteItems"))
	})

	t.Run("ConflictIsNotRetried", func(t *testing.T) {
		client := newFakeClient()
		client.transact = func(*sdk.TransactWriteItemsInput) (*sdk.TransactWriteItemsOutput, error) {
			return nil, cancelled("None", "ConditionalCheckFailed")
		}
		store := newTestStore(client)

		err := store.Create(ctx, profile, emailGuard)
		assert.True(t, errors.IsConditionFailed(err))
		assert.Equal(t, 1, client.count("TransactWriteItems"))
	})

	t.Run("TransientFailureIsNotRetried", func(t *testing.T) {
		client := newFakeClient()
		client.transact = func(*sdk.TransactWriteItemsInput) (*sdk.TransactWriteItemsOutput, error) {
			return nil, &types.InternalServerError{Message: aws.String("boom")}
		}
		store := newTestStore(client)

		err := store.Create(ctx, profile, emailGuard)
		assert.True(t, errors.IsUnavailable(err))
		assert.Equal(t, 1, client.count("TransactWriteItems"))
	})

	t.Run("RejectsRowWithoutKey", func(t *testing.T) {
		store := newTestStore(newFakeClient())
		err := store.Create(ctx, storagemodels.Item{})
		assert.True(t, errors.IsValidationError(err))
	})
}

func TestStoreUpdate(t *testing.T) {
	ctx := context.Background()
	key := keys.Key{PK: "USER#1", SK: "PROFILE"}

	t.Run("ReturnsNewImage", func(t *testing.T) {
		client := newFakeClient()
		client.updateItem = func(in *sdk.UpdateItemInput) (*sdk.UpdateItemOutput, error) {
			return &sdk.UpdateItemOutput{Attributes: row("USER#1", "PROFILE")}, nil
		}
		store := newTestStore(client)

		item, err := store.Update(ctx, key, storagemodels.Changes{Set: map[string]any{"name": "Ada"}})
		require.NoError(t, err)
		assert.NotNil(t, item)

		in := client.updates[0]
		assert.Equal(t, types.ReturnValueAllNew, in.ReturnValues)
		assert.Contains(t, aws.ToString(in.UpdateExpression), "SET")
		assert.Contains(t, aws.ToString(in.ConditionExpression), "attribute_exists")
	})

	t.Run("MissingRowIsNotFound", func(t *testing.T) {
		client := newFakeClient()
		client.updateItem = func(*sdk.UpdateItemInput) (*sdk.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("failed")}
		}
		store := newTestStore(client)

		_, err := store.Update(ctx, key, storagemodels.Changes{Set: map[string]any{"name": "Ada"}})
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("EmptyChanges", func(t *testing.T) {
		store := newTestStore(newFakeClient())
		_, err := store.Update(ctx, key, storagemodels.Changes{})
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("GuardMove", func(t *testing.T) {
		oldGuard := keys.Key{PK: "EMAIL#old@example.com", SK: "UNIQUE"}
		changes := storagemodels.Changes{
			Set:          map[string]any{"email": "new@example.com"},
			ClaimGuard:   row("EMAIL#new@example.com", "UNIQUE"),
			ReleaseGuard: &storagemodels.GuardRelease{Key: oldGuard, Owner: "1"},
		}

		tests := []struct {
			name    string
			txErr   error
			checkFn func(error) bool
		}{
			{name: "profile missing", txErr: cancelled("ConditionalCheckFailed", "None", "None"), checkFn: errors.IsNotFound},
			{name: "email taken", txErr: cancelled("None", "ConditionalCheckFailed", "None"), checkFn: errors.IsConditionFailed},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				client := newFakeClient()
				client.transact = func(*sdk.TransactWriteItemsInput) (*sdk.TransactWriteItemsOutput, error) {
					return nil, tt.txErr
				}
				store := newTestStore(client)

				_, err := store.Update(ctx, key, changes)
				assert.True(t, tt.checkFn(err), "unexpected error %v", err)
			})
		}

		t.Run("success", func(t *testing.T) {
			client := newFakeClient()
			client.getItem = func(*sdk.GetItemInput) (*sdk.GetItemOutput, error) {
				return &sdk.GetItemOutput{Item: row("USER#1", "PROFILE")}, nil
			}
			store := newTestStore(client)

			item, err := store.Update(ctx, key, changes)
			require.NoError(t, err)
			assert.NotNil(t, item)

			items := client.transacts[0].TransactItems
			require.Len(t, items, 3)
			assert.NotNil(t, items[0].Update)
			assert.NotNil(t, items[1].Put)
			assert.NotNil(t, items[2].Delete)
			assert.Equal(t, "EMAIL#old@example.com", items[2].Delete.Key[keys.AttrPK].(*types.AttributeValueMemberS).Value)
			assert.Contains(t, aws.ToString(items[2].Delete.ConditionExpression), "OR", "release is owner-conditioned")
		})

		t.Run("guard owned by another user", func(t *testing.T) {
			client := newFakeClient()
			client.transact = func(*sdk.TransactWriteItemsInput) (*sdk.TransactWriteItemsOutput, error) {
				return nil, cancelled("None", "None", "ConditionalCheckFailed")
			}
			store := newTestStore(client)

			_, err := store.Update(ctx, key, changes)
			assert.True(t, errors.IsConditionFailed(err), "unexpected error %v", err)
		})
	})
}

func TestStoreAdjust(t *testing.T) {
	ctx := context.Background()
	key := keys.GlobalDashboard()

	t.Run("Increment", func(t *testing.T) {
		client := newFakeClient()
		store := newTestStore(client)

		err := store.Adjust(ctx, key, storagemodels.Adjustment{
			Deltas: map[string]int64{"totalUsers": 1, "activeUsers": 1},
			Set:    map[string]any{"lastUpdated": "2025-01-01T00:00:00Z"},
		})
		require.NoError(t, err)
		require.Len(t, client.updates, 1)
		assert.Contains(t, aws.ToString(client.updates[0].UpdateExpression), "ADD")
		assert.Nil(t, client.updates[0].ConditionExpression)
	})

	t.Run("FlooredDecrement", func(t *testing.T) {
		client := newFakeClient()
		client.updateItem = func(*sdk.UpdateItemInput) (*sdk.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("failed")}
		}
		store := newTestStore(client)

		err := store.Adjust(ctx, key, storagemodels.Adjustment{
			Deltas:      map[string]int64{"totalUsers": -1},
			FloorAtZero: true,
		})
		assert.True(t, errors.IsConditionFailed(err))
		assert.Contains(t, aws.ToString(client.updates[0].ConditionExpression), ">=")
		assert.Equal(t, 1, client.count("UpdateItem"))
	})

	t.Run("NoDeltas", func(t *testing.T) {
		store := newTestStore(newFakeClient())
		err := store.Adjust(ctx, key, storagemodels.Adjustment{})
		assert.True(t, errors.IsValidationError(err))
	})
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("Single", func(t *testing.T) {
		client := newFakeClient()
		store := newTestStore(client)

		require.NoError(t, store.Delete(ctx, keys.Key{PK: "USER#1", SK: "PROFILE"}))
		assert.Equal(t, 1, client.count("DeleteItem"))
	})

	t.Run("ProfileAndGuardTogether", func(t *testing.T) {
		client := newFakeClient()
		store := newTestStore(client)

		require.NoError(t, store.Delete(ctx,
			keys.Key{PK: "USER#1", SK: "PROFILE"},
			storagemodels.GuardRelease{Key: keys.Key{PK: "EMAIL#ada@example.com", SK: "UNIQUE"}, Owner: "1"},
		))
		require.Len(t, client.transacts, 1)
		items := client.transacts[0].TransactItems
		require.Len(t, items, 2)
		assert.Nil(t, items[0].Delete.ConditionExpression)
		require.NotNil(t, items[1].Delete.ConditionExpression)
		assert.Contains(t, *items[1].Delete.ConditionExpression, "attribute_not_exists")
	})

	t.Run("GuardOwnedByAnotherUser", func(t *testing.T) {
		client := newFakeClient()
		client.transact = func(*sdk.TransactWriteItemsInput) (*sdk.TransactWriteItemsOutput, error) {
			return nil, cancelled("None", "ConditionalCheckFailed")
		}
		store := newTestStore(client)

		err := store.Delete(ctx,
			keys.Key{PK: "USER#1", SK: "PROFILE"},
			storagemodels.GuardRelease{Key: keys.Key{PK: "EMAIL#ada@example.com", SK: "UNIQUE"}, Owner: "1"},
		)
		assert.True(t, errors.IsConditionFailed(err), "unexpected error %v", err)
	})
}

func TestStoreScan(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	client.scan = func(in *sdk.ScanInput) (*sdk.ScanOutput, error) {
		if in.ExclusiveStartKey == nil {
			return &sdk.ScanOutput{
				Items:            []storagemodels.Item{row("USER#1", "PROFILE")},
				LastEvaluatedKey: row("USER#1", "PROFILE"),
			}, nil
		}
		return &sdk.ScanOutput{Items: []storagemodels.Item{row("USER#2", "PROFILE")}}, nil
	}
	store := newTestStore(client)

	first, err := store.Scan(ctx, storagemodels.ScanParams{SortKey: keys.SortProfile, Limit: 25})
	require.NoError(t, err)
	assert.Len(t, first.Items, 1)
	require.NotNil(t, first.Cursor)

	in := client.scans[0]
	assert.Equal(t, int32(25), aws.ToInt32(in.Limit))
	assert.Contains(t, aws.ToString(in.FilterExpression), "=")
	assert.Contains(t, in.ExpressionAttributeValues, ":0")

	second, err := store.Scan(ctx, storagemodels.ScanParams{SortKey: keys.SortProfile, Cursor: first.Cursor})
	require.NoError(t, err)
	assert.Len(t, second.Items, 1)
	assert.Nil(t, second.Cursor)
	assert.Nil(t, client.scans[1].Limit)
}

func TestStoreQueryIndex(t *testing.T) {
	ctx := context.Background()

	client := newFakeClient()
	client.query = func(in *sdk.QueryInput) (*sdk.QueryOutput, error) {
		return &sdk.QueryOutput{Items: []storagemodels.Item{row("USER#1", "PROFILE")}}, nil
	}
	store := newTestStore(client)

	items, err := store.QueryIndex(ctx, storagemodels.IndexQuery{PartitionValue: "EMAIL#ada@example.com", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	in := client.queries[0]
	assert.Equal(t, keys.IndexGSI1, aws.ToString(in.IndexName))
	assert.Equal(t, int32(1), aws.ToInt32(in.Limit))
	assert.Equal(t, keys.AttrGSI1PK, in.ExpressionAttributeNames["#0"])

	_, err = store.QueryIndex(ctx, storagemodels.IndexQuery{})
	assert.True(t, errors.IsValidationError(err))
}
