/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"sync"

	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// fakeClient records every request and delegates to the configured hooks.
// Unset hooks answer with an empty output.
type fakeClient struct {
	mu sync.Mutex

	getItem       func(*sdk.GetItemInput) (*sdk.GetItemOutput, error)
	putItem       func(*sdk.PutItemInput) (*sdk.PutItemOutput, error)
	updateItem    func(*sdk.UpdateItemInput) (*sdk.UpdateItemOutput, error)
	deleteItem    func(*sdk.DeleteItemInput) (*sdk.DeleteItemOutput, error)
	transact      func(*sdk.TransactWriteItemsInput) (*sdk.TransactWriteItemsOutput, error)
	scan          func(*sdk.ScanInput) (*sdk.ScanOutput, error)
	query         func(*sdk.QueryInput) (*sdk.QueryOutput, error)
	describeTable func(*sdk.DescribeTableInput) (*sdk.DescribeTableOutput, error)
	createTable   func(*sdk.CreateTableInput) (*sdk.CreateTableOutput, error)

	calls     map[string]int
	deadlines int

	gets      []*sdk.GetItemInput
	puts      []*sdk.PutItemInput
	updates   []*sdk.UpdateItemInput
	deletes   []*sdk.DeleteItemInput
	transacts []*sdk.TransactWriteItemsInput
	scans     []*sdk.ScanInput
	queries   []*sdk.QueryInput
	creates   []*sdk.CreateTableInput
}

func newFakeClient() *fakeClient {
	return &fakeClient{calls: map[string]int{}}
}

func (f *fakeClient) record(ctx context.Context, op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if _, ok := ctx.Deadline(); ok {
		f.deadlines++
	}
}

func (f *fakeClient) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeClient) GetItem(ctx context.Context, in *sdk.GetItemInput, _ ...func(*sdk.Options)) (*sdk.GetItemOutput, error) {
	f.record(ctx, "GetItem")
	f.gets = append(f.gets, in)
	if f.getItem != nil {
		return f.getItem(in)
	}
	return &sdk.GetItemOutput{}, nil
}

func (f *fakeClient) PutItem(ctx context.Context, in *sdk.PutItemInput, _ ...func(*sdk.Options)) (*sdk.PutItemOutput, error) {
	f.record(ctx, "PutItem")
	f.puts = append(f.puts, in)
	if f.putItem != nil {
		return f.putItem(in)
	}
	return &sdk.PutItemOutput{}, nil
}

func (f *fakeClient) UpdateItem(ctx context.Context, in *sdk.UpdateItemInput, _ ...func(*sdk.Options)) (*sdk.UpdateItemOutput, error) {
	f.record(ctx, "UpdateItem")
	f.updates = append(f.updates, in)
	if f.updateItem != nil {
		return f.updateItem(in)
	}
	return &sdk.UpdateItemOutput{}, nil
}

func (f *fakeClient) DeleteItem(ctx context.Context, in *sdk.DeleteItemInput, _ ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error) {
	f.record(ctx, "DeleteItem")
	f.deletes = append(f.deletes, in)
	if f.deleteItem != nil {
		return f.deleteItem(in)
	}
	return &sdk.DeleteItemOutput{}, nil
}

func (f *fakeClient) TransactWriteItems(ctx context.Context, in *sdk.TransactWriteItemsInput, _ ...func(*sdk.Options)) (*sdk.TransactWriteItemsOutput, error) {
	f.record(ctx, "TransactWriteItems")
	f.transacts = append(f.transacts, in)
	if f.transact != nil {
		return f.transact(in)
	}
	return &sdk.TransactWriteItemsOutput{}, nil
}

func (f *fakeClient) Scan(ctx context.Context, in *sdk.ScanInput, _ ...func(*sdk.Options)) (*sdk.ScanOutput, error) {
	f.record(ctx, "Scan")
	f.scans = append(f.scans, in)
	if f.scan != nil {
		return f.scan(in)
	}
	return &sdk.ScanOutput{}, nil
}

func (f *fakeClient) Query(ctx context.Context, in *sdk.QueryInput, _ ...func(*sdk.Options)) (*sdk.QueryOutput, error) {
	f.record(ctx, "Query")
	f.queries = append(f.queries, in)
	if f.query != nil {
		return f.query(in)
	}
	return &sdk.QueryOutput{}, nil
}

func (f *fakeClient) DescribeTable(ctx context.Context, in *sdk.DescribeTableInput, _ ...func(*sdk.Options)) (*sdk.DescribeTableOutput, error) {
	f.record(ctx, "DescribeTable")
	if f.describeTable != nil {
		return f.describeTable(in)
	}
	return &sdk.DescribeTableOutput{}, nil
}

func (f *fakeClient) CreateTable(ctx context.Context, in *sdk.CreateTableInput, _ ...func(*sdk.Options)) (*sdk.CreateTableOutput, error) {
	f.record(ctx, "CreateTable")
	f.creates = append(f.creates, in)
	if f.createTable != nil {
		return f.createTable(in)
	}
	return &sdk.CreateTableOutput{}, nil
}
