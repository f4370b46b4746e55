/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Client is the subset of the DynamoDB API used by this package.
// *dynamodb.Client satisfies it; tests substitute a fake.
type Client interface {
	GetItem(ctx context.Context, params *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
	PutItem(ctx context.Context, params *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *sdk.UpdateItemInput, optFns ...func(*sdk.Options)) (*sdk.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *sdk.DeleteItemInput, optFns ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *sdk.TransactWriteItemsInput, optFns ...func(*sdk.Options)) (*sdk.TransactWriteItemsOutput, error)
	Scan(ctx context.Context, params *sdk.ScanInput, optFns ...func(*sdk.Options)) (*sdk.ScanOutput, error)
	Query(ctx context.Context, params *sdk.QueryInput, optFns ...func(*sdk.Options)) (*sdk.QueryOutput, error)
	DescribeTable(ctx context.Context, params *sdk.DescribeTableInput, optFns ...func(*sdk.Options)) (*sdk.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *sdk.CreateTableInput, optFns ...func(*sdk.Options)) (*sdk.CreateTableOutput, error)
}

var _ Client = (*sdk.Client)(nil)

// ClientConfig holds connection settings for NewClient.
type ClientConfig struct {
	Region string
	// Endpoint overrides the service endpoint, e.g. a DynamoDB Local URL.
	Endpoint string
	// AccessKeyID and SecretAccessKey pin static credentials. When empty the
	// default credential chain is used, except with an Endpoint override
	// where placeholder credentials are supplied.
	AccessKeyID     string
	SecretAccessKey string
}

// NewClient initializes a DynamoDB client from cfg.
func NewClient(ctx context.Context, cfg ClientConfig) (*sdk.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	accessKey, secretKey := cfg.AccessKeyID, cfg.SecretAccessKey
	if accessKey == "" && cfg.Endpoint != "" {
		// DynamoDB Local accepts any credentials but still signs requests
		accessKey, secretKey = "local", "local"
	}
	if accessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return sdk.NewFromConfig(awsCfg, func(o *sdk.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}
