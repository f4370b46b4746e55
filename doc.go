/*
Package userstore is the data layer for user profiles and dashboard
statistics kept in a single DynamoDB table.

Layout:
  - keys: the key codec (USER#<id>/PROFILE, EMAIL#<email>/UNIQUE,
    USER#<id>/DASHBOARD#STATS, DASHBOARD#GLOBAL/STATS)
  - guard: condition expressions and error classification
  - datastore/ddb: the DynamoDB store with deadlines, retries and a
    circuit breaker
  - datastore/mock, datastore/seed: in-memory and seeded stores
  - repository: user and dashboard operations
  - migration, cmd/migrate: the one-shot legacy table migration

Basic Usage:

	cfg, err := config.Load()
	if err != nil {
	    return err
	}
	logger, _ := logging.New(cfg.LogLevel, cfg.LogFormat)

	repo, err := userstore.NewRepository(ctx, userstore.DefaultProviders(), cfg, logger, nil)
	if err != nil {
	    return err
	}
	user, err := repo.CreateUser(ctx, storagemodels.CreateUserRequest{
	    Name:  "Ada",
	    Email: "ada@example.com",
	})

The storage provider is chosen with STORAGE_PROVIDER: dynamodb (default),
memory or seed.
*/
package userstore
