/*
Package datastore defines the backend interface of the userstore data layer.

	type Store interface {
	    Get(ctx, key) (Item, error)
	    Put(ctx, item) error
	    Create(ctx, item, guards...) error
	    Update(ctx, key, changes) (Item, error)
	    Adjust(ctx, key, adjustment) error
	    Delete(ctx, keys...) error
	    Scan(ctx, params) (Page, error)
	    QueryIndex(ctx, query) ([]Item, error)
	}

Implementations:
  - ddb: DynamoDB single-table implementation with retries and a circuit breaker
  - mock: in-memory implementation for tests and local development
  - seed: the mock store preloaded with the development seed dataset
*/
package datastore
