/*
Package ddb provides the DynamoDB implementation of datastore.Store.

The Store works against one table keyed by PK/SK with a GSI1 index on
GSI1PK/GSI1SK. Every call runs under a per-operation deadline and a shared
circuit breaker; idempotent calls (reads, plain puts, deletes, SET updates)
are retried with exponential backoff, while conditional creates and counter
ADDs get a single attempt.

Uniqueness:
Create writes the entity row and its guard rows in one TransactWriteItems,
each with attribute_not_exists(PK):

	err := store.Create(ctx, profileRow, emailGuardRow)
	if errors.IsConditionFailed(err) {
	    // id or email already taken
	}

Tables:
EnsureTable creates the table with PAY_PER_REQUEST billing when missing and
waits until it is ACTIVE:

	created, err := ddb.EnsureTable(ctx, client, "users-main-dev", ddb.DefaultTableWait, logger)

LegacyReader pages through the pre-migration tables, which are keyed by a
plain "id" attribute.
*/
package ddb
