/*
Package repository implements user profile and dashboard statistics access on
top of a datastore.Store.

Profiles live at USER#<id>/PROFILE and are indexed by email through GSI1. Each
profile owns an EMAIL#<email>/UNIQUE reservation row; CreateUser and
UpdateUser write it in the same atomic operation as the profile, so two users
can never share an email:

	repo := repository.New(store, repository.WithLogger(logger))
	user, err := repo.CreateUser(ctx, storagemodels.CreateUserRequest{
	    Name:  "Ada",
	    Email: "ada@example.com",
	})
	if errors.IsConflict(err) {
	    // email taken
	}

Point lookups return nil, nil when nothing matches. Dashboard counters are
adjusted atomically; decrements never go below zero.

With WithSeedFallback, reads that fail because the backend is unavailable
are answered from the seed dataset. Writes always surface their error.
*/
package repository
