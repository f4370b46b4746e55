/*
Package errors provides the error kinds of the userstore data layer.

Each kind has a sentinel for errors.Is and a typed error carrying context:

	var (
	    ErrNotFound        = errors.New("entity not found")
	    ErrAlreadyExists   = errors.New("entity already exists")   // Conflict
	    ErrInvalidInput    = errors.New("invalid input")
	    ErrConditionFailed = errors.New("condition check failed")
	    ErrUnavailable     = errors.New("storage backend unavailable")
	    ErrWriteFailed     = errors.New("write operation failed")
	)

Point lookups never return ErrNotFound; they return a nil entity. NotFound
is reserved for writes that require an existing row (UpdateUser).

Usage:

	_, err := repo.CreateUser(ctx, req)
	switch {
	case errors.IsConflict(err):
	    // user-facing "already exists"
	case errors.IsUnavailable(err):
	    // transient, retry or surface as such
	case err != nil:
	    // generic write failure
	}

WriteError and UnavailableError wrap their cause, so both the outer kind and
the underlying SDK error stay reachable.
*/
package errors
