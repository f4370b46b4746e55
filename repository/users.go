/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package repository

import (
	"context"
	"fmt"
	"time"

	usererrors "github.com/suparena/userstore/errors"
	"github.com/suparena/userstore/keys"
	"github.com/suparena/userstore/records"
	"github.com/suparena/userstore/storagemodels"
	"go.uber.org/zap"
)

// Operation names used for metrics and logs.
const (
	opListUsers          = "ListUsers"
	opGetUser            = "GetUser"
	opCreateUser         = "CreateUser"
	opUpdateUser         = "UpdateUser"
	opDeleteUser         = "DeleteUser"
	opFindUserByEmail    = "FindUserByEmail"
	opGetGlobalStats     = "GetGlobalStats"
	opGetUserStats       = "GetUserStats"
	opPutStats           = "PutStats"
	opIncrementUserCount = "IncrementUserCount"
	opDecrementUserCount = "DecrementUserCount"
	opUsersWithDashboard = "UsersWithDashboard"
)

// ListUsers returns every user profile in no particular order.
func (r *Repository) ListUsers(ctx context.Context) (users []storagemodels.UserProfile, err error) {
	start := time.Now()
	defer func() { r.observe(opListUsers, start, err) }()

	users, err = r.listUsers(ctx)
	if err != nil {
		if r.degraded(opListUsers, err) {
			return r.fallback.Users(), nil
		}
		return nil, err
	}
	return users, nil
}

func (r *Repository) listUsers(ctx context.Context) ([]storagemodels.UserProfile, error) {
	now := r.now()
	users := make([]storagemodels.UserProfile, 0)

	var cursor storagemodels.Item
	for {
		page, err := r.store.Scan(ctx, storagemodels.ScanParams{
			SortKey: keys.SortProfile,
			Cursor:  cursor,
		})
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			p, err := records.DecodeProfile(item, now)
			if err != nil {
				r.logger.Warn("skipping undecodable profile row", zap.Error(err))
				continue
			}
			users = append(users, p)
		}

		if page.Cursor == nil {
			return users, nil
		}
		cursor = page.Cursor
	}
}

// GetUser returns the profile with id, or nil when there is none.
func (r *Repository) GetUser(ctx context.Context, id string) (user *storagemodels.UserProfile, err error) {
	start := time.Now()
	defer func() { r.observe(opGetUser, start, err) }()

	key, err := keys.Profile(id)
	if err != nil {
		return nil, err
	}

	item, err := r.store.Get(ctx, key)
	if err != nil {
		if r.degraded(opGetUser, err) {
			if u, ok := r.fallback.User(id); ok {
				return &u, nil
			}
			return nil, nil
		}
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	p, err := records.DecodeProfile(item, r.now())
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateUser stores a new ACTIVE profile and reserves its email in one
// atomic write. A taken email yields an AlreadyExistsError.
func (r *Repository) CreateUser(ctx context.Context, req storagemodels.CreateUserRequest) (user *storagemodels.UserProfile, err error) {
	start := time.Now()
	defer func() { r.observe(opCreateUser, start, err) }()

	if verr := r.validate.Struct(req); verr != nil {
		return nil, validationError(verr)
	}

	now := r.now()
	p := storagemodels.UserProfile{
		ID:        r.newID(),
		Name:      req.Name,
		Email:     req.Email,
		Status:    storagemodels.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	profile, err := records.Profile(p)
	if err != nil {
		return nil, err
	}
	emailGuard, err := records.EmailGuard(p.Email, p.ID)
	if err != nil {
		return nil, err
	}

	if cerr := r.store.Create(ctx, profile, emailGuard); cerr != nil {
		if usererrors.IsConditionFailed(cerr) {
			return nil, usererrors.NewAlreadyExistsError(keys.EntityUserProfile, p.Email)
		}
		return nil, usererrors.NewWriteError(opCreateUser, cerr)
	}

	r.logger.Info("user created", zap.String("userId", p.ID))
	return &p, nil
}

// UpdateUser applies the supplied fields to an existing profile and returns
// the result. Changing the email moves its reservation in the same write.
func (r *Repository) UpdateUser(ctx context.Context, id string, req storagemodels.UpdateUserRequest) (user *storagemodels.UserProfile, err error) {
	start := time.Now()
	defer func() { r.observe(opUpdateUser, start, err) }()

	key, err := keys.Profile(id)
	if err != nil {
		return nil, err
	}
	if verr := r.validate.Struct(req); verr != nil {
		return nil, validationError(verr)
	}

	now := r.now()
	changes := storagemodels.Changes{
		Set: map[string]any{records.AttrUpdatedAt: records.FormatTime(now)},
	}
	if req.Name != nil {
		changes.Set[records.AttrName] = *req.Name
	}
	if req.Status != nil {
		changes.Set[records.AttrStatus] = string(*req.Status)
	}
	if req.Email != nil {
		if err := r.moveEmail(ctx, key, id, *req.Email, &changes); err != nil {
			return nil, err
		}
	}

	item, err := r.store.Update(ctx, key, changes)
	if err != nil {
		switch {
		case usererrors.IsNotFound(err):
			return nil, usererrors.NewNotFoundError(keys.EntityUserProfile, id)
		case usererrors.IsConditionFailed(err) && changes.ClaimGuard != nil:
			return nil, usererrors.NewAlreadyExistsError(keys.EntityUserProfile, *req.Email)
		}
		return nil, usererrors.NewWriteError(opUpdateUser, err)
	}

	p, err := records.DecodeProfile(item, now)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// moveEmail adds the email change to changes. The current row is read to
// find the reservation to release; an unchanged email is a no-op.
func (r *Repository) moveEmail(ctx context.Context, key keys.Key, id, email string, changes *storagemodels.Changes) error {
	current, err := r.store.Get(ctx, key)
	if err != nil {
		return usererrors.NewWriteError(opUpdateUser, err)
	}
	if current == nil {
		return usererrors.NewNotFoundError(keys.EntityUserProfile, id)
	}

	old, err := records.DecodeProfile(current, r.now())
	if err != nil {
		return err
	}
	if old.Email == email {
		return nil
	}

	claim, err := records.EmailGuard(email, id)
	if err != nil {
		return err
	}
	changes.Set[records.AttrEmail] = email
	changes.Set[keys.AttrGSI1PK] = keys.EmailIndexPK(email)
	changes.ClaimGuard = claim

	release, err := r.ownedGuard(ctx, old.Email, id)
	if err != nil {
		return usererrors.NewWriteError(opUpdateUser, err)
	}
	changes.ReleaseGuard = release
	return nil
}

// ownedGuard returns the release of the email reservation held by id, or nil
// when there is none to release. A reservation held by another user is left
// alone: it still protects that user's profile.
func (r *Repository) ownedGuard(ctx context.Context, email, id string) (*storagemodels.GuardRelease, error) {
	if email == "" {
		return nil, nil
	}
	key, err := keys.EmailGuard(email)
	if err != nil {
		return nil, err
	}

	item, err := r.store.Get(ctx, key)
	if err != nil || item == nil {
		return nil, err
	}
	owner, err := records.GuardOwner(item)
	if err != nil {
		return nil, err
	}
	if owner != id {
		r.logger.Warn("email reservation held by another user",
			zap.String("userId", id),
			zap.String("owner", owner))
		return nil, nil
	}
	return &storagemodels.GuardRelease{Key: key, Owner: id}, nil
}

// DeleteUser removes the profile with id and the email reservation it holds.
// Deleting an absent user succeeds. Per-user dashboard rows are left in place.
func (r *Repository) DeleteUser(ctx context.Context, id string) (deleted bool, err error) {
	start := time.Now()
	defer func() { r.observe(opDeleteUser, start, err) }()

	key, err := keys.Profile(id)
	if err != nil {
		return false, err
	}

	item, err := r.store.Get(ctx, key)
	if err != nil {
		return false, usererrors.NewWriteError(opDeleteUser, err)
	}
	if item == nil {
		return true, nil
	}

	var releases []storagemodels.GuardRelease
	if p, derr := records.DecodeProfile(item, r.now()); derr == nil {
		release, err := r.ownedGuard(ctx, p.Email, id)
		if err != nil {
			return false, usererrors.NewWriteError(opDeleteUser, err)
		}
		if release != nil {
			releases = append(releases, *release)
		}
	}

	if err := r.store.Delete(ctx, key, releases...); err != nil {
		return false, usererrors.NewWriteError(opDeleteUser, err)
	}

	r.logger.Info("user deleted", zap.String("userId", id))
	return true, nil
}

// FindUserByEmail looks a profile up through the email index. It returns nil
// when no profile carries email.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (user *storagemodels.UserProfile, err error) {
	start := time.Now()
	defer func() { r.observe(opFindUserByEmail, start, err) }()

	if email == "" {
		return nil, fmt.Errorf("find by email: %w", keys.ErrEmptyIdentifier)
	}

	items, err := r.store.QueryIndex(ctx, storagemodels.IndexQuery{
		PartitionValue: keys.EmailIndexPK(email),
		Limit:          1,
	})
	if err != nil {
		if r.degraded(opFindUserByEmail, err) {
			if u, ok := r.fallback.UserByEmail(email); ok {
				return &u, nil
			}
			return nil, nil
		}
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	p, err := records.DecodeProfile(items[0], r.now())
	if err != nil {
		return nil, err
	}
	return &p, nil
}
