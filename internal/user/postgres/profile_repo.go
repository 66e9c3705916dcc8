// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

// Package postgres implements the user directory on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/havenchat/haven/internal/user"
)

// DB is the subset of pgxpool.Pool the repository needs. It matches
// pgxmock.PgxPoolIface for tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProfileRepository implements user.Directory using PostgreSQL.
type ProfileRepository struct {
	db DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Lookup returns the profile for id, or user.ErrNotFound.
func (r *ProfileRepository) Lookup(ctx context.Context, id string) (user.Profile, error) {
	var p user.Profile
	err := r.db.QueryRow(ctx, `
		SELECT id, display_name, avatar_url
		FROM profiles
		WHERE id = $1
	`, id).Scan(&p.ID, &p.DisplayName, &p.AvatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.Profile{}, oops.Code("PROFILE_NOT_FOUND").
			With("id", id).
			Wrap(user.ErrNotFound)
	}
	if err != nil {
		return user.Profile{}, oops.Code("PROFILE_LOOKUP_FAILED").
			With("operation", "get profile by id").
			With("id", id).
			Wrap(err)
	}
	return p, nil
}
