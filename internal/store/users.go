// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/huddle/internal/models"
)

// UserRepo persists session subjects.
type UserRepo struct {
	pool *pgxpool.Pool
}

// Ensure upserts the user identified by subject and returns the row.
// Called on first authenticated write so foreign keys always resolve.
func (r *UserRepo) Ensure(ctx context.Context, subject, displayName string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, subject, display_name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject) DO UPDATE
			SET display_name = CASE
				WHEN excluded.display_name <> '' THEN excluded.display_name
				ELSE users.display_name
			END
		RETURNING id, subject, display_name, created_at`,
		uuid.New().String(), subject, displayName, time.Now(),
	).Scan(&u.ID, &u.Subject, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure user %s: %w", subject, err)
	}
	return &u, nil
}

// Get returns a user by ID.
func (r *UserRepo) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, subject, display_name, created_at
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Subject, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, mapNoRows(err))
	}
	return &u, nil
}
