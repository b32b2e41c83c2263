// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/huddle/internal/models"
)

// MemberRepo persists group memberships.
type MemberRepo struct {
	pool *pgxpool.Pool
}

// Add inserts a membership. Joining twice is a no-op; the first role
// sticks, so a creator rejoining keeps the creator role.
func (r *MemberRepo) Add(ctx context.Context, groupID, userID, role string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO group_members (group_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, user_id) DO NOTHING`,
		groupID, userID, role, at,
	)
	if err != nil {
		return fmt.Errorf("add member %s to group %s: %w", userID, groupID, err)
	}
	return nil
}

// IsMember reports whether the user belongs to the group.
func (r *MemberRepo) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2
		)`, groupID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

// MemberGroupIDs returns the set of group IDs the user belongs to. Used
// to decorate nearby results without a query per group.
func (r *MemberRepo) MemberGroupIDs(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT group_id FROM group_members WHERE user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships for %s: %w", userID, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

// List returns the members of a group in join order.
func (r *MemberRepo) List(ctx context.Context, groupID string) ([]models.Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT group_id, user_id, role, joined_at
		FROM group_members
		WHERE group_id = $1
		ORDER BY joined_at`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members of %s: %w", groupID, err)
	}
	defer rows.Close()

	var out []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
