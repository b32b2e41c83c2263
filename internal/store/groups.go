// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/huddle/internal/geo"
	"github.com/tomtom215/huddle/internal/models"
)

// GroupRepo persists groups.
type GroupRepo struct {
	pool *pgxpool.Pool
}

const groupColumns = `
	g.id, g.name, g.description, g.organization_id, g.creator_id,
	g.latitude, g.longitude, g.radius_meters, g.building_id, g.building_name,
	g.storage_folder, g.expires_at, g.extension_count,
	g.is_active, g.is_archived, g.archived_at, g.created_at, g.updated_at,
	(SELECT count(*) FROM group_members m WHERE m.group_id = g.id) AS member_count`

func scanGroup(row pgx.Row) (*models.Group, error) {
	var g models.Group
	err := row.Scan(
		&g.ID, &g.Name, &g.Description, &g.OrganizationID, &g.CreatorID,
		&g.Latitude, &g.Longitude, &g.RadiusMeters, &g.BuildingID, &g.BuildingName,
		&g.StorageFolder, &g.ExpiresAt, &g.ExtensionCount,
		&g.IsActive, &g.IsArchived, &g.ArchivedAt, &g.CreatedAt, &g.UpdatedAt,
		&g.MemberCount,
	)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &g, nil
}

// Create inserts the group, its building row and, when creatorID is
// set, the creator's membership in one transaction. A partial failure
// leaves no orphaned building or group rows.
func (r *GroupRepo) Create(ctx context.Context, g *models.Group, building *models.Building) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create group: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if building != nil && g.BuildingID != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO buildings (id, name, address, geometry, area, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name, address = excluded.address,
				geometry = excluded.geometry, area = excluded.area`,
			building.ID, building.Name, building.Address, building.Geometry, building.Area, g.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert building %s: %w", building.ID, err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO groups (
			id, name, description, organization_id, creator_id,
			latitude, longitude, radius_meters, building_id, building_name,
			storage_folder, expires_at, is_active, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,true,$13,$13)`,
		g.ID, g.Name, g.Description, g.OrganizationID, g.CreatorID,
		g.Latitude, g.Longitude, g.RadiusMeters, g.BuildingID, g.BuildingName,
		g.StorageFolder, g.ExpiresAt, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}

	if g.CreatorID != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO group_members (group_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (group_id, user_id) DO NOTHING`,
			g.ID, *g.CreatorID, models.RoleCreator, g.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert creator membership: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create group: %w", err)
	}
	return nil
}

// Get returns a group by ID.
func (r *GroupRepo) Get(ctx context.Context, id string) (*models.Group, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+groupColumns+" FROM groups g WHERE g.id = $1", id)
	g, err := scanGroup(row)
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", id, err)
	}
	return g, nil
}

// ListActiveNear returns active, unexpired groups whose center falls
// inside a bounding box around the point. The box over-approximates the
// radius; callers apply the exact haversine cutoff.
func (r *GroupRepo) ListActiveNear(ctx context.Context, lat, lon, maxDistanceMeters float64, now time.Time) ([]models.Group, error) {
	dLat, dLon := geo.BufferDegrees(lat, maxDistanceMeters)

	rows, err := r.pool.Query(ctx, `
		SELECT `+groupColumns+`
		FROM groups g
		WHERE g.is_active AND NOT g.is_archived
		  AND g.expires_at > $1
		  AND g.latitude  BETWEEN $2 AND $3
		  AND g.longitude BETWEEN $4 AND $5`,
		now, lat-dLat, lat+dLat, lon-dLon, lon+dLon,
	)
	if err != nil {
		return nil, fmt.Errorf("list groups near (%f, %f): %w", lat, lon, err)
	}
	defer rows.Close()

	return collectGroups(rows)
}

// ListForUser returns the active groups the user belongs to, newest
// first, with the user's role and join time attached.
func (r *GroupRepo) ListForUser(ctx context.Context, userID string, now time.Time) ([]models.MemberGroup, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+groupColumns+`, m.role, m.joined_at
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = $1
		  AND g.is_active AND NOT g.is_archived
		  AND g.expires_at > $2
		ORDER BY g.created_at DESC`,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list groups for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []models.MemberGroup
	for rows.Next() {
		var mg models.MemberGroup
		err := rows.Scan(
			&mg.ID, &mg.Name, &mg.Description, &mg.OrganizationID, &mg.CreatorID,
			&mg.Latitude, &mg.Longitude, &mg.RadiusMeters, &mg.BuildingID, &mg.BuildingName,
			&mg.StorageFolder, &mg.ExpiresAt, &mg.ExtensionCount,
			&mg.IsActive, &mg.IsArchived, &mg.ArchivedAt, &mg.CreatedAt, &mg.UpdatedAt,
			&mg.MemberCount, &mg.Role, &mg.JoinedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan member group: %w", err)
		}
		out = append(out, mg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member groups: %w", err)
	}
	return out, nil
}

func collectGroups(rows pgx.Rows) ([]models.Group, error) {
	var out []models.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return out, nil
}

// Extend pushes the expiry forward and bumps the extension counter. The
// update is conditional so concurrent extensions cannot exceed the cap.
func (r *GroupRepo) Extend(ctx context.Context, id string, by time.Duration, maxExtensions int) (*models.Group, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE groups
		SET expires_at = expires_at + $2,
		    extension_count = extension_count + 1,
		    updated_at = now()
		WHERE id = $1
		  AND is_active AND NOT is_archived
		  AND extension_count < $3`,
		id, by, maxExtensions,
	)
	if err != nil {
		return nil, fmt.Errorf("extend group %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

// ArchiveExpired marks groups past their expiry as archived and returns
// them so the sweeper can clean up blobs and publish events.
func (r *GroupRepo) ArchiveExpired(ctx context.Context, now time.Time) ([]models.Group, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE groups g
		SET is_active = false, is_archived = true, archived_at = $1, updated_at = $1
		WHERE g.is_active AND NOT g.is_archived AND g.expires_at <= $1
		RETURNING `+groupColumns,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("archive expired groups: %w", err)
	}
	defer rows.Close()

	return collectGroups(rows)
}

// CountActive returns the number of active, unexpired groups.
func (r *GroupRepo) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM groups
		WHERE is_active AND NOT is_archived AND expires_at > $1`, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active groups: %w", err)
	}
	return n, nil
}
