// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/huddle/internal/logging"
)

// migrations run in order inside a single transaction each. Never edit
// an applied migration; append a new one.
var migrations = []string{
	// 1: base schema
	`
	CREATE TABLE IF NOT EXISTS users (
		id           UUID PRIMARY KEY,
		subject      TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS organizations (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS buildings (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		address    TEXT NOT NULL DEFAULT '',
		geometry   TEXT NOT NULL DEFAULT '',
		area       DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS groups (
		id              UUID PRIMARY KEY,
		name            TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		organization_id UUID REFERENCES organizations(id),
		creator_id      UUID REFERENCES users(id),
		latitude        DOUBLE PRECISION NOT NULL,
		longitude       DOUBLE PRECISION NOT NULL,
		radius_meters   INTEGER NOT NULL DEFAULT 100,
		building_id     TEXT REFERENCES buildings(id),
		building_name   TEXT NOT NULL DEFAULT '',
		storage_folder  TEXT NOT NULL UNIQUE,
		expires_at      TIMESTAMPTZ NOT NULL,
		extension_count INTEGER NOT NULL DEFAULT 0,
		is_active       BOOLEAN NOT NULL DEFAULT true,
		is_archived     BOOLEAN NOT NULL DEFAULT false,
		archived_at     TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_groups_active
		ON groups (is_active, expires_at) WHERE NOT is_archived;
	CREATE INDEX IF NOT EXISTS idx_groups_location
		ON groups (latitude, longitude) WHERE is_active AND NOT is_archived;

	CREATE TABLE IF NOT EXISTS group_members (
		group_id  UUID NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		user_id   UUID NOT NULL REFERENCES users(id),
		role      TEXT NOT NULL DEFAULT 'member',
		joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (group_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members (user_id);
	`,
	// 2: group files metadata
	`
	CREATE TABLE IF NOT EXISTS group_files (
		id           UUID PRIMARY KEY,
		group_id     UUID NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		uploader_id  UUID REFERENCES users(id),
		name         TEXT NOT NULL,
		size         BIGINT NOT NULL,
		content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_group_files_group ON group_files (group_id);
	`,
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	err = pool.QueryRow(ctx,
		"SELECT coalesce(max(version), 0) FROM schema_migrations").Scan(&current)
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", version, err)
		}

		if _, err := tx.Exec(ctx, migrations[i]); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("apply migration %d: %w", version, err)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %d: %w", version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}

		logging.Info().Int("version", version).Msg("Migration applied")
	}
	return nil
}
