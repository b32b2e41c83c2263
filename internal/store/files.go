// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/huddle/internal/models"
)

// FileRepo persists group file metadata. Blob bytes live in the badger
// file store keyed by file ID.
type FileRepo struct {
	pool *pgxpool.Pool
}

// Create inserts file metadata.
func (r *FileRepo) Create(ctx context.Context, f *models.GroupFile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO group_files (id, group_id, uploader_id, name, size, content_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.GroupID, f.UploaderID, f.Name, f.Size, f.ContentType, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert file %s: %w", f.ID, err)
	}
	return nil
}

// Get returns file metadata by ID.
func (r *FileRepo) Get(ctx context.Context, id string) (*models.GroupFile, error) {
	var f models.GroupFile
	err := r.pool.QueryRow(ctx, `
		SELECT id, group_id, uploader_id, name, size, content_type, created_at
		FROM group_files WHERE id = $1`, id).
		Scan(&f.ID, &f.GroupID, &f.UploaderID, &f.Name, &f.Size, &f.ContentType, &f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", id, mapNoRows(err))
	}
	return &f, nil
}

// ListForGroup returns a group's files, newest first.
func (r *FileRepo) ListForGroup(ctx context.Context, groupID string) ([]models.GroupFile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, group_id, uploader_id, name, size, content_type, created_at
		FROM group_files
		WHERE group_id = $1
		ORDER BY created_at DESC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list files for group %s: %w", groupID, err)
	}
	defer rows.Close()

	var out []models.GroupFile
	for rows.Next() {
		var f models.GroupFile
		if err := rows.Scan(&f.ID, &f.GroupID, &f.UploaderID, &f.Name, &f.Size, &f.ContentType, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// IDsForGroup returns the file IDs of a group so the sweeper can delete
// the corresponding blobs.
func (r *FileRepo) IDsForGroup(ctx context.Context, groupID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id FROM group_files WHERE group_id = $1", groupID)
	if err != nil {
		return nil, fmt.Errorf("list file ids for group %s: %w", groupID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
