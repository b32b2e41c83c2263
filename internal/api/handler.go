// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

// Package api exposes the HTTP surface: group operations, building
// lookups, file exchange, the websocket event stream and health checks.
package api

import (
	"context"
	"net/http"

	"github.com/tomtom215/huddle/internal/auth"
	"github.com/tomtom215/huddle/internal/config"
	"github.com/tomtom215/huddle/internal/groups"
	"github.com/tomtom215/huddle/internal/metrics"
	"github.com/tomtom215/huddle/internal/models"
)

// GroupService is the group operations surface used by handlers.
type GroupService interface {
	Create(ctx context.Context, actor auth.Actor, in groups.CreateInput) (*models.Group, error)
	Nearby(ctx context.Context, actor auth.Actor, lat, lon, maxDistanceMeters float64) ([]models.NearbyGroup, error)
	Join(ctx context.Context, actor auth.Actor, groupID string, lat, lon float64) (*models.Group, error)
	ListForUser(ctx context.Context, actor auth.Actor) ([]models.MemberGroup, error)
	Get(ctx context.Context, groupID string) (*models.Group, error)
	Extend(ctx context.Context, actor auth.Actor, groupID string) (*models.Group, error)
}

// BuildingStore is the spatial store surface used by handlers.
type BuildingStore interface {
	NearestBuilding(ctx context.Context, lat, lon, bufferMeters float64) (*models.Building, error)
	Status() models.SpatialStatus
	Reset(ctx context.Context) error
	Sample(ctx context.Context, limit int) ([]models.Building, error)
	InsertBuilding(ctx context.Context, id, name, address, wkt string) error
	DeleteBuilding(ctx context.Context, id string) error
}

// FileMetaStore persists group file metadata.
type FileMetaStore interface {
	Create(ctx context.Context, f *models.GroupFile) error
	Get(ctx context.Context, id string) (*models.GroupFile, error)
	ListForGroup(ctx context.Context, groupID string) ([]models.GroupFile, error)
}

// BlobStore holds file bytes.
type BlobStore interface {
	Put(storageFolder, fileID string, data []byte) error
	Get(storageFolder, fileID string) ([]byte, error)
}

// UserResolver maps session subjects to user rows.
type UserResolver interface {
	Ensure(ctx context.Context, subject, displayName string) (*models.User, error)
}

// Pinger reports database liveness for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EventStreamer upgrades a request into a group event stream.
type EventStreamer interface {
	Subscribe(w http.ResponseWriter, r *http.Request, groupID string)
}

// FileEventPublisher announces uploads. Kept narrow so handler tests do
// not need the bus.
type FileEventPublisher interface {
	PublishFileUploaded(ctx context.Context, groupID, fileID, fileName, userID string)
}

// SweepRunner triggers an expiry pass outside the regular interval.
type SweepRunner interface {
	Sweep(ctx context.Context) error
}

// Handler carries the dependencies for all routes.
type Handler struct {
	cfg      *config.Config
	groups   GroupService
	spatial  BuildingStore
	fileMeta FileMetaStore
	blobs    BlobStore
	users    UserResolver
	db       Pinger
	hub      EventStreamer
	events   FileEventPublisher
	sweeper  SweepRunner
	metrics  *metrics.Metrics
}

// NewHandler wires the handler. Optional dependencies (hub, events,
// metrics) may be nil; the matching routes then degrade gracefully.
func NewHandler(
	cfg *config.Config,
	groupSvc GroupService,
	spatialStore BuildingStore,
	fileMeta FileMetaStore,
	blobs BlobStore,
	users UserResolver,
	db Pinger,
	hub EventStreamer,
	fileEvents FileEventPublisher,
	sweepRunner SweepRunner,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		cfg:      cfg,
		groups:   groupSvc,
		spatial:  spatialStore,
		fileMeta: fileMeta,
		blobs:    blobs,
		users:    users,
		db:       db,
		hub:      hub,
		events:   fileEvents,
		sweeper:  sweepRunner,
		metrics:  m,
	}
}
