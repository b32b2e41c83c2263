// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

// Package models defines the domain types shared across stores, services,
// and the API layer.
package models

import "time"

// Building is a footprint from the spatial store. Geometry is WKT.
type Building struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Address  string  `json:"address,omitempty"`
	Geometry string  `json:"geometry,omitempty"`
	Area     float64 `json:"area,omitempty"`

	// DistanceMeters is the distance from the query point. Zero when the
	// point lies inside the footprint.
	DistanceMeters float64 `json:"distanceMeters"`

	// IsInside reports whether the query point is contained in the
	// footprint polygon rather than matched by buffer search.
	IsInside bool `json:"isInside"`
}

// Group is an ephemeral location-bound group.
type Group struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	OrganizationID *string    `json:"organizationId,omitempty"`
	CreatorID      *string    `json:"creatorId,omitempty"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	RadiusMeters   int        `json:"radiusMeters"`
	BuildingID     *string    `json:"buildingId,omitempty"`
	BuildingName   string     `json:"buildingName,omitempty"`
	StorageFolder  string     `json:"storageFolder"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	ExtensionCount int        `json:"extensionCount"`
	IsActive       bool       `json:"isActive"`
	IsArchived     bool       `json:"isArchived"`
	ArchivedAt     *time.Time `json:"archivedAt,omitempty"`
	MemberCount    int        `json:"memberCount"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Expired reports whether the group's lifetime has elapsed at the
// given instant.
func (g *Group) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// NearbyGroup is a group decorated with the caller's relation to it.
type NearbyGroup struct {
	Group
	DistanceMeters float64 `json:"distanceMeters"`
	CanJoin        bool    `json:"canJoin"`
	IsMember       bool    `json:"isMember"`
}

// MemberGroup is a group annotated with the caller's own membership.
type MemberGroup struct {
	Group
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Member roles.
const (
	RoleCreator  = "creator"
	RoleMember   = "member"
	RoleOperator = "operator"
)

// Member is a user's membership in a group.
type Member struct {
	GroupID  string    `json:"groupId"`
	UserID   string    `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// GroupFile is metadata for a file shared inside a group. Blob bytes
// live in the file store, keyed by ID.
type GroupFile struct {
	ID          string    `json:"id"`
	GroupID     string    `json:"groupId"`
	UploaderID  *string   `json:"uploaderId,omitempty"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
}

// User is a known session subject.
type User struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	DisplayName string    `json:"displayName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Organization scopes groups created on its behalf.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// SpatialStatus describes the spatial store for diagnostics endpoints.
type SpatialStatus struct {
	Available        bool      `json:"available"`
	SpatialExtension bool      `json:"spatialExtension"`
	BuildingCount    int64     `json:"buildingCount"`
	DatasetPath      string    `json:"datasetPath,omitempty"`
	LoadedAt         time.Time `json:"loadedAt,omitempty"`
	LastError        string    `json:"lastError,omitempty"`
}
