// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/huddle/internal/auth"
	"github.com/tomtom215/huddle/internal/groups"
	"github.com/tomtom215/huddle/internal/models"
)

// handleNearbyGroups returns active groups around a point, closest first.
//
// POST /api/v1/groups/nearby
func (h *Handler) handleNearbyGroups(w http.ResponseWriter, r *http.Request) {
	var req NearbyGroupsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	actor := auth.ActorFromContext(r.Context())
	out, err := h.groups.Nearby(r.Context(), actor, *req.Latitude, *req.Longitude, req.MaxDistance)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondList(w, http.StatusOK, out, len(out))
}

// handleCreateGroup creates a group anchored at the caller's position.
// Works for anonymous callers too; they just get no membership row.
//
// POST /api/v1/groups
func (h *Handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	actor := auth.ActorFromContext(r.Context())
	g, err := h.groups.Create(r.Context(), actor, groups.CreateInput{
		Name:           req.Name,
		Description:    req.Description,
		Latitude:       *req.Latitude,
		Longitude:      *req.Longitude,
		RadiusMeters:   req.RadiusMeters,
		OrganizationID: req.OrganizationID,
		Anonymous:      req.IsAnonymous,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, g)
}

// handleListGroups returns the authenticated caller's groups.
//
// GET /api/v1/groups
func (h *Handler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	out, err := h.groups.ListForUser(r.Context(), actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondList(w, http.StatusOK, out, len(out))
}

// handleGetGroup returns one active group.
//
// GET /api/v1/groups/{id}
func (h *Handler) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.groups.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, g)
}

// handleJoinGroup adds the caller to a group if they stand inside its
// radius.
//
// POST /api/v1/groups/{id}/join
func (h *Handler) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	var req JoinGroupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	actor := auth.ActorFromContext(r.Context())
	g, err := h.groups.Join(r.Context(), actor, chi.URLParam(r, "id"), *req.Latitude, *req.Longitude)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, g)
}

// handleExtendGroup pushes the group expiry forward. Creator only.
//
// POST /api/v1/groups/{id}/extend
func (h *Handler) handleExtendGroup(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	g, err := h.groups.Extend(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, g)
}

// handleSweep runs an expiry pass immediately. Operator only.
//
// POST /api/v1/groups/sweep
func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		respondError(w, r, http.StatusServiceUnavailable, models.ErrCodeInternal,
			"sweeper not available", nil)
		return
	}
	if err := h.sweeper.Sweep(r.Context()); err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal,
			"sweep failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "swept"})
}

// handleGroupEvents streams the group's lifecycle events over a
// websocket.
//
// GET /api/v1/groups/{id}/events
func (h *Handler) handleGroupEvents(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, r, http.StatusServiceUnavailable, models.ErrCodeInternal,
			"event streaming not available", nil)
		return
	}

	groupID := chi.URLParam(r, "id")
	if _, err := h.groups.Get(r.Context(), groupID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	h.hub.Subscribe(w, r, groupID)
}
