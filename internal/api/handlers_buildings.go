// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package api

import (
	"net/http"

	"github.com/tomtom215/huddle/internal/logging"
	"github.com/tomtom215/huddle/internal/models"
)

// handleNearestBuilding resolves a point to its building, or null when
// no footprint is within the buffer. A degraded spatial store also
// yields null rather than an error.
//
// POST /api/v1/buildings/nearest
func (h *Handler) handleNearestBuilding(w http.ResponseWriter, r *http.Request) {
	var req NearestBuildingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	building, err := h.spatial.NearestBuilding(r.Context(), *req.Latitude, *req.Longitude, req.BufferMeters)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal,
			"building lookup failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"building": building})
}

// handleBuildingsStatus reports spatial store health.
//
// GET /api/v1/buildings/status
func (h *Handler) handleBuildingsStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.spatial.Status())
}

// handleBuildingsDebug returns a sample of loaded footprints. Operator
// only.
//
// GET /api/v1/buildings/debug
func (h *Handler) handleBuildingsDebug(w http.ResponseWriter, r *http.Request) {
	sample, err := h.spatial.Sample(r.Context(), 10)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal,
			"sample failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status": h.spatial.Status(),
		"sample": sample,
	})
}

// handleBuildingsTest runs a self-check lookup against a footprint
// inserted on the fly, proving the containment path end to end.
//
// GET /api/v1/buildings/test
func (h *Handler) handleBuildingsTest(w http.ResponseWriter, r *http.Request) {
	status := h.spatial.Status()
	if !status.Available {
		respondJSON(w, http.StatusOK, map[string]any{
			"ok":     false,
			"reason": "spatial store unavailable",
			"status": status,
		})
		return
	}

	// A tiny square around a point in the middle of the ocean, far from
	// any real footprint. The row is removed again after the lookup so
	// the diagnostic leaves the index as it found it.
	const selfTestID = "self-test"
	const selfTestWKT = "POLYGON((-30.0001 -30.0001, -29.9999 -30.0001, -29.9999 -29.9999, -30.0001 -29.9999, -30.0001 -30.0001))"
	if err := h.spatial.InsertBuilding(r.Context(), selfTestID, "Self Test", "", selfTestWKT); err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal,
			"self-test insert failed", err)
		return
	}
	defer func() {
		if err := h.spatial.DeleteBuilding(r.Context(), selfTestID); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Self-test cleanup failed")
		}
	}()

	building, err := h.spatial.NearestBuilding(r.Context(), -30, -30, 40)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal,
			"self-test lookup failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"ok":       building != nil && building.IsInside,
		"building": building,
	})
}

// handleBuildingsReset rebuilds the spatial store from the configured
// dataset. Operator only.
//
// POST /api/v1/buildings/reset
func (h *Handler) handleBuildingsReset(w http.ResponseWriter, r *http.Request) {
	if err := h.spatial.Reset(r.Context()); err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal,
			"spatial store reset failed", err)
		return
	}

	respondJSON(w, http.StatusOK, h.spatial.Status())
}
