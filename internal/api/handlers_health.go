// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package api

import (
	"net/http"

	"github.com/tomtom215/huddle/internal/models"
)

// handleHealthLive always answers OK while the process runs.
//
// GET /api/v1/health/live
func (h *Handler) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHealthReady checks the database. The spatial store is reported
// but never fails readiness; the service runs degraded without it.
//
// GET /api/v1/health/ready
func (h *Handler) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	ready := true

	if err := h.db.Ping(r.Context()); err != nil {
		checks["database"] = err.Error()
		ready = false
	}

	if h.spatial.Status().Available {
		checks["spatial"] = "ok"
	} else {
		checks["spatial"] = "degraded"
	}

	if !ready {
		respondError(w, r, http.StatusServiceUnavailable, models.ErrCodeInternal,
			"not ready", nil)
		return
	}
	respondJSON(w, http.StatusOK, checks)
}
