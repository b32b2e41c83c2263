// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/huddle/internal/groups"
	"github.com/tomtom215/huddle/internal/logging"
	"github.com/tomtom215/huddle/internal/models"
	"github.com/tomtom215/huddle/internal/validation"
)

// respondJSON writes a success envelope.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // nothing useful to do when the client went away
	json.NewEncoder(w).Encode(models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: &models.Metadata{Timestamp: time.Now()},
	})
}

// respondList writes a success envelope with a count.
func respondList(w http.ResponseWriter, status int, data any, count int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	json.NewEncoder(w).Encode(models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: &models.Metadata{Timestamp: time.Now(), Count: &count},
	})
}

// respondError writes an error envelope. Internal errors are logged with
// their cause; the client only sees the code and message.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil && status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).
			Int("status", status).
			Str("code", code).
			Msg("Request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	json.NewEncoder(w).Encode(models.APIResponse{
		Status: "error",
		Error:  &models.ErrorResponse{Code: code, Message: message},
	})
}

// respondValidationError surfaces field errors as details.
func respondValidationError(w http.ResponseWriter, verr *validation.RequestValidationError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	//nolint:errcheck
	json.NewEncoder(w).Encode(models.APIResponse{
		Status: "error",
		Error: &models.ErrorResponse{
			Code:    models.ErrCodeValidation,
			Message: verr.Error(),
			Details: verr.Fields,
		},
	})
}

// respondServiceError maps groups service errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, groups.ErrUnauthorized):
		respondError(w, r, http.StatusUnauthorized, models.ErrCodeUnauthorized, "authentication required", nil)
	case errors.Is(err, groups.ErrNotFound):
		respondError(w, r, http.StatusNotFound, models.ErrCodeNotFound, "group not found", nil)
	case errors.Is(err, groups.ErrGroupExpired):
		respondError(w, r, http.StatusGone, models.ErrCodeGroupExpired, "group has expired", nil)
	case errors.Is(err, groups.ErrOutOfRange):
		respondError(w, r, http.StatusForbidden, models.ErrCodeOutOfRange, "you are outside the group radius", nil)
	case errors.Is(err, groups.ErrNotCreator):
		respondError(w, r, http.StatusForbidden, models.ErrCodeForbidden, "only the group creator may do this", nil)
	case errors.Is(err, groups.ErrExtensionLimit):
		respondError(w, r, http.StatusConflict, models.ErrCodeConflict, "extension limit reached", nil)
	default:
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal, "internal error", err)
	}
}
