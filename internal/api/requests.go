// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/huddle/internal/models"
	"github.com/tomtom215/huddle/internal/validation"
)

// Coordinates use pointers so "missing" and "zero" stay distinct;
// (0, 0) is a valid point.

// NearbyGroupsRequest is the body of POST /api/v1/groups/nearby.
type NearbyGroupsRequest struct {
	Latitude    *float64 `json:"latitude" validate:"required,latitude"`
	Longitude   *float64 `json:"longitude" validate:"required,longitude"`
	MaxDistance float64  `json:"maxDistance" validate:"omitempty,gt=0,lte=10000"`
}

// CreateGroupRequest is the body of POST /api/v1/groups.
type CreateGroupRequest struct {
	Name           string   `json:"name" validate:"omitempty,max=120"`
	Description    string   `json:"description" validate:"max=1000"`
	Latitude       *float64 `json:"latitude" validate:"required,latitude"`
	Longitude      *float64 `json:"longitude" validate:"required,longitude"`
	RadiusMeters   int      `json:"radiusMeters" validate:"omitempty,gt=0,lte=5000"`
	OrganizationID *string  `json:"organizationId" validate:"omitempty,uuid"`
	IsAnonymous    bool     `json:"isAnonymous"`
}

// JoinGroupRequest is the body of POST /api/v1/groups/{id}/join.
type JoinGroupRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

// NearestBuildingRequest is the body of POST /api/v1/buildings/nearest.
type NearestBuildingRequest struct {
	Latitude     *float64 `json:"latitude" validate:"required,latitude"`
	Longitude    *float64 `json:"longitude" validate:"required,longitude"`
	BufferMeters float64  `json:"bufferMeters" validate:"omitempty,gt=0,lte=1000"`
}

// decodeAndValidate decodes the JSON body into req and runs validation.
// It writes the error response itself and reports whether the handler
// should continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation,
			"malformed JSON body", nil)
		return false
	}

	if err := validation.Struct(req); err != nil {
		var verr *validation.RequestValidationError
		if errors.As(err, &verr) {
			respondValidationError(w, verr)
		} else {
			respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation,
				"invalid request", nil)
		}
		return false
	}
	return true
}
