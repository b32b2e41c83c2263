// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package models

import "time"

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	Status   string         `json:"status"` // "success" or "error"
	Data     any            `json:"data,omitempty"`
	Metadata *Metadata      `json:"metadata,omitempty"`
	Error    *ErrorResponse `json:"error,omitempty"`
}

// Metadata carries response metadata.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Count     *int      `json:"count,omitempty"`
}

// ErrorResponse carries a machine-readable error code and a human message.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error codes returned by the API.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeGroupExpired  = "GROUP_EXPIRED"
	ErrCodeOutOfRange    = "OUT_OF_RANGE"
	ErrCodePayloadTooBig = "PAYLOAD_TOO_LARGE"
	ErrCodeInternal      = "INTERNAL_ERROR"
)
