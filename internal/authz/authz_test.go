// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/huddle/internal/auth"
)

func TestAllowed(t *testing.T) {
	e, err := New("operator")
	require.NoError(t, err)

	tests := []struct {
		role, obj, act string
		want           bool
	}{
		{"operator", ObjectSpatial, ActionReset, true},
		{"operator", ObjectSpatial, ActionDebug, true},
		{"operator", ObjectGroups, ActionSweep, true},
		{"member", ObjectSpatial, ActionReset, false},
		{"", ObjectSpatial, ActionReset, false},
		{"operator", "unknown", ActionReset, false},
	}

	for _, tt := range tests {
		got, err := e.Allowed(tt.role, tt.obj, tt.act)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s/%s/%s", tt.role, tt.obj, tt.act)
	}
}

func TestRequireMiddleware(t *testing.T) {
	e, err := New("operator")
	require.NoError(t, err)

	h := e.Require(ObjectSpatial, ActionReset)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	// Anonymous.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Authenticated without the role.
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(auth.ContextWithActor(req.Context(),
		auth.Authenticated(auth.Session{UserID: "u1", Role: "member"})))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Operator.
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(auth.ContextWithActor(req.Context(),
		auth.Authenticated(auth.Session{UserID: "u2", Role: "operator"})))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
