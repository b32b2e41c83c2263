// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package auth

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/huddle/internal/logging"
	"github.com/tomtom215/huddle/internal/models"
)

// Middleware resolves bearer tokens into request actors.
type Middleware struct {
	manager *JWTManager
}

// NewMiddleware creates auth middleware. A nil manager disables token
// verification; every request is then anonymous.
func NewMiddleware(manager *JWTManager) *Middleware {
	return &Middleware{manager: manager}
}

// Optional attaches an Actor to every request. Requests without a valid
// bearer token proceed as anonymous; a malformed or expired token is
// rejected rather than silently downgraded.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" || m.manager == nil {
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), Anonymous())))
			return
		}

		claims, err := m.manager.Validate(token)
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Rejected session token")
			writeUnauthorized(w, "invalid or expired session token")
			return
		}

		actor := Authenticated(Session{
			UserID:      claims.UserID,
			DisplayName: claims.DisplayName,
			Role:        claims.Role,
		})
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// Require rejects anonymous requests with 401. It assumes Optional ran
// earlier in the chain.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ActorFromContext(r.Context()).IsAuthenticated() {
			writeUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	//nolint:errcheck // response write failure leaves nothing to do
	json.NewEncoder(w).Encode(models.APIResponse{
		Status: "error",
		Error: &models.ErrorResponse{
			Code:    models.ErrCodeUnauthorized,
			Message: message,
		},
	})
}
