// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

// Package authz enforces role-based access to management endpoints
// using casbin. Policies are seeded in code; there is no external
// policy store to drift from.
package authz

import (
	"fmt"
	"net/http"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	"github.com/goccy/go-json"

	"github.com/tomtom215/huddle/internal/auth"
	"github.com/tomtom215/huddle/internal/models"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Objects and actions known to the policy.
const (
	ObjectSpatial = "spatial"
	ObjectGroups  = "groups"

	ActionReset = "reset"
	ActionDebug = "debug"
	ActionSweep = "sweep"
)

// Enforcer answers role/object/action questions.
type Enforcer struct {
	enforcer *casbin.Enforcer
}

// New builds the enforcer with the built-in policy set. operatorRole is
// the session role granted management access.
func New(operatorRole string) (*Enforcer, error) {
	m, err := casbinmodel.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("parse rbac model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}

	policies := [][]string{
		{operatorRole, ObjectSpatial, ActionReset},
		{operatorRole, ObjectSpatial, ActionDebug},
		{operatorRole, ObjectGroups, ActionSweep},
	}
	for _, p := range policies {
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, fmt.Errorf("seed policy %v: %w", p, err)
		}
	}

	return &Enforcer{enforcer: e}, nil
}

// Allowed reports whether the role may perform act on obj.
func (e *Enforcer) Allowed(role, obj, act string) (bool, error) {
	if role == "" {
		return false, nil
	}
	ok, err := e.enforcer.Enforce(role, obj, act)
	if err != nil {
		return false, fmt.Errorf("enforce %s %s %s: %w", role, obj, act, err)
	}
	return ok, nil
}

// Require returns middleware rejecting requests whose actor may not
// perform act on obj. Anonymous actors get 401, authenticated but
// unprivileged actors get 403.
func (e *Enforcer) Require(obj, act string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := auth.ActorFromContext(r.Context())
			sess, ok := actor.Session()
			if !ok {
				writeDenied(w, http.StatusUnauthorized, models.ErrCodeUnauthorized,
					"authentication required")
				return
			}

			allowed, err := e.Allowed(sess.Role, obj, act)
			if err != nil || !allowed {
				writeDenied(w, http.StatusForbidden, models.ErrCodeForbidden,
					"insufficient privileges")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeDenied(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // response write failure leaves nothing to do
	json.NewEncoder(w).Encode(models.APIResponse{
		Status: "error",
		Error:  &models.ErrorResponse{Code: code, Message: message},
	})
}
