// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package auth

import "context"

// Session is an authenticated caller.
type Session struct {
	UserID      string
	DisplayName string
	Role        string
}

// Actor is the caller identity attached to every request. It is an
// explicit optional: the zero value is the anonymous actor, and an
// authenticated session is only reachable through the (session, ok)
// accessor.
type Actor struct {
	session *Session
}

// Anonymous returns the anonymous actor.
func Anonymous() Actor {
	return Actor{}
}

// Authenticated returns an actor backed by the given session.
func Authenticated(s Session) Actor {
	return Actor{session: &s}
}

// Session returns the session and true when the actor is authenticated.
func (a Actor) Session() (Session, bool) {
	if a.session == nil {
		return Session{}, false
	}
	return *a.session, true
}

// UserID returns the authenticated user ID, or "" for anonymous actors.
func (a Actor) UserID() string {
	if a.session == nil {
		return ""
	}
	return a.session.UserID
}

// IsAuthenticated reports whether the actor carries a session.
func (a Actor) IsAuthenticated() bool {
	return a.session != nil
}

// HasRole reports whether the actor's session carries the given role.
func (a Actor) HasRole(role string) bool {
	return a.session != nil && a.session.Role == role
}

type actorKey struct{}

// ContextWithActor attaches the actor to the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext retrieves the actor, defaulting to anonymous.
func ActorFromContext(ctx context.Context) Actor {
	if actor, ok := ctx.Value(actorKey{}).(Actor); ok {
		return actor
	}
	return Anonymous()
}
