// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

// Package supervisor runs the long-lived services (HTTP server, expiry
// sweeper, websocket hub) under a suture supervision tree. A crashing
// service is restarted with backoff instead of taking the process down.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/huddle/internal/logging"
)

// Tree is the root supervisor.
type Tree struct {
	root *suture.Supervisor
}

// New creates the root supervisor with supervision events routed through
// the application logger.
func New() *Tree {
	hook := (&sutureslog.Handler{Logger: logging.NewSlogLogger()}).MustHook()

	root := suture.New("huddle", suture.Spec{
		EventHook:        hook,
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
	return &Tree{root: root}
}

// Add registers a service. Services must block in Serve until their
// context is canceled.
func (t *Tree) Add(service suture.Service) suture.ServiceToken {
	return t.root.Add(service)
}

// Serve runs the tree until ctx is canceled and all services stopped.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}
