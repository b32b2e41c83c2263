// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

// Command server runs the Huddle API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/huddle/internal/api"
	"github.com/tomtom215/huddle/internal/auth"
	"github.com/tomtom215/huddle/internal/authz"
	"github.com/tomtom215/huddle/internal/config"
	"github.com/tomtom215/huddle/internal/events"
	"github.com/tomtom215/huddle/internal/files"
	"github.com/tomtom215/huddle/internal/groups"
	"github.com/tomtom215/huddle/internal/logging"
	"github.com/tomtom215/huddle/internal/metrics"
	"github.com/tomtom215/huddle/internal/spatial"
	"github.com/tomtom215/huddle/internal/store"
	"github.com/tomtom215/huddle/internal/supervisor"
	"github.com/tomtom215/huddle/internal/sweeper"
	"github.com/tomtom215/huddle/internal/ws"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("Huddle starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	spatialStore, err := spatial.New(cfg.Spatial, m)
	if err != nil {
		return err
	}
	defer spatialStore.Close()

	blobs, err := files.Open(cfg.Files.Path)
	if err != nil {
		return err
	}
	defer blobs.Close()

	bus := events.NewBus(m)
	defer bus.Close()

	var jwtManager *auth.JWTManager
	if cfg.Security.JWTSecret != "" {
		jwtManager, err = auth.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.SessionTimeout)
		if err != nil {
			return err
		}
	} else {
		logging.Warn().Msg("No JWT secret configured, all requests are anonymous")
	}

	enforcer, err := authz.New(cfg.Security.OperatorRole)
	if err != nil {
		return err
	}

	groupSvc := groups.New(cfg.Groups, db.Groups, db.Members, db.Users, spatialStore, bus, m)
	hub := ws.NewHub(bus, m)
	sweep := sweeper.New(db.Groups, blobs, bus, m, cfg.Groups.SweepInterval)

	handler := api.NewHandler(cfg, groupSvc, spatialStore, db.Files, blobs, db.Users, db, hub, bus, sweep, m)
	router := api.NewRouter(handler, auth.NewMiddleware(jwtManager), enforcer)

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree := supervisor.New()
	tree.Add(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))
	tree.Add(hub)
	tree.Add(sweep)

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logging.Info().Msg("Huddle stopped")
	return nil
}
