// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/huddle/internal/auth"
	"github.com/tomtom215/huddle/internal/authz"
	"github.com/tomtom215/huddle/internal/middleware"
)

// NewRouter assembles the route tree.
func NewRouter(h *Handler, authMW *auth.Middleware, enforcer *authz.Enforcer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if !h.cfg.Security.RateLimitDisabled {
		r.Use(httprate.LimitByIP(h.cfg.Security.RateLimitReqs, h.cfg.Security.RateLimitWindow))
	}
	if h.metrics != nil {
		r.Use(middleware.Metrics(h.metrics))
	}
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(authMW.Optional)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/groups", func(r chi.Router) {
			r.Post("/nearby", h.handleNearbyGroups)
			r.Post("/", h.handleCreateGroup)
			r.With(authMW.Require).Get("/", h.handleListGroups)
			r.With(enforcer.Require(authz.ObjectGroups, authz.ActionSweep)).
				Post("/sweep", h.handleSweep)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetGroup)
				r.With(authMW.Require).Post("/join", h.handleJoinGroup)
				r.With(authMW.Require).Post("/extend", h.handleExtendGroup)

				r.Post("/files", h.handleUploadFile)
				r.Get("/files", h.handleListFiles)
				r.Get("/files/{fileId}", h.handleDownloadFile)

				r.Get("/events", h.handleGroupEvents)
			})
		})

		r.Route("/buildings", func(r chi.Router) {
			r.Post("/nearest", h.handleNearestBuilding)
			r.Get("/status", h.handleBuildingsStatus)
			r.Get("/test", h.handleBuildingsTest)
			r.With(enforcer.Require(authz.ObjectSpatial, authz.ActionDebug)).
				Get("/debug", h.handleBuildingsDebug)
			r.With(enforcer.Require(authz.ObjectSpatial, authz.ActionReset)).
				Post("/reset", h.handleBuildingsReset)
		})

		r.Get("/health/live", h.handleHealthLive)
		r.Get("/health/ready", h.handleHealthReady)
	})

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
			h.metrics.Registry, promhttp.HandlerOpts{}))
	}

	return r
}
