// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles all application collectors.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	GroupsCreatedTotal prometheus.Counter
	GroupsJoinedTotal  prometheus.Counter
	GroupsExpiredTotal prometheus.Counter
	GroupsActive       prometheus.Gauge

	SpatialLookupsTotal   *prometheus.CounterVec
	SpatialLookupDuration prometheus.Histogram

	FilesUploadedTotal prometheus.Counter
	EventsPublished    *prometheus.CounterVec
	WSConnections      prometheus.Gauge
}

// New creates a Metrics instance with its own registry. The registry also
// carries the standard Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		Registry: reg,
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "huddle",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		GroupsCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "groups_created_total",
			Help:      "Groups created since start.",
		}),
		GroupsJoinedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "groups_joined_total",
			Help:      "Successful group joins since start.",
		}),
		GroupsExpiredTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "groups_expired_total",
			Help:      "Groups archived by the expiry sweeper.",
		}),
		GroupsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "huddle",
			Name:      "groups_active",
			Help:      "Active, unexpired groups.",
		}),
		SpatialLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "spatial_lookups_total",
			Help:      "Nearest-building lookups by result (inside, nearby, none, error).",
		}, []string{"result"}),
		SpatialLookupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "huddle",
			Name:      "spatial_lookup_duration_seconds",
			Help:      "Nearest-building lookup latency.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		FilesUploadedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "files_uploaded_total",
			Help:      "Group files uploaded since start.",
		}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "events_published_total",
			Help:      "Lifecycle events published by topic.",
		}, []string{"topic"}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "huddle",
			Name:      "ws_connections",
			Help:      "Open websocket event-stream connections.",
		}),
	}

	return m
}

// Spatial lookup result labels.
const (
	SpatialResultInside = "inside"
	SpatialResultNearby = "nearby"
	SpatialResultNone   = "none"
	SpatialResultError  = "error"
)
