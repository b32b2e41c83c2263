// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

// Package sweeper archives groups past their expiry, drops their file
// blobs and announces the expiry on the event bus.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/huddle/internal/events"
	"github.com/tomtom215/huddle/internal/logging"
	"github.com/tomtom215/huddle/internal/metrics"
	"github.com/tomtom215/huddle/internal/models"
)

// GroupArchiver is the store surface the sweeper needs.
type GroupArchiver interface {
	ArchiveExpired(ctx context.Context, now time.Time) ([]models.Group, error)
	CountActive(ctx context.Context, now time.Time) (int64, error)
}

// BlobDeleter removes a group's stored blobs.
type BlobDeleter interface {
	DeleteFolder(storageFolder string) (int, error)
}

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event events.GroupEvent) error
}

// Sweeper runs the expiry pass on an interval.
type Sweeper struct {
	groups   GroupArchiver
	blobs    BlobDeleter
	bus      Publisher
	metrics  *metrics.Metrics
	interval time.Duration

	now func() time.Time
}

// New creates a sweeper. blobs, bus and m may be nil.
func New(groups GroupArchiver, blobs BlobDeleter, bus Publisher, m *metrics.Metrics, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		groups:   groups,
		blobs:    blobs,
		bus:      bus,
		metrics:  m,
		interval: interval,
		now:      time.Now,
	}
}

// Serve runs sweep passes until ctx is canceled. It satisfies the
// supervisor service contract; a failed pass is logged and retried on
// the next tick rather than restarting the service.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// One pass at startup picks up groups that expired while down.
	if err := s.Sweep(ctx); err != nil {
		logging.Err(err).Msg("Startup sweep failed")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				logging.Err(err).Msg("Sweep failed")
			}
		}
	}
}

// Sweep archives all expired groups once.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.now()

	expired, err := s.groups.ArchiveExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("archive expired: %w", err)
	}

	for _, g := range expired {
		if s.blobs != nil {
			if n, err := s.blobs.DeleteFolder(g.StorageFolder); err != nil {
				logging.Err(err).Str("group_id", g.ID).Msg("Blob cleanup failed")
			} else if n > 0 {
				logging.Info().Str("group_id", g.ID).Int("blobs", n).Msg("Blobs removed")
			}
		}

		if s.bus != nil {
			if err := s.bus.Publish(ctx, events.GroupEvent{
				Type:      events.TopicGroupExpired,
				GroupID:   g.ID,
				GroupName: g.Name,
			}); err != nil {
				logging.Err(err).Str("group_id", g.ID).Msg("Expiry event publish failed")
			}
		}

		if s.metrics != nil {
			s.metrics.GroupsExpiredTotal.Inc()
		}
	}

	if s.metrics != nil {
		if active, err := s.groups.CountActive(ctx, now); err == nil {
			s.metrics.GroupsActive.Set(float64(active))
		}
	}

	if len(expired) > 0 {
		logging.Info().Int("archived", len(expired)).Msg("Sweep archived expired groups")
	}
	return nil
}
