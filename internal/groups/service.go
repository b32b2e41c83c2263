// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

// Package groups implements the ephemeral group rules: creation with
// building association, proximity search, radius-gated joins and
// creator-only lifetime extension.
package groups

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/huddle/internal/auth"
	"github.com/tomtom215/huddle/internal/config"
	"github.com/tomtom215/huddle/internal/events"
	"github.com/tomtom215/huddle/internal/geo"
	"github.com/tomtom215/huddle/internal/logging"
	"github.com/tomtom215/huddle/internal/metrics"
	"github.com/tomtom215/huddle/internal/models"
	"github.com/tomtom215/huddle/internal/store"
)

// Service errors. The API layer maps these onto HTTP statuses.
var (
	ErrUnauthorized   = errors.New("authentication required")
	ErrNotFound       = errors.New("group not found")
	ErrGroupExpired   = errors.New("group expired")
	ErrOutOfRange     = errors.New("outside group radius")
	ErrNotCreator     = errors.New("only the creator may do this")
	ErrExtensionLimit = errors.New("extension limit reached")
)

// GroupStore is the subset of the group repository the service needs.
type GroupStore interface {
	Create(ctx context.Context, g *models.Group, building *models.Building) error
	Get(ctx context.Context, id string) (*models.Group, error)
	ListActiveNear(ctx context.Context, lat, lon, maxDistanceMeters float64, now time.Time) ([]models.Group, error)
	ListForUser(ctx context.Context, userID string, now time.Time) ([]models.MemberGroup, error)
	Extend(ctx context.Context, id string, by time.Duration, maxExtensions int) (*models.Group, error)
}

// MemberStore tracks memberships.
type MemberStore interface {
	Add(ctx context.Context, groupID, userID, role string, at time.Time) error
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	MemberGroupIDs(ctx context.Context, userID string) (map[string]bool, error)
}

// UserStore resolves session subjects to user rows.
type UserStore interface {
	Ensure(ctx context.Context, subject, displayName string) (*models.User, error)
}

// BuildingFinder answers nearest-building queries. A nil building with a
// nil error means no building in range, including the degraded store.
type BuildingFinder interface {
	NearestBuilding(ctx context.Context, lat, lon, bufferMeters float64) (*models.Building, error)
}

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event events.GroupEvent) error
}

// Service holds the group rules.
type Service struct {
	cfg       config.GroupsConfig
	groups    GroupStore
	members   MemberStore
	users     UserStore
	buildings BuildingFinder
	bus       Publisher
	metrics   *metrics.Metrics

	now func() time.Time
}

// New wires the service. bus and m may be nil in tests.
func New(cfg config.GroupsConfig, groups GroupStore, members MemberStore, users UserStore, buildings BuildingFinder, bus Publisher, m *metrics.Metrics) *Service {
	return &Service{
		cfg:       cfg,
		groups:    groups,
		members:   members,
		users:     users,
		buildings: buildings,
		bus:       bus,
		metrics:   m,
		now:       time.Now,
	}
}

// CreateInput is a request to create a group.
type CreateInput struct {
	Name        string
	Description string
	Latitude    float64
	Longitude   float64
	// RadiusMeters 0 means the configured default.
	RadiusMeters int
	// OrganizationID optionally scopes the group to an organization.
	OrganizationID *string
	// Anonymous suppresses the creator membership even for a session.
	Anonymous bool
}

// Create makes a new group anchored at the given point.
//
// Anonymous actors may create groups; only authenticated, non-anonymous
// creators get a membership row and the ability to extend. When the
// point lies inside a building footprint, the group is associated with
// that building.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (*models.Group, error) {
	now := s.now()

	radius := in.RadiusMeters
	if radius <= 0 {
		radius = s.cfg.DefaultRadius
	}

	g := &models.Group{
		ID:             uuid.New().String(),
		Name:           in.Name,
		Description:    in.Description,
		OrganizationID: in.OrganizationID,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		RadiusMeters:   radius,
		StorageFolder:  uuid.New().String(),
		ExpiresAt:      now.Add(s.cfg.Lifetime),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if sess, ok := actor.Session(); ok && !in.Anonymous {
		user, err := s.users.Ensure(ctx, sess.UserID, sess.DisplayName)
		if err != nil {
			return nil, fmt.Errorf("resolve creator: %w", err)
		}
		g.CreatorID = &user.ID
	}

	// Building association only when the anchor point is inside a
	// footprint; a merely nearby building is not the group's building.
	// A degraded spatial store answers nil with no error; an actual
	// lookup failure fails the create.
	building, err := s.buildings.NearestBuilding(ctx, in.Latitude, in.Longitude, 0)
	if err != nil {
		return nil, fmt.Errorf("building lookup: %w", err)
	}
	if building != nil && building.IsInside {
		g.BuildingID = &building.ID
		g.BuildingName = building.Name
	}

	if err := s.groups.Create(ctx, g, building); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	if g.CreatorID != nil {
		g.MemberCount = 1
	}

	if s.metrics != nil {
		s.metrics.GroupsCreatedTotal.Inc()
	}
	s.publish(ctx, events.GroupEvent{
		Type:      events.TopicGroupCreated,
		GroupID:   g.ID,
		GroupName: g.Name,
		UserID:    actor.UserID(),
	})

	logging.Ctx(ctx).Info().
		Str("group_id", g.ID).
		Bool("has_building", g.BuildingID != nil).
		Bool("anonymous", g.CreatorID == nil).
		Msg("Group created")
	return g, nil
}

// Nearby returns active groups within maxDistanceMeters of the point,
// closest first. maxDistanceMeters 0 means the configured default.
// CanJoin is true when the caller stands inside the group's radius;
// IsMember reflects the authenticated caller's memberships.
func (s *Service) Nearby(ctx context.Context, actor auth.Actor, lat, lon, maxDistanceMeters float64) ([]models.NearbyGroup, error) {
	now := s.now()

	if maxDistanceMeters <= 0 {
		maxDistanceMeters = s.cfg.MaxDistance
	}

	candidates, err := s.groups.ListActiveNear(ctx, lat, lon, maxDistanceMeters, now)
	if err != nil {
		return nil, fmt.Errorf("nearby groups: %w", err)
	}

	var memberOf map[string]bool
	if sess, ok := actor.Session(); ok {
		user, err := s.users.Ensure(ctx, sess.UserID, sess.DisplayName)
		if err != nil {
			return nil, fmt.Errorf("resolve caller: %w", err)
		}
		memberOf, err = s.members.MemberGroupIDs(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("caller memberships: %w", err)
		}
	}

	out := make([]models.NearbyGroup, 0, len(candidates))
	for _, g := range candidates {
		// Distances are reported to the nearest meter.
		distance := math.Round(geo.Haversine(lat, lon, g.Latitude, g.Longitude))
		if distance > maxDistanceMeters {
			continue
		}
		out = append(out, models.NearbyGroup{
			Group:          g,
			DistanceMeters: distance,
			CanJoin:        distance <= float64(g.RadiusMeters),
			IsMember:       memberOf[g.ID],
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	return out, nil
}

// Join adds the authenticated caller to the group. The caller's position
// must be inside the group radius.
func (s *Service) Join(ctx context.Context, actor auth.Actor, groupID string, lat, lon float64) (*models.Group, error) {
	sess, ok := actor.Session()
	if !ok {
		return nil, ErrUnauthorized
	}

	g, err := s.getActive(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if !geo.WithinRadius(lat, lon, g.Latitude, g.Longitude, float64(g.RadiusMeters)) {
		return nil, ErrOutOfRange
	}

	user, err := s.users.Ensure(ctx, sess.UserID, sess.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("resolve joiner: %w", err)
	}

	already, err := s.members.IsMember(ctx, g.ID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if err := s.members.Add(ctx, g.ID, user.ID, models.RoleMember, s.now()); err != nil {
		return nil, fmt.Errorf("join group: %w", err)
	}

	if !already {
		g.MemberCount++
		if s.metrics != nil {
			s.metrics.GroupsJoinedTotal.Inc()
		}
		s.publish(ctx, events.GroupEvent{
			Type:      events.TopicMemberJoined,
			GroupID:   g.ID,
			GroupName: g.Name,
			UserID:    user.ID,
		})
	}
	return g, nil
}

// ListForUser returns the caller's active groups with role and join time.
func (s *Service) ListForUser(ctx context.Context, actor auth.Actor) ([]models.MemberGroup, error) {
	sess, ok := actor.Session()
	if !ok {
		return nil, ErrUnauthorized
	}

	user, err := s.users.Ensure(ctx, sess.UserID, sess.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("resolve caller: %w", err)
	}

	list, err := s.groups.ListForUser(ctx, user.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return list, nil
}

// Get returns a single active group.
func (s *Service) Get(ctx context.Context, groupID string) (*models.Group, error) {
	return s.getActive(ctx, groupID)
}

// Extend pushes the group's expiry forward by one lifetime. Only the
// creator may extend, up to the configured cap.
func (s *Service) Extend(ctx context.Context, actor auth.Actor, groupID string) (*models.Group, error) {
	sess, ok := actor.Session()
	if !ok {
		return nil, ErrUnauthorized
	}

	g, err := s.getActive(ctx, groupID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Ensure(ctx, sess.UserID, sess.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("resolve caller: %w", err)
	}
	if g.CreatorID == nil || *g.CreatorID != user.ID {
		return nil, ErrNotCreator
	}
	if g.ExtensionCount >= s.cfg.MaxExtensions {
		return nil, ErrExtensionLimit
	}

	extended, err := s.groups.Extend(ctx, g.ID, s.cfg.Lifetime, s.cfg.MaxExtensions)
	if err != nil {
		// The conditional update loses when the cap was hit or the
		// group was archived between the read and the write.
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrExtensionLimit
		}
		return nil, fmt.Errorf("extend group: %w", err)
	}
	return extended, nil
}

func (s *Service) getActive(ctx context.Context, groupID string) (*models.Group, error) {
	g, err := s.groups.Get(ctx, groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get group %s: %w", groupID, err)
	}
	if !g.IsActive || g.IsArchived {
		return nil, ErrNotFound
	}
	if g.Expired(s.now()) {
		return nil, ErrGroupExpired
	}
	return g, nil
}

func (s *Service) publish(ctx context.Context, event events.GroupEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("topic", event.Type).Msg("Event publish failed")
	}
}
