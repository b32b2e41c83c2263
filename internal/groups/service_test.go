// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package groups

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/huddle/internal/auth"
	"github.com/tomtom215/huddle/internal/config"
	"github.com/tomtom215/huddle/internal/events"
	"github.com/tomtom215/huddle/internal/models"
	"github.com/tomtom215/huddle/internal/store"
)

// Marienplatz, Munich. Nearby points are offset in degrees; 0.001 deg of
// latitude is about 111m.
const (
	baseLat = 48.1374
	baseLon = 11.5755
)

type fakeGroupStore struct {
	groups       map[string]*models.Group
	lastBuilding *models.Building
}

func newFakeGroupStore() *fakeGroupStore {
	return &fakeGroupStore{groups: map[string]*models.Group{}}
}

func (f *fakeGroupStore) Create(_ context.Context, g *models.Group, building *models.Building) error {
	for _, existing := range f.groups {
		if existing.StorageFolder == g.StorageFolder {
			return assertionError("duplicate storage folder")
		}
	}
	f.lastBuilding = building
	copied := *g
	f.groups[g.ID] = &copied
	return nil
}

func (f *fakeGroupStore) Get(_ context.Context, id string) (*models.Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *g
	return &copied, nil
}

func (f *fakeGroupStore) ListActiveNear(_ context.Context, _, _, _ float64, now time.Time) ([]models.Group, error) {
	var out []models.Group
	for _, g := range f.groups {
		if g.IsActive && !g.IsArchived && g.ExpiresAt.After(now) {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeGroupStore) ListForUser(_ context.Context, userID string, now time.Time) ([]models.MemberGroup, error) {
	var out []models.MemberGroup
	for _, g := range f.groups {
		if g.CreatorID != nil && *g.CreatorID == userID && g.ExpiresAt.After(now) {
			out = append(out, models.MemberGroup{Group: *g, Role: models.RoleCreator, JoinedAt: g.CreatedAt})
		}
	}
	return out, nil
}

func (f *fakeGroupStore) Extend(_ context.Context, id string, by time.Duration, maxExtensions int) (*models.Group, error) {
	g, ok := f.groups[id]
	if !ok || g.ExtensionCount >= maxExtensions {
		return nil, store.ErrNotFound
	}
	g.ExpiresAt = g.ExpiresAt.Add(by)
	g.ExtensionCount++
	copied := *g
	return &copied, nil
}

type assertionError string

func (e assertionError) Error() string { return string(e) }

type fakeMemberStore struct {
	members map[string]map[string]string // groupID -> userID -> role
}

func newFakeMemberStore() *fakeMemberStore {
	return &fakeMemberStore{members: map[string]map[string]string{}}
}

func (f *fakeMemberStore) Add(_ context.Context, groupID, userID, role string, _ time.Time) error {
	if f.members[groupID] == nil {
		f.members[groupID] = map[string]string{}
	}
	if _, ok := f.members[groupID][userID]; !ok {
		f.members[groupID][userID] = role
	}
	return nil
}

func (f *fakeMemberStore) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	_, ok := f.members[groupID][userID]
	return ok, nil
}

func (f *fakeMemberStore) MemberGroupIDs(_ context.Context, userID string) (map[string]bool, error) {
	out := map[string]bool{}
	for groupID, users := range f.members {
		if _, ok := users[userID]; ok {
			out[groupID] = true
		}
	}
	return out, nil
}

type fakeUserStore struct{}

func (fakeUserStore) Ensure(_ context.Context, subject, displayName string) (*models.User, error) {
	// Identity mapping keeps assertions simple.
	return &models.User{ID: subject, Subject: subject, DisplayName: displayName}, nil
}

type fakeBuildingFinder struct {
	building *models.Building
	err      error
}

func (f *fakeBuildingFinder) NearestBuilding(context.Context, float64, float64, float64) (*models.Building, error) {
	return f.building, f.err
}

type capturingBus struct {
	published []events.GroupEvent
}

func (b *capturingBus) Publish(_ context.Context, event events.GroupEvent) error {
	b.published = append(b.published, event)
	return nil
}

type fixture struct {
	svc     *Service
	groups  *fakeGroupStore
	members *fakeMemberStore
	finder  *fakeBuildingFinder
	bus     *capturingBus
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		groups:  newFakeGroupStore(),
		members: newFakeMemberStore(),
		finder:  &fakeBuildingFinder{},
		bus:     &capturingBus{},
		now:     time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	f.svc = New(config.GroupsConfig{
		Lifetime:      4 * time.Hour,
		DefaultRadius: 100,
		MaxDistance:   500,
		MaxExtensions: 3,
	}, f.groups, f.members, fakeUserStore{}, f.finder, f.bus, nil)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) create(t *testing.T, actor auth.Actor, lat, lon float64) *models.Group {
	t.Helper()
	g, err := f.svc.Create(context.Background(), actor, CreateInput{
		Name:      "Lunch crew",
		Latitude:  lat,
		Longitude: lon,
	})
	require.NoError(t, err)
	return g
}

func member(id string) auth.Actor {
	return auth.Authenticated(auth.Session{UserID: id})
}

func TestCreateAnonymous(t *testing.T) {
	f := newFixture(t)

	g := f.create(t, auth.Anonymous(), baseLat, baseLon)

	assert.Nil(t, g.CreatorID)
	assert.Zero(t, g.MemberCount)
	assert.NotEmpty(t, g.StorageFolder)
	assert.Equal(t, 100, g.RadiusMeters)
	assert.Equal(t, f.now.Add(4*time.Hour), g.ExpiresAt)
	assert.Empty(t, f.members.members[g.ID])
}

func TestCreateAuthenticatedGetsCreatorRow(t *testing.T) {
	f := newFixture(t)

	g := f.create(t, member("u1"), baseLat, baseLon)

	require.NotNil(t, g.CreatorID)
	assert.Equal(t, "u1", *g.CreatorID)
	assert.Equal(t, 1, g.MemberCount)

	require.Len(t, f.bus.published, 1)
	assert.Equal(t, events.TopicGroupCreated, f.bus.published[0].Type)
}

func TestCreateUniqueStorageFolders(t *testing.T) {
	f := newFixture(t)

	g1 := f.create(t, auth.Anonymous(), baseLat, baseLon)
	g2 := f.create(t, auth.Anonymous(), baseLat, baseLon)

	assert.NotEqual(t, g1.StorageFolder, g2.StorageFolder)
}

func TestCreateAssociatesContainingBuilding(t *testing.T) {
	f := newFixture(t)
	f.finder.building = &models.Building{
		ID:       "b1",
		Name:     "Town Hall",
		Geometry: "POLYGON((11.575 48.137, 11.576 48.137, 11.576 48.138, 11.575 48.138, 11.575 48.137))",
		Area:     1250,
		IsInside: true,
	}

	g := f.create(t, auth.Anonymous(), baseLat, baseLon)

	require.NotNil(t, g.BuildingID)
	assert.Equal(t, "b1", *g.BuildingID)
	assert.Equal(t, "Town Hall", g.BuildingName)

	// The full building record, geometry and area included, is handed to
	// the store so the relational mirror row keeps them.
	require.NotNil(t, f.groups.lastBuilding)
	assert.Equal(t, f.finder.building.Geometry, f.groups.lastBuilding.Geometry)
	assert.Equal(t, f.finder.building.Area, f.groups.lastBuilding.Area)
}

func TestCreateIgnoresMerelyNearbyBuilding(t *testing.T) {
	f := newFixture(t)
	f.finder.building = &models.Building{ID: "b1", IsInside: false, DistanceMeters: 20}

	g := f.create(t, auth.Anonymous(), baseLat, baseLon)

	assert.Nil(t, g.BuildingID)
}

func TestCreateSurvivesDegradedSpatialStore(t *testing.T) {
	f := newFixture(t)
	// A degraded store reports no building and no error.
	f.finder.building = nil

	g := f.create(t, auth.Anonymous(), baseLat, baseLon)

	assert.Nil(t, g.BuildingID)
}

func TestCreateFailsOnBuildingLookupError(t *testing.T) {
	f := newFixture(t)
	f.finder.err = assertionError("lookup query failed")

	_, err := f.svc.Create(context.Background(), auth.Anonymous(), CreateInput{
		Name:      "Lunch crew",
		Latitude:  baseLat,
		Longitude: baseLon,
	})

	require.Error(t, err)
	assert.Empty(t, f.groups.groups)
}

func TestNearbySortsAndFilters(t *testing.T) {
	f := newFixture(t)

	near := f.create(t, auth.Anonymous(), baseLat+0.001, baseLon)     // ~111m
	closest := f.create(t, auth.Anonymous(), baseLat+0.0003, baseLon) // ~33m
	f.create(t, auth.Anonymous(), baseLat+0.01, baseLon)              // ~1.1km, out

	out, err := f.svc.Nearby(context.Background(), auth.Anonymous(), baseLat, baseLon, 0)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, closest.ID, out[0].ID)
	assert.Equal(t, near.ID, out[1].ID)
	assert.Less(t, out[0].DistanceMeters, out[1].DistanceMeters)
}

func TestNearbyCanJoinBoundary(t *testing.T) {
	f := newFixture(t)

	inRadius := f.create(t, auth.Anonymous(), baseLat+0.0005, baseLon) // ~55m < 100m radius
	outRadius := f.create(t, auth.Anonymous(), baseLat+0.002, baseLon) // ~222m > 100m radius

	out, err := f.svc.Nearby(context.Background(), auth.Anonymous(), baseLat, baseLon, 500)
	require.NoError(t, err)
	require.Len(t, out, 2)

	byID := map[string]models.NearbyGroup{}
	for _, g := range out {
		byID[g.ID] = g
	}
	assert.True(t, byID[inRadius.ID].CanJoin)
	assert.False(t, byID[outRadius.ID].CanJoin)
}

func TestNearbyMarksMemberships(t *testing.T) {
	f := newFixture(t)

	mine := f.create(t, member("u1"), baseLat, baseLon)
	other := f.create(t, auth.Anonymous(), baseLat+0.0005, baseLon)

	out, err := f.svc.Nearby(context.Background(), member("u1"), baseLat, baseLon, 500)
	require.NoError(t, err)
	require.Len(t, out, 2)

	byID := map[string]models.NearbyGroup{}
	for _, g := range out {
		byID[g.ID] = g
	}
	assert.True(t, byID[mine.ID].IsMember)
	assert.False(t, byID[other.ID].IsMember)
}

func TestNearbyExcludesExpired(t *testing.T) {
	f := newFixture(t)

	f.create(t, auth.Anonymous(), baseLat, baseLon)
	f.now = f.now.Add(5 * time.Hour)

	out, err := f.svc.Nearby(context.Background(), auth.Anonymous(), baseLat, baseLon, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestJoinRequiresAuth(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, auth.Anonymous(), baseLat, baseLon)

	_, err := f.svc.Join(context.Background(), auth.Anonymous(), g.ID, baseLat, baseLon)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestJoinWithinRadius(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, auth.Anonymous(), baseLat, baseLon)

	joined, err := f.svc.Join(context.Background(), member("u2"), g.ID, baseLat+0.0005, baseLon)
	require.NoError(t, err)
	assert.Equal(t, 1, joined.MemberCount)

	ok, err := f.members.IsMember(context.Background(), g.ID, "u2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestJoinOutOfRange(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, auth.Anonymous(), baseLat, baseLon)

	_, err := f.svc.Join(context.Background(), member("u2"), g.ID, baseLat+0.002, baseLon)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestJoinExpiredGroup(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, auth.Anonymous(), baseLat, baseLon)
	f.now = f.now.Add(5 * time.Hour)

	_, err := f.svc.Join(context.Background(), member("u2"), g.ID, baseLat, baseLon)
	assert.ErrorIs(t, err, ErrGroupExpired)
}

func TestJoinUnknownGroup(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Join(context.Background(), member("u2"), "missing", baseLat, baseLon)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoinTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, auth.Anonymous(), baseLat, baseLon)

	_, err := f.svc.Join(context.Background(), member("u2"), g.ID, baseLat, baseLon)
	require.NoError(t, err)
	before := len(f.bus.published)

	_, err = f.svc.Join(context.Background(), member("u2"), g.ID, baseLat, baseLon)
	require.NoError(t, err)
	assert.Len(t, f.bus.published, before, "second join publishes nothing")
}

func TestCreateAnonymousFlagSuppressesCreator(t *testing.T) {
	f := newFixture(t)

	g, err := f.svc.Create(context.Background(), member("u1"), CreateInput{
		Name:      "Quiet group",
		Latitude:  baseLat,
		Longitude: baseLon,
		Anonymous: true,
	})
	require.NoError(t, err)

	assert.Nil(t, g.CreatorID)
	assert.Empty(t, f.members.members[g.ID])
}

func TestListForUserAnnotatesRole(t *testing.T) {
	f := newFixture(t)
	f.create(t, member("u1"), baseLat, baseLon)

	out, err := f.svc.ListForUser(context.Background(), member("u1"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, models.RoleCreator, out[0].Role)
	assert.False(t, out[0].JoinedAt.IsZero())
}

func TestListForUserRequiresAuth(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListForUser(context.Background(), auth.Anonymous())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestExtendOnlyCreator(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, member("u1"), baseLat, baseLon)

	_, err := f.svc.Extend(context.Background(), member("u2"), g.ID)
	assert.ErrorIs(t, err, ErrNotCreator)

	extended, err := f.svc.Extend(context.Background(), member("u1"), g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ExpiresAt.Add(4*time.Hour), extended.ExpiresAt)
	assert.Equal(t, 1, extended.ExtensionCount)
}

func TestExtendAnonymousGroupHasNoCreator(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, auth.Anonymous(), baseLat, baseLon)

	_, err := f.svc.Extend(context.Background(), member("u1"), g.ID)
	assert.ErrorIs(t, err, ErrNotCreator)
}

func TestExtendLimit(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, member("u1"), baseLat, baseLon)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Extend(context.Background(), member("u1"), g.ID)
		require.NoError(t, err)
	}

	_, err := f.svc.Extend(context.Background(), member("u1"), g.ID)
	assert.ErrorIs(t, err, ErrExtensionLimit)
}
