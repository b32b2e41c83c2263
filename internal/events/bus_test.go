// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := bus.Subscribe(ctx, TopicGroupCreated)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, GroupEvent{
		Type:      TopicGroupCreated,
		GroupID:   "g1",
		GroupName: "Lunch crew",
	}))

	select {
	case event := <-ch:
		assert.Equal(t, TopicGroupCreated, event.Type)
		assert.Equal(t, "g1", event.GroupID)
		assert.False(t, event.OccurredAt.IsZero())
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeAllMergesTopics(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := bus.SubscribeAll(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, GroupEvent{Type: TopicMemberJoined, GroupID: "g1", UserID: "u1"}))
	require.NoError(t, bus.Publish(ctx, GroupEvent{Type: TopicGroupExpired, GroupID: "g2"}))

	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case event := <-ch:
			seen[event.Type] = true
		case <-ctx.Done():
			t.Fatalf("timed out, saw %v", seen)
		}
	}
	assert.True(t, seen[TopicMemberJoined])
	assert.True(t, seen[TopicGroupExpired])
}

func TestSubscribeAllClosesOnBusClose(t *testing.T) {
	bus := NewBus(nil)

	// Context stays live; only the bus shuts down. Consumers blocked on
	// the merged channel must still be released.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := bus.SubscribeAll(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.Close())

	for {
		select {
		case _, open := <-ch:
			if !open {
				return
			}
		case <-ctx.Done():
			t.Fatal("merged channel did not close after bus shutdown")
		}
	}
}

func TestSubscriberChannelClosesOnCancel(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx, TopicGroupCreated)
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not close")
	}
}
