// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/huddle/internal/events"
)

func TestHubDeliversGroupEvents(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()

	hub := NewHub(bus, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Serve(ctx) }()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Subscribe(w, r, "g1")
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	// Wait for registration before publishing.
	require.Eventually(t, func() bool {
		return hub.WatcherCount("g1") == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), events.GroupEvent{
		Type:    events.TopicMemberJoined,
		GroupID: "g1",
		UserID:  "u1",
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event events.GroupEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, events.TopicMemberJoined, event.Type)
	assert.Equal(t, "g1", event.GroupID)
}

func TestHubIsolatesGroups(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()

	hub := NewHub(bus, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Serve(ctx) }()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Subscribe(w, r, "g2")
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.WatcherCount("g2") == 1
	}, 5*time.Second, 10*time.Millisecond)

	// Event for another group must not arrive.
	require.NoError(t, bus.Publish(context.Background(), events.GroupEvent{
		Type:    events.TopicGroupCreated,
		GroupID: "other",
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "expected read timeout")
}

func TestWatcherCountDropsOnDisconnect(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()

	hub := NewHub(bus, nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Subscribe(w, r, "g3")
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Eventually(t, func() bool {
		return hub.WatcherCount("g3") == 1
	}, 5*time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.WatcherCount("g3") == 0
	}, 5*time.Second, 10*time.Millisecond)
}
