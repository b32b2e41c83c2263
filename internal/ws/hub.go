// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

// Package ws streams group lifecycle events to websocket clients. Each
// connection watches a single group; the hub fans events from the bus
// out to the connections watching that group.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/huddle/internal/events"
	"github.com/tomtom215/huddle/internal/logging"
	"github.com/tomtom215/huddle/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Cross-origin policy is enforced by the CORS middleware upstream.
	CheckOrigin: func(*http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan events.GroupEvent
}

// Hub routes bus events to websocket clients by group ID.
type Hub struct {
	bus     *events.Bus
	metrics *metrics.Metrics

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

// NewHub creates the hub. Serve must run for events to flow.
func NewHub(bus *events.Bus, m *metrics.Metrics) *Hub {
	return &Hub{
		bus:     bus,
		metrics: m,
		clients: make(map[string]map[*client]struct{}),
	}
}

// Serve pumps bus events to clients until ctx is canceled. It satisfies
// the supervisor service contract.
func (h *Hub) Serve(ctx context.Context) error {
	ch, err := h.bus.SubscribeAll(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case event, ok := <-ch:
			if !ok {
				h.closeAll()
				return nil
			}
			h.broadcast(event)
		}
	}
}

func (h *Hub) broadcast(event events.GroupEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[event.GroupID] {
		select {
		case c.send <- event:
		default:
			// Slow consumer; drop the event rather than stall the hub.
		}
	}
}

func (h *Hub) add(groupID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[groupID] == nil {
		h.clients[groupID] = make(map[*client]struct{})
	}
	h.clients[groupID][c] = struct{}{}

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}
}

func (h *Hub) remove(groupID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.clients[groupID]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			close(c.send)
			if len(set) == 0 {
				delete(h.clients, groupID)
			}
			if h.metrics != nil {
				h.metrics.WSConnections.Dec()
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for groupID, set := range h.clients {
		for c := range set {
			close(c.send)
			_ = c.conn.Close()
		}
		delete(h.clients, groupID)
	}
}

// WatcherCount reports how many connections watch the group.
func (h *Hub) WatcherCount(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[groupID])
}

// Subscribe upgrades the request and streams the group's events until
// the client disconnects.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, groupID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan events.GroupEvent, sendBuffer)}
	h.add(groupID, c)

	go h.writePump(groupID, c)
	go h.readPump(groupID, c)
}

func (h *Hub) writePump(groupID string, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				logging.Err(err).Msg("Marshal event for websocket")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.remove(groupID, c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(groupID, c)
				return
			}
		}
	}
}

// readPump discards inbound frames; the stream is one-way. It exists to
// process control frames and notice disconnects.
func (h *Hub) readPump(groupID string, c *client) {
	defer h.remove(groupID, c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
