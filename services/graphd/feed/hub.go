// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package feed streams committed node ids to WebSocket subscribers.
//
// A Hub is registered as a store commit listener. Every committed push
// becomes one Event carrying the ids it touched; subscribers pull the
// nodes they care about.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultBuffer = 64
)

// ErrClosed is returned to connections attempted after Close.
var ErrClosed = errors.New("change feed closed")

// Event is one committed push.
type Event struct {
	// Seq increases by one per committed push, starting at 1.
	Seq uint64 `json:"seq"`

	// IDs are the nodes the push touched, sorted.
	IDs []string `json:"ids"`

	// Time is when the commit was published.
	Time time.Time `json:"time"`
}

type client struct {
	id     string
	conn   *websocket.Conn
	send   chan Event
	filter map[string]struct{}
	once   sync.Once
}

func (c *client) wants(ids []string) bool {
	if len(c.filter) == 0 {
		return true
	}
	for _, id := range ids {
		if _, ok := c.filter[id]; ok {
			return true
		}
	}
	return false
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans out commit events to connected clients.
//
// Thread Safety: Safe for concurrent use.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	seq      atomic.Uint64
	closed   bool
	buffer   int
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithBuffer sets the per-client event buffer. A client that falls this
// far behind is disconnected.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[string]*client),
		buffer:  defaultBuffer,
		logger:  slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish sends one event for ids to every interested client.
//
// Description:
//
//	Matches store.CommitListener. Never blocks: a client whose buffer is
//	full is dropped and its connection closed.
func (h *Hub) Publish(ctx context.Context, ids []string) {
	ev := Event{
		Seq:  h.seq.Add(1),
		IDs:  append([]string(nil), ids...),
		Time: time.Now().UTC(),
	}

	h.mu.RLock()
	var slow []*client
	for _, c := range h.clients {
		if !c.wants(ev.IDs) {
			continue
		}
		select {
		case c.send <- ev:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow change feed client",
			slog.String("client_id", c.id),
			slog.Uint64("seq", ev.Seq))
		h.remove(c)
	}
	recordPublish(ctx, len(ids), len(slow))
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// ServeHTTP upgrades the request and streams events until the client goes
// away.
//
// Description:
//
//	The optional query parameter "ids" (comma separated) restricts the
//	stream to pushes touching at least one of those nodes. The first
//	message is {"client_id": "..."}; every following message is an Event.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, ErrClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("change feed upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan Event, h.buffer),
		filter: parseFilter(r.URL.Query().Get("ids")),
	}

	if err := h.add(c); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error()))
		_ = conn.Close()
		return
	}
	h.logger.Info("change feed client connected",
		slog.String("client_id", c.id),
		slog.Int("filter_ids", len(c.filter)))

	go h.readPump(c)
	h.writePump(c)
}

func (h *Hub) add(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.clients[c.id] = c
	return nil
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if cur, ok := h.clients[c.id]; ok && cur == c {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()
	c.close()
}

// readPump discards client messages and removes the client when the
// connection ends.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
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

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		h.logger.Info("change feed client disconnected", slog.String("client_id", c.id))
	}()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(map[string]string{"client_id": c.id}); err != nil {
		h.remove(c)
		return
	}

	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

func parseFilter(raw string) map[string]struct{} {
	if raw == "" {
		return nil
	}
	filter := make(map[string]struct{})
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			filter[id] = struct{}{}
		}
	}
	return filter
}
