// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraph/services/graphd/document"
	"github.com/AleutianAI/AleutianGraph/services/graphd/push"
	"github.com/AleutianAI/AleutianGraph/services/graphd/store"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/changes" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	var hello map[string]string
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&hello))
	require.NotEmpty(t, hello["client_id"])
	return conn
}

func serve(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle("/changes", h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, 5*time.Second, 10*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	var ev Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHub_PublishReachesClient(t *testing.T) {
	h := NewHub()
	defer h.Close()
	srv := serve(t, h)
	conn := dial(t, srv, "")
	waitClients(t, h, 1)

	h.Publish(context.Background(), []string{"a", "b"})
	h.Publish(context.Background(), []string{"c"})

	first := readEvent(t, conn)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, []string{"a", "b"}, first.IDs)
	assert.False(t, first.Time.IsZero())

	second := readEvent(t, conn)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, []string{"c"}, second.IDs)
}

func TestHub_FilterByIDs(t *testing.T) {
	h := NewHub()
	defer h.Close()
	srv := serve(t, h)
	conn := dial(t, srv, "?ids=x,%20y")
	waitClients(t, h, 1)

	h.Publish(context.Background(), []string{"a"})
	h.Publish(context.Background(), []string{"b", "y"})

	ev := readEvent(t, conn)
	assert.Equal(t, uint64(2), ev.Seq, "event not touching x or y is filtered")
	assert.Equal(t, []string{"b", "y"}, ev.IDs)
}

func TestHub_StoreCommitListener(t *testing.T) {
	h := NewHub()
	defer h.Close()
	srv := serve(t, h)
	conn := dial(t, srv, "")
	waitClients(t, h, 1)

	s := store.New(store.WithCommitListener(h.Publish))
	doc, err := document.DecodeObject([]byte(`{"b":{">knows":{"a":{}}}}`))
	require.NoError(t, err)
	_, err = push.NewMerger(s, nil).Push(context.Background(), doc)
	require.NoError(t, err)

	ev := readEvent(t, conn)
	assert.Equal(t, []string{"a", "b"}, ev.IDs)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	h := NewHub()
	srv := serve(t, h)
	conn := dial(t, srv, "")
	waitClients(t, h, 1)

	h.Close()
	assert.Equal(t, 0, h.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	resp, err := http.Get(srv.URL + "/changes")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := NewHub(WithBuffer(1))
	c := &client{id: "slow", send: make(chan Event, 1)}
	require.NoError(t, h.add(c))

	h.Publish(context.Background(), []string{"a"})
	assert.Equal(t, 1, h.Clients())

	h.Publish(context.Background(), []string{"b"})
	assert.Equal(t, 0, h.Clients())

	ev, ok := <-c.send
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, ev.IDs)
	_, ok = <-c.send
	assert.False(t, ok, "dropped client channel is closed")
}

func TestHub_PublishCopiesIDs(t *testing.T) {
	h := NewHub()
	c := &client{id: "c", send: make(chan Event, 1)}
	require.NoError(t, h.add(c))

	ids := []string{"a"}
	h.Publish(context.Background(), ids)
	ids[0] = "mutated"

	ev := <-c.send
	assert.Equal(t, []string{"a"}, ev.IDs)
}

func TestParseFilter(t *testing.T) {
	assert.Nil(t, parseFilter(""))
	assert.Equal(t, map[string]struct{}{"a": {}, "b": {}}, parseFilter(" a,,b "))
}
