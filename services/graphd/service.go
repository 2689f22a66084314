// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graphd is the HTTP face of the graph store: push and pull over
// JSON, health and stats, and the WebSocket change feed.
package graphd

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/AleutianAI/AleutianGraph/services/graphd/document"
	"github.com/AleutianAI/AleutianGraph/services/graphd/feed"
	"github.com/AleutianAI/AleutianGraph/services/graphd/pull"
	"github.com/AleutianAI/AleutianGraph/services/graphd/push"
	"github.com/AleutianAI/AleutianGraph/services/graphd/store"
)

// ServiceVersion is the graph service version.
const ServiceVersion = "0.1.0"

// Service ties the store to its push and pull engines.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	store     *store.Store
	merger    *push.Merger
	projector *pull.Projector
	hub       *feed.Hub
	logger    *slog.Logger
	ready     atomic.Bool
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	hub      *feed.Hub
	logger   *slog.Logger
	maxDepth int
}

// WithFeed exposes hub on /v1/graph/changes. The hub must also be
// registered as a commit listener on the store.
func WithFeed(hub *feed.Hub) ServiceOption {
	return func(o *serviceOptions) { o.hub = hub }
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) { o.logger = logger }
}

// WithMaxExpansionDepth bounds select-all expansion in pulls.
func WithMaxExpansionDepth(depth int) ServiceOption {
	return func(o *serviceOptions) { o.maxDepth = depth }
}

// NewService creates a service over s. The service starts not ready; call
// SetReady once the journal has been loaded.
func NewService(s *store.Store, opts ...ServiceOption) *Service {
	o := serviceOptions{logger: slog.Default(), maxDepth: pull.DefaultMaxExpansionDepth}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Service{
		store:  s,
		merger: push.NewMerger(s, o.logger),
		projector: pull.NewProjector(s,
			pull.WithLogger(o.logger),
			pull.WithMaxExpansionDepth(o.maxDepth)),
		hub:    o.hub,
		logger: o.logger,
	}
}

// SetReady marks the service as able to take traffic.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Ready reports whether SetReady(true) was called.
func (s *Service) Ready() bool {
	return s.ready.Load()
}

// Push decodes raw as a push document and applies it.
//
// Outputs:
//
//	*push.Result - The touched nodes.
//	error - *grammar.MalformedInputError for undecodable or invalid input,
//	*push.PushError when the store rejected the push.
func (s *Service) Push(ctx context.Context, raw []byte) (*push.Result, error) {
	doc, err := document.DecodeObject(raw)
	if err != nil {
		return nil, malformedDocument(err)
	}
	return s.merger.Push(ctx, doc)
}

// Pull decodes raw as a pull query and returns the encoded response.
//
// Outputs:
//
//	[]byte - The response document as JSON.
//	error - *grammar.MalformedInputError for undecodable or invalid input,
//	or the context error if the request was cancelled.
func (s *Service) Pull(ctx context.Context, raw []byte) ([]byte, error) {
	query, err := document.DecodeObject(raw)
	if err != nil {
		return nil, malformedDocument(err)
	}
	out, err := s.projector.Pull(ctx, query)
	if err != nil {
		return nil, err
	}
	return document.Encode(document.ObjectValue(out))
}

// Stats returns store counts and the number of feed subscribers.
func (s *Service) Stats() StatsResponse {
	st := s.store.Stats()
	resp := StatsResponse{
		Nodes:  st.Nodes,
		Actors: st.Actors,
		Edges:  st.Edges,
		Rights: st.Rights,
	}
	if s.hub != nil {
		resp.FeedClients = s.hub.Clients()
	}
	return resp
}

// Nodes returns the node count.
func (s *Service) Nodes() int {
	return s.store.Len()
}
