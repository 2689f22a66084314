// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pull projects the graph through pull queries.
//
// A pull query has the shape of the response it asks for. The projector walks
// the query and the store in lock-step and emits only what was selected.
// Missing nodes, properties, rights and edges are left out of the response;
// they are never an error.
package pull

import (
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianGraph/services/graphd/document"
	"github.com/AleutianAI/AleutianGraph/services/graphd/grammar"
	"github.com/AleutianAI/AleutianGraph/services/graphd/store"
	"github.com/AleutianAI/AleutianGraph/services/graphd/telemetry"
)

// DefaultMaxExpansionDepth bounds select-all expansion through edges.
const DefaultMaxExpansionDepth = 32

// Projector answers pull queries.
//
// Thread Safety: Safe for concurrent use. Each node is read under its own
// read lock, one node at a time.
type Projector struct {
	store    *store.Store
	logger   *slog.Logger
	maxDepth int
}

// Option configures the Projector.
type Option func(*Projector)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Projector) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMaxExpansionDepth limits how many edges a select-all follows from the
// node it started at. Past the limit targets carry edge properties only.
func WithMaxExpansionDepth(depth int) Option {
	return func(p *Projector) {
		if depth > 0 {
			p.maxDepth = depth
		}
	}
}

// NewProjector creates a projector reading from s.
func NewProjector(s *store.Store, opts ...Option) *Projector {
	p := &Projector{
		store:    s,
		logger:   slog.Default(),
		maxDepth: DefaultMaxExpansionDepth,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pull projects the graph through query.
//
// Description:
//
//	Validates query, then for each top-level node id projects the stored
//	node through its selector. Top-level nodes that do not exist are
//	omitted. Keys in the response follow the query order, except where
//	the projection enumerates stored data (select-all and uniform edge
//	filters), which follows store insertion order.
//
// Inputs:
//
//	ctx - Context for tracing and cancellation.
//	query - The pull query.
//
// Outputs:
//
//	*document.Object - The response document.
//	error - *grammar.MalformedInputError, or ctx.Err() if cancelled.
//
// Thread Safety: Safe for concurrent use.
func (p *Projector) Pull(ctx context.Context, query *document.Object) (*document.Object, error) {
	start := time.Now()
	ctx, span := startPullSpan(ctx, query.Len())
	defer span.End()

	if err := grammar.ValidatePull(query); err != nil {
		telemetry.RecordError(span, err)
		recordPullMetrics(ctx, time.Since(start), 0, "malformed")
		return nil, err
	}

	r := &run{p: p, ctx: ctx}
	out := document.NewObject()
	query.Range(func(id string, spec document.Value) bool {
		if v, ok := r.node(id, spec); ok {
			out.Set(id, document.ObjectValue(v))
		}
		return r.err == nil
	})
	if r.err != nil {
		telemetry.RecordError(span, r.err)
		recordPullMetrics(ctx, time.Since(start), r.visited, "cancelled")
		return nil, r.err
	}

	setPullSpanResult(span, r.visited, out.Len())
	recordPullMetrics(ctx, time.Since(start), r.visited, "ok")
	return out, nil
}

// run carries the state of one Pull call.
type run struct {
	p       *Projector
	ctx     context.Context
	err     error
	visited int
}

// snapshot reads one node. It returns false once the context is done.
func (r *run) snapshot(id string) (*store.Node, bool) {
	if r.err != nil {
		return nil, false
	}
	if err := r.ctx.Err(); err != nil {
		r.err = err
		return nil, false
	}
	n, ok := r.p.store.Snapshot(id)
	if ok {
		r.visited++
	}
	return n, ok
}

// node projects a top-level node selector.
func (r *run) node(id string, spec document.Value) (*document.Object, bool) {
	if spec.IsFalse() {
		return nil, false
	}
	n, ok := r.snapshot(id)
	if !ok {
		return nil, false
	}
	if spec.IsTrue() {
		return r.selectAll(n, newExpansion(id), 0), true
	}
	sel, _ := spec.AsObject()
	return r.filter(n, nil, sel, grammar.ContextNodeBody), true
}

// filter projects node n, and the edge record that reached it if any,
// through an explicit selector object.
func (r *run) filter(n *store.Node, rec *store.EdgeRecord, sel *document.Object, ctx grammar.Context) *document.Object {
	out := document.NewObject()
	sel.Range(func(raw string, s document.Value) bool {
		if s.IsFalse() {
			return true
		}
		key := grammar.Classify(raw, ctx)
		switch key.Kind {
		case grammar.KindEdgeProperty:
			if rec == nil {
				return true
			}
			if stored, ok := rec.Properties.Get(key.Name); ok {
				if v, ok := ProjectValue(stored, s); ok {
					out.Set(raw, v)
				}
			}
		case grammar.KindPlainProperty:
			if n == nil {
				return true
			}
			if stored, ok := n.Properties.Get(raw); ok {
				if v, ok := ProjectValue(stored, s); ok {
					out.Set(raw, v)
				}
			}
		case grammar.KindRightsSelector:
			if n == nil {
				return true
			}
			if key.IsWildcard() {
				if v, ok := ProjectValue(document.ObjectValue(n.Properties), s); ok {
					out.Set(raw, v)
				}
				return true
			}
			if mask, ok := n.Right(key.Name); ok {
				out.Set(raw, document.String(mask))
			}
		case grammar.KindEdgeSelector:
			if n == nil {
				return true
			}
			if v, ok := r.edges(n, key, s); ok {
				out.Set(raw, document.ObjectValue(v))
			}
		}
		return r.err == nil
	})
	return out
}

// edgeTarget is one target of an edge group with its record.
type edgeTarget struct {
	id  string
	rec *store.EdgeRecord
}

// lookup returns the targets of the group key selects. OUT lookups also
// return BI edges of the same relation.
func lookup(n *store.Node, key grammar.Key) ([]edgeTarget, bool) {
	sets := []*store.EdgeSet{n.Edges(store.EdgeKey{Direction: key.Direction, Relation: key.Name})}
	if key.Direction == grammar.DirectionOut {
		sets = append(sets, n.Edges(store.EdgeKey{Direction: grammar.DirectionBi, Relation: key.Name}))
	}

	found := false
	seen := make(map[string]bool)
	var targets []edgeTarget
	for _, set := range sets {
		if set == nil {
			continue
		}
		found = true
		for _, id := range set.Targets() {
			if seen[id] {
				continue
			}
			seen[id] = true
			rec, _ := set.Get(id)
			targets = append(targets, edgeTarget{id: id, rec: rec})
		}
	}
	return targets, found
}

// edges projects one edge selector of node n.
func (r *run) edges(n *store.Node, key grammar.Key, s document.Value) (*document.Object, bool) {
	targets, ok := lookup(n, key)
	if !ok {
		return nil, false
	}
	out := document.NewObject()

	if s.IsTrue() {
		seen := newExpansion(n.ID)
		full := r.claim(seen, targets, 1)
		for _, t := range targets {
			out.Set(t.id, document.ObjectValue(r.renderTarget(t, full, seen, 1)))
			if r.err != nil {
				break
			}
		}
		return out, true
	}

	sel, _ := s.AsObject()
	if grammar.IsUniformEdgeSpec(sel) {
		for _, t := range targets {
			// nil when the target has no record; filter then reports the
			// edge properties only.
			target, _ := r.snapshot(t.id)
			if r.err != nil {
				break
			}
			out.Set(t.id, document.ObjectValue(r.filter(target, t.rec, sel, grammar.ContextEdgeTarget)))
		}
		return out, true
	}

	byID := make(map[string]edgeTarget, len(targets))
	for _, t := range targets {
		byID[t.id] = t
	}
	sel.Range(func(id string, ts document.Value) bool {
		t, ok := byID[id]
		if !ok || ts.IsFalse() {
			return true
		}
		if ts.IsTrue() {
			seen := newExpansion(n.ID)
			full := r.claim(seen, []edgeTarget{t}, 1)
			out.Set(id, document.ObjectValue(r.renderTarget(t, full, seen, 1)))
			return r.err == nil
		}
		tsel, _ := ts.AsObject()
		target, _ := r.snapshot(id)
		if r.err != nil {
			return false
		}
		out.Set(id, document.ObjectValue(r.filter(target, t.rec, tsel, grammar.ContextEdgeTarget)))
		return true
	})
	return out, true
}

// claim marks the targets reached at depth that this expansion has not
// rendered yet and returns them. Claiming a whole level before descending
// renders each node in full once, at the shallowest depth it is reached.
// Past the depth limit nothing is claimed.
func (r *run) claim(seen expansion, targets []edgeTarget, depth int) map[string]bool {
	full := make(map[string]bool)
	if depth > r.p.maxDepth {
		return full
	}
	for _, t := range targets {
		if !seen[t.id] {
			seen[t.id] = true
			full[t.id] = true
		}
	}
	return full
}

// renderTarget renders one edge target under select-all: its edge
// properties, followed by the whole target node when full claimed it.
// A claim is used once; repeated targets carry edge properties only.
func (r *run) renderTarget(t edgeTarget, full map[string]bool, seen expansion, depth int) *document.Object {
	out := edgeProperties(t.rec)
	if !full[t.id] {
		return out
	}
	delete(full, t.id)
	target, ok := r.snapshot(t.id)
	if !ok {
		return out
	}
	body := r.selectAll(target, seen, depth)
	body.Range(func(k string, v document.Value) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// selectAll renders every property, right and edge group of n.
func (r *run) selectAll(n *store.Node, seen expansion, depth int) *document.Object {
	out := n.Properties.Clone()
	n.RangeRights(func(actor, mask string) bool {
		out.Set(grammar.RightsKey(actor), document.String(mask))
		return true
	})

	keys := n.EdgeKeys()
	groups := make([][]edgeTarget, len(keys))
	var all []edgeTarget
	for i, key := range keys {
		set := n.Edges(key)
		for _, id := range set.Targets() {
			rec, _ := set.Get(id)
			groups[i] = append(groups[i], edgeTarget{id: id, rec: rec})
		}
		all = append(all, groups[i]...)
	}
	full := r.claim(seen, all, depth+1)

	for i, key := range keys {
		group := document.NewObject()
		for _, t := range groups[i] {
			group.Set(t.id, document.ObjectValue(r.renderTarget(t, full, seen, depth+1)))
			if r.err != nil {
				break
			}
		}
		out.Set(key.String(), document.ObjectValue(group))
	}
	return out
}

// edgeProperties renders a record as "-name" keys.
func edgeProperties(rec *store.EdgeRecord) *document.Object {
	out := document.NewObject()
	if rec == nil {
		return out
	}
	rec.Properties.Range(func(name string, v document.Value) bool {
		out.Set(grammar.EdgePropertyKey(name), v.Clone())
		return true
	})
	return out
}

// ProjectValue applies a property selector to a stored value.
//
// Description:
//
//	true copies the stored value. An object selects sub-keys of a stored
//	object, recursively; it yields nothing when the stored value is not an
//	object. false yields nothing.
func ProjectValue(stored document.Value, sel document.Value) (document.Value, bool) {
	if sel.IsTrue() {
		return stored.Clone(), true
	}
	selObj, ok := sel.AsObject()
	if !ok {
		return document.Value{}, false
	}
	storedObj, ok := stored.AsObject()
	if !ok {
		return document.Value{}, false
	}
	out := document.NewObject()
	selObj.Range(func(k string, s document.Value) bool {
		child, ok := storedObj.Get(k)
		if !ok {
			return true
		}
		if v, ok := ProjectValue(child, s); ok {
			out.Set(k, v)
		}
		return true
	})
	return document.ObjectValue(out), true
}

// expansion holds the node ids one select-all has rendered, or claimed to
// render, in full.
type expansion map[string]bool

func newExpansion(id string) expansion {
	return expansion{id: true}
}
