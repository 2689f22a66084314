// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package push folds push documents into the store.
package push

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/AleutianAI/AleutianGraph/services/graphd/document"
	"github.com/AleutianAI/AleutianGraph/services/graphd/grammar"
	"github.com/AleutianAI/AleutianGraph/services/graphd/store"
	"github.com/AleutianAI/AleutianGraph/services/graphd/telemetry"
)

// Result describes an applied push.
type Result struct {
	// Nodes lists every node the push touched, sorted.
	Nodes []string

	// Created counts nodes that did not exist before.
	Created int
}

// Merger applies push documents.
//
// Thread Safety: Safe for concurrent use.
type Merger struct {
	store  *store.Store
	logger *slog.Logger
}

// NewMerger creates a merger writing into s.
func NewMerger(s *store.Store, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{store: s, logger: logger}
}

// Push merges doc into the store.
//
// Description:
//
//	Validates doc, collects every node id it names (top-level keys and
//	edge targets at any depth) and applies the whole document as one store
//	transaction. For each node body:
//	  - plain properties deep-merge when both sides are objects and
//	    overwrite otherwise
//	  - "@actor": mask replaces the stored grant
//	  - "@": {...} merges into the node's own properties
//	  - edge selectors link the node and each target at both endpoints;
//	    "-x" keys under a target write the edge record, plain keys write
//	    the target's properties and nested selectors recurse into the
//	    target as a node body
//
// Inputs:
//
//	ctx - Context for tracing and the journal.
//	doc - The push document.
//
// Outputs:
//
//	*Result - The touched nodes.
//	error - *grammar.MalformedInputError before any mutation, or
//	        *PushError when the store rejected the transaction.
//
// Thread Safety: Safe for concurrent use.
func (m *Merger) Push(ctx context.Context, doc *document.Object) (*Result, error) {
	start := time.Now()
	ctx, span := startPushSpan(ctx, doc.Len())
	defer span.End()

	if err := grammar.ValidatePush(doc); err != nil {
		telemetry.RecordError(span, err)
		recordPushMetrics(ctx, time.Since(start), 0, "malformed")
		return nil, err
	}

	ids := CollectIDs(doc)
	result := &Result{}

	err := m.store.Update(ctx, ids, func(tx *store.Txn) error {
		f := &folder{tx: tx}
		var foldErr error
		doc.Range(func(id string, body document.Value) bool {
			obj, _ := body.AsObject()
			foldErr = f.body(id, obj, grammar.ContextNodeBody)
			return foldErr == nil
		})
		if foldErr != nil {
			return foldErr
		}
		for _, id := range ids {
			if tx.Created(id) {
				result.Created++
			}
		}
		return nil
	})
	if err != nil {
		pushErr := toPushError(doc, err)
		telemetry.RecordError(span, pushErr)
		recordPushMetrics(ctx, time.Since(start), len(ids), "failed")
		m.logger.Error("push failed",
			slog.String("node_id", pushErr.NodeID),
			slog.String("error", pushErr.Cause.Error()),
		)
		return nil, pushErr
	}

	result.Nodes = ids
	setPushSpanResult(span, len(ids), result.Created)
	recordPushMetrics(ctx, time.Since(start), len(ids), "ok")
	m.logger.Debug("push applied",
		slog.Int("nodes", len(ids)),
		slog.Int("created", result.Created),
	)
	return result, nil
}

// toPushError attributes a store failure to a node.
func toPushError(doc *document.Object, err error) *PushError {
	var nodeErr *store.NodeError
	if errors.As(err, &nodeErr) {
		return &PushError{NodeID: nodeErr.NodeID, Cause: err}
	}
	first := ""
	if keys := doc.Keys(); len(keys) > 0 {
		first = keys[0]
	}
	return &PushError{NodeID: first, Cause: err}
}

// CollectIDs returns every node id a valid push document names, sorted and
// without duplicates.
func CollectIDs(doc *document.Object) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	var walk func(body *document.Object, ctx grammar.Context)
	walk = func(body *document.Object, ctx grammar.Context) {
		body.Range(func(raw string, v document.Value) bool {
			if grammar.Classify(raw, ctx).Kind != grammar.KindEdgeSelector {
				return true
			}
			targets, _ := v.AsObject()
			targets.Range(func(target string, tb document.Value) bool {
				add(target)
				if obj, ok := tb.AsObject(); ok {
					walk(obj, grammar.ContextEdgeTarget)
				}
				return true
			})
			return true
		})
	}

	doc.Range(func(id string, body document.Value) bool {
		add(id)
		if obj, ok := body.AsObject(); ok {
			walk(obj, grammar.ContextNodeBody)
		}
		return true
	})

	sort.Strings(ids)
	return ids
}

// folder applies one document inside a transaction.
type folder struct {
	tx *store.Txn
}

// body folds a node body or an edge-target body into node id. recs holds
// the edge records (both copies) when ctx is ContextEdgeTarget.
func (f *folder) body(id string, body *document.Object, ctx grammar.Context, recs ...*store.EdgeRecord) error {
	node, err := f.tx.Node(id)
	if err != nil {
		return err
	}

	var foldErr error
	body.Range(func(raw string, v document.Value) bool {
		key := grammar.Classify(raw, ctx)
		switch key.Kind {
		case grammar.KindEdgeProperty:
			for _, rec := range recs {
				MergeProperty(rec.Properties, key.Name, v)
			}
		case grammar.KindPlainProperty:
			MergeProperty(node.Properties, raw, v)
		case grammar.KindRightsSelector:
			if key.IsWildcard() {
				identity, _ := v.AsObject()
				identity.Range(func(k string, iv document.Value) bool {
					MergeProperty(node.Properties, k, iv)
					return true
				})
				return true
			}
			mask, _ := v.AsString()
			node.SetRight(key.Name, mask)
		case grammar.KindEdgeSelector:
			foldErr = f.edges(node, key, v)
		}
		return foldErr == nil
	})
	return foldErr
}

// edges links node to every target under one edge selector.
//
// The record is stored as node[dir][target] and target[reverse(dir)][node].
// For a BI self-loop both copies are the same record.
func (f *folder) edges(node *store.Node, key grammar.Key, v document.Value) error {
	targets, _ := v.AsObject()
	var err error
	targets.Range(func(targetID string, tb document.Value) bool {
		target, tErr := f.tx.Node(targetID)
		if tErr != nil {
			err = tErr
			return false
		}
		local := node.EnsureEdges(store.EdgeKey{Direction: key.Direction, Relation: key.Name}).Ensure(targetID)
		remote := target.EnsureEdges(store.EdgeKey{Direction: key.Direction.Reverse(), Relation: key.Name}).Ensure(node.ID)

		recs := []*store.EdgeRecord{local}
		if remote != local {
			recs = append(recs, remote)
		}
		body, _ := tb.AsObject()
		err = f.body(targetID, body, grammar.ContextEdgeTarget, recs...)
		return err == nil
	})
	return err
}

// MergeProperty writes v under key in obj.
//
// Description:
//
//	When the stored value and v are both objects they are merged key by
//	key, recursively; any other combination overwrites. v is cloned so the
//	caller's document is never aliased by the store.
func MergeProperty(obj *document.Object, key string, v document.Value) {
	existing, ok := obj.Get(key)
	if ok {
		dst, dstIsObj := existing.AsObject()
		src, srcIsObj := v.AsObject()
		if dstIsObj && srcIsObj {
			src.Range(func(k string, sv document.Value) bool {
				MergeProperty(dst, k, sv)
				return true
			})
			return
		}
	}
	obj.Set(key, v.Clone())
}
