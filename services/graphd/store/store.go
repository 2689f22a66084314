// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store holds the in-memory node records of the graph.
//
// # Locking
//
// Each node has its own RWMutex. Readers take one read lock at a time and
// never hold two. Writers declare every node they will touch up front;
// Update locks that set in lexicographic order, so two overlapping writers
// cannot deadlock. A short map-level lock guards the id index only and is
// never held while waiting on a node lock.
//
// # Staging
//
// Writers mutate clones. The clones are handed to the Journal and swapped in
// only when it accepts them, so a failed commit leaves nothing behind.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGraph/services/graphd/grammar"
	"github.com/AleutianAI/AleutianGraph/services/graphd/telemetry"
)

// entry is the slot of one node id. node is nil until the first
// successful commit that creates it.
type entry struct {
	mu   sync.RWMutex
	node *Node
}

// Store is the graph.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	// order lists committed node ids in creation order.
	order []string

	journal   Journal
	listeners []CommitListener
	logger    *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithJournal sets the journal that receives staged nodes.
func WithJournal(j Journal) Option {
	return func(s *Store) {
		if j != nil {
			s.journal = j
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCommitListener registers fn to run after each visible commit.
func WithCommitListener(fn CommitListener) Option {
	return func(s *Store) {
		if fn != nil {
			s.listeners = append(s.listeners, fn)
		}
	}
}

// New creates an empty store.
//
// Inputs:
//
//	opts - Optional configuration options.
//
// Outputs:
//
//	*Store - The store. Without WithJournal, commits always succeed.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		journal: nopJournal{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed installs nodes loaded from a journal without committing them again.
//
// Description:
//
//	Intended for startup, before the store is shared. Existing ids are
//	replaced.
func (s *Store) Seed(nodes []*Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range nodes {
		e, ok := s.entries[n.ID]
		if !ok {
			e = &entry{}
			s.entries[n.ID] = e
		}
		if e.node == nil {
			s.order = append(s.order, n.ID)
		}
		e.node = n
	}
}

func (s *Store) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}

// View runs fn with the committed node under its read lock.
//
// Description:
//
//	fn must not retain n, and must not call back into the store for
//	another node. Returns false when the node does not exist.
func (s *Store) View(id string, fn func(n *Node)) bool {
	e := s.lookup(id)
	if e == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.node == nil {
		return false
	}
	fn(e.node)
	return true
}

// Snapshot returns a private copy of the node.
func (s *Store) Snapshot(id string) (*Node, bool) {
	var clone *Node
	ok := s.View(id, func(n *Node) {
		clone = n.Clone()
	})
	return clone, ok
}

// Has reports whether the node exists.
func (s *Store) Has(id string) bool {
	return s.View(id, func(*Node) {})
}

// IDs returns committed node ids in creation order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Len returns the number of committed nodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Stats summarizes the graph.
type Stats struct {
	Nodes  int `json:"nodes"`
	Actors int `json:"actors"`
	Edges  int `json:"edges"`
	Rights int `json:"rights"`
}

// Stats counts nodes, actor nodes, edges and rights grants.
//
// Description:
//
//	Each edge is counted once: OUT records at their source, BI records at
//	the endpoint with the smaller id. Nodes are read one at a time, so the
//	result may mix states of a concurrent push.
func (s *Store) Stats() Stats {
	var st Stats
	for _, id := range s.IDs() {
		s.View(id, func(n *Node) {
			st.Nodes++
			if grammar.IsActorID(n.ID) {
				st.Actors++
			}
			st.Rights += n.RightsCount()
			for _, key := range n.edgeOrder {
				set := n.edges[key]
				switch key.Direction {
				case grammar.DirectionOut:
					st.Edges += set.Len()
				case grammar.DirectionBi:
					for _, target := range set.targets {
						if n.ID <= target {
							st.Edges++
						}
					}
				}
			}
		})
	}
	return st
}

// Txn is the write side of Update.
//
// Thread Safety: NOT safe for concurrent use; owned by one Update call.
type Txn struct {
	staged  map[string]*Node
	created map[string]bool
}

// Node returns the staged copy of id, creating an empty node when id does
// not exist yet. id must be one of the ids passed to Update.
func (t *Txn) Node(id string) (*Node, error) {
	n, ok := t.staged[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotLocked, id)
	}
	return n, nil
}

// Created reports whether id is new in this transaction.
func (t *Txn) Created(id string) bool {
	return t.created[id]
}

// Update runs fn as a transaction over the given node ids.
//
// Description:
//
//	Locks every id in lexicographic order, stages a clone of each node
//	(or a new node), runs fn, hands the staged nodes to the journal and on
//	success swaps them in. Nodes fn never modified are swapped in as
//	equal copies. If fn or the journal fails nothing becomes visible.
//
// Inputs:
//
//	ctx - Context for the journal and listeners.
//	ids - Every node fn may touch. Duplicates are ignored.
//	fn - Mutations against the staged nodes.
//
// Outputs:
//
//	error - fn's error as returned, or a journal failure wrapping
//	        ErrJournal (and any *NodeError the journal reported).
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Update(ctx context.Context, ids []string, fn func(tx *Txn) error) error {
	start := time.Now()
	ids = sortedUnique(ids)
	for _, id := range ids {
		if id == "" {
			return ErrEmptyID
		}
	}

	ctx, span := startUpdateSpan(ctx, len(ids))
	defer span.End()

	entries := s.acquire(ids)
	for _, e := range entries {
		e.mu.Lock()
	}
	locked := true
	release := func() {
		if !locked {
			return
		}
		locked = false
		for i := len(entries) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
		}
	}
	defer release()

	tx := &Txn{
		staged:  make(map[string]*Node, len(ids)),
		created: make(map[string]bool),
	}
	for i, id := range ids {
		if entries[i].node == nil {
			tx.staged[id] = NewNode(id)
			tx.created[id] = true
		} else {
			tx.staged[id] = entries[i].node.Clone()
		}
	}

	if err := fn(tx); err != nil {
		recordUpdateMetrics(ctx, time.Since(start), len(ids), "aborted")
		return err
	}

	nodes := make([]*Node, len(ids))
	for i, id := range ids {
		nodes[i] = tx.staged[id]
	}
	if err := s.journal.Commit(ctx, nodes); err != nil {
		s.logger.Warn("journal rejected transaction",
			slog.Int("nodes", len(ids)),
			slog.String("error", err.Error()),
		)
		recordUpdateMetrics(ctx, time.Since(start), len(ids), "journal_failed")
		telemetry.RecordError(span, err)
		return fmt.Errorf("%w: %w", ErrJournal, err)
	}

	var fresh []string
	for i, id := range ids {
		entries[i].node = tx.staged[id]
		if tx.created[id] {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) > 0 {
		s.mu.Lock()
		s.order = append(s.order, fresh...)
		s.mu.Unlock()
	}

	release()

	recordUpdateMetrics(ctx, time.Since(start), len(ids), "committed")
	for _, l := range s.listeners {
		l(ctx, ids)
	}
	return nil
}

// acquire returns the entries for ids, creating empty slots. Slots whose
// first commit fails stay empty and are reused by later writers.
func (s *Store) acquire(ids []string) []*entry {
	out := make([]*entry, len(ids))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range ids {
		e, ok := s.entries[id]
		if !ok {
			e = &entry{}
			s.entries[id] = e
		}
		out[i] = e
	}
	return out
}

func sortedUnique(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	n := 0
	for i, id := range out {
		if i > 0 && id == out[n-1] {
			continue
		}
		out[n] = id
		n++
	}
	return out[:n]
}
