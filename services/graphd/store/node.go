// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"github.com/AleutianAI/AleutianGraph/services/graphd/document"
	"github.com/AleutianAI/AleutianGraph/services/graphd/grammar"
)

// EdgeKey identifies an edge group on one node.
type EdgeKey struct {
	Direction grammar.Direction
	Relation  string
}

// String returns the selector key for the group, e.g. ">friend".
func (k EdgeKey) String() string {
	return grammar.EdgeKey(k.Direction, k.Relation)
}

// EdgeRecord holds the edge-scoped properties of one edge.
type EdgeRecord struct {
	Properties *document.Object
}

// Clone returns a deep copy of the record.
func (r *EdgeRecord) Clone() *EdgeRecord {
	return &EdgeRecord{Properties: r.Properties.Clone()}
}

// EdgeSet is the ordered set of targets of one edge group.
//
// Targets keep the order in which they were first linked.
type EdgeSet struct {
	targets []string
	records map[string]*EdgeRecord
}

func newEdgeSet() *EdgeSet {
	return &EdgeSet{records: make(map[string]*EdgeRecord)}
}

// Len returns the number of targets.
func (s *EdgeSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.targets)
}

// Targets returns a copy of the target ids in link order.
func (s *EdgeSet) Targets() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.targets...)
}

// Get returns the record linking to target.
func (s *EdgeSet) Get(target string) (*EdgeRecord, bool) {
	if s == nil {
		return nil, false
	}
	r, ok := s.records[target]
	return r, ok
}

// Ensure returns the record linking to target, creating an empty one.
func (s *EdgeSet) Ensure(target string) *EdgeRecord {
	if r, ok := s.records[target]; ok {
		return r
	}
	r := &EdgeRecord{Properties: document.NewObject()}
	s.records[target] = r
	s.targets = append(s.targets, target)
	return r
}

func (s *EdgeSet) clone() *EdgeSet {
	c := &EdgeSet{
		targets: append([]string(nil), s.targets...),
		records: make(map[string]*EdgeRecord, len(s.records)),
	}
	for id, r := range s.records {
		c.records[id] = r.Clone()
	}
	return c
}

// Node is one vertex of the graph.
//
// Description:
//
//	A node carries plain properties, rights grants keyed by actor id and
//	edge groups keyed by (direction, relation). Every edge is indexed at
//	both endpoints: an OUT record at the source, an IN record at the
//	target, or a BI record at each end. The two copies of a record are kept
//	identical by the push merger.
//
// Thread Safety: NOT safe for concurrent use. The Store hands out nodes
// only under the owning lock or as clones.
type Node struct {
	ID         string
	Properties *document.Object

	// rights maps actor id to mask, in grant order. Values are strings.
	rights *document.Object

	edgeOrder []EdgeKey
	edges     map[EdgeKey]*EdgeSet
}

// NewNode creates an empty node.
func NewNode(id string) *Node {
	return &Node{
		ID:         id,
		Properties: document.NewObject(),
		rights:     document.NewObject(),
		edges:      make(map[EdgeKey]*EdgeSet),
	}
}

// Right returns the mask granted to actor.
func (n *Node) Right(actor string) (string, bool) {
	v, ok := n.rights.Get(actor)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// SetRight replaces the mask granted to actor.
func (n *Node) SetRight(actor, mask string) {
	n.rights.Set(actor, document.String(mask))
}

// RangeRights calls fn for each grant in order until fn returns false.
func (n *Node) RangeRights(fn func(actor, mask string) bool) {
	n.rights.Range(func(actor string, v document.Value) bool {
		mask, _ := v.AsString()
		return fn(actor, mask)
	})
}

// RightsCount returns the number of grants.
func (n *Node) RightsCount() int {
	return n.rights.Len()
}

// Edges returns the edge group for key, or nil.
func (n *Node) Edges(key EdgeKey) *EdgeSet {
	return n.edges[key]
}

// EnsureEdges returns the edge group for key, creating it.
func (n *Node) EnsureEdges(key EdgeKey) *EdgeSet {
	if s, ok := n.edges[key]; ok {
		return s
	}
	s := newEdgeSet()
	n.edges[key] = s
	n.edgeOrder = append(n.edgeOrder, key)
	return s
}

// EdgeKeys returns the node's edge groups in creation order.
func (n *Node) EdgeKeys() []EdgeKey {
	return append([]EdgeKey(nil), n.edgeOrder...)
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	c := &Node{
		ID:         n.ID,
		Properties: n.Properties.Clone(),
		rights:     n.rights.Clone(),
		edgeOrder:  append([]EdgeKey(nil), n.edgeOrder...),
		edges:      make(map[EdgeKey]*EdgeSet, len(n.edges)),
	}
	for k, s := range n.edges {
		c.edges[k] = s.clone()
	}
	return c
}

// Document renders the node in push grammar:
//
//	{"prop":..., "@actor":"rw", ">rel":{"target":{"-p":...}}}
//
// Replaying the document of every node reproduces the graph.
func (n *Node) Document() *document.Object {
	out := n.Properties.Clone()
	n.RangeRights(func(actor, mask string) bool {
		out.Set(grammar.RightsKey(actor), document.String(mask))
		return true
	})
	for _, key := range n.edgeOrder {
		set := n.edges[key]
		targets := document.NewObject()
		for _, target := range set.targets {
			body := document.NewObject()
			set.records[target].Properties.Range(func(name string, v document.Value) bool {
				body.Set(grammar.EdgePropertyKey(name), v.Clone())
				return true
			})
			targets.Set(target, document.ObjectValue(body))
		}
		out.Set(key.String(), document.ObjectValue(targets))
	}
	return out
}

// NodeFromDocument rebuilds a node from the output of Document.
//
// Description:
//
//	Used by journals to load stored records. Edge groups are restored on
//	this node only; the mirrored copy lives in the other endpoint's own
//	document.
//
// Outputs:
//
//	*Node - The rebuilt node.
//	error - A grammar.MalformedInputError if doc is not a valid node body.
func NodeFromDocument(id string, doc *document.Object) (*Node, error) {
	wrapper := document.NewObject()
	wrapper.Set(id, document.ObjectValue(doc))
	if err := grammar.ValidatePush(wrapper); err != nil {
		return nil, err
	}

	n := NewNode(id)
	doc.Range(func(raw string, v document.Value) bool {
		key := grammar.Classify(raw, grammar.ContextNodeBody)
		switch key.Kind {
		case grammar.KindRightsSelector:
			if key.IsWildcard() {
				obj, _ := v.AsObject()
				obj.Range(func(k string, pv document.Value) bool {
					n.Properties.Set(k, pv.Clone())
					return true
				})
				return true
			}
			mask, _ := v.AsString()
			n.SetRight(key.Name, mask)
		case grammar.KindEdgeSelector:
			set := n.EnsureEdges(EdgeKey{Direction: key.Direction, Relation: key.Name})
			targets, _ := v.AsObject()
			targets.Range(func(target string, body document.Value) bool {
				rec := set.Ensure(target)
				bodyObj, _ := body.AsObject()
				bodyObj.Range(func(bk string, bv document.Value) bool {
					bkey := grammar.Classify(bk, grammar.ContextEdgeTarget)
					if bkey.Kind == grammar.KindEdgeProperty {
						rec.Properties.Set(bkey.Name, bv.Clone())
					}
					return true
				})
				return true
			})
		default:
			n.Properties.Set(raw, v.Clone())
		}
		return true
	})
	return n, nil
}
