// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package grammar classifies the keys of push documents and pull queries.
//
// Every key in a document means one of a handful of things depending on its
// prefix and on where it sits:
//
//	"node-1"        node id (top level, or a key of an edge-target map)
//	"@user123"      actor node id at the same levels
//	"title"         plain property inside a node body
//	">rel" "<rel"   outgoing / incoming edge selector
//	"<>rel"         bidirectional edge selector
//	"@user123"      rights selector inside a node body
//	"@"             wildcard rights selector (the node's own actor fields)
//	"-order"        edge-scoped property inside an edge-target body
//
// # Context
//
// The same raw key classifies differently depending on the Context it is
// found in. Callers thread the Context explicitly through their recursion;
// the '@' prefix in particular is a node id at container level and a rights
// selector inside a body.
package grammar

import "strings"

// Reserved key prefixes. BiPrefix must be checked before In/Out.
const (
	BiPrefix           = "<>"
	OutPrefix          = ">"
	InPrefix           = "<"
	RightsPrefix       = "@"
	EdgePropertyPrefix = "-"
)

// Rights mask letters.
const (
	RightRead   = 'r'
	RightWrite  = 'w'
	RightAdmin  = 'a'
	RightBelong = 'b'
)

// RightsAlphabet lists every letter allowed in a rights mask.
const RightsAlphabet = "rwab"

// Direction is the orientation of an edge selector.
type Direction int

const (
	// DirectionOut selects edges leaving the node (">").
	DirectionOut Direction = iota

	// DirectionIn selects edges arriving at the node ("<").
	DirectionIn

	// DirectionBi selects symmetric edges ("<>").
	DirectionBi
)

// String returns the string representation of the Direction.
func (d Direction) String() string {
	switch d {
	case DirectionOut:
		return "out"
	case DirectionIn:
		return "in"
	case DirectionBi:
		return "bi"
	default:
		return "unknown"
	}
}

// Prefix returns the key prefix that selects d.
func (d Direction) Prefix() string {
	switch d {
	case DirectionIn:
		return InPrefix
	case DirectionBi:
		return BiPrefix
	default:
		return OutPrefix
	}
}

// Reverse returns the direction of the same edge seen from the other end.
func (d Direction) Reverse() Direction {
	switch d {
	case DirectionOut:
		return DirectionIn
	case DirectionIn:
		return DirectionOut
	default:
		return d
	}
}

// Context tells Classify where a key was found.
type Context int

const (
	// ContextNodeContainer is the top level of a document, or the map
	// under an edge selector. Its keys are node ids.
	ContextNodeContainer Context = iota

	// ContextNodeBody is the object describing one node.
	ContextNodeBody

	// ContextEdgeTarget is the object under one target id of an edge
	// selector. It may carry edge-scoped properties.
	ContextEdgeTarget
)

// String returns the string representation of the Context.
func (c Context) String() string {
	switch c {
	case ContextNodeContainer:
		return "node-container"
	case ContextNodeBody:
		return "node-body"
	case ContextEdgeTarget:
		return "edge-target"
	default:
		return "unknown"
	}
}

// KeyKind is the classification of a key.
type KeyKind int

const (
	// KindNodeID is a node id at container level.
	KindNodeID KeyKind = iota

	// KindPlainProperty is an ordinary property name.
	KindPlainProperty

	// KindEdgeSelector selects an edge group by direction and relation.
	KindEdgeSelector

	// KindRightsSelector selects a rights grant, or the wildcard.
	KindRightsSelector

	// KindEdgeProperty is an edge-scoped property name.
	KindEdgeProperty
)

// keyKindNames maps KeyKind values to their string representations.
var keyKindNames = map[KeyKind]string{
	KindNodeID:         "node-id",
	KindPlainProperty:  "plain-property",
	KindEdgeSelector:   "edge-selector",
	KindRightsSelector: "rights-selector",
	KindEdgeProperty:   "edge-property",
}

// String returns the string representation of the KeyKind.
func (k KeyKind) String() string {
	if name, ok := keyKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Key is a classified document key.
type Key struct {
	// Raw is the key exactly as it appeared.
	Raw string

	// Kind is the classification.
	Kind KeyKind

	// Name is the meaningful part of the key: the node id, property name,
	// relation name, actor id or edge property name. Empty for the
	// wildcard rights selector.
	Name string

	// Direction is set for edge selectors only.
	Direction Direction
}

// IsWildcard reports whether k is the bare rights selector "@".
func (k Key) IsWildcard() bool {
	return k.Kind == KindRightsSelector && k.Name == ""
}

// IsReserved reports whether k carries a reserved prefix in its context,
// i.e. it is anything other than a node id or a plain property.
func (k Key) IsReserved() bool {
	return k.Kind != KindNodeID && k.Kind != KindPlainProperty
}

// Classify returns the meaning of raw in the given context.
//
// Description:
//
//	Rules are applied in order:
//	 1. node-container context: the key is a node id, '@' included
//	 2. edge-target context and leading '-': edge property
//	 3. leading "<>": bidirectional edge selector
//	 4. leading '>' or '<': outgoing or incoming edge selector
//	 5. leading '@': rights selector, wildcard when nothing follows
//	 6. anything else: plain property
//
//	Classify never fails; structural checks such as empty relation names
//	belong to the validators in this package.
func Classify(raw string, ctx Context) Key {
	if ctx == ContextNodeContainer {
		return Key{Raw: raw, Kind: KindNodeID, Name: raw}
	}
	if ctx == ContextEdgeTarget && strings.HasPrefix(raw, EdgePropertyPrefix) {
		return Key{Raw: raw, Kind: KindEdgeProperty, Name: raw[len(EdgePropertyPrefix):]}
	}
	switch {
	case strings.HasPrefix(raw, BiPrefix):
		return Key{Raw: raw, Kind: KindEdgeSelector, Name: raw[len(BiPrefix):], Direction: DirectionBi}
	case strings.HasPrefix(raw, OutPrefix):
		return Key{Raw: raw, Kind: KindEdgeSelector, Name: raw[len(OutPrefix):], Direction: DirectionOut}
	case strings.HasPrefix(raw, InPrefix):
		return Key{Raw: raw, Kind: KindEdgeSelector, Name: raw[len(InPrefix):], Direction: DirectionIn}
	case strings.HasPrefix(raw, RightsPrefix):
		return Key{Raw: raw, Kind: KindRightsSelector, Name: raw[len(RightsPrefix):]}
	default:
		return Key{Raw: raw, Kind: KindPlainProperty, Name: raw}
	}
}

// EdgeKey renders the selector key for a direction and relation.
func EdgeKey(dir Direction, relation string) string {
	return dir.Prefix() + relation
}

// RightsKey renders the rights selector key for an actor id.
func RightsKey(actor string) string {
	return RightsPrefix + actor
}

// EdgePropertyKey renders the edge-scoped key for a property name.
func EdgePropertyKey(name string) string {
	return EdgePropertyPrefix + name
}

// IsActorID reports whether id names an actor node.
func IsActorID(id string) bool {
	return strings.HasPrefix(id, RightsPrefix)
}

// ValidMask reports whether mask only uses letters from RightsAlphabet.
func ValidMask(mask string) bool {
	for _, r := range mask {
		if !strings.ContainsRune(RightsAlphabet, r) {
			return false
		}
	}
	return true
}
