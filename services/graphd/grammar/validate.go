// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package grammar

import (
	"github.com/AleutianAI/AleutianGraph/services/graphd/document"
)

// ValidatePush checks a push document before anything is written.
//
// Description:
//
//	Walks the whole document with the same context rules the merger uses
//	and rejects anything the merger could not apply:
//	  - node ids and target ids must be non-empty
//	  - node bodies and edge-target bodies must be objects
//	  - edge selectors need a relation name and an object of targets
//	  - rights grants must be strings over RightsAlphabet
//	  - the wildcard rights selector takes an object of plain identity fields
//	  - edge property names must be non-empty
//
// Outputs:
//
//	error - A *MalformedInputError (matches ErrMalformedInput), or nil.
func ValidatePush(doc *document.Object) error {
	if doc == nil {
		return malformed(nil, "push document must be an object")
	}
	var err error
	doc.Range(func(id string, body document.Value) bool {
		path := []string{id}
		if id == "" {
			err = malformed(path, "node id must not be empty")
			return false
		}
		obj, ok := body.AsObject()
		if !ok {
			err = malformed(path, "node body must be an object, got %s", body.Kind())
			return false
		}
		err = validatePushBody(obj, ContextNodeBody, path)
		return err == nil
	})
	return err
}

func validatePushBody(body *document.Object, ctx Context, path []string) error {
	var err error
	body.Range(func(raw string, v document.Value) bool {
		keyPath := append(path, raw)
		key := Classify(raw, ctx)
		switch key.Kind {
		case KindEdgeProperty:
			if key.Name == "" {
				err = malformed(keyPath, "edge property name must not be empty")
			}
		case KindRightsSelector:
			err = validatePushRights(key, v, keyPath)
		case KindEdgeSelector:
			err = validatePushEdge(key, v, keyPath)
		}
		return err == nil
	})
	return err
}

func validatePushRights(key Key, v document.Value, path []string) error {
	if key.IsWildcard() {
		identity, ok := v.AsObject()
		if !ok {
			return malformed(path, "actor identity must be an object, got %s", v.Kind())
		}
		var err error
		identity.Range(func(raw string, _ document.Value) bool {
			if Classify(raw, ContextNodeBody).IsReserved() {
				err = malformed(append(path, raw), "actor identity field %q uses a reserved prefix", raw)
			}
			return err == nil
		})
		return err
	}
	mask, ok := v.AsString()
	if !ok {
		return malformed(path, "rights mask must be a string, got %s", v.Kind())
	}
	if !ValidMask(mask) {
		return malformed(path, "rights mask %q uses letters outside %q", mask, RightsAlphabet)
	}
	return nil
}

func validatePushEdge(key Key, v document.Value, path []string) error {
	if key.Name == "" {
		return malformed(path, "edge selector needs a relation name")
	}
	targets, ok := v.AsObject()
	if !ok {
		return malformed(path, "edge selector value must be an object of targets, got %s", v.Kind())
	}
	var err error
	targets.Range(func(target string, body document.Value) bool {
		targetPath := append(path, target)
		if target == "" {
			err = malformed(targetPath, "target id must not be empty")
			return false
		}
		obj, ok := body.AsObject()
		if !ok {
			err = malformed(targetPath, "edge target body must be an object, got %s", body.Kind())
			return false
		}
		err = validatePushBody(obj, ContextEdgeTarget, targetPath)
		return err == nil
	})
	return err
}

// ValidatePull checks a pull query.
//
// Description:
//
//	Selector leaves must be true, false or an object. A node at the top
//	level may be selected with true (everything) as well as an object.
//	Edge selectors need a relation name. Rights selectors for a specific
//	actor take a boolean only.
//
// Outputs:
//
//	error - A *MalformedInputError (matches ErrMalformedInput), or nil.
func ValidatePull(query *document.Object) error {
	if query == nil {
		return malformed(nil, "pull query must be an object")
	}
	var err error
	query.Range(func(id string, spec document.Value) bool {
		path := []string{id}
		if id == "" {
			err = malformed(path, "node id must not be empty")
			return false
		}
		err = validatePullSpec(spec, ContextNodeBody, path)
		return err == nil
	})
	return err
}

// validatePullSpec validates a node or edge-target selector.
func validatePullSpec(spec document.Value, ctx Context, path []string) error {
	if err := checkSelector(spec, path); err != nil {
		return err
	}
	obj, ok := spec.AsObject()
	if !ok {
		return nil
	}
	var err error
	obj.Range(func(raw string, v document.Value) bool {
		keyPath := append(path, raw)
		key := Classify(raw, ctx)
		switch key.Kind {
		case KindEdgeProperty:
			if key.Name == "" {
				err = malformed(keyPath, "edge property name must not be empty")
				return false
			}
			err = validatePropertySelector(v, keyPath)
		case KindPlainProperty:
			err = validatePropertySelector(v, keyPath)
		case KindRightsSelector:
			if key.IsWildcard() {
				err = validatePropertySelector(v, keyPath)
			} else if _, isBool := v.AsBool(); !isBool {
				err = malformed(keyPath, "rights selector takes true or false, got %s", v.Kind())
			}
		case KindEdgeSelector:
			err = validatePullEdge(key, v, keyPath)
		}
		return err == nil
	})
	return err
}

func validatePullEdge(key Key, v document.Value, path []string) error {
	if key.Name == "" {
		return malformed(path, "edge selector needs a relation name")
	}
	if err := checkSelector(v, path); err != nil {
		return err
	}
	spec, ok := v.AsObject()
	if !ok {
		return nil
	}
	if IsUniformEdgeSpec(spec) {
		return validatePullSpec(v, ContextEdgeTarget, path)
	}
	var err error
	spec.Range(func(target string, targetSpec document.Value) bool {
		targetPath := append(path, target)
		if target == "" {
			err = malformed(targetPath, "target id must not be empty")
			return false
		}
		err = validatePullSpec(targetSpec, ContextEdgeTarget, targetPath)
		return err == nil
	})
	return err
}

// validatePropertySelector validates a selector over stored property data,
// where keys carry no grammar.
func validatePropertySelector(v document.Value, path []string) error {
	if err := checkSelector(v, path); err != nil {
		return err
	}
	obj, ok := v.AsObject()
	if !ok {
		return nil
	}
	var err error
	obj.Range(func(raw string, child document.Value) bool {
		err = validatePropertySelector(child, append(path, raw))
		return err == nil
	})
	return err
}

func checkSelector(v document.Value, path []string) error {
	switch v.Kind() {
	case document.KindBool, document.KindObject:
		return nil
	default:
		return malformed(path, "selector must be true, false or an object, got %s", v.Kind())
	}
}

// IsUniformEdgeSpec decides how the object under a pull edge selector is read.
//
// Description:
//
//	When any key is an edge property ("-x"), an edge selector (">rel",
//	"<rel", "<>rel") or the bare identity selector "@", the object is a
//	filter applied to every target of the edge group; its plain keys then
//	select properties of each target node. Otherwise every key is a target
//	id and each value filters only that target. "@user1" is an actor node
//	id here, never a rights selector.
func IsUniformEdgeSpec(spec *document.Object) bool {
	uniform := false
	spec.Range(func(raw string, _ document.Value) bool {
		key := Classify(raw, ContextEdgeTarget)
		if key.Kind == KindEdgeProperty || key.Kind == KindEdgeSelector || key.IsWildcard() {
			uniform = true
			return false
		}
		return true
	})
	return uniform
}
