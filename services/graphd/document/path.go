// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package document

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a path: an object key or an array index.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// Key returns an object-key segment.
func Key(k string) Segment { return Segment{key: k} }

// Index returns an array-index segment.
func Index(i int) Segment { return Segment{index: i, isIndex: true} }

// IsIndex reports whether s addresses an array element.
func (s Segment) IsIndex() bool { return s.isIndex }

// String returns the segment as it appears in a dotted path.
func (s Segment) String() string {
	if s.isIndex {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	return s.key
}

// objectKey is the key used when s is applied to an object. An index
// applied to an object addresses the decimal key, as in "0".
func (s Segment) objectKey() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.key
}

// ParsePath splits a dotted path into segments.
//
// Description:
//
//	Segments are separated by '.'. A segment written as "[n]" is an array
//	index; a trailing "[n]" on a key ("tags[2]") is split into the key and
//	the index. Everything else is an object key, taken verbatim, so reserved
//	prefixes such as ">rel" or "-order" pass through untouched.
//
// Example:
//
//	ParsePath("node-1.>rel.node-2.-order") // 4 key segments
//	ParsePath("node-1.tags[0]")            // key, key, index
func ParsePath(path string) ([]Segment, error) {
	if path == "" {
		return nil, nil
	}
	parts := strings.Split(path, ".")
	segs := make([]Segment, 0, len(parts))
	for _, part := range parts {
		var indexes []Segment
		for {
			open := strings.LastIndexByte(part, '[')
			if open < 0 || !strings.HasSuffix(part, "]") {
				break
			}
			n, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil {
				break
			}
			if n < 0 {
				return nil, fmt.Errorf("%w: negative index in %q", ErrInvalidPath, path)
			}
			indexes = append([]Segment{Index(n)}, indexes...)
			part = part[:open]
		}
		if part == "" && len(indexes) == 0 {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
		if part != "" {
			segs = append(segs, Key(part))
		}
		segs = append(segs, indexes...)
	}
	return segs, nil
}

// Get reads the value at path inside root.
//
// Description:
//
//	Walks root one segment at a time. Returns false when any step is
//	missing or the current value cannot be indexed by the segment.
//
// Inputs:
//
//	root - Value to read from.
//	path - Segments to follow. An empty path returns root.
//
// Outputs:
//
//	Value - The value found.
//	bool - False if the path does not resolve.
func Get(root Value, path ...Segment) (Value, bool) {
	current := root
	for _, seg := range path {
		switch current.kind {
		case KindObject:
			next, ok := current.obj.Get(seg.objectKey())
			if !ok {
				return Value{}, false
			}
			current = next
		case KindArray:
			if !seg.isIndex || seg.index < 0 || seg.index >= len(current.arr) {
				return Value{}, false
			}
			current = current.arr[seg.index]
		default:
			return Value{}, false
		}
	}
	return current, true
}

// Set writes v at path inside root, creating intermediate containers.
//
// Description:
//
//	Any intermediate value that is missing, null or a scalar is replaced
//	by a new container: an array when the following segment is an index,
//	an object otherwise. Arrays grow with nulls to reach an index. Objects
//	are modified in place; because arrays may be reallocated, the updated
//	root is returned and must be used by the caller.
//
// Inputs:
//
//	root - Value to write into.
//	path - Segments to follow. An empty path returns v.
//	v - Value to store.
//
// Outputs:
//
//	Value - The updated root.
//	error - ErrInvalidPath for negative indexes or a key applied to an array.
//
// Example:
//
//	root, _ := Set(Null(), []Segment{Key("a"), Index(1), Key("b")}, Int(42))
//	// {"a":[null,{"b":42}]}
func Set(root Value, path []Segment, v Value) (Value, error) {
	if len(path) == 0 {
		return v, nil
	}
	seg := path[0]

	container := root
	if container.kind != KindObject && container.kind != KindArray {
		if seg.isIndex {
			container = Array()
		} else {
			container = ObjectValue(NewObject())
		}
	}

	switch container.kind {
	case KindObject:
		child, _ := container.obj.Get(seg.objectKey())
		updated, err := Set(child, path[1:], v)
		if err != nil {
			return root, err
		}
		container.obj.Set(seg.objectKey(), updated)
		return container, nil

	default: // KindArray
		if !seg.isIndex {
			return root, fmt.Errorf("%w: key %q applied to an array", ErrInvalidPath, seg.key)
		}
		if seg.index < 0 {
			return root, fmt.Errorf("%w: negative index %d", ErrInvalidPath, seg.index)
		}
		items := container.arr
		for len(items) <= seg.index {
			items = append(items, Null())
		}
		updated, err := Set(items[seg.index], path[1:], v)
		if err != nil {
			return root, err
		}
		items[seg.index] = updated
		return Array(items...), nil
	}
}
