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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// MaxDepth bounds the nesting depth accepted by Decode.
const MaxDepth = 512

// jsonAdapter drives the streaming iterator and stream used for ordered
// decode/encode. HTML escaping is off so ids such as "<>rel" survive verbatim.
var jsonAdapter = jsoniter.Config{
	EscapeHTML: false,
	UseNumber:  true,
}.Froze()

// Decode parses data into a Value, preserving object key order.
//
// Description:
//
//	Validates the input as a single JSON value, then walks it with a
//	streaming iterator so that object keys are recorded in document order.
//	When a key repeats inside one object the later value wins and the key
//	keeps its first position.
//
// Inputs:
//
//	data - UTF-8 JSON text.
//
// Outputs:
//
//	Value - The decoded value.
//	error - ErrSyntax if data is not valid JSON, ErrTooDeep if nesting
//	exceeds MaxDepth.
func Decode(data []byte) (Value, error) {
	// The iterator alone stops after the first value and cannot validate a
	// bare top-level number, so the whole input is checked first.
	if !json.Valid(data) {
		return Value{}, fmt.Errorf("%w: input is not a single valid JSON value", ErrSyntax)
	}

	iter := jsonAdapter.BorrowIterator(data)
	defer jsonAdapter.ReturnIterator(iter)

	d := &decoder{}
	v := d.readValue(iter, 0)
	if d.tooDeep {
		return Value{}, ErrTooDeep
	}
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return Value{}, fmt.Errorf("%w: %v", ErrSyntax, iter.Error)
	}
	return v, nil
}

// DecodeObject parses data and requires the root to be an object.
func DecodeObject(data []byte) (*Object, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.AsObject()
	if !ok {
		return nil, fmt.Errorf("%w: root is %s, want object", ErrNotObject, v.Kind())
	}
	return obj, nil
}

// decoder carries state across the recursive walk.
type decoder struct {
	tooDeep bool
}

func (d *decoder) readValue(iter *jsoniter.Iterator, depth int) Value {
	if depth > MaxDepth {
		d.tooDeep = true
		iter.ReportError("decode", "maximum nesting depth exceeded")
		return Value{}
	}

	switch iter.WhatIsNext() {
	case jsoniter.NilValue:
		iter.ReadNil()
		return Null()
	case jsoniter.BoolValue:
		return Bool(iter.ReadBool())
	case jsoniter.NumberValue:
		return Number(iter.ReadNumber())
	case jsoniter.StringValue:
		return String(iter.ReadString())
	case jsoniter.ArrayValue:
		items := make([]Value, 0)
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			items = append(items, d.readValue(it, depth+1))
			return it.Error == nil
		})
		return Array(items...)
	case jsoniter.ObjectValue:
		obj := NewObject()
		iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
			obj.Set(field, d.readValue(it, depth+1))
			return it.Error == nil
		})
		return ObjectValue(obj)
	default:
		iter.ReportError("decode", "unexpected token")
		return Value{}
	}
}

// Encode serializes v to compact JSON, writing object keys in order.
func Encode(v Value) ([]byte, error) {
	stream := jsonAdapter.BorrowStream(nil)
	defer jsonAdapter.ReturnStream(stream)

	writeValue(stream, v)
	if stream.Error != nil {
		return nil, fmt.Errorf("encode document: %w", stream.Error)
	}
	// The stream buffer goes back to the pool, so copy it out.
	return append([]byte(nil), stream.Buffer()...), nil
}

// EncodeIndent is like Encode but indents the output for humans.
func EncodeIndent(v Value, prefix, indent string) ([]byte, error) {
	raw, err := Encode(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, prefix, indent); err != nil {
		return nil, fmt.Errorf("indent document: %w", err)
	}
	return buf.Bytes(), nil
}

func writeValue(stream *jsoniter.Stream, v Value) {
	switch v.kind {
	case KindNull:
		stream.WriteNil()
	case KindBool:
		stream.WriteBool(v.b)
	case KindNumber:
		stream.WriteRaw(v.s)
	case KindString:
		stream.WriteString(v.s)
	case KindArray:
		stream.WriteArrayStart()
		for i, item := range v.arr {
			if i > 0 {
				stream.WriteMore()
			}
			writeValue(stream, item)
		}
		stream.WriteArrayEnd()
	case KindObject:
		stream.WriteObjectStart()
		first := true
		v.obj.Range(func(key string, item Value) bool {
			if !first {
				stream.WriteMore()
			}
			first = false
			stream.WriteObjectField(key)
			writeValue(stream, item)
			return true
		})
		stream.WriteObjectEnd()
	}
}
