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
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianGraph/services/graphd/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		raw      string
		ctx      Context
		wantKind KeyKind
		wantName string
		wantDir  Direction
	}{
		// Container level: everything is a node id, '@' included.
		{"node-1", ContextNodeContainer, KindNodeID, "node-1", DirectionOut},
		{"@user123", ContextNodeContainer, KindNodeID, "@user123", DirectionOut},
		{">looks-like-edge", ContextNodeContainer, KindNodeID, ">looks-like-edge", DirectionOut},

		// Node body.
		{"property1", ContextNodeBody, KindPlainProperty, "property1", DirectionOut},
		{">relationship1", ContextNodeBody, KindEdgeSelector, "relationship1", DirectionOut},
		{"<relationship2", ContextNodeBody, KindEdgeSelector, "relationship2", DirectionIn},
		{"<>friend", ContextNodeBody, KindEdgeSelector, "friend", DirectionBi},
		{"@user123", ContextNodeBody, KindRightsSelector, "user123", DirectionOut},
		{"@", ContextNodeBody, KindRightsSelector, "", DirectionOut},
		{"-order", ContextNodeBody, KindPlainProperty, "-order", DirectionOut},

		// Edge-target body.
		{"-order", ContextEdgeTarget, KindEdgeProperty, "order", DirectionOut},
		{"nodeProperty1", ContextEdgeTarget, KindPlainProperty, "nodeProperty1", DirectionOut},
		{">next", ContextEdgeTarget, KindEdgeSelector, "next", DirectionOut},
		{"<>peer", ContextEdgeTarget, KindEdgeSelector, "peer", DirectionBi},
		{"@admin", ContextEdgeTarget, KindRightsSelector, "admin", DirectionOut},
	}

	for _, tt := range tests {
		t.Run(tt.ctx.String()+"/"+tt.raw, func(t *testing.T) {
			key := Classify(tt.raw, tt.ctx)
			assert.Equal(t, tt.raw, key.Raw)
			assert.Equal(t, tt.wantKind, key.Kind, "kind %s", key.Kind)
			assert.Equal(t, tt.wantName, key.Name)
			if key.Kind == KindEdgeSelector {
				assert.Equal(t, tt.wantDir, key.Direction)
			}
		})
	}
}

// TestClassify_BiBeforeIn verifies "<>" is never read as "<" + ">rel".
func TestClassify_BiBeforeIn(t *testing.T) {
	key := Classify("<>rel", ContextNodeBody)
	assert.Equal(t, DirectionBi, key.Direction)
	assert.Equal(t, "rel", key.Name)

	key = Classify("<<rel", ContextNodeBody)
	assert.Equal(t, DirectionIn, key.Direction)
	assert.Equal(t, "<rel", key.Name)
}

func TestKeyHelpers(t *testing.T) {
	assert.True(t, Classify("@", ContextNodeBody).IsWildcard())
	assert.False(t, Classify("@a", ContextNodeBody).IsWildcard())
	assert.True(t, Classify("-x", ContextEdgeTarget).IsReserved())
	assert.False(t, Classify("x", ContextEdgeTarget).IsReserved())

	assert.Equal(t, ">rel", EdgeKey(DirectionOut, "rel"))
	assert.Equal(t, "<rel", EdgeKey(DirectionIn, "rel"))
	assert.Equal(t, "<>rel", EdgeKey(DirectionBi, "rel"))
	assert.Equal(t, "@u1", RightsKey("u1"))
	assert.Equal(t, "-w", EdgePropertyKey("w"))
	assert.True(t, IsActorID("@group456"))
	assert.False(t, IsActorID("node-1"))

	assert.Equal(t, DirectionIn, DirectionOut.Reverse())
	assert.Equal(t, DirectionOut, DirectionIn.Reverse())
	assert.Equal(t, DirectionBi, DirectionBi.Reverse())
}

// TestValidMask_AllShortMasks enumerates every mask up to three letters.
func TestValidMask_AllShortMasks(t *testing.T) {
	assert.True(t, ValidMask(""))
	for length := 1; length <= 3; length++ {
		masks := Masks(length)
		require.Len(t, masks, pow(len(RightsAlphabet), length))
		for _, m := range masks {
			assert.True(t, ValidMask(m), m)
		}
	}
	assert.False(t, ValidMask("rx"))
	assert.False(t, ValidMask("R"))
}

func TestPermutations(t *testing.T) {
	assert.Equal(t, [][]int{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}, {2, 0}, {2, 1}, {2, 2}}, Permutations(2, 3))
	assert.Nil(t, Permutations(0, 3))
	assert.Len(t, Permutations(3, 4), 64)
}

func pow(base, exp int) int {
	n := 1
	for i := 0; i < exp; i++ {
		n *= base
	}
	return n
}

func mustObject(t *testing.T, raw string) *document.Object {
	t.Helper()
	obj, err := document.DecodeObject([]byte(raw))
	require.NoError(t, err)
	return obj
}

func TestValidatePush_Accepts(t *testing.T) {
	docs := map[string]string{
		"scalars":      `{"node-1":{"property1":"value1","property2":"value2"}}`,
		"rights":       `{"node-1":{"@user123":"rw","@admin":"a"}}`,
		"actors":       `{"@user123":{"name":"John Doe"},"@group456":{"name":"Admins","@user123":"b"}}`,
		"edges":        `{"node-1":{">relationship1":{"node-2":{"-property1":"value1","-order":1}}}}`,
		"nested edges": `{"root":{">a":{"l1":{">b":{"l2":{"prop1":"val1","@u":"r"}}}}}}`,
		"identity":     `{"@user1":{"@":{"name":"John"}}}`,
		"empty mask":   `{"n":{"@u":""}}`,
		"plain dash":   `{"n":{"-not-edge-scoped":1}}`,
	}
	for name, raw := range docs {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, ValidatePush(mustObject(t, raw)))
		})
	}
}

func TestValidatePush_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantPath string
	}{
		{"empty node id", `{"":{"a":1}}`, ""},
		{"scalar body", `{"n":"value"}`, "n"},
		{"bad mask letter", `{"n":{"@u":"rx"}}`, "n.@u"},
		{"mask not string", `{"n":{"@u":1}}`, "n.@u"},
		{"wildcard not object", `{"n":{"@":"rw"}}`, "n.@"},
		{"reserved identity field", `{"n":{"@":{"ok":1,">x":2}}}`, "n.@.>x"},
		{"edge without relation", `{"n":{">":{"t":{}}}}`, "n.>"},
		{"edge value scalar", `{"n":{">rel":"t"}}`, "n.>rel"},
		{"target body scalar", `{"n":{">rel":{"t":1}}}`, "n.>rel.t"},
		{"empty target id", `{"n":{">rel":{"":{}}}}`, "n.>rel."},
		{"empty edge property", `{"n":{">rel":{"t":{"-":1}}}}`, "n.>rel.t.-"},
		{"deep bad mask", `{"n":{">rel":{"t":{"<>p":{"u":{"@x":"z"}}}}}}`, "n.>rel.t.<>p.u.@x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePush(mustObject(t, tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedInput)

			var mErr *MalformedInputError
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, tt.wantPath, mErr.PathString())
		})
	}
}

func TestValidatePull_Accepts(t *testing.T) {
	docs := map[string]string{
		"basic":          `{"node-1":{"property2":true},"node-2":{"property1":true}}`,
		"nested":         `{"node-1":{"property1":{"subproperty1":true,"subproperty2":true},"property2":true}}`,
		"edges true":     `{"node-1":{">relationship1":true}}`,
		"edges mixed":    `{"node-2":{"<relationship2":{"id":true,"nodeProperty1":true,"-edgeProperty1":true,"-order":true}}}`,
		"per target":     `{"node-1":{">relationship1":{"node-2":{"-order":true}}}}`,
		"rights":         `{"node-1":{"property1":true,"@":{"name":true}},"node-2":{"@user123":true,"@group456":true}}`,
		"actor nodes":    `{"@user123":{"name":true,"email":true},"@group456":{"name":true,"@user123":true}}`,
		"whole node":     `{"node-1":true}`,
		"false leaves":   `{"node-1":{"a":false,">r":false}}`,
		"deep uniform":   `{"root":{">a":{">b":{"-w":true,"p":true}}}}`,
		"edge prop tree": `{"n":{">r":{"-meta":{"x":true}}}}`,
	}
	for name, raw := range docs {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, ValidatePull(mustObject(t, raw)))
		})
	}
}

func TestValidatePull_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantPath string
	}{
		{"string leaf", `{"n":{"a":"yes"}}`, "n.a"},
		{"number node spec", `{"n":1}`, "n"},
		{"rights object", `{"n":{"@u":{"x":true}}}`, "n.@u"},
		{"edge no relation", `{"n":{"<>":true}}`, "n.<>"},
		{"per-target scalar", `{"n":{">r":{"t":1}}}`, "n.>r.t"},
		{"uniform scalar", `{"n":{">r":{"-w":"x"}}}`, "n.>r.-w"},
		{"nested property scalar", `{"n":{"p":{"q":null}}}`, "n.p.q"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePull(mustObject(t, tt.raw))
			require.Error(t, err)

			var mErr *MalformedInputError
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, tt.wantPath, mErr.PathString())
		})
	}
}

func TestIsUniformEdgeSpec(t *testing.T) {
	assert.True(t, IsUniformEdgeSpec(mustObject(t, `{"-weight":true}`)))
	assert.True(t, IsUniformEdgeSpec(mustObject(t, `{"id":true,"-order":true}`)))
	assert.True(t, IsUniformEdgeSpec(mustObject(t, `{">next":true}`)))
	assert.False(t, IsUniformEdgeSpec(mustObject(t, `{"node-2":{"-order":true}}`)))
	assert.False(t, IsUniformEdgeSpec(mustObject(t, `{}`)))

	// Actor ids under an edge selector are targets.
	assert.False(t, IsUniformEdgeSpec(mustObject(t, `{"@user123":{"name":true}}`)))
	assert.False(t, IsUniformEdgeSpec(mustObject(t, `{"@user123":true,"node-2":true}`)))
	assert.True(t, IsUniformEdgeSpec(mustObject(t, `{"@":{"name":true}}`)))
	assert.True(t, IsUniformEdgeSpec(mustObject(t, `{"-since":true,"@user123":true}`)))
}

func TestValidatePull_ActorTargets(t *testing.T) {
	assert.NoError(t, ValidatePull(mustObject(t, `{"@g":{">member":{"@u":{"name":true,"-since":true}}}}`)))
	assert.NoError(t, ValidatePull(mustObject(t, `{"@g":{">member":{"@u":true,"@v":false}}}`)))

	err := ValidatePull(mustObject(t, `{"@g":{">member":{"@u":"yes"}}}`))
	var mErr *MalformedInputError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, "@g.>member.@u", mErr.PathString())
}

func TestMalformedInputError_Message(t *testing.T) {
	err := &MalformedInputError{Path: []string{"n", "@u"}, Reason: "bad"}
	assert.Equal(t, "malformed input at n.@u: bad", err.Error())

	err = &MalformedInputError{Reason: "root"}
	assert.Equal(t, "malformed input: root", err.Error())
}
