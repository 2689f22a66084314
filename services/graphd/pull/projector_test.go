// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pull

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianGraph/services/graphd/document"
	"github.com/AleutianAI/AleutianGraph/services/graphd/grammar"
	"github.com/AleutianAI/AleutianGraph/services/graphd/push"
	"github.com/AleutianAI/AleutianGraph/services/graphd/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture is a store with a merger and projector over it.
type fixture struct {
	t      *testing.T
	store  *store.Store
	merger *push.Merger
	proj   *Projector
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	s := store.New()
	return &fixture{
		t:      t,
		store:  s,
		merger: push.NewMerger(s, nil),
		proj:   NewProjector(s, opts...),
	}
}

func (f *fixture) push(raw string) {
	f.t.Helper()
	doc, err := document.DecodeObject([]byte(raw))
	require.NoError(f.t, err)
	_, err = f.merger.Push(context.Background(), doc)
	require.NoError(f.t, err)
}

func (f *fixture) pull(raw string) string {
	f.t.Helper()
	query, err := document.DecodeObject([]byte(raw))
	require.NoError(f.t, err)
	out, err := f.proj.Pull(context.Background(), query)
	require.NoError(f.t, err)
	encoded, err := document.Encode(document.ObjectValue(out))
	require.NoError(f.t, err)
	return string(encoded)
}

func TestPull_PropertyRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.push(`{"node-1":{"property1":"value1","property2":"value2"},"node-2":{"property1":"value3"}}`)

	assert.Equal(t,
		`{"node-1":{"property2":"value2"},"node-2":{"property1":"value3"}}`,
		f.pull(`{"node-1":{"property2":true},"node-2":{"property1":true}}`))
}

func TestPull_NestedProperties(t *testing.T) {
	f := newFixture(t)
	f.push(`{"node-1":{"property1":{"subproperty1":"a","subproperty2":{"deep":1},"subproperty3":"c"},"property2":2}}`)

	assert.Equal(t,
		`{"node-1":{"property1":{"subproperty1":"a","subproperty2":{"deep":1}},"property2":2}}`,
		f.pull(`{"node-1":{"property1":{"subproperty1":true,"subproperty2":true},"property2":true}}`))

	// Object selector on a scalar, false and missing keys are omitted.
	assert.Equal(t,
		`{"node-1":{}}`,
		f.pull(`{"node-1":{"property2":{"x":true},"property1":false,"missing":true}}`))
}

func TestPull_MergePreservesUntouchedFields(t *testing.T) {
	f := newFixture(t)
	f.push(`{"n":{"a":1,"b":{"x":1,"y":2}}}`)
	f.push(`{"n":{"b":{"y":3}}}`)

	assert.Equal(t, `{"n":{"a":1,"b":{"x":1,"y":3}}}`, f.pull(`{"n":{"a":true,"b":true}}`))
}

func TestPull_Idempotence(t *testing.T) {
	f := newFixture(t)
	doc := `{"n":{"p":[1,{"q":true}],"@u":"rw",">r":{"t":{"-w":1}}}}`
	query := `{"n":true,"t":true}`

	f.push(doc)
	first := f.pull(query)
	f.push(doc)
	assert.Equal(t, first, f.pull(query))
}

func TestPull_Rights(t *testing.T) {
	f := newFixture(t)
	f.push(`{"node-1":{"@user123":"rw","@admin":"a"}}`)

	assert.Equal(t,
		`{"node-1":{"@user123":"rw","@admin":"a"}}`,
		f.pull(`{"node-1":{"@user123":true,"@admin":true,"@nobody":true}}`))
}

func TestPull_ActorNodes(t *testing.T) {
	f := newFixture(t)
	f.push(`{"@user123":{"name":"John Doe","email":"john.doe@example.com"},"@group456":{"name":"Admins","@user123":"b"}}`)

	assert.Equal(t,
		`{"@user123":{"name":"John Doe","email":"john.doe@example.com"},"@group456":{"name":"Admins","@user123":"b"}}`,
		f.pull(`{"@user123":{"name":true,"email":true},"@group456":{"name":true,"@user123":true}}`))
}

func TestPull_WildcardIdentity(t *testing.T) {
	f := newFixture(t)
	f.push(`{"node-1":{"property1":"v1","name":"N"},"@u":{"@":{"name":"U","email":"u@x"}}}`)

	assert.Equal(t,
		`{"node-1":{"property1":"v1","@":{"name":"N"}},"@u":{"@":{"name":"U","email":"u@x"}}}`,
		f.pull(`{"node-1":{"property1":true,"@":{"name":true}},"@u":{"@":true}}`))
}

func TestPull_EdgeRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.push(`{"node-1":{">relationship1":{"node-2":{"-property1":"value1","-order":1}}}}`)

	assert.Equal(t,
		`{"node-1":{">relationship1":{"node-2":{"-property1":"value1","-order":1}}}}`,
		f.pull(`{"node-1":{">relationship1":{"node-2":{"-property1":true,"-order":true}}}}`))

	// The same edge read from the target side.
	assert.Equal(t,
		`{"node-2":{"<relationship1":{"node-1":{"-order":1}}}}`,
		f.pull(`{"node-2":{"<relationship1":{"-order":true}}}`))
}

// TestPull_UniformEdgeFilterReturnsPerTargetValues checks that a uniform
// "-order" selector yields each target's own value.
func TestPull_UniformEdgeFilterReturnsPerTargetValues(t *testing.T) {
	f := newFixture(t)
	f.push(`{"p":{">has":{"c1":{"-order":1,"title":"one"},"c2":{"-order":2,"title":"two"},"c3":{"-order":3}}}}`)

	assert.Equal(t,
		`{"p":{">has":{"c1":{"-order":1},"c2":{"-order":2},"c3":{"-order":3}}}}`,
		f.pull(`{"p":{">has":{"-order":true}}}`))

	// Plain keys in a uniform filter select target node properties.
	assert.Equal(t,
		`{"p":{">has":{"c1":{"-order":1,"title":"one"},"c2":{"-order":2,"title":"two"},"c3":{"-order":3}}}}`,
		f.pull(`{"p":{">has":{"-order":true,"title":true}}}`))
}

func TestPull_UniformFilterMixesNodeAndEdgeProperties(t *testing.T) {
	f := newFixture(t)
	f.push(`{"node-1":{"<relationship2":{"node-2":{"-edgeProperty1":"e","-order":5,"nodeProperty1":"n"}}}}`)

	// relationship2 points node-2 -> node-1, so node-1 sees it incoming.
	assert.Equal(t,
		`{"node-1":{"<relationship2":{"node-2":{"nodeProperty1":"n","-edgeProperty1":"e","-order":5}}}}`,
		f.pull(`{"node-1":{"<relationship2":{"id":true,"nodeProperty1":true,"-edgeProperty1":true,"-order":true}}}`))
}

func TestPull_PerTargetFilterOmitsAbsentTargets(t *testing.T) {
	f := newFixture(t)
	f.push(`{"a":{">r":{"b":{"-w":1},"c":{"-w":2}}}}`)

	assert.Equal(t,
		`{"a":{">r":{"c":{"-w":2}}}}`,
		f.pull(`{"a":{">r":{"c":{"-w":true},"zz":{"-w":true},"b":false}}}`))
}

func TestPull_DeepNesting(t *testing.T) {
	f := newFixture(t)
	f.push(`{"root":{">a":{"l1":{">b":{"l2":{">c":{"l3":{">d":{"l4":{"prop1":"val1"}}}}}}}}}}`)

	assert.Equal(t,
		`{"root":{">a":{"l1":{">b":{"l2":{">c":{"l3":{">d":{"l4":{"prop1":"val1"}}}}}}}}}}`,
		f.pull(`{"root":{">a":{"l1":{">b":{"l2":{">c":{"l3":{">d":{"l4":{"prop1":true}}}}}}}}}}`))

	// A uniform filter follows every target at each hop.
	assert.Equal(t,
		`{"root":{">a":{"l1":{">b":{"l2":{">c":{"l3":{}}}}}}}}`,
		f.pull(`{"root":{">a":{">b":{">c":{"-missing":true}}}}}`))
}

func TestPull_BidirectionalVisibleAsOutFromBothEnds(t *testing.T) {
	f := newFixture(t)
	f.push(`{"alice":{"<>friend":{"bob":{"-since":2020}}},"alice2":{">friend":{"carol":{}}}}`)

	assert.Equal(t,
		`{"alice":{">friend":{"bob":{"-since":2020}}},"bob":{">friend":{"alice":{"-since":2020}}}}`,
		f.pull(`{"alice":{">friend":{"-since":true}},"bob":{">friend":{"-since":true}}}`))

	assert.Equal(t,
		`{"bob":{"<>friend":{"alice":{"-since":2020}}}}`,
		f.pull(`{"bob":{"<>friend":{"-since":true},"<friend":true}}`))
}

func TestPull_OutMergesOutAndBiWithoutDuplicates(t *testing.T) {
	f := newFixture(t)
	f.push(`{"a":{">r":{"b":{"-k":"out"},"c":{}},"<>r":{"b":{"-k":"bi"},"d":{}}}}`)

	assert.Equal(t,
		`{"a":{">r":{"b":{"-k":"out"},"c":{},"d":{}}}}`,
		f.pull(`{"a":{">r":{"-k":true}}}`))
}

func TestPull_EdgeTrueExpandsTargets(t *testing.T) {
	f := newFixture(t)
	f.push(`{"node-1":{"title":"one",">relationship1":{"node-2":{"-order":1,"title":"two","@u":"r"}}}}`)

	assert.Equal(t,
		`{"node-1":{">relationship1":{"node-2":{"-order":1,"title":"two","@u":"r","<relationship1":{"node-1":{"-order":1}}}}}}`,
		f.pull(`{"node-1":{">relationship1":true}}`))
}

func TestPull_SelectAllCycleGuard(t *testing.T) {
	f := newFixture(t)
	f.push(`{"a":{"n":"A",">next":{"b":{"n":"B",">next":{"a":{}}}}}}`)

	assert.Equal(t,
		`{"a":{"n":"A",">next":{"b":{"n":"B","<next":{"a":{}},">next":{"a":{}}}},"<next":{"b":{}}}}`,
		f.pull(`{"a":true}`))
}

// TestPull_SelectAllRendersEachNodeOnce checks that a node reachable from
// several targets is rendered in full at the shallowest level only.
func TestPull_SelectAllRendersEachNodeOnce(t *testing.T) {
	f := newFixture(t)
	f.push(`{"a":{">r":{"b":{},"c":{}}},"b":{"n":"B",">r":{"c":{}}},"c":{"n":"C"}}`)

	assert.Equal(t,
		`{"a":{">r":{"b":{"n":"B","<r":{"a":{}},">r":{"c":{}}},"c":{"n":"C","<r":{"a":{},"b":{}}}}}}`,
		f.pull(`{"a":{">r":true}}`))
}

func TestPull_SelectAllOnDenseGraph(t *testing.T) {
	const size = 12
	f := newFixture(t)

	var doc strings.Builder
	doc.WriteString("{")
	for i := 0; i < size; i++ {
		if i > 0 {
			doc.WriteString(",")
		}
		fmt.Fprintf(&doc, `"n%d":{"i":%d,">r":{`, i, i)
		for j := i + 1; j < size; j++ {
			if j > i+1 {
				doc.WriteString(",")
			}
			fmt.Fprintf(&doc, `"n%d":{"-w":%d}`, j, j)
		}
		doc.WriteString("}}")
	}
	doc.WriteString("}")
	f.push(doc.String())

	out := f.pull(`{"n0":true}`)
	assert.Equal(t, size, strings.Count(out, `"i":`))
	assert.Less(t, len(out), 64*1024)

	// Each edge selector set to true is its own expansion.
	out = f.pull(`{"n5":{"<r":true,">r":true}}`)
	assert.Equal(t, 2*(size-1), strings.Count(out, `"i":`))
}

func TestPull_ActorTargets(t *testing.T) {
	f := newFixture(t)
	f.push(`{"@group456":{">member":{"@user123":{"-since":1,"name":"John"},"@user9":{"-since":2}}}}`)

	assert.Equal(t,
		`{"@group456":{">member":{"@user123":{"name":"John"}}}}`,
		f.pull(`{"@group456":{">member":{"@user123":{"name":true}}}}`))

	assert.Equal(t,
		`{"@group456":{">member":{"@user123":{"-since":1,"name":"John","<member":{"@group456":{"-since":1}}}}}}`,
		f.pull(`{"@group456":{">member":{"@user123":true}}}`))

	// An edge property key makes the filter uniform again.
	assert.Equal(t,
		`{"@group456":{">member":{"@user123":{"-since":1},"@user9":{"-since":2}}}}`,
		f.pull(`{"@group456":{">member":{"-since":true,"@user123":true}}}`))
}

func TestPull_TargetWithoutRecord(t *testing.T) {
	a, err := store.NodeFromDocument("a", mustDecodeObject(t, `{">r":{"ghost":{"-w":1}}}`))
	require.NoError(t, err)
	f := newFixture(t)
	f.store.Seed([]*store.Node{a})

	assert.Equal(t, `{"a":{">r":{"ghost":{"-w":1}}}}`, f.pull(`{"a":{">r":{"-w":true,"name":true}}}`))
	assert.Equal(t, `{"a":{">r":{"ghost":{"-w":1}}}}`, f.pull(`{"a":{">r":{"ghost":{"-w":true,"name":true}}}}`))
	assert.Equal(t, `{"a":{">r":{"ghost":{"-w":1}}}}`, f.pull(`{"a":{">r":true}}`))
}

func mustDecodeObject(t *testing.T, raw string) *document.Object {
	t.Helper()
	obj, err := document.DecodeObject([]byte(raw))
	require.NoError(t, err)
	return obj
}

func TestPull_MaxExpansionDepth(t *testing.T) {
	f := newFixture(t, WithMaxExpansionDepth(1))
	f.push(`{"a":{">r":{"b":{"-w":1,">r":{"c":{"-w":2,"n":"C"}}}}}}`)

	assert.Equal(t,
		`{"a":{">r":{"b":{"-w":1,"<r":{"a":{"-w":1}},">r":{"c":{"-w":2}}}}}}`,
		f.pull(`{"a":true}`))
}

func TestPull_MissingDataTolerance(t *testing.T) {
	f := newFixture(t)
	f.push(`{"a":{"p":1}}`)

	assert.Equal(t,
		`{"a":{}}`,
		f.pull(`{"a":{"missing":true,">none":true,"@nobody":true,"<>x":{"-y":true}},"ghost":{"p":true},"ghost2":true}`))
}

func TestPull_FalseNodeSelector(t *testing.T) {
	f := newFixture(t)
	f.push(`{"a":{"p":1}}`)
	assert.Equal(t, `{}`, f.pull(`{"a":false}`))
}

func TestPull_QueryOrderWins(t *testing.T) {
	f := newFixture(t)
	f.push(`{"n":{"x":1,"y":2,"z":3},"m":{}}`)

	assert.Equal(t, `{"m":{},"n":{"z":3,"x":1}}`, f.pull(`{"m":{},"n":{"z":true,"x":true}}`))
}

func TestPull_Malformed(t *testing.T) {
	f := newFixture(t)
	query, err := document.DecodeObject([]byte(`{"n":{"p":"yes"}}`))
	require.NoError(t, err)

	_, err = f.proj.Pull(context.Background(), query)
	assert.ErrorIs(t, err, grammar.ErrMalformedInput)
}

func TestPull_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.push(`{"a":{"p":1}}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	query, err := document.DecodeObject([]byte(`{"a":true}`))
	require.NoError(t, err)

	_, err = f.proj.Pull(ctx, query)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPull_ResponseIsPrivate(t *testing.T) {
	f := newFixture(t)
	f.push(`{"a":{"p":{"x":1}}}`)

	query, err := document.DecodeObject([]byte(`{"a":{"p":true}}`))
	require.NoError(t, err)
	out, err := f.proj.Pull(context.Background(), query)
	require.NoError(t, err)

	a, _ := out.Get("a")
	aObj, _ := a.AsObject()
	p, _ := aObj.Get("p")
	pObj, _ := p.AsObject()
	pObj.Set("x", document.Int(2))

	assert.Equal(t, `{"a":{"p":{"x":1}}}`, f.pull(`{"a":{"p":true}}`))
}

func TestProjectValue(t *testing.T) {
	stored, err := document.Decode([]byte(`{"a":{"b":1,"c":2},"d":[1]}`))
	require.NoError(t, err)
	sel, err := document.Decode([]byte(`{"a":{"c":true},"d":{"0":true}}`))
	require.NoError(t, err)

	v, ok := ProjectValue(stored, sel)
	require.True(t, ok)
	out, err := document.Encode(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"c":2}}`, string(out))

	_, ok = ProjectValue(stored, document.Bool(false))
	assert.False(t, ok)
}
