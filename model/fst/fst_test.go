// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fst

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/akualab/tagger/model"
)

const bioData = `
name: bio
states:
  - {name: O, initial: 0, final: 0}
  - {name: B, initial: 0, final: 0}
  - {name: I, final: 0}
arcs:
  - {from: O, to: O}
  - {from: O, to: B, weight: -0.5}
  - {from: B, to: I}
  - {from: B, to: O}
  - {from: I, to: I, weight: -1}
  - {from: I, to: O}
  - {from: B, to: B}
`

func TestReadTopology(t *testing.T) {

	f, err := ReadTopology(strings.NewReader(bioData), nil)
	if err != nil {
		t.Fatal(err)
	}
	if f.NumStates() != 3 {
		t.Fatalf("Wrong number of states. Expected: [3], Got: [%d]", f.NumStates())
	}
	b, _ := f.StateByName("B")

	// Arcs are sorted by destination.
	it := f.Transitions(b.Index(), nil, 0)
	var dests []int
	for it.Next() {
		dests = append(dests, it.Dest())
	}
	expected := []int{0, 1, 2}
	for i := range expected {
		if dests[i] != expected[i] {
			t.Fatalf("Wrong destinations. Expected: %v, Got: %v", expected, dests)
		}
	}
	i, _ := f.StateByName("I")
	if !model.IsImpossible(i.InitialWeight()) {
		t.Errorf("expected impossible initial weight for I, got %f", i.InitialWeight())
	}

	m := f.StateLabelMap()
	for s := 0; s < f.NumStates(); s++ {
		if f.Outputs().Lookup(m.Label(s)) != f.State(s).Name() {
			t.Errorf("state %d maps to label %d", s, m.Label(s))
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	t.Logf("topology:\n%s", buf.String())
	g, err := ReadTopology(&buf, nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.NumStates() != f.NumStates() || len(g.Topology().Arcs) != 7 {
		t.Fatalf("round trip lost states or arcs")
	}
}

func TestValidate(t *testing.T) {

	f := New("broken", nil)
	if _, err := f.AddState("a", 0, model.ImpossibleWeight); err != nil {
		t.Fatal(err)
	}
	if _, err := f.AddState("b", model.ImpossibleWeight, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.Validate(); err == nil {
		t.Fatal("expected unreachable final state error")
	}
	if err := f.AddArc("a", "b", "b", 0); err != nil {
		t.Fatal(err)
	}
	if err := f.Validate(); err != nil {
		t.Fatal(err)
	}
	if err := f.AddArc("a", "b", "b", 1); !errors.Is(err, model.ErrDuplicateName) {
		t.Fatalf("expected duplicate arc error, got %v", err)
	}
	if err := f.AddArc("a", "c", "c", 1); !errors.Is(err, model.ErrUnknownName) {
		t.Fatalf("expected unknown state error, got %v", err)
	}
}
