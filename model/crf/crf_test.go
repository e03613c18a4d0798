// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package crf

import (
	"errors"
	"math"
	"testing"

	"github.com/akualab/tagger"
	"github.com/akualab/tagger/model"
)

func makeTwoStateCRF(t *testing.T) *CRF {

	c := NewCRF(2, model.NewAlphabet("A", "B"), Name("two"))
	if err := c.AddFullyConnectedStatesForLabels(); err != nil {
		t.Fatal(err)
	}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestAddState(t *testing.T) {

	c := makeTwoStateCRF(t)
	if c.NumStates() != 2 {
		t.Fatalf("Wrong number of states. Expected: [2], Got: [%d]", c.NumStates())
	}
	// 2 initial, 2 final, 4 defaults, 4x2 weights
	if c.NumParameters() != 16 {
		t.Fatalf("Wrong number of parameters. Expected: [16], Got: [%d]", c.NumParameters())
	}
	err := c.AddState("A", 0, 0, nil, nil, nil)
	if !errors.Is(err, model.ErrDuplicateName) {
		t.Fatalf("expected duplicate state error, got %v", err)
	}
	err = c.AddState("C", 0, 0, []string{"A", "A"}, []string{"A", "A"}, [][]string{{"x"}, {"y"}})
	if !errors.Is(err, model.ErrDuplicateName) {
		t.Fatalf("expected duplicate destination error, got %v", err)
	}
}

func TestMissingDestination(t *testing.T) {

	c := NewCRF(1, nil)
	if err := c.AddState("S", 0, 0, []string{"T"}, []string{"t"}, [][]string{{"S->T"}}); err != nil {
		t.Fatal(err)
	}
	if err := c.Validate(); !errors.Is(err, model.ErrUnknownName) {
		t.Fatalf("expected unknown state error, got %v", err)
	}
	if err := c.AddState("T", 0, 0, nil, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestTransitionWeight(t *testing.T) {

	c := makeTwoStateCRF(t)
	if err := c.SetDefaultWeight("A->B", 0.5); err != nil {
		t.Fatal(err)
	}
	if err := c.SetWeight("A->B", 1, 2); err != nil {
		t.Fatal(err)
	}
	if err := c.SetWeight("A->B", 5, 2); !errors.Is(err, model.ErrIndexOutOfRange) {
		t.Fatalf("expected out of range error, got %v", err)
	}

	input := model.FeatureSequence{
		model.Binary(1),
		{Indices: []int{0, 1}, Values: []float64{3, 0.25}},
	}
	a, _ := c.StateByName("A")
	b, _ := c.StateByName("B")

	expected := []float64{2.5, 1.0}
	for ip := range expected {
		it := c.Transitions(a.Index(), input, ip)
		found := false
		for it.Next() {
			if it.Dest() != b.Index() {
				if it.Weight() != 0 {
					t.Errorf("Expected zero weight at ip %d, got %f", ip, it.Weight())
				}
				continue
			}
			found = true
			if it.Output() != c.Outputs().Index("B") {
				t.Errorf("Wrong output. Expected: [%d], Got: [%d]", c.Outputs().Index("B"), it.Output())
			}
			tagger.CompareFloats(t, expected[ip], it.Weight(), "weight", 1e-12)
		}
		if !found {
			t.Fatalf("no transition A->B at ip %d", ip)
		}
	}
}

func TestVersion(t *testing.T) {

	c := makeTwoStateCRF(t)
	v := c.Version()
	params := make([]float64, c.NumParameters())
	c.Parameters(params)
	params[3] = 1.5
	c.SetParameters(params)
	if c.Version() == v {
		t.Fatal("version did not change after SetParameters")
	}
	if c.Parameter(3) != 1.5 {
		t.Fatalf("Wrong value. Expected: [1.5], Got: [%f]", c.Parameter(3))
	}
	v = c.Version()
	c.SetParameter(0, math.Inf(-1))
	if c.Version() == v {
		t.Fatal("version did not change after SetParameter")
	}
	if !model.IsImpossible(c.State(0).InitialWeight()) {
		t.Fatal("expected impossible initial weight")
	}
}

func TestConnectedAsIn(t *testing.T) {

	c := NewCRF(1, model.NewAlphabet("O", "B", "I"))
	fs := model.FeatureSequence{model.Binary(0), model.Binary(0), model.Binary(0), model.Binary(0)}
	inst, err := model.NewInstance("x", fs, []int{0, 1, 2, 0})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddStatesForLabelsConnectedAsIn(model.InstanceList{inst}); err != nil {
		t.Fatal(err)
	}
	expected := map[string]int{"O": 1, "B": 1, "I": 1}
	for name, n := range expected {
		s, ok := c.StateByName(name)
		if !ok {
			t.Fatalf("missing state %s", name)
		}
		if s.NumTransitions() != n {
			t.Errorf("state %s: Expected: [%d] transitions, Got: [%d]", name, n, s.NumTransitions())
		}
	}
	if c.WeightSetIndex("I->B") >= 0 {
		t.Error("unexpected weight set I->B")
	}
}

func TestIncrementArc(t *testing.T) {

	c := makeTwoStateCRF(t)
	f := c.Expectations()
	input := model.FeatureSequence{{Indices: []int{0, 1}, Values: []float64{2, 3}}}
	c.IncrementArc(f, input, 0, 0, 1, 0.5)
	c.IncrementInitial(f, 1, 0.25)
	c.IncrementFinal(f, 0, 0.75)

	ws := c.State(0).(*State).WeightSets(1)[0]
	tagger.CompareFloats(t, 0.5, f.Default[ws], "default", 1e-12)
	tagger.CompareSliceFloat(t, []float64{1, 1.5}, f.Weights[ws], "weights", 1e-12)
	tagger.CompareFloats(t, 0.25, f.Initial[1], "initial", 1e-12)
	tagger.CompareFloats(t, 0.75, f.Final[0], "final", 1e-12)
}

func TestStateLabelMap(t *testing.T) {

	c := makeTwoStateCRF(t)
	m := c.StateLabelMap()
	if m.NumLabels() != 2 || m.Label(0) != 0 || m.Label(1) != 1 {
		t.Fatalf("wrong map: labels %d, %d, %d", m.NumLabels(), m.Label(0), m.Label(1))
	}
}
