// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestFeatureVector(t *testing.T) {

	fv, err := NewFeatureVector([]int{5, 1, 3}, []float64{0.5, 2, -1})
	if err != nil {
		t.Fatal(err)
	}
	if fv.IndexAt(0) != 1 || fv.IndexAt(2) != 5 {
		t.Fatalf("indices are not sorted: %v", fv.Indices)
	}
	if v := fv.Value(5); v != 0.5 {
		t.Errorf("value of 5 = %f, want 0.5", v)
	}
	if v := fv.Value(4); v != 0 {
		t.Errorf("value of absent feature = %f, want 0", v)
	}
	dense := []float64{1, 1, 1, 1, 1, 2}
	if d := fv.Dot(dense); d != 2-1+1 {
		t.Errorf("dot = %f, want 2", d)
	}
	fv.AddTo(dense, 2)
	if dense[1] != 5 || dense[3] != -1 {
		t.Errorf("add to: %v", dense)
	}

	b := Binary(2, 0)
	if b.ValueAt(1) != 1 || b.NumLocations() != 2 || b.Location(2) != 1 {
		t.Errorf("unexpected binary vector %+v", b)
	}
	if _, err := NewFeatureVector([]int{1, 1}, nil); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected duplicate index error, got %v", err)
	}
	if _, err := NewFeatureVector([]int{1}, []float64{1, 2}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected length mismatch, got %v", err)
	}
	if _, err := NewFeatureVector([]int{-1}, nil); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected index error, got %v", err)
	}
}

func TestInstance(t *testing.T) {

	input := FeatureSequence{Binary(0), Binary(1)}
	inst, err := NewInstance("a", input, []int{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if !inst.Labeled() || inst.InstanceWeight() != 1 {
		t.Errorf("unexpected instance %+v", inst)
	}
	inst.Weight = 0
	if inst.InstanceWeight() != 1 {
		t.Errorf("zero weight should count as one")
	}
	if _, err := NewInstance("b", input, []int{0}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected length mismatch, got %v", err)
	}
	list := InstanceList{inst, {Name: "c", Input: input}}
	if err := list.Validate(); err != nil {
		t.Fatal(err)
	}
	if n := list.NumTokens(); n != 4 {
		t.Errorf("num tokens = %d, want 4", n)
	}
}

func TestAlphabet(t *testing.T) {

	a := NewAlphabet("B", "I", "O")
	if a.Add("I") != 1 || a.Add("X") != 3 || a.Size() != 4 {
		t.Errorf("unexpected alphabet %v", a.ToStr)
	}
	if a.Index("Y") != -1 || a.Lookup(9) != "" || a.Lookup(2) != "O" {
		t.Errorf("unexpected lookups")
	}

	m, err := NewStateLabelMap([]int{-1, 0, 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if m.Label(0) != -1 || m.Label(2) != 1 || m.NumStates() != 3 || m.NumLabels() != 2 {
		t.Errorf("unexpected state label map")
	}
	if _, err := NewStateLabelMap([]int{0, 5}, 2); err == nil {
		t.Errorf("expected error for out of range label")
	}
	id := IdentityMap(3)
	if id.Label(2) != 2 || id.StartLabel() != -1 {
		t.Errorf("unexpected identity map")
	}
}

func TestSegments(t *testing.T) {

	labels := []int{0, 0, 1, 2, 2, 2, 0}
	segs := Segments(labels, NewAlphabet("O", "B", "I"))
	if len(segs) != 4 {
		t.Fatalf("got %d segments, want 4: %s", len(segs), segs)
	}
	if segs[2] != (Segment{Start: 3, End: 6, Label: 2, Name: "I"}) {
		t.Errorf("unexpected segment %+v", segs[2])
	}
	if segs[2].Len() != 3 {
		t.Errorf("len = %d, want 3", segs[2].Len())
	}
	if err := segs.Validate(len(labels)); err != nil {
		t.Fatal(err)
	}
	back := segs.Labels()
	for i := range labels {
		if back[i] != labels[i] {
			t.Fatalf("labels round trip: %v != %v", back, labels)
		}
	}
	if s := segs[:1].String(); s != `[{"s":0,"e":2,"l":0,"n":"O"}]` {
		t.Errorf("json = %s", s)
	}
	if err := segs[1:].Validate(len(labels)); err == nil {
		t.Errorf("expected error for segments that do not start at zero")
	}
	if Segments(nil, nil) != nil {
		t.Errorf("expected no segments")
	}
}

func TestSampleLogDist(t *testing.T) {

	r := rand.New(rand.NewSource(3))
	dist := []float64{math.Log(0.2), ImpossibleWeight, math.Log(0.8)}
	counts := make([]int, 3)
	for i := 0; i < 10000; i++ {
		k, err := SampleLogDist(dist, r)
		if err != nil {
			t.Fatal(err)
		}
		counts[k]++
	}
	if counts[1] != 0 {
		t.Errorf("sampled an impossible entry")
	}
	if p := float64(counts[2]) / 10000; math.Abs(p-0.8) > 0.02 {
		t.Errorf("frequency of entry 2 is %f, want 0.8", p)
	}
	if _, err := SampleLogDist([]float64{ImpossibleWeight}, r); err == nil {
		t.Errorf("expected error for a distribution with no mass")
	}
	if _, err := SampleLogDist(nil, r); err == nil {
		t.Errorf("expected error for empty distribution")
	}
}
