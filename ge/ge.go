// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package ge implements generalized expectation constraints.

A constraint compares model expectations accumulated from lattice marginals
with target distributions and returns a penalty value. The token at input
position ip has the label of the destination state at position ip+1, so
one-label constraints read γ[ip+1] and two-label constraints read ξ[ip]
for ip >= 1.

Lifecycle for a batch:

	c.ZeroExpectations()
	c.ComputeExpectations(lattices)
	v := c.Value()
	c.AddComposite(input, psi) // per instance, for the gradient

Copies share targets and counts and own their expectations. Workers each
accumulate into a copy and the caller merges them.
*/
package ge

import (
	"math"

	"github.com/akualab/tagger/lattice"
	"github.com/akualab/tagger/model"
	"github.com/bits-and-blooms/bitset"
)

// Error is a GE error.
type Error string

func (err Error) Error() string { return string(err) }

const (
	ErrBadTarget    = Error("ge: invalid target")
	ErrBadWeight    = Error("ge: constraint weight must be positive")
	ErrNoLabels     = Error("ge: state label map is required")
	ErrIncompatible = Error("ge: cannot merge constraints of different types")
)

// Constraint is a GE constraint.
type Constraint interface {

	// PreProcess scans the data once, counts occurrences and returns the
	// set of instances where the constraint applies.
	PreProcess(data model.InstanceList) *bitset.BitSet

	// PreProcessVector returns the constraint keys that fire on fv.
	PreProcessVector(fv *model.FeatureVector) []int

	// ZeroExpectations clears the accumulators.
	ZeroExpectations()

	// ComputeExpectations accumulates marginals. Nil lattices and lattices
	// with no viable path are skipped.
	ComputeExpectations(lattices []*lattice.SumLattice)

	// Value returns the penalty, possibly -Inf.
	Value() float64

	// AddComposite adds the derivative of Value with respect to each
	// transition's contribution to psi[ip][src][dst].
	AddComposite(input model.Sequence, psi [][][]float64)

	// Copy returns a constraint with zeroed expectations sharing targets.
	Copy() Constraint

	// Merge adds the expectations of other, which must come from Copy.
	Merge(other Constraint)
}

// Set is a list of constraints evaluated together.
type Set []Constraint

// PreProcess returns the union of every constraint's instances.
func (s Set) PreProcess(data model.InstanceList) *bitset.BitSet {
	bs := bitset.New(uint(len(data)))
	for _, c := range s {
		bs.InPlaceUnion(c.PreProcess(data))
	}
	return bs
}

// ZeroExpectations clears all accumulators.
func (s Set) ZeroExpectations() {
	for _, c := range s {
		c.ZeroExpectations()
	}
}

// ComputeExpectations accumulates marginals into every constraint.
func (s Set) ComputeExpectations(lattices []*lattice.SumLattice) {
	for _, c := range s {
		c.ComputeExpectations(lattices)
	}
}

// Value returns the sum of penalties.
func (s Set) Value() float64 {
	var v float64
	for _, c := range s {
		v += c.Value()
	}
	return v
}

// AddComposite adds the composite score of all constraints to psi.
func (s Set) AddComposite(input model.Sequence, psi [][][]float64) {
	for _, c := range s {
		c.AddComposite(input, psi)
	}
}

// Copy copies every constraint.
func (s Set) Copy() Set {
	cp := make(Set, len(s))
	for i, c := range s {
		cp[i] = c.Copy()
	}
	return cp
}

// Merge merges constraint i of other into constraint i of s.
func (s Set) Merge(other Set) {
	for i, c := range s {
		c.Merge(other[i])
	}
}

func viable(l *lattice.SumLattice) bool {
	return l != nil && !model.IsImpossible(l.TotalWeight())
}

// klTerm returns t·(log(e/count) - log t), -Inf when t > 0 and e == 0.
func klTerm(t, e, count float64) float64 {
	if t == 0 {
		return 0
	}
	if e == 0 {
		return math.Inf(-1)
	}
	return t * (math.Log(e/count) - math.Log(t))
}

// klGradient returns the derivative of klTerm with respect to e.
func klGradient(t, e float64) float64 {
	if t == 0 || e == 0 {
		return 0
	}
	return t / e
}
