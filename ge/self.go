// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ge

import (
	"fmt"
	"math"

	"github.com/akualab/tagger/lattice"
	"github.com/akualab/tagger/model"
	"github.com/bits-and-blooms/bitset"
)

// SelfTransition constrains the probability that a token has the same
// label as the previous token. The value is the weighted negative binary
// KL divergence between the target and the model probability
//
//	p = Σ_ip Σ_{label(i)==label(j)} ξ[ip][i][j] / count
//
// where count is the number of positions ip >= 1 in the data.
type SelfTransition struct {
	labels      *model.StateLabelMap
	target      float64
	weight      float64
	count       *float64
	expectation float64
}

// NewSelfTransition creates a self transition constraint.
func NewSelfTransition(labels *model.StateLabelMap, target, weight float64) (*SelfTransition, error) {
	if labels == nil {
		return nil, ErrNoLabels
	}
	if target < 0 || target > 1 {
		return nil, fmt.Errorf("%w: self transition target [%g]", ErrBadTarget, target)
	}
	if !(weight > 0) {
		return nil, fmt.Errorf("%w: self transition weight [%g]", ErrBadWeight, weight)
	}
	return &SelfTransition{labels: labels, target: target, weight: weight, count: new(float64)}, nil
}

func (c *SelfTransition) self(i, j int) bool {
	li := c.labels.Label(i)
	return li >= 0 && li != c.labels.StartLabel() && li == c.labels.Label(j)
}

// PreProcess implements Constraint.
func (c *SelfTransition) PreProcess(data model.InstanceList) *bitset.BitSet {
	bs := bitset.New(uint(len(data)))
	*c.count = 0
	for n, inst := range data {
		if k := inst.Input.Len() - 1; k > 0 {
			*c.count += float64(k)
			bs.Set(uint(n))
		}
	}
	return bs
}

// PreProcessVector implements Constraint. The constraint does not depend
// on input features.
func (c *SelfTransition) PreProcessVector(fv *model.FeatureVector) []int { return nil }

// ZeroExpectations implements Constraint.
func (c *SelfTransition) ZeroExpectations() { c.expectation = 0 }

// ComputeExpectations implements Constraint.
func (c *SelfTransition) ComputeExpectations(lattices []*lattice.SumLattice) {
	for _, l := range lattices {
		if !viable(l) {
			continue
		}
		ns := l.NumStates()
		for ip := 1; ip < l.Input().Len(); ip++ {
			for i := 0; i < ns; i++ {
				for j := 0; j < ns; j++ {
					if c.self(i, j) {
						c.expectation += l.XiProbability(ip, i, j)
					}
				}
			}
		}
	}
}

// Expectation returns the accumulated self transition mass.
func (c *SelfTransition) Expectation() float64 { return c.expectation }

// Value implements Constraint.
func (c *SelfTransition) Value() float64 {
	n := *c.count
	if n == 0 {
		return 0
	}
	return c.weight * (klTerm(c.target, c.expectation, n) + klTerm(1-c.target, n-c.expectation, n))
}

// GradientContribution returns the derivative of Value with respect to
// the self transition expectation.
func (c *SelfTransition) GradientContribution() float64 {
	n := *c.count
	if n == 0 {
		return 0
	}
	return c.weight * (klGradient(c.target, c.expectation) - klGradient(1-c.target, n-c.expectation))
}

// AddComposite implements Constraint.
func (c *SelfTransition) AddComposite(input model.Sequence, psi [][][]float64) {
	g := c.GradientContribution()
	if g == 0 || math.IsNaN(g) {
		return
	}
	for ip := 1; ip < input.Len(); ip++ {
		for i := range psi[ip] {
			for j := range psi[ip][i] {
				if c.self(i, j) {
					psi[ip][i][j] += g
				}
			}
		}
	}
}

// Copy implements Constraint.
func (c *SelfTransition) Copy() Constraint {
	cp := *c
	cp.expectation = 0
	return &cp
}

// Merge implements Constraint.
func (c *SelfTransition) Merge(other Constraint) {
	o, ok := other.(*SelfTransition)
	if !ok {
		panic(ErrIncompatible)
	}
	c.expectation += o.expectation
}
