// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ge

import (
	"fmt"

	"github.com/akualab/tagger/lattice"
	"github.com/akualab/tagger/model"
	"github.com/bits-and-blooms/bitset"
)

// TwoLabel constrains the distribution of (previous label, label) pairs at
// tokens where a feature fires. Position 0 and the START label are skipped.
// Lattices must be built with lattice.SaveXis.
type TwoLabel struct {
	*featureConstraints
}

// NewTwoLabelKL creates KL pair constraints.
func NewTwoLabelKL(labels *model.StateLabelMap) *TwoLabel {
	n := labels.NumLabels()
	return &TwoLabel{newFeatureConstraints(labels, n*n, klPenalty{})}
}

// NewTwoLabelL2 creates L2 pair constraints.
func NewTwoLabelL2(labels *model.StateLabelMap) *TwoLabel {
	n := labels.NumLabels()
	return &TwoLabel{newFeatureConstraints(labels, n*n, l2Penalty{})}
}

// AddConstraint sets the target distribution target[prev][label] for
// feature f. Entries for the START label must be zero.
func (c *TwoLabel) AddConstraint(f int, target [][]float64, weight float64) error {

	n := c.numLabels
	if len(target) != n {
		return fmt.Errorf("%w: target has [%d] rows, expected [%d]", ErrBadTarget, len(target), n)
	}
	flat := make([]float64, 0, n*n)
	for _, row := range target {
		if len(row) != n {
			return fmt.Errorf("%w: target row has [%d] entries, expected [%d]", ErrBadTarget, len(row), n)
		}
		flat = append(flat, row...)
	}
	if err := checkTarget(flat, n*n); err != nil {
		return err
	}
	if start := c.labels.StartLabel(); start >= 0 {
		for k := 0; k < n; k++ {
			if target[start][k] != 0 || target[k][start] != 0 {
				return fmt.Errorf("%w: START label has target mass for feature [%d]", ErrBadTarget, f)
			}
		}
	}
	return c.add(&term{feature: f, target: flat, weight: weight})
}

// Key returns the expectation key of a label pair.
func (c *TwoLabel) Key(prev, label int) int { return prev*c.numLabels + label }

// pair returns the key of the transition between states i and j or -1.
func (c *TwoLabel) pair(i, j int) int {
	li, lj := c.labels.Label(i), c.labels.Label(j)
	start := c.labels.StartLabel()
	if li < 0 || lj < 0 || li == start || lj == start {
		return -1
	}
	return c.Key(li, lj)
}

// PreProcess implements Constraint.
func (c *TwoLabel) PreProcess(data model.InstanceList) *bitset.BitSet {
	return c.preProcess(data, 1)
}

// PreProcessVector implements Constraint.
func (c *TwoLabel) PreProcessVector(fv *model.FeatureVector) []int {
	return c.preProcessVector(fv)
}

// ZeroExpectations implements Constraint.
func (c *TwoLabel) ZeroExpectations() { c.zero() }

// ComputeExpectations implements Constraint.
func (c *TwoLabel) ComputeExpectations(lattices []*lattice.SumLattice) {

	for _, l := range lattices {
		if !viable(l) {
			continue
		}
		input := l.Input()
		ns := l.NumStates()
		for ip := 1; ip < input.Len(); ip++ {
			firing := c.preProcessVector(input.At(ip))
			if len(firing) == 0 {
				continue
			}
			for i := 0; i < ns; i++ {
				for j := 0; j < ns; j++ {
					k := c.pair(i, j)
					if k < 0 {
						continue
					}
					p := l.XiProbability(ip, i, j)
					if p == 0 {
						continue
					}
					for _, f := range firing {
						c.exp[f][k] += p
					}
				}
			}
		}
	}
}

// Value implements Constraint.
func (c *TwoLabel) Value() float64 { return c.value() }

// AddComposite implements Constraint.
func (c *TwoLabel) AddComposite(input model.Sequence, psi [][][]float64) {

	var firing []int
	for ip := 1; ip < input.Len(); ip++ {
		firing = c.collect(input.At(ip), firing[:0])
		if len(firing) == 0 {
			continue
		}
		for i := range psi[ip] {
			for j := range psi[ip][i] {
				k := c.pair(i, j)
				if k < 0 {
					continue
				}
				for _, f := range firing {
					psi[ip][i][j] += c.GradientContribution(f, k)
				}
			}
		}
	}
}

// Copy implements Constraint.
func (c *TwoLabel) Copy() Constraint { return &TwoLabel{c.copy()} }

// Merge implements Constraint.
func (c *TwoLabel) Merge(other Constraint) {
	o, ok := other.(*TwoLabel)
	if !ok {
		panic(ErrIncompatible)
	}
	c.merge(o.featureConstraints)
}
