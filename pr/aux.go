// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pr

import (
	"github.com/akualab/tagger/floatx"
	"github.com/akualab/tagger/model"
	"github.com/bits-and-blooms/bitset"
	"github.com/golang/glog"
)

// AuxModel stacks the dual parameters of a list of constraints. It acts as
// a lattice.Incrementer that accumulates q expectations.
type AuxModel struct {
	numStates   int
	constraints []Constraint
	offsets     []int
	params      *params
}

type params struct {
	λ       []float64
	version uint64
}

// NewAuxModel creates an auxiliary model with zero dual parameters.
func NewAuxModel(numStates int, constraints ...Constraint) *AuxModel {

	m := &AuxModel{numStates: numStates, constraints: constraints}
	n := 0
	for _, c := range constraints {
		m.offsets = append(m.offsets, n)
		n += c.NumDimensions()
	}
	m.offsets = append(m.offsets, n)
	m.params = &params{λ: make([]float64, n)}
	glog.V(2).Infof("pr: auxiliary model with %d constraints, %d parameters", len(constraints), n)
	return m
}

func (m *AuxModel) slice(i int) []float64 {
	return m.params.λ[m.offsets[i]:m.offsets[i+1]]
}

// NumConstraints returns the number of constraints.
func (m *AuxModel) NumConstraints() int { return len(m.constraints) }

// Constraint returns constraint i.
func (m *AuxModel) Constraint(i int) Constraint { return m.constraints[i] }

// PreProcess pre-processes every constraint and returns the union of the
// instances where they apply.
func (m *AuxModel) PreProcess(data model.InstanceList) *bitset.BitSet {
	bs := bitset.New(uint(len(data)))
	for _, c := range m.constraints {
		bs.InPlaceUnion(c.PreProcess(data))
	}
	return bs
}

// Weights returns the auxiliary weight table [ip][src][dst] for input.
func (m *AuxModel) Weights(input model.Sequence) [][][]float64 {

	n := input.Len()
	w := floatx.MakeFloat3D(n, m.numStates, m.numStates)
	for ci, c := range m.constraints {
		p := m.slice(ci)
		for ip := 0; ip < n; ip++ {
			for i := 0; i < m.numStates; i++ {
				for j := 0; j < m.numStates; j++ {
					w[ip][i][j] += c.Score(input, ip, i, j, p)
				}
			}
		}
	}
	return w
}

// IncrementTransition implements lattice.Incrementer.
func (m *AuxModel) IncrementTransition(input model.Sequence, ip, src, index, dst int, prob float64) {
	for _, c := range m.constraints {
		c.Increment(input, ip, src, dst, prob)
	}
}

// IncrementInitial implements lattice.Incrementer.
func (m *AuxModel) IncrementInitial(s int, prob float64) {}

// IncrementFinal implements lattice.Incrementer.
func (m *AuxModel) IncrementFinal(s int, prob float64) {}

// ZeroExpectations clears all constraint expectations.
func (m *AuxModel) ZeroExpectations() {
	for _, c := range m.constraints {
		c.ZeroExpectations()
	}
}

// AuxiliaryValue returns the constraint part of the dual objective.
func (m *AuxModel) AuxiliaryValue() float64 {
	var v float64
	for ci, c := range m.constraints {
		v += c.AuxiliaryValue(m.slice(ci))
	}
	return v
}

// AddGradient adds the dual gradient to grad.
func (m *AuxModel) AddGradient(grad []float64) {
	for ci, c := range m.constraints {
		c.AddGradient(m.slice(ci), grad[m.offsets[ci]:m.offsets[ci+1]])
	}
}

// CompleteValue returns the primal penalty at the current q expectations.
func (m *AuxModel) CompleteValue() float64 {
	var v float64
	for _, c := range m.constraints {
		v += c.CompleteValue()
	}
	return v
}

// Copy returns a model sharing parameters and targets with fresh
// expectations.
func (m *AuxModel) Copy() *AuxModel {
	cp := &AuxModel{
		numStates: m.numStates,
		offsets:   m.offsets,
		params:    m.params,
	}
	for _, c := range m.constraints {
		cp.constraints = append(cp.constraints, c.Copy())
	}
	return cp
}

// Merge adds the expectations of other, which must come from Copy.
func (m *AuxModel) Merge(other *AuxModel) {
	for ci, c := range m.constraints {
		c.Merge(other.constraints[ci])
	}
}

// NumParameters returns the number of dual parameters.
func (m *AuxModel) NumParameters() int { return len(m.params.λ) }

// Parameters copies the dual parameters into buf.
func (m *AuxModel) Parameters(buf []float64) { copy(buf, m.params.λ) }

// Parameter returns dual parameter i.
func (m *AuxModel) Parameter(i int) float64 { return m.params.λ[i] }

// SetParameters sets the dual parameters.
func (m *AuxModel) SetParameters(buf []float64) {
	copy(m.params.λ, buf)
	m.params.version++
}

// SetParameter sets dual parameter i.
func (m *AuxModel) SetParameter(i int, v float64) {
	m.params.λ[i] = v
	m.params.version++
}

// Version implements model.Versioned.
func (m *AuxModel) Version() uint64 { return m.params.version }
