// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lattice

import (
	"fmt"
	"math"

	"github.com/akualab/tagger/floatx"
)

// GELattice computes the covariance between a per-transition score ψ
// and the model features, which is the gradient of E_p[Σ ψ] with respect
// to the model parameters. With
//
//	r[ip][i] = E[Σ ψ before reaching (ip,i) | state i at ip]
//	s[ip][i] = E[Σ ψ after leaving (ip,i) | state i at ip]
//
// the expected score given an arc (ip,i,j) is r[ip][i] + ψ(ip,i,j) + s[ip+1][j]
// and each arc contributes P(arc)·(E[ψ|arc] - E[ψ]) to the gradient.
type GELattice struct {
	sum         *SumLattice
	psi         [][][]float64
	byIP        [][]int
	r, s        [][]float64
	expectation float64
}

// NewGELattice builds the covariance tables for psi[ip][src][dst] over a
// lattice built with SaveArcs.
func NewGELattice(sum *SumLattice, psi [][][]float64) (*GELattice, error) {

	n := sum.length - 1
	if len(psi) < n {
		return nil, fmt.Errorf("%w: input length [%d], psi length [%d]", ErrTableShape, n, len(psi))
	}
	g := &GELattice{
		sum:  sum,
		psi:  psi,
		byIP: make([][]int, n),
		r:    floatx.MakeFloat2D(sum.length, sum.numStates),
		s:    floatx.MakeFloat2D(sum.length, sum.numStates),
	}
	if impossible(sum.totalWeight) {
		return g, nil
	}
	if sum.arcs == nil && n > 0 {
		return nil, fmt.Errorf("lattice: covariance needs a lattice built with SaveArcs")
	}
	for k, arc := range sum.arcs {
		g.byIP[arc.IP] = append(g.byIP[arc.IP], k)
	}

	α, β := sum.α, sum.β
	for ip := 0; ip < n; ip++ {
		for _, k := range g.byIP[ip] {
			arc := sum.arcs[k]
			ψ := psi[ip][arc.Source][arc.Dest]
			p := math.Exp(α[ip][arc.Source] + arc.Weight - α[ip+1][arc.Dest])
			g.r[ip+1][arc.Dest] += p * (g.r[ip][arc.Source] + ψ)
			g.expectation += arc.Prob * ψ
		}
	}
	for ip := n - 1; ip >= 0; ip-- {
		for _, k := range g.byIP[ip] {
			arc := sum.arcs[k]
			ψ := psi[ip][arc.Source][arc.Dest]
			p := math.Exp(arc.Weight + β[ip+1][arc.Dest] - β[ip][arc.Source])
			g.s[ip][arc.Source] += p * (ψ + g.s[ip+1][arc.Dest])
		}
	}
	return g, nil
}

// Expectation returns E_p[Σ ψ].
func (g *GELattice) Expectation() float64 { return g.expectation }

// ConditionalExpectation returns E[Σ ψ | arc].
func (g *GELattice) ConditionalExpectation(arc Arc) float64 {
	return g.r[arc.IP][arc.Source] + g.psi[arc.IP][arc.Source][arc.Dest] + g.s[arc.IP+1][arc.Dest]
}

// Increment passes the covariance scale of every arc and of the initial
// and final states to inc.
func (g *GELattice) Increment(inc Incrementer) {

	sum := g.sum
	if impossible(sum.totalWeight) {
		return
	}
	e := g.expectation
	for _, arc := range sum.arcs {
		inc.IncrementTransition(sum.input, arc.IP, arc.Source, arc.Index, arc.Dest,
			arc.Prob*(g.ConditionalExpectation(arc)-e))
	}
	n := sum.length - 1
	for i := 0; i < sum.numStates; i++ {
		if p0 := sum.GammaProbability(0, i); p0 > 0 {
			inc.IncrementInitial(i, p0*(g.s[0][i]-e))
		}
		if pn := sum.GammaProbability(n, i); pn > 0 {
			inc.IncrementFinal(i, pn*(g.r[n][i]-e))
		}
	}
}
