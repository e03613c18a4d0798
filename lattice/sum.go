// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lattice

import (
	"fmt"
	"math"

	"github.com/akualab/tagger/floatx"
	"github.com/akualab/tagger/model"
	"github.com/golang/glog"
)

// SumLattice holds the forward-backward tables of a transducer over an input.
type SumLattice struct {
	t           model.Transducer
	input       model.Sequence
	output      []int
	numStates   int
	length      int
	totalWeight float64
	α           [][]float64
	β           [][]float64
	γ           [][]float64
	ξ           [][][]float64
	arcs        []Arc
	opts        *options
}

// NewSumLattice runs forward-backward. Returns an error when the output
// constraint or a weight table does not match the input length.
func NewSumLattice(t model.Transducer, input model.Sequence, opts ...Option) (*SumLattice, error) {

	o := newOptions(opts)
	if err := o.validate(input); err != nil {
		return nil, err
	}
	l := newSum(t, input, o)
	l.forward(o)
	if impossible(l.totalWeight) {
		glog.V(4).Infof("lattice: no viable path for input of length %d", input.Len())
		return l, nil
	}
	l.backward(o)
	l.gammas(o)
	return l, nil
}

// NewSumLatticePR runs forward-backward over base weights dots plus
// auxiliary weights aux, as used by posterior regularization.
func NewSumLatticePR(t model.Transducer, input model.Sequence, dots, aux [][][]float64, opts ...Option) (*SumLattice, error) {
	opts = append([]Option{CachedDots(dots), Auxiliary(aux)}, opts...)
	return NewSumLattice(t, input, opts...)
}

func newSum(t model.Transducer, input model.Sequence, o *options) *SumLattice {

	ns := t.NumStates()
	length := input.Len() + 1
	l := &SumLattice{
		t:           t,
		input:       input,
		output:      o.output,
		numStates:   ns,
		length:      length,
		totalWeight: model.ImpossibleWeight,
		α:           floatx.MakeImpossible2D(length, ns),
		β:           floatx.MakeImpossible2D(length, ns),
		γ:           floatx.MakeImpossible2D(length, ns),
		opts:        o,
	}
	if o.saveXis {
		l.ξ = floatx.MakeImpossible3D(length, ns, ns)
	}
	return l
}

func (l *SumLattice) forward(o *options) {

	for i := 0; i < l.numStates; i++ {
		l.α[0][i] = l.t.State(i).InitialWeight()
	}
	n := l.length - 1
	for ip := 0; ip < n; ip++ {
		for i := 0; i < l.numStates; i++ {
			a := l.α[ip][i]
			if impossible(a) {
				continue
			}
			it := l.t.Transitions(i, l.input, ip)
			for it.Next() {
				if !o.allowed(ip, it) {
					continue
				}
				w := o.weight(ip, i, it)
				if impossible(w) {
					continue
				}
				j := it.Dest()
				l.α[ip+1][j] = floatx.LogAdd(l.α[ip+1][j], a+w)
			}
		}
	}
	for i := 0; i < l.numStates; i++ {
		l.totalWeight = floatx.LogAdd(l.totalWeight, l.α[n][i]+l.t.State(i).FinalWeight())
	}
}

func (l *SumLattice) backward(o *options) {

	n := l.length - 1
	for i := 0; i < l.numStates; i++ {
		if !impossible(l.α[n][i]) {
			l.β[n][i] = l.t.State(i).FinalWeight()
		}
	}
	z := l.totalWeight
	for ip := n - 1; ip >= 0; ip-- {
		for i := 0; i < l.numStates; i++ {
			a := l.α[ip][i]
			if impossible(a) {
				continue
			}
			it := l.t.Transitions(i, l.input, ip)
			for it.Next() {
				if !o.allowed(ip, it) {
					continue
				}
				j := it.Dest()
				b := l.β[ip+1][j]
				if impossible(b) {
					continue
				}
				w := o.weight(ip, i, it)
				if impossible(w) {
					continue
				}
				l.β[ip][i] = floatx.LogAdd(l.β[ip][i], w+b)

				x := a + w + b - z
				p := math.Exp(x)
				checkProb(p, "transition", ip, i)
				if l.ξ != nil {
					l.ξ[ip][i][j] = floatx.LogAdd(l.ξ[ip][i][j], x)
				}
				if o.saveArcs {
					l.arcs = append(l.arcs, Arc{IP: ip, Source: i, Dest: j, Index: it.Index(),
						Output: it.Output(), Weight: w, Prob: p})
				}
				if o.inc != nil {
					o.inc.IncrementTransition(l.input, ip, i, it.Index(), j, p)
				}
			}
		}
	}
}

func (l *SumLattice) gammas(o *options) {

	z := l.totalWeight
	n := l.length - 1
	for ip := 0; ip < l.length; ip++ {
		for i := 0; i < l.numStates; i++ {
			a, b := l.α[ip][i], l.β[ip][i]
			if impossible(a) || impossible(b) {
				continue
			}
			l.γ[ip][i] = a + b - z
			p := math.Exp(l.γ[ip][i])
			checkProb(p, "state", ip, i)
			if o.inc == nil {
				continue
			}
			if ip == 0 {
				o.inc.IncrementInitial(i, p)
			}
			if ip == n {
				o.inc.IncrementFinal(i, p)
			}
		}
	}
}

// TotalWeight returns the log of the sum of path weights.
func (l *SumLattice) TotalWeight() float64 { return l.totalWeight }

// BackwardTotalWeight returns logsum_i initial(i) + β[0][i]. It equals
// TotalWeight up to rounding when the lattice has a viable path.
func (l *SumLattice) BackwardTotalWeight() float64 {
	z := model.ImpossibleWeight
	for i := 0; i < l.numStates; i++ {
		z = floatx.LogAdd(z, l.t.State(i).InitialWeight()+l.β[0][i])
	}
	return z
}

// Alpha returns the forward log weight.
func (l *SumLattice) Alpha(ip, s int) float64 { return l.α[ip][s] }

// Beta returns the backward log weight.
func (l *SumLattice) Beta(ip, s int) float64 { return l.β[ip][s] }

// Gamma returns the log probability of being in state s at position ip.
func (l *SumLattice) Gamma(ip, s int) float64 { return l.γ[ip][s] }

// GammaProbability returns exp(Gamma(ip, s)).
func (l *SumLattice) GammaProbability(ip, s int) float64 { return math.Exp(l.γ[ip][s]) }

// Gammas returns the [N+1][S] table of log state marginals.
func (l *SumLattice) Gammas() [][]float64 { return l.γ }

// Xi returns the log probability of moving from i to j while consuming ip.
// Panics unless the lattice was built with SaveXis.
func (l *SumLattice) Xi(ip, i, j int) float64 {
	if l.ξ == nil {
		panic("lattice: transition marginals were not saved")
	}
	return l.ξ[ip][i][j]
}

// XiProbability returns exp(Xi(ip, i, j)).
func (l *SumLattice) XiProbability(ip, i, j int) float64 { return math.Exp(l.Xi(ip, i, j)) }

// Xis returns the [N+1][S][S] table of log transition marginals, or nil.
// Row N is unused.
func (l *SumLattice) Xis() [][][]float64 { return l.ξ }

// Arcs returns the reachable transitions when built with SaveArcs.
func (l *SumLattice) Arcs() []Arc { return l.arcs }

// Input returns the input sequence.
func (l *SumLattice) Input() model.Sequence { return l.input }

// Output returns the output constraint or nil.
func (l *SumLattice) Output() []int { return l.output }

// Transducer returns the model.
func (l *SumLattice) Transducer() model.Transducer { return l.t }

// NumPositions returns N+1.
func (l *SumLattice) NumPositions() int { return l.length }

// NumStates returns the number of states.
func (l *SumLattice) NumStates() int { return l.numStates }

// String summarizes the lattice.
func (l *SumLattice) String() string {
	return fmt.Sprintf("sum lattice: positions %d, states %d, total weight %g", l.length, l.numStates, l.totalWeight)
}
