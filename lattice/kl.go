// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lattice

import (
	"fmt"
	"math"

	"github.com/akualab/tagger/model"
)

// KLLattice holds the expected path weight of a transducer under supplied
// state and transition marginals q:
//
//	E_q[w] = Σ_i q(0,i)·initial(i) + Σ_ip Σ_ij q(ip,i,j)·w(ip,i,j) + Σ_i q(N,i)·final(i)
//
// No recursion is needed.
type KLLattice struct {
	t           model.Transducer
	input       model.Sequence
	totalWeight float64
	arcs        []Arc
}

// NewSumLatticeKL computes E_q[w]. gammas is [N+1][S] and xis is
// [N+1][S][S], both in the log domain as returned by SumLattice.
// Options CachedDots, SaveArcs and Increment apply; increments carry q.
func NewSumLatticeKL(t model.Transducer, input model.Sequence, gammas [][]float64, xis [][][]float64,
	opts ...Option) (*KLLattice, error) {

	o := newOptions(opts)
	if err := o.validate(input); err != nil {
		return nil, err
	}
	n := input.Len()
	if len(gammas) != n+1 || len(xis) < n {
		return nil, fmt.Errorf("%w: input length [%d], gammas [%d], xis [%d]", ErrTableShape, n, len(gammas), len(xis))
	}

	l := &KLLattice{t: t, input: input}
	ns := t.NumStates()
	var total float64
	for i := 0; i < ns; i++ {
		q0 := math.Exp(gammas[0][i])
		checkProb(q0, "initial", 0, i)
		if q0 > 0 {
			total += q0 * t.State(i).InitialWeight()
			if o.inc != nil {
				o.inc.IncrementInitial(i, q0)
			}
		}
		qn := math.Exp(gammas[n][i])
		checkProb(qn, "final", n, i)
		if qn > 0 {
			total += qn * t.State(i).FinalWeight()
			if o.inc != nil {
				o.inc.IncrementFinal(i, qn)
			}
		}
	}
	for ip := 0; ip < n; ip++ {
		for i := 0; i < ns; i++ {
			if impossible(gammas[ip][i]) {
				continue
			}
			it := t.Transitions(i, input, ip)
			for it.Next() {
				if !o.allowed(ip, it) {
					continue
				}
				j := it.Dest()
				q := math.Exp(xis[ip][i][j])
				if q == 0 {
					continue
				}
				checkProb(q, "transition", ip, i)
				w := o.weight(ip, i, it)
				total += q * w
				if o.saveArcs {
					l.arcs = append(l.arcs, Arc{IP: ip, Source: i, Dest: j, Index: it.Index(),
						Output: it.Output(), Weight: w, Prob: q})
				}
				if o.inc != nil {
					o.inc.IncrementTransition(input, ip, i, it.Index(), j, q)
				}
			}
		}
	}
	l.totalWeight = total
	return l, nil
}

// TotalWeight returns E_q[w]. It is model.ImpossibleWeight when q puts mass
// on a forbidden transition.
func (l *KLLattice) TotalWeight() float64 { return l.totalWeight }

// Arcs returns the transitions with q probabilities when built with SaveArcs.
func (l *KLLattice) Arcs() []Arc { return l.arcs }

// Input returns the input sequence.
func (l *KLLattice) Input() model.Sequence { return l.input }
