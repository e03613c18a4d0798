// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package lattice implements forward-backward and Viterbi over a model.Transducer.

Positions run from 0 to N where N is the input length. A path starts at
position 0 in a state with a finite initial weight, consumes input ip when
moving from position ip to ip+1, and ends at position N in a state with a
finite final weight. All weights are natural logs; model.ImpossibleWeight
marks unreachable cells.

	α[0][i]    = initial(i)
	α[ip+1][j] = logsum_i α[ip][i] + w(ip,i,j)
	β[N][i]    = final(i)
	β[ip][i]   = logsum_j w(ip,i,j) + β[ip+1][j]
	γ[ip][i]   = α[ip][i] + β[ip][i] - Z
	ξ[ip][i][j] = α[ip][i] + w(ip,i,j) + β[ip+1][j] - Z

A lattice with no viable path has TotalWeight() == model.ImpossibleWeight.
That is a valid outcome; callers skip the instance.
*/
package lattice

import (
	"fmt"
	"math"

	"github.com/akualab/tagger/model"
)

// Error is a lattice error.
type Error string

func (err Error) Error() string { return string(err) }

const (
	ErrDuplicateTransition = Error("lattice: two transitions connect the same pair of states")
	ErrTableShape          = Error("lattice: weight table does not match input")
)

// Tolerance for marginal probabilities above one.
const probTolerance = 1e-6

// Incrementer receives expected counts while a lattice is computed.
// Probabilities are in the linear domain.
type Incrementer interface {

	// IncrementTransition is called for the transition with the given index
	// leaving state src while consuming input position ip.
	IncrementTransition(input model.Sequence, ip, src, index, dst int, prob float64)

	// IncrementInitial is called once per state at position 0.
	IncrementInitial(s int, prob float64)

	// IncrementFinal is called once per state at position N.
	IncrementFinal(s int, prob float64)
}

// Arc is a reachable transition with its marginal probability.
type Arc struct {
	// Input position consumed by the transition.
	IP int
	// Source state at position IP, destination state at IP+1.
	Source, Dest int
	// Index of the transition in the source state's list.
	Index int
	// Output label.
	Output int
	// Log weight of the transition used in the recursion.
	Weight float64
	// Marginal probability.
	Prob float64
}

type options struct {
	output   []int
	dots     [][][]float64
	aux      [][][]float64
	saveXis  bool
	saveArcs bool
	inc      Incrementer
	nbest    int
}

// Option type is used to pass options to lattice constructors.
type Option func(*options)

// Output constrains paths to emit target[ip] when consuming input ip.
func Output(target []int) Option {
	return func(o *options) { o.output = target }
}

// CachedDots supplies a weight table [ip][src][dst] built with CacheDots.
// When set, the transducer is not asked for transition weights.
func CachedDots(dots [][][]float64) Option {
	return func(o *options) { o.dots = dots }
}

// Auxiliary adds aux[ip][src][dst] to every transition weight.
func Auxiliary(aux [][][]float64) Option {
	return func(o *options) { o.aux = aux }
}

// SaveXis retains the transition marginals table.
func SaveXis() Option {
	return func(o *options) { o.saveXis = true }
}

// SaveArcs retains the list of reachable transitions with probabilities.
func SaveArcs() Option {
	return func(o *options) { o.saveArcs = true }
}

// Increment passes expected counts to inc during the backward pass.
func Increment(inc Incrementer) Option {
	return func(o *options) { o.inc = inc }
}

// NBest sets the number of paths kept by a MaxLattice.
func NBest(n int) Option {
	return func(o *options) { o.nbest = n }
}

func newOptions(opts []Option) *options {
	o := &options{nbest: 1}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) validate(input model.Sequence) error {

	n := input.Len()
	if o.output != nil && len(o.output) != n {
		return fmt.Errorf("%w: input length [%d], output length [%d]", model.ErrLengthMismatch, n, len(o.output))
	}
	if o.dots != nil && len(o.dots) < n {
		return fmt.Errorf("%w: input length [%d], cached dots length [%d]", ErrTableShape, n, len(o.dots))
	}
	if o.aux != nil && len(o.aux) < n {
		return fmt.Errorf("%w: input length [%d], auxiliary weights length [%d]", ErrTableShape, n, len(o.aux))
	}
	if o.nbest < 1 {
		return fmt.Errorf("n-best must be positive, got [%d]", o.nbest)
	}
	return nil
}

// allowed returns false when the output constraint excludes the transition.
func (o *options) allowed(ip int, it model.TransitionIterator) bool {
	return o.output == nil || it.Output() == o.output[ip]
}

// weight returns the log weight of the current transition.
func (o *options) weight(ip, src int, it model.TransitionIterator) float64 {
	var w float64
	if o.dots != nil {
		w = o.dots[ip][src][it.Dest()]
	} else {
		w = it.Weight()
	}
	if o.aux != nil && !model.IsImpossible(w) {
		w += o.aux[ip][src][it.Dest()]
	}
	return w
}

// CacheDots computes the weight table [ip][src][dst] for input.
// Returns an error when two transitions connect the same pair of states.
func CacheDots(t model.Transducer, input model.Sequence) ([][][]float64, error) {

	n := input.Len()
	ns := t.NumStates()
	dots := make([][][]float64, n)
	seen := make([]bool, ns)
	for ip := 0; ip < n; ip++ {
		dots[ip] = make([][]float64, ns)
		for i := 0; i < ns; i++ {
			row := make([]float64, ns)
			for j := range row {
				row[j] = model.ImpossibleWeight
				seen[j] = false
			}
			it := t.Transitions(i, input, ip)
			for it.Next() {
				j := it.Dest()
				if seen[j] {
					return nil, fmt.Errorf("%w: states [%s] and [%s]", ErrDuplicateTransition,
						t.State(i).Name(), t.State(j).Name())
				}
				seen[j] = true
				row[j] = it.Weight()
			}
			dots[ip][i] = row
		}
	}
	return dots, nil
}

// checkProb panics when p is not a valid probability.
func checkProb(p float64, what string, ip, i int) {
	if !(p >= 0 && p <= 1+probTolerance) {
		panic(fmt.Sprintf("lattice: %s probability [%g] out of range at position [%d], state [%d]", what, p, ip, i))
	}
}

func impossible(w float64) bool { return math.IsInf(w, -1) }
