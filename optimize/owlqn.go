// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import (
	"fmt"
	"math"

	"github.com/akualab/tagger/floatx"
	"github.com/golang/glog"
	"gonum.org/v1/gonum/floats"
)

const owlqnMaxTrial = 50

// OWLQN is the orthant-wise limited memory quasi-Newton maximizer of
//
//	F(x) = f(x) - c·Σ_i |x_i|
//
// where f is the objective and c the L1 weight. Infinite parameters are
// left untouched and excluded from the penalty.
type OWLQN struct {
	obj        ByGradientValue
	settings   *Settings
	c          float64
	hist       *history
	status     Status
	iterations int

	x, oldX   []float64
	g, oldG   []float64
	pg        []float64
	direction []float64
	trial     []float64
	value     float64
}

// NewOWLQN creates an OWL-QN maximizer. The L1Weight option sets c and
// must be positive.
func NewOWLQN(obj ByGradientValue, opts ...Option) (*OWLQN, error) {

	s := newSettings(opts)
	if s.L1Weight <= 0 {
		return nil, fmt.Errorf("owlqn: L1 weight must be positive, got [%g]", s.L1Weight)
	}
	n := obj.NumParameters()
	return &OWLQN{
		obj:       obj,
		settings:  s,
		c:         s.L1Weight,
		hist:      newHistory(s.Memory, n),
		x:         make([]float64, n),
		oldX:      make([]float64, n),
		g:         make([]float64, n),
		oldG:      make([]float64, n),
		pg:        make([]float64, n),
		direction: make([]float64, n),
		trial:     make([]float64, n),
	}, nil
}

// Status returns the current status.
func (o *OWLQN) Status() Status { return o.status }

// Iterations returns the number of completed iterations.
func (o *OWLQN) Iterations() int { return o.iterations }

// Value returns F at the current parameters.
func (o *OWLQN) Value() float64 { return o.value }

// l1 returns Σ|x_i| over finite parameters.
func l1(x []float64) float64 {
	var sum float64
	for _, v := range x {
		if !math.IsInf(v, 0) {
			sum += math.Abs(v)
		}
	}
	return sum
}

func (o *OWLQN) penalized(x []float64) float64 {
	return o.obj.Value() - o.c*l1(x)
}

// pseudoGradient computes the steepest ascent direction of F.
func (o *OWLQN) pseudoGradient() {
	c := o.c
	for i, v := range o.x {
		g := o.g[i]
		switch {
		case math.IsInf(v, 0):
			o.pg[i] = 0
		case v > 0:
			o.pg[i] = g - c
		case v < 0:
			o.pg[i] = g + c
		case g-c > 0:
			o.pg[i] = g - c
		case g+c < 0:
			o.pg[i] = g + c
		default:
			o.pg[i] = 0
		}
	}
}

// Optimize implements Optimizer.
func (o *OWLQN) Optimize(numIterations int) (Status, error) {

	numIterations = o.settings.iterations(numIterations)
	obj := o.obj
	if o.status != Iterating {
		o.hist.clear()
		obj.Parameters(o.x)
		obj.ValueGradient(o.g)
		o.value = o.penalized(o.x)
		o.status = Iterating
		glog.V(1).Infof("owlqn: initial value %g, L1 weight %g", o.value, o.c)
	}

	for it := 0; it < numIterations; it++ {

		o.pseudoGradient()
		if norm := floats.Norm(o.pg, 2); norm < o.settings.GradientTolerance {
			glog.Infof("owlqn: pseudo-gradient norm %g below tolerance after %d iterations", norm, o.iterations)
			o.status = Converged
			return o.status, nil
		}

		copy(o.direction, o.pg)
		o.hist.direction(o.direction)
		for i, d := range o.direction {
			if d*o.pg[i] <= 0 {
				o.direction[i] = 0
			}
		}
		if allZero(o.direction) {
			glog.Infof("owlqn: empty search direction after %d iterations", o.iterations)
			o.status = Converged
			return o.status, nil
		}
		if o.hist.len() == 0 {
			floats.Scale(1/floats.Norm(o.direction, 2), o.direction)
		}

		value := o.value
		step := o.lineSearch()
		if step == 0 {
			glog.Warningf("owlqn: line search could not step after %d iterations, clearing history", o.iterations)
			o.hist.clear()
			o.status = Failed
			return o.status, nil
		}
		copy(o.oldX, o.x)
		copy(o.oldG, o.g)
		obj.Parameters(o.x)
		obj.ValueGradient(o.g)
		if err := o.hist.push(o.x, o.oldX, o.g, o.oldG); err != nil {
			o.status = Failed
			return o.status, err
		}
		o.iterations++
		glog.V(1).Infof("owlqn: iteration %d, value %g, step %g", o.iterations, o.value, step)

		if converged(o.value, value, o.settings.Tolerance) {
			glog.Infof("owlqn: value converged after %d iterations: %g -> %g", o.iterations, value, o.value)
			o.status = Converged
			return o.status, nil
		}
	}
	o.status = IterationLimitReached
	return o.status, nil
}

// lineSearch backtracks along the direction, projecting every trial point
// onto the orthant of the current point. Coordinates that would cross zero
// are set to zero. Returns the accepted step or zero after restoring the
// parameters.
func (o *OWLQN) lineSearch() float64 {

	step := o.settings.InitialStep
	for trial := 0; trial < owlqnMaxTrial; trial++ {
		for i, v := range o.x {
			t := v + step*o.direction[i]
			ξ := orthant(v, o.pg[i])
			if t*ξ < 0 {
				t = 0
			}
			o.trial[i] = t
		}
		o.obj.SetParameters(o.trial)
		f := o.penalized(o.trial)

		var ascent float64
		for i, t := range o.trial {
			ascent += o.pg[i] * floatx.Delta(t, o.x[i])
		}
		glog.V(4).Infof("owlqn: trial %d, step %g, value %g", trial, step, f)
		if !math.IsNaN(f) && f >= o.value+alf*ascent {
			o.value = f
			return step
		}
		step *= 0.5
	}
	o.obj.SetParameters(o.x)
	return 0
}

// orthant returns the sign of x, or of the pseudo-gradient when x is zero.
func orthant(x, pg float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	case pg > 0:
		return 1
	case pg < 0:
		return -1
	}
	return 0
}

// Reset clears the history so the next call starts with steepest ascent.
func (o *OWLQN) Reset() {
	o.hist.clear()
	o.status = Uninitialized
}
