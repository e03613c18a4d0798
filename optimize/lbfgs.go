// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import (
	"github.com/golang/glog"
	"gonum.org/v1/gonum/floats"
)

// LBFGS is a limited memory BFGS maximizer.
type LBFGS struct {
	obj        ByGradientValue
	settings   *Settings
	lineSearch LineOptimizer
	hist       *history
	status     Status
	iterations int

	x, oldX   []float64
	g, oldG   []float64
	direction []float64
}

// NewLBFGS creates an L-BFGS maximizer for obj.
func NewLBFGS(obj ByGradientValue, opts ...Option) *LBFGS {

	s := newSettings(opts)
	n := obj.NumParameters()
	o := &LBFGS{
		obj:        obj,
		settings:   s,
		lineSearch: s.LineSearch,
		hist:       newHistory(s.Memory, n),
		x:          make([]float64, n),
		oldX:       make([]float64, n),
		g:          make([]float64, n),
		oldG:       make([]float64, n),
		direction:  make([]float64, n),
	}
	if o.lineSearch == nil {
		o.lineSearch = NewBackTrack(obj)
	}
	return o
}

// Status returns the current status.
func (o *LBFGS) Status() Status { return o.status }

// Iterations returns the number of completed iterations.
func (o *LBFGS) Iterations() int { return o.iterations }

// Reset clears the history so the next call starts with steepest ascent.
func (o *LBFGS) Reset() {
	o.hist.clear()
	o.status = Uninitialized
}

// Optimize implements Optimizer.
func (o *LBFGS) Optimize(numIterations int) (Status, error) {

	numIterations = o.settings.iterations(numIterations)
	obj := o.obj

	if o.status != Iterating {
		glog.V(1).Infof("lbfgs: initial value %g, %d parameters", obj.Value(), len(o.x))
		o.hist.clear()
		obj.Parameters(o.x)
		obj.ValueGradient(o.g)
		copy(o.direction, o.g)
		if allZero(o.direction) {
			glog.Infof("lbfgs: zero initial gradient, converged")
			o.status = Converged
			return o.status, nil
		}
		floats.Scale(1/floats.Norm(o.direction, 2), o.direction)
		copy(o.oldX, o.x)
		copy(o.oldG, o.g)
		step, err := o.lineSearch.Optimize(o.direction, o.settings.InitialStep)
		if err != nil {
			o.status = Failed
			return o.status, err
		}
		if step == 0 {
			return o.fail(), nil
		}
		obj.Parameters(o.x)
		obj.ValueGradient(o.g)
		o.status = Iterating
	}

	for it := 0; it < numIterations; it++ {

		value := obj.Value()
		if err := o.hist.push(o.x, o.oldX, o.g, o.oldG); err != nil {
			o.status = Failed
			return o.status, err
		}
		copy(o.oldX, o.x)
		copy(o.oldG, o.g)
		copy(o.direction, o.g)
		o.hist.direction(o.direction)

		step, err := o.lineSearch.Optimize(o.direction, o.settings.InitialStep)
		if err != nil {
			o.status = Failed
			return o.status, err
		}
		if step == 0 {
			return o.fail(), nil
		}
		obj.Parameters(o.x)
		obj.ValueGradient(o.g)
		newValue := obj.Value()
		o.iterations++
		glog.V(1).Infof("lbfgs: iteration %d, value %g, step %g", o.iterations, newValue, step)

		if converged(newValue, value, o.settings.Tolerance) {
			glog.Infof("lbfgs: value converged after %d iterations: %g -> %g", o.iterations, value, newValue)
			o.status = Converged
			return o.status, nil
		}
		gg := floats.Norm(o.g, 2)
		if gg < o.settings.GradientTolerance || allZero(o.g) {
			glog.Infof("lbfgs: gradient norm %g below tolerance after %d iterations", gg, o.iterations)
			o.status = Converged
			return o.status, nil
		}
	}
	o.status = IterationLimitReached
	return o.status, nil
}

// fail clears the history after a line search could not step.
func (o *LBFGS) fail() Status {
	glog.Warningf("lbfgs: line search could not step after %d iterations, clearing history", o.iterations)
	o.hist.clear()
	o.status = Failed
	return o.status
}
