// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import (
	"github.com/golang/glog"
	"gonum.org/v1/gonum/floats"
)

// GradientAscent runs a line search along the gradient on every iteration.
type GradientAscent struct {
	obj        ByGradientValue
	settings   *Settings
	lineSearch LineOptimizer
	status     Status
	iterations int
	step       float64
	g          []float64
}

// NewGradientAscent creates a steepest ascent maximizer for obj.
func NewGradientAscent(obj ByGradientValue, opts ...Option) *GradientAscent {
	s := newSettings(opts)
	o := &GradientAscent{
		obj:        obj,
		settings:   s,
		lineSearch: s.LineSearch,
		step:       s.InitialStep,
		g:          make([]float64, obj.NumParameters()),
	}
	if o.lineSearch == nil {
		o.lineSearch = NewBackTrack(obj)
	}
	return o
}

// Status returns the current status.
func (o *GradientAscent) Status() Status { return o.status }

// Iterations returns the number of completed iterations.
func (o *GradientAscent) Iterations() int { return o.iterations }

// Optimize implements Optimizer.
func (o *GradientAscent) Optimize(numIterations int) (Status, error) {

	numIterations = o.settings.iterations(numIterations)
	obj := o.obj
	o.status = Iterating
	value := obj.Value()
	checkValue(value, "initial")

	for it := 0; it < numIterations; it++ {
		obj.ValueGradient(o.g)
		if norm := floats.Norm(o.g, 2); norm < o.settings.GradientTolerance {
			glog.Infof("gradient ascent: gradient norm %g below tolerance after %d iterations", norm, o.iterations)
			o.status = Converged
			return o.status, nil
		}
		step, err := o.lineSearch.Optimize(o.g, o.step)
		if err != nil {
			o.status = Failed
			return o.status, err
		}
		if step == 0 {
			glog.Warningf("gradient ascent: line search could not step after %d iterations", o.iterations)
			o.status = Failed
			return o.status, nil
		}
		o.step = step
		o.iterations++
		newValue := obj.Value()
		checkValue(newValue, "new")
		glog.V(1).Infof("gradient ascent: iteration %d, value %g, step %g", o.iterations, newValue, step)
		if converged(newValue, value, o.settings.Tolerance) {
			o.status = Converged
			return o.status, nil
		}
		value = newValue
	}
	o.status = IterationLimitReached
	return o.status, nil
}
