// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import (
	"math"

	"github.com/golang/glog"
	"gonum.org/v1/gonum/floats"
)

// ConjugateGradient is a Polak-Ribière conjugate gradient maximizer. The
// conjugacy coefficient is clipped at zero and the search restarts along
// the gradient whenever the conjugate direction is not an ascent direction.
type ConjugateGradient struct {
	obj        ByGradientValue
	settings   *Settings
	lineSearch LineOptimizer
	status     Status
	iterations int
	step       float64

	xi, g, h []float64
	line     []float64
	value    float64
}

// NewConjugateGradient creates a conjugate gradient maximizer for obj.
func NewConjugateGradient(obj ByGradientValue, opts ...Option) *ConjugateGradient {

	s := newSettings(opts)
	n := obj.NumParameters()
	o := &ConjugateGradient{
		obj:        obj,
		settings:   s,
		lineSearch: s.LineSearch,
		step:       s.InitialStep,
		xi:         make([]float64, n),
		g:          make([]float64, n),
		h:          make([]float64, n),
		line:       make([]float64, n),
	}
	if o.lineSearch == nil {
		o.lineSearch = NewBackTrack(obj)
	}
	return o
}

// Status returns the current status.
func (o *ConjugateGradient) Status() Status { return o.status }

// Iterations returns the number of completed iterations.
func (o *ConjugateGradient) Iterations() int { return o.iterations }

// Reset restarts the search along the gradient.
func (o *ConjugateGradient) Reset() { o.status = Uninitialized }

// Optimize implements Optimizer.
func (o *ConjugateGradient) Optimize(numIterations int) (Status, error) {

	numIterations = o.settings.iterations(numIterations)
	obj := o.obj

	if o.status != Iterating {
		o.value = obj.Value()
		obj.ValueGradient(o.xi)
		copy(o.g, o.xi)
		copy(o.h, o.xi)
		o.step = o.settings.InitialStep
		o.status = Iterating
		glog.V(1).Infof("cg: initial value %g", o.value)
	}

	for it := 0; it < numIterations; it++ {

		if allZero(o.xi) {
			glog.Infof("cg: zero gradient after %d iterations", o.iterations)
			o.status = Converged
			return o.status, nil
		}
		copy(o.line, o.xi)
		step, err := o.lineSearch.Optimize(o.line, o.step)
		if err != nil {
			o.status = Failed
			return o.status, err
		}
		if step == 0 {
			glog.Warningf("cg: line search could not step after %d iterations", o.iterations)
			o.status = Failed
			return o.status, nil
		}
		// Let the next search try a longer step than the last one.
		o.step = math.Min(2*step, o.settings.InitialStep)
		fret := obj.Value()
		obj.ValueGradient(o.xi)
		o.iterations++
		glog.V(1).Infof("cg: iteration %d, value %g, step %g", o.iterations, fret, step)

		if converged(fret, o.value, o.settings.Tolerance) {
			glog.Infof("cg: value converged after %d iterations: %g -> %g", o.iterations, o.value, fret)
			o.value = fret
			o.status = Converged
			return o.status, nil
		}
		o.value = fret

		gg := floats.Dot(o.g, o.g)
		if norm := floats.Norm(o.xi, 2); gg == 0 || norm < o.settings.GradientTolerance {
			glog.Infof("cg: gradient norm %g below tolerance after %d iterations", norm, o.iterations)
			o.status = Converged
			return o.status, nil
		}
		var dgg float64
		for j, v := range o.xi {
			dgg += v * (v - o.g[j])
		}
		gam := dgg / gg
		if gam < 0 {
			gam = 0
		}
		copy(o.g, o.xi)
		for j := range o.h {
			o.h[j] = o.xi[j] + gam*o.h[j]
		}
		if floats.Dot(o.h, o.g) <= 0 {
			glog.V(2).Infof("cg: conjugate direction is not ascent, restarting")
			copy(o.h, o.g)
		}
		copy(o.xi, o.h)
	}
	o.status = IterationLimitReached
	return o.status, nil
}
