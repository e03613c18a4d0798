// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import (
	"math"
	"math/rand"

	"github.com/golang/glog"
	"gonum.org/v1/gonum/floats"
)

// StochasticMetaAscent maximizes an objective one batch at a time with
// per-parameter gains that adapt from a Hessian-vector product estimate.
// For each batch:
//
//	η_i ← η_i·max(0.5, 1 + μ·v_i·g_i)
//	x   ← x + η∘g
//	v   ← λ·v + η∘(g + λ·H·v)
//
// where H is the Hessian of the objective. H·v is a finite difference of
// batch gradients taken at x before the move.
type StochasticMetaAscent struct {
	obj         ByBatchGradient
	settings    *Settings
	status      Status
	iterations  int
	assignments []int

	x, g, v []float64
	gain    []float64
	hv, xv  []float64
	value   float64
}

// NewStochasticMetaAscent creates an SMA maximizer. Instances are
// assigned to NumBatches batches at random using Seed.
func NewStochasticMetaAscent(obj ByBatchGradient, opts ...Option) *StochasticMetaAscent {

	s := newSettings(opts)
	if s.NumBatches < 1 {
		s.NumBatches = 1
	}
	n := obj.NumParameters()
	o := &StochasticMetaAscent{
		obj:         obj,
		settings:    s,
		assignments: make([]int, obj.NumInstances()),
		x:           make([]float64, n),
		g:           make([]float64, n),
		v:           make([]float64, n),
		gain:        make([]float64, n),
		hv:          make([]float64, n),
		xv:          make([]float64, n),
	}
	r := rand.New(rand.NewSource(s.Seed))
	for i := range o.assignments {
		o.assignments[i] = r.Intn(s.NumBatches)
	}
	return o
}

// Status returns the current status.
func (o *StochasticMetaAscent) Status() Status { return o.status }

// Iterations returns the number of completed passes over all batches.
func (o *StochasticMetaAscent) Iterations() int { return o.iterations }

// Assignments returns the batch of each instance.
func (o *StochasticMetaAscent) Assignments() []int { return o.assignments }

// Value returns the sum of batch values of the last pass.
func (o *StochasticMetaAscent) Value() float64 { return o.value }

// Optimize implements Optimizer. One iteration visits every batch once.
func (o *StochasticMetaAscent) Optimize(numIterations int) (Status, error) {

	numIterations = o.settings.iterations(numIterations)
	if o.status != Iterating {
		for i := range o.gain {
			o.gain[i] = o.settings.Gain
		}
		for i := range o.v {
			o.v[i] = 0
		}
		o.value = math.Inf(-1)
		o.status = Iterating
	}

	for it := 0; it < numIterations; it++ {
		var total float64
		for b := 0; b < o.settings.NumBatches; b++ {
			total += o.step(b)
		}
		checkValue(total, "batch")
		o.iterations++
		glog.V(1).Infof("sma: iteration %d, value %g", o.iterations, total)

		if !math.IsInf(o.value, -1) && converged(total, o.value, o.settings.Tolerance) {
			glog.Infof("sma: value converged after %d iterations: %g -> %g", o.iterations, o.value, total)
			o.value = total
			o.status = Converged
			return o.status, nil
		}
		o.value = total
	}
	o.status = IterationLimitReached
	return o.status, nil
}

// step updates the parameters using one batch and returns the batch value
// before the update.
func (o *StochasticMetaAscent) step(batch int) float64 {

	obj := o.obj
	obj.Parameters(o.x)
	value := obj.BatchValue(batch, o.assignments)
	for i := range o.g {
		o.g[i] = 0
	}
	obj.BatchValueGradient(o.g, batch, o.assignments)
	mu := o.settings.MetaStep
	lambda := o.settings.Decay

	o.hessianVector(batch)
	for i := range o.x {
		o.gain[i] *= math.Max(0.5, 1+mu*o.v[i]*o.g[i])
		if math.IsInf(o.x[i], 0) {
			continue
		}
		o.x[i] += o.gain[i] * o.g[i]
		o.v[i] = lambda*o.v[i] + o.gain[i]*(o.g[i]+lambda*o.hv[i])
	}
	obj.SetParameters(o.x)
	return value
}

// hessianVector estimates H·v into hv from a batch gradient at x + r·v.
// Expects x and g to hold the current parameters and batch gradient.
func (o *StochasticMetaAscent) hessianVector(batch int) {

	norm := floats.Norm(o.v, 2)
	if norm == 0 {
		for i := range o.hv {
			o.hv[i] = 0
		}
		return
	}
	r := eps / norm
	for i, x := range o.x {
		o.xv[i] = x + r*o.v[i]
	}
	o.obj.SetParameters(o.xv)
	for i := range o.hv {
		o.hv[i] = 0
	}
	o.obj.BatchValueGradient(o.hv, batch, o.assignments)
	for i := range o.hv {
		o.hv[i] = (o.hv[i] - o.g[i]) / r
	}
	o.obj.SetParameters(o.x)
}
