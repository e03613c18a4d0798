// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objective

import (
	"fmt"

	"github.com/akualab/tagger"
	"github.com/akualab/tagger/lattice"
	"github.com/akualab/tagger/model"
	"github.com/akualab/tagger/model/crf"
	"github.com/golang/glog"
)

// LabelLikelihood is the conditional log-likelihood of labeled data
//
//	L(θ) = Σ_i w_i (log Z_i(y_i) - log Z_i) - ||θ||²/(2σ²)
//
// where Z_i(y_i) is the weight of the paths that emit the target labels.
// The gradient is the difference between constrained and unconstrained
// expectations minus θ/σ².
type LabelLikelihood struct {
	crf      *crf.CRF
	data     model.InstanceList
	settings *settings
	pool     *gradientPool

	cachedValue           float64
	cachedValueVersion    uint64
	cachedGradient        *crf.Factors
	cachedGradientVersion uint64
	valid                 bool
	gradientValid         bool
}

// NewLabelLikelihood creates the objective. Every instance must be labeled.
func NewLabelLikelihood(c *crf.CRF, data model.InstanceList, opts ...Option) (*LabelLikelihood, error) {

	if err := data.Validate(); err != nil {
		return nil, err
	}
	for _, inst := range data {
		if !inst.Labeled() {
			return nil, fmt.Errorf("label likelihood: instance [%s] has no target", inst.Name)
		}
	}
	s := newSettings(opts)
	return &LabelLikelihood{
		crf:            c,
		data:           data,
		settings:       s,
		pool:           newGradientPool(c, s.numThreads),
		cachedGradient: c.Expectations(),
	}, nil
}

type likelihoodPartial struct {
	value    float64
	gradient *crf.Factors
	skipped  int
}

// evaluate computes the data term over the instances in idx.
func (o *LabelLikelihood) evaluate(idx []int, withGradient bool) (float64, *crf.Factors, error) {

	parts, err := mapBatches(o.settings.numThreads, idx, func(chunk []int) (likelihoodPartial, error) {
		var p likelihoodPartial
		if withGradient {
			p.gradient = o.pool.get()
		}
		for _, i := range chunk {
			v, ok, err := o.instance(o.data[i], p.gradient)
			if err != nil {
				return p, err
			}
			if !ok {
				p.skipped++
				continue
			}
			p.value += v
		}
		return p, nil
	})
	if err != nil {
		return 0, nil, err
	}

	var value float64
	var gradient *crf.Factors
	var skipped int
	if withGradient {
		gradient = o.crf.Expectations()
	}
	for _, p := range parts {
		value += p.value
		skipped += p.skipped
		if withGradient {
			gradient.PlusEquals(p.gradient, 1)
			o.pool.put(p.gradient)
		}
	}
	if skipped > 0 {
		glog.Warningf("label likelihood: skipped %d instances with impossible target paths", skipped)
	}
	return value, gradient, nil
}

// instance returns w·(log Z(y) - log Z) and adds its gradient to grad
// when grad is not nil. Returns false when the target path is impossible.
func (o *LabelLikelihood) instance(inst *model.Instance, grad *crf.Factors) (float64, bool, error) {

	w := inst.InstanceWeight()
	var constrainedOpts, freeOpts []lattice.Option
	if grad != nil {
		constrainedOpts = append(constrainedOpts, lattice.Increment(&expectations{c: o.crf, f: grad, scale: w}))
		freeOpts = append(freeOpts, lattice.Increment(&expectations{c: o.crf, f: grad, scale: -w}))
	}
	constrainedOpts = append(constrainedOpts, lattice.Output(inst.Target))

	constrained, err := lattice.NewSumLattice(o.crf, inst.Input, constrainedOpts...)
	if err != nil {
		return 0, false, err
	}
	if model.IsImpossible(constrained.TotalWeight()) {
		glog.V(2).Infof("label likelihood: instance [%s] has an impossible target path", inst.Name)
		return 0, false, nil
	}
	free, err := lattice.NewSumLattice(o.crf, inst.Input, freeOpts...)
	if err != nil {
		return 0, false, err
	}
	v := w * (constrained.TotalWeight() - free.TotalWeight())
	glog.V(4).Infof("label likelihood: instance [%s], constrained %g, unconstrained %g",
		inst.Name, constrained.TotalWeight(), free.TotalWeight())
	return v, true, nil
}

// Data returns the training instances.
func (o *LabelLikelihood) Data() model.InstanceList { return o.data }

// NumParameters implements optimize.Optimizable.
func (o *LabelLikelihood) NumParameters() int { return o.crf.NumParameters() }

// Parameters implements optimize.Optimizable.
func (o *LabelLikelihood) Parameters(buf []float64) { o.crf.Parameters(buf) }

// Parameter implements optimize.Optimizable.
func (o *LabelLikelihood) Parameter(i int) float64 { return o.crf.Parameter(i) }

// SetParameters implements optimize.Optimizable.
func (o *LabelLikelihood) SetParameters(buf []float64) { o.crf.SetParameters(buf) }

// SetParameter implements optimize.Optimizable.
func (o *LabelLikelihood) SetParameter(i int, v float64) { o.crf.SetParameter(i, v) }

// Value implements optimize.ByValue.
func (o *LabelLikelihood) Value() float64 {

	version := o.crf.Version()
	if o.valid && o.cachedValueVersion == version {
		return o.cachedValue
	}
	value, _, err := o.evaluate(allIndices(len(o.data)), false)
	if err != nil {
		tagger.Fatal(err)
	}
	value += o.crf.Params().GaussianPrior(o.settings.variance)
	checkValue(value, "label likelihood")
	glog.V(1).Infof("label likelihood: value %g", value)
	o.cachedValue, o.cachedValueVersion, o.valid = value, version, true
	return value
}

// ValueGradient implements optimize.ByGradientValue.
func (o *LabelLikelihood) ValueGradient(buf []float64) {

	version := o.crf.Version()
	if !o.gradientValid || o.cachedGradientVersion != version {
		value, grad, err := o.evaluate(allIndices(len(o.data)), true)
		if err != nil {
			tagger.Fatal(err)
		}
		params := o.crf.Params()
		value += params.GaussianPrior(o.settings.variance)
		checkValue(value, "label likelihood")
		grad.PlusEqualsGaussianPriorGradient(params, o.settings.variance)
		checkGradient(grad.Flat(), "label likelihood")
		o.cachedGradient = grad
		o.cachedGradientVersion, o.gradientValid = version, true
		o.cachedValue, o.cachedValueVersion, o.valid = value, version, true
	}
	copy(buf, o.cachedGradient.Flat())
}

// NumInstances implements optimize.ByBatchGradient.
func (o *LabelLikelihood) NumInstances() int { return len(o.data) }

// batch returns the instances assigned to batch b.
func batch(b int, assignments []int) []int {
	var idx []int
	for i, a := range assignments {
		if a == b {
			idx = append(idx, i)
		}
	}
	return idx
}

// BatchValue implements optimize.ByBatchGradient. The prior is split
// across batches in proportion to their size.
func (o *LabelLikelihood) BatchValue(b int, assignments []int) float64 {
	idx := batch(b, assignments)
	value, _, err := o.evaluate(idx, false)
	if err != nil {
		tagger.Fatal(err)
	}
	frac := float64(len(idx)) / float64(len(o.data))
	value += frac * o.crf.Params().GaussianPrior(o.settings.variance)
	checkValue(value, "label likelihood batch")
	return value
}

// BatchValueGradient implements optimize.ByBatchGradient. The batch
// gradient is added to buf.
func (o *LabelLikelihood) BatchValueGradient(buf []float64, b int, assignments []int) {
	idx := batch(b, assignments)
	_, grad, err := o.evaluate(idx, true)
	if err != nil {
		tagger.Fatal(err)
	}
	frac := float64(len(idx)) / float64(len(o.data))
	grad.PlusEqualsGaussianPriorGradient(o.crf.Params(), o.settings.variance/frac)
	checkGradient(grad.Flat(), "label likelihood batch")
	for i, v := range grad.Flat() {
		buf[i] += v
	}
}
