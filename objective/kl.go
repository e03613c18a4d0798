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

// Marginals are the log-domain state and transition marginals of a
// distribution q over the paths of one instance, shaped like the tables of
// a lattice.SumLattice built with SaveXis.
type Marginals struct {
	Gammas [][]float64
	Xis    [][][]float64
}

// KL is the M-step objective of posterior regularization. It maximizes
// the expected conditional log-likelihood under fixed marginals q:
//
//	K(θ) = Σ_i w_i (E_q[w_θ] - log Z_i) - ||θ||²/(2σ²)
//
// which equals -KL(q||p_θ) up to the entropy of q. The gradient is
// E_q[φ] - E_p[φ] - θ/σ².
type KL struct {
	crf      *crf.CRF
	data     model.InstanceList
	q        []*Marginals
	settings *settings
	pool     *gradientPool

	cachedValue    float64
	cachedGradient *crf.Factors
	valueVersion   uint64
	gradVersion    uint64
	valid          bool
	gradientValid  bool
}

// NewKL creates the objective. q[i] holds the marginals of instance i;
// instances with nil marginals are ignored.
func NewKL(c *crf.CRF, data model.InstanceList, q []*Marginals, opts ...Option) (*KL, error) {
	if len(q) != len(data) {
		return nil, fmt.Errorf("%w: [%d] instances and [%d] marginals", model.ErrLengthMismatch, len(data), len(q))
	}
	s := newSettings(opts)
	return &KL{
		crf:      c,
		data:     data,
		q:        q,
		settings: s,
		pool:     newGradientPool(c, s.numThreads),
	}, nil
}

func (o *KL) evaluate(withGradient bool) (float64, *crf.Factors, error) {

	parts, err := mapBatches(o.settings.numThreads, allIndices(len(o.data)), func(chunk []int) (likelihoodPartial, error) {
		var p likelihoodPartial
		if withGradient {
			p.gradient = o.pool.get()
		}
		for _, i := range chunk {
			q := o.q[i]
			if q == nil {
				continue
			}
			v, ok, err := o.instance(o.data[i], q, p.gradient)
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
		glog.Warningf("kl: skipped %d instances where q has mass on impossible transitions", skipped)
	}
	return value, gradient, nil
}

func (o *KL) instance(inst *model.Instance, q *Marginals, grad *crf.Factors) (float64, bool, error) {

	w := inst.InstanceWeight()
	var qOpts, pOpts []lattice.Option
	if grad != nil {
		qOpts = append(qOpts, lattice.Increment(&expectations{c: o.crf, f: grad, scale: w}))
		pOpts = append(pOpts, lattice.Increment(&expectations{c: o.crf, f: grad, scale: -w}))
	}
	expected, err := lattice.NewSumLatticeKL(o.crf, inst.Input, q.Gammas, q.Xis, qOpts...)
	if err != nil {
		return 0, false, err
	}
	if model.IsImpossible(expected.TotalWeight()) {
		return 0, false, nil
	}
	p, err := lattice.NewSumLattice(o.crf, inst.Input, pOpts...)
	if err != nil {
		return 0, false, err
	}
	if model.IsImpossible(p.TotalWeight()) {
		return 0, false, nil
	}
	return w * (expected.TotalWeight() - p.TotalWeight()), true, nil
}

// NumParameters implements optimize.Optimizable.
func (o *KL) NumParameters() int { return o.crf.NumParameters() }

// Parameters implements optimize.Optimizable.
func (o *KL) Parameters(buf []float64) { o.crf.Parameters(buf) }

// Parameter implements optimize.Optimizable.
func (o *KL) Parameter(i int) float64 { return o.crf.Parameter(i) }

// SetParameters implements optimize.Optimizable.
func (o *KL) SetParameters(buf []float64) { o.crf.SetParameters(buf) }

// SetParameter implements optimize.Optimizable.
func (o *KL) SetParameter(i int, v float64) { o.crf.SetParameter(i, v) }

// Value implements optimize.ByValue.
func (o *KL) Value() float64 {

	version := o.crf.Version()
	if o.valid && o.valueVersion == version {
		return o.cachedValue
	}
	value, _, err := o.evaluate(false)
	if err != nil {
		tagger.Fatal(err)
	}
	value += o.crf.Params().GaussianPrior(o.settings.variance)
	checkValue(value, "kl")
	glog.V(1).Infof("kl: value %g", value)
	o.cachedValue, o.valueVersion, o.valid = value, version, true
	return value
}

// ValueGradient implements optimize.ByGradientValue.
func (o *KL) ValueGradient(buf []float64) {

	version := o.crf.Version()
	if !o.gradientValid || o.gradVersion != version {
		value, grad, err := o.evaluate(true)
		if err != nil {
			tagger.Fatal(err)
		}
		params := o.crf.Params()
		value += params.GaussianPrior(o.settings.variance)
		checkValue(value, "kl")
		grad.PlusEqualsGaussianPriorGradient(params, o.settings.variance)
		checkGradient(grad.Flat(), "kl")
		o.cachedGradient, o.gradVersion, o.gradientValid = grad, version, true
		o.cachedValue, o.valueVersion, o.valid = value, version, true
	}
	copy(buf, o.cachedGradient.Flat())
}
