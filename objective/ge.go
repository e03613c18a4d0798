// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objective

import (
	"math"

	"github.com/akualab/tagger"
	"github.com/akualab/tagger/floatx"
	"github.com/akualab/tagger/ge"
	"github.com/akualab/tagger/lattice"
	"github.com/akualab/tagger/model"
	"github.com/akualab/tagger/model/crf"
	"github.com/bits-and-blooms/bitset"
	"github.com/golang/glog"
)

// GE is the generalized expectation criterion over unlabeled data
//
//	G(θ) = Σ_c V_c(E_θ[·]) - ||θ||²/(2σ²)
//
// A first pass computes lattices and accumulates constraint
// expectations. A second pass turns the derivative of every penalty into
// per-transition scores ψ and adds the covariance of Σψ with the features
// to the gradient.
type GE struct {
	crf         *crf.CRF
	data        model.InstanceList
	constraints ge.Set
	instances   []int
	settings    *settings
	pool        *gradientPool

	cachedValue    float64
	cachedGradient *crf.Factors
	valueVersion   uint64
	gradVersion    uint64
	valid          bool
	gradientValid  bool
}

// NewGE creates the objective. Only instances where some constraint
// applies are visited.
func NewGE(c *crf.CRF, data model.InstanceList, constraints ge.Set, opts ...Option) (*GE, error) {

	if err := data.Validate(); err != nil {
		return nil, err
	}
	s := newSettings(opts)
	bs := constraints.PreProcess(data)
	o := &GE{
		crf:         c,
		data:        data,
		constraints: constraints,
		settings:    s,
		pool:        newGradientPool(c, s.numThreads),
	}
	o.instances = instancesIn(bs)
	glog.Infof("ge: constraints apply to %d of %d instances", len(o.instances), len(data))
	return o, nil
}

func instancesIn(bs *bitset.BitSet) []int {
	idx := make([]int, 0, bs.Count())
	for i, ok := bs.NextSet(0); ok; i, ok = bs.NextSet(i + 1) {
		idx = append(idx, int(i))
	}
	return idx
}

// Constraints returns the constraints with the expectations of the last
// evaluation.
func (o *GE) Constraints() ge.Set { return o.constraints }

type geExpectations struct {
	constraints ge.Set
	lattices    map[int]*lattice.SumLattice
}

// expectations runs the first pass and leaves merged expectations in
// o.constraints.
func (o *GE) expectations(keepLattices bool) (map[int]*lattice.SumLattice, error) {

	parts, err := mapBatches(o.settings.numThreads, o.instances, func(chunk []int) (geExpectations, error) {
		p := geExpectations{constraints: o.constraints.Copy(), lattices: make(map[int]*lattice.SumLattice, len(chunk))}
		lats := make([]*lattice.SumLattice, 0, len(chunk))
		for _, i := range chunk {
			l, err := lattice.NewSumLattice(o.crf, o.data[i].Input, lattice.SaveXis(), lattice.SaveArcs())
			if err != nil {
				return p, err
			}
			lats = append(lats, l)
			if keepLattices {
				p.lattices[i] = l
			}
		}
		p.constraints.ComputeExpectations(lats)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	o.constraints.ZeroExpectations()
	all := make(map[int]*lattice.SumLattice)
	for _, p := range parts {
		o.constraints.Merge(p.constraints)
		for i, l := range p.lattices {
			all[i] = l
		}
	}
	return all, nil
}

// gradient runs the second pass over the lattices of the first pass.
func (o *GE) gradient(lattices map[int]*lattice.SumLattice) (*crf.Factors, error) {

	ns := o.crf.NumStates()
	parts, err := mapBatches(o.settings.numThreads, o.instances, func(chunk []int) (*crf.Factors, error) {
		grad := o.pool.get()
		inc := &expectations{c: o.crf, f: grad, scale: 1}
		for _, i := range chunk {
			l := lattices[i]
			if model.IsImpossible(l.TotalWeight()) {
				continue
			}
			input := o.data[i].Input
			psi := floatx.MakeFloat3D(input.Len(), ns, ns)
			o.constraints.AddComposite(input, psi)
			gl, err := lattice.NewGELattice(l, psi)
			if err != nil {
				return grad, err
			}
			gl.Increment(inc)
		}
		return grad, nil
	})
	if err != nil {
		return nil, err
	}
	grad := o.crf.Expectations()
	for _, p := range parts {
		grad.PlusEquals(p, 1)
		o.pool.put(p)
	}
	return grad, nil
}

// NumParameters implements optimize.Optimizable.
func (o *GE) NumParameters() int { return o.crf.NumParameters() }

// Parameters implements optimize.Optimizable.
func (o *GE) Parameters(buf []float64) { o.crf.Parameters(buf) }

// Parameter implements optimize.Optimizable.
func (o *GE) Parameter(i int) float64 { return o.crf.Parameter(i) }

// SetParameters implements optimize.Optimizable.
func (o *GE) SetParameters(buf []float64) { o.crf.SetParameters(buf) }

// SetParameter implements optimize.Optimizable.
func (o *GE) SetParameter(i int, v float64) { o.crf.SetParameter(i, v) }

// Value implements optimize.ByValue. The value is -Inf when a KL
// constraint has a target label with zero expectation.
func (o *GE) Value() float64 {

	version := o.crf.Version()
	if o.valid && o.valueVersion == version {
		return o.cachedValue
	}
	if _, err := o.expectations(false); err != nil {
		tagger.Fatal(err)
	}
	value := o.constraints.Value() + o.crf.Params().GaussianPrior(o.settings.variance)
	checkValue(value, "ge")
	if math.IsInf(value, -1) {
		glog.Warningf("ge: value is -Inf")
	}
	glog.V(1).Infof("ge: value %g", value)
	o.cachedValue, o.valueVersion, o.valid = value, version, true
	return value
}

// ValueGradient implements optimize.ByGradientValue.
func (o *GE) ValueGradient(buf []float64) {

	version := o.crf.Version()
	if !o.gradientValid || o.gradVersion != version {
		lattices, err := o.expectations(true)
		if err != nil {
			tagger.Fatal(err)
		}
		params := o.crf.Params()
		value := o.constraints.Value() + params.GaussianPrior(o.settings.variance)
		checkValue(value, "ge")
		grad, err := o.gradient(lattices)
		if err != nil {
			tagger.Fatal(err)
		}
		grad.PlusEqualsGaussianPriorGradient(params, o.settings.variance)
		checkGradient(grad.Flat(), "ge")
		o.cachedGradient, o.gradVersion, o.gradientValid = grad, version, true
		o.cachedValue, o.valueVersion, o.valid = value, version, true
	}
	copy(buf, o.cachedGradient.Flat())
}
