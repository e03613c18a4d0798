// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objective

import (
	"github.com/akualab/tagger"
	"github.com/akualab/tagger/cache"
	"github.com/akualab/tagger/lattice"
	"github.com/akualab/tagger/model"
	"github.com/akualab/tagger/model/crf"
	"github.com/akualab/tagger/pr"
	"github.com/golang/glog"
)

// PRAux is the E-step objective of posterior regularization: the dual
//
//	D(λ) = Σ_k λ_k t_k - Σ_i log(Z_λ,i/Z_p,i) - Σ_k λ_k²/(4 w_k)
//
// over the parameters of an auxiliary model. The CRF is fixed while it is
// optimized.
type PRAux struct {
	crf       *crf.CRF
	aux       *pr.AuxModel
	data      model.InstanceList
	instances []int
	dots      *cache.DotCache
	settings  *settings

	base        []float64
	baseVersion uint64
	baseValid   bool

	cachedValue    float64
	cachedGradient []float64
	valueVersion   uint64
	gradVersion    uint64
	valid          bool
	gradientValid  bool
}

// NewPRAux creates the objective. Transition weight tables are read from
// dots when it is not nil.
func NewPRAux(c *crf.CRF, aux *pr.AuxModel, data model.InstanceList, dots *cache.DotCache, opts ...Option) (*PRAux, error) {

	if err := data.Validate(); err != nil {
		return nil, err
	}
	o := &PRAux{
		crf:            c,
		aux:            aux,
		data:           data,
		dots:           dots,
		settings:       newSettings(opts),
		base:           make([]float64, len(data)),
		cachedGradient: make([]float64, aux.NumParameters()),
	}
	o.instances = instancesIn(aux.PreProcess(data))
	glog.Infof("pr: constraints apply to %d of %d instances", len(o.instances), len(data))
	return o, nil
}

// Aux returns the auxiliary model.
func (o *PRAux) Aux() *pr.AuxModel { return o.aux }

func (o *PRAux) weights(i int) ([][][]float64, error) {
	if o.dots != nil {
		return o.dots.Dots(i, o.crf, o.data[i].Input)
	}
	return lattice.CacheDots(o.crf, o.data[i].Input)
}

// basePartitions computes log Z_p for every constrained instance once per
// CRF version.
func (o *PRAux) basePartitions() error {

	version := o.crf.Version()
	if o.baseValid && o.baseVersion == version {
		return nil
	}
	_, err := mapBatches(o.settings.numThreads, o.instances, func(chunk []int) (struct{}, error) {
		for _, i := range chunk {
			dots, err := o.weights(i)
			if err != nil {
				return struct{}{}, err
			}
			l, err := lattice.NewSumLattice(o.crf, o.data[i].Input, lattice.CachedDots(dots))
			if err != nil {
				return struct{}{}, err
			}
			o.base[i] = l.TotalWeight()
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}
	o.baseVersion, o.baseValid = version, true
	return nil
}

type prPartial struct {
	value float64
	aux   *pr.AuxModel
}

// evaluate returns -Σ log(Z_λ/Z_p) and leaves q expectations in o.aux.
func (o *PRAux) evaluate() (float64, error) {

	if err := o.basePartitions(); err != nil {
		return 0, err
	}
	parts, err := mapBatches(o.settings.numThreads, o.instances, func(chunk []int) (prPartial, error) {
		p := prPartial{aux: o.aux.Copy()}
		for _, i := range chunk {
			if model.IsImpossible(o.base[i]) {
				continue
			}
			input := o.data[i].Input
			dots, err := o.weights(i)
			if err != nil {
				return p, err
			}
			l, err := lattice.NewSumLatticePR(o.crf, input, dots, p.aux.Weights(input), lattice.Increment(p.aux))
			if err != nil {
				return p, err
			}
			p.value -= l.TotalWeight() - o.base[i]
		}
		return p, nil
	})
	if err != nil {
		return 0, err
	}
	o.aux.ZeroExpectations()
	var value float64
	for _, p := range parts {
		value += p.value
		o.aux.Merge(p.aux)
	}
	return value, nil
}

// NumParameters implements optimize.Optimizable.
func (o *PRAux) NumParameters() int { return o.aux.NumParameters() }

// Parameters implements optimize.Optimizable.
func (o *PRAux) Parameters(buf []float64) { o.aux.Parameters(buf) }

// Parameter implements optimize.Optimizable.
func (o *PRAux) Parameter(i int) float64 { return o.aux.Parameter(i) }

// SetParameters implements optimize.Optimizable.
func (o *PRAux) SetParameters(buf []float64) { o.aux.SetParameters(buf) }

// SetParameter implements optimize.Optimizable.
func (o *PRAux) SetParameter(i int, v float64) { o.aux.SetParameter(i, v) }

func (o *PRAux) compute() {
	value, err := o.evaluate()
	if err != nil {
		tagger.Fatal(err)
	}
	value += o.aux.AuxiliaryValue()
	checkValue(value, "pr dual")
	for i := range o.cachedGradient {
		o.cachedGradient[i] = 0
	}
	o.aux.AddGradient(o.cachedGradient)
	checkGradient(o.cachedGradient, "pr dual")
	glog.V(1).Infof("pr: dual value %g, primal penalty %g", value, o.aux.CompleteValue())
	version := o.aux.Version()
	o.cachedValue, o.valueVersion, o.valid = value, version, true
	o.gradVersion, o.gradientValid = version, true
}

// Value implements optimize.ByValue.
func (o *PRAux) Value() float64 {
	if !o.valid || o.valueVersion != o.aux.Version() || o.baseVersion != o.crf.Version() {
		o.compute()
	}
	return o.cachedValue
}

// ValueGradient implements optimize.ByGradientValue.
func (o *PRAux) ValueGradient(buf []float64) {
	if !o.gradientValid || o.gradVersion != o.aux.Version() || o.baseVersion != o.crf.Version() {
		o.compute()
	}
	copy(buf, o.cachedGradient)
}

// Marginals returns the marginals of q for every instance. Instances where
// no constraint applies have q = p. Entries are nil for instances with no
// viable path.
func (o *PRAux) Marginals() ([]*Marginals, error) {

	constrained := make([]bool, len(o.data))
	for _, i := range o.instances {
		constrained[i] = true
	}
	q := make([]*Marginals, len(o.data))
	_, err := mapBatches(o.settings.numThreads, allIndices(len(o.data)), func(chunk []int) (struct{}, error) {
		for _, i := range chunk {
			input := o.data[i].Input
			dots, err := o.weights(i)
			if err != nil {
				return struct{}{}, err
			}
			var l *lattice.SumLattice
			if constrained[i] {
				l, err = lattice.NewSumLatticePR(o.crf, input, dots, o.aux.Weights(input), lattice.SaveXis())
			} else {
				l, err = lattice.NewSumLattice(o.crf, input, lattice.CachedDots(dots), lattice.SaveXis())
			}
			if err != nil {
				return struct{}{}, err
			}
			if model.IsImpossible(l.TotalWeight()) {
				continue
			}
			q[i] = &Marginals{Gammas: l.Gammas(), Xis: l.Xis()}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}
