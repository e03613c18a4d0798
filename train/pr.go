// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package train

import (
	"math"

	"github.com/akualab/tagger"
	"github.com/akualab/tagger/cache"
	"github.com/akualab/tagger/model"
	"github.com/akualab/tagger/model/crf"
	"github.com/akualab/tagger/objective"
	"github.com/akualab/tagger/optimize"
	"github.com/akualab/tagger/pr"
	"github.com/golang/glog"
)

// ByPR trains a CRF on unlabeled data with posterior regularization.
// Each iteration runs an E-step that fits the dual parameters of the
// auxiliary model with the CRF fixed, and an M-step that fits the CRF to
// the resulting q marginals.
type ByPR struct {
	crf    *crf.CRF
	aux    *pr.AuxModel
	config *tagger.Config
	dots   *cache.DotCache

	iterations int
	mValue     float64
}

// NewByPR creates a trainer. A nil config uses the defaults.
func NewByPR(c *crf.CRF, constraints []pr.Constraint, config *tagger.Config) *ByPR {
	if config == nil {
		config = tagger.DefaultConfig()
	}
	return &ByPR{
		crf:    c,
		aux:    pr.NewAuxModel(c.NumStates(), constraints...),
		config: config,
		mValue: math.Inf(-1),
	}
}

// Aux returns the auxiliary model.
func (t *ByPR) Aux() *pr.AuxModel { return t.aux }

// Iterations returns the number of completed E/M iterations.
func (t *ByPR) Iterations() int { return t.iterations }

// Train runs at most numIterations E/M iterations, zero or negative
// meaning pr.max_iterations, and reports whether the M-step value
// converged.
func (t *ByPR) Train(data model.InstanceList, numIterations int) (bool, error) {

	cfg := t.config
	if numIterations <= 0 {
		numIterations = cfg.PR.MaxIterations
	}
	if t.dots == nil {
		size := cfg.PR.CacheSize
		if size < len(data) {
			size = len(data)
		}
		dots, err := cache.NewDotCache(size)
		if err != nil {
			return false, err
		}
		t.dots = dots
	}
	objOpts := ObjectiveOptions(cfg.Trainer)
	tol := cfg.Optimizer.Tolerance
	if tol <= 0 {
		tol = optimize.DefaultTolerance
	}

	for it := 0; it < numIterations; it++ {

		eObj, err := objective.NewPRAux(t.crf, t.aux, data, t.dots, objOpts...)
		if err != nil {
			return false, err
		}
		eOpt := optimize.NewLBFGS(eObj, OptimizerOptions(cfg.Optimizer)...)
		if _, err := run(eOpt, cfg.PR.EStepIterations, "pr e-step"); err != nil {
			return false, err
		}
		dual := eObj.Value()
		q, err := eObj.Marginals()
		if err != nil {
			return false, err
		}

		mObj, err := objective.NewKL(t.crf, data, q, objOpts...)
		if err != nil {
			return false, err
		}
		mOpt, err := NewOptimizer(cfg.Optimizer, mObj)
		if err != nil {
			return false, err
		}
		if _, err := run(mOpt, cfg.PR.MStepIterations, "pr m-step"); err != nil {
			return false, err
		}
		t.iterations++
		value := mObj.Value()
		size, _, hits, misses := t.dots.Stats()
		glog.Infof("pr: iteration %d, dual %g, m-step value %g, dot cache size %d, hits %d, misses %d",
			t.iterations, dual, value, size, hits, misses)

		if !math.IsInf(t.mValue, -1) &&
			2*math.Abs(value-t.mValue) <= tol*(math.Abs(value)+math.Abs(t.mValue)+1e-5) {
			glog.Infof("pr: converged after %d iterations", t.iterations)
			t.mValue = value
			return true, nil
		}
		t.mValue = value
	}
	return false, nil
}
