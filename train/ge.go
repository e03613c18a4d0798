// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package train

import (
	"errors"

	"github.com/akualab/tagger"
	"github.com/akualab/tagger/ge"
	"github.com/akualab/tagger/model"
	"github.com/akualab/tagger/model/crf"
	"github.com/akualab/tagger/objective"
	"github.com/akualab/tagger/optimize"
	"github.com/golang/glog"
)

// ByGE trains a CRF on unlabeled data by maximizing a generalized
// expectation criterion.
type ByGE struct {
	crf         *crf.CRF
	constraints ge.Set
	config      *tagger.Config
	obj         *objective.GE
}

// NewByGE creates a trainer. A nil config uses the defaults.
func NewByGE(c *crf.CRF, constraints ge.Set, config *tagger.Config) *ByGE {
	if config == nil {
		config = tagger.DefaultConfig()
	}
	return &ByGE{crf: c, constraints: constraints, config: config}
}

// Objective returns the objective of the last call to Train.
func (t *ByGE) Objective() *objective.GE { return t.obj }

// Train runs at most numIterations optimizer iterations and reports
// convergence. The prior variance is ge.gaussian_prior_variance.
func (t *ByGE) Train(data model.InstanceList, numIterations int) (bool, error) {

	if numIterations <= 0 {
		numIterations = t.config.Trainer.MaxIterations
	}
	opts := ObjectiveOptions(t.config.Trainer)
	if v := t.config.GE.GaussianPriorVariance; v > 0 {
		opts = append(opts, objective.GaussianPriorVariance(v))
	}
	obj, err := objective.NewGE(t.crf, data, t.constraints, opts...)
	if err != nil {
		return false, err
	}
	t.obj = obj
	opt, err := NewOptimizer(t.config.Optimizer, obj)
	if err != nil {
		return false, err
	}
	converged, err := run(opt, numIterations, "ge")
	if errors.Is(err, optimize.ErrInvalidOptimizable) {
		glog.Warningf("ge: %v, stopping", err)
		return true, nil
	}
	return converged, err
}
