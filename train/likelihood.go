// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package train

import (
	"github.com/akualab/tagger"
	"github.com/akualab/tagger/model"
	"github.com/akualab/tagger/model/crf"
	"github.com/akualab/tagger/objective"
	"github.com/akualab/tagger/optimize"
	"github.com/golang/glog"
)

// ByLabelLikelihood trains a CRF on labeled data by maximizing the
// conditional log-likelihood.
type ByLabelLikelihood struct {
	crf    *crf.CRF
	config *tagger.Config
	obj    *objective.LabelLikelihood
	opt    optimize.Optimizer
}

// NewByLabelLikelihood creates a trainer. A nil config uses the defaults.
func NewByLabelLikelihood(c *crf.CRF, config *tagger.Config) *ByLabelLikelihood {
	if config == nil {
		config = tagger.DefaultConfig()
	}
	return &ByLabelLikelihood{crf: c, config: config}
}

// Objective returns the objective of the last call to Train.
func (t *ByLabelLikelihood) Objective() *objective.LabelLikelihood { return t.obj }

// Train runs at most numIterations optimizer iterations and reports
// convergence. Zero or negative uses trainer.max_iterations. The optimizer
// is reused while the data does not change.
func (t *ByLabelLikelihood) Train(data model.InstanceList, numIterations int) (bool, error) {

	if numIterations <= 0 {
		numIterations = t.config.Trainer.MaxIterations
	}
	if t.obj == nil || !sameData(t.data(), data) {
		obj, err := objective.NewLabelLikelihood(t.crf, data, ObjectiveOptions(t.config.Trainer)...)
		if err != nil {
			return false, err
		}
		cfg := t.config.Optimizer
		if cfg.NumBatches > 1 && cfg.L1Weight == 0 {
			cfg.Type = "sma"
		}
		opt, err := NewOptimizer(cfg, obj)
		if err != nil {
			return false, err
		}
		t.obj, t.opt = obj, opt
	}
	glog.Infof("label likelihood: training on %d instances, %d tokens, %d parameters",
		len(data), data.NumTokens(), t.crf.NumParameters())
	return run(t.opt, numIterations, "label likelihood")
}

func (t *ByLabelLikelihood) data() model.InstanceList {
	if t.obj == nil {
		return nil
	}
	return t.obj.Data()
}

func sameData(a, b model.InstanceList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
