// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package train implements training drivers for CRFs.

A driver builds an objective over training instances, picks an optimizer
from the configuration and runs it. A line search that cannot step ends the
current round and counts as convergence.
*/
package train

import (
	"fmt"

	"github.com/akualab/tagger"
	"github.com/akualab/tagger/objective"
	"github.com/akualab/tagger/optimize"
	"github.com/golang/glog"
)

// OptimizerOptions converts the optimizer configuration to options.
// Zero values keep the optimizer defaults.
func OptimizerOptions(cfg tagger.Optimizer) []optimize.Option {
	var opts []optimize.Option
	if cfg.Tolerance > 0 {
		opts = append(opts, optimize.Tolerance(cfg.Tolerance))
	}
	if cfg.GradientTolerance > 0 {
		opts = append(opts, optimize.GradientTolerance(cfg.GradientTolerance))
	}
	if cfg.MaxIterations > 0 {
		opts = append(opts, optimize.MaxIterations(cfg.MaxIterations))
	}
	if cfg.Memory > 0 {
		opts = append(opts, optimize.Memory(cfg.Memory))
	}
	if cfg.L1Weight > 0 {
		opts = append(opts, optimize.L1Weight(cfg.L1Weight))
	}
	if cfg.NumBatches > 0 {
		opts = append(opts, optimize.NumBatches(cfg.NumBatches))
	}
	if cfg.InitialStep > 0 {
		opts = append(opts, optimize.InitialStep(cfg.InitialStep))
	}
	return opts
}

// ObjectiveOptions converts the trainer configuration to objective options.
func ObjectiveOptions(cfg tagger.Trainer) []objective.Option {
	var opts []objective.Option
	if cfg.NumThreads > 0 {
		opts = append(opts, objective.NumThreads(cfg.NumThreads))
	}
	if cfg.GaussianPriorVariance > 0 {
		opts = append(opts, objective.GaussianPriorVariance(cfg.GaussianPriorVariance))
	}
	return opts
}

// NewOptimizer creates the optimizer named by cfg.Type. A positive L1
// weight selects OWL-QN. Type "sma" requires a batch objective.
func NewOptimizer(cfg tagger.Optimizer, obj optimize.ByGradientValue) (optimize.Optimizer, error) {

	opts := OptimizerOptions(cfg)
	if cfg.L1Weight > 0 {
		return optimize.NewOWLQN(obj, opts...)
	}
	switch cfg.Type {
	case "", "lbfgs":
		return optimize.NewLBFGS(obj, opts...), nil
	case "owlqn":
		return optimize.NewOWLQN(obj, opts...)
	case "cg":
		return optimize.NewConjugateGradient(obj, opts...), nil
	case "gradient":
		return optimize.NewGradientAscent(obj, opts...), nil
	case "sma":
		b, ok := obj.(optimize.ByBatchGradient)
		if !ok {
			return nil, fmt.Errorf("optimizer [sma] needs a batch objective, got %T", obj)
		}
		return optimize.NewStochasticMetaAscent(b, opts...), nil
	}
	return nil, fmt.Errorf("unknown optimizer type [%s]", cfg.Type)
}

// run optimizes and reports whether the optimizer converged.
func run(opt optimize.Optimizer, numIterations int, what string) (bool, error) {

	st, err := opt.Optimize(numIterations)
	if err != nil {
		return false, fmt.Errorf("%s: %w", what, err)
	}
	switch st {
	case optimize.Converged:
		glog.Infof("%s: converged after %d iterations", what, opt.Iterations())
		return true, nil
	case optimize.Failed:
		glog.Warningf("%s: optimizer could not step after %d iterations, treating as converged", what, opt.Iterations())
		return true, nil
	}
	glog.Infof("%s: stopped after %d iterations with status %s", what, opt.Iterations(), st)
	return false, nil
}
