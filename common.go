// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package tagger is a toolkit for sequence labeling with linear-chain
conditional random fields and finite-state transducers.

The heavy lifting lives in subpackages:

	lattice    forward-backward, Viterbi and N-best lattices
	ge, pr     generalized expectation and posterior regularization constraints
	objective  differentiable objectives built on lattices
	optimize   L-BFGS, OWL-QN, conjugate gradient, gradient ascent, SMA
	train      training drivers

This package holds configuration and small helpers shared by commands and tests.
*/
package tagger

import (
	"github.com/golang/glog"
)

// Fatal logs the error and exits when err is not nil.
func Fatal(err error) {
	if err != nil {
		glog.Fatal(err)
	}
}
