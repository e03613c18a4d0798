// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package crf

import (
	"fmt"

	"github.com/akualab/tagger/model"
)

// Params returns the model parameters. Callers that write to them must
// call Touch to invalidate cached computations.
func (c *CRF) Params() *Factors { return c.params }

// Touch increments the model version.
func (c *CRF) Touch() { c.version++ }

// NumParameters returns the number of free parameters.
func (c *CRF) NumParameters() int { return c.params.NumParameters() }

// Parameters copies the parameters into buf.
func (c *CRF) Parameters(buf []float64) { copy(buf, c.params.Flat()) }

// Parameter returns parameter i.
func (c *CRF) Parameter(i int) float64 { return c.params.Flat()[i] }

// SetParameters sets all parameters from buf.
func (c *CRF) SetParameters(buf []float64) {
	copy(c.params.Flat(), buf)
	c.version++
}

// SetParameter sets parameter i.
func (c *CRF) SetParameter(i int, v float64) {
	c.params.Flat()[i] = v
	c.version++
}

// SetInitialWeight sets the initial weight of a named state.
func (c *CRF) SetInitialWeight(state string, w float64) error {
	idx, ok := c.stateIndex[state]
	if !ok {
		return fmt.Errorf("%w: state [%s]", model.ErrUnknownName, state)
	}
	c.params.Initial[idx] = w
	c.version++
	return nil
}

// SetFinalWeight sets the final weight of a named state.
func (c *CRF) SetFinalWeight(state string, w float64) error {
	idx, ok := c.stateIndex[state]
	if !ok {
		return fmt.Errorf("%w: state [%s]", model.ErrUnknownName, state)
	}
	c.params.Final[idx] = w
	c.version++
	return nil
}

// SetDefaultWeight sets the bias of a named weight set.
func (c *CRF) SetDefaultWeight(weightSet string, w float64) error {
	ws := c.weightNames.Index(weightSet)
	if ws < 0 {
		return fmt.Errorf("%w: weight set [%s]", model.ErrUnknownName, weightSet)
	}
	c.params.Default[ws] = w
	c.version++
	return nil
}

// SetWeight sets the weight of input feature f in a named weight set.
func (c *CRF) SetWeight(weightSet string, f int, w float64) error {
	ws := c.weightNames.Index(weightSet)
	if ws < 0 {
		return fmt.Errorf("%w: weight set [%s]", model.ErrUnknownName, weightSet)
	}
	if f < 0 || f >= c.numFeatures {
		return fmt.Errorf("%w: feature [%d], num features is [%d]", model.ErrIndexOutOfRange, f, c.numFeatures)
	}
	c.params.Weights[ws][f] = w
	c.version++
	return nil
}

// Expectations returns zeroed factors shaped like the parameters.
func (c *CRF) Expectations() *Factors { return c.params.NewLike() }

// IncrementArc adds prob times the features of transition index of state
// src at position ip to the expectations in f.
func (c *CRF) IncrementArc(f *Factors, input model.Sequence, ip, src, index int, prob float64) {
	fv := input.At(ip)
	for _, ws := range c.states[src].dests[index].weightSets {
		f.Default[ws] += prob
		fv.AddTo(f.Weights[ws], prob)
	}
}

// IncrementInitial adds prob to the initial expectation of state s.
func (c *CRF) IncrementInitial(f *Factors, s int, prob float64) { f.Initial[s] += prob }

// IncrementFinal adds prob to the final expectation of state s.
func (c *CRF) IncrementFinal(f *Factors, s int, prob float64) { f.Final[s] += prob }

// Label returns the output label name for label index l.
func (c *CRF) Label(l int) string { return c.outputs.Lookup(l) }
