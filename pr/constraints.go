// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pr

import (
	"fmt"
	"math"

	"github.com/akualab/tagger/model"
	"github.com/bits-and-blooms/bitset"
)

// shared holds the per-feature targets, weights and counts of a constraint
// family. It is not modified after PreProcess.
type shared struct {
	features []int
	index    map[int]int
	targets  [][]float64
	weights  []float64
	counts   []float64
}

// featureL2 implements L2 constraints keyed by (feature, label key).
type featureL2 struct {
	labels *model.StateLabelMap
	// Number of label keys per feature.
	size int
	// First input position where the constraint applies.
	from int
	key  func(src, dst int) int
	sh   *shared
	exp  [][]float64
}

func (c *featureL2) add(f int, target []float64, weight float64) error {

	if weight <= 0 {
		return fmt.Errorf("%w: feature [%d] has weight [%g]", ErrBadWeight, f, weight)
	}
	if _, ok := c.sh.index[f]; ok {
		return fmt.Errorf("%w: feature [%d] already constrained", model.ErrDuplicateName, f)
	}
	if len(target) != c.size {
		return fmt.Errorf("%w: target has [%d] entries, expected [%d]", ErrBadTarget, len(target), c.size)
	}
	var sum float64
	for _, v := range target {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: target value [%g] is not a probability", ErrBadTarget, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("%w: target sums to [%g]", ErrBadTarget, sum)
	}
	c.sh.index[f] = len(c.sh.features)
	c.sh.features = append(c.sh.features, f)
	c.sh.targets = append(c.sh.targets, append([]float64(nil), target...))
	c.sh.weights = append(c.sh.weights, weight)
	c.sh.counts = append(c.sh.counts, 0)
	c.exp = append(c.exp, make([]float64, c.size))
	return nil
}

// NumDimensions implements Constraint.
func (c *featureL2) NumDimensions() int { return len(c.sh.features) * c.size }

// PreProcess implements Constraint.
func (c *featureL2) PreProcess(data model.InstanceList) *bitset.BitSet {

	for k := range c.sh.counts {
		c.sh.counts[k] = 0
	}
	bs := bitset.New(uint(len(data)))
	for n, inst := range data {
		for ip := c.from; ip < inst.Input.Len(); ip++ {
			c.firing(inst.Input.At(ip), func(ci int) {
				c.sh.counts[ci]++
				bs.Set(uint(n))
			})
		}
	}
	return bs
}

// firing calls fn with the constraint index of every constrained feature
// present in fv.
func (c *featureL2) firing(fv *model.FeatureVector, fn func(ci int)) {
	for loc := 0; loc < fv.NumLocations(); loc++ {
		if fv.ValueAt(loc) == 0 {
			continue
		}
		if ci, ok := c.sh.index[fv.IndexAt(loc)]; ok {
			fn(ci)
		}
	}
}

// Score implements Constraint.
func (c *featureL2) Score(input model.Sequence, ip, src, dst int, params []float64) float64 {
	if ip < c.from {
		return 0
	}
	k := c.key(src, dst)
	if k < 0 {
		return 0
	}
	var s float64
	c.firing(input.At(ip), func(ci int) {
		if n := c.sh.counts[ci]; n > 0 {
			s += params[ci*c.size+k] / n
		}
	})
	return s
}

// ZeroExpectations implements Constraint.
func (c *featureL2) ZeroExpectations() {
	for _, e := range c.exp {
		for k := range e {
			e[k] = 0
		}
	}
}

// Increment implements Constraint.
func (c *featureL2) Increment(input model.Sequence, ip, src, dst int, prob float64) {
	if ip < c.from {
		return
	}
	k := c.key(src, dst)
	if k < 0 {
		return
	}
	c.firing(input.At(ip), func(ci int) { c.exp[ci][k] += prob })
}

// AuxiliaryValue implements Constraint.
func (c *featureL2) AuxiliaryValue(params []float64) float64 {
	var v float64
	for ci, target := range c.sh.targets {
		w := c.sh.weights[ci]
		for k, t := range target {
			λ := params[ci*c.size+k]
			if c.sh.counts[ci] > 0 {
				v += λ * t
			}
			v -= λ * λ / (4 * w)
		}
	}
	return v
}

// AddGradient implements Constraint.
func (c *featureL2) AddGradient(params, grad []float64) {
	for ci, target := range c.sh.targets {
		n := c.sh.counts[ci]
		w := c.sh.weights[ci]
		for k, t := range target {
			d := ci*c.size + k
			if n == 0 {
				grad[d] -= params[d] / (2 * w)
				continue
			}
			grad[d] += t - c.exp[ci][k]/n - params[d]/(2*w)
		}
	}
}

// CompleteValue implements Constraint.
func (c *featureL2) CompleteValue() float64 {
	var v float64
	for ci, target := range c.sh.targets {
		n := c.sh.counts[ci]
		if n == 0 {
			continue
		}
		for k, t := range target {
			d := t - c.exp[ci][k]/n
			v -= c.sh.weights[ci] * d * d
		}
	}
	return v
}

// Expectation returns the q expectation of label key k for feature f.
func (c *featureL2) Expectation(f, k int) float64 {
	ci, ok := c.sh.index[f]
	if !ok {
		return 0
	}
	return c.exp[ci][k]
}

// Count returns the number of tokens where feature f fires.
func (c *featureL2) Count(f int) float64 {
	ci, ok := c.sh.index[f]
	if !ok {
		return 0
	}
	return c.sh.counts[ci]
}

// Dimension returns the dual parameter index of feature f and label key k.
func (c *featureL2) Dimension(f, k int) int {
	ci, ok := c.sh.index[f]
	if !ok {
		return -1
	}
	return ci*c.size + k
}

func (c *featureL2) copy() *featureL2 {
	cp := *c
	cp.exp = make([][]float64, len(c.exp))
	for i := range cp.exp {
		cp.exp[i] = make([]float64, c.size)
	}
	return &cp
}

func (c *featureL2) merge(o *featureL2) {
	for ci, e := range o.exp {
		for k, v := range e {
			c.exp[ci][k] += v
		}
	}
}

func newFeatureL2(labels *model.StateLabelMap, size, from int, key func(src, dst int) int) *featureL2 {
	return &featureL2{
		labels: labels,
		size:   size,
		from:   from,
		key:    key,
		sh:     &shared{index: make(map[int]int)},
	}
}

// OneLabelL2 constrains the label distribution of tokens where a feature
// fires. The label of the token at ip is the label of the destination state.
type OneLabelL2 struct {
	*featureL2
}

// NewOneLabelL2 creates one-label L2 constraints.
func NewOneLabelL2(labels *model.StateLabelMap) *OneLabelL2 {
	return &OneLabelL2{newFeatureL2(labels, labels.NumLabels(), 0, func(src, dst int) int {
		return labels.Label(dst)
	})}
}

// AddConstraint sets the target label distribution of feature f.
func (c *OneLabelL2) AddConstraint(f int, target []float64, weight float64) error {
	return c.add(f, target, weight)
}

// Copy implements Constraint.
func (c *OneLabelL2) Copy() Constraint { return &OneLabelL2{c.copy()} }

// Merge implements Constraint.
func (c *OneLabelL2) Merge(other Constraint) {
	o, ok := other.(*OneLabelL2)
	if !ok {
		panic(ErrIncompatible)
	}
	c.merge(o.featureL2)
}

// TwoLabelL2 constrains the distribution of (previous label, label) pairs
// at tokens ip >= 1 where a feature fires. The START label is skipped.
type TwoLabelL2 struct {
	*featureL2
}

// NewTwoLabelL2 creates two-label L2 constraints. Keys are prev*L + label.
func NewTwoLabelL2(labels *model.StateLabelMap) *TwoLabelL2 {
	n := labels.NumLabels()
	return &TwoLabelL2{newFeatureL2(labels, n*n, 1, func(src, dst int) int {
		li, lj := labels.Label(src), labels.Label(dst)
		start := labels.StartLabel()
		if li < 0 || lj < 0 || li == start || lj == start {
			return -1
		}
		return li*n + lj
	})}
}

// AddConstraint sets the target pair distribution target[prev][label].
func (c *TwoLabelL2) AddConstraint(f int, target [][]float64, weight float64) error {
	var flat []float64
	for _, row := range target {
		flat = append(flat, row...)
	}
	if len(target) != c.labels.NumLabels() {
		return fmt.Errorf("%w: target has [%d] rows, expected [%d]", ErrBadTarget, len(target), c.labels.NumLabels())
	}
	return c.add(f, flat, weight)
}

// Copy implements Constraint.
func (c *TwoLabelL2) Copy() Constraint { return &TwoLabelL2{c.copy()} }

// Merge implements Constraint.
func (c *TwoLabelL2) Merge(other Constraint) {
	o, ok := other.(*TwoLabelL2)
	if !ok {
		panic(ErrIncompatible)
	}
	c.merge(o.featureL2)
}
