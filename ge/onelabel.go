// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ge

import (
	"fmt"
	"math"
	"sort"

	"github.com/akualab/tagger/lattice"
	"github.com/akualab/tagger/model"
	"github.com/bits-and-blooms/bitset"
)

// term is a constraint on the label distribution of tokens where an input
// feature fires. Terms are shared by copies.
type term struct {
	feature int
	// Target distribution for KL and L2, one entry per label (or label pair).
	target []float64
	// Bounds for range constraints. NaN means unconstrained.
	lower, upper []float64
	weight       float64
	// Number of tokens where the feature fires, set by PreProcess.
	count float64
}

// penalty computes a constraint value and its derivative.
type penalty interface {
	value(t *term, e []float64) float64
	gradient(t *term, e []float64, k int) float64
}

// featureConstraints holds terms keyed by input feature with per-copy
// expectations. It is shared by the one-label and two-label constraints.
type featureConstraints struct {
	labels    *model.StateLabelMap
	numLabels int
	size      int
	terms     map[int]*term
	features  []int
	pen       penalty
	exp       map[int][]float64
	firing    []int
}

func newFeatureConstraints(labels *model.StateLabelMap, size int, pen penalty) *featureConstraints {
	return &featureConstraints{
		labels:    labels,
		numLabels: labels.NumLabels(),
		size:      size,
		terms:     make(map[int]*term),
		pen:       pen,
		exp:       make(map[int][]float64),
	}
}

func (fc *featureConstraints) add(t *term) error {
	if !(t.weight > 0) {
		return fmt.Errorf("%w: feature [%d] has weight [%g]", ErrBadWeight, t.feature, t.weight)
	}
	if _, ok := fc.terms[t.feature]; ok {
		return fmt.Errorf("%w: feature [%d] already constrained", model.ErrDuplicateName, t.feature)
	}
	if t.feature < 0 {
		return fmt.Errorf("%w: feature [%d]", model.ErrIndexOutOfRange, t.feature)
	}
	fc.terms[t.feature] = t
	fc.exp[t.feature] = make([]float64, fc.size)
	fc.features = append(fc.features, t.feature)
	sort.Ints(fc.features)
	return nil
}

func (fc *featureConstraints) copy() *featureConstraints {
	c := *fc
	c.exp = make(map[int][]float64, len(fc.exp))
	for f := range fc.exp {
		c.exp[f] = make([]float64, fc.size)
	}
	c.firing = nil
	return &c
}

func (fc *featureConstraints) merge(other *featureConstraints) {
	for f, e := range other.exp {
		mine := fc.exp[f]
		for k, v := range e {
			mine[k] += v
		}
	}
}

// preProcess counts the tokens where each constrained feature fires,
// starting at position from.
func (fc *featureConstraints) preProcess(data model.InstanceList, from int) *bitset.BitSet {

	for _, t := range fc.terms {
		t.count = 0
	}
	bs := bitset.New(uint(len(data)))
	for n, inst := range data {
		for ip := from; ip < inst.Input.Len(); ip++ {
			for _, f := range fc.preProcessVector(inst.Input.At(ip)) {
				fc.terms[f].count++
				bs.Set(uint(n))
			}
		}
	}
	return bs
}

func (fc *featureConstraints) preProcessVector(fv *model.FeatureVector) []int {
	fc.firing = fc.collect(fv, fc.firing[:0])
	return fc.firing
}

// collect appends the constrained features that fire on fv to buf.
func (fc *featureConstraints) collect(fv *model.FeatureVector, buf []int) []int {
	for loc := 0; loc < fv.NumLocations(); loc++ {
		f := fv.IndexAt(loc)
		if _, ok := fc.terms[f]; ok && fv.ValueAt(loc) != 0 {
			buf = append(buf, f)
		}
	}
	return buf
}

func (fc *featureConstraints) zero() {
	for _, e := range fc.exp {
		for k := range e {
			e[k] = 0
		}
	}
}

func (fc *featureConstraints) value() float64 {
	var v float64
	for _, f := range fc.features {
		t := fc.terms[f]
		if t.count == 0 {
			continue
		}
		v += fc.pen.value(t, fc.exp[f])
	}
	return v
}

// GradientContribution returns the derivative of the value with respect to
// the expectation of key k (a label or label pair) for feature f.
func (fc *featureConstraints) GradientContribution(f, k int) float64 {
	t, ok := fc.terms[f]
	if !ok || t.count == 0 {
		return 0
	}
	return fc.pen.gradient(t, fc.exp[f], k)
}

// Expectation returns the accumulated expectation of key k for feature f.
func (fc *featureConstraints) Expectation(f, k int) float64 {
	e, ok := fc.exp[f]
	if !ok {
		return 0
	}
	return e[k]
}

// Count returns the number of tokens where feature f fires.
func (fc *featureConstraints) Count(f int) float64 {
	if t, ok := fc.terms[f]; ok {
		return t.count
	}
	return 0
}

// NumConstraints returns the number of constrained features.
func (fc *featureConstraints) NumConstraints() int { return len(fc.features) }

// OneLabel constrains the label distribution of tokens where a feature fires.
// Use NewOneLabelKL, NewOneLabelL2 or NewOneLabelRange.
type OneLabel struct {
	*featureConstraints
}

// NewOneLabelKL creates constraints with value
//
//	Σ_f w_f Σ_y t(f,y)·(log(E(f,y)/count(f)) - log t(f,y))
func NewOneLabelKL(labels *model.StateLabelMap) *OneLabel {
	return &OneLabel{newFeatureConstraints(labels, labels.NumLabels(), klPenalty{})}
}

// NewOneLabelL2 creates constraints with value
//
//	-Σ_f w_f Σ_y (t(f,y) - E(f,y)/count(f))²
func NewOneLabelL2(labels *model.StateLabelMap) *OneLabel {
	return &OneLabel{newFeatureConstraints(labels, labels.NumLabels(), l2Penalty{})}
}

// NewOneLabelRange creates constraints that penalize normalized
// expectations outside [lower, upper] with a squared distance to the band.
func NewOneLabelRange(labels *model.StateLabelMap) *OneLabel {
	return &OneLabel{newFeatureConstraints(labels, labels.NumLabels(), rangePenalty{})}
}

// AddConstraint sets the target label distribution for feature f.
// Range constraints use AddRange.
func (c *OneLabel) AddConstraint(f int, target []float64, weight float64) error {
	if _, ok := c.pen.(rangePenalty); ok {
		return fmt.Errorf("%w: range constraints take bounds", ErrBadTarget)
	}
	if err := checkTarget(target, c.numLabels); err != nil {
		return err
	}
	return c.add(&term{feature: f, target: append([]float64(nil), target...), weight: weight})
}

// AddRange bounds the normalized expectation of label for feature f.
// Bounds for the same feature accumulate and share one weight, so a later
// call with a different weight is an error.
func (c *OneLabel) AddRange(f, label int, lower, upper, weight float64) error {
	if _, ok := c.pen.(rangePenalty); !ok {
		return fmt.Errorf("%w: only range constraints take bounds", ErrBadTarget)
	}
	if label < 0 || label >= c.numLabels {
		return fmt.Errorf("%w: label [%d], num labels is [%d]", model.ErrIndexOutOfRange, label, c.numLabels)
	}
	if lower > upper || lower < 0 || upper > 1 {
		return fmt.Errorf("%w: bounds [%g, %g] for feature [%d]", ErrBadTarget, lower, upper, f)
	}
	t, ok := c.terms[f]
	if ok && t.weight != weight {
		return fmt.Errorf("%w: feature [%d] has weight [%g], got [%g]", ErrBadWeight, f, t.weight, weight)
	}
	if !ok {
		t = &term{feature: f, lower: nans(c.numLabels), upper: nans(c.numLabels), weight: weight}
		if err := c.add(t); err != nil {
			return err
		}
	}
	t.lower[label] = lower
	t.upper[label] = upper
	return nil
}

// PreProcess implements Constraint.
func (c *OneLabel) PreProcess(data model.InstanceList) *bitset.BitSet {
	return c.preProcess(data, 0)
}

// PreProcessVector implements Constraint.
func (c *OneLabel) PreProcessVector(fv *model.FeatureVector) []int {
	return c.preProcessVector(fv)
}

// ZeroExpectations implements Constraint.
func (c *OneLabel) ZeroExpectations() { c.zero() }

// ComputeExpectations implements Constraint.
func (c *OneLabel) ComputeExpectations(lattices []*lattice.SumLattice) {

	for _, l := range lattices {
		if !viable(l) {
			continue
		}
		input := l.Input()
		for ip := 0; ip < input.Len(); ip++ {
			firing := c.preProcessVector(input.At(ip))
			if len(firing) == 0 {
				continue
			}
			for s := 0; s < l.NumStates(); s++ {
				y := c.labels.Label(s)
				if y < 0 {
					continue
				}
				p := l.GammaProbability(ip+1, s)
				if p == 0 {
					continue
				}
				for _, f := range firing {
					c.exp[f][y] += p
				}
			}
		}
	}
}

// Value implements Constraint.
func (c *OneLabel) Value() float64 { return c.value() }

// AddComposite implements Constraint.
func (c *OneLabel) AddComposite(input model.Sequence, psi [][][]float64) {

	ns := c.labels.NumStates()
	grad := make([]float64, c.numLabels)
	var firing []int
	for ip := 0; ip < input.Len(); ip++ {
		firing = c.collect(input.At(ip), firing[:0])
		if len(firing) == 0 {
			continue
		}
		for y := range grad {
			grad[y] = 0
			for _, f := range firing {
				grad[y] += c.GradientContribution(f, y)
			}
		}
		for i := range psi[ip] {
			for j := 0; j < ns && j < len(psi[ip][i]); j++ {
				if y := c.labels.Label(j); y >= 0 {
					psi[ip][i][j] += grad[y]
				}
			}
		}
	}
}

// Copy implements Constraint.
func (c *OneLabel) Copy() Constraint { return &OneLabel{c.copy()} }

// Merge implements Constraint.
func (c *OneLabel) Merge(other Constraint) {
	o, ok := other.(*OneLabel)
	if !ok {
		panic(ErrIncompatible)
	}
	c.merge(o.featureConstraints)
}

type klPenalty struct{}

func (klPenalty) value(t *term, e []float64) float64 {
	var v float64
	for k, target := range t.target {
		v += klTerm(target, e[k], t.count)
	}
	return t.weight * v
}

func (klPenalty) gradient(t *term, e []float64, k int) float64 {
	return t.weight * klGradient(t.target[k], e[k])
}

type l2Penalty struct{}

func (l2Penalty) value(t *term, e []float64) float64 {
	var v float64
	for k, target := range t.target {
		d := target - e[k]/t.count
		v -= d * d
	}
	return t.weight * v
}

func (l2Penalty) gradient(t *term, e []float64, k int) float64 {
	return 2 * t.weight * (t.target[k] - e[k]/t.count) / t.count
}

type rangePenalty struct{}

func (rangePenalty) value(t *term, e []float64) float64 {
	var v float64
	for k := range t.lower {
		if math.IsNaN(t.lower[k]) {
			continue
		}
		x := e[k] / t.count
		switch {
		case x < t.lower[k]:
			v -= (t.lower[k] - x) * (t.lower[k] - x)
		case x > t.upper[k]:
			v -= (x - t.upper[k]) * (x - t.upper[k])
		}
	}
	return t.weight * v
}

func (rangePenalty) gradient(t *term, e []float64, k int) float64 {
	if math.IsNaN(t.lower[k]) {
		return 0
	}
	x := e[k] / t.count
	switch {
	case x < t.lower[k]:
		return 2 * t.weight * (t.lower[k] - x) / t.count
	case x > t.upper[k]:
		return -2 * t.weight * (x - t.upper[k]) / t.count
	}
	return 0
}

func checkTarget(target []float64, n int) error {
	if len(target) != n {
		return fmt.Errorf("%w: target has [%d] entries, expected [%d]", ErrBadTarget, len(target), n)
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
	return nil
}

func nans(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
