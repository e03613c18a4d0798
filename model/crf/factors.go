// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package crf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Factors holds CRF parameters or, with the same shape, expected feature
// counts. All values live in a single flat slice laid out as
//
//	[initial(S) | final(S) | default(W) | weights(W x F)]
//
// where S is the number of states, W the number of weight sets and F the
// number of input features. The flat index is the optimizer's parameter index.
type Factors struct {
	numStates   int
	numWeights  int
	numFeatures int

	data []float64

	// Initial[s] is the initial weight of state s.
	Initial []float64
	// Final[s] is the final weight of state s.
	Final []float64
	// Default[w] is the bias of weight set w.
	Default []float64
	// Weights[w][f] is the weight of input feature f in weight set w.
	Weights [][]float64
}

// NewFactors allocates zeroed factors.
func NewFactors(numStates, numWeights, numFeatures int) *Factors {

	f := &Factors{
		numStates:   numStates,
		numWeights:  numWeights,
		numFeatures: numFeatures,
		data:        make([]float64, 2*numStates+numWeights+numWeights*numFeatures),
	}
	f.slice()
	return f
}

func (f *Factors) slice() {

	p := 0
	f.Initial = f.data[p : p+f.numStates]
	p += f.numStates
	f.Final = f.data[p : p+f.numStates]
	p += f.numStates
	f.Default = f.data[p : p+f.numWeights]
	p += f.numWeights
	f.Weights = make([][]float64, f.numWeights)
	for w := 0; w < f.numWeights; w++ {
		f.Weights[w] = f.data[p : p+f.numFeatures : p+f.numFeatures]
		p += f.numFeatures
	}
}

// NewLike returns zeroed factors with the same shape.
func (f *Factors) NewLike() *Factors {
	return NewFactors(f.numStates, f.numWeights, f.numFeatures)
}

// NewLikeFrom returns factors shaped like f backed by buf, which must have
// length NumParameters. The values of buf are kept.
func (f *Factors) NewLikeFrom(buf []float64) *Factors {
	if len(buf) != len(f.data) {
		panic(fmt.Sprintf("factors: buffer length %d, want %d", len(buf), len(f.data)))
	}
	nf := &Factors{
		numStates:   f.numStates,
		numWeights:  f.numWeights,
		numFeatures: f.numFeatures,
		data:        buf,
	}
	nf.slice()
	return nf
}

// Copy returns a deep copy.
func (f *Factors) Copy() *Factors {
	c := f.NewLike()
	copy(c.data, f.data)
	return c
}

// resize returns factors with room for more states or weight sets,
// keeping existing values.
func (f *Factors) resize(numStates, numWeights int) *Factors {

	nf := NewFactors(numStates, numWeights, f.numFeatures)
	copy(nf.Initial, f.Initial)
	copy(nf.Final, f.Final)
	copy(nf.Default, f.Default)
	for w, row := range f.Weights {
		copy(nf.Weights[w], row)
	}
	return nf
}

// NumParameters returns the length of the flat parameter vector.
func (f *Factors) NumParameters() int { return len(f.data) }

// NumStates returns the number of states.
func (f *Factors) NumStates() int { return f.numStates }

// NumWeights returns the number of weight sets.
func (f *Factors) NumWeights() int { return f.numWeights }

// NumFeatures returns the number of input features.
func (f *Factors) NumFeatures() int { return f.numFeatures }

// Flat returns the underlying flat slice. Writes are visible to the factors.
func (f *Factors) Flat() []float64 { return f.data }

// Zero sets all values to zero.
func (f *Factors) Zero() {
	for i := range f.data {
		f.data[i] = 0
	}
}

// PlusEquals adds factor*other to f.
func (f *Factors) PlusEquals(other *Factors, factor float64) {
	if !f.sameShape(other) {
		panic(fmt.Sprintf("factors shape mismatch: %s vs %s", f.shape(), other.shape()))
	}
	floats.AddScaled(f.data, factor, other.data)
}

// Dot returns the inner product of the finite entries.
func (f *Factors) Dot(other *Factors) float64 {
	if !f.sameShape(other) {
		panic(fmt.Sprintf("factors shape mismatch: %s vs %s", f.shape(), other.shape()))
	}
	var sum float64
	for i, v := range f.data {
		o := other.data[i]
		if v == 0 || o == 0 || math.IsInf(v, 0) || math.IsInf(o, 0) {
			continue
		}
		sum += v * o
	}
	return sum
}

// GaussianPrior returns -||θ||²/(2·variance) over finite parameters.
func (f *Factors) GaussianPrior(variance float64) float64 {
	var sum float64
	for _, v := range f.data {
		if math.IsInf(v, 0) {
			continue
		}
		sum += v * v
	}
	return -sum / (2 * variance)
}

// PlusEqualsGaussianPriorGradient adds the prior gradient -θ/variance
// evaluated at params. Infinite parameters contribute nothing.
func (f *Factors) PlusEqualsGaussianPriorGradient(params *Factors, variance float64) {
	for i, v := range params.data {
		if math.IsInf(v, 0) {
			continue
		}
		f.data[i] -= v / variance
	}
}

func (f *Factors) sameShape(o *Factors) bool {
	return f.numStates == o.numStates && f.numWeights == o.numWeights && f.numFeatures == o.numFeatures
}

func (f *Factors) shape() string {
	return fmt.Sprintf("[S=%d W=%d F=%d]", f.numStates, f.numWeights, f.numFeatures)
}
