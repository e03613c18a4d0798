// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"fmt"
	"sort"
)

// FeatureVector is a sparse vector of input features.
// When Values is nil the vector is binary: every listed index has value one.
type FeatureVector struct {
	Indices []int
	Values  []float64
}

// NewFeatureVector creates a sparse vector. Indices are sorted and must be
// unique. Pass nil values for a binary vector.
func NewFeatureVector(indices []int, values []float64) (*FeatureVector, error) {

	if values != nil && len(values) != len(indices) {
		return nil, fmt.Errorf("%w: %d indices and %d values", ErrLengthMismatch, len(indices), len(values))
	}
	fv := &FeatureVector{
		Indices: append([]int(nil), indices...),
	}
	if values != nil {
		fv.Values = append([]float64(nil), values...)
	}
	sort.Sort(byIndex{fv})
	for i := 1; i < len(fv.Indices); i++ {
		if fv.Indices[i] == fv.Indices[i-1] {
			return nil, fmt.Errorf("%w: feature index [%d] appears twice", ErrDuplicateName, fv.Indices[i])
		}
	}
	for _, idx := range fv.Indices {
		if idx < 0 {
			return nil, fmt.Errorf("%w: negative feature index [%d]", ErrIndexOutOfRange, idx)
		}
	}
	return fv, nil
}

// Binary creates a binary feature vector, panics on invalid input.
func Binary(indices ...int) *FeatureVector {
	fv, err := NewFeatureVector(indices, nil)
	if err != nil {
		panic(err)
	}
	return fv
}

// NumLocations returns the number of non-zero entries.
func (fv *FeatureVector) NumLocations() int { return len(fv.Indices) }

// IndexAt returns the feature index at location loc.
func (fv *FeatureVector) IndexAt(loc int) int { return fv.Indices[loc] }

// ValueAt returns the feature value at location loc.
func (fv *FeatureVector) ValueAt(loc int) float64 {
	if fv.Values == nil {
		return 1
	}
	return fv.Values[loc]
}

// Location returns the location of feature index idx or -1.
func (fv *FeatureVector) Location(idx int) int {
	loc := sort.SearchInts(fv.Indices, idx)
	if loc < len(fv.Indices) && fv.Indices[loc] == idx {
		return loc
	}
	return -1
}

// Value returns the value of feature idx, zero when absent.
func (fv *FeatureVector) Value(idx int) float64 {
	loc := fv.Location(idx)
	if loc < 0 {
		return 0
	}
	return fv.ValueAt(loc)
}

// Dot returns the inner product with a dense vector.
// Indices beyond len(dense) are ignored.
func (fv *FeatureVector) Dot(dense []float64) float64 {
	var sum float64
	for loc, idx := range fv.Indices {
		if idx >= len(dense) {
			continue
		}
		sum += fv.ValueAt(loc) * dense[idx]
	}
	return sum
}

// AddTo adds scale*fv to dense.
func (fv *FeatureVector) AddTo(dense []float64, scale float64) {
	for loc, idx := range fv.Indices {
		if idx >= len(dense) {
			continue
		}
		dense[idx] += scale * fv.ValueAt(loc)
	}
}

type byIndex struct{ fv *FeatureVector }

func (b byIndex) Len() int           { return len(b.fv.Indices) }
func (b byIndex) Less(i, j int) bool { return b.fv.Indices[i] < b.fv.Indices[j] }
func (b byIndex) Swap(i, j int) {
	b.fv.Indices[i], b.fv.Indices[j] = b.fv.Indices[j], b.fv.Indices[i]
	if b.fv.Values != nil {
		b.fv.Values[i], b.fv.Values[j] = b.fv.Values[j], b.fv.Values[i]
	}
}

// Sequence is an ordered, randomly indexable input sequence.
type Sequence interface {
	Len() int
	At(ip int) *FeatureVector
}

// FeatureSequence implements Sequence with a slice of feature vectors.
type FeatureSequence []*FeatureVector

// Len returns the sequence length.
func (fs FeatureSequence) Len() int { return len(fs) }

// At returns the feature vector at position ip.
func (fs FeatureSequence) At(ip int) *FeatureVector { return fs[ip] }
