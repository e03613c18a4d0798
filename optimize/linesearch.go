// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import (
	"fmt"
	"math"

	"github.com/akualab/tagger/floatx"
	"github.com/golang/glog"
	"gonum.org/v1/gonum/floats"
)

// Backtracking line search constants.
const (
	alf      = 1e-4
	stpmax   = 100.0
	relTolx  = 1e-7
	absTolx  = 1e-4
	maxTrial = 100
)

// BackTrack is a backtracking line search that accepts a step λ when
//
//	f(x + λ·d) >= f(x) + alf·λ·(∇f·d)
//
// and otherwise shrinks λ using a quadratic and then cubic model of f
// along d.
type BackTrack struct {
	obj ByGradientValue
	g   []float64
	x   []float64
	old []float64
}

// NewBackTrack creates a line search over obj.
func NewBackTrack(obj ByGradientValue) *BackTrack {
	n := obj.NumParameters()
	return &BackTrack{
		obj: obj,
		g:   make([]float64, n),
		x:   make([]float64, n),
		old: make([]float64, n),
	}
}

// Optimize implements LineOptimizer. line is scaled down in place when
// its norm exceeds the maximum step length.
func (bt *BackTrack) Optimize(line []float64, initialStep float64) (float64, error) {

	obj := bt.obj
	obj.ValueGradient(bt.g)
	obj.Parameters(bt.x)
	copy(bt.old, bt.x)

	sum := floats.Norm(line, 2)
	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, fmt.Errorf("%w: line search direction norm is [%g]", ErrInvalidOptimizable, sum)
	}
	if sum > stpmax {
		glog.Warningf("line search: direction norm %g exceeds %g, scaling down", sum, stpmax)
		floats.Scale(stpmax/sum, line)
	}
	slope := floats.Dot(bt.g, line)
	if slope <= 0 {
		return 0, fmt.Errorf("%w: slope = %g is not positive", ErrInvalidOptimizable, slope)
	}
	glog.V(4).Infof("line search: slope %g", slope)

	var test float64
	for i, l := range line {
		if math.IsInf(bt.x[i], 0) {
			continue
		}
		if v := math.Abs(l) / math.Max(math.Abs(bt.x[i]), 1.0); v > test {
			test = v
		}
	}
	alamin := relTolx / test
	alam := initialStep
	var oldAlam, alam2, f2 float64
	fold := obj.Value()

	for trial := 0; trial < maxTrial; trial++ {

		floats.AddScaled(bt.x, alam-oldAlam, line)
		obj.SetParameters(bt.x)
		oldAlam = alam
		f := obj.Value()
		glog.V(4).Infof("line search: trial %d, step %g, value %g, old value %g", trial, alam, f, fold)

		if f >= fold+alf*alam*slope {
			glog.V(3).Infof("line search: accepted step %g, value %g", alam, f)
			return alam, nil
		}
		// Only rejected trials may give up on a small step, and the first
		// rejection always gets an interpolated retry.
		if alam < alamin || (trial > 0 && bt.smallAbsDiff()) {
			glog.Warningf("line search: step %g too small, restoring parameters", alam)
			obj.SetParameters(bt.old)
			return 0, nil
		}

		var tmplam float64
		switch {
		case math.IsInf(f, 0) || math.IsInf(f2, 0) || math.IsNaN(f):
			glog.Warningf("line search: value %g is not finite, scaling down step %g", f, alam)
			tmplam = 0.2 * alam
		case trial == 0:
			tmplam = -slope / (2 * (f - fold - slope))
		default:
			rhs1 := f - fold - alam*slope
			rhs2 := f2 - fold - alam2*slope
			a := (rhs1/(alam*alam) - rhs2/(alam2*alam2)) / (alam - alam2)
			b := (-alam2*rhs1/(alam*alam) + alam*rhs2/(alam2*alam2)) / (alam - alam2)
			if a == 0 {
				tmplam = -slope / (2 * b)
			} else {
				disc := b*b - 3*a*slope
				switch {
				case disc < 0:
					tmplam = 0.5 * alam
				case b <= 0:
					tmplam = (-b + math.Sqrt(disc)) / (3 * a)
				default:
					tmplam = -slope / (b + math.Sqrt(disc))
				}
			}
			if tmplam > 0.5*alam {
				tmplam = 0.5 * alam
			}
		}
		alam2 = alam
		f2 = f
		alam = math.Max(tmplam, 0.1*alam)
	}

	glog.Warningf("line search: no acceptable step after %d trials, restoring parameters", maxTrial)
	obj.SetParameters(bt.old)
	return 0, nil
}

// smallAbsDiff returns true when every parameter moved less than absTolx.
func (bt *BackTrack) smallAbsDiff() bool {
	for i, v := range bt.x {
		if math.Abs(floatx.Delta(v, bt.old[i])) >= absTolx {
			return false
		}
	}
	return true
}
