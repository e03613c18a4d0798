// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Quadratic is the concave objective
//
//	f(x) = -½ (x-c)ᵀ A (x-c)
//
// with A symmetric positive definite. Each coordinate is an instance of
// the batch interface; batch values add up to f and batch gradients are
// exact when A is diagonal.
type Quadratic struct {
	a    *mat.SymDense
	c    []float64
	x    []float64
	diff *mat.VecDense
	ad   *mat.VecDense
}

// NewQuadratic creates a quadratic with maximum at c. Parameters start at
// zero.
func NewQuadratic(a *mat.SymDense, c []float64) *Quadratic {
	n := len(c)
	if r := a.SymmetricDim(); r != n {
		panic("quadratic: dimension mismatch")
	}
	return &Quadratic{
		a:    a,
		c:    c,
		x:    make([]float64, n),
		diff: mat.NewVecDense(n, nil),
		ad:   mat.NewVecDense(n, nil),
	}
}

// NewDiagonalQuadratic creates a quadratic with A = diag(a).
func NewDiagonalQuadratic(a, c []float64) *Quadratic {
	n := len(a)
	sym := mat.NewSymDense(n, nil)
	for i, v := range a {
		sym.SetSym(i, i, v)
	}
	return NewQuadratic(sym, c)
}

// Max returns the maximizer c.
func (q *Quadratic) Max() []float64 { return q.c }

func (q *Quadratic) eval() {
	for i, v := range q.x {
		q.diff.SetVec(i, v-q.c[i])
	}
	q.ad.MulVec(q.a, q.diff)
}

// NumParameters implements Optimizable.
func (q *Quadratic) NumParameters() int { return len(q.x) }

// Parameters implements Optimizable.
func (q *Quadratic) Parameters(buf []float64) { copy(buf, q.x) }

// Parameter implements Optimizable.
func (q *Quadratic) Parameter(i int) float64 { return q.x[i] }

// SetParameters implements Optimizable.
func (q *Quadratic) SetParameters(buf []float64) { copy(q.x, buf) }

// SetParameter implements Optimizable.
func (q *Quadratic) SetParameter(i int, v float64) { q.x[i] = v }

// Value implements ByValue.
func (q *Quadratic) Value() float64 {
	q.eval()
	return -0.5 * mat.Dot(q.diff, q.ad)
}

// ValueGradient implements ByGradientValue.
func (q *Quadratic) ValueGradient(buf []float64) {
	q.eval()
	for i := range buf {
		buf[i] = -q.ad.AtVec(i)
	}
}

// NumInstances implements ByBatchGradient.
func (q *Quadratic) NumInstances() int { return len(q.x) }

// BatchValue implements ByBatchGradient.
func (q *Quadratic) BatchValue(batch int, assignments []int) float64 {
	q.eval()
	var v float64
	for i, b := range assignments {
		if b == batch {
			v -= 0.5 * q.diff.AtVec(i) * q.ad.AtVec(i)
		}
	}
	return v
}

// BatchValueGradient implements ByBatchGradient.
func (q *Quadratic) BatchValueGradient(buf []float64, batch int, assignments []int) {
	q.eval()
	for i, b := range assignments {
		if b == batch {
			buf[i] -= q.ad.AtVec(i)
		}
	}
}

// Distance returns the Euclidean distance from the parameters to c.
func (q *Quadratic) Distance() float64 {
	return floats.Distance(q.x, q.c, 2)
}
