// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/akualab/tagger"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	qa = []float64{10, 20, 30}
	qc = []float64{1, -2, 3}
)

func newTestQuadratic() *Quadratic {
	return NewDiagonalQuadratic(qa, append([]float64(nil), qc...))
}

func checkMaximized(t *testing.T, name string, st Status, err error, q *Quadratic, tol float64) {
	require.NoError(t, err, name)
	if st != Converged && st != Failed {
		t.Fatalf("%s: unexpected status %s", name, st)
	}
	x := make([]float64, q.NumParameters())
	q.Parameters(x)
	t.Logf("%s: status %s, x = %v", name, st, x)
	if d := q.Distance(); d > tol {
		t.Fatalf("%s: distance to maximum is %g", name, d)
	}
}

func TestLBFGSQuadratic(t *testing.T) {
	q := newTestQuadratic()
	o := NewLBFGS(q)
	st, err := o.Optimize(0)
	checkMaximized(t, "lbfgs", st, err, q, 1e-4)
	require.Greater(t, o.Iterations(), 0)
}

func TestLBFGSDense(t *testing.T) {
	a := mat.NewSymDense(3, []float64{
		4, 1, 0,
		1, 3, 1,
		0, 1, 2,
	})
	q := NewQuadratic(a, []float64{0.5, -1, 2})
	st, err := NewLBFGS(q, Tolerance(1e-8), GradientTolerance(1e-6)).Optimize(0)
	checkMaximized(t, "lbfgs dense", st, err, q, 1e-4)
}

func TestLBFGSDeterministic(t *testing.T) {
	run := func() ([]float64, int) {
		q := newTestQuadratic()
		o := NewLBFGS(q, Memory(2))
		_, err := o.Optimize(0)
		require.NoError(t, err)
		x := make([]float64, q.NumParameters())
		q.Parameters(x)
		return x, o.Iterations()
	}
	x1, n1 := run()
	x2, n2 := run()
	require.Equal(t, x1, x2)
	require.Equal(t, n1, n2)
}

func TestLBFGSIterationLimit(t *testing.T) {
	q := newTestQuadratic()
	o := NewLBFGS(q, Tolerance(0), GradientTolerance(0))
	st, err := o.Optimize(1)
	require.NoError(t, err)
	require.Equal(t, IterationLimitReached, st)
	require.Equal(t, 1, o.Iterations())

	// Continues from the current state.
	st, err = o.Optimize(0)
	require.NoError(t, err)
	require.True(t, st.Done())
	require.Less(t, q.Distance(), 1e-4)
}

// convex is the negated quadratic, which violates the concavity checks.
type convex struct{ *Quadratic }

func (c convex) Value() float64 { return -c.Quadratic.Value() }

func (c convex) ValueGradient(buf []float64) {
	c.Quadratic.ValueGradient(buf)
	floats.Scale(-1, buf)
}

func TestLBFGSInvalid(t *testing.T) {
	q := convex{NewDiagonalQuadratic([]float64{1, 2}, []float64{0, 0})}
	q.SetParameters([]float64{1, 1})
	_, err := NewLBFGS(q).Optimize(0)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidOptimizable), err.Error())
}

func TestConjugateGradientQuadratic(t *testing.T) {
	q := newTestQuadratic()
	o := NewConjugateGradient(q, Tolerance(1e-10))
	st, err := o.Optimize(0)
	checkMaximized(t, "cg", st, err, q, 1e-4)

	a := mat.NewSymDense(2, []float64{3, 1, 1, 2})
	q2 := NewQuadratic(a, []float64{-1, 1})
	st, err = NewConjugateGradient(q2, Tolerance(1e-10), GradientTolerance(1e-6)).Optimize(0)
	checkMaximized(t, "cg dense", st, err, q2, 1e-4)
}

func TestConjugateGradientDense3(t *testing.T) {
	a := mat.NewSymDense(3, []float64{
		4, 1, 0,
		1, 3, 1,
		0, 1, 2,
	})
	q := NewQuadratic(a, []float64{0.5, -1, 2})
	st, err := NewConjugateGradient(q, Tolerance(1e-10), GradientTolerance(1e-6)).Optimize(0)
	checkMaximized(t, "cg dense3", st, err, q, 1e-4)
}

// A step that increases the value is taken even when every parameter
// moves less than the absolute step tolerance.
func TestLineSearchAcceptsSmallSteps(t *testing.T) {
	q := newTestQuadratic()
	x := []float64{qc[0] + 1e-6, qc[1] - 2e-6, qc[2] + 1e-6}
	q.SetParameters(x)
	line := make([]float64, 3)
	q.ValueGradient(line)
	before := q.Value()
	step, err := NewBackTrack(q).Optimize(line, 0.02)
	require.NoError(t, err)
	require.Greater(t, step, 0.0)
	require.Greater(t, q.Value(), before)
}

func TestGradientAscentQuadratic(t *testing.T) {
	q := newTestQuadratic()
	st, err := NewGradientAscent(q, Tolerance(1e-10)).Optimize(0)
	checkMaximized(t, "gradient ascent", st, err, q, 1e-2)
}

func TestLineSearchNeverDecreases(t *testing.T) {

	r := rand.New(rand.NewSource(7))
	q := newTestQuadratic()
	bt := NewBackTrack(q)
	g := make([]float64, 3)
	line := make([]float64, 3)
	for trial := 0; trial < 50; trial++ {
		x := []float64{r.NormFloat64() * 3, r.NormFloat64() * 3, r.NormFloat64() * 3}
		q.SetParameters(x)
		q.ValueGradient(g)
		for i := range line {
			line[i] = g[i] + r.NormFloat64()
		}
		if floats.Dot(line, g) <= 0 {
			copy(line, g)
		}
		before := q.Value()
		step, err := bt.Optimize(line, 1.0)
		require.NoError(t, err)
		after := q.Value()
		require.GreaterOrEqual(t, after, before, "trial %d, step %g", trial, step)
		if step == 0 {
			got := make([]float64, 3)
			q.Parameters(got)
			require.Equal(t, x, got, "parameters must be restored")
		}
	}
}

func TestLineSearchNotAscent(t *testing.T) {
	q := newTestQuadratic()
	g := make([]float64, 3)
	q.ValueGradient(g)
	floats.Scale(-1, g)
	_, err := NewBackTrack(q).Optimize(g, 1)
	require.ErrorIs(t, err, ErrInvalidOptimizable)
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "converged", Converged.String())
	require.Equal(t, "iteration limit reached", IterationLimitReached.String())
	require.Equal(t, "unknown", Status(42).String())
	require.False(t, Iterating.Done())
	require.True(t, Failed.Done())
}

func TestConverged(t *testing.T) {
	require.True(t, converged(1, 1, 1e-4))
	require.True(t, converged(0, 0, 1e-4))
	require.False(t, converged(1, 2, 1e-4))
	require.True(t, converged(1000, 1000.01, 1e-4))
}

// withInfinite appends a parameter fixed at -Inf that the objective ignores.
type withInfinite struct {
	*Quadratic
	inf float64
}

func (w *withInfinite) NumParameters() int { return w.Quadratic.NumParameters() + 1 }

func (w *withInfinite) Parameters(buf []float64) {
	n := w.Quadratic.NumParameters()
	w.Quadratic.Parameters(buf[:n])
	buf[n] = w.inf
}

func (w *withInfinite) Parameter(i int) float64 {
	if i == w.Quadratic.NumParameters() {
		return w.inf
	}
	return w.Quadratic.Parameter(i)
}

func (w *withInfinite) SetParameters(buf []float64) {
	n := w.Quadratic.NumParameters()
	w.Quadratic.SetParameters(buf[:n])
	w.inf = buf[n]
}

func (w *withInfinite) SetParameter(i int, v float64) {
	if i == w.Quadratic.NumParameters() {
		w.inf = v
		return
	}
	w.Quadratic.SetParameter(i, v)
}

func (w *withInfinite) ValueGradient(buf []float64) {
	n := w.Quadratic.NumParameters()
	w.Quadratic.ValueGradient(buf[:n])
	buf[n] = 0
}

func TestOWLQN(t *testing.T) {

	// max -½a(x-c)² - λ|x| is at sign(c)·max(|c| - λ/a, 0).
	const l1 = 15.0
	expected := []float64{0, -1.25, 2.5}

	q := newTestQuadratic()
	o, err := NewOWLQN(q, L1Weight(l1), Tolerance(1e-10), GradientTolerance(1e-8))
	require.NoError(t, err)
	st, err := o.Optimize(0)
	require.NoError(t, err)
	require.True(t, st == Converged || st == Failed, st.String())
	x := make([]float64, 3)
	q.Parameters(x)
	t.Logf("owlqn: status %s after %d iterations, x = %v", st, o.Iterations(), x)
	tagger.CompareSliceFloat(t, expected, x, "owlqn", 1e-3)
	require.Equal(t, 0.0, x[0], "coordinate must be exactly zero")

	w := &withInfinite{Quadratic: newTestQuadratic(), inf: math.Inf(-1)}
	o, err = NewOWLQN(w, L1Weight(l1), Tolerance(1e-10), GradientTolerance(1e-8))
	require.NoError(t, err)
	_, err = o.Optimize(0)
	require.NoError(t, err)
	require.True(t, math.IsInf(w.inf, -1), "infinite parameter must not move")
	require.False(t, math.IsNaN(o.Value()))
	w.Quadratic.Parameters(x)
	tagger.CompareSliceFloat(t, expected, x, "owlqn with infinite parameter", 1e-3)
}

func TestOWLQNBadWeight(t *testing.T) {
	_, err := NewOWLQN(newTestQuadratic())
	require.Error(t, err)
}

func TestStochasticMetaAscent(t *testing.T) {

	for _, nb := range []int{1, 3} {
		q := newTestQuadratic()
		o := NewStochasticMetaAscent(q, NumBatches(nb), Tolerance(1e-12), MaxIterations(5000))
		require.Len(t, o.Assignments(), 3)
		for _, b := range o.Assignments() {
			require.True(t, b >= 0 && b < nb)
		}
		st, err := o.Optimize(0)
		require.NoError(t, err)
		t.Logf("sma: %d batches, status %s after %d iterations, distance %g", nb, st, o.Iterations(), q.Distance())
		require.Less(t, q.Distance(), 1e-2)
	}
}

func TestStochasticMetaAscentSeed(t *testing.T) {
	q := NewDiagonalQuadratic(make([]float64, 20), make([]float64, 20))
	a1 := NewStochasticMetaAscent(q, NumBatches(4), Seed(3)).Assignments()
	a2 := NewStochasticMetaAscent(q, NumBatches(4), Seed(3)).Assignments()
	require.Equal(t, a1, a2)
}
