// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ge

import (
	"math"
	"math/rand"
	"testing"

	"github.com/akualab/tagger"
	"github.com/akualab/tagger/lattice"
	"github.com/akualab/tagger/model"
	"github.com/akualab/tagger/model/crf"
	"github.com/stretchr/testify/require"
)

const numFeatures = 4

func makeData(r *rand.Rand, n int) model.InstanceList {

	var data model.InstanceList
	for k := 0; k < n; k++ {
		fs := make(model.FeatureSequence, 3+r.Intn(4))
		for ip := range fs {
			var idx []int
			for f := 0; f < numFeatures; f++ {
				if r.Float64() < 0.4 {
					idx = append(idx, f)
				}
			}
			fs[ip] = model.Binary(idx...)
		}
		inst, err := model.NewInstance("", fs, nil)
		if err != nil {
			panic(err)
		}
		data = append(data, inst)
	}
	return data
}

func makeCRF(r *rand.Rand) *crf.CRF {

	c := crf.NewCRF(numFeatures, model.NewAlphabet("A", "B", "C"))
	if err := c.AddFullyConnectedStatesForLabels(); err != nil {
		panic(err)
	}
	params := make([]float64, c.NumParameters())
	for i := range params {
		params[i] = r.NormFloat64()
	}
	c.SetParameters(params)
	return c
}

func makeLattices(t *testing.T, c *crf.CRF, data model.InstanceList) []*lattice.SumLattice {
	var ls []*lattice.SumLattice
	for _, inst := range data {
		l, err := lattice.NewSumLattice(c, inst.Input, lattice.SaveXis())
		require.NoError(t, err)
		ls = append(ls, l)
	}
	return ls
}

func TestKLInfinitePenalty(t *testing.T) {

	labels := model.IdentityMap(2)
	c := NewOneLabelKL(labels)
	require.NoError(t, c.AddConstraint(0, []float64{0.75, 0.25}, 1))

	fs := model.FeatureSequence{model.Binary(0), model.Binary(1)}
	inst, err := model.NewInstance("x", fs, nil)
	require.NoError(t, err)
	bs := c.PreProcess(model.InstanceList{inst})
	require.True(t, bs.Test(0))
	tagger.CompareFloats(t, 1, c.Count(0), "count", 1e-12)

	c.ZeroExpectations()
	c.exp[0][0] = 0.5
	if v := c.Value(); !math.IsInf(v, -1) {
		t.Fatalf("expected -Inf, got %f", v)
	}
	c.exp[0][1] = 0.5
	expected := 0.75*(math.Log(0.5)-math.Log(0.75)) + 0.25*(math.Log(0.5)-math.Log(0.25))
	tagger.CompareFloats(t, expected, c.Value(), "kl value", 1e-12)
}

func TestBadTargets(t *testing.T) {

	labels := model.IdentityMap(2)
	kl := NewOneLabelKL(labels)
	require.ErrorIs(t, kl.AddConstraint(0, []float64{0.5}, 1), ErrBadTarget)
	require.ErrorIs(t, kl.AddConstraint(0, []float64{0.5, 0.6}, 1), ErrBadTarget)
	require.NoError(t, kl.AddConstraint(0, []float64{0.5, 0.5}, 1))
	require.ErrorIs(t, kl.AddConstraint(0, []float64{0.5, 0.5}, 1), model.ErrDuplicateName)
	require.ErrorIs(t, kl.AddRange(1, 0, 0.1, 0.2, 1), ErrBadTarget)

	rg := NewOneLabelRange(labels)
	require.ErrorIs(t, rg.AddRange(0, 0, 0.5, 0.2, 1), ErrBadTarget)
	require.ErrorIs(t, rg.AddRange(0, 3, 0.1, 0.2, 1), model.ErrIndexOutOfRange)
	require.ErrorIs(t, rg.AddConstraint(0, []float64{0.5, 0.5}, 1), ErrBadTarget)

	_, err := NewSelfTransition(labels, 1.5, 1)
	require.ErrorIs(t, err, ErrBadTarget)
}

func TestBadWeights(t *testing.T) {

	labels := model.IdentityMap(2)
	kl := NewOneLabelKL(labels)
	require.ErrorIs(t, kl.AddConstraint(0, []float64{1, 0}, 0), ErrBadWeight)
	require.ErrorIs(t, kl.AddConstraint(0, []float64{1, 0}, -2), ErrBadWeight)
	require.ErrorIs(t, kl.AddConstraint(0, []float64{1, 0}, math.NaN()), ErrBadWeight)
	require.Equal(t, 0, kl.NumConstraints())

	two := NewTwoLabelL2(labels)
	require.ErrorIs(t, two.AddConstraint(0, [][]float64{{0.5, 0}, {0, 0.5}}, 0), ErrBadWeight)

	rg := NewOneLabelRange(labels)
	require.ErrorIs(t, rg.AddRange(0, 0, 0.1, 0.2, 0), ErrBadWeight)
	require.NoError(t, rg.AddRange(0, 0, 0.1, 0.2, 2))
	require.ErrorIs(t, rg.AddRange(0, 1, 0.3, 0.4, 1), ErrBadWeight)
	require.NoError(t, rg.AddRange(0, 1, 0.3, 0.4, 2))

	_, err := NewSelfTransition(labels, 0.5, 0)
	require.ErrorIs(t, err, ErrBadWeight)
}

func TestOneLabelExpectations(t *testing.T) {

	r := rand.New(rand.NewSource(3))
	data := makeData(r, 6)
	c := makeCRF(r)
	ls := makeLattices(t, c, data)

	kl := NewOneLabelKL(c.StateLabelMap())
	require.NoError(t, kl.AddConstraint(1, []float64{0.2, 0.3, 0.5}, 2))
	require.NoError(t, kl.AddConstraint(3, []float64{0.6, 0.4, 0}, 1))
	kl.PreProcess(data)
	kl.ZeroExpectations()
	kl.ComputeExpectations(ls)

	// Each firing token distributes one unit of mass over labels.
	for _, f := range []int{1, 3} {
		var sum float64
		for y := 0; y < 3; y++ {
			sum += kl.Expectation(f, y)
		}
		tagger.CompareFloats(t, kl.Count(f), sum, "mass", 1e-9)
	}

	// Copies accumulate independently and merge to the same result.
	a := kl.Copy()
	b := kl.Copy()
	a.ComputeExpectations(ls[:3])
	b.ComputeExpectations(ls[3:])
	a.Merge(b)
	tagger.CompareFloats(t, kl.Value(), a.Value(), "merged value", 1e-12)
	for y := 0; y < 3; y++ {
		tagger.CompareFloats(t, kl.Expectation(1, y), a.(*OneLabel).Expectation(1, y), "merged", 1e-12)
	}
}

// checkGradient compares GradientContribution with a finite difference
// of Value over the expectation of key k for feature f.
func checkGradient(t *testing.T, c *OneLabel, f, k int) {
	e := c.exp[f][k]
	const h = 1e-6
	c.exp[f][k] = e + h
	vp := c.Value()
	c.exp[f][k] = e - h
	vm := c.Value()
	c.exp[f][k] = e
	tagger.CompareFloats(t, (vp-vm)/(2*h), c.GradientContribution(f, k), "gradient contribution", 1e-5)
}

func TestGradientContributions(t *testing.T) {

	r := rand.New(rand.NewSource(9))
	data := makeData(r, 5)
	c := makeCRF(r)
	ls := makeLattices(t, c, data)
	labels := c.StateLabelMap()

	kl := NewOneLabelKL(labels)
	require.NoError(t, kl.AddConstraint(0, []float64{0.2, 0.3, 0.5}, 2))
	l2 := NewOneLabelL2(labels)
	require.NoError(t, l2.AddConstraint(0, []float64{0.2, 0.3, 0.5}, 2))
	rg := NewOneLabelRange(labels)
	require.NoError(t, rg.AddRange(0, 0, 0.9, 1.0, 1))
	require.NoError(t, rg.AddRange(0, 1, 0.0, 0.01, 1))
	require.NoError(t, rg.AddRange(0, 2, 0.0, 1.0, 1))

	for _, con := range []*OneLabel{kl, l2, rg} {
		con.PreProcess(data)
		con.ZeroExpectations()
		con.ComputeExpectations(ls)
		for y := 0; y < 3; y++ {
			checkGradient(t, con, 0, y)
		}
	}
	// Inside the band there is no penalty.
	tagger.CompareFloats(t, 0, rg.GradientContribution(0, 2), "inside band", 1e-12)
}

func TestTwoLabel(t *testing.T) {

	r := rand.New(rand.NewSource(13))
	data := makeData(r, 6)
	c := makeCRF(r)
	ls := makeLattices(t, c, data)

	tl := NewTwoLabelL2(c.StateLabelMap())
	target := [][]float64{{0.1, 0.1, 0.1}, {0.1, 0.2, 0.1}, {0.1, 0.1, 0.1}}
	require.NoError(t, tl.AddConstraint(2, target, 1))
	tl.PreProcess(data)
	tl.ZeroExpectations()
	tl.ComputeExpectations(ls)

	var sum float64
	for k := 0; k < 9; k++ {
		sum += tl.Expectation(2, k)
	}
	tagger.CompareFloats(t, tl.Count(2), sum, "pair mass", 1e-9)

	e := tl.exp[2][tl.Key(1, 1)]
	const h = 1e-6
	tl.exp[2][tl.Key(1, 1)] = e + h
	vp := tl.Value()
	tl.exp[2][tl.Key(1, 1)] = e - h
	vm := tl.Value()
	tl.exp[2][tl.Key(1, 1)] = e
	tagger.CompareFloats(t, (vp-vm)/(2*h), tl.GradientContribution(2, tl.Key(1, 1)), "pair gradient", 1e-5)
}

func TestSelfTransition(t *testing.T) {

	r := rand.New(rand.NewSource(21))
	data := makeData(r, 4)
	c := makeCRF(r)
	ls := makeLattices(t, c, data)

	st, err := NewSelfTransition(c.StateLabelMap(), 0.7, 3)
	require.NoError(t, err)
	st.PreProcess(data)
	st.ZeroExpectations()
	st.ComputeExpectations(ls)
	require.Greater(t, st.Expectation(), 0.0)
	require.Less(t, st.Expectation(), float64(data.NumTokens()-len(data)))

	e := st.expectation
	const h = 1e-6
	st.expectation = e + h
	vp := st.Value()
	st.expectation = e - h
	vm := st.Value()
	st.expectation = e
	tagger.CompareFloats(t, (vp-vm)/(2*h), st.GradientContribution(), "self gradient", 1e-5)

	cp := st.Copy()
	cp.ComputeExpectations(ls)
	st.Merge(cp)
	tagger.CompareFloats(t, 2*e, st.Expectation(), "merged", 1e-12)
}

func TestComposite(t *testing.T) {

	r := rand.New(rand.NewSource(29))
	data := makeData(r, 3)
	c := makeCRF(r)
	ls := makeLattices(t, c, data)
	labels := c.StateLabelMap()

	kl := NewOneLabelKL(labels)
	require.NoError(t, kl.AddConstraint(0, []float64{0.2, 0.3, 0.5}, 1))
	set := Set{kl}
	set.PreProcess(data)
	set.ZeroExpectations()
	set.ComputeExpectations(ls)

	// The composite score sums gradient contributions over firing features.
	input := data[0].Input
	psi := make([][][]float64, input.Len())
	for ip := range psi {
		psi[ip] = make([][]float64, 3)
		for i := range psi[ip] {
			psi[ip][i] = make([]float64, 3)
		}
	}
	set.AddComposite(input, psi)
	for ip := 0; ip < input.Len(); ip++ {
		fires := input.At(ip).Value(0) != 0
		for j := 0; j < 3; j++ {
			expected := 0.0
			if fires {
				expected = kl.GradientContribution(0, j)
			}
			tagger.CompareFloats(t, expected, psi[ip][1][j], "psi", 1e-12)
		}
	}
}
