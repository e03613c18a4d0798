// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pr

import (
	"testing"

	"github.com/akualab/tagger"
	"github.com/akualab/tagger/model"
	"github.com/stretchr/testify/require"
)

func makeData(t *testing.T) model.InstanceList {
	fs1 := model.FeatureSequence{model.Binary(0), model.Binary(0, 1), model.Binary(1)}
	fs2 := model.FeatureSequence{model.Binary(2), model.Binary(2)}
	a, err := model.NewInstance("a", fs1, nil)
	require.NoError(t, err)
	b, err := model.NewInstance("b", fs2, nil)
	require.NoError(t, err)
	return model.InstanceList{a, b}
}

func TestOneLabel(t *testing.T) {

	labels := model.IdentityMap(2)
	c := NewOneLabelL2(labels)
	require.ErrorIs(t, c.AddConstraint(0, []float64{0.5, 0.5}, 0), ErrBadWeight)
	require.ErrorIs(t, c.AddConstraint(0, []float64{0.5, 0.6}, 1), ErrBadTarget)
	require.NoError(t, c.AddConstraint(0, []float64{0.8, 0.2}, 2))
	require.ErrorIs(t, c.AddConstraint(0, []float64{0.8, 0.2}, 2), model.ErrDuplicateName)
	require.Equal(t, 2, c.NumDimensions())

	data := makeData(t)
	bs := c.PreProcess(data)
	require.True(t, bs.Test(0))
	require.False(t, bs.Test(1))
	tagger.CompareFloats(t, 2, c.Count(0), "count", 1e-12)

	params := []float64{1.5, -0.5}
	input := data[0].Input
	tagger.CompareFloats(t, 0.75, c.Score(input, 0, 1, 0, params), "score label 0", 1e-12)
	tagger.CompareFloats(t, -0.25, c.Score(input, 1, 0, 1, params), "score label 1", 1e-12)
	tagger.CompareFloats(t, 0, c.Score(input, 2, 0, 1, params), "feature absent", 1e-12)

	c.ZeroExpectations()
	c.Increment(input, 0, 0, 0, 0.6)
	c.Increment(input, 1, 0, 0, 0.4)
	c.Increment(input, 2, 0, 0, 1.0)
	tagger.CompareFloats(t, 1.0, c.Expectation(0, 0), "expectation", 1e-12)
	// E/c = [0.5, 0], penalty -2((0.8-0.5)² + 0.2²)
	tagger.CompareFloats(t, -2*(0.09+0.04), c.CompleteValue(), "complete value", 1e-12)

	grad := make([]float64, 2)
	c.AddGradient(params, grad)
	tagger.CompareFloats(t, 0.8-0.5-1.5/4, grad[0], "gradient", 1e-12)
	tagger.CompareFloats(t, 0.2-0+0.5/4, grad[1], "gradient", 1e-12)
}

func TestTwoLabel(t *testing.T) {

	labels, err := model.NewStateLabelMap([]int{0, 1, 2}, 3)
	require.NoError(t, err)
	labels.SetStartLabel(0)
	c := NewTwoLabelL2(labels)
	target := [][]float64{{0, 0, 0}, {0, 0.5, 0.5}, {0, 0, 0}}
	require.NoError(t, c.AddConstraint(1, target, 1))
	require.Equal(t, 9, c.NumDimensions())

	data := makeData(t)
	c.PreProcess(data)
	// Feature 1 fires at positions 1 and 2 of the first instance.
	tagger.CompareFloats(t, 2, c.Count(1), "count", 1e-12)

	params := make([]float64, 9)
	params[c.Dimension(1, 1*3+2)] = 1
	input := data[0].Input
	tagger.CompareFloats(t, 0.5, c.Score(input, 1, 1, 2, params), "pair score", 1e-12)
	tagger.CompareFloats(t, 0, c.Score(input, 1, 0, 2, params), "start skipped", 1e-12)
	tagger.CompareFloats(t, 0, c.Score(input, 0, 1, 2, params), "position 0 skipped", 1e-12)
}

func TestAuxModel(t *testing.T) {

	labels := model.IdentityMap(2)
	one := NewOneLabelL2(labels)
	require.NoError(t, one.AddConstraint(0, []float64{0.8, 0.2}, 2))
	two := NewTwoLabelL2(labels)
	require.NoError(t, two.AddConstraint(1, [][]float64{{0.25, 0.25}, {0.25, 0.25}}, 1))

	m := NewAuxModel(2, one, two)
	require.Equal(t, 6, m.NumParameters())
	data := makeData(t)
	bs := m.PreProcess(data)
	require.Equal(t, uint(1), bs.Count())

	p := []float64{0.3, -0.2, 0.1, 0.4, -0.6, 0.2}
	v := m.Version()
	m.SetParameters(p)
	require.NotEqual(t, v, m.Version())

	input := data[0].Input
	w := m.Weights(input)
	for ip := 0; ip < input.Len(); ip++ {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				expected := one.Score(input, ip, i, j, p[:2]) + two.Score(input, ip, i, j, p[2:])
				tagger.CompareFloats(t, expected, w[ip][i][j], "weight", 1e-12)
			}
		}
	}

	// With zero expectations the gradient is the derivative of AuxiliaryValue.
	m.ZeroExpectations()
	grad := make([]float64, 6)
	m.AddGradient(grad)
	const h = 1e-6
	for i := range p {
		m.SetParameter(i, p[i]+h)
		vp := m.AuxiliaryValue()
		m.SetParameter(i, p[i]-h)
		vm := m.AuxiliaryValue()
		m.SetParameter(i, p[i])
		tagger.CompareFloats(t, (vp-vm)/(2*h), grad[i], "dual gradient", 1e-6)
	}

	// Copies share parameters and merge expectations.
	a, b := m.Copy(), m.Copy()
	a.IncrementTransition(input, 0, 0, 0, 1, 0.5)
	b.IncrementTransition(input, 0, 0, 0, 1, 0.25)
	a.Merge(b)
	require.Equal(t, m.NumParameters(), a.NumParameters())
	tagger.CompareFloats(t, 0.75, a.Constraint(0).(*OneLabelL2).Expectation(0, 1), "merged", 1e-12)
	tagger.CompareFloats(t, 0, one.Expectation(0, 1), "original untouched", 1e-12)
	m.SetParameter(0, 9)
	tagger.CompareFloats(t, 9, a.Parameter(0), "shared parameters", 1e-12)
}
