// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lattice

import (
	"math"
	"testing"

	"github.com/akualab/tagger"
	"github.com/akualab/tagger/model"
	"github.com/akualab/tagger/model/fst"
	"github.com/stretchr/testify/require"
)

// Two fully connected states with zero weights: every path is equally likely.
func makeUniformFST(t *testing.T) *fst.FST {

	f := fst.New("uniform", model.NewAlphabet("a", "b"))
	for _, name := range []string{"a", "b"} {
		_, err := f.AddState(name, 0, 0)
		require.NoError(t, err)
	}
	for _, src := range []string{"a", "b"} {
		for _, dst := range []string{"a", "b"} {
			require.NoError(t, f.AddArc(src, dst, dst, 0))
		}
	}
	require.NoError(t, f.Validate())
	return f
}

func TestFSTLattice(t *testing.T) {

	f := makeUniformFST(t)
	n := 4
	l, err := NewSumLattice(f, ones(n), SaveXis())
	require.NoError(t, err)

	tagger.CompareFloats(t, float64(n+1)*math.Log(2), l.TotalWeight(), "total weight", 1e-10)
	for ip := 0; ip <= n; ip++ {
		for s := 0; s < 2; s++ {
			tagger.CompareFloats(t, 0.5, l.GammaProbability(ip, s), "gamma", 1e-10)
		}
	}
	for ip := 0; ip < n; ip++ {
		tagger.CompareFloats(t, 0.25, l.XiProbability(ip, 0, 1), "xi", 1e-10)
	}

	ml, err := NewMaxLattice(f, ones(n))
	require.NoError(t, err)
	tagger.CompareFloats(t, 0, ml.BestWeight(), "best weight", 1e-12)
	require.Len(t, ml.BestOutputSequence(), n)
}
