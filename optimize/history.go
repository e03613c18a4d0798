// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import (
	"fmt"

	"github.com/akualab/tagger/floatx"
	"github.com/golang/glog"
	"gonum.org/v1/gonum/floats"
)

// history is a fixed capacity ring buffer of L-BFGS correction pairs.
type history struct {
	s, y   [][]float64
	ρ      []float64
	α      []float64
	ts, ty []float64
	γ      float64
	start  int
	n      int
}

func newHistory(m, numParams int) *history {
	return &history{
		s:  floatx.MakeFloat2D(m, numParams),
		y:  floatx.MakeFloat2D(m, numParams),
		ρ:  make([]float64, m),
		α:  make([]float64, m),
		ts: make([]float64, numParams),
		ty: make([]float64, numParams),
		γ:  -1,
	}
}

func (h *history) clear() {
	h.start, h.n = 0, 0
	h.γ = -1
}

func (h *history) len() int { return h.n }

// at returns the ring index of the k-th oldest pair.
func (h *history) at(k int) int { return (h.start + k) % len(h.ρ) }

// push stores the pair (x - oldX, g - oldG), overwriting the oldest pair
// when full. Returns an error when s·y > 0 or γ = s·y/y·y > 0, which
// means the objective is not concave along the step. A pair with
// s·y == 0 carries no curvature and is dropped.
func (h *history) push(x, oldX, g, oldG []float64) error {

	for i := range h.ts {
		h.ts[i] = floatx.Delta(x[i], oldX[i])
		h.ty[i] = g[i] - oldG[i]
	}
	sy := floats.Dot(h.ts, h.ty)
	yy := floats.Dot(h.ty, h.ty)
	if sy > 0 {
		return fmt.Errorf("%w: sy = %g > 0", ErrInvalidOptimizable, sy)
	}
	if sy == 0 || yy == 0 {
		glog.V(2).Infof("optimize: dropping correction pair with sy = %g, yy = %g", sy, yy)
		return nil
	}
	γ := sy / yy
	if γ > 0 {
		return fmt.Errorf("%w: gamma = %g > 0", ErrInvalidOptimizable, γ)
	}

	m := len(h.ρ)
	var idx int
	if h.n < m {
		idx = h.at(h.n)
		h.n++
	} else {
		idx = h.start
		h.start = (h.start + 1) % m
	}
	copy(h.s[idx], h.ts)
	copy(h.y[idx], h.ty)
	h.ρ[idx] = 1.0 / sy
	h.γ = γ
	return nil
}

// direction overwrites d, which holds the gradient on entry, with the
// two-loop recursion H·d and negates it into an ascent direction.
func (h *history) direction(d []float64) {

	for k := h.n - 1; k >= 0; k-- {
		idx := h.at(k)
		h.α[k] = h.ρ[idx] * floats.Dot(h.s[idx], d)
		floats.AddScaled(d, -h.α[k], h.y[idx])
	}
	floats.Scale(h.γ, d)
	for k := 0; k < h.n; k++ {
		idx := h.at(k)
		β := h.ρ[idx] * floats.Dot(h.y[idx], d)
		floats.AddScaled(d, h.α[k]-β, h.s[idx])
	}
	floats.Scale(-1, d)
}
