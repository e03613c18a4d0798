// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"fmt"
	"math"
	"math/rand"
)

// SampleLogDist draws an index from a distribution given as log
// probabilities. Impossible entries are never drawn.
func SampleLogDist(dist []float64, r *rand.Rand) (int, error) {

	n := len(dist)
	if n == 0 {
		return -1, fmt.Errorf("prob distribution has len 0")
	}
	ran := r.Float64()
	cum := 0.0
	last := -1
	for i := 0; i < n; i++ {
		if IsImpossible(dist[i]) {
			continue
		}
		cum += math.Exp(dist[i])
		last = i
		if ran < cum {
			return i, nil
		}
	}
	if last < 0 || math.Abs(cum-1) > 0.001 {
		return -1, fmt.Errorf("distribution sums to [%g], expected 1", cum)
	}
	return last, nil
}
