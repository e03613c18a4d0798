// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lattice

import (
	"fmt"
	"math/rand"

	"github.com/akualab/tagger/model"
)

type candidate struct {
	src, output int
	weight      float64
}

// SamplePath draws a path from the distribution of the lattice by sampling
// the final state and then each predecessor given its successor:
//
//	P(s[ip] = i | s[ip+1] = j) = exp(α[ip][i] + w(ip,i,j) - α[ip+1][j])
//
// The returned alignment has the path weight including initial and final
// weights.
func (l *SumLattice) SamplePath(r *rand.Rand) (Alignment, error) {

	if impossible(l.totalWeight) {
		return Alignment{}, fmt.Errorf("lattice: cannot sample a lattice with no viable path")
	}
	n := l.length - 1
	o := l.opts
	states := make([]int, n+1)
	output := make([]int, n)

	dist := make([]float64, l.numStates)
	for i := range dist {
		dist[i] = l.α[n][i] + l.t.State(i).FinalWeight() - l.totalWeight
	}
	s, err := model.SampleLogDist(dist, r)
	if err != nil {
		return Alignment{}, err
	}
	states[n] = s
	weight := l.t.State(s).FinalWeight()

	var cands []candidate
	for ip := n - 1; ip >= 0; ip-- {
		next := states[ip+1]
		cands, dist = cands[:0], dist[:0]
		for i := 0; i < l.numStates; i++ {
			a := l.α[ip][i]
			if impossible(a) {
				continue
			}
			it := l.t.Transitions(i, l.input, ip)
			for it.Next() {
				if it.Dest() != next || !o.allowed(ip, it) {
					continue
				}
				w := o.weight(ip, i, it)
				if impossible(w) {
					continue
				}
				cands = append(cands, candidate{src: i, output: it.Output(), weight: w})
				dist = append(dist, a+w-l.α[ip+1][next])
			}
		}
		k, err := model.SampleLogDist(dist, r)
		if err != nil {
			return Alignment{}, fmt.Errorf("lattice: position [%d], state [%d]: %w", ip, next, err)
		}
		states[ip] = cands[k].src
		output[ip] = cands[k].output
		weight += cands[k].weight
	}
	weight += l.t.State(states[0]).InitialWeight()
	return Alignment{States: states, Output: output, Weight: weight}, nil
}
