// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lattice

import (
	"fmt"
	"math"
	"sort"

	"github.com/akualab/tagger/model"
)

// MaxLattice keeps the K best partial paths reaching every (position, state)
// cell. K is set with the NBest option and defaults to one (Viterbi).
type MaxLattice struct {
	t     model.Transducer
	input model.Sequence
	nbest int
	δ     [][][]entry
	best  []entry
}

// entry is a ranked partial path ending in a cell.
type entry struct {
	weight float64
	// Predecessor state and rank at the previous position. -1 at position 0.
	prev, prevRank int
	// Output of the transition into this cell.
	output int
	// state of the cell, only set for complete paths.
	state int
}

// Alignment is a complete path.
type Alignment struct {
	// States visited at positions 0..N.
	States []int
	// Output labels emitted for inputs 0..N-1.
	Output []int
	// Total log weight including initial and final weights.
	Weight float64
}

// Segments groups the output labels into runs of equal labels.
func (a Alignment) Segments(alphabet *model.Alphabet) model.Segmentation {
	return model.Segments(a.Output, alphabet)
}

// NewMaxLattice runs Viterbi (or N-best with the NBest option).
func NewMaxLattice(t model.Transducer, input model.Sequence, opts ...Option) (*MaxLattice, error) {

	o := newOptions(opts)
	if err := o.validate(input); err != nil {
		return nil, err
	}
	ns := t.NumStates()
	n := input.Len()
	l := &MaxLattice{
		t:     t,
		input: input,
		nbest: o.nbest,
		δ:     make([][][]entry, n+1),
	}
	for ip := range l.δ {
		l.δ[ip] = make([][]entry, ns)
	}
	for i := 0; i < ns; i++ {
		w := t.State(i).InitialWeight()
		if !impossible(w) {
			l.δ[0][i] = []entry{{weight: w, prev: -1, prevRank: -1, output: -1}}
		}
	}
	for ip := 0; ip < n; ip++ {
		for i := 0; i < ns; i++ {
			cell := l.δ[ip][i]
			if len(cell) == 0 {
				continue
			}
			it := t.Transitions(i, input, ip)
			for it.Next() {
				if !o.allowed(ip, it) {
					continue
				}
				w := o.weight(ip, i, it)
				if impossible(w) {
					continue
				}
				j := it.Dest()
				for rank, e := range cell {
					l.δ[ip+1][j] = l.insert(l.δ[ip+1][j], entry{
						weight:   e.weight + w,
						prev:     i,
						prevRank: rank,
						output:   it.Output(),
					})
				}
			}
		}
	}

	for i := 0; i < ns; i++ {
		fw := t.State(i).FinalWeight()
		if impossible(fw) {
			continue
		}
		for rank, e := range l.δ[n][i] {
			l.best = append(l.best, entry{weight: e.weight + fw, prev: i, prevRank: rank, state: i})
		}
	}
	// Stable sort keeps state then rank order among ties.
	sort.SliceStable(l.best, func(a, b int) bool { return l.best[a].weight > l.best[b].weight })
	if len(l.best) > l.nbest {
		l.best = l.best[:l.nbest]
	}
	return l, nil
}

// insert adds e to a cell sorted by descending weight, keeping at most
// nbest entries. Ties keep arrival order.
func (l *MaxLattice) insert(cell []entry, e entry) []entry {

	pos := sort.Search(len(cell), func(k int) bool { return cell[k].weight < e.weight })
	if pos >= l.nbest {
		return cell
	}
	if len(cell) < l.nbest {
		cell = append(cell, entry{})
	}
	copy(cell[pos+1:], cell[pos:len(cell)-1])
	cell[pos] = e
	return cell
}

// NumPaths returns the number of complete paths found, at most K.
func (l *MaxLattice) NumPaths() int { return len(l.best) }

// BestWeight returns the weight of the best path or model.ImpossibleWeight.
func (l *MaxLattice) BestWeight() float64 {
	if len(l.best) == 0 {
		return model.ImpossibleWeight
	}
	return l.best[0].weight
}

// BestStatePath returns the states of the best path at positions 0..N,
// or nil when there is no viable path.
func (l *MaxLattice) BestStatePath() []int {
	if len(l.best) == 0 {
		return nil
	}
	return l.alignment(0).States
}

// BestOutputSequence returns the output labels of the best path,
// or nil when there is no viable path.
func (l *MaxLattice) BestOutputSequence() []int {
	if len(l.best) == 0 {
		return nil
	}
	return l.alignment(0).Output
}

// BestOutputAlignments returns up to n best paths by descending weight.
// It returns an error when n exceeds the lattice K.
func (l *MaxLattice) BestOutputAlignments(n int) ([]Alignment, error) {
	if n > l.nbest {
		return nil, fmt.Errorf("requested [%d] alignments from a lattice that keeps [%d]", n, l.nbest)
	}
	if n > len(l.best) {
		n = len(l.best)
	}
	als := make([]Alignment, n)
	for k := 0; k < n; k++ {
		als[k] = l.alignment(k)
	}
	return als, nil
}

// ConfidenceRatio returns P(best)/P(second best). It is +Inf with a single
// path and zero with none. Requires NBest(2) or more for a finite value.
func (l *MaxLattice) ConfidenceRatio() float64 {
	switch len(l.best) {
	case 0:
		return 0
	case 1:
		return math.Inf(1)
	}
	return math.Exp(l.best[0].weight - l.best[1].weight)
}

func (l *MaxLattice) alignment(k int) Alignment {

	n := l.input.Len()
	b := l.best[k]
	al := Alignment{
		States: make([]int, n+1),
		Output: make([]int, n),
		Weight: b.weight,
	}
	state, rank := b.prev, b.prevRank
	for ip := n; ip >= 0; ip-- {
		al.States[ip] = state
		e := l.δ[ip][state][rank]
		if ip > 0 {
			al.Output[ip-1] = e.output
		}
		state, rank = e.prev, e.prevRank
	}
	return al
}
