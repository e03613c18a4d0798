// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fst implements a weighted finite state transducer whose arc
// weights do not depend on the input. It is useful as a fixed topology
// for constrained decoding and for testing lattice algorithms.
package fst

import (
	"fmt"
	"math"
	"sort"

	"github.com/akualab/tagger/model"
	"github.com/golang/glog"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// FST is a weighted finite state transducer.
type FST struct {
	name    string
	states  []*State
	index   map[string]int
	outputs *model.Alphabet
	graph   *simple.WeightedDirectedGraph
}

// State is an FST state.
type State struct {
	index   int
	name    string
	initial float64
	final   float64
	arcs    []Arc
}

// Arc is a weighted transition that emits an output label.
type Arc struct {
	Dest   int
	Output int
	Weight float64
}

// New creates an empty FST. Output label names are added to outputs.
func New(name string, outputs *model.Alphabet) *FST {
	if outputs == nil {
		outputs = model.NewAlphabet()
	}
	return &FST{
		name:    name,
		index:   make(map[string]int),
		outputs: outputs,
		graph:   simple.NewWeightedDirectedGraph(0, math.Inf(1)),
	}
}

// AddState adds a state with initial and final log weights.
func (f *FST) AddState(name string, initial, final float64) (*State, error) {

	if _, ok := f.index[name]; ok {
		return nil, fmt.Errorf("%w: state [%s] already exists", model.ErrDuplicateName, name)
	}
	s := &State{index: len(f.states), name: name, initial: initial, final: final}
	f.states = append(f.states, s)
	f.index[name] = s.index
	f.graph.AddNode(simple.Node(s.index))
	return s, nil
}

// AddArc adds an arc between named states. Arcs leaving a state are kept
// sorted by destination then output so iteration is deterministic.
func (f *FST) AddArc(from, to, output string, weight float64) error {

	src, ok := f.index[from]
	if !ok {
		return fmt.Errorf("%w: state [%s]", model.ErrUnknownName, from)
	}
	dst, ok := f.index[to]
	if !ok {
		return fmt.Errorf("%w: state [%s]", model.ErrUnknownName, to)
	}
	s := f.states[src]
	arc := Arc{Dest: dst, Output: f.outputs.Add(output), Weight: weight}
	for _, a := range s.arcs {
		if a.Dest == arc.Dest && a.Output == arc.Output {
			return fmt.Errorf("%w: arc [%s]->[%s] with output [%s] already exists",
				model.ErrDuplicateName, from, to, output)
		}
	}
	s.arcs = append(s.arcs, arc)
	sort.Slice(s.arcs, func(i, j int) bool {
		if s.arcs[i].Dest != s.arcs[j].Dest {
			return s.arcs[i].Dest < s.arcs[j].Dest
		}
		return s.arcs[i].Output < s.arcs[j].Output
	})

	// Self loops do not change reachability and simple graphs reject them.
	if src != dst && !model.IsImpossible(weight) {
		f.graph.SetWeightedEdge(f.graph.NewWeightedEdge(simple.Node(src), simple.Node(dst), weight))
	}
	return nil
}

// Validate checks that some initial state can reach some final state.
func (f *FST) Validate() error {

	var starts, ends []int
	for _, s := range f.states {
		if !model.IsImpossible(s.initial) {
			starts = append(starts, s.index)
		}
		if !model.IsImpossible(s.final) {
			ends = append(ends, s.index)
		}
	}
	if len(starts) == 0 {
		return fmt.Errorf("fst [%s] has no initial state", f.name)
	}
	if len(ends) == 0 {
		return fmt.Errorf("fst [%s] has no final state", f.name)
	}
	for _, i := range starts {
		for _, j := range ends {
			if i == j || topo.PathExistsIn(f.graph, simple.Node(i), simple.Node(j)) {
				return nil
			}
		}
	}
	return fmt.Errorf("fst [%s]: no final state is reachable from an initial state", f.name)
}

// Name returns the FST name.
func (f *FST) Name() string { return f.name }

// Outputs returns the output label alphabet.
func (f *FST) Outputs() *model.Alphabet { return f.outputs }

// NumStates implements model.Transducer.
func (f *FST) NumStates() int { return len(f.states) }

// State implements model.Transducer.
func (f *FST) State(i int) model.State { return f.states[i] }

// StateByName returns a state by name.
func (f *FST) StateByName(name string) (*State, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.states[i], true
}

// Transitions implements model.Transducer. The input is ignored.
func (f *FST) Transitions(src int, input model.Sequence, ip int) model.TransitionIterator {
	return &iterator{arcs: f.states[src].arcs, i: -1}
}

// StateLabelMap maps each state to the label with the same name, or -1.
func (f *FST) StateLabelMap() *model.StateLabelMap {
	labels := make([]int, len(f.states))
	for i, s := range f.states {
		labels[i] = f.outputs.Index(s.name)
	}
	m, err := model.NewStateLabelMap(labels, f.outputs.Size())
	if err != nil {
		panic(err)
	}
	return m
}

// Index implements model.State.
func (s *State) Index() int { return s.index }

// Name implements model.State.
func (s *State) Name() string { return s.name }

// InitialWeight implements model.State.
func (s *State) InitialWeight() float64 { return s.initial }

// FinalWeight implements model.State.
func (s *State) FinalWeight() float64 { return s.final }

// Arcs returns the arcs leaving the state.
func (s *State) Arcs() []Arc { return s.arcs }

type iterator struct {
	arcs []Arc
	i    int
}

func (it *iterator) Next() bool {
	it.i++
	return it.i < len(it.arcs)
}

func (it *iterator) Dest() int       { return it.arcs[it.i].Dest }
func (it *iterator) Output() int     { return it.arcs[it.i].Output }
func (it *iterator) Index() int      { return it.i }
func (it *iterator) Weight() float64 { return it.arcs[it.i].Weight }

func (f *FST) logSummary() {
	var n int
	for _, s := range f.states {
		n += len(s.arcs)
	}
	glog.V(2).Infof("fst [%s]: %d states, %d arcs, %d outputs", f.name, len(f.states), n, f.outputs.Size())
}
