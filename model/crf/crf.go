// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package crf implements a linear-chain conditional random field as a
model.Transducer.

Each transition references one or more weight sets. The log weight of a
transition at input position ip is

	w(ip) = sum_{ws} default(ws) + weights(ws)·x(ip)

where x(ip) is the sparse feature vector at ip. Parameters are stored in a
Factors value; every mutation increments the model version.
*/
package crf

import (
	"fmt"

	"github.com/akualab/tagger/model"
	"github.com/golang/glog"
)

// CRF is a linear-chain conditional random field.
type CRF struct {
	name        string
	inputs      *model.Alphabet
	outputs     *model.Alphabet
	numFeatures int
	states      []*State
	stateIndex  map[string]int
	weightNames *model.Alphabet
	params      *Factors
	version     uint64
}

// State is a CRF state.
type State struct {
	crf   *CRF
	index int
	name  string
	dests []transition
}

type transition struct {
	destName   string
	dest       int
	output     int
	weightSets []int
}

// Option type is used to pass options to NewCRF().
type Option func(*CRF)

// Name is an option to set the model name.
func Name(name string) Option {
	return func(c *CRF) { c.name = name }
}

// Inputs is an option to set the input feature alphabet.
func Inputs(a *model.Alphabet) Option {
	return func(c *CRF) { c.inputs = a }
}

// NewCRF creates an empty CRF over numFeatures input features and the
// given output label alphabet.
func NewCRF(numFeatures int, outputs *model.Alphabet, options ...Option) *CRF {

	c := &CRF{
		name:        "CRF",
		outputs:     outputs,
		numFeatures: numFeatures,
		stateIndex:  make(map[string]int),
		weightNames: model.NewAlphabet(),
		params:      NewFactors(0, 0, numFeatures),
	}
	if c.outputs == nil {
		c.outputs = model.NewAlphabet()
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// AddState adds a state. dests, labels and weightNames are parallel slices:
// transition k goes to state dests[k], emits labels[k] and uses the weight
// sets named in weightNames[k]. Destinations may be added later.
func (c *CRF) AddState(name string, initialWeight, finalWeight float64,
	dests, labels []string, weightNames [][]string) error {

	if _, ok := c.stateIndex[name]; ok {
		return fmt.Errorf("%w: state [%s] already exists", model.ErrDuplicateName, name)
	}
	if len(dests) != len(labels) || len(dests) != len(weightNames) {
		return fmt.Errorf("%w: state [%s] has [%d] destinations, [%d] labels and [%d] weight name lists",
			model.ErrLengthMismatch, name, len(dests), len(labels), len(weightNames))
	}
	seen := make(map[string]bool, len(dests))
	for _, d := range dests {
		if seen[d] {
			return fmt.Errorf("%w: state [%s] has two transitions to [%s]", model.ErrDuplicateName, name, d)
		}
		seen[d] = true
	}

	s := &State{crf: c, index: len(c.states), name: name}
	numWeights := c.weightNames.Size()
	for k, d := range dests {
		tr := transition{destName: d, dest: -1, output: c.outputs.Add(labels[k])}
		for _, wn := range weightNames[k] {
			tr.weightSets = append(tr.weightSets, c.weightNames.Add(wn))
		}
		s.dests = append(s.dests, tr)
	}

	c.states = append(c.states, s)
	c.stateIndex[name] = s.index
	c.params = c.params.resize(len(c.states), c.weightNames.Size())
	c.params.Initial[s.index] = initialWeight
	c.params.Final[s.index] = finalWeight
	c.resolve()
	c.version++

	glog.V(4).Infof("crf [%s]: added state [%s] with %d transitions, %d new weight sets",
		c.name, name, len(dests), c.weightNames.Size()-numWeights)
	return nil
}

// resolve binds destination names to state indices.
func (c *CRF) resolve() {
	for _, s := range c.states {
		for k := range s.dests {
			if s.dests[k].dest >= 0 {
				continue
			}
			if idx, ok := c.stateIndex[s.dests[k].destName]; ok {
				s.dests[k].dest = idx
			}
		}
	}
}

// Validate checks that every destination refers to an existing state.
func (c *CRF) Validate() error {
	for _, s := range c.states {
		for _, tr := range s.dests {
			if tr.dest < 0 {
				return fmt.Errorf("%w: state [%s] has a transition to missing state [%s]",
					model.ErrUnknownName, s.name, tr.destName)
			}
		}
	}
	if len(c.states) == 0 {
		return fmt.Errorf("crf [%s] has no states", c.name)
	}
	return nil
}

// AddFullyConnectedStates adds one state per name; every state connects to
// every state, emitting the destination name with a weight set per pair.
func (c *CRF) AddFullyConnectedStates(names []string) error {

	for _, src := range names {
		labels := make([]string, len(names))
		weights := make([][]string, len(names))
		for k, dst := range names {
			labels[k] = dst
			weights[k] = []string{src + "->" + dst}
		}
		if err := c.AddState(src, 0, 0, names, labels, weights); err != nil {
			return err
		}
	}
	return nil
}

// AddFullyConnectedStatesForLabels adds a fully connected state per output label.
func (c *CRF) AddFullyConnectedStatesForLabels() error {
	names := append([]string(nil), c.outputs.ToStr...)
	return c.AddFullyConnectedStates(names)
}

// AddStatesForLabelsConnectedAsIn adds a state per output label with
// transitions only between label pairs observed in the labeled data.
func (c *CRF) AddStatesForLabelsConnectedAsIn(data model.InstanceList) error {

	n := c.outputs.Size()
	connected := make([][]bool, n)
	for i := range connected {
		connected[i] = make([]bool, n)
	}
	for _, inst := range data {
		if !inst.Labeled() {
			continue
		}
		for ip := 1; ip < len(inst.Target); ip++ {
			src, dst := inst.Target[ip-1], inst.Target[ip]
			if src < 0 || src >= n || dst < 0 || dst >= n {
				return fmt.Errorf("%w: instance [%s] target label out of range at position [%d]",
					model.ErrIndexOutOfRange, inst.Name, ip)
			}
			connected[src][dst] = true
		}
	}
	for i := 0; i < n; i++ {
		src := c.outputs.Lookup(i)
		var dests, labels []string
		var weights [][]string
		for j := 0; j < n; j++ {
			if !connected[i][j] {
				continue
			}
			dst := c.outputs.Lookup(j)
			dests = append(dests, dst)
			labels = append(labels, dst)
			weights = append(weights, []string{src + "->" + dst})
		}
		if err := c.AddState(src, 0, 0, dests, labels, weights); err != nil {
			return err
		}
	}
	return nil
}

// NumStates implements model.Transducer.
func (c *CRF) NumStates() int { return len(c.states) }

// State implements model.Transducer.
func (c *CRF) State(i int) model.State { return c.states[i] }

// StateByName returns the state with the given name.
func (c *CRF) StateByName(name string) (*State, bool) {
	idx, ok := c.stateIndex[name]
	if !ok {
		return nil, false
	}
	return c.states[idx], true
}

// Transitions implements model.Transducer.
func (c *CRF) Transitions(src int, input model.Sequence, ip int) model.TransitionIterator {
	return &iterator{
		state:  c.states[src],
		params: c.params,
		fv:     input.At(ip),
		i:      -1,
	}
}

// Name returns the model name.
func (c *CRF) Name() string { return c.name }

// Version implements model.Versioned.
func (c *CRF) Version() uint64 { return c.version }

// Inputs returns the input feature alphabet, which may be nil.
func (c *CRF) Inputs() *model.Alphabet { return c.inputs }

// Outputs returns the output label alphabet.
func (c *CRF) Outputs() *model.Alphabet { return c.outputs }

// NumFeatures returns the number of input features.
func (c *CRF) NumFeatures() int { return c.numFeatures }

// WeightSetIndex returns the index of a named weight set or -1.
func (c *CRF) WeightSetIndex(name string) int { return c.weightNames.Index(name) }

// StateLabelMap maps states to labels using state names.
func (c *CRF) StateLabelMap() *model.StateLabelMap {
	labels := make([]int, len(c.states))
	for i, s := range c.states {
		labels[i] = c.outputs.Index(s.name)
	}
	m, err := model.NewStateLabelMap(labels, c.outputs.Size())
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
func (s *State) InitialWeight() float64 { return s.crf.params.Initial[s.index] }

// FinalWeight implements model.State.
func (s *State) FinalWeight() float64 { return s.crf.params.Final[s.index] }

// NumTransitions returns the number of outgoing transitions.
func (s *State) NumTransitions() int { return len(s.dests) }

// Dest returns the destination of transition k.
func (s *State) Dest(k int) int { return s.dests[k].dest }

// WeightSets returns the weight sets of transition k.
func (s *State) WeightSets(k int) []int { return s.dests[k].weightSets }

type iterator struct {
	state  *State
	params *Factors
	fv     *model.FeatureVector
	i      int
}

func (it *iterator) Next() bool {
	it.i++
	return it.i < len(it.state.dests)
}

func (it *iterator) Dest() int {
	d := it.state.dests[it.i].dest
	if d < 0 {
		panic(fmt.Sprintf("crf: state [%s] transition to unknown state [%s]",
			it.state.name, it.state.dests[it.i].destName))
	}
	return d
}

func (it *iterator) Output() int { return it.state.dests[it.i].output }

func (it *iterator) Index() int { return it.i }

func (it *iterator) Weight() float64 {
	var w float64
	for _, ws := range it.state.dests[it.i].weightSets {
		w += it.params.Default[ws] + it.fv.Dot(it.params.Weights[ws])
	}
	return w
}
