// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fst

import (
	"io"
	"math"
	"os"

	"github.com/akualab/tagger/model"
	"github.com/golang/glog"
	"gopkg.in/yaml.v3"
)

// Topology is the file representation of an FST. Missing initial or final
// weights mean the state cannot start or end a path.
//
//	name: bio
//	states:
//	  - {name: O, initial: 0, final: 0}
//	  - {name: B, initial: 0}
//	  - {name: I, final: 0}
//	arcs:
//	  - {from: O, to: B, output: B, weight: -0.5}
//	  - {from: B, to: I, output: I}
type Topology struct {
	Name   string      `yaml:"name" json:"name"`
	States []StateSpec `yaml:"states" json:"states"`
	Arcs   []ArcSpec   `yaml:"arcs" json:"arcs"`
}

// StateSpec describes a state.
type StateSpec struct {
	Name    string   `yaml:"name" json:"name"`
	Initial *float64 `yaml:"initial,omitempty" json:"initial,omitempty"`
	Final   *float64 `yaml:"final,omitempty" json:"final,omitempty"`
}

// ArcSpec describes an arc. An empty output defaults to the destination name.
type ArcSpec struct {
	From   string  `yaml:"from" json:"from"`
	To     string  `yaml:"to" json:"to"`
	Output string  `yaml:"output,omitempty" json:"output,omitempty"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// ReadTopology reads a YAML topology and builds an FST.
func ReadTopology(r io.Reader, outputs *model.Alphabet) (*FST, error) {

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	top := &Topology{}
	if err := yaml.Unmarshal(b, top); err != nil {
		return nil, err
	}
	return top.Build(outputs)
}

// ReadTopologyFile reads a YAML topology file.
func ReadTopologyFile(fn string, outputs *model.Alphabet) (*FST, error) {

	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTopology(f, outputs)
}

// Build creates and validates the FST.
func (top *Topology) Build(outputs *model.Alphabet) (*FST, error) {

	f := New(top.Name, outputs)
	for _, s := range top.States {
		if _, err := f.AddState(s.Name, weightOrImpossible(s.Initial), weightOrImpossible(s.Final)); err != nil {
			return nil, err
		}
	}
	for _, a := range top.Arcs {
		out := a.Output
		if out == "" {
			out = a.To
		}
		if err := f.AddArc(a.From, a.To, out, a.Weight); err != nil {
			return nil, err
		}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	f.logSummary()
	glog.Infof("read topology [%s] with %d states", top.Name, len(top.States))
	return f, nil
}

// Topology returns the file representation of f.
func (f *FST) Topology() *Topology {

	top := &Topology{Name: f.name}
	for _, s := range f.states {
		spec := StateSpec{Name: s.name}
		if !model.IsImpossible(s.initial) {
			v := s.initial
			spec.Initial = &v
		}
		if !model.IsImpossible(s.final) {
			v := s.final
			spec.Final = &v
		}
		top.States = append(top.States, spec)
		for _, a := range s.arcs {
			top.Arcs = append(top.Arcs, ArcSpec{
				From:   s.name,
				To:     f.states[a.Dest].name,
				Output: f.outputs.Lookup(a.Output),
				Weight: a.Weight,
			})
		}
	}
	return top
}

// Write writes the topology of f as YAML.
func (f *FST) Write(w io.Writer) error {

	b, err := yaml.Marshal(f.Topology())
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func weightOrImpossible(w *float64) float64 {
	if w == nil {
		return math.Inf(-1)
	}
	return *w
}
