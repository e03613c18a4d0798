// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package model defines the transducer contract consumed by the lattice engine.

A transducer is a directed graph of states. Each state has an initial and a
final weight and a set of outgoing transitions. Given an input sequence and a
position, a transition yields a destination state, an output label and a
log-domain weight. ImpossibleWeight (-Inf) marks anything forbidden.
*/
package model

import "math"

// Error is a model error.
type Error string

func (err Error) Error() string { return string(err) }

const (
	ErrLengthMismatch  = Error("model: sequence length mismatch")
	ErrIndexOutOfRange = Error("model: index out of range")
	ErrDuplicateName   = Error("model: duplicate name")
	ErrUnknownName     = Error("model: unknown name")
)

// ImpossibleWeight is the log weight of a forbidden state or transition.
var ImpossibleWeight = math.Inf(-1)

// IsImpossible returns true for the ImpossibleWeight sentinel.
func IsImpossible(w float64) bool {
	return math.IsInf(w, -1)
}

// A Transducer exposes states and input dependent transitions.
// Implementations must not be mutated while a lattice is being computed.
type Transducer interface {

	// Number of states. States are indexed {0,1,...,NumStates()-1}.
	NumStates() int

	// State with index i.
	State(i int) State

	// Transitions leaving state src when reading position ip of input.
	Transitions(src int, input Sequence, ip int) TransitionIterator
}

// State is a transducer state.
type State interface {
	Index() int
	Name() string
	InitialWeight() float64
	FinalWeight() float64
}

// TransitionIterator iterates over the transitions leaving a state.
//
//	it := t.Transitions(src, input, ip)
//	for it.Next() {
//		w := it.Weight()
//		...
//	}
type TransitionIterator interface {

	// Next advances the iterator. Returns false when exhausted.
	Next() bool

	// Dest is the destination state index.
	Dest() int

	// Output is the output label index.
	Output() int

	// Index is the position of the transition in the source state's list.
	Index() int

	// Weight is the log weight of the transition at the current position.
	Weight() float64
}

// Versioned types expose a stamp that changes every time parameters change.
type Versioned interface {
	Version() uint64
}

// Labeler maps states to output labels.
type Labeler interface {
	StateLabelMap() *StateLabelMap
}
