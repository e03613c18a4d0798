// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import "fmt"

// Instance is an input sequence with an optional target output sequence.
type Instance struct {

	// The instance name.
	Name string

	// Input sequence.
	Input Sequence

	// Target output label indices, one per input position.
	// Nil for unlabeled instances.
	Target []int

	// Instance weight. Zero is treated as one.
	Weight float64
}

// NewInstance creates a new instance. Returns an error when the target
// length does not match the input length.
func NewInstance(name string, input Sequence, target []int) (*Instance, error) {

	inst := &Instance{Name: name, Input: input, Target: target, Weight: 1}
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

// Validate checks the instance shape.
func (inst *Instance) Validate() error {
	if inst.Input == nil {
		return fmt.Errorf("instance [%s] has no input", inst.Name)
	}
	if inst.Target != nil && len(inst.Target) != inst.Input.Len() {
		return fmt.Errorf("%w: instance [%s] has input length [%d] and target length [%d]",
			ErrLengthMismatch, inst.Name, inst.Input.Len(), len(inst.Target))
	}
	return nil
}

// Labeled returns true when the instance has a target sequence.
func (inst *Instance) Labeled() bool { return inst.Target != nil }

// InstanceWeight returns the weight, treating zero as one.
func (inst *Instance) InstanceWeight() float64 {
	if inst.Weight == 0 {
		return 1
	}
	return inst.Weight
}

// InstanceList is a list of instances.
type InstanceList []*Instance

// Validate validates every instance.
func (il InstanceList) Validate() error {
	for _, inst := range il {
		if err := inst.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// NumTokens returns the total number of input positions.
func (il InstanceList) NumTokens() int {
	var n int
	for _, inst := range il {
		n += inst.Input.Len()
	}
	return n
}
