// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import "fmt"

// Alphabet maps between strings and integer indices.
type Alphabet struct {
	ToID  map[string]int `json:"to_id"`
	ToStr []string       `json:"to_str"`
}

// NewAlphabet creates an alphabet with the given entries.
func NewAlphabet(entries ...string) *Alphabet {
	a := &Alphabet{ToID: make(map[string]int)}
	for _, e := range entries {
		a.Add(e)
	}
	return a
}

// Add adds a string if not already present and returns its index.
func (a *Alphabet) Add(s string) int {
	if id, ok := a.ToID[s]; ok {
		return id
	}
	id := len(a.ToStr)
	a.ToID[s] = id
	a.ToStr = append(a.ToStr, s)
	return id
}

// Index returns the index for a string, or -1 if not found.
func (a *Alphabet) Index(s string) int {
	if id, ok := a.ToID[s]; ok {
		return id
	}
	return -1
}

// Lookup returns the string for index i.
func (a *Alphabet) Lookup(i int) string {
	if i < 0 || i >= len(a.ToStr) {
		return ""
	}
	return a.ToStr[i]
}

// Size returns the number of entries.
func (a *Alphabet) Size() int { return len(a.ToStr) }

// StateLabelMap maps transducer states to output labels. States that do
// not correspond to a label (like a START state) map to -1.
type StateLabelMap struct {
	labels    []int
	numLabels int
	start     int
}

// NewStateLabelMap creates a map from state index to label index.
func NewStateLabelMap(stateLabels []int, numLabels int) (*StateLabelMap, error) {

	m := &StateLabelMap{
		labels:    append([]int(nil), stateLabels...),
		numLabels: numLabels,
		start:     -1,
	}
	for s, l := range m.labels {
		if l >= numLabels {
			return nil, fmt.Errorf("%w: state [%d] maps to label [%d], num labels is [%d]",
				ErrIndexOutOfRange, s, l, numLabels)
		}
	}
	return m, nil
}

// IdentityMap maps state i to label i.
func IdentityMap(n int) *StateLabelMap {
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}
	return &StateLabelMap{labels: labels, numLabels: n, start: -1}
}

// SetStartLabel designates a label as the START pseudo-label. Constraints
// that work on label pairs skip it.
func (m *StateLabelMap) SetStartLabel(l int) { m.start = l }

// StartLabel returns the START pseudo-label or -1.
func (m *StateLabelMap) StartLabel() int { return m.start }

// Label returns the label for state s, or -1.
func (m *StateLabelMap) Label(s int) int {
	if s < 0 || s >= len(m.labels) {
		return -1
	}
	return m.labels[s]
}

// NumLabels returns the number of labels.
func (m *StateLabelMap) NumLabels() int { return m.numLabels }

// NumStates returns the number of mapped states.
func (m *StateLabelMap) NumStates() int { return len(m.labels) }
