// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"encoding/json"
	"fmt"
)

// Segment is a maximal run of consecutive tokens with the same label.
type Segment struct {
	// Start index (inclusive)
	Start int `json:"s"`
	// End index (exclusive)
	End int `json:"e"`
	// Label index.
	Label int `json:"l"`
	// Label name, empty when no alphabet is given.
	Name string `json:"n,omitempty"`
}

// Len returns the number of tokens in the segment.
func (s Segment) Len() int { return s.End - s.Start }

// Segmentation is a sequence of contiguous segments.
type Segmentation []Segment

// Segments merges consecutive equal labels into segments. Names are
// looked up in alphabet when it is not nil.
func Segments(labels []int, alphabet *Alphabet) Segmentation {

	if len(labels) == 0 {
		return nil
	}
	var segs Segmentation
	seg := Segment{Start: 0, Label: labels[0]}
	for idx, v := range labels {
		if v != seg.Label {
			seg.End = idx
			segs = append(segs, seg)
			seg = Segment{Start: idx, Label: v}
		}
	}
	seg.End = len(labels)
	segs = append(segs, seg)

	if alphabet != nil {
		for i := range segs {
			segs[i].Name = alphabet.Lookup(segs[i].Label)
		}
	}
	return segs
}

// Labels expands the segments back into one label per token.
func (s Segmentation) Labels() []int {
	if len(s) == 0 {
		return nil
	}
	labels := make([]int, 0, s[len(s)-1].End)
	for _, seg := range s {
		for i := seg.Start; i < seg.End; i++ {
			labels = append(labels, seg.Label)
		}
	}
	return labels
}

// Validate checks that the segments are non-empty, contiguous and cover
// [0, n).
func (s Segmentation) Validate(n int) error {

	end := 0
	for i, seg := range s {
		if seg.Start != end {
			return fmt.Errorf("segment %d starts at [%d], previous segment ends at [%d]", i, seg.Start, end)
		}
		if seg.End <= seg.Start {
			return fmt.Errorf("segment %d is empty: [%d, %d)", i, seg.Start, seg.End)
		}
		end = seg.End
	}
	if end != n {
		return fmt.Errorf("%w: segments cover [%d] tokens, expected [%d]", ErrLengthMismatch, end, n)
	}
	return nil
}

// String returns the segments as a JSON string.
func (s Segmentation) String() string {
	b, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return string(b)
}
