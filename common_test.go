// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tagger

import (
	"testing"
)

func TestFatalNil(t *testing.T) {
	// A nil error is a no-op.
	Fatal(nil)
}

func TestComparef64(t *testing.T) {

	if !Comparef64(1.0, 1.00001, 0.001) {
		t.Fatalf("expected values to be equal within tolerance")
	}
	if Comparef64(1.0, 1.1, 0.001) {
		t.Fatalf("expected values to differ")
	}
}
