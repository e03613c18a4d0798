// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import (
	"testing"

	"github.com/akualab/tagger/model"
	"github.com/akualab/tagger/model/crf"
)

func TestCacheInit(t *testing.T) {
	cache, err := NewDotCache(5)
	if err != nil {
		t.Fatal(err)
	}
	sz, c, _, _ := cache.Stats()
	if sz != 0 {
		t.Errorf("size = %v, want 0", sz)
	}
	if c != 5 {
		t.Errorf("capacity = %v, want 5", c)
	}
	if _, err := NewDotCache(0); err == nil {
		t.Errorf("expected error for zero capacity")
	}
}

func TestSetInsertsValue(t *testing.T) {
	cache, _ := NewDotCache(100)
	data := [][][]float64{{{1.1, 2.2}, {3.3, 4.4}}}
	cache.Set(33, 7, data)

	v, ok := cache.Get(33, 7)
	if !ok {
		t.Fatalf("cache returned not ok")
	}
	if v[0][1][0] != 3.3 {
		t.Errorf("cache has incorrect value: %f != %f", v[0][1][0], 3.3)
	}
	if _, ok := cache.Get(33, 8); ok {
		t.Errorf("stale entry returned")
	}
	if _, ok := cache.Get(33, 7); ok {
		t.Errorf("stale entry was not evicted")
	}
	_, _, hits, misses := cache.Stats()
	if hits != 1 || misses != 2 {
		t.Errorf("hits = %d, misses = %d, want 1 and 2", hits, misses)
	}
}

func TestEviction(t *testing.T) {
	cache, _ := NewDotCache(2)
	for i := 0; i < 3; i++ {
		cache.Set(i, 0, nil)
	}
	if _, ok := cache.Get(0, 0); ok {
		t.Errorf("oldest entry should be evicted")
	}
	if !cache.Delete(2) {
		t.Errorf("delete failed")
	}
	cache.Clear()
	if sz, _, _, _ := cache.Stats(); sz != 0 {
		t.Errorf("size = %d after clear", sz)
	}
}

func TestDots(t *testing.T) {

	c := crf.NewCRF(1, model.NewAlphabet("A", "B"))
	if err := c.AddFullyConnectedStatesForLabels(); err != nil {
		t.Fatal(err)
	}
	if err := c.SetWeight("A->B", 0, 2); err != nil {
		t.Fatal(err)
	}
	input := model.FeatureSequence{model.Binary(0), model.Binary(0)}
	cache, _ := NewDotCache(10)

	dots, err := cache.Dots(0, c, input)
	if err != nil {
		t.Fatal(err)
	}
	if dots[1][0][1] != 2 {
		t.Errorf("A->B weight = %f, want 2", dots[1][0][1])
	}
	again, _ := cache.Dots(0, c, input)
	if &again[0] != &dots[0] {
		t.Errorf("expected cached table")
	}

	// A parameter change makes the table stale.
	if err := c.SetWeight("A->B", 0, 3); err != nil {
		t.Fatal(err)
	}
	dots, _ = cache.Dots(0, c, input)
	if dots[1][0][1] != 3 {
		t.Errorf("A->B weight = %f, want 3", dots[1][0][1])
	}
	_, _, hits, misses := cache.Stats()
	if hits != 1 || misses != 2 {
		t.Errorf("hits = %d, misses = %d, want 1 and 2", hits, misses)
	}
}
