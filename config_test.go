// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tagger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {

	// Prepare dirs.
	tmpDir := filepath.Join(os.TempDir(), "test-config")
	CheckError(t, os.MkdirAll(tmpDir, 0755))

	// Create yaml file.
	fn := filepath.Join(tmpDir, "config.yaml")
	t.Logf("Config File: %s.", fn)
	err := os.WriteFile(fn, []byte(configDoc), 0644)
	CheckError(t, err)

	// Read config.
	config, e := ReadConfig(fn)
	CheckError(t, e)

	// Check Config content.
	t.Logf("Config: %+v", config)

	if config.Model != "crf" {
		t.Fatalf("Model is [%s]. Expected \"crf\".", config.Model)
	}
	if config.Optimizer.Type != "owlqn" {
		t.Fatalf("Optimizer is [%s]. Expected \"owlqn\".", config.Optimizer.Type)
	}
	CompareFloats(t, 0.5, config.Optimizer.L1Weight, "l1 weight", 1e-9)
	if config.Trainer.NumThreads != 4 {
		t.Fatalf("NumThreads is [%d]. Expected 4.", config.Trainer.NumThreads)
	}
	if config.PR.EStepIterations != 7 {
		t.Fatalf("EStepIterations is [%d]. Expected 7.", config.PR.EStepIterations)
	}

	// Defaults survive when a field is omitted.
	if config.Optimizer.Memory != 4 {
		t.Fatalf("Memory is [%d]. Expected default 4.", config.Optimizer.Memory)
	}
}

func TestConfigValidate(t *testing.T) {

	_, err := ParseConfig([]byte("optimizer: {type: newton}\n"))
	if err == nil {
		t.Fatalf("expected error for unknown optimizer")
	}
	_, err = ParseConfig([]byte("optimizer: {type: owlqn}\n"))
	if err == nil {
		t.Fatalf("expected error for owlqn without l1 weight")
	}
	_, err = ParseConfig([]byte("trainer: {num_threads: -1}\n"))
	if err == nil {
		t.Fatalf("expected error for negative thread count")
	}
}

const configDoc string = `
model: crf
optimizer:
  type: owlqn
  l1_weight: 0.5
trainer:
  num_threads: 4
pr:
  e_step_iterations: 7
`
