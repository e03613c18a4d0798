// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tagger

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the parameters of a training run.
type Config struct {
	Model     string    `yaml:"model" json:"model"`
	Optimizer Optimizer `yaml:"optimizer" json:"optimizer"`
	Trainer   Trainer   `yaml:"trainer" json:"trainer"`
	PR        PR        `yaml:"pr" json:"pr"`
	GE        GE        `yaml:"ge" json:"ge"`
}

// Optimizer selects and tunes the numerical optimizer.
type Optimizer struct {
	// One of "lbfgs", "owlqn", "cg", "gradient", "sma".
	Type              string  `yaml:"type,omitempty" json:"type,omitempty"`
	Tolerance         float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	GradientTolerance float64 `yaml:"gradient_tolerance,omitempty" json:"gradient_tolerance,omitempty"`
	MaxIterations     int     `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
	Memory            int     `yaml:"memory,omitempty" json:"memory,omitempty"`
	L1Weight          float64 `yaml:"l1_weight,omitempty" json:"l1_weight,omitempty"`
	NumBatches        int     `yaml:"num_batches,omitempty" json:"num_batches,omitempty"`
	InitialStep       float64 `yaml:"initial_step,omitempty" json:"initial_step,omitempty"`
}

// Trainer holds parameters shared by all training drivers.
type Trainer struct {
	NumThreads            int     `yaml:"num_threads,omitempty" json:"num_threads,omitempty"`
	GaussianPriorVariance float64 `yaml:"gaussian_prior_variance,omitempty" json:"gaussian_prior_variance,omitempty"`
	MaxIterations         int     `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
}

// PR holds posterior regularization parameters.
type PR struct {
	MaxIterations   int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
	EStepIterations int `yaml:"e_step_iterations,omitempty" json:"e_step_iterations,omitempty"`
	MStepIterations int `yaml:"m_step_iterations,omitempty" json:"m_step_iterations,omitempty"`
	CacheSize       int `yaml:"cache_size,omitempty" json:"cache_size,omitempty"`
}

// GE holds generalized expectation parameters.
type GE struct {
	GaussianPriorVariance float64 `yaml:"gaussian_prior_variance,omitempty" json:"gaussian_prior_variance,omitempty"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Model: "crf",
		Optimizer: Optimizer{
			Type:              "lbfgs",
			Tolerance:         0.0001,
			GradientTolerance: 0.001,
			MaxIterations:     1000,
			Memory:            4,
			NumBatches:        1,
			InitialStep:       1.0,
		},
		Trainer: Trainer{
			NumThreads:            1,
			GaussianPriorVariance: 10.0,
			MaxIterations:         500,
		},
		PR: PR{
			MaxIterations:   10,
			EStepIterations: 50,
			MStepIterations: 50,
			CacheSize:       1000,
		},
		GE: GE{GaussianPriorVariance: 10.0},
	}
}

// ParseConfig reads a YAML document on top of the defaults.
func ParseConfig(b []byte) (*Config, error) {

	config := DefaultConfig()
	if err := yaml.Unmarshal(b, config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ReadConfig reads a YAML configuration file.
func ReadConfig(fn string) (*Config, error) {

	b, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// Validate checks parameter ranges.
func (c *Config) Validate() error {

	switch c.Optimizer.Type {
	case "lbfgs", "owlqn", "cg", "gradient", "sma":
	default:
		return fmt.Errorf("unknown optimizer type [%s]", c.Optimizer.Type)
	}
	if c.Optimizer.Memory < 1 {
		return fmt.Errorf("optimizer memory must be positive, got [%d]", c.Optimizer.Memory)
	}
	if c.Optimizer.L1Weight < 0 {
		return fmt.Errorf("l1 weight must be non-negative, got [%f]", c.Optimizer.L1Weight)
	}
	if c.Optimizer.Type == "owlqn" && c.Optimizer.L1Weight == 0 {
		return fmt.Errorf("optimizer [owlqn] requires a positive l1_weight")
	}
	if c.Trainer.NumThreads < 1 {
		return fmt.Errorf("num_threads must be positive, got [%d]", c.Trainer.NumThreads)
	}
	if c.Trainer.GaussianPriorVariance <= 0 {
		return fmt.Errorf("gaussian prior variance must be positive, got [%f]", c.Trainer.GaussianPriorVariance)
	}
	if c.Optimizer.NumBatches < 1 {
		return fmt.Errorf("num_batches must be positive, got [%d]", c.Optimizer.NumBatches)
	}
	return nil
}
