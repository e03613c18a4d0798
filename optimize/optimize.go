// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package optimize implements gradient based maximizers.

All optimizers maximize. An objective implements Optimizable plus ByValue,
ByGradientValue or ByBatchGradient. Optimizers move through the states

	Uninitialized -> Iterating -> Converged | Failed | IterationLimitReached

A line search that cannot make progress is not an error: the optimizer
clears its history and returns Failed with a nil error. An error is
returned only when the objective is inconsistent, for example when its
gradient is not an ascent direction.
*/
package optimize

import (
	"math"

	"github.com/golang/glog"
)

// Error is an optimization error.
type Error string

func (err Error) Error() string { return string(err) }

// ErrInvalidOptimizable means the value and gradient of the objective
// are inconsistent.
const ErrInvalidOptimizable = Error("optimize: invalid optimizable")

// Optimizable exposes a parameter vector.
type Optimizable interface {
	NumParameters() int
	Parameters(buf []float64)
	Parameter(i int) float64
	SetParameters(buf []float64)
	SetParameter(i int, v float64)
}

// ByValue is an objective with a value.
type ByValue interface {
	Optimizable
	Value() float64
}

// ByGradientValue is an objective with a value and a gradient.
type ByGradientValue interface {
	ByValue
	// ValueGradient writes the gradient into buf.
	ValueGradient(buf []float64)
}

// ByBatchGradient is an objective that decomposes over instances.
// assignments[i] is the batch of instance i.
type ByBatchGradient interface {
	Optimizable
	NumInstances() int
	BatchValue(batch int, assignments []int) float64
	BatchValueGradient(buf []float64, batch int, assignments []int)
}

// Optimizer maximizes an objective.
type Optimizer interface {
	// Optimize runs at most numIterations iterations. Zero or negative
	// means the configured maximum.
	Optimize(numIterations int) (Status, error)
	Status() Status
	Iterations() int
}

// LineOptimizer maximizes along a direction. It moves the parameters of
// the objective by step·line and returns the step, or zero after restoring
// the parameters when no acceptable step exists.
type LineOptimizer interface {
	Optimize(line []float64, initialStep float64) (float64, error)
}

// Status of an optimizer.
type Status int

const (
	Uninitialized Status = iota
	Iterating
	Converged
	Failed
	IterationLimitReached
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case Failed:
		return "failed"
	case IterationLimitReached:
		return "iteration limit reached"
	}
	return "unknown"
}

// Done returns true for terminal states.
func (s Status) Done() bool {
	return s == Converged || s == Failed || s == IterationLimitReached
}

// Defaults.
const (
	DefaultTolerance         = 1e-4
	DefaultGradientTolerance = 1e-3
	DefaultMemory            = 4
	DefaultMaxIterations     = 1000
	DefaultInitialStep       = 1.0
	eps                      = 1e-5
)

// Settings are shared by all optimizers.
type Settings struct {
	Tolerance         float64
	GradientTolerance float64
	Memory            int
	MaxIterations     int
	L1Weight          float64
	InitialStep       float64
	LineSearch        LineOptimizer
	NumBatches        int
	Gain              float64
	MetaStep          float64
	Decay             float64
	Seed              int64
}

// Option type is used to pass options to optimizer constructors.
type Option func(*Settings)

// Tolerance sets the relative value change that stops the optimizer.
func Tolerance(tol float64) Option { return func(s *Settings) { s.Tolerance = tol } }

// GradientTolerance sets the gradient norm that stops the optimizer.
func GradientTolerance(tol float64) Option { return func(s *Settings) { s.GradientTolerance = tol } }

// Memory sets the number of L-BFGS correction pairs.
func Memory(m int) Option { return func(s *Settings) { s.Memory = m } }

// MaxIterations sets the iteration limit.
func MaxIterations(n int) Option { return func(s *Settings) { s.MaxIterations = n } }

// L1Weight sets the OWL-QN L1 penalty.
func L1Weight(w float64) Option { return func(s *Settings) { s.L1Weight = w } }

// InitialStep sets the first step tried by line searches.
func InitialStep(step float64) Option { return func(s *Settings) { s.InitialStep = step } }

// LineSearch replaces the default backtracking line search.
func LineSearch(lo LineOptimizer) Option { return func(s *Settings) { s.LineSearch = lo } }

// NumBatches sets the number of batches for stochastic optimizers.
func NumBatches(n int) Option { return func(s *Settings) { s.NumBatches = n } }

// Gain sets the initial per-parameter gain of stochastic meta ascent.
func Gain(eta float64) Option { return func(s *Settings) { s.Gain = eta } }

// MetaStep sets the meta learning rate μ of stochastic meta ascent.
func MetaStep(mu float64) Option { return func(s *Settings) { s.MetaStep = mu } }

// Decay sets the λ decay of stochastic meta ascent.
func Decay(lambda float64) Option { return func(s *Settings) { s.Decay = lambda } }

// Seed sets the random seed for batch assignments.
func Seed(seed int64) Option { return func(s *Settings) { s.Seed = seed } }

func newSettings(opts []Option) *Settings {
	s := &Settings{
		Tolerance:         DefaultTolerance,
		GradientTolerance: DefaultGradientTolerance,
		Memory:            DefaultMemory,
		MaxIterations:     DefaultMaxIterations,
		InitialStep:       DefaultInitialStep,
		NumBatches:        1,
		Gain:              0.01,
		MetaStep:          0.1,
		Decay:             1.0,
		Seed:              1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Settings) iterations(n int) int {
	if n <= 0 {
		return s.MaxIterations
	}
	return n
}

// converged implements the relative change test used by all optimizers.
func converged(newValue, oldValue, tol float64) bool {
	return 2*math.Abs(newValue-oldValue) <= tol*(math.Abs(newValue)+math.Abs(oldValue)+eps)
}

func allZero(x []float64) bool {
	for _, v := range x {
		if v != 0 {
			return false
		}
	}
	return true
}

func checkValue(v float64, what string) {
	if math.IsNaN(v) {
		glog.Errorf("optimize: %s value is NaN", what)
		panic("optimize: " + what + " value is NaN")
	}
}
