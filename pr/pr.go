// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package pr implements posterior regularization constraints.

PR with an L2 penalty looks for the distribution q closest to the model p
in KL divergence whose normalized feature expectations E_q[φ_k]/c_k are
close to targets t_k:

	min_q KL(q||p) + Σ_k w_k (t_k - E_q[φ_k]/c_k)²

The solution has the form q_λ ∝ p·exp(Σ_k λ_k φ_k/c_k) where λ maximizes
the concave dual

	D(λ) = Σ_k λ_k t_k - log(Z_λ/Z_p) - Σ_k λ_k²/(4 w_k)
	∂D/∂λ_k = t_k - E_q[φ_k]/c_k - λ_k/(2 w_k)

The auxiliary model holds λ and supplies per-transition weights to
lattice.NewSumLatticePR.
*/
package pr

import (
	"github.com/akualab/tagger/model"
	"github.com/bits-and-blooms/bitset"
)

// Error is a PR error.
type Error string

func (err Error) Error() string { return string(err) }

const (
	ErrBadTarget    = Error("pr: invalid target")
	ErrBadWeight    = Error("pr: constraint weight must be positive")
	ErrIncompatible = Error("pr: cannot merge constraints of different types")
)

// Constraint is a PR constraint with NumDimensions dual parameters.
type Constraint interface {

	// NumDimensions returns the number of dual parameters.
	NumDimensions() int

	// PreProcess counts feature occurrences and returns the instances
	// where the constraint applies.
	PreProcess(data model.InstanceList) *bitset.BitSet

	// Score returns Σ_k λ_k φ_k/c_k for the transition from src to dst
	// consuming input position ip.
	Score(input model.Sequence, ip, src, dst int, params []float64) float64

	// ZeroExpectations clears the accumulated q expectations.
	ZeroExpectations()

	// Increment adds prob·φ(ip, src, dst) to the expectations.
	Increment(input model.Sequence, ip, src, dst int, prob float64)

	// AuxiliaryValue returns Σ_k λ_k t_k - λ_k²/(4 w_k).
	AuxiliaryValue(params []float64) float64

	// AddGradient adds t_k - E_q[φ_k]/c_k - λ_k/(2 w_k) to grad.
	AddGradient(params, grad []float64)

	// CompleteValue returns -Σ_k w_k (t_k - E_q[φ_k]/c_k)².
	CompleteValue() float64

	// Copy returns a constraint with zeroed expectations sharing targets.
	Copy() Constraint

	// Merge adds the expectations of other, which must come from Copy.
	Merge(other Constraint)
}
