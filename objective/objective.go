// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package objective wraps lattice computations as optimizable objectives.

Objectives implement optimize.ByGradientValue over the parameters of a
CRF (LabelLikelihood, KL, GE) or of a PR auxiliary model (PRAux). Values
and gradients are cached and recomputed only when the version stamp of
the parameters changes.

Instances are split into one chunk per thread. Each chunk is processed by
its own goroutine which returns a partial result; partial results are
merged in chunk order on the calling goroutine so results do not depend on
scheduling.
*/
package objective

import (
	"fmt"
	"math"

	"github.com/akualab/tagger/floatx"
	"github.com/akualab/tagger/model"
	"github.com/akualab/tagger/model/crf"
	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
)

// Defaults.
const (
	DefaultGaussianPriorVariance = 1.0
	DefaultNumThreads            = 1
)

type settings struct {
	variance   float64
	numThreads int
}

// Option type is used to pass options to objective constructors.
type Option func(*settings)

// GaussianPriorVariance sets the variance of the Gaussian prior.
func GaussianPriorVariance(v float64) Option {
	return func(s *settings) { s.variance = v }
}

// NoPrior removes the Gaussian prior.
func NoPrior() Option {
	return func(s *settings) { s.variance = math.Inf(1) }
}

// NumThreads sets the number of worker goroutines.
func NumThreads(n int) Option {
	return func(s *settings) { s.numThreads = n }
}

func newSettings(opts []Option) *settings {
	s := &settings{
		variance:   DefaultGaussianPriorVariance,
		numThreads: DefaultNumThreads,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.numThreads < 1 {
		s.numThreads = 1
	}
	return s
}

// expectations accumulates CRF expected counts from lattice increments.
type expectations struct {
	c     *crf.CRF
	f     *crf.Factors
	scale float64
}

func (e *expectations) IncrementTransition(input model.Sequence, ip, src, index, dst int, prob float64) {
	e.c.IncrementArc(e.f, input, ip, src, index, e.scale*prob)
}

func (e *expectations) IncrementInitial(s int, prob float64) {
	e.c.IncrementInitial(e.f, s, e.scale*prob)
}

func (e *expectations) IncrementFinal(s int, prob float64) {
	e.c.IncrementFinal(e.f, s, e.scale*prob)
}

// mapBatches splits indices into at most numThreads contiguous chunks and
// runs fn on each chunk concurrently. Results are returned in chunk order.
func mapBatches[T any](numThreads int, indices []int, fn func(chunk []int) (T, error)) ([]T, error) {

	if numThreads > len(indices) {
		numThreads = len(indices)
	}
	if numThreads < 1 {
		return nil, nil
	}
	size := (len(indices) + numThreads - 1) / numThreads
	var chunks [][]int
	for lo := 0; lo < len(indices); lo += size {
		hi := lo + size
		if hi > len(indices) {
			hi = len(indices)
		}
		chunks = append(chunks, indices[lo:hi])
	}

	results := make([]T, len(chunks))
	if len(chunks) == 1 {
		r, err := fn(chunks[0])
		results[0] = r
		return results, err
	}
	var g errgroup.Group
	g.SetLimit(numThreads)
	for k, chunk := range chunks {
		k, chunk := k, chunk
		g.Go(func() error {
			r, err := fn(chunk)
			if err != nil {
				return err
			}
			results[k] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// checkValue panics when an objective value is NaN or +Inf.
func checkValue(v float64, what string) {
	if math.IsNaN(v) || math.IsInf(v, 1) {
		glog.Errorf("objective: %s value is %g", what, v)
		panic(fmt.Sprintf("objective: %s value is %g", what, v))
	}
}

// checkGradient panics when a gradient component is NaN or infinite.
func checkGradient(g []float64, what string) {
	for i, v := range g {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			glog.Errorf("objective: %s gradient component %d is %g", what, i, v)
			panic(fmt.Sprintf("objective: %s gradient component %d is %g", what, i, v))
		}
	}
}

// gradientPool hands out flat buffers shaped like the CRF parameters.
type gradientPool struct {
	like *crf.Factors
	pool *floatx.Pool
}

func newGradientPool(c *crf.CRF, size int) *gradientPool {
	return &gradientPool{like: c.Params(), pool: floatx.NewPool(c.NumParameters(), size)}
}

func (p *gradientPool) get() *crf.Factors { return p.like.NewLikeFrom(p.pool.Get()) }

func (p *gradientPool) put(f *crf.Factors) { p.pool.Put(f.Flat()) }
