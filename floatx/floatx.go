// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package floatx provides float slice helpers and log-domain arithmetic.
package floatx

import (
	"math"
)

// Error is a floatx error.
type Error string

func (err Error) Error() string { return string(err) }

const (
	ErrIndexOutOfRange = Error("floatx: index out of range")
	ErrZeroLength      = Error("floatx: zero length in slice definition")
	ErrLength          = Error("floatx: length mismatch")
)

// NegInf is log(0).
var NegInf = math.Inf(-1)

// LogAdd returns log(exp(a) + exp(b)).
// LogAdd(-Inf, x) is x, so impossible terms never produce NaN.
func LogAdd(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if b < a {
		return a + math.Log1p(math.Exp(b-a))
	}
	return b + math.Log1p(math.Exp(a-b))
}

// LogSum returns log(sum_i exp(x[i])). Returns -Inf for an empty slice.
func LogSum(x []float64) float64 {
	sum := NegInf
	for _, v := range x {
		sum = LogAdd(sum, v)
	}
	return sum
}

// Delta returns a-b, except that it returns zero when both values are
// infinite with the same sign.
func Delta(a, b float64) float64 {
	if a*b > 0 && math.IsInf(a, 0) && math.IsInf(b, 0) {
		return 0
	}
	return a - b
}

// MakeFloat3D allocates a zeroed [n1][n2][n3] slice.
func MakeFloat3D(n1, n2, n3 int) [][][]float64 {

	s := make([][][]float64, n1)
	for i := 0; i < n1; i++ {
		s[i] = MakeFloat2D(n2, n3)
	}
	return s
}

// MakeFloat2D allocates a zeroed [n1][n2] slice backed by one array.
func MakeFloat2D(n1, n2 int) [][]float64 {

	buf := make([]float64, n1*n2)
	s := make([][]float64, n1)
	for i := 0; i < n1; i++ {
		s[i] = buf[i*n2 : (i+1)*n2 : (i+1)*n2]
	}
	return s
}

// MakeImpossible2D allocates a [n1][n2] slice filled with -Inf.
func MakeImpossible2D(n1, n2 int) [][]float64 {
	s := MakeFloat2D(n1, n2)
	Fill2D(s, NegInf)
	return s
}

// MakeImpossible3D allocates a [n1][n2][n3] slice filled with -Inf.
func MakeImpossible3D(n1, n2, n3 int) [][][]float64 {
	s := MakeFloat3D(n1, n2, n3)
	Fill3D(s, NegInf)
	return s
}

// Check2D returns the dimensions of a non-empty 2D slice.
func Check2D(s [][]float64) (n1, n2 int) {

	n1 = len(s)
	if n1 == 0 {
		panic(ErrZeroLength)
	}
	n2 = len(s[0])
	if n2 == 0 {
		panic(ErrZeroLength)
	}
	return n1, n2
}

// Check3D returns the dimensions of a non-empty 3D slice.
func Check3D(s [][][]float64) (n1, n2, n3 int) {

	n1 = len(s)
	if n1 == 0 {
		panic(ErrZeroLength)
	}
	n2 = len(s[0])
	if n2 == 0 {
		panic(ErrZeroLength)
	}
	n3 = len(s[0][0])
	if n3 == 0 {
		panic(ErrZeroLength)
	}
	return n1, n2, n3
}

// ApplyFunc transforms one value at index n.
type ApplyFunc func(n int, v float64) float64

// Exp is an ApplyFunc.
var Exp = func(r int, v float64) float64 { return math.Exp(v) }

// SetValueFunc returns an ApplyFunc that sets every value to f.
func SetValueFunc(f float64) ApplyFunc {
	return func(r int, v float64) float64 { return f }
}

// Apply function to 1D slice. If out slice is empty, the function is applied in place.
func Apply(fn ApplyFunc, in, out []float64) []float64 {

	n := len(in)
	if len(out) == 0 {
		out = in
	}
	if len(out) != n {
		panic(ErrLength)
	}
	for i := 0; i < n; i++ {
		out[i] = fn(i, in[i])
	}
	return out
}

// Fill sets all values to v.
func Fill(s []float64, v float64) {
	Apply(SetValueFunc(v), s, nil)
}

// Fill2D sets all values to v.
func Fill2D(s [][]float64, v float64) {
	for _, slice := range s {
		Fill(slice, v)
	}
}

// Fill3D sets all values to v.
func Fill3D(s [][][]float64, v float64) {
	for _, slice := range s {
		Fill2D(slice, v)
	}
}

// Clear sets all values to zero.
func Clear(s []float64) {
	Fill(s, 0)
}

// Clear2D sets all values to zero.
func Clear2D(s [][]float64) {
	Fill2D(s, 0)
}

// Copy2D returns a deep copy.
func Copy2D(s [][]float64) [][]float64 {
	if len(s) == 0 {
		return nil
	}
	out := MakeFloat2D(len(s), len(s[0]))
	for i := range s {
		copy(out[i], s[i])
	}
	return out
}

// Flatten2D concatenates the rows of s.
func Flatten2D(s [][]float64) []float64 {

	n1, n2 := Check2D(s)
	out := make([]float64, 0, n1*n2)
	for _, c := range s {
		out = append(out, c...)
	}
	return out
}

// A simple []float64 slice pool object.
// Use it to avoid allocating unecessary resources in
// concurrent code.
type Pool struct {
	n   int
	buf chan []float64
}

// NewPool creates a pool of slices of length n holding up to size idle slices.
func NewPool(n, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{n, make(chan []float64, size)}
}

// Get returns a zeroed slice.
func (pool *Pool) Get() []float64 {
	select {
	case b := <-pool.buf:
		Clear(b)
		return b
	default:
	}
	return make([]float64, pool.n)
}

// Put returns a slice to the pool.
func (pool *Pool) Put(p []float64) {
	if len(p) != pool.n {
		return
	}
	select {
	case pool.buf <- p:
	default:
	}
}
