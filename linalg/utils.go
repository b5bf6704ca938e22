// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linalg holds the small numerical kernel the backward pass depends
// on: infinity-norm utilities, safe projections, lower-triangular
// symmetrization, and a pivoted LDLᵀ factorization for the KKT system of
// §4.4. Matrices here are flat row-major []float64 buffers with an explicit
// leading dimension, in the teacher's own BLAS/LINPACK style
// (curioloop-optimizer/slsqp/blas.go, lbfgsb/linpack.go) rather than a 2-D
// container, because the KKT buffer is a single reusable slab the backward
// pass carves sub-views out of (§9 "explicit sub-view descriptors").
package linalg

import "math"

const zero = 0.0

// InfNorm returns ‖v‖∞ = max_i |v[i]|, 0 for an empty slice.
func InfNorm(v []float64) float64 {
	m := zero
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

// InfNormCols returns, for a row-major rows×cols matrix a (leading dimension
// ld ≥ cols), the infinity norm of each column: max_i |a[i][j]| for each j.
// Used by the KKT-residual testable property (§8 property 4), which is
// stated as a columnwise infinity norm.
func InfNormCols(a []float64, rows, cols, ld int) []float64 {
	out := make([]float64, cols)
	for i := 0; i < rows; i++ {
		row := a[i*ld : i*ld+cols]
		for j, v := range row {
			if m := math.Abs(v); m > out[j] {
				out[j] = m
			}
		}
	}
	return out
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
