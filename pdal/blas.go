// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdal

import "math"

// daxpy, ddot, dscal, and dnrm2 are unit-stride specializations of the
// teacher's slsqp.blas helpers, kept for the tight inner loops of the merit
// function, trial step, and line search — the places a mat.VecDense
// allocation per call would be wasteful. The named matrices (the KKT slab,
// value/Q-store Hessians) are raw slices too, handled by explicit loops and
// package linalg; gonum/mat appears only in the reference models of
// models.go.

// daxpy computes dy += da*dx in place, unit stride.
func daxpy(da float64, dx, dy []float64) {
	if da == 0 {
		return
	}
	n := len(dx)
	m := n % 4
	for i := 0; i < m; i++ {
		dy[i] += da * dx[i]
	}
	for i := m; i < n; i += 4 {
		x := dx[i : i+4 : i+4]
		y := dy[i : i+4 : i+4]
		y[0] += da * x[0]
		y[1] += da * x[1]
		y[2] += da * x[2]
		y[3] += da * x[3]
	}
}

// ddot computes the dot product of two equal-length vectors, unit stride.
func ddot(dx, dy []float64) float64 {
	n := len(dx)
	m := n % 5
	dot := 0.0
	for i := 0; i < m; i++ {
		dot += dx[i] * dy[i]
	}
	for i := m; i < n; i += 5 {
		x := dx[i : i+5 : i+5]
		y := dy[i : i+5 : i+5]
		dot += x[0]*y[0] + x[1]*y[1] + x[2]*y[2] + x[3]*y[3] + x[4]*y[4]
	}
	return dot
}

// dscal scales dx by da in place, unit stride.
func dscal(da float64, dx []float64) {
	n := len(dx)
	m := n % 5
	for i := 0; i < m; i++ {
		dx[i] *= da
	}
	for i := m; i < n; i += 5 {
		d := dx[i : i+5 : i+5]
		d[0] *= da
		d[1] *= da
		d[2] *= da
		d[3] *= da
		d[4] *= da
	}
}

// dnrm2 computes the scaled sum-of-squares Euclidean norm of x, guarding
// against overflow/underflow the way the teacher's slsqp.dnrm2 does.
func dnrm2(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return math.Abs(x[0])
	}
	scale, ssq := 0.0, 1.0
	for _, xi := range x {
		if absxi := math.Abs(xi); absxi > 0 {
			if scale < absxi {
				s := scale / absxi
				ssq = 1 + ssq*s*s
				scale = absxi
			} else {
				s := absxi / scale
				ssq += s * s
			}
		}
	}
	return scale * math.Sqrt(ssq)
}
