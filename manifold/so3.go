// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifold

import "math"

// SO3 is the group of 3×3 rotation matrices. A point is a row-major 3×3
// orthogonal matrix (9 entries); the tangent space is the body-frame angular
// velocity ℝ³. This is the canonical non-Euclidean manifold named in §4.1:
// Integrate is the Lie-group exponential retraction and Difference its
// logarithmic inverse, both exact to machine epsilon.
type SO3 struct{}

// Dim is 9 (a row-major 3×3 matrix).
func (SO3) Dim() int { return 9 }

// TangentDim is 3 (the body angular-velocity twist).
func (SO3) TangentDim() int { return 3 }

// Neutral writes the 3×3 identity matrix into out.
func (SO3) Neutral(out []float64) {
	setIdentity(3, out)
}

// Integrate computes out = x · Exp(dx), the right-trivialized exponential
// retraction. Exp(0) == I exactly, so Integrate(x, 0) == x to machine epsilon.
func (SO3) Integrate(x, dx, out []float64) {
	var expDx [9]float64
	expSO3(dx, expDx[:])
	matMul3(x, expDx[:], out)
}

// Difference computes out = Log(xᵀ·y), the tangent vector at x that
// integrates (via the right-trivialized exponential) to y.
func (SO3) Difference(x, y, out []float64) {
	var xt, rel [9]float64
	transpose3(x, xt[:])
	matMul3(xt[:], y, rel[:])
	logSO3(rel[:], out)
}

// expSO3 computes the Rodrigues-formula matrix exponential of the
// skew-symmetric generator of w ∈ ℝ³, writing the resulting rotation into R.
func expSO3(w, R []float64) {
	theta := math.Sqrt(w[0]*w[0] + w[1]*w[1] + w[2]*w[2])
	setIdentity(3, R)
	if theta < 1e-12 {
		// First-order expansion I + [w]× for tiny angles avoids the 0/0 in
		// sin(θ)/θ and (1-cos θ)/θ².
		addSkew(w, R, 1)
		return
	}
	sinT, cosT := math.Sin(theta), math.Cos(theta)
	a := sinT / theta
	b := (1 - cosT) / (theta * theta)
	addSkew(w, R, a)
	var K [9]float64
	skew(w, K[:])
	var K2 [9]float64
	matMul3(K[:], K[:], K2[:])
	for i := range R {
		R[i] += b * K2[i]
	}
}

// logSO3 computes the axis-angle vector w such that expSO3(w) == R, for R a
// valid rotation matrix, writing the result into w.
func logSO3(R, w []float64) {
	trace := R[0] + R[4] + R[8]
	cosT := (trace - 1) / 2
	cosT = math.Max(-1, math.Min(1, cosT))
	theta := math.Acos(cosT)
	if theta < 1e-12 {
		// dR = I + [w]× + O(θ²); recover w from the skew part directly.
		w[0] = (R[7] - R[5]) / 2
		w[1] = (R[2] - R[6]) / 2
		w[2] = (R[3] - R[1]) / 2
		return
	}
	s := theta / (2 * math.Sin(theta))
	w[0] = s * (R[7] - R[5])
	w[1] = s * (R[2] - R[6])
	w[2] = s * (R[3] - R[1])
}

func skew(w, K []float64) {
	K[0], K[1], K[2] = 0, -w[2], w[1]
	K[3], K[4], K[5] = w[2], 0, -w[0]
	K[6], K[7], K[8] = -w[1], w[0], 0
}

func addSkew(w, M []float64, scale float64) {
	var K [9]float64
	skew(w, K[:])
	for i := range M {
		M[i] += scale * K[i]
	}
}

func matMul3(a, b, out []float64) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s := 0.0
			for k := 0; k < 3; k++ {
				s += a[i*3+k] * b[k*3+j]
			}
			out[i*3+j] = s
		}
	}
}

func transpose3(a, out []float64) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[j*3+i] = a[i*3+j]
		}
	}
}
