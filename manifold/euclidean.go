// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifold

// Euclidean is the flat vector-space manifold ℝⁿ, with Dim() == TangentDim() == n.
// Integrate is ordinary vector addition, so Integrate(x, 0) == x bitwise.
type Euclidean int

// Dim returns n.
func (n Euclidean) Dim() int { return int(n) }

// TangentDim returns n.
func (n Euclidean) TangentDim() int { return int(n) }

// Neutral writes the zero vector into out.
func (n Euclidean) Neutral(out []float64) {
	clear(out[:n])
}

// Integrate computes out = x + dx.
func (n Euclidean) Integrate(x, dx, out []float64) {
	for i := 0; i < int(n); i++ {
		out[i] = x[i] + dx[i]
	}
}

// Difference computes out = y - x.
func (n Euclidean) Difference(x, y, out []float64) {
	for i := 0; i < int(n); i++ {
		out[i] = y[i] - x[i]
	}
}

// IntegrateJacobians returns the identity for both Jacobians, since addition
// in a vector space has unit sensitivity to both arguments.
func (n Euclidean) IntegrateJacobians(x, dx, Jx, Jdx []float64) {
	setIdentity(int(n), Jx)
	setIdentity(int(n), Jdx)
}

func setIdentity(n int, m []float64) {
	clear(m[:n*n])
	for i := 0; i < n; i++ {
		m[i*n+i] = 1
	}
}
