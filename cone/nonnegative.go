// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cone

// NonNegative is the nonpositive-orthant constraint {z ≤ 0} ⊂ ℝᵏ, used for
// inequality constraints written as c(x,u) ≤ 0. Its polar cone is the
// nonnegative orthant, so the normal-cone projection is the componentwise
// positive part.
type NonNegative int

// Dim returns k.
func (k NonNegative) Dim() int { return int(k) }

// NormalConeProjection writes out[i] = max(z[i], 0).
func (k NonNegative) NormalConeProjection(z, out []float64) {
	for i := 0; i < int(k); i++ {
		if z[i] > 0 {
			out[i] = z[i]
		} else {
			out[i] = 0
		}
	}
}

// ApplyNormalConeProjectionJacobian zeroes the rows of J whose component is
// inactive (z[i] <= 0), since d/dz max(z,0) is 1 where z>0 and 0 (a valid
// subgradient) where z<=0.
func (k NonNegative) ApplyNormalConeProjectionJacobian(z, J []float64, ncols int) {
	for i := 0; i < int(k); i++ {
		if z[i] <= 0 {
			clear(J[i*ncols : (i+1)*ncols])
		}
	}
}
