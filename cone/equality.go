// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cone

// Equality is the zero set {0} ⊂ ℝᵏ, used for dynamics residuals and equality
// constraints (c(x,u) = 0). Its polar is all of ℝᵏ, so the normal-cone
// projection is the identity and the Jacobian composition is a no-op.
type Equality int

// Dim returns k.
func (k Equality) Dim() int { return int(k) }

// NormalConeProjection copies z into out unchanged.
func (k Equality) NormalConeProjection(z, out []float64) {
	copy(out[:k], z[:k])
}

// ApplyNormalConeProjectionJacobian is a no-op: the generalized Jacobian of
// the identity is the identity.
func (k Equality) ApplyNormalConeProjectionJacobian(z, J []float64, ncols int) {}
