// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cone implements the closed-convex-set abstraction constraints are
// measured against: normal-cone projection and its generalized Jacobian, as
// described in §4.2 of the core specification.
package cone

// ConstraintSet is a closed convex set C in its codomain ℝᵏ. It supports both
// the classical augmented-Lagrangian case (equalities) and the cone/
// complementarity case (inequalities, second-order cones).
type ConstraintSet interface {
	// Dim returns the codomain dimension k.
	Dim() int
	// NormalConeProjection writes the projection of z onto the polar cone C*
	// into out — the residual used to express complementarity. For an
	// equality set, out = z. For an inequality set {z ≤ 0}, out = max(z, 0)
	// componentwise. For a convex cone K, out = z - Π_K(z).
	NormalConeProjection(z, out []float64)
	// ApplyNormalConeProjectionJacobian left-multiplies J in place by the
	// (set-valued) generalized Jacobian of NormalConeProjection at z. J is
	// row-major with Dim() rows and ncols columns; rows corresponding to
	// inactive components are zeroed.
	ApplyNormalConeProjectionJacobian(z []float64, J []float64, ncols int)
}
