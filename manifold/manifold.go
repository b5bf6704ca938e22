// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package manifold describes the state and control spaces a trajectory
// optimization problem is defined over, and ships a small set of concrete
// spaces (flat vector spaces, the rotation group, and products of the two).
package manifold

// Manifold is a smooth space a state or control vector lives on. Tangent
// vectors at a point x live in ℝ^ndx and are mapped back onto the manifold by
// Integrate (a retraction); Difference is its local inverse.
//
// Implementations must satisfy Integrate(x, zero) == x exactly (bitwise on
// Euclidean manifolds, to machine epsilon on Lie groups).
type Manifold interface {
	// Dim returns the ambient dimension of a point representation.
	Dim() int
	// TangentDim returns the dimension of the tangent space (ndx).
	TangentDim() int
	// Neutral writes the manifold's neutral element into out.
	Neutral(out []float64)
	// Integrate retraction: out = x ⊕ dx. x has length Dim(), dx has length
	// TangentDim(), out has length Dim(). x and out may not alias.
	Integrate(x, dx, out []float64)
	// Difference: out = y ⊖ x, the tangent vector at x that integrates to y.
	// out has length TangentDim().
	Difference(x, y, out []float64)
}

// IntegrateJacobian is implemented by manifolds that can provide the
// Jacobians of Integrate with respect to its base point and tangent argument,
// for propagating Hessians through a retraction on a curved manifold. Flat
// manifolds need not implement it since the Jacobians are the identity. The
// pdal backward pass does not call it: it treats every retraction Jacobian
// as the identity.
type IntegrateJacobian interface {
	// IntegrateJacobians writes d(x⊕dx)/dx into Jx (ndx×ndx, row-major) and
	// d(x⊕dx)/ddx into Jdx (ndx×ndx, row-major).
	IntegrateJacobians(x, dx []float64, Jx, Jdx []float64)
}
