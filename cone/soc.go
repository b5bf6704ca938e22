// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cone

import "math"

// SecondOrderCone is the Lorentz cone K = {(t, x) ∈ ℝ×ℝᵏ⁻¹ : ‖x‖₂ ≤ t}, the
// cone/complementarity case named in §4.2 — the canonical shape of a friction
// cone constraint in contact-rich trajectory optimization.
type SecondOrderCone int

// Dim returns k.
func (k SecondOrderCone) Dim() int { return int(k) }

// NormalConeProjection writes out = z - Π_K(z).
func (k SecondOrderCone) NormalConeProjection(z, out []float64) {
	n := int(k)
	proj := make([]float64, n)
	projectSOC(z[:n], proj)
	for i := 0; i < n; i++ {
		out[i] = z[i] - proj[i]
	}
}

// ApplyNormalConeProjectionJacobian left-multiplies J by D = I - DΠ_K(z),
// the generalized Jacobian of the normal-cone projection. DΠ_K is the
// standard piecewise block form of the Lorentz-cone projection derivative:
// the identity where z is strictly inside K (projection is the identity, so
// D = 0), the zero matrix where z is strictly inside -K (projection is zero,
// so D = I), and a dense (1+ (k-1))-block matrix on the boundary layer.
func (k SecondOrderCone) ApplyNormalConeProjectionJacobian(z, J []float64, ncols int) {
	n := int(k)
	z0, z1 := z[0], z[1:n]
	r := norm2(z1)

	switch {
	case r <= z0:
		// Fully inside K: Π_K(z) = z, so the normal-cone projection is
		// identically zero and its Jacobian composition kills J.
		clear(J[:n*ncols])
		return
	case r <= -z0:
		// Fully inside -K (polar cone): Π_K(z) = 0, so the normal-cone
		// projection is the identity and J passes through unchanged.
		return
	}

	u := make([]float64, n-1)
	if r > 1e-14 {
		for i, v := range z1 {
			u[i] = v / r
		}
	}
	coef := z0 / r

	dNormal := make([]float64, n*n)
	for i := 0; i < n; i++ {
		dNormal[i*n+i] = 1
	}
	// Subtract the dense DΠ_K block.
	dNormal[0] -= 0.5
	for j := 0; j < n-1; j++ {
		dNormal[1+j] -= 0.5 * u[j]
		dNormal[(1+j)*n] -= 0.5 * u[j]
	}
	for i := 0; i < n-1; i++ {
		for j := 0; j < n-1; j++ {
			ident := 0.0
			if i == j {
				ident = 1
			}
			dNormal[(1+i)*n+(1+j)] -= 0.5 * (ident + coef*(ident-u[i]*u[j]))
		}
	}

	newJ := make([]float64, n*ncols)
	for i := 0; i < n; i++ {
		for c := 0; c < ncols; c++ {
			s := 0.0
			for kk := 0; kk < n; kk++ {
				s += dNormal[i*n+kk] * J[kk*ncols+c]
			}
			newJ[i*ncols+c] = s
		}
	}
	copy(J[:n*ncols], newJ)
}

func projectSOC(z, out []float64) {
	n := len(z)
	z0, z1 := z[0], z[1:]
	r := norm2(z1)
	switch {
	case r <= z0:
		copy(out, z)
	case r <= -z0:
		clear(out[:n])
	default:
		s := (z0 + r) / 2
		out[0] = s
		if r > 1e-14 {
			for i, v := range z1 {
				out[1+i] = s * v / r
			}
		}
	}
}

func norm2(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}
