// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cone

// Box is the general closed convex set {z : Lower ≤ z ≤ Upper} componentwise,
// used for control/state box constraints such as |u| ≤ u_max (E2 in §8).
// Unlike Equality and NonNegative it is not a cone, but §4.2's normal-cone
// projection formula ẑ = z − Π_C(z) is defined for any closed convex set, not
// only cones, and that is exactly what Box implements.
type Box struct {
	Lower, Upper []float64
}

// NewBox builds a Box set from symmetric bounds [-bound[i], bound[i]].
func NewBox(bound []float64) Box {
	lo := make([]float64, len(bound))
	up := make([]float64, len(bound))
	for i, b := range bound {
		lo[i], up[i] = -b, b
	}
	return Box{Lower: lo, Upper: up}
}

// Dim returns the number of components.
func (b Box) Dim() int { return len(b.Lower) }

// NormalConeProjection writes out = z - clamp(z, Lower, Upper).
func (b Box) NormalConeProjection(z, out []float64) {
	for i := range b.Lower {
		out[i] = z[i] - clampTo(z[i], b.Lower[i], b.Upper[i])
	}
}

// ApplyNormalConeProjectionJacobian zeroes the rows where z is strictly
// inside the box (inactive); rows at or outside a bound keep J unchanged,
// matching the subgradient of z - clamp(z, l, u).
func (b Box) ApplyNormalConeProjectionJacobian(z, J []float64, ncols int) {
	for i := range b.Lower {
		if z[i] > b.Lower[i] && z[i] < b.Upper[i] {
			clear(J[i*ncols : (i+1)*ncols])
		}
	}
}

func clampTo(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
