// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifold

// Product stacks a list of component manifolds into one: a point is the
// concatenation of the components' points, and the tangent space is the
// concatenation of their tangent spaces. Used to build composite state
// spaces such as SO3×ℝ³ for a floating base.
type Product []Manifold

// Dim is the sum of the component dimensions.
func (p Product) Dim() int {
	n := 0
	for _, m := range p {
		n += m.Dim()
	}
	return n
}

// TangentDim is the sum of the component tangent dimensions.
func (p Product) TangentDim() int {
	n := 0
	for _, m := range p {
		n += m.TangentDim()
	}
	return n
}

// Neutral writes each component's neutral element into its slot.
func (p Product) Neutral(out []float64) {
	off := 0
	for _, m := range p {
		m.Neutral(out[off : off+m.Dim()])
		off += m.Dim()
	}
}

// Integrate retracts each component independently.
func (p Product) Integrate(x, dx, out []float64) {
	xo, do, oo := 0, 0, 0
	for _, m := range p {
		m.Integrate(x[xo:xo+m.Dim()], dx[do:do+m.TangentDim()], out[oo:oo+m.Dim()])
		xo += m.Dim()
		do += m.TangentDim()
		oo += m.Dim()
	}
}

// Difference takes each component's difference independently.
func (p Product) Difference(x, y, out []float64) {
	xo, yo, oo := 0, 0, 0
	for _, m := range p {
		m.Difference(x[xo:xo+m.Dim()], y[yo:yo+m.Dim()], out[oo:oo+m.TangentDim()])
		xo += m.Dim()
		yo += m.Dim()
		oo += m.TangentDim()
	}
}
