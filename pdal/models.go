// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdal

import (
	"gonum.org/v1/gonum/mat"

	"github.com/trajopt/pdalddp/cone"
	"github.com/trajopt/pdalddp/manifold"
)

// QuadraticCost implements CostFunction as the classical LQR-style running
// cost 0.5(x-xref)ᵀQ(x-xref) + 0.5(u-uref)ᵀR(u-uref) (§6 "reference
// CostFunction"). It is also usable as a terminal cost by leaving R nil.
type QuadraticCost struct {
	Q, R       *mat.SymDense
	Xref, Uref []float64
}

// Evaluate implements CostFunction.
func (c *QuadraticCost) Evaluate(x, u, grad, hess []float64) float64 {
	nx := c.Q.SymmetricDim()
	dx := mat.NewVecDense(nx, nil)
	for i := 0; i < nx; i++ {
		xi := x[i]
		if c.Xref != nil {
			xi -= c.Xref[i]
		}
		dx.SetVec(i, xi)
	}

	var qdx mat.VecDense
	qdx.MulVec(c.Q, dx)
	val := 0.5 * mat.Dot(dx, &qdx)

	ld := nx
	if c.R != nil {
		ld += c.R.SymmetricDim()
	}
	for i := 0; i < nx; i++ {
		grad[i] = qdx.AtVec(i)
	}
	for i := 0; i < nx; i++ {
		for j := 0; j < nx; j++ {
			hess[i*ld+j] = c.Q.At(i, j)
		}
	}

	if c.R == nil || u == nil {
		return val
	}

	nu := c.R.SymmetricDim()
	du := mat.NewVecDense(nu, nil)
	for i := 0; i < nu; i++ {
		ui := u[i]
		if c.Uref != nil {
			ui -= c.Uref[i]
		}
		du.SetVec(i, ui)
	}
	var rdu mat.VecDense
	rdu.MulVec(c.R, du)
	val += 0.5 * mat.Dot(du, &rdu)

	for i := 0; i < nu; i++ {
		grad[nx+i] = rdu.AtVec(i)
	}
	for i := 0; i < nu; i++ {
		for j := 0; j < nu; j++ {
			hess[(nx+i)*ld+(nx+j)] = c.R.At(i, j)
		}
	}

	return val
}

// LinearDynamics implements DynamicsFunction for the time-invariant linear
// model y = A·x + B·u (§6 "reference DynamicsFunction"), exercised by the
// double-integrator scenario of §8. Its vector-Hessian product is exactly
// zero since the model is affine, so VectorHessianProduct is a no-op and a
// Gauss-Newton backward pass sees only the first-order terms, matching
// classical discrete-time LQR.
type LinearDynamics struct {
	A, B *mat.Dense
}

// Dim implements DynamicsFunction.
func (d *LinearDynamics) Dim() int {
	r, _ := d.A.Dims()
	return r
}

// Evaluate implements DynamicsFunction.
func (d *LinearDynamics) Evaluate(x, u, y, Jx, Ju []float64) {
	ny, nx := d.A.Dims()
	_, nu := d.B.Dims()

	xv := mat.NewVecDense(nx, x)
	uv := mat.NewVecDense(nu, u)
	yv := mat.NewVecDense(ny, nil)
	yv.MulVec(d.A, xv)
	var bu mat.VecDense
	bu.MulVec(d.B, uv)
	yv.AddVec(yv, &bu)
	for i := 0; i < ny; i++ {
		y[i] = yv.AtVec(i)
	}

	if Jx != nil {
		for i := 0; i < ny; i++ {
			for j := 0; j < nx; j++ {
				Jx[i*nx+j] = d.A.At(i, j)
			}
		}
	}
	if Ju != nil {
		for i := 0; i < ny; i++ {
			for j := 0; j < nu; j++ {
				Ju[i*nu+j] = d.B.At(i, j)
			}
		}
	}
}

// VectorHessianProduct implements DynamicsFunction; affine dynamics have
// zero second derivative, so vhp is left untouched.
func (d *LinearDynamics) VectorHessianProduct(x, u, lambda, vhp []float64) {}

// ControlBoxConstraint implements Constraint as the symmetric control bound
// |u_i| ≤ Bound[i] (E2 in §8). It is linear, so its second derivative is zero
// and Evaluate leaves vhp untouched. len(Bound) must equal the stage's
// control tangent dimension, since c(x,u) = u is the identity map on u.
type ControlBoxConstraint struct {
	Bound []float64
	set   cone.ConstraintSet
}

// NewControlBoxConstraint builds a ControlBoxConstraint, precomputing its
// cone.Box set.
func NewControlBoxConstraint(bound []float64) *ControlBoxConstraint {
	return &ControlBoxConstraint{Bound: bound, set: cone.NewBox(bound)}
}

// Dim implements Constraint.
func (c *ControlBoxConstraint) Dim() int { return len(c.Bound) }

// Set implements Constraint.
func (c *ControlBoxConstraint) Set() cone.ConstraintSet { return c.set }

// Evaluate implements Constraint: c(x,u) = u, Jx = 0, Ju = I.
func (c *ControlBoxConstraint) Evaluate(x, u, lambda, cv, Jx, Ju, vhp []float64) {
	n := len(c.Bound)
	copy(cv[:n], u[:n])
	if Jx != nil {
		clear(Jx)
	}
	if Ju != nil {
		clear(Ju[:n*n])
		for i := 0; i < n; i++ {
			Ju[i*n+i] = 1
		}
	}
}

// TerminalStateEqualityConstraint implements Constraint as the terminal
// target c(x_N) = x_N ⊖ Target = 0 (E1, E4 in §8: a reachable target drives
// convergence, an unreachable one exercises Results.Conv == false).
type TerminalStateEqualityConstraint struct {
	Target []float64
	X      manifold.Manifold
}

// Dim implements Constraint.
func (c *TerminalStateEqualityConstraint) Dim() int { return c.X.TangentDim() }

// Set implements Constraint.
func (c *TerminalStateEqualityConstraint) Set() cone.ConstraintSet {
	return cone.Equality(c.X.TangentDim())
}

// Evaluate implements Constraint: c(x) = x ⊖ Target, Jx = I (exact on a
// Euclidean state manifold; a curved manifold would need the derivative of
// Difference, which this reference implementation does not attempt).
func (c *TerminalStateEqualityConstraint) Evaluate(x, u, lambda, cv, Jx, Ju, vhp []float64) {
	n := c.X.TangentDim()
	c.X.Difference(c.Target, x, cv[:n])
	if Jx != nil {
		clear(Jx[:n*n])
		for i := 0; i < n; i++ {
			Jx[i*n+i] = 1
		}
	}
}
