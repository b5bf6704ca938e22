// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pdal implements the proximal primal–dual augmented-Lagrangian
// differential dynamic programming (PDAL-DDP) solver: the backward Riccati-
// like recursion, the AL outer loop, and the inner Newton loop with merit-
// function line search described in the core specification. It consumes
// manifolds (package manifold) and constraint sets (package cone) through
// small interfaces and ships reference CostFunction/DynamicsFunction
// implementations sufficient to run the LQR and double-integrator scenarios
// without any external modeling package.
package pdal

import "github.com/trajopt/pdalddp/cone"

// CostFunction evaluates a stage or terminal cost and its derivatives in the
// joint (x,u) tangent space (§6 "CostFunction"). For the terminal cost, u is
// nil and grad/hess are sized to the state tangent dimension alone.
type CostFunction interface {
	// Evaluate writes the gradient (length ndx[+nu]) into grad and the
	// Hessian (row-major, leading dimension == len(grad)) into hess, and
	// returns the cost value.
	Evaluate(x, u, grad, hess []float64) (value float64)
}

// DynamicsFunction evaluates the next state and the Jacobians of the
// dynamics residual f(x_k,u_k) ⊖ x_{k+1} with respect to x and u (§6
// "DynamicsFunction"). The core treats dynamics as an equality constraint
// internal to the stage's KKT system (DESIGN.md, Open Question: dynamics
// modeling); Jy is implicitly −I and is never materialized.
type DynamicsFunction interface {
	// Dim returns the next-state tangent dimension ndx_{k+1}.
	Dim() int
	// Evaluate writes f(x,u) into y (length of the next-state manifold's
	// Dim()) and the residual Jacobians into Jx (Dim()×ndx, row-major) and
	// Ju (Dim()×nu, row-major).
	Evaluate(x, u, y, Jx, Ju []float64)
	// VectorHessianProduct accumulates λᵀ·∂²f/∂(x,u)² into vhp, a
	// (ndx+nu)×(ndx+nu) row-major buffer with leading dimension ndx+nu,
	// the full-Newton curvature term of the dynamics-as-constraint KKT
	// block. A Gauss-Newton DynamicsFunction may leave vhp untouched.
	VectorHessianProduct(x, u, lambda []float64, vhp []float64)
}

// Constraint is a user-supplied stage or terminal constraint: a function of
// the stage's (x,u) — or, for the terminal constraint, x_N alone — together
// with the convex set its value is measured against (§6, §4.2).
type Constraint interface {
	// Dim returns the constraint codomain dimension.
	Dim() int
	// Set returns the closed convex set c(x,u) is measured against.
	Set() cone.ConstraintSet
	// Evaluate writes the constraint value c(x,u) into c, its Jacobian
	// w.r.t. x into Jx (Dim()×ndx) and w.r.t. u into Ju (Dim()×nu, nil for
	// the terminal constraint), and accumulates λᵀ·∂²c/∂(x,u)² into vhp
	// ((ndx[+nu])×(ndx[+nu])), given the multiplier lambda it will be
	// contracted against. Jx, Ju, and vhp may be nil when a caller (the
	// merit function) only needs the value c; implementations must skip
	// writing to any nil buffer rather than panic.
	Evaluate(x, u, lambda, c, Jx, Ju, vhp []float64)
}

// ValueStore is the per-node value-function store of §3: a symmetric
// (ndx+1)×(ndx+1) matrix whose corner is the scalar value v, whose first
// row/column (excluding the corner) is the gradient Vx, and whose remaining
// ndx×ndx submatrix is the Hessian Vxx. It is realized as one flat row-major
// buffer — §9's "explicit sub-view descriptors" — so that Vxx can be handed
// directly to linalg.Symmetrize/Factorize via an (offset, ld) view without
// copying.
type ValueStore struct {
	Ndx  int
	Data []float64
}

// NewValueStore allocates a zeroed value store for tangent dimension ndx.
func NewValueStore(ndx int) *ValueStore {
	ld := ndx + 1
	return &ValueStore{Ndx: ndx, Data: make([]float64, ld*ld)}
}

// LD returns the leading dimension of the underlying buffer (ndx+1).
func (v *ValueStore) LD() int { return v.Ndx + 1 }

// Reset zeroes the store in place, preserving its allocation.
func (v *ValueStore) Reset() { clear(v.Data) }

// V returns the scalar value at the corner.
func (v *ValueStore) V() float64 { return v.Data[0] }

// SetV sets the scalar value at the corner.
func (v *ValueStore) SetV(val float64) { v.Data[0] = val }

// Vx returns the gradient as a contiguous length-ndx slice.
func (v *ValueStore) Vx() []float64 { return v.Data[1 : 1+v.Ndx] }

// Vxx returns the ndx×ndx Hessian submatrix view (leading dimension LD()).
// Index (i,j) of the Hessian is Vxx()[i*LD()+j].
func (v *ValueStore) Vxx() []float64 { return v.Data[v.LD()+1:] }

// QStore is the per-stage Q-function store of §3: a symmetric
// (ndx+nu+ndy+1)×(ndx+nu+ndy+1) matrix carrying q, gradient, and Hessian
// partitioned into Qxx, Qxu, Qxy, Quu, Quy, Qyy blocks, where y denotes the
// next-state tangent slot. The block order in the underlying buffer is
// [corner | x | u | y], matching ValueStore's corner-augmented convention.
type QStore struct {
	Ndx, Nu, Ndy int
	Data         []float64
}

// NewQStore allocates a zeroed Q-function store for the given tangent dims.
func NewQStore(ndx, nu, ndy int) *QStore {
	ld := 1 + ndx + nu + ndy
	return &QStore{Ndx: ndx, Nu: nu, Ndy: ndy, Data: make([]float64, ld*ld)}
}

// LD returns the leading dimension of the underlying buffer.
func (q *QStore) LD() int { return 1 + q.Ndx + q.Nu + q.Ndy }

// Reset zeroes the store in place, preserving its allocation.
func (q *QStore) Reset() { clear(q.Data) }

// Q returns the scalar value at the corner.
func (q *QStore) Q() float64 { return q.Data[0] }

// SetQ sets the scalar value at the corner.
func (q *QStore) SetQ(val float64) { q.Data[0] = val }

// XOff, UOff, YOff are the tangent-space offsets of each block within the
// Hess() submatrix (and within Grad()).
func (q *QStore) XOff() int { return 0 }
func (q *QStore) UOff() int { return q.Ndx }
func (q *QStore) YOff() int { return q.Ndx + q.Nu }

// Grad returns the full gradient (length ndx+nu+ndy) as a contiguous slice;
// GradX/GradU/GradY are the XOff/UOff/YOff-relative sub-slices.
func (q *QStore) Grad() []float64  { return q.Data[1 : 1+q.Ndx+q.Nu+q.Ndy] }
func (q *QStore) GradX() []float64 { g := q.Grad(); return g[q.XOff() : q.XOff()+q.Ndx] }
func (q *QStore) GradU() []float64 { g := q.Grad(); return g[q.UOff() : q.UOff()+q.Nu] }
func (q *QStore) GradY() []float64 { g := q.Grad(); return g[q.YOff() : q.YOff()+q.Ndy] }

// Hess returns the full (ndx+nu+ndy)×(ndx+nu+ndy) Hessian submatrix view
// (leading dimension HessLD()); named blocks are obtained by offsetting into
// it with XOff/UOff/YOff.
func (q *QStore) Hess() []float64 { return q.Data[q.LD()+1:] }

// HessLD returns the leading dimension of the Hess() view.
func (q *QStore) HessLD() int { return q.LD() }
