// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdal

import "github.com/trajopt/pdalddp/numdiff"

// CheckGradients cross-checks a stage's analytic cost gradient and dynamics
// Jacobian against central finite differences at (x,u), returning the
// infinity norm of each mismatch. It is the entry point a caller implementing
// its own CostFunction/DynamicsFunction is expected to call during
// development (§9 design note).
func CheckGradients(cost CostFunction, dyn DynamicsFunction, x, u []float64) (costGradDiff, dynJacDiff float64) {
	costGradDiff = CheckCostGradient(cost, x, u)
	dynJacDiff = CheckDynamicsJacobian(dyn, x, u)
	return costGradDiff, dynJacDiff
}

// CheckCostGradient cross-checks a CostFunction's analytic gradient against a
// central finite difference at (x,u), returning the infinity norm of their
// difference. u may be nil for a terminal cost. It is a test/debugging aid,
// not used on the solve hot path.
func CheckCostGradient(cost CostFunction, x, u []float64) float64 {
	nx := len(x)
	nu := len(u)
	n := nx + nu

	xu := make([]float64, n)
	copy(xu, x)
	copy(xu[nx:], u)

	grad := make([]float64, n)
	hess := make([]float64, n*n)
	cost.Evaluate(x, u, grad, hess)

	fdGrad := make([]float64, n)
	spec := numdiff.JacobianSpec{
		N: n, M: 1,
		Object: func(v, y []float64) {
			xv, uv := v[:nx], []float64(nil)
			if nu > 0 {
				uv = v[nx:]
			}
			y[0] = cost.Evaluate(xv, uv, make([]float64, n), make([]float64, n*n))
		},
	}
	if err := spec.Diff(xu, fdGrad); err != nil {
		return -1
	}

	max := 0.0
	for i := range grad {
		d := grad[i] - fdGrad[i]
		if d < 0 {
			d = -d
		}
		if d > max {
			max = d
		}
	}
	return max
}

// CheckDynamicsJacobian cross-checks a DynamicsFunction's analytic Jx/Ju
// against central finite differences at (x,u), returning the infinity norm
// of their difference.
func CheckDynamicsJacobian(dyn DynamicsFunction, x, u []float64) float64 {
	nx, nu, ny := len(x), len(u), dyn.Dim()
	n := nx + nu

	Jx := make([]float64, ny*nx)
	Ju := make([]float64, ny*nu)
	y := make([]float64, ny)
	dyn.Evaluate(x, u, y, Jx, Ju)

	xu := make([]float64, n)
	copy(xu, x)
	copy(xu[nx:], u)

	// TransJac lays the result out row-major by input index: fdJac[i*ny+j] is
	// d y_j / d x_i, for i ranging over the concatenated (x,u) dims.
	fdJac := make([]float64, n*ny)
	spec := numdiff.JacobianSpec{
		N: n, M: ny,
		TransJac: true,
		Object: func(v, out []float64) {
			xv, uv := v[:nx], v[nx:]
			dyn.Evaluate(xv, uv, out, nil, nil)
		},
	}
	if err := spec.Diff(xu, fdJac); err != nil {
		return -1
	}

	max := 0.0
	cmp := func(analytic float64, row, col int) {
		fd := fdJac[col*ny+row]
		d := analytic - fd
		if d < 0 {
			d = -d
		}
		if d > max {
			max = d
		}
	}
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			cmp(Jx[i*nx+j], i, j)
		}
		for j := 0; j < nu; j++ {
			cmp(Ju[i*nu+j], i, nx+j)
		}
	}
	return max
}
