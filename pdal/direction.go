// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdal

import "github.com/trajopt/pdalddp/linalg"

// solveDirection is §4.5: given the gains produced by a backward sweep, it
// materializes the full primal-dual trajectory increment into ws.pdStep
// (and ws.pdStepTerm when a terminal constraint is present) by solving the
// small initial-state KKT system and then forward-substituting through
// ws.gains, given the accepted trajectory xs and multipliers lams and the
// scalar mu used by the just-completed backward sweep.
func solveDirection(p *Problem, ws *Workspace, xs, lams [][]float64, mu float64) bool {
	ndx0 := p.Stages[0].X.TangentDim()
	ndual0 := p.InitSet.Dim()
	kdim := ndx0 + ndual0

	K := ws.kktA[:kdim*kdim]
	clear(K)
	rhs := ws.kktRHS[:kdim]
	clear(rhs)

	V0 := ws.valueParams[0]
	for i := 0; i < ndx0; i++ {
		for j := 0; j < ndx0; j++ {
			K[i*kdim+j] = V0.Vxx()[i*V0.LD()+j]
		}
		K[i*kdim+i] += ws.xreg
	}
	for i := 0; i < ndual0; i++ {
		K[(ndx0+i)*kdim+(ndx0+i)] -= mu
	}
	// Initial-state residual Jacobian w.r.t. dx_0 is the identity (the
	// retraction Jacobian at a zero perturbation).
	for i := 0; i < ndx0 && i < ndual0; i++ {
		K[(ndx0+i)*kdim+i] = 1
		K[i*kdim+(ndx0+i)] = 1
	}

	c0 := make([]float64, len(xs[0]))
	p.Stages[0].X.Difference(p.X0, xs[0], c0)
	z0 := make([]float64, ndual0)
	for i := 0; i < ndual0; i++ {
		z0[i] = ws.proxLams[0][i] + c0[i]/mu
	}
	p.InitSet.NormalConeProjection(z0, ws.lamsPlus[0])
	for i := 0; i < ndual0; i++ {
		ws.lamsPD[0][i] = 2*ws.lamsPlus[0][i] - lams[0][i]
	}

	vx := V0.Vx()
	for i := 0; i < ndx0; i++ {
		rhs[i] = vx[i]
	}
	for i := 0; i < ndual0; i++ {
		rhs[ndx0+i] = mu * (ws.lamsPlus[0][i] - lams[0][i])
	}

	linalg.Symmetrize(K, kdim, kdim)
	fac, ok := linalg.Factorize(K, kdim, kdim)
	if !ok {
		return false
	}
	fac.Solve(rhs, 1, 1)
	for i := range ws.pdStep[0] {
		ws.pdStep[0][i] = -rhs[i]
	}

	n := p.N()
	for k := 0; k < n; k++ {
		lay := p.Layout(k)
		dx := dxSegment(p, ws, k)
		G := ws.gains[k]
		ldG := lay.ndx + 1
		out := ws.pdStep[k+1]
		rows := lay.nprim + lay.ndual
		for i := 0; i < rows; i++ {
			s := G[i*ldG+0]
			for j := 0; j < lay.ndx; j++ {
				s += G[i*ldG+1+j] * dx[j]
			}
			out[i] = s
		}
	}

	if p.HasTerminalConstraint() {
		tl := p.TerminalLayout()
		dxN := dxSegment(p, ws, n)
		G := ws.gains[n]
		ldG := tl.ndx + 1
		for i := 0; i < tl.ndual; i++ {
			s := G[i*ldG+0]
			for j := 0; j < tl.ndx; j++ {
				s += G[i*ldG+1+j] * dxN[j]
			}
			ws.pdStepTerm[i] = s
		}
	}

	return true
}

// dxSegment returns the dx_k tangent segment within ws.pdStep, accounting
// for the two different layouts pdStep[0] and pdStep[k>0] use.
func dxSegment(p *Problem, ws *Workspace, k int) []float64 {
	if k == 0 {
		return ws.pdStep[0][:p.Stages[0].X.TangentDim()]
	}
	prevLay := p.Layout(k - 1)
	return ws.pdStep[k][prevLay.nu : prevLay.nu+prevLay.ndy]
}

// duSegment returns du_{k} (k < N) within ws.pdStep[k+1].
func duSegment(p *Problem, ws *Workspace, k int) []float64 {
	lay := p.Layout(k)
	return ws.pdStep[k+1][:lay.nu]
}

// dlamSegment returns dλ_{k+1} within ws.pdStep[k+1].
func dlamSegment(p *Problem, ws *Workspace, k int) []float64 {
	lay := p.Layout(k)
	return ws.pdStep[k+1][lay.nu+lay.ndy:]
}
