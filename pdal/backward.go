// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdal

import (
	"github.com/trajopt/pdalddp/cone"
	"github.com/trajopt/pdalddp/linalg"
)

// backwardPass carries the scalars the backward sweep needs alongside the
// problem and workspace it mutates (§4.4). A fresh value is built by
// innerLoop for every Newton iteration; it holds no state across calls.
type backwardPass struct {
	problem *Problem
	ws      *Workspace
	mu, rho, xreg float64

	proxDx []float64 // flattened per-node state prox differences, recomputed each call
	proxDu []float64 // flattened per-stage control prox differences
	proxDxOff, proxDuOff []int
}

// run executes computeTerminalValue followed by computeGains from k=N-1
// down to 0 (§4.4). It returns false the first time a stage's KKT
// factorization reports a non-regular pivot, leaving xreg untouched — the
// caller (innerLoop) raises xreg and retries the whole sweep.
func (bp *backwardPass) run(xs, us, lams [][]float64) bool {
	bp.cacheProxDifferences(xs, us)
	bp.computeTerminalValue(xs, lams)
	for k := bp.problem.N() - 1; k >= 0; k-- {
		if !bp.computeGains(k, xs, us, lams) {
			return false
		}
	}
	return true
}

func (bp *backwardPass) cacheProxDifferences(xs, us [][]float64) {
	p, ws := bp.problem, bp.ws
	n := p.N()
	bp.proxDxOff = make([]int, n+1)
	off := 0
	var dxAll []float64
	for k := 0; k <= n; k++ {
		bp.proxDxOff[k] = off
		off += p.stateTangentDim(k)
	}
	dxAll = make([]float64, off)
	for k := 0; k <= n; k++ {
		seg := dxAll[bp.proxDxOff[k] : bp.proxDxOff[k]+p.stateTangentDim(k)]
		p.stateManifold(k).Difference(ws.proxXs[k], xs[k], seg)
	}
	bp.proxDx = dxAll

	bp.proxDuOff = make([]int, n)
	off = 0
	for k := 0; k < n; k++ {
		bp.proxDuOff[k] = off
		off += p.Stages[k].U.TangentDim()
	}
	duAll := make([]float64, off)
	for k := 0; k < n; k++ {
		seg := duAll[bp.proxDuOff[k] : bp.proxDuOff[k]+p.Stages[k].U.TangentDim()]
		p.Stages[k].U.Difference(ws.proxUs[k], us[k], seg)
	}
	bp.proxDu = duAll
}

func (bp *backwardPass) proxDxAt(k int) []float64 {
	return bp.proxDx[bp.proxDxOff[k] : bp.proxDxOff[k]+bp.problem.stateTangentDim(k)]
}

func (bp *backwardPass) proxDuAt(k int) []float64 {
	return bp.proxDu[bp.proxDuOff[k] : bp.proxDuOff[k]+bp.problem.Stages[k].U.TangentDim()]
}

// computeTerminalValue is step 1 of §4.4.
func (bp *backwardPass) computeTerminalValue(xs, lams [][]float64) {
	p, ws := bp.problem, bp.ws
	n := p.N()
	ndx := p.TerminalX.TangentDim()
	V := ws.valueParams[n]
	V.Reset()

	grad := ws.costGrad[:ndx]
	hess := ws.costHess[:ndx*ndx]
	clear(grad)
	clear(hess)
	val := p.TerminalCost.Evaluate(xs[n], nil, grad, hess)
	V.SetV(val)
	copy(V.Vx(), grad)
	copyBlock(V.Vxx(), V.LD(), hess, ndx, ndx, ndx)

	if bp.rho > 0 {
		dx := bp.proxDxAt(n)
		V.SetV(V.V() + 0.5*bp.rho*sumSquares(dx))
		vx := V.Vx()
		for i := range vx {
			vx[i] += bp.rho * dx[i]
		}
		vxx, ld := V.Vxx(), V.LD()
		for i := 0; i < ndx; i++ {
			vxx[i*ld+i] += bp.rho
		}
	}

	if p.HasTerminalConstraint() {
		tc := p.TerminalConstraint
		d := tc.Dim()
		cv := ws.conVal[:d]
		Jx := ws.conJx[:d*ndx]
		vhp := ws.vhpScratch[:ndx*ndx]
		clear(vhp)
		tc.Evaluate(xs[n], nil, lams[n+1], cv, Jx, nil, vhp)

		z := make([]float64, d)
		for i := 0; i < d; i++ {
			z[i] = ws.proxLams[n+1][i] + cv[i]/bp.mu
		}
		composed := append([]float64(nil), Jx...)
		tc.Set().ApplyNormalConeProjectionJacobian(z, composed, ndx)
		tc.Set().NormalConeProjection(z, ws.lamsPlus[n+1])
		for i := 0; i < d; i++ {
			ws.lamsPD[n+1][i] = 2*ws.lamsPlus[n+1][i] - lams[n+1][i]
		}

		G := ws.gains[n]
		ldG := ndx + 1
		for i := 0; i < d; i++ {
			G[i*ldG+0] = ws.lamsPlus[n+1][i] - lams[n+1][i]
			for j := 0; j < ndx; j++ {
				G[i*ldG+1+j] = composed[i*ndx+j] / bp.mu
			}
		}

		vx, vxx, ld := V.Vx(), V.Vxx(), V.LD()
		for i := 0; i < ndx; i++ {
			s := 0.0
			for r := 0; r < d; r++ {
				s += composed[r*ndx+i] * ws.lamsPlus[n+1][r]
			}
			vx[i] += s
		}
		for i := 0; i < ndx; i++ {
			for j := 0; j < ndx; j++ {
				s := vhp[i*ndx+j]
				for r := 0; r < d; r++ {
					s += composed[r*ndx+i] * G[r*ldG+1+j]
				}
				vxx[i*ld+j] += s
			}
		}

		ws.dualInfeasByStage[n] = linalg.InfNorm(ws.lamsPlus[n+1])
	} else {
		ws.dualInfeasByStage[n] = 0
	}

	linalg.Symmetrize(V.Vxx(), ndx, V.LD())
}

// computeGains is step 2 of §4.4, executed for one stage k. It returns false
// if the KKT factorization reports a non-regular pivot.
func (bp *backwardPass) computeGains(k int, xs, us, lams [][]float64) bool {
	p, ws := bp.problem, bp.ws
	lay := p.Layout(k)
	ndx, nu, ndy, ndual, nprim := lay.ndx, lay.nu, lay.ndy, lay.ndual, lay.nprim

	Q := ws.qParams[k]
	Q.Reset()
	st := p.Stages[k]

	grad := ws.costGrad[:ndx+nu]
	hess := ws.costHess[:(ndx+nu)*(ndx+nu)]
	clear(grad)
	clear(hess)
	val := st.Cost.Evaluate(xs[k], us[k], grad, hess)
	Q.SetQ(2 * val)

	qg, qh, qld := Q.Grad(), Q.Hess(), Q.HessLD()
	copy(qg[:ndx+nu], grad)
	for i := 0; i < ndx+nu; i++ {
		copy(qh[i*qld:i*qld+ndx+nu], hess[i*(ndx+nu):i*(ndx+nu)+ndx+nu])
	}

	if bp.rho > 0 {
		dx, du := bp.proxDxAt(k), bp.proxDuAt(k)
		for i := 0; i < ndx; i++ {
			qg[i] += bp.rho * dx[i]
			qh[i*qld+i] += bp.rho
		}
		for i := 0; i < nu; i++ {
			qg[ndx+i] += bp.rho * du[i]
			qh[(ndx+i)*qld+(ndx+i)] += bp.rho
		}
	}

	Vnext := ws.valueParams[k+1]
	copy(Q.GradY(), Vnext.Vx())
	for i := 0; i < ndy; i++ {
		for j := 0; j < ndy; j++ {
			qh[(ndx+nu+i)*qld+(ndx+nu+j)] += Vnext.Vxx()[i*Vnext.LD()+j]
		}
	}

	// K and RHS, reused from the single KKT slab.
	kdim := nprim + ndual
	K := ws.kktA[:kdim*kdim]
	clear(K)
	RHS := ws.kktRHS[:kdim*(ndx+1)]
	clear(RHS)
	ldR := ndx + 1

	// H = Q.Hess() submatrix at (u,y)x(u,y), contiguous since UOff,YOff are
	// adjacent in the [x|u|y] block order.
	uOff := Q.UOff()
	for i := 0; i < nprim; i++ {
		for j := 0; j < nprim; j++ {
			K[i*kdim+j] = qh[(uOff+i)*qld+(uOff+j)]
		}
		K[i*kdim+i] += bp.xreg
	}
	for i := 0; i < ndual; i++ {
		K[(nprim+i)*kdim+(nprim+i)] -= bp.mu
	}

	// RHS column 0, primal rows: Q.grad at (u,y).
	for i := 0; i < nprim; i++ {
		RHS[i*ldR+0] = qg[uOff+i]
	}
	// RHS extra ndx columns, primal rows: [Qxu^T ; Qxy^T].
	for i := 0; i < nu; i++ {
		for j := 0; j < ndx; j++ {
			RHS[i*ldR+1+j] = qh[j*qld+(uOff+i)]
		}
	}
	for i := 0; i < ndy; i++ {
		for j := 0; j < ndx; j++ {
			RHS[(nu+i)*ldR+1+j] = qh[j*qld+(uOff+nu+i)]
		}
	}

	// Virtual constraint 0 is the dynamics equality; constraints
	// 1..len(Constraints) are the user-supplied ones.
	dualRow := nprim
	{
		y := make([]float64, p.stateDim(k+1))
		Jx := ws.conJx[:ndy*ndx]
		Ju := ws.conJu[:ndy*nu]
		st.Dynamics.Evaluate(xs[k], us[k], y, Jx, Ju)
		c := make([]float64, ndy)
		p.stateManifold(k + 1).Difference(xs[k+1], y, c)

		lamSeg := lams[k+1][:ndy]
		proxLamSeg := ws.proxLams[k+1][:ndy]
		z := make([]float64, ndy)
		for i := range z {
			z[i] = proxLamSeg[i] + c[i]/bp.mu
		}
		set := cone.Equality(ndy)
		// J = [Ju | -I]; applying the equality set's Jacobian composer is a
		// no-op, so J is used as-is.
		set.NormalConeProjection(z, ws.lamsPlus[k+1][:ndy])
		for i := 0; i < ndy; i++ {
			ws.lamsPD[k+1][i] = 2*ws.lamsPlus[k+1][i] - lamSeg[i]
		}

		vhp := ws.vhpScratch[:(ndx+nu)*(ndx+nu)]
		clear(vhp)
		st.Dynamics.VectorHessianProduct(xs[k], us[k], lamSeg, vhp)
		for i := 0; i < ndx+nu; i++ {
			for j := 0; j < ndx+nu; j++ {
				qh[i*qld+j] += vhp[i*(ndx+nu)+j]
			}
		}
		for i := 0; i < nu; i++ {
			s := 0.0
			for r := 0; r < ndy; r++ {
				s += Ju[r*nu+i] * lamSeg[r]
			}
			qg[ndx+i] += s
		}
		for i := 0; i < ndx; i++ {
			s := 0.0
			for r := 0; r < ndy; r++ {
				s += Jx[r*ndx+i] * lamSeg[r]
			}
			qg[i] += s
		}
		for i := 0; i < ndy; i++ {
			qg[ndx+nu+i] += -lamSeg[i]
		}

		for r := 0; r < ndy; r++ {
			for c := 0; c < nu; c++ {
				K[(dualRow+r)*kdim+c] = Ju[r*nu+c]
				K[c*kdim+(dualRow+r)] = Ju[r*nu+c]
			}
			K[(dualRow+r)*kdim+(nu+r)] = -1
			K[(nu+r)*kdim+(dualRow+r)] = -1
			RHS[(dualRow+r)*ldR+0] = bp.mu * (ws.lamsPlus[k+1][r] - lamSeg[r])
			for j := 0; j < ndx; j++ {
				RHS[(dualRow+r)*ldR+1+j] = Jx[r*ndx+j]
			}
		}
		dualRow += ndy
	}

	pos := ndy
	for _, c := range st.Constraints {
		d := c.Dim()
		cv := ws.conVal[:d]
		Jx := ws.conJx[:d*ndx]
		Ju := ws.conJu[:d*nu]
		vhp := ws.vhpScratch[:(ndx+nu)*(ndx+nu)]
		clear(vhp)
		lamSeg := lams[k+1][pos : pos+d]
		c.Evaluate(xs[k], us[k], lamSeg, cv, Jx, Ju, vhp)

		proxLamSeg := ws.proxLams[k+1][pos : pos+d]
		z := make([]float64, d)
		for i := 0; i < d; i++ {
			z[i] = proxLamSeg[i] + cv[i]/bp.mu
		}
		c.Set().ApplyNormalConeProjectionJacobian(z, Jx, ndx) // composes both blocks independently below
		composedJu := append([]float64(nil), Ju...)
		c.Set().ApplyNormalConeProjectionJacobian(z, composedJu, nu)
		c.Set().NormalConeProjection(z, ws.lamsPlus[k+1][pos:pos+d])
		for i := 0; i < d; i++ {
			ws.lamsPD[k+1][pos+i] = 2*ws.lamsPlus[k+1][pos+i] - lamSeg[i]
		}

		for i := 0; i < ndx+nu; i++ {
			for j := 0; j < ndx+nu; j++ {
				qh[i*qld+j] += vhp[i*(ndx+nu)+j]
			}
		}
		for i := 0; i < nu; i++ {
			s := 0.0
			for r := 0; r < d; r++ {
				s += composedJu[r*nu+i] * lamSeg[r]
			}
			qg[ndx+i] += s
		}
		for i := 0; i < ndx; i++ {
			s := 0.0
			for r := 0; r < d; r++ {
				s += Jx[r*ndx+i] * lamSeg[r]
			}
			qg[i] += s
		}

		for r := 0; r < d; r++ {
			for cc := 0; cc < nu; cc++ {
				K[(dualRow+r)*kdim+cc] = composedJu[r*nu+cc]
				K[cc*kdim+(dualRow+r)] = composedJu[r*nu+cc]
			}
			RHS[(dualRow+r)*ldR+0] = bp.mu * (ws.lamsPlus[k+1][pos+r] - lamSeg[r])
			for j := 0; j < ndx; j++ {
				RHS[(dualRow+r)*ldR+1+j] = Jx[r*ndx+j]
			}
		}
		dualRow += d
		pos += d
	}

	linalg.Symmetrize(K, kdim, kdim)
	fac, ok := linalg.Factorize(K, kdim, kdim)
	if !ok {
		return false
	}

	rhsOrig := append([]float64(nil), RHS...)
	fac.Solve(RHS, ndx+1, ldR)
	G := ws.gains[k]
	for i := range RHS {
		G[i] = -RHS[i]
	}

	ws.innerCriterionByStage[k+1] = linalg.InfNormCols(rhsOrig, kdim, 1, ldR)[0]
	duRaw := ws.costGrad[:nu] // scratch reuse; safe, cost buffers already consumed above
	for i := 0; i < nu; i++ {
		duRaw[i] = qg[ndx+i] - bp.rho*bp.proxDuAt(k)[i]
	}
	dyRaw := ws.costHess[:ndy]
	nextDx := bp.proxDxAt(k + 1)
	for i := 0; i < ndy; i++ {
		dyRaw[i] = qg[ndx+nu+i] - bp.rho*nextDx[i]
	}
	du := linalg.InfNorm(duRaw)
	dy := linalg.InfNorm(dyRaw)
	dual := du
	if dy > dual {
		dual = dy
	}
	// Slot N already holds the terminal-constraint contribution written by
	// computeTerminalValue; keep the larger of the two.
	if k+1 == p.N() && ws.dualInfeasByStage[k+1] > dual {
		dual = ws.dualInfeasByStage[k+1]
	}
	ws.dualInfeasByStage[k+1] = dual

	// V_k = q_{xx-block} + RHS_orig^T G_k (Schur complement).
	V := ws.valueParams[k]
	V.Reset()
	V.SetV(Q.Q())
	copy(V.Vx(), qg[:ndx])
	ld := V.LD()
	for i := 0; i < ndx; i++ {
		for j := 0; j < ndx; j++ {
			V.Vxx()[i*ld+j] += qh[i*qld+j]
		}
	}
	for i := 0; i <= ndx; i++ {
		for j := 0; j <= ndx; j++ {
			s := 0.0
			for r := 0; r < kdim; r++ {
				s += rhsOrig[r*ldR+i] * G[r*ldR+j]
			}
			V.Data[i*ld+j] += s
		}
	}
	linalg.Symmetrize(V.Vxx(), ndx, ld)
	return true
}

func copyBlock(dst []float64, dstLD int, src []float64, rows, cols, srcLD int) {
	for i := 0; i < rows; i++ {
		copy(dst[i*dstLD:i*dstLD+cols], src[i*srcLD:i*srcLD+cols])
	}
}
