// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdal

import "github.com/trajopt/pdalddp/cone"

// MultiplierMode selects how the per-constraint augmented term of the PDAL
// merit (§4.3) and the outer loop's multiplier update (§4.8) use the
// projected multiplier estimate.
type MultiplierMode int

const (
	// Newton is the classical AL evaluation: the augmented term is the
	// Moreau-envelope value (μ/2)(‖λ⁺‖² − ‖λ̄‖²).
	Newton MultiplierMode = iota
	// Primal uses only the projected multiplier estimate λ⁺.
	Primal
	// PrimalDual uses λ_pd = 2λ⁺ − λ, the combination giving quadratic
	// local convergence under LICQ+SOSC.
	PrimalDual
)

func (m MultiplierMode) String() string {
	switch m {
	case Newton:
		return "NEWTON"
	case Primal:
		return "PRIMAL"
	case PrimalDual:
		return "PRIMAL_DUAL"
	default:
		return "unknown"
	}
}

// Merit evaluates the primal-dual augmented-Lagrangian merit function of
// §4.3 against a workspace's proximal centers (x̄,ū,λ̄).
type Merit struct {
	Mode MultiplierMode
}

// meritResult carries both the scalar merit value and the raw trajectory
// cost, which Results/logging need separately (§4.3: "retains the raw
// trajectory cost J separately for logging").
type meritResult struct {
	phi      float64
	trajCost float64
}

// Value evaluates Φ(xs,us,lams) using mu, rho and the proximal centers
// stored in ws (proxXs, proxUs, proxLams). It also overwrites ws.lamsPlus
// and ws.lamsPD with the estimates at the evaluated point. The backward pass
// recomputes its own; the outer loop's Primal/PrimalDual multiplier update
// reads whatever the last evaluation wrote, which is the accepted line-search
// trial.
func (m Merit) Value(p *Problem, ws *Workspace, xs, us, lams [][]float64, mu, rho float64) meritResult {
	n := p.N()
	trajCost := 0.0
	for k := 0; k < n; k++ {
		st := p.Stages[k]
		nd := st.X.TangentDim() + st.U.Dim()
		grad, hess := ws.costGrad[:nd], ws.costHess[:nd*nd]
		trajCost += st.Cost.Evaluate(xs[k], us[k], grad, hess)
	}
	termNd := p.TerminalX.TangentDim()
	trajCost += p.TerminalCost.Evaluate(xs[n], nil, ws.costGrad[:termNd], ws.costHess[:termNd*termNd])

	phi := trajCost
	if rho > 0 {
		for k := 0; k <= n; k++ {
			dx := ws.costGrad[:p.stateTangentDim(k)]
			p.stateManifold(k).Difference(ws.proxXs[k], xs[k], dx)
			phi += 0.5 * rho * sumSquares(dx)
		}
		for k := 0; k < n; k++ {
			du := make([]float64, p.Stages[k].U.TangentDim())
			p.Stages[k].U.Difference(ws.proxUs[k], us[k], du)
			phi += 0.5 * rho * sumSquares(du)
		}
	}

	// Initial-state residual: dynamics-free, the classical equality term.
	c0 := make([]float64, len(xs[0]))
	p.Stages[0].X.Difference(p.X0, xs[0], c0)
	phi += m.constraintTerm(p.InitSet, c0, ws.proxLams[0], lams[0], mu, ws.lamsPlus[0], ws.lamsPD[0])

	for k := 0; k < n; k++ {
		lay := p.Layout(k)
		offset := lay.ndy // dynamics segment occupies [0,ndy)
		cDyn := make([]float64, lay.ndy)
		y := make([]float64, p.stateDim(k+1))
		p.Stages[k].Dynamics.Evaluate(xs[k], us[k], y, ws.conJx[:lay.ndy*lay.ndx], ws.conJu[:lay.ndy*lay.nu])
		p.stateManifold(k+1).Difference(xs[k+1], y, cDyn)
		phi += m.constraintTerm(cone.Equality(lay.ndy), cDyn, ws.proxLams[k+1][:offset], lams[k+1][:offset], mu,
			ws.lamsPlus[k+1][:offset], ws.lamsPD[k+1][:offset])

		pos := offset
		for _, c := range p.Stages[k].Constraints {
			d := c.Dim()
			cv := ws.conVal[:d]
			c.Evaluate(xs[k], us[k], lams[k+1][pos:pos+d], cv, nil, nil, nil)
			phi += m.constraintTerm(c.Set(), cv, ws.proxLams[k+1][pos:pos+d], lams[k+1][pos:pos+d], mu,
				ws.lamsPlus[k+1][pos:pos+d], ws.lamsPD[k+1][pos:pos+d])
			pos += d
		}
	}

	if p.HasTerminalConstraint() {
		tc := p.TerminalConstraint
		d := tc.Dim()
		cv := make([]float64, d)
		tc.Evaluate(xs[n], nil, lams[n+1], cv, nil, nil, nil)
		phi += m.constraintTerm(tc.Set(), cv, ws.proxLams[n+1], lams[n+1], mu, ws.lamsPlus[n+1], ws.lamsPD[n+1])
	}

	return meritResult{phi: phi, trajCost: trajCost}
}

// constraintTerm computes ψ_{μ,mode}(c,λ̄,λ) and records λ⁺/λ_pd into the
// provided output slices.
func (m Merit) constraintTerm(set cone.ConstraintSet, c, lamBar, lam []float64, mu float64, lamPlusOut, lamPDOut []float64) float64 {
	d := len(c)
	z := make([]float64, d)
	for i := 0; i < d; i++ {
		z[i] = lamBar[i] + c[i]/mu
	}
	set.NormalConeProjection(z, lamPlusOut)
	for i := 0; i < d; i++ {
		lamPDOut[i] = 2*lamPlusOut[i] - lam[i]
	}
	switch m.Mode {
	case Newton:
		return 0.5 * mu * (sumSquares(lamPlusOut) - sumSquares(lamBar))
	case Primal:
		return dot(lamPlusOut, c) - 0.5*mu*sumSquaresDiff(lamPlusOut, lamBar)
	case PrimalDual:
		return dot(lamPDOut, c) - 0.5*mu*sumSquaresDiff(lamPlusOut, lamBar)
	default:
		return 0
	}
}

func sumSquares(v []float64) float64 {
	n := dnrm2(v)
	return n * n
}

func sumSquaresDiff(a, b []float64) float64 {
	d := append([]float64(nil), a...)
	daxpy(-1, b, d)
	return sumSquares(d)
}

func dot(a, b []float64) float64 { return ddot(a, b) }
