// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdal

import "github.com/trajopt/pdalddp/linalg"

// innerLoop runs the Newton iteration of §2/§4.4-4.7 until the inner
// criterion drops below innerTol (or max_iters is exhausted): evaluate the
// backward pass, assemble the direction, and line-search. It returns the
// inner criterion achieved and whether it stopped without convergence,
// either because the configured iteration cap was reached or because the
// xreg retries were exhausted.
func (s *Solver) innerLoop(mu, rho, innerTol float64) (criterion float64, capped bool) {
	p, ws := s.problem, s.ws
	merit := Merit{Mode: s.Options.MultiplierUpdateMode}
	regRetries := 0

	for {
		if s.numIters >= s.Options.MaxIters {
			return criterion, true
		}

		bp := &backwardPass{problem: p, ws: ws, mu: mu, rho: rho, xreg: ws.xreg}
		ok := bp.run(ws.xs, ws.us, ws.lams)
		if !ok {
			if regRetries >= s.Options.RegMaxRetries {
				return criterion, true
			}
			regRetries++
			ws.xreg = nextReg(ws.xreg, s.Options.RegInit, s.Options.RegFactor, s.Options.RegMax)
			s.numIters++
			continue
		}

		if !solveDirection(p, ws, ws.xs, ws.lams, mu) {
			if regRetries >= s.Options.RegMaxRetries {
				return criterion, true
			}
			regRetries++
			ws.xreg = nextReg(ws.xreg, s.Options.RegInit, s.Options.RegFactor, s.Options.RegMax)
			s.numIters++
			continue
		}
		regRetries = 0

		ls := s.search(merit, mu, rho)
		acceptTrial(ws)

		criterion = maxAbs(ws.innerCriterionByStage)
		ws.dualInfeasibility = maxAbs(ws.dualInfeasByStage)
		ws.meritValue = ls.phiAlpha
		ws.trajCost = ls.trajCost
		s.numIters++

		if s.OnIteration != nil {
			s.OnIteration(IterInfo{
				AlIter: s.alIter, InnerIter: s.numIters, Alpha: ls.alpha,
				MeritValue: ls.phiAlpha, InnerCriterion: criterion,
				PrimalInfeasibility: ws.primalInfeasibility,
				DualInfeasibility:   ws.dualInfeasibility,
			})
		}
		if s.Options.Logger.enable(LogInner) {
			s.Options.Logger.log("pdal: iter=%d al=%d alpha=%g merit=%g criterion=%g\n",
				s.numIters, s.alIter, ls.alpha, ls.phiAlpha, criterion)
		}

		if criterion <= innerTol {
			return criterion, false
		}
	}
}

// run is §4.8, the AL outer loop, invoked by Solver.Run.
func (s *Solver) run() bool {
	p, ws := s.problem, s.ws
	mu := s.Options.MuInit
	rho := s.Options.RhoInit
	primTol := s.Options.TargetTol * 1e4
	innerTol := s.Options.TargetTol * 1e4
	if s.Options.PrimTolInit > 0 {
		primTol = s.Options.PrimTolInit
	}
	if s.Options.InnerTolInit > 0 {
		innerTol = s.Options.InnerTolInit
	}

	for s.alIter = 0; s.alIter < s.Options.MaxALIters; s.alIter++ {
		if s.numIters >= s.Options.MaxIters {
			break
		}

		_, capped := s.innerLoop(mu, rho, innerTol)

		primInfeas := computePrimalInfeasibility(p, ws)
		ws.primalInfeasibility = primInfeas

		copyTrajectory(ws.proxXs, ws.xs)
		copyTrajectory(ws.proxUs, ws.us)

		if primInfeas <= primTol {
			switch s.Options.MultiplierUpdateMode {
			case Newton:
				copyMultipliers(ws.proxLams, ws.lams)
			case Primal:
				copyMultipliers(ws.proxLams, ws.lamsPlus)
			case PrimalDual:
				copyMultipliers(ws.proxLams, ws.lamsPD)
			}
			primTol *= s.Options.PrimAlpha
			innerTol *= s.Options.DualAlpha

			combined := primInfeas
			if ws.dualInfeasibility > combined {
				combined = ws.dualInfeasibility
			}
			if combined <= s.Options.TargetTol {
				s.converged = true
				return true
			}
		} else {
			copyMultipliers(ws.proxLams, ws.lams)
			mu *= s.Options.MuFactor
			primTol *= s.Options.PrimBeta
			innerTol *= s.Options.DualBeta
		}

		if s.Options.RhoConditional {
			if primInfeas <= s.Options.TargetTol {
				rho *= s.Options.RhoFactor
			}
		} else {
			rho *= s.Options.RhoFactor
		}

		if innerTol < s.Options.TargetTol {
			innerTol = s.Options.TargetTol
		}
		if primTol < s.Options.TargetTol {
			primTol = s.Options.TargetTol
		}

		if s.Options.Logger.enable(LogOuter) {
			s.Options.Logger.log("pdal: al_cycle=%d mu=%g rho=%g prim_infeas=%g dual_infeas=%g\n",
				s.alIter, mu, rho, primInfeas, ws.dualInfeasibility)
		}

		if capped {
			break
		}
	}
	return false
}

func acceptTrial(ws *Workspace) {
	for i := range ws.xs {
		copy(ws.xs[i], ws.trialXs[i])
	}
	for i := range ws.us {
		copy(ws.us[i], ws.trialUs[i])
	}
	for i := range ws.lams {
		if ws.lams[i] != nil {
			copy(ws.lams[i], ws.trialLams[i])
		}
	}
}

func copyTrajectory(dst, src [][]float64) {
	for i := range src {
		copy(dst[i], src[i])
	}
}

func copyMultipliers(dst, src [][]float64) {
	for i := range src {
		if src[i] != nil {
			copy(dst[i], src[i])
		}
	}
}

func maxAbs(v []float64) float64 { return linalg.InfNorm(v) }

// nextReg implements the xreg ← max(RegInit, xreg·RegFactor) schedule.
func nextReg(cur, init, factor, max float64) float64 {
	next := cur * factor
	if next < init {
		next = init
	}
	if max > 0 && next > max {
		next = max
	}
	return next
}

// computePrimalInfeasibility is §4.9: the infinity norm, across all stages
// and the terminal node, of the per-constraint normal-cone-projection
// residual.
func computePrimalInfeasibility(p *Problem, ws *Workspace) float64 {
	m := 0.0

	c0 := make([]float64, len(ws.xs[0]))
	p.Stages[0].X.Difference(p.X0, ws.xs[0], c0)
	proj0 := make([]float64, len(c0))
	p.InitSet.NormalConeProjection(c0, proj0)
	if v := linalg.InfNorm(proj0); v > m {
		m = v
	}

	n := p.N()
	for k := 0; k < n; k++ {
		lay := p.Layout(k)
		y := make([]float64, p.stateDim(k+1))
		Jx := make([]float64, lay.ndy*lay.ndx)
		Ju := make([]float64, lay.ndy*lay.nu)
		p.Stages[k].Dynamics.Evaluate(ws.xs[k], ws.us[k], y, Jx, Ju)
		cDyn := make([]float64, lay.ndy)
		p.stateManifold(k + 1).Difference(ws.xs[k+1], y, cDyn)
		if v := linalg.InfNorm(cDyn); v > m {
			m = v
		}

		pos := lay.ndy
		for _, c := range p.Stages[k].Constraints {
			d := c.Dim()
			cv := make([]float64, d)
			c.Evaluate(ws.xs[k], ws.us[k], ws.lams[k+1][pos:pos+d], cv, nil, nil, nil)
			pos += d
			proj := make([]float64, d)
			c.Set().NormalConeProjection(cv, proj)
			if v := linalg.InfNorm(proj); v > m {
				m = v
			}
		}
	}

	if p.HasTerminalConstraint() {
		tc := p.TerminalConstraint
		d := tc.Dim()
		cv := make([]float64, d)
		tc.Evaluate(ws.xs[n], nil, ws.lams[n+1], cv, nil, nil, nil)
		proj := make([]float64, d)
		tc.Set().NormalConeProjection(cv, proj)
		if v := linalg.InfNorm(proj); v > m {
			m = v
		}
	}

	return m
}
