// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdal

// tryStep is §4.6: produce a line-search candidate at step size alpha by
// retracting the current trajectory along the primal-dual direction stored
// in ws.pdStep. Multipliers live in a vector space and are updated by plain
// addition, no retraction.
func tryStep(p *Problem, ws *Workspace, alpha float64) {
	n := p.N()
	dx0 := ws.pdStep[0][:p.Stages[0].X.TangentDim()]
	scaledStep(ws.scratchDx(p.Stages[0].X.TangentDim()), dx0, alpha)
	p.Stages[0].X.Integrate(ws.xs[0], ws.scratchDx(p.Stages[0].X.TangentDim()), ws.trialXs[0])

	dlam0 := ws.pdStep[0][p.Stages[0].X.TangentDim():]
	addScaled(ws.trialLams[0], ws.lams[0], dlam0, alpha)

	for k := 0; k < n; k++ {
		du := duSegment(p, ws, k)
		sdu := ws.scratchDu(p.Stages[k].U.TangentDim())
		scaledStep(sdu, du, alpha)
		p.Stages[k].U.Integrate(ws.us[k], sdu, ws.trialUs[k])

		dlam := dlamSegment(p, ws, k)
		addScaled(ws.trialLams[k+1], ws.lams[k+1], dlam, alpha)
	}
	for k := 1; k <= n; k++ {
		dx := dxSegment(p, ws, k)
		sdx := ws.scratchDx(p.stateTangentDim(k))
		scaledStep(sdx, dx, alpha)
		p.stateManifold(k).Integrate(ws.xs[k], sdx, ws.trialXs[k])
	}

	if p.HasTerminalConstraint() {
		addScaled(ws.trialLams[n+1], ws.lams[n+1], ws.pdStepTerm, alpha)
	}
}

func scaledStep(out, dx []float64, alpha float64) {
	copy(out, dx)
	dscal(alpha, out)
}

func addScaled(out, base, delta []float64, alpha float64) {
	copy(out, base)
	daxpy(alpha, delta, out)
}

// scratchDx/scratchDu return a reusable scratch buffer of at least n
// entries, growing it lazily; tryStep calls them at most once per node per
// invocation, so this does not defeat the intent of a bounded, reused
// workspace even though the buffer can grow once on the first call.
func (w *Workspace) scratchDx(n int) []float64 {
	if len(w.dxScratch) < n {
		w.dxScratch = make([]float64, n)
	}
	return w.dxScratch[:n]
}

func (w *Workspace) scratchDu(n int) []float64 {
	if len(w.duScratch) < n {
		w.duScratch = make([]float64, n)
	}
	return w.duScratch[:n]
}
