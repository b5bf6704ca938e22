// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdal

import "github.com/trajopt/pdalddp/manifold"

// Workspace holds every buffer the solver touches during a run, allocated
// once from the Problem's layout and reused across AL cycles and inner
// iterations (§3 "Workspace", §5 "no hot-path allocation"). Field names
// follow the original implementation's Results/Workspace split closely
// (co_state_, prox_datas, pd_step_) so the grounding in DESIGN.md stays
// legible against it.
type Workspace struct {
	problem *Problem

	// Current, trial, and proximal-center copies of the trajectory and
	// multipliers. xs/us/lams is the accepted iterate; trialXs/trialUs/
	// trialLams is overwritten by each line-search candidate; proxXs/proxUs/
	// proxLams are the (x̄,ū,λ̄) centers frozen at the start of each AL cycle.
	xs, trialXs, proxXs [][]float64
	us, trialUs, proxUs [][]float64
	lams, trialLams, proxLams [][]float64

	// Projected multiplier estimates, one segment per stage (and the
	// terminal segment at index N+1 if present): λ⁺ = Π_{C*}(λ̄+c/μ) and
	// λ_pd = 2λ⁺-λ.
	lamsPlus, lamsPD [][]float64

	valueParams []*ValueStore // length N+1
	qParams     []*QStore     // length N

	gains [][]float64 // length N+1; gains[N] is the terminal gain

	// pdStep[0] is (dx_0, dλ_0); pdStep[k+1] for k=0..N-1 is (du_k, dx_{k+1},
	// dλ_{k+1}), per §4.5. pdStepTerm is dλ_{N+1} when a terminal constraint
	// is present.
	pdStep     [][]float64
	pdStepTerm []float64

	// Single reusable KKT slab, sized to the largest stage (§5).
	kktA, kktRHS []float64
	maxPrim, maxDual, maxNdx int

	// Per-stage constraint scratch: values, Jacobian column blocks, and
	// vector-Hessian-product accumulators, reused stage by stage.
	conVal []float64
	conJx, conJu []float64
	vhpScratch []float64
	costGrad, costHess []float64
	dxScratch, duScratch []float64

	innerCriterionByStage []float64
	dualInfeasByStage     []float64

	xreg float64

	// Diagnostics surfaced through Results after the most recent inner
	// iteration / AL cycle.
	meritValue          float64
	trajCost            float64
	primalInfeasibility float64
	dualInfeasibility   float64
}

// NewWorkspace allocates every buffer implied by problem's layout.
func NewWorkspace(problem *Problem) *Workspace {
	n := problem.N()
	w := &Workspace{problem: problem}

	w.xs = make([][]float64, n+1)
	w.trialXs = make([][]float64, n+1)
	w.proxXs = make([][]float64, n+1)
	for k := 0; k <= n; k++ {
		dim := problem.stateDim(k)
		w.xs[k] = make([]float64, dim)
		w.trialXs[k] = make([]float64, dim)
		w.proxXs[k] = make([]float64, dim)
	}

	w.us = make([][]float64, n)
	w.trialUs = make([][]float64, n)
	w.proxUs = make([][]float64, n)
	for k := 0; k < n; k++ {
		dim := problem.Stages[k].U.Dim()
		w.us[k] = make([]float64, dim)
		w.trialUs[k] = make([]float64, dim)
		w.proxUs[k] = make([]float64, dim)
	}

	mlen := problem.MultiplierLen()
	w.lams = make([][]float64, mlen)
	w.trialLams = make([][]float64, mlen)
	w.proxLams = make([][]float64, mlen)
	w.lamsPlus = make([][]float64, mlen)
	w.lamsPD = make([][]float64, mlen)
	w.lams[0] = make([]float64, problem.InitSet.Dim())
	w.trialLams[0] = make([]float64, problem.InitSet.Dim())
	w.proxLams[0] = make([]float64, problem.InitSet.Dim())
	w.lamsPlus[0] = make([]float64, problem.InitSet.Dim())
	w.lamsPD[0] = make([]float64, problem.InitSet.Dim())
	for k := 0; k < n; k++ {
		d := problem.Layout(k).ndual
		w.lams[k+1] = make([]float64, d)
		w.trialLams[k+1] = make([]float64, d)
		w.proxLams[k+1] = make([]float64, d)
		w.lamsPlus[k+1] = make([]float64, d)
		w.lamsPD[k+1] = make([]float64, d)
	}
	if problem.HasTerminalConstraint() {
		d := problem.TerminalLayout().ndual
		w.lams[n+1] = make([]float64, d)
		w.trialLams[n+1] = make([]float64, d)
		w.proxLams[n+1] = make([]float64, d)
		w.lamsPlus[n+1] = make([]float64, d)
		w.lamsPD[n+1] = make([]float64, d)
	}

	w.valueParams = make([]*ValueStore, n+1)
	for k := 0; k <= n; k++ {
		w.valueParams[k] = NewValueStore(problem.stateTangentDim(k))
	}
	w.qParams = make([]*QStore, n)
	for k := 0; k < n; k++ {
		lay := problem.Layout(k)
		w.qParams[k] = NewQStore(lay.ndx, lay.nu, lay.ndy)
	}

	w.gains = make([][]float64, n+1)
	for k := 0; k < n; k++ {
		lay := problem.Layout(k)
		w.gains[k] = make([]float64, (lay.nprim+lay.ndual)*(lay.ndx+1))
	}
	if problem.HasTerminalConstraint() {
		tl := problem.TerminalLayout()
		w.gains[n] = make([]float64, tl.ndual*(tl.ndx+1))
	}

	w.pdStep = make([][]float64, n+1)
	w.pdStep[0] = make([]float64, problem.Stages[0].X.TangentDim()+problem.InitSet.Dim())
	for k := 0; k < n; k++ {
		lay := problem.Layout(k)
		w.pdStep[k+1] = make([]float64, lay.nu+lay.ndy+lay.ndual)
	}
	if problem.HasTerminalConstraint() {
		w.pdStepTerm = make([]float64, problem.TerminalLayout().ndual)
	}

	maxPrim, maxDual, maxNdx := problem.MaxPrimDual()
	if problem.Stages[0].X.TangentDim() > maxNdx {
		maxNdx = problem.Stages[0].X.TangentDim()
	}
	// The initial-state KKT's primal block is dx_0 alone (nprim = ndx_0),
	// a case MaxPrimDual does not cover since it only scans stage/terminal
	// layouts.
	if problem.Stages[0].X.TangentDim() > maxPrim {
		maxPrim = problem.Stages[0].X.TangentDim()
	}
	if problem.InitSet.Dim() > maxDual {
		maxDual = problem.InitSet.Dim()
	}
	kdim := maxPrim + maxDual
	w.maxPrim, w.maxDual, w.maxNdx = maxPrim, maxDual, maxNdx
	w.kktA = make([]float64, kdim*kdim)
	w.kktRHS = make([]float64, kdim*(maxNdx+1))

	w.conVal = make([]float64, maxDual)
	w.conJx = make([]float64, maxDual*maxNdx)
	w.conJu = make([]float64, maxDual*maxPrim)
	w.vhpScratch = make([]float64, (maxNdx+maxPrim)*(maxNdx+maxPrim))
	w.costGrad = make([]float64, maxNdx+maxPrim)
	w.costHess = make([]float64, (maxNdx+maxPrim)*(maxNdx+maxPrim))

	w.innerCriterionByStage = make([]float64, n+1)
	w.dualInfeasByStage = make([]float64, n+1)

	return w
}

func (p *Problem) stateDim(k int) int {
	if k == p.N() {
		return p.TerminalX.Dim()
	}
	return p.Stages[k].X.Dim()
}

func (p *Problem) stateTangentDim(k int) int {
	if k == p.N() {
		return p.TerminalX.TangentDim()
	}
	return p.Stages[k].X.TangentDim()
}

func (p *Problem) stateManifold(k int) manifold.Manifold {
	if k == p.N() {
		return p.TerminalX
	}
	return p.Stages[k].X
}

// Results holds the solver's best-so-far iterate and diagnostics (§6
// "Results"), returned by Solver.Results after Run.
type Results struct {
	NumIters             int
	Conv                 bool
	TrajCost             float64
	MeritValue           float64
	PrimalInfeasibility  float64
	DualInfeasibility    float64
	Gains                [][]float64
	Xs                   [][]float64
	Us                   [][]float64
	Lams                 [][]float64
}

// snapshot copies the workspace's accepted iterate into a fresh Results.
func (w *Workspace) snapshot() Results {
	xs := make([][]float64, len(w.xs))
	for i, x := range w.xs {
		xs[i] = append([]float64(nil), x...)
	}
	us := make([][]float64, len(w.us))
	for i, u := range w.us {
		us[i] = append([]float64(nil), u...)
	}
	lams := make([][]float64, len(w.lams))
	for i, l := range w.lams {
		if l != nil {
			lams[i] = append([]float64(nil), l...)
		}
	}
	gains := make([][]float64, len(w.gains))
	for i, g := range w.gains {
		if g != nil {
			gains[i] = append([]float64(nil), g...)
		}
	}
	return Results{
		Xs: xs, Us: us, Lams: lams, Gains: gains,
		TrajCost:            w.trajCost,
		MeritValue:          w.meritValue,
		PrimalInfeasibility: w.primalInfeasibility,
		DualInfeasibility:   w.dualInfeasibility,
	}
}
