// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdal

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/trajopt/pdalddp/manifold"
)

// doubleIntegratorProblem builds a small unconstrained discrete-time LQR
// instance: position/velocity state, scalar acceleration control, N stages
// of a fixed-timestep double integrator, driven away from the origin by a
// nonzero initial state.
func doubleIntegratorProblem(t *testing.T, n int) (*Problem, [][]float64, [][]float64) {
	t.Helper()
	const dt = 0.1

	A := mat.NewDense(2, 2, []float64{1, dt, 0, 1})
	B := mat.NewDense(2, 1, []float64{0.5 * dt * dt, dt})
	dyn := &LinearDynamics{A: A, B: B}

	Q := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	R := mat.NewSymDense(1, []float64{0.1})
	Qn := mat.NewSymDense(2, []float64{10, 0, 0, 10})

	stages := make([]Stage, n)
	for k := range stages {
		stages[k] = Stage{
			X:        manifold.Euclidean(2),
			U:        manifold.Euclidean(1),
			Cost:     &QuadraticCost{Q: Q, R: R},
			Dynamics: dyn,
		}
	}

	p, err := NewProblem(&Problem{
		Stages:       stages,
		X0:           []float64{1, 0},
		TerminalX:    manifold.Euclidean(2),
		TerminalCost: &QuadraticCost{Q: Qn},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	xsInit := make([][]float64, n+1)
	usInit := make([][]float64, n)
	for k := range xsInit {
		xsInit[k] = []float64{1, 0}
	}
	for k := range usInit {
		usInit[k] = []float64{0}
	}
	return p, xsInit, usInit
}

func TestProblemNewValidatesDimensions(t *testing.T) {
	p, _, _ := doubleIntegratorProblem(t, 3)
	if p.N() != 3 {
		t.Fatalf("N() = %d, want 3", p.N())
	}
	lay := p.Layout(0)
	if lay.ndx != 2 || lay.nu != 1 || lay.ndy != 2 {
		t.Fatalf("unexpected layout %+v", lay)
	}
	if lay.nprim != 3 {
		t.Fatalf("nprim = %d, want 3", lay.nprim)
	}
	if lay.ndual != 2 {
		t.Fatalf("ndual = %d, want 2 (dynamics segment only, no user constraints)", lay.ndual)
	}

	if _, err := NewProblem(&Problem{}); err == nil {
		t.Fatal("New with zero stages should error")
	}
}

func TestWorkspaceSizes(t *testing.T) {
	p, _, _ := doubleIntegratorProblem(t, 4)
	ws := NewWorkspace(p)
	if len(ws.xs) != 5 {
		t.Fatalf("len(xs) = %d, want 5", len(ws.xs))
	}
	for k, x := range ws.xs {
		if len(x) != 2 {
			t.Fatalf("xs[%d] has len %d, want 2", k, len(x))
		}
	}
	if len(ws.lams) != p.MultiplierLen() {
		t.Fatalf("len(lams) = %d, want %d", len(ws.lams), p.MultiplierLen())
	}
	if ws.lams[0] == nil || len(ws.lams[0]) != 2 {
		t.Fatalf("lams[0] should have length 2 (InitSet defaults to Equality(ndx0))")
	}
}

// TestBackwardPassSymmetry checks property 3 for the value function: every
// V_k.Vxx stays symmetric after a backward sweep over the starting
// trajectory.
func TestBackwardPassSymmetry(t *testing.T) {
	p, xs, us := doubleIntegratorProblem(t, 3)
	ws := NewWorkspace(p)
	for k := range xs {
		copy(ws.xs[k], xs[k])
		copy(ws.proxXs[k], xs[k])
	}
	for k := range us {
		copy(ws.us[k], us[k])
		copy(ws.proxUs[k], us[k])
	}

	bp := &backwardPass{problem: p, ws: ws, mu: 10, rho: 1, xreg: 1e-8}
	if !bp.run(ws.xs, ws.us, ws.lams) {
		t.Fatal("backward pass reported a non-regular pivot on an LQR problem")
	}

	for k := 0; k <= p.N(); k++ {
		V := ws.valueParams[k]
		ndx := p.stateTangentDim(k)
		ld := V.LD()
		for i := 0; i < ndx; i++ {
			for j := 0; j < ndx; j++ {
				a, b := V.Vxx()[i*ld+j], V.Vxx()[j*ld+i]
				if math.Abs(a-b) > 1e-9 {
					t.Fatalf("V[%d].Vxx not symmetric at (%d,%d): %g vs %g", k, i, j, a, b)
				}
			}
		}
	}
}

// TestRunConvergesOnLQR checks property 6: an unconstrained LQR instance
// with generous tolerances converges within a handful of AL cycles.
func TestRunConvergesOnLQR(t *testing.T) {
	p, xs, us := doubleIntegratorProblem(t, 5)

	opts := DefaultOptions()
	opts.TargetTol = 1e-6
	opts.MaxIters = 200
	opts.MaxALIters = 20

	s := New(p, opts)
	conv := s.Run(xs, us, nil)
	if !conv {
		t.Fatalf("solver did not converge: results=%+v", s.Results())
	}

	res := s.Results()
	xEnd := res.Xs[p.N()]
	if math.Abs(xEnd[0]) > 0.2 || math.Abs(xEnd[1]) > 0.2 {
		t.Fatalf("terminal state did not approach the origin: %v", xEnd)
	}

	// The initial-state equality constraint must be satisfied to within the
	// converged tolerance: x_0 should equal X0 exactly, dynamics-feasible.
	for i, v := range res.Xs[0] {
		if math.Abs(v-p.X0[i]) > 1e-4 {
			t.Fatalf("x_0[%d] = %g, want %g", i, v, p.X0[i])
		}
	}
}

// TestWarmStartNeutrality checks property 7: re-running from the converged
// solution should need very few further iterations and should not move the
// iterate significantly.
func TestWarmStartNeutrality(t *testing.T) {
	p, xs, us := doubleIntegratorProblem(t, 4)
	opts := DefaultOptions()
	s := New(p, opts)
	if !s.Run(xs, us, nil) {
		t.Fatal("first run did not converge")
	}
	first := s.Results()

	if !s.Run(first.Xs, first.Us, &first) {
		t.Fatal("warm-started run did not converge")
	}
	second := s.Results()

	for k := range first.Xs {
		for i := range first.Xs[k] {
			if math.Abs(first.Xs[k][i]-second.Xs[k][i]) > 1e-6 {
				t.Fatalf("warm start moved x[%d][%d]: %g -> %g", k, i, first.Xs[k][i], second.Xs[k][i])
			}
		}
	}
	if second.NumIters > first.NumIters {
		t.Fatalf("warm-started run took more iterations (%d) than the cold run (%d)", second.NumIters, first.NumIters)
	}
}

// TestInnerCriterionVanishesAtConvergence checks property 4: the per-stage
// KKT residual norm the backward pass records as ws.innerCriterionByStage
// (the same quantity innerLoop compares against innerTol) is small once the
// solver has converged, and a fresh backward sweep at the converged iterate
// reproduces that small residual rather than some larger, stale value.
func TestInnerCriterionVanishesAtConvergence(t *testing.T) {
	p, xs, us := doubleIntegratorProblem(t, 5)
	opts := DefaultOptions()
	s := New(p, opts)
	if !s.Run(xs, us, nil) {
		t.Fatal("solver did not converge")
	}
	res := s.Results()

	ws := NewWorkspace(p)
	for k := range res.Xs {
		copy(ws.xs[k], res.Xs[k])
		copy(ws.proxXs[k], res.Xs[k])
	}
	for k := range res.Us {
		copy(ws.us[k], res.Us[k])
		copy(ws.proxUs[k], res.Us[k])
	}
	for i := range res.Lams {
		if res.Lams[i] != nil {
			copy(ws.lams[i], res.Lams[i])
			copy(ws.proxLams[i], res.Lams[i])
		}
	}
	ws.xreg = opts.RegInit

	bp := &backwardPass{problem: p, ws: ws, mu: opts.MuInit, rho: opts.RhoInit, xreg: ws.xreg}
	if !bp.run(ws.xs, ws.us, ws.lams) {
		t.Fatal("backward pass at the converged iterate reported a non-regular pivot")
	}
	if got := maxAbs(ws.innerCriterionByStage); got > 1e-3 {
		t.Fatalf("KKT residual at the converged iterate is %g, want near zero", got)
	}
}

// TestLineSearchMonotoneDescent checks property 8: the accepted step of a
// line search never increases the merit value above the Armijo bound.
func TestLineSearchMonotoneDescent(t *testing.T) {
	p, xs, us := doubleIntegratorProblem(t, 3)
	opts := DefaultOptions()
	s := New(p, opts)
	ws := s.ws
	for k := range xs {
		copy(ws.xs[k], xs[k])
		copy(ws.proxXs[k], xs[k])
	}
	for k := range us {
		copy(ws.us[k], us[k])
		copy(ws.proxUs[k], us[k])
	}
	ws.xreg = opts.RegInit

	bp := &backwardPass{problem: p, ws: ws, mu: opts.MuInit, rho: opts.RhoInit, xreg: ws.xreg}
	if !bp.run(ws.xs, ws.us, ws.lams) {
		t.Fatal("backward pass failed")
	}
	if !solveDirection(p, ws, ws.xs, ws.lams, opts.MuInit) {
		t.Fatal("solveDirection failed")
	}

	merit := Merit{Mode: opts.MultiplierUpdateMode}
	res := s.search(merit, opts.MuInit, opts.RhoInit)
	bound := res.phi0 + opts.ArmijoC1*res.alpha*res.phiPrime0
	if res.phiAlpha > bound+1e-9 {
		t.Fatalf("accepted step violates sufficient decrease: phi(alpha)=%g > bound=%g", res.phiAlpha, bound)
	}
}

func TestCheckDynamicsJacobianMatchesAnalytic(t *testing.T) {
	A := mat.NewDense(2, 2, []float64{1, 0.1, 0, 1})
	B := mat.NewDense(2, 1, []float64{0.005, 0.1})
	dyn := &LinearDynamics{A: A, B: B}
	diff := CheckDynamicsJacobian(dyn, []float64{0.3, -0.2}, []float64{0.1})
	if diff > 1e-6 {
		t.Fatalf("finite-difference mismatch %g for a linear model", diff)
	}
}

func TestCheckCostGradientMatchesAnalytic(t *testing.T) {
	Q := mat.NewSymDense(2, []float64{2, 0.3, 0.3, 1})
	R := mat.NewSymDense(1, []float64{0.5})
	cost := &QuadraticCost{Q: Q, R: R}
	diff := CheckCostGradient(cost, []float64{0.3, -0.2}, []float64{0.4})
	if diff > 1e-6 {
		t.Fatalf("finite-difference mismatch %g for a quadratic cost", diff)
	}
}
