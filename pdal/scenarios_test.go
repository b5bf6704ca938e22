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

// pendulumDynamics is a nonlinear single-pendulum model with state
// (angle, angular velocity) and a scalar torque control, discretized by
// semi-implicit Euler (E3 in §8: a genuinely nonlinear swing-up instance).
type pendulumDynamics struct {
	dt, mass, length, gravity, damping float64
}

func (d *pendulumDynamics) Dim() int { return 2 }

func (d *pendulumDynamics) Evaluate(x, u, y, Jx, Ju []float64) {
	theta, omega := x[0], x[1]
	torque := u[0]
	accel := (torque - d.damping*omega - d.mass*d.gravity*d.length*math.Sin(theta)) / (d.mass * d.length * d.length)

	omegaNext := omega + d.dt*accel
	thetaNext := theta + d.dt*omegaNext

	y[0] = thetaNext
	y[1] = omegaNext

	if Jx != nil {
		dAccelDTheta := -d.mass * d.gravity * d.length * math.Cos(theta) / (d.mass * d.length * d.length)
		dAccelDOmega := -d.damping / (d.mass * d.length * d.length)
		dOmegaNextDTheta := d.dt * dAccelDTheta
		dOmegaNextDOmega := 1 + d.dt*dAccelDOmega
		Jx[0*2+0] = 1 + d.dt*dOmegaNextDTheta
		Jx[0*2+1] = d.dt * dOmegaNextDOmega
		Jx[1*2+0] = dOmegaNextDTheta
		Jx[1*2+1] = dOmegaNextDOmega
	}
	if Ju != nil {
		dAccelDU := 1 / (d.mass * d.length * d.length)
		Ju[0*1+0] = d.dt * d.dt * dAccelDU
		Ju[1*1+0] = d.dt * dAccelDU
	}
}

// VectorHessianProduct leaves vhp untouched: the reference scenarios run the
// Gauss-Newton variant of the backward pass, accepting the first-order model
// of §4.4's curvature term as sufficient for swing-up convergence.
func (d *pendulumDynamics) VectorHessianProduct(x, u, lambda, vhp []float64) {}

func pendulumProblem(t *testing.T, n int) (*Problem, [][]float64, [][]float64) {
	t.Helper()
	dyn := &pendulumDynamics{dt: 0.05, mass: 1, length: 1, gravity: 9.81, damping: 0.1}
	Q := mat.NewSymDense(2, []float64{1, 0, 0, 0.1})
	R := mat.NewSymDense(1, []float64{0.01})
	Qn := mat.NewSymDense(2, []float64{100, 0, 0, 10})

	stages := make([]Stage, n)
	for k := range stages {
		stages[k] = Stage{
			X:        manifold.Euclidean(2),
			U:        manifold.Euclidean(1),
			Cost:     &QuadraticCost{Q: Q, R: R, Xref: []float64{math.Pi, 0}},
			Dynamics: dyn,
		}
	}

	p, err := NewProblem(&Problem{
		Stages:       stages,
		X0:           []float64{0, 0}, // hanging down
		TerminalX:    manifold.Euclidean(2),
		TerminalCost: &QuadraticCost{Q: Qn, Xref: []float64{math.Pi, 0}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	xsInit := make([][]float64, n+1)
	usInit := make([][]float64, n)
	for k := range xsInit {
		xsInit[k] = []float64{0, 0}
	}
	for k := range usInit {
		usInit[k] = []float64{0}
	}
	return p, xsInit, usInit
}

// TestScenarioE1TerminalEqualityDrivesToTarget: a double integrator driven
// to the origin by a terminal equality constraint rather than a terminal
// cost's soft pull.
func TestScenarioE1TerminalEqualityDrivesToTarget(t *testing.T) {
	p, xs, us := doubleIntegratorProblem(t, 20)
	p.TerminalCost = &QuadraticCost{Q: mat.NewSymDense(2, []float64{0, 0, 0, 0})}
	p.TerminalConstraint = &TerminalStateEqualityConstraint{Target: []float64{0, 0}, X: p.TerminalX}
	p, err := NewProblem(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	opts := DefaultOptions()
	opts.MaxALIters = 30
	s := New(p, opts)
	if !s.Run(xs, us, nil) {
		t.Fatalf("did not converge: %+v", s.Results())
	}
	res := s.Results()
	xEnd := res.Xs[p.N()]
	if math.Abs(xEnd[0]) > 1e-3 || math.Abs(xEnd[1]) > 1e-3 {
		t.Fatalf("terminal equality not satisfied: x_N = %v", xEnd)
	}
}

// TestScenarioE2ControlBoxSaturates: the same problem with a tight control
// bound should saturate the control near the bound during the transient and
// produce a non-negative multiplier for the active bound.
func TestScenarioE2ControlBoxSaturates(t *testing.T) {
	p, xs, us := doubleIntegratorProblem(t, 20)
	bound := []float64{0.5}
	for k := range p.Stages {
		p.Stages[k].Constraints = []Constraint{NewControlBoxConstraint(bound)}
	}
	p.TerminalConstraint = &TerminalStateEqualityConstraint{Target: []float64{0, 0}, X: p.TerminalX}
	p.TerminalCost = &QuadraticCost{Q: mat.NewSymDense(2, []float64{0, 0, 0, 0})}
	p, err := NewProblem(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	opts := DefaultOptions()
	opts.MaxALIters = 40
	s := New(p, opts)
	if !s.Run(xs, us, nil) {
		t.Fatalf("did not converge: %+v", s.Results())
	}
	res := s.Results()

	maxU := 0.0
	for _, u := range res.Us {
		if math.Abs(u[0]) > maxU {
			maxU = math.Abs(u[0])
		}
	}
	if maxU > bound[0]+1e-6 {
		t.Fatalf("control exceeded the box bound: max|u| = %g > %g", maxU, bound[0])
	}
	if maxU < bound[0]*0.9 {
		t.Fatalf("expected the bound to be active during the transient, max|u| = %g", maxU)
	}

	// The box multiplier for a saturating stage must be nonzero and carry the
	// same sign as the bound it activates (cone.Box's normal-cone residual
	// z - clamp(z) is positive at the upper bound, negative at the lower).
	sawActive := false
	for k, u := range res.Us {
		if math.Abs(u[0]) > bound[0]*0.99 {
			sawActive = true
			lam := res.Lams[k+1][p.Layout(k).ndy]
			if (u[0] > 0 && lam < 1e-9) || (u[0] < 0 && lam > -1e-9) {
				t.Fatalf("stage %d box multiplier %g has the wrong sign for u=%g", k, lam, u[0])
			}
		}
	}
	if !sawActive {
		t.Fatal("no stage saturated the control bound; scenario did not exercise the active set")
	}
}

// TestScenarioE3PendulumSwingUp: a genuinely nonlinear instance, started
// from a cold (zero-control) warm start, should swing the pendulum up near
// the inverted equilibrium.
func TestScenarioE3PendulumSwingUp(t *testing.T) {
	p, xs, us := pendulumProblem(t, 50)
	opts := DefaultOptions()
	opts.MaxALIters = 40
	opts.MaxIters = 2000
	opts.TargetTol = 1e-4
	s := New(p, opts)
	s.Run(xs, us, nil) // nonlinear swing-up may not hit TargetTol in a bounded budget
	res := s.Results()

	xEnd := res.Xs[p.N()]
	angleErr := math.Abs(math.Mod(xEnd[0]-math.Pi+math.Pi, 2*math.Pi) - math.Pi)
	if angleErr > 0.3 {
		t.Fatalf("pendulum did not approach the inverted equilibrium: theta_N = %g (target pi)", xEnd[0])
	}
}

// TestScenarioE4InfeasibleTerminalConstraintReportsNonConvergence: a
// terminal equality target the dynamics cannot reach in the given horizon
// should leave Results.Conv false with a bounded, finite primal
// infeasibility and merit value rather than panicking or diverging to
// infinity.
func TestScenarioE4InfeasibleTerminalConstraintReportsNonConvergence(t *testing.T) {
	// A single stage gives one scalar control to satisfy a 2-dimensional
	// terminal equality: generically infeasible, since the reachable set
	// after one step is a 1-dimensional affine line in ℝ², not all of ℝ².
	p, xs, us := doubleIntegratorProblem(t, 1)
	p.X0 = []float64{100, 50}
	xs[0] = []float64{100, 50}
	p.TerminalConstraint = &TerminalStateEqualityConstraint{Target: []float64{0, 0}, X: p.TerminalX}
	p.TerminalCost = &QuadraticCost{Q: mat.NewSymDense(2, []float64{0, 0, 0, 0})}
	p, err := NewProblem(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	opts := DefaultOptions()
	opts.MaxALIters = 5
	opts.MaxIters = 50
	s := New(p, opts)
	conv := s.Run(xs, us, nil)
	if conv {
		t.Fatal("expected non-convergence for an unreachable terminal target over a 1-step horizon")
	}
	res := s.Results()
	if math.IsNaN(res.MeritValue) || math.IsInf(res.MeritValue, 0) {
		t.Fatalf("merit value is not finite: %g", res.MeritValue)
	}
	if math.IsNaN(res.PrimalInfeasibility) || math.IsInf(res.PrimalInfeasibility, 0) {
		t.Fatalf("primal infeasibility is not finite: %g", res.PrimalInfeasibility)
	}
}

// TestScenarioE5LargeHorizonDualInfeasibilityTrend checks that, across the
// inner iterations of a large-horizon LQR instance, the dual infeasibility
// reported via OnIteration does not grow between an early and a late sample
// (a coarse monotone-trend check, not strict monotonicity every iteration,
// since an AL penalty-parameter jump can cause a transient increase).
func TestScenarioE5LargeHorizonDualInfeasibilityTrend(t *testing.T) {
	p, xs, us := doubleIntegratorProblem(t, 200)
	opts := DefaultOptions()
	opts.MaxIters = 2000
	opts.MaxALIters = 40

	var samples []float64
	s := New(p, opts)
	s.OnIteration = func(info IterInfo) {
		samples = append(samples, info.DualInfeasibility)
	}
	if !s.Run(xs, us, nil) {
		t.Fatalf("did not converge: %+v", s.Results())
	}
	if len(samples) < 4 {
		t.Fatalf("too few inner iterations recorded: %d", len(samples))
	}

	early := samples[len(samples)/4]
	late := samples[len(samples)-1]
	if late > early {
		t.Fatalf("dual infeasibility grew from early sample %g to final %g", early, late)
	}
}
