// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdal

import (
	"fmt"
	"io"
	"os"
)

// LogLevel controls the frequency of Solver logging output, mirroring the
// level scheme of the teacher's lbfgsb.LogLevel.
type LogLevel int

const (
	// LogNoop emits nothing.
	LogNoop LogLevel = -1
	// LogLast prints one line when Run returns.
	LogLast LogLevel = 0
	// LogOuter prints one line per AL cycle.
	LogOuter LogLevel = 1
	// LogInner prints one line per inner Newton iteration.
	LogInner LogLevel = 2
)

// Logger handles Solver diagnostic output. Note the writer must be
// thread-safe if the Solver is driven from more than one goroutine.
type Logger struct {
	Level LogLevel
	Out   io.Writer
}

func (l *Logger) enable(level LogLevel) bool { return l != nil && l.Level >= level }

func (l *Logger) log(format string, a ...any) {
	if l == nil || l.Out == nil {
		return
	}
	fmt.Fprintf(l.Out, format, a...)
}

// Options configures a Solver (§6 "Options", §9 xreg schedule and
// Open Question 2's resolution).
type Options struct {
	// TargetTol is the combined primal/dual infeasibility threshold below
	// which the AL outer loop declares convergence.
	TargetTol float64
	// PrimTolInit, InnerTolInit seed the primal and inner-criterion
	// tolerance schedules; zero means TargetTol*1e4 (§4.8).
	PrimTolInit, InnerTolInit float64

	MuInit, MuFactor   float64 // penalty parameter and its shrink factor (<1) on a rejected AL cycle
	RhoInit, RhoFactor float64 // proximal weight and the factor it is multiplied by at the end of an AL cycle

	// RhoConditional resolves Open Question 2: when true, rho is only
	// multiplied by RhoFactor on AL cycles that also meet TargetTol on the
	// primal residual; when false it is multiplied every cycle, as a
	// literal reading of §4.8 would have it.
	RhoConditional bool

	PrimAlpha, PrimBeta float64 // primal tolerance contraction / relaxation factors
	DualAlpha, DualBeta float64 // inner-criterion tolerance contraction / relaxation factors

	MultiplierUpdateMode MultiplierMode
	LinesearchStrategy   LineSearchStrategy

	ArmijoC1 float64 // sufficient-decrease constant, §4.7
	LSBeta   float64 // Armijo backtracking factor
	AlphaMin float64 // smallest step size the line search will accept

	// RegInit, RegFactor, RegMax govern the xreg retry schedule of §9's
	// supplement: a non-regular KKT pivot sets xreg ← max(RegInit,
	// xreg·RegFactor), capped at RegMax, and the whole backward sweep is
	// retried, up to RegMaxRetries times before the inner loop gives up and
	// the run ends without convergence.
	RegInit, RegFactor, RegMax float64
	RegMaxRetries              int

	MaxIters   int // hard cap on total inner (Newton) iterations across the whole run
	MaxALIters int // cap on AL outer cycles

	// Verbose is the constructor-level convenience of §6: when true and
	// Logger is nil, New installs a Logger at LogOuter writing to os.Stderr.
	// Set Logger directly for finer control (LogInner, a different writer).
	Verbose bool

	Logger *Logger
}

// DefaultOptions returns the constants the reference scenarios of §8 are
// tuned against.
func DefaultOptions() Options {
	return Options{
		TargetTol:            1e-6,
		MuInit:               10,
		MuFactor:             0.1,
		RhoInit:              1,
		RhoFactor:            0.5,
		RhoConditional:       false,
		PrimAlpha:            0.1,
		PrimBeta:             0.5,
		DualAlpha:            0.1,
		DualBeta:             0.5,
		MultiplierUpdateMode: PrimalDual,
		LinesearchStrategy:   CubicInterp,
		ArmijoC1:             1e-4,
		LSBeta:               0.5,
		AlphaMin:             1e-8,
		RegInit:              1e-8,
		RegFactor:            10,
		RegMax:               1e8,
		RegMaxRetries:        10,
		MaxIters:             500,
		MaxALIters:           50,
	}
}

// IterInfo is reported through Solver.OnIteration after each accepted inner
// iteration (§9 supplement: a progress hook for callers that want to stream
// diagnostics rather than poll Results after Run returns). It must not be
// used to mutate problem structure — OnIteration is read-only by contract.
type IterInfo struct {
	AlIter, InnerIter   int
	Alpha               float64
	MeritValue          float64
	InnerCriterion      float64
	PrimalInfeasibility float64 // the most recent AL cycle's value; stale mid-cycle
	DualInfeasibility   float64
}

// Solver drives a Problem through the proximal primal-dual augmented-
// Lagrangian DDP iteration of §4. A Solver is built once per Problem via New
// and reused across calls to Run; each Run restarts the AL/Newton counters
// but keeps the allocated Workspace.
type Solver struct {
	problem *Problem
	ws      *Workspace
	Options Options

	// OnIteration, if set, is invoked after every accepted inner iteration.
	OnIteration func(IterInfo)

	numIters  int
	alIter    int
	converged bool
}

// New builds a Solver for problem with the given options, allocating its
// Workspace once (§5).
func New(problem *Problem, opts Options) *Solver {
	if opts.Verbose && opts.Logger == nil {
		opts.Logger = &Logger{Level: LogOuter, Out: os.Stderr}
	}
	return &Solver{problem: problem, ws: NewWorkspace(problem), Options: opts}
}

// Run executes the AL outer loop starting from xsInit/usInit (§4.8),
// returning whether it converged to Options.TargetTol before exhausting
// Options.MaxIters/MaxALIters. Results is valid after Run returns regardless
// of the outcome: it always reports the best-so-far accepted iterate.
//
// prev, when non-nil, seeds the multiplier stack from a previous Run's
// Results (§9 "warm start"): re-running the same Problem topology with an
// updated initial state and prev set to the converged Results needs far
// fewer inner iterations than a cold start, since the multipliers start near
// their optimal values. Pass nil for a cold start.
func (s *Solver) Run(xsInit, usInit [][]float64, prev *Results) bool {
	if len(xsInit) != s.problem.N()+1 || len(usInit) != s.problem.N() {
		panic("initial trajectory dimension not match problem")
	}
	s.numIters, s.alIter, s.converged = 0, 0, false
	ws := s.ws

	for k := range xsInit {
		copy(ws.xs[k], xsInit[k])
		copy(ws.proxXs[k], xsInit[k])
	}
	for k := range usInit {
		copy(ws.us[k], usInit[k])
		copy(ws.proxUs[k], usInit[k])
	}
	for i := range ws.lams {
		if ws.lams[i] == nil {
			continue
		}
		if prev != nil && i < len(prev.Lams) && prev.Lams[i] != nil {
			copy(ws.lams[i], prev.Lams[i])
			copy(ws.proxLams[i], prev.Lams[i])
		} else {
			clear(ws.lams[i])
			clear(ws.proxLams[i])
		}
	}
	ws.xreg = s.Options.RegInit

	logger := s.Options.Logger
	converged := s.run()
	if logger.enable(LogLast) {
		logger.log("pdal: converged=%v iters=%d al_iters=%d merit=%g prim_infeas=%g dual_infeas=%g\n",
			converged, s.numIters, s.alIter, ws.meritValue, ws.primalInfeasibility, ws.dualInfeasibility)
	}
	return converged
}

// Results returns a snapshot of the current accepted iterate and
// diagnostics.
func (s *Solver) Results() Results {
	r := s.ws.snapshot()
	r.NumIters = s.numIters
	r.Conv = s.converged
	return r
}

// Workspace exposes the Solver's Workspace, primarily for tests that need to
// inspect intermediate buffers without re-running the solver.
func (s *Solver) Workspace() *Workspace { return s.ws }
