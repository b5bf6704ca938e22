// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdal

import (
	"errors"
	"fmt"

	"github.com/trajopt/pdalddp/cone"
	"github.com/trajopt/pdalddp/manifold"
)

// Stage is one node of the shooting problem (§3 "Problem"): a state
// manifold, a control manifold, a cost, a dynamics function mapping onto
// the next node's state manifold, and an ordered list of user constraints.
// The dynamics function is kept separate from Constraints, not folded into
// it: its residual is measured against the *next* stage's state, not a
// function of (x,u) alone, and the core gives it a dedicated equality
// multiplier segment rather than routing it through the user Constraint
// interface (DESIGN.md, "dynamics modeling").
type Stage struct {
	X, U     manifold.Manifold
	Cost     CostFunction
	Dynamics DynamicsFunction
	Constraints []Constraint
}

// layout caches the per-stage tangent and multiplier dimensions derived from
// a Stage and its successor, computed once at Problem construction so the
// hot path never recomputes them (§5 "no hot-path allocation").
type layout struct {
	ndx, nu, ndy int // state, control, next-state tangent dims
	ndual        int // sum of constraint codomain dims, dynamics segment first
	conDims      []int
	nprim        int // nu + ndy, the backward-pass KKT primal block size
}

// Problem is the full shooting problem of §3: N stages plus a terminal
// node, an initial state, and at most one terminal constraint.
type Problem struct {
	Stages              []Stage
	X0                  []float64
	InitSet             cone.ConstraintSet // set the initial-state residual x_0 ⊖ x̄_0 is measured against; nil means cone.Equality
	TerminalX           manifold.Manifold
	TerminalCost        CostFunction
	TerminalConstraint  Constraint // optional, nil if absent

	layouts    []layout // len(Stages), layouts[k] describes stage k
	termLayout layout   // ndx only valid field; ndual/conDims for the terminal constraint
}

// N returns the number of stages.
func (p *Problem) N() int { return len(p.Stages) }

// HasTerminalConstraint reports whether a terminal constraint is present.
func (p *Problem) HasTerminalConstraint() bool { return p.TerminalConstraint != nil }

// NewProblem validates a Problem and precomputes its per-stage layout, mirroring
// the validate-then-construct pattern of the teacher's
// slsqp.Problem.New/lbfgsb.Problem.New: malformed dimensions are reported to
// the caller as an error at construction time rather than discovered deep
// inside the backward pass.
func NewProblem(p *Problem) (*Problem, error) {
	if len(p.Stages) == 0 {
		return nil, errors.New("pdal: problem has zero stages")
	}
	if p.TerminalX == nil {
		return nil, errors.New("pdal: terminal state manifold is nil")
	}
	if p.TerminalCost == nil {
		return nil, errors.New("pdal: terminal cost is nil")
	}
	if p.InitSet == nil {
		p.InitSet = cone.Equality(p.Stages[0].X.TangentDim())
	}
	if len(p.X0) != p.Stages[0].X.Dim() {
		return nil, fmt.Errorf("pdal: x0 has length %d, want %d", len(p.X0), p.Stages[0].X.Dim())
	}

	n := len(p.Stages)
	p.layouts = make([]layout, n)
	for k, st := range p.Stages {
		if st.X == nil || st.U == nil {
			return nil, fmt.Errorf("pdal: stage %d has a nil manifold", k)
		}
		if st.Cost == nil {
			return nil, fmt.Errorf("pdal: stage %d has a nil cost", k)
		}
		if st.Dynamics == nil {
			return nil, fmt.Errorf("pdal: stage %d has a nil dynamics function", k)
		}
		var nextX manifold.Manifold
		if k+1 < n {
			nextX = p.Stages[k+1].X
		} else {
			nextX = p.TerminalX
		}
		ndy := nextX.TangentDim()
		if st.Dynamics.Dim() != ndy {
			return nil, fmt.Errorf("pdal: stage %d dynamics dim %d does not match next-state tangent dim %d", k, st.Dynamics.Dim(), ndy)
		}
		lay := layout{
			ndx:     st.X.TangentDim(),
			nu:      st.U.TangentDim(),
			ndy:     ndy,
			conDims: make([]int, 1+len(st.Constraints)),
		}
		lay.conDims[0] = ndy // dynamics segment
		lay.ndual = ndy
		for j, c := range st.Constraints {
			if c.Dim() <= 0 || c.Set() == nil {
				return nil, fmt.Errorf("pdal: stage %d constraint %d is malformed", k, j)
			}
			lay.conDims[j+1] = c.Dim()
			lay.ndual += c.Dim()
		}
		lay.nprim = lay.nu + lay.ndy
		p.layouts[k] = lay
	}

	termDual := 0
	var termDims []int
	if p.TerminalConstraint != nil {
		if p.TerminalConstraint.Dim() <= 0 || p.TerminalConstraint.Set() == nil {
			return nil, errors.New("pdal: terminal constraint is malformed")
		}
		termDual = p.TerminalConstraint.Dim()
		termDims = []int{termDual}
	}
	p.termLayout = layout{ndx: p.TerminalX.TangentDim(), ndual: termDual, conDims: termDims}

	return p, nil
}

// Layout returns the precomputed tangent/multiplier layout of stage k.
func (p *Problem) Layout(k int) layout { return p.layouts[k] }

// TerminalLayout returns the terminal node's layout.
func (p *Problem) TerminalLayout() layout { return p.termLayout }

// MaxPrimDual returns the largest (nprim, ndual) pair across all stages plus
// the terminal node, the extent the single reusable KKT buffer must be sized
// to (§5).
func (p *Problem) MaxPrimDual() (maxPrim, maxDual, maxNdx int) {
	for _, lay := range p.layouts {
		if lay.nprim > maxPrim {
			maxPrim = lay.nprim
		}
		if lay.ndual > maxDual {
			maxDual = lay.ndual
		}
		if lay.ndx > maxNdx {
			maxNdx = lay.ndx
		}
	}
	if p.termLayout.ndual > maxDual {
		maxDual = p.termLayout.ndual
	}
	if p.termLayout.ndx > maxNdx {
		maxNdx = p.termLayout.ndx
	}
	return
}

// MultiplierLen returns the required length of the lams stack (I2): N+2
// when a terminal constraint exists, else N+1.
func (p *Problem) MultiplierLen() int {
	if p.HasTerminalConstraint() {
		return p.N() + 2
	}
	return p.N() + 1
}
