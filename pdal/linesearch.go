// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdal

import (
	"math"

	"github.com/trajopt/pdalddp/linalg"
)

// LineSearchStrategy selects the merit-function line search of §4.7.
type LineSearchStrategy int

const (
	// Armijo backtracks geometrically while the sufficient-decrease
	// condition fails.
	Armijo LineSearchStrategy = iota
	// CubicInterp fits a cubic through (0,φ(0),φ'(0)) and the two most
	// recent trial points to pick the next trial step.
	CubicInterp
)

func (s LineSearchStrategy) String() string {
	if s == CubicInterp {
		return "CUBIC_INTERP"
	}
	return "ARMIJO"
}

// lineSearchResult carries the accepted step, the merit values needed to
// check the monotone-descent testable property (§8 property 8), and the raw
// trajectory cost at the accepted trial (§4.3: retained separately from the
// merit value for logging).
type lineSearchResult struct {
	alpha, phiAlpha, phi0, phiPrime0 float64
	trajCost                         float64
}

// search runs the configured line search starting from the current
// workspace iterate (ws.xs/us/lams) along the direction in ws.pdStep,
// leaving the accepted trial in ws.trialXs/trialUs/trialLams (§4.6, §4.7).
// The one-sided directional-derivative estimate of §4.7 is used rather than
// the analytic rhs₀ᵀ·pd_step alternative noted as acceptable in the design
// notes, since it requires no extra bookkeeping beyond one trial evaluation.
func (s *Solver) search(merit Merit, mu, rho float64) lineSearchResult {
	p, ws := s.problem, s.ws
	phi0 := merit.Value(p, ws, ws.xs, ws.us, ws.lams, mu, rho).phi

	const eps = 1e-10
	tryStep(p, ws, eps)
	phiEps := sanitize(merit.Value(p, ws, ws.trialXs, ws.trialUs, ws.trialLams, mu, rho).phi)
	phiPrime0 := (phiEps - phi0) / eps

	if s.Options.LinesearchStrategy == CubicInterp {
		return s.cubicSearch(merit, mu, rho, phi0, phiPrime0)
	}
	return s.armijoSearch(merit, mu, rho, phi0, phiPrime0)
}

func (s *Solver) armijoSearch(merit Merit, mu, rho, phi0, phiPrime0 float64) lineSearchResult {
	p, ws := s.problem, s.ws
	alpha := 1.0
	for {
		tryStep(p, ws, alpha)
		mr := merit.Value(p, ws, ws.trialXs, ws.trialUs, ws.trialLams, mu, rho)
		phiAlpha := sanitize(mr.phi)
		if phiAlpha <= phi0+s.Options.ArmijoC1*alpha*phiPrime0 || alpha <= s.Options.AlphaMin {
			return lineSearchResult{alpha, phiAlpha, phi0, phiPrime0, mr.trajCost}
		}
		alpha *= s.Options.LSBeta
	}
}

// cubicSearch implements the backtracking variant of §4.7: the first trial
// is the unit step; subsequent trials come from a cubic fit to (0,φ(0),
// φ'(0)) and the two most recent (alpha,phi) samples. The first backtrack is
// clamped into [alpha_min, alpha/2] and later ones into [alpha_min,
// 0.9·alpha]. When the cubic model is degenerate (a flat or non-convex fit)
// it halves the current step instead.
func (s *Solver) cubicSearch(merit Merit, mu, rho, phi0, phiPrime0 float64) lineSearchResult {
	p, ws := s.problem, s.ws
	const alphaHigh = 1.0

	alpha := alphaHigh
	tryStep(p, ws, alpha)
	mr := merit.Value(p, ws, ws.trialXs, ws.trialUs, ws.trialLams, mu, rho)
	phiAlpha := sanitize(mr.phi)
	if phiAlpha <= phi0+s.Options.ArmijoC1*alpha*phiPrime0 {
		return lineSearchResult{alpha, phiAlpha, phi0, phiPrime0, mr.trajCost}
	}

	prevAlpha, prevPhi := alpha, phiAlpha
	// First backtrack: quadratic model through (0,phi0,phiPrime0,prevPhi).
	alpha = -phiPrime0 * prevAlpha * prevAlpha / (2 * (prevPhi - phi0 - phiPrime0*prevAlpha))
	alpha = linalg.Clamp(alpha, s.Options.AlphaMin, 0.5*prevAlpha)

	for iter := 0; iter < 30; iter++ {
		tryStep(p, ws, alpha)
		mr = merit.Value(p, ws, ws.trialXs, ws.trialUs, ws.trialLams, mu, rho)
		phiAlpha = sanitize(mr.phi)
		if phiAlpha <= phi0+s.Options.ArmijoC1*alpha*phiPrime0 || alpha <= s.Options.AlphaMin {
			return lineSearchResult{alpha, phiAlpha, phi0, phiPrime0, mr.trajCost}
		}

		next := cubicMinimizer(prevAlpha, prevPhi, alpha, phiAlpha, phi0, phiPrime0)
		if math.IsNaN(next) || next <= 0 {
			next = 0.5 * alpha
		}
		next = linalg.Clamp(next, s.Options.AlphaMin, 0.9*alpha)
		prevAlpha, prevPhi = alpha, phiAlpha
		alpha = next
	}
	// The last evaluated trial (prevAlpha) is the one left in ws.trial*.
	return lineSearchResult{prevAlpha, phiAlpha, phi0, phiPrime0, mr.trajCost}
}

// cubicMinimizer fits a cubic through (0,phi0,phiPrime0), (a0,p0), (a1,p1)
// and returns the interior local minimizer, or NaN if the fit is degenerate.
func cubicMinimizer(a0, p0, a1, p1, phi0, phiPrime0 float64) float64 {
	d1 := p0 - phi0 - phiPrime0*a0
	d2 := p1 - phi0 - phiPrime0*a1
	denom := a0*a0*a1*a1 * (a1 - a0)
	if denom == 0 {
		return math.NaN()
	}
	a := (a0*a0*d2 - a1*a1*d1) / denom
	b := (-a0*a0*a0*d2 + a1*a1*a1*d1) / denom
	if a == 0 {
		if b == 0 {
			return math.NaN()
		}
		return -phiPrime0 / (2 * b)
	}
	disc := b*b - 3*a*phiPrime0
	if disc < 0 {
		return math.NaN()
	}
	return (-b + math.Sqrt(disc)) / (3 * a)
}

func sanitize(phi float64) float64 {
	if math.IsNaN(phi) || math.IsInf(phi, 0) {
		return math.Inf(1)
	}
	return phi
}

