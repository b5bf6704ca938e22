// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package numdiff estimates a Jacobian by central finite differences. It is
// trimmed from a general forward/central/bounded finite-difference engine
// down to the single mode pdal.CheckGradients/CheckDynamicsJacobian need:
// unbounded central differences with an automatically chosen step size.
//
// # Reference
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
package numdiff

import (
	"errors"
	"fmt"
	"math"
)

// cubeEps is the cube root of machine epsilon, the step-size scale central
// differences want so that truncation error and rounding error balance
// (scipy's _numdiff.py uses the same constant for its Central scheme).
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

// JacobianSpec configures a central-difference Jacobian approximation of
// Object: R^N -> R^M at a point.
type JacobianSpec struct {
	N, M int
	// Object evaluates the function being differentiated; y must have
	// length M. x is mutated and restored between calls by Diff, so Object
	// must not retain x.
	Object func(x, y []float64)
	// TransJac lays diff out row-major by input index (diff[i*M+j] is
	// d y_j / d x_i) instead of the default column-major-by-input layout
	// (diff[i+j*N]).
	TransJac bool
}

// Diff fills diff (length N*M) with the central-difference Jacobian of
// spec.Object at x0, using a relative step size of cubeEps per component.
// x0 is used as scratch during evaluation and restored to its original
// values before Diff returns.
func (s *JacobianSpec) Diff(x0, diff []float64) error {
	switch {
	case s.N <= 0 || s.M <= 0:
		return errors.New("numdiff: non-positive dimensions")
	case s.Object == nil:
		return errors.New("numdiff: object function is required")
	case s.N != len(x0):
		return fmt.Errorf("numdiff: x0 has length %d, want %d", len(x0), s.N)
	case s.N*s.M != len(diff):
		return fmt.Errorf("numdiff: diff has length %d, want %d", len(diff), s.N*s.M)
	}

	f0 := make([]float64, s.M)
	f1 := make([]float64, s.M)
	f2 := make([]float64, s.M)
	s.Object(x0, f0)

	for i := 0; i < s.N; i++ {
		x := x0[i]
		h := math.Copysign(cubeEps, x) * math.Max(1.0, math.Abs(x))
		d := 1.0 / (2 * h)

		x0[i] = x - h
		s.Object(x0, f1)
		x0[i] = x + h
		s.Object(x0, f2)
		x0[i] = x

		if s.TransJac {
			row := diff[i*s.M : (i+1)*s.M]
			for j := range f0 {
				row[j] = (f2[j] - f1[j]) * d
			}
		} else {
			for j := range f0 {
				diff[i+j*s.N] = (f2[j] - f1[j]) * d
			}
		}
	}
	return nil
}
