// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cone

import (
	"math"
	"testing"
)

func assertIdempotent(t *testing.T, name string, c ConstraintSet, z []float64) {
	t.Helper()
	n := c.Dim()
	once := make([]float64, n)
	twice := make([]float64, n)
	c.NormalConeProjection(z, once)
	c.NormalConeProjection(once, twice)
	for i := 0; i < n; i++ {
		if math.Abs(once[i]-twice[i]) > 1e-9 {
			t.Fatalf("%s: NormalConeProjection not idempotent at %d: %v vs %v", name, i, once[i], twice[i])
		}
	}
}

func TestEqualityProjectionIdempotent(t *testing.T) {
	assertIdempotent(t, "Equality", Equality(3), []float64{1, -2, 0.5})
}

func TestNonNegativeProjectionIdempotent(t *testing.T) {
	c := NonNegative(3)
	assertIdempotent(t, "NonNegative", c, []float64{1, -2, 0.5})
	assertIdempotent(t, "NonNegative", c, []float64{-1, -2, -0.5})
}

func TestBoxProjectionIdempotent(t *testing.T) {
	b := NewBox([]float64{1, 1, 1})
	assertIdempotent(t, "Box", b, []float64{2, -2, 0.2})
	assertIdempotent(t, "Box", b, []float64{0.1, -0.2, 0.3})
}

func TestSecondOrderConeProjectionIdempotent(t *testing.T) {
	c := SecondOrderCone(3)
	assertIdempotent(t, "SOC", c, []float64{1, 2, 2})
	assertIdempotent(t, "SOC", c, []float64{5, 1, 1})
	assertIdempotent(t, "SOC", c, []float64{-5, 1, 1})
}

func TestNonNegativeActiveSetJacobian(t *testing.T) {
	c := NonNegative(2)
	z := []float64{1, -1}
	J := []float64{1, 2, 3, 4}
	c.ApplyNormalConeProjectionJacobian(z, J, 2)
	// Row 0 active (z[0]>0): kept. Row 1 inactive (z[1]<=0): zeroed.
	if J[0] != 1 || J[1] != 2 {
		t.Fatalf("active row changed: %v", J[:2])
	}
	if J[2] != 0 || J[3] != 0 {
		t.Fatalf("inactive row not zeroed: %v", J[2:])
	}
}

func TestSecondOrderConeInsideGivesZeroComposition(t *testing.T) {
	c := SecondOrderCone(3)
	z := []float64{5, 1, 1} // strictly inside K
	J := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1}
	c.ApplyNormalConeProjectionJacobian(z, J, 3)
	for _, v := range J {
		if v != 0 {
			t.Fatalf("expected J zeroed when strictly inside K, got %v", J)
		}
	}
}

func TestSecondOrderConeOutsideGivesIdentityComposition(t *testing.T) {
	c := SecondOrderCone(3)
	z := []float64{-5, 1, 1} // strictly inside -K (fully infeasible)
	J := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	want := make([]float64, len(J))
	copy(want, J)
	c.ApplyNormalConeProjectionJacobian(z, J, 3)
	for i := range J {
		if J[i] != want[i] {
			t.Fatalf("expected J unchanged when strictly inside -K, got %v want %v", J, want)
		}
	}
}
