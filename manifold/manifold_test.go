// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifold

import (
	"math"
	"testing"
)

func TestEuclideanIntegrateIdentity(t *testing.T) {
	m := Euclidean(4)
	x := []float64{1, -2, 3.5, 0}
	zero := make([]float64, 4)
	out := make([]float64, 4)
	m.Integrate(x, zero, out)
	for i := range x {
		if out[i] != x[i] {
			t.Fatalf("Integrate(x,0)[%d] = %v, want %v (bitwise)", i, out[i], x[i])
		}
	}
}

func TestSO3IntegrateIdentity(t *testing.T) {
	m := SO3{}
	x := make([]float64, 9)
	m.Neutral(x)
	// perturb x to a non-trivial rotation first.
	dx := []float64{0.3, -0.4, 0.8}
	rot := make([]float64, 9)
	m.Integrate(x, dx, rot)

	zero := make([]float64, 3)
	out := make([]float64, 9)
	m.Integrate(rot, zero, out)
	for i := range rot {
		if math.Abs(out[i]-rot[i]) > 1e-12 {
			t.Fatalf("Integrate(x,0)[%d] = %v, want %v to machine eps", i, out[i], rot[i])
		}
	}
}

func TestSO3DifferenceInvertsIntegrate(t *testing.T) {
	m := SO3{}
	x := make([]float64, 9)
	m.Neutral(x)
	dx := []float64{0.1, 0.2, -0.15}
	y := make([]float64, 9)
	m.Integrate(x, dx, y)

	back := make([]float64, 3)
	m.Difference(x, y, back)
	for i := range dx {
		if math.Abs(back[i]-dx[i]) > 1e-9 {
			t.Fatalf("Difference(x, Integrate(x,dx))[%d] = %v, want %v", i, back[i], dx[i])
		}
	}
}

func TestSO3Orthogonal(t *testing.T) {
	m := SO3{}
	x := make([]float64, 9)
	m.Neutral(x)
	y := make([]float64, 9)
	m.Integrate(x, []float64{0.5, -0.2, 1.1}, y)

	var yt, prod [9]float64
	transpose3(y, yt[:])
	matMul3(y, yt[:], prod[:])
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(prod[i*3+j]-want) > 1e-10 {
				t.Fatalf("R Rᵀ[%d][%d] = %v, want %v", i, j, prod[i*3+j], want)
			}
		}
	}
}

func TestProductStacksTangentDims(t *testing.T) {
	p := Product{Euclidean(3), SO3{}, Euclidean(2)}
	if got, want := p.Dim(), 3+9+2; got != want {
		t.Fatalf("Dim() = %d, want %d", got, want)
	}
	if got, want := p.TangentDim(), 3+3+2; got != want {
		t.Fatalf("TangentDim() = %d, want %d", got, want)
	}

	x := make([]float64, p.Dim())
	p.Neutral(x)
	dx := make([]float64, p.TangentDim())
	out := make([]float64, p.Dim())
	p.Integrate(x, dx, out)
	for i := range x {
		if out[i] != x[i] {
			t.Fatalf("Product.Integrate(x,0)[%d] = %v, want %v", i, out[i], x[i])
		}
	}
}
