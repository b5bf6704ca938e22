// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linalg

// Symmetrize overwrites the strict upper triangle of the n×n row-major
// matrix a (leading dimension ld ≥ n) with its lower triangle, so that a
// becomes exactly symmetric: a[i][j] = a[j][i] for i<j. §4.4's numerical
// rules require every value/Q-function Hessian to be symmetrized this way
// before it is used downstream (§8 property 3).
func Symmetrize(a []float64, n, ld int) {
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			a[j*ld+i] = a[i*ld+j]
		}
	}
}

// MaxAsymmetry returns ‖A - Aᵀ‖∞ for the n×n row-major matrix a (leading
// dimension ld), the quantity §8 property 3 requires to be exactly zero
// after Symmetrize.
func MaxAsymmetry(a []float64, n, ld int) float64 {
	m := zero
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := a[i*ld+j] - a[j*ld+i]
			if d < 0 {
				d = -d
			}
			if d > m {
				m = d
			}
		}
	}
	return m
}
