// Copyright ©2026 The PDAL-DDP Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linalg

import "math"

// LDLT is a pivoted symmetric-indefinite factorization of an n×n matrix,
// the "Factorize K using a pivoted LDLᵀ" step of §4.4. Diagonal pivoting
// (the largest remaining |diagonal| entry is brought to the current pivot
// position at each step) is used rather than full Bunch-Kaufman 2×2 block
// pivoting: §4.4's diagonal regularization (ξ on the primal block, −μ on the
// dual block) guarantees a nonzero pivot is always available for any nonzero
// μ, so the more elaborate 2×2-block machinery buys nothing here (recorded in
// DESIGN.md's linalg entry).
//
// The matrix is stored as a flat row-major n×n buffer with leading dimension
// ld ≥ n, matching the teacher's raw-slice BLAS/LINPACK style rather than a
// 2-D container, because the caller (pdal.Workspace) carves this buffer out
// of a single reusable KKT slab sized to the largest stage.
type LDLT struct {
	n, ld int
	a     []float64 // overwritten in place: unit multipliers below the diagonal, D on the diagonal.
	piv   []int      // piv[k] is the row/col swapped into position k during step k.
	ok    bool
}

// PivotTolerance is the minimum |pivot| accepted before a factorization is
// declared non-regular. §7: a non-regular pivot is a recoverable numerical
// failure — the caller discards the step and retries with a larger xreg.
const PivotTolerance = 1e-12

// Factorize computes the pivoted LDLᵀ factorization of the n×n symmetric
// matrix stored in a (row-major, leading dimension ld, a is modified
// in-place), reading only its lower triangle (callers must Symmetrize first,
// per §4.4's numerical rules). It returns the factorization and whether every
// pivot was regular; a non-regular factorization may still be partially
// written into a and must not be used for Solve.
func Factorize(a []float64, n, ld int) (*LDLT, bool) {
	f := &LDLT{n: n, ld: ld, a: a, piv: make([]int, n)}
	v := make([]float64, n)
	ok := true
	for k := 0; k < n; k++ {
		p := k
		best := math.Abs(a[k*ld+k])
		for i := k + 1; i < n; i++ {
			if d := math.Abs(a[i*ld+i]); d > best {
				best, p = d, i
			}
		}
		if p != k {
			// Symmetric swap of rows/columns k and p through the lower
			// triangle only, the part the elimination below keeps current.
			for c := 0; c < k; c++ {
				a[k*ld+c], a[p*ld+c] = a[p*ld+c], a[k*ld+c]
			}
			a[k*ld+k], a[p*ld+p] = a[p*ld+p], a[k*ld+k]
			for i := k + 1; i < p; i++ {
				a[i*ld+k], a[p*ld+i] = a[p*ld+i], a[i*ld+k]
			}
			for i := p + 1; i < n; i++ {
				a[i*ld+k], a[i*ld+p] = a[i*ld+p], a[i*ld+k]
			}
		}
		f.piv[k] = p

		d := a[k*ld+k]
		if math.Abs(d) < PivotTolerance {
			ok = false
			break
		}
		for i := k + 1; i < n; i++ {
			v[i] = a[i*ld+k]
		}
		for i := k + 1; i < n; i++ {
			vi := v[i]
			if vi == 0 {
				continue
			}
			row := a[i*ld : i*ld+n]
			for j := k + 1; j <= i; j++ {
				row[j] -= vi * v[j] / d
			}
		}
		for i := k + 1; i < n; i++ {
			a[i*ld+k] = v[i] / d
		}
	}
	f.ok = ok
	return f, ok
}

func swapSymmetric(a []float64, n, ld, i, j int) {
	if i == j {
		return
	}
	for c := 0; c < n; c++ {
		a[i*ld+c], a[j*ld+c] = a[j*ld+c], a[i*ld+c]
	}
	for r := 0; r < n; r++ {
		a[r*ld+i], a[r*ld+j] = a[r*ld+j], a[r*ld+i]
	}
}

// Solve overwrites the n×nrhs row-major right-hand side b (leading dimension
// ldb ≥ nrhs) with K⁻¹·b, using the stored factorization. Solve panics if
// Factorize reported a non-regular pivot — callers must check Factorize's
// boolean result before calling Solve, exactly as lbfgsb/slsqp panic on
// internal precondition violations rather than returning an error for what
// is a programmer-checkable invariant.
func (f *LDLT) Solve(b []float64, nrhs, ldb int) {
	if !f.ok {
		panic("linalg: Solve called on a non-regular factorization")
	}
	n, ld, a := f.n, f.ld, f.a

	// Apply the row permutation accumulated during Factorize, forward.
	for k := 0; k < n; k++ {
		p := f.piv[k]
		if p != k {
			swapRows(b, ldb, nrhs, k, p)
		}
	}

	// Forward solve: L y = Pb (L unit lower triangular).
	for i := 0; i < n; i++ {
		row := b[i*ldb : i*ldb+nrhs]
		for k := 0; k < i; k++ {
			l := a[i*ld+k]
			if l == 0 {
				continue
			}
			prev := b[k*ldb : k*ldb+nrhs]
			for c := 0; c < nrhs; c++ {
				row[c] -= l * prev[c]
			}
		}
	}

	// Diagonal solve: D z = y.
	for i := 0; i < n; i++ {
		d := a[i*ld+i]
		row := b[i*ldb : i*ldb+nrhs]
		for c := 0; c < nrhs; c++ {
			row[c] /= d
		}
	}

	// Backward solve: Lᵀ x = z.
	for i := n - 1; i >= 0; i-- {
		row := b[i*ldb : i*ldb+nrhs]
		for k := i + 1; k < n; k++ {
			l := a[k*ld+i]
			if l == 0 {
				continue
			}
			next := b[k*ldb : k*ldb+nrhs]
			for c := 0; c < nrhs; c++ {
				row[c] -= l * next[c]
			}
		}
	}

	// Undo the row permutation, reverse order.
	for k := n - 1; k >= 0; k-- {
		p := f.piv[k]
		if p != k {
			swapRows(b, ldb, nrhs, k, p)
		}
	}
}

func swapRows(b []float64, ldb, nrhs, i, j int) {
	ri, rj := b[i*ldb:i*ldb+nrhs], b[j*ldb:j*ldb+nrhs]
	for c := 0; c < nrhs; c++ {
		ri[c], rj[c] = rj[c], ri[c]
	}
}

// Reconstruct writes the dense n×n matrix K = Pᵀ L D Lᵀ P (row-major,
// leading dimension n) into out, rebuilt from the recorded L/D factors and
// pivots rather than re-read from a caller-held copy, so a caller can check
// the factorization against the original matrix. It is test/diagnostic-only
// and not on the hot path.
func (f *LDLT) Reconstruct(out []float64) {
	n, ld, a := f.n, f.ld, f.a
	clear(out[:n*n])
	// K = P L D Lᵀ Pᵀ; rebuild L and D densely then permute.
	l := make([]float64, n*n)
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		l[i*n+i] = 1
		d[i] = a[i*ld+i]
		for k := 0; k < i; k++ {
			l[i*n+k] = a[i*ld+k]
		}
	}
	ld2 := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for k := 0; k <= i; k++ {
			ld2[i*n+k] = l[i*n+k] * d[k]
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			s := 0.0
			for k := 0; k <= min(i, j); k++ {
				s += ld2[i*n+k] * l[j*n+k]
			}
			out[i*n+j] = s
		}
	}
	// Undo permutation Pᵀ: the sequence of swaps applied forward during
	// Factorize, applied here in reverse to rows then columns.
	for k := n - 1; k >= 0; k-- {
		p := f.piv[k]
		if p != k {
			swapSymmetric(out, n, n, k, p)
		}
	}
}
