package gonudg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// JacobiRow writes the orthonormal Jacobi polynomials of type (alpha,beta)
// and orders 0..len(dst)-1, evaluated at x, into dst.
func JacobiRow(x, alpha, beta float64, dst []float64) {
	n := len(dst) - 1
	if n < 0 {
		return
	}
	g0 := Gamma0(alpha, beta)
	dst[0] = 1 / math.Sqrt(g0)
	if n == 0 {
		return
	}
	g1 := (alpha + 1) * (beta + 1) / (alpha + beta + 3) * g0
	dst[1] = ((alpha+beta+2)*x/2 + (alpha-beta)/2) / math.Sqrt(g1)

	aold := 2 / (2 + alpha + beta) * math.Sqrt((alpha+1)*(beta+1)/(alpha+beta+3))
	for i := 1; i < n; i++ {
		fi := float64(i)
		h1 := 2*fi + alpha + beta
		anew := 2 / (h1 + 2) * math.Sqrt((fi+1)*(fi+1+alpha+beta)*(fi+1+alpha)*(fi+1+beta)/(h1+1)/(h1+3))
		bnew := -(alpha*alpha - beta*beta) / h1 / (h1 + 2)
		dst[i+1] = (-aold*dst[i-1] + (x-bnew)*dst[i]) / anew
		aold = anew
	}
}

// FillVandermonde1D writes V[i][j] = P_j(r_i) into v and, when dv is not
// nil, Vr[i][j] = P'_j(r_i) into dv, for the orthonormal Legendre
// polynomials up to order N. Both must be len(r) x (N+1); nothing is
// allocated.
func FillVandermonde1D(v, dv *mat.Dense, N int, r []float64) {
	for i, x := range r {
		JacobiRow(x, 0, 0, v.RawRowView(i)[:N+1])
		if dv == nil {
			continue
		}
		row := dv.RawRowView(i)[:N+1]
		row[0] = 0
		// P'_j = sqrt(j(j+1)) P^(1,1)_(j-1)
		JacobiRow(x, 1, 1, row[1:])
		for j := 1; j <= N; j++ {
			fj := float64(j)
			row[j] *= math.Sqrt(fj * (fj + 1))
		}
	}
}

// Vandermonde1D returns V[i][j] = P_j(r_i).
func Vandermonde1D(N int, r []float64) *mat.Dense {
	v := mat.NewDense(len(r), N+1, nil)
	FillVandermonde1D(v, nil, N, r)
	return v
}

// GradVandermonde1D returns Vr[i][j] = P'_j(r_i).
func GradVandermonde1D(N int, r []float64) *mat.Dense {
	v := mat.NewDense(len(r), N+1, nil)
	dv := mat.NewDense(len(r), N+1, nil)
	FillVandermonde1D(v, dv, N, r)
	return dv
}
