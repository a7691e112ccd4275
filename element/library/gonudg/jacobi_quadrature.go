package gonudg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// JacobiGL computes the N+1 Gauss-Lobatto points of the Jacobi polynomial
// of type (alpha,beta): the zeros of (1-x^2)*P'_N(x) on [-1,1], ascending.
func JacobiGL(alpha, beta float64, N int) ([]float64, error) {
	switch N {
	case 0:
		return []float64{0}, nil
	case 1:
		return []float64{-1, 1}, nil
	}
	xint, _, err := JacobiGQ(alpha+1, beta+1, N-2)
	if err != nil {
		return nil, err
	}
	x := make([]float64, N+1)
	x[0], x[N] = -1, 1
	copy(x[1:N], xint)
	return x, nil
}

// JacobiGQ computes the N+1 point Gauss quadrature of Jacobi type
// (alpha,beta) on [-1,1] from the eigen-decomposition of the symmetric
// tridiagonal Jacobi matrix (Golub-Welsch). Points ascend; the rule is exact
// for polynomials of degree 2N+1.
func JacobiGQ(alpha, beta float64, N int) (X, W []float64, err error) {
	if N == 0 {
		return []float64{-(alpha - beta) / (alpha + beta + 2)}, []float64{2}, nil
	}

	h1 := make([]float64, N+1)
	for i := range h1 {
		h1[i] = 2*float64(i) + alpha + beta
	}
	d0 := make([]float64, N+1)
	fac := beta*beta - alpha*alpha
	for i, h := range h1 {
		d0[i] = fac / (h * (h + 2))
	}
	if alpha+beta < 10*1e-16 {
		d0[0] = 0
	}
	d1 := make([]float64, N)
	for i := range d1 {
		ip1 := float64(i + 1)
		h := h1[i]
		d1[i] = 2 / (h + 2) * math.Sqrt(ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/(h+1)/(h+3))
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(NewSymTriDiagonal(d0, d1), true); !ok {
		return nil, nil, fmt.Errorf("jacobi matrix eigen-decomposition failed for N=%d", N)
	}
	X = eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	W = make([]float64, N+1)
	g0 := Gamma0(alpha, beta)
	for i := range W {
		v := vecs.At(0, i)
		W[i] = v * v * g0
	}
	return X, W, nil
}

// Gamma0 is the integral of the Jacobi weight (1-x)^alpha (1+x)^beta on
// [-1,1].
func Gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1
	return math.Gamma(alpha+1) * math.Gamma(beta+1) * math.Pow(2, ab1) / ab1 / math.Gamma(ab1)
}

// NewSymTriDiagonal builds the symmetric matrix with diagonal d0 and
// off-diagonal d1.
func NewSymTriDiagonal(d0, d1 []float64) *mat.SymDense {
	n := len(d0)
	t := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		t.SetSym(i, i, d0[i])
		if i < n-1 {
			t.SetSym(i, i+1, d1[i])
		}
	}
	return t
}
