package element

import (
	"fmt"

	"github.com/notargets/cellfield/element/library/gonudg"
	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/utils"
)

// Quadrature is a reference-cell rule: points in [0,1]^d and weights that
// sum to the cell volume (1).
type Quadrature struct {
	Points  []field.Point
	Weights []float64
}

// TensorGauss builds the tensor-product Gauss-Legendre rule with n points per
// coordinate on [0,1]^d. It is exact for degree 2n-1 in each coordinate.
// Points are numbered with the first coordinate fastest.
func TensorGauss(dim Dimensionality, n int) (*Quadrature, error) {
	if dim < D1 || dim > D3 || n < 1 {
		return nil, fmt.Errorf("gauss rule with %d points in %d dimensions: %w", n, dim, utils.ErrUnsupportedArgument)
	}
	r, w, err := gonudg.JacobiGQ(0, 0, n-1)
	if err != nil {
		return nil, err
	}
	d := int(dim)
	total := pow(n, d)
	q := &Quadrature{Points: make([]field.Point, total), Weights: make([]float64, total)}
	idx := make([]int, d)
	for k := 0; k < total; k++ {
		multiIndex(k, n, idx)
		pt := make(field.Point, d)
		wt := 1.0
		for c, i := range idx {
			pt[c] = (r[i] + 1) / 2
			wt *= w[i] / 2
		}
		q.Points[k], q.Weights[k] = pt, wt
	}
	return q, nil
}

// Len returns the number of points.
func (q *Quadrature) Len() int { return len(q.Points) }

// PointValues returns the points as a [Q] block with item [d].
func (q *Quadrature) PointValues() *field.Values { return field.NewPoints(q.Points) }
