// Package integration turns cell fields into per-cell contributions:
//
//	c_k = sum_q f_k(xi_q) w_q |det J_k(xi_q)|
//
// computed lazily over the cells of a triangulation.
package integration

import (
	"fmt"

	"github.com/notargets/cellfield/celldata"
	"github.com/notargets/cellfield/cellfield"
	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/geometry"
	"github.com/notargets/cellfield/lazy"
	"github.com/notargets/cellfield/utils"
)

// Integrate returns the per-cell integrals of f. Entry k is a *field.Values
// with the entry dims of f after the quadrature dim: a scalar for a plain
// field, [K] for a test basis and [K,K] for a bilinear form.
func Integrate(f *cellfield.CellField, q *celldata.CellQuadrature) (lazy.Array, error) {
	if f.NumCells() != q.CellData().Len() {
		return nil, fmt.Errorf("field over %d cells with quadrature over %d: %w",
			f.NumCells(), q.CellData().Len(), utils.ErrShapeMismatch)
	}
	vals, err := cellfield.Evaluate(f, q)
	if err != nil {
		return nil, err
	}
	jac, err := q.Jacobians()
	if err != nil {
		return nil, err
	}
	return lazy.LazyMap(field.IntegrationMap{}, vals, q.Weights(), jac)
}

// Measure is the integration domain d(Omega) of a triangulation with a
// fixed quadrature.
type Measure struct {
	Quad *celldata.CellQuadrature
}

// NewMeasure picks the rule exact for polynomials of the given degree.
func NewMeasure(trian *geometry.Triangulation, degree int) (*Measure, error) {
	q, err := celldata.NewCellQuadrature(trian, degree)
	if err != nil {
		return nil, err
	}
	return &Measure{Quad: q}, nil
}

func (m *Measure) Integrate(f *cellfield.CellField) (lazy.Array, error) {
	return Integrate(f, m.Quad)
}

// Sum adds scalar per-cell contributions.
func Sum(contribs lazy.Array) (float64, error) {
	var total float64
	err := lazy.Each(contribs, func(i int, v any) error {
		vals, ok := v.(*field.Values)
		if !ok || vals.Len() != 1 || vals.ItemSize() != 1 {
			return fmt.Errorf("cell %d contribution %v is not a scalar: %w", i, v, utils.ErrShapeMismatch)
		}
		total += vals.Data[0]
		return nil
	})
	return total, err
}
