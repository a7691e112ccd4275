// Package cellfield is the user-facing layer of the engine: per-cell fields
// built by composition over lazy arrays, evaluated against cell points.
//
// Every operation here only registers lazy nodes. In particular a field
// built as a linear combination of per-cell coefficients and the shared
// reference basis keeps the basis in a single Fill, so evaluating it at a
// shared point set evaluates the basis once for the whole mesh.
package cellfield

import (
	"fmt"

	"github.com/notargets/cellfield/celldata"
	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/geometry"
	"github.com/notargets/cellfield/lazy"
	"github.com/notargets/cellfield/utils"
)

// CellField is a per-cell array of field.Field values with a domain.
type CellField struct {
	data   lazy.Array
	domain celldata.DomainStyle
	trian  *geometry.Triangulation
}

// New wraps a per-cell array of fields. trian may be nil for fields that
// never change domain.
func New(data lazy.Array, domain celldata.DomainStyle, trian *geometry.Triangulation) *CellField {
	return &CellField{data: data, domain: domain, trian: trian}
}

// FromField places the same physical field on every cell.
func FromField(trian *geometry.Triangulation, f field.Field) *CellField {
	return New(lazy.NewFill(f, trian.NumCells()), celldata.PhysicalDomain, trian)
}

// ReferenceBasis is the shape function basis of the reference element on
// every cell.
func ReferenceBasis(trian *geometry.Triangulation) *CellField {
	return New(lazy.NewFill(trian.Reference().Basis(), trian.NumCells()), celldata.ReferenceDomain, trian)
}

// Constant is the scalar v on every cell.
func Constant(trian *geometry.Triangulation, v float64) *CellField {
	return New(lazy.NewFill(field.NewConstantScalar(v), trian.NumCells()), celldata.ReferenceDomain, trian)
}

func (f *CellField) CellData() lazy.Array                   { return f.data }
func (f *CellField) DomainStyle() celldata.DomainStyle      { return f.domain }
func (f *CellField) Triangulation() *geometry.Triangulation { return f.trian }
func (f *CellField) NumCells() int                          { return f.data.Len() }

// Evaluate evaluates every cell's field at that cell's points. Points in the
// other domain are moved to the field's domain first.
func Evaluate(f *CellField, x celldata.CellDatum) (lazy.Array, error) {
	pts := x.CellData()
	if x.DomainStyle() != f.domain {
		var cp *celldata.CellPoint
		switch p := x.(type) {
		case *celldata.CellPoint:
			cp = p
		case *celldata.CellQuadrature:
			cp = p.CellPoint()
		}
		if cp == nil || cp.Triangulation() == nil {
			if f.trian == nil {
				return nil, fmt.Errorf("%s field at %s %T: %w", f.domain, x.DomainStyle(), x, utils.ErrDomainMismatch)
			}
			cp = celldata.NewCellPoint(pts, x.DomainStyle(), f.trian)
		}
		moved, err := cp.ChangeDomain(f.domain)
		if err != nil {
			return nil, err
		}
		pts = moved.CellData()
	}
	return lazy.LazyMap(field.EvaluateMap{}, f.data, pts)
}

// ChangeDomain re-expresses f in the target domain by composing with the
// cell maps: a physical field becomes f∘psi, a reference field f∘psi^-1.
func ChangeDomain(f *CellField, target celldata.DomainStyle) (*CellField, error) {
	if target == f.domain {
		return f, nil
	}
	if f.trian == nil {
		return nil, fmt.Errorf("field from %s to %s without a triangulation: %w", f.domain, target, utils.ErrDomainMismatch)
	}
	var maps lazy.Array
	switch target {
	case celldata.ReferenceDomain:
		maps = f.trian.CellMaps()
	case celldata.PhysicalDomain:
		maps = f.trian.InverseMaps()
	default:
		return nil, fmt.Errorf("domain %s: %w", target, utils.ErrDomainMismatch)
	}
	data, err := lazy.LazyMap(field.ComposeMap{}, f.data, maps)
	if err != nil {
		return nil, err
	}
	return New(data, target, f.trian), nil
}

// Gradient is the physical gradient of f. On reference fields the reference
// gradient is pulled back with inverse(Jt); the result stays in the
// reference domain. Sums and scalings differentiate term by term and Mul,
// Dot and Inner by the product rule; other operations fail with
// utils.ErrNotDifferentiable when evaluated.
func Gradient(f *CellField) (*CellField, error) {
	g, err := lazy.LazyMap(field.GradientMap{}, f.data)
	if err != nil {
		return nil, err
	}
	if f.domain == celldata.PhysicalDomain {
		return New(g, f.domain, f.trian), nil
	}
	if f.trian == nil {
		return nil, fmt.Errorf("pull-back without a triangulation: %w", utils.ErrDomainMismatch)
	}
	pulled, err := f.trian.PullBackGradient(g)
	if err != nil {
		return nil, err
	}
	return New(pulled, f.domain, f.trian), nil
}

// ReferenceGradient differentiates with respect to the cell's own
// coordinates, without pull-back.
func ReferenceGradient(f *CellField) (*CellField, error) {
	g, err := lazy.LazyMap(field.GradientMap{}, f.data)
	if err != nil {
		return nil, err
	}
	return New(g, f.domain, f.trian), nil
}

// Trial places a basis field in the trial slot of a bilinear form.
func Trial(f *CellField) (*CellField, error) {
	data, err := lazy.LazyMap(field.TrialMap{}, f.data)
	if err != nil {
		return nil, err
	}
	return New(data, f.domain, f.trian), nil
}
