// Package geometry builds the cell-wise geometric maps of a mesh as lazy
// arrays: reference-to-physical maps, their Jacobians, inverse maps and the
// pull-back of reference gradients.
//
// Jacobians are stored transposed: Jt[a][b] = dx_b/dxi_a. This is the
// layout produced by combining nodal coordinates with reference basis
// gradients, and it makes the physical gradient inverse(Jt) . grad_ref.
package geometry

import (
	"fmt"

	"github.com/notargets/cellfield/element"
	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/lazy"
	"github.com/notargets/cellfield/utils"
	"github.com/rs/zerolog/log"
)

// Grid is the mesh provider consumed by a Triangulation.
type Grid interface {
	NumCells() int
	NodeCoordinates() []field.Point
	CellNodeIDs() [][]int
}

// BackgroundGrid is a Grid whose cells are a subset of a background mesh.
// Grids that do not implement it are their own background.
type BackgroundGrid interface {
	Grid
	CellToBackground() []int
}

// Triangulation couples a grid with the reference element of its cells.
type Triangulation struct {
	grid Grid
	ref  element.Element
	dim  int

	bg      lazy.Array // background cell id per cell
	coords  lazy.Array // []field.Point per cell
	maps    lazy.Array // cell map field per cell
	jt      lazy.Array // transposed Jacobian field per cell
	invJt   lazy.Array // inverse of Jt per cell
	inverse lazy.Array // physical-to-reference map per cell
}

// NewTriangulation builds the lazy geometric arrays. Nothing is evaluated.
func NewTriangulation(g Grid, ref element.Element) (*Triangulation, error) {
	n := g.NumCells()
	ids := g.CellNodeIDs()
	if len(ids) != n {
		return nil, fmt.Errorf("%d cell node lists for %d cells: %w", len(ids), n, utils.ErrShapeMismatch)
	}
	np := ref.GetProperties().Np
	for c, cell := range ids {
		if len(cell) != np {
			return nil, fmt.Errorf("cell %d has %d nodes, %s needs %d: %w",
				c, len(cell), ref.GetProperties().ShortName, np, utils.ErrShapeMismatch)
		}
	}
	t := &Triangulation{grid: g, ref: ref, dim: int(ref.GetProperties().Dimensions)}

	bg, err := backgroundIDs(g)
	if err != nil {
		return nil, err
	}
	t.bg = lazy.FromSlice(bg)

	nodes := g.NodeCoordinates()
	if t.coords, err = lazy.LazyMap(field.Reindex[field.Point]{Table: nodes}, lazy.FromSlice(ids)); err != nil {
		return nil, err
	}
	basis := lazy.NewFill(ref.Basis(), n)
	if t.maps, err = lazy.LazyMap(field.LinearCombination{}, t.coords, basis); err != nil {
		return nil, err
	}
	if t.jt, err = lazy.LazyMap(field.GradientMap{}, t.maps); err != nil {
		return nil, err
	}
	if t.invJt, err = lazy.LazyMap(field.Operation{Op: field.Inverse}, t.jt); err != nil {
		return nil, err
	}
	if t.inverse, err = lazy.LazyMap(inverseMapBuilder{basis: ref.Basis()}, t.coords); err != nil {
		return nil, err
	}
	log.Debug().Int("cells", n).Str("element", ref.GetProperties().ShortName).Msg("triangulation built")
	return t, nil
}

func (t *Triangulation) NumCells() int              { return t.grid.NumCells() }
func (t *Triangulation) Dim() int                   { return t.dim }
func (t *Triangulation) Reference() element.Element { return t.ref }
func (t *Triangulation) Grid() Grid                 { return t.grid }

// CellToBackground is the per-cell id of the background mesh cell.
func (t *Triangulation) CellToBackground() lazy.Array { return t.bg }

func backgroundIDs(g Grid) ([]int, error) {
	n := g.NumCells()
	if b, ok := g.(BackgroundGrid); ok {
		ids := b.CellToBackground()
		if len(ids) != n {
			return nil, fmt.Errorf("%d background ids for %d cells: %w", len(ids), n, utils.ErrShapeMismatch)
		}
		return ids, nil
	}
	ids := make([]int, n)
	for c := range ids {
		ids[c] = c
	}
	return ids, nil
}

// CellCoordinates is the per-cell array of node coordinates.
func (t *Triangulation) CellCoordinates() lazy.Array { return t.coords }

// CellMaps is the per-cell reference-to-physical map psi_k.
func (t *Triangulation) CellMaps() lazy.Array { return t.maps }

// CellJacobians is the per-cell transposed Jacobian field Jt_k.
func (t *Triangulation) CellJacobians() lazy.Array { return t.jt }

// InverseJacobiansT is the per-cell field inverse(Jt_k).
func (t *Triangulation) InverseJacobiansT() lazy.Array { return t.invJt }

// InverseMaps is the per-cell physical-to-reference map.
func (t *Triangulation) InverseMaps() lazy.Array { return t.inverse }

// PullBackGradient maps a per-cell array of reference gradient fields to
// physical gradients: inverse(Jt_k) . grad_ref.
func (t *Triangulation) PullBackGradient(refGrad lazy.Array) (lazy.Array, error) {
	return lazy.LazyMap(field.Operation{Op: field.Dot}, t.invJt, refGrad)
}

// Volumes integrates the constant 1 over every cell with q.
func (t *Triangulation) Volumes(q *element.Quadrature) ([]float64, error) {
	n := t.NumCells()
	x := lazy.NewFill(q.PointValues(), n)
	jac, err := lazy.LazyMap(field.EvaluateMap{}, t.jt, x)
	if err != nil {
		return nil, err
	}
	ones := make([]float64, q.Len())
	for i := range ones {
		ones[i] = 1
	}
	vol, err := lazy.LazyMap(field.IntegrationMap{},
		lazy.NewFill(field.NewScalars(ones), n), lazy.NewFill(q.Weights, n), jac)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	err = lazy.Each(vol, func(i int, v any) error {
		out[i] = v.(*field.Values).Data[0]
		return nil
	})
	return out, err
}
