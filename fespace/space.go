// Package fespace provides the conforming Lagrangian finite element space
// whose degrees of freedom are the nodes of a Cartesian mesh.
//
// Dof ids are signed and 1-based: free dofs are 1..NumFreeDofs and fixed
// (Dirichlet) dofs are -1..-NumFixedDofs.
package fespace

import (
	"fmt"
	"math"

	"github.com/notargets/cellfield/celldata"
	"github.com/notargets/cellfield/cellfield"
	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/geometry"
	"github.com/notargets/cellfield/integration"
	"github.com/notargets/cellfield/lazy"
	"github.com/notargets/cellfield/utils"
	"github.com/rs/zerolog/log"
)

// Space is a scalar H1-conforming space on a triangulation.
type Space struct {
	trian      *geometry.Triangulation
	nodeDof    []int
	cellDofs   [][]int
	freeNodes  []int
	fixedNodes []int
}

// NewSpace numbers the nodes of trian's grid, fixing the given nodes.
func NewSpace(trian *geometry.Triangulation, dirichletNodes []int) (*Space, error) {
	g := trian.Grid()
	nodes := g.NodeCoordinates()
	fixed := make(map[int]bool, len(dirichletNodes))
	for _, n := range dirichletNodes {
		if n < 0 || n >= len(nodes) {
			return nil, fmt.Errorf("dirichlet node %d of %d: %w", n, len(nodes), utils.ErrOutOfBounds)
		}
		fixed[n] = true
	}
	s := &Space{trian: trian, nodeDof: make([]int, len(nodes))}
	for n := range nodes {
		if fixed[n] {
			s.fixedNodes = append(s.fixedNodes, n)
			s.nodeDof[n] = -len(s.fixedNodes)
		} else {
			s.freeNodes = append(s.freeNodes, n)
			s.nodeDof[n] = len(s.freeNodes)
		}
	}
	ids := g.CellNodeIDs()
	s.cellDofs = make([][]int, len(ids))
	for c, cell := range ids {
		s.cellDofs[c] = make([]int, len(cell))
		for k, n := range cell {
			s.cellDofs[c][k] = s.nodeDof[n]
		}
	}
	log.Debug().Int("free", len(s.freeNodes)).Int("fixed", len(s.fixedNodes)).Msg("fe space numbered")
	return s, nil
}

func (s *Space) Triangulation() *geometry.Triangulation { return s.trian }
func (s *Space) NumFreeDofs() int                       { return len(s.freeNodes) }
func (s *Space) NumFixedDofs() int                      { return len(s.fixedNodes) }

// CellDofIDs is the per-cell array of signed dof ids, in reference node
// order.
func (s *Space) CellDofIDs() lazy.Array { return lazy.FromSlice(s.cellDofs) }

// DofOfNode returns the signed dof id of a mesh node.
func (s *Space) DofOfNode(n int) (int, error) {
	if n < 0 || n >= len(s.nodeDof) {
		return 0, fmt.Errorf("node %d of %d: %w", n, len(s.nodeDof), utils.ErrOutOfBounds)
	}
	return s.nodeDof[n], nil
}

// FreeNodes lists the mesh node of every free dof, by dof id - 1.
func (s *Space) FreeNodes() []int { return s.freeNodes }

// FixedNodes lists the mesh node of every fixed dof, by -id - 1.
func (s *Space) FixedNodes() []int { return s.fixedNodes }

// TestBasis is the shape function basis on every cell.
func (s *Space) TestBasis() *cellfield.CellField { return cellfield.ReferenceBasis(s.trian) }

// TrialBasis is the basis in the trial slot.
func (s *Space) TrialBasis() (*cellfield.CellField, error) { return cellfield.Trial(s.TestBasis()) }

// FEFunction is a cell field backed by free and fixed dof values.
type FEFunction struct {
	*cellfield.CellField
	Free  []float64
	Fixed []float64
	space *Space
}

// NewFEFunction builds sum_k u_k phi_k per cell. The cell coefficients are
// gathered lazily through the signed dof ids.
func (s *Space) NewFEFunction(free, fixed []float64) (*FEFunction, error) {
	if len(free) != s.NumFreeDofs() || len(fixed) != s.NumFixedDofs() {
		return nil, fmt.Errorf("%d free and %d fixed values for a space with %d and %d: %w",
			len(free), len(fixed), s.NumFreeDofs(), s.NumFixedDofs(), utils.ErrShapeMismatch)
	}
	coeffs, err := lazy.LazyMap(field.PosNegReindex[float64]{Pos: free, Neg: fixed}, s.CellDofIDs())
	if err != nil {
		return nil, err
	}
	n := s.trian.NumCells()
	data, err := lazy.LazyMap(field.LinearCombination{}, coeffs, lazy.NewFill(s.trian.Reference().Basis(), n))
	if err != nil {
		return nil, err
	}
	return &FEFunction{
		CellField: cellfield.New(data, celldata.ReferenceDomain, s.trian),
		Free:      free,
		Fixed:     fixed,
		space:     s,
	}, nil
}

func (f *FEFunction) Space() *Space { return f.space }

// Interpolate is the nodal interpolant of the scalar field u.
func (s *Space) Interpolate(u field.Field) (*FEFunction, error) {
	free, err := s.nodalValues(u, s.freeNodes)
	if err != nil {
		return nil, err
	}
	fixed, err := s.nodalValues(u, s.fixedNodes)
	if err != nil {
		return nil, err
	}
	return s.NewFEFunction(free, fixed)
}

// InterpolateDirichlet returns the values of u at the fixed dofs.
func (s *Space) InterpolateDirichlet(u field.Field) ([]float64, error) {
	return s.nodalValues(u, s.fixedNodes)
}

func (s *Space) nodalValues(u field.Field, nodes []int) ([]float64, error) {
	if len(nodes) == 0 {
		return []float64{}, nil
	}
	coords := s.trian.Grid().NodeCoordinates()
	pts := make([]field.Point, len(nodes))
	for i, n := range nodes {
		pts[i] = coords[n]
	}
	vals, err := field.EvaluateAt(u, pts...)
	if err != nil {
		return nil, err
	}
	if vals.ItemSize() != 1 {
		return nil, fmt.Errorf("interpolating a field with item %v: %w", vals.Item, utils.ErrShapeMismatch)
	}
	return append([]float64(nil), vals.Data...), nil
}

// L2Error returns sqrt(integral (uh - u)^2) over the measure.
func L2Error(uh *cellfield.CellField, u field.Field, dOmega *integration.Measure) (float64, error) {
	sq, err := SquaredError(uh, u, dOmega)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(sq), nil
}

// SquaredError returns integral (uh - u)^2 over the measure.
func SquaredError(uh *cellfield.CellField, u field.Field, dOmega *integration.Measure) (float64, error) {
	e, err := cellfield.Sub(uh, cellfield.FromField(uh.Triangulation(), u))
	if err != nil {
		return 0, err
	}
	e2, err := cellfield.Mul(e, e)
	if err != nil {
		return 0, err
	}
	contribs, err := dOmega.Integrate(e2)
	if err != nil {
		return 0, err
	}
	return integration.Sum(contribs)
}
