// Package mesh provides the structured Cartesian meshes the engine is
// exercised on: global node coordinates, per-cell node ids in reference
// element order, and tagged boundary nodes.
package mesh

import (
	"fmt"
	"sort"
	"strings"

	"github.com/notargets/cellfield/element/library/gonudg"
	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/utils"
)

// CartesianDescriptor describes a box [Origin, Origin+Sizes] split into
// Cells[d] equal cells along coordinate d, carrying Lagrange nodes of the
// given order.
type CartesianDescriptor struct {
	Origin []float64 `yaml:"origin"`
	Sizes  []float64 `yaml:"sizes"`
	Cells  []int     `yaml:"cells"`
	Order  int       `yaml:"order"`
}

// Validate reports descriptor errors.
func (d CartesianDescriptor) Validate() error {
	dim := len(d.Cells)
	if dim < 1 || dim > 3 {
		return fmt.Errorf("cartesian mesh of dimension %d: %w", dim, utils.ErrUnsupportedArgument)
	}
	if len(d.Origin) != dim || len(d.Sizes) != dim {
		return fmt.Errorf("origin %v and sizes %v for %d-d cells: %w", d.Origin, d.Sizes, dim, utils.ErrShapeMismatch)
	}
	for i := 0; i < dim; i++ {
		if d.Cells[i] < 1 || d.Sizes[i] <= 0 {
			return fmt.Errorf("coordinate %d has %d cells over %g: %w", i, d.Cells[i], d.Sizes[i], utils.ErrUnsupportedArgument)
		}
	}
	if d.Order < 1 {
		return fmt.Errorf("node order %d: %w", d.Order, utils.ErrUnsupportedArgument)
	}
	return nil
}

// UnitSquare is the n x n mesh of [0,1]^2 with nodes of the given order.
func UnitSquare(n, order int) CartesianDescriptor {
	return CartesianDescriptor{
		Origin: []float64{0, 0},
		Sizes:  []float64{1, 1},
		Cells:  []int{n, n},
		Order:  order,
	}
}

// CartesianModel is a generated Cartesian mesh.
type CartesianModel struct {
	Desc      CartesianDescriptor
	Dim       int
	nodes     []field.Point
	cellNodes [][]int
	tags      map[string][]int
}

// NewCartesianModel generates the nodes and cell connectivity. Nodes are
// numbered on the global node grid with the first coordinate fastest; each
// cell lists its nodes in the same order as the reference element.
func NewCartesianModel(desc CartesianDescriptor) (*CartesianModel, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	r, err := gonudg.JacobiGL(0, 0, desc.Order)
	if err != nil {
		return nil, err
	}
	dim, p := len(desc.Cells), desc.Order
	m := &CartesianModel{Desc: desc, Dim: dim, tags: make(map[string][]int)}

	grid := make([]int, dim) // nodes per coordinate
	for d := range grid {
		grid[d] = desc.Cells[d]*p + 1
	}
	nn := product(grid)
	m.nodes = make([]field.Point, nn)
	gi := make([]int, dim)
	for n := 0; n < nn; n++ {
		unravel(n, grid, gi)
		pt := make(field.Point, dim)
		for d, j := range gi {
			c, l := j/p, j%p
			if c == desc.Cells[d] {
				c, l = c-1, p
			}
			h := desc.Sizes[d] / float64(desc.Cells[d])
			pt[d] = desc.Origin[d] + h*(float64(c)+(r[l]+1)/2)
			if j == 0 {
				m.tags[sideTag(d, false)] = append(m.tags[sideTag(d, false)], n)
			}
			if j == grid[d]-1 {
				m.tags[sideTag(d, true)] = append(m.tags[sideTag(d, true)], n)
			}
		}
		m.nodes[n] = pt
	}

	nc := product(desc.Cells)
	local := make([]int, dim)
	for d := range local {
		local[d] = p + 1
	}
	nloc := product(local)
	m.cellNodes = make([][]int, nc)
	ci, li := make([]int, dim), make([]int, dim)
	for c := 0; c < nc; c++ {
		unravel(c, desc.Cells, ci)
		ids := make([]int, nloc)
		for k := 0; k < nloc; k++ {
			unravel(k, local, li)
			for d := range gi {
				gi[d] = ci[d]*p + li[d]
			}
			ids[k] = ravel(gi, grid)
		}
		m.cellNodes[c] = ids
	}
	return m, nil
}

func sideTag(d int, max bool) string {
	axis := []string{"x", "y", "z"}[d]
	if max {
		return axis + "max"
	}
	return axis + "min"
}

func (m *CartesianModel) NumCells() int                  { return len(m.cellNodes) }
func (m *CartesianModel) NumNodes() int                  { return len(m.nodes) }
func (m *CartesianModel) NodeCoordinates() []field.Point { return m.nodes }
func (m *CartesianModel) CellNodeIDs() [][]int           { return m.cellNodes }

// CellToBackground is the identity: the model is its own background mesh.
func (m *CartesianModel) CellToBackground() []int {
	ids := make([]int, len(m.cellNodes))
	for c := range ids {
		ids[c] = c
	}
	return ids
}

func (m *CartesianModel) Tags() []string {
	out := make([]string, 0, len(m.tags))
	for t := range m.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// BoundaryNodes returns the sorted node ids carrying any of the tags, or
// every boundary node when no tag is given.
func (m *CartesianModel) BoundaryNodes(tags ...string) ([]int, error) {
	if len(tags) == 0 {
		tags = m.Tags()
	}
	seen := make(map[int]bool)
	for _, t := range tags {
		ids, ok := m.tags[t]
		if !ok {
			return nil, fmt.Errorf("boundary tag %q (have %s): %w", t, strings.Join(m.Tags(), ","), utils.ErrOutOfBounds)
		}
		for _, id := range ids {
			seen[id] = true
		}
	}
	out := make([]int, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Ints(out)
	return out, nil
}

func (m *CartesianModel) String() string {
	return fmt.Sprintf("CartesianModel{dim=%d cells=%v order=%d nodes=%d}", m.Dim, m.Desc.Cells, m.Desc.Order, len(m.nodes))
}

func product(s []int) int {
	n := 1
	for _, v := range s {
		n *= v
	}
	return n
}

// unravel decodes k over dims, first coordinate fastest.
func unravel(k int, dims, idx []int) {
	for d, n := range dims {
		idx[d] = k % n
		k /= n
	}
}

func ravel(idx, dims []int) int {
	k := 0
	for d := len(dims) - 1; d >= 0; d-- {
		k = k*dims[d] + idx[d]
	}
	return k
}
