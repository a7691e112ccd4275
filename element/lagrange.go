package element

import (
	"fmt"

	"github.com/notargets/cellfield/element/library/gonudg"
	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/utils"
	"gonum.org/v1/gonum/mat"
)

// LagrangeCube is the tensor-product Lagrange element on the unit n-cube
// [0,1]^d. Nodes are the Gauss-Lobatto points per coordinate, numbered with
// the first coordinate fastest, so the order-1 square has nodes
// (0,0),(1,0),(0,1),(1,1).
type LagrangeCube struct {
	props    ElementProperties
	r1D      []float64  // 1D nodes on [-1,1]
	vinv     *mat.Dense // inverse 1D Vandermonde
	nodes    []field.Point
	vertices []int
	boundary []int
	basis    *ShapeFunctions
}

// NewLagrangeCube builds the order-N element of the given dimension.
func NewLagrangeCube(dim Dimensionality, order int) (*LagrangeCube, error) {
	if dim < D1 || dim > D3 {
		return nil, fmt.Errorf("lagrange cube of dimension %d: %w", dim, utils.ErrUnsupportedArgument)
	}
	if order < 1 {
		return nil, fmt.Errorf("lagrange cube of order %d: %w", order, utils.ErrUnsupportedArgument)
	}
	r, err := gonudg.JacobiGL(0, 0, order)
	if err != nil {
		return nil, err
	}
	var vinv mat.Dense
	if err := vinv.Inverse(gonudg.Vandermonde1D(order, r)); err != nil {
		return nil, fmt.Errorf("1D vandermonde of order %d: %v: %w", order, err, utils.ErrSingularJacobian)
	}

	d := int(dim)
	n1 := order + 1
	np := pow(n1, d)
	el := &LagrangeCube{r1D: r, vinv: &vinv, nodes: make([]field.Point, np)}
	idx := make([]int, d)
	for k := 0; k < np; k++ {
		multiIndex(k, n1, idx)
		pt := make(field.Point, d)
		onVertex, onBoundary := true, false
		for c, i := range idx {
			pt[c] = (r[i] + 1) / 2
			end := i == 0 || i == order
			onVertex = onVertex && end
			onBoundary = onBoundary || end
		}
		el.nodes[k] = pt
		if onVertex {
			el.vertices = append(el.vertices, k)
		}
		if onBoundary {
			el.boundary = append(el.boundary, k)
		}
	}

	g := GeometryFor(dim)
	el.props = ElementProperties{
		Name:       fmt.Sprintf("Lagrange %s Order %d", g, order),
		ShortName:  fmt.Sprintf("%s%d", shortName(g), order),
		Type:       g,
		Order:      order,
		Np:         np,
		NVp:        len(el.vertices),
		NIp:        np - len(el.boundary),
		NFaces:     2 * d,
		Dimensions: dim,
	}
	el.basis = &ShapeFunctions{dim: d, order: order, vinv: el.vinv}
	return el, nil
}

func shortName(g ElementGeometry) string {
	switch g {
	case Line:
		return "Line"
	case Rectangle:
		return "Rect"
	}
	return "Hex"
}

func (el *LagrangeCube) GetProperties() ElementProperties { return el.props }
func (el *LagrangeCube) Nodes() []field.Point             { return el.nodes }
func (el *LagrangeCube) VertexPoints() []int              { return el.vertices }
func (el *LagrangeCube) BoundaryPoints() []int            { return el.boundary }
func (el *LagrangeCube) Basis() field.Field               { return el.basis }

func (el *LagrangeCube) Quadrature(degree int) (*Quadrature, error) {
	return TensorGauss(el.props.Dimensions, degree/2+1)
}

// ShapeFunctions is the nodal basis of a LagrangeCube as a Field. The value
// form returns dims [P,Np] with scalar items; the gradient form has items
// [d].
type ShapeFunctions struct {
	dim   int
	order int
	vinv  *mat.Dense
	grad  bool
}

type shapeCache struct {
	r     []float64
	v, dv []*mat.Dense // 1D Vandermonde per coordinate
	l, dl []*mat.Dense // per coordinate, [P x N+1]
	idx   []int
	out   field.Values
}

func (s *ShapeFunctions) NewCache(args ...any) any { return &shapeCache{} }

func (s *ShapeFunctions) Evaluate(cache any, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("shape functions take one points argument: %w", utils.ErrUnsupportedArgument)
	}
	x, ok := args[0].(*field.Values)
	if !ok || len(x.Dims) != 1 || len(x.Item) != 1 {
		return nil, fmt.Errorf("shape functions evaluated at %v: %w", args[0], utils.ErrUnsupportedArgument)
	}
	if x.Item[0] != s.dim {
		return nil, fmt.Errorf("%d-d shape functions at %d-d points: %w", s.dim, x.Item[0], utils.ErrShapeMismatch)
	}
	c, ok := cache.(*shapeCache)
	if !ok {
		c = &shapeCache{}
	}
	np := x.Len()
	s.tabulate(c, x)

	n1 := s.order + 1
	nk := pow(n1, s.dim)
	if s.grad {
		c.out.Resize([]int{np, nk}, []int{s.dim})
	} else {
		c.out.Resize([]int{np, nk}, nil)
	}
	if cap(c.idx) < s.dim {
		c.idx = make([]int, s.dim)
	}
	idx := c.idx[:s.dim]
	for p := 0; p < np; p++ {
		for k := 0; k < nk; k++ {
			multiIndex(k, n1, idx)
			e := c.out.At(p, k)
			if !s.grad {
				v := 1.0
				for d, i := range idx {
					v *= c.l[d].At(p, i)
				}
				e[0] = v
				continue
			}
			for a := range e {
				v := 1.0
				for d, i := range idx {
					if d == a {
						v *= c.dl[d].At(p, i)
					} else {
						v *= c.l[d].At(p, i)
					}
				}
				e[a] = v
			}
		}
	}
	return &c.out, nil
}

// tabulate fills the 1D Lagrange values and derivatives (with respect to the
// [0,1] coordinate) along every coordinate. The tables are reused while the
// number of points stays the same.
func (s *ShapeFunctions) tabulate(c *shapeCache, x *field.Values) {
	np, n1 := x.Len(), s.order+1
	if len(c.l) != s.dim {
		c.v, c.dv = make([]*mat.Dense, s.dim), make([]*mat.Dense, s.dim)
		c.l, c.dl = make([]*mat.Dense, s.dim), make([]*mat.Dense, s.dim)
	}
	if cap(c.r) < np {
		c.r = make([]float64, np)
	}
	r := c.r[:np]
	for d := 0; d < s.dim; d++ {
		for p := 0; p < np; p++ {
			r[p] = 2*x.Point(p)[d] - 1
		}
		c.v[d], c.dv[d] = sized(c.v[d], np, n1), sized(c.dv[d], np, n1)
		gonudg.FillVandermonde1D(c.v[d], c.dv[d], s.order, r)
		c.l[d], c.dl[d] = sized(c.l[d], np, n1), sized(c.dl[d], np, n1)
		c.l[d].Mul(c.v[d], s.vinv)
		c.dl[d].Mul(c.dv[d], s.vinv)
		c.dl[d].Scale(2, c.dl[d])
	}
}

func sized(m *mat.Dense, r, c int) *mat.Dense {
	if m != nil {
		if mr, mc := m.Dims(); mr == r && mc == c {
			return m
		}
	}
	return mat.NewDense(r, c, nil)
}

func (s *ShapeFunctions) Gradient() (field.Field, error) {
	if s.grad {
		return nil, fmt.Errorf("second derivatives of %T: %w", s, utils.ErrNotDifferentiable)
	}
	return &ShapeFunctions{dim: s.dim, order: s.order, vinv: s.vinv, grad: true}, nil
}

// multiIndex decodes k into per-coordinate indices, first coordinate fastest.
func multiIndex(k, n int, idx []int) {
	for d := range idx {
		idx[d] = k % n
		k /= n
	}
}

func pow(b, e int) int {
	r := 1
	for i := 0; i < e; i++ {
		r *= b
	}
	return r
}
