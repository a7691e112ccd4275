package geometry

import (
	"fmt"
	"math"

	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/utils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	newtonMaxIter = 30
	newtonTol     = 1e-13
)

// inverseMapBuilder turns the node coordinates of a cell into its
// *InverseCellMap.
type inverseMapBuilder struct {
	basis field.Field
}

func (b inverseMapBuilder) NewCache(args ...any) any { return nil }

func (b inverseMapBuilder) Evaluate(_ any, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("inverse map takes cell coordinates: %w", utils.ErrUnsupportedArgument)
	}
	coords, ok := args[0].([]field.Point)
	if !ok {
		return nil, fmt.Errorf("inverse map of %T: %w", args[0], utils.ErrUnsupportedArgument)
	}
	grad, err := b.basis.Gradient()
	if err != nil {
		return nil, err
	}
	return &InverseCellMap{
		Coords: append([]field.Point(nil), coords...),
		Basis:  b.basis,
		Grad:   grad,
	}, nil
}

// InverseCellMap maps physical points of one cell back to reference
// coordinates by Newton iteration on x(xi) = sum_k X_k phi_k(xi).
type InverseCellMap struct {
	Coords []field.Point
	Basis  field.Field
	Grad   field.Field
	// gradient form: evaluates inverse(Jt) at the preimage instead
	jacobian bool
}

type inverseCache struct {
	xi       *field.Values
	phi, dph any
	jt       *mat.Dense
	lu       mat.LU
	rhs, dx  *mat.VecDense
	out      field.Values
}

func (m *InverseCellMap) NewCache(args ...any) any {
	d := len(m.Coords[0])
	return &inverseCache{
		xi:  field.NewValues([]int{1}, []int{d}),
		phi: m.Basis.NewCache(),
		dph: m.Grad.NewCache(),
		jt:  mat.NewDense(d, d, nil),
		rhs: mat.NewVecDense(d, nil),
		dx:  mat.NewVecDense(d, nil),
	}
}

func (m *InverseCellMap) Evaluate(cache any, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("inverse map takes one points argument: %w", utils.ErrUnsupportedArgument)
	}
	x, ok := args[0].(*field.Values)
	if !ok || len(x.Dims) != 1 || len(x.Item) != 1 {
		return nil, fmt.Errorf("inverse map evaluated at %v: %w", args[0], utils.ErrUnsupportedArgument)
	}
	d := len(m.Coords[0])
	if x.Item[0] != d {
		return nil, fmt.Errorf("%d-d inverse map at %d-d points: %w", d, x.Item[0], utils.ErrShapeMismatch)
	}
	c, ok := cache.(*inverseCache)
	if !ok {
		c = m.NewCache().(*inverseCache)
	}
	if m.jacobian {
		c.out.Resize(x.Dims, []int{d, d})
	} else {
		c.out.Resize(x.Dims, []int{d})
	}
	for p := 0; p < x.Len(); p++ {
		if err := m.solve(c, x.Point(p)); err != nil {
			return nil, fmt.Errorf("point %d (%v): %w", p, x.Point(p), err)
		}
		dst := c.out.Entry(p)
		if !m.jacobian {
			copy(dst, c.xi.Data)
			continue
		}
		var inv mat.Dense
		if err := inv.Inverse(c.jt); err != nil {
			return nil, fmt.Errorf("inverting cell jacobian: %v: %w", err, utils.ErrSingularJacobian)
		}
		copy(dst, inv.RawMatrix().Data)
	}
	return &c.out, nil
}

// solve leaves the preimage of target in c.xi and Jt at it in c.jt.
func (m *InverseCellMap) solve(c *inverseCache, target field.Point) error {
	d := len(target)
	for a := range c.xi.Data {
		c.xi.Data[a] = 0.5
	}
	scale := 1.0
	for _, v := range target {
		scale = math.Max(scale, math.Abs(v))
	}
	for it := 0; it < newtonMaxIter; it++ {
		if err := m.linearize(c); err != nil {
			return err
		}
		// rhs holds x(xi); turn it into the residual target - x(xi)
		for b := 0; b < d; b++ {
			c.rhs.SetVec(b, target[b]-c.rhs.AtVec(b))
		}
		if floats.Norm(c.rhs.RawVector().Data, 2) <= newtonTol*scale {
			return nil
		}
		// J dxi = r with J = Jt^T
		c.lu.Factorize(c.jt.T())
		if err := c.lu.SolveVecTo(c.dx, false, c.rhs); err != nil {
			return fmt.Errorf("newton step %d: %v: %w", it, err, utils.ErrSingularJacobian)
		}
		floats.Add(c.xi.Data, c.dx.RawVector().Data)
	}
	return fmt.Errorf("no preimage within %g after %d iterations: %w", newtonTol*scale, newtonMaxIter, utils.ErrNotConverged)
}

// linearize evaluates x(xi) into c.rhs and Jt(xi) into c.jt.
func (m *InverseCellMap) linearize(c *inverseCache) error {
	d := c.xi.Item[0]
	pv, err := m.Basis.Evaluate(c.phi, c.xi)
	if err != nil {
		return err
	}
	gv, err := m.Grad.Evaluate(c.dph, c.xi)
	if err != nil {
		return err
	}
	phi, grad := pv.(*field.Values), gv.(*field.Values)
	c.rhs.Zero()
	c.jt.Zero()
	for k, X := range m.Coords {
		w := phi.At(0, k)[0]
		g := grad.At(0, k)
		for b := 0; b < d; b++ {
			c.rhs.SetVec(b, c.rhs.AtVec(b)+w*X[b])
			for a := 0; a < d; a++ {
				c.jt.Set(a, b, c.jt.At(a, b)+g[a]*X[b])
			}
		}
	}
	return nil
}

// Gradient of the inverse map at x is inverse(Jt) evaluated at the preimage
// of x: d xi_b / d x_a = inverse(Jt)[a][b].
func (m *InverseCellMap) Gradient() (field.Field, error) {
	if m.jacobian {
		return nil, fmt.Errorf("second derivatives of %T: %w", m, utils.ErrNotDifferentiable)
	}
	g := *m
	g.jacobian = true
	return &g, nil
}
