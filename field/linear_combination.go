package field

import (
	"fmt"

	"github.com/notargets/cellfield/utils"
	"gonum.org/v1/gonum/floats"
)

// LinearCombinationMap contracts an evaluated basis block against
// coefficients: out[e] = sum_k basis[e,k] (x) coeff[k].
//
// Arguments are (coeffs, basis). Coeffs may be []float64, []Point or a
// *Values with dims [K]; basis is a *Values with dims [...,K]. The result
// drops the trailing K dim and its item is basis item followed by coefficient
// item, so gradient-of-basis times nodal coordinates gives the transposed
// Jacobian Jt[a][b] = sum_k dphi_k/dxi_a X_k[b].
type LinearCombinationMap struct{}

type lincombMapCache struct {
	coeffs Values
	out    Values
}

func (LinearCombinationMap) NewCache(args ...any) any { return &lincombMapCache{} }

func (LinearCombinationMap) Evaluate(cache any, args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("linear combination takes (coeffs, basis), got %d args: %w",
			len(args), utils.ErrUnsupportedArgument)
	}
	c, ok := cache.(*lincombMapCache)
	if !ok {
		c = &lincombMapCache{}
	}
	coeffs, err := valuesInto(args[0], &c.coeffs)
	if err != nil {
		return nil, fmt.Errorf("linear combination coefficients: %w", err)
	}
	basis, ok := args[1].(*Values)
	if !ok {
		return nil, fmt.Errorf("linear combination basis: %T: %w", args[1], utils.ErrUnsupportedArgument)
	}
	return &c.out, contract(&c.out, coeffs, basis)
}

func contract(out, coeffs, basis *Values) error {
	nd := len(basis.Dims)
	if nd == 0 || len(coeffs.Dims) != 1 || coeffs.Dims[0] != basis.Dims[nd-1] {
		return fmt.Errorf("%d coefficient dims %v against basis %v: %w",
			len(coeffs.Dims), coeffs.Dims, basis, utils.ErrShapeMismatch)
	}
	k := basis.Dims[nd-1]
	nb, nc := basis.ItemSize(), coeffs.ItemSize()

	// item = basis item ++ coefficient item, built without allocating
	out.Resize(basis.Dims[:nd-1], basis.Item)
	out.Item = append(out.Item, coeffs.Item...)
	n := out.Len() * nb * nc
	if cap(out.Data) < n {
		out.Data = make([]float64, n)
	}
	out.Data = out.Data[:n]
	out.Zero()

	for e := 0; e < out.Len(); e++ {
		dst := out.Entry(e)
		for j := 0; j < k; j++ {
			b := basis.Entry(e*k + j)
			c := coeffs.Entry(j)
			for a := 0; a < nb; a++ {
				ba := b[a]
				if ba == 0 {
					continue
				}
				floats.AddScaled(dst[a*nc:(a+1)*nc], ba, c)
			}
		}
	}
	return nil
}

// LinearCombinationField is sum_k Coeffs[k] Basis_k. Its gradient is the
// same combination of the basis gradients.
type LinearCombinationField struct {
	Coeffs *Values
	Basis  Field
}

// NewLinearCombinationField copies coeffs ([]float64, []Point or *Values with
// dims [K]) so the field does not alias caller buffers.
func NewLinearCombinationField(coeffs any, basis Field) (*LinearCombinationField, error) {
	c, err := asValues(coeffs)
	if err != nil {
		return nil, fmt.Errorf("linear combination coefficients: %w", err)
	}
	if len(c.Dims) != 1 {
		return nil, fmt.Errorf("coefficients must have dims [K], got %v: %w", c.Dims, utils.ErrShapeMismatch)
	}
	return &LinearCombinationField{Coeffs: c.Clone(), Basis: basis}, nil
}

type linearCombinationCache struct {
	basis any
	out   *Values
}

func (f *LinearCombinationField) NewCache(args ...any) any {
	return &linearCombinationCache{basis: f.Basis.NewCache(args...), out: &Values{}}
}

func (f *LinearCombinationField) Evaluate(cache any, args ...any) (any, error) {
	c, ok := cache.(*linearCombinationCache)
	if !ok {
		c = f.NewCache(args...).(*linearCombinationCache)
	}
	b, err := f.Basis.Evaluate(c.basis, args...)
	if err != nil {
		return nil, err
	}
	bv, ok := b.(*Values)
	if !ok {
		return nil, fmt.Errorf("basis evaluated to %T: %w", b, utils.ErrUnsupportedArgument)
	}
	return c.out, contract(c.out, f.Coeffs, bv)
}

func (f *LinearCombinationField) Gradient() (Field, error) {
	g, err := f.Basis.Gradient()
	if err != nil {
		return nil, err
	}
	return &LinearCombinationField{Coeffs: f.Coeffs, Basis: g}, nil
}

// LinearCombination builds a *LinearCombinationField from (coeffs, basis).
type LinearCombination struct{}

func (LinearCombination) NewCache(args ...any) any { return nil }

func (LinearCombination) Evaluate(_ any, args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("linear combination takes (coeffs, basis), got %d args: %w",
			len(args), utils.ErrUnsupportedArgument)
	}
	basis, ok := args[1].(Field)
	if !ok {
		return nil, fmt.Errorf("linear combination basis: %T is not a Field: %w", args[1], utils.ErrUnsupportedArgument)
	}
	return NewLinearCombinationField(args[0], basis)
}
