package cellfield

import (
	"fmt"

	"github.com/notargets/cellfield/celldata"
	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/geometry"
	"github.com/notargets/cellfield/lazy"
	"github.com/notargets/cellfield/utils"
)

// Apply builds the cell field whose per-cell field is op applied to the
// per-cell fields of args. Arguments are *CellField or float64 constants.
// Fields of mixed domains are all moved to the reference domain.
func Apply(op field.Operator, args ...any) (*CellField, error) {
	n, domain, trian, err := common(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op.Name(), err)
	}
	sources := make([]lazy.Array, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case *CellField:
			if v, err = ChangeDomain(v, domain); err != nil {
				return nil, err
			}
			sources[i] = v.data
		case float64:
			sources[i] = lazy.NewFill(v, n)
		}
	}
	data, err := lazy.LazyMap(field.Operation{Op: op}, sources...)
	if err != nil {
		return nil, err
	}
	return New(data, domain, trian), nil
}

// common checks the operands and picks the result domain and geometry.
func common(args []any) (int, celldata.DomainStyle, *geometry.Triangulation, error) {
	n := -1
	var trian *geometry.Triangulation
	domains := make(map[celldata.DomainStyle]bool, 2)
	for _, a := range args {
		switch v := a.(type) {
		case *CellField:
			if n >= 0 && v.NumCells() != n {
				return 0, 0, nil, fmt.Errorf("cell fields over %d and %d cells: %w", n, v.NumCells(), utils.ErrShapeMismatch)
			}
			n = v.NumCells()
			domains[v.domain] = true
			if trian == nil {
				trian = v.trian
			}
		case float64:
		default:
			return 0, 0, nil, fmt.Errorf("operand %T: %w", a, utils.ErrUnsupportedArgument)
		}
	}
	if n < 0 {
		return 0, 0, nil, fmt.Errorf("no cell field operand: %w", utils.ErrUnsupportedArgument)
	}
	if len(domains) == 1 {
		for d := range domains {
			return n, d, trian, nil
		}
	}
	return n, celldata.ReferenceDomain, trian, nil
}

func Add(a, b any) (*CellField, error) { return Apply(field.Add, a, b) }
func Sub(a, b any) (*CellField, error) { return Apply(field.Sub, a, b) }
func Mul(a, b any) (*CellField, error) { return Apply(field.Mul, a, b) }
func Dot(a, b any) (*CellField, error) { return Apply(field.Dot, a, b) }

// Inner contracts all item indices of a and b.
func Inner(a, b any) (*CellField, error) { return Apply(field.Inner, a, b) }

// MulScalar scales f by s.
func MulScalar(s float64, f *CellField) (*CellField, error) {
	return Apply(field.Scale(s), f)
}
