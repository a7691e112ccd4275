package field

import (
	"fmt"
	"math"

	"github.com/notargets/cellfield/utils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Operator is an entry-wise kernel: it combines one entry of each argument
// into one entry of the result. Broadcasting and Operation lift Operators to
// arrays of values and to Fields respectively.
type Operator interface {
	Name() string
	// ResultItem returns the item shape of the result for the given argument
	// item shapes, or an error wrapping utils.ErrShapeMismatch.
	ResultItem(items ...[]int) ([]int, error)
	// Apply writes one result entry into out.
	Apply(out []float64, items [][]int, args ...[]float64) error
}

var (
	Add       Operator = addOp{sign: 1}
	Sub       Operator = addOp{sign: -1}
	Mul       Operator = mulOp{}
	Dot       Operator = dotOp{}
	Inner     Operator = innerOp{}
	Inverse   Operator = inverseOp{}
	Det       Operator = detOp{}
	AbsDet    Operator = detOp{abs: true}
	Transpose Operator = transposeOp{}
	Negate    Operator = scaleOp{factor: -1}
)

// Scale returns an operator multiplying its single argument by factor.
func Scale(factor float64) Operator { return scaleOp{factor: factor} }

// ScalarFunc lifts a function of scalars into an Operator over scalar
// items, e.g. ScalarFunc{"sq", func(a ...float64) float64 { return a[0]*a[0] }}.
type ScalarFunc struct {
	Label string
	Fn    func(args ...float64) float64
}

func (s ScalarFunc) Name() string { return s.Label }

func (s ScalarFunc) ResultItem(items ...[]int) ([]int, error) {
	for _, it := range items {
		if len(it) != 0 {
			return nil, fmt.Errorf("%s takes scalar items, got %v: %w", s.Label, it, utils.ErrShapeMismatch)
		}
	}
	return []int{}, nil
}

func (s ScalarFunc) Apply(out []float64, _ [][]int, args ...[]float64) error {
	a := make([]float64, len(args))
	for i, arg := range args {
		a[i] = arg[0]
	}
	out[0] = s.Fn(a...)
	return nil
}

type addOp struct{ sign float64 }

func (o addOp) Name() string {
	if o.sign < 0 {
		return "sub"
	}
	return "add"
}

func (o addOp) ResultItem(items ...[]int) ([]int, error) {
	if len(items) != 2 || !sameInts(items[0], items[1]) {
		return nil, fmt.Errorf("%s needs two items of equal shape, got %v: %w", o.Name(), items, utils.ErrShapeMismatch)
	}
	return items[0], nil
}

func (o addOp) Apply(out []float64, _ [][]int, args ...[]float64) error {
	for i := range out {
		out[i] = args[0][i] + o.sign*args[1][i]
	}
	return nil
}

// mulOp scales when either item is a scalar and multiplies element-wise
// otherwise.
type mulOp struct{}

func (mulOp) Name() string { return "mul" }

func (mulOp) ResultItem(items ...[]int) ([]int, error) {
	if len(items) != 2 {
		return nil, fmt.Errorf("mul needs two items, got %d: %w", len(items), utils.ErrShapeMismatch)
	}
	switch {
	case len(items[0]) == 0:
		return items[1], nil
	case len(items[1]) == 0:
		return items[0], nil
	case sameInts(items[0], items[1]):
		return items[0], nil
	}
	return nil, fmt.Errorf("mul of items %v and %v: %w", items[0], items[1], utils.ErrShapeMismatch)
}

func (mulOp) Apply(out []float64, items [][]int, args ...[]float64) error {
	switch {
	case len(items[0]) == 0:
		floats.ScaleTo(out, args[0][0], args[1])
	case len(items[1]) == 0:
		floats.ScaleTo(out, args[1][0], args[0])
	default:
		floats.MulTo(out, args[0], args[1])
	}
	return nil
}

// dotOp contracts the last index of the first item with the first index of
// the second: vector·vector is a scalar, matrix·vector a vector.
type dotOp struct{}

func (dotOp) Name() string { return "dot" }

func (dotOp) ResultItem(items ...[]int) ([]int, error) {
	if len(items) != 2 || len(items[0]) == 0 || len(items[1]) == 0 {
		return nil, fmt.Errorf("dot needs two non-scalar items, got %v: %w", items, utils.ErrShapeMismatch)
	}
	a, b := items[0], items[1]
	if a[len(a)-1] != b[0] {
		return nil, fmt.Errorf("dot of items %v and %v: %w", a, b, utils.ErrShapeMismatch)
	}
	res := make([]int, 0, len(a)+len(b)-2)
	res = append(res, a[:len(a)-1]...)
	return append(res, b[1:]...), nil
}

func (dotOp) Apply(out []float64, items [][]int, args ...[]float64) error {
	a, b := items[0], items[1]
	n := a[len(a)-1]
	rows := prod(a[:len(a)-1])
	cols := prod(b[1:])
	x, y := args[0], args[1]
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			var s float64
			for k := 0; k < n; k++ {
				s += x[i*n+k] * y[k*cols+j]
			}
			out[i*cols+j] = s
		}
	}
	return nil
}

// innerOp fully contracts two items of equal shape into a scalar.
type innerOp struct{}

func (innerOp) Name() string { return "inner" }

func (innerOp) ResultItem(items ...[]int) ([]int, error) {
	if len(items) != 2 || !sameInts(items[0], items[1]) {
		return nil, fmt.Errorf("inner needs two items of equal shape, got %v: %w", items, utils.ErrShapeMismatch)
	}
	return []int{}, nil
}

func (innerOp) Apply(out []float64, _ [][]int, args ...[]float64) error {
	out[0] = floats.Dot(args[0], args[1])
	return nil
}

func squareSide(op string, items [][]int) (int, error) {
	if len(items) != 1 || len(items[0]) != 2 || items[0][0] != items[0][1] {
		return 0, fmt.Errorf("%s needs one square tensor item, got %v: %w", op, items, utils.ErrShapeMismatch)
	}
	return items[0][0], nil
}

type inverseOp struct{}

func (inverseOp) Name() string { return "inv" }

func (inverseOp) ResultItem(items ...[]int) ([]int, error) {
	if _, err := squareSide("inv", items); err != nil {
		return nil, err
	}
	return items[0], nil
}

func (inverseOp) Apply(out []float64, items [][]int, args ...[]float64) error {
	d := items[0][0]
	if d == 1 {
		if args[0][0] == 0 {
			return utils.ErrSingularJacobian
		}
		out[0] = 1 / args[0][0]
		return nil
	}
	dst := mat.NewDense(d, d, out)
	if err := dst.Inverse(mat.NewDense(d, d, args[0])); err != nil {
		return fmt.Errorf("inverting %dx%d tensor: %v: %w", d, d, err, utils.ErrSingularJacobian)
	}
	return nil
}

type detOp struct{ abs bool }

func (o detOp) Name() string {
	if o.abs {
		return "absdet"
	}
	return "det"
}

func (o detOp) ResultItem(items ...[]int) ([]int, error) {
	if _, err := squareSide(o.Name(), items); err != nil {
		return nil, err
	}
	return []int{}, nil
}

func (o detOp) Apply(out []float64, items [][]int, args ...[]float64) error {
	det := determinant(items[0][0], args[0])
	if o.abs {
		det = math.Abs(det)
	}
	out[0] = det
	return nil
}

func determinant(d int, a []float64) float64 {
	switch d {
	case 1:
		return a[0]
	case 2:
		return a[0]*a[3] - a[1]*a[2]
	}
	return mat.Det(mat.NewDense(d, d, a))
}

type transposeOp struct{}

func (transposeOp) Name() string { return "transpose" }

func (transposeOp) ResultItem(items ...[]int) ([]int, error) {
	if len(items) != 1 || len(items[0]) != 2 {
		return nil, fmt.Errorf("transpose needs one matrix item, got %v: %w", items, utils.ErrShapeMismatch)
	}
	return []int{items[0][1], items[0][0]}, nil
}

func (transposeOp) Apply(out []float64, items [][]int, args ...[]float64) error {
	r, c := items[0][0], items[0][1]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out[j*r+i] = args[0][i*c+j]
		}
	}
	return nil
}

type scaleOp struct{ factor float64 }

func (o scaleOp) Name() string { return fmt.Sprintf("scale(%g)", o.factor) }

func (o scaleOp) ResultItem(items ...[]int) ([]int, error) {
	if len(items) != 1 {
		return nil, fmt.Errorf("scale takes one item, got %d: %w", len(items), utils.ErrShapeMismatch)
	}
	return items[0], nil
}

func (o scaleOp) Apply(out []float64, _ [][]int, args ...[]float64) error {
	floats.ScaleTo(out, o.factor, args[0])
	return nil
}

// productRule is the gradient of a bilinear operator applied to (f, g). Its
// arguments are (f, grad f, g, grad g) and its result item is [D] followed
// by the item of f op g.
type productRule struct{ op Operator }

// ProductRule returns the gradient operator of Mul, Dot or Inner.
func ProductRule(op Operator) (Operator, bool) {
	switch op.(type) {
	case mulOp, dotOp, innerOp:
		return productRule{op: op}, true
	}
	return nil, false
}

func (o productRule) Name() string { return "grad(" + o.op.Name() + ")" }

func (o productRule) ResultItem(items ...[]int) ([]int, error) {
	if len(items) != 4 {
		return nil, fmt.Errorf("%s takes (f, grad f, g, grad g), got %d items: %w", o.Name(), len(items), utils.ErrShapeMismatch)
	}
	r, err := o.op.ResultItem(items[0], items[2])
	if err != nil {
		return nil, err
	}
	df, dg := items[1], items[3]
	if len(df) != len(items[0])+1 || !sameInts(df[1:], items[0]) ||
		len(dg) != len(items[2])+1 || !sameInts(dg[1:], items[2]) || df[0] != dg[0] {
		return nil, fmt.Errorf("%s with gradient items %v and %v: %w", o.Name(), df, dg, utils.ErrShapeMismatch)
	}
	return append([]int{df[0]}, r...), nil
}

func (o productRule) Apply(out []float64, items [][]int, args ...[]float64) error {
	f, df, g, dg := args[0], args[1], args[2], args[3]
	fi, gi := items[0], items[2]
	nd := items[1][0]
	nf, ng, nr := prod(fi), prod(gi), len(out)/nd
	for d := 0; d < nd; d++ {
		dfd, dgd := df[d*nf:(d+1)*nf], dg[d*ng:(d+1)*ng]
		res := out[d*nr : (d+1)*nr]
		switch o.op.(type) {
		case mulOp:
			for r := range res {
				i, j := r, r
				if len(fi) == 0 {
					i = 0
				}
				if len(gi) == 0 {
					j = 0
				}
				res[r] = dfd[i]*g[j] + f[i]*dgd[j]
			}
		case innerOp:
			res[0] = floats.Dot(dfd, g) + floats.Dot(f, dgd)
		case dotOp:
			n := fi[len(fi)-1]
			cols := ng / n
			for i := 0; i < nf/n; i++ {
				for j := 0; j < cols; j++ {
					var s float64
					for k := 0; k < n; k++ {
						s += dfd[i*n+k]*g[k*cols+j] + f[i*n+k]*dgd[k*cols+j]
					}
					res[i*cols+j] = s
				}
			}
		}
	}
	return nil
}
