package field

import (
	"fmt"

	"github.com/notargets/cellfield/utils"
)

// ConstantField returns the same entry at every point.
type ConstantField struct {
	Item  []int
	Value []float64
}

// NewConstantScalar returns a scalar constant field.
func NewConstantScalar(v float64) *ConstantField {
	return &ConstantField{Item: []int{}, Value: []float64{v}}
}

func (f *ConstantField) NewCache(args ...any) any { return &Values{} }

func (f *ConstantField) Evaluate(cache any, args ...any) (any, error) {
	x, err := pointsArg(args)
	if err != nil {
		return nil, err
	}
	out, ok := cache.(*Values)
	if !ok {
		out = &Values{}
	}
	out.Resize(x.Dims, f.Item)
	n := len(f.Value)
	for p := 0; p < x.Len(); p++ {
		copy(out.Data[p*n:(p+1)*n], f.Value)
	}
	return out, nil
}

func (f *ConstantField) Gradient() (Field, error) {
	return &zeroGradient{item: f.Item}, nil
}

// zeroGradient is the gradient of a constant: zeros with item [D]+item,
// D taken from the evaluation points.
type zeroGradient struct{ item []int }

func (z *zeroGradient) NewCache(args ...any) any { return &Values{} }

func (z *zeroGradient) Evaluate(cache any, args ...any) (any, error) {
	x, err := pointsArg(args)
	if err != nil {
		return nil, err
	}
	out, ok := cache.(*Values)
	if !ok {
		out = &Values{}
	}
	out.Resize(x.Dims, append([]int{x.Item[0]}, z.item...))
	out.Zero()
	return out, nil
}

func (z *zeroGradient) Gradient() (Field, error) {
	return nil, notDifferentiable(z)
}

// GenericField wraps a point function. Fn writes the entry (of shape Item)
// for one point; GradFn, when set, writes the gradient entry of shape
// [Dim]+Item.
type GenericField struct {
	Dim    int
	Item   []int
	Fn     func(x Point, out []float64)
	GradFn func(x Point, out []float64)
}

// NewScalarField builds a scalar GenericField in dim dimensions. grad may be
// nil, in which case the field is not differentiable.
func NewScalarField(dim int, fn func(x Point) float64, grad func(x Point, g []float64)) *GenericField {
	return &GenericField{
		Dim:    dim,
		Item:   []int{},
		Fn:     func(x Point, out []float64) { out[0] = fn(x) },
		GradFn: grad,
	}
}

func (f *GenericField) NewCache(args ...any) any { return &Values{} }

func (f *GenericField) Evaluate(cache any, args ...any) (any, error) {
	x, err := pointsArg(args)
	if err != nil {
		return nil, err
	}
	if x.Item[0] != f.Dim {
		return nil, fmt.Errorf("field of dimension %d evaluated at %d-d points: %w",
			f.Dim, x.Item[0], utils.ErrShapeMismatch)
	}
	out, ok := cache.(*Values)
	if !ok {
		out = &Values{}
	}
	out.Resize(x.Dims, f.Item)
	for p := 0; p < x.Len(); p++ {
		f.Fn(x.Point(p), out.Entry(p))
	}
	return out, nil
}

func (f *GenericField) Gradient() (Field, error) {
	if f.GradFn == nil {
		return nil, notDifferentiable(f)
	}
	return &GenericField{
		Dim:  f.Dim,
		Item: append([]int{f.Dim}, f.Item...),
		Fn:   f.GradFn,
	}, nil
}

// OperationField is Op applied point-wise to the values of its argument
// fields. Building one evaluates nothing.
type OperationField struct {
	Op   Operator
	Args []Field
}

type operationFieldCache struct {
	args []any
	vals []any
	bc   any
}

func (f *OperationField) NewCache(args ...any) any {
	c := &operationFieldCache{
		args: make([]any, len(f.Args)),
		vals: make([]any, len(f.Args)),
		bc:   Broadcasting{Op: f.Op}.NewCache(),
	}
	for i, a := range f.Args {
		c.args[i] = a.NewCache(args...)
	}
	return c
}

func (f *OperationField) Evaluate(cache any, args ...any) (any, error) {
	c, ok := cache.(*operationFieldCache)
	if !ok || len(c.args) != len(f.Args) {
		c = f.NewCache(args...).(*operationFieldCache)
	}
	for i, a := range f.Args {
		v, err := a.Evaluate(c.args[i], args...)
		if err != nil {
			return nil, err
		}
		c.vals[i] = v
	}
	return Broadcasting{Op: f.Op}.Evaluate(c.bc, c.vals...)
}

// Gradient is defined for the linear operators (add, sub, scale) and, by
// the product rule, for mul, dot and inner of two fields.
func (f *OperationField) Gradient() (Field, error) {
	linear := false
	switch f.Op.(type) {
	case addOp, scaleOp:
		linear = true
	}
	rule, bilinear := ProductRule(f.Op)
	if !linear && !(bilinear && len(f.Args) == 2) {
		return nil, notDifferentiable(f)
	}
	grads := make([]Field, len(f.Args))
	for i, a := range f.Args {
		g, err := a.Gradient()
		if err != nil {
			return nil, err
		}
		grads[i] = g
	}
	if linear {
		return &OperationField{Op: f.Op, Args: grads}, nil
	}
	return &OperationField{Op: rule, Args: []Field{f.Args[0], grads[0], f.Args[1], grads[1]}}, nil
}

// Operation lifts Op to a Map over Fields: evaluating it on fields returns
// a new *OperationField without evaluating anything. float64 arguments are
// promoted to constant fields. On array arguments (*Values) it behaves as
// Broadcasting{Op}.
type Operation struct {
	Op Operator
}

func (o Operation) NewCache(args ...any) any {
	return Broadcasting{Op: o.Op}.NewCache(args...)
}

func (o Operation) Evaluate(cache any, args ...any) (any, error) {
	fields := make([]Field, len(args))
	nfields := 0
	for i, a := range args {
		switch v := a.(type) {
		case Field:
			fields[i] = v
			nfields++
		case float64:
			fields[i] = NewConstantScalar(v)
		}
	}
	if nfields > 0 {
		for i, f := range fields {
			if f == nil {
				return nil, fmt.Errorf("operation %s mixes fields with %T: %w",
					o.Op.Name(), args[i], utils.ErrUnsupportedArgument)
			}
		}
		return &OperationField{Op: o.Op, Args: fields}, nil
	}
	return Broadcasting{Op: o.Op}.Evaluate(cache, args...)
}

// ComposedField is Outer∘Inner: the points are mapped through Inner and
// Outer is evaluated at the images.
type ComposedField struct {
	Outer Field
	Inner Field
}

type composedCache struct {
	inner any
	outer any
}

func (f *ComposedField) NewCache(args ...any) any {
	c := &composedCache{inner: f.Inner.NewCache(args...)}
	if y, err := f.Inner.Evaluate(c.inner, args...); err == nil {
		c.outer = f.Outer.NewCache(y)
	}
	return c
}

func (f *ComposedField) Evaluate(cache any, args ...any) (any, error) {
	c, ok := cache.(*composedCache)
	if !ok {
		c = f.NewCache(args...).(*composedCache)
	}
	y, err := f.Inner.Evaluate(c.inner, args...)
	if err != nil {
		return nil, err
	}
	return f.Outer.Evaluate(c.outer, y)
}

// Gradient applies the chain rule. Gradients follow the reference-major
// convention (item [d,D] for a map from d to D dimensions), so
// grad(f∘g) = grad(g) · (grad(f)∘g).
func (f *ComposedField) Gradient() (Field, error) {
	gi, err := f.Inner.Gradient()
	if err != nil {
		return nil, err
	}
	go_, err := f.Outer.Gradient()
	if err != nil {
		return nil, err
	}
	return &OperationField{Op: Dot, Args: []Field{gi, &ComposedField{Outer: go_, Inner: f.Inner}}}, nil
}

// ComposeMap builds Outer∘Inner from (outer, inner) field arguments.
type ComposeMap struct{}

func (ComposeMap) NewCache(args ...any) any { return nil }

func (ComposeMap) Evaluate(_ any, args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("compose takes (outer, inner), got %d args: %w", len(args), utils.ErrUnsupportedArgument)
	}
	outer, ok1 := args[0].(Field)
	inner, ok2 := args[1].(Field)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("compose of %T and %T: %w", args[0], args[1], utils.ErrUnsupportedArgument)
	}
	return &ComposedField{Outer: outer, Inner: inner}, nil
}

// TrialField places a basis in the trial slot: a basis with dims [P,K]
// evaluates to [P,1,K], so broadcasting it against a test basis ([P,K'])
// yields the [P,K',K] layout of a bilinear form.
type TrialField struct {
	Basis Field
}

type trialCache struct {
	inner any
	view  Values
}

func (f *TrialField) NewCache(args ...any) any {
	return &trialCache{inner: f.Basis.NewCache(args...)}
}

func (f *TrialField) Evaluate(cache any, args ...any) (any, error) {
	c, ok := cache.(*trialCache)
	if !ok {
		c = f.NewCache(args...).(*trialCache)
	}
	out, err := f.Basis.Evaluate(c.inner, args...)
	if err != nil {
		return nil, err
	}
	return TrialView(&c.view, out.(*Values))
}

func (f *TrialField) Gradient() (Field, error) {
	g, err := f.Basis.Gradient()
	if err != nil {
		return nil, err
	}
	return &TrialField{Basis: g}, nil
}

// TrialView reshapes a [P,K] block into dst as a [P,1,K] view sharing the
// data of src.
func TrialView(dst *Values, src *Values) (*Values, error) {
	if len(src.Dims) != 2 {
		return nil, fmt.Errorf("trial layout needs dims [P,K], got %v: %w", src.Dims, utils.ErrShapeMismatch)
	}
	dst.Dims = append(dst.Dims[:0], src.Dims[0], 1, src.Dims[1])
	dst.Item = src.Item
	dst.Data = src.Data
	return dst, nil
}

// TrialMap wraps a basis Field into a *TrialField.
type TrialMap struct{}

func (TrialMap) NewCache(args ...any) any { return nil }

func (TrialMap) Evaluate(_ any, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("trial takes one basis, got %d args: %w", len(args), utils.ErrUnsupportedArgument)
	}
	b, ok := args[0].(Field)
	if !ok {
		return nil, fmt.Errorf("trial: %T is not a Field: %w", args[0], utils.ErrUnsupportedArgument)
	}
	return &TrialField{Basis: b}, nil
}

// TrialValuesMap reshapes an evaluated [P,K] basis block into the [P,1,K]
// trial layout.
type TrialValuesMap struct{}

func (TrialValuesMap) NewCache(args ...any) any { return &Values{} }

func (TrialValuesMap) Evaluate(cache any, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("trial values takes one block, got %d args: %w", len(args), utils.ErrUnsupportedArgument)
	}
	v, ok := args[0].(*Values)
	if !ok {
		return nil, fmt.Errorf("trial values: %T: %w", args[0], utils.ErrUnsupportedArgument)
	}
	dst, ok := cache.(*Values)
	if !ok {
		dst = &Values{}
	}
	return TrialView(dst, v)
}
