package field

import (
	"math"
	"testing"

	"github.com/notargets/cellfield/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hat1D is the order-1 Lagrangian basis on [0,1]: {1-x, x}.
type hat1D struct{ grad bool }

func (h hat1D) NewCache(args ...any) any { return &Values{} }

func (h hat1D) Evaluate(cache any, args ...any) (any, error) {
	x, err := pointsArg(args)
	if err != nil {
		return nil, err
	}
	out, ok := cache.(*Values)
	if !ok {
		out = &Values{}
	}
	if h.grad {
		out.Resize([]int{x.Len(), 2}, []int{1})
		for p := 0; p < x.Len(); p++ {
			out.At(p, 0)[0] = -1
			out.At(p, 1)[0] = 1
		}
		return out, nil
	}
	out.Resize([]int{x.Len(), 2}, nil)
	for p := 0; p < x.Len(); p++ {
		xi := x.Point(p)[0]
		out.At(p, 0)[0] = 1 - xi
		out.At(p, 1)[0] = xi
	}
	return out, nil
}

func (h hat1D) Gradient() (Field, error) {
	if h.grad {
		return nil, notDifferentiable(h)
	}
	return hat1D{grad: true}, nil
}

func TestBroadcastingExpandsSingletonDims(t *testing.T) {
	a := NewScalars([]float64{1, 2})
	b := NewValues([]int{2, 3}, nil)
	for i := range b.Data {
		b.Data[i] = float64(i)
	}
	out, err := Evaluate(Broadcasting{Op: Add}, a, b)
	require.NoError(t, err)
	v := out.(*Values)
	assert.Equal(t, []int{2, 3}, v.Dims)
	assert.Equal(t, []float64{1, 2, 3, 5, 6, 7}, v.Data)

	_, err = Evaluate(Broadcasting{Op: Add}, NewScalars([]float64{1, 2, 3}), b)
	assert.ErrorIs(t, err, utils.ErrShapeMismatch)
}

func TestBroadcastingReusesCache(t *testing.T) {
	bc := Broadcasting{Op: Mul}
	c := bc.NewCache()
	first, err := bc.Evaluate(c, 2.0, NewScalars([]float64{1, 2, 3}))
	require.NoError(t, err)
	second, err := bc.Evaluate(c, 3.0, NewScalars([]float64{1, 2, 3}))
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, []float64{3, 6, 9}, second.(*Values).Data)
}

func TestOperatorsTensorAlgebra(t *testing.T) {
	m := &Values{Dims: []int{1}, Item: []int{2, 2}, Data: []float64{2, 1, 0, 4}}
	v := &Values{Dims: []int{1}, Item: []int{2}, Data: []float64{1, 1}}

	out, err := Evaluate(Broadcasting{Op: Dot}, m, v)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, out.(*Values).Data)

	out, err = Evaluate(Broadcasting{Op: Inverse}, m)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, -0.125, 0, 0.25}, out.(*Values).Data, 1e-14)

	out, err = Evaluate(Broadcasting{Op: Det}, m)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, out.(*Values).Data[0], 1e-14)

	out, err = Evaluate(Broadcasting{Op: Transpose}, m)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0, 1, 4}, out.(*Values).Data)

	singular := &Values{Dims: []int{1}, Item: []int{2, 2}, Data: []float64{1, 2, 2, 4}}
	_, err = Evaluate(Broadcasting{Op: Inverse}, singular)
	assert.ErrorIs(t, err, utils.ErrSingularJacobian)

	_, err = Evaluate(Broadcasting{Op: Dot}, v, &Values{Dims: []int{1}, Item: []int{3}, Data: make([]float64, 3)})
	assert.ErrorIs(t, err, utils.ErrShapeMismatch)
}

func TestLinearCombinationMap(t *testing.T) {
	basis, err := Evaluate(hat1D{}, NewPoints([]Point{{0.25}, {0.5}}))
	require.NoError(t, err)

	out, err := Evaluate(LinearCombinationMap{}, []float64{2, 4}, basis)
	require.NoError(t, err)
	v := out.(*Values)
	assert.Equal(t, []int{2}, v.Dims)
	assert.InDeltaSlice(t, []float64{2.5, 3}, v.Data, 1e-14)

	// nodal coordinates against basis gradients give Jt
	grad, err := Evaluate(hat1D{grad: true}, NewPoints([]Point{{0.5}}))
	require.NoError(t, err)
	out, err = Evaluate(LinearCombinationMap{}, []Point{{1, 0}, {3, 2}}, grad)
	require.NoError(t, err)
	jt := out.(*Values)
	assert.Equal(t, []int{1, 2}, jt.Item)
	assert.InDeltaSlice(t, []float64{2, 2}, jt.Data, 1e-14)

	_, err = Evaluate(LinearCombinationMap{}, []float64{1, 2, 3}, basis)
	assert.ErrorIs(t, err, utils.ErrShapeMismatch)
}

func TestLinearCombinationMapReusesCoefficientBlock(t *testing.T) {
	grad, err := Evaluate(hat1D{grad: true}, NewPoints([]Point{{0.5}}))
	require.NoError(t, err)

	m := LinearCombinationMap{}
	c := m.NewCache(nil, grad)
	first, err := m.Evaluate(c, []Point{{1, 0}, {3, 2}}, grad)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 2}, first.(*Values).Data, 1e-14)
	coeffs := &c.(*lincombMapCache).coeffs.Data[0]

	xs := []Point{{0, 0}, {1, 4}}
	second, err := m.Evaluate(c, xs, grad)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, coeffs, &c.(*lincombMapCache).coeffs.Data[0])
	assert.InDeltaSlice(t, []float64{1, 4}, second.(*Values).Data, 1e-14)
	assert.Equal(t, Point{1, 4}, xs[1])
}

func TestLinearCombinationFieldGradient(t *testing.T) {
	coeffs := []float64{1, 5}
	f, err := NewLinearCombinationField(coeffs, hat1D{})
	require.NoError(t, err)
	coeffs[0] = 100 // the field holds its own copy

	v, err := EvaluateAt(f, Point{0}, Point{0.5}, Point{1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 3, 5}, v.Data, 1e-14)

	g, err := f.Gradient()
	require.NoError(t, err)
	gv, err := EvaluateAt(g, Point{0.3})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, gv.Item)
	assert.InDelta(t, 4.0, gv.Data[0], 1e-14)
}

func TestOperationOnFieldsIsLazy(t *testing.T) {
	calls := 0
	sq := NewScalarField(1, func(x Point) float64 {
		calls++
		return x[0] * x[0]
	}, func(x Point, g []float64) { g[0] = 2 * x[0] })
	lin := NewScalarField(1, func(x Point) float64 { return 3 * x[0] }, func(x Point, g []float64) { g[0] = 3 })

	res, err := Evaluate(Operation{Op: Add}, sq, lin)
	require.NoError(t, err)
	sum, ok := res.(*OperationField)
	require.True(t, ok)
	assert.Zero(t, calls)

	v, err := EvaluateAt(sum, Point{2})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, v.Data[0], 1e-14)

	g, err := sum.Gradient()
	require.NoError(t, err)
	gv, err := EvaluateAt(g, Point{2})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, gv.Data[0], 1e-14)

	scaled, err := Evaluate(Operation{Op: Mul}, sq, 2.0)
	require.NoError(t, err)
	g, err = scaled.(Field).Gradient()
	require.NoError(t, err)
	gv, err = EvaluateAt(g, Point{2})
	require.NoError(t, err)
	assert.InDelta(t, 8.0, gv.Data[0], 1e-14)

	cube, err := Evaluate(Operation{Op: ScalarFunc{"cube", func(a ...float64) float64 { return a[0] * a[0] * a[0] }}}, lin)
	require.NoError(t, err)
	_, err = cube.(Field).Gradient()
	assert.ErrorIs(t, err, utils.ErrNotDifferentiable)

	_, err = Evaluate(Operation{Op: Add}, sq, "x")
	assert.ErrorIs(t, err, utils.ErrUnsupportedArgument)
}

func TestProductRuleGradients(t *testing.T) {
	// f = x0 x1, v = (x0, x1^2), w = (1, x0)
	f := NewScalarField(2, func(x Point) float64 { return x[0] * x[1] },
		func(x Point, g []float64) { g[0], g[1] = x[1], x[0] })
	v := &GenericField{Dim: 2, Item: []int{2},
		Fn:     func(x Point, out []float64) { out[0], out[1] = x[0], x[1]*x[1] },
		GradFn: func(x Point, out []float64) { out[0], out[1], out[2], out[3] = 1, 0, 0, 2*x[1] }}
	w := &GenericField{Dim: 2, Item: []int{2},
		Fn:     func(x Point, out []float64) { out[0], out[1] = 1, x[0] },
		GradFn: func(x Point, out []float64) { out[0], out[1], out[2], out[3] = 0, 1, 0, 0 }}
	x := Point{2, 3}

	grad := func(op Operator, a, b Field) *Values {
		t.Helper()
		res, err := Evaluate(Operation{Op: op}, a, b)
		require.NoError(t, err)
		g, err := res.(Field).Gradient()
		require.NoError(t, err)
		out, err := EvaluateAt(g, x)
		require.NoError(t, err)
		return out
	}

	// grad(f^2) = 2 f grad f = 2*6*(3, 2)
	ff := grad(Mul, f, f)
	assert.Equal(t, []int{2}, ff.Item)
	assert.InDeltaSlice(t, []float64{36, 24}, ff.Data, 1e-12)

	// grad(f v)[a][b] = df/dx_a v_b + f dv_b/dx_a
	fv := grad(Mul, f, v)
	assert.Equal(t, []int{2, 2}, fv.Item)
	assert.InDeltaSlice(t, []float64{3*2 + 6, 3 * 9, 2 * 2, 2*9 + 6*6}, fv.Data, 1e-12)

	// v.w = x0 + x0 x1^2, gradient (1 + x1^2, 2 x0 x1)
	vw := grad(Dot, v, w)
	assert.Equal(t, []int{2}, vw.Item)
	assert.InDeltaSlice(t, []float64{10, 12}, vw.Data, 1e-12)
	assert.InDeltaSlice(t, vw.Data, grad(Inner, v, w).Data, 1e-12)

	_, err := Evaluate(Broadcasting{Op: productRule{op: Mul}}, NewScalars([]float64{1}), NewScalars([]float64{1}),
		NewScalars([]float64{1}), NewScalars([]float64{1}))
	assert.ErrorIs(t, err, utils.ErrShapeMismatch)
}

func TestComposedFieldChainRule(t *testing.T) {
	outer := NewScalarField(1, func(y Point) float64 { return y[0] * y[0] },
		func(y Point, g []float64) { g[0] = 2 * y[0] })
	inner := &GenericField{
		Dim:    1,
		Item:   []int{1},
		Fn:     func(x Point, out []float64) { out[0] = 2 * x[0] },
		GradFn: func(x Point, out []float64) { out[0] = 2 },
	}
	res, err := Evaluate(ComposeMap{}, outer, inner)
	require.NoError(t, err)
	h := res.(Field)

	v, err := EvaluateAt(h, Point{1.5})
	require.NoError(t, err)
	assert.InDelta(t, 9.0, v.Data[0], 1e-14)

	g, err := h.Gradient()
	require.NoError(t, err)
	gv, err := EvaluateAt(g, Point{1.5})
	require.NoError(t, err)
	assert.InDelta(t, 12.0, gv.Data[0], 1e-14)
}

func TestTrialFieldLayout(t *testing.T) {
	tr := &TrialField{Basis: hat1D{}}
	v, err := EvaluateAt(tr, Point{0.25}, Point{0.75})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 2}, v.Dims)

	// test x trial broadcasts to the [P,K,K] element matrix layout
	test, err := EvaluateAt(hat1D{}, Point{0.25}, Point{0.75})
	require.NoError(t, err)
	m, err := Evaluate(Broadcasting{Op: Mul}, test, v)
	require.NoError(t, err)
	mv := m.(*Values)
	assert.Equal(t, []int{2, 2, 2}, mv.Dims)
	assert.InDelta(t, 0.75*0.25, mv.At(0, 0, 1)[0], 1e-14)
}

func TestReindex(t *testing.T) {
	r := Reindex[Point]{Table: []Point{{0}, {1}, {2}}}
	v, err := Evaluate(r, []int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, []Point{{2}, {0}}, v)

	_, err = Evaluate(r, 3)
	assert.ErrorIs(t, err, utils.ErrOutOfBounds)
	_, err = Evaluate(r, []int{0, -1})
	assert.ErrorIs(t, err, utils.ErrOutOfBounds)
}

func TestPosNegReindex(t *testing.T) {
	r := PosNegReindex[float64]{Pos: []float64{10, 20, 30}, Neg: []float64{100, 200}}
	v, err := Evaluate(r, 2)
	require.NoError(t, err)
	assert.Equal(t, 20.0, v)

	v, err = Evaluate(r, -2)
	require.NoError(t, err)
	assert.Equal(t, 200.0, v)

	for _, bad := range []int{0, 4, -3} {
		_, err = Evaluate(r, bad)
		assert.ErrorIs(t, err, utils.ErrOutOfBounds, "id %d", bad)
	}

	v, err = Evaluate(r, []int{1, -1, 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 100, 30}, v)
}

func TestIntegrationMap(t *testing.T) {
	w := []float64{0.5, 0.5}
	f := NewScalars([]float64{1, 3})
	out, err := Evaluate(IntegrationMap{}, f, w)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, out.(*Values).Data[0], 1e-14)

	jac := &Values{Dims: []int{2}, Item: []int{2, 2}, Data: []float64{2, 0, 0, -3, 2, 0, 0, -3}}
	out, err = Evaluate(IntegrationMap{}, f, w, jac)
	require.NoError(t, err)
	assert.InDelta(t, 12.0, out.(*Values).Data[0], 1e-14)

	// a [Q,K] integrand reduces to a length-K vector
	basis, err := Evaluate(hat1D{}, NewPoints([]Point{{0.5 - 0.5/math.Sqrt(3)}, {0.5 + 0.5/math.Sqrt(3)}}))
	require.NoError(t, err)
	out, err = Evaluate(IntegrationMap{}, basis, w)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, out.(*Values).Data, 1e-14)

	_, err = Evaluate(IntegrationMap{}, f, []float64{1})
	assert.ErrorIs(t, err, utils.ErrShapeMismatch)
}

func TestEvaluateMapSwitchesFieldKinds(t *testing.T) {
	x := NewPoints([]Point{{0.5}})
	em := EvaluateMap{}
	c := em.NewCache(NewConstantScalar(1), x)
	v, err := em.Evaluate(c, NewConstantScalar(2), x)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.(*Values).Data[0])

	v, err = em.Evaluate(c, hat1D{}, x)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, v.(*Values).Dims)
}
