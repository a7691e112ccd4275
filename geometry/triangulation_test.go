package geometry

import (
	"errors"
	"testing"

	"github.com/notargets/cellfield/element"
	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/lazy"
	"github.com/notargets/cellfield/mesh"
	"github.com/notargets/cellfield/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRectangle(t *testing.T, sizes []float64, cells []int) *Triangulation {
	t.Helper()
	model, err := mesh.NewCartesianModel(mesh.CartesianDescriptor{
		Origin: []float64{0, 0}, Sizes: sizes, Cells: cells, Order: 1,
	})
	require.NoError(t, err)
	ref, err := element.NewLagrangeCube(element.D2, 1)
	require.NoError(t, err)
	trian, err := NewTriangulation(model, ref)
	require.NoError(t, err)
	return trian
}

type fixedGrid struct {
	nodes []field.Point
	cells [][]int
}

func (g fixedGrid) NumCells() int                  { return len(g.cells) }
func (g fixedGrid) NodeCoordinates() []field.Point { return g.nodes }
func (g fixedGrid) CellNodeIDs() [][]int           { return g.cells }

func TestJacobiansAndVolumes(t *testing.T) {
	trian := newRectangle(t, []float64{2, 1}, []int{2, 2})
	assert.Equal(t, 4, trian.NumCells())
	assert.Equal(t, 2, trian.Dim())

	x := field.NewPoints([]field.Point{{0.5, 0.5}, {0.1, 0.9}})
	jt, err := lazy.LazyMap(field.EvaluateMap{}, trian.CellJacobians(), lazy.NewFill(x, 4))
	require.NoError(t, err)
	require.NoError(t, lazy.Each(jt, func(i int, v any) error {
		vals := v.(*field.Values)
		assert.Equal(t, []int{2}, vals.Dims)
		assert.Equal(t, []int{2, 2}, vals.Item)
		for p := 0; p < 2; p++ {
			assert.InDeltaSlicef(t, []float64{1, 0, 0, 0.5}, vals.Entry(p), 1e-12, "cell %d point %d", i, p)
		}
		return nil
	}))

	q, err := trian.Reference().Quadrature(2)
	require.NoError(t, err)
	vols, err := trian.Volumes(q)
	require.NoError(t, err)
	assert.InDeltaSlicef(t, []float64{0.5, 0.5, 0.5, 0.5}, vols, 1e-12, "")
}

func TestCellMapsPlaceReferencePoints(t *testing.T) {
	trian := newRectangle(t, []float64{2, 1}, []int{2, 2})
	x := field.NewPoints([]field.Point{{0, 0}, {1, 1}, {0.5, 0.25}})
	phys, err := lazy.LazyMap(field.EvaluateMap{}, trian.CellMaps(), lazy.NewFill(x, 4))
	require.NoError(t, err)

	v, err := lazy.Get(phys, 3)
	require.NoError(t, err)
	vals := v.(*field.Values)
	assert.InDeltaSlicef(t, []float64{1, 0.5, 2, 1, 1.5, 0.625}, vals.Data, 1e-12, "")
}

func TestInverseMapRoundTrip(t *testing.T) {
	// skewed quadrilateral so the map is genuinely bilinear
	g := fixedGrid{
		nodes: []field.Point{{0, 0}, {2, 0.2}, {0.3, 1}, {2.5, 1.7}},
		cells: [][]int{{0, 1, 2, 3}},
	}
	ref, err := element.NewLagrangeCube(element.D2, 1)
	require.NoError(t, err)
	trian, err := NewTriangulation(g, ref)
	require.NoError(t, err)

	xi := []field.Point{{0.1, 0.2}, {0.5, 0.5}, {0.9, 0.7}, {1, 0}}
	phys, err := lazy.LazyMap(field.EvaluateMap{}, trian.CellMaps(), lazy.NewFill(field.NewPoints(xi), 1))
	require.NoError(t, err)
	back, err := lazy.LazyMap(field.EvaluateMap{}, trian.InverseMaps(), phys)
	require.NoError(t, err)

	v, err := lazy.Get(back, 0)
	require.NoError(t, err)
	got := v.(*field.Values)
	for p, want := range xi {
		assert.InDeltaSlicef(t, []float64(want), got.Entry(p), 1e-10, "point %d", p)
	}
}

func TestInverseMapGradientIsInverseJacobian(t *testing.T) {
	trian := newRectangle(t, []float64{2, 4}, []int{1, 1})
	m, err := lazy.Get(trian.InverseMaps(), 0)
	require.NoError(t, err)
	g, err := m.(field.Field).Gradient()
	require.NoError(t, err)
	vals, err := field.EvaluateAt(g, field.Point{1, 1})
	require.NoError(t, err)
	assert.InDeltaSlicef(t, []float64{0.5, 0, 0, 0.25}, vals.Data, 1e-12, "")

	_, err = g.Gradient()
	assert.True(t, errors.Is(err, utils.ErrNotDifferentiable))
}

func TestPullBackGradient(t *testing.T) {
	trian := newRectangle(t, []float64{2, 2}, []int{1, 1})
	grad, err := trian.Reference().Basis().Gradient()
	require.NoError(t, err)
	phys, err := trian.PullBackGradient(lazy.NewFill(grad, 1))
	require.NoError(t, err)

	center := field.NewPoints([]field.Point{{0.5, 0.5}})
	refVals, err := field.Evaluate(grad, center)
	require.NoError(t, err)
	physVals, err := lazy.LazyMap(field.EvaluateMap{}, phys, lazy.NewFill(center, 1))
	require.NoError(t, err)
	v, err := lazy.Get(physVals, 0)
	require.NoError(t, err)

	want := refVals.(*field.Values).Clone()
	for i := range want.Data {
		want.Data[i] *= 0.5
	}
	got := v.(*field.Values)
	assert.Equal(t, want.Dims, got.Dims)
	assert.InDeltaSlicef(t, want.Data, got.Data, 1e-12, "")
}

func TestDegenerateCell(t *testing.T) {
	g := fixedGrid{
		nodes: []field.Point{{0, 0}, {1, 0}, {2, 0}, {3, 0}},
		cells: [][]int{{0, 1, 2, 3}},
	}
	ref, err := element.NewLagrangeCube(element.D2, 1)
	require.NoError(t, err)
	trian, err := NewTriangulation(g, ref)
	require.NoError(t, err)

	x := lazy.NewFill(field.NewPoints([]field.Point{{0.5, 0.5}}), 1)
	inv, err := lazy.LazyMap(field.EvaluateMap{}, trian.InverseJacobiansT(), x)
	require.NoError(t, err)
	_, err = lazy.Get(inv, 0)
	assert.True(t, errors.Is(err, utils.ErrSingularJacobian), "got %v", err)

	back, err := lazy.LazyMap(field.EvaluateMap{}, trian.InverseMaps(), x)
	require.NoError(t, err)
	_, err = lazy.Get(back, 0)
	assert.True(t, errors.Is(err, utils.ErrSingularJacobian), "got %v", err)
}

func TestNodeCountMismatch(t *testing.T) {
	ref, err := element.NewLagrangeCube(element.D2, 1)
	require.NoError(t, err)
	_, err = NewTriangulation(fixedGrid{nodes: []field.Point{{0, 0}}, cells: [][]int{{0, 0}}}, ref)
	assert.True(t, errors.Is(err, utils.ErrShapeMismatch))
}

type subGrid struct {
	fixedGrid
	bg []int
}

func (g subGrid) CellToBackground() []int { return g.bg }

func TestCellToBackground(t *testing.T) {
	trian := newRectangle(t, []float64{1, 1}, []int{2, 1})
	ids, err := lazy.Collect(trian.CellToBackground())
	require.NoError(t, err)
	assert.Equal(t, []any{0, 1}, ids)

	unit := []field.Point{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	ref, err := element.NewLagrangeCube(element.D2, 1)
	require.NoError(t, err)
	sub, err := NewTriangulation(subGrid{fixedGrid{unit, [][]int{{0, 1, 2, 3}}}, []int{7}}, ref)
	require.NoError(t, err)
	v, err := lazy.Get(sub.CellToBackground(), 0)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = NewTriangulation(subGrid{fixedGrid{unit, [][]int{{0, 1, 2, 3}}}, []int{7, 8}}, ref)
	assert.ErrorIs(t, err, utils.ErrShapeMismatch)
}
