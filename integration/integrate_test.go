package integration

import (
	"errors"
	"testing"

	"github.com/notargets/cellfield/celldata"
	"github.com/notargets/cellfield/cellfield"
	"github.com/notargets/cellfield/element"
	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/geometry"
	"github.com/notargets/cellfield/lazy"
	"github.com/notargets/cellfield/mesh"
	"github.com/notargets/cellfield/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func rectangle(t *testing.T, sizes []float64, cells []int) *geometry.Triangulation {
	t.Helper()
	model, err := mesh.NewCartesianModel(mesh.CartesianDescriptor{
		Origin: []float64{0, 0}, Sizes: sizes, Cells: cells, Order: 1,
	})
	require.NoError(t, err)
	ref, err := element.NewLagrangeCube(element.D2, 1)
	require.NoError(t, err)
	trian, err := geometry.NewTriangulation(model, ref)
	require.NoError(t, err)
	return trian
}

func TestIntegrateConstantGivesArea(t *testing.T) {
	trian := rectangle(t, []float64{3, 2}, []int{3, 2})
	dOmega, err := NewMeasure(trian, 0)
	require.NoError(t, err)
	contribs, err := dOmega.Integrate(cellfield.Constant(trian, 1))
	require.NoError(t, err)
	assert.Equal(t, 6, contribs.Len())
	area, err := Sum(contribs)
	require.NoError(t, err)
	assert.InDelta(t, 6, area, 1e-12)
}

func TestIntegratePhysicalPolynomial(t *testing.T) {
	trian := rectangle(t, []float64{1, 1}, []int{2, 2})
	dOmega, err := NewMeasure(trian, 4)
	require.NoError(t, err)
	f := cellfield.FromField(trian, field.NewScalarField(2, func(x field.Point) float64 {
		return x[0] * x[0] * x[1]
	}, nil))
	contribs, err := dOmega.Integrate(f)
	require.NoError(t, err)
	total, err := Sum(contribs)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/6, total, 1e-12)
}

func TestIntegrateBasisAndStiffness(t *testing.T) {
	trian := rectangle(t, []float64{2, 1}, []int{1, 1})
	dOmega, err := NewMeasure(trian, 2)
	require.NoError(t, err)

	v := cellfield.ReferenceBasis(trian)
	load, err := dOmega.Integrate(v)
	require.NoError(t, err)
	e, err := lazy.Get(load, 0)
	require.NoError(t, err)
	vals := e.(*field.Values)
	assert.Equal(t, []int{4}, vals.Dims)
	assert.InDeltaSlicef(t, []float64{0.5, 0.5, 0.5, 0.5}, vals.Data, 1e-12, "")

	u, err := cellfield.Trial(v)
	require.NoError(t, err)
	gv, err := cellfield.Gradient(v)
	require.NoError(t, err)
	gu, err := cellfield.Gradient(u)
	require.NoError(t, err)
	a, err := cellfield.Inner(gv, gu)
	require.NoError(t, err)
	stiff, err := dOmega.Integrate(a)
	require.NoError(t, err)
	e, err = lazy.Get(stiff, 0)
	require.NoError(t, err)
	k := e.(*field.Values)
	require.Equal(t, []int{4, 4}, k.Dims)
	for i := 0; i < 4; i++ {
		row := k.Data[i*4 : (i+1)*4]
		assert.InDelta(t, 0, floats.Sum(row), 1e-12, "row %d", i)
		for j := 0; j < 4; j++ {
			assert.InDelta(t, k.Data[i*4+j], k.Data[j*4+i], 1e-12)
		}
	}
	// node 0 of a 2x1 rectangle: (hy/hx + hx/hy)/3
	assert.InDelta(t, (0.5+2)/3, k.Data[0], 1e-12)
}

func TestSumRejectsNonScalars(t *testing.T) {
	_, err := Sum(lazy.NewFill(field.NewScalars([]float64{1, 2}), 2))
	assert.True(t, errors.Is(err, utils.ErrShapeMismatch))
}

func TestIntegrateLengthMismatch(t *testing.T) {
	trian := rectangle(t, []float64{1, 1}, []int{2, 2})
	q, err := celldata.NewCellQuadrature(trian, 1)
	require.NoError(t, err)
	f := cellfield.New(lazy.NewFill(field.NewConstantScalar(1), 3), celldata.ReferenceDomain, nil)
	_, err = Integrate(f, q)
	assert.True(t, errors.Is(err, utils.ErrShapeMismatch))
}
