package assembly

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/notargets/cellfield/element"
	"github.com/notargets/cellfield/fespace"
	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/geometry"
	"github.com/notargets/cellfield/integration"
	"github.com/notargets/cellfield/mesh"
	"github.com/notargets/cellfield/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dirichletSpace(t *testing.T, desc mesh.CartesianDescriptor) *fespace.Space {
	t.Helper()
	model, err := mesh.NewCartesianModel(desc)
	require.NoError(t, err)
	ref, err := element.NewLagrangeCube(element.Dimensionality(len(desc.Cells)), desc.Order)
	require.NoError(t, err)
	trian, err := geometry.NewTriangulation(model, ref)
	require.NoError(t, err)
	boundary, err := model.BoundaryNodes()
	require.NoError(t, err)
	space, err := fespace.NewSpace(trian, boundary)
	require.NoError(t, err)
	return space
}

func TestLaplaceReproducesLinearField(t *testing.T) {
	space := dirichletSpace(t, mesh.UnitSquare(2, 1))
	u := field.NewScalarField(2, func(x field.Point) float64 { return x[0] }, nil)

	for _, cfg := range []Config{
		DefaultConfig(),
		{Partitions: 3, Strategy: "round-robin", Workers: 2},
	} {
		sol, err := SolvePoisson(context.Background(), Poisson{Space: space, Dirichlet: u}, cfg)
		require.NoError(t, err)
		assert.LessOrEqual(t, sol.Residual, 1e-12)
		require.Len(t, sol.U.Free, 1)
		assert.InDelta(t, 0.5, sol.U.Free[0], 1e-12)

		dOmega, err := integration.NewMeasure(space.Triangulation(), 4)
		require.NoError(t, err)
		sq, err := fespace.SquaredError(sol.U.CellField, u, dOmega)
		require.NoError(t, err)
		assert.LessOrEqual(t, sq, 1e-8)
	}
}

func TestPoissonWithSourceIsExactForQuadratics(t *testing.T) {
	space := dirichletSpace(t, mesh.CartesianDescriptor{
		Origin: []float64{-1, 0}, Sizes: []float64{2, 1}, Cells: []int{3, 2}, Order: 2,
	})
	u := field.NewScalarField(2, func(x field.Point) float64 { return x[0]*x[0] + 2*x[1]*x[1] }, nil)
	f := field.NewScalarField(2, func(field.Point) float64 { return -6 }, nil)

	sol, err := SolvePoisson(context.Background(), Poisson{Space: space, Source: f, Dirichlet: u},
		Config{Partitions: 4, Workers: 4})
	require.NoError(t, err)
	assert.LessOrEqual(t, sol.Residual, 1e-10)

	dOmega, err := integration.NewMeasure(space.Triangulation(), 4)
	require.NoError(t, err)
	e, err := fespace.L2Error(sol.U.CellField, u, dOmega)
	require.NoError(t, err)
	assert.Less(t, e, 1e-10)
}

func TestAssembleCountsCells(t *testing.T) {
	space := dirichletSpace(t, mesh.UnitSquare(3, 1))
	p := Poisson{Space: space}
	_, matrix, vector, err := p.Forms()
	require.NoError(t, err)
	assert.Nil(t, vector)

	asm, err := NewAssembler(space, Config{Partitions: 2, Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, asm.Layout().NumPartitions)

	before := testutil.ToFloat64(cellsAssembled)
	passes := testutil.ToFloat64(assemblyPasses)
	sys, err := asm.Assemble(context.Background(), matrix, nil, make([]float64, space.NumFixedDofs()))
	require.NoError(t, err)
	assert.Equal(t, 9.0, testutil.ToFloat64(cellsAssembled)-before)
	assert.Equal(t, 1.0, testutil.ToFloat64(assemblyPasses)-passes)

	r, c := sys.Matrix.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 4, c)
	// interior node of four unit-aspect bilinear cells
	assert.InDelta(t, 8.0/3, sys.Matrix.At(0, 0), 1e-12)
	assert.InDelta(t, sys.Matrix.At(0, 3), sys.Matrix.At(3, 0), 1e-12)
}

func TestAssembleErrors(t *testing.T) {
	space := dirichletSpace(t, mesh.UnitSquare(2, 1))
	_, err := NewAssembler(space, Config{Strategy: "metis"})
	assert.Error(t, err)

	p := Poisson{Space: space}
	_, matrix, _, err := p.Forms()
	require.NoError(t, err)
	asm, err := NewAssembler(space, DefaultConfig())
	require.NoError(t, err)

	_, err = asm.Assemble(context.Background(), matrix, nil, []float64{1})
	assert.True(t, errors.Is(err, utils.ErrShapeMismatch))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = asm.Assemble(ctx, matrix, nil, make([]float64, space.NumFixedDofs()))
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	space := dirichletSpace(t, mesh.UnitSquare(3, 1))
	u := field.NewScalarField(2, func(x field.Point) float64 { return x[0] - x[1] }, nil)
	sol, err := SolvePoisson(context.Background(), Poisson{Space: space, Dirichlet: u}, DefaultConfig())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, NewSnapshot(sol.System, sol.U.Free, sol.U.Fixed)))
	snap, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	assert.Equal(t, sol.U.Free, snap.Free)
	assert.Equal(t, sol.U.Fixed, snap.Fixed)

	sys, err := snap.System()
	require.NoError(t, err)
	free, res, err := sys.Solve(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, res, 1e-12)
	assert.InDeltaSlicef(t, sol.U.Free, free, 1e-12, "")

	snap.I = snap.I[:1]
	_, err = snap.System()
	assert.True(t, errors.Is(err, utils.ErrShapeMismatch))
}
