package mesh

import (
	"testing"

	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitSquareOrder1(t *testing.T) {
	m, err := NewCartesianModel(UnitSquare(2, 1))
	require.NoError(t, err)
	assert.Equal(t, 4, m.NumCells())
	assert.Equal(t, 9, m.NumNodes())
	assert.Equal(t, field.Point{0.5, 0}, m.NodeCoordinates()[1])
	assert.Equal(t, field.Point{1, 1}, m.NodeCoordinates()[8])

	// cell 1 is the lower right cell
	assert.Equal(t, []int{1, 2, 4, 5}, m.CellNodeIDs()[1])
	assert.Equal(t, []int{4, 5, 7, 8}, m.CellNodeIDs()[3])

	all, err := m.BoundaryNodes()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 5, 6, 7, 8}, all)

	left, err := m.BoundaryNodes("xmin")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 6}, left)
	assert.Equal(t, []string{"xmax", "xmin", "ymax", "ymin"}, m.Tags())
	assert.Equal(t, []int{0, 1, 2, 3}, m.CellToBackground())

	_, err = m.BoundaryNodes("zmin")
	assert.ErrorIs(t, err, utils.ErrOutOfBounds)
}

func TestHigherOrderNodesAreShared(t *testing.T) {
	m, err := NewCartesianModel(CartesianDescriptor{
		Origin: []float64{-1},
		Sizes:  []float64{2},
		Cells:  []int{2},
		Order:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, m.NumNodes())
	assert.Equal(t, [][]int{{0, 1, 2}, {2, 3, 4}}, m.CellNodeIDs())
	xs := make([]float64, 0, 5)
	for _, p := range m.NodeCoordinates() {
		xs = append(xs, p[0])
	}
	assert.InDeltaSlice(t, []float64{-1, -0.5, 0, 0.5, 1}, xs, 1e-14)
}

func TestDescriptorValidation(t *testing.T) {
	for _, d := range []CartesianDescriptor{
		{},
		{Origin: []float64{0}, Sizes: []float64{1, 1}, Cells: []int{1, 1}, Order: 1},
		{Origin: []float64{0, 0}, Sizes: []float64{1, 1}, Cells: []int{0, 1}, Order: 1},
		{Origin: []float64{0, 0}, Sizes: []float64{1, 1}, Cells: []int{1, 1}, Order: 0},
	} {
		_, err := NewCartesianModel(d)
		assert.Error(t, err)
	}
}
