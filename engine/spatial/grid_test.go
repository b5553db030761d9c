package spatial

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridErrors(t *testing.T) {
	tests := []struct {
		name       string
		volume     []float32
		resolution []uint32
	}{
		{"length mismatch", []float32{1, 1, 1}, []uint32{2, 2}},
		{"one dimension", []float32{1}, []uint32{2}},
		{"four dimensions", []float32{1, 1, 1, 1}, []uint32{2, 2, 2, 2}},
		{"zero volume", []float32{0, 1}, []uint32{2, 2}},
		{"negative volume", []float32{1, -1}, []uint32{2, 2}},
		{"nan volume", []float32{math32.NaN(), 1}, []uint32{2, 2}},
		{"infinite volume", []float32{math32.Inf(1), 1}, []uint32{2, 2}},
		{"zero resolution", []float32{1, 1}, []uint32{2, 0}},
		{"too many cells", []float32{1, 1, 1}, []uint32{1 << 16, 1 << 16, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGrid(tt.volume, tt.resolution)
			assert.ErrorIs(t, err, errors.ErrConfiguration)
		})
	}
}

func TestGridCells(t *testing.T) {
	g, err := NewGrid([]float32{10, 20, 30}, []uint32{5, 4, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, g.Dims())
	assert.Equal(t, uint32(60), g.NumCells())
	assert.Equal(t, [3]float32{2, 5, 10}, g.CellSize())

	idx, ok := g.CellIndex([3]float32{3, 6, 25})
	require.True(t, ok)
	assert.Equal(t, uint32(1+1*5+2*5*4), idx)
	assert.Equal(t, [3]int{1, 1, 2}, g.Unflatten(idx))

	for _, pos := range [][3]float32{{10, 0, 0}, {-0.01, 0, 0}, {0, 0, 30}, {math32.NaN(), 0, 0}} {
		_, ok := g.CellIndex(pos)
		assert.False(t, ok, "%v", pos)
	}

	for c := range g.NumCells() {
		assert.Equal(t, c, g.Flatten(g.Unflatten(c)))
	}
}

func TestGrid2D(t *testing.T) {
	g, err := NewGrid([]float32{4, 4}, []uint32{4, 2})
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{4, 2, 1}, g.Resolution())
	assert.Equal(t, uint32(8), g.NumCells())

	idx, ok := g.CellIndex([3]float32{3.5, 2.5, 99})
	require.True(t, ok)
	assert.Equal(t, uint32(3+1*4), idx)
}

func TestNeighborCellsClamp(t *testing.T) {
	g, err := NewGrid([]float32{4, 4, 4}, []uint32{4, 4, 4})
	require.NoError(t, err)
	assert.Equal(t, [3]int{2, 2, 2}, g.Reach(1.5))

	var corner []uint32
	g.NeighborCells([3]int{0, 0, 0}, 1, func(c uint32) { corner = append(corner, c) })
	assert.Equal(t, []uint32{0, 1, 4, 5, 16, 17, 20, 21}, corner)

	count := 0
	g.NeighborCells([3]int{1, 1, 1}, 1, func(uint32) { count++ })
	assert.Equal(t, 27, count)

	count = 0
	g.NeighborCells([3]int{3, 3, 3}, 100, func(uint32) { count++ })
	assert.Equal(t, 64, count)
}

func TestReachClampsToResolution(t *testing.T) {
	g, err := NewGrid([]float32{4, 4, 4}, []uint32{4, 4, 4})
	require.NoError(t, err)

	for _, radius := range []float32{100, 1e20, math32.Inf(1)} {
		assert.Equal(t, [3]int{4, 4, 4}, g.Reach(radius), "radius %v", radius)
		count := 0
		g.NeighborCells([3]int{1, 1, 1}, radius, func(uint32) { count++ })
		assert.Equal(t, 64, count, "radius %v", radius)
	}

	for _, radius := range []float32{-1, math32.Inf(-1), math32.NaN()} {
		assert.Equal(t, [3]int{0, 0, 0}, g.Reach(radius), "radius %v", radius)
		var cells []uint32
		g.NeighborCells([3]int{1, 1, 1}, radius, func(c uint32) { cells = append(cells, c) })
		assert.Equal(t, []uint32{g.Flatten([3]int{1, 1, 1})}, cells, "radius %v", radius)
	}
}
