package spatial

import (
	"github.com/chewxy/math32"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
)

// Grid divides an axis-aligned volume starting at the origin into a regular lattice of cells.
// Two-dimensional grids keep a z resolution of one.
type Grid struct {
	dims       int
	volume     [3]float32
	resolution [3]uint32
	cellSize   [3]float32
}

// NewGrid validates and builds a grid.
//
// Parameters:
//   - volume: the extent of the volume per axis, two or three positive values
//   - resolution: the number of cells per axis, same length as volume, all non-zero
//
// Returns:
//   - Grid: the grid
//   - error: a configuration error if the dimensions disagree or a value is out of range
func NewGrid(volume []float32, resolution []uint32) (Grid, error) {
	if len(volume) != len(resolution) {
		return Grid{}, errors.Configuration(errors.PhaseProtocol,
			"grid volume has %d dimensions but resolution has %d", len(volume), len(resolution))
	}
	if len(volume) != 2 && len(volume) != 3 {
		return Grid{}, errors.Configuration(errors.PhaseProtocol, "grid must have 2 or 3 dimensions, got %d", len(volume))
	}

	g := Grid{
		dims:       len(volume),
		volume:     [3]float32{1, 1, 1},
		resolution: [3]uint32{1, 1, 1},
	}
	cells := uint64(1)
	for i := range volume {
		if !(volume[i] > 0) || math32.IsInf(volume[i], 0) {
			return Grid{}, errors.Configuration(errors.PhaseProtocol, "grid volume axis %d must be positive, got %v", i, volume[i])
		}
		if resolution[i] == 0 {
			return Grid{}, errors.Configuration(errors.PhaseProtocol, "grid resolution axis %d is zero", i)
		}
		g.volume[i] = volume[i]
		g.resolution[i] = resolution[i]
		cells *= uint64(resolution[i])
	}
	if cells > 1<<32-1 {
		return Grid{}, errors.Configuration(errors.PhaseProtocol, "grid has %d cells, more than a uint32 hash can address", cells)
	}
	for i := range g.cellSize {
		g.cellSize[i] = g.volume[i] / float32(g.resolution[i])
	}
	return g, nil
}

// Dims returns 2 or 3.
func (g Grid) Dims() int { return g.dims }

// Volume returns the extent per axis.
func (g Grid) Volume() [3]float32 { return g.volume }

// Resolution returns the number of cells per axis.
func (g Grid) Resolution() [3]uint32 { return g.resolution }

// CellSize returns the edge length of a cell per axis.
func (g Grid) CellSize() [3]float32 { return g.cellSize }

// NumCells returns the total number of cells, which is also the pivot table length.
func (g Grid) NumCells() uint32 {
	return g.resolution[0] * g.resolution[1] * g.resolution[2]
}

// CellCoord returns the integer cell coordinate containing pos. Positions outside
// [0, volume) on any axis, or NaN, report false; they are never clamped.
//
// Parameters:
//   - pos: the position, with at least Dims components
//
// Returns:
//   - [3]int: the cell coordinate, z is 0 for 2D grids
//   - bool: false if pos lies outside the grid volume
func (g Grid) CellCoord(pos [3]float32) ([3]int, bool) {
	var c [3]int
	for i := range g.dims {
		f := math32.Floor(pos[i] / g.cellSize[i])
		if math32.IsNaN(f) || f < 0 || f >= float32(g.resolution[i]) {
			return c, false
		}
		c[i] = int(f)
	}
	return c, true
}

// CellIndex flattens the cell containing pos to x + y*resX + z*resX*resY.
func (g Grid) CellIndex(pos [3]float32) (uint32, bool) {
	c, ok := g.CellCoord(pos)
	if !ok {
		return 0, false
	}
	return g.Flatten(c), true
}

// Flatten converts an in-range cell coordinate to its flat index.
func (g Grid) Flatten(c [3]int) uint32 {
	rx, ry := g.resolution[0], g.resolution[1]
	return uint32(c[0]) + uint32(c[1])*rx + uint32(c[2])*rx*ry
}

// Unflatten converts a flat cell index back to its coordinate.
func (g Grid) Unflatten(idx uint32) [3]int {
	rx, ry := g.resolution[0], g.resolution[1]
	return [3]int{int(idx % rx), int(idx / rx % ry), int(idx / (rx * ry))}
}

// Reach returns how many cells a radius spans on each axis: ceil(radius / cellSize), clamped
// to [0, resolution]. A NaN or negative radius reaches no neighboring cells.
func (g Grid) Reach(radius float32) [3]int {
	var r [3]int
	for i := range g.dims {
		c := math32.Ceil(radius / g.cellSize[i])
		switch {
		case math32.IsNaN(c) || c <= 0:
		case c >= float32(g.resolution[i]):
			r[i] = int(g.resolution[i])
		default:
			r[i] = int(c)
		}
	}
	return r
}

// NeighborCells calls fn with every cell in the box of Reach(radius) cells around center,
// clamped to the grid, in flat-index order.
func (g Grid) NeighborCells(center [3]int, radius float32, fn func(cell uint32)) {
	reach := g.Reach(radius)
	var lo, hi [3]int
	for i := range 3 {
		lo[i] = max(center[i]-reach[i], 0)
		hi[i] = min(center[i]+reach[i], int(g.resolution[i])-1)
	}
	for z := lo[2]; z <= hi[2]; z++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for x := lo[0]; x <= hi[0]; x++ {
				fn(g.Flatten([3]int{x, y, z}))
			}
		}
	}
}
