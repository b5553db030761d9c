package spatial

import (
	"strconv"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
)

// hashKernel writes the flat cell index of positions[i] into hashes[i]. A position outside
// the grid volume records an OutOfVolume error at errs[i] and leaves the hash untouched.
func hashKernel(g Grid, positions [][3]float32, hashes []uint32, errs []error) func(i int) {
	return func(i int) {
		cell, ok := g.CellIndex(positions[i])
		if !ok {
			errs[i] = errors.New(errors.PhaseProtocol, errors.KindOutOfVolume).
				Path("records", strconv.Itoa(i)).
				Value(positions[i]).
				Detail("position lies outside the grid volume %v", g.Volume()).
				Build()
			return
		}
		hashes[i] = cell
	}
}

// pivotStartKernel runs once per sorted record. Record i owns the cells after the previous
// record's cell up to and including its own and sets their start to i; the last record also
// fills every cell past its own with n, so empty cells read as zero-length runs.
func pivotStartKernel(sorted []uint32, starts []uint32) func(i int) {
	n := uint32(len(sorted))
	numCells := uint32(len(starts))
	return func(i int) {
		key := sorted[i]
		first := uint32(0)
		if i > 0 {
			first = sorted[i-1] + 1
		}
		for c := first; c <= key; c++ {
			starts[c] = uint32(i)
		}
		if i == len(sorted)-1 {
			for c := key + 1; c < numCells; c++ {
				starts[c] = n
			}
		}
	}
}

// pivotLengthKernel runs once per cell: the run ends where the next cell starts, or at n for
// the last cell.
func pivotLengthKernel(n uint32, starts []uint32, lens []uint32) func(c int) {
	last := len(starts) - 1
	return func(c int) {
		end := n
		if c < last {
			end = starts[c+1]
		}
		lens[c] = end - starts[c]
	}
}
