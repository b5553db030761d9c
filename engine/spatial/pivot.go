package spatial

import (
	"context"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
)

// Pivot is one pivot table entry: the records hashed to a cell occupy [Start, Start+Len) of
// the sorted record array.
type Pivot struct {
	Start uint32
	Len   uint32
}

// BuildPivotTable computes the pivot table for hashes that are already sorted ascending.
//
// Parameters:
//   - sortedHashes: the cell index of every record in sorted order
//   - numCells: the number of grid cells, which is the table length
//
// Returns:
//   - []Pivot: one entry per cell
//   - error: an invalid input error if the hashes are unsorted or a hash is not below numCells
func BuildPivotTable(sortedHashes []uint32, numCells uint32) ([]Pivot, error) {
	if numCells == 0 {
		return nil, errors.Configuration(errors.PhaseProtocol, "pivot table needs at least one cell")
	}
	for i, h := range sortedHashes {
		if h >= numCells {
			return nil, errors.New(errors.PhaseProtocol, errors.KindInvalidInput).
				Value(h).
				Detail("hash %d at index %d is outside %d cells", h, i, numCells).
				Build()
		}
		if i > 0 && h < sortedHashes[i-1] {
			return nil, errors.New(errors.PhaseProtocol, errors.KindInvalidInput).
				Detail("hashes are not sorted at index %d", i).
				Build()
		}
	}

	starts, lens := make([]uint32, numCells), make([]uint32, numCells)
	if err := buildPivots(context.Background(), Sequential{}, sortedHashes, starts, lens); err != nil {
		return nil, err
	}
	pivots := make([]Pivot, numCells)
	for c := range pivots {
		pivots[c] = Pivot{Start: starts[c], Len: lens[c]}
	}
	return pivots, nil
}

// buildPivots runs the start phase and then the length phase.
func buildPivots(ctx context.Context, exec Executor, sorted, starts, lens []uint32) error {
	if len(sorted) == 0 {
		clear(starts)
		clear(lens)
		return nil
	}
	if err := exec.Dispatch(ctx, "pivot_start", len(sorted), pivotStartKernel(sorted, starts)); err != nil {
		return err
	}
	return exec.Dispatch(ctx, "pivot_length", len(starts), pivotLengthKernel(uint32(len(sorted)), starts, lens))
}
