package spatial

import (
	"github.com/Carmen-Shannon/oxy-ssbo/common"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
)

// MinSortCount is the smallest record count the bitonic network accepts: one compare-swap
// thread per record pair and 32 threads per workgroup.
const MinSortCount = 64

// SortStep is one compare-swap pass of the bitonic network. Pairs are Span apart, and the sort
// direction flips every ReverseSpan groups of 2*Span records.
type SortStep struct {
	Span        uint32
	ReverseSpan uint32
}

// ValidateSortCount rejects record counts the bitonic network cannot sort.
//
// Parameters:
//   - n: the record count
//
// Returns:
//   - error: a configuration error if n is not a power of two or is below MinSortCount
func ValidateSortCount(n uint64) error {
	if !common.IsPowerOfTwo(n) || n < MinSortCount {
		return errors.Configuration(errors.PhaseProtocol,
			"record count %d must be a power of two no smaller than %d", n, MinSortCount)
	}
	return nil
}

// BitonicSchedule returns the ordered passes that sort n records: for every stage e in
// [0, log2 n) the steps s = e..0 with Span 2^s and ReverseSpan 2^(e-s).
//
// Parameters:
//   - n: the record count
//
// Returns:
//   - []SortStep: the passes in execution order
//   - error: a configuration error from ValidateSortCount
func BitonicSchedule(n uint64) ([]SortStep, error) {
	if err := ValidateSortCount(n); err != nil {
		return nil, err
	}
	stages := common.Log2(n)
	steps := make([]SortStep, 0, stages*(stages+1)/2)
	for e := range stages {
		for s := e; s >= 0; s-- {
			steps = append(steps, SortStep{Span: 1 << s, ReverseSpan: 1 << (e - s)})
		}
	}
	return steps, nil
}

// compareSwapKernel returns the per-pair kernel for one pass over n/2 pairs. less orders the
// elements of items; pairs inside a reversed group are sorted descending so that the next
// stage merges bitonic sequences.
func compareSwapKernel[T any](step SortStep, items []T, less func(a, b T) bool) func(i int) {
	span := int(step.Span)
	reverseSpan := int(step.ReverseSpan)
	return func(i int) {
		group := i / span
		low := group*span*2 + i%span
		high := low + span
		descending := (group/reverseSpan)%2 == 1

		if descending {
			if less(items[low], items[high]) {
				items[low], items[high] = items[high], items[low]
			}
		} else if less(items[high], items[low]) {
			items[low], items[high] = items[high], items[low]
		}
	}
}
