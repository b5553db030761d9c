package common

import "math/bits"

// RoundUpAlign rounds value up to the next multiple of alignment.
// Alignment must be a power of two; an alignment of zero returns value unchanged.
//
// Parameters:
//   - alignment: the required alignment (must be a power of two)
//   - value: the value to align
//
// Returns:
//   - uint64: value rounded up to the next multiple of alignment
func RoundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// PaddingFor returns the number of bytes needed to bring value up to a multiple of alignment.
//
// Parameters:
//   - alignment: the required alignment (must be a power of two)
//   - value: the current offset
//
// Returns:
//   - uint64: bytes of padding to insert
func PaddingFor(alignment, value uint64) uint64 {
	return RoundUpAlign(alignment, value) - value
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// Log2 returns floor(log2(n)) for n > 0, and 0 for n == 0.
func Log2(n uint64) int {
	if n == 0 {
		return 0
	}
	return bits.Len64(n) - 1
}

// CeilDiv divides n by d rounding up. Used to size compute dispatches from element counts.
//
// Parameters:
//   - n: the element count
//   - d: the per-group size, must be non-zero
//
// Returns:
//   - uint64: the number of groups needed to cover n
func CeilDiv(n, d uint64) uint64 {
	return (n + d - 1) / d
}

// Product multiplies all values together. An empty input yields 1.
func Product(values []uint64) uint64 {
	p := uint64(1)
	for _, v := range values {
		p *= v
	}
	return p
}
