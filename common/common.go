// Package common holds small numeric and generic helpers shared by the layout engine, the
// kernel builders and the GPU collaborator.
package common

// Coalesce returns the first argument that is not the zero value of T.
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
