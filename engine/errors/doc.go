// Package errors provides the structured error type shared by the layout, codec, schema and
// protocol packages.
//
// Errors carry a Phase (where processing failed) and a Kind (what went wrong), plus an
// optional field path and detail message:
//
//	err := errors.New(errors.PhaseEncode, errors.KindShapeMismatch).
//		Path("boids", "3", "pos").
//		Detail("expected %d elements, got %d", 5, 4).
//		Build()
//
// errors.Is matches two *Error values on Phase and Kind. The Err* sentinels match on Kind
// alone, so callers that do not care where a failure happened can write
//
//	if errors.Is(err, errors.ErrShapeMismatch) { ... }
package errors
