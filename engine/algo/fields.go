package algo

import (
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
)

// FieldRef names a primitive member of the struct elements of a one-dimensional array.
type FieldRef struct {
	Array string
	Field string
}

// String returns array.field.
func (r FieldRef) String() string { return r.Array + "." + r.Field }

// resolved is a FieldRef looked up in a buffer.
type resolved struct {
	ref    FieldRef
	array  *ssbo.Field
	member *ssbo.Field
}

// access returns the WGSL expression of the member for invocation i.
func (r resolved) access() string {
	return dataVarName + "." + r.ref.Array + "[i]." + r.ref.Field
}

func resolve(buf *ssbo.Buffer, ref FieldRef) (resolved, error) {
	array, ok := buf.Lookup(ref.Array)
	if !ok {
		return resolved{}, errors.NotFound(errors.PhasePipeline, "field", ref.Array)
	}
	if !array.Type().IsStruct() || len(array.Dims()) != 1 {
		return resolved{}, errors.Configuration(errors.PhasePipeline,
			"field %q must be a one-dimensional array of structs", ref.Array)
	}
	member, ok := array.Type().Struct().Lookup(ref.Field)
	if !ok {
		return resolved{}, errors.NotFound(errors.PhasePipeline, "field", ref.String())
	}
	if member.Type().IsStruct() || member.IsArray() {
		return resolved{}, errors.Configuration(errors.PhasePipeline, "field %s must be a single primitive", ref)
	}
	return resolved{ref: ref, array: array, member: member}, nil
}

// sameCount checks that every resolved field iterates the same number of elements.
func sameCount(fields []resolved) (uint64, error) {
	n := fields[0].array.Count()
	for _, f := range fields[1:] {
		if f.array.Count() != n {
			return 0, errors.Configuration(errors.PhasePipeline,
				"arrays %q and %q have different lengths %d and %d", fields[0].ref.Array, f.ref.Array, n, f.array.Count())
		}
	}
	return n, nil
}

// wgslFloat formats f as an abstract float literal.
func wgslFloat(f float32) string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 32)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
