package config

import (
	"math"
	"strconv"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
)

// RecordValue converts a decoded map into the Record of a field list. Keys must name fields;
// fields without a key are zero. Arrays are given in full, one item per element.
//
// Parameters:
//   - fields: the fields of a struct or buffer
//   - raw: the decoded values keyed by field name, may be nil
//   - path: the location reported in errors
//
// Returns:
//   - ssbo.Record: the converted record
//   - error: a config not_found error for unknown keys, a shape_mismatch error for a list whose
//     length differs from its dimension, or a conversion error
func RecordValue(fields []*ssbo.Field, raw map[string]any, path []string) (ssbo.Record, error) {
	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f.Name()] = struct{}{}
	}
	for key := range raw {
		if _, ok := known[key]; !ok {
			return nil, errors.New(errors.PhaseConfig, errors.KindNotFound).
				Path(errors.AppendPath(path, key)...).
				Detail("no field named %q", key).
				Build()
		}
	}

	rec := make(ssbo.Record, len(fields))
	for i, f := range fields {
		v, err := fieldValue(f, 0, raw[f.Name()], errors.AppendPath(path, f.Name()))
		if err != nil {
			return nil, err
		}
		rec[i] = v
	}
	return rec, nil
}

// fieldValue converts the value of a field from dimension level inward. A nil raw value
// yields zero; a list must match the dimension exactly.
func fieldValue(f *ssbo.Field, level int, raw any, path []string) (ssbo.Value, error) {
	dims := f.Dims()
	if level < len(dims) {
		var items []any
		if raw != nil {
			list, ok := raw.([]any)
			if !ok {
				return nil, conversionError(path, "array", raw)
			}
			if uint64(len(list)) != dims[level] {
				return nil, errors.ShapeMismatch(errors.PhaseConfig, path, int(dims[level]), len(list))
			}
			items = list
		}
		arr := make(ssbo.Array, dims[level])
		for i := range arr {
			var item any
			if i < len(items) {
				item = items[i]
			}
			v, err := fieldValue(f, level+1, item, errors.AppendPath(path, strconv.Itoa(i)))
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil
	}

	typ := f.Type()
	if typ.IsStruct() {
		var m map[string]any
		if raw != nil {
			var ok bool
			if m, ok = raw.(map[string]any); !ok {
				return nil, conversionError(path, "table", raw)
			}
		}
		return RecordValue(typ.Struct().Fields(), m, path)
	}
	return PrimitiveValue(typ.Primitive(), raw, path)
}

// PrimitiveValue converts a decoded number or list of numbers into the host value of p. A nil
// raw value yields zero.
//
// Parameters:
//   - p: the primitive type
//   - raw: an integer for uint, a number for float, a list of numbers for vectors
//   - path: the location reported in errors
//
// Returns:
//   - ssbo.Value: the converted value
//   - error: a config invalid_input error if raw has the wrong shape or range
func PrimitiveValue(p ssbo.Primitive, raw any, path []string) (ssbo.Value, error) {
	if p == ssbo.TypeUint {
		if raw == nil {
			return ssbo.Uint(0), nil
		}
		u, ok := toUint32(raw)
		if !ok {
			return nil, conversionError(path, "uint", raw)
		}
		return ssbo.Uint(u), nil
	}

	n := p.Components()
	c := make([]float32, n)
	switch {
	case raw == nil:
	case n == 1:
		f, ok := toFloat32(raw)
		if !ok {
			return nil, conversionError(path, p.String(), raw)
		}
		c[0] = f
	default:
		list, ok := raw.([]any)
		if !ok || len(list) != n {
			return nil, conversionError(path, p.String(), raw)
		}
		for i, item := range list {
			if c[i], ok = toFloat32(item); !ok {
				return nil, conversionError(path, p.String(), raw)
			}
		}
	}

	switch p {
	case ssbo.TypeFloat:
		return ssbo.Float(c[0]), nil
	case ssbo.TypeVec2:
		return ssbo.Vec2{c[0], c[1]}, nil
	case ssbo.TypeVec3:
		return ssbo.Vec3{c[0], c[1], c[2]}, nil
	case ssbo.TypeVec4:
		return ssbo.Vec4{c[0], c[1], c[2], c[3]}, nil
	}
	return nil, errors.NotFound(errors.PhaseConfig, "primitive type", p.String())
}

func conversionError(path []string, want string, raw any) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Path(path...).
		Value(raw).
		Detail("cannot use %T as %s", raw, want).
		Build()
}

// toFloat32 accepts the number types produced by the TOML and YAML decoders.
func toFloat32(raw any) (float32, bool) {
	switch v := raw.(type) {
	case float64:
		return float32(v), true
	case float32:
		return v, true
	case int:
		return float32(v), true
	case int64:
		return float32(v), true
	case uint64:
		return float32(v), true
	}
	return 0, false
}

// toUint32 accepts integers, and floats with no fractional part, in [0, 2^32).
func toUint32(raw any) (uint32, bool) {
	var f float64
	switch v := raw.(type) {
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint64:
		f = float64(v)
	case float64:
		f = v
	default:
		return 0, false
	}
	if f < 0 || f > math.MaxUint32 || f != math.Trunc(f) {
		return 0, false
	}
	return uint32(f), true
}
