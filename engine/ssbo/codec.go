package ssbo

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
)

// Encode packs a host value into the aggregate's byte image. Padding bytes are zero and the
// result is exactly Size() bytes long.
//
// Parameters:
//   - v: one value per field, in declaration order
//
// Returns:
//   - []byte: the packed bytes
//   - error: a shape_mismatch error if v does not match the declared shape
func (a *aggregate) Encode(v Record) ([]byte, error) {
	out := make([]byte, a.size)
	if err := encodeRecord(out, 0, a.fields, v, []string{a.name}); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeTo packs v into dst, which must hold at least Size() bytes. Bytes of dst that belong to
// padding are overwritten with zero.
func (a *aggregate) EncodeTo(dst []byte, v Record) error {
	if uint64(len(dst)) < a.size {
		return errors.TruncatedBuffer(errors.PhaseEncode, []string{a.name}, a.size, uint64(len(dst)))
	}
	clear(dst[:a.size])
	return encodeRecord(dst, 0, a.fields, v, []string{a.name})
}

// Decode unpacks a byte image into a host value. Exactly Size() bytes are consumed and any
// bytes past them are ignored: device readbacks are rounded up to whole words, so a staging
// copy may carry a few bytes of padding after the image.
//
// Parameters:
//   - data: the packed bytes, at least Size() long
//
// Returns:
//   - Record: one value per field, in declaration order
//   - error: a truncated_buffer error if data is shorter than Size()
func (a *aggregate) Decode(data []byte) (Record, error) {
	if uint64(len(data)) < a.size {
		return nil, errors.TruncatedBuffer(errors.PhaseDecode, []string{a.name}, a.size, uint64(len(data)))
	}
	return decodeRecord(data, 0, a.fields), nil
}

// EncodeField packs one named field on its own, for partial uploads at FieldInfo.Offset.
// No trailing pad follows the last element.
//
// Parameters:
//   - name: the field name
//   - v: the field value
//
// Returns:
//   - []byte: exactly FieldInfo.Size bytes
//   - error: not_found or shape_mismatch
func (a *aggregate) EncodeField(name string, v Value) ([]byte, error) {
	f, ok := a.Lookup(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseEncode, "field", name)
	}
	out := make([]byte, f.size)
	if err := encodeField(out, 0, f, 0, v, []string{a.name, name}); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeField unpacks one named field from bytes that start at the field's offset.
//
// Parameters:
//   - name: the field name
//   - data: the field bytes, at least FieldInfo.Size long
//
// Returns:
//   - Value: the field value
//   - error: not_found or truncated_buffer
func (a *aggregate) DecodeField(name string, data []byte) (Value, error) {
	f, ok := a.Lookup(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseDecode, "field", name)
	}
	if uint64(len(data)) < f.size {
		return nil, errors.TruncatedBuffer(errors.PhaseDecode, []string{a.name, name}, f.size, uint64(len(data)))
	}
	return decodeField(data, 0, f, 0), nil
}

func encodeRecord(dst []byte, base uint64, fields []*Field, v Record, path []string) error {
	if len(v) != len(fields) {
		return errors.ShapeMismatch(errors.PhaseEncode, path, len(fields), len(v))
	}
	for i, f := range fields {
		if err := encodeField(dst, base+f.offset, f, 0, v[i], errors.AppendPath(path, f.name)); err != nil {
			return err
		}
	}
	return nil
}

// encodeField packs the dimension `level` of f at byte offset at. Element i of a dimension
// starts at at + i*stride; padding between elements is left untouched (zero).
func encodeField(dst []byte, at uint64, f *Field, level int, v Value, path []string) error {
	if level == len(f.dims) {
		return encodeElement(dst, at, f.typ, v, path)
	}
	arr, ok := v.(Array)
	if !ok {
		return errors.New(errors.PhaseEncode, errors.KindShapeMismatch).
			Path(path...).
			Value(v).
			Detail("expected array of %d, got %s", f.dims[level], kindOf(v)).
			Build()
	}
	if uint64(len(arr)) != f.dims[level] {
		return errors.ShapeMismatch(errors.PhaseEncode, path, int(f.dims[level]), len(arr))
	}
	stride := f.strides[level]
	for i, e := range arr {
		if err := encodeField(dst, at+uint64(i)*stride, f, level+1, e, errors.AppendPath(path, strconv.Itoa(i))); err != nil {
			return err
		}
	}
	return nil
}

func encodeElement(dst []byte, at uint64, typ FieldType, v Value, path []string) error {
	if typ.IsStruct() {
		rec, ok := v.(Record)
		if !ok {
			return errors.New(errors.PhaseEncode, errors.KindShapeMismatch).
				Path(path...).
				Value(v).
				Detail("expected %s record, got %s", typ.st.name, kindOf(v)).
				Build()
		}
		return encodeRecord(dst, at, typ.st.fields, rec, path)
	}

	if typ.prim == TypeUint {
		u, ok := v.(Uint)
		if !ok {
			return primitiveMismatch(typ.prim, v, path)
		}
		binary.LittleEndian.PutUint32(dst[at:], uint32(u))
		return nil
	}

	c, ok := components(v)
	if !ok || len(c) != typ.prim.Components() {
		return primitiveMismatch(typ.prim, v, path)
	}
	for i, x := range c {
		binary.LittleEndian.PutUint32(dst[at+uint64(i)*4:], math.Float32bits(x))
	}
	return nil
}

func primitiveMismatch(p Primitive, v Value, path []string) error {
	return errors.New(errors.PhaseEncode, errors.KindShapeMismatch).
		Path(path...).
		Value(v).
		Detail("expected %s, got %s", p, kindOf(v)).
		Build()
}

func decodeRecord(data []byte, base uint64, fields []*Field) Record {
	rec := make(Record, len(fields))
	for i, f := range fields {
		rec[i] = decodeField(data, base+f.offset, f, 0)
	}
	return rec
}

func decodeField(data []byte, at uint64, f *Field, level int) Value {
	if level == len(f.dims) {
		return decodeElement(data, at, f.typ)
	}
	n := f.dims[level]
	stride := f.strides[level]
	arr := make(Array, n)
	for i := range n {
		arr[i] = decodeField(data, at+i*stride, f, level+1)
	}
	return arr
}

func decodeElement(data []byte, at uint64, typ FieldType) Value {
	if typ.IsStruct() {
		return decodeRecord(data, at, typ.st.fields)
	}
	if typ.prim == TypeUint {
		return Uint(binary.LittleEndian.Uint32(data[at:]))
	}
	c := make([]float32, typ.prim.Components())
	for i := range c {
		c[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[at+uint64(i)*4:]))
	}
	return primitiveValue(typ.prim, c)
}
