package ssbo

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-ssbo/common"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
)

// aggregate holds what Struct and Buffer share: an ordered field list, its name index and the
// folded layout. It is immutable once the schema is built.
type aggregate struct {
	name   string
	fields []*Field
	index  map[string]int
	aggregateLayout
}

// Name returns the declared name.
func (a *aggregate) Name() string { return a.name }

// Fields returns the fields in declaration order. The slice is a copy; the fields are shared.
func (a *aggregate) Fields() []*Field { return slices.Clone(a.fields) }

// NumFields returns the number of fields, which is also the length of a matching Record.
func (a *aggregate) NumFields() int { return len(a.fields) }

// Alignment returns the maximum alignment of all fields.
func (a *aggregate) Alignment() uint64 { return a.alignment }

// ElementSize returns the raw folded size: the end of the last field, without a final pad.
func (a *aggregate) ElementSize() uint64 { return a.elementSize }

// Size returns the padded byte size. Encode produces exactly this many bytes.
func (a *aggregate) Size() uint64 { return a.size }

// Stride returns the distance between consecutive instances in an array.
func (a *aggregate) Stride() uint64 {
	return common.RoundUpAlign(a.alignment, a.elementSize)
}

// Lookup returns the named field.
func (a *aggregate) Lookup(name string) (*Field, bool) {
	i, ok := a.index[name]
	if !ok {
		return nil, false
	}
	return a.fields[i], true
}

// Field returns the lookup view of a named field.
//
// Parameters:
//   - name: the field name
//
// Returns:
//   - FieldInfo: type name, dimensions, byte offset and byte size of the field
//   - error: a not_found error if the field is not declared
func (a *aggregate) Field(name string) (FieldInfo, error) {
	f, ok := a.Lookup(name)
	if !ok {
		return FieldInfo{}, errors.New(errors.PhaseLayout, errors.KindNotFound).
			Path(a.name, name).
			Detail("field %q not declared in %s", name, a.name).
			Build()
	}
	return f.Info(), nil
}

// Zero returns a Record of zero values shaped like the aggregate.
func (a *aggregate) Zero() Record {
	return zeroRecord(a.fields)
}

// Struct is a named, ordered list of fields used as the element type of struct-instance fields.
type Struct struct {
	aggregate
	id   int
	deps []int
	set  *BufferSet
}

// ID returns the stable arena index assigned by the schema, in declaration order.
func (s *Struct) ID() int { return s.id }

// Dependencies returns the structs referenced directly by this struct's fields, each once, in
// arena order.
func (s *Struct) Dependencies() []int { return slices.Clone(s.deps) }

// buildAggregate resolves a declaration list into fields and lays them out.
func buildAggregate(name string, decls []FieldDecl, resolve func(FieldDecl) (FieldType, error)) (aggregate, error) {
	a := aggregate{
		name:   name,
		fields: make([]*Field, 0, len(decls)),
		index:  make(map[string]int, len(decls)),
	}
	for i, d := range decls {
		typ, err := resolve(d)
		if err != nil {
			return aggregate{}, err
		}
		a.index[d.Name] = i
		a.fields = append(a.fields, newField(d, i, typ))
	}
	a.aggregateLayout = layoutFields(a.fields)
	return a, nil
}

// zeroRecord builds zero host values for a field list.
func zeroRecord(fields []*Field) Record {
	rec := make(Record, len(fields))
	for i, f := range fields {
		rec[i] = zeroField(f, 0)
	}
	return rec
}

// zeroField builds the zero value of one field starting at the given dimension.
func zeroField(f *Field, level int) Value {
	if level == len(f.dims) {
		if f.typ.IsStruct() {
			return zeroRecord(f.typ.st.fields)
		}
		return zeroPrimitive(f.typ.prim)
	}
	arr := make(Array, f.dims[level])
	for i := range arr {
		arr[i] = zeroField(f, level+1)
	}
	return arr
}

func zeroPrimitive(p Primitive) Value {
	switch p {
	case TypeUint:
		return Uint(0)
	case TypeFloat:
		return Float(0)
	case TypeVec2:
		return Vec2{}
	case TypeVec3:
		return Vec3{}
	case TypeVec4:
		return Vec4{}
	}
	return nil
}
