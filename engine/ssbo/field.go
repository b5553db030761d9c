package ssbo

import (
	"regexp"
	"slices"

	"github.com/Carmen-Shannon/oxy-ssbo/common"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
)

// identifierRegex matches names that are valid in both GLSL and WGSL
var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// FieldDecl declares a field before the schema is built. Exactly one of Primitive or Struct
// must be set. Build it with Prim or Inst.
type FieldDecl struct {
	Name      string
	Primitive Primitive
	Struct    string
	Dims      []uint64
	Unbounded bool
}

// Prim declares a primitive field.
//
// Parameters:
//   - name: the field name, unique within its owner
//   - p: the primitive type
//   - dims: array extents, outermost first; none for a scalar field
//
// Returns:
//   - FieldDecl: the field declaration
func Prim(name string, p Primitive, dims ...uint64) FieldDecl {
	return FieldDecl{Name: name, Primitive: p, Dims: dims}
}

// Inst declares a field holding one or more instances of a named struct.
//
// Parameters:
//   - name: the field name, unique within its owner
//   - structName: the name of a struct declared in the same schema
//   - dims: array extents, outermost first; none for a single instance
//
// Returns:
//   - FieldDecl: the field declaration
func Inst(name, structName string, dims ...uint64) FieldDecl {
	return FieldDecl{Name: name, Struct: structName, Dims: dims}
}

// AsUnbounded marks the declaration as a runtime-sized array. Only the last field of a buffer
// may be unbounded; its last extent still sizes the host allocation.
func (d FieldDecl) AsUnbounded() FieldDecl {
	d.Unbounded = true
	return d
}

// FieldType is the resolved type of a field: a primitive or a reference to a struct.
type FieldType struct {
	prim Primitive
	st   *Struct
}

// PrimitiveType builds a FieldType for a primitive.
func PrimitiveType(p Primitive) FieldType {
	return FieldType{prim: p}
}

// StructType builds a FieldType referencing a built struct.
func StructType(s *Struct) FieldType {
	return FieldType{st: s}
}

// IsStruct reports whether the type references a struct.
func (t FieldType) IsStruct() bool {
	return t.st != nil
}

// Primitive returns the primitive kind, or zero for struct types.
func (t FieldType) Primitive() Primitive {
	return t.prim
}

// Struct returns the referenced struct, or nil for primitive types.
func (t FieldType) Struct() *Struct {
	return t.st
}

// Name returns the neutral type name: the GLSL primitive name or the struct name.
func (t FieldType) Name() string {
	if t.st != nil {
		return t.st.Name()
	}
	return t.prim.String()
}

// elementLayout returns the raw size and alignment of one element of the type.
func (t FieldType) elementLayout() (size, align uint64) {
	if t.st != nil {
		return t.st.elementSize, t.st.alignment
	}
	return t.prim.Size(), t.prim.Alignment()
}

// Field is a named, dimensioned, resolved member of a struct or buffer with its computed
// byte layout.
type Field struct {
	name      string
	index     int
	typ       FieldType
	dims      []uint64
	unbounded bool

	offset    uint64
	size      uint64
	alignment uint64
	elemSizes []uint64
	strides   []uint64
}

// FieldInfo is the lookup result consumed by kernel builders to size dispatches and locate
// byte ranges.
type FieldInfo struct {
	Name      string
	TypeName  string
	Dims      []uint64
	Unbounded bool
	Offset    uint64
	Size      uint64
	Stride    uint64
	Alignment uint64
}

// Name returns the field name.
func (f *Field) Name() string { return f.name }

// Index returns the position of the field in its owner, which is also its position in a Record.
func (f *Field) Index() int { return f.index }

// Type returns the resolved field type.
func (f *Field) Type() FieldType { return f.typ }

// Dims returns a copy of the array extents, outermost first.
func (f *Field) Dims() []uint64 { return slices.Clone(f.dims) }

// Unbounded reports whether the last dimension renders as a runtime-sized array.
func (f *Field) Unbounded() bool { return f.unbounded }

// IsArray reports whether the field has at least one dimension.
func (f *Field) IsArray() bool { return len(f.dims) > 0 }

// Count returns the total number of elements across all dimensions.
func (f *Field) Count() uint64 { return common.Product(f.dims) }

// Offset returns the byte offset of the field within its owner.
func (f *Field) Offset() uint64 { return f.offset }

// Size returns the byte size of the field. The last array element carries no trailing pad.
func (f *Field) Size() uint64 { return f.size }

// Alignment returns the alignment of the field's element type.
func (f *Field) Alignment() uint64 { return f.alignment }

// ElementSize returns the raw byte size of a single element of the field's type.
func (f *Field) ElementSize() uint64 {
	size, _ := f.typ.elementLayout()
	return size
}

// Stride returns the distance between consecutive elements of the outermost dimension, or
// zero for a scalar field.
func (f *Field) Stride() uint64 {
	if len(f.strides) == 0 {
		return 0
	}
	return f.strides[0]
}

// ElementOffset returns the byte offset, relative to the field, of the innermost element at the
// given multi-dimensional index.
//
// Parameters:
//   - index: one index per dimension, outermost first
//
// Returns:
//   - uint64: the relative byte offset
//   - error: a shape_mismatch error if the index has the wrong arity or is out of range
func (f *Field) ElementOffset(index ...uint64) (uint64, error) {
	if len(index) != len(f.dims) {
		return 0, errors.ShapeMismatch(errors.PhaseLayout, []string{f.name}, len(f.dims), len(index))
	}
	var at uint64
	for i, idx := range index {
		if idx >= f.dims[i] {
			return 0, errors.New(errors.PhaseLayout, errors.KindShapeMismatch).
				Path(f.name).
				Detail("index %d out of range for dimension %d of extent %d", idx, i, f.dims[i]).
				Build()
		}
		at += idx * f.strides[i]
	}
	return at, nil
}

// Info returns the lookup view of the field.
func (f *Field) Info() FieldInfo {
	return FieldInfo{
		Name:      f.name,
		TypeName:  f.typ.Name(),
		Dims:      f.Dims(),
		Unbounded: f.unbounded,
		Offset:    f.offset,
		Size:      f.size,
		Stride:    f.Stride(),
		Alignment: f.alignment,
	}
}

// validateDecl checks the parts of a declaration that do not depend on other declarations.
func validateDecl(owner string, d FieldDecl) error {
	path := []string{owner, d.Name}
	if !identifierRegex.MatchString(d.Name) {
		return errors.New(errors.PhaseSchema, errors.KindInvalidInput).
			Path(path...).
			Detail("invalid field name %q", d.Name).
			Build()
	}
	if (d.Struct == "") == (d.Primitive == 0) {
		return errors.New(errors.PhaseSchema, errors.KindInvalidInput).
			Path(path...).
			Detail("field must name exactly one of a primitive or a struct").
			Build()
	}
	if d.Struct == "" && !d.Primitive.Valid() {
		return errors.New(errors.PhaseSchema, errors.KindInvalidInput).
			Path(path...).
			Detail("unknown primitive %d", int(d.Primitive)).
			Build()
	}
	for i, n := range d.Dims {
		if n == 0 {
			return errors.New(errors.PhaseSchema, errors.KindShapeMismatch).
				Path(path...).
				Detail("dimension %d has zero extent", i).
				Build()
		}
	}
	if d.Unbounded && len(d.Dims) == 0 {
		return errors.Configuration(errors.PhaseSchema, "field %s.%s is unbounded but has no dimensions", owner, d.Name)
	}
	return nil
}

// newField resolves a declaration against its type and computes its size and strides.
// Offsets are assigned later by layoutFields.
func newField(d FieldDecl, index int, typ FieldType) *Field {
	f := &Field{
		name:      d.Name,
		index:     index,
		typ:       typ,
		dims:      slices.Clone(d.Dims),
		unbounded: d.Unbounded,
	}
	f.computeSize()
	return f
}
