package ssbo

import "slices"

// DeclarationKind distinguishes struct declarations from buffer declarations.
type DeclarationKind int

const (
	// DeclarationStruct declares a struct type.
	DeclarationStruct DeclarationKind = iota

	// DeclarationBuffer declares a storage buffer block.
	DeclarationBuffer
)

// String returns "struct" or "buffer".
func (k DeclarationKind) String() string {
	if k == DeclarationBuffer {
		return "buffer"
	}
	return "struct"
}

// Declaration is the neutral, language independent description of one struct or buffer that a
// code generator renders into kernel source.
type Declaration struct {
	Kind    DeclarationKind
	Name    string
	Binding uint32
	Fields  []DeclaredField
}

// DeclaredField is one member of a Declaration.
type DeclaredField struct {
	Name      string
	TypeName  string
	Primitive Primitive
	IsStruct  bool
	Dims      []uint64
	Unbounded bool
}

// Declaration returns the neutral declaration of the struct alone.
func (s *Struct) Declaration() Declaration {
	return Declaration{
		Kind:   DeclarationStruct,
		Name:   s.name,
		Fields: declaredFields(s.fields),
	}
}

// Structs returns the struct itself and everything it depends on, each once, dependencies
// first.
func (s *Struct) Structs() []*Struct {
	return s.set.orderedStructs([]int{s.id})
}

// Declarations returns the declarations of Structs in order.
func (s *Struct) Declarations() []Declaration {
	structs := s.Structs()
	out := make([]Declaration, len(structs))
	for i, st := range structs {
		out[i] = st.Declaration()
	}
	return out
}

func declaredFields(fields []*Field) []DeclaredField {
	out := make([]DeclaredField, len(fields))
	for i, f := range fields {
		out[i] = DeclaredField{
			Name:      f.name,
			TypeName:  f.typ.Name(),
			Primitive: f.typ.prim,
			IsStruct:  f.typ.IsStruct(),
			Dims:      slices.Clone(f.dims),
			Unbounded: f.unbounded,
		}
	}
	return out
}
