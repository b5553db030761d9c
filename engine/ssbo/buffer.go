package ssbo

import (
	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
)

// Buffer is the top-level storage object. It lays out like a Struct and additionally exposes
// the allocation and declaration interfaces.
type Buffer struct {
	aggregate
	set     *BufferSet
	binding uint32
	roots   []int
}

// Binding returns the binding index of the buffer within its set.
func (b *Buffer) Binding() uint32 { return b.binding }

// Set returns the buffer set the buffer was built in.
func (b *Buffer) Set() *BufferSet { return b.set }

// Unbounded reports whether the last field is a runtime-sized array.
func (b *Buffer) Unbounded() bool {
	return len(b.fields) > 0 && b.fields[len(b.fields)-1].unbounded
}

// InitialBytes packs the initial host data for a new backing allocation.
//
// Parameters:
//   - v: the buffer value, one entry per field
//
// Returns:
//   - []byte: exactly Size() bytes
//   - error: a shape_mismatch error if v does not fit the layout
func (b *Buffer) InitialBytes(v Record) ([]byte, error) {
	return b.Encode(v)
}

// Structs returns every struct the buffer depends on, directly or transitively, each once and
// ordered so that dependencies come first.
func (b *Buffer) Structs() []*Struct {
	return b.set.orderedStructs(b.roots)
}

// Declarations returns the buffer's struct declarations in dependency order followed by the
// buffer declaration itself.
func (b *Buffer) Declarations() []Declaration {
	structs := b.Structs()
	out := make([]Declaration, 0, len(structs)+1)
	for _, s := range structs {
		out = append(out, s.Declaration())
	}
	return append(out, b.Declaration())
}

// Declaration returns the neutral declaration of the buffer alone.
func (b *Buffer) Declaration() Declaration {
	return Declaration{
		Kind:    DeclarationBuffer,
		Name:    b.name,
		Binding: b.binding,
		Fields:  declaredFields(b.fields),
	}
}

// BufferSet is the result of building a Schema: buffers sharing one declaration namespace.
type BufferSet struct {
	structs     []*Struct
	order       []int
	buffers     []*Buffer
	bufferIndex map[string]int
	structIndex map[string]int
}

// Buffers returns the buffers in binding order.
func (s *BufferSet) Buffers() []*Buffer {
	return append([]*Buffer(nil), s.buffers...)
}

// Buffer returns the named buffer.
//
// Parameters:
//   - name: the buffer name
//
// Returns:
//   - *Buffer: the buffer
//   - error: a not_found error if no buffer has that name
func (s *BufferSet) Buffer(name string) (*Buffer, error) {
	i, ok := s.bufferIndex[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseSchema, "buffer", name)
	}
	return s.buffers[i], nil
}

// Struct returns the named struct.
//
// Parameters:
//   - name: the struct name
//
// Returns:
//   - *Struct: the struct
//   - error: a not_found error if no struct has that name
func (s *BufferSet) Struct(name string) (*Struct, error) {
	id, ok := s.structIndex[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseSchema, "struct", name)
	}
	return s.structs[id], nil
}

// StructByID returns the struct with the given arena id, or nil.
func (s *BufferSet) StructByID(id int) *Struct {
	if id < 0 || id >= len(s.structs) {
		return nil
	}
	return s.structs[id]
}

// Structs returns the structs used by any buffer in the set, each once, dependencies first.
func (s *BufferSet) Structs() []*Struct {
	var roots []int
	for _, b := range s.buffers {
		roots = append(roots, b.roots...)
	}
	return s.orderedStructs(roots)
}

// Declarations returns all struct declarations in dependency order followed by every buffer
// declaration in binding order.
func (s *BufferSet) Declarations() []Declaration {
	structs := s.Structs()
	out := make([]Declaration, 0, len(structs)+len(s.buffers))
	for _, st := range structs {
		out = append(out, st.Declaration())
	}
	for _, b := range s.buffers {
		out = append(out, b.Declaration())
	}
	return out
}

// orderedStructs restricts the schema-wide wave order to the structs reachable from roots.
// The reachable set is closed under dependencies, so the restriction is itself a valid order.
func (s *BufferSet) orderedStructs(roots []int) []*Struct {
	keep := reachable(roots, func(id int) []int { return s.structs[id].deps })
	out := make([]*Struct, 0, len(keep))
	for _, id := range s.order {
		if keep[id] {
			out = append(out, s.structs[id])
		}
	}
	return out
}
