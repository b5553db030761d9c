package config

import (
	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
)

// fieldDecl converts a field document. A type that does not parse as a primitive is taken to
// be a struct name and is resolved by ssbo.Schema.Build.
func (f FieldDoc) fieldDecl() ssbo.FieldDecl {
	var decl ssbo.FieldDecl
	if p, err := ssbo.ParsePrimitive(f.Type); err == nil {
		decl = ssbo.Prim(f.Name, p, f.Dims...)
	} else {
		decl = ssbo.Inst(f.Name, f.Type, f.Dims...)
	}
	if f.Unbounded {
		decl = decl.AsUnbounded()
	}
	return decl
}

func fieldDecls(fields []FieldDoc) []ssbo.FieldDecl {
	decls := make([]ssbo.FieldDecl, len(fields))
	for i, f := range fields {
		decls[i] = f.fieldDecl()
	}
	return decls
}

// Schema declares every struct and buffer of the document, in document order.
func (d *Document) Schema() *ssbo.Schema {
	schema := ssbo.NewSchema()
	for _, s := range d.Structs {
		schema.Struct(s.Name, fieldDecls(s.Fields)...)
	}
	for _, b := range d.Buffers {
		schema.Buffer(b.Name, fieldDecls(b.Fields)...)
	}
	return schema
}

// Build builds the document's schema and validates the simulation section against it.
//
// Returns:
//   - *ssbo.BufferSet: the laid-out buffers
//   - error: any schema error, or a config error from the simulation section
func (d *Document) Build() (*ssbo.BufferSet, error) {
	set, err := d.Schema().Build()
	if err != nil {
		return nil, err
	}
	if d.Simulation != nil {
		if _, err := d.Simulation.Bind(set); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// InitialValue builds the starting value of a buffer from its initial section.
//
// Parameters:
//   - set: the built buffer set
//   - name: the buffer name
//
// Returns:
//   - ssbo.Record: the value, zero wherever the document gives none
//   - error: a not_found error for unknown buffers or fields, or a conversion error
func (d *Document) InitialValue(set *ssbo.BufferSet, name string) (ssbo.Record, error) {
	buf, err := set.Buffer(name)
	if err != nil {
		return nil, err
	}
	for _, b := range d.Buffers {
		if b.Name == name {
			return RecordValue(buf.Fields(), b.Initial, []string{name})
		}
	}
	return nil, errors.NotFound(errors.PhaseConfig, "buffer document", name)
}
