package ssbo

import (
	"fmt"
	"strings"
)

// BlockTypeName returns the WGSL struct name that wraps a buffer's members. WGSL keeps types
// and variables in one namespace, so the binding is named after the buffer and the type gets a
// suffix.
func BlockTypeName(bufferName string) string {
	return bufferName + "Block"
}

// WGSLType renders the field's WGSL type, nesting arrays innermost first, e.g.
// "array<array<f32, 3>, 2>" for "float foo[2][3]". An unbounded field leaves its outermost
// array runtime-sized.
func (f DeclaredField) WGSLType() string {
	t := f.TypeName
	if !f.IsStruct {
		t = f.Primitive.WGSLName()
	}
	for i := len(f.Dims) - 1; i >= 0; i-- {
		if i == 0 && f.Unbounded {
			t = "array<" + t + ">"
			continue
		}
		t = fmt.Sprintf("array<%s, %d>", t, f.Dims[i])
	}
	return t
}

// WGSLStruct renders only the struct part of the declaration. A buffer renders as its block
// struct named by BlockTypeName.
func (d Declaration) WGSLStruct() string {
	var b strings.Builder
	name := d.Name
	if d.Kind == DeclarationBuffer {
		name = BlockTypeName(d.Name)
	}
	fmt.Fprintf(&b, "struct %s {\n", name)
	for _, f := range d.Fields {
		fmt.Fprintf(&b, "  %s: %s,\n", f.Name, f.WGSLType())
	}
	b.WriteString("}")
	return b.String()
}

// WGSL renders the declaration as WGSL. A buffer becomes a block struct followed by a
// read_write storage binding in the given group.
func (d Declaration) WGSL(group uint32) string {
	if d.Kind != DeclarationBuffer {
		return d.WGSLStruct()
	}
	return fmt.Sprintf("%s\n\n@group(%d) @binding(%d) var<storage, read_write> %s: %s;",
		d.WGSLStruct(), group, d.Binding, d.Name, BlockTypeName(d.Name))
}

// RenderWGSL renders an ordered declaration list, separating blocks with a blank line.
//
// Parameters:
//   - decls: declarations in dependency order, as returned by Declarations
//   - group: the bind group every buffer binding is placed in
//
// Returns:
//   - string: the WGSL source text
func RenderWGSL(decls []Declaration, group uint32) string {
	blocks := make([]string, len(decls))
	for i, d := range decls {
		blocks[i] = d.WGSL(group)
	}
	return strings.Join(blocks, "\n\n")
}
