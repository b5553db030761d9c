package ssbo

import (
	"fmt"
	"strings"
)

// GLSL renders the field as a GLSL member declaration, e.g. "vec3 foo[2];". An unbounded field
// renders its outermost dimension as "[]".
func (f DeclaredField) GLSL() string {
	var dims strings.Builder
	for i, d := range f.Dims {
		if i == 0 && f.Unbounded {
			dims.WriteString("[]")
			continue
		}
		fmt.Fprintf(&dims, "[%d]", d)
	}
	typeName := f.TypeName
	if !f.IsStruct {
		typeName = f.Primitive.GLSLName()
	}
	return typeName + " " + f.Name + dims.String() + ";"
}

// GLSL renders the declaration as a GLSL struct or std430 buffer block.
func (d Declaration) GLSL() string {
	var b strings.Builder
	if d.Kind == DeclarationBuffer {
		fmt.Fprintf(&b, "layout(std430, binding = %d) buffer %s {\n", d.Binding, d.Name)
	} else {
		fmt.Fprintf(&b, "struct %s {\n", d.Name)
	}
	for _, f := range d.Fields {
		b.WriteString("  ")
		b.WriteString(f.GLSL())
		b.WriteByte('\n')
	}
	b.WriteString("};")
	return b.String()
}

// RenderGLSL renders an ordered declaration list, separating blocks with a blank line.
//
// Parameters:
//   - decls: declarations in dependency order, as returned by Declarations
//
// Returns:
//   - string: the GLSL source text
func RenderGLSL(decls []Declaration) string {
	blocks := make([]string, len(decls))
	for i, d := range decls {
		blocks[i] = d.GLSL()
	}
	return strings.Join(blocks, "\n\n")
}
