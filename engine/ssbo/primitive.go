package ssbo

import (
	"strings"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
)

// Primitive identifies one of the scalar or vector types a field can hold.
type Primitive int

const (
	// TypeUint is a 32-bit unsigned integer.
	TypeUint Primitive = iota + 1

	// TypeFloat is a 32-bit IEEE-754 float.
	TypeFloat

	// TypeVec2 is two packed float32 components.
	TypeVec2

	// TypeVec3 is three float32 components. It aligns like a vec4.
	TypeVec3

	// TypeVec4 is four float32 components.
	TypeVec4
)

// primitiveLayout holds the byte size, alignment and shader spellings of a primitive
type primitiveLayout struct {
	size       uint64
	align      uint64
	components int
	glsl       string
	wgsl       string
}

// primitiveLayoutMap maps each primitive to its std430 size and alignment.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var primitiveLayoutMap = map[Primitive]primitiveLayout{
	TypeUint:  {4, 4, 1, "uint", "u32"},
	TypeFloat: {4, 4, 1, "float", "f32"},
	TypeVec2:  {8, 8, 2, "vec2", "vec2<f32>"},
	TypeVec3:  {12, 16, 3, "vec3", "vec3<f32>"},
	TypeVec4:  {16, 16, 4, "vec4", "vec4<f32>"},
}

// primitiveAliases maps every accepted spelling, GLSL or WGSL, to its primitive.
var primitiveAliases = map[string]Primitive{
	"uint":      TypeUint,
	"u32":       TypeUint,
	"float":     TypeFloat,
	"f32":       TypeFloat,
	"vec2":      TypeVec2,
	"vec2f":     TypeVec2,
	"vec2<f32>": TypeVec2,
	"vec3":      TypeVec3,
	"vec3f":     TypeVec3,
	"vec3<f32>": TypeVec3,
	"vec4":      TypeVec4,
	"vec4f":     TypeVec4,
	"vec4<f32>": TypeVec4,
}

// ParsePrimitive resolves a GLSL or WGSL type spelling to a Primitive.
//
// Parameters:
//   - name: the type name, e.g. "vec3", "f32" or "vec2<f32>"
//
// Returns:
//   - Primitive: the matching primitive
//   - error: a not_found error if the name is not a supported primitive
func ParsePrimitive(name string) (Primitive, error) {
	p, ok := primitiveAliases[strings.ReplaceAll(strings.TrimSpace(name), " ", "")]
	if !ok {
		return 0, errors.NotFound(errors.PhaseSchema, "primitive type", name)
	}
	return p, nil
}

// Valid reports whether p is one of the declared primitives.
func (p Primitive) Valid() bool {
	_, ok := primitiveLayoutMap[p]
	return ok
}

// Size returns the byte size of one unpadded value.
func (p Primitive) Size() uint64 {
	return primitiveLayoutMap[p].size
}

// Alignment returns the byte alignment a value must start on.
func (p Primitive) Alignment() uint64 {
	return primitiveLayoutMap[p].align
}

// Components returns the number of 32-bit components in the value.
func (p Primitive) Components() int {
	return primitiveLayoutMap[p].components
}

// GLSLName returns the GLSL spelling of the type.
func (p Primitive) GLSLName() string {
	return primitiveLayoutMap[p].glsl
}

// WGSLName returns the WGSL spelling of the type.
func (p Primitive) WGSLName() string {
	return primitiveLayoutMap[p].wgsl
}

// IsFloat reports whether the components are float32.
func (p Primitive) IsFloat() bool {
	return p != TypeUint && p.Valid()
}

// String returns the GLSL name, which is also the neutral type name used in declarations.
func (p Primitive) String() string {
	if !p.Valid() {
		return "invalid"
	}
	return p.GLSLName()
}
