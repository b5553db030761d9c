package ssbo

// Value is a host-side value that the codec can pack into, or unpack from, a buffer image.
// The concrete types are Uint, Float, Vec2, Vec3, Vec4, Array and Record.
type Value interface {
	valueKind() string
}

// Uint is the host value of a uint field.
type Uint uint32

// Float is the host value of a float field.
type Float float32

// Vec2 is the host value of a vec2 field.
type Vec2 [2]float32

// Vec3 is the host value of a vec3 field.
type Vec3 [3]float32

// Vec4 is the host value of a vec4 field.
type Vec4 [4]float32

// Array holds the elements of one array dimension, outermost dimension first. A field declared
// `foo[2][3]` takes an Array of two Arrays of three elements.
type Array []Value

// Record holds the values of a struct or buffer in field declaration order.
type Record []Value

func (Uint) valueKind() string   { return "uint" }
func (Float) valueKind() string  { return "float" }
func (Vec2) valueKind() string   { return "vec2" }
func (Vec3) valueKind() string   { return "vec3" }
func (Vec4) valueKind() string   { return "vec4" }
func (Array) valueKind() string  { return "array" }
func (Record) valueKind() string { return "record" }

var (
	_ Value = Uint(0)
	_ Value = Float(0)
	_ Value = Vec2{}
	_ Value = Vec3{}
	_ Value = Vec4{}
	_ Value = Array{}
	_ Value = Record{}
)

// Floats builds a one-dimensional Array of Float values.
func Floats(values ...float32) Array {
	out := make(Array, len(values))
	for i, v := range values {
		out[i] = Float(v)
	}
	return out
}

// Uints builds a one-dimensional Array of Uint values.
func Uints(values ...uint32) Array {
	out := make(Array, len(values))
	for i, v := range values {
		out[i] = Uint(v)
	}
	return out
}

// components returns the float components of a float-typed primitive value.
func components(v Value) ([]float32, bool) {
	switch t := v.(type) {
	case Float:
		return []float32{float32(t)}, true
	case Vec2:
		return t[:], true
	case Vec3:
		return t[:], true
	case Vec4:
		return t[:], true
	}
	return nil, false
}

// primitiveValue builds the host value of p from its float components.
func primitiveValue(p Primitive, c []float32) Value {
	switch p {
	case TypeFloat:
		return Float(c[0])
	case TypeVec2:
		return Vec2{c[0], c[1]}
	case TypeVec3:
		return Vec3{c[0], c[1], c[2]}
	case TypeVec4:
		return Vec4{c[0], c[1], c[2], c[3]}
	}
	return nil
}

// kindOf names the host value kind for error messages.
func kindOf(v Value) string {
	if v == nil {
		return "nil"
	}
	return v.valueKind()
}
