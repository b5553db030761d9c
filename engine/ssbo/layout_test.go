package ssbo

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildStruct builds a schema holding a single struct named S.
func buildStruct(t *testing.T, fields ...FieldDecl) *Struct {
	t.Helper()
	set, err := NewSchema().Struct("S", fields...).Build()
	require.NoError(t, err)
	s, err := set.Struct("S")
	require.NoError(t, err)
	return s
}

// buildInstance builds struct `name` and a holder struct with one instance field "fnord" of it,
// and returns that field.
func buildInstance(t *testing.T, name string, fields []FieldDecl, dims ...uint64) (*Struct, *Field) {
	t.Helper()
	set, err := NewSchema().
		Struct(name, fields...).
		Struct("Holder", Inst("fnord", name, dims...)).
		Build()
	require.NoError(t, err)
	holder, err := set.Struct("Holder")
	require.NoError(t, err)
	f, ok := holder.Lookup("fnord")
	require.True(t, ok)
	return f.Type().Struct(), f
}

func TestPrimitiveLayout(t *testing.T) {
	tests := []struct {
		p     Primitive
		size  uint64
		align uint64
		glsl  string
		wgsl  string
	}{
		{TypeUint, 4, 4, "uint", "u32"},
		{TypeFloat, 4, 4, "float", "f32"},
		{TypeVec2, 8, 8, "vec2", "vec2<f32>"},
		{TypeVec3, 12, 16, "vec3", "vec3<f32>"},
		{TypeVec4, 16, 16, "vec4", "vec4<f32>"},
	}
	for _, tt := range tests {
		t.Run(tt.glsl, func(t *testing.T) {
			assert.Equal(t, tt.size, tt.p.Size())
			assert.Equal(t, tt.align, tt.p.Alignment())
			assert.Equal(t, tt.glsl, tt.p.GLSLName())
			assert.Equal(t, tt.wgsl, tt.p.WGSLName())
			assert.GreaterOrEqual(t, tt.p.Alignment(), uint64(4))
		})
	}
}

func TestParsePrimitive(t *testing.T) {
	for name, want := range map[string]Primitive{
		"uint": TypeUint, "u32": TypeUint, "float": TypeFloat,
		"vec3": TypeVec3, "vec3f": TypeVec3, "vec3< f32 >": TypeVec3, "vec4<f32>": TypeVec4,
	} {
		got, err := ParsePrimitive(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParsePrimitive("mat4")
	assert.Error(t, err)
}

func TestPrimitiveArraySizeLaw(t *testing.T) {
	for _, p := range []Primitive{TypeUint, TypeFloat, TypeVec2, TypeVec3, TypeVec4} {
		for n := uint64(1); n <= 9; n++ {
			s := buildStruct(t, Prim("v", p, n))
			f, _ := s.Lookup("v")
			stride := f.Stride()
			assert.Equal(t, stride*(n-1)+p.Size(), f.Size(), "%s[%d]", p, n)
			assert.Equal(t, p.Size(), f.ElementSize())
		}
	}
}

func TestFieldSizes(t *testing.T) {
	tests := []struct {
		name   string
		decl   FieldDecl
		size   uint64
		stride uint64
	}{
		{"vec3 pair", Prim("v", TypeVec3, 2), 28, 16},
		{"vec3 cube", Prim("v", TypeVec3, 2, 2, 2), 124, 64},
		{"float cube", Prim("v", TypeFloat, 2, 2, 2), 32, 16},
		{"vec2 triple", Prim("v", TypeVec2, 3), 24, 8},
		{"single vec3", Prim("v", TypeVec3), 12, 0},
		{"float 200", Prim("v", TypeFloat, 200), 800, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := buildStruct(t, tt.decl).Lookup("v")
			assert.Equal(t, tt.size, f.Size())
			assert.Equal(t, tt.stride, f.Stride())
		})
	}
}

func TestStructInstanceSizes(t *testing.T) {
	_, f := buildInstance(t, "MyStruct", []FieldDecl{
		Prim("foo", TypeVec3), Prim("bar", TypeVec3), Prim("baz", TypeFloat),
	})
	assert.Equal(t, uint64(8*4), f.Size())

	st, f := buildInstance(t, "MyStruct", []FieldDecl{
		Prim("foo", TypeVec3, 2), Prim("baz", TypeFloat),
	})
	assert.Equal(t, uint64(9*4), f.Size())
	assert.Equal(t, uint64(36), st.ElementSize())
	assert.Equal(t, uint64(48), st.Size())
	baz, err := st.Field("baz")
	require.NoError(t, err)
	assert.Equal(t, uint64(32), baz.Offset)

	st, f = buildInstance(t, "MyStruct", []FieldDecl{
		Prim("foo", TypeFloat), Prim("bar", TypeVec3),
	}, 2)
	assert.Equal(t, uint64((4+4+4+3)*4), f.Size())
	assert.Equal(t, uint64(28), st.ElementSize())
	assert.Equal(t, uint64(32), st.Stride())
}

func TestVec3FollowedByScalar(t *testing.T) {
	s := buildStruct(t, Prim("foo", TypeVec3), Prim("bar", TypeFloat))

	bar, err := s.Field("bar")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), bar.Offset)
	assert.Equal(t, uint64(16), s.ElementSize())
	assert.Equal(t, uint64(16), s.Size())
}

func TestTrailingRequirement(t *testing.T) {
	t.Run("scalar array keeps scalar alignment", func(t *testing.T) {
		s := buildStruct(t, Prim("a", TypeFloat, 3), Prim("b", TypeFloat))
		b, _ := s.Field("b")
		assert.Equal(t, uint64(12), b.Offset)
	})

	t.Run("struct instance forces its alignment on the next field", func(t *testing.T) {
		set, err := NewSchema().
			Struct("Inner", Prim("v", TypeVec3)).
			Struct("Outer", Inst("s", "Inner"), Prim("b", TypeFloat)).
			Build()
		require.NoError(t, err)
		outer, _ := set.Struct("Outer")
		b, _ := outer.Field("b")
		assert.Equal(t, uint64(16), b.Offset)
		assert.Equal(t, uint64(20), outer.ElementSize())
		assert.Equal(t, uint64(32), outer.Size())
	})

	t.Run("scalar resets trailing", func(t *testing.T) {
		s := buildStruct(t, Prim("a", TypeVec3, 2), Prim("b", TypeFloat), Prim("c", TypeFloat))
		b, _ := s.Field("b")
		c, _ := s.Field("c")
		assert.Equal(t, uint64(32), b.Offset)
		assert.Equal(t, uint64(36), c.Offset)
	})
}

func TestStructAlignmentLaw(t *testing.T) {
	tests := []struct {
		name   string
		fields []FieldDecl
		want   uint64
	}{
		{"scalars only", []FieldDecl{Prim("a", TypeFloat), Prim("b", TypeUint)}, 4},
		{"with vec2", []FieldDecl{Prim("a", TypeFloat), Prim("b", TypeVec2)}, 8},
		{"with vec3", []FieldDecl{Prim("a", TypeUint), Prim("b", TypeVec3)}, 16},
		{"float array", []FieldDecl{Prim("a", TypeFloat, 7)}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := buildStruct(t, tt.fields...)
			var want uint64
			for _, f := range s.Fields() {
				want = max(want, f.Alignment())
			}
			assert.Equal(t, want, s.Alignment())
			assert.Equal(t, tt.want, s.Alignment())
		})
	}
}

func TestBufferSize(t *testing.T) {
	set, err := NewSchema().Buffer("MyBuffer", Prim("foo", TypeFloat, 200)).Build()
	require.NoError(t, err)
	buf, err := set.Buffer("MyBuffer")
	require.NoError(t, err)
	assert.Equal(t, uint64(800), buf.Size())
}

func TestFieldLookup(t *testing.T) {
	set, err := NewSchema().
		Struct("Boid", Prim("pos", TypeVec3), Prim("dir", TypeVec3), Prim("hashIdx", TypeUint)).
		Struct("Pivot", Prim("start", TypeUint), Prim("len", TypeUint)).
		Buffer("dataBuffer", Inst("boids", "Boid", 64), Inst("pivot", "Pivot", 16)).
		Build()
	require.NoError(t, err)
	buf, _ := set.Buffer("dataBuffer")

	boids, err := buf.Field("boids")
	require.NoError(t, err)
	assert.Equal(t, "Boid", boids.TypeName)
	assert.Equal(t, []uint64{64}, boids.Dims)
	assert.Equal(t, uint64(0), boids.Offset)
	assert.Equal(t, uint64(32), boids.Stride)
	assert.Equal(t, uint64(32*64), boids.Size)

	pivot, err := buf.Field("pivot")
	require.NoError(t, err)
	assert.Equal(t, uint64(32*64), pivot.Offset)
	assert.Equal(t, uint64(8*16), pivot.Size)
	assert.Equal(t, pivot.Offset+pivot.Size, buf.Size())

	_, err = buf.Field("missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestElementOffset(t *testing.T) {
	f, _ := buildStruct(t, Prim("v", TypeVec3, 2, 3)).Lookup("v")

	at, err := f.ElementOffset(1, 2)
	require.NoError(t, err)
	assert.Equal(t, f.Stride()+2*16, at)

	_, err = f.ElementOffset(2, 0)
	assert.Error(t, err)
	_, err = f.ElementOffset(1)
	assert.Error(t, err)
}
