package ssbo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGLSLStruct(t *testing.T) {
	set, err := NewSchema().
		Struct("MyStruct", Prim("foo", TypeVec3), Prim("bar", TypeFloat)).
		Struct("Holder", Inst("fnord", "MyStruct"), Inst("fnords", "MyStruct", 2), Prim("myFloat", TypeFloat, 1, 2, 3)).
		Build()
	require.NoError(t, err)

	my, _ := set.Struct("MyStruct")
	assert.Equal(t, "struct MyStruct {\n  vec3 foo;\n  float bar;\n};", my.Declaration().GLSL())

	holder, _ := set.Struct("Holder")
	fields := holder.Declaration().Fields
	assert.Equal(t, "MyStruct fnord;", fields[0].GLSL())
	assert.Equal(t, "MyStruct fnords[2];", fields[1].GLSL())
	assert.Equal(t, "float myFloat[1][2][3];", fields[2].GLSL())
}

const recursiveBufferGLSL = `struct MyBasicStruct {
  float foo;
};

struct LeftDiamond {
  MyBasicStruct foo;
};

struct RightDiamond {
  MyBasicStruct foo;
};

struct Capstone {
  LeftDiamond foo;
  RightDiamond bar;
};

layout(std430, binding = 0) buffer MyBuffer {
  Capstone cap;
};`

func TestGLSLBuffer(t *testing.T) {
	set, err := NewSchema().
		Struct("MyBasicStruct", Prim("foo", TypeFloat)).
		Struct("LeftDiamond", Inst("foo", "MyBasicStruct")).
		Struct("RightDiamond", Inst("foo", "MyBasicStruct")).
		Struct("Capstone", Inst("foo", "LeftDiamond"), Inst("bar", "RightDiamond")).
		Buffer("MyBuffer", Inst("cap", "Capstone")).
		Build()
	require.NoError(t, err)

	buf, _ := set.Buffer("MyBuffer")
	assert.Equal(t, recursiveBufferGLSL, RenderGLSL(buf.Declarations()))
	assert.Equal(t, recursiveBufferGLSL, RenderGLSL(set.Declarations()))
}

const doubleBufferGLSL = `struct BasicType {
  float foo;
};

layout(std430, binding = 0) buffer MyBufferA {
  BasicType foo;
};

layout(std430, binding = 1) buffer MyBufferB {
  BasicType foo;
};`

func TestGLSLBufferSet(t *testing.T) {
	set, err := NewSchema().
		Struct("BasicType", Prim("foo", TypeFloat)).
		Buffer("MyBufferA", Inst("foo", "BasicType")).
		Buffer("MyBufferB", Inst("foo", "BasicType")).
		Build()
	require.NoError(t, err)

	assert.Equal(t, doubleBufferGLSL, RenderGLSL(set.Declarations()))
}

func TestGLSLUnbounded(t *testing.T) {
	set, err := NewSchema().
		Struct("Boid", Prim("pos", TypeVec3)).
		Buffer("dataBuffer", Prim("count", TypeUint), Inst("boids", "Boid", 4096).AsUnbounded()).
		Build()
	require.NoError(t, err)
	buf, _ := set.Buffer("dataBuffer")

	assert.True(t, buf.Unbounded())
	assert.Equal(t, "layout(std430, binding = 0) buffer dataBuffer {\n  uint count;\n  Boid boids[];\n};", buf.Declaration().GLSL())
	assert.Equal(t, uint64(16+4096*16), buf.Size())
}

func TestWGSLDeclarations(t *testing.T) {
	set, err := NewSchema().
		Struct("Boid", Prim("pos", TypeVec3), Prim("hashIdx", TypeUint)).
		Buffer("dataBuffer", Prim("grid", TypeFloat, 2, 3), Inst("boids", "Boid", 8).AsUnbounded()).
		Build()
	require.NoError(t, err)

	want := `struct Boid {
  pos: vec3<f32>,
  hashIdx: u32,
}

struct dataBufferBlock {
  grid: array<array<f32, 3>, 2>,
  boids: array<Boid>,
}

@group(1) @binding(0) var<storage, read_write> dataBuffer: dataBufferBlock;`
	assert.Equal(t, want, RenderWGSL(set.Declarations(), 1))
}

func TestDeclarationKinds(t *testing.T) {
	set, err := NewSchema().
		Struct("A", Prim("f", TypeFloat)).
		Buffer("B", Inst("a", "A", 3)).
		Build()
	require.NoError(t, err)

	decls := set.Declarations()
	require.Len(t, decls, 2)
	assert.Equal(t, DeclarationStruct, decls[0].Kind)
	assert.Equal(t, "struct", decls[0].Kind.String())
	assert.Equal(t, DeclarationBuffer, decls[1].Kind)
	assert.Equal(t, DeclaredField{Name: "a", TypeName: "A", IsStruct: true, Dims: []uint64{3}}, decls[1].Fields[0])
}
