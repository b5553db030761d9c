package algo

import (
	"math"
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/spatial"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
)

var (
	boidTarget = spatial.Target{Array: "boids", Position: "pos", Hash: "hash"}
	boidTable  = spatial.Table{Array: "pivot", Start: "start", Len: "len"}
)

func boidBuffer(t *testing.T, n, cells uint64) *ssbo.Buffer {
	t.Helper()
	set, err := ssbo.NewSchema().
		Struct("Boid",
			ssbo.Prim("pos", ssbo.TypeVec3),
			ssbo.Prim("prev", ssbo.TypeVec3),
			ssbo.Prim("id", ssbo.TypeUint),
			ssbo.Prim("hash", ssbo.TypeUint)).
		Struct("Pivot", ssbo.Prim("start", ssbo.TypeUint), ssbo.Prim("len", ssbo.TypeUint)).
		Buffer("world", ssbo.Inst("boids", "Boid", n), ssbo.Inst("pivot", "Pivot", cells)).
		Build()
	require.NoError(t, err)
	buf, err := set.Buffer("world")
	require.NoError(t, err)
	return buf
}

func cubeGrid(t *testing.T) spatial.Grid {
	t.Helper()
	g, err := spatial.NewGrid([]float32{4, 4, 4}, []uint32{4, 4, 4})
	require.NoError(t, err)
	return g
}

// skipUnsupported skips a test when naga reports a feature it has not implemented yet.
func skipUnsupported(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		return
	}
	for _, known := range []string{"not yet implemented", "not supported", "lowering"} {
		if strings.Contains(err.Error(), known) {
			t.Skipf("Skipping: naga limitation: %v", err)
		}
	}
}

func TestWorkgroups(t *testing.T) {
	assert.Equal(t, uint32(0), Workgroups(0, 32))
	assert.Equal(t, uint32(1), Workgroups(1, 32))
	assert.Equal(t, uint32(1), Workgroups(32, 32))
	assert.Equal(t, uint32(2), Workgroups(33, 32))
	assert.Equal(t, uint32(32), Workgroups(1024, 32))
	assert.Equal(t, uint32(math.MaxUint32), Workgroups(1<<40, 1))
}

func TestWorkgroupLimit(t *testing.T) {
	const limit = MaxWorkgroups * WorkgroupSize
	buf := boidBuffer(t, limit, 64)
	stage, err := Copy(buf, FieldRef{"boids", "pos"}, FieldRef{"boids", "prev"})
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{MaxWorkgroups, 1, 1}, stage.Dispatches[0].Workgroups)

	buf = boidBuffer(t, limit+1, 64)
	_, err = Copy(buf, FieldRef{"boids", "pos"}, FieldRef{"boids", "prev"})
	assert.ErrorIs(t, err, errors.ErrConfiguration)

	source := `//@ssbo:group 0 0 storage_read_write world world

@compute @workgroup_size(1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
  world.boids[id.x].id = id.x;
}`
	_, err = Raw(buf.Set(), "wide", source, MaxWorkgroups+1)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	_, err = Raw(buf.Set(), "wide", source, MaxWorkgroups)
	assert.NoError(t, err)
}

func TestParamsEncode(t *testing.T) {
	b, err := SortParams{Span: 2, ReverseSpan: 4}.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 0, 0, 4, 0, 0, 0}, b)

	b, err = RNGParams{Seed: 0x01020304}.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 3, 2, 1}, b)
}

func TestRNGStage(t *testing.T) {
	buf := boidBuffer(t, 64, 64)
	stage, err := RNG(buf, RNGPCG, 9,
		RNGTarget{FieldRef: FieldRef{"boids", "pos"}, Min: -1, Max: 1},
		RNGTarget{FieldRef: FieldRef{"boids", "prev"}},
		RNGTarget{FieldRef: FieldRef{"boids", "id"}},
	)
	require.NoError(t, err)

	assert.Equal(t, "rng_pcg", stage.Name)
	assert.Equal(t, "main", stage.EntryPoint)
	assert.Equal(t, [3]uint32{WorkgroupSize, 1, 1}, stage.WorkgroupSize)
	require.Len(t, stage.Dispatches, 1)
	assert.Equal(t, [3]uint32{2, 1, 1}, stage.Dispatches[0].Workgroups)
	assert.Equal(t, []byte{9, 0, 0, 0}, stage.Dispatches[0].Params)
	assert.Equal(t, uint64(64), stage.Invocations())

	assert.Contains(t, stage.Source, "data.boids[i].pos = vec3<f32>(-1.0 + 2.0 * rng_float(), -1.0 + 2.0 * rng_float(), -1.0 + 2.0 * rng_float());")
	assert.Contains(t, stage.Source, "data.boids[i].prev = vec3<f32>(rng_float(), rng_float(), rng_float());")
	assert.Contains(t, stage.Source, "data.boids[i].id = rng_next();")
	assert.Contains(t, stage.Source, "fn pcg_hash(")
	assert.NotContains(t, stage.Source, "murmur_scramble")
	assert.Contains(t, stage.Source, "@group(1) @binding(0) var<uniform> params: RNGParamsBlock;")
	assert.Contains(t, stage.Source, "@group(0) @binding(0) var<storage, read_write> data: worldBlock;")

	data := stage.Shader.BindGroupLayoutDescriptor(DataGroup)
	require.Len(t, data.Entries, 1)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, data.Entries[0].Buffer.Type)
	assert.Equal(t, buf.Size(), data.Entries[0].Buffer.MinBindingSize)

	params := stage.Shader.BindGroupLayoutDescriptor(ParamsGroup)
	require.Len(t, params.Entries, 1)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, params.Entries[0].Buffer.Type)
	assert.Equal(t, uint64(4), params.Entries[0].Buffer.MinBindingSize)

	murmur, err := RNG(buf, RNGMurmur3, 9, RNGTarget{FieldRef: FieldRef{"boids", "id"}})
	require.NoError(t, err)
	assert.Contains(t, murmur.Source, "murmur_scramble")
	assert.NotContains(t, murmur.Source, "pcg_hash")
}

func TestRNGErrors(t *testing.T) {
	buf := boidBuffer(t, 64, 32)
	tests := []struct {
		name    string
		targets []RNGTarget
		want    error
	}{
		{"no targets", nil, errors.ErrConfiguration},
		{"unknown array", []RNGTarget{{FieldRef: FieldRef{"fish", "pos"}}}, errors.ErrNotFound},
		{"unknown field", []RNGTarget{{FieldRef: FieldRef{"boids", "vel"}}}, errors.ErrNotFound},
		{"range on uint", []RNGTarget{{FieldRef: FieldRef{"boids", "id"}, Max: 10}}, errors.ErrConfiguration},
		{"empty range", []RNGTarget{{FieldRef: FieldRef{"boids", "pos"}, Min: 1, Max: 1}}, errors.ErrConfiguration},
		{"different lengths", []RNGTarget{{FieldRef: FieldRef{"boids", "id"}}, {FieldRef: FieldRef{"pivot", "start"}}}, errors.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RNG(buf, RNGPCG, 0, tt.targets...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSpatialHashStage(t *testing.T) {
	buf := boidBuffer(t, 128, 64)
	stage, err := SpatialHash(buf, boidTarget, cubeGrid(t))
	require.NoError(t, err)

	assert.Equal(t, [3]uint32{4, 1, 1}, stage.Dispatches[0].Workgroups)
	assert.Nil(t, stage.Dispatches[0].Params)
	assert.Contains(t, stage.Source, "const resolution = vec3<u32>(4u, 4u, 4u);")
	assert.Contains(t, stage.Source, "const cellSize = vec3<f32>(1.0, 1.0, 1.0);")
	assert.Contains(t, stage.Source, "data.boids[i].hash = spatial_hash(data.boids[i].pos);")
	assert.Empty(t, stage.Shader.BindGroupLayoutDescriptor(ParamsGroup).Entries)
}

func TestSpatialHashStage2D(t *testing.T) {
	set, err := ssbo.NewSchema().
		Struct("Dot", ssbo.Prim("xy", ssbo.TypeVec2), ssbo.Prim("cell", ssbo.TypeUint)).
		Buffer("plane", ssbo.Inst("dots", "Dot", 64)).
		Build()
	require.NoError(t, err)
	buf, _ := set.Buffer("plane")
	grid, err := spatial.NewGrid([]float32{10, 5}, []uint32{4, 2})
	require.NoError(t, err)

	stage, err := SpatialHash(buf, spatial.Target{Array: "dots", Position: "xy", Hash: "cell"}, grid)
	require.NoError(t, err)
	assert.Contains(t, stage.Source, "const cellSize = vec3<f32>(2.5, 2.5, 1.0);")
	assert.Contains(t, stage.Source, "data.dots[i].cell = spatial_hash(vec3<f32>(data.dots[i].xy, 0.0));")

	_, err = SpatialHash(buf, spatial.Target{Array: "dots", Position: "xy", Hash: "cell"}, cubeGrid(t))
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestBitonicSortStage(t *testing.T) {
	buf := boidBuffer(t, 256, 64)
	stage, err := BitonicSort(buf, "boids", "hash")
	require.NoError(t, err)

	steps, err := spatial.BitonicSchedule(256)
	require.NoError(t, err)
	require.Len(t, stage.Dispatches, len(steps))
	for i, step := range steps {
		want, err := SortParams{Span: step.Span, ReverseSpan: step.ReverseSpan}.Encode()
		require.NoError(t, err)
		assert.Equal(t, want, stage.Dispatches[i].Params, "step %d", i)
		assert.Equal(t, [3]uint32{4, 1, 1}, stage.Dispatches[i].Workgroups, "step %d", i)
	}
	assert.Equal(t, uint64(len(steps)*128), stage.Invocations())
	assert.Contains(t, stage.Source, "if (i >= 128u) {")
	assert.Contains(t, stage.Source, "select(a.hash > b.hash, a.hash < b.hash, descending)")
	assert.Contains(t, stage.Source, "var<uniform> params: SortParamsBlock;")

	_, err = BitonicSort(boidBuffer(t, 32, 8), "boids", "hash")
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	_, err = BitonicSort(buf, "boids", "pos")
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	_, err = BitonicSort(buf, "boids", "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestPivotStages(t *testing.T) {
	buf := boidBuffer(t, 64, 64)
	grid := cubeGrid(t)

	start, err := PivotStart(buf, boidTarget, boidTable, grid)
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{2, 1, 1}, start.Dispatches[0].Workgroups)
	assert.Contains(t, start.Source, "first = data.boids[i - 1u].hash + 1u;")
	assert.Contains(t, start.Source, "for (var c = key + 1u; c < 64u; c++) {")

	length, err := PivotLength(buf, boidTarget, boidTable, grid)
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{2, 1, 1}, length.Dispatches[0].Workgroups)
	assert.Contains(t, length.Source, "end = data.pivot[c + 1u].start;")

	_, err = PivotStart(boidBuffer(t, 64, 8), boidTarget, boidTable, grid)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestSpatialPipeline(t *testing.T) {
	buf := boidBuffer(t, 64, 64)
	grid := cubeGrid(t)

	p, err := SpatialPipeline(buf, boidTarget, boidTable, grid, nil)
	require.NoError(t, err)
	names := make([]string, 0, p.Len())
	for _, s := range p.Stages() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"spatial_hash", "bitonic_sort", "pivot_start", "pivot_length"}, names)
	assert.Equal(t, 3+21, p.Dispatches())

	action := &PairwiseAction{
		Radius:       1.5,
		Declarations: "var<private> neighbors: u32;",
		Body:         "          neighbors++;",
		Post:         "  data.boids[i].id = neighbors;",
	}
	p, err = SpatialPipeline(buf, boidTarget, boidTable, grid, action)
	require.NoError(t, err)
	require.Equal(t, 5, p.Len())
	pairwise := p.Stages()[4]
	assert.Equal(t, "pairwise", pairwise.Name)
	assert.Contains(t, pairwise.Source, "const radius = 1.5;")
	assert.Contains(t, pairwise.Source, "neighbors++;")
	assert.Contains(t, pairwise.Source, "let run = data.pivot[scan];")

	_, err = SpatialPipeline(buf, boidTarget, boidTable, grid, &PairwiseAction{})
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	_, err = SpatialPipeline(buf, boidTarget, spatial.Table{Array: "boids", Start: "id", Len: "hash"}, grid, nil)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestCopyStage(t *testing.T) {
	buf := boidBuffer(t, 64, 64)
	stage, err := Copy(buf, FieldRef{"boids", "pos"}, FieldRef{"boids", "prev"})
	require.NoError(t, err)
	assert.Contains(t, stage.Source, "data.boids[i].prev = data.boids[i].pos;")
	assert.Equal(t, [3]uint32{2, 1, 1}, stage.Dispatches[0].Workgroups)

	_, err = Copy(buf, FieldRef{"boids", "pos"}, FieldRef{"boids", "id"})
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	_, err = Copy(buf, FieldRef{"boids", "id"}, FieldRef{"pivot", "start"})
	assert.NoError(t, err)
}

func TestRawStage(t *testing.T) {
	buf := boidBuffer(t, 64, 64)
	source := `//@ssbo:group 0 0 storage_read_write world world

@compute @workgroup_size(64)
fn reset(@builtin(global_invocation_id) id: vec3<u32>) {
  if (id.x < 64u) {
    world.boids[id.x].id = id.x;
  }
}`
	stage, err := Raw(buf.Set(), "reset", source, 100)
	require.NoError(t, err)
	assert.Equal(t, "reset", stage.EntryPoint)
	assert.Equal(t, [3]uint32{64, 1, 1}, stage.WorkgroupSize)
	assert.Equal(t, [3]uint32{2, 1, 1}, stage.Dispatches[0].Workgroups)
	assert.Contains(t, stage.Source, "struct worldBlock {")

	_, err = Raw(buf.Set(), "reset", source, 0)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	_, err = Raw(buf.Set(), "bad", "//@ssbo:include Fish\n"+source, 1)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestPipelineValidate(t *testing.T) {
	buf := boidBuffer(t, 64, 64)
	hash, err := SpatialHash(buf, boidTarget, cubeGrid(t))
	require.NoError(t, err)
	cp, err := Copy(buf, FieldRef{"boids", "pos"}, FieldRef{"boids", "prev"})
	require.NoError(t, err)

	err = NewPipeline(hash).Append(cp).Validate()
	skipUnsupported(t, err)
	assert.NoError(t, err)

	broken := Stage{Name: "broken", Source: "fn main( {"}
	err = NewPipeline(cp, broken).Validate()
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.PhasePipeline, e.Phase)
	assert.Equal(t, []string{"broken"}, e.Path)
}
