package spatial

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	boidTarget = Target{Array: "boids", Position: "pos", Hash: "hash"}
	pivotTable = Table{Array: "pivots", Start: "start", Len: "len"}
)

// boidBuffer builds a buffer of n boids {vec3 pos; uint id; uint hash} followed by a pivot
// table with the given number of entries.
func boidBuffer(t *testing.T, n, cells uint64) *ssbo.Buffer {
	t.Helper()
	set, err := ssbo.NewSchema().
		Struct("Boid", ssbo.Prim("pos", ssbo.TypeVec3), ssbo.Prim("id", ssbo.TypeUint), ssbo.Prim("hash", ssbo.TypeUint)).
		Struct("Pivot", ssbo.Prim("start", ssbo.TypeUint), ssbo.Prim("len", ssbo.TypeUint)).
		Buffer("data", ssbo.Inst("boids", "Boid", n), ssbo.Inst("pivots", "Pivot", cells)).
		Build()
	require.NoError(t, err)
	buf, err := set.Buffer("data")
	require.NoError(t, err)
	return buf
}

// boidValue builds a buffer value with one boid per position, ids in input order.
func boidValue(buf *ssbo.Buffer, positions [][3]float32) ssbo.Record {
	value := buf.Zero()
	boids := value[0].(ssbo.Array)
	for i, pos := range positions {
		boids[i] = ssbo.Record{ssbo.Vec3(pos), ssbo.Uint(i), ssbo.Uint(0)}
	}
	return value
}

func randomPositions(r *rand.Rand, n int, extent float32) [][3]float32 {
	positions := make([][3]float32, n)
	for i := range positions {
		positions[i] = [3]float32{r.Float32() * extent, r.Float32() * extent, r.Float32() * extent}
	}
	return positions
}

func newBoidProtocol(t *testing.T, n int, extent float32, res uint32, positions [][3]float32, options ...ProtocolBuilderOption) *Protocol {
	t.Helper()
	grid, err := NewGrid([]float32{extent, extent, extent}, []uint32{res, res, res})
	require.NoError(t, err)
	buf := boidBuffer(t, uint64(n), uint64(grid.NumCells()))
	options = append(options, WithInitialValue(boidValue(buf, positions)))
	p, err := NewProtocol(buf, boidTarget, pivotTable, grid, options...)
	require.NoError(t, err)
	return p
}

func TestProtocolRun(t *testing.T) {
	r := rand.New(rand.NewPCG(21, 4))
	positions := randomPositions(r, 64, 2)
	p := newBoidProtocol(t, 64, 2, 2, positions)
	assert.Equal(t, StateUnhashed, p.State())

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, StateQueryable, p.State())

	hashes := p.Hashes()
	assert.True(t, slices.IsSorted(hashes))

	boids := p.Value()[0].(ssbo.Array)
	prevID := -1
	for i, b := range boids {
		rec := b.(ssbo.Record)
		id := int(rec[1].(ssbo.Uint))
		want, ok := p.Grid().CellIndex(positions[id])
		require.True(t, ok)
		assert.Equal(t, ssbo.Uint(want), rec[2], "boid %d", id)
		assert.Equal(t, want, hashes[i])
		assert.Equal(t, positions[id], p.Position(i))

		if i > 0 && hashes[i] == hashes[i-1] {
			assert.Greater(t, id, prevID, "equal hashes keep input order")
		}
		prevID = id
	}

	pivots, err := p.Pivots()
	require.NoError(t, err)
	want, err := BuildPivotTable(hashes, p.Grid().NumCells())
	require.NoError(t, err)
	assert.Equal(t, want, pivots)

	table := p.Value()[1].(ssbo.Array)
	for c, pv := range pivots {
		assert.Equal(t, ssbo.Record{ssbo.Uint(pv.Start), ssbo.Uint(pv.Len)}, table[c])
	}

	data, err := p.Bytes()
	require.NoError(t, err)
	assert.Len(t, data, int(p.buf.Size()))
}

func TestProtocolQueryMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewPCG(8, 13))
	positions := randomPositions(r, 128, 8)
	p := newBoidProtocol(t, 128, 8, 8, positions)
	require.NoError(t, p.Run(context.Background()))

	const radius = 1.2
	grid := p.Grid()
	reach := grid.Reach(radius)
	for i := range p.Len() {
		var got []int
		require.NoError(t, p.Query(i, radius, func(j int) { got = append(got, j) }))
		slices.Sort(got)

		ci, _ := grid.CellCoord(p.Position(i))
		var want []int
		for j := range p.Len() {
			if j == i {
				continue
			}
			cj, _ := grid.CellCoord(p.Position(j))
			if abs(ci[0]-cj[0]) <= reach[0] && abs(ci[1]-cj[1]) <= reach[1] && abs(ci[2]-cj[2]) <= reach[2] {
				want = append(want, j)
			}
			if dist2(p.Position(i), p.Position(j)) <= radius*radius {
				assert.Contains(t, got, j, "neighbor within radius missed")
			}
		}
		assert.Equal(t, want, got, "record %d", i)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func dist2(a, b [3]float32) float32 {
	var d float32
	for k := range a {
		d += (a[k] - b[k]) * (a[k] - b[k])
	}
	return d
}

func TestProtocolQueryAll(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 1))
	p := newBoidProtocol(t, 64, 4, 4, randomPositions(r, 64, 4))
	require.NoError(t, p.Run(context.Background()))

	var mu sync.Mutex
	pairs := make(map[[2]int]bool)
	require.NoError(t, p.QueryAll(context.Background(), 1, func(i, j int) {
		mu.Lock()
		pairs[[2]int{i, j}] = true
		mu.Unlock()
	}))

	for pair := range pairs {
		assert.NotEqual(t, pair[0], pair[1])
		assert.True(t, pairs[[2]int{pair[1], pair[0]}], "neighbor relation is symmetric")
	}
}

func TestProtocolQueryRejectsBadRadius(t *testing.T) {
	r := rand.New(rand.NewPCG(4, 4))
	p := newBoidProtocol(t, 16, 4, 4, randomPositions(r, 16, 4))
	require.NoError(t, p.Run(context.Background()))

	for _, radius := range []float32{-1, math32.NaN()} {
		called := false
		err := p.Query(0, radius, func(int) { called = true })
		assert.ErrorIs(t, err, errors.ErrConfiguration, "radius %v", radius)
		err = p.QueryAll(context.Background(), radius, func(int, int) { called = true })
		assert.ErrorIs(t, err, errors.ErrConfiguration, "radius %v", radius)
		assert.False(t, called)
	}

	assert.NoError(t, p.Query(0, 0, func(int) {}))
	assert.NoError(t, p.QueryAll(context.Background(), math32.Inf(1), func(int, int) {}))
}

func TestProtocolStateOrder(t *testing.T) {
	ctx := context.Background()
	r := rand.New(rand.NewPCG(2, 2))
	p := newBoidProtocol(t, 64, 4, 4, randomPositions(r, 64, 4))

	assert.ErrorIs(t, p.Sort(ctx), errors.ErrConfiguration)
	assert.ErrorIs(t, p.PivotStart(ctx), errors.ErrConfiguration)
	assert.ErrorIs(t, p.PivotLength(ctx), errors.ErrConfiguration)
	assert.ErrorIs(t, p.Query(0, 1, func(int) {}), errors.ErrConfiguration)
	_, err := p.Pivots()
	assert.ErrorIs(t, err, errors.ErrConfiguration)

	require.NoError(t, p.Hash(ctx))
	assert.Equal(t, StateHashed, p.State())
	assert.ErrorIs(t, p.Hash(ctx), errors.ErrConfiguration)
	assert.ErrorIs(t, p.PivotStart(ctx), errors.ErrConfiguration)

	require.NoError(t, p.Sort(ctx))
	require.NoError(t, p.PivotStart(ctx))
	assert.Equal(t, StatePivotBuilt, p.State())
	assert.ErrorIs(t, p.Query(0, 1, func(int) {}), errors.ErrConfiguration)
	require.NoError(t, p.PivotLength(ctx))

	assert.ErrorIs(t, p.Query(-1, 1, func(int) {}), errors.ErrInvalidInput)
	assert.ErrorIs(t, p.Query(64, 1, func(int) {}), errors.ErrInvalidInput)

	p.Reset()
	assert.Equal(t, StateUnhashed, p.State())
	assert.Equal(t, "unhashed", p.State().String())
	require.NoError(t, p.Hash(ctx))
}

func TestProtocolOutOfVolume(t *testing.T) {
	for name, bad := range map[string][3]float32{
		"at upper bound": {4, 1, 1},
		"negative":       {1, -0.5, 1},
		"nan":            {1, 1, math32.NaN()},
	} {
		t.Run(name, func(t *testing.T) {
			positions := randomPositions(rand.New(rand.NewPCG(5, 5)), 64, 4)
			positions[17] = bad
			p := newBoidProtocol(t, 64, 4, 4, positions)

			err := p.Run(context.Background())
			require.ErrorIs(t, err, errors.ErrOutOfVolume)
			var e *errors.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, []string{"records", "17"}, e.Path)
			assert.Equal(t, StateUnhashed, p.State())
		})
	}
}

func TestNewProtocolConfigurationErrors(t *testing.T) {
	grid3, err := NewGrid([]float32{4, 4, 4}, []uint32{4, 4, 4})
	require.NoError(t, err)
	grid2, err := NewGrid([]float32{4, 4}, []uint32{4, 4})
	require.NoError(t, err)

	tests := []struct {
		name   string
		buf    *ssbo.Buffer
		target Target
		table  Table
		grid   Grid
		want   error
	}{
		{"count not power of two", boidBuffer(t, 96, 64), boidTarget, pivotTable, grid3, errors.ErrConfiguration},
		{"count too small", boidBuffer(t, 32, 64), boidTarget, pivotTable, grid3, errors.ErrConfiguration},
		{"table too short", boidBuffer(t, 64, 63), boidTarget, pivotTable, grid3, errors.ErrConfiguration},
		{"position dims disagree", boidBuffer(t, 64, 64), boidTarget, pivotTable, grid2, errors.ErrConfiguration},
		{"hash not uint", boidBuffer(t, 64, 64), Target{Array: "boids", Position: "pos", Hash: "pos"}, pivotTable, grid3, errors.ErrConfiguration},
		{"table is target", boidBuffer(t, 64, 64), boidTarget, Table{Array: "boids", Start: "id", Len: "hash"}, grid3, errors.ErrConfiguration},
		{"missing array", boidBuffer(t, 64, 64), Target{Array: "nope", Position: "pos", Hash: "hash"}, pivotTable, grid3, errors.ErrNotFound},
		{"missing start", boidBuffer(t, 64, 64), boidTarget, Table{Array: "pivots", Start: "first", Len: "len"}, grid3, errors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProtocol(tt.buf, tt.target, tt.table, tt.grid)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProtocolLoadRejectsWrongShape(t *testing.T) {
	p := newBoidProtocol(t, 64, 4, 4, randomPositions(rand.New(rand.NewPCG(6, 6)), 64, 4))
	assert.ErrorIs(t, p.Load(ssbo.Record{ssbo.Float(1)}), errors.ErrShapeMismatch)

	assert.ErrorIs(t, p.LoadBytes(make([]byte, 8)), errors.ErrTruncatedBuffer)

	data, err := p.Bytes()
	require.NoError(t, err)
	require.NoError(t, p.LoadBytes(data))
	assert.Equal(t, StateUnhashed, p.State())
}
