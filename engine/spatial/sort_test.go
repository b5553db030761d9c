package spatial

import (
	"context"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSortCount(t *testing.T) {
	for _, n := range []uint64{64, 128, 1 << 20} {
		assert.NoError(t, ValidateSortCount(n), n)
	}
	for _, n := range []uint64{0, 1, 32, 63, 100, 65} {
		assert.ErrorIs(t, ValidateSortCount(n), errors.ErrConfiguration, n)
	}
}

func TestBitonicSchedule(t *testing.T) {
	steps, err := BitonicSchedule(64)
	require.NoError(t, err)
	require.Len(t, steps, 21)
	assert.Equal(t, []SortStep{{1, 1}, {2, 1}, {1, 2}, {4, 1}, {2, 2}, {1, 4}}, steps[:6])
	assert.Equal(t, SortStep{Span: 32, ReverseSpan: 1}, steps[15])
	assert.Equal(t, SortStep{Span: 1, ReverseSpan: 32}, steps[20])

	_, err = BitonicSchedule(48)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestBitonicNetworkSorts(t *testing.T) {
	r := rand.New(rand.NewPCG(9, 9))
	for _, n := range []int{64, 128, 512} {
		keys := make([]sortKey, n)
		for i := range keys {
			keys[i] = sortKey{hash: r.Uint32N(16), index: uint32(i)}
		}
		want := slices.Clone(keys)
		slices.SortStableFunc(want, func(a, b sortKey) int { return int(a.hash) - int(b.hash) })

		steps, err := BitonicSchedule(uint64(n))
		require.NoError(t, err)
		for _, step := range steps {
			require.NoError(t, Sequential{}.Dispatch(context.Background(), "sort", n/2, compareSwapKernel(step, keys, lessKey)))
		}
		assert.Equal(t, want, keys, "n=%d", n)
	}
}

func TestSequentialHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Sequential{}.Dispatch(ctx, "noop", 10, func(int) { calls++ })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)

	require.NoError(t, Sequential{}.Dispatch(context.Background(), "noop", 10, func(int) { calls++ }))
	assert.Equal(t, 10, calls)
}
