package profiler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAggregates(t *testing.T) {
	p := NewProfiler()
	p.Observe("sort", 2*time.Millisecond)
	p.Observe("sort", 4*time.Millisecond)
	p.Observe("hash", time.Millisecond)

	stats := p.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, StageStats{Label: "hash", Count: 1, Total: time.Millisecond, Max: time.Millisecond}, stats[0])
	assert.Equal(t, "sort", stats[1].Label)
	assert.Equal(t, 2, stats[1].Count)
	assert.Equal(t, 4*time.Millisecond, stats[1].Max)
	assert.Equal(t, 3*time.Millisecond, stats[1].Mean())
	assert.Zero(t, StageStats{}.Mean())
}

func TestObserveConcurrent(t *testing.T) {
	p := NewProfiler()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				p.Time("pairwise")()
			}
		}()
	}
	wg.Wait()

	stats := p.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, 800, stats[0].Count)
}

func TestTickResetsWindow(t *testing.T) {
	p := NewProfiler()
	p.SetInterval(time.Hour)
	p.Observe("hash", time.Millisecond)
	assert.False(t, p.Tick())
	assert.Len(t, p.Stats(), 1)

	p.SetInterval(0)
	assert.True(t, p.Tick())
	assert.Empty(t, p.Stats())
}
