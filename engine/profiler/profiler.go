package profiler

import (
	"runtime"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/logger"
)

// StageStats aggregates the timings observed for one dispatch label since the last report.
type StageStats struct {
	Label string
	Count int
	Total time.Duration
	Max   time.Duration
}

// Mean returns the average duration, or zero if nothing was observed.
func (s StageStats) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Profiler tracks per-stage dispatch durations and memory statistics.
// Outputs a report to the logger at a configurable interval.
type Profiler struct {
	mu             sync.Mutex
	log            *zap.Logger
	stages         map[string]*StageStats
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		log:            logger.Named("profiler"),
		stages:         make(map[string]*StageStats),
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// SetInterval changes how often Tick reports. Zero reports on every tick.
func (p *Profiler) SetInterval(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateInterval = d
}

// Observe records one run of a stage. Safe for concurrent use.
//
// Parameters:
//   - label: the stage name
//   - d: how long the run took
func (p *Profiler) Observe(label string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stages[label]
	if !ok {
		s = &StageStats{Label: label}
		p.stages[label] = s
	}
	s.Count++
	s.Total += d
	s.Max = max(s.Max, d)
}

// Time starts timing a stage and returns the function that stops it.
//
// Parameters:
//   - label: the stage name
//
// Returns:
//   - func(): call when the stage finishes
func (p *Profiler) Time(label string) func() {
	start := time.Now()
	return func() { p.Observe(label, time.Since(start)) }
}

// Stats returns a snapshot of every stage observed since the last report, sorted by label.
func (p *Profiler) Stats() []StageStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

func (p *Profiler) snapshot() []StageStats {
	stats := make([]StageStats, 0, len(p.stages))
	for _, s := range p.stages {
		stats = append(stats, *s)
	}
	slices.SortFunc(stats, func(a, b StageStats) int {
		switch {
		case a.Label < b.Label:
			return -1
		case a.Label > b.Label:
			return 1
		}
		return 0
	})
	return stats
}

// Tick logs the stage report and memory statistics when the update interval has elapsed,
// then starts a new aggregation window.
// Memory statistics include: heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	for _, s := range p.snapshot() {
		p.log.Info("stage",
			zap.String("label", s.Label),
			zap.Int("runs", s.Count),
			zap.Duration("total", s.Total),
			zap.Duration("mean", s.Mean()),
			zap.Duration("max", s.Max),
		)
	}

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	seconds := max(elapsed.Seconds(), 1e-9)
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / seconds

	// PauseNs is a circular buffer of the last 256 GC pauses
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.log.Info("memory",
		zap.Float64("heap_mb", allocMB),
		zap.Float64("alloc_rate_mb_s", allocRateMB),
		zap.Uint32("gc", gcCount),
		zap.Uint64("gc_last_us", lastPauseUs),
		zap.Uint64("gc_max_us", maxPauseUs),
		zap.Float64("sys_mb", sysMB),
	)

	clear(p.stages)
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
