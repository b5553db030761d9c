package config

import (
	"github.com/Carmen-Shannon/oxy-ssbo/engine/algo"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/dispatch"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/spatial"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
)

// TargetDoc names the record array that is hashed and sorted.
type TargetDoc struct {
	Array    string `toml:"array" yaml:"array"`
	Position string `toml:"position" yaml:"position"`
	Hash     string `toml:"hash" yaml:"hash"`
}

// TableDoc names the pivot table.
type TableDoc struct {
	Array string `toml:"array" yaml:"array"`
	Start string `toml:"start" yaml:"start"`
	Len   string `toml:"len" yaml:"len"`
}

// RandomDoc fills one record field with random values. Min and Max bound float fields when
// Max is greater than Min.
type RandomDoc struct {
	Array string  `toml:"array" yaml:"array"`
	Field string  `toml:"field" yaml:"field"`
	Min   float32 `toml:"min,omitempty" yaml:"min,omitempty"`
	Max   float32 `toml:"max,omitempty" yaml:"max,omitempty"`
}

// Simulation configures a spatial hash over one buffer of the document.
type Simulation struct {
	Buffer     string      `toml:"buffer" yaml:"buffer"`
	Volume     []float32   `toml:"volume" yaml:"volume"`
	Resolution []uint32    `toml:"resolution" yaml:"resolution"`
	Radius     float32     `toml:"radius" yaml:"radius"`
	Seed       uint32      `toml:"seed" yaml:"seed"`
	RNG        string      `toml:"rng,omitempty" yaml:"rng,omitempty"`
	Workers    int         `toml:"workers,omitempty" yaml:"workers,omitempty"`
	Chunk      int         `toml:"chunk,omitempty" yaml:"chunk,omitempty"`
	Target     TargetDoc   `toml:"target" yaml:"target"`
	Table      TableDoc    `toml:"table" yaml:"table"`
	Random     []RandomDoc `toml:"random,omitempty" yaml:"random,omitempty"`
}

// SpatialTarget returns the target in protocol form.
func (s *Simulation) SpatialTarget() spatial.Target {
	return spatial.Target{Array: s.Target.Array, Position: s.Target.Position, Hash: s.Target.Hash}
}

// SpatialTable returns the pivot table in protocol form.
func (s *Simulation) SpatialTable() spatial.Table {
	return spatial.Table{Array: s.Table.Array, Start: s.Table.Start, Len: s.Table.Len}
}

// Grid builds the grid from volume and resolution.
func (s *Simulation) Grid() (spatial.Grid, error) {
	return spatial.NewGrid(s.Volume, s.Resolution)
}

// Method returns the configured RNG method, murmur3 when unset.
func (s *Simulation) Method() (algo.RNGMethod, error) {
	return algo.ParseRNGMethod(s.RNG)
}

// Bind checks the simulation against a built set and returns the buffer it runs over.
//
// Parameters:
//   - set: the built buffer set
//
// Returns:
//   - *ssbo.Buffer: the simulated buffer
//   - error: a configuration error if the buffer, grid, bindings or settings are invalid
func (s *Simulation) Bind(set *ssbo.BufferSet) (*ssbo.Buffer, error) {
	buf, err := set.Buffer(s.Buffer)
	if err != nil {
		return nil, err
	}
	grid, err := s.Grid()
	if err != nil {
		return nil, err
	}
	if _, err := spatial.Bind(buf, s.SpatialTarget(), s.SpatialTable(), grid); err != nil {
		return nil, err
	}
	if s.Radius < 0 {
		return nil, errors.Configuration(errors.PhaseConfig, "simulation radius must not be negative, got %v", s.Radius)
	}
	if s.Workers < 0 || s.Chunk < 0 {
		return nil, errors.Configuration(errors.PhaseConfig, "simulation workers and chunk must not be negative")
	}
	if _, err := s.Method(); err != nil {
		return nil, err
	}
	return buf, nil
}

// Pool builds the CPU executor for the protocol. Zero workers or chunk keep the pool defaults.
func (s *Simulation) Pool() *dispatch.Pool {
	var options []dispatch.PoolBuilderOption
	if s.Workers > 0 {
		options = append(options, dispatch.WithWorkers(s.Workers))
	}
	if s.Chunk > 0 {
		options = append(options, dispatch.WithMinChunk(s.Chunk))
	}
	return dispatch.NewPool(options...)
}

// Protocol builds a CPU protocol over the simulated buffer.
//
// Parameters:
//   - set: the built buffer set
//   - initial: the starting buffer value, zero when nil
//   - exec: the executor phases run on
//
// Returns:
//   - *spatial.Protocol: the protocol, in the Unhashed state
//   - error: a binding or configuration error
func (s *Simulation) Protocol(set *ssbo.BufferSet, initial ssbo.Record, exec spatial.Executor) (*spatial.Protocol, error) {
	buf, err := s.Bind(set)
	if err != nil {
		return nil, err
	}
	grid, _ := s.Grid()
	options := []spatial.ProtocolBuilderOption{spatial.WithExecutor(exec)}
	if initial != nil {
		options = append(options, spatial.WithInitialValue(initial))
	}
	return spatial.NewProtocol(buf, s.SpatialTarget(), s.SpatialTable(), grid, options...)
}

// Pipeline builds the GPU stages of the simulation: an RNG stage when random fields are
// configured, then hash, sort and pivot build, then the neighbor action if one is given.
//
// Parameters:
//   - set: the built buffer set
//   - action: an optional neighbor action using the configured radius when its own is zero
//
// Returns:
//   - *algo.Pipeline: the stages in execution order
//   - error: the first binding or stage builder error
func (s *Simulation) Pipeline(set *ssbo.BufferSet, action *algo.PairwiseAction) (*algo.Pipeline, error) {
	buf, err := s.Bind(set)
	if err != nil {
		return nil, err
	}
	grid, _ := s.Grid()

	if action != nil && action.Radius == 0 {
		a := *action
		a.Radius = s.Radius
		action = &a
	}
	spatialStages, err := algo.SpatialPipeline(buf, s.SpatialTarget(), s.SpatialTable(), grid, action)
	if err != nil {
		return nil, err
	}
	if len(s.Random) == 0 {
		return spatialStages, nil
	}

	method, _ := s.Method()
	targets := make([]algo.RNGTarget, len(s.Random))
	for i, r := range s.Random {
		targets[i] = algo.RNGTarget{FieldRef: algo.FieldRef{Array: r.Array, Field: r.Field}, Min: r.Min, Max: r.Max}
	}
	rng, err := algo.RNG(buf, method, s.Seed, targets...)
	if err != nil {
		return nil, err
	}
	return algo.NewPipeline(rng).Append(spatialStages.Stages()...), nil
}
