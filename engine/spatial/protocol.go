package spatial

import (
	"context"
	"slices"
	"strconv"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
)

// State is the phase a Protocol has completed.
type State int

const (
	StateUnhashed State = iota
	StateHashed
	StateSorted
	StatePivotBuilt
	StateQueryable
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateUnhashed:
		return "unhashed"
	case StateHashed:
		return "hashed"
	case StateSorted:
		return "sorted"
	case StatePivotBuilt:
		return "pivot_built"
	case StateQueryable:
		return "queryable"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Target names the record array a protocol hashes and sorts: a one-dimensional
// struct-instance field of the buffer, the vec2 or vec3 position field inside that struct,
// and the uint field that receives the cell index.
type Target struct {
	Array    string
	Position string
	Hash     string
}

// Table names the pivot table: a one-dimensional struct-instance field of the buffer with at
// least one element per grid cell, and the uint start and length fields inside that struct.
type Table struct {
	Array string
	Start string
	Len   string
}

// Protocol runs the spatial-hash pivot protocol over a host copy of a buffer value. Phases
// must run in order: Hash, Sort, PivotStart, PivotLength. Query is only valid once all four
// have completed.
type Protocol struct {
	buf  *ssbo.Buffer
	grid Grid
	exec Executor

	records  int
	table    int
	position int
	hash     int
	start    int
	length   int
	n        int

	value     ssbo.Record
	positions [][3]float32
	hashes    []uint32
	starts    []uint32
	lens      []uint32
	state     State
	initial   ssbo.Record
}

// NewProtocol binds a protocol to a buffer layout and grid and validates the bindings.
//
// Parameters:
//   - buf: the buffer holding both the record array and the pivot table
//   - target: the record array binding
//   - table: the pivot table binding
//   - grid: the grid the records are hashed into
//   - options: functional options
//
// Returns:
//   - *Protocol: the protocol, in StateUnhashed holding the buffer's zero value
//   - error: a configuration or not found error describing the first bad binding
func NewProtocol(buf *ssbo.Buffer, target Target, table Table, grid Grid, options ...ProtocolBuilderOption) (*Protocol, error) {
	p := &Protocol{buf: buf, grid: grid, exec: Sequential{}}
	for _, opt := range options {
		opt(p)
	}

	b, err := Bind(buf, target, table, grid)
	if err != nil {
		return nil, err
	}
	p.records = b.Records.Index()
	p.n = int(b.Count())
	p.position = b.Position.Index()
	p.hash = b.Hash.Index()
	p.table = b.Table.Index()
	p.start = b.Start.Index()
	p.length = b.Len.Index()

	p.positions = make([][3]float32, p.n)
	p.hashes = make([]uint32, p.n)
	p.starts = make([]uint32, grid.NumCells())
	p.lens = make([]uint32, grid.NumCells())

	value := p.initial
	if value == nil {
		value = buf.Zero()
	}
	if err := p.Load(value); err != nil {
		return nil, err
	}
	return p, nil
}

// Len returns the number of records.
func (p *Protocol) Len() int { return p.n }

// Grid returns the grid records are hashed into.
func (p *Protocol) Grid() Grid { return p.grid }

// State returns the last completed phase.
func (p *Protocol) State() State { return p.state }

// Load replaces the host buffer value and returns to StateUnhashed. The value is shape checked
// against the buffer layout.
//
// Parameters:
//   - value: the buffer value in field order
//
// Returns:
//   - error: a shape mismatch error if value does not fit the layout
func (p *Protocol) Load(value ssbo.Record) error {
	if _, err := p.buf.Encode(value); err != nil {
		return err
	}
	p.value = value
	p.state = StateUnhashed
	return nil
}

// LoadBytes decodes a buffer image, for example a GPU readback, and loads it.
//
// Parameters:
//   - data: at least Size bytes of the buffer image
//
// Returns:
//   - error: a truncated buffer error if data is too short
func (p *Protocol) LoadBytes(data []byte) error {
	value, err := p.buf.Decode(data)
	if err != nil {
		return err
	}
	return p.Load(value)
}

// Value returns the host buffer value. It is shared with the protocol, so callers must not
// modify it while a phase runs.
func (p *Protocol) Value() ssbo.Record { return p.value }

// Bytes encodes the host buffer value to its std430 image.
func (p *Protocol) Bytes() ([]byte, error) {
	return p.buf.Encode(p.value)
}

// Reset returns the protocol to StateUnhashed without touching the buffer value.
func (p *Protocol) Reset() {
	p.state = StateUnhashed
}

func (p *Protocol) expect(phase string, want State) error {
	if p.state != want {
		return errors.New(errors.PhaseProtocol, errors.KindConfiguration).
			Path(phase).
			Value(p.state.String()).
			Detail("%s requires state %s, protocol is %s", phase, want, p.state).
			Build()
	}
	return nil
}

func (p *Protocol) recordArray() ssbo.Array {
	return p.value[p.records].(ssbo.Array)
}

func (p *Protocol) tableArray() ssbo.Array {
	return p.value[p.table].(ssbo.Array)
}

// Hash writes the cell index of every record into its hash field.
//
// Parameters:
//   - ctx: cancels the dispatch
//
// Returns:
//   - error: a configuration error if called out of order, or an out of volume error
//     naming the first record whose position is outside the grid
func (p *Protocol) Hash(ctx context.Context) error {
	if err := p.expect("hash", StateUnhashed); err != nil {
		return err
	}
	records := p.recordArray()
	for i := range p.n {
		p.positions[i] = positionOf(records[i].(ssbo.Record)[p.position])
	}

	errs := make([]error, p.n)
	if err := p.exec.Dispatch(ctx, "hash", p.n, hashKernel(p.grid, p.positions, p.hashes, errs)); err != nil {
		return err
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	for i := range p.n {
		records[i].(ssbo.Record)[p.hash] = ssbo.Uint(p.hashes[i])
	}
	p.state = StateHashed
	return nil
}

func positionOf(v ssbo.Value) [3]float32 {
	switch pos := v.(type) {
	case ssbo.Vec2:
		return [3]float32{pos[0], pos[1], 0}
	case ssbo.Vec3:
		return [3]float32(pos)
	}
	return [3]float32{}
}

type sortKey struct {
	hash  uint32
	index uint32
}

func lessKey(a, b sortKey) bool {
	if a.hash != b.hash {
		return a.hash < b.hash
	}
	return a.index < b.index
}

// Sort reorders the records by hash with the bitonic network. Records sharing a hash keep
// their relative order.
//
// Parameters:
//   - ctx: cancels the dispatch between passes
//
// Returns:
//   - error: a configuration error if called out of order
func (p *Protocol) Sort(ctx context.Context) error {
	if err := p.expect("sort", StateHashed); err != nil {
		return err
	}
	steps, err := BitonicSchedule(uint64(p.n))
	if err != nil {
		return err
	}

	keys := make([]sortKey, p.n)
	for i, h := range p.hashes {
		keys[i] = sortKey{hash: h, index: uint32(i)}
	}
	for _, step := range steps {
		if err := p.exec.Dispatch(ctx, "sort", p.n/2, compareSwapKernel(step, keys, lessKey)); err != nil {
			return err
		}
	}

	records := p.recordArray()
	sorted := make(ssbo.Array, p.n)
	positions := slices.Clone(p.positions)
	for i, k := range keys {
		sorted[i] = records[k.index]
		p.hashes[i] = k.hash
		p.positions[i] = positions[k.index]
	}
	copy(records, sorted)
	p.state = StateSorted
	return nil
}

// PivotStart fills the start field of every pivot table entry.
//
// Parameters:
//   - ctx: cancels the dispatch
//
// Returns:
//   - error: a configuration error if called out of order
func (p *Protocol) PivotStart(ctx context.Context) error {
	if err := p.expect("pivot_start", StateSorted); err != nil {
		return err
	}
	if err := p.exec.Dispatch(ctx, "pivot_start", p.n, pivotStartKernel(p.hashes, p.starts)); err != nil {
		return err
	}
	table := p.tableArray()
	for c, s := range p.starts {
		table[c].(ssbo.Record)[p.start] = ssbo.Uint(s)
	}
	p.state = StatePivotBuilt
	return nil
}

// PivotLength fills the length field of every pivot table entry, after which the protocol
// is queryable.
//
// Parameters:
//   - ctx: cancels the dispatch
//
// Returns:
//   - error: a configuration error if called out of order
func (p *Protocol) PivotLength(ctx context.Context) error {
	if err := p.expect("pivot_length", StatePivotBuilt); err != nil {
		return err
	}
	if err := p.exec.Dispatch(ctx, "pivot_length", len(p.starts), pivotLengthKernel(uint32(p.n), p.starts, p.lens)); err != nil {
		return err
	}
	table := p.tableArray()
	for c, l := range p.lens {
		table[c].(ssbo.Record)[p.length] = ssbo.Uint(l)
	}
	p.state = StateQueryable
	return nil
}

// Run resets the protocol and runs all four phases.
//
// Parameters:
//   - ctx: cancels the dispatches
//
// Returns:
//   - error: the first phase error
func (p *Protocol) Run(ctx context.Context) error {
	p.Reset()
	for _, phase := range []func(context.Context) error{p.Hash, p.Sort, p.PivotStart, p.PivotLength} {
		if err := phase(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Hashes returns a copy of the record hashes, in sorted order once Sort has run.
func (p *Protocol) Hashes() []uint32 {
	return slices.Clone(p.hashes)
}

// Pivots returns the pivot table once the protocol is queryable.
//
// Returns:
//   - []Pivot: one entry per grid cell
//   - error: a configuration error if the pivot table is not built
func (p *Protocol) Pivots() ([]Pivot, error) {
	if err := p.expect("pivots", StateQueryable); err != nil {
		return nil, err
	}
	pivots := make([]Pivot, len(p.starts))
	for c := range pivots {
		pivots[c] = Pivot{Start: p.starts[c], Len: p.lens[c]}
	}
	return pivots, nil
}
