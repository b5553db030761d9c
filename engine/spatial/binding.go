package spatial

import (
	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
)

// Binding is a Target and Table resolved against a buffer layout. CPU protocols and GPU
// kernel builders share it so both reject the same layouts.
type Binding struct {
	Records  *ssbo.Field
	Position *ssbo.Field
	Hash     *ssbo.Field
	Table    *ssbo.Field
	Start    *ssbo.Field
	Len      *ssbo.Field
}

// Count returns the number of records.
func (b Binding) Count() uint64 { return b.Records.Count() }

// Bind resolves target and table against buf for grid.
//
// Parameters:
//   - buf: the buffer holding both the record array and the pivot table
//   - target: the record array binding
//   - table: the pivot table binding
//   - grid: the grid the records are hashed into
//
// Returns:
//   - Binding: the resolved fields
//   - error: a configuration or not found error describing the first bad binding
func Bind(buf *ssbo.Buffer, target Target, table Table, grid Grid) (Binding, error) {
	b, err := BindTarget(buf, target, grid)
	if err != nil {
		return Binding{}, err
	}

	var pivot *ssbo.Struct
	if b.Table, pivot, err = RecordArray(buf, table.Array); err != nil {
		return Binding{}, err
	}
	if b.Table.Index() == b.Records.Index() {
		return Binding{}, errors.Configuration(errors.PhaseProtocol, "record array and pivot table are the same field %q", table.Array)
	}
	if b.Table.Count() < uint64(grid.NumCells()) {
		return Binding{}, errors.Configuration(errors.PhaseProtocol,
			"pivot table %q has %d entries but the grid has %d cells", table.Array, b.Table.Count(), grid.NumCells())
	}
	if b.Start, err = Member(pivot, table.Start, ssbo.TypeUint); err != nil {
		return Binding{}, err
	}
	if b.Len, err = Member(pivot, table.Len, ssbo.TypeUint); err != nil {
		return Binding{}, err
	}
	return b, nil
}

// BindTarget resolves only the record array side of a binding. The record count must be a
// valid sort count and the position type must match the grid's dimensions.
func BindTarget(buf *ssbo.Buffer, target Target, grid Grid) (Binding, error) {
	var b Binding
	records, record, err := RecordArray(buf, target.Array)
	if err != nil {
		return Binding{}, err
	}
	if err := ValidateSortCount(records.Count()); err != nil {
		return Binding{}, err
	}
	b.Records = records

	wantPosition := ssbo.TypeVec3
	if grid.Dims() == 2 {
		wantPosition = ssbo.TypeVec2
	}
	if b.Position, err = Member(record, target.Position, wantPosition); err != nil {
		return Binding{}, err
	}
	if b.Hash, err = Member(record, target.Hash, ssbo.TypeUint); err != nil {
		return Binding{}, err
	}
	return b, nil
}

// RecordArray looks up a one-dimensional array of structs in buf.
//
// Parameters:
//   - buf: the buffer
//   - name: the top-level field name
//
// Returns:
//   - *ssbo.Field: the array field
//   - *ssbo.Struct: the element struct
//   - error: a not found error if the field is missing, or a configuration error if it is not a
//     one-dimensional struct array
func RecordArray(buf *ssbo.Buffer, name string) (*ssbo.Field, *ssbo.Struct, error) {
	f, ok := buf.Lookup(name)
	if !ok {
		return nil, nil, errors.NotFound(errors.PhaseProtocol, "field", name)
	}
	if !f.Type().IsStruct() || len(f.Dims()) != 1 {
		return nil, nil, errors.Configuration(errors.PhaseProtocol,
			"field %q must be a one-dimensional array of structs", name)
	}
	return f, f.Type().Struct(), nil
}

// Member looks up a single, non-array primitive field of s with the wanted type.
func Member(s *ssbo.Struct, name string, want ssbo.Primitive) (*ssbo.Field, error) {
	f, ok := s.Lookup(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseProtocol, "field", s.Name()+"."+name)
	}
	if f.Type().IsStruct() || f.IsArray() || f.Type().Primitive() != want {
		return nil, errors.Configuration(errors.PhaseProtocol,
			"field %s.%s must be a single %s, got %s", s.Name(), name, want, f.Type().Name())
	}
	return f, nil
}
