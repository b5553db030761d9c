package ssbo

import (
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
)

// declaration is a struct or buffer waiting for Build.
type declaration struct {
	name   string
	fields []FieldDecl
}

// Schema collects struct and buffer declarations. Fields reference structs by name, so
// declarations may appear in any order; Build resolves them, rejects cycles and computes every
// layout once.
type Schema struct {
	structs []declaration
	buffers []declaration
}

// NewSchema creates an empty schema.
//
// Returns:
//   - *Schema: a schema ready for declarations
func NewSchema() *Schema {
	return &Schema{}
}

// Struct declares a struct type. Arena ids follow declaration order.
//
// Parameters:
//   - name: the struct name, unique across structs and buffers
//   - fields: the ordered field declarations
//
// Returns:
//   - *Schema: the schema, for chaining
func (s *Schema) Struct(name string, fields ...FieldDecl) *Schema {
	s.structs = append(s.structs, declaration{name: name, fields: slices.Clone(fields)})
	return s
}

// Buffer declares a top-level storage buffer. Binding indices follow declaration order.
//
// Parameters:
//   - name: the buffer name, unique across structs and buffers
//   - fields: the ordered field declarations; only the last may be unbounded
//
// Returns:
//   - *Schema: the schema, for chaining
func (s *Schema) Buffer(name string, fields ...FieldDecl) *Schema {
	s.buffers = append(s.buffers, declaration{name: name, fields: slices.Clone(fields)})
	return s
}

// Build resolves every declaration and computes all layouts.
//
// Returns:
//   - *BufferSet: the immutable set of built structs and buffers
//   - error: duplicate_name, not_found, invalid_input, configuration or cyclic_dependency
func (s *Schema) Build() (*BufferSet, error) {
	structIDs, err := s.validate()
	if err != nil {
		return nil, err
	}

	deps := make([][]int, len(s.structs))
	for id, d := range s.structs {
		for _, f := range d.fields {
			if f.Struct == "" {
				continue
			}
			dep, ok := structIDs[f.Struct]
			if !ok {
				return nil, errors.New(errors.PhaseSchema, errors.KindNotFound).
					Path(d.name, f.Name).
					Detail("struct %q not declared", f.Struct).
					Build()
			}
			if !slices.Contains(deps[id], dep) {
				deps[id] = append(deps[id], dep)
			}
		}
		slices.Sort(deps[id])
	}

	order, stuck := kahnWaves(len(s.structs), func(id int) []int { return deps[id] })
	if len(stuck) > 0 {
		names := make([]string, len(stuck))
		for i, id := range stuck {
			names[i] = s.structs[id].name
		}
		return nil, errors.New(errors.PhaseSchema, errors.KindCyclicDependency).
			Path(names...).
			Detail("structs %s depend on each other", strings.Join(names, ", ")).
			Build()
	}

	set := &BufferSet{
		structs:     make([]*Struct, len(s.structs)),
		order:       order,
		bufferIndex: make(map[string]int, len(s.buffers)),
		structIndex: structIDs,
	}
	resolve := func(d FieldDecl) (FieldType, error) {
		if d.Struct == "" {
			return PrimitiveType(d.Primitive), nil
		}
		id, ok := structIDs[d.Struct]
		if !ok {
			return FieldType{}, errors.NotFound(errors.PhaseSchema, "struct", d.Struct)
		}
		return StructType(set.structs[id]), nil
	}

	for _, id := range order {
		d := s.structs[id]
		agg, err := buildAggregate(d.name, d.fields, resolve)
		if err != nil {
			return nil, err
		}
		set.structs[id] = &Struct{aggregate: agg, id: id, deps: deps[id], set: set}
	}

	for i, d := range s.buffers {
		agg, err := buildAggregate(d.name, d.fields, resolve)
		if err != nil {
			return nil, err
		}
		b := &Buffer{aggregate: agg, set: set, binding: uint32(i)}
		for _, f := range agg.fields {
			if f.typ.IsStruct() && !slices.Contains(b.roots, f.typ.st.id) {
				b.roots = append(b.roots, f.typ.st.id)
			}
		}
		set.buffers = append(set.buffers, b)
		set.bufferIndex[d.name] = i
	}

	return set, nil
}

// validate checks names, field declarations and unbounded placement, and returns the struct
// name to arena id map.
func (s *Schema) validate() (map[string]int, error) {
	if len(s.buffers) == 0 && len(s.structs) == 0 {
		return nil, errors.New(errors.PhaseSchema, errors.KindInvalidInput).Detail("schema declares nothing").Build()
	}

	seen := make(map[string]bool, len(s.structs)+len(s.buffers))
	structIDs := make(map[string]int, len(s.structs))

	check := func(d declaration, isBuffer bool) error {
		if !identifierRegex.MatchString(d.name) {
			return errors.New(errors.PhaseSchema, errors.KindInvalidInput).
				Path(d.name).
				Detail("invalid name %q", d.name).
				Build()
		}
		if seen[d.name] {
			return errors.New(errors.PhaseSchema, errors.KindDuplicateName).
				Path(d.name).
				Detail("%q declared more than once", d.name).
				Build()
		}
		seen[d.name] = true
		if len(d.fields) == 0 {
			return errors.New(errors.PhaseSchema, errors.KindInvalidInput).
				Path(d.name).
				Detail("%q has no fields", d.name).
				Build()
		}

		fieldNames := make(map[string]bool, len(d.fields))
		for i, f := range d.fields {
			if err := validateDecl(d.name, f); err != nil {
				return err
			}
			if fieldNames[f.Name] {
				return errors.New(errors.PhaseSchema, errors.KindDuplicateName).
					Path(d.name, f.Name).
					Detail("field %q declared more than once", f.Name).
					Build()
			}
			fieldNames[f.Name] = true
			if f.Unbounded && (!isBuffer || i != len(d.fields)-1) {
				return errors.Configuration(errors.PhaseSchema,
					"%s.%s: only the last field of a buffer may be unbounded", d.name, f.Name)
			}
		}
		return nil
	}

	for id, d := range s.structs {
		if err := check(d, false); err != nil {
			return nil, err
		}
		structIDs[d.name] = id
	}
	for _, d := range s.buffers {
		if err := check(d, true); err != nil {
			return nil, err
		}
	}
	return structIDs, nil
}
