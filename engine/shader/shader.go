package shader

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
)

// shader is the implementation of the Shader interface.
// It holds the pre-processed source and the reflection data needed for pipeline creation.
type shader struct {
	key                        string
	source                     string
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	typeLayouts                map[string]TypeLayout
	workGroupSize              [3]uint32
	entryPoint                 string
	module                     *wgpu.ShaderModuleDescriptor

	set *ssbo.BufferSet
	pp  PreProcessor
}

// Shader is a pre-processed WGSL compute kernel together with the reflection data a
// pipeline needs: entry point, workgroup size, bind group layouts and the byte layout of every
// struct it declares.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// BindGroupLayoutDescriptor retrieves the bind group layout descriptor for a group index.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the descriptor, or an empty descriptor if not declared
	BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor

	// BindGroupLayoutDescriptors retrieves all parsed bind group layout descriptors keyed by
	// group index.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName retrieves the variable name for a given group and binding index.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name, or an empty string if not found
	BindGroupVarName(group, binding int) string

	// BindGroupFromVarName retrieves the binding index for a given group and variable name.
	//
	// Parameters:
	//   - group: the bind group index
	//   - varName: the variable name within the group
	//
	// Returns:
	//   - int: the binding index, or -1 if not found
	//   - bool: true if the variable name was found
	BindGroupFromVarName(group int, varName string) (int, bool)

	// BindGroupVarNames retrieves all variable names keyed by group and binding index.
	//
	// Returns:
	//   - map[int]map[int]string: variable names keyed by group and binding index
	BindGroupVarNames() map[int]map[int]string

	// TypeLayout returns the WGSL size and alignment of a type declared in or built into the
	// source, e.g. "Boid", "dataBlock" or "array<Boid, 64>".
	//
	// Parameters:
	//   - typeName: the WGSL type name
	//
	// Returns:
	//   - TypeLayout: the size and alignment
	//   - bool: false if the type is unknown
	TypeLayout(typeName string) (TypeLayout, bool)

	// EntryPoint returns the compute entry point name.
	//
	// Returns:
	//   - string: the entry point name (e.g. "main")
	EntryPoint() string

	// WorkgroupSize returns the workgroup size dimensions, [1, 1, 1] when @workgroup_size is
	// not specified.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Module returns the wgpu.ShaderModuleDescriptor built from the pre-processed source.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the shader module descriptor containing the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor

	// Declarations returns the @ssbo:group annotations found in the source, which name the
	// buffer bound at each group and binding.
	//
	// Returns:
	//   - []Annotation: the binding annotations in source order
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader pre-processes and reflects a WGSL compute kernel.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - source: the WGSL source, possibly containing @ssbo: annotations
//   - options: functional options
//
// Returns:
//   - Shader: the reflected shader
//   - error: a pre-processing error, or a configuration error if the source has no
//     @compute entry point
func NewShader(key, source string, options ...ShaderBuilderOption) (Shader, error) {
	s := &shader{key: key}
	for _, option := range options {
		option(s)
	}
	s.pp = NewPreProcessor(s.set)

	processed, err := s.pp.Process(source)
	if err != nil {
		return nil, err
	}
	s.source = processed
	s.entryPoint = parseEntryPoint(s.source)
	if s.entryPoint == "" {
		return nil, errors.Configuration(errors.PhaseShader, "shader %q has no @compute entry point", key)
	}
	s.workGroupSize = parseWorkgroupSize(s.source)
	s.typeLayouts = computeStructSizes(parseStructBlocks(stripComments(s.source)))
	s.bindGroupLayoutDescriptors, s.bindingVarNames = groupBindings(parseBindings(s.source, s.typeLayouts))
	s.module = &wgpu.ShaderModuleDescriptor{
		Label: s.key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.source,
		},
	}
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors[group]
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	if s.bindingVarNames[group] == nil {
		return ""
	}
	return s.bindingVarNames[group][binding]
}

func (s *shader) BindGroupFromVarName(group int, varName string) (int, bool) {
	for binding, name := range s.bindingVarNames[group] {
		if name == varName {
			return binding, true
		}
	}
	return -1, false
}

func (s *shader) BindGroupVarNames() map[int]map[int]string {
	return s.bindingVarNames
}

func (s *shader) TypeLayout(typeName string) (TypeLayout, bool) {
	return resolveTypeLayout(typeName, s.typeLayouts)
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) Declarations() []Annotation {
	return s.pp.Declarations()
}
