package shader

import "github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"

// ShaderBuilderOption is a functional option for configuring a Shader.
// Use the With* functions to create options.
type ShaderBuilderOption func(s *shader)

// WithBufferSet resolves @ssbo: annotations against the given buffer set.
//
// Parameters:
//   - set: the buffer set providing struct and buffer declarations
//
// Returns:
//   - ShaderBuilderOption: option function to apply
func WithBufferSet(set *ssbo.BufferSet) ShaderBuilderOption {
	return func(s *shader) {
		s.set = set
	}
}
