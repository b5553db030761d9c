package shader

import (
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/ir"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
)

// lower parses and lowers WGSL source to naga IR and validates it.
func lower(source string) (*ir.Module, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, errors.New(errors.PhaseShader, errors.KindInvalidInput).Cause(err).Detail("parse").Build()
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, errors.New(errors.PhaseShader, errors.KindInvalidInput).Cause(err).Detail("lowering").Build()
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, errors.New(errors.PhaseShader, errors.KindInvalidInput).Cause(err).Detail("validation").Build()
	}
	if len(verrs) > 0 {
		return nil, errors.New(errors.PhaseShader, errors.KindInvalidInput).
			Cause(&verrs[0]).
			Value(len(verrs)).
			Detail("validation failed with %d errors", len(verrs)).
			Build()
	}
	return module, nil
}

// Validate checks that WGSL source parses, lowers, and passes IR validation.
//
// Parameters:
//   - source: the WGSL source
//
// Returns:
//   - error: an invalid input error wrapping the compiler diagnostic
func Validate(source string) error {
	_, err := lower(source)
	return err
}

// CompileSPIRV compiles WGSL source to a SPIR-V binary.
//
// Parameters:
//   - source: the WGSL source
//
// Returns:
//   - []byte: the SPIR-V words in little-endian byte order
//   - error: an invalid input error wrapping the compiler diagnostic
func CompileSPIRV(source string) ([]byte, error) {
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, errors.New(errors.PhaseShader, errors.KindInvalidInput).Cause(err).Detail("spir-v").Build()
	}
	return spirv, nil
}

// TranslateGLSL translates a WGSL compute kernel to GLSL 4.30 for GLSL consumers.
//
// Parameters:
//   - source: the WGSL source
//   - entryPoint: the entry point to translate, empty for the first one
//
// Returns:
//   - string: the GLSL source
//   - error: an invalid input error wrapping the compiler diagnostic
func TranslateGLSL(source, entryPoint string) (string, error) {
	module, err := lower(source)
	if err != nil {
		return "", err
	}
	out, _, err := glsl.Compile(module, glsl.Options{
		LangVersion: glsl.Version430,
		EntryPoint:  entryPoint,
	})
	if err != nil {
		return "", errors.New(errors.PhaseShader, errors.KindInvalidInput).Cause(err).Detail("glsl").Build()
	}
	return out, nil
}
