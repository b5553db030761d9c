package algo

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
)

// paramSet declares the uniform parameter blocks of the generated kernels. Parameters are
// encoded with the same std430 codec as user buffers.
var paramSet = mustParamSet()

func mustParamSet() *ssbo.BufferSet {
	set, err := ssbo.NewSchema().
		Buffer("SortParams", ssbo.Prim("span", ssbo.TypeUint), ssbo.Prim("reverseSpan", ssbo.TypeUint)).
		Buffer("RNGParams", ssbo.Prim("seed", ssbo.TypeUint)).
		Build()
	if err != nil {
		panic(err)
	}
	return set
}

func paramBuffer(name string) *ssbo.Buffer {
	buf, err := paramSet.Buffer(name)
	if err != nil {
		panic(err)
	}
	return buf
}

// paramsDeclaration renders the parameter block and its uniform binding.
func paramsDeclaration(params *ssbo.Buffer) string {
	return fmt.Sprintf("%s\n\n@group(%d) @binding(0) var<uniform> %s: %s;",
		params.Declaration().WGSLStruct(), ParamsGroup, paramVarName, ssbo.BlockTypeName(params.Name()))
}

// SortParams is the uniform of one bitonic compare-and-swap pass.
type SortParams struct {
	Span        uint32
	ReverseSpan uint32
}

// Encode returns the std430 image of the parameters.
func (p SortParams) Encode() ([]byte, error) {
	return paramBuffer("SortParams").Encode(ssbo.Record{ssbo.Uint(p.Span), ssbo.Uint(p.ReverseSpan)})
}

// RNGParams is the uniform of a random number generator dispatch.
type RNGParams struct {
	Seed uint32
}

// Encode returns the std430 image of the parameters.
func (p RNGParams) Encode() ([]byte, error) {
	return paramBuffer("RNGParams").Encode(ssbo.Record{ssbo.Uint(p.Seed)})
}
