package algo

import (
	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/shader"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
)

var copyTemplate = mustTemplate("copy", `//@ssbo:group 0 0 storage_read_write {{.Data}} {{.Buffer}}

@compute @workgroup_size({{.WorkgroupSize}})
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
  let i = id.x;
  if (i >= {{.Extra.Count}}u) {
    return;
  }
  {{.Extra.Dst}} = {{.Extra.Src}};
}
`)

// Copy builds the stage that copies src into dst element by element.
//
// Parameters:
//   - buf: the buffer holding both arrays
//   - src: the field read
//   - dst: the field written, of the same primitive type in an array of the same length
//
// Returns:
//   - Stage: the generated stage
//   - error: a configuration error if the fields are incompatible, or a not found error
func Copy(buf *ssbo.Buffer, src, dst FieldRef) (Stage, error) {
	s, err := resolve(buf, src)
	if err != nil {
		return Stage{}, err
	}
	d, err := resolve(buf, dst)
	if err != nil {
		return Stage{}, err
	}
	if s.member.Type().Primitive() != d.member.Type().Primitive() {
		return Stage{}, errors.Configuration(errors.PhasePipeline,
			"cannot copy %s field %s into %s field %s", s.member.Type().Name(), src, d.member.Type().Name(), dst)
	}
	n, err := sameCount([]resolved{s, d})
	if err != nil {
		return Stage{}, err
	}
	extra := struct {
		Count    uint64
		Src, Dst string
	}{n, s.access(), d.access()}
	return newStage("copy", buf, copyTemplate, nil, extra, linear(n, nil))
}

// Raw builds a stage from caller WGSL. The source declares its bindings with //@ssbo:
// annotations that are resolved against set.
//
// Parameters:
//   - set: the buffer set the annotations refer to
//   - name: the stage name
//   - source: the WGSL source with a @compute entry point
//   - n: the number of invocations
//
// Returns:
//   - Stage: the generated stage with one dispatch covering n invocations
//   - error: a configuration error if n is zero or needs more than MaxWorkgroups, or the
//     shader pre-processing error
func Raw(set *ssbo.BufferSet, name, source string, n uint64) (Stage, error) {
	if n == 0 {
		return Stage{}, errors.Configuration(errors.PhasePipeline, "stage %q has no invocations", name)
	}
	s, err := shader.NewShader(name, source, shader.WithBufferSet(set))
	if err != nil {
		return Stage{}, err
	}
	size := s.WorkgroupSize()
	dispatches := []Dispatch{{Workgroups: [3]uint32{Workgroups(n, size[0]), 1, 1}}}
	if err := checkDispatches(name, dispatches); err != nil {
		return Stage{}, err
	}
	return Stage{
		Name:          name,
		Source:        s.Source(),
		EntryPoint:    s.EntryPoint(),
		WorkgroupSize: size,
		Dispatches:    dispatches,
		Shader:        s,
	}, nil
}
