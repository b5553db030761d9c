// Package algo generates WGSL compute kernels that operate on buffers declared with
// engine/ssbo: random number generation, the spatial hash pivot protocol, pairwise neighbor
// actions, field copies and caller supplied kernels. Each builder returns a Stage that carries
// the reflected shader and the dispatches a backend must issue, in order.
package algo

import (
	"math"
	"strings"
	"text/template"

	"github.com/Carmen-Shannon/oxy-ssbo/common"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/shader"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
)

// WorkgroupSize is the x dimension of every generated kernel.
const WorkgroupSize = 32

// MaxWorkgroups is the largest workgroup count a single dispatch may request on one axis.
const MaxWorkgroups = 65535

// Bind group layout shared by generated kernels: the target buffer is bound read-write at
// group 0 binding 0 under the name "data", per-dispatch parameters are a uniform at group 1.
const (
	DataGroup    = 0
	ParamsGroup  = 1
	dataVarName  = "data"
	paramVarName = "params"
)

// Dispatch is one compute dispatch of a stage.
type Dispatch struct {
	// Workgroups is the number of workgroups per axis.
	Workgroups [3]uint32

	// Params is the std430 image of the uniform bound at ParamsGroup, nil if the kernel takes
	// no parameters.
	Params []byte
}

// Stage is a generated compute kernel together with the dispatches that run it.
type Stage struct {
	Name          string
	Source        string
	EntryPoint    string
	WorkgroupSize [3]uint32
	Dispatches    []Dispatch

	// Shader is the reflected kernel: bind group layouts, type layouts and the module
	// descriptor for pipeline creation.
	Shader shader.Shader
}

// Invocations returns the total number of invocations across every dispatch.
func (s Stage) Invocations() uint64 {
	var total uint64
	for _, d := range s.Dispatches {
		total += uint64(d.Workgroups[0]) * uint64(d.Workgroups[1]) * uint64(d.Workgroups[2]) *
			uint64(s.WorkgroupSize[0]) * uint64(s.WorkgroupSize[1]) * uint64(s.WorkgroupSize[2])
	}
	return total
}

// Workgroups returns the number of workgroups needed to cover n invocations, ceil(n / size).
//
// Parameters:
//   - n: the number of invocations
//   - size: the workgroup size
//
// Returns:
//   - uint32: the workgroup count, saturated at math.MaxUint32
func Workgroups(n uint64, size uint32) uint32 {
	return uint32(min(common.CeilDiv(n, uint64(size)), math.MaxUint32))
}

// checkDispatches rejects dispatches that request more than MaxWorkgroups on any axis.
func checkDispatches(name string, dispatches []Dispatch) error {
	for _, d := range dispatches {
		for axis, count := range d.Workgroups {
			if count > MaxWorkgroups {
				return errors.Configuration(errors.PhasePipeline,
					"stage %q needs %d workgroups on axis %d, more than %d", name, count, axis, MaxWorkgroups)
			}
		}
	}
	return nil
}

// linear returns a single dispatch covering n invocations.
func linear(n uint64, params []byte) []Dispatch {
	return []Dispatch{{Workgroups: [3]uint32{Workgroups(n, WorkgroupSize), 1, 1}, Params: params}}
}

// kernelArgs are the template arguments every kernel template receives.
type kernelArgs struct {
	Buffer        string
	Data          string
	WorkgroupSize int
	Params        string
	Extra         any
}

var kernelFuncs = template.FuncMap{
	"wgsl": func(p ssbo.Primitive) string { return p.WGSLName() },
}

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(kernelFuncs).Parse(text))
}

// newStage renders a kernel template and reflects it against the buffer's set.
//
// Parameters:
//   - name: the stage name, also the shader key
//   - buf: the buffer bound at DataGroup
//   - tmpl: the kernel template
//   - params: the parameter buffer bound at ParamsGroup, nil for none
//   - extra: kernel specific template arguments
//   - dispatches: the dispatches the stage issues
//
// Returns:
//   - Stage: the generated stage
//   - error: a configuration error if a dispatch exceeds MaxWorkgroups, a pipeline error if
//     rendering fails, or the shader pre-processing error
func newStage(name string, buf *ssbo.Buffer, tmpl *template.Template, params *ssbo.Buffer, extra any, dispatches []Dispatch) (Stage, error) {
	if err := checkDispatches(name, dispatches); err != nil {
		return Stage{}, err
	}
	args := kernelArgs{
		Buffer:        buf.Name(),
		Data:          dataVarName,
		WorkgroupSize: WorkgroupSize,
		Extra:         extra,
	}
	if params != nil {
		args.Params = paramsDeclaration(params)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, args); err != nil {
		return Stage{}, errors.New(errors.PhasePipeline, errors.KindInvalidInput).
			Path(name).
			Cause(err).
			Detail("render kernel").
			Build()
	}

	s, err := shader.NewShader(name, sb.String(), shader.WithBufferSet(buf.Set()))
	if err != nil {
		return Stage{}, err
	}
	return Stage{
		Name:          name,
		Source:        s.Source(),
		EntryPoint:    s.EntryPoint(),
		WorkgroupSize: s.WorkgroupSize(),
		Dispatches:    dispatches,
		Shader:        s,
	}, nil
}
