package gpu

import (
	"context"
	"strconv"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-ssbo/common"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/algo"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/profiler"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/shader"
)

// computeStage is a stage compiled for a device: the pipeline, its bind group layouts and the
// bind groups that attach the allocations.
type computeStage struct {
	module     *wgpu.ShaderModule
	layouts    []*wgpu.BindGroupLayout
	layout     *wgpu.PipelineLayout
	pipeline   *wgpu.ComputePipeline
	bindGroups []*wgpu.BindGroup
	params     *wgpu.Buffer
	paramsSize uint64
}

func (c *computeStage) release() {
	for _, bg := range c.bindGroups {
		if bg != nil {
			bg.Release()
		}
	}
	if c.params != nil {
		c.params.Release()
	}
	if c.pipeline != nil {
		c.pipeline.Release()
	}
	if c.layout != nil {
		c.layout.Release()
	}
	for _, l := range c.layouts {
		if l != nil {
			l.Release()
		}
	}
	if c.module != nil {
		c.module.Release()
	}
}

// Runner runs algo pipelines on a device. Buffers bound by a stage are looked up by name among
// the runner's allocations. Compiled stages are cached by source.
type Runner struct {
	device      *Device
	allocations map[string]*Allocation
	compiled    map[string]*computeStage
	profiler    *profiler.Profiler
	log         *zap.Logger
}

// NewRunner creates a runner that binds the given allocations.
//
// Parameters:
//   - device: the device the allocations live on
//   - allocations: the buffers stages may bind, keyed by their layout name
//
// Returns:
//   - *Runner: the runner
func NewRunner(device *Device, allocations ...*Allocation) *Runner {
	r := &Runner{
		device:      device,
		allocations: make(map[string]*Allocation, len(allocations)),
		compiled:    make(map[string]*computeStage),
		log:         device.log.Named("runner"),
	}
	for _, a := range allocations {
		r.allocations[a.layout.Name()] = a
	}
	return r
}

// SetProfiler records the duration of every stage run.
func (r *Runner) SetProfiler(p *profiler.Profiler) {
	r.profiler = p
}

// Run compiles the stages on first use and issues every dispatch in order. Each dispatch is
// submitted after its parameters are written, so queue ordering keeps dispatches sequential.
//
// Parameters:
//   - ctx: checked between dispatches
//   - p: the pipeline
//
// Returns:
//   - error: the first compile, binding or submission error, or ctx.Err()
func (r *Runner) Run(ctx context.Context, p *algo.Pipeline) error {
	for _, stage := range p.Stages() {
		if err := r.runStage(ctx, stage); err != nil {
			return err
		}
	}
	r.device.device.Poll(true, nil)
	return nil
}

func (r *Runner) runStage(ctx context.Context, stage algo.Stage) error {
	if r.profiler != nil {
		defer r.profiler.Time(stage.Name)()
	}
	c, err := r.compile(stage)
	if err != nil {
		return err
	}

	for i, dispatch := range stage.Dispatches {
		if err := ctx.Err(); err != nil {
			return err
		}
		if dispatch.Params != nil {
			if c.params == nil || uint64(len(dispatch.Params)) > c.paramsSize {
				return errors.New(errors.PhaseGPU, errors.KindConfiguration).
					Path(stage.Name, strconv.Itoa(i)).
					Detail("dispatch has parameters but the stage binds no uniform of %d bytes", len(dispatch.Params)).
					Build()
			}
			r.device.queue.WriteBuffer(c.params, 0, padWords(dispatch.Params))
		}

		encoder, err := r.device.device.CreateCommandEncoder(nil)
		if err != nil {
			return errors.New(errors.PhaseGPU, errors.KindInvalidInput).Cause(err).Detail("create command encoder").Build()
		}
		pass := encoder.BeginComputePass(nil)
		pass.SetPipeline(c.pipeline)
		for g, bg := range c.bindGroups {
			if bg != nil {
				pass.SetBindGroup(uint32(g), bg, nil)
			}
		}
		pass.DispatchWorkgroups(dispatch.Workgroups[0], dispatch.Workgroups[1], dispatch.Workgroups[2])
		pass.End()
		pass.Release()

		err = r.device.submit(encoder)
		encoder.Release()
		if err != nil {
			return err
		}
	}
	r.log.Debug("stage submitted", zap.String("stage", stage.Name), zap.Int("dispatches", len(stage.Dispatches)))
	return nil
}

// stageError reports a failed wgpu call while compiling a stage. The detail is taken verbatim.
func stageError(name string, err error, detail string) error {
	return errors.New(errors.PhaseGPU, errors.KindInvalidInput).Path(name).Cause(err).Detail("%s", detail).Build()
}

// compile builds the pipeline and bind groups of a stage once.
func (r *Runner) compile(stage algo.Stage) (*computeStage, error) {
	if c, ok := r.compiled[stage.Source]; ok {
		return c, nil
	}
	if stage.Shader == nil {
		return nil, errors.Configuration(errors.PhaseGPU, "stage %q has no reflected shader", stage.Name)
	}

	c := &computeStage{}
	fail := func(err error, detail string) (*computeStage, error) {
		c.release()
		return nil, stageError(stage.Name, err, detail)
	}

	var err error
	if c.module, err = r.device.device.CreateShaderModule(stage.Shader.Module()); err != nil {
		return fail(err, "create shader module")
	}

	descriptors := stage.Shader.BindGroupLayoutDescriptors()
	c.layouts = make([]*wgpu.BindGroupLayout, groupCount(descriptors))
	for g := range c.layouts {
		desc := descriptors[g]
		if c.layouts[g], err = r.device.device.CreateBindGroupLayout(&desc); err != nil {
			return fail(err, "create bind group layout "+strconv.Itoa(g))
		}
	}

	if c.layout, err = r.device.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            stage.Name,
		BindGroupLayouts: c.layouts,
	}); err != nil {
		return fail(err, "create pipeline layout")
	}
	if c.pipeline, err = r.device.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  stage.Name,
		Layout: c.layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     c.module,
			EntryPoint: common.Coalesce(stage.EntryPoint, "main"),
		},
	}); err != nil {
		return fail(err, "create compute pipeline")
	}

	c.bindGroups = make([]*wgpu.BindGroup, len(c.layouts))
	for g := range c.layouts {
		entries, err := r.bindGroupEntries(stage, g, descriptors[g], c)
		if err != nil {
			c.release()
			return nil, err
		}
		if c.bindGroups[g], err = r.device.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   stage.Name + " group " + strconv.Itoa(g),
			Layout:  c.layouts[g],
			Entries: entries,
		}); err != nil {
			return fail(err, "create bind group "+strconv.Itoa(g))
		}
	}

	r.compiled[stage.Source] = c
	return c, nil
}

// bindGroupEntries attaches an allocation to every storage binding declared with an
// @ssbo:group annotation, and the stage's parameter uniform to the parameter group.
func (r *Runner) bindGroupEntries(stage algo.Stage, group int, desc wgpu.BindGroupLayoutDescriptor, c *computeStage) ([]wgpu.BindGroupEntry, error) {
	entries := make([]wgpu.BindGroupEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		if group == algo.ParamsGroup && e.Buffer.Type == wgpu.BufferBindingTypeUniform && boundBuffer(stage.Shader, group, int(e.Binding)) == "" {
			size := allocationSize(e.Buffer.MinBindingSize)
			params, err := r.device.device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: stage.Name + " params",
				Size:  size,
				Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
			})
			if err != nil {
				return nil, errors.New(errors.PhaseGPU, errors.KindInvalidInput).Path(stage.Name).Cause(err).Detail("create params buffer").Build()
			}
			c.params, c.paramsSize = params, size
			entries = append(entries, wgpu.BindGroupEntry{Binding: e.Binding, Buffer: params, Size: wgpu.WholeSize})
			continue
		}

		name := boundBuffer(stage.Shader, group, int(e.Binding))
		a, ok := r.allocations[name]
		if !ok {
			return nil, errors.New(errors.PhaseGPU, errors.KindNotFound).
				Path(stage.Name, "group", strconv.Itoa(group), "binding", strconv.Itoa(int(e.Binding))).
				Detail("no allocation for buffer %q", name).
				Build()
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: e.Binding, Buffer: a.buffer, Size: wgpu.WholeSize})
	}
	return entries, nil
}

// boundBuffer returns the buffer name an @ssbo:group annotation binds at group and binding,
// or "" if the binding was not declared by an annotation.
func boundBuffer(s shader.Shader, group, binding int) string {
	for _, a := range s.Declarations() {
		if *a.Group == group && *a.Binding == binding {
			elem, _ := a.ElementType()
			return elem
		}
	}
	return ""
}

// groupCount returns one more than the highest declared group index.
func groupCount(descriptors map[int]wgpu.BindGroupLayoutDescriptor) int {
	n := 0
	for g := range descriptors {
		n = max(n, g+1)
	}
	return n
}

// Release frees every compiled stage. Allocations stay owned by their allocator.
func (r *Runner) Release() {
	for key, c := range r.compiled {
		c.release()
		delete(r.compiled, key)
	}
}
