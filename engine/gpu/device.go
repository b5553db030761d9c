// Package gpu uploads ssbo buffers to a WebGPU device, runs generated compute stages over
// them and reads the results back into host values.
package gpu

import (
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/logger"
)

// Device owns the WebGPU instance, adapter, device and queue used by allocators and runners.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	log      *zap.Logger

	label                string
	forceFallbackAdapter bool
	powerPreference      wgpu.PowerPreference
}

// NewDevice requests an adapter and a device with default limits. Compute-only use needs no
// surface.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - *Device: the device
//   - error: a gpu configuration error if no adapter or device is available
func NewDevice(options ...DeviceBuilderOption) (*Device, error) {
	runtime.LockOSThread()
	d := &Device{
		label:           "oxy-ssbo",
		powerPreference: wgpu.PowerPreferenceHighPerformance,
		log:             logger.Named("gpu"),
	}
	for _, option := range options {
		option(d)
	}

	d.instance = wgpu.CreateInstance(nil)
	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		PowerPreference:      d.powerPreference,
	})
	if err != nil {
		d.instance.Release()
		return nil, errors.New(errors.PhaseGPU, errors.KindConfiguration).Cause(err).Detail("request adapter").Build()
	}
	d.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: d.label,
	})
	if err != nil {
		adapter.Release()
		d.instance.Release()
		return nil, errors.New(errors.PhaseGPU, errors.KindConfiguration).Cause(err).Detail("request device").Build()
	}
	d.device = device
	d.queue = device.GetQueue()

	info := adapter.GetInfo()
	d.log.Info("device ready",
		zap.String("adapter", info.Name),
		zap.String("backend", info.BackendType.String()),
	)
	return d, nil
}

// Release frees the device and everything it was created from.
func (d *Device) Release() {
	if d.queue != nil {
		d.queue.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
	*d = Device{}
}

// submit finishes an encoder and submits it to the queue.
func (d *Device) submit(encoder *wgpu.CommandEncoder) error {
	commands, err := encoder.Finish(nil)
	if err != nil {
		return errors.New(errors.PhaseGPU, errors.KindInvalidInput).Cause(err).Detail("finish command encoder").Build()
	}
	defer commands.Release()
	d.queue.Submit(commands)
	return nil
}
