package gpu

import "github.com/cogentcore/webgpu/wgpu"

// DeviceBuilderOption is a functional option for configuring a Device.
type DeviceBuilderOption func(d *Device)

// WithLabel sets the device label shown in driver diagnostics.
func WithLabel(label string) DeviceBuilderOption {
	return func(d *Device) {
		d.label = label
	}
}

// WithFallbackAdapter forces a software adapter, e.g. on machines without a GPU.
func WithFallbackAdapter(force bool) DeviceBuilderOption {
	return func(d *Device) {
		d.forceFallbackAdapter = force
	}
}

// WithLowPower prefers an integrated adapter over a discrete one.
func WithLowPower() DeviceBuilderOption {
	return func(d *Device) {
		d.powerPreference = wgpu.PowerPreferenceLowPower
	}
}
