package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-ssbo/common"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
)

// storageUsage is the usage of every allocated buffer: bound as storage, written through the
// queue and copied out for readback.
const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc

// Allocation is a device buffer holding one ssbo.Buffer image.
type Allocation struct {
	layout *ssbo.Buffer
	buffer *wgpu.Buffer
	size   uint64
}

// Layout returns the ssbo buffer the allocation was created for.
func (a *Allocation) Layout() *ssbo.Buffer { return a.layout }

// Buffer returns the device buffer.
func (a *Allocation) Buffer() *wgpu.Buffer { return a.buffer }

// Size returns the device buffer size in bytes.
func (a *Allocation) Size() uint64 { return a.size }

// Allocator creates and transfers device buffers for ssbo buffers.
type Allocator struct {
	device *Device
}

// NewAllocator returns an allocator on device.
func NewAllocator(device *Device) *Allocator {
	return &Allocator{device: device}
}

// allocationSize is the device size of a buffer image. Queue writes and copies move whole
// 4-byte words, and bindings may not be empty.
func allocationSize(size uint64) uint64 {
	return max(common.RoundUpAlign(4, size), 4)
}

// Allocate creates a device buffer of the layout's size and uploads initial, or the zero value
// when initial is nil.
//
// Parameters:
//   - layout: the buffer layout
//   - initial: the initial value, may be nil
//
// Returns:
//   - *Allocation: the allocation
//   - error: a shape mismatch error if initial does not fit the layout, or a gpu error
func (al *Allocator) Allocate(layout *ssbo.Buffer, initial ssbo.Record) (*Allocation, error) {
	if initial == nil {
		initial = layout.Zero()
	}
	data, err := layout.InitialBytes(initial)
	if err != nil {
		return nil, err
	}

	size := allocationSize(layout.Size())
	buffer, err := al.device.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: layout.Name(),
		Size:  size,
		Usage: storageUsage,
	})
	if err != nil {
		return nil, errors.New(errors.PhaseGPU, errors.KindInvalidInput).
			Path(layout.Name()).
			Cause(err).
			Detail("create buffer of %d bytes", size).
			Build()
	}
	al.device.queue.WriteBuffer(buffer, 0, data)
	al.device.log.Debug("allocated", zap.String("buffer", layout.Name()), zap.Uint64("bytes", size))
	return &Allocation{layout: layout, buffer: buffer, size: size}, nil
}

// Write replaces the whole device image with value.
//
// Parameters:
//   - a: the allocation
//   - value: the new buffer value
//
// Returns:
//   - error: a shape mismatch error if value does not fit the layout
func (al *Allocator) Write(a *Allocation, value ssbo.Record) error {
	data, err := a.layout.Encode(value)
	if err != nil {
		return err
	}
	al.device.queue.WriteBuffer(a.buffer, 0, data)
	return nil
}

// WriteField uploads one top-level field at its byte offset and leaves the rest of the device
// image untouched.
//
// Parameters:
//   - a: the allocation
//   - name: the top-level field name
//   - value: the field value
//
// Returns:
//   - error: a not found error for an unknown field, or a shape mismatch error
func (al *Allocator) WriteField(a *Allocation, name string, value ssbo.Value) error {
	data, err := a.layout.EncodeField(name, value)
	if err != nil {
		return err
	}
	info, err := a.layout.Field(name)
	if err != nil {
		return err
	}
	al.device.queue.WriteBuffer(a.buffer, info.Offset, padWords(data))
	return nil
}

// padWords zero-extends data to a whole number of 4-byte words.
func padWords(data []byte) []byte {
	if n := common.RoundUpAlign(4, uint64(len(data))); n != uint64(len(data)) {
		return append(data, make([]byte, n-uint64(len(data)))...)
	}
	return data
}

// ReadBytes copies the device image into a mappable staging buffer and returns its bytes.
//
// Parameters:
//   - a: the allocation
//
// Returns:
//   - []byte: the device image
//   - error: a gpu error if the copy or the mapping fails
func (al *Allocator) ReadBytes(a *Allocation) ([]byte, error) {
	d := al.device
	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: a.layout.Name() + " staging",
		Size:  a.size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, errors.New(errors.PhaseGPU, errors.KindInvalidInput).Path(a.layout.Name()).Cause(err).Detail("create staging buffer").Build()
	}
	defer staging.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, errors.New(errors.PhaseGPU, errors.KindInvalidInput).Cause(err).Detail("create command encoder").Build()
	}
	encoder.CopyBufferToBuffer(a.buffer, 0, staging, 0, a.size)
	err = d.submit(encoder)
	encoder.Release()
	if err != nil {
		return nil, err
	}

	var status wgpu.BufferMapAsyncStatus
	if err := staging.MapAsync(wgpu.MapModeRead, 0, a.size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, errors.New(errors.PhaseGPU, errors.KindInvalidInput).Path(a.layout.Name()).Cause(err).Detail("map staging buffer").Build()
	}
	d.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, errors.New(errors.PhaseGPU, errors.KindInvalidInput).
			Path(a.layout.Name()).
			Value(status).
			Detail("map staging buffer was not successful").
			Build()
	}

	mapped := staging.GetMappedRange(0, uint(a.size))
	out := make([]byte, len(mapped))
	copy(out, mapped)
	staging.Unmap()
	d.log.Debug("read back", zap.String("buffer", a.layout.Name()), zap.Int("bytes", len(out)))
	return out, nil
}

// Read reads the device image back and decodes it.
//
// Parameters:
//   - a: the allocation
//
// Returns:
//   - ssbo.Record: the decoded buffer value
//   - error: a gpu error, or a truncated buffer error
func (al *Allocator) Read(a *Allocation) (ssbo.Record, error) {
	data, err := al.ReadBytes(a)
	if err != nil {
		return nil, err
	}
	return a.layout.Decode(data)
}

// Release frees the device buffer.
func (al *Allocator) Release(a *Allocation) {
	if a.buffer != nil {
		a.buffer.Release()
		a.buffer = nil
	}
}
