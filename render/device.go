// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendercore"
)

// Errors returned by device and resource creation.
var (
	// ErrNilDevice is returned when a nil HAL device or queue is supplied.
	ErrNilDevice = errors.New("render: nil device or queue")

	// ErrNotHALProvider is returned when a device provider does not expose
	// hal.Device and hal.Queue.
	ErrNotHALProvider = errors.New("render: provider does not expose HAL types")

	// ErrInvalidSize is returned for zero-sized textures or targets.
	ErrInvalidSize = errors.New("render: invalid size")

	// ErrTooManyAttachments is returned when a framebuffer exceeds
	// MaxColorAttachments.
	ErrTooManyAttachments = errors.New("render: too many color attachments")
)

// DeviceHandle provides GPU device access from the host application.
//
// rendercore RECEIVES the device from the host, it does not create one.
// DeviceHandle is an alias for gpucontext.DeviceProvider so any gogpu host
// can be plugged in directly.
type DeviceHandle = gpucontext.DeviceProvider

// Device bundles the HAL device and queue used by the renderer. All GPU
// objects in rendercore are created through it.
//
// Device is not safe for concurrent use; it belongs to the render thread.
type Device struct {
	device hal.Device
	queue  hal.Queue

	surfaceFormat gputypes.TextureFormat

	// nextVertexArrayID feeds VertexArray ids used in render queue sort keys.
	nextVertexArrayID uint32

	inFlight []inFlightSubmission
}

// NewDevice wraps an opened HAL device and its queue.
func NewDevice(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	return &Device{
		device:        device,
		queue:         queue,
		surfaceFormat: gputypes.TextureFormatBGRA8Unorm,
	}, nil
}

// NewDeviceFromProvider wraps the device shared by a host application. The
// provider's Device and Queue must be hal.Device and hal.Queue.
func NewDeviceFromProvider(provider DeviceHandle) (*Device, error) {
	if provider == nil {
		return nil, ErrNilDevice
	}
	device, ok := provider.Device().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: Device() is %T", ErrNotHALProvider, provider.Device())
	}
	queue, ok := provider.Queue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: Queue() is %T", ErrNotHALProvider, provider.Queue())
	}
	d, err := NewDevice(device, queue)
	if err != nil {
		return nil, err
	}
	if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		d.surfaceFormat = f
	}
	return d, nil
}

// HAL returns the underlying HAL device.
func (d *Device) HAL() hal.Device { return d.device }

// Queue returns the underlying HAL queue.
func (d *Device) Queue() hal.Queue { return d.queue }

// SurfaceFormat returns the preferred presentation format.
func (d *Device) SurfaceFormat() gputypes.TextureFormat { return d.surfaceFormat }

// Release waits for the GPU and frees all in-flight submissions. The HAL
// device itself belongs to the caller.
func (d *Device) Release() {
	if err := d.WaitIdle(); err != nil {
		rendercore.Logger().Warn("render: wait idle on release", "err", err)
	}
}

func (d *Device) newVertexArrayID() uint32 {
	d.nextVertexArrayID++
	return d.nextVertexArrayID
}
