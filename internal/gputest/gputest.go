// Package gputest opens devices on the noop HAL backend for tests.
package gputest

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/rendercore/render"
)

// OpenHAL opens a noop device and queue, destroyed when t finishes.
func OpenHAL(t testing.TB) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		t.Fatal("noop backend exposes no adapter")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

// NewDevice returns a render.Device on the noop backend.
func NewDevice(t testing.TB) *render.Device {
	t.Helper()
	device, queue := OpenHAL(t)
	d, err := render.NewDevice(device, queue)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	return d
}

// Target returns an offscreen target of the given size with a
// depth-stencil attachment.
func Target(t testing.TB, d *render.Device, width, height uint32) *render.TextureTarget {
	t.Helper()
	tt := render.NewTextureTarget(d, "test_target", gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatDepth24PlusStencil8, 1)
	if err := tt.EnsureSize(width, height); err != nil {
		t.Fatalf("EnsureSize: %v", err)
	}
	t.Cleanup(tt.Destroy)
	return tt
}
