// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendercore"
)

// ErrNotAcquired is returned by Present when no surface texture is held.
var ErrNotAcquired = errors.New("render: swap chain texture not acquired")

// SwapChain is a window surface render target. The surface texture is
// acquired lazily on the first Attachments call of a frame and released by
// Present.
type SwapChain struct {
	device  *Device
	surface hal.Surface
	config  hal.SurfaceConfiguration

	depthFormat gputypes.TextureFormat
	depth       *Texture

	acquired    *hal.AcquiredSurfaceTexture
	currentView hal.TextureView
}

// NewSwapChain configures surface for presentation. depthFormat may be
// TextureFormatUndefined.
func NewSwapChain(d *Device, surface hal.Surface, width, height uint32, depthFormat gputypes.TextureFormat) (*SwapChain, error) {
	sc := &SwapChain{
		device:  d,
		surface: surface,
		config: hal.SurfaceConfiguration{
			Format:      d.SurfaceFormat(),
			Usage:       gputypes.TextureUsageRenderAttachment,
			PresentMode: gputypes.PresentModeFifo,
			AlphaMode:   gputypes.CompositeAlphaModeOpaque,
		},
		depthFormat: depthFormat,
	}
	if err := sc.Resize(width, height); err != nil {
		return nil, err
	}
	return sc, nil
}

// Resize reconfigures the surface and recreates the depth buffer. A frame in
// progress is discarded.
func (sc *SwapChain) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: swap chain %dx%d", ErrInvalidSize, width, height)
	}
	sc.discard()
	sc.config.Width = width
	sc.config.Height = height
	if err := sc.surface.Configure(sc.device.device, &sc.config); err != nil {
		return fmt.Errorf("configure surface: %w", err)
	}

	if sc.depth != nil {
		sc.depth.Destroy()
		sc.depth = nil
	}
	if sc.depthFormat != gputypes.TextureFormatUndefined {
		depth, err := sc.device.CreateTexture(TextureDescriptor{
			Label:  "swapchain_depth",
			Width:  width,
			Height: height,
			Format: sc.depthFormat,
			Usage:  gputypes.TextureUsageRenderAttachment,
		})
		if err != nil {
			return err
		}
		sc.depth = depth
	}
	rendercore.Logger().Info("render: swap chain configured",
		"width", width, "height", height, "format", sc.config.Format.String())
	return nil
}

// Width returns the surface width.
func (sc *SwapChain) Width() uint32 { return sc.config.Width }

// Height returns the surface height.
func (sc *SwapChain) Height() uint32 { return sc.config.Height }

// SampleCount returns 1; surfaces are never multisampled.
func (sc *SwapChain) SampleCount() uint32 { return 1 }

// ColorFormats returns the surface format.
func (sc *SwapChain) ColorFormats() []gputypes.TextureFormat {
	return []gputypes.TextureFormat{sc.config.Format}
}

// DepthStencilFormat returns the depth buffer format.
func (sc *SwapChain) DepthStencilFormat() gputypes.TextureFormat { return sc.depthFormat }

// Attachments acquires the next surface texture if needed and returns its
// view.
func (sc *SwapChain) Attachments() (Attachments, error) {
	if sc.acquired == nil {
		acquired, err := sc.surface.AcquireTexture(nil)
		if err != nil {
			return Attachments{}, fmt.Errorf("acquire surface texture: %w", err)
		}
		view, err := sc.device.device.CreateTextureView(acquired.Texture, &hal.TextureViewDescriptor{
			Label: "swapchain_view",
		})
		if err != nil {
			sc.surface.DiscardTexture(acquired.Texture)
			return Attachments{}, fmt.Errorf("create surface view: %w", err)
		}
		sc.acquired = acquired
		sc.currentView = view
	}

	a := Attachments{Colors: []hal.TextureView{sc.currentView}}
	if sc.depth != nil {
		a.DepthStencil = sc.depth.View()
	}
	return a, nil
}

// Present queues the acquired texture for display.
func (sc *SwapChain) Present() error {
	if sc.acquired == nil {
		return ErrNotAcquired
	}
	err := sc.device.queue.Present(sc.surface, sc.acquired.Texture, nil)
	sc.releaseView()
	sc.acquired = nil
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}

// Acquired reports whether a surface texture is held for the current frame.
func (sc *SwapChain) Acquired() bool { return sc.acquired != nil }

func (sc *SwapChain) discard() {
	if sc.acquired == nil {
		return
	}
	sc.releaseView()
	sc.surface.DiscardTexture(sc.acquired.Texture)
	sc.acquired = nil
}

func (sc *SwapChain) releaseView() {
	if sc.currentView != nil {
		sc.device.device.DestroyTextureView(sc.currentView)
		sc.currentView = nil
	}
}

// Destroy releases the depth buffer and unconfigures the surface. The surface
// itself belongs to the caller.
func (sc *SwapChain) Destroy() {
	sc.discard()
	if sc.depth != nil {
		sc.depth.Destroy()
		sc.depth = nil
	}
	sc.surface.Unconfigure(sc.device.device)
}
