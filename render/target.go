// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// MaxColorAttachments is the maximum number of color attachments of a
// framebuffer.
const MaxColorAttachments = 8

// Attachments are the views a render pass binds when drawing into a target.
type Attachments struct {
	Colors       []hal.TextureView
	DepthStencil hal.TextureView
}

// RenderTarget defines where rendering output goes.
//
// A RenderTarget is an abstraction over different rendering destinations:
//   - Framebuffer: attachments of render-target textures owned by the caches
//   - TextureTarget: standalone offscreen color and depth textures
//   - SwapChain: window surface acquired once per frame
//
// Commands reference targets, not views; Attachments is resolved when a
// CommandBuffer is submitted.
type RenderTarget interface {
	// Width returns the target width in pixels.
	Width() uint32

	// Height returns the target height in pixels.
	Height() uint32

	// SampleCount returns the multisample count of every attachment.
	SampleCount() uint32

	// ColorFormats returns the formats of the color attachments in order.
	ColorFormats() []gputypes.TextureFormat

	// DepthStencilFormat returns the depth-stencil format, or
	// TextureFormatUndefined when there is none.
	DepthStencilFormat() gputypes.TextureFormat

	// Attachments returns the views to render into.
	Attachments() (Attachments, error)
}

// TextureTarget is a GPU texture-backed render target for offscreen
// rendering. Its textures are created lazily by EnsureSize.
type TextureTarget struct {
	device      *Device
	label       string
	format      gputypes.TextureFormat
	depthFormat gputypes.TextureFormat
	sampleCount uint32

	color *Texture
	depth *Texture
}

// NewTextureTarget creates an offscreen target. depthFormat may be
// TextureFormatUndefined for a color-only target. No GPU memory is allocated
// until EnsureSize.
func NewTextureTarget(d *Device, label string, format, depthFormat gputypes.TextureFormat, sampleCount uint32) *TextureTarget {
	return &TextureTarget{
		device:      d,
		label:       label,
		format:      format,
		depthFormat: depthFormat,
		sampleCount: max(sampleCount, 1),
	}
}

// EnsureSize creates or recreates the textures if the requested size differs
// from the current one. A matching size is a no-op.
func (t *TextureTarget) EnsureSize(width, height uint32) error {
	if t.color != nil && t.color.Width() == width && t.color.Height() == height {
		return nil
	}
	t.Destroy()

	color, err := t.device.CreateTexture(TextureDescriptor{
		Label:       t.label + "_color",
		Width:       width,
		Height:      height,
		SampleCount: t.sampleCount,
		Format:      t.format,
		Usage: gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return err
	}
	t.color = color

	if t.depthFormat != gputypes.TextureFormatUndefined {
		depth, err := t.device.CreateTexture(TextureDescriptor{
			Label:       t.label + "_depth",
			Width:       width,
			Height:      height,
			SampleCount: t.sampleCount,
			Format:      t.depthFormat,
			Usage:       gputypes.TextureUsageRenderAttachment,
		})
		if err != nil {
			t.Destroy()
			return err
		}
		t.depth = depth
	}
	return nil
}

// Width returns the current width, 0 before EnsureSize.
func (t *TextureTarget) Width() uint32 {
	if t.color == nil {
		return 0
	}
	return t.color.Width()
}

// Height returns the current height, 0 before EnsureSize.
func (t *TextureTarget) Height() uint32 {
	if t.color == nil {
		return 0
	}
	return t.color.Height()
}

// SampleCount returns the multisample count.
func (t *TextureTarget) SampleCount() uint32 { return t.sampleCount }

// ColorFormats returns the single color format.
func (t *TextureTarget) ColorFormats() []gputypes.TextureFormat {
	return []gputypes.TextureFormat{t.format}
}

// DepthStencilFormat returns the depth format.
func (t *TextureTarget) DepthStencilFormat() gputypes.TextureFormat { return t.depthFormat }

// Attachments returns the color and depth views.
func (t *TextureTarget) Attachments() (Attachments, error) {
	if t.color == nil {
		return Attachments{}, ErrInvalidSize
	}
	a := Attachments{Colors: []hal.TextureView{t.color.View()}}
	if t.depth != nil {
		a.DepthStencil = t.depth.View()
	}
	return a, nil
}

// ColorTexture returns the color texture, nil before EnsureSize.
func (t *TextureTarget) ColorTexture() *Texture { return t.color }

// Destroy releases the textures. The target can be reused after EnsureSize.
func (t *TextureTarget) Destroy() {
	if t.depth != nil {
		t.depth.Destroy()
		t.depth = nil
	}
	if t.color != nil {
		t.color.Destroy()
		t.color = nil
	}
}

// Ensure targets implement RenderTarget.
var (
	_ RenderTarget = (*TextureTarget)(nil)
	_ RenderTarget = (*Framebuffer)(nil)
	_ RenderTarget = (*SwapChain)(nil)
)
