// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// FramebufferAttachment selects one mip level and array layer of a texture.
type FramebufferAttachment struct {
	Texture  *Texture
	MipLevel uint32
	Layer    uint32
}

// Framebuffer is a render target made of texture attachments. It owns the
// attachment views but not the textures.
type Framebuffer struct {
	device *Device

	width, height uint32
	sampleCount   uint32

	colorTextures []*Texture
	colorViews    []hal.TextureView
	colorFormats  []gputypes.TextureFormat

	depthTexture *Texture
	depthView    hal.TextureView
}

// CreateFramebuffer creates attachment views over the given textures. The
// framebuffer size is the size of the attached mip level of the first
// attachment.
func (d *Device) CreateFramebuffer(colors []FramebufferAttachment, depthStencil *FramebufferAttachment) (*Framebuffer, error) {
	if len(colors) > MaxColorAttachments {
		return nil, fmt.Errorf("%w: %d", ErrTooManyAttachments, len(colors))
	}
	if len(colors) == 0 && depthStencil == nil {
		return nil, fmt.Errorf("%w: framebuffer without attachments", ErrInvalidSize)
	}

	fb := &Framebuffer{device: d}
	setSize := func(a FramebufferAttachment) {
		if fb.width == 0 {
			fb.width = max(a.Texture.Width()>>a.MipLevel, 1)
			fb.height = max(a.Texture.Height()>>a.MipLevel, 1)
			fb.sampleCount = a.Texture.SampleCount()
		}
	}

	for i, a := range colors {
		view, err := a.Texture.CreateAttachmentView(a.MipLevel, a.Layer)
		if err != nil {
			fb.Destroy()
			return nil, fmt.Errorf("color attachment %d: %w", i, err)
		}
		setSize(a)
		fb.colorTextures = append(fb.colorTextures, a.Texture)
		fb.colorViews = append(fb.colorViews, view)
		fb.colorFormats = append(fb.colorFormats, a.Texture.Format())
	}

	if depthStencil != nil {
		view, err := depthStencil.Texture.CreateAttachmentView(depthStencil.MipLevel, depthStencil.Layer)
		if err != nil {
			fb.Destroy()
			return nil, fmt.Errorf("depth-stencil attachment: %w", err)
		}
		setSize(*depthStencil)
		fb.depthTexture = depthStencil.Texture
		fb.depthView = view
	}
	return fb, nil
}

// Width returns the framebuffer width.
func (fb *Framebuffer) Width() uint32 { return fb.width }

// Height returns the framebuffer height.
func (fb *Framebuffer) Height() uint32 { return fb.height }

// SampleCount returns the multisample count of the attachments.
func (fb *Framebuffer) SampleCount() uint32 { return fb.sampleCount }

// ColorFormats returns the color attachment formats.
func (fb *Framebuffer) ColorFormats() []gputypes.TextureFormat { return fb.colorFormats }

// DepthStencilFormat returns the depth-stencil format or Undefined.
func (fb *Framebuffer) DepthStencilFormat() gputypes.TextureFormat {
	if fb.depthTexture == nil {
		return gputypes.TextureFormatUndefined
	}
	return fb.depthTexture.Format()
}

// Attachments returns the attachment views.
func (fb *Framebuffer) Attachments() (Attachments, error) {
	return Attachments{Colors: fb.colorViews, DepthStencil: fb.depthView}, nil
}

// ColorTexture returns the texture of color attachment i, or nil.
func (fb *Framebuffer) ColorTexture(i int) *Texture {
	if i < 0 || i >= len(fb.colorTextures) {
		return nil
	}
	return fb.colorTextures[i]
}

// Destroy releases the attachment views. The textures stay alive.
func (fb *Framebuffer) Destroy() {
	for i, v := range fb.colorViews {
		if v != nil {
			fb.device.device.DestroyTextureView(v)
			fb.colorViews[i] = nil
		}
	}
	fb.colorViews = fb.colorViews[:0]
	if fb.depthView != nil {
		fb.device.device.DestroyTextureView(fb.depthView)
		fb.depthView = nil
	}
}
