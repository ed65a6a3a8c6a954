// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"math/bits"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// TextureDescriptor describes parameters for creating a texture.
// Zero values of the counts default to 1.
type TextureDescriptor struct {
	// Label is an optional debug label for the texture.
	Label string

	// Width and Height are the texture size in pixels.
	Width  uint32
	Height uint32

	// ArrayLayers is the array layer count. Use 1 for regular 2D textures.
	ArrayLayers uint32

	// MipLevelCount is the number of mipmap levels.
	MipLevelCount uint32

	// SampleCount is the number of samples for multisampling.
	SampleCount uint32

	// Format is the texture pixel format.
	Format gputypes.TextureFormat

	// Usage specifies how the texture will be used.
	Usage gputypes.TextureUsage
}

func (d *TextureDescriptor) normalize() {
	if d.ArrayLayers == 0 {
		d.ArrayLayers = 1
	}
	if d.MipLevelCount == 0 {
		d.MipLevelCount = 1
	}
	if d.SampleCount == 0 {
		d.SampleCount = 1
	}
}

// FullMipLevelCount returns the length of the complete mipmap chain for a
// width × height texture.
func FullMipLevelCount(width, height uint32) uint32 {
	m := max(width, height)
	if m == 0 {
		return 1
	}
	return uint32(bits.Len32(m))
}

// Texture is a GPU texture plus a default view covering all of it.
type Texture struct {
	device *Device
	tex    hal.Texture
	view   hal.TextureView
	desc   TextureDescriptor
}

// CreateTexture allocates a texture and its default view.
func (d *Device) CreateTexture(desc TextureDescriptor) (*Texture, error) {
	desc.normalize()
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: texture %q is %dx%d", ErrInvalidSize, desc.Label, desc.Width, desc.Height)
	}

	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: desc.ArrayLayers,
		},
		MipLevelCount: desc.MipLevelCount,
		SampleCount:   desc.SampleCount,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", desc.Label, err)
	}

	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: desc.Label + "_view",
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create texture view %q: %w", desc.Label, err)
	}

	return &Texture{device: d, tex: tex, view: view, desc: desc}, nil
}

// HAL returns the underlying HAL texture.
func (t *Texture) HAL() hal.Texture { return t.tex }

// View returns the default view.
func (t *Texture) View() hal.TextureView { return t.view }

// Width returns the width of mip level 0.
func (t *Texture) Width() uint32 { return t.desc.Width }

// Height returns the height of mip level 0.
func (t *Texture) Height() uint32 { return t.desc.Height }

// Format returns the pixel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.desc.Format }

// SampleCount returns the multisample count.
func (t *Texture) SampleCount() uint32 { return t.desc.SampleCount }

// Descriptor returns the descriptor the texture was created with.
func (t *Texture) Descriptor() TextureDescriptor { return t.desc }

// CreateAttachmentView creates a view of a single mip level and array layer,
// suitable as a render pass attachment. The caller owns the view.
func (t *Texture) CreateAttachmentView(mipLevel, layer uint32) (hal.TextureView, error) {
	view, err := t.device.device.CreateTextureView(t.tex, &hal.TextureViewDescriptor{
		Label:           fmt.Sprintf("%s_mip%d_layer%d", t.desc.Label, mipLevel, layer),
		Format:          t.desc.Format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		BaseMipLevel:    mipLevel,
		MipLevelCount:   1,
		BaseArrayLayer:  layer,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create attachment view %q: %w", t.desc.Label, err)
	}
	return view, nil
}

// Write uploads tightly packed pixel rows into mip level 0.
func (t *Texture) Write(data []byte, bytesPerRow uint32) error {
	return t.device.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, Aspect: gputypes.TextureAspectAll},
		data,
		&hal.ImageDataLayout{BytesPerRow: bytesPerRow, RowsPerImage: t.desc.Height},
		&hal.Extent3D{Width: t.desc.Width, Height: t.desc.Height, DepthOrArrayLayers: 1},
	)
}

// Destroy releases the view and the texture. Safe to call more than once.
func (t *Texture) Destroy() {
	if t.view != nil {
		t.device.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		t.device.device.DestroyTexture(t.tex)
		t.tex = nil
	}
}
