package cache

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/core"
)

// MaxColorAttachments is the maximum number of color attachments in a
// framebuffer signature.
const MaxColorAttachments = 8

// AttachmentSignature references a mip level and array layer of a
// render-target texture by asset id.
type AttachmentSignature struct {
	TextureAssetID core.AssetID
	MipmapIndex    uint8
	LayerIndex     uint8
}

// FramebufferSignature describes the attachments of a framebuffer. Two
// signatures with equal attachments have equal ids.
type FramebufferSignature struct {
	numberOfColorAttachments uint8
	colors                   [MaxColorAttachments]AttachmentSignature
	depthStencil             AttachmentSignature
	id                       uint32
}

// NewFramebufferSignature builds a signature from up to MaxColorAttachments
// color attachments and an optional depth-stencil attachment. Extra color
// attachments are an error.
func NewFramebufferSignature(colors []AttachmentSignature, depthStencil *AttachmentSignature) (FramebufferSignature, error) {
	if len(colors) > MaxColorAttachments {
		return FramebufferSignature{}, fmt.Errorf("cache: %d color attachments, at most %d", len(colors), MaxColorAttachments)
	}
	s := FramebufferSignature{
		numberOfColorAttachments: uint8(len(colors)), //nolint:gosec // bounded above
		depthStencil:             AttachmentSignature{TextureAssetID: core.InvalidAssetID},
	}
	copy(s.colors[:], colors)
	if depthStencil != nil {
		s.depthStencil = *depthStencil
	}

	h := core.NewHasher().Uint8(s.numberOfColorAttachments)
	for _, a := range s.colors[:s.numberOfColorAttachments] {
		hashAttachment(h, a)
	}
	hashAttachment(h, s.depthStencil)
	s.id = h.Sum()
	return s, nil
}

func hashAttachment(h *core.Hasher, a AttachmentSignature) {
	h.Uint32(uint32(a.TextureAssetID)).Uint8(a.MipmapIndex).Uint8(a.LayerIndex)
}

// ID returns the content hash.
func (s FramebufferSignature) ID() uint32 { return s.id }

// NumberOfColorAttachments returns the color attachment count.
func (s FramebufferSignature) NumberOfColorAttachments() int { return int(s.numberOfColorAttachments) }

// ColorAttachment returns color attachment i.
func (s FramebufferSignature) ColorAttachment(i int) AttachmentSignature { return s.colors[i] }

// DepthStencilAttachment returns the depth-stencil attachment, if any.
func (s FramebufferSignature) DepthStencilAttachment() (AttachmentSignature, bool) {
	return s.depthStencil, s.depthStencil.TextureAssetID.IsValid()
}

// TextureFlags control how a render-target texture is created.
type TextureFlags uint8

const (
	// AllowMultisample creates the texture with the workspace sample count.
	AllowMultisample TextureFlags = 1 << iota
	// GenerateMipmaps allocates the full mip chain.
	GenerateMipmaps
	// AllowResolutionScale applies the workspace resolution scale.
	AllowResolutionScale
	// DataCompatibleFormat marks a texture that is read back or copied
	// bit-exact; it is never multisampled.
	DataCompatibleFormat
)

// UnspecifiedSize as a width or height means the dimension is derived from
// the main render target multiplied by the signature scale.
const UnspecifiedSize uint32 = 0

// RenderTargetTextureSignature describes a render-target texture. Two
// signatures with equal fields have equal ids.
type RenderTargetTextureSignature struct {
	width, height           uint32
	format                  gputypes.TextureFormat
	flags                   TextureFlags
	widthScale, heightScale float32
	id                      uint32
}

// NewRenderTargetTextureSignature builds a signature. Scales of zero are
// treated as 1.
func NewRenderTargetTextureSignature(width, height uint32, format gputypes.TextureFormat, flags TextureFlags, widthScale, heightScale float32) RenderTargetTextureSignature {
	if widthScale <= 0 {
		widthScale = 1
	}
	if heightScale <= 0 {
		heightScale = 1
	}
	s := RenderTargetTextureSignature{
		width:       width,
		height:      height,
		format:      format,
		flags:       flags,
		widthScale:  widthScale,
		heightScale: heightScale,
	}
	s.id = core.NewHasher().
		Uint32(width).
		Uint32(height).
		Uint32(uint32(format)).
		Uint8(uint8(flags)).
		Uint32(math.Float32bits(widthScale)).
		Uint32(math.Float32bits(heightScale)).
		Sum()
	return s
}

// ID returns the content hash.
func (s RenderTargetTextureSignature) ID() uint32 { return s.id }

// Width returns the declared width or UnspecifiedSize.
func (s RenderTargetTextureSignature) Width() uint32 { return s.width }

// Height returns the declared height or UnspecifiedSize.
func (s RenderTargetTextureSignature) Height() uint32 { return s.height }

// Format returns the texture format.
func (s RenderTargetTextureSignature) Format() gputypes.TextureFormat { return s.format }

// Flags returns the creation flags.
func (s RenderTargetTextureSignature) Flags() TextureFlags { return s.flags }

// Scale returns the width and height scale.
func (s RenderTargetTextureSignature) Scale() (float32, float32) { return s.widthScale, s.heightScale }

// Size returns the concrete texture size for a main target of mainWidth ×
// mainHeight. Unspecified dimensions follow the main target times the
// signature scale; AllowResolutionScale additionally applies
// resolutionScale. Sizes are at least 1.
func (s RenderTargetTextureSignature) Size(mainWidth, mainHeight uint32, resolutionScale float32) (uint32, uint32) {
	w, h := float32(s.width), float32(s.height)
	if s.width == UnspecifiedSize {
		w = float32(mainWidth) * s.widthScale
	}
	if s.height == UnspecifiedSize {
		h = float32(mainHeight) * s.heightScale
	}
	if s.flags&AllowResolutionScale != 0 && resolutionScale > 0 {
		w *= resolutionScale
		h *= resolutionScale
	}
	return max(uint32(w), 1), max(uint32(h), 1)
}

// SampleCount returns the sample count for a workspace multisample setting.
func (s RenderTargetTextureSignature) SampleCount(numberOfMultisamples uint8) uint32 {
	if s.flags&AllowMultisample == 0 || s.flags&DataCompatibleFormat != 0 || numberOfMultisamples < 2 {
		return 1
	}
	return uint32(numberOfMultisamples)
}

// Binary records as stored in compositor node assets.
type (
	attachmentRecord struct {
		TextureAssetID uint32
		MipmapIndex    uint8
		LayerIndex     uint8
		_              [2]byte
	}

	framebufferRecord struct {
		NumberOfColorAttachments uint8
		HasDepthStencil          uint8
		_                        [2]byte
		Colors                   [MaxColorAttachments]attachmentRecord
		DepthStencil             attachmentRecord
	}

	renderTargetTextureRecord struct {
		Width, Height uint32
		Format        uint32
		Flags         uint8
		_             [3]byte
		WidthScale    float32
		HeightScale   float32
	}
)

var (
	// FramebufferSignatureSize is the encoded size of a FramebufferSignature.
	FramebufferSignatureSize = binary.Size(framebufferRecord{})
	// RenderTargetTextureSignatureSize is the encoded size of a
	// RenderTargetTextureSignature.
	RenderTargetTextureSignatureSize = binary.Size(renderTargetTextureRecord{})
)

// MarshalBinary encodes the signature as a little-endian record.
func (s FramebufferSignature) MarshalBinary() ([]byte, error) {
	r := framebufferRecord{NumberOfColorAttachments: s.numberOfColorAttachments}
	for i, a := range s.colors[:s.numberOfColorAttachments] {
		r.Colors[i] = attachmentRecord{TextureAssetID: uint32(a.TextureAssetID), MipmapIndex: a.MipmapIndex, LayerIndex: a.LayerIndex}
	}
	if ds, ok := s.DepthStencilAttachment(); ok {
		r.HasDepthStencil = 1
		r.DepthStencil = attachmentRecord{TextureAssetID: uint32(ds.TextureAssetID), MipmapIndex: ds.MipmapIndex, LayerIndex: ds.LayerIndex}
	}
	buf := make([]byte, FramebufferSignatureSize)
	if _, err := binary.Encode(buf, binary.LittleEndian, &r); err != nil {
		return nil, err
	}
	return buf, nil
}

// UnmarshalBinary decodes a record written by MarshalBinary.
func (s *FramebufferSignature) UnmarshalBinary(data []byte) error {
	var r framebufferRecord
	if _, err := binary.Decode(data, binary.LittleEndian, &r); err != nil {
		return fmt.Errorf("cache: framebuffer signature: %w", err)
	}
	if int(r.NumberOfColorAttachments) > MaxColorAttachments {
		return fmt.Errorf("cache: framebuffer signature has %d color attachments", r.NumberOfColorAttachments)
	}
	colors := make([]AttachmentSignature, r.NumberOfColorAttachments)
	for i := range colors {
		c := r.Colors[i]
		colors[i] = AttachmentSignature{TextureAssetID: core.AssetID(c.TextureAssetID), MipmapIndex: c.MipmapIndex, LayerIndex: c.LayerIndex}
	}
	var ds *AttachmentSignature
	if r.HasDepthStencil != 0 {
		ds = &AttachmentSignature{
			TextureAssetID: core.AssetID(r.DepthStencil.TextureAssetID),
			MipmapIndex:    r.DepthStencil.MipmapIndex,
			LayerIndex:     r.DepthStencil.LayerIndex,
		}
	}
	sig, err := NewFramebufferSignature(colors, ds)
	if err != nil {
		return err
	}
	*s = sig
	return nil
}

// MarshalBinary encodes the signature as a little-endian record.
func (s RenderTargetTextureSignature) MarshalBinary() ([]byte, error) {
	r := renderTargetTextureRecord{
		Width:       s.width,
		Height:      s.height,
		Format:      uint32(s.format),
		Flags:       uint8(s.flags),
		WidthScale:  s.widthScale,
		HeightScale: s.heightScale,
	}
	buf := make([]byte, RenderTargetTextureSignatureSize)
	if _, err := binary.Encode(buf, binary.LittleEndian, &r); err != nil {
		return nil, err
	}
	return buf, nil
}

// UnmarshalBinary decodes a record written by MarshalBinary.
func (s *RenderTargetTextureSignature) UnmarshalBinary(data []byte) error {
	var r renderTargetTextureRecord
	if _, err := binary.Decode(data, binary.LittleEndian, &r); err != nil {
		return fmt.Errorf("cache: render target texture signature: %w", err)
	}
	*s = NewRenderTargetTextureSignature(r.Width, r.Height, gputypes.TextureFormat(r.Format),
		TextureFlags(r.Flags), r.WidthScale, r.HeightScale)
	return nil
}
