package cache

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore"
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/render"
	"github.com/gogpu/rendercore/texture"
)

type renderTargetTextureElement struct {
	signature      RenderTargetTextureSignature
	texture        *render.Texture
	referenceCount uint32
}

// RenderTargetTextureManager deduplicates render-target textures by
// signature. Materialized textures are published to a texture.Manager under
// every asset id declaring them.
type RenderTargetTextureManager struct {
	device   *render.Device
	textures *texture.Manager

	elements  []renderTargetTextureElement // sorted by signature id
	byAssetID map[core.AssetID]uint32      // asset id → signature id
}

// NewRenderTargetTextureManager creates an empty manager. textures may be nil
// when nothing samples render targets.
func NewRenderTargetTextureManager(d *render.Device, textures *texture.Manager) *RenderTargetTextureManager {
	return &RenderTargetTextureManager{
		device:    d,
		textures:  textures,
		byAssetID: make(map[core.AssetID]uint32),
	}
}

func (m *RenderTargetTextureManager) search(id uint32) (int, bool) {
	return slices.BinarySearchFunc(m.elements, id, func(e renderTargetTextureElement, id uint32) int {
		switch {
		case e.signature.id < id:
			return -1
		case e.signature.id > id:
			return 1
		}
		return 0
	})
}

// AddRenderTargetTexture declares the texture id with signature sig and
// takes a reference on it. No GPU memory is allocated. Declaring an id again
// with a different signature returns ErrConflictingSignature.
func (m *RenderTargetTextureManager) AddRenderTargetTexture(id core.AssetID, sig RenderTargetTextureSignature) error {
	if known, ok := m.byAssetID[id]; ok && known != sig.id {
		return fmt.Errorf("%w: texture asset %08x is %08x, redeclared as %08x",
			ErrConflictingSignature, uint32(id), known, sig.id)
	}
	i, found := m.search(sig.id)
	if !found {
		m.elements = slices.Insert(m.elements, i, renderTargetTextureElement{signature: sig})
	}
	m.elements[i].referenceCount++
	m.byAssetID[id] = sig.id
	if m.textures != nil {
		if _, ok := m.textures.Lookup(id); !ok {
			m.textures.Publish(id, m.elements[i].texture)
		}
	}
	return nil
}

// SignatureByAssetID returns the signature declared for id.
func (m *RenderTargetTextureManager) SignatureByAssetID(id core.AssetID) (RenderTargetTextureSignature, bool) {
	sigID, ok := m.byAssetID[id]
	if !ok {
		return RenderTargetTextureSignature{}, false
	}
	i, found := m.search(sigID)
	if !found {
		return RenderTargetTextureSignature{}, false
	}
	return m.elements[i].signature, true
}

// TextureByAssetID returns the texture declared under id, creating it against
// mainTarget on first use. It returns nil for undeclared ids or when the GPU
// object cannot be created.
func (m *RenderTargetTextureManager) TextureByAssetID(id core.AssetID, mainTarget render.RenderTarget, numberOfMultisamples uint8, resolutionScale float32) *render.Texture {
	sigID, ok := m.byAssetID[id]
	if !ok {
		return nil
	}
	i, found := m.search(sigID)
	if !found {
		return nil
	}
	e := &m.elements[i]
	if e.texture != nil {
		return e.texture
	}

	sig := e.signature
	width, height := sig.Size(mainTarget.Width(), mainTarget.Height(), resolutionScale)
	mips := uint32(1)
	if sig.flags&GenerateMipmaps != 0 {
		mips = render.FullMipLevelCount(width, height)
	}
	usage := gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding |
		gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	tex, err := m.device.CreateTexture(render.TextureDescriptor{
		Label:         fmt.Sprintf("rtt_%08x", sig.id),
		Width:         width,
		Height:        height,
		MipLevelCount: mips,
		SampleCount:   sig.SampleCount(numberOfMultisamples),
		Format:        sig.format,
		Usage:         usage,
	})
	if err != nil {
		rendercore.Logger().Warn("cache: render target texture creation failed",
			"asset", uint32(id), "err", err)
		return nil
	}
	e.texture = tex
	rendercore.Logger().Debug("cache: render target texture created",
		"signature", sig.id, "width", width, "height", height, "format", sig.format.String())
	m.publish(sig.id, tex)
	return tex
}

// publish refreshes the texture handle of every asset id declaring sigID.
func (m *RenderTargetTextureManager) publish(sigID uint32, tex *render.Texture) {
	if m.textures == nil {
		return
	}
	for assetID, s := range m.byAssetID {
		if s == sigID {
			m.textures.Publish(assetID, tex)
		}
	}
}

// ReleaseRenderTargetTextureBySignature drops one reference. The last
// reference destroys the texture and forgets the asset ids declaring it.
// Releasing an unregistered signature panics.
func (m *RenderTargetTextureManager) ReleaseRenderTargetTextureBySignature(sig RenderTargetTextureSignature) {
	i, found := m.search(sig.id)
	if !found {
		panic(fmt.Sprintf("cache: release of unregistered render target texture signature %08x", sig.id))
	}
	e := &m.elements[i]
	e.referenceCount--
	if e.referenceCount > 0 {
		return
	}
	if e.texture != nil {
		e.texture.Destroy()
	}
	for assetID, s := range m.byAssetID {
		if s == sig.id {
			delete(m.byAssetID, assetID)
			if m.textures != nil {
				m.textures.Unpublish(assetID)
			}
		}
	}
	m.elements = slices.Delete(m.elements, i, i+1)
}

// ClearRendererResources destroys every texture but keeps the declarations;
// the next lookup recreates them.
func (m *RenderTargetTextureManager) ClearRendererResources() {
	for i := range m.elements {
		e := &m.elements[i]
		if e.texture != nil {
			e.texture.Destroy()
			e.texture = nil
			m.publish(e.signature.id, nil)
		}
	}
}

// Len returns the number of distinct signatures.
func (m *RenderTargetTextureManager) Len() int { return len(m.elements) }

// ReferenceCount returns the number of declarations of sig.
func (m *RenderTargetTextureManager) ReferenceCount(sig RenderTargetTextureSignature) uint32 {
	if i, found := m.search(sig.id); found {
		return m.elements[i].referenceCount
	}
	return 0
}

// Materialized reports whether the texture of sig currently exists.
func (m *RenderTargetTextureManager) Materialized(sig RenderTargetTextureSignature) bool {
	i, found := m.search(sig.id)
	return found && m.elements[i].texture != nil
}
