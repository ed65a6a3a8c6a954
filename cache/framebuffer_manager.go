package cache

import (
	"fmt"
	"slices"

	"github.com/gogpu/rendercore"
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/render"
)

type framebufferElement struct {
	signature      FramebufferSignature
	framebuffer    *render.Framebuffer
	referenceCount uint32
}

// FramebufferManager deduplicates framebuffers by signature. Attachment
// textures are resolved through a RenderTargetTextureManager.
type FramebufferManager struct {
	textures *RenderTargetTextureManager

	elements []framebufferElement // sorted by signature id
	byID     map[core.FramebufferID]uint32
}

// NewFramebufferManager creates an empty manager resolving attachments from
// textures.
func NewFramebufferManager(textures *RenderTargetTextureManager) *FramebufferManager {
	return &FramebufferManager{
		textures: textures,
		byID:     make(map[core.FramebufferID]uint32),
	}
}

func (m *FramebufferManager) search(id uint32) (int, bool) {
	return slices.BinarySearchFunc(m.elements, id, func(e framebufferElement, id uint32) int {
		switch {
		case e.signature.id < id:
			return -1
		case e.signature.id > id:
			return 1
		}
		return 0
	})
}

// AddFramebuffer declares the framebuffer id with signature sig and takes a
// reference on it. Declaring an id again with a different signature returns
// ErrConflictingSignature.
func (m *FramebufferManager) AddFramebuffer(id core.FramebufferID, sig FramebufferSignature) error {
	if known, ok := m.byID[id]; ok && known != sig.id {
		return fmt.Errorf("%w: framebuffer %08x is %08x, redeclared as %08x",
			ErrConflictingSignature, uint32(id), known, sig.id)
	}
	i, found := m.search(sig.id)
	if !found {
		m.elements = slices.Insert(m.elements, i, framebufferElement{signature: sig})
	}
	m.elements[i].referenceCount++
	m.byID[id] = sig.id
	return nil
}

// SignatureByCompositorFramebufferID returns the signature declared for id.
func (m *FramebufferManager) SignatureByCompositorFramebufferID(id core.FramebufferID) (FramebufferSignature, bool) {
	sigID, ok := m.byID[id]
	if !ok {
		return FramebufferSignature{}, false
	}
	i, found := m.search(sigID)
	if !found {
		return FramebufferSignature{}, false
	}
	return m.elements[i].signature, true
}

// FramebufferByCompositorFramebufferID returns the framebuffer declared under
// id, creating it and its attachment textures against mainTarget on first
// use. It returns nil when id is undeclared or an attachment is unavailable.
func (m *FramebufferManager) FramebufferByCompositorFramebufferID(id core.FramebufferID, mainTarget render.RenderTarget, numberOfMultisamples uint8, resolutionScale float32) *render.Framebuffer {
	sigID, ok := m.byID[id]
	if !ok {
		return nil
	}
	i, found := m.search(sigID)
	if !found {
		return nil
	}
	e := &m.elements[i]
	if e.framebuffer != nil {
		return e.framebuffer
	}

	sig := e.signature
	resolve := func(a AttachmentSignature) (render.FramebufferAttachment, bool) {
		tex := m.textures.TextureByAssetID(a.TextureAssetID, mainTarget, numberOfMultisamples, resolutionScale)
		if tex == nil {
			rendercore.Logger().Warn("cache: framebuffer attachment unavailable",
				"framebuffer", uint32(id), "texture", uint32(a.TextureAssetID))
			return render.FramebufferAttachment{}, false
		}
		return render.FramebufferAttachment{
			Texture:  tex,
			MipLevel: uint32(a.MipmapIndex),
			Layer:    uint32(a.LayerIndex),
		}, true
	}

	colors := make([]render.FramebufferAttachment, 0, sig.numberOfColorAttachments)
	for _, a := range sig.colors[:sig.numberOfColorAttachments] {
		att, ok := resolve(a)
		if !ok {
			return nil
		}
		colors = append(colors, att)
	}
	var depthStencil *render.FramebufferAttachment
	if a, ok := sig.DepthStencilAttachment(); ok {
		att, ok := resolve(a)
		if !ok {
			return nil
		}
		depthStencil = &att
	}

	fb, err := m.textures.device.CreateFramebuffer(colors, depthStencil)
	if err != nil {
		rendercore.Logger().Warn("cache: framebuffer creation failed",
			"framebuffer", uint32(id), "err", err)
		return nil
	}
	e.framebuffer = fb
	rendercore.Logger().Debug("cache: framebuffer created",
		"signature", sig.id, "width", fb.Width(), "height", fb.Height())
	return fb
}

// ReleaseFramebufferBySignature drops one reference. The last reference
// destroys the framebuffer and forgets the ids declaring it. Releasing an
// unregistered signature panics.
func (m *FramebufferManager) ReleaseFramebufferBySignature(sig FramebufferSignature) {
	i, found := m.search(sig.id)
	if !found {
		panic(fmt.Sprintf("cache: release of unregistered framebuffer signature %08x", sig.id))
	}
	e := &m.elements[i]
	e.referenceCount--
	if e.referenceCount > 0 {
		return
	}
	if e.framebuffer != nil {
		e.framebuffer.Destroy()
	}
	for id, s := range m.byID {
		if s == sig.id {
			delete(m.byID, id)
		}
	}
	m.elements = slices.Delete(m.elements, i, i+1)
}

// ClearRendererResources destroys every framebuffer but keeps the
// declarations. Attachment textures are cleared by their own manager.
func (m *FramebufferManager) ClearRendererResources() {
	for i := range m.elements {
		if fb := m.elements[i].framebuffer; fb != nil {
			fb.Destroy()
			m.elements[i].framebuffer = nil
		}
	}
}

// Len returns the number of distinct signatures.
func (m *FramebufferManager) Len() int { return len(m.elements) }

// ReferenceCount returns the number of declarations of sig.
func (m *FramebufferManager) ReferenceCount(sig FramebufferSignature) uint32 {
	if i, found := m.search(sig.id); found {
		return m.elements[i].referenceCount
	}
	return 0
}

// Materialized reports whether the framebuffer of sig currently exists.
func (m *FramebufferManager) Materialized(sig FramebufferSignature) bool {
	i, found := m.search(sig.id)
	return found && m.elements[i].framebuffer != nil
}
