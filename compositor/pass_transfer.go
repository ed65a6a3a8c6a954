package compositor

import (
	"github.com/gogpu/rendercore"
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/render"
)

// ResolveMultisampleResourcePass resolves a multisampled framebuffer of the
// node into the current render target.
type ResolveMultisampleResourcePass struct {
	PassData
	SourceFramebufferID core.FramebufferID
}

type resolveRecord struct {
	SourceFramebufferID uint32
}

// TypeID returns ResolveMultisamplePassTypeID.
func (p *ResolveMultisampleResourcePass) TypeID() PassTypeID { return ResolveMultisamplePassTypeID }

// RenderQueueIndexRange reports no range.
func (p *ResolveMultisampleResourcePass) RenderQueueIndexRange() (uint8, uint8, bool) {
	return 0, 0, false
}

// Deserialize decodes the pass record.
func (p *ResolveMultisampleResourcePass) Deserialize(data []byte) error {
	var common passDataRecord
	var rec resolveRecord
	rest, err := decodeRecords(data, &common, &rec)
	if err != nil {
		return err
	}
	p.setRecord(common)
	p.SourceFramebufferID = core.FramebufferID(rec.SourceFramebufferID)
	return expectEnd(rest)
}

// Serialize encodes the pass record.
func (p *ResolveMultisampleResourcePass) Serialize() ([]byte, error) {
	return encodeRecords(nil, p.record(), resolveRecord{SourceFramebufferID: uint32(p.SourceFramebufferID)})
}

// ResolveMultisampleInstancePass records one resolve command.
type ResolveMultisampleInstancePass struct {
	instancePass
	resolve *ResolveMultisampleResourcePass
	warned  bool
}

func newResolveMultisampleInstancePass(resource ResourcePass, node *NodeInstance) (InstancePass, error) {
	return &ResolveMultisampleInstancePass{
		instancePass: instancePass{resource: resource, node: node},
		resolve:      resource.(*ResolveMultisampleResourcePass),
	}, nil
}

// FillCommandBuffer resolves the source framebuffer into target. A single
// sampled source is skipped.
func (p *ResolveMultisampleInstancePass) FillCommandBuffer(target render.RenderTarget, ctx *ContextData, cb *render.CommandBuffer) {
	src := ctx.Renderer.Framebuffers().FramebufferByCompositorFramebufferID(p.resolve.SourceFramebufferID,
		ctx.MainTarget, ctx.NumberOfMultisamples, ctx.ResolutionScale)
	if src == nil {
		if !p.warned {
			p.warned = true
			rendercore.Logger().Warn("compositor: resolve source unavailable",
				"framebuffer", uint32(p.resolve.SourceFramebufferID))
		}
		return
	}
	if src.SampleCount() < 2 || target.SampleCount() > 1 {
		return
	}
	cb.ResolveMultisample(target, src)
}

// CopyResourcePass copies one texture into another.
type CopyResourcePass struct {
	PassData
	DestinationTextureAssetID core.AssetID
	SourceTextureAssetID      core.AssetID
}

type copyRecord struct {
	DestinationTextureAssetID uint32
	SourceTextureAssetID      uint32
}

// TypeID returns CopyPassTypeID.
func (p *CopyResourcePass) TypeID() PassTypeID { return CopyPassTypeID }

// RenderQueueIndexRange reports no range.
func (p *CopyResourcePass) RenderQueueIndexRange() (uint8, uint8, bool) { return 0, 0, false }

// Deserialize decodes the pass record.
func (p *CopyResourcePass) Deserialize(data []byte) error {
	var common passDataRecord
	var rec copyRecord
	rest, err := decodeRecords(data, &common, &rec)
	if err != nil {
		return err
	}
	p.setRecord(common)
	p.DestinationTextureAssetID = core.AssetID(rec.DestinationTextureAssetID)
	p.SourceTextureAssetID = core.AssetID(rec.SourceTextureAssetID)
	return expectEnd(rest)
}

// Serialize encodes the pass record.
func (p *CopyResourcePass) Serialize() ([]byte, error) {
	return encodeRecords(nil, p.record(), copyRecord{
		DestinationTextureAssetID: uint32(p.DestinationTextureAssetID),
		SourceTextureAssetID:      uint32(p.SourceTextureAssetID),
	})
}

// CopyInstancePass records one texture copy.
type CopyInstancePass struct {
	instancePass
	cp     *CopyResourcePass
	warned bool
}

func newCopyInstancePass(resource ResourcePass, node *NodeInstance) (InstancePass, error) {
	return &CopyInstancePass{
		instancePass: instancePass{resource: resource, node: node},
		cp:           resource.(*CopyResourcePass),
	}, nil
}

// FillCommandBuffer copies the source into the destination texture. Render
// target textures are looked up first, then loaded textures.
func (p *CopyInstancePass) FillCommandBuffer(_ render.RenderTarget, ctx *ContextData, cb *render.CommandBuffer) {
	dst := ctx.texture(p.cp.DestinationTextureAssetID)
	src := ctx.texture(p.cp.SourceTextureAssetID)
	if dst == nil || src == nil {
		if !p.warned {
			p.warned = true
			rendercore.Logger().Warn("compositor: copy texture unavailable",
				"destination", uint32(p.cp.DestinationTextureAssetID),
				"source", uint32(p.cp.SourceTextureAssetID))
		}
		return
	}
	cb.CopyTexture(dst, src)
}
