package compositor

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore"
	"github.com/gogpu/rendercore/cache"
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/material"
	"github.com/gogpu/rendercore/render"
	"github.com/gogpu/rendercore/renderqueue"
)

// MaxShadowCascades is the largest supported cascade count.
const MaxShadowCascades = 4

// ShadowMapFormat is the depth format of shadow map textures.
const ShadowMapFormat = gputypes.TextureFormatDepth32Float

// ShadowMapResourcePass renders shadow casters of a render queue index range
// into a cascaded depth texture, one square viewport per cascade laid out
// horizontally.
type ShadowMapResourcePass struct {
	PassData
	SceneData

	// TextureAssetID publishes the shadow map to shaders.
	TextureAssetID core.AssetID
	// ShadowMapSize is the edge length of one cascade in pixels.
	ShadowMapSize    uint32
	NumberOfCascades uint8
	// NumberOfMultisamples is kept for asset compatibility; depth maps are
	// never multisampled.
	NumberOfMultisamples uint8
	// SplitsLambda blends logarithmic (1) and uniform (0) cascade splits.
	SplitsLambda float32
}

type shadowMapRecord struct {
	TextureAssetID uint32
	ShadowMapSize  uint32
	Cascades       uint8
	Multisamples   uint8
	_              [2]byte
	SplitsLambda   float32
}

// NewShadowMapResourcePass returns a four cascade pass of 1024² cascades.
func NewShadowMapResourcePass(textureID core.AssetID, minimum, maximum uint8) *ShadowMapResourcePass {
	p := &ShadowMapResourcePass{
		TextureAssetID:   textureID,
		ShadowMapSize:    1024,
		NumberOfCascades: MaxShadowCascades,
		SplitsLambda:     0.95,
	}
	p.SetRenderQueueIndexRange(minimum, maximum)
	return p
}

// TypeID returns ShadowMapPassTypeID.
func (p *ShadowMapResourcePass) TypeID() PassTypeID { return ShadowMapPassTypeID }

// Deserialize decodes the pass record.
func (p *ShadowMapResourcePass) Deserialize(data []byte) error {
	var common passDataRecord
	var scene sceneRecord
	var rec shadowMapRecord
	rest, err := decodeRecords(data, &common, &scene, &rec)
	if err != nil {
		return err
	}
	p.PassData.setRecord(common)
	p.SceneData.setRecord(scene)
	p.TextureAssetID = core.AssetID(rec.TextureAssetID)
	p.ShadowMapSize = rec.ShadowMapSize
	p.NumberOfCascades = rec.Cascades
	p.NumberOfMultisamples = rec.Multisamples
	p.SplitsLambda = rec.SplitsLambda
	return expectEnd(rest)
}

// Serialize encodes the pass record.
func (p *ShadowMapResourcePass) Serialize() ([]byte, error) {
	rec := shadowMapRecord{
		TextureAssetID: uint32(p.TextureAssetID),
		ShadowMapSize:  p.ShadowMapSize,
		Cascades:       p.NumberOfCascades,
		Multisamples:   p.NumberOfMultisamples,
		SplitsLambda:   p.SplitsLambda,
	}
	return encodeRecords(nil, p.PassData.record(), p.SceneData.record(), rec)
}

func (p *ShadowMapResourcePass) cascades() int {
	return int(min(max(p.NumberOfCascades, 1), MaxShadowCascades))
}

func (p *ShadowMapResourcePass) size() uint32 { return max(p.ShadowMapSize, 1) }

// ShadowMapInstancePass owns the shadow map texture and framebuffer.
type ShadowMapInstancePass struct {
	instancePass
	shadow *ShadowMapResourcePass
	queue  *renderqueue.RenderQueue

	textureSignature     cache.RenderTargetTextureSignature
	framebufferID        core.FramebufferID
	framebufferSignature cache.FramebufferSignature

	matrices []mgl32.Mat4
	splits   []float32
}

func newShadowMapInstancePass(resource ResourcePass, node *NodeInstance) (InstancePass, error) {
	sp := resource.(*ShadowMapResourcePass)
	r := node.Workspace().Renderer()
	p := &ShadowMapInstancePass{
		instancePass:  instancePass{resource: resource, node: node},
		shadow:        sp,
		queue:         renderqueue.New(sp.MinimumRenderQueueIndex, sp.MaximumRenderQueueIndex, false),
		framebufferID: core.FramebufferID(sp.TextureAssetID),
	}

	size := sp.size()
	p.textureSignature = cache.NewRenderTargetTextureSignature(size*uint32(sp.cascades()), size,
		ShadowMapFormat, cache.DataCompatibleFormat, 1, 1)
	if err := r.RenderTargetTextures().AddRenderTargetTexture(sp.TextureAssetID, p.textureSignature); err != nil {
		return nil, err
	}
	sig, err := cache.NewFramebufferSignature(nil, &cache.AttachmentSignature{TextureAssetID: sp.TextureAssetID})
	if err == nil {
		err = r.Framebuffers().AddFramebuffer(p.framebufferID, sig)
	}
	if err != nil {
		r.RenderTargetTextures().ReleaseRenderTargetTextureBySignature(p.textureSignature)
		return nil, err
	}
	p.framebufferSignature = sig
	return p, nil
}

// RenderQueue returns the queue filled during the last frame.
func (p *ShadowMapInstancePass) RenderQueue() *renderqueue.RenderQueue { return p.queue }

// ShadowMatrices returns the light view-projection matrix of each cascade
// computed during the last frame.
func (p *ShadowMapInstancePass) ShadowMatrices() []mgl32.Mat4 { return p.matrices }

// SplitDistances returns the far view distance of each cascade computed
// during the last frame.
func (p *ShadowMapInstancePass) SplitDistances() []float32 { return p.splits }

// FillCommandBuffer renders the shadow casters once per cascade and restores
// target. Nothing is recorded without a camera or a shadow casting light.
func (p *ShadowMapInstancePass) FillCommandBuffer(target render.RenderTarget, ctx *ContextData, cb *render.CommandBuffer) {
	p.queue.Clear()
	if ctx.Camera == nil || ctx.Light == nil || !ctx.Light.CastShadows {
		return
	}
	fb := ctx.Renderer.Framebuffers().FramebufferByCompositorFramebufferID(p.framebufferID,
		ctx.MainTarget, ctx.NumberOfMultisamples, ctx.ResolutionScale)
	if fb == nil {
		return
	}

	aspect := float32(1)
	if h := ctx.MainTarget.Height(); h > 0 {
		aspect = float32(ctx.MainTarget.Width()) / float32(h)
	}
	p.splits = cascadeSplits(ctx.Camera.NearPlane, ctx.Camera.FarPlane, p.shadow.cascades(), p.shadow.SplitsLambda)
	p.matrices = cascadeMatrices(ctx.Camera, aspect, p.splits, ctx.Light.Direction(), p.matrices[:0])

	gather(p.queue, &p.shadow.SceneData, ctx, true)

	size := float32(p.shadow.size())
	technique := p.shadow.technique(material.DepthOnlyTechniqueID)
	cb.SetRenderTarget(fb)
	cb.Clear(render.ClearDepth, gputypes.Color{}, 1, 0)
	for i := range p.matrices {
		cb.SetViewport(render.Viewport{X: float32(i) * size, Width: size, Height: size, MaxDepth: 1})
		p.queue.FillCommandBuffer(fb, technique, ctx.FillContext(), cb)
	}
	cb.SetRenderTarget(target)
}

// Release unregisters the shadow map texture and framebuffer.
func (p *ShadowMapInstancePass) Release() {
	r := p.node.Workspace().Renderer()
	r.Framebuffers().ReleaseFramebufferBySignature(p.framebufferSignature)
	r.RenderTargetTextures().ReleaseRenderTargetTextureBySignature(p.textureSignature)
	rendercore.Logger().Debug("compositor: shadow map released", "texture", uint32(p.shadow.TextureAssetID))
}
