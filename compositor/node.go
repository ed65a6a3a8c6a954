package compositor

import (
	"fmt"
	"slices"

	"github.com/gogpu/rendercore/asset"
	"github.com/gogpu/rendercore/cache"
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/render"
)

// Target is an ordered list of passes rendering into one channel.
type Target struct {
	node          *NodeResource
	channelID     core.ChannelID
	framebufferID core.FramebufferID
	passes        []ResourcePass
}

// Node returns the owning node resource.
func (t *Target) Node() *NodeResource { return t.node }

// ChannelID returns the channel the target renders into.
func (t *Target) ChannelID() core.ChannelID { return t.channelID }

// FramebufferID returns the framebuffer declared for the target, or
// core.InvalidFramebufferID when the channel decides.
func (t *Target) FramebufferID() core.FramebufferID { return t.framebufferID }

// Passes returns the passes in execution order.
func (t *Target) Passes() []ResourcePass { return t.passes }

// AddPass appends p and takes ownership of it.
func (t *Target) AddPass(p ResourcePass) ResourcePass {
	p.Data().target = t
	t.passes = append(t.passes, p)
	return p
}

// RenderTargetTextureDeclaration declares a render-target texture.
type RenderTargetTextureDeclaration struct {
	AssetID   core.AssetID
	Signature cache.RenderTargetTextureSignature
}

// FramebufferDeclaration declares a framebuffer.
type FramebufferDeclaration struct {
	ID        core.FramebufferID
	Signature cache.FramebufferSignature
}

// NodeResource is the static description of a compositor node. It is shared
// by every workspace referencing it and must not change while instances of
// it exist.
type NodeResource struct {
	asset.Resource

	InputChannels        []core.ChannelID
	OutputChannels       []core.ChannelID
	RenderTargetTextures []RenderTargetTextureDeclaration
	Framebuffers         []FramebufferDeclaration

	targets []*Target
}

// NewNodeResource returns an empty, Loaded node resource.
func NewNodeResource(id core.AssetID) *NodeResource {
	n := &NodeResource{}
	n.Init(id)
	n.SetLoadingState(asset.Loaded)
	return n
}

// AddTarget appends a target rendering into channel. Pass
// core.InvalidFramebufferID to resolve the channel instead of a framebuffer
// of the node.
func (n *NodeResource) AddTarget(channel core.ChannelID, framebuffer core.FramebufferID) *Target {
	t := &Target{node: n, channelID: channel, framebufferID: framebuffer}
	n.targets = append(n.targets, t)
	return t
}

// Targets returns the targets in execution order.
func (n *NodeResource) Targets() []*Target { return n.targets }

// AddRenderTargetTexture declares a render-target texture.
func (n *NodeResource) AddRenderTargetTexture(id core.AssetID, sig cache.RenderTargetTextureSignature) {
	n.RenderTargetTextures = append(n.RenderTargetTextures, RenderTargetTextureDeclaration{AssetID: id, Signature: sig})
}

// AddFramebuffer declares a framebuffer.
func (n *NodeResource) AddFramebuffer(id core.FramebufferID, sig cache.FramebufferSignature) {
	n.Framebuffers = append(n.Framebuffers, FramebufferDeclaration{ID: id, Signature: sig})
}

// Validate reports configuration errors: unknown pass kinds, passes that
// need a render queue index range without declaring one, and ids declared
// twice with different signatures.
func (n *NodeResource) Validate(factory *PassFactory) error {
	textures := make(map[core.AssetID]uint32, len(n.RenderTargetTextures))
	for _, d := range n.RenderTargetTextures {
		if id, ok := textures[d.AssetID]; ok && id != d.Signature.ID() {
			return fmt.Errorf("%w: texture %08x", cache.ErrConflictingSignature, uint32(d.AssetID))
		}
		textures[d.AssetID] = d.Signature.ID()
	}
	framebuffers := make(map[core.FramebufferID]uint32, len(n.Framebuffers))
	for _, d := range n.Framebuffers {
		if id, ok := framebuffers[d.ID]; ok && id != d.Signature.ID() {
			return fmt.Errorf("%w: framebuffer %08x", cache.ErrConflictingSignature, uint32(d.ID))
		}
		framebuffers[d.ID] = d.Signature.ID()
	}

	for ti, t := range n.targets {
		for pi, p := range t.passes {
			if factory != nil && !factory.Has(p.TypeID()) {
				return fmt.Errorf("%w: %08x (target %d, pass %d)", ErrUnknownPassType, uint32(p.TypeID()), ti, pi)
			}
			if r, ok := p.(rangeRequirer); ok && r.requiresRenderQueueIndexRange() {
				if _, _, ok := p.RenderQueueIndexRange(); !ok {
					return fmt.Errorf("%w (node %08x, target %d, pass %d)",
						ErrMissingRenderQueueRange, uint32(n.ID()), ti, pi)
				}
			}
		}
	}
	return nil
}

// assign replaces the content of n with that of o, keeping n's identity and
// listeners.
func (n *NodeResource) assign(o *NodeResource) {
	n.InputChannels = o.InputChannels
	n.OutputChannels = o.OutputChannels
	n.RenderTargetTextures = o.RenderTargetTextures
	n.Framebuffers = o.Framebuffers
	n.targets = o.targets
	for _, t := range n.targets {
		t.node = n
	}
}

// targetInstance binds a resource target to the framebuffer it renders
// into. An invalid framebuffer id means the main render target.
type targetInstance struct {
	resource      *Target
	framebufferID core.FramebufferID
	passes        []InstancePass
}

// NodeInstance is the runtime counterpart of a NodeResource inside one
// workspace.
type NodeInstance struct {
	workspace *WorkspaceInstance
	resource  *NodeResource
	targets   []targetInstance
	passes    []InstancePass
}

// Workspace returns the owning workspace.
func (n *NodeInstance) Workspace() *WorkspaceInstance { return n.workspace }

// Resource returns the node description.
func (n *NodeInstance) Resource() *NodeResource { return n.resource }

// Passes returns every instance pass in execution order.
func (n *NodeInstance) Passes() []InstancePass { return n.passes }

// newNodeInstance instantiates the passes of resource. channels maps the
// channels produced by earlier nodes to their framebuffers.
func newNodeInstance(w *WorkspaceInstance, resource *NodeResource, channels map[core.ChannelID]core.FramebufferID) (*NodeInstance, error) {
	n := &NodeInstance{workspace: w, resource: resource}
	factory := w.renderer.PassFactory()
	for _, t := range resource.targets {
		ti := targetInstance{resource: t, framebufferID: n.resolveChannel(t, channels)}
		for _, p := range t.passes {
			ip, err := factory.NewInstancePass(p, n)
			if err != nil {
				n.release()
				return nil, fmt.Errorf("compositor: instantiate %s pass of node %08x: %w",
					factory.Name(p.TypeID()), uint32(resource.ID()), err)
			}
			ti.passes = append(ti.passes, ip)
			n.passes = append(n.passes, ip)
		}
		n.targets = append(n.targets, ti)
	}

	for _, ti := range n.targets {
		if slices.Contains(resource.OutputChannels, ti.resource.channelID) {
			channels[ti.resource.channelID] = ti.framebufferID
		}
	}
	return n, nil
}

// resolveChannel picks the framebuffer of a target: its own declaration,
// then a channel produced by an earlier node if the node reads it as input,
// otherwise the main render target.
func (n *NodeInstance) resolveChannel(t *Target, channels map[core.ChannelID]core.FramebufferID) core.FramebufferID {
	if t.framebufferID.IsValid() {
		return t.framebufferID
	}
	if slices.Contains(n.resource.InputChannels, t.channelID) {
		if id, ok := channels[t.channelID]; ok {
			return id
		}
	}
	return core.InvalidFramebufferID
}

// fillCommandBuffer records every target of the node in order.
func (n *NodeInstance) fillCommandBuffer(main render.RenderTarget, ctx *ContextData, cb *render.CommandBuffer) {
	cb.BeginDebugEvent(fmt.Sprintf("node_%08x", uint32(n.resource.ID())))
	defer cb.EndDebugEvent()

	for i := range n.targets {
		ti := &n.targets[i]
		target := main
		if ti.framebufferID.IsValid() {
			fb := ctx.Renderer.Framebuffers().FramebufferByCompositorFramebufferID(ti.framebufferID,
				main, ctx.NumberOfMultisamples, ctx.ResolutionScale)
			if fb == nil {
				continue
			}
			target = fb
		}
		cb.SetRenderTarget(target)

		for _, p := range ti.passes {
			data := p.Resource().Data()
			minDepth, maxDepth, custom := data.depthRange()
			for e := range data.Executions() {
				if e == 0 && data.SkipFirstExecution {
					continue
				}
				if custom {
					cb.SetViewport(render.Viewport{
						Width:    float32(target.Width()),
						Height:   float32(target.Height()),
						MinDepth: minDepth,
						MaxDepth: maxDepth,
					})
				}
				ctx.ExecutionIndex = e
				p.FillCommandBuffer(target, ctx, cb)
			}
			if custom {
				cb.SetViewport(render.Viewport{
					Width:    float32(target.Width()),
					Height:   float32(target.Height()),
					MaxDepth: 1,
				})
			}
		}
	}
	ctx.ExecutionIndex = 0
}

func (n *NodeInstance) postCommandBufferExecution() {
	for _, p := range n.passes {
		p.PostCommandBufferExecution()
	}
}

func (n *NodeInstance) release() {
	for _, p := range slices.Backward(n.passes) {
		p.Release()
	}
	n.passes = nil
	n.targets = nil
}
