package compositor

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/rendercore"
	"github.com/gogpu/rendercore/asset"
	"github.com/gogpu/rendercore/cache"
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/render"
	"github.com/gogpu/rendercore/scene"
)

// WorkspaceResource is an ordered list of node references. Node order is
// execution order.
type WorkspaceResource struct {
	asset.Resource
	nodes []core.AssetID
}

// NewWorkspaceResource returns a Loaded workspace referencing nodes.
func NewWorkspaceResource(id core.AssetID, nodes ...core.AssetID) *WorkspaceResource {
	w := &WorkspaceResource{nodes: slices.Clone(nodes)}
	w.Init(id)
	w.SetLoadingState(asset.Loaded)
	return w
}

// Nodes returns the node asset ids in execution order.
func (w *WorkspaceResource) Nodes() []core.AssetID { return w.nodes }

// RenderQueueIndexRange is one entry of the merged range table. Its
// RenderableManagers list is rebuilt every frame.
type RenderQueueIndexRange struct {
	MinimumRenderQueueIndex uint8
	MaximumRenderQueueIndex uint8
	RenderableManagers      []*scene.RenderableManager
}

// Contains reports whether idx lies in the range.
func (r *RenderQueueIndexRange) Contains(idx uint8) bool {
	return idx >= r.MinimumRenderQueueIndex && idx <= r.MaximumRenderQueueIndex
}

// mergeRenderQueueIndexRanges sorts ranges by lower bound and folds
// overlapping or adjacent ones.
func mergeRenderQueueIndexRanges(ranges []RenderQueueIndexRange) []RenderQueueIndexRange {
	slices.SortFunc(ranges, func(a, b RenderQueueIndexRange) int {
		return cmp.Compare(a.MinimumRenderQueueIndex, b.MinimumRenderQueueIndex)
	})
	merged := ranges[:0]
	for _, r := range ranges {
		if n := len(merged); n > 0 && int(r.MinimumRenderQueueIndex) <= int(merged[n-1].MaximumRenderQueueIndex)+1 {
			merged[n-1].MaximumRenderQueueIndex = max(merged[n-1].MaximumRenderQueueIndex, r.MaximumRenderQueueIndex)
			continue
		}
		merged = append(merged, RenderQueueIndexRange{
			MinimumRenderQueueIndex: r.MinimumRenderQueueIndex,
			MaximumRenderQueueIndex: r.MaximumRenderQueueIndex,
		})
	}
	return merged
}

// WorkspaceOption configures a WorkspaceInstance.
type WorkspaceOption func(*WorkspaceInstance)

// WithNumberOfMultisamples sets the sample count of multisample-capable
// render-target textures.
func WithNumberOfMultisamples(n uint8) WorkspaceOption {
	return func(w *WorkspaceInstance) { w.numberOfMultisamples = max(n, 1) }
}

// WithResolutionScale scales render-target textures allowing it.
func WithResolutionScale(scale float32) WorkspaceOption {
	return func(w *WorkspaceInstance) {
		if scale > 0 {
			w.resolutionScale = scale
		}
	}
}

// WithScene sets the scene whose renderables are gathered each frame.
func WithScene(s *scene.Scene) WorkspaceOption {
	return func(w *WorkspaceInstance) { w.scene = s }
}

// WorkspaceInstance executes the nodes of a workspace resource each frame.
//
// The graph is built when the workspace resource and every node it
// references are Loaded, and rebuilt on every later load. A rebuild
// requested while Execute runs waits for the end of the frame.
type WorkspaceInstance struct {
	renderer *Renderer
	resource *WorkspaceResource

	scene                *scene.Scene
	numberOfMultisamples uint8
	resolutionScale      float32

	nodes   []*NodeInstance
	ranges  []RenderQueueIndexRange
	built   bool
	listens []*NodeResource

	// Signatures registered with the caches by the current graph.
	textureSignatures     []cache.RenderTargetTextureSignature
	framebufferSignatures []cache.FramebufferSignature

	// Main target size, resolution scale and sample count the caches were
	// materialized for.
	materialized bool
	lastWidth    uint32
	lastHeight   uint32
	lastScale    float32
	lastSamples  uint8

	executing      bool
	connecting     bool
	rebuildPending bool
	err            error

	commandBuffer     *render.CommandBuffer
	frameNumber       uint64
	submittedCommands int
}

// NewWorkspaceInstance instantiates resource. If the workspace and its nodes
// are already Loaded the graph is built immediately and build errors are
// returned; otherwise it is built once they load.
func NewWorkspaceInstance(r *Renderer, resource *WorkspaceResource, opts ...WorkspaceOption) (*WorkspaceInstance, error) {
	w := &WorkspaceInstance{
		renderer:             r,
		resource:             resource,
		numberOfMultisamples: 1,
		resolutionScale:      1,
		commandBuffer:        render.NewCommandBuffer(),
	}
	for _, opt := range opts {
		opt(w)
	}
	resource.ConnectListener(w)
	if w.err != nil {
		err := w.err
		w.Release()
		return nil, err
	}
	return w, nil
}

// Renderer returns the renderer the workspace draws with.
func (w *WorkspaceInstance) Renderer() *Renderer { return w.renderer }

// Resource returns the workspace resource.
func (w *WorkspaceInstance) Resource() *WorkspaceResource { return w.resource }

// Scene returns the gathered scene, or nil.
func (w *WorkspaceInstance) Scene() *scene.Scene { return w.scene }

// SetScene replaces the gathered scene.
func (w *WorkspaceInstance) SetScene(s *scene.Scene) { w.scene = s }

// NumberOfMultisamples returns the configured sample count.
func (w *WorkspaceInstance) NumberOfMultisamples() uint8 { return w.numberOfMultisamples }

// SetNumberOfMultisamples changes the sample count. Render-target textures
// are recreated on the next Execute.
func (w *WorkspaceInstance) SetNumberOfMultisamples(n uint8) { w.numberOfMultisamples = max(n, 1) }

// ResolutionScale returns the configured resolution scale.
func (w *WorkspaceInstance) ResolutionScale() float32 { return w.resolutionScale }

// SetResolutionScale changes the resolution scale. Render-target textures
// are recreated on the next Execute when the effective size changes.
func (w *WorkspaceInstance) SetResolutionScale(scale float32) {
	if scale > 0 {
		w.resolutionScale = scale
	}
}

// Built reports whether the graph is instantiated.
func (w *WorkspaceInstance) Built() bool { return w.built }

// Err returns the error of the last graph build, nil on success.
func (w *WorkspaceInstance) Err() error { return w.err }

// NodeInstances returns the node instances in execution order.
func (w *WorkspaceInstance) NodeInstances() []*NodeInstance { return w.nodes }

// RenderQueueIndexRanges returns the merged range table.
func (w *WorkspaceInstance) RenderQueueIndexRanges() []RenderQueueIndexRange { return w.ranges }

// RenderQueueIndexRangeByRenderQueueIndex returns the range containing idx.
func (w *WorkspaceInstance) RenderQueueIndexRangeByRenderQueueIndex(idx uint8) (*RenderQueueIndexRange, bool) {
	i, _ := slices.BinarySearchFunc(w.ranges, idx, func(r RenderQueueIndexRange, idx uint8) int {
		return cmp.Compare(r.MaximumRenderQueueIndex, idx)
	})
	if i < len(w.ranges) && w.ranges[i].Contains(idx) {
		return &w.ranges[i], true
	}
	return nil, false
}

// FirstInstancePassByPassTypeID returns the first pass of kind id in
// execution order, or nil.
func (w *WorkspaceInstance) FirstInstancePassByPassTypeID(id PassTypeID) InstancePass {
	for _, n := range w.nodes {
		for _, p := range n.passes {
			if p.Resource().TypeID() == id {
				return p
			}
		}
	}
	return nil
}

// FrameNumber returns the number of frames executed with a built graph.
func (w *WorkspaceInstance) FrameNumber() uint64 { return w.frameNumber }

// NumberOfSubmittedCommands returns the command count of the last frame.
func (w *WorkspaceInstance) NumberOfSubmittedCommands() int { return w.submittedCommands }

// CommandBuffer returns the commands recorded for the last frame.
func (w *WorkspaceInstance) CommandBuffer() *render.CommandBuffer { return w.commandBuffer }

// OnLoadingStateChange rebuilds the graph when the workspace or one of its
// nodes changes state.
func (w *WorkspaceInstance) OnLoadingStateChange(*asset.Resource) {
	if w.connecting {
		return
	}
	if w.executing {
		w.rebuildPending = true
		return
	}
	w.rebuild()
}

func (w *WorkspaceInstance) rebuild() {
	w.teardown()
	w.err = nil
	if w.resource.LoadingState() != asset.Loaded {
		return
	}

	nodes := make([]*NodeResource, 0, len(w.resource.nodes))
	ready := true
	for _, id := range w.resource.nodes {
		n, ok := w.renderer.NodeResourceByAssetID(id)
		if !ok {
			w.err = fmt.Errorf("%w: %08x", ErrUnknownNode, uint32(id))
			rendercore.Logger().Error("compositor: workspace build failed",
				"workspace", uint32(w.resource.ID()), "err", w.err)
			return
		}
		if !slices.Contains(w.listens, n) {
			w.listens = append(w.listens, n)
			// Connecting to a Loaded node calls back immediately.
			w.connecting = true
			n.ConnectListener(w)
			w.connecting = false
		}
		ready = ready && n.LoadingState() == asset.Loaded
		nodes = append(nodes, n)
	}
	if !ready {
		rendercore.Logger().Debug("compositor: workspace waiting for nodes",
			"workspace", uint32(w.resource.ID()))
		return
	}

	if err := w.build(nodes); err != nil {
		w.teardown()
		w.err = err
		rendercore.Logger().Error("compositor: workspace build failed",
			"workspace", uint32(w.resource.ID()), "err", err)
	}
}

// build registers the declarations of nodes with the caches, merges the
// render queue index ranges and instantiates the passes.
func (w *WorkspaceInstance) build(nodes []*NodeResource) error {
	factory := w.renderer.PassFactory()
	var ranges []RenderQueueIndexRange
	for _, n := range nodes {
		if err := n.Validate(factory); err != nil {
			return err
		}
		for _, d := range n.RenderTargetTextures {
			if err := w.renderer.rtt.AddRenderTargetTexture(d.AssetID, d.Signature); err != nil {
				return fmt.Errorf("node %08x: %w", uint32(n.ID()), err)
			}
			w.textureSignatures = append(w.textureSignatures, d.Signature)
		}
		for _, d := range n.Framebuffers {
			if err := w.renderer.framebuffers.AddFramebuffer(d.ID, d.Signature); err != nil {
				return fmt.Errorf("node %08x: %w", uint32(n.ID()), err)
			}
			w.framebufferSignatures = append(w.framebufferSignatures, d.Signature)
		}
		for _, t := range n.targets {
			for _, p := range t.passes {
				if lo, hi, ok := p.RenderQueueIndexRange(); ok {
					ranges = append(ranges, RenderQueueIndexRange{MinimumRenderQueueIndex: lo, MaximumRenderQueueIndex: hi})
				}
			}
		}
	}
	w.ranges = mergeRenderQueueIndexRanges(ranges)

	channels := make(map[core.ChannelID]core.FramebufferID)
	for _, n := range nodes {
		ni, err := newNodeInstance(w, n, channels)
		if err != nil {
			return err
		}
		w.nodes = append(w.nodes, ni)
	}
	w.built = true
	rendercore.Logger().Info("compositor: workspace built",
		"workspace", uint32(w.resource.ID()), "nodes", len(w.nodes), "ranges", len(w.ranges))
	return nil
}

// teardown releases passes and cache registrations of the current graph.
func (w *WorkspaceInstance) teardown() {
	if w.built {
		rendercore.Logger().Info("compositor: workspace torn down", "workspace", uint32(w.resource.ID()))
	}
	for _, n := range slices.Backward(w.nodes) {
		n.release()
	}
	w.nodes = nil
	w.ranges = nil
	for _, sig := range w.framebufferSignatures {
		w.renderer.framebuffers.ReleaseFramebufferBySignature(sig)
	}
	for _, sig := range w.textureSignatures {
		w.renderer.rtt.ReleaseRenderTargetTextureBySignature(sig)
	}
	w.framebufferSignatures = nil
	w.textureSignatures = nil
	w.materialized = false
	w.built = false
}

// Release tears down the graph and disconnects from all resources.
func (w *WorkspaceInstance) Release() {
	w.resource.DisconnectListener(w)
	for _, n := range w.listens {
		n.DisconnectListener(w)
	}
	w.listens = nil
	w.teardown()
}

// ClearRenderQueueIndexRangesRenderableManagers empties the per-frame
// manager list of every range.
func (w *WorkspaceInstance) ClearRenderQueueIndexRangesRenderableManagers() {
	for i := range w.ranges {
		clear(w.ranges[i].RenderableManagers)
		w.ranges[i].RenderableManagers = w.ranges[i].RenderableManagers[:0]
	}
}

// Execute renders one frame into target. camera and light may be nil;
// without a camera no scene renderables are gathered.
//
// Only device failures are returned. A *render.SwapChain target is
// presented after submission.
func (w *WorkspaceInstance) Execute(target render.RenderTarget, camera *scene.Camera, light *scene.Light) error {
	w.executing = true
	defer func() {
		w.executing = false
		if w.rebuildPending {
			w.rebuildPending = false
			w.rebuild()
		}
	}()

	w.ClearRenderQueueIndexRangesRenderableManagers()
	if !w.built || w.resource.LoadingState() != asset.Loaded {
		return nil
	}
	w.frameNumber++

	w.materialize(target)
	if camera != nil {
		w.gather(camera.Position())
	}

	ctx := &ContextData{
		Renderer:             w.renderer,
		Workspace:            w,
		MainTarget:           target,
		Camera:               camera,
		Light:                light,
		NumberOfMultisamples: w.numberOfMultisamples,
		ResolutionScale:      w.resolutionScale,
	}
	ctx.fill.Pipelines = w.renderer.pipelines
	ctx.fill.Fallback = w.renderer.materials.Fallback()

	cb := w.commandBuffer
	cb.Reset()
	cb.SetRenderTarget(target)
	for _, n := range w.nodes {
		n.fillCommandBuffer(target, ctx, cb)
	}

	w.submittedCommands = cb.Len()
	if _, err := cb.Submit(w.renderer.device); err != nil {
		return fmt.Errorf("compositor: submit frame %d: %w", w.frameNumber, err)
	}
	for _, n := range w.nodes {
		n.postCommandBufferExecution()
	}

	if sc, ok := target.(*render.SwapChain); ok && sc.Acquired() {
		if err := sc.Present(); err != nil {
			return fmt.Errorf("compositor: present frame %d: %w", w.frameNumber, err)
		}
	}
	return nil
}

// materialize drops cached GPU objects when the main target size, the
// resolution scale or the sample count changed, then creates every declared
// texture and framebuffer.
func (w *WorkspaceInstance) materialize(target render.RenderTarget) {
	width, height := target.Width(), target.Height()
	if w.materialized && (width != w.lastWidth || height != w.lastHeight ||
		w.resolutionScale != w.lastScale || w.numberOfMultisamples != w.lastSamples) {
		rendercore.Logger().Debug("compositor: render targets invalidated",
			"width", width, "height", height, "scale", w.resolutionScale,
			"samples", w.numberOfMultisamples)
		// Framebuffers hold views of the textures.
		w.renderer.framebuffers.ClearRendererResources()
		w.renderer.rtt.ClearRendererResources()
		w.materialized = false
	}
	if w.materialized {
		return
	}

	for _, n := range w.nodes {
		for _, d := range n.resource.RenderTargetTextures {
			w.renderer.rtt.TextureByAssetID(d.AssetID, target, w.numberOfMultisamples, w.resolutionScale)
		}
		for _, d := range n.resource.Framebuffers {
			w.renderer.framebuffers.FramebufferByCompositorFramebufferID(d.ID, target, w.numberOfMultisamples, w.resolutionScale)
		}
	}
	w.materialized = true
	w.lastWidth, w.lastHeight = width, height
	w.lastScale = w.resolutionScale
	w.lastSamples = w.numberOfMultisamples
}

// gather appends every visible manager to the ranges its renderables span
// and caches its distance to the camera.
func (w *WorkspaceInstance) gather(eye mgl32.Vec3) {
	if w.scene == nil || len(w.ranges) == 0 {
		return
	}
	for _, m := range w.scene.RenderableManagers() {
		if !m.Visible() {
			continue
		}
		lo, hi, ok := m.RenderQueueIndexRange()
		if !ok {
			continue
		}
		m.UpdateCachedDistance(eye)
		i, _ := slices.BinarySearchFunc(w.ranges, lo, func(r RenderQueueIndexRange, lo uint8) int {
			return cmp.Compare(r.MaximumRenderQueueIndex, lo)
		})
		for ; i < len(w.ranges) && w.ranges[i].MinimumRenderQueueIndex <= hi; i++ {
			w.ranges[i].RenderableManagers = append(w.ranges[i].RenderableManagers, m)
		}
	}
}
