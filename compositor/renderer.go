package compositor

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore"
	"github.com/gogpu/rendercore/asset"
	"github.com/gogpu/rendercore/cache"
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/material"
	"github.com/gogpu/rendercore/render"
	"github.com/gogpu/rendercore/renderqueue"
	"github.com/gogpu/rendercore/scene"
	"github.com/gogpu/rendercore/texture"
)

// DebugGui records a debug overlay. It is an external collaborator.
type DebugGui interface {
	// FillCommandBuffer records the GUI draws into target. m is the
	// material the DebugGui pass declares.
	FillCommandBuffer(target render.RenderTarget, m *material.Material, cb *render.CommandBuffer)
}

// VrManager exposes headset state. It is an external collaborator.
type VrManager interface {
	// HiddenAreaMesh returns the mesh covering the pixels hidden by the
	// lenses in clip space, and its vertex or index count. A nil vertex
	// array disables the mask.
	HiddenAreaMesh() (*render.VertexArray, uint32)
}

// RendererOption configures a Renderer.
type RendererOption func(*rendererOptions)

type rendererOptions struct {
	debugGui          DebugGui
	vrManager         VrManager
	factory           *PassFactory
	pipelineCacheSize int
	maxTextureSize    int
}

// WithDebugGui sets the DebugGui drawn by DebugGui passes.
func WithDebugGui(g DebugGui) RendererOption {
	return func(o *rendererOptions) { o.debugGui = g }
}

// WithVrManager sets the VrManager used by hidden area mesh passes.
func WithVrManager(v VrManager) RendererOption {
	return func(o *rendererOptions) { o.vrManager = v }
}

// WithPassFactory replaces the built-in pass factory.
func WithPassFactory(f *PassFactory) RendererOption {
	return func(o *rendererOptions) { o.factory = f }
}

// WithPipelineCacheSize sets the number of cached render pipelines.
func WithPipelineCacheSize(n int) RendererOption {
	return func(o *rendererOptions) {
		if n > 0 {
			o.pipelineCacheSize = n
		}
	}
}

// WithMaxTextureSize limits the edge length of loaded textures.
func WithMaxTextureSize(size int) RendererOption {
	return func(o *rendererOptions) { o.maxTextureSize = size }
}

// Renderer holds the state shared by every workspace of one render thread:
// the texture, material and signature caches, the pipeline cache, the pass
// factory and the asset streamer.
//
// A Renderer is not safe for concurrent use. Background loads complete on
// the render thread when Dispatch is called.
type Renderer struct {
	device *render.Device

	dispatcher *asset.Dispatcher
	streamer   *asset.Streamer

	textures     *texture.Manager
	materials    *material.Manager
	rtt          *cache.RenderTargetTextureManager
	framebuffers *cache.FramebufferManager
	pipelines    *material.PipelineCache
	factory      *PassFactory

	debugGui  DebugGui
	vrManager VrManager

	nodes      map[core.AssetID]*NodeResource
	workspaces map[core.AssetID]*WorkspaceResource

	fullscreen     *render.VertexArray
	fullscreenRefs int
}

// NewRenderer creates a renderer on d.
func NewRenderer(d *render.Device, opts ...RendererOption) (*Renderer, error) {
	o := rendererOptions{pipelineCacheSize: material.DefaultPipelineCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.factory == nil {
		o.factory = NewPassFactory()
	}

	r := &Renderer{
		device:     d,
		dispatcher: asset.NewDispatcher(),
		materials:  material.NewManager(),
		pipelines:  material.NewPipelineCache(d, o.pipelineCacheSize),
		factory:    o.factory,
		debugGui:   o.debugGui,
		vrManager:  o.vrManager,
		nodes:      make(map[core.AssetID]*NodeResource),
		workspaces: make(map[core.AssetID]*WorkspaceResource),
	}
	r.streamer = asset.NewStreamer(r.dispatcher)

	textureOpts := []texture.Option{texture.WithStreamer(r.streamer)}
	if o.maxTextureSize > 0 {
		textureOpts = append(textureOpts, texture.WithMaxSize(o.maxTextureSize))
	}
	textures, err := texture.NewManager(d, textureOpts...)
	if err != nil {
		r.streamer.Close()
		r.pipelines.Release()
		return nil, fmt.Errorf("compositor: texture manager: %w", err)
	}
	r.textures = textures
	r.rtt = cache.NewRenderTargetTextureManager(d, textures)
	r.framebuffers = cache.NewFramebufferManager(r.rtt)
	return r, nil
}

// Device returns the render device.
func (r *Renderer) Device() *render.Device { return r.device }

// TextureManager returns the texture manager.
func (r *Renderer) TextureManager() *texture.Manager { return r.textures }

// MaterialManager returns the material manager.
func (r *Renderer) MaterialManager() *material.Manager { return r.materials }

// RenderTargetTextures returns the render-target texture cache.
func (r *Renderer) RenderTargetTextures() *cache.RenderTargetTextureManager { return r.rtt }

// Framebuffers returns the framebuffer cache.
func (r *Renderer) Framebuffers() *cache.FramebufferManager { return r.framebuffers }

// PipelineCache returns the render pipeline cache.
func (r *Renderer) PipelineCache() *material.PipelineCache { return r.pipelines }

// PassFactory returns the pass factory.
func (r *Renderer) PassFactory() *PassFactory { return r.factory }

// DebugGui returns the configured DebugGui, or nil.
func (r *Renderer) DebugGui() DebugGui { return r.debugGui }

// VrManager returns the configured VrManager, or nil.
func (r *Renderer) VrManager() VrManager { return r.vrManager }

// Dispatcher returns the queue background loads complete through.
func (r *Renderer) Dispatcher() *asset.Dispatcher { return r.dispatcher }

// Dispatch applies finished background loads. Call it on the render thread
// between frames; it returns the number of completions applied.
func (r *Renderer) Dispatch() int { return r.dispatcher.Dispatch() }

// AddNodeResource registers n, replacing a node with the same id.
func (r *Renderer) AddNodeResource(n *NodeResource) { r.nodes[n.ID()] = n }

// NodeResourceByAssetID returns a registered node resource.
func (r *Renderer) NodeResourceByAssetID(id core.AssetID) (*NodeResource, bool) {
	n, ok := r.nodes[id]
	return n, ok
}

// AddWorkspaceResource registers w, replacing a workspace with the same id.
func (r *Renderer) AddWorkspaceResource(w *WorkspaceResource) { r.workspaces[w.ID()] = w }

// WorkspaceResourceByAssetID returns a registered workspace resource.
func (r *Renderer) WorkspaceResourceByAssetID(id core.AssetID) (*WorkspaceResource, bool) {
	w, ok := r.workspaces[id]
	return w, ok
}

// OpenFunc opens the serialized form of an asset.
type OpenFunc func(ctx context.Context) (io.ReadCloser, error)

func readAll(ctx context.Context, open OpenFunc) ([]byte, error) {
	rc, err := open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// LoadNodeAsset registers an Unloaded node resource under id and decodes
// the asset opened by open in the background. Workspaces referencing the
// node rebuild once it is Loaded.
func (r *Renderer) LoadNodeAsset(id core.AssetID, open OpenFunc) *NodeResource {
	n, ok := r.nodes[id]
	if !ok {
		n = &NodeResource{}
		n.Init(id)
		r.nodes[id] = n
	}
	r.streamer.Load(&n.Resource, func(ctx context.Context) (func() error, error) {
		data, err := readAll(ctx, open)
		if err != nil {
			return nil, err
		}
		decoded, err := DecodeNodeAsset(id, data, r.factory)
		if err != nil {
			return nil, err
		}
		return func() error {
			n.assign(decoded)
			return nil
		}, nil
	})
	return n
}

// LoadWorkspaceAsset registers an Unloaded workspace resource under id and
// decodes the asset opened by open in the background.
func (r *Renderer) LoadWorkspaceAsset(id core.AssetID, open OpenFunc) *WorkspaceResource {
	w, ok := r.workspaces[id]
	if !ok {
		w = &WorkspaceResource{}
		w.Init(id)
		r.workspaces[id] = w
	}
	r.streamer.Load(&w.Resource, func(ctx context.Context) (func() error, error) {
		data, err := readAll(ctx, open)
		if err != nil {
			return nil, err
		}
		decoded, err := DecodeWorkspaceAsset(id, data)
		if err != nil {
			return nil, err
		}
		return func() error {
			w.nodes = decoded.nodes
			return nil
		}, nil
	})
	return w
}

// WaitForLoads blocks until every started background load has posted its
// completion. The completions still need Dispatch.
func (r *Renderer) WaitForLoads() { r.streamer.Wait() }

const fullscreenTriangleVertices = 3

// acquireFullscreenTriangle returns the shared triangle covering clip space,
// creating it on first use.
func (r *Renderer) acquireFullscreenTriangle() (*render.VertexArray, error) {
	if r.fullscreen == nil {
		positions := [fullscreenTriangleVertices * 2]float32{-1, -1, 3, -1, -1, 3}
		data, err := binary.Append(nil, binary.LittleEndian, positions)
		if err != nil {
			return nil, err
		}
		va, err := r.device.CreateVertexArray(render.VertexArrayDescriptor{
			Label: "fullscreen_triangle",
			Layouts: []gputypes.VertexBufferLayout{{
				ArrayStride: 8,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes: []gputypes.VertexAttribute{
					{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				},
			}},
			Vertices: [][]byte{data},
		})
		if err != nil {
			return nil, fmt.Errorf("compositor: full-screen triangle: %w", err)
		}
		r.fullscreen = va
	}
	r.fullscreenRefs++
	return r.fullscreen, nil
}

// releaseFullscreenTriangle drops one reference; the last destroys it.
func (r *Renderer) releaseFullscreenTriangle() {
	if r.fullscreenRefs == 0 {
		panic("compositor: full-screen triangle released more often than acquired")
	}
	r.fullscreenRefs--
	if r.fullscreenRefs == 0 {
		r.fullscreen.Destroy()
		r.fullscreen = nil
	}
}

// FullscreenTriangleReferences returns the number of passes using the shared
// full-screen triangle.
func (r *Renderer) FullscreenTriangleReferences() int { return r.fullscreenRefs }

// Release cancels background loads and destroys the caches. Workspaces must
// be released first.
func (r *Renderer) Release() {
	r.streamer.Close()
	r.framebuffers.ClearRendererResources()
	r.rtt.ClearRendererResources()
	r.pipelines.Release()
	r.textures.Release()
	if r.fullscreen != nil {
		rendercore.Logger().Warn("compositor: renderer released with live full-screen passes",
			"references", r.fullscreenRefs)
		r.fullscreen.Destroy()
		r.fullscreen = nil
		r.fullscreenRefs = 0
	}
}

// ContextData is the per-frame state passes read while recording.
type ContextData struct {
	Renderer  *Renderer
	Workspace *WorkspaceInstance

	// MainTarget is the target passed to Execute.
	MainTarget render.RenderTarget
	// Camera and Light may be nil.
	Camera *scene.Camera
	Light  *scene.Light

	NumberOfMultisamples uint8
	ResolutionScale      float32

	// ExecutionIndex is the invocation of a pass running several times
	// per frame.
	ExecutionIndex uint32

	fill renderqueue.FillContext
}

// FillContext returns what render queues need to emit draws.
func (c *ContextData) FillContext() *renderqueue.FillContext { return &c.fill }

// texture returns a render-target texture, or a loaded texture when id is
// not a render target.
func (c *ContextData) texture(id core.AssetID) *render.Texture {
	if _, ok := c.Renderer.rtt.SignatureByAssetID(id); ok {
		return c.Renderer.rtt.TextureByAssetID(id, c.MainTarget, c.NumberOfMultisamples, c.ResolutionScale)
	}
	tex, _ := c.Renderer.textures.Lookup(id)
	return tex
}
