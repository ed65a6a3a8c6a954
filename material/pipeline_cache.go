package material

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendercore"
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/internal/cache"
	"github.com/gogpu/rendercore/render"
)

// DefaultPipelineCacheSize is the number of pipelines kept by default.
const DefaultPipelineCacheSize = 256

// ErrShaderCompile wraps WGSL compilation failures.
var ErrShaderCompile = errors.New("material: shader compilation failed")

// pipelineKey identifies a pipeline variant.
type pipelineKey struct {
	blueprint    core.AssetID
	technique    core.MaterialTechniqueID
	colorFormats uint32 // hash of the color formats
	depthFormat  gputypes.TextureFormat
	sampleCount  uint32
	vertexLayout uint32 // hash of the vertex buffer layouts
}

// PipelineCache creates render pipelines for techniques on demand.
type PipelineCache struct {
	device    *render.Device
	pipelines *cache.Cache[pipelineKey, hal.RenderPipeline]
	modules   map[*Blueprint]hal.ShaderModule
	layouts   map[*Blueprint]hal.PipelineLayout
	failed    map[*Blueprint]error
}

// NewPipelineCache creates a cache holding at most capacity pipelines.
// A capacity of 0 selects DefaultPipelineCacheSize.
func NewPipelineCache(d *render.Device, capacity int) *PipelineCache {
	if capacity <= 0 {
		capacity = DefaultPipelineCacheSize
	}
	pc := &PipelineCache{
		device:  d,
		modules: make(map[*Blueprint]hal.ShaderModule),
		layouts: make(map[*Blueprint]hal.PipelineLayout),
		failed:  make(map[*Blueprint]error),
	}
	pc.pipelines = cache.New(capacity, cache.WithOnEvict(func(_ pipelineKey, p hal.RenderPipeline) {
		d.HAL().DestroyRenderPipeline(p)
	}))
	return pc
}

// Pipeline returns the pipeline drawing t into target with the given vertex
// layouts, creating it on first use.
func (pc *PipelineCache) Pipeline(t *Technique, target render.RenderTarget, vertexLayouts []gputypes.VertexBufferLayout) (hal.RenderPipeline, error) {
	bp := t.Blueprint()
	if bp == nil {
		return nil, fmt.Errorf("material: technique %08x has no blueprint", uint32(t.ID))
	}
	key := pipelineKey{
		blueprint:    bp.ID(),
		technique:    t.ID,
		colorFormats: hashFormats(target.ColorFormats()),
		depthFormat:  target.DepthStencilFormat(),
		sampleCount:  target.SampleCount(),
		vertexLayout: hashVertexLayouts(vertexLayouts),
	}
	return pc.pipelines.GetOrCreate(key, func() (hal.RenderPipeline, error) {
		return pc.create(t, target, vertexLayouts)
	})
}

func (pc *PipelineCache) create(t *Technique, target render.RenderTarget, vertexLayouts []gputypes.VertexBufferLayout) (hal.RenderPipeline, error) {
	bp := t.Blueprint()
	module, err := pc.module(bp)
	if err != nil {
		return nil, err
	}
	layout, err := pc.layout(bp)
	if err != nil {
		return nil, err
	}

	desc := &hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("%s_%08x", bp.Label(), uint32(t.ID)),
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: entryPoint(t.VertexEntryPoint, bp.VertexEntryPoint),
			Buffers:    vertexLayouts,
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  t.CullMode,
		},
		Multisample: gputypes.MultisampleState{
			Count: target.SampleCount(),
			Mask:  0xFFFFFFFF,
		},
	}

	if t.ColorWrite {
		targets := make([]gputypes.ColorTargetState, 0, len(target.ColorFormats()))
		for _, f := range target.ColorFormats() {
			targets = append(targets, gputypes.ColorTargetState{
				Format:    f,
				Blend:     t.Blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			})
		}
		desc.Fragment = &hal.FragmentState{
			Module:     module,
			EntryPoint: entryPoint(t.FragmentEntryPoint, bp.FragmentEntryPoint),
			Targets:    targets,
		}
	}

	if ds := target.DepthStencilFormat(); ds != gputypes.TextureFormatUndefined {
		state := &hal.DepthStencilState{
			Format:            ds,
			DepthWriteEnabled: t.DepthWrite && ds.HasDepth(),
			DepthCompare:      t.DepthCompare,
			DepthBias:         t.DepthBias,
			StencilFront:      keepStencil,
			StencilBack:       keepStencil,
		}
		if state.DepthCompare == gputypes.CompareFunctionUndefined {
			state.DepthCompare = gputypes.CompareFunctionAlways
		}
		if t.Stencil != nil && ds.HasStencil() {
			face := hal.StencilFaceState{
				Compare:     t.Stencil.Compare,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      t.Stencil.PassOp,
			}
			state.StencilFront = face
			state.StencilBack = face
			state.StencilReadMask = t.Stencil.ReadMask
			state.StencilWriteMask = t.Stencil.WriteMask
		}
		desc.DepthStencil = state
	}

	pipeline, err := pc.device.HAL().CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("create pipeline %q: %w", desc.Label, err)
	}
	rendercore.Logger().Debug("material: pipeline created", "label", desc.Label,
		"samples", target.SampleCount())
	return pipeline, nil
}

var keepStencil = hal.StencilFaceState{
	Compare:     gputypes.CompareFunctionAlways,
	FailOp:      hal.StencilOperationKeep,
	DepthFailOp: hal.StencilOperationKeep,
	PassOp:      hal.StencilOperationKeep,
}

func entryPoint(override, def string) string {
	if override != "" {
		return override
	}
	return def
}

// module compiles the blueprint once. A failed compilation is remembered so
// a broken shader is not recompiled every frame.
func (pc *PipelineCache) module(bp *Blueprint) (hal.ShaderModule, error) {
	if m, ok := pc.modules[bp]; ok {
		return m, nil
	}
	if err, ok := pc.failed[bp]; ok {
		return nil, err
	}

	spirv, err := CompileWGSL(bp.Source())
	if err != nil {
		err = fmt.Errorf("%w: blueprint %q: %w", ErrShaderCompile, bp.Label(), err)
		pc.failed[bp] = err
		rendercore.Logger().Warn("material: shader compilation failed", "blueprint", bp.Label(), "err", err)
		return nil, err
	}
	m, err := pc.device.HAL().CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  bp.Label(),
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module %q: %w", bp.Label(), err)
	}
	pc.modules[bp] = m
	return m, nil
}

func (pc *PipelineCache) layout(bp *Blueprint) (hal.PipelineLayout, error) {
	if l, ok := pc.layouts[bp]; ok {
		return l, nil
	}
	l, err := pc.device.HAL().CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            bp.Label() + "_layout",
		BindGroupLayouts: bp.BindGroupLayouts,
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline layout %q: %w", bp.Label(), err)
	}
	pc.layouts[bp] = l
	return l, nil
}

// Len returns the number of cached pipelines.
func (pc *PipelineCache) Len() int { return pc.pipelines.Len() }

// Stats returns the pipeline cache counters.
func (pc *PipelineCache) Stats() cache.Stats { return pc.pipelines.Stats() }

// Release destroys every pipeline, layout and shader module.
func (pc *PipelineCache) Release() {
	pc.pipelines.Purge()
	for bp, l := range pc.layouts {
		pc.device.HAL().DestroyPipelineLayout(l)
		delete(pc.layouts, bp)
	}
	for bp, m := range pc.modules {
		pc.device.HAL().DestroyShaderModule(m)
		delete(pc.modules, bp)
	}
	clear(pc.failed)
}

// CompileWGSL compiles WGSL source to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}

func hashFormats(formats []gputypes.TextureFormat) uint32 {
	h := core.NewHasher().Uint32(uint32(len(formats))) //nolint:gosec // at most 8 attachments
	for _, f := range formats {
		h.Uint32(uint32(f))
	}
	return h.Sum()
}

func hashVertexLayouts(layouts []gputypes.VertexBufferLayout) uint32 {
	h := core.NewHasher().Uint32(uint32(len(layouts))) //nolint:gosec // small
	for _, l := range layouts {
		h.Uint32(uint32(l.ArrayStride)).Uint32(uint32(l.StepMode)) //nolint:gosec // strides fit in 32 bits
		for _, a := range l.Attributes {
			h.Uint32(uint32(a.Format)).Uint32(uint32(a.Offset)).Uint32(a.ShaderLocation) //nolint:gosec // offsets fit in 32 bits
		}
	}
	return h.Sum()
}
