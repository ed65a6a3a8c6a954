package renderqueue

import (
	"math"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendercore"
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/material"
	"github.com/gogpu/rendercore/render"
	"github.com/gogpu/rendercore/scene"
)

// PipelineProvider returns the pipeline for a technique drawn into a target.
// *material.PipelineCache implements it.
type PipelineProvider interface {
	Pipeline(t *material.Technique, target render.RenderTarget, vertexLayouts []gputypes.VertexBufferLayout) (hal.RenderPipeline, error)
}

// FillContext carries what a render queue needs to emit draws.
type FillContext struct {
	Pipelines PipelineProvider
	// Fallback is used for renderables without a material.
	Fallback *material.Material
}

type queuedRenderable struct {
	renderable *scene.Renderable
	sortKey    uint64
}

type queue struct {
	renderables []queuedRenderable
	sorted      bool
}

// RenderQueue holds one unsorted list per render queue index in
// [minimum, maximum].
type RenderQueue struct {
	minimum, maximum uint8
	transparent      bool
	queues           []queue
	count            int

	warned map[*material.Technique]struct{}
}

// New creates a queue for render queue indices minimum..maximum. A
// transparent queue sorts back to front.
func New(minimum, maximum uint8, transparent bool) *RenderQueue {
	if minimum > maximum {
		minimum, maximum = maximum, minimum
	}
	return &RenderQueue{
		minimum:     minimum,
		maximum:     maximum,
		transparent: transparent,
		queues:      make([]queue, int(maximum-minimum)+1),
		warned:      make(map[*material.Technique]struct{}),
	}
}

// Range returns the render queue index range.
func (q *RenderQueue) Range() (minimum, maximum uint8) { return q.minimum, q.maximum }

// Transparent reports whether the queue sorts back to front.
func (q *RenderQueue) Transparent() bool { return q.transparent }

// NumberOfQueuedRenderables returns the number of queued renderables.
func (q *RenderQueue) NumberOfQueuedRenderables() int { return q.count }

// Clear empties every list without freeing storage.
func (q *RenderQueue) Clear() {
	for i := range q.queues {
		clear(q.queues[i].renderables)
		q.queues[i].renderables = q.queues[i].renderables[:0]
		q.queues[i].sorted = true
	}
	q.count = 0
}

// AddRenderablesFromRenderableManager queues the renderables of m whose
// render queue index is in range. castShadowsOnly restricts them to shadow
// casters. Transparent queues use m.CachedDistance for ordering.
func (q *RenderQueue) AddRenderablesFromRenderableManager(m *scene.RenderableManager, castShadowsOnly bool) {
	if !m.Visible() {
		return
	}
	if castShadowsOnly && !m.CastShadows() {
		return
	}
	lo, hi, ok := m.RenderQueueIndexRange()
	if !ok || hi < q.minimum || lo > q.maximum {
		return
	}
	distance := m.CachedDistance()
	for _, r := range m.Renderables() {
		if castShadowsOnly && !r.CastShadows() {
			continue
		}
		q.AddRenderable(r, distance)
	}
}

// AddRenderable queues a single renderable at the given camera distance.
// Renderables outside the range are ignored.
func (q *RenderQueue) AddRenderable(r *scene.Renderable, distance float32) {
	idx := r.RenderQueueIndex()
	if idx < q.minimum || idx > q.maximum {
		return
	}
	key := r.StateKey()
	if q.transparent {
		// Farther is smaller: back to front, then grouped by material.
		key = uint64(^math.Float32bits(max(distance, 0)))<<32 | key>>32
	}
	lst := &q.queues[idx-q.minimum]
	lst.renderables = append(lst.renderables, queuedRenderable{renderable: r, sortKey: key})
	lst.sorted = false
	q.count++
}

func (lst *queue) sort() {
	if lst.sorted {
		return
	}
	slices.SortStableFunc(lst.renderables, func(a, b queuedRenderable) int {
		switch {
		case a.sortKey < b.sortKey:
			return -1
		case a.sortKey > b.sortKey:
			return 1
		}
		return 0
	})
	lst.sorted = true
}

// emitState tracks the state last recorded into the command buffer.
type emitState struct {
	technique   *material.Technique
	layouts     []gputypes.VertexBufferLayout
	material    *material.Material
	vertexArray *render.VertexArray
}

// FillCommandBuffer sorts the queued renderables and records their draws
// with technique techniqueID. Pipeline, bind group and vertex array are only
// set when they change. Renderables whose material lacks the technique are
// skipped. It returns the number of draws recorded.
func (q *RenderQueue) FillCommandBuffer(target render.RenderTarget, techniqueID core.MaterialTechniqueID, ctx *FillContext, cb *render.CommandBuffer) int {
	if q.count == 0 {
		return 0
	}
	var state emitState
	draws := 0
	for i := range q.queues {
		lst := &q.queues[i]
		lst.sort()
		for _, qr := range lst.renderables {
			if q.emit(qr.renderable, target, techniqueID, ctx, cb, &state) {
				draws++
			}
		}
	}
	return draws
}

func (q *RenderQueue) emit(r *scene.Renderable, target render.RenderTarget, techniqueID core.MaterialTechniqueID, ctx *FillContext, cb *render.CommandBuffer, state *emitState) bool {
	va := r.VertexArray()
	if va == nil || r.NumberOfIndices() == 0 {
		return false
	}
	mat := r.Material()
	if mat == nil {
		mat = ctx.Fallback
	}
	if mat == nil {
		return false
	}
	tech, ok := mat.Technique(techniqueID)
	if !ok {
		return false
	}

	if tech != state.technique || !sameLayouts(va.Layouts(), state.layouts) {
		pipeline, err := ctx.Pipelines.Pipeline(tech, target, va.Layouts())
		if err != nil {
			if _, seen := q.warned[tech]; !seen {
				q.warned[tech] = struct{}{}
				rendercore.Logger().Warn("renderqueue: pipeline unavailable, skipping draws",
					"blueprint", mat.Blueprint().Label(), "technique", uint32(techniqueID), "err", err)
			}
			return false
		}
		cb.SetPipeline(pipeline)
		state.technique = tech
		state.layouts = va.Layouts()
	}
	if mat != state.material {
		if g := mat.BindGroup(); g != nil {
			cb.SetBindGroup(0, g)
		}
		state.material = mat
	}
	if va != state.vertexArray {
		cb.SetVertexArray(va)
		state.vertexArray = va
	}

	if va.Indexed() {
		cb.DrawIndexed(r.NumberOfIndices(), r.InstanceCount(), r.StartIndexLocation(), 0, 0)
	} else {
		cb.Draw(r.NumberOfIndices(), r.InstanceCount(), r.StartIndexLocation(), 0)
	}
	return true
}

func sameLayouts(a, b []gputypes.VertexBufferLayout) bool {
	return slices.EqualFunc(a, b, func(x, y gputypes.VertexBufferLayout) bool {
		return x.ArrayStride == y.ArrayStride && x.StepMode == y.StepMode &&
			slices.Equal(x.Attributes, y.Attributes)
	})
}
