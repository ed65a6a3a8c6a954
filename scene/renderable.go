package scene

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/rendercore/material"
	"github.com/gogpu/rendercore/render"
)

// RenderableDescriptor describes a renderable to add to a manager.
type RenderableDescriptor struct {
	VertexArray        *render.VertexArray
	StartIndexLocation uint32
	NumberOfIndices    uint32
	// InstanceCount of 0 or 1 draws a single instance.
	InstanceCount    uint32
	Material         *material.Material
	RenderQueueIndex uint8
	CastShadows      bool
}

// Renderable is one draw: an index range of a vertex array with a material.
// It is owned by exactly one RenderableManager.
type Renderable struct {
	manager *RenderableManager

	vertexArray        *render.VertexArray
	startIndexLocation uint32
	numberOfIndices    uint32
	instanceCount      uint32
	material           *material.Material
	renderQueueIndex   uint8
	castShadows        bool

	stateKey uint64
}

// Manager returns the owning manager.
func (r *Renderable) Manager() *RenderableManager { return r.manager }

// VertexArray returns the geometry.
func (r *Renderable) VertexArray() *render.VertexArray { return r.vertexArray }

// StartIndexLocation returns the first index drawn.
func (r *Renderable) StartIndexLocation() uint32 { return r.startIndexLocation }

// NumberOfIndices returns the index count.
func (r *Renderable) NumberOfIndices() uint32 { return r.numberOfIndices }

// InstanceCount returns the instance count, at least 1.
func (r *Renderable) InstanceCount() uint32 { return max(r.instanceCount, 1) }

// Material returns the material, nil if unset.
func (r *Renderable) Material() *material.Material { return r.material }

// RenderQueueIndex returns the render queue the renderable is binned into.
func (r *Renderable) RenderQueueIndex() uint8 { return r.renderQueueIndex }

// CastShadows reports whether the renderable is drawn into shadow maps.
func (r *Renderable) CastShadows() bool { return r.castShadows }

// StateKey returns the precomputed sort key: the material bucket in the high
// 32 bits, then the vertex array id, then an instanced flag in bit 0.
func (r *Renderable) StateKey() uint64 { return r.stateKey }

// SetMaterial changes the material.
func (r *Renderable) SetMaterial(m *material.Material) {
	r.material = m
	r.updateStateKey()
}

// SetRenderQueueIndex moves the renderable to another render queue.
func (r *Renderable) SetRenderQueueIndex(i uint8) {
	r.renderQueueIndex = i
	r.markDirty()
}

// SetCastShadows changes the shadow-cast flag.
func (r *Renderable) SetCastShadows(b bool) {
	r.castShadows = b
	r.markDirty()
}

// SetInstanceCount changes the instance count.
func (r *Renderable) SetInstanceCount(n uint32) {
	r.instanceCount = n
	r.updateStateKey()
}

func (r *Renderable) markDirty() {
	if r.manager != nil {
		r.manager.dirty = true
	}
}

func (r *Renderable) updateStateKey() {
	var key uint64
	if r.material != nil {
		key = uint64(r.material.SortKey()) << 32
	}
	if r.vertexArray != nil {
		key |= uint64(r.vertexArray.ID()&0x7FFFFFFF) << 1
	}
	if r.instanceCount > 1 {
		key |= 1
	}
	r.stateKey = key
}

// RenderableManager owns renderables placed by one transform.
type RenderableManager struct {
	transform   *Transform
	renderables []*Renderable
	visible     bool

	// Cached aggregates, valid when dirty is false.
	dirty       bool
	minimumRQ   uint8
	maximumRQ   uint8
	castShadows bool

	distance float32
}

// NewRenderableManager creates a visible, empty manager. The transform is
// not owned and must outlive the manager; nil places it at the origin.
func NewRenderableManager(t *Transform) *RenderableManager {
	return &RenderableManager{transform: t, visible: true}
}

// Transform returns the transform, nil if none.
func (m *RenderableManager) Transform() *Transform { return m.transform }

// SetTransform replaces the non-owned transform.
func (m *RenderableManager) SetTransform(t *Transform) { m.transform = t }

// Visible reports whether the manager takes part in rendering.
func (m *RenderableManager) Visible() bool { return m.visible }

// SetVisible shows or hides all renderables.
func (m *RenderableManager) SetVisible(v bool) { m.visible = v }

// AddRenderable creates a renderable owned by m.
func (m *RenderableManager) AddRenderable(desc RenderableDescriptor) *Renderable {
	r := &Renderable{
		manager:            m,
		vertexArray:        desc.VertexArray,
		startIndexLocation: desc.StartIndexLocation,
		numberOfIndices:    desc.NumberOfIndices,
		instanceCount:      desc.InstanceCount,
		material:           desc.Material,
		renderQueueIndex:   desc.RenderQueueIndex,
		castShadows:        desc.CastShadows,
	}
	r.updateStateKey()
	m.renderables = append(m.renderables, r)
	m.dirty = true
	return r
}

// RemoveRenderable removes r if m owns it.
func (m *RenderableManager) RemoveRenderable(r *Renderable) {
	if i := slices.Index(m.renderables, r); i >= 0 {
		m.renderables = slices.Delete(m.renderables, i, i+1)
		r.manager = nil
		m.dirty = true
	}
}

// Renderables returns the owned renderables. The slice must not be modified.
func (m *RenderableManager) Renderables() []*Renderable { return m.renderables }

func (m *RenderableManager) update() {
	if !m.dirty {
		return
	}
	m.dirty = false
	m.castShadows = false
	m.minimumRQ, m.maximumRQ = 255, 0
	for _, r := range m.renderables {
		m.minimumRQ = min(m.minimumRQ, r.renderQueueIndex)
		m.maximumRQ = max(m.maximumRQ, r.renderQueueIndex)
		m.castShadows = m.castShadows || r.castShadows
	}
}

// RenderQueueIndexRange returns the smallest and largest render queue index
// of the renderables; ok is false for an empty manager.
func (m *RenderableManager) RenderQueueIndexRange() (minimum, maximum uint8, ok bool) {
	if len(m.renderables) == 0 {
		return 0, 0, false
	}
	m.update()
	return m.minimumRQ, m.maximumRQ, true
}

// CastShadows reports whether any renderable casts shadows.
func (m *RenderableManager) CastShadows() bool {
	m.update()
	return m.castShadows
}

// Position returns the world position of the manager.
func (m *RenderableManager) Position() mgl32.Vec3 {
	if m.transform == nil {
		return mgl32.Vec3{}
	}
	return m.transform.Position
}

// DistanceTo returns the distance between the manager and p.
func (m *RenderableManager) DistanceTo(p mgl32.Vec3) float32 {
	return m.Position().Sub(p).Len()
}

// UpdateCachedDistance caches the distance to p for depth sorting.
func (m *RenderableManager) UpdateCachedDistance(p mgl32.Vec3) {
	m.distance = m.DistanceTo(p)
}

// CachedDistance returns the distance stored by the last
// UpdateCachedDistance.
func (m *RenderableManager) CachedDistance() float32 { return m.distance }
