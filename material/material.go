package material

import (
	"errors"
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendercore"
	"github.com/gogpu/rendercore/core"
)

// ErrUnknownBlueprint is returned when a material references a blueprint the
// manager does not know.
var ErrUnknownBlueprint = errors.New("material: unknown blueprint")

// Material binds a blueprint to property values.
type Material struct {
	id         core.AssetID
	blueprint  *Blueprint
	properties Properties
	bindGroup  hal.BindGroup
	sortKey    uint32
}

// NewMaterial creates a material drawing with bp.
func NewMaterial(id core.AssetID, bp *Blueprint, props Properties) *Material {
	blueprintHash := core.NewHasher().Uint32(uint32(bp.ID())).Sum()
	// The low half numbers the materials of a blueprint, so two materials
	// share a bucket only after 65536 creations on one blueprint.
	sequence := bp.materials.Add(1)
	return &Material{
		id:         id,
		blueprint:  bp,
		properties: props,
		// Blueprint in the high half keeps materials sharing shaders together.
		sortKey: (blueprintHash&0xFFFF)<<16 | sequence&0xFFFF,
	}
}

// ID returns the material asset id.
func (m *Material) ID() core.AssetID { return m.id }

// Blueprint returns the blueprint.
func (m *Material) Blueprint() *Blueprint { return m.blueprint }

// Properties returns the property block.
func (m *Material) Properties() *Properties { return &m.properties }

// Technique returns the blueprint technique with the given id.
func (m *Material) Technique(id core.MaterialTechniqueID) (*Technique, bool) {
	return m.blueprint.Technique(id)
}

// BindGroup returns the resource bind group, nil if the material has none.
func (m *Material) BindGroup() hal.BindGroup { return m.bindGroup }

// SetBindGroup sets the bind group filled by the caller. The material does
// not own it.
func (m *Material) SetBindGroup(g hal.BindGroup) { m.bindGroup = g }

// SortKey is the 32-bit material bucket used by render queues.
func (m *Material) SortKey() uint32 { return m.sortKey }

// Manager maps asset ids to blueprints and materials. Unknown material ids
// resolve to a default material.
type Manager struct {
	blueprints map[core.AssetID]*Blueprint
	materials  map[core.AssetID]*Material
	fallback   *Material
	warned     map[core.AssetID]struct{}
}

// NewManager creates a manager holding the built-in blueprints.
func NewManager() *Manager {
	m := &Manager{
		blueprints: make(map[core.AssetID]*Blueprint),
		materials:  make(map[core.AssetID]*Material),
		warned:     make(map[core.AssetID]struct{}),
	}
	def := DefaultBlueprint()
	m.AddBlueprint(def)
	m.AddBlueprint(FullscreenBlueprint())
	m.AddBlueprint(HiddenAreaBlueprint())
	m.fallback = NewMaterial(core.InvalidAssetID, def, Properties{})
	return m
}

// AddBlueprint registers bp, replacing any blueprint with the same id.
func (m *Manager) AddBlueprint(bp *Blueprint) { m.blueprints[bp.ID()] = bp }

// BlueprintByAssetID returns a registered blueprint.
func (m *Manager) BlueprintByAssetID(id core.AssetID) (*Blueprint, bool) {
	bp, ok := m.blueprints[id]
	return bp, ok
}

// CreateMaterial creates and registers a material using a registered
// blueprint.
func (m *Manager) CreateMaterial(id core.AssetID, blueprintID core.AssetID, props Properties) (*Material, error) {
	bp, ok := m.blueprints[blueprintID]
	if !ok {
		return nil, fmt.Errorf("%w: %08x", ErrUnknownBlueprint, uint32(blueprintID))
	}
	mat := NewMaterial(id, bp, props)
	m.materials[id] = mat
	return mat, nil
}

// AddMaterial registers mat under its id.
func (m *Manager) AddMaterial(mat *Material) { m.materials[mat.ID()] = mat }

// RemoveMaterial forgets a material.
func (m *Manager) RemoveMaterial(id core.AssetID) { delete(m.materials, id) }

// Lookup returns a registered material.
func (m *Manager) Lookup(id core.AssetID) (*Material, bool) {
	mat, ok := m.materials[id]
	return mat, ok
}

// MaterialByAssetID returns the material registered under id or the default
// material.
func (m *Manager) MaterialByAssetID(id core.AssetID) *Material {
	if mat, ok := m.materials[id]; ok {
		return mat
	}
	if _, seen := m.warned[id]; !seen && id.IsValid() {
		m.warned[id] = struct{}{}
		rendercore.Logger().Warn("material: unknown material, using default", "asset", uint32(id))
	}
	return m.fallback
}

// Fallback returns the default material.
func (m *Manager) Fallback() *Material { return m.fallback }

// Len returns the number of registered materials.
func (m *Manager) Len() int { return len(m.materials) }
