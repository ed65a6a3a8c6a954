package compositor

import (
	"github.com/gogpu/rendercore"
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/material"
	"github.com/gogpu/rendercore/render"
)

// VrHiddenAreaMeshFlags select what the hidden area mesh writes.
type VrHiddenAreaMeshFlags uint32

// Hidden area mesh outputs.
const (
	// VrHiddenAreaMeshDepth writes the nearest depth so later draws fail
	// the depth test on hidden pixels.
	VrHiddenAreaMeshDepth VrHiddenAreaMeshFlags = 1 << iota
	// VrHiddenAreaMeshStencil writes StencilReference on hidden pixels.
	VrHiddenAreaMeshStencil
)

// VrHiddenAreaMeshResourcePass masks the pixels a headset lens hides.
type VrHiddenAreaMeshResourcePass struct {
	PassData
	Flags            VrHiddenAreaMeshFlags
	StencilReference uint32
}

type vrHiddenAreaMeshRecord struct {
	Flags            uint32
	StencilReference uint32
}

// TypeID returns VrHiddenAreaMeshPassTypeID.
func (p *VrHiddenAreaMeshResourcePass) TypeID() PassTypeID { return VrHiddenAreaMeshPassTypeID }

// RenderQueueIndexRange reports no range.
func (p *VrHiddenAreaMeshResourcePass) RenderQueueIndexRange() (uint8, uint8, bool) {
	return 0, 0, false
}

// Deserialize decodes the pass record.
func (p *VrHiddenAreaMeshResourcePass) Deserialize(data []byte) error {
	var common passDataRecord
	var rec vrHiddenAreaMeshRecord
	rest, err := decodeRecords(data, &common, &rec)
	if err != nil {
		return err
	}
	p.setRecord(common)
	p.Flags = VrHiddenAreaMeshFlags(rec.Flags)
	p.StencilReference = rec.StencilReference
	return expectEnd(rest)
}

// Serialize encodes the pass record.
func (p *VrHiddenAreaMeshResourcePass) Serialize() ([]byte, error) {
	return encodeRecords(nil, p.record(), vrHiddenAreaMeshRecord{
		Flags:            uint32(p.Flags),
		StencilReference: p.StencilReference,
	})
}

// VrHiddenAreaMeshInstancePass draws the VrManager's hidden area mesh.
type VrHiddenAreaMeshInstancePass struct {
	instancePass
	vr       *VrHiddenAreaMeshResourcePass
	material *material.Material
	warned   bool
}

func newVrHiddenAreaMeshInstancePass(resource ResourcePass, node *NodeInstance) (InstancePass, error) {
	p := &VrHiddenAreaMeshInstancePass{
		instancePass: instancePass{resource: resource, node: node},
		vr:           resource.(*VrHiddenAreaMeshResourcePass),
	}
	materials := node.Workspace().Renderer().MaterialManager()
	if bp, ok := materials.BlueprintByAssetID(material.HiddenAreaBlueprintID); ok {
		p.material = material.NewMaterial(core.InvalidAssetID, bp, material.Properties{})
	}
	return p, nil
}

func (p *VrHiddenAreaMeshInstancePass) techniqueID() (core.MaterialTechniqueID, bool) {
	switch {
	case p.vr.Flags&VrHiddenAreaMeshStencil != 0:
		return material.DefaultTechniqueID, true
	case p.vr.Flags&VrHiddenAreaMeshDepth != 0:
		return material.DepthOnlyTechniqueID, true
	}
	return core.InvalidTechniqueID, false
}

// FillCommandBuffer draws the mesh when a VrManager provides one.
func (p *VrHiddenAreaMeshInstancePass) FillCommandBuffer(target render.RenderTarget, ctx *ContextData, cb *render.CommandBuffer) {
	vr := ctx.Renderer.VrManager()
	if vr == nil || p.material == nil {
		return
	}
	va, count := vr.HiddenAreaMesh()
	if va == nil || count == 0 {
		return
	}
	id, ok := p.techniqueID()
	if !ok {
		return
	}
	tech, ok := p.material.Technique(id)
	if !ok {
		return
	}
	pipeline, err := ctx.FillContext().Pipelines.Pipeline(tech, target, va.Layouts())
	if err != nil {
		if !p.warned {
			p.warned = true
			rendercore.Logger().Warn("compositor: hidden area mesh pipeline unavailable", "err", err)
		}
		return
	}

	cb.SetPipeline(pipeline)
	if p.vr.Flags&VrHiddenAreaMeshStencil != 0 {
		cb.SetStencilReference(p.vr.StencilReference)
	}
	cb.SetVertexArray(va)
	if va.Indexed() {
		cb.DrawIndexed(count, 1, 0, 0, 0)
	} else {
		cb.Draw(count, 1, 0, 0)
	}
}
