package compositor

import (
	"fmt"

	"github.com/gogpu/rendercore"
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/material"
	"github.com/gogpu/rendercore/render"
	"github.com/gogpu/rendercore/renderqueue"
	"github.com/gogpu/rendercore/scene"
)

// QuadData holds the material fields of full-screen passes.
type QuadData struct {
	// MaterialAssetID names a registered material. When invalid the pass
	// creates its own material from MaterialBlueprintAssetID and
	// Properties.
	MaterialAssetID          core.AssetID
	MaterialBlueprintAssetID core.AssetID
	TechniqueID              core.MaterialTechniqueID
	Properties               material.Properties
}

type quadRecord struct {
	MaterialAssetID            uint32
	MaterialBlueprintAssetID   uint32
	TechniqueID                uint32
	NumberOfMaterialProperties uint32
}

func defaultQuadData() QuadData {
	return QuadData{
		MaterialAssetID:          core.InvalidAssetID,
		MaterialBlueprintAssetID: material.FullscreenBlueprintID,
		TechniqueID:              material.DefaultTechniqueID,
	}
}

func (d *QuadData) technique() core.MaterialTechniqueID {
	if d.TechniqueID == 0 || d.TechniqueID == core.InvalidTechniqueID {
		return material.DefaultTechniqueID
	}
	return d.TechniqueID
}

func (d *QuadData) deserialize(data []byte, common *passDataRecord) error {
	var rec quadRecord
	rest, err := decodeRecords(data, common, &rec)
	if err != nil {
		return err
	}
	props, n, err := material.DecodeProperties(rest, int(rec.NumberOfMaterialProperties))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAsset, err)
	}
	d.MaterialAssetID = core.AssetID(rec.MaterialAssetID)
	d.MaterialBlueprintAssetID = core.AssetID(rec.MaterialBlueprintAssetID)
	d.TechniqueID = core.MaterialTechniqueID(rec.TechniqueID)
	d.Properties = props
	return expectEnd(rest[n:])
}

func (d *QuadData) serialize(common passDataRecord) ([]byte, error) {
	rec := quadRecord{
		MaterialAssetID:            uint32(d.MaterialAssetID),
		MaterialBlueprintAssetID:   uint32(d.MaterialBlueprintAssetID),
		TechniqueID:                uint32(d.TechniqueID),
		NumberOfMaterialProperties: uint32(d.Properties.Len()), //nolint:gosec // property count fits
	}
	b, err := encodeRecords(nil, common, rec)
	if err != nil {
		return nil, err
	}
	return material.AppendProperties(b, d.Properties)
}

// QuadResourcePass draws one full-screen triangle with a material.
type QuadResourcePass struct {
	PassData
	QuadData
}

// NewQuadResourcePass returns a pass drawing the built-in full-screen
// blueprint.
func NewQuadResourcePass() *QuadResourcePass {
	return &QuadResourcePass{QuadData: defaultQuadData()}
}

// TypeID returns QuadPassTypeID.
func (p *QuadResourcePass) TypeID() PassTypeID { return QuadPassTypeID }

// RenderQueueIndexRange reports no range.
func (p *QuadResourcePass) RenderQueueIndexRange() (uint8, uint8, bool) { return 0, 0, false }

// Deserialize decodes the pass record and its material properties.
func (p *QuadResourcePass) Deserialize(data []byte) error {
	var common passDataRecord
	if err := p.deserialize(data, &common); err != nil {
		return err
	}
	p.setRecord(common)
	return nil
}

// Serialize encodes the pass record and its material properties.
func (p *QuadResourcePass) Serialize() ([]byte, error) { return p.serialize(p.record()) }

// quadMaterial resolves the material of a full-screen pass each frame so
// materials registered after the graph was built are picked up.
type quadMaterial struct {
	data   *QuadData
	owned  *material.Material
	warned bool
}

func (q *quadMaterial) resolve(materials *material.Manager) *material.Material {
	if q.data.MaterialAssetID.IsValid() && q.data.MaterialAssetID != 0 {
		return materials.MaterialByAssetID(q.data.MaterialAssetID)
	}
	if q.owned != nil {
		return q.owned
	}
	bp, ok := materials.BlueprintByAssetID(q.data.MaterialBlueprintAssetID)
	if !ok {
		if !q.warned {
			q.warned = true
			rendercore.Logger().Warn("compositor: unknown blueprint, using default material",
				"blueprint", uint32(q.data.MaterialBlueprintAssetID))
		}
		return materials.Fallback()
	}
	q.owned = material.NewMaterial(core.InvalidAssetID, bp, q.data.Properties.Clone())
	return q.owned
}

// QuadInstancePass draws the shared full-screen triangle through a render
// queue.
type QuadInstancePass struct {
	instancePass
	mat       quadMaterial
	technique core.MaterialTechniqueID

	manager    *scene.RenderableManager
	renderable *scene.Renderable
	queue      *renderqueue.RenderQueue
}

func newQuadInstancePass(resource ResourcePass, node *NodeInstance) (InstancePass, error) {
	qp := resource.(*QuadResourcePass)
	triangle, err := node.Workspace().Renderer().acquireFullscreenTriangle()
	if err != nil {
		return nil, err
	}
	p := &QuadInstancePass{
		instancePass: instancePass{resource: resource, node: node},
		mat:          quadMaterial{data: &qp.QuadData},
		technique:    qp.technique(),
		manager:      scene.NewRenderableManager(nil),
		queue:        renderqueue.New(0, 0, false),
	}
	p.renderable = p.manager.AddRenderable(scene.RenderableDescriptor{
		VertexArray:     triangle,
		NumberOfIndices: fullscreenTriangleVertices,
	})
	return p, nil
}

// RenderQueue returns the queue filled during the last frame.
func (p *QuadInstancePass) RenderQueue() *renderqueue.RenderQueue { return p.queue }

// FillCommandBuffer records the triangle draw.
func (p *QuadInstancePass) FillCommandBuffer(target render.RenderTarget, ctx *ContextData, cb *render.CommandBuffer) {
	if mat := p.mat.resolve(ctx.Renderer.MaterialManager()); p.renderable.Material() != mat {
		p.renderable.SetMaterial(mat)
	}
	p.queue.Clear()
	p.queue.AddRenderable(p.renderable, 0)
	p.queue.FillCommandBuffer(target, p.technique, ctx.FillContext(), cb)
}

// Release drops the reference to the shared full-screen triangle.
func (p *QuadInstancePass) Release() {
	if p.renderable == nil {
		return
	}
	p.manager.RemoveRenderable(p.renderable)
	p.renderable = nil
	p.node.Workspace().Renderer().releaseFullscreenTriangle()
}

// DebugGuiResourcePass hands the current target to the renderer's DebugGui.
type DebugGuiResourcePass struct {
	PassData
	QuadData
}

// NewDebugGuiResourcePass returns a debug GUI pass using the full-screen
// blueprint.
func NewDebugGuiResourcePass() *DebugGuiResourcePass {
	return &DebugGuiResourcePass{QuadData: defaultQuadData()}
}

// TypeID returns DebugGuiPassTypeID.
func (p *DebugGuiResourcePass) TypeID() PassTypeID { return DebugGuiPassTypeID }

// RenderQueueIndexRange reports no range.
func (p *DebugGuiResourcePass) RenderQueueIndexRange() (uint8, uint8, bool) { return 0, 0, false }

// Deserialize decodes the pass record and its material properties.
func (p *DebugGuiResourcePass) Deserialize(data []byte) error {
	var common passDataRecord
	if err := p.deserialize(data, &common); err != nil {
		return err
	}
	p.setRecord(common)
	return nil
}

// Serialize encodes the pass record and its material properties.
func (p *DebugGuiResourcePass) Serialize() ([]byte, error) { return p.serialize(p.record()) }

// DebugGuiInstancePass records the GUI when a DebugGui is configured.
type DebugGuiInstancePass struct {
	instancePass
	mat quadMaterial
}

func newDebugGuiInstancePass(resource ResourcePass, node *NodeInstance) (InstancePass, error) {
	gp := resource.(*DebugGuiResourcePass)
	return &DebugGuiInstancePass{
		instancePass: instancePass{resource: resource, node: node},
		mat:          quadMaterial{data: &gp.QuadData},
	}, nil
}

// FillCommandBuffer lets the DebugGui record its draws into target.
func (p *DebugGuiInstancePass) FillCommandBuffer(target render.RenderTarget, ctx *ContextData, cb *render.CommandBuffer) {
	gui := ctx.Renderer.DebugGui()
	if gui == nil {
		return
	}
	cb.BeginDebugEvent("debug_gui")
	gui.FillCommandBuffer(target, p.mat.resolve(ctx.Renderer.MaterialManager()), cb)
	cb.EndDebugEvent()
}
