package compositor

import (
	"fmt"

	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/material"
	"github.com/gogpu/rendercore/render"
	"github.com/gogpu/rendercore/renderqueue"
)

// SceneData holds the fields of passes drawing scene renderables.
type SceneData struct {
	HasRange                bool
	MinimumRenderQueueIndex uint8
	MaximumRenderQueueIndex uint8
	// Transparent sorts back to front.
	Transparent bool
	// TechniqueID selects the material technique; unset picks Default, or
	// Transparent for transparent passes.
	TechniqueID core.MaterialTechniqueID
}

type sceneRecord struct {
	HasRange    uint8
	Minimum     uint8
	Maximum     uint8
	Transparent uint8
	TechniqueID uint32
}

// RenderQueueIndexRange returns the declared range.
func (d *SceneData) RenderQueueIndexRange() (minimum, maximum uint8, ok bool) {
	return d.MinimumRenderQueueIndex, d.MaximumRenderQueueIndex, d.HasRange
}

// SetRenderQueueIndexRange declares the range [minimum, maximum].
func (d *SceneData) SetRenderQueueIndexRange(minimum, maximum uint8) {
	d.HasRange = true
	d.MinimumRenderQueueIndex = min(minimum, maximum)
	d.MaximumRenderQueueIndex = max(minimum, maximum)
}

func (d *SceneData) requiresRenderQueueIndexRange() bool { return true }

func (d *SceneData) technique(fallback core.MaterialTechniqueID) core.MaterialTechniqueID {
	if d.TechniqueID == 0 || d.TechniqueID == core.InvalidTechniqueID {
		if d.Transparent {
			return material.TransparentTechniqueID
		}
		return fallback
	}
	return d.TechniqueID
}

func (d *SceneData) record() sceneRecord {
	return sceneRecord{
		HasRange:    boolByte(d.HasRange),
		Minimum:     d.MinimumRenderQueueIndex,
		Maximum:     d.MaximumRenderQueueIndex,
		Transparent: boolByte(d.Transparent),
		TechniqueID: uint32(d.TechniqueID),
	}
}

func (d *SceneData) setRecord(r sceneRecord) {
	d.HasRange = r.HasRange != 0
	d.MinimumRenderQueueIndex = min(r.Minimum, r.Maximum)
	d.MaximumRenderQueueIndex = max(r.Minimum, r.Maximum)
	d.Transparent = r.Transparent != 0
	d.TechniqueID = core.MaterialTechniqueID(r.TechniqueID)
}

// SceneResourcePass draws the visible renderables of a render queue index
// range.
type SceneResourcePass struct {
	PassData
	SceneData
}

// NewSceneResourcePass returns an opaque scene pass over [minimum, maximum].
func NewSceneResourcePass(minimum, maximum uint8) *SceneResourcePass {
	p := &SceneResourcePass{}
	p.SetRenderQueueIndexRange(minimum, maximum)
	return p
}

// TypeID returns ScenePassTypeID.
func (p *SceneResourcePass) TypeID() PassTypeID { return ScenePassTypeID }

// Deserialize decodes the pass record.
func (p *SceneResourcePass) Deserialize(data []byte) error {
	var common passDataRecord
	var rec sceneRecord
	rest, err := decodeRecords(data, &common, &rec)
	if err != nil {
		return err
	}
	p.PassData.setRecord(common)
	p.SceneData.setRecord(rec)
	return expectEnd(rest)
}

// Serialize encodes the pass record.
func (p *SceneResourcePass) Serialize() ([]byte, error) {
	return encodeRecords(nil, p.PassData.record(), p.SceneData.record())
}

// SceneInstancePass feeds the renderables gathered for its range into a
// render queue.
type SceneInstancePass struct {
	instancePass
	scene *SceneResourcePass
	queue *renderqueue.RenderQueue
}

func newSceneInstancePass(resource ResourcePass, node *NodeInstance) (InstancePass, error) {
	p := resource.(*SceneResourcePass)
	return &SceneInstancePass{
		instancePass: instancePass{resource: resource, node: node},
		scene:        p,
		queue:        renderqueue.New(p.MinimumRenderQueueIndex, p.MaximumRenderQueueIndex, p.Transparent),
	}, nil
}

// RenderQueue returns the queue filled during the last frame.
func (p *SceneInstancePass) RenderQueue() *renderqueue.RenderQueue { return p.queue }

// FillCommandBuffer queues the renderables of the pass range and records
// their draws.
func (p *SceneInstancePass) FillCommandBuffer(target render.RenderTarget, ctx *ContextData, cb *render.CommandBuffer) {
	p.queue.Clear()
	gather(p.queue, &p.scene.SceneData, ctx, false)
	p.queue.FillCommandBuffer(target, p.scene.technique(material.DefaultTechniqueID), ctx.FillContext(), cb)
}

// gather adds the managers of the range containing d's range to q.
func gather(q *renderqueue.RenderQueue, d *SceneData, ctx *ContextData, castShadowsOnly bool) {
	rng, ok := ctx.Workspace.RenderQueueIndexRangeByRenderQueueIndex(d.MinimumRenderQueueIndex)
	if !ok {
		panic(fmt.Sprintf("compositor: no render queue index range holds index %d", d.MinimumRenderQueueIndex))
	}
	for _, m := range rng.RenderableManagers {
		q.AddRenderablesFromRenderableManager(m, castShadowsOnly)
	}
}
