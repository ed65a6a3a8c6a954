package compositor

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/render"
)

// ClearResourcePass clears aspects of the current render target.
type ClearResourcePass struct {
	PassData

	Flags   render.ClearFlags
	Color   gputypes.Color
	Depth   float32
	Stencil uint32
}

type clearRecord struct {
	Flags   uint32
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// NewClearResourcePass returns a pass clearing color to black, depth to 1
// and stencil to 0.
func NewClearResourcePass() *ClearResourcePass {
	return &ClearResourcePass{
		Flags: render.ClearAll,
		Color: gputypes.Color{A: 1},
		Depth: 1,
	}
}

// TypeID returns ClearPassTypeID.
func (p *ClearResourcePass) TypeID() PassTypeID { return ClearPassTypeID }

// RenderQueueIndexRange reports no range.
func (p *ClearResourcePass) RenderQueueIndexRange() (uint8, uint8, bool) { return 0, 0, false }

// Deserialize decodes the pass record.
func (p *ClearResourcePass) Deserialize(data []byte) error {
	var common passDataRecord
	var rec clearRecord
	rest, err := decodeRecords(data, &common, &rec)
	if err != nil {
		return err
	}
	p.setRecord(common)
	p.Flags = render.ClearFlags(rec.Flags)
	p.Color = gputypes.Color{
		R: float64(rec.Color[0]),
		G: float64(rec.Color[1]),
		B: float64(rec.Color[2]),
		A: float64(rec.Color[3]),
	}
	p.Depth = rec.Depth
	p.Stencil = rec.Stencil
	return expectEnd(rest)
}

// Serialize encodes the pass record.
func (p *ClearResourcePass) Serialize() ([]byte, error) {
	rec := clearRecord{
		Flags:   uint32(p.Flags),
		Color:   [4]float32{float32(p.Color.R), float32(p.Color.G), float32(p.Color.B), float32(p.Color.A)},
		Depth:   p.Depth,
		Stencil: p.Stencil,
	}
	return encodeRecords(nil, p.record(), rec)
}

// ClearInstancePass records one Clear command.
type ClearInstancePass struct {
	instancePass
	clear *ClearResourcePass
}

func newClearInstancePass(resource ResourcePass, node *NodeInstance) (InstancePass, error) {
	return &ClearInstancePass{
		instancePass: instancePass{resource: resource, node: node},
		clear:        resource.(*ClearResourcePass),
	}, nil
}

// FillCommandBuffer records the clear.
func (p *ClearInstancePass) FillCommandBuffer(_ render.RenderTarget, _ *ContextData, cb *render.CommandBuffer) {
	c := p.clear
	if c.Flags == 0 {
		return
	}
	cb.Clear(c.Flags, c.Color, c.Depth, c.Stencil)
}
