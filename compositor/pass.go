package compositor

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/render"
)

// PassTypeID is the content hash of a pass kind name.
type PassTypeID core.StringID

// NewPassTypeID hashes a pass kind name.
func NewPassTypeID(name string) PassTypeID { return PassTypeID(core.NewStringID(name)) }

// Built-in pass kinds.
var (
	ClearPassTypeID              = NewPassTypeID("Clear")
	QuadPassTypeID               = NewPassTypeID("Quad")
	ScenePassTypeID              = NewPassTypeID("Scene")
	ShadowMapPassTypeID          = NewPassTypeID("ShadowMap")
	ResolveMultisamplePassTypeID = NewPassTypeID("ResolveMultisample")
	CopyPassTypeID               = NewPassTypeID("Copy")
	DebugGuiPassTypeID           = NewPassTypeID("DebugGui")
	VrHiddenAreaMeshPassTypeID   = NewPassTypeID("VrHiddenAreaMesh")
)

// ResourcePass is the static, deserialized description of one pass.
// Implementations embed PassData.
type ResourcePass interface {
	// TypeID returns the pass kind.
	TypeID() PassTypeID

	// Target returns the owning target, nil until the pass is added to one.
	Target() *Target

	// Data returns the fields shared by every kind.
	Data() *PassData

	// RenderQueueIndexRange returns the declared range of render queue
	// indices the pass draws, if any.
	RenderQueueIndexRange() (minimum, maximum uint8, ok bool)

	// Deserialize decodes the binary pass record.
	Deserialize(data []byte) error

	// Serialize encodes the binary pass record.
	Serialize() ([]byte, error)
}

// InstancePass is the runtime counterpart of a ResourcePass.
type InstancePass interface {
	// Resource returns the pass description.
	Resource() ResourcePass

	// Node returns the owning node instance.
	Node() *NodeInstance

	// FillCommandBuffer records the pass. target is the render target of
	// the owning target; passes that switch to another target restore it.
	FillCommandBuffer(target render.RenderTarget, ctx *ContextData, cb *render.CommandBuffer)

	// PostCommandBufferExecution runs after the frame was submitted.
	PostCommandBufferExecution()

	// Release frees pass-owned resources.
	Release()
}

// rangeRequirer is implemented by passes that cannot work without a render
// queue index range.
type rangeRequirer interface {
	requiresRenderQueueIndexRange() bool
}

// PassData holds the fields every pass kind shares.
type PassData struct {
	// MinimumDepth and MaximumDepth select the viewport depth range. Zero
	// values mean the full [0,1] range.
	MinimumDepth float32
	MaximumDepth float32

	// NumberOfExecutions is how often the owning node runs the pass per
	// frame; 0 means once.
	NumberOfExecutions uint32
	// SkipFirstExecution skips invocation 0.
	SkipFirstExecution bool

	target *Target
}

// Data returns d.
func (d *PassData) Data() *PassData { return d }

// Target returns the owning target.
func (d *PassData) Target() *Target { return d.target }

// Executions returns the number of invocations per frame, at least 1.
func (d *PassData) Executions() uint32 { return max(d.NumberOfExecutions, 1) }

// depthRange returns the viewport depth range and whether it differs from
// the default.
func (d *PassData) depthRange() (minimum, maximum float32, custom bool) {
	if d.MaximumDepth <= d.MinimumDepth || (d.MinimumDepth == 0 && d.MaximumDepth == 1) {
		return 0, 1, false
	}
	return d.MinimumDepth, d.MaximumDepth, true
}

func (d *PassData) record() passDataRecord {
	r := passDataRecord{
		MinimumDepth:       d.MinimumDepth,
		MaximumDepth:       d.MaximumDepth,
		NumberOfExecutions: d.NumberOfExecutions,
	}
	if d.SkipFirstExecution {
		r.SkipFirstExecution = 1
	}
	return r
}

func (d *PassData) setRecord(r passDataRecord) {
	d.MinimumDepth = r.MinimumDepth
	d.MaximumDepth = r.MaximumDepth
	d.NumberOfExecutions = r.NumberOfExecutions
	d.SkipFirstExecution = r.SkipFirstExecution != 0
}

// passDataRecord prefixes every pass record.
type passDataRecord struct {
	MinimumDepth       float32
	MaximumDepth       float32
	NumberOfExecutions uint32
	SkipFirstExecution uint8
	_                  [3]byte
}

// decodeRecords decodes consecutive fixed-size records from data and
// returns the remaining bytes.
func decodeRecords(data []byte, records ...any) ([]byte, error) {
	for _, r := range records {
		n, err := binary.Decode(data, binary.LittleEndian, r)
		if err != nil {
			return nil, fmt.Errorf("%w: pass record: %w", ErrInvalidAsset, err)
		}
		data = data[n:]
	}
	return data, nil
}

// encodeRecords appends fixed-size records to b.
func encodeRecords(b []byte, records ...any) ([]byte, error) {
	var err error
	for _, r := range records {
		if b, err = binary.Append(b, binary.LittleEndian, r); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// instancePass holds what every instance pass shares.
type instancePass struct {
	resource ResourcePass
	node     *NodeInstance
}

func (p *instancePass) Resource() ResourcePass { return p.resource }

func (p *instancePass) Node() *NodeInstance { return p.node }

func (p *instancePass) PostCommandBufferExecution() {}

func (p *instancePass) Release() {}

func expectEnd(rest []byte) error {
	if len(rest) != 0 {
		return fmt.Errorf("%w: %d trailing bytes in pass record", ErrInvalidAsset, len(rest))
	}
	return nil
}
