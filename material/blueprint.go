package material

import (
	_ "embed"
	"slices"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendercore/core"
)

//go:embed shaders/default.wgsl
var defaultShaderSource string

//go:embed shaders/fullscreen.wgsl
var fullscreenShaderSource string

// Well-known technique ids.
var (
	DefaultTechniqueID     = core.MaterialTechniqueID(core.NewStringID("Default"))
	DepthOnlyTechniqueID   = core.MaterialTechniqueID(core.NewStringID("DepthOnly"))
	TransparentTechniqueID = core.MaterialTechniqueID(core.NewStringID("Transparent"))
)

// Well-known blueprint ids.
var (
	DefaultBlueprintID    = core.AssetID(core.NewStringID("blueprint/default"))
	FullscreenBlueprintID = core.AssetID(core.NewStringID("blueprint/fullscreen"))
	HiddenAreaBlueprintID = core.AssetID(core.NewStringID("blueprint/hidden_area"))
)

// StencilState is the stencil test of a technique.
type StencilState struct {
	Compare   gputypes.CompareFunction
	PassOp    hal.StencilOperation
	ReadMask  uint32
	WriteMask uint32
}

// Technique is one way of drawing with a blueprint.
type Technique struct {
	ID core.MaterialTechniqueID

	// Entry points; empty means the blueprint default.
	VertexEntryPoint   string
	FragmentEntryPoint string

	// Blend is nil for opaque output.
	Blend *gputypes.BlendState
	// ColorWrite disables color output when false; the fragment stage is
	// then omitted.
	ColorWrite   bool
	CullMode     gputypes.CullMode
	DepthWrite   bool
	DepthCompare gputypes.CompareFunction
	DepthBias    int32
	Stencil      *StencilState

	blueprint *Blueprint
}

// Blueprint returns the blueprint owning the technique.
func (t *Technique) Blueprint() *Blueprint { return t.blueprint }

// Transparent reports whether the technique blends.
func (t *Technique) Transparent() bool { return t.Blend != nil }

// Blueprint is shader source plus the techniques drawing with it.
type Blueprint struct {
	id     core.AssetID
	label  string
	source string

	VertexEntryPoint   string
	FragmentEntryPoint string

	// BindGroupLayouts of the pipeline layout, owned by the caller. Empty
	// for shaders without resources.
	BindGroupLayouts []hal.BindGroupLayout

	techniques []*Technique // sorted by id

	materials atomic.Uint32 // materials created on this blueprint
}

// NewBlueprint creates a blueprint from WGSL with entry points vs_main and
// fs_main.
func NewBlueprint(id core.AssetID, label, wgsl string) *Blueprint {
	return &Blueprint{
		id:                 id,
		label:              label,
		source:             wgsl,
		VertexEntryPoint:   "vs_main",
		FragmentEntryPoint: "fs_main",
	}
}

// ID returns the blueprint asset id.
func (b *Blueprint) ID() core.AssetID { return b.id }

// Label returns the debug name.
func (b *Blueprint) Label() string { return b.label }

// Source returns the WGSL source.
func (b *Blueprint) Source() string { return b.source }

// AddTechnique adds or replaces a technique and returns the stored copy.
func (b *Blueprint) AddTechnique(t Technique) *Technique {
	stored := &t
	stored.blueprint = b
	i, found := slices.BinarySearchFunc(b.techniques, t.ID, compareTechnique)
	if found {
		b.techniques[i] = stored
	} else {
		b.techniques = slices.Insert(b.techniques, i, stored)
	}
	return stored
}

// Technique returns the technique with the given id.
func (b *Blueprint) Technique(id core.MaterialTechniqueID) (*Technique, bool) {
	i, found := slices.BinarySearchFunc(b.techniques, id, compareTechnique)
	if !found {
		return nil, false
	}
	return b.techniques[i], true
}

// Techniques returns the techniques in id order.
func (b *Blueprint) Techniques() []*Technique { return b.techniques }

func compareTechnique(t *Technique, id core.MaterialTechniqueID) int {
	switch {
	case t.ID < id:
		return -1
	case t.ID > id:
		return 1
	}
	return 0
}

// withStandardTechniques adds Default, DepthOnly and Transparent.
func (b *Blueprint) withStandardTechniques() *Blueprint {
	b.AddTechnique(Technique{
		ID:           DefaultTechniqueID,
		ColorWrite:   true,
		CullMode:     gputypes.CullModeBack,
		DepthWrite:   true,
		DepthCompare: gputypes.CompareFunctionLessEqual,
	})
	b.AddTechnique(Technique{
		ID:           DepthOnlyTechniqueID,
		CullMode:     gputypes.CullModeBack,
		DepthWrite:   true,
		DepthCompare: gputypes.CompareFunctionLessEqual,
		DepthBias:    2,
	})
	alpha := gputypes.BlendStateAlpha()
	b.AddTechnique(Technique{
		ID:           TransparentTechniqueID,
		Blend:        &alpha,
		ColorWrite:   true,
		DepthCompare: gputypes.CompareFunctionLessEqual,
	})
	return b
}

// DefaultBlueprint returns a new instance of the built-in unlit blueprint
// with the standard techniques. Its vertex input is a float32x3 position.
func DefaultBlueprint() *Blueprint {
	return NewBlueprint(DefaultBlueprintID, "default", defaultShaderSource).withStandardTechniques()
}

// FullscreenBlueprint returns a new instance of the built-in full-screen
// blueprint. Its vertex input is a float32x2 clip-space position, and its
// Default technique neither tests nor writes depth.
func FullscreenBlueprint() *Blueprint {
	b := NewBlueprint(FullscreenBlueprintID, "fullscreen", fullscreenShaderSource)
	b.AddTechnique(Technique{
		ID:           DefaultTechniqueID,
		ColorWrite:   true,
		DepthCompare: gputypes.CompareFunctionAlways,
	})
	return b
}

// HiddenAreaBlueprint returns the blueprint masking pixels a headset lens
// hides. It shares the full-screen vertex stage and never writes color. Its
// Default technique writes the nearest depth and replaces the stencil value;
// DepthOnly leaves stencil untouched.
func HiddenAreaBlueprint() *Blueprint {
	b := NewBlueprint(HiddenAreaBlueprintID, "hidden_area", fullscreenShaderSource)
	b.AddTechnique(Technique{
		ID:           DefaultTechniqueID,
		DepthWrite:   true,
		DepthCompare: gputypes.CompareFunctionAlways,
		Stencil: &StencilState{
			Compare:   gputypes.CompareFunctionAlways,
			PassOp:    hal.StencilOperationReplace,
			ReadMask:  0xFF,
			WriteMask: 0xFF,
		},
	})
	b.AddTechnique(Technique{
		ID:           DepthOnlyTechniqueID,
		DepthWrite:   true,
		DepthCompare: gputypes.CompareFunctionAlways,
	})
	return b
}
