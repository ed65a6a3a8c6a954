package compositor

import (
	"fmt"

	"github.com/gogpu/gpucontext"
)

// PassKind constructs the resource and instance passes of one pass type.
type PassKind struct {
	// Name is hashed into the pass type id.
	Name string

	// NewResourcePass returns an empty resource pass to deserialize into.
	NewResourcePass func() ResourcePass

	// NewInstancePass creates the runtime pass for resource inside node.
	NewInstancePass func(resource ResourcePass, node *NodeInstance) (InstancePass, error)
}

// PassFactory maps pass type ids to their constructors. It is safe for
// concurrent use.
type PassFactory struct {
	kinds *gpucontext.Registry[PassKind]
}

// NewPassFactory returns a factory knowing the built-in pass kinds.
func NewPassFactory() *PassFactory {
	f := &PassFactory{kinds: gpucontext.NewRegistry[PassKind]()}
	f.Register(PassKind{
		Name:            "Clear",
		NewResourcePass: func() ResourcePass { return NewClearResourcePass() },
		NewInstancePass: newClearInstancePass,
	})
	f.Register(PassKind{
		Name:            "Quad",
		NewResourcePass: func() ResourcePass { return NewQuadResourcePass() },
		NewInstancePass: newQuadInstancePass,
	})
	f.Register(PassKind{
		Name:            "Scene",
		NewResourcePass: func() ResourcePass { return &SceneResourcePass{} },
		NewInstancePass: newSceneInstancePass,
	})
	f.Register(PassKind{
		Name:            "ShadowMap",
		NewResourcePass: func() ResourcePass { return &ShadowMapResourcePass{} },
		NewInstancePass: newShadowMapInstancePass,
	})
	f.Register(PassKind{
		Name:            "ResolveMultisample",
		NewResourcePass: func() ResourcePass { return &ResolveMultisampleResourcePass{} },
		NewInstancePass: newResolveMultisampleInstancePass,
	})
	f.Register(PassKind{
		Name:            "Copy",
		NewResourcePass: func() ResourcePass { return &CopyResourcePass{} },
		NewInstancePass: newCopyInstancePass,
	})
	f.Register(PassKind{
		Name:            "DebugGui",
		NewResourcePass: func() ResourcePass { return NewDebugGuiResourcePass() },
		NewInstancePass: newDebugGuiInstancePass,
	})
	f.Register(PassKind{
		Name:            "VrHiddenAreaMesh",
		NewResourcePass: func() ResourcePass { return &VrHiddenAreaMeshResourcePass{} },
		NewInstancePass: newVrHiddenAreaMeshInstancePass,
	})
	return f
}

func registryKey(id PassTypeID) string { return fmt.Sprintf("%08x", uint32(id)) }

// Register adds or replaces a pass kind and returns its type id.
func (f *PassFactory) Register(kind PassKind) PassTypeID {
	id := NewPassTypeID(kind.Name)
	f.kinds.Register(registryKey(id), func() PassKind { return kind })
	return id
}

// Has reports whether id names a registered kind.
func (f *PassFactory) Has(id PassTypeID) bool { return f.kinds.Has(registryKey(id)) }

// Len returns the number of registered kinds.
func (f *PassFactory) Len() int { return f.kinds.Count() }

// Name returns the kind name of id, or "" for unknown ids.
func (f *PassFactory) Name(id PassTypeID) string {
	if !f.Has(id) {
		return ""
	}
	return f.kinds.Get(registryKey(id)).Name
}

func (f *PassFactory) kind(id PassTypeID) PassKind {
	key := registryKey(id)
	if !f.kinds.Has(key) {
		panic(fmt.Sprintf("compositor: no pass kind registered for type id %08x", uint32(id)))
	}
	return f.kinds.Get(key)
}

// NewResourcePass returns an empty resource pass of kind id. It panics for
// unknown ids; check Has first when the id comes from data.
func (f *PassFactory) NewResourcePass(id PassTypeID) ResourcePass {
	return f.kind(id).NewResourcePass()
}

// NewInstancePass creates the runtime pass for resource. It panics for
// unknown pass kinds.
func (f *PassFactory) NewInstancePass(resource ResourcePass, node *NodeInstance) (InstancePass, error) {
	return f.kind(resource.TypeID()).NewInstancePass(resource, node)
}
