// Package compositor builds and executes the per-frame pass graph of a
// renderer.
//
// A workspace references compositor nodes in execution order. Each node
// declares render-target textures and framebuffers, and an ordered list of
// targets, each holding resource passes. Resources are static and shared;
// instantiating a workspace creates one NodeInstance per node and one
// InstancePass per resource pass through a PassFactory, registers the
// declared textures and framebuffers with the signature caches, and merges
// the render queue index ranges of all passes into a disjoint range table.
//
// Each frame, WorkspaceInstance.Execute gathers the visible renderable
// managers of the scene into those ranges, lets every pass record commands
// into one render.CommandBuffer and submits it once.
//
// Basic usage:
//
//	renderer, err := compositor.NewRenderer(device)
//	if err != nil {
//		return err
//	}
//	defer renderer.Release()
//
//	node, err := compositor.DecodeNodeAsset(nodeID, data, renderer.PassFactory())
//	if err != nil {
//		return err
//	}
//	renderer.AddNodeResource(node)
//
//	ws, err := compositor.NewWorkspaceInstance(renderer,
//		compositor.NewWorkspaceResource(workspaceID, nodeID),
//		compositor.WithScene(world))
//	if err != nil {
//		return err
//	}
//	defer ws.Release()
//
//	for running {
//		renderer.Dispatch()
//		if err := ws.Execute(swapChain, camera, sun); err != nil {
//			return err
//		}
//	}
package compositor

import "errors"

// Graph build errors.
var (
	// ErrMissingRenderQueueRange is returned when a pass that draws scene
	// renderables declares no render queue index range.
	ErrMissingRenderQueueRange = errors.New("compositor: pass requires a render queue index range")

	// ErrUnknownPassType is returned when an asset references a pass type no
	// factory entry exists for.
	ErrUnknownPassType = errors.New("compositor: unknown pass type")

	// ErrInvalidAsset is returned for truncated or malformed node and
	// workspace assets.
	ErrInvalidAsset = errors.New("compositor: invalid asset")

	// ErrUnknownNode is returned when a workspace references a node resource
	// the renderer does not know.
	ErrUnknownNode = errors.New("compositor: unknown node resource")
)
