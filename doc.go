// Package rendercore is the execution core of a real-time 3D renderer.
//
// # Overview
//
// rendercore turns a declarative render-pipeline graph, the compositor, into
// one sequence of GPU commands per frame. A compositor workspace references
// nodes; each node declares render-target textures, framebuffers and targets;
// each target holds an ordered list of passes (Clear, Quad, Scene, ShadowMap,
// ResolveMultisample, Copy, DebugGui, VrHiddenAreaMesh).
//
// GPU access goes through the gogpu/wgpu HAL, so the same code runs on
// Vulkan, Metal, DX12, GLES or the noop backend used in tests.
//
// # Packages
//
//   - [github.com/gogpu/rendercore/compositor]: workspace, nodes, passes, per-frame Execute
//   - [github.com/gogpu/rendercore/cache]: refcounted framebuffer and render-target-texture caches
//   - [github.com/gogpu/rendercore/renderqueue]: sorted, state-minimizing draw emission
//   - [github.com/gogpu/rendercore/scene]: renderables, cameras, lights
//   - [github.com/gogpu/rendercore/material]: blueprints, materials and render pipeline cache
//   - [github.com/gogpu/rendercore/texture]: texture registry with placeholder fallbacks
//   - [github.com/gogpu/rendercore/render]: device wrapper, render targets, command buffer
//   - [github.com/gogpu/rendercore/asset]: loading states, background loads and between-frame dispatch
//   - [github.com/gogpu/rendercore/core]: hashed string ids
//
// # Quick Start
//
//	device, err := render.NewDevice(halDevice, halQueue)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	renderer, err := compositor.NewRenderer(device)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer renderer.Release()
//
//	workspace, err := compositor.NewWorkspaceInstance(renderer, workspaceResource,
//	    compositor.WithScene(sc),
//	    compositor.WithNumberOfMultisamples(4),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer workspace.Release()
//
//	for running {
//	    renderer.Dispatch() // apply finished asset loads between frames
//	    if err := workspace.Execute(swapChain, camera, sun); err != nil {
//	        log.Print(err)
//	    }
//	}
//
// # Threading
//
// Execute runs on the thread that owns the GPU device. Asset loading may
// happen on other goroutines; results are handed over through an
// [github.com/gogpu/rendercore/asset.Dispatcher] drained between frames by
// Renderer.Dispatch.
package rendercore

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
