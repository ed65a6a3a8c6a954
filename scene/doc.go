// Package scene holds what the compositor draws: renderables grouped into
// renderable managers, each placed by a transform, plus the cameras and
// lights that view and light them.
//
// A Renderable is the leaf draw unit: a vertex array range drawn with one
// material, optionally instanced. It caches its render queue index, its
// shadow-cast flag and a 64-bit state key that render queues sort by.
// A RenderableManager owns its renderables and caches aggregates over them
// (spanned render queue index range, whether any casts shadows, distance to
// the camera), recomputed on demand after a change.
package scene
