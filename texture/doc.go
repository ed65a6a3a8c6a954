// Package texture maps texture asset ids to GPU textures.
//
// Lookups never fail: an id that has no texture yet resolves to a 1×1
// placeholder, so materials can be bound before their images finish
// streaming. Images are decoded off the render thread by Load and uploaded
// when the asset Dispatcher runs the completion.
//
// Render-target textures owned by the compositor caches are published here
// with Publish under their asset id so shaders can sample them like any
// other texture.
package texture
