// Package cache deduplicates framebuffers and render-target textures by
// content signature.
//
// Compositor nodes declare the render targets they need as signatures.
// Declarations with equal content share one GPU object, reference counted by
// the number of declarations. Adding a declaration only records bookkeeping;
// the GPU object is created lazily on the first lookup against a concrete
// main render target, and ClearRendererResources drops every GPU object
// (for example after a resize) while keeping the bookkeeping, so the next
// lookup recreates it at the new size.
//
// The managers are used from the render thread only and take no locks.
package cache

import "errors"

// ErrConflictingSignature is returned when an id is declared twice with
// different signatures.
var ErrConflictingSignature = errors.New("cache: id declared with conflicting signature")
