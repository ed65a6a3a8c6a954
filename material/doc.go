// Package material describes how renderables are shaded.
//
// A Blueprint holds WGSL source and a set of techniques. A Technique is one
// way of drawing with the blueprint (default, depth only, transparent) and
// carries the fixed-function state. A Material binds a blueprint to a
// property block and an optional bind group.
//
// PipelineCache turns (technique, render target formats, vertex layout) into
// a hal.RenderPipeline, compiling the blueprint WGSL to SPIR-V with naga the
// first time it is needed. Pipelines are kept in an LRU and destroyed on
// eviction.
package material
