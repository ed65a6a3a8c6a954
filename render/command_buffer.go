// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// CommandType identifies a recorded command.
type CommandType uint8

// Recorded command kinds.
const (
	CommandSetRenderTarget CommandType = iota
	CommandSetViewport
	CommandSetScissor
	CommandClear
	CommandSetPipeline
	CommandSetBindGroup
	CommandSetVertexArray
	CommandSetStencilReference
	CommandDraw
	CommandDrawIndexed
	CommandResolveMultisample
	CommandCopyTexture
	CommandBeginDebugEvent
	CommandEndDebugEvent
)

var commandTypeNames = [...]string{
	CommandSetRenderTarget:     "SetRenderTarget",
	CommandSetViewport:         "SetViewport",
	CommandSetScissor:          "SetScissor",
	CommandClear:               "Clear",
	CommandSetPipeline:         "SetPipeline",
	CommandSetBindGroup:        "SetBindGroup",
	CommandSetVertexArray:      "SetVertexArray",
	CommandSetStencilReference: "SetStencilReference",
	CommandDraw:                "Draw",
	CommandDrawIndexed:         "DrawIndexed",
	CommandResolveMultisample:  "ResolveMultisample",
	CommandCopyTexture:         "CopyTexture",
	CommandBeginDebugEvent:     "BeginDebugEvent",
	CommandEndDebugEvent:       "EndDebugEvent",
}

// String returns the command name.
func (t CommandType) String() string {
	if int(t) < len(commandTypeNames) {
		return commandTypeNames[t]
	}
	return "Unknown"
}

// ClearFlags selects the aspects a Clear command affects.
type ClearFlags uint8

// Clear aspects.
const (
	ClearColor ClearFlags = 1 << iota
	ClearDepth
	ClearStencil

	ClearColorDepth = ClearColor | ClearDepth
	ClearAll        = ClearColor | ClearDepth | ClearStencil
)

// Viewport is a render pass viewport in pixels.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// ScissorRect is a render pass scissor rectangle in pixels.
type ScissorRect struct {
	X, Y, Width, Height uint32
}

// Command is one recorded command. Only the fields relevant to Type are set.
type Command struct {
	Type CommandType

	// SetRenderTarget target, ResolveMultisample destination.
	Target RenderTarget
	// ResolveMultisample source.
	Source RenderTarget

	Pipeline  hal.RenderPipeline
	BindGroup hal.BindGroup
	// Index is the bind group index.
	Index uint32

	VertexArray *VertexArray

	Viewport Viewport
	Scissor  ScissorRect

	ClearFlags ClearFlags
	Color      gputypes.Color
	Depth      float32
	// Stencil is the clear value or the stencil reference.
	Stencil uint32

	// Draw parameters. Count is the vertex or index count.
	Count         uint32
	InstanceCount uint32
	First         uint32
	BaseVertex    int32
	FirstInstance uint32

	// CopyTexture source and destination.
	SrcTexture *Texture
	DstTexture *Texture

	Label string
}

// CommandBuffer records commands on the CPU. Nothing reaches the GPU until
// Submit, which encodes the whole buffer into one HAL command buffer.
//
// Recording is retained, so the same buffer can be inspected after
// submission. Reset empties it and keeps the storage.
type CommandBuffer struct {
	commands []Command
}

// NewCommandBuffer creates an empty command buffer.
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{commands: make([]Command, 0, 256)}
}

// Reset removes all commands without freeing storage.
func (cb *CommandBuffer) Reset() {
	clear(cb.commands) // drop references to GPU objects
	cb.commands = cb.commands[:0]
}

// Len returns the number of recorded commands.
func (cb *CommandBuffer) Len() int { return len(cb.commands) }

// IsEmpty reports whether no command has been recorded.
func (cb *CommandBuffer) IsEmpty() bool { return len(cb.commands) == 0 }

// Commands returns the recorded commands. The slice is valid until the next
// Reset.
func (cb *CommandBuffer) Commands() []Command { return cb.commands }

// Count returns how many commands of type t were recorded.
func (cb *CommandBuffer) Count(t CommandType) int {
	n := 0
	for i := range cb.commands {
		if cb.commands[i].Type == t {
			n++
		}
	}
	return n
}

// SetRenderTarget directs following draws and clears to t.
func (cb *CommandBuffer) SetRenderTarget(t RenderTarget) {
	cb.commands = append(cb.commands, Command{Type: CommandSetRenderTarget, Target: t})
}

// SetViewport sets the viewport.
func (cb *CommandBuffer) SetViewport(v Viewport) {
	cb.commands = append(cb.commands, Command{Type: CommandSetViewport, Viewport: v})
}

// SetScissor sets the scissor rectangle.
func (cb *CommandBuffer) SetScissor(r ScissorRect) {
	cb.commands = append(cb.commands, Command{Type: CommandSetScissor, Scissor: r})
}

// Clear clears the selected aspects of the current render target.
func (cb *CommandBuffer) Clear(flags ClearFlags, color gputypes.Color, depth float32, stencil uint32) {
	cb.commands = append(cb.commands, Command{
		Type:       CommandClear,
		ClearFlags: flags,
		Color:      color,
		Depth:      depth,
		Stencil:    stencil,
	})
}

// SetPipeline binds a render pipeline.
func (cb *CommandBuffer) SetPipeline(p hal.RenderPipeline) {
	cb.commands = append(cb.commands, Command{Type: CommandSetPipeline, Pipeline: p})
}

// SetBindGroup binds a resource group (descriptor table) at index.
func (cb *CommandBuffer) SetBindGroup(index uint32, g hal.BindGroup) {
	cb.commands = append(cb.commands, Command{Type: CommandSetBindGroup, Index: index, BindGroup: g})
}

// SetVertexArray binds vertex and index buffers.
func (cb *CommandBuffer) SetVertexArray(va *VertexArray) {
	cb.commands = append(cb.commands, Command{Type: CommandSetVertexArray, VertexArray: va})
}

// SetStencilReference sets the stencil reference value.
func (cb *CommandBuffer) SetStencilReference(ref uint32) {
	cb.commands = append(cb.commands, Command{Type: CommandSetStencilReference, Stencil: ref})
}

// Draw records a non-indexed instanced draw.
func (cb *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	cb.commands = append(cb.commands, Command{
		Type:          CommandDraw,
		Count:         vertexCount,
		InstanceCount: max(instanceCount, 1),
		First:         firstVertex,
		FirstInstance: firstInstance,
	})
}

// DrawIndexed records an indexed instanced draw.
func (cb *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	cb.commands = append(cb.commands, Command{
		Type:          CommandDrawIndexed,
		Count:         indexCount,
		InstanceCount: max(instanceCount, 1),
		First:         firstIndex,
		BaseVertex:    baseVertex,
		FirstInstance: firstInstance,
	})
}

// ResolveMultisample resolves the color attachments of src into dst.
func (cb *CommandBuffer) ResolveMultisample(dst, src RenderTarget) {
	cb.commands = append(cb.commands, Command{Type: CommandResolveMultisample, Target: dst, Source: src})
}

// CopyTexture copies mip level 0 of src into dst.
func (cb *CommandBuffer) CopyTexture(dst, src *Texture) {
	cb.commands = append(cb.commands, Command{Type: CommandCopyTexture, DstTexture: dst, SrcTexture: src})
}

// BeginDebugEvent opens a labeled region. Render passes opened inside it
// carry the label.
func (cb *CommandBuffer) BeginDebugEvent(label string) {
	cb.commands = append(cb.commands, Command{Type: CommandBeginDebugEvent, Label: label})
}

// EndDebugEvent closes the innermost labeled region.
func (cb *CommandBuffer) EndDebugEvent() {
	cb.commands = append(cb.commands, Command{Type: CommandEndDebugEvent})
}
