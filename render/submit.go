// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrNoRenderTarget is returned by Submit when a clear or draw is recorded
// before any SetRenderTarget.
var ErrNoRenderTarget = errors.New("render: command recorded without render target")

// maxBindGroups is the number of bind group slots tracked during replay.
const maxBindGroups = 4

// inFlightSubmission keeps a submitted command buffer alive until the GPU
// reports its submission index complete.
type inFlightSubmission struct {
	index   uint64
	encoder hal.CommandEncoder
	cmd     hal.CommandBuffer
}

// retire frees submissions the GPU has finished.
func (d *Device) retire() {
	done := d.queue.PollCompleted()
	n := 0
	for _, s := range d.inFlight {
		if s.index <= done {
			d.device.FreeCommandBuffer(s.cmd)
			s.encoder.Destroy()
			continue
		}
		d.inFlight[n] = s
		n++
	}
	clear(d.inFlight[n:])
	d.inFlight = d.inFlight[:n]
}

// InFlight returns the number of submissions not yet retired.
func (d *Device) InFlight() int { return len(d.inFlight) }

// WaitIdle blocks until the GPU is idle and frees every retired submission.
func (d *Device) WaitIdle() error {
	err := d.device.WaitIdle()
	d.retire()
	if err != nil {
		return fmt.Errorf("wait idle: %w", err)
	}
	return nil
}

// Submit encodes every recorded command into a single HAL command buffer and
// submits it with one queue submission. It returns the submission index, or
// 0 when the buffer is empty.
//
// Render passes are opened lazily: a Clear followed by draws becomes one pass
// with clear load operations, and state set before a pass is opened is
// applied when it opens.
func (cb *CommandBuffer) Submit(d *Device) (uint64, error) {
	d.retire()
	if cb.IsEmpty() {
		return 0, nil
	}

	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "rendercore_frame"})
	if err != nil {
		return 0, fmt.Errorf("create command encoder: %w", err)
	}
	if err := enc.BeginEncoding("rendercore_frame"); err != nil {
		enc.Destroy()
		return 0, fmt.Errorf("begin encoding: %w", err)
	}

	r := replayer{enc: enc}
	if err := r.run(cb.commands); err != nil {
		r.endPass()
		enc.DiscardEncoding()
		enc.Destroy()
		return 0, err
	}

	cmd, err := enc.EndEncoding()
	if err != nil {
		enc.Destroy()
		return 0, fmt.Errorf("end encoding: %w", err)
	}
	index, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.device.FreeCommandBuffer(cmd)
		enc.Destroy()
		return 0, fmt.Errorf("submit: %w", err)
	}
	d.inFlight = append(d.inFlight, inFlightSubmission{index: index, encoder: enc, cmd: cmd})
	return index, nil
}

// replayer translates recorded commands into HAL render passes.
type replayer struct {
	enc hal.CommandEncoder
	rp  hal.RenderPassEncoder

	target RenderTarget
	att    Attachments
	clear  *Command
	labels []string

	// State re-applied whenever a pass opens.
	pipeline    hal.RenderPipeline
	bindGroups  [maxBindGroups]hal.BindGroup
	vertexArray *VertexArray
	viewport    *Viewport
	scissor     *ScissorRect
	stencilRef  *uint32
}

func (r *replayer) run(cmds []Command) error {
	for i := range cmds {
		c := &cmds[i]
		switch c.Type {
		case CommandSetRenderTarget:
			if err := r.flush(); err != nil {
				return err
			}
			att, err := c.Target.Attachments()
			if err != nil {
				return fmt.Errorf("render target attachments: %w", err)
			}
			r.target, r.att = c.Target, att
			r.resetState()

		case CommandClear:
			if r.target == nil {
				return ErrNoRenderTarget
			}
			// A clear inside an open pass reopens it with clear load ops.
			r.endPass()
			r.mergeClear(c)

		case CommandSetViewport:
			r.viewport = &c.Viewport
			if r.rp != nil {
				r.applyViewport()
			}
		case CommandSetScissor:
			r.scissor = &c.Scissor
			if r.rp != nil {
				r.rp.SetScissorRect(c.Scissor.X, c.Scissor.Y, c.Scissor.Width, c.Scissor.Height)
			}
		case CommandSetPipeline:
			r.pipeline = c.Pipeline
			if r.rp != nil && c.Pipeline != nil {
				r.rp.SetPipeline(c.Pipeline)
			}
		case CommandSetBindGroup:
			if c.Index >= maxBindGroups {
				return fmt.Errorf("render: bind group index %d out of range", c.Index)
			}
			r.bindGroups[c.Index] = c.BindGroup
			if r.rp != nil && c.BindGroup != nil {
				r.rp.SetBindGroup(c.Index, c.BindGroup, nil)
			}
		case CommandSetVertexArray:
			r.vertexArray = c.VertexArray
			if r.rp != nil && c.VertexArray != nil {
				c.VertexArray.bind(r.rp)
			}
		case CommandSetStencilReference:
			r.stencilRef = &c.Stencil
			if r.rp != nil {
				r.rp.SetStencilReference(c.Stencil)
			}

		case CommandDraw:
			if err := r.ensurePass(); err != nil {
				return err
			}
			r.rp.Draw(c.Count, c.InstanceCount, c.First, c.FirstInstance)
		case CommandDrawIndexed:
			if err := r.ensurePass(); err != nil {
				return err
			}
			r.rp.DrawIndexed(c.Count, c.InstanceCount, c.First, c.BaseVertex, c.FirstInstance)

		case CommandResolveMultisample:
			if err := r.flush(); err != nil {
				return err
			}
			if err := r.resolve(c.Target, c.Source); err != nil {
				return err
			}
		case CommandCopyTexture:
			if err := r.flush(); err != nil {
				return err
			}
			r.copyTexture(c.DstTexture, c.SrcTexture)

		case CommandBeginDebugEvent:
			r.labels = append(r.labels, c.Label)
		case CommandEndDebugEvent:
			if len(r.labels) > 0 {
				r.labels = r.labels[:len(r.labels)-1]
			}
		}
	}
	return r.flush()
}

func (r *replayer) mergeClear(c *Command) {
	if r.clear == nil {
		cc := *c
		r.clear = &cc
		return
	}
	r.clear.ClearFlags |= c.ClearFlags
	if c.ClearFlags&ClearColor != 0 {
		r.clear.Color = c.Color
	}
	if c.ClearFlags&ClearDepth != 0 {
		r.clear.Depth = c.Depth
	}
	if c.ClearFlags&ClearStencil != 0 {
		r.clear.Stencil = c.Stencil
	}
}

func (r *replayer) resetState() {
	r.pipeline = nil
	r.bindGroups = [maxBindGroups]hal.BindGroup{}
	r.vertexArray = nil
	r.viewport = nil
	r.scissor = nil
	r.stencilRef = nil
}

func (r *replayer) label() string {
	if len(r.labels) == 0 {
		return "rendercore_pass"
	}
	return r.labels[len(r.labels)-1]
}

// flush executes a pending clear that no draw consumed and closes the pass.
func (r *replayer) flush() error {
	if r.clear != nil && r.rp == nil {
		if err := r.ensurePass(); err != nil {
			return err
		}
	}
	r.endPass()
	return nil
}

func (r *replayer) endPass() {
	if r.rp != nil {
		r.rp.End()
		r.rp = nil
	}
}

func (r *replayer) ensurePass() error {
	if r.rp != nil {
		return nil
	}
	if r.target == nil {
		return ErrNoRenderTarget
	}

	var flags ClearFlags
	var clr Command
	if r.clear != nil {
		clr = *r.clear
		flags = clr.ClearFlags
	}

	desc := &hal.RenderPassDescriptor{Label: r.label()}
	for _, view := range r.att.Colors {
		a := hal.RenderPassColorAttachment{
			View:    view,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}
		if flags&ClearColor != 0 {
			a.LoadOp = gputypes.LoadOpClear
			a.ClearValue = clr.Color
		}
		desc.ColorAttachments = append(desc.ColorAttachments, a)
	}
	if r.att.DepthStencil != nil {
		format := r.target.DepthStencilFormat()
		ds := &hal.RenderPassDepthStencilAttachment{View: r.att.DepthStencil}
		if format.HasDepth() {
			ds.DepthLoadOp = gputypes.LoadOpLoad
			ds.DepthStoreOp = gputypes.StoreOpStore
			if flags&ClearDepth != 0 {
				ds.DepthLoadOp = gputypes.LoadOpClear
				ds.DepthClearValue = clr.Depth
			}
		}
		if format.HasStencil() {
			ds.StencilLoadOp = gputypes.LoadOpLoad
			ds.StencilStoreOp = gputypes.StoreOpStore
			if flags&ClearStencil != 0 {
				ds.StencilLoadOp = gputypes.LoadOpClear
				ds.StencilClearValue = clr.Stencil
			}
		}
		desc.DepthStencilAttachment = ds
	}

	r.rp = r.enc.BeginRenderPass(desc)
	r.clear = nil
	r.applyState()
	return nil
}

func (r *replayer) applyViewport() {
	v := r.viewport
	r.rp.SetViewport(v.X, v.Y, v.Width, v.Height, v.MinDepth, v.MaxDepth)
}

func (r *replayer) applyState() {
	if r.viewport != nil {
		r.applyViewport()
	}
	if r.scissor != nil {
		s := r.scissor
		r.rp.SetScissorRect(s.X, s.Y, s.Width, s.Height)
	}
	if r.pipeline != nil {
		r.rp.SetPipeline(r.pipeline)
	}
	for i, g := range r.bindGroups {
		if g != nil {
			r.rp.SetBindGroup(uint32(i), g, nil) //nolint:gosec // i < maxBindGroups
		}
	}
	if r.vertexArray != nil {
		r.vertexArray.bind(r.rp)
	}
	if r.stencilRef != nil {
		r.rp.SetStencilReference(*r.stencilRef)
	}
}

// resolve opens a pass whose color attachments resolve src into dst.
func (r *replayer) resolve(dst, src RenderTarget) error {
	srcAtt, err := src.Attachments()
	if err != nil {
		return fmt.Errorf("resolve source attachments: %w", err)
	}
	dstAtt, err := dst.Attachments()
	if err != nil {
		return fmt.Errorf("resolve destination attachments: %w", err)
	}
	n := min(len(srcAtt.Colors), len(dstAtt.Colors))
	if n == 0 {
		return nil
	}
	desc := &hal.RenderPassDescriptor{Label: "resolve_multisample"}
	for i := range n {
		desc.ColorAttachments = append(desc.ColorAttachments, hal.RenderPassColorAttachment{
			View:          srcAtt.Colors[i],
			ResolveTarget: dstAtt.Colors[i],
			LoadOp:        gputypes.LoadOpLoad,
			StoreOp:       gputypes.StoreOpStore,
		})
	}
	rp := r.enc.BeginRenderPass(desc)
	rp.End()
	return nil
}

func (r *replayer) copyTexture(dst, src *Texture) {
	if dst == nil || src == nil || dst.HAL() == nil || src.HAL() == nil {
		return
	}
	r.enc.CopyTextureToTexture(src.HAL(), dst.HAL(), []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{Texture: src.HAL(), Aspect: gputypes.TextureAspectAll},
		DstBase: hal.ImageCopyTexture{Texture: dst.HAL(), Aspect: gputypes.TextureAspectAll},
		Size: hal.Extent3D{
			Width:              min(src.Width(), dst.Width()),
			Height:             min(src.Height(), dst.Height()),
			DepthOrArrayLayers: 1,
		},
	}})
}
