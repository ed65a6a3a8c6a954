// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render is the thin GPU layer rendercore is built on.
//
// rendercore RECEIVES a GPU device from the host application, it does NOT
// create its own. [Device] wraps the hal.Device and hal.Queue (directly or
// via a gpucontext.DeviceProvider) and creates every GPU object the
// compositor needs.
//
// # Core Types
//
//   - Device: texture, framebuffer and vertex array creation, submission bookkeeping
//   - RenderTarget: where a pass draws (Framebuffer, TextureTarget, SwapChain)
//   - CommandBuffer: CPU-side recording of one frame, replayed into a single
//     HAL command buffer by Submit
//
// # Recording Model
//
// Passes record into a CommandBuffer without touching the GPU. Submit walks
// the commands once, opens render passes lazily, folds clears into load
// operations and hands one command buffer to the queue:
//
//	cb := render.NewCommandBuffer()
//	cb.SetRenderTarget(swapChain)
//	cb.Clear(render.ClearAll, gputypes.Color{A: 1}, 1, 0)
//	cb.SetPipeline(pipeline)
//	cb.SetVertexArray(mesh)
//	cb.DrawIndexed(36, 1, 0, 0, 0)
//	if _, err := cb.Submit(device); err != nil {
//	    return err
//	}
//	return swapChain.Present()
package render
